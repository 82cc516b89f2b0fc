package catalogstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{
		db: tx,
	}
}

func wrapOpen(err error) error {
	return fmt.Errorf("open catalog db: %w", err)
}

// Open opens (creating when missing) the sqlite file at path and applies the schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, wrapOpen(err)
		}
	}

	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpen(err)
	}

	// sqlite allows a single writer, concurrent writers only get SQLITE_BUSY
	database.SetMaxOpenConns(1)
	for _, stmt := range []string{
		"pragma journal_mode = wal",
		"pragma foreign_keys = on",
		Schema,
	} {
		_, err = database.ExecContext(ctx, stmt)
		if err != nil {
			database.Close()
			return nil, wrapOpen(err)
		}
	}
	return database, nil
}
