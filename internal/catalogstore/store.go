// Package catalogstore exports crawled catalogs into an sqlite results file, one run per crawl.
package catalogstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"catalogscraper/internal/scrapers/gord"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("catalogscraper/catalogstore")

type Store struct {
	db  *sql.DB
	qry *Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: New(database),
	}
}

// Run is one completed crawl.
type Run struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Meta       gord.Meta
	Shoots     []gord.Shoot
}

// NewRunID returns a random identifier for a run.
func NewRunID() (string, error) {
	id, err := random.String(12)
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}

// SaveRun writes a run and everything it found in one transaction and returns the run's id.
func (s Store) SaveRun(ctx context.Context, run Run) (string, error) {
	ctx, span := tracer.Start(ctx, "SaveRun")
	defer span.End()

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	id, err := NewRunID()
	if err != nil {
		return fail(err)
	}
	span.SetAttributes(
		attribute.String("run", id),
		attribute.Int("shoots", len(run.Shoots)),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(err)
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.CreateRun(ctx, CreateRunParams{
		ID:         id,
		Startedat:  run.StartedAt.Unix(),
		Finishedat: run.FinishedAt.Unix(),
		Pages:      int64(run.Meta.Pages),
	})
	if err != nil {
		return fail(fmt.Errorf("create run: %w", err))
	}

	for _, category := range run.Meta.Categories {
		for _, item := range category.Items {
			err := txqry.CreateCategoryItem(ctx, CreateCategoryItemParams{
				Run:   id,
				Label: category.Label,
				Item:  item,
			})
			if err != nil {
				return fail(fmt.Errorf("create category item: %w", err))
			}
		}
	}

	for _, shoot := range run.Shoots {
		shootId, err := txqry.CreateShoot(ctx, CreateShootParams{
			Run:         id,
			Page:        int64(shoot.Page),
			Item:        int64(shoot.Item),
			Title:       shoot.Title,
			Ref:         shoot.Ref,
			Description: shoot.Description,
		})
		if err != nil {
			return fail(fmt.Errorf("create shoot %q: %w", shoot.Ref, err))
		}
		for _, media := range shoot.Media {
			err := txqry.CreateShootMedia(ctx, CreateShootMediaParams{
				Shoot: shootId,
				Ref:   media.Ref,
				Type:  media.Type,
				Date:  media.Date,
			})
			if err != nil {
				return fail(fmt.Errorf("create shoot media: %w", err))
			}
		}
		for _, facet := range shoot.Facets {
			err := txqry.CreateShootFacet(ctx, CreateShootFacetParams{
				Shoot: shootId,
				Facet: facet,
			})
			if err != nil {
				return fail(fmt.Errorf("create shoot facet: %w", err))
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return fail(err)
	}
	return id, nil
}

func (s Store) Runs(ctx context.Context) ([]GetRunsRow, error) {
	ctx, span := tracer.Start(ctx, "Runs")
	defer span.End()

	rows, err := s.qry.GetRuns(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return rows, nil
}

func (s Store) ShootsWithFacet(ctx context.Context, run, facet string) ([]GetShootsWithFacetRow, error) {
	ctx, span := tracer.Start(ctx, "ShootsWithFacet")
	defer span.End()

	rows, err := s.qry.GetShootsWithFacet(ctx, GetShootsWithFacetParams{
		Run:   run,
		Facet: facet,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return rows, nil
}
