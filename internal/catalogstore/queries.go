package catalogstore

import (
	"context"
)

const createRun = `insert into Run(id, startedAt, finishedAt, pages) values (?, ?, ?, ?)`

type CreateRunParams struct {
	ID         string
	Startedat  int64
	Finishedat int64
	Pages      int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun,
		arg.ID,
		arg.Startedat,
		arg.Finishedat,
		arg.Pages,
	)
	return err
}

const createCategoryItem = `insert into Category(run, label, item) values (?, ?, ?)`

type CreateCategoryItemParams struct {
	Run   string
	Label string
	Item  string
}

func (q *Queries) CreateCategoryItem(ctx context.Context, arg CreateCategoryItemParams) error {
	_, err := q.db.ExecContext(ctx, createCategoryItem, arg.Run, arg.Label, arg.Item)
	return err
}

const createShoot = `insert into Shoot(run, page, item, title, ref, description)
values (?, ?, ?, ?, ?, ?)
returning id`

type CreateShootParams struct {
	Run         string
	Page        int64
	Item        int64
	Title       string
	Ref         string
	Description string
}

func (q *Queries) CreateShoot(ctx context.Context, arg CreateShootParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createShoot,
		arg.Run,
		arg.Page,
		arg.Item,
		arg.Title,
		arg.Ref,
		arg.Description,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const createShootMedia = `insert into ShootMedia(shoot, ref, type, date) values (?, ?, ?, ?)`

type CreateShootMediaParams struct {
	Shoot int64
	Ref   string
	Type  string
	Date  string
}

func (q *Queries) CreateShootMedia(ctx context.Context, arg CreateShootMediaParams) error {
	_, err := q.db.ExecContext(ctx, createShootMedia, arg.Shoot, arg.Ref, arg.Type, arg.Date)
	return err
}

const createShootFacet = `insert into ShootFacet(shoot, facet) values (?, ?)`

type CreateShootFacetParams struct {
	Shoot int64
	Facet string
}

func (q *Queries) CreateShootFacet(ctx context.Context, arg CreateShootFacetParams) error {
	_, err := q.db.ExecContext(ctx, createShootFacet, arg.Shoot, arg.Facet)
	return err
}

const getRuns = `select Run.id, Run.startedAt, Run.finishedAt, Run.pages, count(Shoot.id)
from Run
left join Shoot on Shoot.run = Run.id
group by Run.id
order by Run.startedAt desc`

type GetRunsRow struct {
	ID         string
	Startedat  int64
	Finishedat int64
	Pages      int64
	Shoots     int64
}

func (q *Queries) GetRuns(ctx context.Context) ([]GetRunsRow, error) {
	rows, err := q.db.QueryContext(ctx, getRuns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetRunsRow
	for rows.Next() {
		var i GetRunsRow
		if err := rows.Scan(
			&i.ID,
			&i.Startedat,
			&i.Finishedat,
			&i.Pages,
			&i.Shoots,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getShootsWithFacet = `select distinct Shoot.page, Shoot.item, Shoot.title, Shoot.ref
from Shoot
inner join ShootFacet on ShootFacet.shoot = Shoot.id
where Shoot.run = ? and ShootFacet.facet = ?
order by Shoot.page, Shoot.item`

type GetShootsWithFacetParams struct {
	Run   string
	Facet string
}

type GetShootsWithFacetRow struct {
	Page  int64
	Item  int64
	Title string
	Ref   string
}

func (q *Queries) GetShootsWithFacet(ctx context.Context, arg GetShootsWithFacetParams) ([]GetShootsWithFacetRow, error) {
	rows, err := q.db.QueryContext(ctx, getShootsWithFacet, arg.Run, arg.Facet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetShootsWithFacetRow
	for rows.Next() {
		var i GetShootsWithFacetRow
		if err := rows.Scan(
			&i.Page,
			&i.Item,
			&i.Title,
			&i.Ref,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
