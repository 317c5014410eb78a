package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type SQLStore struct{ db *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Put(ctx context.Context, p Package) error {
	var mastery sql.NullInt64
	if p.MasteryScore != nil {
		mastery = sql.NullInt64{Int64: int64(*p.MasteryScore), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO packages (id, title, blob_key, mastery_score, created_by, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, blob_key=EXCLUDED.blob_key,
		   mastery_score=EXCLUDED.mastery_score, created_by=EXCLUDED.created_by, created_at=EXCLUDED.created_at`,
		p.ID, p.Title, p.BlobKey, mastery, p.CreatedBy, p.CreatedAt.Unix())
	return err
}

type scanner interface{ Scan(dest ...any) error }

func scanPackage(row scanner) (Package, error) {
	var (
		p       Package
		mastery sql.NullInt64
		created int64
	)
	if err := row.Scan(&p.ID, &p.Title, &p.BlobKey, &mastery, &p.CreatedBy, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Package{}, ErrNotFound
		}
		return Package{}, err
	}
	if mastery.Valid {
		m := int(mastery.Int64)
		p.MasteryScore = &m
	}
	p.CreatedAt = time.Unix(created, 0).UTC()
	return p, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Package, error) {
	return scanPackage(s.db.QueryRowContext(ctx,
		`SELECT id, title, blob_key, mastery_score, created_by, created_at FROM packages WHERE id=$1`, id))
}

func (s *SQLStore) List(ctx context.Context, limit, offset int) ([]Package, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, blob_key, mastery_score, created_by, created_at FROM packages
		 ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
