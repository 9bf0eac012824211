package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/replaymeta/internal/domain/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS matches (
	seq       BIGSERIAL   PRIMARY KEY,
	match_id  TEXT        NOT NULL UNIQUE,
	stored_at TIMESTAMPTZ NOT NULL,
	summary   JSONB       NOT NULL,
	document  JSONB       NOT NULL
)`

// postgresStore archives matches in PostgreSQL through a pgx pool.
type postgresStore struct {
	pool *pgxpool.Pool
	opts options
}

func openPostgres(ctx context.Context, dsn string, o options) (*postgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &postgresStore{pool: pool, opts: o}, nil
}

func (s *postgresStore) Save(ctx context.Context, m model.MatchMetadata) (err error) {
	start := time.Now()
	defer func() { observe("save", start, err) }()

	rec, err := encodeRecord(m, s.opts)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO matches (match_id, stored_at, summary, document)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (match_id) DO NOTHING
	`, rec.matchID, s.opts.now(), string(rec.summary), string(rec.document))
	if err != nil {
		return fmt.Errorf("postgres store: insert %s: %w", m.MatchID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, matchID string) (m model.MatchMetadata, err error) {
	start := time.Now()
	defer func() { observe("get", start, err) }()

	var doc []byte
	err = s.pool.QueryRow(ctx, `SELECT document FROM matches WHERE match_id = $1`, matchID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MatchMetadata{}, ErrNotFound
	}
	if err != nil {
		return model.MatchMetadata{}, fmt.Errorf("postgres store: get %s: %w", matchID, err)
	}
	return decodeDocument(doc)
}

func (s *postgresStore) List(ctx context.Context, limit int) (out []model.MatchSummary, err error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer func() { observe("list", start, err) }()

	rows, err := s.pool.Query(ctx, `SELECT summary FROM matches ORDER BY seq DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list: %w", err)
	}
	defer rows.Close()

	out = make([]model.MatchSummary, 0, limit)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres store: list: %w", err)
		}
		sum, err := decodeSummary(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *postgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres store: count: %w", err)
	}
	return n, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Truncate empties the archive.
func (s *postgresStore) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE matches RESTART IDENTITY`)
	return err
}
