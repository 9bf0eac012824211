package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/replaymeta/internal/domain/model"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS matches (
	seq      INTEGER PRIMARY KEY AUTOINCREMENT,
	match_id TEXT    NOT NULL UNIQUE,
	stored_at INTEGER NOT NULL,
	summary  TEXT    NOT NULL,
	document TEXT    NOT NULL
)`

// sqliteStore archives matches in a local SQLite file.
type sqliteStore struct {
	db   *sql.DB
	opts options
}

func openSQLite(ctx context.Context, path string, o options) (*sqliteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store: empty path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite store: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %s: %w", path, err)
	}
	// A single connection keeps writes serialized and makes ":memory:" usable.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return &sqliteStore{db: db, opts: o}, nil
}

func (s *sqliteStore) Save(ctx context.Context, m model.MatchMetadata) (err error) {
	start := time.Now()
	defer func() { observe("save", start, err) }()

	rec, err := encodeRecord(m, s.opts)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (match_id, stored_at, summary, document) VALUES (?, ?, ?, ?)
		 ON CONFLICT(match_id) DO NOTHING`,
		rec.matchID, s.opts.now().UnixNano(), string(rec.summary), string(rec.document))
	if err != nil {
		return fmt.Errorf("sqlite store: insert %s: %w", m.MatchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite store: insert %s: %w", m.MatchID, err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, matchID string) (m model.MatchMetadata, err error) {
	start := time.Now()
	defer func() { observe("get", start, err) }()

	var doc string
	err = s.db.QueryRowContext(ctx, `SELECT document FROM matches WHERE match_id = ?`, matchID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MatchMetadata{}, ErrNotFound
	}
	if err != nil {
		return model.MatchMetadata{}, fmt.Errorf("sqlite store: get %s: %w", matchID, err)
	}
	return decodeDocument([]byte(doc))
}

func (s *sqliteStore) List(ctx context.Context, limit int) (out []model.MatchSummary, err error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer func() { observe("list", start, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT summary FROM matches ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list: %w", err)
	}
	defer rows.Close()

	out = make([]model.MatchSummary, 0, limit)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sqlite store: list: %w", err)
		}
		sum, err := decodeSummary([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite store: count: %w", err)
	}
	return n, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }
