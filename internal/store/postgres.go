package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-monitor/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements History using pgxpool.
type PostgresStore struct {
	pool     Pool
	closeFn  func()
	maxItems int
}

// NewPostgres creates a PostgresStore with a small connection pool.
func NewPostgres(ctx context.Context, connString string, maxItems int) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, maxItems: capacity(maxItems)}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS competitor_history (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	source     TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_competitor_history_kind ON competitor_history(kind);
`

// Migrate creates the history table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close implements History.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Append implements History.
func (s *PostgresStore) Append(ctx context.Context, entry model.HistoryEntry) error {
	entry = prepare(entry)
	payload, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal entry")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO competitor_history (id, kind, source, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, string(entry.Kind), entry.Source, payload, entry.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert history %s", entry.ID)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM competitor_history WHERE seq NOT IN (SELECT seq FROM competitor_history ORDER BY seq DESC LIMIT $1)`,
		s.maxItems,
	); err != nil {
		return eris.Wrap(err, "postgres: trim history")
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

// Recent implements History.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM competitor_history ORDER BY seq DESC LIMIT $1`,
		clampLimit(limit, s.maxItems),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query history")
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan history")
		}
		e, err := decodeEntry(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate history")
}
