package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/competitor-monitor/internal/model"
)

// SQLiteStore implements History using modernc.org/sqlite.
type SQLiteStore struct {
	db       *sql.DB
	maxItems int
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string, maxItems int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if dsn == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, maxItems: capacity(maxItems)}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS history (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	source     TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// Migrate creates the history table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close implements History.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append implements History. Rows beyond maxItems are trimmed in the same
// transaction.
func (s *SQLiteStore) Append(ctx context.Context, entry model.HistoryEntry) error {
	entry = prepare(entry)
	payload, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal entry")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO history (id, kind, source, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Kind), entry.Source, string(payload), entry.CreatedAt,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert history %s", entry.ID)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM history WHERE seq NOT IN (SELECT seq FROM history ORDER BY seq DESC LIMIT ?)`,
		s.maxItems,
	); err != nil {
		return eris.Wrap(err, "sqlite: trim history")
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

// Recent implements History.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM history ORDER BY seq DESC LIMIT ?`,
		clampLimit(limit, s.maxItems),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query history")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.HistoryEntry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan history")
		}
		e, err := decodeEntry([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate history")
}

func decodeEntry(payload []byte) (model.HistoryEntry, error) {
	var e model.HistoryEntry
	if err := json.Unmarshal(payload, &e); err != nil {
		return e, eris.Wrap(err, "store: decode history entry")
	}
	return e, nil
}
