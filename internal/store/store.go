// Package store keeps the optional most-recent-N analysis history. The
// in-memory ring is the default; SQLite and Postgres back it when the history
// should survive restarts.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-monitor/internal/model"
)

// DefaultMaxItems is how many entries a history keeps when unconfigured.
const DefaultMaxItems = 10

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// History is an append-only log capped at a fixed number of entries.
// Recent returns the newest entries first.
type History interface {
	Append(ctx context.Context, entry model.HistoryEntry) error
	Recent(ctx context.Context, limit int) ([]model.HistoryEntry, error)
	Close() error
}

// Open builds the History for driver and runs its migration.
func Open(ctx context.Context, driver, dsn string, maxItems int) (History, error) {
	switch strings.ToLower(driver) {
	case DriverMemory, "":
		return NewRing(maxItems), nil
	case DriverSQLite:
		s, err := NewSQLite(dsn, maxItems)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case DriverPostgres:
		s, err := NewPostgres(ctx, dsn, maxItems)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("store: unknown history driver %q", driver)
	}
}

// prepare fills the ID and timestamp of a new entry.
func prepare(e model.HistoryEntry) model.HistoryEntry {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

func capacity(maxItems int) int {
	if maxItems <= 0 {
		return DefaultMaxItems
	}
	return maxItems
}

// clampLimit bounds a Recent limit to (0, max].
func clampLimit(limit, maxItems int) int {
	if limit <= 0 || limit > maxItems {
		return maxItems
	}
	return limit
}
