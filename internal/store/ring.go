package store

import (
	"context"
	"sync"

	"github.com/sells-group/competitor-monitor/internal/model"
)

// Ring is an in-memory History. The slice is the only shared state and
// every access goes through mu.
type Ring struct {
	mu      sync.Mutex
	entries []model.HistoryEntry // oldest first
	max     int
}

// NewRing creates a Ring holding at most maxItems entries.
func NewRing(maxItems int) *Ring {
	n := capacity(maxItems)
	return &Ring{entries: make([]model.HistoryEntry, 0, n), max: n}
}

// Append implements History. The oldest entry is evicted once full.
func (r *Ring) Append(_ context.Context, entry model.HistoryEntry) error {
	entry = prepare(entry)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == r.max {
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:r.max-1]
	}
	r.entries = append(r.entries, entry)
	return nil
}

// Recent implements History.
func (r *Ring) Recent(_ context.Context, limit int) ([]model.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := min(clampLimit(limit, r.max), len(r.entries))
	out := make([]model.HistoryEntry, 0, n)
	for i := len(r.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.entries[i])
	}
	return out, nil
}

// Len returns the number of stored entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close implements History.
func (r *Ring) Close() error { return nil }
