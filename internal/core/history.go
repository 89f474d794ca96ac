package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunNotFound is returned when no run with the given ID is recorded.
var ErrRunNotFound = errors.New("import run not found")

// DefaultHistoryLimit is how many runs MemoryHistory keeps.
const DefaultHistoryLimit = 200

// RunRecord is one import as seen by the service: the engine summary plus
// who sent the stream. Fatal runs are recorded with Error set.
type RunRecord struct {
	ID        string      `json:"id" yaml:"id"`
	Source    string      `json:"source" yaml:"source"`
	ClientIP  string      `json:"clientIp,omitempty" yaml:"clientIp,omitempty"`
	UserAgent string      `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	Summary   *RunSummary `json:"summary" yaml:"summary"`
	Error     string      `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time   `json:"createdAt" yaml:"createdAt"`
}

// HistoryStore records finished runs.
type HistoryStore interface {
	Save(ctx context.Context, rec *RunRecord) error
	Get(ctx context.Context, id string) (*RunRecord, error)
	// List returns up to limit runs, newest first.
	List(ctx context.Context, limit int) ([]*RunRecord, error)
}

// MemoryHistory is a bounded in-process HistoryStore. The oldest run is
// evicted once the limit is reached.
type MemoryHistory struct {
	mu      sync.RWMutex
	limit   int
	records []*RunRecord // oldest first
	byID    map[string]*RunRecord
}

// NewMemoryHistory creates a MemoryHistory keeping at most limit runs.
func NewMemoryHistory(limit int) *MemoryHistory {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryHistory{
		limit: limit,
		byID:  make(map[string]*RunRecord),
	}
}

// Save implements HistoryStore.
func (h *MemoryHistory) Save(_ context.Context, rec *RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.byID[rec.ID]; ok {
		for i, r := range h.records {
			if r.ID == rec.ID {
				h.records[i] = rec
				break
			}
		}
		h.byID[rec.ID] = rec
		return nil
	}

	if len(h.records) >= h.limit {
		evicted := h.records[0]
		h.records = h.records[1:]
		delete(h.byID, evicted.ID)
	}
	h.records = append(h.records, rec)
	h.byID[rec.ID] = rec
	return nil
}

// Get implements HistoryStore.
func (h *MemoryHistory) Get(_ context.Context, id string) (*RunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rec, ok := h.byID[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return rec, nil
}

// List implements HistoryStore.
func (h *MemoryHistory) List(_ context.Context, limit int) ([]*RunRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.records) {
		limit = len(h.records)
	}
	out := make([]*RunRecord, 0, limit)
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, h.records[i])
	}
	return out, nil
}
