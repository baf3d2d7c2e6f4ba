package export

import (
	"context"
	"sort"
	"sync"
)

type HistoryFilter struct {
	Format      string
	RequestedBy string
	Limit       int
}

// HistoryStore is the append-only export log. Append is idempotent per
// task id: completion signaling is at-least-once, so a duplicate append
// is a no-op, not an error.
type HistoryStore interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context, f HistoryFilter) ([]Record, error)
}

type memoryHistory struct {
	mu      sync.RWMutex
	records []Record
	byTask  map[string]bool
}

func NewMemoryHistory() HistoryStore {
	return &memoryHistory{byTask: map[string]bool{}}
}

func (m *memoryHistory) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byTask[rec.TaskID] {
		return nil
	}
	m.byTask[rec.TaskID] = true
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryHistory) List(_ context.Context, f HistoryFilter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, r := range m.records {
		if f.Format != "" && r.Format != f.Format {
			continue
		}
		if f.RequestedBy != "" && r.RequestedBy != f.RequestedBy {
			continue
		}
		out = append(out, r)
	}
	// newest first, stable for equal timestamps
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
