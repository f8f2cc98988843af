package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store with the same reserve-if-absent
// semantics as SQLite. Backtests and tests use it so replay runs don't
// touch disk.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Reserve(ctx context.Context, e Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.Key]; ok {
		return false, nil
	}
	m.entries[e.Key] = e
	return true, nil
}

func (m *Memory) Get(ctx context.Context, key string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (m *Memory) Update(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.Key]; !ok {
		return ErrNotFound
	}
	m.entries[e.Key] = e
	return nil
}

func (m *Memory) ListRange(ctx context.Context, start, end time.Time) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for _, e := range m.entries {
		if !e.PlacedAt.Before(start) && e.PlacedAt.Before(end) {
			out = append(out, e)
		}
	}
	sortByPlacement(out)
	return out, nil
}

func (m *Memory) ListByResult(ctx context.Context, r Result) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for _, e := range m.entries {
		if e.Result == r {
			out = append(out, e)
		}
	}
	sortByPlacement(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }

func sortByPlacement(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PlacedAt.Equal(entries[j].PlacedAt) {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].PlacedAt.Before(entries[j].PlacedAt)
	})
}
