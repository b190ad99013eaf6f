package search

import (
	"context"
	"sync"
)

// MemoryIndexer keeps documents in process. It records every bulk call and
// can be told to fail.
type MemoryIndexer struct {
	mu    sync.Mutex
	docs  map[string]map[string]map[string]any
	calls [][]Doc

	// Err, when set, is returned by every Bulk call.
	Err error
}

// NewMemory returns an empty MemoryIndexer.
func NewMemory() *MemoryIndexer {
	return &MemoryIndexer{docs: make(map[string]map[string]map[string]any)}
}

func (m *MemoryIndexer) Bulk(_ context.Context, index string, docs []Doc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]Doc(nil), docs...))
	if m.Err != nil {
		return m.Err
	}
	idx, ok := m.docs[index]
	if !ok {
		idx = make(map[string]map[string]any)
		m.docs[index] = idx
	}
	for _, d := range docs {
		idx[d.ID] = d.Body
	}
	return nil
}

func (m *MemoryIndexer) Migrate(context.Context) error { return nil }

func (m *MemoryIndexer) Close() error { return nil }

// Get returns an indexed document.
func (m *MemoryIndexer) Get(index, id string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[index][id]
	return d, ok
}

// Count returns the number of documents in index.
func (m *MemoryIndexer) Count(index string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[index])
}

// Calls returns a copy of every bulk call received.
func (m *MemoryIndexer) Calls() [][]Doc {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Doc(nil), m.calls...)
}

// Nop discards everything. It backs the "none" search driver.
type Nop struct{}

func (Nop) Bulk(context.Context, string, []Doc) error { return nil }

func (Nop) Migrate(context.Context) error { return nil }

func (Nop) Close() error { return nil }
