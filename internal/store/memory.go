package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// MemoryStore is an in-process Store used by tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string][]byte
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, collection, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[collection][key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(doc), true, nil
}

func (s *MemoryStore) Put(_ context.Context, collection, key string, doc []byte) error {
	if !json.Valid(doc) {
		return eris.Errorf("memory: invalid document %s/%s", collection, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.docs[collection]
	if !ok {
		c = make(map[string][]byte)
		s.docs[collection] = c
	}
	c[key] = bytes.Clone(doc)
	return nil
}

func (s *MemoryStore) Patch(_ context.Context, collection, key string, fields []byte) (bool, error) {
	m, _, err := patchFields(fields)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.docs[collection][key]
	if !ok {
		return false, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(cur, &doc); err != nil {
		return false, eris.Wrapf(err, "memory: decode %s/%s", collection, key)
	}
	for k, v := range m {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return false, eris.Wrapf(err, "memory: encode %s/%s", collection, key)
	}
	s.docs[collection][key] = merged
	return true, nil
}

func (s *MemoryStore) Find(_ context.Context, collection string, q Query) ([][]byte, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type match struct {
		key  string
		sort string
		doc  []byte
	}
	var matches []match
	for key, doc := range s.docs[collection] {
		var fields map[string]any
		if err := json.Unmarshal(doc, &fields); err != nil {
			return nil, eris.Wrapf(err, "memory: decode %s/%s", collection, key)
		}
		if !matchesWhere(fields, q.Where) {
			continue
		}
		m := match{key: key, doc: doc}
		if q.OrderBy != "" {
			m.sort = sortKey(fields[q.OrderBy])
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.sort != b.sort {
			if q.Desc {
				return a.sort > b.sort
			}
			return a.sort < b.sort
		}
		return a.key < b.key
	})
	if q.Limit > 0 && len(matches) > q.Limit {
		matches = matches[:q.Limit]
	}

	out := make([][]byte, len(matches))
	for i, m := range matches {
		out[i] = bytes.Clone(m.doc)
	}
	return out, nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Len returns the number of documents in a collection.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs[collection])
}

func matchesWhere(fields, where map[string]any) bool {
	for k, want := range where {
		got, ok := fields[k]
		if !ok {
			return false
		}
		if !sameJSON(got, want) {
			return false
		}
	}
	return true
}

// sameJSON compares a decoded JSON value with a Go value by their encodings.
func sameJSON(got, want any) bool {
	a, err := json.Marshal(got)
	if err != nil {
		return false
	}
	b, err := json.Marshal(want)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

const sortableTime = "2006-01-02T15:04:05.000000000Z"

// sortKey renders a value so that string comparison follows the natural
// order of numbers and RFC 3339 timestamps.
func sortKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%020.6f", t)
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts.UTC().Format(sortableTime)
		}
		return t
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
