// Package store persists canonical records as JSON documents grouped into
// collections, one per record kind.
package store

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/capitol-sync/internal/model"
)

// Query filters a collection by equality on top-level fields.
type Query struct {
	Where   map[string]any
	OrderBy string
	Desc    bool
	Limit   int
}

// Store defines the persistence interface for canonical records.
type Store interface {
	// Get returns the document stored under key, or false when absent.
	Get(ctx context.Context, collection, key string) ([]byte, bool, error)
	Find(ctx context.Context, collection string, q Query) ([][]byte, error)
	// Put creates or replaces the document stored under key.
	Put(ctx context.Context, collection, key string, doc []byte) error
	// Patch replaces only the top-level fields present in the JSON object
	// fields, keeping every other field of the stored document. It reports
	// false, writing nothing, when no document is stored under key.
	Patch(ctx context.Context, collection, key string, fields []byte) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var fieldName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validateQuery(q Query) error {
	for k := range q.Where {
		if !fieldName.MatchString(k) {
			return eris.Errorf("store: invalid field %q", k)
		}
	}
	if q.OrderBy != "" && !fieldName.MatchString(q.OrderBy) {
		return eris.Errorf("store: invalid order field %q", q.OrderBy)
	}
	return nil
}

// patchFields decodes a Patch argument and returns its keys sorted.
func patchFields(fields []byte) (map[string]json.RawMessage, []string, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(fields, &m); err != nil {
		return nil, nil, eris.Wrap(err, "store: patch fields")
	}
	if len(m) == 0 {
		return nil, nil, eris.New("store: empty patch")
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		if !fieldName.MatchString(k) {
			return nil, nil, eris.Errorf("store: invalid field %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return m, keys, nil
}

// whereKeys returns filter fields in a stable order so generated queries and
// their arguments line up.
func whereKeys(q Query) []string {
	keys := make([]string, 0, len(q.Where))
	for k := range q.Where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load reads the record stored under r's own key into r.
func Load(ctx context.Context, s Store, r model.Record) (bool, error) {
	data, ok, err := s.Get(ctx, string(r.Kind()), r.Key())
	if err != nil || !ok {
		return false, err
	}
	if err := model.Decode(data, r); err != nil {
		return false, err
	}
	return true, nil
}

// Save encodes r against its field whitelist and writes it.
func Save(ctx context.Context, s Store, r model.Record) error {
	data, err := model.Encode(r)
	if err != nil {
		return err
	}
	return s.Put(ctx, string(r.Kind()), r.Key(), data)
}

// FindRecords runs q against kind and decodes each match with newFn.
func FindRecords[T model.Record](ctx context.Context, s Store, kind model.Kind, q Query, newFn func() T) ([]T, error) {
	docs, err := s.Find(ctx, string(kind), q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		r := newFn()
		if err := model.Decode(d, r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
