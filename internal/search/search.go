// Package search mirrors record projections into a full-text index through
// bounded bulk batches.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Index names.
const (
	IndexVotes        = "votes"
	IndexFloorUpdates = "floor_updates"
	IndexDocuments    = "documents"
	IndexBills        = "bills"
)

// Doc is one projection addressed by its natural key.
type Doc struct {
	ID   string
	Body map[string]any
}

// Indexer is a bulk-write-capable document index.
type Indexer interface {
	// Bulk writes docs into index. Docs replace earlier docs with the same ID.
	Bulk(ctx context.Context, index string, docs []Doc) error
	Migrate(ctx context.Context) error
	Close() error
}

// Content flattens the string values of a projection into searchable text.
// Keys are visited in sorted order so the output is stable.
func Content(body map[string]any) string {
	var parts []string
	collect(body, &parts)
	return strings.Join(parts, " ")
}

func collect(v any, parts *[]string) {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			*parts = append(*parts, s)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collect(t[k], parts)
		}
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collect(t[k], parts)
		}
	case []any:
		for _, c := range t {
			collect(c, parts)
		}
	case []string:
		for _, c := range t {
			collect(c, parts)
		}
	case nil, bool:
	case fmt.Stringer:
		collect(t.String(), parts)
	}
}
