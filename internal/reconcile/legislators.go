package reconcile

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/store"
)

// LegislatorCache resolves legislators lazily and remembers both hits and
// misses. It is scoped to one run and is not safe for concurrent use.
type LegislatorCache struct {
	store  store.Store
	byLis  map[string]*model.Legislator
	byLast map[string]*model.Legislator
}

// NewLegislatorCache returns an empty cache reading from s.
func NewLegislatorCache(s store.Store) *LegislatorCache {
	return &LegislatorCache{
		store:  s,
		byLis:  make(map[string]*model.Legislator),
		byLast: make(map[string]*model.Legislator),
	}
}

// ByLisID returns the legislator with the given Senate LIS id, or nil when
// none is stored.
func (c *LegislatorCache) ByLisID(ctx context.Context, lisID string) (*model.Legislator, error) {
	if l, ok := c.byLis[lisID]; ok {
		return l, nil
	}
	found, err := c.find(ctx, map[string]any{"lis_id": lisID}, 1)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: legislator lis_id %s", lisID)
	}
	var l *model.Legislator
	if len(found) > 0 {
		l = found[0]
	}
	c.byLis[lisID] = l
	return l, nil
}

// SenatorByLastName returns the sitting senator with the given last name
// when exactly one matches.
func (c *LegislatorCache) SenatorByLastName(ctx context.Context, last string) (*model.Legislator, error) {
	key := strings.ToLower(last)
	if l, ok := c.byLast[key]; ok {
		return l, nil
	}
	found, err := c.find(ctx, map[string]any{
		"last_name": last,
		"chamber":   model.ChamberSenate,
		"in_office": true,
	}, 2)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: senator %s", last)
	}
	var l *model.Legislator
	if len(found) == 1 {
		l = found[0]
	}
	c.byLast[key] = l
	return l, nil
}

// Len returns the number of cached lookups, hits and misses.
func (c *LegislatorCache) Len() int {
	return len(c.byLis) + len(c.byLast)
}

func (c *LegislatorCache) find(ctx context.Context, where map[string]any, limit int) ([]*model.Legislator, error) {
	return store.FindRecords(ctx, c.store, model.KindLegislator,
		store.Query{Where: where, Limit: limit},
		func() *model.Legislator { return &model.Legislator{} },
	)
}

// Basic returns the embeddable basic-field subset of l.
func Basic(l *model.Legislator) (map[string]any, error) {
	return model.Project(l, model.LegislatorBasicFields)
}
