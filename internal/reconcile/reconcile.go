// Package reconcile merges freshly parsed facts into the primary store.
// Writes are find-or-create-then-overwrite keyed by the record's natural key,
// so overlapping runs converge on the same documents. Fields another producer
// owns are written with Patch instead.
package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/calendar"
	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/store"
)

// Reconciler owns canonical records for the duration of a run.
type Reconciler struct {
	store   store.Store
	clock   calendar.Clock
	stamper *Stamper
}

// New returns a Reconciler writing to s. A nil clock uses the system clock.
func New(s store.Store, clock calendar.Clock) *Reconciler {
	if clock == nil {
		clock = calendar.SystemClock{Loc: time.UTC}
	}
	return &Reconciler{store: s, clock: clock, stamper: NewStamper(clock)}
}

// Upsert looks rec up by its key and overwrites whatever is stored there
// with rec's fields. It reports whether the record was new.
func (r *Reconciler) Upsert(ctx context.Context, rec model.Record) (bool, error) {
	_, exists, err := r.store.Get(ctx, string(rec.Kind()), rec.Key())
	if err != nil {
		return false, eris.Wrapf(err, "reconcile: find %s %s", rec.Kind(), rec.Key())
	}
	if err := store.Save(ctx, r.store, rec); err != nil {
		return false, eris.Wrapf(err, "reconcile: save %s %s", rec.Kind(), rec.Key())
	}
	zap.L().Debug("reconciled",
		zap.String("component", "reconcile"),
		zap.String("kind", string(rec.Kind())),
		zap.String("key", rec.Key()),
		zap.Bool("created", !exists),
	)
	return !exists, nil
}

// Patch writes only the named fields of rec over the stored document,
// leaving fields owned by other producers in place. A record not yet stored
// is saved whole. It reports whether the record was new.
func (r *Reconciler) Patch(ctx context.Context, rec model.Record, fields []string) (bool, error) {
	doc, err := model.Project(rec, fields)
	if err != nil {
		return false, err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return false, eris.Wrapf(err, "reconcile: encode %s %s", rec.Kind(), rec.Key())
	}
	found, err := r.store.Patch(ctx, string(rec.Kind()), rec.Key(), body)
	if err != nil {
		return false, eris.Wrapf(err, "reconcile: patch %s %s", rec.Kind(), rec.Key())
	}
	if !found {
		if err := store.Save(ctx, r.store, rec); err != nil {
			return false, eris.Wrapf(err, "reconcile: save %s %s", rec.Kind(), rec.Key())
		}
	}
	zap.L().Debug("patched",
		zap.String("component", "reconcile"),
		zap.String("kind", string(rec.Kind())),
		zap.String("key", rec.Key()),
		zap.Strings("fields", fields),
		zap.Bool("created", !found),
	)
	return !found, nil
}

// SaveVote stamps and upserts a vote.
func (r *Reconciler) SaveVote(ctx context.Context, v *model.Vote) (bool, error) {
	v.UpdatedAt = r.now()
	return r.Upsert(ctx, v)
}

// SaveDocument stamps and upserts a document.
func (r *Reconciler) SaveDocument(ctx context.Context, d *model.Document) (bool, error) {
	d.UpdatedAt = r.now()
	return r.Upsert(ctx, d)
}

func (r *Reconciler) now() time.Time {
	return r.clock.Now().UTC()
}
