package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/capitol-sync/internal/calendar"
	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/store"
)

// Stamper hands out strictly increasing timestamps per legislative day.
// Each stamp is the current time, or one millisecond past the previous
// stamp of that day when the clock has not moved far enough.
type Stamper struct {
	clock calendar.Clock
	last  map[string]time.Time
}

// NewStamper returns a Stamper reading clock.
func NewStamper(clock calendar.Clock) *Stamper {
	return &Stamper{clock: clock, last: make(map[string]time.Time)}
}

// Seed records an existing timestamp for day so later stamps follow it.
func (s *Stamper) Seed(day string, t time.Time) {
	if t.After(s.last[day]) {
		s.last[day] = t
	}
}

// Next returns the next timestamp for day.
func (s *Stamper) Next(day string) time.Time {
	now := s.clock.Now().UTC().Truncate(time.Millisecond)
	if last, ok := s.last[day]; ok && !now.After(last) {
		now = last.Add(time.Millisecond)
	}
	s.last[day] = now
	return now
}

// FloorDay is what the store already holds for one legislative day.
type FloorDay struct {
	Day    string
	Events map[string]bool
	Latest time.Time
}

// Has reports whether text is already recorded for the day.
func (d *FloorDay) Has(text string) bool {
	return d.Events[text]
}

// LoadFloorDay reads every stored floor update of a day and seeds the
// stamper with the latest timestamp among them.
func (r *Reconciler) LoadFloorDay(ctx context.Context, day string) (*FloorDay, error) {
	updates, err := store.FindRecords(ctx, r.store, model.KindFloorUpdate,
		store.Query{Where: map[string]any{"legislative_day": day}},
		func() *model.FloorUpdate { return &model.FloorUpdate{} },
	)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: floor updates for %s", day)
	}
	fd := &FloorDay{Day: day, Events: make(map[string]bool)}
	for _, u := range updates {
		for _, e := range u.Events {
			fd.Events[e] = true
		}
		if u.Timestamp.After(fd.Latest) {
			fd.Latest = u.Timestamp
		}
	}
	r.stamper.Seed(day, fd.Latest)
	return fd, nil
}

// InsertFloorUpdate saves a new floor update for a day unless its text is
// already recorded. It reports whether a record was inserted.
func (r *Reconciler) InsertFloorUpdate(ctx context.Context, fd *FloorDay, fu *model.FloorUpdate) (bool, error) {
	if len(fu.Events) == 0 || fd.Has(fu.Events[0]) {
		return false, nil
	}
	if fu.ID == "" {
		fu.ID = uuid.New().String()
	}
	fu.LegislativeDay = fd.Day
	fu.Timestamp = r.stamper.Next(fd.Day)
	if err := store.Save(ctx, r.store, fu); err != nil {
		return false, eris.Wrapf(err, "reconcile: insert floor update %s", fd.Day)
	}
	for _, e := range fu.Events {
		fd.Events[e] = true
	}
	fd.Latest = fu.Timestamp
	return true, nil
}
