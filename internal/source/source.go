// Package source implements the upstream adapters and the engine that runs
// them. Each adapter fetches one upstream, reconciles what it parsed into
// the primary store, and feeds a search batch.
package source

import (
	"context"
	"time"

	"github.com/sells-group/capitol-sync/internal/calendar"
	"github.com/sells-group/capitol-sync/internal/fetcher"
	"github.com/sells-group/capitol-sync/internal/metrics"
	"github.com/sells-group/capitol-sync/internal/reconcile"
	"github.com/sells-group/capitol-sync/internal/report"
	"github.com/sells-group/capitol-sync/internal/search"
)

// Options is the option set every adapter accepts. Zero values mean
// "not given".
type Options struct {
	ID       string // single item to sync
	Congress int    // congress to sync, or bill text's congress
	Session  int    // sub-session (1 or 2) for votes
	Year     int    // calendar year for GAO reports
	Days     int    // GAO look-back window
	Limit    int    // maximum items to process
	Force    bool   // re-download even when a cached copy exists
	Cache    bool   // prefer cached copies where the adapter allows it
	Debug    bool   // verbose cache and parse logging
}

// Source is one upstream adapter.
type Source interface {
	// Name is the identifier used on the command line and in reports.
	Name() string
	// Index names the search index the adapter writes to.
	Index() string
	// Sync processes one run. Item-level problems go to run.Report; a
	// returned error means the run could not continue.
	Sync(ctx context.Context, run *Run) (*Result, error)
}

// Result summarizes a completed run.
type Result struct {
	Count   int
	Summary string
}

// Run carries everything an adapter needs for one invocation.
type Run struct {
	Opts        Options
	Now         time.Time // wall clock in the calendar location
	DataDir     string
	Fetch       *fetcher.Cache
	Recon       *reconcile.Reconciler
	Legislators *reconcile.LegislatorCache
	Batch       *search.Batch
	Report      *report.Reporter
}

// fetchOptions builds cache options honoring --force and --cache.
func (r *Run) fetchOptions(dest string, asJSON bool) fetcher.Options {
	return fetcher.Options{
		Cache:       r.Opts.Cache,
		Force:       r.Opts.Force,
		Destination: dest,
		JSON:        asJSON,
		Debug:       r.Opts.Debug,
	}
}

// point places the run's wall clock on the legislative calendar.
func (r *Run) point() calendar.Point {
	return calendar.At(r.Now)
}

func observe(source, outcome string) {
	metrics.ObserveItem(source, outcome)
}
