package source

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/calendar"
	"github.com/sells-group/capitol-sync/internal/fetcher"
	"github.com/sells-group/capitol-sync/internal/metrics"
	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/reconcile"
	"github.com/sells-group/capitol-sync/internal/report"
	"github.com/sells-group/capitol-sync/internal/search"
	"github.com/sells-group/capitol-sync/internal/store"
)

// EngineConfig holds the collaborators shared by every run.
type EngineConfig struct {
	Store     store.Store
	Indexer   search.Indexer
	Fetch     *fetcher.Cache
	Clock     calendar.Clock // wall clock in the calendar location
	DataDir   string
	BatchSize int
	Sinks     []report.Sink

	// PushgatewayURL, when set, receives run metrics after Run completes.
	PushgatewayURL string
	MetricsJob     string
}

// Engine runs sources one after another.
type Engine struct {
	cfg EngineConfig
	reg *Registry
}

// Outcome is the result of running one source.
type Outcome struct {
	Source  string
	Status  string
	Count   int
	Elapsed time.Duration
	Reports []*model.Report
}

// NewEngine creates a new sync engine.
func NewEngine(cfg EngineConfig, reg *Registry) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = calendar.SystemClock{Loc: time.UTC}
	}
	if cfg.Indexer == nil {
		cfg.Indexer = search.Nop{}
	}
	return &Engine{cfg: cfg, reg: reg}
}

// Run syncs the selected sources with the same options. Every source that
// starts ends with exactly one terminal report.
func (e *Engine) Run(ctx context.Context, names []string, opts Options) ([]Outcome, error) {
	log := zap.L().With(zap.String("component", "source.engine"))

	sources, err := e.reg.Select(names)
	if err != nil {
		return nil, err
	}

	var out []Outcome
	var succeeded, failed int
	for _, src := range sources {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		o := e.runOne(ctx, src, opts)
		if o.Status == report.StatusFailure {
			failed++
		} else {
			succeeded++
		}
		out = append(out, o)
	}

	log.Info("engine run complete",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
	)

	if err := metrics.Push(ctx, e.cfg.PushgatewayURL, e.cfg.MetricsJob); err != nil {
		log.Warn("metrics push failed", zap.Error(err))
	}
	return out, nil
}

func (e *Engine) runOne(ctx context.Context, src Source, opts Options) Outcome {
	log := zap.L().With(zap.String("component", "source.engine"), zap.String("source", src.Name()))

	rep := report.New(src.Name(), e.cfg.Clock, e.cfg.Sinks...)
	batch := search.NewBatch(e.cfg.Indexer, src.Index(), e.cfg.BatchSize, func(index string, ids []string, err error) {
		rep.Fail("Failed to write a batch to the search index", map[string]any{
			"index": index,
			"ids":   ids,
			"error": err.Error(),
		})
	})
	run := &Run{
		Opts:        opts,
		Now:         e.cfg.Clock.Now(),
		DataDir:     e.cfg.DataDir,
		Fetch:       e.cfg.Fetch,
		Recon:       reconcile.New(e.cfg.Store, e.cfg.Clock),
		Legislators: reconcile.NewLegislatorCache(e.cfg.Store),
		Batch:       batch,
		Report:      rep,
	}

	log.Info("starting sync")
	start := time.Now()
	res, err := e.sync(ctx, src, run)
	if err != nil {
		log.Error("sync failed", zap.Error(err))
		rep.Abort(fmt.Sprintf("Error syncing %s, can't go on", src.Name()), map[string]any{"error": err.Error()})
		res = &Result{}
	}
	log.Debug("flushing search batch", zap.Int("pending", batch.Pending()))
	batch.Flush(ctx)
	elapsed := time.Since(start)
	metrics.ObserveRun(src.Name(), elapsed.Seconds())

	reports, err := rep.Finish(ctx, res.Summary)
	if err != nil {
		log.Warn("report delivery incomplete", zap.Error(err))
	}

	o := Outcome{Source: src.Name(), Count: res.Count, Elapsed: elapsed, Reports: reports}
	if n := len(reports); n > 0 {
		o.Status = reports[n-1].Status
	}
	log.Info("sync complete",
		zap.String("status", o.Status),
		zap.Int("count", o.Count),
		zap.Int("search_writes", batch.Writes()),
		zap.Int("search_failed", batch.Failed()),
		zap.Int("failures", len(rep.Failures())),
		zap.Int("warnings", len(rep.Warnings())),
		zap.Int("notes", len(rep.Notes())),
		zap.Int("legislator_lookups", run.Legislators.Len()),
		zap.Duration("elapsed", elapsed),
	)
	return o
}

// sync runs one adapter and turns a panic into an error so the run still
// reports.
func (e *Engine) sync(ctx context.Context, src Source, run *Run) (res *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("source: %s panicked: %v", src.Name(), p)
		}
	}()
	res, err = src.Sync(ctx, run)
	if err == nil && res == nil {
		res = &Result{}
	}
	return res, err
}
