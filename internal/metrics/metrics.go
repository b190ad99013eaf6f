// Package metrics exposes Prometheus collectors for ingestion runs.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"
)

// Registry holds every capsync collector. It is separate from the default
// registry so a push carries only run counters.
var Registry = prometheus.NewRegistry()

var (
	fetchTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "capsync_fetch_total",
			Help: "Upstream fetches, labeled by result (network, cache, failed, rejected).",
		},
		[]string{"result"},
	)

	itemsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "capsync_items_total",
			Help: "Items processed per source, labeled by outcome (saved, skipped, failed).",
		},
		[]string{"source", "outcome"},
	)

	bulkWritesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "capsync_bulk_writes_total",
			Help: "Search index bulk writes, labeled by index and outcome.",
		},
		[]string{"index", "outcome"},
	)

	runSeconds = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "capsync_run_duration_seconds",
			Help: "Duration of the last run of each source.",
		},
		[]string{"source"},
	)
)

// Fetch outcomes.
const (
	FetchNetwork  = "network"
	FetchCache    = "cache"
	FetchFailed   = "failed"
	FetchRejected = "rejected"
)

// Item outcomes.
const (
	ItemSaved   = "saved"
	ItemSkipped = "skipped"
	ItemFailed  = "failed"
)

// ObserveFetch counts one fetch with the given result.
func ObserveFetch(result string) {
	fetchTotal.WithLabelValues(result).Inc()
}

// ObserveItem counts one processed item.
func ObserveItem(source, outcome string) {
	itemsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveBulkWrite counts one bulk write to the search index.
func ObserveBulkWrite(index string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	bulkWritesTotal.WithLabelValues(index, outcome).Inc()
}

// ObserveRun records the duration of a source run.
func ObserveRun(source string, seconds float64) {
	runSeconds.WithLabelValues(source).Set(seconds)
}

// Push sends the registry to a Prometheus Pushgateway. An empty url is a no-op.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(Registry).PushContext(ctx); err != nil {
		return eris.Wrapf(err, "metrics: push to %s", url)
	}
	return nil
}
