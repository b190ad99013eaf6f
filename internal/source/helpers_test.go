package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/capitol-sync/internal/calendar"
	"github.com/sells-group/capitol-sync/internal/fetcher"
	"github.com/sells-group/capitol-sync/internal/model"
	"github.com/sells-group/capitol-sync/internal/report"
	"github.com/sells-group/capitol-sync/internal/search"
	"github.com/sells-group/capitol-sync/internal/store"
)

var testNow = time.Date(2013, 1, 22, 15, 4, 5, 0, time.UTC)

type captureSink struct {
	reports []*model.Report
}

func (c *captureSink) Emit(_ context.Context, r *model.Report) error {
	c.reports = append(c.reports, r)
	return nil
}

func (c *captureSink) statuses() []string {
	out := make([]string, len(c.reports))
	for i, r := range c.reports {
		out[i] = r.Status
	}
	return out
}

func (c *captureSink) terminal() *model.Report {
	if len(c.reports) == 0 {
		return nil
	}
	return c.reports[len(c.reports)-1]
}

type harness struct {
	store   *store.MemoryStore
	index   *search.MemoryIndexer
	sink    *captureSink
	dataDir string
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		store:   store.NewMemory(),
		index:   search.NewMemory(),
		sink:    &captureSink{},
		dataDir: t.TempDir(),
		now:     testNow,
	}
}

// engine builds an engine over src sharing the harness's store, index and
// data directory, so successive runs see each other's writes.
func (h *harness) engine(src Source) *Engine {
	reg := &Registry{sources: make(map[string]Source)}
	reg.Register(src)
	cache := fetcher.NewCache(
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second}),
		fetcher.WithSleeper(func(context.Context, time.Duration) {}),
	)
	return NewEngine(EngineConfig{
		Store:     h.store,
		Indexer:   h.index,
		Fetch:     cache,
		Clock:     calendar.FixedClock(h.now),
		DataDir:   h.dataDir,
		BatchSize: 2,
		Sinks:     []report.Sink{h.sink},
	}, reg)
}

func (h *harness) run(t *testing.T, src Source, opts Options) Outcome {
	t.Helper()
	out, err := h.engine(src).Run(context.Background(), nil, opts)
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func (h *harness) save(t *testing.T, recs ...model.Record) {
	t.Helper()
	for _, r := range recs {
		require.NoError(t, store.Save(context.Background(), h.store, r))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// route is a canned response; paths without one are 404.
type route struct {
	contentType string
	body        string
	status      int
}

type recorder struct {
	mu   sync.Mutex
	urls []*url.URL
}

func (r *recorder) requests() []*url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*url.URL(nil), r.urls...)
}

func newServer(t *testing.T, routes map[string]route) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.urls = append(rec.urls, r.URL)
		rec.mu.Unlock()
		rt, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if rt.contentType != "" {
			w.Header().Set("Content-Type", rt.contentType)
		}
		if rt.status != 0 {
			w.WriteHeader(rt.status)
		}
		w.Write([]byte(rt.body)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}
