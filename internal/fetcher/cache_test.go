package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newCountingServer(t *testing.T, contentType, body string) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(body))
	}))
	t.Cleanup(cs.Close)
	return cs
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) {
	s.calls = append(s.calls, d)
}

func TestCacheFetch_WritesDestination(t *testing.T) {
	srv := newCountingServer(t, "text/html", "<html>hi</html>")
	dest := filepath.Join(t.TempDir(), "nested", "dir", "page.html")

	c := NewCache(newTestFetcher())
	art, err := c.Fetch(context.Background(), srv.URL, Options{Destination: dest})
	require.NoError(t, err)
	assert.False(t, art.FromCache)
	assert.Equal(t, int64(15), art.Length)
	assert.Equal(t, "text/html", art.ContentType)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "<html>hi</html>", string(data))
}

func TestCacheFetch_WithClockStampsArtifact(t *testing.T) {
	srv := newCountingServer(t, "text/html", "<html>hi</html>")
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	at := time.Date(2013, 1, 22, 12, 0, 0, 0, ny)

	c := NewCache(newTestFetcher(), WithClock(func() time.Time { return at }))
	art, err := c.Fetch(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	assert.True(t, art.FetchedAt.Equal(at))
	assert.Equal(t, time.UTC, art.FetchedAt.Location())
}

func TestCacheFetch_CacheHitSkipsNetwork(t *testing.T) {
	srv := newCountingServer(t, "text/html", "fresh")
	dest := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(dest, []byte("on disk"), 0o644))

	rec := &sleepRecorder{}
	c := NewCache(newTestFetcher(), WithSleeper(rec.sleep), WithRateLimit(time.Second))

	for range 3 {
		art, err := c.Fetch(context.Background(), srv.URL, Options{Cache: true, Destination: dest})
		require.NoError(t, err)
		assert.True(t, art.FromCache)
		assert.Equal(t, "on disk", string(art.Body))
	}
	assert.Equal(t, int32(0), srv.hits.Load())
	assert.Empty(t, rec.calls, "cache hits are not rate limited")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "on disk", string(data))
}

func TestCacheFetch_ForceBypassesCache(t *testing.T) {
	srv := newCountingServer(t, "text/html", "fresh")
	dest := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0o644))

	c := NewCache(newTestFetcher())
	art, err := c.Fetch(context.Background(), srv.URL, Options{Cache: true, Force: true, Destination: dest})
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(art.Body))
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestCacheFetch_WithoutCacheAlwaysFetches(t *testing.T) {
	srv := newCountingServer(t, "text/html", "fresh")
	dest := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0o644))

	c := NewCache(newTestFetcher())
	_, err := c.Fetch(context.Background(), srv.URL, Options{Destination: dest})
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), srv.URL, Options{Destination: dest})
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestCacheFetch_RateLimitAfterNetwork(t *testing.T) {
	srv := newCountingServer(t, "text/html", "x")
	rec := &sleepRecorder{}
	c := NewCache(newTestFetcher(), WithSleeper(rec.sleep), WithRateLimit(time.Second))

	_, err := c.Fetch(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), srv.URL, Options{RateLimit: 250 * time.Millisecond})
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{time.Second, 250 * time.Millisecond}, rec.calls)
}

func TestCacheFetch_NetworkErrorIsEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	dest := filepath.Join(t.TempDir(), "never.html")
	c := NewCache(newTestFetcher())
	art, err := c.Fetch(context.Background(), url, Options{Destination: dest})
	require.ErrorIs(t, err, ErrNotFetched)
	assert.Nil(t, art)
	assert.False(t, Exists(dest))
}

func TestCacheFetch_EmptyBodyWithDestinationFails(t *testing.T) {
	srv := newCountingServer(t, "text/html", "")
	dest := filepath.Join(t.TempDir(), "empty.html")

	_, err := NewCache(newTestFetcher()).Fetch(context.Background(), srv.URL, Options{Destination: dest})
	require.ErrorIs(t, err, ErrNotFetched)
	assert.False(t, Exists(dest))
}

func TestCacheFetch_JSONPrettyPrinted(t *testing.T) {
	srv := newCountingServer(t, "application/json", `[{"title":"Report","id":7}]`)
	dest := filepath.Join(t.TempDir(), "gao", "7", "report.json")

	c := NewCache(newTestFetcher())
	art, err := c.Fetch(context.Background(), srv.URL, Options{Destination: dest, JSON: true})
	require.NoError(t, err)

	arr, ok := art.Data.([]any)
	require.True(t, ok)
	require.Len(t, arr, 1)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"id\": 7,")

	// A cached read decodes too.
	cached, err := c.Fetch(context.Background(), srv.URL, Options{Cache: true, Destination: dest, JSON: true})
	require.NoError(t, err)
	assert.True(t, cached.FromCache)
	assert.NotNil(t, cached.Data)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestCacheFetch_BadJSONIsFailure(t *testing.T) {
	srv := newCountingServer(t, "application/json", `{"broken":`)
	dest := filepath.Join(t.TempDir(), "bad.json")

	_, err := NewCache(newTestFetcher()).Fetch(context.Background(), srv.URL, Options{Destination: dest, JSON: true})
	require.ErrorIs(t, err, ErrNotFetched)
	assert.False(t, Exists(dest))
}

func TestUnwrapSingle(t *testing.T) {
	type doc struct {
		Title string `json:"title"`
	}

	got, err := UnwrapSingle[doc](&Artifact{Body: []byte(`[{"title":"A"}]`)})
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)

	got, err = UnwrapSingle[doc](&Artifact{Body: []byte(`{"title":"B"}`)})
	require.NoError(t, err)
	assert.Equal(t, "B", got.Title)

	_, err = UnwrapSingle[doc](&Artifact{Body: []byte(`[]`)})
	assert.Error(t, err)
}
