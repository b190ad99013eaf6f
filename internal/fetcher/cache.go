package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/metrics"
	"github.com/sells-group/capitol-sync/internal/resilience"
)

// Artifact is a fetched resource, read either from the network or from its
// on-disk copy.
type Artifact struct {
	URL         string
	Path        string
	Body        []byte
	ContentType string
	Length      int64
	FetchedAt   time.Time
	FromCache   bool

	// Data holds the decoded document when Options.JSON was set.
	Data any
}

// Options select how a single fetch behaves.
type Options struct {
	// Cache reads Destination instead of the network when it already exists.
	Cache bool
	// Force ignores an existing Destination even when Cache is set.
	Force bool
	// Destination is where the content is persisted after a network fetch.
	Destination string
	// JSON decodes the body; the pretty-printed document is what gets persisted.
	JSON bool
	// RateLimit is slept after every network fetch. Zero uses the cache default.
	RateLimit time.Duration
	// Debug logs each cache decision.
	Debug bool
}

// Sleeper pauses between network fetches.
type Sleeper func(ctx context.Context, d time.Duration)

// Cache is the fetch-and-cache layer in front of a Fetcher.
type Cache struct {
	fetcher   Fetcher
	rateLimit time.Duration
	sleep     Sleeper
	now       func() time.Time
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithRateLimit sets the default post-fetch delay.
func WithRateLimit(d time.Duration) CacheOption {
	return func(c *Cache) { c.rateLimit = d }
}

// WithSleeper replaces the sleep used for rate limiting.
func WithSleeper(s Sleeper) CacheOption {
	return func(c *Cache) { c.sleep = s }
}

// WithClock replaces the time source stamped on artifacts.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = func() time.Time { return now().UTC() } }
}

// NewCache wraps f with on-disk caching.
func NewCache(f Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher: f,
		sleep:   sleepContext,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch returns the artifact for url. Every failure, including network
// errors and undecodable JSON, is returned wrapped around ErrNotFetched so
// callers can record the item and move on.
func (c *Cache) Fetch(ctx context.Context, url string, opts Options) (*Artifact, error) {
	log := zap.L().With(zap.String("component", "fetcher.cache"), zap.String("url", url))

	if opts.Cache && !opts.Force && opts.Destination != "" {
		art, err := c.readCached(url, opts)
		if err == nil {
			if opts.Debug {
				log.Debug("cached", zap.String("path", opts.Destination))
			}
			metrics.ObserveFetch(metrics.FetchCache)
			return art, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			metrics.ObserveFetch(metrics.FetchFailed)
			return nil, err
		}
	}

	if opts.Debug {
		log.Debug("downloading")
	}
	resp, err := c.fetcher.Get(ctx, url)
	c.throttle(ctx, opts)
	if err != nil {
		metrics.ObserveFetch(metrics.FetchFailed)
		log.Warn("fetch failed", zap.String("kind", string(resilience.Classify(err))), zap.Error(err))
		return nil, eris.Wrapf(errors.Join(ErrNotFetched, err), "fetcher: %s", url)
	}
	metrics.ObserveFetch(metrics.FetchNetwork)

	art := &Artifact{
		URL:         url,
		Path:        opts.Destination,
		Body:        resp.Body,
		ContentType: resp.ContentType,
		Length:      int64(len(resp.Body)),
		FetchedAt:   c.now(),
	}

	if len(art.Body) == 0 && opts.Destination != "" {
		return nil, eris.Wrapf(ErrNotFetched, "fetcher: empty body from %s", url)
	}

	if opts.JSON {
		if err := decodeInto(art); err != nil {
			return nil, err
		}
		pretty, err := json.MarshalIndent(art.Data, "", "  ")
		if err != nil {
			return nil, eris.Wrapf(errors.Join(ErrNotFetched, err), "fetcher: re-encode %s", url)
		}
		art.Body = pretty
	}

	if opts.Destination != "" {
		if err := WriteFile(opts.Destination, art.Body); err != nil {
			return nil, err
		}
		if opts.Debug {
			log.Debug("wrote", zap.String("path", opts.Destination), zap.Int64("bytes", art.Length))
		}
	}

	return art, nil
}

func (c *Cache) readCached(url string, opts Options) (*Artifact, error) {
	body, err := os.ReadFile(opts.Destination)
	if err != nil {
		return nil, err
	}
	art := &Artifact{
		URL:       url,
		Path:      opts.Destination,
		Body:      body,
		Length:    int64(len(body)),
		FetchedAt: c.now(),
		FromCache: true,
	}
	if opts.JSON {
		if err := decodeInto(art); err != nil {
			return nil, err
		}
	}
	return art, nil
}

func (c *Cache) throttle(ctx context.Context, opts Options) {
	d := opts.RateLimit
	if d == 0 {
		d = c.rateLimit
	}
	if d > 0 {
		c.sleep(ctx, d)
	}
}

func decodeInto(art *Artifact) error {
	var v any
	if err := json.NewDecoder(bytes.NewReader(art.Body)).Decode(&v); err != nil {
		return eris.Wrapf(errors.Join(ErrNotFetched, err), "fetcher: decode json from %s", art.URL)
	}
	art.Data = v
	return nil
}

// WriteFile persists data at path, creating parent directories as needed.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "fetcher: create dir for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "fetcher: write %s", path)
	}
	return nil
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
