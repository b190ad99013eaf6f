package fetcher

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/capitol-sync/internal/resilience"
)

// maxBodyBytes bounds a single response; bill and vote documents stay far below it.
const maxBodyBytes = 64 << 20

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	// Timeout bounds the whole request including reading the body.
	Timeout time.Duration
	// MaxAttempts is the number of network attempts per Get. Default: 1.
	MaxAttempts int
	// RequestsPerSecond paces requests to any single host. Zero disables pacing.
	RequestsPerSecond float64
	// Backoff is the base delay between attempts. Default: 1s.
	Backoff time.Duration
}

// HTTPFetcher implements Fetcher using net/http with a hard timeout and
// per-host rate limiting.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "capsync/1.0"
	}
	if opts.Backoff == 0 {
		opts.Backoff = time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	if f.opts.RequestsPerSecond <= 0 {
		return nil
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		burst := int(math.Ceil(f.opts.RequestsPerSecond))
		lim = rate.NewLimiter(rate.Limit(f.opts.RequestsPerSecond), burst)
		f.limiters[host] = lim
	}
	return lim
}

// Get fetches rawURL and reads the whole body. Non-2xx statuses are errors;
// 5xx and network failures are marked transient.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (*Response, error) {
	policy := resilience.Policy{
		Attempts: f.opts.MaxAttempts,
		Base:     f.opts.Backoff,
		Cap:      30 * time.Second,
		Jitter:   0.5,
		Notify:   resilience.LogRetries("fetcher.http", "request", zap.String("url", rawURL)),
	}
	return resilience.Retry(ctx, policy, func(ctx context.Context) (*Response, error) {
		if lim := f.limiterFor(rawURL); lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "fetcher: rate limiter wait")
			}
		}
		return f.do(ctx, rawURL)
	})
}

func (f *HTTPFetcher) do(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
		if resp.StatusCode == http.StatusNotFound {
			statusErr = eris.Wrapf(ErrNotFound, "fetcher: status 404 from %s", rawURL)
		}
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: read body %s", rawURL)
	}

	return &Response{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
