package fetcher

import (
	"context"
	"errors"
	"mime"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/capitol-sync/internal/metrics"
	"github.com/sells-group/capitol-sync/internal/resilience"
)

// DefaultMinBytes is the size under which a roll call XML file is suspected
// of being truncated.
const DefaultMinBytes = 20000

var errUndersized = errors.New("fetcher: artifact under size threshold")

// Validator guards against upstream servers that intermittently serve
// truncated files. Small files get one more download and, if still small,
// must pass a strict XML parse before they are kept.
type Validator struct {
	cache       *Cache
	contentType string
	minBytes    int64
	retry       resilience.Policy
}

// ValidatorOption customizes a Validator.
type ValidatorOption func(*Validator)

// WithRetryBackoff sets the pause before the size retry.
func WithRetryBackoff(d time.Duration) ValidatorOption {
	return func(v *Validator) { v.retry.Base = d }
}

// WithMinBytes overrides the size threshold.
func WithMinBytes(n int64) ValidatorOption {
	return func(v *Validator) { v.minBytes = n }
}

// NewValidator returns a Validator expecting the given media type.
func NewValidator(c *Cache, contentType string, opts ...ValidatorOption) *Validator {
	v := &Validator{
		cache:       c,
		contentType: contentType,
		minBytes:    DefaultMinBytes,
		retry: resilience.Policy{
			Attempts:  2,
			Base:      500 * time.Millisecond,
			Retryable: func(err error) bool { return errors.Is(err, errUndersized) },
			Notify:    resilience.LogRetries("fetcher.validator", "undersized download"),
		},
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Fetch downloads url into opts.Destination and accepts it only once it
// passes validation. Rejected files, including a small first download whose
// retry failed, are removed so a later run retries.
// An existing destination is trusted unless opts.Force is set.
func (v *Validator) Fetch(ctx context.Context, url string, opts Options) (*Artifact, error) {
	if opts.Destination == "" {
		return nil, eris.New("fetcher: validator requires a destination")
	}

	if !opts.Force && Exists(opts.Destination) {
		return v.cache.Fetch(ctx, url, Options{Cache: true, Destination: opts.Destination, Debug: opts.Debug})
	}

	netOpts := opts
	netOpts.Cache = false
	netOpts.JSON = false

	wrote := false
	art, err := resilience.Retry(ctx, v.retry, func(ctx context.Context) (*Artifact, error) {
		art, err := v.cache.Fetch(ctx, url, netOpts)
		if err != nil {
			return nil, err
		}
		wrote = true
		if !mediaTypeIs(art.ContentType, v.contentType) {
			return nil, eris.Wrapf(ErrWrongContentType, "fetcher: %s served %q", url, art.ContentType)
		}
		if art.Length < v.minBytes {
			return art, errUndersized
		}
		return art, nil
	})

	switch {
	case err == nil:
		return art, nil
	case errors.Is(err, errUndersized):
		if perr := ValidXML(art.Body); perr != nil {
			v.reject(opts.Destination, url, perr)
			return nil, eris.Wrapf(errors.Join(ErrTruncated, perr), "fetcher: %s (%d bytes)", url, art.Length)
		}
		zap.L().Debug("accepted small artifact after strict parse",
			zap.String("url", url),
			zap.Int64("bytes", art.Length),
		)
		return art, nil
	case errors.Is(err, ErrWrongContentType):
		v.reject(opts.Destination, url, err)
		return nil, err
	default:
		if wrote {
			v.reject(opts.Destination, url, err)
		}
		return nil, err
	}
}

func (v *Validator) reject(path, url string, cause error) {
	metrics.ObserveFetch(metrics.FetchRejected)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		zap.L().Warn("could not remove rejected artifact", zap.String("path", path), zap.Error(err))
	}
	zap.L().Warn("rejected artifact",
		zap.String("component", "fetcher.validator"),
		zap.String("url", url),
		zap.String("path", path),
		zap.Error(cause),
	)
}

func mediaTypeIs(header, want string) bool {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(header, ";", 2)[0])
	}
	return strings.EqualFold(mt, want)
}
