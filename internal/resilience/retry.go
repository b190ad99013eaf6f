package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy is a bounded retry schedule. The delay before retry n (1-based) is
// Base doubled n-1 times, capped at Cap, then spread by up to ±Jitter of
// itself.
type Policy struct {
	// Attempts counts the first try. Zero means 2.
	Attempts int

	// Base defaults to 500ms and Cap to 10s.
	Base time.Duration
	Cap  time.Duration

	// Jitter is a fraction in [0, 1].
	Jitter float64

	// Retryable decides which errors earn another attempt. Nil means IsTransient.
	Retryable func(error) bool

	// Notify runs before each pause with the 1-based number of the failed attempt.
	Notify func(attempt int, err error)
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 2
	}
	if p.Base <= 0 {
		p.Base = 500 * time.Millisecond
	}
	if p.Cap <= 0 {
		p.Cap = 10 * time.Second
	}
	p.Jitter = min(max(p.Jitter, 0), 1)
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Delay returns the pause that follows failed attempt n.
func (p Policy) Delay(n int) time.Duration {
	p = p.normalized()
	d := p.Base
	for i := 1; i < n && d < p.Cap; i++ {
		d *= 2
	}
	d = min(d, p.Cap)
	if p.Jitter > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * p.Jitter * float64(d))
	}
	return max(d, 0)
}

// Retry calls fn until it succeeds, returns an error Retryable rejects, the
// attempts run out or ctx ends. The last value is returned alongside the last
// error so callers can inspect a partial result.
func Retry[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var (
		val T
		err error
	)
	for n := 1; ; n++ {
		val, err = fn(ctx)
		if err == nil || n >= p.Attempts || ctx.Err() != nil || !p.Retryable(err) {
			return val, err
		}
		if p.Notify != nil {
			p.Notify(n, err)
		}
		if !sleep(ctx, p.Delay(n)) {
			return val, err
		}
	}
}

// sleep reports whether d elapsed before ctx ended.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// LogRetries returns a Notify hook that logs each retry at warn level.
func LogRetries(component, what string, fields ...zap.Field) func(int, error) {
	log := zap.L().With(append([]zap.Field{zap.String("component", component)}, fields...)...)
	return func(attempt int, err error) {
		log.Warn("retrying "+what, zap.Int("attempt", attempt), zap.Error(err))
	}
}
