package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", Transient(errors.New("server overloaded"), 503), true},
		{"wrapped explicit", fmt.Errorf("api: %w", Transient(errors.New("busy"), 502)), true},
		{"regular", errors.New("invalid input: missing field"), false},
		{"reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"dns timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"dns miss", &net.DNSError{Err: "no such host", Name: "gao.invalid"}, true},
		{"string reset", errors.New("read: connection reset by peer"), true},
		{"string timeout", errors.New("Get \"http://x\": context deadline exceeded (Client.Timeout exceeded while awaiting headers)"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindNone, Classify(nil))
	assert.Equal(t, KindHTTPStatus, Classify(Transient(errors.New("503"), 503)))
	assert.Equal(t, KindDNS, Classify(&net.DNSError{Err: "no such host"}))
	assert.Equal(t, KindTimeout, Classify(&net.DNSError{IsTimeout: true, Err: "timeout"}))
	assert.Equal(t, KindReset, Classify(fmt.Errorf("x: %w", syscall.ECONNRESET)))
	assert.Equal(t, KindRefused, Classify(fmt.Errorf("x: %w", syscall.ECONNREFUSED)))
	assert.Equal(t, KindRefused, Classify(errors.New("dial tcp 127.0.0.1:1: connect: connection refused")))
	assert.Equal(t, KindDNS, Classify(errors.New("dial tcp: lookup nope: no such host")))
	assert.Equal(t, KindOther, Classify(errors.New("boom")))
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 404} {
		assert.False(t, RetryableStatus(code), "status %d", code)
	}
}
