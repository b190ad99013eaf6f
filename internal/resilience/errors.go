package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Kind names a class of upstream failure for logs and failure entries.
type Kind string

const (
	KindNone       Kind = ""
	KindTimeout    Kind = "timeout"
	KindReset      Kind = "connection_reset"
	KindRefused    Kind = "connection_refused"
	KindDNS        Kind = "host_resolution"
	KindHTTPStatus Kind = "http_status"
	KindOther      Kind = "other"
)

// TransientError marks an upstream failure as worth another attempt.
// StatusCode is the HTTP status behind it, or 0 for network failures.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(err error, status int) error {
	return &TransientError{Err: err, StatusCode: status}
}

// messageKinds match errors whose type was lost to string wrapping.
var messageKinds = []struct {
	kind    Kind
	needles []string
}{
	{KindRefused, []string{"connection refused"}},
	{KindDNS, []string{"temporary failure in name resolution", "no such host"}},
	{KindTimeout, []string{"tls handshake timeout", "i/o timeout", "context deadline exceeded", "client.timeout exceeded"}},
	{KindReset, []string{"connection reset by peer", "broken pipe", "server closed idle connection", "transport connection broken", "unexpected eof"}},
}

// Classify maps an error from an HTTP client onto a failure Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}

	var te *TransientError
	if errors.As(err, &te) && te.StatusCode > 0 {
		return KindHTTPStatus
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return KindDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	switch {
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNABORTED):
		return KindReset
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindRefused
	}

	msg := strings.ToLower(err.Error())
	for _, mk := range messageKinds {
		for _, n := range mk.needles {
			if strings.Contains(msg, n) {
				return mk.kind
			}
		}
	}
	return KindOther
}

// IsTransient reports whether err carries a TransientError or classifies as
// a network failure.
func IsTransient(err error) bool {
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	switch Classify(err) {
	case KindTimeout, KindReset, KindRefused, KindDNS:
		return true
	}
	return false
}

// RetryableStatus reports whether an HTTP status usually clears on its own.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
