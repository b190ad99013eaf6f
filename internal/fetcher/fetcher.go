// Package fetcher downloads upstream documents, keeps an on-disk copy of
// each one, and validates artifacts that arrive truncated.
package fetcher

import (
	"context"
	"errors"
)

// Response is a fully read upstream response.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher performs a single GET against an upstream source.
type Fetcher interface {
	Get(ctx context.Context, url string) (*Response, error)
}

var (
	// ErrNotFetched marks an item whose content could not be obtained:
	// network failure, bad status, empty body, or undecodable data.
	ErrNotFetched = errors.New("fetcher: not fetched")

	// ErrWrongContentType marks a response whose media type was not the
	// expected structured type. The resource usually does not exist yet.
	ErrWrongContentType = errors.New("fetcher: unexpected content type")

	// ErrNotFound marks a 404 from upstream.
	ErrNotFound = errors.New("fetcher: not found")

	// ErrTruncated marks an artifact that stayed under the size threshold
	// after a retry and then failed strict parsing.
	ErrTruncated = errors.New("fetcher: truncated artifact")
)
