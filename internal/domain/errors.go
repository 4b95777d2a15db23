package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrRateLimitExceeded   = errors.New("rate limit reached")
	ErrRemoteRequestFailed = errors.New("remote request failed")
	ErrRemoteApplication   = errors.New("remote application error")
	ErrMalformedCatalog    = errors.New("malformed catalog")
	ErrMalformedDocument   = errors.New("malformed document")
	ErrAlreadyInitialized  = errors.New("already initialized")
	ErrNotInitialized      = errors.New("not initialized")
	ErrCacheMiss           = errors.New("cache miss")
	ErrNotFound            = errors.New("not found")
	ErrInvalidConfig       = errors.New("invalid config")
)

// RateLimitError is returned when the governor refuses a request.
type RateLimitError struct {
	Count       int
	MaxRequests int
	Window      time.Duration
	// RetryAfter is the time until the oldest counted request leaves the window.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit reached: %d of %d requests in %s, retry after %s", e.Count, e.MaxRequests, e.Window, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

// RemoteRequestError describes a non-success response or an empty body from a remote endpoint.
type RemoteRequestError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *RemoteRequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("unexpected empty response from %s", e.URL)
	}
	return fmt.Sprintf("unexpected response %q from %s", e.Status, e.URL)
}

func (e *RemoteRequestError) Is(target error) bool {
	return target == ErrRemoteRequestFailed
}

// RemoteApplicationError carries the text of an <error> document returned by the API.
type RemoteApplicationError struct {
	Code    string
	Message string
}

func (e *RemoteApplicationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("anidb error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("anidb error: %s", e.Message)
}

func (e *RemoteApplicationError) Is(target error) bool {
	return target == ErrRemoteApplication
}
