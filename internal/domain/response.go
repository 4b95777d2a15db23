package domain

import (
	"context"
	"net/http"
	"time"
)

// Response is a snapshot of an HTTP response as stored in the response cache.
type Response struct {
	URLHash    string      `json:"urlHash"`
	URL        string      `json:"url"`
	Status     int         `json:"status"`
	StatusText string      `json:"statusText"`
	Headers    http.Header `json:"headers"`
	Body       string      `json:"body"`
	StoredAt   time.Time   `json:"storedAt"`
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// HTTPDoer is the raw network primitive. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResponseCache stores prior HTTP responses keyed by URL.
type ResponseCache interface {
	// GetCachedResponse returns ErrCacheMiss when nothing usable is stored for url.
	GetCachedResponse(ctx context.Context, url string) (*Response, error)
	CacheResponse(ctx context.Context, url string, resp *Response) error
}

// Governor enforces the request-rate policy of the remote API.
type Governor interface {
	VerifyRateLimit(ctx context.Context) error
	RegisterRequest(ctx context.Context) error
}
