package interfaces

import (
	"context"
	"net/http"
	"time"
)

// FetchRequest describes one page fetch
type FetchRequest struct {
	URL string

	// Method defaults to GET. Some board APIs take POST searches.
	Method string

	// Body is the request payload for POST requests
	Body []byte

	// ContentType is sent with Body when set
	ContentType string

	// Render fetches through the headless browser pool instead of the
	// plain HTTP client
	Render bool

	// WaitSelector is a CSS selector the renderer waits for before
	// capturing the DOM, optional
	WaitSelector string

	// Accept overrides the Accept header, used for JSON API endpoints
	Accept string
}

// FetchResult is the outcome of a successful fetch
type FetchResult struct {
	URL        string
	FinalURL   string
	StatusCode int
	Header     http.Header
	Body       []byte
	Rendered   bool
	FetchedAt  time.Time
}

// Fetcher retrieves pages and API payloads while honoring robots.txt,
// per-host rate limits, and retry policy. Failures are classified
// pipeline errors.
type Fetcher interface {
	// Fetch retrieves a single URL
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)

	// FetchJSON retrieves a URL with a JSON accept header and decodes the
	// response body into out
	FetchJSON(ctx context.Context, url string, out interface{}) error

	// Close releases browser pool resources
	Close() error
}
