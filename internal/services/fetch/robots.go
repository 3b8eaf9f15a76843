package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"github.com/ternarybob/arbor"
)

const robotsBodyLimit = 512 * 1024

// RobotsCache fetches and caches robots.txt per host. Entries expire
// after the configured TTL. A host whose robots.txt cannot be parsed is
// treated per the robotstxt status conventions (4xx allows all, 5xx
// disallows all).
type RobotsCache struct {
	mu      sync.Mutex
	entries map[string]*robotsEntry

	client    *http.Client
	userAgent string
	ttl       time.Duration
	logger    arbor.ILogger
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// NewRobotsCache creates a cache using its own plain HTTP client so
// robots lookups never recurse through the rate-limited fetch path.
func NewRobotsCache(userAgent string, ttl time.Duration, logger arbor.ILogger) *RobotsCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RobotsCache{
		entries:   make(map[string]*robotsEntry),
		client:    &http.Client{Timeout: 10 * time.Second},
		userAgent: userAgent,
		ttl:       ttl,
		logger:    logger,
	}
}

// Allowed reports whether the URL may be fetched under the host's
// robots.txt. ATS vendor API hosts are always allowed. Lookup failures
// (transport errors) allow the fetch; only an explicit disallow blocks.
func (c *RobotsCache) Allowed(ctx context.Context, rawURL string) bool {
	if IsATSHost(rawURL) {
		return true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return true
	}

	data := c.dataFor(ctx, parsed)
	if data == nil {
		return true
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}
	return data.TestAgent(path, c.userAgent)
}

func (c *RobotsCache) dataFor(ctx context.Context, parsed *url.URL) *robotstxt.RobotsData {
	host := parsed.Host

	c.mu.Lock()
	entry, ok := c.entries[host]
	if ok && time.Since(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		return entry.data
	}
	c.mu.Unlock()

	data := c.fetch(ctx, parsed.Scheme, host)

	c.mu.Lock()
	c.entries[host] = &robotsEntry{data: data, fetchedAt: time.Now()}
	c.mu.Unlock()

	return data
}

func (c *RobotsCache) fetch(ctx context.Context, scheme, host string) *robotstxt.RobotsData {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("host", host).Msg("robots.txt fetch failed, allowing")
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsBodyLimit))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		c.logger.Debug().Err(err).Str("host", host).Msg("robots.txt parse failed, allowing")
		return nil
	}

	c.logger.Debug().
		Str("host", host).
		Int("status", resp.StatusCode).
		Msg("robots.txt cached")

	return data
}
