package fetch

import (
	"math"
	"math/rand"
	"time"

	"github.com/ternarybob/jobhound/internal/common"
)

// RetryPolicy controls fetch retries. Backoff is exponential with full
// jitter: the wait is uniform in [0, base * 2^attempt].
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	RetryAfterCap time.Duration
}

// NewRetryPolicy builds the policy from crawler config with the
// standard defaults (3 attempts, 500ms base, 120s Retry-After cap).
func NewRetryPolicy(config *common.CrawlerConfig) *RetryPolicy {
	maxAttempts := config.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &RetryPolicy{
		MaxAttempts:   maxAttempts,
		BaseDelay:     common.ParseDurationOr(config.RetryBaseDelay, 500*time.Millisecond),
		RetryAfterCap: common.ParseDurationOr(config.RetryAfterCap, 120*time.Second),
	}
}

// Backoff returns the wait before the next attempt. A server-provided
// Retry-After takes precedence, capped so a hostile header cannot stall
// a whole crawl pass.
func (p *RetryPolicy) Backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > p.RetryAfterCap {
			retryAfter = p.RetryAfterCap
		}
		return retryAfter
	}

	ceiling := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	return time.Duration(rand.Float64() * ceiling)
}
