package fetch

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/ternarybob/jobhound/internal/common"
)

// Adaptive rate bounds in requests per second. A host's steady rate never
// leaves this window regardless of feedback.
const (
	minHostRate = 0.1
	maxHostRate = 5.0
)

// atsAPIHosts are registrable hosts of ATS vendor APIs. They get the
// higher ATS rate defaults and bypass robots.txt checks (the vendors
// publish these endpoints for programmatic access).
var atsAPIHosts = map[string]bool{
	"greenhouse.io":     true,
	"lever.co":          true,
	"ashbyhq.com":       true,
	"workable.com":      true,
	"myworkdayjobs.com": true,
}

// HostLimiter applies token-bucket rate limits keyed by registrable host,
// with adaptive steady-rate adjustment from response feedback.
type HostLimiter struct {
	mu      sync.Mutex
	buckets map[string]*hostBucket

	hostRate  float64
	hostBurst int
	atsRate   float64
	atsBurst  int
}

type hostBucket struct {
	limiter *rate.Limiter
	// steady is tracked separately because rate.Limiter only exposes
	// its limit as a rate.Limit
	steady float64
}

// NewHostLimiter creates a limiter with per-host and per-ATS defaults
// from the crawler config.
func NewHostLimiter(config *common.CrawlerConfig) *HostLimiter {
	hostRate := config.HostRate
	if hostRate <= 0 {
		hostRate = 1.0
	}
	hostBurst := config.HostBurst
	if hostBurst <= 0 {
		hostBurst = 2
	}
	atsRate := config.ATSRate
	if atsRate <= 0 {
		atsRate = 5.0
	}
	atsBurst := config.ATSBurst
	if atsBurst <= 0 {
		atsBurst = 10
	}

	return &HostLimiter{
		buckets:   make(map[string]*hostBucket),
		hostRate:  hostRate,
		hostBurst: hostBurst,
		atsRate:   atsRate,
		atsBurst:  atsBurst,
	}
}

// Wait blocks until the host's bucket permits a request or the context
// is cancelled.
func (l *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	host := common.RegistrableHost(rawURL)
	if host == "" {
		return nil
	}
	return l.bucketFor(host).limiter.Wait(ctx)
}

// Feedback adjusts a host's steady rate from the response outcome:
// halved on 429, reduced on other 5xx, nudged up on success. The burst
// size is left alone.
func (l *HostLimiter) Feedback(rawURL string, statusCode int, err error) {
	host := common.RegistrableHost(rawURL)
	if host == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[host]
	if !ok {
		return
	}

	// 4xx responses count as success here: the host answered promptly,
	// the request was just wrong.
	factor := 1.1
	switch {
	case statusCode == 429:
		factor = 0.5
	case statusCode >= 500:
		factor = 0.75
	case statusCode == 0 && err != nil:
		factor = 0.75
	}

	steady := bucket.steady * factor
	if steady < minHostRate {
		steady = minHostRate
	}
	if steady > maxHostRate {
		steady = maxHostRate
	}

	if steady != bucket.steady {
		bucket.steady = steady
		bucket.limiter.SetLimit(rate.Limit(steady))
	}
}

// Rate returns the current steady rate for a URL's host. Used by status
// endpoints and tests.
func (l *HostLimiter) Rate(rawURL string) float64 {
	host := common.RegistrableHost(rawURL)
	if host == "" {
		return 0
	}
	return l.bucketFor(host).steady
}

// IsATSHost reports whether a URL belongs to a known ATS vendor API.
func IsATSHost(rawURL string) bool {
	return atsAPIHosts[common.RegistrableHost(rawURL)]
}

func (l *HostLimiter) bucketFor(host string) *hostBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if bucket, ok := l.buckets[host]; ok {
		return bucket
	}

	steady, burst := l.hostRate, l.hostBurst
	if atsAPIHosts[host] {
		steady, burst = l.atsRate, l.atsBurst
	}

	bucket := &hostBucket{
		limiter: rate.NewLimiter(rate.Limit(steady), burst),
		steady:  steady,
	}
	l.buckets[host] = bucket
	return bucket
}
