package status

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
)

// CheckFunc probes one component. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// ComponentHealth is one component's result in the health payload
type ComponentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Health is the /healthz response body
type Health struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	UptimeSecs int64                      `json:"uptime_seconds"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// Service aggregates component health checks for the liveness endpoint.
// Components register a probe at wiring time; each snapshot runs them
// with a shared timeout so one stuck dependency cannot hang the probe.
type Service struct {
	logger    arbor.ILogger
	startedAt time.Time

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger:    logger,
		startedAt: time.Now().UTC(),
		checks:    make(map[string]CheckFunc),
	}
}

// Register adds a named component probe. Later registrations under the
// same name replace earlier ones.
func (s *Service) Register(name string, check CheckFunc) {
	if name == "" || check == nil {
		return
	}
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

// checkTimeout bounds the whole snapshot, not each probe
const checkTimeout = 5 * time.Second

// Snapshot runs every registered probe and rolls the results up. The
// process is alive as long as this returns at all; Status degrades when
// any component reports an error.
func (s *Service) Snapshot(ctx context.Context) *Health {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]CheckFunc, len(names))
	for i, name := range names {
		checks[i] = s.checks[name]
	}
	s.mu.RUnlock()

	health := &Health{
		Status:     "ok",
		Version:    common.GetVersion(),
		UptimeSecs: int64(time.Since(s.startedAt).Seconds()),
		Components: make(map[string]ComponentHealth, len(names)),
		Timestamp:  time.Now().UTC(),
	}

	for i, name := range names {
		if err := checks[i](ctx); err != nil {
			health.Components[name] = ComponentHealth{Status: "unhealthy", Error: err.Error()}
			health.Status = "degraded"
			s.logger.Warn().Err(err).Str("component", name).Msg("Health check failed")
		} else {
			health.Components[name] = ComponentHealth{Status: "ok"}
		}
	}

	return health
}
