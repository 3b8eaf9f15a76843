// -----------------------------------------------------------------------
// Service log tail - drains arbor's context channel and republishes
// process log lines on the event bus for websocket streaming
// -----------------------------------------------------------------------

package logstream

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	plog "github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	arborlevels "github.com/ternarybob/arbor/levels"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// Tail consumes log batches from the channel registered with the arbor
// logger and publishes lines at or above the configured level as
// service_log events. Only loggers derived with WithContextWriter feed
// the channel, so the stream carries run and scheduler activity rather
// than every console line.
type Tail struct {
	events  interfaces.EventService
	logger  arbor.ILogger
	channel chan []arbormodels.LogEvent
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	minLevel        arbor.LogLevel
	excludePatterns []string
}

// NewTail creates a tail publishing to the given event service. Level and
// exclusion filtering reuse the websocket stream settings so one config
// block controls what reaches connected clients.
//
// The tail must log through the root logger only: a context-derived
// logger here would feed the channel it drains.
func NewTail(events interfaces.EventService, cfg *common.WebSocketConfig, logger arbor.ILogger) *Tail {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tail{
		events:   events,
		logger:   logger,
		channel:  make(chan []arbormodels.LogEvent, 10),
		ctx:      ctx,
		cancel:   cancel,
		minLevel: arbor.InfoLevel,
	}
	if cfg != nil {
		t.minLevel = parseLogLevel(cfg.MinLevel)
		t.excludePatterns = cfg.ExcludePatterns
	}
	return t
}

// Channel returns the batch channel to register with the logger via
// SetChannel
func (t *Tail) Channel() chan []arbormodels.LogEvent {
	return t.channel
}

// Start launches the drain goroutine
func (t *Tail) Start() error {
	t.wg.Add(1)
	go t.consume()
	return nil
}

// Stop shuts the tail down and waits for the drain goroutine to exit
func (t *Tail) Stop() error {
	t.cancel()
	t.wg.Wait()
	t.logger.Info().Msg("Service log tail stopped")
	return nil
}

func (t *Tail) consume() {
	defer t.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Service log tail panic recovered")
		}
	}()

	for {
		select {
		case batch, ok := <-t.channel:
			if !ok {
				return
			}
			for _, event := range batch {
				if !t.shouldForward(event) {
					continue
				}
				if err := t.events.Publish(t.ctx, interfaces.Event{
					Type:    interfaces.EventServiceLog,
					Payload: transform(event),
				}); err != nil {
					t.logger.Warn().Err(err).Msg("Failed to publish service log event")
				}
			}
		case <-t.ctx.Done():
			return
		}
	}
}

// shouldForward applies the level threshold and exclusion patterns.
// Subscribers receive pre-filtered entries and broadcast without
// re-checking.
func (t *Tail) shouldForward(event arbormodels.LogEvent) bool {
	if arborlevels.FromLogLevel(event.Level) < t.minLevel {
		return false
	}
	for _, pattern := range t.excludePatterns {
		if strings.Contains(event.Message, pattern) {
			return false
		}
	}
	return true
}

// transform flattens an arbor log event into the wire entry. Structured
// fields are folded into the message in key order so the rendered line is
// stable.
func transform(event arbormodels.LogEvent) *models.ServiceLogEntry {
	message := event.Message
	if len(event.Fields) > 0 {
		keys := make([]string, 0, len(event.Fields))
		for key := range event.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			message += fmt.Sprintf(" %s=%v", key, event.Fields[key])
		}
	}

	return &models.ServiceLogEntry{
		Timestamp: event.Timestamp,
		Level:     levelString(event.Level),
		Message:   message,
		Source:    event.CorrelationID,
	}
}

// parseLogLevel converts a config level string to arbor's level type
func parseLogLevel(levelStr string) arbor.LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return arbor.DebugLevel
	case "info":
		return arbor.InfoLevel
	case "warn", "warning":
		return arbor.WarnLevel
	case "error":
		return arbor.ErrorLevel
	default:
		return arbor.InfoLevel
	}
}

// levelString maps phuslu levels, which arbor events carry, to the wire
// strings the dashboard renders
func levelString(level plog.Level) string {
	switch level {
	case plog.ErrorLevel:
		return "error"
	case plog.WarnLevel:
		return "warn"
	case plog.DebugLevel:
		return "debug"
	default:
		return "info"
	}
}
