package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// runLogger implements interfaces.RunLogger for one run: entries are
// persisted, published on the event bus, and mirrored to the process
// log under the run's correlation scope, which routes them onto the
// logger's context channel for the server console stream. Step
// checkpoints are throttled so tight stage loops cannot flood storage
// or subscribers.
type runLogger struct {
	runID    string
	reg      *registry
	runs     interfaces.RunStorage
	events   interfaces.EventService
	logger   arbor.ILogger
	throttle time.Duration

	mu       sync.Mutex
	lastStep time.Time
}

func newRunLogger(runID string, reg *registry, runs interfaces.RunStorage, events interfaces.EventService, throttle time.Duration, logger arbor.ILogger) *runLogger {
	if throttle <= 0 {
		throttle = 200 * time.Millisecond
	}
	return &runLogger{
		runID:    runID,
		reg:      reg,
		runs:     runs,
		events:   events,
		logger:   logger.WithContextWriter(runID),
		throttle: throttle,
	}
}

func (l *runLogger) Debug(msg string, data map[string]interface{}) { l.log("debug", msg, data) }
func (l *runLogger) Info(msg string, data map[string]interface{})  { l.log("info", msg, data) }
func (l *runLogger) Warn(msg string, data map[string]interface{})  { l.log("warn", msg, data) }
func (l *runLogger) Error(msg string, data map[string]interface{}) { l.log("error", msg, data) }

func (l *runLogger) log(level, msg string, data map[string]interface{}) {
	entry := &models.RunLogEntry{
		ID:        common.NewID(),
		RunID:     l.runID,
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   msg,
		Data:      data,
	}
	// Background context: the log trail must survive stage cancellation,
	// otherwise cancelled runs lose the entries explaining the cancel.
	if err := l.runs.AppendRunLog(context.Background(), entry); err != nil {
		l.logger.Warn().Err(err).Str("run_id", l.runID).Msg("Failed to persist run log entry")
	}
	if err := l.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventRunLog,
		RunID:   l.runID,
		Payload: entry,
	}); err != nil {
		l.logger.Warn().Err(err).Str("run_id", l.runID).Msg("Failed to publish run log event")
	}
	l.mirror(level, msg)
}

func (l *runLogger) mirror(level, msg string) {
	evt := l.logger.Info()
	switch level {
	case "debug":
		evt = l.logger.Debug()
	case "warn":
		evt = l.logger.Warn()
	case "error":
		evt = l.logger.Error()
	}
	evt.Str("run_id", l.runID).Msg(msg)
}

// Step checkpoints the run's current step and progress. Updates inside
// the throttle window are dropped, except terminal progress which always
// lands so the final state is never stale.
func (l *runLogger) Step(step string, progress float64) {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	l.mu.Lock()
	if progress < 1 && time.Since(l.lastStep) < l.throttle {
		l.mu.Unlock()
		return
	}
	l.lastStep = time.Now()
	l.mu.Unlock()

	snapshot := l.reg.checkpoint(l.runID, step, progress)
	if snapshot == nil {
		return
	}
	if err := l.runs.SaveRun(context.Background(), snapshot); err != nil {
		l.logger.Warn().Err(err).Str("run_id", l.runID).Msg("Failed to checkpoint run")
	}
	if err := l.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventRunProgress,
		RunID:   l.runID,
		Payload: snapshot,
	}); err != nil {
		l.logger.Warn().Err(err).Str("run_id", l.runID).Msg("Failed to publish run progress event")
	}
}
