package interfaces

import "context"

// EventType represents different event types in the system
type EventType string

const (
	EventRunStatus   EventType = "run_status"
	EventRunProgress EventType = "run_progress"
	EventRunLog      EventType = "run_log"
	EventServiceLog  EventType = "service_log"
)

// Event represents a system event. Payload is the event-specific body: a
// PipelineRun for status and progress events, a RunLogEntry for run log
// events, a ServiceLogEntry for process log events.
type Event struct {
	Type    EventType
	RunID   string
	Payload interface{}
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event Event) error

// EventService manages pub/sub event bus
type EventService interface {
	// Subscribe to an event type
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish an event to all subscribers asynchronously
	Publish(ctx context.Context, event Event) error

	// PublishSync publishes event and waits for all handlers to complete
	PublishSync(ctx context.Context, event Event) error

	// Close shuts down the event service
	Close() error
}
