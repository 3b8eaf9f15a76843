package logstream

import (
	"context"
	"sync"
	"testing"
	"time"

	plog "github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	arbormodels "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

type fakeEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (f *fakeEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}

func (f *fakeEvents) Publish(_ context.Context, event interfaces.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return f.Publish(ctx, event)
}

func (f *fakeEvents) Close() error { return nil }

func (f *fakeEvents) entries() []*models.ServiceLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ServiceLogEntry
	for _, event := range f.events {
		if event.Type != interfaces.EventServiceLog {
			continue
		}
		if entry, ok := event.Payload.(*models.ServiceLogEntry); ok {
			out = append(out, entry)
		}
	}
	return out
}

func newTestTail(t *testing.T, cfg *common.WebSocketConfig) (*Tail, *fakeEvents) {
	t.Helper()
	events := &fakeEvents{}
	tail := NewTail(events, cfg, arbor.NewLogger())
	if err := tail.Start(); err != nil {
		t.Fatalf("start tail: %v", err)
	}
	t.Cleanup(func() { _ = tail.Stop() })
	return tail, events
}

func logEvent(level plog.Level, message, source string) arbormodels.LogEvent {
	return arbormodels.LogEvent{
		Timestamp:     time.Now().UTC(),
		Level:         level,
		Message:       message,
		CorrelationID: source,
	}
}

func waitForEntries(t *testing.T, events *fakeEvents, want int) []*models.ServiceLogEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entries := events.entries(); len(entries) >= want {
			return entries
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d service log entries, got %d", want, len(events.entries()))
	return nil
}

func TestTail_ForwardsContextLogs(t *testing.T) {
	tail, events := newTestTail(t, &common.WebSocketConfig{MinLevel: "info"})

	tail.Channel() <- []arbormodels.LogEvent{
		logEvent(plog.InfoLevel, "Scheduled pipeline run started", "scheduler"),
		logEvent(plog.ErrorLevel, "Crawl failed", "run-123"),
	}

	entries := waitForEntries(t, events, 2)
	if entries[0].Level != "info" || entries[0].Message != "Scheduled pipeline run started" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[0].Source != "scheduler" {
		t.Errorf("expected source scheduler, got %q", entries[0].Source)
	}
	if entries[1].Level != "error" || entries[1].Source != "run-123" {
		t.Errorf("unexpected second entry: %+v", entries[1])
	}
}

func TestTail_LevelThreshold(t *testing.T) {
	tail, events := newTestTail(t, &common.WebSocketConfig{MinLevel: "warn"})

	tail.Channel() <- []arbormodels.LogEvent{
		logEvent(plog.DebugLevel, "queue state", "run-1"),
		logEvent(plog.InfoLevel, "stage finished", "run-1"),
		logEvent(plog.WarnLevel, "retrying fetch", "run-1"),
		logEvent(plog.ErrorLevel, "stage failed", "run-1"),
	}

	entries := waitForEntries(t, events, 2)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries above warn, got %d", len(entries))
	}
	if entries[0].Level != "warn" || entries[1].Level != "error" {
		t.Errorf("wrong levels forwarded: %q, %q", entries[0].Level, entries[1].Level)
	}
}

func TestTail_ExcludePatterns(t *testing.T) {
	tail, events := newTestTail(t, &common.WebSocketConfig{
		MinLevel:        "info",
		ExcludePatterns: []string{"heartbeat"},
	})

	tail.Channel() <- []arbormodels.LogEvent{
		logEvent(plog.InfoLevel, "worker heartbeat ok", "run-1"),
		logEvent(plog.InfoLevel, "companies discovered", "run-1"),
	}

	entries := waitForEntries(t, events, 1)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after exclusion, got %d", len(entries))
	}
	if entries[0].Message != "companies discovered" {
		t.Errorf("wrong entry survived exclusion: %q", entries[0].Message)
	}
}

func TestTail_FoldsFieldsIntoMessage(t *testing.T) {
	tail, events := newTestTail(t, nil)

	event := logEvent(plog.InfoLevel, "Crawl finished", "run-9")
	event.Fields = map[string]interface{}{
		"jobs":    17,
		"company": "initech",
	}
	tail.Channel() <- []arbormodels.LogEvent{event}

	entries := waitForEntries(t, events, 1)
	if entries[0].Message != "Crawl finished company=initech jobs=17" {
		t.Errorf("fields not folded in key order: %q", entries[0].Message)
	}
}

func TestTail_DefaultsToInfoWithoutConfig(t *testing.T) {
	tail, events := newTestTail(t, nil)

	tail.Channel() <- []arbormodels.LogEvent{
		logEvent(plog.DebugLevel, "noise", "run-1"),
		logEvent(plog.InfoLevel, "signal", "run-1"),
	}

	entries := waitForEntries(t, events, 1)
	if len(entries) != 1 || entries[0].Message != "signal" {
		t.Fatalf("expected only the info entry, got %+v", entries)
	}
}

func TestTail_StopHaltsForwarding(t *testing.T) {
	events := &fakeEvents{}
	tail := NewTail(events, nil, arbor.NewLogger())
	if err := tail.Start(); err != nil {
		t.Fatalf("start tail: %v", err)
	}
	if err := tail.Stop(); err != nil {
		t.Fatalf("stop tail: %v", err)
	}

	// Sends after stop land in the buffer and are never forwarded
	tail.Channel() <- []arbormodels.LogEvent{
		logEvent(plog.ErrorLevel, "late entry", "run-1"),
	}
	time.Sleep(50 * time.Millisecond)

	if got := len(events.entries()); got != 0 {
		t.Errorf("expected no entries after stop, got %d", got)
	}
}
