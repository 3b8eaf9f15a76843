// -----------------------------------------------------------------------
// WebSocket streaming - pushes run status, progress and log events to
// connected clients via the event bus
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for every frame sent to clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// wsSnapshot is sent once per connection so clients can render current
// state without waiting for the next event
type wsSnapshot struct {
	ServerInstanceID string                `json:"server_instance_id"`
	Running          []*models.PipelineRun `json:"running"`
}

// WebSocketHandler fans pipeline events out to connected clients. Log
// events are filtered by level and pattern, progress events are
// throttled per run so a fast stage cannot flood slow clients.
type WebSocketHandler struct {
	logger      arbor.ILogger
	pipeline    interfaces.PipelineService
	clients     map[*websocket.Conn]bool
	clientMutex map[*websocket.Conn]*sync.Mutex
	mu          sync.RWMutex

	minLevel        int
	excludePatterns []string

	throttleMu sync.Mutex
	throttlers map[string]*rate.Limiter // keyed by event type + run id
	intervals  map[string]time.Duration

	// serverInstanceID changes on every startup - clients use it to
	// detect a restart and clear stale state
	serverInstanceID string
}

func NewWebSocketHandler(eventService interfaces.EventService, pipeline interfaces.PipelineService, config *common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		pipeline:         pipeline,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		throttlers:       make(map[string]*rate.Limiter),
		intervals:        make(map[string]time.Duration),
		minLevel:         levelRank("info"),
		serverInstanceID: uuid.New().String(),
	}

	if config != nil {
		h.minLevel = levelRank(config.MinLevel)
		h.excludePatterns = config.ExcludePatterns
		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				logger.Warn().Err(err).Str("event_type", eventType).Str("interval", intervalStr).Msg("Invalid throttle interval - throttling disabled for event type")
				continue
			}
			h.intervals[eventType] = duration
		}
	}

	if eventService != nil {
		eventService.Subscribe(interfaces.EventRunStatus, h.onRunStatus)
		eventService.Subscribe(interfaces.EventRunProgress, h.onRunProgress)
		eventService.Subscribe(interfaces.EventRunLog, h.onRunLog)
		eventService.Subscribe(interfaces.EventServiceLog, h.onServiceLog)
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")
	return h
}

// HandleWebSocket handles GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.sendSnapshot(r.Context(), conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read loop keeps the connection alive; clients send nothing we act on
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			break
		}
	}
}

// sendSnapshot writes the in-flight runs to a newly connected client
func (h *WebSocketHandler) sendSnapshot(ctx context.Context, conn *websocket.Conn) {
	running := []*models.PipelineRun{}
	if h.pipeline != nil {
		running = h.pipeline.RunningOperations(ctx)
	}

	data, err := json.Marshal(WSMessage{
		Type: "snapshot",
		Payload: wsSnapshot{
			ServerInstanceID: h.serverInstanceID,
			Running:          running,
		},
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal snapshot message")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()
	if mutex == nil {
		return
	}

	mutex.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	mutex.Unlock()
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to send snapshot to client")
	}
}

func (h *WebSocketHandler) onRunStatus(ctx context.Context, event interfaces.Event) error {
	// Status transitions are rare and every one matters - never throttled
	h.broadcast("run_status", event.Payload)
	return nil
}

func (h *WebSocketHandler) onRunProgress(ctx context.Context, event interfaces.Event) error {
	if !h.allow("progress", event.RunID) {
		return nil
	}
	h.broadcast("run_progress", event.Payload)
	return nil
}

func (h *WebSocketHandler) onRunLog(ctx context.Context, event interfaces.Event) error {
	entry, ok := event.Payload.(*models.RunLogEntry)
	if !ok {
		return nil
	}
	if levelRank(entry.Level) < h.minLevel {
		return nil
	}
	for _, pattern := range h.excludePatterns {
		if strings.Contains(entry.Message, pattern) {
			return nil
		}
	}
	if !h.allow("log", event.RunID) {
		return nil
	}
	h.broadcast("run_log", entry)
	return nil
}

// onServiceLog streams process log lines to the server console. The log
// tail already applied the level threshold and exclusion patterns, so
// entries broadcast as-is.
func (h *WebSocketHandler) onServiceLog(ctx context.Context, event interfaces.Event) error {
	if !h.allow("service_log", "") {
		return nil
	}
	h.broadcast("service_log", event.Payload)
	return nil
}

// allow checks the rate limiter for an event type scoped to one run.
// Event types without a configured interval are never throttled.
func (h *WebSocketHandler) allow(eventType, runID string) bool {
	interval, ok := h.intervals[eventType]
	if !ok || interval <= 0 {
		return true
	}

	key := eventType + ":" + runID
	h.throttleMu.Lock()
	limiter, ok := h.throttlers[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
		h.throttlers[key] = limiter
	}
	h.throttleMu.Unlock()

	return limiter.Allow()
}

// broadcast marshals once and writes to every client under its own
// mutex, so one slow connection cannot corrupt another's frame
func (h *WebSocketHandler) broadcast(msgType string, payload interface{}) {
	data, err := json.Marshal(WSMessage{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", msgType).Msg("Failed to send message to client")
		}
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// levelRank orders log levels for min-level filtering
func levelRank(level string) int {
	switch strings.ToLower(level) {
	case "debug":
		return 0
	case "info":
		return 1
	case "warn", "warning":
		return 2
	case "error":
		return 3
	default:
		return 1
	}
}
