package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/jobhound/internal/services/status"
)

// StatusHandler serves liveness and component health
type StatusHandler struct {
	statusService *status.Service
	logger        arbor.ILogger
}

func NewStatusHandler(statusService *status.Service, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		logger:        logger,
	}
}

// HealthzHandler handles GET /healthz. Responds 200 while the process
// is up; the body carries per-component detail and flips the top-level
// status to degraded when any probe fails.
func (h *StatusHandler) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	health := h.statusService.Snapshot(r.Context())
	WriteJSON(w, http.StatusOK, health)
}
