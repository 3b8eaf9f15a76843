package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/services/scheduler"
)

// SchedulerHandler controls the periodic pipeline trigger under
// /api/admin/scheduler. Start and stop are idempotent.
type SchedulerHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

func NewSchedulerHandler(schedulerService interfaces.SchedulerService, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: schedulerService,
		logger:    logger,
	}
}

// StartHandler handles POST /api/admin/scheduler/start?interval_hours=
// An interval_hours value reschedules the pipeline job before starting
func (h *SchedulerHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if hours := QueryInt(r, "interval_hours", 0); hours > 0 {
		schedule := scheduler.FullPipelineSchedule(hours)
		if err := h.scheduler.UpdateJobSchedule(scheduler.FullPipelineJobName, schedule); err != nil {
			WriteError(w, err)
			return
		}
	}

	if err := h.scheduler.Start(); err != nil {
		h.logger.Error().Err(err).Msg("Failed to start scheduler")
		WriteError(w, err)
		return
	}

	h.logger.Info().Msg("Scheduler started via API")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": true,
		"jobs":    h.scheduler.GetAllJobStatuses(),
	})
}

// StopHandler handles POST /api/admin/scheduler/stop
func (h *SchedulerHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.scheduler.Stop(); err != nil {
		h.logger.Error().Err(err).Msg("Failed to stop scheduler")
		WriteError(w, err)
		return
	}

	h.logger.Info().Msg("Scheduler stopped via API")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": false,
	})
}

// StatusHandler handles GET /api/admin/scheduler/status
func (h *SchedulerHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"running": h.scheduler.IsRunning(),
		"jobs":    h.scheduler.GetAllJobStatuses(),
	})
}
