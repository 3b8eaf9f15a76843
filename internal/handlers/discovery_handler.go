package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// DiscoveryHandler exposes the discovery queue under /api/admin/discovery.
// Source runs and queue drains go through the run registry so they show
// up in pipeline status like any other operation.
type DiscoveryHandler struct {
	discovery interfaces.DiscoveryService
	pipeline  interfaces.PipelineService
	logger    arbor.ILogger
}

func NewDiscoveryHandler(discovery interfaces.DiscoveryService, pipeline interfaces.PipelineService, logger arbor.ILogger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discovery: discovery,
		pipeline:  pipeline,
		logger:    logger,
	}
}

// RunDiscoveryHandler handles POST /api/admin/discovery/run
// Body: {source_names: [...]} to limit which sources execute
func (h *DiscoveryHandler) RunDiscoveryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		SourceNames []string `json:"source_names"`
	}
	if err := DecodeJSONOptional(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	run, err := h.pipeline.StartOperation(r.Context(), models.OpDiscovery, models.RunParams{
		SourceNames: req.SourceNames,
	}, "manual")
	if err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Info().Str("run_id", run.ID).Strs("sources", req.SourceNames).Msg("Discovery run started")
	WriteStarted(w, run)
}

// ProcessQueueHandler handles POST /api/admin/discovery/process-queue?limit=
// Drains pending queue items through vetting synchronously and returns
// the outcome counts
func (h *DiscoveryHandler) ProcessQueueHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	limit := QueryInt(r, "limit", 50)
	created, failed, err := h.discovery.ProcessQueue(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Queue processing failed")
		WriteError(w, err)
		return
	}

	h.logger.Info().Int("created", created).Int("failed", failed).Msg("Discovery queue processed")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"created": created,
		"failed":  failed,
	})
}

// ListQueueHandler handles GET /api/admin/discovery/queue?status=&limit=
func (h *DiscoveryHandler) ListQueueHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	status := models.DiscoveryStatus(r.URL.Query().Get("status"))
	limit := QueryInt(r, "limit", 100)

	items, err := h.discovery.ListQueue(ctx, status, limit)
	if err != nil {
		WriteError(w, err)
		return
	}

	stats, err := h.discovery.Stats(ctx)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to load discovery stats")
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
		"stats": stats,
	})
}

// ApproveQueueItemHandler handles POST /api/admin/discovery/queue/{id}/approve
// Body: {ats_type, ats_identifier} assigns the vendor the detector could
// not resolve on its own
func (h *DiscoveryHandler) ApproveQueueItemHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	itemID := PathSegment(r, 4)
	if itemID == "" {
		WriteDetail(w, http.StatusBadRequest, "queue item id is required")
		return
	}

	var req struct {
		ATSType       string `json:"ats_type"`
		ATSIdentifier string `json:"ats_identifier"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	company, err := h.discovery.Approve(r.Context(), itemID, models.ATSType(req.ATSType), req.ATSIdentifier)
	if err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Info().Str("item_id", itemID).Str("company_id", company.ID).Msg("Queue item approved")
	WriteJSON(w, http.StatusOK, company)
}

// RejectQueueItemHandler handles POST /api/admin/discovery/queue/{id}/reject
func (h *DiscoveryHandler) RejectQueueItemHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	itemID := PathSegment(r, 4)
	if itemID == "" {
		WriteDetail(w, http.StatusBadRequest, "queue item id is required")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := DecodeJSONOptional(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.discovery.Reject(r.Context(), itemID, req.Reason); err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Info().Str("item_id", itemID).Msg("Queue item rejected")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "skipped",
		"item_id": itemID,
	})
}
