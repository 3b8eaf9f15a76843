package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// PipelineHandler exposes the run registry and stage triggers under
// /api/admin/pipeline. Triggers return 202 with the created run; the
// work itself reports through the run registry and the event stream.
type PipelineHandler struct {
	pipeline  interfaces.PipelineService
	scheduler interfaces.SchedulerService
	storage   interfaces.StorageManager
	logger    arbor.ILogger
}

func NewPipelineHandler(pipeline interfaces.PipelineService, scheduler interfaces.SchedulerService, storage interfaces.StorageManager, logger arbor.ILogger) *PipelineHandler {
	return &PipelineHandler{
		pipeline:  pipeline,
		scheduler: scheduler,
		storage:   storage,
		logger:    logger,
	}
}

// runRequest is the shared trigger payload. Fields outside an
// operation's scope are ignored by that operation.
type runRequest struct {
	SkipDiscovery  bool `json:"skip_discovery"`
	SkipCrawl      bool `json:"skip_crawl"`
	SkipEnrichment bool `json:"skip_enrichment"`
	SkipEmbeddings bool `json:"skip_embeddings"`

	ATSType      string   `json:"ats_type"`
	CompanyID    string   `json:"company_id"`
	CompanyIDs   []string `json:"company_ids"`
	CandidateIDs []string `json:"candidate_ids"`
	Force        bool     `json:"force"`
}

func (req *runRequest) params() models.RunParams {
	companyIDs := req.CompanyIDs
	if req.CompanyID != "" {
		companyIDs = append(companyIDs, req.CompanyID)
	}
	return models.RunParams{
		SkipDiscovery:  req.SkipDiscovery,
		SkipCrawl:      req.SkipCrawl,
		SkipEnrichment: req.SkipEnrichment,
		SkipEmbeddings: req.SkipEmbeddings,
		ATSType:        models.ATSType(req.ATSType),
		CompanyIDs:     companyIDs,
		CandidateIDs:   req.CandidateIDs,
		Force:          req.Force,
	}
}

// StatusHandler handles GET /api/admin/pipeline/status
func (h *PipelineHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	running := h.pipeline.RunningOperations(ctx)
	response := map[string]interface{}{
		"pipeline": map[string]interface{}{
			"running":    len(running) > 0,
			"operations": runOperations(running),
			"run_count":  len(running),
		},
		"running_operations": running,
	}

	// The oldest full-pipeline run, if one is in flight, is the headline
	for _, run := range running {
		if run.Operation == models.OpFullPipeline {
			response["running_run"] = run
			break
		}
	}

	if h.scheduler != nil {
		response["scheduler"] = map[string]interface{}{
			"running": h.scheduler.IsRunning(),
			"jobs":    h.scheduler.GetAllJobStatuses(),
		}
	}

	if stats, err := h.collectStats(r); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to collect pipeline stats")
	} else {
		response["stats"] = stats
	}

	WriteJSON(w, http.StatusOK, response)
}

func runOperations(running []*models.PipelineRun) []string {
	ops := make([]string, 0, len(running))
	for _, run := range running {
		ops = append(ops, string(run.Operation))
	}
	return ops
}

// collectStats gathers catalog counters for the status payload
func (h *PipelineHandler) collectStats(r *http.Request) (map[string]interface{}, error) {
	ctx := r.Context()

	companyStats, err := h.storage.Companies().GetCompanyStats(ctx)
	if err != nil {
		return nil, err
	}
	jobStats, err := h.storage.Jobs().GetJobStats(ctx)
	if err != nil {
		return nil, err
	}
	matchStats, err := h.storage.Matches().GetMatchStats(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := h.storage.Candidates().CountCandidates(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"companies":  companyStats,
		"jobs":       jobStats,
		"matches":    matchStats,
		"candidates": candidates,
	}, nil
}

// ListRunsHandler handles GET /api/admin/pipeline/runs
func (h *PipelineHandler) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	page, pageSize := GetPaginationParams(r)
	offset := (page - 1) * pageSize

	runs, err := h.pipeline.ListRuns(r.Context(), pageSize, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list pipeline runs")
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":      runs,
		"page":      page,
		"page_size": pageSize,
		"has_more":  len(runs) == pageSize,
	})
}

// GetRunHandler handles GET /api/admin/pipeline/runs/{id}
// Returns the run row together with its persisted log entries
func (h *PipelineHandler) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	runID := PathSegment(r, 4)
	if runID == "" {
		WriteDetail(w, http.StatusBadRequest, "run id is required")
		return
	}

	run, err := h.pipeline.GetRun(ctx, runID)
	if err != nil {
		WriteError(w, err)
		return
	}

	logLimit := QueryInt(r, "log_limit", 500)
	logs, err := h.pipeline.GetRunLogs(ctx, runID, logLimit)
	if err != nil {
		h.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to load run logs")
		logs = nil
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run":      run,
		"logs":     logs,
		"duration": run.Duration(time.Now().UTC()).String(),
	})
}

// CancelRunHandler handles POST /api/admin/pipeline/runs/{id}/cancel
func (h *PipelineHandler) CancelRunHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	runID := PathSegment(r, 4)
	if runID == "" {
		WriteDetail(w, http.StatusBadRequest, "run id is required")
		return
	}

	if err := h.pipeline.CancelRun(r.Context(), runID); err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Info().Str("run_id", runID).Msg("Run cancellation requested")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "cancelling",
		"run_id": runID,
	})
}

// TriggerPipelineHandler handles POST /api/admin/pipeline/run
func (h *PipelineHandler) TriggerPipelineHandler(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, models.OpFullPipeline, nil)
}

// TriggerCrawlHandler handles POST /api/admin/pipeline/crawl
// An ats_type in the payload narrows the crawl to one vendor
func (h *PipelineHandler) TriggerCrawlHandler(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, models.OpCrawlAll, func(req *runRequest) models.RunOperation {
		if req.ATSType != "" {
			return models.OpCrawlFor(models.ATSType(req.ATSType))
		}
		return models.OpCrawlAll
	})
}

// TriggerEnrichHandler handles POST /api/admin/pipeline/enrich
func (h *PipelineHandler) TriggerEnrichHandler(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, models.OpEnrich, nil)
}

// TriggerEmbeddingsHandler handles POST /api/admin/pipeline/embeddings
func (h *PipelineHandler) TriggerEmbeddingsHandler(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, models.OpEmbeddings, nil)
}

// TriggerDetectATSHandler handles POST /api/admin/pipeline/detect-ats
func (h *PipelineHandler) TriggerDetectATSHandler(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, models.OpDetectATS, nil)
}

// TriggerMatchHandler handles POST /api/admin/pipeline/match
func (h *PipelineHandler) TriggerMatchHandler(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, models.OpMatch, nil)
}

// TriggerMaintenanceHandler handles POST /api/admin/pipeline/maintenance
func (h *PipelineHandler) TriggerMaintenanceHandler(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, r, models.OpMaintenance, nil)
}

// trigger decodes the optional request body and starts the operation.
// pick lets a route map the payload onto a narrower operation.
func (h *PipelineHandler) trigger(w http.ResponseWriter, r *http.Request, op models.RunOperation, pick func(*runRequest) models.RunOperation) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req runRequest
	if err := DecodeJSONOptional(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if pick != nil {
		op = pick(&req)
	}

	run, err := h.pipeline.StartOperation(r.Context(), op, req.params(), "manual")
	if err != nil {
		h.logger.Warn().Err(err).Str("operation", string(op)).Msg("Failed to start operation")
		WriteError(w, err)
		return
	}

	h.logger.Info().Str("operation", string(op)).Str("run_id", run.ID).Msg("Operation started")
	WriteStarted(w, run)
}
