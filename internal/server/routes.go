// -----------------------------------------------------------------------
// Route table - all API endpoints, the event stream, and liveness
// -----------------------------------------------------------------------

package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route - run status, progress, and log streaming
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Liveness + component health
	mux.HandleFunc("/healthz", s.app.StatusHandler.HealthzHandler)

	// API routes - Jobs (canonical catalog, read side)
	mux.HandleFunc("/api/jobs", s.app.JobHandler.ListJobsHandler)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // GET /{id}, POST /{id}/click

	// API routes - Candidates
	mux.HandleFunc("/api/candidates/sync-from-waitlist", s.app.CandidateHandler.SyncFromWaitlistHandler)
	mux.HandleFunc("/api/candidates/", s.handleCandidateRoutes) // /{id} and subpaths

	// API routes - Companies (public read side)
	mux.HandleFunc("/api/companies", s.app.CompanyHandler.ListCompaniesHandler)
	mux.HandleFunc("/api/companies/", s.app.CompanyHandler.GetCompanyHandler)

	// API routes - Admin: company management
	mux.HandleFunc("/api/admin/companies", s.app.CompanyHandler.CreateCompanyHandler)
	mux.HandleFunc("/api/admin/companies/import", s.app.CompanyHandler.ImportCompaniesHandler)

	// API routes - Admin: analytics
	mux.HandleFunc("/api/admin/analytics", s.app.AnalyticsHandler.AnalyticsHandler)

	// API routes - Admin: pipeline registry and stage triggers
	mux.HandleFunc("/api/admin/pipeline/status", s.app.PipelineHandler.StatusHandler)
	mux.HandleFunc("/api/admin/pipeline/runs", s.app.PipelineHandler.ListRunsHandler)
	mux.HandleFunc("/api/admin/pipeline/runs/", s.handleRunRoutes) // GET /{id}, POST /{id}/cancel
	mux.HandleFunc("/api/admin/pipeline/run", s.app.PipelineHandler.TriggerPipelineHandler)
	mux.HandleFunc("/api/admin/pipeline/crawl", s.app.PipelineHandler.TriggerCrawlHandler)
	mux.HandleFunc("/api/admin/pipeline/enrich", s.app.PipelineHandler.TriggerEnrichHandler)
	mux.HandleFunc("/api/admin/pipeline/embeddings", s.app.PipelineHandler.TriggerEmbeddingsHandler)
	mux.HandleFunc("/api/admin/pipeline/detect-ats", s.app.PipelineHandler.TriggerDetectATSHandler)
	mux.HandleFunc("/api/admin/pipeline/match", s.app.PipelineHandler.TriggerMatchHandler)
	mux.HandleFunc("/api/admin/pipeline/maintenance", s.app.PipelineHandler.TriggerMaintenanceHandler)

	// API routes - Admin: discovery queue
	mux.HandleFunc("/api/admin/discovery/run", s.app.DiscoveryHandler.RunDiscoveryHandler)
	mux.HandleFunc("/api/admin/discovery/process-queue", s.app.DiscoveryHandler.ProcessQueueHandler)
	mux.HandleFunc("/api/admin/discovery/queue", s.app.DiscoveryHandler.ListQueueHandler)
	mux.HandleFunc("/api/admin/discovery/queue/", s.handleQueueItemRoutes) // POST /{id}/approve, /{id}/reject

	// API routes - Admin: scheduler
	mux.HandleFunc("/api/admin/scheduler/start", s.app.SchedulerHandler.StartHandler)
	mux.HandleFunc("/api/admin/scheduler/stop", s.app.SchedulerHandler.StopHandler)
	mux.HandleFunc("/api/admin/scheduler/status", s.app.SchedulerHandler.StatusHandler)

	// API routes - Admin: key/value settings (API keys, operational values)
	mux.HandleFunc("/api/admin/kv", s.app.KVHandler.ListKVHandler)
	mux.HandleFunc("/api/admin/kv/", s.handleKVRoutes)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler) // Graceful shutdown endpoint (dev mode)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleJobRoutes routes /api/jobs/{id} requests
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/jobs/{id}/click
	if r.Method == http.MethodPost && strings.HasSuffix(path, "/click") {
		s.app.JobHandler.RecordClickHandler(w, r)
		return
	}

	// GET /api/jobs/{id}
	if r.Method == http.MethodGet && len(path) > len("/api/jobs/") {
		s.app.JobHandler.GetJobHandler(w, r)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// handleCandidateRoutes routes /api/candidates/{id} and subpaths
func (s *Server) handleCandidateRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	// GET /api/candidates/{id}/matches/report
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/matches/report"):
		s.app.CandidateHandler.MatchReportHandler(w, r)

	// GET /api/candidates/{id}/matches
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/matches"):
		s.app.CandidateHandler.ListCandidateMatchesHandler(w, r)

	// POST /api/candidates/{id}/resume
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/resume"):
		s.app.CandidateHandler.UploadResumeHandler(w, r)

	// GET /api/candidates/{id}
	case r.Method == http.MethodGet:
		s.app.CandidateHandler.GetCandidateHandler(w, r)

	// PATCH /api/candidates/{id}
	case r.Method == http.MethodPatch:
		s.app.CandidateHandler.UpdateCandidateHandler(w, r)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunRoutes routes /api/admin/pipeline/runs/{id} requests
func (s *Server) handleRunRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/admin/pipeline/runs/{id}/cancel
	if r.Method == http.MethodPost && strings.HasSuffix(path, "/cancel") {
		s.app.PipelineHandler.CancelRunHandler(w, r)
		return
	}

	// GET /api/admin/pipeline/runs/{id}
	if r.Method == http.MethodGet {
		s.app.PipelineHandler.GetRunHandler(w, r)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// handleQueueItemRoutes routes /api/admin/discovery/queue/{id} actions
func (s *Server) handleQueueItemRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/approve"):
		s.app.DiscoveryHandler.ApproveQueueItemHandler(w, r)

	case r.Method == http.MethodPost && strings.HasSuffix(path, "/reject"):
		s.app.DiscoveryHandler.RejectQueueItemHandler(w, r)

	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleKVRoutes routes /api/admin/kv/{key} requests by method
func (s *Server) handleKVRoutes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.KVHandler.GetKVHandler(w, r)
	case http.MethodPut:
		s.app.KVHandler.UpdateKVHandler(w, r)
	case http.MethodDelete:
		s.app.KVHandler.DeleteKVHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
