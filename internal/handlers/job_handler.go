package handlers

import (
	"bytes"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// JobHandler serves the canonical job catalog
type JobHandler struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

func NewJobHandler(storage interfaces.StorageManager, logger arbor.ILogger) *JobHandler {
	return &JobHandler{
		storage: storage,
		logger:  logger,
	}
}

// JobSummary is the list-response shape: the job without its description
// body or embedding vector
type JobSummary struct {
	ID                 string                `json:"id"`
	CompanyID          string                `json:"company_id"`
	SourceURL          string                `json:"source_url"`
	Title              string                `json:"title"`
	RoleFamily         models.RoleFamily     `json:"role_family"`
	RoleSpecialization string                `json:"role_specialization,omitempty"`
	Seniority          models.Seniority      `json:"seniority,omitempty"`
	LocationType       models.LocationType   `json:"location_type,omitempty"`
	Locations          []string              `json:"locations,omitempty"`
	Skills             []string              `json:"skills,omitempty"`
	MinSalary          *int                  `json:"min_salary,omitempty"`
	MaxSalary          *int                  `json:"max_salary,omitempty"`
	EmploymentType     models.EmploymentType `json:"employment_type,omitempty"`
	PostedAt           *time.Time            `json:"posted_at,omitempty"`
	FreshnessScore     float64               `json:"freshness_score"`
	IsActive           bool                  `json:"is_active"`
}

func newJobSummary(job *models.Job) JobSummary {
	return JobSummary{
		ID:                 job.ID,
		CompanyID:          job.CompanyID,
		SourceURL:          job.SourceURL,
		Title:              job.Title,
		RoleFamily:         job.RoleFamily,
		RoleSpecialization: job.RoleSpecialization,
		Seniority:          job.Seniority,
		LocationType:       job.LocationType,
		Locations:          job.Locations,
		Skills:             job.Skills,
		MinSalary:          job.MinSalary,
		MaxSalary:          job.MaxSalary,
		EmploymentType:     job.EmploymentType,
		PostedAt:           job.PostedAt,
		FreshnessScore:     job.FreshnessScore,
		IsActive:           job.IsActive,
	}
}

// ListJobsHandler handles GET /api/jobs
// Query: role_family, seniority, location_type, company_id, employment_type,
// min_salary, q, include_inactive, page, page_size
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	q := r.URL.Query()
	active := true
	filter := &interfaces.JobFilter{
		CompanyID:      q.Get("company_id"),
		RoleFamily:     models.RoleFamily(q.Get("role_family")),
		Seniority:      models.Seniority(q.Get("seniority")),
		LocationType:   models.LocationType(q.Get("location_type")),
		EmploymentType: models.EmploymentType(q.Get("employment_type")),
		MinSalary:      QueryInt(r, "min_salary", 0),
		Text:           q.Get("q"),
		IsActive:       &active,
	}
	if inc := QueryBool(r, "include_inactive"); inc != nil && *inc {
		filter.IsActive = nil
	}

	jobs, err := h.storage.Jobs().ListJobs(ctx, filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list jobs")
		WriteError(w, err)
		return
	}

	page, pageSize := GetPaginationParams(r)
	total := len(jobs)
	start, end := PageBounds(page, pageSize, total)

	summaries := make([]JobSummary, 0, end-start)
	for _, job := range jobs[start:end] {
		summaries = append(summaries, newJobSummary(job))
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":      summaries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"has_more":  end < total,
	})
}

// GetJobHandler handles GET /api/jobs/{id}
// Returns the job with its company and the stored markdown description
// rendered to HTML
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	jobID := PathSegment(r, 2)
	if jobID == "" {
		WriteDetail(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := h.storage.Jobs().GetJob(ctx, jobID)
	if err != nil {
		WriteError(w, err)
		return
	}

	// The vector is an implementation detail, keep it out of the API
	jobCopy := *job
	jobCopy.Embedding = nil
	jobCopy.EmbeddingText = ""

	response := map[string]interface{}{
		"job":              &jobCopy,
		"description_html": renderMarkdown(job.Description),
	}

	if job.CompanyID != "" {
		if company, err := h.storage.Companies().GetCompany(ctx, job.CompanyID); err == nil {
			response["company"] = company
		} else {
			h.logger.Warn().Err(err).Str("company_id", job.CompanyID).Msg("Company lookup failed for job view")
		}
	}

	WriteJSON(w, http.StatusOK, response)
}

// RecordClickHandler handles POST /api/jobs/{id}/click?candidate_id=
// Stamps clicked_at on the candidate's match for this job. The timestamp
// is set once; repeat clicks are no-ops.
func (h *JobHandler) RecordClickHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	jobID := PathSegment(r, 2)
	candidateID := r.URL.Query().Get("candidate_id")
	if jobID == "" || candidateID == "" {
		WriteDetail(w, http.StatusBadRequest, "job id and candidate_id are required")
		return
	}

	match, err := h.storage.Matches().GetMatchByPair(ctx, candidateID, jobID)
	if err != nil {
		WriteError(w, err)
		return
	}

	if match.ClickedAt == nil {
		now := time.Now().UTC()
		match.ClickedAt = &now
		if err := h.storage.Matches().SaveMatch(ctx, match); err != nil {
			h.logger.Error().Err(err).Str("match_id", match.ID).Msg("Failed to record click")
			WriteError(w, err)
			return
		}
	}

	WriteJSON(w, http.StatusOK, match)
}

// renderMarkdown converts stored markdown to HTML with the same extension
// set the report renderer uses
func renderMarkdown(markdown string) string {
	if markdown == "" {
		return ""
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return ""
	}
	return buf.String()
}
