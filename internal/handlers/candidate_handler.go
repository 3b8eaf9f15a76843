package handlers

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
	"github.com/ternarybob/jobhound/internal/services/report"
)

// CandidateHandler serves candidate profiles, their matches, and resume
// uploads
type CandidateHandler struct {
	storage   interfaces.StorageManager
	embedder  interfaces.EmbeddingService
	matcher   interfaces.MatcherService
	extractor interfaces.PDFExtractor
	pdf       interfaces.PDFService
	validate  *validator.Validate
	logger    arbor.ILogger
}

func NewCandidateHandler(
	storage interfaces.StorageManager,
	embedder interfaces.EmbeddingService,
	matcher interfaces.MatcherService,
	extractor interfaces.PDFExtractor,
	pdf interfaces.PDFService,
	logger arbor.ILogger,
) *CandidateHandler {
	return &CandidateHandler{
		storage:   storage,
		embedder:  embedder,
		matcher:   matcher,
		extractor: extractor,
		pdf:       pdf,
		validate:  validator.New(),
		logger:    logger,
	}
}

// candidatePatch is the PATCH payload. Absent fields leave the stored
// value untouched; present fields replace it.
type candidatePatch struct {
	Name          *string   `json:"name"`
	RoleFamilies  *[]string `json:"role_families" validate:"omitempty,dive,oneof=software_engineering infrastructure data product design engineering_management sales marketing customer_success operations people finance legal other"`
	Seniority     *string   `json:"seniority" validate:"omitempty,oneof=intern junior mid senior staff principal director vp c_level"`
	MinSalary     *int      `json:"min_salary" validate:"omitempty,min=0"`
	Locations     *[]string `json:"locations"`
	LocationTypes *[]string `json:"location_types" validate:"omitempty,dive,oneof=remote hybrid onsite"`
	RoleTypes     *[]string `json:"role_types" validate:"omitempty,dive,oneof=permanent contract freelance"`
	Skills        *[]string `json:"skills"`
	Exclusions    *[]string `json:"exclusions"`
	ProfileText   *string   `json:"profile_text"`
	IsActive      *bool     `json:"is_active"`
}

// GetCandidateHandler handles GET /api/candidates/{id}
func (h *CandidateHandler) GetCandidateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	candidate, err := h.loadCandidate(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, candidateView(candidate))
}

// UpdateCandidateHandler handles PATCH /api/candidates/{id}
func (h *CandidateHandler) UpdateCandidateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPatch) {
		return
	}
	ctx := r.Context()

	candidate, err := h.loadCandidate(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	var patch candidatePatch
	if err := DecodeJSON(r, &patch); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validate.Struct(&patch); err != nil {
		WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	applyPatch(candidate, &patch)
	candidate.UpdatedAt = time.Now().UTC()

	if err := h.storage.Candidates().SaveCandidate(ctx, candidate); err != nil {
		h.logger.Error().Err(err).Str("candidate_id", candidate.ID).Msg("Failed to save candidate")
		WriteError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, candidateView(candidate))
}

func applyPatch(candidate *models.CandidateProfile, patch *candidatePatch) {
	if patch.Name != nil {
		candidate.Name = *patch.Name
	}
	if patch.RoleFamilies != nil {
		candidate.RoleFamilies = toRoleFamilies(*patch.RoleFamilies)
	}
	if patch.Seniority != nil {
		candidate.Seniority = models.Seniority(*patch.Seniority)
	}
	if patch.MinSalary != nil {
		candidate.MinSalary = patch.MinSalary
	}
	if patch.Locations != nil {
		candidate.Locations = *patch.Locations
	}
	if patch.LocationTypes != nil {
		candidate.LocationTypes = toLocationTypes(*patch.LocationTypes)
	}
	if patch.RoleTypes != nil {
		candidate.RoleTypes = *patch.RoleTypes
	}
	if patch.Skills != nil {
		candidate.Skills = *patch.Skills
	}
	if patch.Exclusions != nil {
		candidate.Exclusions = *patch.Exclusions
	}
	if patch.ProfileText != nil {
		candidate.ProfileText = *patch.ProfileText
	}
	if patch.IsActive != nil {
		candidate.IsActive = *patch.IsActive
	}
}

// SyncFromWaitlistHandler handles POST /api/candidates/sync-from-waitlist
// Upserts a candidate keyed by email from the external waitlist shape
func (h *CandidateHandler) SyncFromWaitlistHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	var record models.WaitlistRecord
	if err := DecodeJSON(r, &record); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validate.Struct(&record); err != nil {
		WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(record.Email))
	now := time.Now().UTC()

	candidate, err := h.storage.Candidates().GetCandidateByEmail(ctx, email)
	created := false
	if err != nil {
		if !models.IsNotFound(err) {
			WriteError(w, err)
			return
		}
		candidate = &models.CandidateProfile{
			ID:        common.NewID(),
			Email:     email,
			IsActive:  true,
			CreatedAt: now,
		}
		created = true
	}

	if record.Name != "" {
		candidate.Name = record.Name
	}
	if len(record.RoleFamilies) > 0 {
		candidate.RoleFamilies = toRoleFamilies(record.RoleFamilies)
	}
	if record.Seniority != "" {
		candidate.Seniority = models.Seniority(record.Seniority)
	}
	if record.MinSalary != nil {
		candidate.MinSalary = record.MinSalary
	}
	if len(record.Locations) > 0 {
		candidate.Locations = record.Locations
	}
	if len(record.LocationTypes) > 0 {
		candidate.LocationTypes = toLocationTypes(record.LocationTypes)
	}
	if len(record.RoleTypes) > 0 {
		candidate.RoleTypes = record.RoleTypes
	}
	if len(record.Skills) > 0 {
		candidate.Skills = record.Skills
	}
	candidate.UpdatedAt = now

	if err := h.storage.Candidates().SaveCandidate(ctx, candidate); err != nil {
		h.logger.Error().Err(err).Str("email", email).Msg("Failed to upsert waitlist candidate")
		WriteError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.logger.Info().Str("candidate_id", candidate.ID).Bool("created", created).Msg("Waitlist candidate synced")
	WriteJSON(w, status, candidateView(candidate))
}

// UploadResumeHandler handles POST /api/candidates/{id}/resume
// Accepts a PDF (multipart field "resume" or a raw body), extracts its
// text into profile_text, regenerates the embedding, and re-runs matching.
func (h *CandidateHandler) UploadResumeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	candidate, err := h.loadCandidate(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	path, cleanup, err := h.saveUpload(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	defer cleanup()

	text, err := h.extractor.ExtractText(ctx, path)
	if err != nil {
		h.logger.Warn().Err(err).Str("candidate_id", candidate.ID).Msg("Resume text extraction failed")
		WriteError(w, err)
		return
	}
	if strings.TrimSpace(text) == "" {
		WriteDetail(w, http.StatusBadRequest, "resume contains no extractable text")
		return
	}

	candidate.ProfileText = text
	candidate.UpdatedAt = time.Now().UTC()

	if h.embedder != nil {
		if err := h.embedder.EmbedCandidate(ctx, candidate); err != nil {
			h.logger.Warn().Err(err).Str("candidate_id", candidate.ID).Msg("Candidate embedding failed after resume upload")
		}
	}

	if err := h.storage.Candidates().SaveCandidate(ctx, candidate); err != nil {
		WriteError(w, err)
		return
	}

	matchesCreated := 0
	if len(candidate.Embedding) > 0 {
		outcome, err := h.matcher.MatchCandidate(ctx, candidate, "", interfaces.MatchOptions{})
		if err != nil {
			h.logger.Warn().Err(err).Str("candidate_id", candidate.ID).Msg("Rematch after resume upload failed")
		} else {
			matchesCreated = len(outcome.Matches)
		}
	}

	h.logger.Info().
		Str("candidate_id", candidate.ID).
		Int("text_chars", len(text)).
		Int("matches", matchesCreated).
		Msg("Resume processed")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"candidate":       candidateView(candidate),
		"text_chars":      len(text),
		"matches_created": matchesCreated,
	})
}

// saveUpload writes the uploaded PDF to a temp file and returns its path
// with a cleanup func
func (h *CandidateHandler) saveUpload(r *http.Request) (string, func(), error) {
	var src io.Reader

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("resume")
		if err != nil {
			return "", nil, models.Errorf(models.ErrInvalidArgument, "multipart field \"resume\" is required: %v", err)
		}
		defer file.Close()
		src = file
	} else {
		src = r.Body
	}

	tmp, err := os.CreateTemp("", "jobhound-resume-*.pdf")
	if err != nil {
		return "", nil, models.Errorf(models.ErrInternal, "create temp file: %v", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, models.Errorf(models.ErrInvalidArgument, "read upload: %v", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, models.Errorf(models.ErrInternal, "write temp file: %v", err)
	}
	return tmp.Name(), cleanup, nil
}

// ListCandidateMatchesHandler handles GET /api/candidates/{id}/matches
// Query: min_score, page, page_size. Includes no_matches_reason when the
// result set is empty.
func (h *CandidateHandler) ListCandidateMatchesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	candidate, err := h.loadCandidate(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	minScore := QueryFloat(r, "min_score", 0)
	matches, err := h.storage.Matches().ListMatchesByCandidate(ctx, candidate.ID, minScore, 0)
	if err != nil {
		WriteError(w, err)
		return
	}

	page, pageSize := GetPaginationParams(r)
	total := len(matches)
	start, end := PageBounds(page, pageSize, total)

	items := make([]map[string]interface{}, 0, end-start)
	for _, match := range matches[start:end] {
		item := map[string]interface{}{"match": match}
		if job, err := h.storage.Jobs().GetJob(ctx, match.JobID); err == nil {
			item["job"] = newJobSummary(job)
		}
		if company, err := h.storage.Companies().GetCompany(ctx, match.CompanyID); err == nil {
			item["company"] = map[string]string{"id": company.ID, "name": company.Name, "domain": company.Domain}
		}
		items = append(items, item)
	}

	response := map[string]interface{}{
		"matches":   items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"has_more":  end < total,
	}
	if total == 0 {
		response["no_matches_reason"] = h.noMatchReason(ctx, candidate)
	}

	WriteJSON(w, http.StatusOK, response)
}

// noMatchReason explains an empty match set without re-running the
// matcher: catalog first, then vectors. Hard and score filtering cannot
// be told apart without a scan, so the score reason stands in for both.
func (h *CandidateHandler) noMatchReason(ctx context.Context, candidate *models.CandidateProfile) string {
	stats, err := h.storage.Jobs().GetJobStats(ctx)
	if err != nil {
		return ""
	}
	switch {
	case stats.Active == 0:
		return models.NoMatchEmptyCatalog
	case len(candidate.Embedding) == 0 || stats.Embedded == 0:
		return models.NoMatchNoVectorCandidates
	default:
		return models.NoMatchAllFilteredScore
	}
}

// MatchReportHandler handles GET /api/candidates/{id}/matches/report
// Renders the candidate's matches as a PDF
func (h *CandidateHandler) MatchReportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	candidate, err := h.loadCandidate(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	matches, err := h.storage.Matches().ListMatchesByCandidate(ctx, candidate.ID, 0, 0)
	if err != nil {
		WriteError(w, err)
		return
	}

	rows := make([]report.MatchReportRow, 0, len(matches))
	for _, match := range matches {
		job, err := h.storage.Jobs().GetJob(ctx, match.JobID)
		if err != nil {
			h.logger.Warn().Err(err).Str("job_id", match.JobID).Msg("Skipping match with missing job in report")
			continue
		}
		row := report.MatchReportRow{Match: match, Job: job}
		if company, err := h.storage.Companies().GetCompany(ctx, match.CompanyID); err == nil {
			row.Company = company
		}
		rows = append(rows, row)
	}

	markdown := report.BuildMatchReport(candidate, rows, time.Now().UTC())
	pdfBytes, err := h.pdf.ConvertMarkdownToPDF(markdown, "Match Report")
	if err != nil {
		h.logger.Error().Err(err).Str("candidate_id", candidate.ID).Msg("Match report rendering failed")
		WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=\"matches-"+candidate.ID+".pdf\"")
	w.WriteHeader(http.StatusOK)
	w.Write(pdfBytes)
}

// loadCandidate resolves the {id} path segment to a stored candidate
func (h *CandidateHandler) loadCandidate(r *http.Request) (*models.CandidateProfile, error) {
	id := PathSegment(r, 2)
	if id == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "candidate id is required")
	}
	return h.storage.Candidates().GetCandidate(r.Context(), id)
}

// candidateView strips the embedding vector from API responses
func candidateView(candidate *models.CandidateProfile) *models.CandidateProfile {
	view := *candidate
	view.Embedding = nil
	view.EmbeddingText = ""
	return &view
}

func toRoleFamilies(values []string) []models.RoleFamily {
	out := make([]models.RoleFamily, 0, len(values))
	for _, v := range values {
		out = append(out, models.RoleFamily(v))
	}
	return out
}

func toLocationTypes(values []string) []models.LocationType {
	out := make([]models.LocationType, 0, len(values))
	for _, v := range values {
		out = append(out, models.LocationType(v))
	}
	return out
}
