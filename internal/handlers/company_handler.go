package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// CompanyHandler serves the company catalog and admin imports
type CompanyHandler struct {
	storage   interfaces.StorageManager
	discovery interfaces.DiscoveryService
	validate  *validator.Validate
	logger    arbor.ILogger
}

func NewCompanyHandler(storage interfaces.StorageManager, discovery interfaces.DiscoveryService, logger arbor.ILogger) *CompanyHandler {
	return &CompanyHandler{
		storage:   storage,
		discovery: discovery,
		validate:  validator.New(),
		logger:    logger,
	}
}

// companyCreate is the POST /api/admin/companies payload
type companyCreate struct {
	Name          string `json:"name" validate:"required"`
	Domain        string `json:"domain"`
	WebsiteURL    string `json:"website_url" validate:"omitempty,url"`
	CareersURL    string `json:"careers_url" validate:"omitempty,url"`
	ATSType       string `json:"ats_type" validate:"omitempty,oneof=greenhouse lever ashby workable workday custom unknown"`
	ATSIdentifier string `json:"ats_identifier"`
	CrawlPriority int    `json:"crawl_priority" validate:"min=0,max=100"`
	Location      string `json:"location"`
	Country       string `json:"country"`
	Industry      string `json:"industry"`
}

// importEntry mirrors the YAML seed file row shape
type importEntry struct {
	Name          string `yaml:"name"`
	Domain        string `yaml:"domain"`
	WebsiteURL    string `yaml:"website_url"`
	CareersURL    string `yaml:"careers_url"`
	ATSType       string `yaml:"ats_type"`
	ATSIdentifier string `yaml:"ats_identifier"`
	Location      string `yaml:"location"`
	Country       string `yaml:"country"`
	Industry      string `yaml:"industry"`
}

type importDocument struct {
	Companies []importEntry `yaml:"companies"`
}

// ListCompaniesHandler handles GET /api/companies
// Query: ats_type, is_active, source, country, page, page_size
func (h *CompanyHandler) ListCompaniesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	q := r.URL.Query()
	filter := &interfaces.CompanyFilter{
		ATSType:  models.ATSType(q.Get("ats_type")),
		Source:   q.Get("source"),
		Country:  q.Get("country"),
		IsActive: QueryBool(r, "is_active"),
	}

	companies, err := h.storage.Companies().ListCompanies(ctx, filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list companies")
		WriteError(w, err)
		return
	}

	page, pageSize := GetPaginationParams(r)
	total := len(companies)
	start, end := PageBounds(page, pageSize, total)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"companies": companies[start:end],
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"has_more":  end < total,
	})
}

// GetCompanyHandler handles GET /api/companies/{id}
func (h *CompanyHandler) GetCompanyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := PathSegment(r, 2)
	if id == "" {
		WriteDetail(w, http.StatusBadRequest, "company id is required")
		return
	}

	company, err := h.storage.Companies().GetCompany(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, company)
}

// CreateCompanyHandler handles POST /api/admin/companies
// Creates a company directly, bypassing the discovery queue
func (h *CompanyHandler) CreateCompanyHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	var req companyCreate
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	atsType := models.ATSType(req.ATSType)
	if atsType == "" {
		atsType = models.ATSUnknown
	}
	if atsType.IsKnownVendor() && req.ATSIdentifier == "" {
		WriteDetail(w, http.StatusBadRequest, "ats_identifier is required for ats_type "+req.ATSType)
		return
	}

	domain := common.NormalizeDomain(req.Domain)
	if domain == "" && req.WebsiteURL != "" {
		domain = common.RegistrableHost(req.WebsiteURL)
	}
	if domain != "" {
		if existing, err := h.storage.Companies().GetCompanyByDomain(ctx, domain); err == nil {
			WriteDetail(w, http.StatusConflict, "company with domain "+domain+" already exists: "+existing.ID)
			return
		} else if !models.IsNotFound(err) {
			WriteError(w, err)
			return
		}
	}

	now := time.Now().UTC()
	company := &models.Company{
		ID:            common.NewID(),
		Name:          strings.TrimSpace(req.Name),
		Domain:        domain,
		WebsiteURL:    req.WebsiteURL,
		CareersURL:    req.CareersURL,
		ATSType:       atsType,
		ATSIdentifier: req.ATSIdentifier,
		CrawlPriority: req.CrawlPriority,
		IsActive:      true,
		Source:        models.SourceManual,
		Location:      req.Location,
		Country:       req.Country,
		Industry:      req.Industry,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.storage.Companies().SaveCompany(ctx, company); err != nil {
		h.logger.Error().Err(err).Str("name", company.Name).Msg("Failed to create company")
		WriteError(w, err)
		return
	}

	h.logger.Info().Str("company_id", company.ID).Str("ats_type", string(atsType)).Msg("Company created")
	WriteJSON(w, http.StatusCreated, company)
}

// ImportCompaniesHandler handles POST /api/admin/companies/import
// Accepts the YAML seed format and enqueues entries through discovery so
// they get the same dedupe and vetting as any other source
func (h *CompanyHandler) ImportCompaniesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteDetail(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) == 0 {
		WriteDetail(w, http.StatusBadRequest, "request body is required")
		return
	}

	// Accept both a top-level companies: key and a bare list
	var doc importDocument
	if err := yaml.Unmarshal(body, &doc); err != nil {
		if listErr := yaml.Unmarshal(body, &doc.Companies); listErr != nil {
			WriteDetail(w, http.StatusBadRequest, "invalid YAML: "+err.Error())
			return
		}
	}

	candidates := make([]models.CompanyCandidate, 0, len(doc.Companies))
	for _, entry := range doc.Companies {
		if strings.TrimSpace(entry.Name) == "" {
			continue
		}
		candidates = append(candidates, models.CompanyCandidate{
			Name:          strings.TrimSpace(entry.Name),
			Domain:        entry.Domain,
			WebsiteURL:    entry.WebsiteURL,
			CareersURL:    entry.CareersURL,
			ATSType:       models.ATSType(entry.ATSType),
			ATSIdentifier: entry.ATSIdentifier,
			Source:        models.SourceManual,
			Location:      entry.Location,
			Country:       entry.Country,
			Industry:      entry.Industry,
		})
	}

	if len(candidates) == 0 {
		WriteDetail(w, http.StatusBadRequest, "no companies found in payload")
		return
	}

	enqueued, err := h.discovery.Enqueue(ctx, candidates)
	if err != nil {
		h.logger.Error().Err(err).Msg("Company import enqueue failed")
		WriteError(w, err)
		return
	}

	h.logger.Info().Int("parsed", len(candidates)).Int("enqueued", enqueued).Msg("Companies imported")
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"parsed":   len(candidates),
		"enqueued": enqueued,
	})
}
