package models

import (
	"time"
)

// RoleFamily is the coarse job-function category
type RoleFamily string

const (
	RoleSoftwareEngineering   RoleFamily = "software_engineering"
	RoleInfrastructure        RoleFamily = "infrastructure"
	RoleData                  RoleFamily = "data"
	RoleProduct               RoleFamily = "product"
	RoleDesign                RoleFamily = "design"
	RoleEngineeringManagement RoleFamily = "engineering_management"
	RoleSales                 RoleFamily = "sales"
	RoleMarketing             RoleFamily = "marketing"
	RoleCustomerSuccess       RoleFamily = "customer_success"
	RoleOperations            RoleFamily = "operations"
	RolePeople                RoleFamily = "people"
	RoleFinance               RoleFamily = "finance"
	RoleLegal                 RoleFamily = "legal"
	RoleOther                 RoleFamily = "other"
)

// Seniority is the experience level inferred from a job title or description.
// An empty value means the level could not be determined.
type Seniority string

const (
	SeniorityIntern    Seniority = "intern"
	SeniorityJunior    Seniority = "junior"
	SeniorityMid       Seniority = "mid"
	SenioritySenior    Seniority = "senior"
	SeniorityStaff     Seniority = "staff"
	SeniorityPrincipal Seniority = "principal"
	SeniorityDirector  Seniority = "director"
	SeniorityVP        Seniority = "vp"
	SeniorityCLevel    Seniority = "c_level"
)

// SeniorityOrder defines the one-step adjacency scale used by the matcher
var SeniorityOrder = []Seniority{
	SeniorityIntern,
	SeniorityJunior,
	SeniorityMid,
	SenioritySenior,
	SeniorityStaff,
	SeniorityPrincipal,
	SeniorityDirector,
	SeniorityVP,
	SeniorityCLevel,
}

// SeniorityRank returns the position on the adjacency scale, -1 when unknown
func SeniorityRank(s Seniority) int {
	for i, v := range SeniorityOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// LocationType classifies where the work happens
type LocationType string

const (
	LocationRemote LocationType = "remote"
	LocationHybrid LocationType = "hybrid"
	LocationOnsite LocationType = "onsite"
)

// EmploymentType classifies the engagement model
type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full_time"
	EmploymentPartTime   EmploymentType = "part_time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentFreelance  EmploymentType = "freelance"
	EmploymentInternship EmploymentType = "internship"
)

// DelistReason records why a job left the active catalog
const (
	DelistRemovedFromATS  = "removed_from_ats"
	DelistPageNotFound    = "page_not_found"
	DelistCompanyInactive = "company_inactive"
)

// RawJob is a job record exactly as observed from the source.
// (CompanyID, SourceURL) is unique; re-extraction overwrites the raw
// fields but preserves the ID.
type RawJob struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	SourceURL string `json:"source_url"`

	TitleRaw       string `json:"title_raw"`
	DescriptionRaw string `json:"description_raw,omitempty"`
	LocationRaw    string `json:"location_raw,omitempty"`
	DepartmentRaw  string `json:"department_raw,omitempty"`
	EmploymentRaw  string `json:"employment_raw,omitempty"`
	SalaryRaw      string `json:"salary_raw,omitempty"`
	PostedAtRaw    string `json:"posted_at_raw,omitempty"`

	// JobID links to the canonical derivative once normalized
	JobID string `json:"job_id,omitempty"`
	// EnrichFailedAt marks a failed detail fetch; runs inside the same
	// full-pipeline window skip the job instead of retrying
	EnrichFailedAt *time.Time `json:"enrich_failed_at,omitempty"`
	NormalizedAt   *time.Time `json:"normalized_at,omitempty"`

	ExtractedAt time.Time `json:"extracted_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Job is the canonical, normalized job record.
// (CompanyID, SourceURL) is unique.
type Job struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	RawJobID  string `json:"raw_job_id,omitempty"`
	SourceURL string `json:"source_url"`

	Title              string         `json:"title"`
	Description        string         `json:"description,omitempty"` // markdown
	RoleFamily         RoleFamily     `json:"role_family"`
	RoleSpecialization string         `json:"role_specialization,omitempty"`
	Seniority          Seniority      `json:"seniority,omitempty"`
	LocationType       LocationType   `json:"location_type,omitempty"`
	Locations          []string       `json:"locations,omitempty"`
	Skills             []string       `json:"skills,omitempty"`
	MinSalary          *int           `json:"min_salary,omitempty"`
	MaxSalary          *int           `json:"max_salary,omitempty"`
	EmploymentType     EmploymentType `json:"employment_type,omitempty"`

	PostedAt       *time.Time `json:"posted_at,omitempty"`
	FreshnessScore float64    `json:"freshness_score"`

	// Embedding is the 384-dim vector, absent until the embedding stage runs
	Embedding      []float32 `json:"embedding,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	// EmbeddingText is the exact input text the vector was generated from,
	// kept so regeneration only happens when the inputs change
	EmbeddingText string `json:"embedding_text,omitempty"`

	IsActive       bool       `json:"is_active"`
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`
	DelistedAt     *time.Time `json:"delisted_at,omitempty"`
	DelistReason   string     `json:"delist_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FreshnessHalfLifeDays is the decay half-life for the freshness score
const FreshnessHalfLifeDays = 7.0

// JobStats summarizes the catalog for status endpoints
type JobStats struct {
	Total    int                `json:"total"`
	Active   int                `json:"active"`
	Embedded int                `json:"embedded"`
	ByFamily map[RoleFamily]int `json:"by_family"`
}
