package models

import (
	"time"
)

// DiscoveryStatus is the processing state of a discovery queue item
type DiscoveryStatus string

const (
	DiscoveryPending    DiscoveryStatus = "pending"
	DiscoveryProcessing DiscoveryStatus = "processing"
	DiscoveryCompleted  DiscoveryStatus = "completed"
	DiscoveryFailed     DiscoveryStatus = "failed"
	DiscoverySkipped    DiscoveryStatus = "skipped"
	DiscoveryReview     DiscoveryStatus = "review"
)

// Discovery source names. Each maps to a Source implementation registered
// with the discovery service.
const (
	SourceSeedFile       = "seed_file"
	SourceATSDirectories = "ats_directories"
	SourceYCCompanies    = "yc_companies"
	SourceGitHubOrgs     = "github_orgs"
	SourceEmailAlerts    = "email_alerts"
	SourceManual         = "manual"
)

// CompanyCandidate is a raw lead produced by a discovery source before
// dedupe and ATS detection
type CompanyCandidate struct {
	Name       string `json:"name"`
	Domain     string `json:"domain,omitempty"`
	WebsiteURL string `json:"website_url,omitempty"`
	CareersURL string `json:"careers_url,omitempty"`
	// ATSType and ATSIdentifier are set when the source already knows the
	// vendor, e.g. a board URL from an email alert
	ATSType       ATSType `json:"ats_type,omitempty"`
	ATSIdentifier string  `json:"ats_identifier,omitempty"`
	Source        string  `json:"source"`
	Location      string  `json:"location,omitempty"`
	Country       string  `json:"country,omitempty"`
	Industry      string  `json:"industry,omitempty"`
	EmployeeCount int     `json:"employee_count,omitempty"`
	FundingStage  string  `json:"funding_stage,omitempty"`
}

// DiscoveryQueueItem tracks a company candidate through vetting. Items
// that fail transiently are retried up to a cap; items whose ATS cannot
// be determined land in review for an operator decision.
type DiscoveryQueueItem struct {
	ID        string           `json:"id"`
	Candidate CompanyCandidate `json:"candidate"`
	// NormDomain and NormName are dedupe keys computed at enqueue time
	NormDomain string          `json:"norm_domain,omitempty"`
	NormName   string          `json:"norm_name,omitempty"`
	Status     DiscoveryStatus `json:"status"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
	// CompanyID is set when processing created or matched a company
	CompanyID   string     `json:"company_id,omitempty"`
	SkipReason  string     `json:"skip_reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// DiscoveryStats summarizes queue state for the admin endpoints
type DiscoveryStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Review     int `json:"review"`
}
