package models

import (
	"time"
)

// ATSType identifies the applicant tracking system vendor a company uses
type ATSType string

const (
	ATSGreenhouse ATSType = "greenhouse"
	ATSLever      ATSType = "lever"
	ATSAshby      ATSType = "ashby"
	ATSWorkable   ATSType = "workable"
	ATSWorkday    ATSType = "workday"
	ATSCustom     ATSType = "custom"
	ATSUnknown    ATSType = "unknown"
)

// IsKnownVendor reports whether the type has a structured board API
func (t ATSType) IsKnownVendor() bool {
	switch t {
	case ATSGreenhouse, ATSLever, ATSAshby, ATSWorkable, ATSWorkday:
		return true
	}
	return false
}

// Company represents an employer whose job board is crawled.
// Companies are never deleted, only deactivated.
type Company struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Domain     string `json:"domain,omitempty"` // normalized, unique when present
	WebsiteURL string `json:"website_url,omitempty"`
	CareersURL string `json:"careers_url,omitempty"`

	// ATS fields, written only by the detector
	ATSType       ATSType `json:"ats_type"`
	ATSIdentifier string  `json:"ats_identifier,omitempty"`

	// Crawl state
	CrawlPriority     int        `json:"crawl_priority"` // 0-100, higher first
	IsActive          bool       `json:"is_active"`
	CrawlAttempts     int        `json:"crawl_attempts"`
	LastCrawledAt     *time.Time `json:"last_crawled_at,omitempty"`
	LastMaintenanceAt *time.Time `json:"last_maintenance_at,omitempty"`
	// NotFoundStreak counts consecutive not_found results on the careers
	// URL; maintenance deactivates the company when it reaches the limit
	NotFoundStreak int `json:"not_found_streak,omitempty"`

	// Discovery metadata
	Source        string `json:"source,omitempty"` // discovery source tag
	Location      string `json:"location,omitempty"`
	Country       string `json:"country,omitempty"`
	Industry      string `json:"industry,omitempty"`
	EmployeeCount string `json:"employee_count,omitempty"`
	FundingStage  string `json:"funding_stage,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompanyStats summarizes the company catalog for status endpoints
type CompanyStats struct {
	Total     int             `json:"total"`
	Active    int             `json:"active"`
	Crawled   int             `json:"crawled"`
	ByATSType map[ATSType]int `json:"by_ats_type"`
	BySource  map[string]int  `json:"by_source"`
}
