package models

import (
	"time"
)

// MaintenanceCompanyResult is one company's outcome in a maintenance run
type MaintenanceCompanyResult struct {
	CompanyID   string `json:"company_id"`
	CompanyName string `json:"company_name"`
	JobsChecked int    `json:"jobs_checked"`
	Verified    int    `json:"verified"`
	Delisted    int    `json:"delisted"`
	Deactivated bool   `json:"deactivated,omitempty"`
	Error       string `json:"error,omitempty"`
}

// MaintenanceReport summarizes a maintenance run for the run record and
// the rendered PDF report
type MaintenanceReport struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	CompaniesChecked     int `json:"companies_checked"`
	JobsVerified         int `json:"jobs_verified"`
	JobsDelisted         int `json:"jobs_delisted"`
	CompaniesDeactivated int `json:"companies_deactivated"`

	Results []MaintenanceCompanyResult `json:"results,omitempty"`
}
