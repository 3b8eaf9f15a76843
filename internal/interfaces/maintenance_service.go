package interfaces

import (
	"context"

	"github.com/ternarybob/jobhound/internal/models"
)

// MaintenanceService re-verifies the active catalog against live ATS
// listings, delisting jobs that disappeared and deactivating companies
// whose careers pages are gone
type MaintenanceService interface {
	// Run verifies companies due for re-verification. Params.CompanyIDs
	// narrows the set; Params.Force ignores the due window. The report
	// carries per-company outcomes.
	Run(ctx context.Context, params models.RunParams, rl RunLogger) (*models.MaintenanceReport, error)
}
