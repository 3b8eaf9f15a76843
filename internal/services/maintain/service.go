package maintain

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// Service re-verifies the active catalog against live boards. A company
// is due when its last verification is older than the refresh window;
// the extractor re-reads the listing and jobs missing from it are
// delisted. Careers pages that stay gone across consecutive runs
// deactivate the company.
type Service struct {
	cfg        *common.Config
	companies  interfaces.CompanyStorage
	jobs       interfaces.JobStorage
	extractors interfaces.ExtractorRegistry
	logger     arbor.ILogger
	now        func() time.Time
}

func NewService(
	cfg *common.Config,
	companies interfaces.CompanyStorage,
	jobs interfaces.JobStorage,
	extractors interfaces.ExtractorRegistry,
	logger arbor.ILogger,
) interfaces.MaintenanceService {
	return &Service{
		cfg:        cfg,
		companies:  companies,
		jobs:       jobs,
		extractors: extractors,
		logger:     logger,
		now:        time.Now,
	}
}

// Run verifies every due company and returns the per-company report.
// Params.CompanyIDs narrows the set to the named companies; Params.Force
// ignores the due window.
func (s *Service) Run(ctx context.Context, params models.RunParams, rl interfaces.RunLogger) (*models.MaintenanceReport, error) {
	report := &models.MaintenanceReport{StartedAt: s.now().UTC()}

	companies, err := s.dueCompanies(ctx, params)
	if err != nil {
		return nil, err
	}
	rl.Info("Maintenance scope resolved", map[string]interface{}{"companies": len(companies)})

	for i, company := range companies {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rl.Step(fmt.Sprintf("verify %s", company.Name), float64(i)/float64(len(companies)))

		result := s.verifyCompany(ctx, company)
		report.Results = append(report.Results, *result)
		report.CompaniesChecked++
		report.JobsVerified += result.Verified
		report.JobsDelisted += result.Delisted
		if result.Deactivated {
			report.CompaniesDeactivated++
		}
		if result.Error != "" {
			rl.Warn("Company verification failed", map[string]interface{}{
				"company": company.Name,
				"error":   result.Error,
			})
		}
	}

	report.CompletedAt = s.now().UTC()
	rl.Info("Maintenance finished", map[string]interface{}{
		"companies_checked":     report.CompaniesChecked,
		"jobs_verified":         report.JobsVerified,
		"jobs_delisted":         report.JobsDelisted,
		"companies_deactivated": report.CompaniesDeactivated,
	})
	return report, nil
}

// dueCompanies resolves the verification set. Named companies are taken
// as-is so operators can re-check a board regardless of the window.
func (s *Service) dueCompanies(ctx context.Context, params models.RunParams) ([]*models.Company, error) {
	if len(params.CompanyIDs) > 0 {
		companies := make([]*models.Company, 0, len(params.CompanyIDs))
		for _, id := range params.CompanyIDs {
			company, err := s.companies.GetCompany(ctx, id)
			if err != nil {
				s.logger.Warn().Err(err).Str("company_id", id).Msg("Skipping unknown company")
				continue
			}
			companies = append(companies, company)
		}
		return companies, nil
	}

	cutoff := s.now()
	if !params.Force {
		cutoff = cutoff.AddDate(0, 0, -s.cfg.Maintenance.VerifyRefreshDays)
	}
	return s.companies.ListDueForMaintenance(ctx, cutoff, 0)
}

// verifyCompany re-reads one board and reconciles the active jobs
// against it. Errors are carried on the result rather than returned so
// one broken board does not stop the run.
func (s *Service) verifyCompany(ctx context.Context, company *models.Company) *models.MaintenanceCompanyResult {
	result := &models.MaintenanceCompanyResult{CompanyID: company.ID, CompanyName: company.Name}

	active, err := s.jobs.ListActiveJobsByCompany(ctx, company.ID)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.JobsChecked = len(active)

	extractor, err := s.extractors.For(company.ATSType)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	raws, err := extractor.ListJobs(ctx, company)
	if err != nil {
		if models.IsNotFound(err) {
			s.handleMissingBoard(ctx, company, active, result)
			return result
		}
		// Transient fetch or extraction failures leave the catalog and the
		// due window untouched so the company is retried next run
		result.Error = err.Error()
		return result
	}

	if company.ATSType == models.ATSCustom && len(raws) == 0 && len(active) > 0 {
		// An LLM read that finds nothing on a board that had jobs is more
		// likely a page-shape change than a mass takedown
		result.Error = "custom extraction returned no jobs, keeping catalog"
		s.touchCompany(ctx, company, 0)
		return result
	}

	present := make(map[string]bool, len(raws))
	for _, raw := range raws {
		present[raw.SourceURL] = true
	}

	now := s.now().UTC()
	for _, job := range active {
		if present[job.SourceURL] {
			job.LastVerifiedAt = &now
			if err := s.jobs.SaveJob(ctx, job); err != nil {
				s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to record verification")
				continue
			}
			result.Verified++
		} else {
			if err := s.jobs.DelistJob(ctx, job.ID, models.DelistRemovedFromATS); err != nil {
				s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to delist job")
				continue
			}
			result.Delisted++
		}
	}

	s.touchCompany(ctx, company, 0)

	s.logger.Info().
		Str("company", company.Name).
		Int("checked", result.JobsChecked).
		Int("verified", result.Verified).
		Int("delisted", result.Delisted).
		Msg("Verified company catalog")
	return result
}

// handleMissingBoard reacts to a careers URL that no longer resolves.
// The first miss delists the active jobs; a second consecutive miss
// deactivates the company itself.
func (s *Service) handleMissingBoard(ctx context.Context, company *models.Company, active []*models.Job, result *models.MaintenanceCompanyResult) {
	streak := company.NotFoundStreak + 1
	result.Error = fmt.Sprintf("careers page not found (streak %d)", streak)
	reason := models.DelistPageNotFound
	if streak >= s.cfg.Maintenance.NotFoundStreak {
		reason = models.DelistCompanyInactive
		company.IsActive = false
		result.Deactivated = true
	}

	for _, job := range active {
		if err := s.jobs.DelistJob(ctx, job.ID, reason); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to delist job")
			continue
		}
		result.Delisted++
	}

	s.touchCompany(ctx, company, streak)

	s.logger.Warn().
		Str("company", company.Name).
		Int("streak", streak).
		Bool("deactivated", result.Deactivated).
		Msg("Careers page not found")
}

// touchCompany records the verification attempt. A definitive outcome,
// including a missing board, moves the due window forward.
func (s *Service) touchCompany(ctx context.Context, company *models.Company, streak int) {
	now := s.now().UTC()
	company.LastMaintenanceAt = &now
	company.NotFoundStreak = streak
	company.UpdatedAt = now
	if err := s.companies.SaveCompany(ctx, company); err != nil {
		s.logger.Warn().Err(err).Str("company", company.Name).Msg("Failed to update maintenance state")
	}
}
