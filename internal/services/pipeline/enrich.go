package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// runEnrich backfills descriptions for raw postings whose listing
// extraction could not supply one, then rebuilds their canonical jobs.
// A failed detail fetch is stamped on the raw job; later runs inside the
// same full-pipeline window skip it instead of hammering a dead URL.
func (s *Service) runEnrich(ctx context.Context, run *models.PipelineRun, rl interfaces.RunLogger) (models.RunStats, error) {
	var stats models.RunStats

	window := s.enrichWindow(ctx)
	companies, err := s.enrichScope(ctx, run.Params)
	if err != nil {
		return stats, err
	}
	rl.Info("Enrichment scope resolved", map[string]interface{}{
		"companies": len(companies),
	})
	if len(companies) == 0 {
		rl.Step("enrichment finished", 1)
		return stats, nil
	}

	workers := s.cfg.Crawler.Workers
	if workers <= 0 {
		workers = 8
	}
	if workers > len(companies) {
		workers = len(companies)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	queue := make(chan *models.Company)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for company := range queue {
				attempted, enriched, failed := s.enrichCompany(ctx, company, window, run.Params.Force, rl)

				mu.Lock()
				done++
				stats.Processed += attempted
				stats.JobsEnriched += enriched
				stats.Failed += failed
				progress := float64(done) / float64(len(companies))
				mu.Unlock()

				rl.Step(fmt.Sprintf("enrich %s", company.Name), progress)
			}
		}()
	}

feed:
	for _, company := range companies {
		select {
		case <-ctx.Done():
			break feed
		case queue <- company:
		}
	}
	close(queue)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	rl.Info("Enrichment finished", map[string]interface{}{
		"enriched": stats.JobsEnriched,
		"failed":   stats.Failed,
	})
	rl.Step("enrichment finished", 1)
	return stats, nil
}

// enrichWindow returns the start of the most recent full-pipeline run.
// Failures stamped inside the window are skipped; older ones retry. The
// zero time means no full pipeline has run yet, so nothing is skipped.
func (s *Service) enrichWindow(ctx context.Context) time.Time {
	latest, err := s.deps.Runs.GetLatestRunByOperation(ctx, models.OpFullPipeline)
	if err != nil {
		return time.Time{}
	}
	return latest.StartedAt
}

func (s *Service) enrichScope(ctx context.Context, params models.RunParams) ([]*models.Company, error) {
	if len(params.CompanyIDs) > 0 {
		companies := make([]*models.Company, 0, len(params.CompanyIDs))
		for _, id := range params.CompanyIDs {
			company, err := s.deps.Companies.GetCompany(ctx, id)
			if err != nil {
				s.logger.Warn().Str("company_id", id).Msg("Skipping unknown company in enrichment scope")
				continue
			}
			companies = append(companies, company)
		}
		return companies, nil
	}

	active := true
	return s.deps.Companies.ListCompanies(ctx, &interfaces.CompanyFilter{IsActive: &active})
}

func (s *Service) enrichCompany(ctx context.Context, company *models.Company, window time.Time, force bool, rl interfaces.RunLogger) (attempted, enriched, failed int) {
	raws, err := s.deps.RawJobs.ListRawJobsByCompany(ctx, company.ID)
	if err != nil {
		rl.Warn("Failed to list raw jobs for enrichment", map[string]interface{}{
			"company": company.Name,
			"error":   err.Error(),
		})
		return 0, 0, 0
	}

	for _, raw := range raws {
		if ctx.Err() != nil {
			return attempted, enriched, failed
		}
		if raw.DescriptionRaw != "" {
			continue
		}
		if !force && raw.EnrichFailedAt != nil && !window.IsZero() && !raw.EnrichFailedAt.Before(window) {
			continue
		}

		attempted++
		now := time.Now().UTC()
		if err := s.deps.Enricher.Enrich(ctx, raw, company); err != nil {
			raw.EnrichFailedAt = &now
			raw.UpdatedAt = now
			if serr := s.deps.RawJobs.SaveRawJob(ctx, raw); serr != nil {
				s.logger.Warn().Err(serr).Str("raw_job_id", raw.ID).Msg("Failed to record enrichment failure")
			}
			failed++
			continue
		}

		// The description changed, so the canonical job is stale until
		// re-normalized. Save the raw first: a normalization error must
		// not lose the fetched description.
		raw.EnrichFailedAt = nil
		raw.NormalizedAt = nil
		raw.UpdatedAt = now
		if err := s.deps.RawJobs.SaveRawJob(ctx, raw); err != nil {
			s.logger.Warn().Err(err).Str("raw_job_id", raw.ID).Msg("Failed to save enriched raw job")
			failed++
			continue
		}
		if err := s.normalizeRaw(ctx, raw); err != nil {
			s.logger.Warn().Err(err).Str("raw_job_id", raw.ID).Msg("Re-normalization after enrichment failed")
		}
		enriched++
	}
	return attempted, enriched, failed
}
