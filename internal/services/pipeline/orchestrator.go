package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// runFullPipeline composes discovery, per-vendor crawls, enrichment, and
// embeddings as sequential cascade sub-runs under this run's id.
// Matching stays outside the pipeline; it runs on candidate updates or
// its own trigger.
func (s *Service) runFullPipeline(ctx context.Context, run *models.PipelineRun, rl interfaces.RunLogger) (models.RunStats, error) {
	var total models.RunStats

	if !run.Params.SkipDiscovery {
		rl.Step("discovery", 0.05)
		stats, err := s.runChild(ctx, run, models.OpDiscovery, run.Params)
		mergeStats(&total, stats)
		if err != nil {
			return total, fmt.Errorf("discovery stage: %w", err)
		}
	}

	if !run.Params.SkipCrawl {
		if err := s.runCrawlCascade(ctx, run, rl, &total); err != nil {
			return total, err
		}
	}

	if !run.Params.SkipEnrichment {
		rl.Step("enrichment", 0.6)
		stats, err := s.runChild(ctx, run, models.OpEnrich, run.Params)
		mergeStats(&total, stats)
		if err != nil {
			return total, fmt.Errorf("enrichment stage: %w", err)
		}
	}

	if !run.Params.SkipEmbeddings {
		rl.Step("embeddings", 0.85)
		stats, err := s.runChild(ctx, run, models.OpEmbeddings, run.Params)
		mergeStats(&total, stats)
		if err != nil {
			return total, fmt.Errorf("embeddings stage: %w", err)
		}
	}

	rl.Info("Pipeline finished", map[string]interface{}{
		"companies_crawled": total.CompaniesCrawled,
		"jobs_extracted":    total.JobsExtracted,
		"jobs_enriched":     total.JobsEnriched,
		"jobs_embedded":     total.JobsEmbedded,
	})
	rl.Step("pipeline finished", 1)
	return total, nil
}

// runCrawlCascade runs one crawl sub-operation per vendor present in the
// eligible company set. A vendor failing does not block the others; only
// cancellation stops the cascade.
func (s *Service) runCrawlCascade(ctx context.Context, run *models.PipelineRun, rl interfaces.RunLogger, total *models.RunStats) error {
	companies, err := s.crawlScope(ctx, run.Params)
	if err != nil {
		return fmt.Errorf("crawl scope: %w", err)
	}
	vendors := vendorsInScope(companies)
	rl.Info("Crawl cascade resolved", map[string]interface{}{
		"vendors":   len(vendors),
		"companies": len(companies),
	})

	for i, ats := range vendors {
		if err := ctx.Err(); err != nil {
			return err
		}
		rl.Step(fmt.Sprintf("crawl %s", ats), 0.25+0.35*float64(i)/float64(len(vendors)))

		params := run.Params
		params.ATSType = ats
		stats, err := s.runChild(ctx, run, models.OpCrawlFor(ats), params)
		mergeStats(total, stats)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			rl.Warn("Crawl sub-run failed", map[string]interface{}{
				"ats_type": string(ats),
				"error":    err.Error(),
			})
		}
	}
	return nil
}

// runChild executes one cascade sub-operation synchronously under the
// parent's context, with its own run row and registry slot. Cancelling
// the parent cancels the child; the child's terminal state is written
// before control returns to the parent stage sequence.
func (s *Service) runChild(ctx context.Context, parent *models.PipelineRun, op models.RunOperation, params models.RunParams) (models.RunStats, error) {
	childCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	run, err := s.registerRun(childCtx, cancel, op, params, parent.TriggeredBy, parent.ID, true)
	if err != nil {
		return models.RunStats{}, err
	}

	rl := newRunLogger(run.ID, s.reg, s.deps.Runs, s.deps.Events, s.stepThrottle, s.logger)
	stats, err := s.guardedDispatch(childCtx, run, rl)
	s.finalize(run, stats, err)
	return stats, err
}

// vendorsInScope returns the distinct ATS types present, in stable order.
func vendorsInScope(companies []*models.Company) []models.ATSType {
	seen := make(map[models.ATSType]bool)
	var vendors []models.ATSType
	for _, company := range companies {
		if !seen[company.ATSType] {
			seen[company.ATSType] = true
			vendors = append(vendors, company.ATSType)
		}
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i] < vendors[j] })
	return vendors
}

func mergeStats(into *models.RunStats, from models.RunStats) {
	into.Processed += from.Processed
	into.Failed += from.Failed
	into.CompaniesTotal += from.CompaniesTotal
	into.CompaniesCrawled += from.CompaniesCrawled
	into.CompaniesUnchanged += from.CompaniesUnchanged
	into.SnapshotsStored += from.SnapshotsStored
	into.JobsExtracted += from.JobsExtracted
	into.JobsNormalized += from.JobsNormalized
	into.JobsEnriched += from.JobsEnriched
	into.JobsEmbedded += from.JobsEmbedded
	into.JobsVerified += from.JobsVerified
	into.JobsDelisted += from.JobsDelisted
	into.CandidatesEmbedded += from.CandidatesEmbedded
	into.MatchesCreated += from.MatchesCreated
	into.QueueEnqueued += from.QueueEnqueued
	into.QueueCompleted += from.QueueCompleted
}
