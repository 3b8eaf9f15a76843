package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
	"github.com/ternarybob/jobhound/internal/services/report"
)

// runDiscovery executes the configured sources and vets the queue they
// filled. SourceNames narrows the source set; QueueLimit caps vetting.
func (s *Service) runDiscovery(ctx context.Context, run *models.PipelineRun, rl interfaces.RunLogger) (models.RunStats, error) {
	var stats models.RunStats

	rl.Step("running discovery sources", 0.1)
	enqueued, err := s.deps.Discovery.RunSources(ctx, run.Params.SourceNames)
	stats.QueueEnqueued = enqueued
	if err != nil {
		return stats, err
	}
	rl.Info("Discovery sources finished", map[string]interface{}{
		"enqueued": enqueued,
	})

	rl.Step("vetting discovery queue", 0.5)
	created, failed, err := s.deps.Discovery.ProcessQueue(ctx, run.Params.QueueLimit)
	stats.QueueCompleted = created
	stats.Processed = created + failed
	stats.Failed = failed
	if err != nil {
		return stats, err
	}

	rl.Info("Discovery queue vetted", map[string]interface{}{
		"created": created,
		"failed":  failed,
	})
	rl.Step("discovery finished", 1)
	return stats, nil
}

// runMatch scores candidates against the active catalog. Named
// candidates narrow the set; otherwise every active candidate is
// matched.
func (s *Service) runMatch(ctx context.Context, run *models.PipelineRun, rl interfaces.RunLogger) (models.RunStats, error) {
	var stats models.RunStats

	var candidates []*models.CandidateProfile
	if len(run.Params.CandidateIDs) > 0 {
		for _, id := range run.Params.CandidateIDs {
			candidate, err := s.deps.Candidates.GetCandidate(ctx, id)
			if err != nil {
				rl.Warn("Skipping unknown candidate", map[string]interface{}{"candidate_id": id})
				continue
			}
			candidates = append(candidates, candidate)
		}
	} else {
		all, err := s.deps.Candidates.ListCandidates(ctx, true, 0, 0)
		if err != nil {
			return stats, err
		}
		candidates = all
	}

	rl.Info("Match scope resolved", map[string]interface{}{
		"candidates": len(candidates),
	})

	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rl.Step(fmt.Sprintf("match %s", candidate.Email), float64(i)/float64(len(candidates)))

		outcome, err := s.deps.Matcher.MatchCandidate(ctx, candidate, run.ID, interfaces.MatchOptions{})
		stats.Processed++
		if err != nil {
			stats.Failed++
			rl.Warn("Matching failed", map[string]interface{}{
				"candidate_id": candidate.ID,
				"error":        err.Error(),
			})
			continue
		}
		stats.MatchesCreated += len(outcome.Matches)
	}

	rl.Info("Matching finished", map[string]interface{}{
		"candidates": stats.Processed,
		"matches":    stats.MatchesCreated,
		"failed":     stats.Failed,
	})
	rl.Step("matching finished", 1)
	return stats, nil
}

// runMaintenance delegates to the maintenance service, folds its report
// into the run counters, and runs snapshot retention afterwards.
func (s *Service) runMaintenance(ctx context.Context, run *models.PipelineRun, rl interfaces.RunLogger) (models.RunStats, error) {
	var stats models.RunStats

	mr, err := s.deps.Maintenance.Run(ctx, run.Params, rl)
	if mr != nil {
		mr.RunID = run.ID
		stats.Processed = mr.CompaniesChecked
		stats.JobsVerified = mr.JobsVerified
		stats.JobsDelisted = mr.JobsDelisted
	}
	if err == nil && mr != nil {
		s.pruneSnapshots(ctx, mr, rl)
		s.writeMaintenanceReport(run.ID, mr, rl)
	}
	return stats, err
}

// pruneSnapshots drops all snapshots of companies the run deactivated,
// then ages out old snapshots past the retention window. The newest
// snapshot per URL survives pruning so change detection keeps working.
func (s *Service) pruneSnapshots(ctx context.Context, mr *models.MaintenanceReport, rl interfaces.RunLogger) {
	for _, result := range mr.Results {
		if !result.Deactivated {
			continue
		}
		if err := s.deps.Snapshots.DeleteSnapshotsByCompany(ctx, result.CompanyID); err != nil {
			rl.Warn("Failed to drop snapshots of deactivated company", map[string]interface{}{
				"company_id": result.CompanyID,
				"error":      err.Error(),
			})
		}
	}

	days := s.cfg.Maintenance.SnapshotRetentionDays
	if days <= 0 {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	pruned, err := s.deps.Snapshots.PruneSnapshots(ctx, cutoff)
	if err != nil {
		rl.Warn("Snapshot pruning failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if pruned > 0 {
		rl.Info("Pruned expired snapshots", map[string]interface{}{"pruned": pruned})
	}
}

// writeMaintenanceReport renders the run summary to a PDF when a report
// directory is configured. A render failure is logged, never fatal: the
// maintenance itself already succeeded.
func (s *Service) writeMaintenanceReport(runID string, mr *models.MaintenanceReport, rl interfaces.RunLogger) {
	dir := s.cfg.Maintenance.ReportDir
	if dir == "" || s.deps.Reports == nil {
		return
	}

	markdown := report.BuildMaintenanceReport(mr)
	pdf, err := s.deps.Reports.ConvertMarkdownToPDF(markdown, "Maintenance Report")
	if err != nil {
		rl.Warn("Failed to render maintenance report", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		rl.Warn("Failed to create report directory", map[string]interface{}{"error": err.Error()})
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("maintenance-%s.pdf", runID))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		rl.Warn("Failed to write maintenance report", map[string]interface{}{"error": err.Error()})
		return
	}
	rl.Info("Maintenance report written", map[string]interface{}{"path": path})
}
