package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// embedChunk bounds how many jobs one EmbedJobs call covers so progress
// checkpoints land between provider round trips.
const embedChunk = 100

// runEmbeddings generates vectors for active jobs without one and for
// candidates whose embedding inputs changed.
func (s *Service) runEmbeddings(ctx context.Context, run *models.PipelineRun, rl interfaces.RunLogger) (models.RunStats, error) {
	var stats models.RunStats

	if s.deps.Embedder == nil {
		return stats, models.Errorf(models.ErrInternal, "embedding provider not configured")
	}
	if !s.deps.Embedder.IsAvailable(ctx) {
		return stats, models.Errorf(models.ErrInternal, "embedding provider unavailable")
	}

	jobs, err := s.deps.Jobs.ListUnembedded(ctx, 0)
	if err != nil {
		return stats, err
	}
	rl.Info("Embedding scope resolved", map[string]interface{}{
		"jobs":  len(jobs),
		"model": s.deps.Embedder.ModelName(),
	})

	for start := 0; start < len(jobs); start += embedChunk {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := start + embedChunk
		if end > len(jobs) {
			end = len(jobs)
		}
		chunk := jobs[start:end]

		if err := s.deps.Embedder.EmbedJobs(ctx, chunk); err != nil {
			stats.Failed += len(chunk)
			return stats, err
		}
		for _, job := range chunk {
			stats.Processed++
			if len(job.Embedding) == 0 {
				// No embeddable content; leave it for a future pass
				continue
			}
			if err := s.deps.Jobs.SaveJob(ctx, job); err != nil {
				s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to save job embedding")
				stats.Failed++
				continue
			}
			stats.JobsEmbedded++
		}
		rl.Step(fmt.Sprintf("embedded %d of %d jobs", end, len(jobs)), float64(end)/float64(len(jobs)+1))
	}

	candidates, err := s.deps.Candidates.ListCandidates(ctx, true, 0, 0)
	if err != nil {
		return stats, err
	}
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		before := candidate.EmbeddingText
		if err := s.deps.Embedder.EmbedCandidate(ctx, candidate); err != nil {
			s.logger.Warn().Err(err).Str("candidate_id", candidate.ID).Msg("Failed to embed candidate")
			stats.Failed++
			continue
		}
		if candidate.EmbeddingText == before {
			continue
		}
		if err := s.deps.Candidates.SaveCandidate(ctx, candidate); err != nil {
			s.logger.Warn().Err(err).Str("candidate_id", candidate.ID).Msg("Failed to save candidate embedding")
			stats.Failed++
			continue
		}
		stats.CandidatesEmbedded++
	}

	rl.Info("Embeddings finished", map[string]interface{}{
		"jobs_embedded":       stats.JobsEmbedded,
		"candidates_embedded": stats.CandidatesEmbedded,
		"failed":              stats.Failed,
	})
	rl.Step("embeddings finished", 1)
	return stats, nil
}
