package match

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// Service scores candidates against the active job catalog: vector
// retrieval, hard filters, weighted soft scoring, and upsert of the
// resulting matches. The catalog scan happens in process; at the
// catalog sizes this system targets that is cheaper than maintaining a
// vector index.
type Service struct {
	cfg        *common.Config
	jobs       interfaces.JobStorage
	candidates interfaces.CandidateStorage
	matches    interfaces.MatchStorage
	companies  interfaces.CompanyStorage
	logger     arbor.ILogger
	timeout    time.Duration
	now        func() time.Time
}

func NewService(
	cfg *common.Config,
	jobs interfaces.JobStorage,
	candidates interfaces.CandidateStorage,
	matches interfaces.MatchStorage,
	companies interfaces.CompanyStorage,
	logger arbor.ILogger,
) *Service {
	return &Service{
		cfg:        cfg,
		jobs:       jobs,
		candidates: candidates,
		matches:    matches,
		companies:  companies,
		logger:     logger,
		timeout:    common.ParseDurationOr(cfg.Matcher.Timeout, 10*time.Second),
		now:        time.Now,
	}
}

// MatchCandidate scores one candidate against the catalog and persists
// the results. An empty result carries a no-match reason with the counts
// behind it.
func (s *Service) MatchCandidate(ctx context.Context, candidate *models.CandidateProfile, runID string, opts interfaces.MatchOptions) (*interfaces.MatchOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stats, err := s.jobs.GetJobStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog stats: %w", err)
	}

	outcome := &interfaces.MatchOutcome{CatalogSize: stats.Active}
	if stats.Active == 0 {
		outcome.NoMatchReason = models.NoMatchEmptyCatalog
		return outcome, nil
	}

	if len(candidate.Embedding) == 0 {
		outcome.NoMatchReason = models.NoMatchNoVectorCandidates
		return outcome, nil
	}

	catalog, err := s.jobs.ListEmbeddedActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded catalog: %w", err)
	}

	retrieved := topKBySimilarity(candidate.Embedding, catalog, s.cfg.Matcher.TopK, s.cfg.Matcher.MinSimilarity)
	outcome.VectorHits = len(retrieved)
	if len(retrieved) == 0 {
		outcome.NoMatchReason = models.NoMatchNoVectorCandidates
		return outcome, nil
	}

	companyNames := make(map[string]string)
	type scoredMatch struct {
		job       *models.Job
		score     float64
		hardMatch bool
		reasons   []models.MatchReason
		matched   []string
	}

	var results []scoredMatch
	for _, sj := range retrieved {
		companyName, err := s.companyName(ctx, sj.job.CompanyID, companyNames)
		if err != nil {
			s.logger.Warn().Str("company_id", sj.job.CompanyID).Err(err).Msg("Company lookup failed during matching")
		}

		hard := passesHardFilters(candidate, sj.job, companyName)
		if hard {
			outcome.PassedHard++
		} else if !opts.SoftInclusive {
			continue
		}

		score, reasons, matched := scoreJob(candidate, sj.job, sj.similarity)
		if score < s.cfg.Matcher.ScoreThreshold {
			continue
		}
		results = append(results, scoredMatch{
			job:       sj.job,
			score:     score,
			hardMatch: hard,
			reasons:   reasons,
			matched:   matched,
		})
	}

	if outcome.PassedHard == 0 && !opts.SoftInclusive {
		outcome.NoMatchReason = models.NoMatchAllFilteredHard
		return outcome, nil
	}
	if len(results) == 0 {
		outcome.NoMatchReason = models.NoMatchAllFilteredScore
		return outcome, nil
	}
	outcome.AboveThreshold = len(results)

	sort.Slice(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	now := s.now()
	for rank, r := range results {
		match, err := s.upsertMatch(ctx, candidate, r.job, runID, r.score, r.hardMatch, r.reasons, r.matched, rank+1, now)
		if err != nil {
			return nil, fmt.Errorf("failed to save match for job %s: %w", r.job.ID, err)
		}
		outcome.Matches = append(outcome.Matches, match)
	}

	candidate.LastMatchedAt = &now
	if err := s.candidates.SaveCandidate(ctx, candidate); err != nil {
		s.logger.Warn().Str("candidate_id", candidate.ID).Err(err).Msg("Failed to record last matched time")
	}

	s.logger.Info().
		Str("candidate_id", candidate.ID).
		Int("catalog", outcome.CatalogSize).
		Int("vector_hits", outcome.VectorHits).
		Int("matches", len(outcome.Matches)).
		Msg("Candidate matched")

	return outcome, nil
}

// MatchAll matches every active candidate, continuing past individual
// failures. Returns the number of matches written.
func (s *Service) MatchAll(ctx context.Context, runID string) (int, error) {
	candidates, err := s.candidates.ListCandidates(ctx, true, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list candidates: %w", err)
	}

	total := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		outcome, err := s.MatchCandidate(ctx, candidate, runID, interfaces.MatchOptions{})
		if err != nil {
			s.logger.Error().Str("candidate_id", candidate.ID).Err(err).Msg("Matching failed for candidate")
			continue
		}
		total += len(outcome.Matches)
	}

	s.logger.Info().Int("candidates", len(candidates)).Int("matches", total).Msg("Matching complete")
	return total, nil
}

// upsertMatch writes the scored pair, preserving identity and usage
// timestamps on re-match
func (s *Service) upsertMatch(
	ctx context.Context,
	candidate *models.CandidateProfile,
	job *models.Job,
	runID string,
	score float64,
	hardMatch bool,
	reasons []models.MatchReason,
	matchedSkills []string,
	rank int,
	now time.Time,
) (*models.Match, error) {
	match, err := s.matches.GetMatchByPair(ctx, candidate.ID, job.ID)
	if err != nil {
		if !models.IsNotFound(err) {
			return nil, err
		}
		match = &models.Match{
			ID:          common.NewID(),
			CandidateID: candidate.ID,
			JobID:       job.ID,
			CreatedAt:   now,
		}
	}

	match.CompanyID = job.CompanyID
	match.RunID = runID
	match.Score = score
	match.HardMatch = hardMatch
	match.Reasons = reasons
	match.MatchedSkills = matchedSkills
	match.Rank = rank
	match.UpdatedAt = now

	if err := s.matches.SaveMatch(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

func (s *Service) companyName(ctx context.Context, companyID string, cache map[string]string) (string, error) {
	if name, ok := cache[companyID]; ok {
		return name, nil
	}
	company, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		cache[companyID] = ""
		return "", err
	}
	cache[companyID] = company.Name
	return company.Name, nil
}
