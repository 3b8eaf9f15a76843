package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// MatchStorage implements the MatchStorage interface for Badger
type MatchStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMatchStorage creates a new MatchStorage instance
func NewMatchStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MatchStorage {
	return &MatchStorage{
		db:     db,
		logger: logger,
	}
}

func (s *MatchStorage) SaveMatch(ctx context.Context, match *models.Match) error {
	if match.ID == "" {
		return fmt.Errorf("match ID is required")
	}

	now := time.Now()
	if match.CreatedAt.IsZero() {
		match.CreatedAt = now
	}
	match.UpdatedAt = now

	if err := s.db.Store().Upsert(match.ID, match); err != nil {
		return fmt.Errorf("failed to save match: %w", err)
	}
	return nil
}

func (s *MatchStorage) SaveMatches(ctx context.Context, matches []*models.Match) error {
	for _, match := range matches {
		if err := s.SaveMatch(ctx, match); err != nil {
			return err
		}
	}
	return nil
}

func (s *MatchStorage) GetMatch(ctx context.Context, id string) (*models.Match, error) {
	var match models.Match
	if err := s.db.Store().Get(id, &match); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.Errorf(models.ErrNotFound, "match not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return &match, nil
}

func (s *MatchStorage) GetMatchByPair(ctx context.Context, candidateID, jobID string) (*models.Match, error) {
	var matches []models.Match
	err := s.db.Store().Find(&matches, badgerhold.Where("CandidateID").Eq(candidateID).And("JobID").Eq(jobID).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find match by pair: %w", err)
	}
	if len(matches) == 0 {
		return nil, models.Errorf(models.ErrNotFound, "match not found for %s/%s", candidateID, jobID)
	}
	return &matches[0], nil
}

func (s *MatchStorage) ListMatchesByCandidate(ctx context.Context, candidateID string, minScore float64, limit int) ([]*models.Match, error) {
	var matches []models.Match
	err := s.db.Store().Find(&matches, badgerhold.Where("CandidateID").Eq(candidateID).SortBy("Score").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	result := make([]*models.Match, 0, len(matches))
	for i := range matches {
		if minScore > 0 && matches[i].Score < minScore {
			continue
		}
		result = append(result, &matches[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MatchStorage) DeleteMatchesByCandidate(ctx context.Context, candidateID string) (int, error) {
	return s.deleteMatching(badgerhold.Where("CandidateID").Eq(candidateID))
}

func (s *MatchStorage) DeleteMatchesByJob(ctx context.Context, jobID string) (int, error) {
	return s.deleteMatching(badgerhold.Where("JobID").Eq(jobID))
}

func (s *MatchStorage) deleteMatching(query *badgerhold.Query) (int, error) {
	var matches []models.Match
	if err := s.db.Store().Find(&matches, query); err != nil {
		return 0, fmt.Errorf("failed to find matches for deletion: %w", err)
	}

	deleted := 0
	for i := range matches {
		if err := s.db.Store().Delete(matches[i].ID, &models.Match{}); err != nil {
			s.logger.Warn().Str("match_id", matches[i].ID).Err(err).Msg("Failed to delete match")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *MatchStorage) CountMatches(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Match{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return int(count), nil
}

func (s *MatchStorage) GetMatchStats(ctx context.Context) (*models.MatchStats, error) {
	var matches []models.Match
	if err := s.db.Store().Find(&matches, nil); err != nil {
		return nil, fmt.Errorf("failed to load matches for stats: %w", err)
	}

	stats := &models.MatchStats{}
	candidates := make(map[string]bool)
	var scoreSum float64
	for i := range matches {
		m := &matches[i]
		stats.TotalMatches++
		candidates[m.CandidateID] = true
		scoreSum += m.Score
	}
	stats.Candidates = len(candidates)
	if stats.TotalMatches > 0 {
		stats.AvgScore = scoreSum / float64(stats.TotalMatches)
	}
	return stats, nil
}
