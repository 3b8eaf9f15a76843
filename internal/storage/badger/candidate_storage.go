package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CandidateStorage implements the CandidateStorage interface for Badger
type CandidateStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCandidateStorage creates a new CandidateStorage instance
func NewCandidateStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CandidateStorage {
	return &CandidateStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CandidateStorage) SaveCandidate(ctx context.Context, candidate *models.CandidateProfile) error {
	if candidate.ID == "" {
		return fmt.Errorf("candidate ID is required")
	}
	if candidate.Email == "" {
		return fmt.Errorf("candidate email is required")
	}
	candidate.Email = strings.ToLower(strings.TrimSpace(candidate.Email))

	now := time.Now()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now

	if err := s.db.Store().Upsert(candidate.ID, candidate); err != nil {
		return fmt.Errorf("failed to save candidate: %w", err)
	}
	return nil
}

func (s *CandidateStorage) GetCandidate(ctx context.Context, id string) (*models.CandidateProfile, error) {
	var candidate models.CandidateProfile
	if err := s.db.Store().Get(id, &candidate); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.Errorf(models.ErrNotFound, "candidate not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return &candidate, nil
}

func (s *CandidateStorage) GetCandidateByEmail(ctx context.Context, email string) (*models.CandidateProfile, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	var candidates []models.CandidateProfile
	err := s.db.Store().Find(&candidates, badgerhold.Where("Email").Eq(normalized).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate by email: %w", err)
	}
	if len(candidates) == 0 {
		return nil, models.Errorf(models.ErrNotFound, "candidate not found for email: %s", normalized)
	}
	return &candidates[0], nil
}

func (s *CandidateStorage) ListCandidates(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.CandidateProfile, error) {
	query := badgerhold.Where("ID").Ne("")
	if activeOnly {
		query = query.And("IsActive").Eq(true)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Skip(offset)
	}
	query = query.SortBy("CreatedAt").Reverse()

	var candidates []models.CandidateProfile
	if err := s.db.Store().Find(&candidates, query); err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	result := make([]*models.CandidateProfile, len(candidates))
	for i := range candidates {
		result[i] = &candidates[i]
	}
	return result, nil
}

func (s *CandidateStorage) DeleteCandidate(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.CandidateProfile{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	return nil
}

func (s *CandidateStorage) CountCandidates(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.CandidateProfile{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}
	return int(count), nil
}
