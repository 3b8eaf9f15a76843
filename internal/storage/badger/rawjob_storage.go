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

// RawJobStorage implements the RawJobStorage interface for Badger
type RawJobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRawJobStorage creates a new RawJobStorage instance
func NewRawJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RawJobStorage {
	return &RawJobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RawJobStorage) SaveRawJob(ctx context.Context, raw *models.RawJob) error {
	if raw.ID == "" {
		return fmt.Errorf("raw job ID is required")
	}

	now := time.Now()
	if raw.CreatedAt.IsZero() {
		raw.CreatedAt = now
	}
	raw.UpdatedAt = now

	if err := s.db.Store().Upsert(raw.ID, raw); err != nil {
		return fmt.Errorf("failed to save raw job: %w", err)
	}
	return nil
}

func (s *RawJobStorage) SaveRawJobs(ctx context.Context, raws []*models.RawJob) error {
	for _, raw := range raws {
		if err := s.SaveRawJob(ctx, raw); err != nil {
			return err
		}
	}
	return nil
}

func (s *RawJobStorage) GetRawJob(ctx context.Context, id string) (*models.RawJob, error) {
	var raw models.RawJob
	if err := s.db.Store().Get(id, &raw); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.Errorf(models.ErrNotFound, "raw job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get raw job: %w", err)
	}
	return &raw, nil
}

func (s *RawJobStorage) GetRawJobByURL(ctx context.Context, sourceURL string) (*models.RawJob, error) {
	var raws []models.RawJob
	err := s.db.Store().Find(&raws, badgerhold.Where("SourceURL").Eq(sourceURL).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find raw job by URL: %w", err)
	}
	if len(raws) == 0 {
		return nil, models.Errorf(models.ErrNotFound, "raw job not found for URL: %s", sourceURL)
	}
	return &raws[0], nil
}

func (s *RawJobStorage) ListRawJobsByCompany(ctx context.Context, companyID string) ([]*models.RawJob, error) {
	var raws []models.RawJob
	if err := s.db.Store().Find(&raws, badgerhold.Where("CompanyID").Eq(companyID).SortBy("ExtractedAt").Reverse()); err != nil {
		return nil, fmt.Errorf("failed to list raw jobs: %w", err)
	}

	result := make([]*models.RawJob, len(raws))
	for i := range raws {
		result[i] = &raws[i]
	}
	return result, nil
}

func (s *RawJobStorage) ListUnnormalized(ctx context.Context, limit int) ([]*models.RawJob, error) {
	// NormalizedAt is a nil pointer until the normalizer has produced a
	// canonical job; filter in Go
	var raws []models.RawJob
	if err := s.db.Store().Find(&raws, badgerhold.Where("ID").Ne("").SortBy("ExtractedAt")); err != nil {
		return nil, fmt.Errorf("failed to list raw jobs: %w", err)
	}

	result := make([]*models.RawJob, 0)
	for i := range raws {
		if raws[i].NormalizedAt == nil {
			result = append(result, &raws[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (s *RawJobStorage) DeleteRawJobsByCompany(ctx context.Context, companyID string) error {
	if err := s.db.Store().DeleteMatching(&models.RawJob{}, badgerhold.Where("CompanyID").Eq(companyID)); err != nil {
		return fmt.Errorf("failed to delete raw jobs for company: %w", err)
	}
	return nil
}

func (s *RawJobStorage) CountRawJobs(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.RawJob{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count raw jobs: %w", err)
	}
	return int(count), nil
}
