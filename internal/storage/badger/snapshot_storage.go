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

// SnapshotStorage implements the SnapshotStorage interface for Badger
type SnapshotStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSnapshotStorage creates a new SnapshotStorage instance
func NewSnapshotStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SnapshotStorage {
	return &SnapshotStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SnapshotStorage) SaveSnapshot(ctx context.Context, snapshot *models.CrawlSnapshot) error {
	if snapshot.ID == "" {
		return fmt.Errorf("snapshot ID is required")
	}
	if snapshot.CrawledAt.IsZero() {
		snapshot.CrawledAt = time.Now()
	}

	if err := s.db.Store().Upsert(snapshot.ID, snapshot); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (s *SnapshotStorage) GetSnapshot(ctx context.Context, id string) (*models.CrawlSnapshot, error) {
	var snapshot models.CrawlSnapshot
	if err := s.db.Store().Get(id, &snapshot); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.Errorf(models.ErrNotFound, "snapshot not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *SnapshotStorage) GetLatestSnapshot(ctx context.Context, companyID string) (*models.CrawlSnapshot, error) {
	var snapshots []models.CrawlSnapshot
	err := s.db.Store().Find(&snapshots, badgerhold.Where("CompanyID").Eq(companyID).SortBy("CrawledAt").Reverse().Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find latest snapshot: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, models.Errorf(models.ErrNotFound, "no snapshots for company: %s", companyID)
	}
	return &snapshots[0], nil
}

func (s *SnapshotStorage) ListSnapshotsByCompany(ctx context.Context, companyID string, limit int) ([]*models.CrawlSnapshot, error) {
	query := badgerhold.Where("CompanyID").Eq(companyID).SortBy("CrawledAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var snapshots []models.CrawlSnapshot
	if err := s.db.Store().Find(&snapshots, query); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	result := make([]*models.CrawlSnapshot, len(snapshots))
	for i := range snapshots {
		result[i] = &snapshots[i]
	}
	return result, nil
}

func (s *SnapshotStorage) PruneSnapshots(ctx context.Context, cutoff time.Time) (int, error) {
	var snapshots []models.CrawlSnapshot
	if err := s.db.Store().Find(&snapshots, nil); err != nil {
		return 0, fmt.Errorf("failed to scan snapshots: %w", err)
	}

	// The newest snapshot per (company, URL) survives regardless of age:
	// it is the change-detection baseline for the next crawl
	latest := make(map[string]time.Time, len(snapshots))
	for i := range snapshots {
		key := snapshots[i].CompanyID + "|" + snapshots[i].URL
		if snapshots[i].CrawledAt.After(latest[key]) {
			latest[key] = snapshots[i].CrawledAt
		}
	}

	deleted := 0
	for i := range snapshots {
		snap := &snapshots[i]
		if !snap.CrawledAt.Before(cutoff) {
			continue
		}
		if snap.CrawledAt.Equal(latest[snap.CompanyID+"|"+snap.URL]) {
			continue
		}
		if err := s.db.Store().Delete(snap.ID, &models.CrawlSnapshot{}); err != nil {
			s.logger.Warn().Str("snapshot_id", snap.ID).Err(err).Msg("Failed to delete expired snapshot")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *SnapshotStorage) DeleteSnapshotsByCompany(ctx context.Context, companyID string) error {
	if err := s.db.Store().DeleteMatching(&models.CrawlSnapshot{}, badgerhold.Where("CompanyID").Eq(companyID)); err != nil {
		return fmt.Errorf("failed to delete snapshots for company: %w", err)
	}
	return nil
}

func (s *SnapshotStorage) CountSnapshots(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.CrawlSnapshot{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return int(count), nil
}

func (s *SnapshotStorage) ListCrawlTimes(ctx context.Context, since time.Time) ([]time.Time, error) {
	var snapshots []models.CrawlSnapshot
	if err := s.db.Store().Find(&snapshots, badgerhold.Where("CrawledAt").Ge(since)); err != nil {
		return nil, fmt.Errorf("failed to list crawl times: %w", err)
	}

	times := make([]time.Time, len(snapshots))
	for i := range snapshots {
		times[i] = snapshots[i].CrawledAt
	}
	return times, nil
}
