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

// DiscoveryStorage implements the DiscoveryStorage interface for Badger
type DiscoveryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDiscoveryStorage creates a new DiscoveryStorage instance
func NewDiscoveryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DiscoveryStorage {
	return &DiscoveryStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DiscoveryStorage) SaveQueueItem(ctx context.Context, item *models.DiscoveryQueueItem) error {
	if item.ID == "" {
		return fmt.Errorf("queue item ID is required")
	}

	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	if err := s.db.Store().Upsert(item.ID, item); err != nil {
		return fmt.Errorf("failed to save queue item: %w", err)
	}
	return nil
}

func (s *DiscoveryStorage) GetQueueItem(ctx context.Context, id string) (*models.DiscoveryQueueItem, error) {
	var item models.DiscoveryQueueItem
	if err := s.db.Store().Get(id, &item); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.Errorf(models.ErrNotFound, "queue item not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get queue item: %w", err)
	}
	return &item, nil
}

func (s *DiscoveryStorage) GetQueueItemByDomain(ctx context.Context, normDomain string) (*models.DiscoveryQueueItem, error) {
	if normDomain == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "domain is empty")
	}
	var items []models.DiscoveryQueueItem
	err := s.db.Store().Find(&items, badgerhold.Where("NormDomain").Eq(normDomain).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find queue item by domain: %w", err)
	}
	if len(items) == 0 {
		return nil, models.Errorf(models.ErrNotFound, "queue item not found for domain: %s", normDomain)
	}
	return &items[0], nil
}

func (s *DiscoveryStorage) GetQueueItemByName(ctx context.Context, normName string) (*models.DiscoveryQueueItem, error) {
	if normName == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "name is empty")
	}
	var items []models.DiscoveryQueueItem
	err := s.db.Store().Find(&items, badgerhold.Where("NormName").Eq(normName).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find queue item by name: %w", err)
	}
	if len(items) == 0 {
		return nil, models.Errorf(models.ErrNotFound, "queue item not found for name: %s", normName)
	}
	return &items[0], nil
}

func (s *DiscoveryStorage) ListQueueItems(ctx context.Context, status models.DiscoveryStatus, limit int) ([]*models.DiscoveryQueueItem, error) {
	query := badgerhold.Where("ID").Ne("")
	if status != "" {
		query = badgerhold.Where("Status").Eq(status)
	}
	query = query.SortBy("CreatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var items []models.DiscoveryQueueItem
	if err := s.db.Store().Find(&items, query); err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}

	result := make([]*models.DiscoveryQueueItem, len(items))
	for i := range items {
		result[i] = &items[i]
	}
	return result, nil
}

func (s *DiscoveryStorage) DeleteQueueItem(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.DiscoveryQueueItem{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	return nil
}

func (s *DiscoveryStorage) GetDiscoveryStats(ctx context.Context) (*models.DiscoveryStats, error) {
	var items []models.DiscoveryQueueItem
	if err := s.db.Store().Find(&items, nil); err != nil {
		return nil, fmt.Errorf("failed to load queue items for stats: %w", err)
	}

	stats := &models.DiscoveryStats{}
	for i := range items {
		switch items[i].Status {
		case models.DiscoveryPending:
			stats.Pending++
		case models.DiscoveryProcessing:
			stats.Processing++
		case models.DiscoveryCompleted:
			stats.Completed++
		case models.DiscoveryFailed:
			stats.Failed++
		case models.DiscoverySkipped:
			stats.Skipped++
		case models.DiscoveryReview:
			stats.Review++
		}
	}
	return stats, nil
}
