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

// RunStorage implements the RunStorage interface for Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RunStorage) SaveRun(ctx context.Context, run *models.PipelineRun) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (s *RunStorage) GetRun(ctx context.Context, id string) (*models.PipelineRun, error) {
	var run models.PipelineRun
	if err := s.db.Store().Get(id, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.Errorf(models.ErrNotFound, "run not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

func (s *RunStorage) ListRuns(ctx context.Context, limit, offset int) ([]*models.PipelineRun, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Skip(offset)
	}

	var runs []models.PipelineRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	result := make([]*models.PipelineRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

func (s *RunStorage) ListActiveRuns(ctx context.Context) ([]*models.PipelineRun, error) {
	var runs []models.PipelineRun
	err := s.db.Store().Find(&runs, badgerhold.Where("Status").Eq(models.RunStatusRunning).SortBy("StartedAt").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to find active runs: %w", err)
	}

	result := make([]*models.PipelineRun, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

func (s *RunStorage) GetLatestRunByOperation(ctx context.Context, op models.RunOperation) (*models.PipelineRun, error) {
	var runs []models.PipelineRun
	err := s.db.Store().Find(&runs, badgerhold.Where("Operation").Eq(op).SortBy("StartedAt").Reverse().Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find latest %s run: %w", op, err)
	}
	if len(runs) == 0 {
		return nil, models.Errorf(models.ErrNotFound, "no %s run recorded", op)
	}
	return &runs[0], nil
}

func (s *RunStorage) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var runs []models.PipelineRun
	if err := s.db.Store().Find(&runs, badgerhold.Where("StartedAt").Lt(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to find expired runs: %w", err)
	}

	deleted := 0
	for i := range runs {
		// Keep runs still marked running out of retention sweeps
		if runs[i].Status == models.RunStatusRunning {
			continue
		}
		if err := s.DeleteRunLogs(ctx, runs[i].ID); err != nil {
			s.logger.Warn().Str("run_id", runs[i].ID).Err(err).Msg("Failed to delete run logs")
		}
		if err := s.db.Store().Delete(runs[i].ID, &models.PipelineRun{}); err != nil {
			s.logger.Warn().Str("run_id", runs[i].ID).Err(err).Msg("Failed to delete run")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *RunStorage) CountRuns(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.PipelineRun{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return int(count), nil
}

func (s *RunStorage) AppendRunLog(ctx context.Context, entry *models.RunLogEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("log entry ID is required")
	}
	if entry.RunID == "" {
		return fmt.Errorf("log entry run ID is required")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if err := s.db.Store().Insert(entry.ID, entry); err != nil {
		return fmt.Errorf("failed to append run log: %w", err)
	}
	return nil
}

func (s *RunStorage) GetRunLogs(ctx context.Context, runID string, limit int) ([]*models.RunLogEntry, error) {
	query := badgerhold.Where("RunID").Eq(runID).SortBy("Timestamp")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.RunLogEntry
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to get run logs: %w", err)
	}

	result := make([]*models.RunLogEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

func (s *RunStorage) DeleteRunLogs(ctx context.Context, runID string) error {
	if err := s.db.Store().DeleteMatching(&models.RunLogEntry{}, badgerhold.Where("RunID").Eq(runID)); err != nil {
		return fmt.Errorf("failed to delete run logs: %w", err)
	}
	return nil
}
