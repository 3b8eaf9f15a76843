package interfaces

import (
	"context"

	"github.com/ternarybob/jobhound/internal/models"
)

// PipelineService owns the run registry and orchestration. Operations are
// keyed by type: one full pipeline at a time, independent stage operations
// run concurrently, and every run is persisted with its progress published
// on the event bus.
type PipelineService interface {
	// StartOperation begins an operation in the background and returns the
	// created run. Returns a conflict error when the same operation type is
	// already in flight, or when a full pipeline is requested while any
	// other operation runs.
	StartOperation(ctx context.Context, op models.RunOperation, params models.RunParams, triggeredBy string) (*models.PipelineRun, error)

	// CancelRun requests cancellation of a running operation. The run
	// finishes failed with a cancelled error.
	CancelRun(ctx context.Context, runID string) error

	// GetRun returns a run by ID
	GetRun(ctx context.Context, runID string) (*models.PipelineRun, error)

	// ListRuns returns runs newest first
	ListRuns(ctx context.Context, limit, offset int) ([]*models.PipelineRun, error)

	// RunningOperations returns the registry's in-flight runs, newest first
	RunningOperations(ctx context.Context) []*models.PipelineRun

	// GetRunLogs returns persisted log entries for a run
	GetRunLogs(ctx context.Context, runID string, limit int) ([]*models.RunLogEntry, error)

	// ReconcileOrphans marks runs left in running state by an unclean
	// shutdown as failed. Called once at startup, before any new run.
	ReconcileOrphans(ctx context.Context) (int, error)

	// Close cancels in-flight runs and waits for them to stop
	Close() error
}
