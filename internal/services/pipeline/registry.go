package pipeline

import (
	"context"
	"sync"

	"github.com/ternarybob/jobhound/internal/models"
)

// registryEntry tracks one in-flight operation: its live run record and
// the cancel function for its goroutine's context.
type registryEntry struct {
	run    *models.PipelineRun
	cancel context.CancelFunc
}

// registry is the process-wide map of in-flight operations keyed by
// operation type. The run row is written before the entry is added and
// the entry is removed before the row is finalized, so a registered
// entry always points at a persisted running row. The service's start
// mutex keeps the check-persist-add sequence atomic.
type registry struct {
	mu      sync.Mutex
	entries map[models.RunOperation]*registryEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[models.RunOperation]*registryEntry)}
}

// check applies the conflict rules without registering: an operation
// type runs once at a time; a full pipeline runs alone; while a full
// pipeline is in flight only its own cascade sub-runs may register.
func (r *registry) check(run *models.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflict(run)
}

func (r *registry) conflict(run *models.PipelineRun) error {
	if existing, ok := r.entries[run.Operation]; ok {
		return models.Errorf(models.ErrConflict, "%s already running as %s", run.Operation, existing.run.ID)
	}
	if run.Operation == models.OpFullPipeline && len(r.entries) > 0 {
		return models.Errorf(models.ErrConflict, "cannot start full pipeline while other operations run")
	}
	if fp, ok := r.entries[models.OpFullPipeline]; ok && run.ParentID != fp.run.ID {
		return models.Errorf(models.ErrConflict, "full pipeline %s in flight", fp.run.ID)
	}
	return nil
}

// add registers a run after re-applying the conflict rules.
func (r *registry) add(run *models.PipelineRun, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conflict(run); err != nil {
		return err
	}
	r.entries[run.Operation] = &registryEntry{run: run, cancel: cancel}
	return nil
}

// remove clears the entry for op. Safe to call for an op that was never
// registered.
func (r *registry) remove(op models.RunOperation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, op)
}

// cancelRun cancels the in-flight run with the given id, reporting
// whether it was found.
func (r *registry) cancelRun(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.run.ID == runID {
			entry.cancel()
			return true
		}
	}
	return false
}

// owns reports whether the registry holds an entry for runID.
func (r *registry) owns(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.run.ID == runID {
			return true
		}
	}
	return false
}

// cancelAll cancels every in-flight run, used during shutdown.
func (r *registry) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		entry.cancel()
	}
}

// checkpoint updates the live run's step fields under the registry lock
// and returns a copy for persistence, or nil when the run already left
// the registry.
func (r *registry) checkpoint(runID, step string, progress float64) *models.PipelineRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.run.ID == runID {
			entry.run.CurrentStep = step
			entry.run.Progress = progress
			snapshot := *entry.run
			return &snapshot
		}
	}
	return nil
}

// running returns copies of the in-flight run records.
func (r *registry) running() []*models.PipelineRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	runs := make([]*models.PipelineRun, 0, len(r.entries))
	for _, entry := range r.entries {
		snapshot := *entry.run
		runs = append(runs, &snapshot)
	}
	return runs
}
