package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
	"github.com/ternarybob/jobhound/internal/services/normalize"
)

// Deps collects everything the pipeline orchestrates. Stage services are
// interfaces so tests can substitute fakes; the normalizer is concrete
// because it is pure CPU with no outward calls.
type Deps struct {
	Companies  interfaces.CompanyStorage
	Snapshots  interfaces.SnapshotStorage
	RawJobs    interfaces.RawJobStorage
	Jobs       interfaces.JobStorage
	Candidates interfaces.CandidateStorage
	Runs       interfaces.RunStorage

	Discovery   interfaces.DiscoveryService
	Detector    interfaces.ATSDetector
	Extractors  interfaces.ExtractorRegistry
	Enricher    interfaces.JobEnricher
	Normalizer  *normalize.Service
	Embedder    interfaces.EmbeddingService
	Matcher     interfaces.MatcherService
	Maintenance interfaces.MaintenanceService
	Reports     interfaces.PDFService
	Events      interfaces.EventService
}

// Service runs pipeline operations in background goroutines, one per
// operation type, with every run persisted and streamed on the event bus.
type Service struct {
	cfg    *common.Config
	deps   Deps
	reg    *registry
	logger arbor.ILogger

	stepThrottle time.Duration

	// startMu serializes run creation so the conflict check, the run row
	// write, and the registry insert happen as one step
	startMu sync.Mutex
	wg      sync.WaitGroup
}

func NewService(cfg *common.Config, deps Deps, logger arbor.ILogger) *Service {
	return &Service{
		cfg:          cfg,
		deps:         deps,
		reg:          newRegistry(),
		logger:       logger,
		stepThrottle: common.ParseDurationOr(cfg.WebSocket.ThrottleIntervals["progress"], 200*time.Millisecond),
	}
}

var _ interfaces.PipelineService = (*Service)(nil)

// StartOperation reserves the operation slot, persists the run row, and
// launches the work in the background. The returned run is a snapshot;
// the live record advances independently.
func (s *Service) StartOperation(ctx context.Context, op models.RunOperation, params models.RunParams, triggeredBy string) (*models.PipelineRun, error) {
	if err := validateOperation(op); err != nil {
		return nil, err
	}
	if ats, ok := crawlVendor(op); ok && params.ATSType == "" {
		params.ATSType = ats
	}

	// The run context detaches from the request: operations outlive the
	// HTTP call that started them.
	runCtx, cancel := context.WithCancel(context.Background())
	run, err := s.registerRun(ctx, cancel, op, params, triggeredBy, "", false)
	if err != nil {
		cancel()
		return nil, err
	}

	s.wg.Add(1)
	go s.execute(runCtx, cancel, run)

	snapshot := *run
	return &snapshot, nil
}

// registerRun creates the run under the start mutex: conflict check, row
// write, then registry insert, so the registry never points at a row
// that does not exist.
func (s *Service) registerRun(ctx context.Context, cancel context.CancelFunc, op models.RunOperation, params models.RunParams, triggeredBy, parentID string, cascade bool) (*models.PipelineRun, error) {
	run := &models.PipelineRun{
		ID:          common.NewRunID(),
		Operation:   op,
		Status:      models.RunStatusRunning,
		TriggeredBy: triggeredBy,
		ParentID:    parentID,
		Cascade:     cascade,
		Params:      params,
		StartedAt:   time.Now().UTC(),
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	if err := s.reg.check(run); err != nil {
		return nil, err
	}
	if err := s.deps.Runs.SaveRun(ctx, run); err != nil {
		return nil, models.Errorf(models.ErrInternal, "persist run %s: %v", run.ID, err)
	}
	if err := s.reg.add(run, cancel); err != nil {
		// Unreachable while the start mutex is held; finalize the row so
		// it cannot linger as running
		now := time.Now().UTC()
		run.Status = models.RunStatusFailed
		run.Error = err.Error()
		run.CompletedAt = &now
		if serr := s.deps.Runs.SaveRun(ctx, run); serr != nil {
			s.logger.Error().Err(serr).Str("run_id", run.ID).Msg("Failed to finalize conflicting run row")
		}
		return nil, err
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Str("operation", string(op)).
		Str("triggered_by", triggeredBy).
		Msg("Run started")
	s.publishStatus(run)
	return run, nil
}

func (s *Service) execute(ctx context.Context, cancel context.CancelFunc, run *models.PipelineRun) {
	defer s.wg.Done()
	defer cancel()

	rl := newRunLogger(run.ID, s.reg, s.deps.Runs, s.deps.Events, s.stepThrottle, s.logger)
	stats, err := s.guardedDispatch(ctx, run, rl)
	s.finalize(run, stats, err)
}

// guardedDispatch turns a stage panic into a run failure instead of
// taking the process down.
func (s *Service) guardedDispatch(ctx context.Context, run *models.PipelineRun, rl interfaces.RunLogger) (stats models.RunStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = models.Errorf(models.ErrInternal, "run panicked: %v", r)
			s.logger.Error().Str("run_id", run.ID).Str("operation", string(run.Operation)).Msg(fmt.Sprintf("Run panicked: %v", r))
		}
	}()
	return s.dispatch(ctx, run, rl)
}

func (s *Service) dispatch(ctx context.Context, run *models.PipelineRun, rl interfaces.RunLogger) (models.RunStats, error) {
	switch {
	case run.Operation == models.OpFullPipeline:
		return s.runFullPipeline(ctx, run, rl)
	case run.Operation == models.OpDiscovery:
		return s.runDiscovery(ctx, run, rl)
	case run.Operation == models.OpDetectATS:
		return s.runDetectATS(ctx, run, rl)
	case run.Operation == models.OpCrawlAll || isCrawlOp(run.Operation):
		return s.runCrawl(ctx, run, rl)
	case run.Operation == models.OpEnrich:
		return s.runEnrich(ctx, run, rl)
	case run.Operation == models.OpEmbeddings:
		return s.runEmbeddings(ctx, run, rl)
	case run.Operation == models.OpMatch:
		return s.runMatch(ctx, run, rl)
	case run.Operation == models.OpMaintenance:
		return s.runMaintenance(ctx, run, rl)
	default:
		return models.RunStats{}, models.Errorf(models.ErrInvalidArgument, "unknown operation %q", run.Operation)
	}
}

// finalize releases the registry slot before writing the terminal row,
// so a follow-up StartOperation succeeding implies the previous run's
// outcome is durable or about to be.
func (s *Service) finalize(run *models.PipelineRun, stats models.RunStats, err error) {
	s.reg.remove(run.Operation)

	now := time.Now().UTC()
	run.Stats = stats
	run.CompletedAt = &now
	run.Progress = 1
	if err != nil {
		run.Status = models.RunStatusFailed
		if errors.Is(err, context.Canceled) {
			run.Error = models.RunErrorCancelled
		} else {
			run.Error = err.Error()
		}
		s.logger.Warn().
			Str("run_id", run.ID).
			Str("operation", string(run.Operation)).
			Err(err).
			Msg("Run failed")
	} else {
		run.Status = models.RunStatusCompleted
		s.logger.Info().
			Str("run_id", run.ID).
			Str("operation", string(run.Operation)).
			Int("processed", stats.Processed).
			Int("failed", stats.Failed).
			Str("duration", run.Duration(now).Round(time.Millisecond).String()).
			Msg("Run completed")
	}

	if serr := s.deps.Runs.SaveRun(context.Background(), run); serr != nil {
		s.logger.Error().Err(serr).Str("run_id", run.ID).Msg("Failed to persist terminal run state")
	}
	s.publishStatus(run)
}

func (s *Service) publishStatus(run *models.PipelineRun) {
	snapshot := *run
	if err := s.deps.Events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventRunStatus,
		RunID:   run.ID,
		Payload: &snapshot,
	}); err != nil {
		s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to publish run status event")
	}
}

// CancelRun cancels an in-flight run. Terminal runs return a conflict so
// callers can tell "already finished" from "never existed".
func (s *Service) CancelRun(ctx context.Context, runID string) error {
	if s.reg.cancelRun(runID) {
		s.logger.Info().Str("run_id", runID).Msg("Run cancellation requested")
		return nil
	}
	run, err := s.deps.Runs.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.IsTerminal() {
		return models.Errorf(models.ErrConflict, "run %s already %s", runID, run.Status)
	}
	// Running row without a registry entry: orphan from an earlier
	// process, nothing to cancel.
	return models.Errorf(models.ErrConflict, "run %s is not owned by this process", runID)
}

// GetRun prefers the live registry record, which can be ahead of the
// throttled checkpoint row.
func (s *Service) GetRun(ctx context.Context, runID string) (*models.PipelineRun, error) {
	for _, run := range s.reg.running() {
		if run.ID == runID {
			return run, nil
		}
	}
	return s.deps.Runs.GetRun(ctx, runID)
}

func (s *Service) ListRuns(ctx context.Context, limit, offset int) ([]*models.PipelineRun, error) {
	return s.deps.Runs.ListRuns(ctx, limit, offset)
}

func (s *Service) RunningOperations(ctx context.Context) []*models.PipelineRun {
	runs := s.reg.running()
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs
}

func (s *Service) GetRunLogs(ctx context.Context, runID string, limit int) ([]*models.RunLogEntry, error) {
	return s.deps.Runs.GetRunLogs(ctx, runID, limit)
}

// ReconcileOrphans fails leftover running rows from an unclean shutdown.
// Runs the registry still owns are skipped, so this is safe to call on a
// live service even though it is meant for startup.
func (s *Service) ReconcileOrphans(ctx context.Context) (int, error) {
	active, err := s.deps.Runs.ListActiveRuns(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, run := range active {
		if s.reg.owns(run.ID) {
			continue
		}
		now := time.Now().UTC()
		run.Status = models.RunStatusFailed
		run.Error = models.RunErrorOrphaned
		run.CompletedAt = &now
		if err := s.deps.Runs.SaveRun(ctx, run); err != nil {
			s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to reconcile orphaned run")
			continue
		}
		count++
	}
	if count > 0 {
		s.logger.Info().Int("count", count).Msg("Reconciled orphaned runs")
	}
	return count, nil
}

// Close cancels in-flight runs and waits for their goroutines to finish
// writing terminal state.
func (s *Service) Close() error {
	s.reg.cancelAll()
	s.wg.Wait()
	return nil
}

func validateOperation(op models.RunOperation) error {
	switch op {
	case models.OpFullPipeline, models.OpDiscovery, models.OpDetectATS, models.OpCrawlAll,
		models.OpEnrich, models.OpEmbeddings, models.OpMatch, models.OpMaintenance:
		return nil
	}
	if ats, ok := crawlVendor(op); ok {
		if ats.IsKnownVendor() || ats == models.ATSCustom {
			return nil
		}
		return models.Errorf(models.ErrInvalidArgument, "unknown ATS vendor %q", ats)
	}
	return models.Errorf(models.ErrInvalidArgument, "unknown operation %q", op)
}

func isCrawlOp(op models.RunOperation) bool {
	_, ok := crawlVendor(op)
	return ok
}

// crawlVendor extracts the vendor from a crawl_<ats> operation name.
func crawlVendor(op models.RunOperation) (models.ATSType, bool) {
	name := string(op)
	if !strings.HasPrefix(name, "crawl_") || name == string(models.OpCrawlAll) {
		return "", false
	}
	return models.ATSType(strings.TrimPrefix(name, "crawl_")), true
}
