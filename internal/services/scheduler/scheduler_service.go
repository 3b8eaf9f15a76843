package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// FullPipelineJobName is the registration name of the periodic pipeline
// trigger.
const FullPipelineJobName = "full_pipeline"

// jobEntry is one registered job and its live state.
type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func() error
	enabled     bool
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	lastError   string
}

// Service schedules registered jobs on cron expressions. Registrations
// survive a stop: Stop disarms the clock, Start re-arms every enabled
// job, so start/stop cycles from the admin API are cheap.
type Service struct {
	logger arbor.ILogger

	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]*jobEntry
	running bool
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{
		// Cron activity logs under the scheduler correlation scope and
		// surfaces in the websocket server console
		logger: logger.WithContextWriter("scheduler"),
		cron:   cron.New(),
		jobs:   make(map[string]*jobEntry),
	}
}

var _ interfaces.SchedulerService = (*Service)(nil)

// Start arms every enabled job and starts the cron runner. Starting a
// running scheduler is a no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	for _, entry := range s.jobs {
		if !entry.enabled {
			continue
		}
		if err := s.armLocked(entry); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.running = true

	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the cron runner and waits for an in-flight tick to finish.
// Stopping a stopped scheduler is a no-op.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCtx := s.cron.Stop()
	s.mu.Unlock()

	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Scheduled jobs still running after stop timeout")
	}

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RegisterJob adds a named job. The schedule takes standard cron specs
// and descriptors like "@every 6h". Jobs registered while the scheduler
// is stopped are armed on the next Start.
func (s *Service) RegisterJob(name, schedule, description string, handler func() error) error {
	if name == "" || handler == nil {
		return models.Errorf(models.ErrInvalidArgument, "scheduled job needs a name and a handler")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return models.Errorf(models.ErrInvalidArgument, "invalid schedule %q: %v", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return models.Errorf(models.ErrConflict, "job %s already registered", name)
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
		enabled:     true,
	}
	s.jobs[name] = entry
	if s.running {
		if err := s.armLocked(entry); err != nil {
			delete(s.jobs, name)
			return err
		}
	}

	s.logger.Info().
		Str("job", name).
		Str("schedule", schedule).
		Msg("Scheduled job registered")
	return nil
}

// UpdateJobSchedule swaps a registered job onto a new schedule. A job
// armed on the old schedule is disarmed and re-armed on the new one.
func (s *Service) UpdateJobSchedule(name, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return models.Errorf(models.ErrInvalidArgument, "invalid schedule %q: %v", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[name]
	if !ok {
		return models.Errorf(models.ErrNotFound, "scheduled job not found: %s", name)
	}
	if entry.schedule == schedule {
		return nil
	}

	s.disarmLocked(entry)
	entry.schedule = schedule
	if s.running && entry.enabled {
		if err := s.armLocked(entry); err != nil {
			return err
		}
	}

	s.logger.Info().Str("job", name).Str("schedule", schedule).Msg("Scheduled job rescheduled")
	return nil
}

// TriggerJobNow runs a job immediately, bypassing its enabled flag. The
// handler runs synchronously so the caller sees its error.
func (s *Service) TriggerJobNow(name string) error {
	return s.run(name, true)
}

func (s *Service) EnableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[name]
	if !ok {
		return models.Errorf(models.ErrNotFound, "scheduled job not found: %s", name)
	}
	if entry.enabled {
		return nil
	}
	entry.enabled = true
	if s.running {
		if err := s.armLocked(entry); err != nil {
			entry.enabled = false
			return err
		}
	}
	s.logger.Info().Str("job", name).Msg("Scheduled job enabled")
	return nil
}

func (s *Service) DisableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[name]
	if !ok {
		return models.Errorf(models.ErrNotFound, "scheduled job not found: %s", name)
	}
	if !entry.enabled {
		return nil
	}
	entry.enabled = false
	s.disarmLocked(entry)
	s.logger.Info().Str("job", name).Msg("Scheduled job disabled")
	return nil
}

func (s *Service) GetJobStatus(name string) (*interfaces.ScheduledJobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[name]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "scheduled job not found: %s", name)
	}
	return s.statusLocked(entry), nil
}

func (s *Service) GetAllJobStatuses() map[string]*interfaces.ScheduledJobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make(map[string]*interfaces.ScheduledJobStatus, len(s.jobs))
	for name, entry := range s.jobs {
		statuses[name] = s.statusLocked(entry)
	}
	return statuses
}

func (s *Service) statusLocked(entry *jobEntry) *interfaces.ScheduledJobStatus {
	status := &interfaces.ScheduledJobStatus{
		Name:        entry.name,
		Enabled:     entry.enabled,
		Schedule:    entry.schedule,
		Description: entry.description,
		IsRunning:   entry.isRunning,
		LastError:   entry.lastError,
	}
	if entry.lastRun != nil {
		t := *entry.lastRun
		status.LastRun = &t
	}
	if s.running && entry.cronID != 0 {
		if next := s.cron.Entry(entry.cronID).Next; !next.IsZero() {
			n := next
			status.NextRun = &n
		}
	}
	return status
}

// armLocked adds the job to the cron runner. Already-armed entries keep
// their ID, which makes Start after Stop safe.
func (s *Service) armLocked(entry *jobEntry) error {
	if entry.cronID != 0 {
		return nil
	}
	name := entry.name
	id, err := s.cron.AddFunc(entry.schedule, func() { s.tick(name) })
	if err != nil {
		return models.Errorf(models.ErrInvalidArgument, "invalid schedule %q: %v", entry.schedule, err)
	}
	entry.cronID = id
	return nil
}

func (s *Service) disarmLocked(entry *jobEntry) {
	if entry.cronID != 0 {
		s.cron.Remove(entry.cronID)
		entry.cronID = 0
	}
}

// tick is the cron-fired execution. A tick that lands while the previous
// execution is still running skips instead of stacking.
func (s *Service) tick(name string) {
	if err := s.run(name, false); err != nil {
		if models.KindOf(err) == models.ErrConflict {
			s.logger.Info().Str("job", name).Msg("Scheduled tick skipped, previous execution still running")
		}
	}
}

func (s *Service) run(name string, manual bool) error {
	handler, err := s.claim(name, manual)
	if err != nil {
		return err
	}

	started := time.Now().UTC()
	rerr := runSafely(handler)
	s.finish(name, started, rerr)

	if rerr != nil {
		s.logger.Warn().Err(rerr).Str("job", name).Msg("Scheduled job failed")
	}
	return rerr
}

// claim marks the job running. Manual triggers may run a disabled job;
// cron ticks may not.
func (s *Service) claim(name string, manual bool) (func() error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[name]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "scheduled job not found: %s", name)
	}
	if !manual && !entry.enabled {
		return nil, models.Errorf(models.ErrConflict, "job %s is disabled", name)
	}
	if entry.isRunning {
		return nil, models.Errorf(models.ErrConflict, "job %s is already running", name)
	}
	entry.isRunning = true
	return entry.handler, nil
}

func (s *Service) finish(name string, started time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[name]
	if !ok {
		return
	}
	entry.isRunning = false
	entry.lastRun = &started
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
}

// runSafely turns a handler panic into an error so one bad job cannot
// take the cron runner down.
func runSafely(handler func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler()
}

// FullPipelineSchedule returns the cron descriptor for an interval in
// hours, defaulting to every six hours.
func FullPipelineSchedule(hours int) string {
	if hours <= 0 {
		hours = 6
	}
	return fmt.Sprintf("@every %dh", hours)
}

// RegisterFullPipeline registers the periodic full-pipeline trigger at
// the configured interval. The handler treats an operation conflict as a
// skip: something is already running and the next tick will catch up.
func RegisterFullPipeline(s interfaces.SchedulerService, cfg *common.SchedulerConfig, pipeline interfaces.PipelineService, logger arbor.ILogger) error {
	schedule := FullPipelineSchedule(cfg.IntervalHours)
	logger = logger.WithContextWriter("scheduler")

	return s.RegisterJob(FullPipelineJobName, schedule, "Discover, crawl, enrich, and embed job postings", func() error {
		run, err := pipeline.StartOperation(context.Background(), models.OpFullPipeline, models.RunParams{}, "scheduled")
		if err != nil {
			if models.KindOf(err) == models.ErrConflict {
				logger.Info().Msg("Skipping scheduled pipeline, an operation is already running")
				return nil
			}
			return err
		}
		logger.Info().Str("run_id", run.ID).Msg("Scheduled pipeline run started")
		return nil
	})
}
