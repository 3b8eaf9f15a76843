package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/handlers"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/services/atsdetect"
	"github.com/ternarybob/jobhound/internal/services/discovery"
	"github.com/ternarybob/jobhound/internal/services/embed"
	"github.com/ternarybob/jobhound/internal/services/events"
	"github.com/ternarybob/jobhound/internal/services/extract"
	"github.com/ternarybob/jobhound/internal/services/fetch"
	"github.com/ternarybob/jobhound/internal/services/llm"
	"github.com/ternarybob/jobhound/internal/services/logstream"
	"github.com/ternarybob/jobhound/internal/services/maintain"
	"github.com/ternarybob/jobhound/internal/services/match"
	"github.com/ternarybob/jobhound/internal/services/normalize"
	"github.com/ternarybob/jobhound/internal/services/pipeline"
	"github.com/ternarybob/jobhound/internal/services/report"
	"github.com/ternarybob/jobhound/internal/services/scheduler"
	"github.com/ternarybob/jobhound/internal/services/status"
	"github.com/ternarybob/jobhound/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager interfaces.StorageManager

	// Shared infrastructure
	EventService interfaces.EventService
	LogTail      *logstream.Tail
	Fetcher      *fetch.Service
	LLMService   *llm.ClaudeService
	Embedder     interfaces.EmbeddingService

	// Pipeline stages
	Detector         interfaces.ATSDetector
	Extractors       interfaces.ExtractorRegistry
	Enricher         interfaces.JobEnricher
	Normalizer       *normalize.Service
	DiscoveryService interfaces.DiscoveryService
	Matcher          interfaces.MatcherService
	Maintenance      interfaces.MaintenanceService

	// Orchestration
	PipelineService  *pipeline.Service
	SchedulerService interfaces.SchedulerService
	StatusService    *status.Service

	// Resume parsing and match reports
	ReportExtractor *report.Extractor
	ReportService   *report.Service

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	JobHandler       *handlers.JobHandler
	CandidateHandler *handlers.CandidateHandler
	CompanyHandler   *handlers.CompanyHandler
	AnalyticsHandler *handlers.AnalyticsHandler
	PipelineHandler  *handlers.PipelineHandler
	DiscoveryHandler *handlers.DiscoveryHandler
	SchedulerHandler *handlers.SchedulerHandler
	StatusHandler    *handlers.StatusHandler
	KVHandler        *handlers.KVHandler
	WSHandler        *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	// Initialize database
	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Event bus precedes every service that publishes on it
	app.EventService = events.NewService(app.Logger)

	// Bridge process logs onto the bus for websocket streaming. Loggers
	// derived with WithContextWriter (runs, scheduler) feed this channel.
	app.LogTail = logstream.NewTail(app.EventService, &cfg.WebSocket, app.Logger)
	if err := app.LogTail.Start(); err != nil {
		app.StorageManager.Close()
		cancel()
		return nil, fmt.Errorf("failed to start service log tail: %w", err)
	}
	app.Logger.SetChannel("context", app.LogTail.Channel())

	// Initialize services
	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		cancel()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Initialize handlers
	app.initHandlers()

	// Fail any runs left behind by an unclean shutdown before new work
	// can start
	if count, err := app.PipelineService.ReconcileOrphans(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to reconcile orphaned runs")
	} else if count > 0 {
		logger.Info().Int("count", count).Msg("Marked orphaned runs from previous session as failed")
	}

	if cfg.Scheduler.Enabled && cfg.Scheduler.AutoStart {
		if err := app.SchedulerService.Start(); err != nil {
			logger.Warn().Err(err).Msg("Failed to auto-start scheduler")
		} else {
			logger.Info().Int("interval_hours", cfg.Scheduler.IntervalHours).Msg("Scheduler auto-started")
		}
	}

	logger.Info().
		Bool("claude_enabled", app.LLMService != nil).
		Bool("gemini_enabled", app.Embedder != nil).
		Bool("scheduler_running", app.SchedulerService.IsRunning()).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Badger.Path).
		Msg("Storage layer initialized")

	// Load API keys from .env into the KV store before config replacement
	// so {key-name} references can resolve against them
	if err := a.StorageManager.LoadEnvFile(context.Background(), ".env"); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load .env file")
	}

	ctx := context.Background()

	// Seed missing default keys so the KV listing shows which credential
	// names the service looks up
	for _, kv := range common.GetDefaultKVValues() {
		if _, err := a.StorageManager.KV().GetPair(ctx, kv.Key); err == nil {
			continue
		}
		if err := a.StorageManager.KV().Set(ctx, kv.Key, kv.Value, kv.Description); err != nil {
			a.Logger.Warn().Err(err).Str("key", kv.Key).Msg("Failed to seed default KV entry")
		}
	}

	// Perform {key-name} replacement in config after storage initialization.
	// Must happen before the Claude and Gemini clients are constructed.
	pairs, err := a.StorageManager.KV().List(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to fetch KV pairs for config replacement, skipping replacement")
		return nil
	}
	if len(pairs) == 0 {
		a.Logger.Debug().Msg("No key/value pairs found, skipping config replacement")
		return nil
	}

	kvMap := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		kvMap[pair.Key] = pair.Value
	}
	if err := common.ReplaceInStruct(a.Config, kvMap, a.Logger); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to replace key references in config")
	} else {
		a.Logger.Debug().Int("keys", len(kvMap)).Msg("Applied key/value replacements to config")
	}

	return nil
}

// initServices initializes pipeline services in dependency order: the
// shared fetcher first, then the per-stage services that consume it, then
// the orchestrator that drives them all.
func (a *App) initServices() error {
	// 1. Shared fetcher used by every crawling stage
	a.Fetcher = fetch.NewService(&a.Config.Crawler, &a.Config.Browser, a.Logger)
	a.Logger.Debug().Msg("Fetcher initialized")

	// 2. Claude client for custom-site extraction. Startup proceeds
	// without it; LLM extraction then reports per-company errors instead.
	llmService, err := llm.NewClaudeService(&a.Config.Claude, a.StorageManager.KV(), a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Claude service unavailable - custom-site extraction disabled")
	} else {
		a.LLMService = llmService
	}

	// 3. Gemini embedder. Same deal: embeddings and matching degrade
	// gracefully when no key is configured.
	embedder, err := embed.NewService(&a.Config.Gemini, a.StorageManager.KV(), a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Embedding service unavailable - embeddings and matching disabled")
	} else {
		a.Embedder = embedder
	}

	// 4. ATS detection and extraction
	a.Detector = atsdetect.NewService(a.Fetcher, a.Logger)

	// Keep the interface nil when Claude is absent so extractors can tell
	var llmSvc interfaces.LLMService
	if a.LLMService != nil {
		llmSvc = a.LLMService
	}
	a.Extractors = extract.NewRegistry(a.Fetcher, llmSvc, a.Config.Claude.ExcerptLimit, a.Logger)
	a.Enricher = extract.NewEnricher(a.Fetcher, a.Logger)
	a.Normalizer = normalize.NewService(a.Logger)
	a.Logger.Debug().Msg("Extraction services initialized")

	// 5. Discovery sources and queue
	sources := discovery.BuildSources(a.Config, a.Fetcher, a.Logger)
	a.DiscoveryService = discovery.NewService(
		a.Config,
		a.StorageManager.Discovery(),
		a.StorageManager.Companies(),
		a.Detector,
		sources,
		a.Logger,
	)
	a.Logger.Debug().Int("sources", len(sources)).Msg("Discovery service initialized")

	// 6. Matching and maintenance
	a.Matcher = match.NewService(
		a.Config,
		a.StorageManager.Jobs(),
		a.StorageManager.Candidates(),
		a.StorageManager.Matches(),
		a.StorageManager.Companies(),
		a.Logger,
	)
	a.Maintenance = maintain.NewService(
		a.Config,
		a.StorageManager.Companies(),
		a.StorageManager.Jobs(),
		a.Extractors,
		a.Logger,
	)

	// 7. Resume parsing and report rendering, ahead of the pipeline which
	// renders maintenance summaries through it
	a.ReportExtractor = report.NewExtractor(a.Logger)
	a.ReportService = report.NewService(a.Logger)

	// 8. Pipeline orchestrator over all stages
	a.PipelineService = pipeline.NewService(a.Config, pipeline.Deps{
		Companies:   a.StorageManager.Companies(),
		Snapshots:   a.StorageManager.Snapshots(),
		RawJobs:     a.StorageManager.RawJobs(),
		Jobs:        a.StorageManager.Jobs(),
		Candidates:  a.StorageManager.Candidates(),
		Runs:        a.StorageManager.Runs(),
		Discovery:   a.DiscoveryService,
		Detector:    a.Detector,
		Extractors:  a.Extractors,
		Enricher:    a.Enricher,
		Normalizer:  a.Normalizer,
		Embedder:    a.Embedder,
		Matcher:     a.Matcher,
		Maintenance: a.Maintenance,
		Reports:     a.ReportService,
		Events:      a.EventService,
	}, a.Logger)
	a.Logger.Debug().Msg("Pipeline service initialized")

	// 9. Scheduler. The job is registered even when the scheduler is
	// disabled so a manual start via the API always has it.
	a.SchedulerService = scheduler.NewService(a.Logger)
	if err := scheduler.RegisterFullPipeline(a.SchedulerService, &a.Config.Scheduler, a.PipelineService, a.Logger); err != nil {
		return fmt.Errorf("failed to register scheduled pipeline job: %w", err)
	}

	// 10. Health probes for /healthz
	a.StatusService = status.NewService(a.Logger)
	a.StatusService.Register("storage", func(ctx context.Context) error {
		_, err := a.StorageManager.Jobs().CountJobs(ctx)
		return err
	})
	a.StatusService.Register("claude", func(ctx context.Context) error {
		if a.LLMService == nil {
			return errors.New("api key not configured")
		}
		return nil
	})
	a.StatusService.Register("gemini", func(ctx context.Context) error {
		if a.Embedder == nil {
			return errors.New("api key not configured")
		}
		return nil
	})

	return nil
}

// initHandlers initializes HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.JobHandler = handlers.NewJobHandler(a.StorageManager, a.Logger)
	a.CandidateHandler = handlers.NewCandidateHandler(
		a.StorageManager,
		a.Embedder,
		a.Matcher,
		a.ReportExtractor,
		a.ReportService,
		a.Logger,
	)
	a.CompanyHandler = handlers.NewCompanyHandler(a.StorageManager, a.DiscoveryService, a.Logger)
	a.AnalyticsHandler = handlers.NewAnalyticsHandler(a.StorageManager, a.Logger)
	a.PipelineHandler = handlers.NewPipelineHandler(a.PipelineService, a.SchedulerService, a.StorageManager, a.Logger)
	a.DiscoveryHandler = handlers.NewDiscoveryHandler(a.DiscoveryService, a.PipelineService, a.Logger)
	a.SchedulerHandler = handlers.NewSchedulerHandler(a.SchedulerService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.StatusService, a.Logger)
	a.KVHandler = handlers.NewKVHandler(a.StorageManager.KV(), a.Logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.PipelineService, &a.Config.WebSocket, a.Logger)

	a.Logger.Debug().Msg("HTTP handlers initialized")
}

// Close closes all application resources in reverse initialization order
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.Logger.Info().Msg("Cancelling background goroutines")
		a.cancelCtx()
		// Allow in-flight pipeline steps to observe the cancellation
		time.Sleep(100 * time.Millisecond)
	}

	// Stop scheduler before the pipeline so no new runs start mid-shutdown
	if a.SchedulerService != nil && a.SchedulerService.IsRunning() {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	// Waits for running operations to finish cancelling
	if a.PipelineService != nil {
		if err := a.PipelineService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close pipeline service")
		}
	}

	if a.Fetcher != nil {
		if err := a.Fetcher.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close fetcher")
		}
	}

	// Drain the log tail before the event bus goes away
	if a.LogTail != nil {
		if err := a.LogTail.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop service log tail")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	// Close storage last; everything above may still flush writes
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
