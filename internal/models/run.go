package models

import (
	"time"
)

// RunStatus is the lifecycle state of a pipeline run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunOperation identifies what a pipeline run executes. Crawl runs over a
// single vendor use the crawl_<ats> form from OpCrawlFor.
type RunOperation string

const (
	OpFullPipeline RunOperation = "full_pipeline"
	OpDiscovery    RunOperation = "discovery"
	OpDetectATS    RunOperation = "detect_ats"
	OpCrawlAll     RunOperation = "crawl_all"
	OpEnrich       RunOperation = "enrich"
	OpEmbeddings   RunOperation = "embeddings"
	OpMatch        RunOperation = "match"
	OpMaintenance  RunOperation = "maintenance"
)

// OpCrawlFor returns the per-vendor crawl operation, e.g. crawl_greenhouse
func OpCrawlFor(ats ATSType) RunOperation {
	return RunOperation("crawl_" + string(ats))
}

// Failure reasons stored on Error for runs that did not finish on their own
const (
	RunErrorOrphaned  = "orphaned"
	RunErrorCancelled = "cancelled"
)

// RunStats holds per-run counters. Processed and Failed are the primary
// pair every stage maintains; the rest are stage-specific detail.
type RunStats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`

	CompaniesTotal     int `json:"companies_total,omitempty"`
	CompaniesCrawled   int `json:"companies_crawled,omitempty"`
	CompaniesUnchanged int `json:"companies_unchanged,omitempty"`
	SnapshotsStored    int `json:"snapshots_stored,omitempty"`
	JobsExtracted      int `json:"jobs_extracted,omitempty"`
	JobsNormalized     int `json:"jobs_normalized,omitempty"`
	JobsEnriched       int `json:"jobs_enriched,omitempty"`
	JobsEmbedded       int `json:"jobs_embedded,omitempty"`
	JobsVerified       int `json:"jobs_verified,omitempty"`
	JobsDelisted       int `json:"jobs_delisted,omitempty"`
	CandidatesEmbedded int `json:"candidates_embedded,omitempty"`
	MatchesCreated     int `json:"matches_created,omitempty"`
	QueueEnqueued      int `json:"queue_enqueued,omitempty"`
	QueueCompleted     int `json:"queue_completed,omitempty"`
}

// RunParams narrows the scope of an operation and carries the full
// pipeline's stage skip flags
type RunParams struct {
	SkipDiscovery  bool `json:"skip_discovery,omitempty"`
	SkipCrawl      bool `json:"skip_crawl,omitempty"`
	SkipEnrichment bool `json:"skip_enrichment,omitempty"`
	SkipEmbeddings bool `json:"skip_embeddings,omitempty"`

	// ATSType limits a crawl to one vendor
	ATSType ATSType `json:"ats_type,omitempty"`
	// CompanyIDs limits crawl or maintenance to specific companies
	CompanyIDs []string `json:"company_ids,omitempty"`
	// CandidateIDs limits matching to specific candidates
	CandidateIDs []string `json:"candidate_ids,omitempty"`
	// SourceNames limits discovery to specific sources
	SourceNames []string `json:"source_names,omitempty"`
	// QueueLimit caps discovery queue processing for the run
	QueueLimit int `json:"queue_limit,omitempty"`
	// Force re-processes records that change detection or staleness
	// checks would otherwise skip
	Force bool `json:"force,omitempty"`
}

// PipelineRun records one execution of a pipeline operation. The run
// registry holds the live view; this row is the durable one. Sub-runs
// started by a full pipeline carry the parent id and cascade=true.
type PipelineRun struct {
	ID          string       `json:"id"`
	Operation   RunOperation `json:"operation"`
	Status      RunStatus    `json:"status"`
	TriggeredBy string       `json:"triggered_by"` // manual, scheduled
	ParentID    string       `json:"parent_id,omitempty"`
	Cascade     bool         `json:"cascade,omitempty"`

	Params RunParams `json:"params,omitempty"`
	Stats  RunStats  `json:"stats"`

	// CurrentStep and Progress are checkpoint fields, updated no more
	// than once per 200ms
	CurrentStep string  `json:"current_step,omitempty"`
	Progress    float64 `json:"progress"`

	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the run has finished. CompletedAt is set
// exactly when the status leaves running.
func (r *PipelineRun) IsTerminal() bool {
	return r.Status != RunStatusRunning
}

// Duration returns elapsed time for the run, using now for runs still in
// flight
func (r *PipelineRun) Duration(now time.Time) time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// RunLogEntry is a structured log line attached to a run and streamed to
// websocket subscribers
type RunLogEntry struct {
	ID        string                 `json:"id"`
	RunID     string                 `json:"run_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// ServiceLogEntry is a process log line lifted off the logger's context
// channel and streamed to websocket subscribers. Source is the correlation
// scope the line was logged under: a run id, or a component name such as
// "scheduler". Not persisted.
type ServiceLogEntry struct {
	Timestamp time.Time `json:"ts"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Source    string    `json:"source,omitempty"`
}
