package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/jobhound/internal/models"
)

// CompanyFilter narrows company list queries
type CompanyFilter struct {
	ATSType  models.ATSType
	Source   string
	Country  string
	IsActive *bool
	Limit    int
	Offset   int
}

// JobFilter narrows job list queries. Text matches against title and
// skills, case-insensitive.
type JobFilter struct {
	CompanyID      string
	RoleFamily     models.RoleFamily
	Seniority      models.Seniority
	LocationType   models.LocationType
	EmploymentType models.EmploymentType
	IsActive       *bool
	MinSalary      int
	PostedAfter    *time.Time
	Text           string
	Limit          int
	Offset         int
}

// CompanyStorage - interface for company persistence
type CompanyStorage interface {
	SaveCompany(ctx context.Context, company *models.Company) error
	SaveCompanies(ctx context.Context, companies []*models.Company) error
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	GetCompanyByDomain(ctx context.Context, domain string) (*models.Company, error)
	GetCompanyByATSIdentifier(ctx context.Context, atsType models.ATSType, identifier string) (*models.Company, error)
	ListCompanies(ctx context.Context, filter *CompanyFilter) ([]*models.Company, error)
	// ListDueForCrawl returns active companies never crawled or last
	// crawled before cutoff, ordered by crawl priority
	ListDueForCrawl(ctx context.Context, cutoff time.Time, limit int) ([]*models.Company, error)
	// ListDueForMaintenance returns active companies with a resolved ATS
	// whose catalog was last verified before cutoff, oldest first
	ListDueForMaintenance(ctx context.Context, cutoff time.Time, limit int) ([]*models.Company, error)
	DeleteCompany(ctx context.Context, id string) error
	CountCompanies(ctx context.Context) (int, error)
	GetCompanyStats(ctx context.Context) (*models.CompanyStats, error)
}

// SnapshotStorage - interface for crawl snapshot persistence
type SnapshotStorage interface {
	SaveSnapshot(ctx context.Context, snapshot *models.CrawlSnapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.CrawlSnapshot, error)
	GetLatestSnapshot(ctx context.Context, companyID string) (*models.CrawlSnapshot, error)
	ListSnapshotsByCompany(ctx context.Context, companyID string, limit int) ([]*models.CrawlSnapshot, error)
	// PruneSnapshots removes snapshots older than cutoff, retaining the
	// most recent snapshot per (company, URL) so change detection keeps
	// its baseline. Returns the number removed.
	PruneSnapshots(ctx context.Context, cutoff time.Time) (int, error)
	DeleteSnapshotsByCompany(ctx context.Context, companyID string) error
	CountSnapshots(ctx context.Context) (int, error)
	// ListCrawlTimes returns crawled_at timestamps of snapshots taken
	// since the cutoff, for analytics without shipping page content
	ListCrawlTimes(ctx context.Context, since time.Time) ([]time.Time, error)
}

// RawJobStorage - interface for extracted raw job persistence
type RawJobStorage interface {
	SaveRawJob(ctx context.Context, raw *models.RawJob) error
	SaveRawJobs(ctx context.Context, raws []*models.RawJob) error
	GetRawJob(ctx context.Context, id string) (*models.RawJob, error)
	GetRawJobByURL(ctx context.Context, sourceURL string) (*models.RawJob, error)
	ListRawJobsByCompany(ctx context.Context, companyID string) ([]*models.RawJob, error)
	// ListUnnormalized returns raw jobs not yet turned into canonical jobs
	ListUnnormalized(ctx context.Context, limit int) ([]*models.RawJob, error)
	DeleteRawJobsByCompany(ctx context.Context, companyID string) error
	CountRawJobs(ctx context.Context) (int, error)
}

// JobStorage - interface for canonical job persistence
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	SaveJobs(ctx context.Context, jobs []*models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	GetJobByRawJobID(ctx context.Context, rawJobID string) (*models.Job, error)
	ListJobs(ctx context.Context, filter *JobFilter) ([]*models.Job, error)
	ListActiveJobsByCompany(ctx context.Context, companyID string) ([]*models.Job, error)
	// ListUnembedded returns active jobs without an embedding vector
	ListUnembedded(ctx context.Context, limit int) ([]*models.Job, error)
	// ListEmbeddedActive returns all active jobs carrying an embedding,
	// the match scan set
	ListEmbeddedActive(ctx context.Context) ([]*models.Job, error)
	// DelistJob marks a job inactive with a delist reason
	DelistJob(ctx context.Context, id string, reason string) error
	DeleteJobsByCompany(ctx context.Context, companyID string) (int, error)
	CountJobs(ctx context.Context) (int, error)
	GetJobStats(ctx context.Context) (*models.JobStats, error)
}

// CandidateStorage - interface for candidate profile persistence
type CandidateStorage interface {
	SaveCandidate(ctx context.Context, candidate *models.CandidateProfile) error
	GetCandidate(ctx context.Context, id string) (*models.CandidateProfile, error)
	GetCandidateByEmail(ctx context.Context, email string) (*models.CandidateProfile, error)
	ListCandidates(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.CandidateProfile, error)
	DeleteCandidate(ctx context.Context, id string) error
	CountCandidates(ctx context.Context) (int, error)
}

// MatchStorage - interface for candidate/job match persistence
type MatchStorage interface {
	SaveMatch(ctx context.Context, match *models.Match) error
	SaveMatches(ctx context.Context, matches []*models.Match) error
	GetMatch(ctx context.Context, id string) (*models.Match, error)
	// GetMatchByPair returns the existing match for a candidate/job pair
	// so re-runs update in place
	GetMatchByPair(ctx context.Context, candidateID, jobID string) (*models.Match, error)
	ListMatchesByCandidate(ctx context.Context, candidateID string, minScore float64, limit int) ([]*models.Match, error)
	DeleteMatchesByCandidate(ctx context.Context, candidateID string) (int, error)
	DeleteMatchesByJob(ctx context.Context, jobID string) (int, error)
	CountMatches(ctx context.Context) (int, error)
	GetMatchStats(ctx context.Context) (*models.MatchStats, error)
}

// RunStorage - interface for pipeline run persistence
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.PipelineRun) error
	GetRun(ctx context.Context, id string) (*models.PipelineRun, error)
	// ListRuns returns runs newest first
	ListRuns(ctx context.Context, limit, offset int) ([]*models.PipelineRun, error)
	// ListActiveRuns returns all runs still holding status running,
	// newest first. Used by the registry to reconcile orphans at startup.
	ListActiveRuns(ctx context.Context) ([]*models.PipelineRun, error)
	// GetLatestRunByOperation returns the most recently started run of
	// the given operation regardless of status, or a not found error
	GetLatestRunByOperation(ctx context.Context, op models.RunOperation) (*models.PipelineRun, error)
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error)
	CountRuns(ctx context.Context) (int, error)

	// Run log operations
	AppendRunLog(ctx context.Context, entry *models.RunLogEntry) error
	GetRunLogs(ctx context.Context, runID string, limit int) ([]*models.RunLogEntry, error)
	DeleteRunLogs(ctx context.Context, runID string) error
}

// DiscoveryStorage - interface for discovery queue persistence
type DiscoveryStorage interface {
	SaveQueueItem(ctx context.Context, item *models.DiscoveryQueueItem) error
	GetQueueItem(ctx context.Context, id string) (*models.DiscoveryQueueItem, error)
	// GetQueueItemByDomain looks up an item by normalized domain for dedupe
	GetQueueItemByDomain(ctx context.Context, normDomain string) (*models.DiscoveryQueueItem, error)
	// GetQueueItemByName looks up an item by normalized name for dedupe of
	// candidates with no domain
	GetQueueItemByName(ctx context.Context, normName string) (*models.DiscoveryQueueItem, error)
	ListQueueItems(ctx context.Context, status models.DiscoveryStatus, limit int) ([]*models.DiscoveryQueueItem, error)
	DeleteQueueItem(ctx context.Context, id string) error
	GetDiscoveryStats(ctx context.Context) (*models.DiscoveryStats, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	Companies() CompanyStorage
	Snapshots() SnapshotStorage
	RawJobs() RawJobStorage
	Jobs() JobStorage
	Candidates() CandidateStorage
	Matches() MatchStorage
	Runs() RunStorage
	Discovery() DiscoveryStorage
	KV() KeyValueStorage
	// LoadEnvFile seeds the key/value store from a .env file so config
	// {key} references resolve. Missing file is not an error.
	LoadEnvFile(ctx context.Context, filePath string) error
	// DiskUsage returns the on-disk LSM tree and value log sizes in bytes
	DiskUsage() (lsm, vlog int64)
	DB() interface{}
	Close() error
}
