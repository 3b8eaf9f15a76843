package pipeline

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
	"github.com/ternarybob/jobhound/internal/services/embed"
	"github.com/ternarybob/jobhound/internal/services/normalize"
)

// The storage fakes are mutex-guarded because crawl, enrichment, and
// detection run worker pools over them.

type fakeCompanyStore struct {
	mu        sync.Mutex
	companies map[string]*models.Company
}

func newFakeCompanyStore() *fakeCompanyStore {
	return &fakeCompanyStore{companies: make(map[string]*models.Company)}
}

func (f *fakeCompanyStore) SaveCompany(_ context.Context, company *models.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *company
	f.companies[company.ID] = &stored
	return nil
}

func (f *fakeCompanyStore) SaveCompanies(ctx context.Context, companies []*models.Company) error {
	for _, company := range companies {
		if err := f.SaveCompany(ctx, company); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeCompanyStore) GetCompany(_ context.Context, id string) (*models.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	company, ok := f.companies[id]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "company not found: %s", id)
	}
	stored := *company
	return &stored, nil
}

func (f *fakeCompanyStore) GetCompanyByDomain(_ context.Context, domain string) (*models.Company, error) {
	return nil, models.Errorf(models.ErrNotFound, "company not found for domain: %s", domain)
}

func (f *fakeCompanyStore) GetCompanyByATSIdentifier(_ context.Context, atsType models.ATSType, identifier string) (*models.Company, error) {
	return nil, models.Errorf(models.ErrNotFound, "company not found for %s/%s", atsType, identifier)
}

func (f *fakeCompanyStore) ListCompanies(_ context.Context, filter *interfaces.CompanyFilter) ([]*models.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Company
	for _, company := range f.companies {
		if filter != nil && filter.IsActive != nil && company.IsActive != *filter.IsActive {
			continue
		}
		stored := *company
		out = append(out, &stored)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCompanyStore) ListDueForCrawl(_ context.Context, cutoff time.Time, limit int) ([]*models.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Company
	for _, company := range f.companies {
		if !company.IsActive {
			continue
		}
		if company.LastCrawledAt != nil && !company.LastCrawledAt.Before(cutoff) {
			continue
		}
		stored := *company
		out = append(out, &stored)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCompanyStore) ListDueForMaintenance(_ context.Context, cutoff time.Time, limit int) ([]*models.Company, error) {
	return nil, nil
}

func (f *fakeCompanyStore) DeleteCompany(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.companies, id)
	return nil
}

func (f *fakeCompanyStore) CountCompanies(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.companies), nil
}

func (f *fakeCompanyStore) GetCompanyStats(_ context.Context) (*models.CompanyStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.CompanyStats{Total: len(f.companies)}, nil
}

type fakeSnapshotStore struct {
	mu        sync.Mutex
	snapshots []*models.CrawlSnapshot
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{}
}

func (f *fakeSnapshotStore) SaveSnapshot(_ context.Context, snapshot *models.CrawlSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *snapshot
	f.snapshots = append(f.snapshots, &stored)
	return nil
}

func (f *fakeSnapshotStore) GetSnapshot(_ context.Context, id string) (*models.CrawlSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, snapshot := range f.snapshots {
		if snapshot.ID == id {
			stored := *snapshot
			return &stored, nil
		}
	}
	return nil, models.Errorf(models.ErrNotFound, "snapshot not found: %s", id)
}

func (f *fakeSnapshotStore) GetLatestSnapshot(_ context.Context, companyID string) (*models.CrawlSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.CrawlSnapshot
	for _, snapshot := range f.snapshots {
		if snapshot.CompanyID != companyID {
			continue
		}
		if latest == nil || snapshot.CrawledAt.After(latest.CrawledAt) {
			latest = snapshot
		}
	}
	if latest == nil {
		return nil, models.Errorf(models.ErrNotFound, "no snapshots for company %s", companyID)
	}
	stored := *latest
	return &stored, nil
}

func (f *fakeSnapshotStore) ListSnapshotsByCompany(_ context.Context, companyID string, limit int) ([]*models.CrawlSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CrawlSnapshot
	for _, snapshot := range f.snapshots {
		if snapshot.CompanyID == companyID {
			stored := *snapshot
			out = append(out, &stored)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSnapshotStore) PruneSnapshots(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.snapshots[:0]
	pruned := 0
	for _, snapshot := range f.snapshots {
		if snapshot.CrawledAt.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, snapshot)
	}
	f.snapshots = kept
	return pruned, nil
}

func (f *fakeSnapshotStore) DeleteSnapshotsByCompany(_ context.Context, companyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.snapshots[:0]
	for _, snapshot := range f.snapshots {
		if snapshot.CompanyID != companyID {
			kept = append(kept, snapshot)
		}
	}
	f.snapshots = kept
	return nil
}

func (f *fakeSnapshotStore) CountSnapshots(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots), nil
}

type fakeRawJobStore struct {
	mu   sync.Mutex
	raws map[string]*models.RawJob
}

func newFakeRawJobStore() *fakeRawJobStore {
	return &fakeRawJobStore{raws: make(map[string]*models.RawJob)}
}

func (f *fakeRawJobStore) SaveRawJob(_ context.Context, raw *models.RawJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *raw
	f.raws[raw.ID] = &stored
	return nil
}

func (f *fakeRawJobStore) SaveRawJobs(ctx context.Context, raws []*models.RawJob) error {
	for _, raw := range raws {
		if err := f.SaveRawJob(ctx, raw); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRawJobStore) GetRawJob(_ context.Context, id string) (*models.RawJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.raws[id]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "raw job not found: %s", id)
	}
	stored := *raw
	return &stored, nil
}

func (f *fakeRawJobStore) GetRawJobByURL(_ context.Context, sourceURL string) (*models.RawJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, raw := range f.raws {
		if raw.SourceURL == sourceURL {
			stored := *raw
			return &stored, nil
		}
	}
	return nil, models.Errorf(models.ErrNotFound, "raw job not found for %s", sourceURL)
}

func (f *fakeRawJobStore) ListRawJobsByCompany(_ context.Context, companyID string) ([]*models.RawJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.RawJob
	for _, raw := range f.raws {
		if raw.CompanyID == companyID {
			stored := *raw
			out = append(out, &stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceURL < out[j].SourceURL })
	return out, nil
}

func (f *fakeRawJobStore) ListUnnormalized(_ context.Context, limit int) ([]*models.RawJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.RawJob
	for _, raw := range f.raws {
		if raw.NormalizedAt == nil {
			stored := *raw
			out = append(out, &stored)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRawJobStore) DeleteRawJobsByCompany(_ context.Context, companyID string) error {
	return nil
}

func (f *fakeRawJobStore) CountRawJobs(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.raws), nil
}

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*models.Job)}
}

func (f *fakeJobStore) SaveJob(_ context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *job
	f.jobs[job.ID] = &stored
	return nil
}

func (f *fakeJobStore) SaveJobs(ctx context.Context, jobs []*models.Job) error {
	for _, job := range jobs {
		if err := f.SaveJob(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeJobStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "job not found: %s", id)
	}
	stored := *job
	return &stored, nil
}

func (f *fakeJobStore) GetJobByRawJobID(_ context.Context, rawJobID string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.RawJobID == rawJobID {
			stored := *job
			return &stored, nil
		}
	}
	return nil, models.Errorf(models.ErrNotFound, "job not found for raw %s", rawJobID)
}

func (f *fakeJobStore) ListJobs(_ context.Context, _ *interfaces.JobFilter) ([]*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Job
	for _, job := range f.jobs {
		stored := *job
		out = append(out, &stored)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeJobStore) ListActiveJobsByCompany(_ context.Context, companyID string) ([]*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Job
	for _, job := range f.jobs {
		if job.CompanyID == companyID && job.IsActive {
			stored := *job
			out = append(out, &stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeJobStore) ListUnembedded(_ context.Context, limit int) ([]*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Job
	for _, job := range f.jobs {
		if job.IsActive && len(job.Embedding) == 0 {
			stored := *job
			out = append(out, &stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeJobStore) ListEmbeddedActive(_ context.Context) ([]*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Job
	for _, job := range f.jobs {
		if job.IsActive && len(job.Embedding) > 0 {
			stored := *job
			out = append(out, &stored)
		}
	}
	return out, nil
}

func (f *fakeJobStore) DelistJob(_ context.Context, id string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return models.Errorf(models.ErrNotFound, "job not found: %s", id)
	}
	now := time.Now().UTC()
	job.IsActive = false
	job.DelistedAt = &now
	job.DelistReason = reason
	return nil
}

func (f *fakeJobStore) DeleteJobsByCompany(_ context.Context, companyID string) (int, error) {
	return 0, nil
}

func (f *fakeJobStore) CountJobs(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs), nil
}

func (f *fakeJobStore) GetJobStats(_ context.Context) (*models.JobStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.JobStats{Total: len(f.jobs)}, nil
}

type fakeCandidateStore struct {
	mu         sync.Mutex
	candidates map[string]*models.CandidateProfile
}

func newFakeCandidateStore() *fakeCandidateStore {
	return &fakeCandidateStore{candidates: make(map[string]*models.CandidateProfile)}
}

func (f *fakeCandidateStore) SaveCandidate(_ context.Context, candidate *models.CandidateProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *candidate
	f.candidates[candidate.ID] = &stored
	return nil
}

func (f *fakeCandidateStore) GetCandidate(_ context.Context, id string) (*models.CandidateProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	candidate, ok := f.candidates[id]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "candidate not found: %s", id)
	}
	stored := *candidate
	return &stored, nil
}

func (f *fakeCandidateStore) GetCandidateByEmail(_ context.Context, email string) (*models.CandidateProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, candidate := range f.candidates {
		if candidate.Email == email {
			stored := *candidate
			return &stored, nil
		}
	}
	return nil, models.Errorf(models.ErrNotFound, "candidate not found for %s", email)
}

func (f *fakeCandidateStore) ListCandidates(_ context.Context, activeOnly bool, limit, offset int) ([]*models.CandidateProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.CandidateProfile
	for _, candidate := range f.candidates {
		if activeOnly && !candidate.IsActive {
			continue
		}
		stored := *candidate
		out = append(out, &stored)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCandidateStore) DeleteCandidate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.candidates, id)
	return nil
}

func (f *fakeCandidateStore) CountCandidates(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.candidates), nil
}

type fakeRunStore struct {
	mu   sync.Mutex
	runs map[string]*models.PipelineRun
	logs map[string][]*models.RunLogEntry
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{
		runs: make(map[string]*models.PipelineRun),
		logs: make(map[string][]*models.RunLogEntry),
	}
}

func (f *fakeRunStore) SaveRun(_ context.Context, run *models.PipelineRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *run
	f.runs[run.ID] = &stored
	return nil
}

func (f *fakeRunStore) GetRun(_ context.Context, id string) (*models.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "run not found: %s", id)
	}
	stored := *run
	return &stored, nil
}

func (f *fakeRunStore) ListRuns(_ context.Context, limit, offset int) ([]*models.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PipelineRun
	for _, run := range f.runs {
		stored := *run
		out = append(out, &stored)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRunStore) ListActiveRuns(_ context.Context) ([]*models.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PipelineRun
	for _, run := range f.runs {
		if run.Status == models.RunStatusRunning {
			stored := *run
			out = append(out, &stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (f *fakeRunStore) GetLatestRunByOperation(_ context.Context, op models.RunOperation) (*models.PipelineRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.PipelineRun
	for _, run := range f.runs {
		if run.Operation != op {
			continue
		}
		if latest == nil || run.StartedAt.After(latest.StartedAt) {
			latest = run
		}
	}
	if latest == nil {
		return nil, models.Errorf(models.ErrNotFound, "no runs for operation %s", op)
	}
	stored := *latest
	return &stored, nil
}

func (f *fakeRunStore) DeleteRunsBefore(_ context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (f *fakeRunStore) CountRuns(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs), nil
}

func (f *fakeRunStore) AppendRunLog(_ context.Context, entry *models.RunLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *entry
	f.logs[entry.RunID] = append(f.logs[entry.RunID], &stored)
	return nil
}

func (f *fakeRunStore) GetRunLogs(_ context.Context, runID string, limit int) ([]*models.RunLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.logs[runID]
	out := make([]*models.RunLogEntry, 0, len(entries))
	for _, entry := range entries {
		stored := *entry
		out = append(out, &stored)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRunStore) DeleteRunLogs(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.logs, runID)
	return nil
}

type fakeDiscovery struct {
	mu              sync.Mutex
	runSourcesCalls int
	processCalls    int
	enqueued        int
	created         int
	failed          int
	err             error
}

func (f *fakeDiscovery) RunSources(_ context.Context, names []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runSourcesCalls++
	if f.err != nil {
		return 0, f.err
	}
	return f.enqueued, nil
}

func (f *fakeDiscovery) Enqueue(_ context.Context, candidates []models.CompanyCandidate) (int, error) {
	return len(candidates), nil
}

func (f *fakeDiscovery) ProcessQueue(_ context.Context, limit int) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processCalls++
	if f.err != nil {
		return 0, 0, f.err
	}
	return f.created, f.failed, nil
}

func (f *fakeDiscovery) ListQueue(_ context.Context, status models.DiscoveryStatus, limit int) ([]*models.DiscoveryQueueItem, error) {
	return nil, nil
}

func (f *fakeDiscovery) Approve(_ context.Context, itemID string, atsType models.ATSType, identifier string) (*models.Company, error) {
	return nil, models.Errorf(models.ErrNotFound, "queue item not found: %s", itemID)
}

func (f *fakeDiscovery) Reject(_ context.Context, itemID, reason string) error {
	return nil
}

func (f *fakeDiscovery) Stats(_ context.Context) (*models.DiscoveryStats, error) {
	return &models.DiscoveryStats{}, nil
}

type fakeDetector struct {
	mu              sync.Mutex
	detectCalls     int
	rediscoverCalls int
	result          *interfaces.DetectionResult
	err             error
}

func (f *fakeDetector) Detect(_ context.Context, company *models.Company) (*interfaces.DetectionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detectCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeDetector) Rediscover(_ context.Context, company *models.Company) (*interfaces.DetectionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rediscoverCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeExtractor returns fresh copies of its raws so state never leaks
// between crawl runs through shared pointers.
type fakeExtractor struct {
	mu    sync.Mutex
	ats   models.ATSType
	raws  []*models.RawJob
	err   error
	calls int
}

func (f *fakeExtractor) Type() models.ATSType { return f.ats }

func (f *fakeExtractor) ListJobs(_ context.Context, company *models.Company) ([]*models.RawJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.RawJob, len(f.raws))
	for i, raw := range f.raws {
		stored := *raw
		stored.CompanyID = company.ID
		out[i] = &stored
	}
	return out, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExtractors struct {
	byType map[models.ATSType]*fakeExtractor
}

func (f *fakeExtractors) For(atsType models.ATSType) (interfaces.JobExtractor, error) {
	if e, ok := f.byType[atsType]; ok {
		return e, nil
	}
	return nil, models.Errorf(models.ErrInvalidArgument, "no extractor for %s", atsType)
}

type fakeEnricher struct {
	mu          sync.Mutex
	description string
	err         error
	urls        []string
}

func (f *fakeEnricher) Enrich(_ context.Context, raw *models.RawJob, company *models.Company) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, raw.SourceURL)
	if f.err != nil {
		return f.err
	}
	description := f.description
	if description == "" {
		description = "<p>We build developer tools for distributed teams.</p>"
	}
	raw.DescriptionRaw = description
	return nil
}

func (f *fakeEnricher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

type fakeEmbedder struct {
	mu         sync.Mutex
	available  bool
	dim        int
	jobBatches int
	jobsSeen   int
	candidates int
	embedErr   error
}

func (f *fakeEmbedder) vector() []float32 {
	v := make([]float32, f.dim)
	for i := range v {
		v[i] = 0.1
	}
	return v
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.vector(), nil
}

func (f *fakeEmbedder) EmbedJobs(_ context.Context, jobs []*models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobBatches++
	if f.embedErr != nil {
		return f.embedErr
	}
	for _, job := range jobs {
		text := embed.BuildJobText(job)
		if text == "" {
			continue
		}
		job.Embedding = f.vector()
		job.EmbeddingText = text
		job.EmbeddingModel = "fake-embed"
		f.jobsSeen++
	}
	return nil
}

func (f *fakeEmbedder) EmbedCandidate(_ context.Context, candidate *models.CandidateProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.embedErr != nil {
		return f.embedErr
	}
	text := embed.BuildCandidateText(candidate)
	if text == "" {
		return models.Errorf(models.ErrInvalidArgument, "candidate %s has no embeddable content", candidate.ID)
	}
	if candidate.EmbeddingText == text && len(candidate.Embedding) == f.dim {
		return nil
	}
	candidate.Embedding = f.vector()
	candidate.EmbeddingText = text
	candidate.EmbeddingModel = "fake-embed"
	f.candidates++
	return nil
}

func (f *fakeEmbedder) GenerateQueryEmbedding(_ context.Context, query string) ([]float32, error) {
	return f.vector(), nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }
func (f *fakeEmbedder) Dimension() int    { return f.dim }

func (f *fakeEmbedder) IsAvailable(_ context.Context) bool { return f.available }

type fakeMatcher struct {
	mu             sync.Mutex
	matchedIDs     []string
	matchesPerCall int
	err            error
}

func (f *fakeMatcher) MatchCandidate(_ context.Context, candidate *models.CandidateProfile, runID string, opts interfaces.MatchOptions) (*interfaces.MatchOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchedIDs = append(f.matchedIDs, candidate.ID)
	if f.err != nil {
		return nil, f.err
	}
	matches := make([]*models.Match, f.matchesPerCall)
	for i := range matches {
		matches[i] = &models.Match{ID: common.NewID(), CandidateID: candidate.ID, RunID: runID}
	}
	return &interfaces.MatchOutcome{Matches: matches}, nil
}

func (f *fakeMatcher) MatchAll(_ context.Context, runID string) (int, error) {
	return 0, nil
}

type fakeMaintenance struct {
	mu     sync.Mutex
	calls  int
	block  chan struct{}
	report *models.MaintenanceReport
	err    error
}

func (f *fakeMaintenance) Run(ctx context.Context, params models.RunParams, rl interfaces.RunLogger) (*models.MaintenanceReport, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-block:
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.report != nil {
		return f.report, nil
	}
	return &models.MaintenanceReport{}, nil
}

type fakeReports struct {
	mu        sync.Mutex
	markdowns []string
	err       error
}

func (f *fakeReports) ConvertMarkdownToPDF(markdown, title string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.markdowns = append(f.markdowns, markdown)
	return []byte("%PDF-fake " + title), nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (f *fakeEvents) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	return nil
}

func (f *fakeEvents) Publish(_ context.Context, event interfaces.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return f.Publish(ctx, event)
}

func (f *fakeEvents) Close() error { return nil }

func (f *fakeEvents) byType(eventType interfaces.EventType) []interfaces.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []interfaces.Event
	for _, event := range f.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type pipelineEnv struct {
	cfg        *common.Config
	companies  *fakeCompanyStore
	snapshots  *fakeSnapshotStore
	rawJobs    *fakeRawJobStore
	jobs       *fakeJobStore
	candidates *fakeCandidateStore
	runs       *fakeRunStore
	discovery  *fakeDiscovery
	detector   *fakeDetector
	extractors *fakeExtractors
	enricher   *fakeEnricher
	embedder   *fakeEmbedder
	matcher    *fakeMatcher
	maint      *fakeMaintenance
	reports    *fakeReports
	events     *fakeEvents
	svc        *Service
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	logger := arbor.NewLogger()

	env := &pipelineEnv{
		cfg:        common.NewDefaultConfig(),
		companies:  newFakeCompanyStore(),
		snapshots:  newFakeSnapshotStore(),
		rawJobs:    newFakeRawJobStore(),
		jobs:       newFakeJobStore(),
		candidates: newFakeCandidateStore(),
		runs:       newFakeRunStore(),
		discovery:  &fakeDiscovery{},
		detector:   &fakeDetector{},
		extractors: &fakeExtractors{byType: make(map[models.ATSType]*fakeExtractor)},
		enricher:   &fakeEnricher{},
		embedder:   &fakeEmbedder{available: true, dim: 8},
		matcher:    &fakeMatcher{},
		maint:      &fakeMaintenance{},
		reports:    &fakeReports{},
		events:     &fakeEvents{},
	}
	env.svc = NewService(env.cfg, Deps{
		Companies:   env.companies,
		Snapshots:   env.snapshots,
		RawJobs:     env.rawJobs,
		Jobs:        env.jobs,
		Candidates:  env.candidates,
		Runs:        env.runs,
		Discovery:   env.discovery,
		Detector:    env.detector,
		Extractors:  env.extractors,
		Enricher:    env.enricher,
		Normalizer:  normalize.NewService(logger),
		Embedder:    env.embedder,
		Matcher:     env.matcher,
		Maintenance: env.maint,
		Reports:     env.reports,
		Events:      env.events,
	}, logger)
	t.Cleanup(func() { _ = env.svc.Close() })
	return env
}

func (env *pipelineEnv) addCompany(t *testing.T, company *models.Company) {
	t.Helper()
	if err := env.companies.SaveCompany(context.Background(), company); err != nil {
		t.Fatalf("seed company: %v", err)
	}
}

func (env *pipelineEnv) extractor(ats models.ATSType, raws ...*models.RawJob) *fakeExtractor {
	e := &fakeExtractor{ats: ats, raws: raws}
	env.extractors.byType[ats] = e
	return e
}

// waitForRun polls the run row until it leaves running state. Terminal
// state is written after the registry slot is released, so a terminal
// row means the operation slot is free again.
func waitForRun(t *testing.T, env *pipelineEnv, runID string) *models.PipelineRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		run, err := env.runs.GetRun(context.Background(), runID)
		if err == nil && run.IsTerminal() {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s did not reach a terminal state", runID)
	return nil
}

func rawPosting(sourceURL, title, location string) *models.RawJob {
	return &models.RawJob{
		SourceURL:      sourceURL,
		TitleRaw:       title,
		DescriptionRaw: "<p>Build and operate " + title + " systems.</p>",
		LocationRaw:    location,
	}
}

func activeCompany(id, name string, ats models.ATSType) *models.Company {
	return &models.Company{
		ID:         id,
		Name:       name,
		ATSType:    ats,
		CareersURL: "https://jobs.example.com/" + id,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}
