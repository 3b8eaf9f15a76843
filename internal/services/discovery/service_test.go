package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

type fakeQueue struct {
	items map[string]*models.DiscoveryQueueItem
	order []string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{items: make(map[string]*models.DiscoveryQueueItem)}
}

func (q *fakeQueue) SaveQueueItem(_ context.Context, item *models.DiscoveryQueueItem) error {
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if _, ok := q.items[item.ID]; !ok {
		q.order = append(q.order, item.ID)
	}
	stored := *item
	q.items[item.ID] = &stored
	return nil
}

func (q *fakeQueue) GetQueueItem(_ context.Context, id string) (*models.DiscoveryQueueItem, error) {
	item, ok := q.items[id]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "queue item not found: %s", id)
	}
	stored := *item
	return &stored, nil
}

func (q *fakeQueue) GetQueueItemByDomain(_ context.Context, normDomain string) (*models.DiscoveryQueueItem, error) {
	if normDomain == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "domain is empty")
	}
	for _, id := range q.order {
		if q.items[id].NormDomain == normDomain {
			stored := *q.items[id]
			return &stored, nil
		}
	}
	return nil, models.Errorf(models.ErrNotFound, "queue item not found for domain: %s", normDomain)
}

func (q *fakeQueue) GetQueueItemByName(_ context.Context, normName string) (*models.DiscoveryQueueItem, error) {
	if normName == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "name is empty")
	}
	for _, id := range q.order {
		if q.items[id].NormName == normName {
			stored := *q.items[id]
			return &stored, nil
		}
	}
	return nil, models.Errorf(models.ErrNotFound, "queue item not found for name: %s", normName)
}

func (q *fakeQueue) ListQueueItems(_ context.Context, status models.DiscoveryStatus, limit int) ([]*models.DiscoveryQueueItem, error) {
	var out []*models.DiscoveryQueueItem
	for _, id := range q.order {
		item := q.items[id]
		if status != "" && item.Status != status {
			continue
		}
		stored := *item
		out = append(out, &stored)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (q *fakeQueue) DeleteQueueItem(_ context.Context, id string) error {
	delete(q.items, id)
	return nil
}

func (q *fakeQueue) GetDiscoveryStats(_ context.Context) (*models.DiscoveryStats, error) {
	stats := &models.DiscoveryStats{}
	for _, item := range q.items {
		switch item.Status {
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

type fakeCompanies struct {
	companies map[string]*models.Company
}

func newFakeCompanies() *fakeCompanies {
	return &fakeCompanies{companies: make(map[string]*models.Company)}
}

func (c *fakeCompanies) SaveCompany(_ context.Context, company *models.Company) error {
	now := time.Now()
	if company.CreatedAt.IsZero() {
		company.CreatedAt = now
	}
	company.UpdatedAt = now
	stored := *company
	c.companies[company.ID] = &stored
	return nil
}

func (c *fakeCompanies) SaveCompanies(ctx context.Context, companies []*models.Company) error {
	for _, company := range companies {
		if err := c.SaveCompany(ctx, company); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeCompanies) GetCompany(_ context.Context, id string) (*models.Company, error) {
	company, ok := c.companies[id]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "company not found: %s", id)
	}
	stored := *company
	return &stored, nil
}

func (c *fakeCompanies) GetCompanyByDomain(_ context.Context, domain string) (*models.Company, error) {
	for _, company := range c.companies {
		if company.Domain == domain && domain != "" {
			stored := *company
			return &stored, nil
		}
	}
	return nil, models.Errorf(models.ErrNotFound, "company not found for domain: %s", domain)
}

func (c *fakeCompanies) GetCompanyByATSIdentifier(_ context.Context, atsType models.ATSType, identifier string) (*models.Company, error) {
	for _, company := range c.companies {
		if company.ATSType == atsType && company.ATSIdentifier == identifier {
			stored := *company
			return &stored, nil
		}
	}
	return nil, models.Errorf(models.ErrNotFound, "company not found for %s/%s", atsType, identifier)
}

func (c *fakeCompanies) ListCompanies(_ context.Context, _ *interfaces.CompanyFilter) ([]*models.Company, error) {
	var out []*models.Company
	for _, company := range c.companies {
		stored := *company
		out = append(out, &stored)
	}
	return out, nil
}

func (c *fakeCompanies) ListDueForCrawl(_ context.Context, _ time.Time, _ int) ([]*models.Company, error) {
	return nil, nil
}

func (c *fakeCompanies) ListDueForMaintenance(_ context.Context, _ time.Time, _ int) ([]*models.Company, error) {
	return nil, nil
}

func (c *fakeCompanies) DeleteCompany(_ context.Context, id string) error {
	delete(c.companies, id)
	return nil
}

func (c *fakeCompanies) CountCompanies(_ context.Context) (int, error) {
	return len(c.companies), nil
}

func (c *fakeCompanies) GetCompanyStats(_ context.Context) (*models.CompanyStats, error) {
	return &models.CompanyStats{Total: len(c.companies)}, nil
}

type fakeDetector struct {
	detect func(ctx context.Context, company *models.Company) (*interfaces.DetectionResult, error)
	calls  int
}

func (d *fakeDetector) Detect(ctx context.Context, company *models.Company) (*interfaces.DetectionResult, error) {
	d.calls++
	if d.detect == nil {
		return nil, models.Errorf(models.ErrInternal, "unexpected detection call")
	}
	return d.detect(ctx, company)
}

func (d *fakeDetector) Rediscover(ctx context.Context, company *models.Company) (*interfaces.DetectionResult, error) {
	return d.Detect(ctx, company)
}

type stubSource struct {
	name    string
	enabled bool
	cands   []models.CompanyCandidate
	err     error
}

func (s *stubSource) Name() string        { return s.name }
func (s *stubSource) Description() string { return s.name }
func (s *stubSource) Enabled() bool       { return s.enabled }

func (s *stubSource) Produce(context.Context, int) ([]models.CompanyCandidate, error) {
	return s.cands, s.err
}

type testEnv struct {
	svc       *Service
	queue     *fakeQueue
	companies *fakeCompanies
	detector  *fakeDetector
}

func newTestEnv(sources ...interfaces.DiscoverySource) *testEnv {
	cfg := &common.Config{
		Discovery: common.DiscoveryConfig{RetryCap: 3},
	}
	queue := newFakeQueue()
	companies := newFakeCompanies()
	detector := &fakeDetector{}
	svc := NewService(cfg, queue, companies, detector, sources, arbor.NewLogger())
	return &testEnv{svc: svc, queue: queue, companies: companies, detector: detector}
}

func (e *testEnv) onlyItem(t *testing.T) *models.DiscoveryQueueItem {
	t.Helper()
	if len(e.queue.items) != 1 {
		t.Fatalf("queue has %d items, want 1", len(e.queue.items))
	}
	for _, item := range e.queue.items {
		return item
	}
	return nil
}

func TestEnqueueDedupesByDomain(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	created, err := env.svc.Enqueue(ctx, []models.CompanyCandidate{
		{Name: "Acme", WebsiteURL: "https://www.acme.com", Source: models.SourceYCCompanies},
		{Name: "Acme Inc", Domain: "acme.com", Industry: "fintech", Source: models.SourceGitHubOrgs},
	})
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	item := env.onlyItem(t)
	if item.NormDomain != "acme.com" {
		t.Errorf("norm domain = %q", item.NormDomain)
	}
	// Second sighting enriched the existing row
	if item.Candidate.Industry != "fintech" {
		t.Errorf("industry not merged: %+v", item.Candidate)
	}
	// First sighting's fields were not overwritten
	if item.Candidate.Source != models.SourceYCCompanies {
		t.Errorf("source overwritten: %q", item.Candidate.Source)
	}
}

func TestEnqueueDedupesByNameWithoutDomain(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	created, err := env.svc.Enqueue(ctx, []models.CompanyCandidate{
		{Name: "Acme", CareersURL: "https://boards.greenhouse.io/acme", ATSType: models.ATSGreenhouse, ATSIdentifier: "acme", Source: models.SourceATSDirectories},
		{Name: "Acme, Inc.", Source: models.SourceEmailAlerts},
	})
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	item := env.onlyItem(t)
	if item.NormDomain != "" {
		t.Errorf("board url produced a domain key: %q", item.NormDomain)
	}
	if item.NormName != "acme" {
		t.Errorf("norm name = %q, want acme", item.NormName)
	}
}

func TestEnqueueSkipsExistingCompany(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.companies.companies["c1"] = &models.Company{ID: "c1", Name: "Acme", Domain: "acme.com"}

	created, err := env.svc.Enqueue(ctx, []models.CompanyCandidate{
		{Name: "Acme", Domain: "acme.com"},
	})
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0", created)
	}
	if len(env.queue.items) != 0 {
		t.Errorf("queue has %d items, want 0", len(env.queue.items))
	}
}

func TestEnqueueSkipsExistingBoard(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.companies.companies["c1"] = &models.Company{
		ID: "c1", Name: "Acme", ATSType: models.ATSLever, ATSIdentifier: "acme",
	}

	created, err := env.svc.Enqueue(ctx, []models.CompanyCandidate{
		{Name: "Acme", CareersURL: "https://jobs.lever.co/acme", ATSType: models.ATSLever, ATSIdentifier: "acme"},
	})
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0", created)
	}
}

func TestProcessQueueCreatesCompany(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.detector.detect = func(_ context.Context, _ *models.Company) (*interfaces.DetectionResult, error) {
		return &interfaces.DetectionResult{
			ATSType:    models.ATSGreenhouse,
			Identifier: "acme",
			CareersURL: "https://boards.greenhouse.io/acme",
			Method:     "api_probe",
		}, nil
	}

	if _, err := env.svc.Enqueue(ctx, []models.CompanyCandidate{
		{Name: "Acme", Domain: "acme.com", Country: "US", EmployeeCount: 120, Source: models.SourceSeedFile},
	}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	created, failed, err := env.svc.ProcessQueue(ctx, 10)
	if err != nil {
		t.Fatalf("ProcessQueue() error: %v", err)
	}
	if created != 1 || failed != 0 {
		t.Fatalf("created/failed = %d/%d, want 1/0", created, failed)
	}

	item := env.onlyItem(t)
	if item.Status != models.DiscoveryCompleted {
		t.Fatalf("status = %s, want completed", item.Status)
	}
	if item.CompanyID == "" || item.ProcessedAt == nil {
		t.Errorf("completion fields missing: %+v", item)
	}

	company, err := env.companies.GetCompany(ctx, item.CompanyID)
	if err != nil {
		t.Fatalf("company not saved: %v", err)
	}
	if company.ATSType != models.ATSGreenhouse || company.ATSIdentifier != "acme" {
		t.Errorf("ats = %s/%s", company.ATSType, company.ATSIdentifier)
	}
	if company.CareersURL != "https://boards.greenhouse.io/acme" {
		t.Errorf("careers url = %q", company.CareersURL)
	}
	if company.WebsiteURL != "https://acme.com" {
		t.Errorf("website not derived from domain: %q", company.WebsiteURL)
	}
	if company.EmployeeCount != "120" {
		t.Errorf("employee count = %q, want 120", company.EmployeeCount)
	}
	if company.CrawlPriority != 50 {
		t.Errorf("seed priority = %d, want 50", company.CrawlPriority)
	}
	if !company.IsActive {
		t.Error("company should start active")
	}
}

func TestProcessQueueSkipsNonTargetCountry(t *testing.T) {
	env := newTestEnv()
	env.svc.cfg.Discovery.TargetCountries = []string{"US"}
	ctx := context.Background()

	if _, err := env.svc.Enqueue(ctx, []models.CompanyCandidate{
		{Name: "Initech", Domain: "initech.de", Country: "Germany"},
	}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	created, failed, err := env.svc.ProcessQueue(ctx, 10)
	if err != nil {
		t.Fatalf("ProcessQueue() error: %v", err)
	}
	if created != 0 || failed != 0 {
		t.Errorf("created/failed = %d/%d, want 0/0", created, failed)
	}

	item := env.onlyItem(t)
	if item.Status != models.DiscoverySkipped {
		t.Fatalf("status = %s, want skipped", item.Status)
	}
	if item.SkipReason == "" {
		t.Error("skip reason not recorded")
	}
	if env.detector.calls != 0 {
		t.Errorf("detector ran %d times for a skipped item", env.detector.calls)
	}
}

func TestProcessQueueUnknownCountryPasses(t *testing.T) {
	env := newTestEnv()
	env.svc.cfg.Discovery.TargetCountries = []string{"US"}
	ctx := context.Background()

	env.detector.detect = func(_ context.Context, _ *models.Company) (*interfaces.DetectionResult, error) {
		return &interfaces.DetectionResult{ATSType: models.ATSLever, Identifier: "acme"}, nil
	}

	if _, err := env.svc.Enqueue(ctx, []models.CompanyCandidate{
		{Name: "Acme", Domain: "acme.com"},
	}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	created, _, err := env.svc.ProcessQueue(ctx, 10)
	if err != nil {
		t.Fatalf("ProcessQueue() error: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1; missing country must not skip", created)
	}
}

func TestProcessQueueReviewOnInconclusiveDetection(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.detector.detect = func(_ context.Context, _ *models.Company) (*interfaces.DetectionResult, error) {
		return &interfaces.DetectionResult{ATSType: models.ATSUnknown}, nil
	}

	if _, err := env.svc.Enqueue(ctx, []models.CompanyCandidate{
		{Name: "Acme", Domain: "acme.com"},
	}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	if _, _, err := env.svc.ProcessQueue(ctx, 10); err != nil {
		t.Fatalf("ProcessQueue() error: %v", err)
	}

	item := env.onlyItem(t)
	if item.Status != models.DiscoveryReview {
		t.Fatalf("status = %s, want review", item.Status)
	}
	if item.LastError == "" {
		t.Error("review reason not recorded")
	}
	if len(env.companies.companies) != 0 {
		t.Error("no company should be created for review items")
	}
}

func TestProcessQueueReviewWithNothingToProbe(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.Enqueue(ctx, []models.CompanyCandidate{
		{Name: "Mystery Startup"},
	}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	if _, _, err := env.svc.ProcessQueue(ctx, 10); err != nil {
		t.Fatalf("ProcessQueue() error: %v", err)
	}

	item := env.onlyItem(t)
	if item.Status != models.DiscoveryReview {
		t.Fatalf("status = %s, want review", item.Status)
	}
	if env.detector.calls != 0 {
		t.Errorf("detector ran %d times with nothing to probe", env.detector.calls)
	}
}

func TestProcessQueueRetriesThenFails(t *testing.T) {
	env := newTestEnv()
	env.svc.cfg.Discovery.RetryCap = 2
	ctx := context.Background()

	env.detector.detect = func(_ context.Context, _ *models.Company) (*interfaces.DetectionResult, error) {
		return nil, models.Errorf(models.ErrTransport, "connection refused")
	}

	if _, err := env.svc.Enqueue(ctx, []models.CompanyCandidate{
		{Name: "Acme", Domain: "acme.com"},
	}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	// First drain: transient failure goes back to pending
	if _, failed, err := env.svc.ProcessQueue(ctx, 10); err != nil || failed != 0 {
		t.Fatalf("first drain failed=%d err=%v, want 0/nil", failed, err)
	}
	item := env.onlyItem(t)
	if item.Status != models.DiscoveryPending || item.Attempts != 1 {
		t.Fatalf("after first drain: status=%s attempts=%d, want pending/1", item.Status, item.Attempts)
	}
	if item.LastError == "" {
		t.Error("transient error not recorded")
	}

	// Second drain hits the retry cap
	if _, failed, err := env.svc.ProcessQueue(ctx, 10); err != nil || failed != 1 {
		t.Fatalf("second drain failed=%d err=%v, want 1/nil", failed, err)
	}
	item = env.onlyItem(t)
	if item.Status != models.DiscoveryFailed || item.Attempts != 2 {
		t.Fatalf("after second drain: status=%s attempts=%d, want failed/2", item.Status, item.Attempts)
	}
}

func TestProcessQueueTrustsSourceVendor(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.Enqueue(ctx, []models.CompanyCandidate{
		{
			Name:          "Acme",
			CareersURL:    "https://boards.greenhouse.io/acme",
			ATSType:       models.ATSGreenhouse,
			ATSIdentifier: "acme",
			Source:        models.SourceATSDirectories,
		},
	}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	created, _, err := env.svc.ProcessQueue(ctx, 10)
	if err != nil {
		t.Fatalf("ProcessQueue() error: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	if env.detector.calls != 0 {
		t.Errorf("detector ran %d times for a pinned board", env.detector.calls)
	}

	item := env.onlyItem(t)
	company, err := env.companies.GetCompany(ctx, item.CompanyID)
	if err != nil {
		t.Fatalf("company not saved: %v", err)
	}
	if company.ATSType != models.ATSGreenhouse || company.ATSIdentifier != "acme" {
		t.Errorf("ats = %s/%s", company.ATSType, company.ATSIdentifier)
	}
}

func TestProcessQueueEnrichesExistingCompany(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// Board-only company discovered earlier, no domain yet
	env.companies.companies["c1"] = &models.Company{
		ID: "c1", Name: "Acme", ATSType: models.ATSGreenhouse, ATSIdentifier: "acme",
		CareersURL: "https://boards.greenhouse.io/acme",
	}

	env.detector.detect = func(_ context.Context, _ *models.Company) (*interfaces.DetectionResult, error) {
		return &interfaces.DetectionResult{
			ATSType:    models.ATSGreenhouse,
			Identifier: "acme",
		}, nil
	}

	// Same company surfaces again with its real domain
	item := &models.DiscoveryQueueItem{
		ID: "q1",
		Candidate: models.CompanyCandidate{
			Name: "Acme", Domain: "acme.com", WebsiteURL: "https://acme.com", Industry: "robotics",
		},
		NormDomain: "acme.com",
		NormName:   "acme",
		Status:     models.DiscoveryPending,
	}
	if err := env.queue.SaveQueueItem(ctx, item); err != nil {
		t.Fatalf("seed queue: %v", err)
	}

	created, _, err := env.svc.ProcessQueue(ctx, 10)
	if err != nil {
		t.Fatalf("ProcessQueue() error: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	if len(env.companies.companies) != 1 {
		t.Fatalf("company count = %d, want 1 (no duplicate)", len(env.companies.companies))
	}
	company := env.companies.companies["c1"]
	if company.Domain != "acme.com" {
		t.Errorf("domain not backfilled: %q", company.Domain)
	}
	if company.Industry != "robotics" {
		t.Errorf("industry not backfilled: %q", company.Industry)
	}
	if company.CareersURL != "https://boards.greenhouse.io/acme" {
		t.Errorf("populated careers url overwritten: %q", company.CareersURL)
	}
}

func TestApprove(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	item := &models.DiscoveryQueueItem{
		ID:         "q1",
		Candidate:  models.CompanyCandidate{Name: "Acme", Domain: "acme.com"},
		NormDomain: "acme.com",
		Status:     models.DiscoveryReview,
		LastError:  "ats detection inconclusive",
	}
	if err := env.queue.SaveQueueItem(ctx, item); err != nil {
		t.Fatalf("seed queue: %v", err)
	}

	company, err := env.svc.Approve(ctx, "q1", models.ATSLever, "acme")
	if err != nil {
		t.Fatalf("Approve() error: %v", err)
	}
	if company.ATSType != models.ATSLever || company.ATSIdentifier != "acme" {
		t.Errorf("ats = %s/%s, want lever/acme", company.ATSType, company.ATSIdentifier)
	}

	updated, _ := env.queue.GetQueueItem(ctx, "q1")
	if updated.Status != models.DiscoveryCompleted || updated.CompanyID != company.ID {
		t.Errorf("item not completed: %+v", updated)
	}
}

func TestApproveRequiresReviewStatus(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	item := &models.DiscoveryQueueItem{
		ID:        "q1",
		Candidate: models.CompanyCandidate{Name: "Acme"},
		Status:    models.DiscoveryPending,
	}
	if err := env.queue.SaveQueueItem(ctx, item); err != nil {
		t.Fatalf("seed queue: %v", err)
	}

	_, err := env.svc.Approve(ctx, "q1", models.ATSLever, "acme")
	if models.KindOf(err) != models.ErrConflict {
		t.Fatalf("error kind = %v, want conflict", models.KindOf(err))
	}
}

func TestApproveRequiresIdentifierForVendor(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	item := &models.DiscoveryQueueItem{
		ID:        "q1",
		Candidate: models.CompanyCandidate{Name: "Acme"},
		Status:    models.DiscoveryReview,
	}
	if err := env.queue.SaveQueueItem(ctx, item); err != nil {
		t.Fatalf("seed queue: %v", err)
	}

	_, err := env.svc.Approve(ctx, "q1", models.ATSGreenhouse, "")
	if models.KindOf(err) != models.ErrInvalidArgument {
		t.Fatalf("error kind = %v, want invalid argument", models.KindOf(err))
	}
}

func TestReject(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	item := &models.DiscoveryQueueItem{
		ID:        "q1",
		Candidate: models.CompanyCandidate{Name: "Acme"},
		Status:    models.DiscoveryReview,
	}
	if err := env.queue.SaveQueueItem(ctx, item); err != nil {
		t.Fatalf("seed queue: %v", err)
	}

	if err := env.svc.Reject(ctx, "q1", "staffing agency"); err != nil {
		t.Fatalf("Reject() error: %v", err)
	}

	updated, _ := env.queue.GetQueueItem(ctx, "q1")
	if updated.Status != models.DiscoverySkipped || updated.SkipReason != "staffing agency" {
		t.Errorf("item not rejected: %+v", updated)
	}
}

func TestRejectCompletedItemConflicts(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	item := &models.DiscoveryQueueItem{
		ID:        "q1",
		Candidate: models.CompanyCandidate{Name: "Acme"},
		Status:    models.DiscoveryCompleted,
	}
	if err := env.queue.SaveQueueItem(ctx, item); err != nil {
		t.Fatalf("seed queue: %v", err)
	}

	err := env.svc.Reject(ctx, "q1", "nope")
	if models.KindOf(err) != models.ErrConflict {
		t.Fatalf("error kind = %v, want conflict", models.KindOf(err))
	}
}

func TestRunSourcesContinuesPastFailures(t *testing.T) {
	broken := &stubSource{name: "broken", enabled: true, err: models.Errorf(models.ErrTransport, "feed down")}
	working := &stubSource{name: "working", enabled: true, cands: []models.CompanyCandidate{
		{Name: "Acme", Domain: "acme.com"},
		{Name: "Initech", Domain: "initech.io"},
	}}
	env := newTestEnv(broken, working)

	total, err := env.svc.RunSources(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunSources() error: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
}

func TestRunSourcesFiltersByName(t *testing.T) {
	first := &stubSource{name: "first", enabled: true, cands: []models.CompanyCandidate{{Name: "Acme", Domain: "acme.com"}}}
	second := &stubSource{name: "second", enabled: true, cands: []models.CompanyCandidate{{Name: "Initech", Domain: "initech.io"}}}
	env := newTestEnv(first, second)

	total, err := env.svc.RunSources(context.Background(), []string{"second"})
	if err != nil {
		t.Fatalf("RunSources() error: %v", err)
	}
	if total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
	if len(env.queue.items) != 1 {
		t.Fatalf("queue has %d items, want 1", len(env.queue.items))
	}
	item := env.onlyItem(t)
	if item.Candidate.Name != "Initech" {
		t.Errorf("wrong source ran: %+v", item.Candidate)
	}
}

func TestRunSourcesSkipsDisabled(t *testing.T) {
	disabled := &stubSource{name: "disabled", enabled: false, cands: []models.CompanyCandidate{{Name: "Acme", Domain: "acme.com"}}}
	enabled := &stubSource{name: "enabled", enabled: true, cands: []models.CompanyCandidate{{Name: "Initech", Domain: "initech.io"}}}
	env := newTestEnv(disabled, enabled)

	total, err := env.svc.RunSources(context.Background(), nil)
	if err != nil {
		t.Fatalf("RunSources() error: %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}

func TestRunSourcesNoMatch(t *testing.T) {
	env := newTestEnv(&stubSource{name: "only", enabled: true})

	_, err := env.svc.RunSources(context.Background(), []string{"absent"})
	if models.KindOf(err) != models.ErrNotFound {
		t.Fatalf("error kind = %v, want not found", models.KindOf(err))
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	for i, status := range []models.DiscoveryStatus{
		models.DiscoveryPending, models.DiscoveryPending, models.DiscoveryReview, models.DiscoveryCompleted,
	} {
		item := &models.DiscoveryQueueItem{
			ID:        string(rune('a' + i)),
			Candidate: models.CompanyCandidate{Name: "x"},
			Status:    status,
		}
		if err := env.queue.SaveQueueItem(ctx, item); err != nil {
			t.Fatalf("seed queue: %v", err)
		}
	}

	stats, err := env.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.Pending != 2 || stats.Review != 1 || stats.Completed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
