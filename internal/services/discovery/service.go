package discovery

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

const defaultRetryCap = 3

// Service runs discovery sources, dedupes their candidates into the
// queue, and vets queued candidates into the company catalog
type Service struct {
	cfg       *common.Config
	queue     interfaces.DiscoveryStorage
	companies interfaces.CompanyStorage
	detector  interfaces.ATSDetector
	sources   []interfaces.DiscoverySource
	logger    arbor.ILogger
	now       func() time.Time
}

func NewService(
	cfg *common.Config,
	queue interfaces.DiscoveryStorage,
	companies interfaces.CompanyStorage,
	detector interfaces.ATSDetector,
	sources []interfaces.DiscoverySource,
	logger arbor.ILogger,
) *Service {
	return &Service{
		cfg:       cfg,
		queue:     queue,
		companies: companies,
		detector:  detector,
		sources:   sources,
		logger:    logger,
		now:       time.Now,
	}
}

// BuildSources constructs the standard source set from config. Sources
// missing their configuration still appear here; Enabled filters them
// at run time.
func BuildSources(cfg *common.Config, fetcher interfaces.Fetcher, logger arbor.ILogger) []interfaces.DiscoverySource {
	return []interfaces.DiscoverySource{
		NewSeedFileSource(cfg.Discovery.SeedFile, logger),
		NewATSDirectoriesSource(fetcher, logger),
		NewYCCompaniesSource(fetcher, logger),
		NewGitHubOrgsSource(cfg.Discovery.GitHub, logger),
		NewEmailAlertsSource(cfg.Discovery.IMAP, logger),
	}
}

// Sources returns the registered sources for the admin API
func (s *Service) Sources() []interfaces.DiscoverySource {
	return s.sources
}

func (s *Service) RunSources(ctx context.Context, names []string) (int, error) {
	selected := s.selectSources(names)
	if len(selected) == 0 {
		return 0, models.Errorf(models.ErrNotFound, "no enabled discovery sources match %v", names)
	}

	total := 0
	for _, src := range selected {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		candidates, err := src.Produce(ctx, 0)
		if err != nil {
			s.logger.Warn().Err(err).Str("source", src.Name()).Msg("Discovery source failed")
			continue
		}

		enqueued, err := s.Enqueue(ctx, candidates)
		if err != nil {
			return total, err
		}
		total += enqueued

		s.logger.Info().
			Str("source", src.Name()).
			Int("produced", len(candidates)).
			Int("enqueued", enqueued).
			Msg("Discovery source finished")
	}

	return total, nil
}

// selectSources resolves which sources to run. Explicit names win over
// the configured source list; both still require Enabled.
func (s *Service) selectSources(names []string) []interfaces.DiscoverySource {
	wanted := names
	if len(wanted) == 0 {
		wanted = s.cfg.Discovery.Sources
	}

	var selected []interfaces.DiscoverySource
	for _, src := range s.sources {
		if !src.Enabled() {
			continue
		}
		if len(wanted) > 0 && !containsFold(wanted, src.Name()) {
			continue
		}
		selected = append(selected, src)
	}
	return selected
}

func (s *Service) Enqueue(ctx context.Context, candidates []models.CompanyCandidate) (int, error) {
	created := 0
	for i := range candidates {
		cand := candidates[i]
		cand.Name = strings.TrimSpace(cand.Name)
		if cand.Name == "" {
			continue
		}

		domain := candidateDomain(&cand)
		cand.Domain = domain
		name := normalizeName(cand.Name)

		known, err := s.companyExists(ctx, domain, &cand)
		if err != nil {
			return created, err
		}
		if known {
			continue
		}

		item, err := s.findQueueItem(ctx, domain, name)
		if err != nil {
			return created, err
		}
		if item != nil {
			// Duplicate lead: newer non-empty fields enrich the older row
			if mergeCandidate(&item.Candidate, &cand) {
				if err := s.queue.SaveQueueItem(ctx, item); err != nil {
					return created, err
				}
			}
			continue
		}

		item = &models.DiscoveryQueueItem{
			ID:         uuid.New().String(),
			Candidate:  cand,
			NormDomain: domain,
			NormName:   name,
			Status:     models.DiscoveryPending,
		}
		if err := s.queue.SaveQueueItem(ctx, item); err != nil {
			return created, err
		}
		created++
	}

	return created, nil
}

// companyExists reports whether a candidate already has a company row,
// matched by domain or by board identifier for board-only leads
func (s *Service) companyExists(ctx context.Context, domain string, cand *models.CompanyCandidate) (bool, error) {
	if domain != "" {
		existing, err := s.companies.GetCompanyByDomain(ctx, domain)
		if err != nil && !models.IsNotFound(err) {
			return false, err
		}
		if existing != nil {
			return true, nil
		}
	}
	if cand.ATSType.IsKnownVendor() && cand.ATSIdentifier != "" {
		existing, err := s.companies.GetCompanyByATSIdentifier(ctx, cand.ATSType, cand.ATSIdentifier)
		if err != nil && !models.IsNotFound(err) {
			return false, err
		}
		if existing != nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) findQueueItem(ctx context.Context, domain, name string) (*models.DiscoveryQueueItem, error) {
	if domain != "" {
		item, err := s.queue.GetQueueItemByDomain(ctx, domain)
		if err != nil && !models.IsNotFound(err) {
			return nil, err
		}
		if item != nil {
			return item, nil
		}
	}
	if name != "" {
		item, err := s.queue.GetQueueItemByName(ctx, name)
		if err != nil && !models.IsNotFound(err) {
			return nil, err
		}
		if item != nil {
			return item, nil
		}
	}
	return nil, nil
}

// mergeCandidate copies newer non-empty fields onto dst and reports
// whether anything changed
func mergeCandidate(dst, src *models.CompanyCandidate) bool {
	changed := false
	setString := func(field *string, value string) {
		if *field == "" && value != "" {
			*field = value
			changed = true
		}
	}

	setString(&dst.Domain, src.Domain)
	setString(&dst.WebsiteURL, src.WebsiteURL)
	setString(&dst.CareersURL, src.CareersURL)
	setString(&dst.Location, src.Location)
	setString(&dst.Country, src.Country)
	setString(&dst.Industry, src.Industry)
	setString(&dst.FundingStage, src.FundingStage)

	if (dst.ATSType == "" || dst.ATSType == models.ATSUnknown) && src.ATSType.IsKnownVendor() {
		dst.ATSType = src.ATSType
		dst.ATSIdentifier = src.ATSIdentifier
		changed = true
	}
	if dst.EmployeeCount == 0 && src.EmployeeCount > 0 {
		dst.EmployeeCount = src.EmployeeCount
		changed = true
	}

	return changed
}

func (s *Service) ProcessQueue(ctx context.Context, limit int) (int, int, error) {
	items, err := s.queue.ListQueueItems(ctx, models.DiscoveryPending, limit)
	if err != nil {
		return 0, 0, err
	}

	created, failed := 0, 0
	for _, item := range items {
		if ctx.Err() != nil {
			return created, failed, ctx.Err()
		}

		item.Status = models.DiscoveryProcessing
		item.Attempts++
		if err := s.queue.SaveQueueItem(ctx, item); err != nil {
			return created, failed, err
		}

		s.processItem(ctx, item)

		if item.Status != models.DiscoveryPending {
			when := s.now()
			item.ProcessedAt = &when
		}
		if err := s.queue.SaveQueueItem(ctx, item); err != nil {
			return created, failed, err
		}

		switch item.Status {
		case models.DiscoveryCompleted:
			created++
		case models.DiscoveryFailed:
			failed++
		}
	}

	s.logger.Info().
		Int("processed", len(items)).
		Int("created", created).
		Int("failed", failed).
		Msg("Discovery queue drained")
	return created, failed, nil
}

// processItem vets one queue item and leaves the outcome on its status
// fields. Transient failures put the item back to pending until the
// retry cap is reached.
func (s *Service) processItem(ctx context.Context, item *models.DiscoveryQueueItem) {
	cand := &item.Candidate

	if len(s.cfg.Discovery.TargetCountries) > 0 && cand.Country != "" &&
		!containsFold(s.cfg.Discovery.TargetCountries, cand.Country) {
		item.Status = models.DiscoverySkipped
		item.SkipReason = "outside target countries: " + cand.Country
		return
	}

	company := s.companyFromCandidate(cand)

	// Sources that found a hosted board already know the vendor; only
	// unpinned candidates go through detection
	if !(cand.ATSType.IsKnownVendor() && cand.ATSIdentifier != "") {
		if company.CareersURL == "" && company.WebsiteURL == "" {
			item.Status = models.DiscoveryReview
			item.LastError = "no website or careers page to probe"
			return
		}

		result, err := s.detector.Detect(ctx, company)
		if err != nil {
			item.LastError = err.Error()
			if item.Attempts >= s.retryCap() {
				item.Status = models.DiscoveryFailed
			} else {
				item.Status = models.DiscoveryPending
			}
			return
		}

		switch {
		case result.ATSType == models.ATSUnknown:
			item.Status = models.DiscoveryReview
			item.LastError = "ats detection inconclusive"
			return
		case result.ATSType == models.ATSCustom && result.CareersURL == "" && company.CareersURL == "":
			item.Status = models.DiscoveryReview
			item.LastError = "no careers page found"
			return
		default:
			company.ATSType = result.ATSType
			company.ATSIdentifier = result.Identifier
			if result.CareersURL != "" {
				company.CareersURL = result.CareersURL
			}
		}
	}

	companyID, err := s.upsertCompany(ctx, company)
	if err != nil {
		item.LastError = err.Error()
		if item.Attempts >= s.retryCap() {
			item.Status = models.DiscoveryFailed
		} else {
			item.Status = models.DiscoveryPending
		}
		return
	}

	item.Status = models.DiscoveryCompleted
	item.CompanyID = companyID
	item.LastError = ""
}

// upsertCompany creates the company or fills gaps on an existing row
// that matches by domain or board identifier
func (s *Service) upsertCompany(ctx context.Context, company *models.Company) (string, error) {
	existing, err := s.matchExisting(ctx, company)
	if err != nil {
		return "", err
	}

	if existing != nil {
		if fillCompanyGaps(existing, company) {
			if err := s.companies.SaveCompany(ctx, existing); err != nil {
				return "", err
			}
			s.logger.Debug().Str("company", existing.Name).Msg("Enriched existing company")
		}
		return existing.ID, nil
	}

	company.ID = uuid.New().String()
	if err := s.companies.SaveCompany(ctx, company); err != nil {
		return "", err
	}
	s.logger.Info().
		Str("company", company.Name).
		Str("ats", string(company.ATSType)).
		Str("source", company.Source).
		Msg("Discovered new company")
	return company.ID, nil
}

func (s *Service) matchExisting(ctx context.Context, company *models.Company) (*models.Company, error) {
	if company.Domain != "" {
		existing, err := s.companies.GetCompanyByDomain(ctx, company.Domain)
		if err != nil && !models.IsNotFound(err) {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	if company.ATSType.IsKnownVendor() && company.ATSIdentifier != "" {
		existing, err := s.companies.GetCompanyByATSIdentifier(ctx, company.ATSType, company.ATSIdentifier)
		if err != nil && !models.IsNotFound(err) {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	return nil, nil
}

// fillCompanyGaps copies missing fields from incoming onto existing and
// reports whether anything changed. Populated fields are never
// overwritten.
func fillCompanyGaps(existing, incoming *models.Company) bool {
	changed := false
	setString := func(field *string, value string) {
		if *field == "" && value != "" {
			*field = value
			changed = true
		}
	}

	setString(&existing.Domain, incoming.Domain)
	setString(&existing.WebsiteURL, incoming.WebsiteURL)
	setString(&existing.CareersURL, incoming.CareersURL)
	setString(&existing.Location, incoming.Location)
	setString(&existing.Country, incoming.Country)
	setString(&existing.Industry, incoming.Industry)
	setString(&existing.EmployeeCount, incoming.EmployeeCount)
	setString(&existing.FundingStage, incoming.FundingStage)

	if (existing.ATSType == "" || existing.ATSType == models.ATSUnknown) &&
		incoming.ATSType != "" && incoming.ATSType != models.ATSUnknown {
		existing.ATSType = incoming.ATSType
		existing.ATSIdentifier = incoming.ATSIdentifier
		changed = true
	}

	return changed
}

func (s *Service) companyFromCandidate(cand *models.CompanyCandidate) *models.Company {
	website := cand.WebsiteURL
	if website == "" && cand.Domain != "" {
		website = "https://" + cand.Domain
	}

	atsType := cand.ATSType
	if atsType == "" {
		atsType = models.ATSUnknown
	}

	employeeCount := ""
	if cand.EmployeeCount > 0 {
		employeeCount = strconv.Itoa(cand.EmployeeCount)
	}

	return &models.Company{
		Name:          cand.Name,
		Domain:        cand.Domain,
		WebsiteURL:    website,
		CareersURL:    cand.CareersURL,
		ATSType:       atsType,
		ATSIdentifier: cand.ATSIdentifier,
		CrawlPriority: sourcePriority(cand.Source),
		IsActive:      true,
		Source:        cand.Source,
		Location:      cand.Location,
		Country:       cand.Country,
		Industry:      cand.Industry,
		EmployeeCount: employeeCount,
		FundingStage:  cand.FundingStage,
	}
}

// sourcePriority seeds crawl priority: operator-curated leads outrank
// automatically discovered ones
func sourcePriority(source string) int {
	switch source {
	case models.SourceSeedFile, models.SourceManual:
		return 50
	default:
		return 30
	}
}

func (s *Service) ListQueue(ctx context.Context, status models.DiscoveryStatus, limit int) ([]*models.DiscoveryQueueItem, error) {
	return s.queue.ListQueueItems(ctx, status, limit)
}

func (s *Service) Approve(ctx context.Context, itemID string, atsType models.ATSType, identifier string) (*models.Company, error) {
	item, err := s.queue.GetQueueItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.DiscoveryReview {
		return nil, models.Errorf(models.ErrConflict, "queue item %s is %s, not review", itemID, item.Status)
	}
	if atsType == "" || atsType == models.ATSUnknown {
		return nil, models.Errorf(models.ErrInvalidArgument, "approve requires an ats type")
	}
	if atsType.IsKnownVendor() && identifier == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "approve requires a board identifier for %s", atsType)
	}

	company := s.companyFromCandidate(&item.Candidate)
	company.ATSType = atsType
	company.ATSIdentifier = identifier

	companyID, err := s.upsertCompany(ctx, company)
	if err != nil {
		return nil, err
	}

	item.Status = models.DiscoveryCompleted
	item.CompanyID = companyID
	item.LastError = ""
	when := s.now()
	item.ProcessedAt = &when
	if err := s.queue.SaveQueueItem(ctx, item); err != nil {
		return nil, err
	}

	resolved, err := s.companies.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("company", resolved.Name).Str("ats", string(atsType)).Msg("Review item approved")
	return resolved, nil
}

func (s *Service) Reject(ctx context.Context, itemID, reason string) error {
	item, err := s.queue.GetQueueItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != models.DiscoveryReview && item.Status != models.DiscoveryPending {
		return models.Errorf(models.ErrConflict, "queue item %s is %s, not rejectable", itemID, item.Status)
	}

	item.Status = models.DiscoverySkipped
	item.SkipReason = reason
	when := s.now()
	item.ProcessedAt = &when
	return s.queue.SaveQueueItem(ctx, item)
}

func (s *Service) Stats(ctx context.Context) (*models.DiscoveryStats, error) {
	return s.queue.GetDiscoveryStats(ctx)
}

func (s *Service) retryCap() int {
	if s.cfg.Discovery.RetryCap > 0 {
		return s.cfg.Discovery.RetryCap
	}
	return defaultRetryCap
}

func containsFold(list []string, value string) bool {
	for _, entry := range list {
		if strings.EqualFold(entry, value) {
			return true
		}
	}
	return false
}

// Ensure interface compliance
var _ interfaces.DiscoveryService = (*Service)(nil)
