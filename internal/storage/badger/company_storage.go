package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CompanyStorage implements the CompanyStorage interface for Badger
type CompanyStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCompanyStorage creates a new CompanyStorage instance
func NewCompanyStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CompanyStorage {
	return &CompanyStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CompanyStorage) SaveCompany(ctx context.Context, company *models.Company) error {
	if company.ID == "" {
		return fmt.Errorf("company ID is required")
	}

	now := time.Now()
	if company.CreatedAt.IsZero() {
		company.CreatedAt = now
	}
	company.UpdatedAt = now

	if err := s.db.Store().Upsert(company.ID, company); err != nil {
		return fmt.Errorf("failed to save company: %w", err)
	}
	return nil
}

func (s *CompanyStorage) SaveCompanies(ctx context.Context, companies []*models.Company) error {
	for _, company := range companies {
		if err := s.SaveCompany(ctx, company); err != nil {
			return err
		}
	}
	return nil
}

func (s *CompanyStorage) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	var company models.Company
	if err := s.db.Store().Get(id, &company); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.Errorf(models.ErrNotFound, "company not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &company, nil
}

func (s *CompanyStorage) GetCompanyByDomain(ctx context.Context, domain string) (*models.Company, error) {
	var companies []models.Company
	err := s.db.Store().Find(&companies, badgerhold.Where("Domain").Eq(domain).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find company by domain: %w", err)
	}
	if len(companies) == 0 {
		return nil, models.Errorf(models.ErrNotFound, "company not found for domain: %s", domain)
	}
	return &companies[0], nil
}

func (s *CompanyStorage) GetCompanyByATSIdentifier(ctx context.Context, atsType models.ATSType, identifier string) (*models.Company, error) {
	var companies []models.Company
	err := s.db.Store().Find(&companies, badgerhold.Where("ATSType").Eq(atsType).And("ATSIdentifier").Eq(identifier).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find company by ATS identifier: %w", err)
	}
	if len(companies) == 0 {
		return nil, models.Errorf(models.ErrNotFound, "company not found for %s/%s", atsType, identifier)
	}
	return &companies[0], nil
}

func (s *CompanyStorage) ListCompanies(ctx context.Context, filter *interfaces.CompanyFilter) ([]*models.Company, error) {
	query := badgerhold.Where("ID").Ne("")

	if filter != nil {
		if filter.ATSType != "" {
			query = query.And("ATSType").Eq(filter.ATSType)
		}
		if filter.Source != "" {
			query = query.And("Source").Eq(filter.Source)
		}
		if filter.Country != "" {
			query = query.And("Country").Eq(filter.Country)
		}
		if filter.IsActive != nil {
			query = query.And("IsActive").Eq(*filter.IsActive)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			query = query.Skip(filter.Offset)
		}
	}
	query = query.SortBy("Name")

	var companies []models.Company
	if err := s.db.Store().Find(&companies, query); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	result := make([]*models.Company, len(companies))
	for i := range companies {
		result[i] = &companies[i]
	}
	return result, nil
}

func (s *CompanyStorage) ListDueForCrawl(ctx context.Context, cutoff time.Time, limit int) ([]*models.Company, error) {
	// Nil LastCrawledAt means never crawled; filter and sort in Go since
	// BadgerHold cannot express the nil-or-before condition directly
	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list companies due for crawl: %w", err)
	}

	due := make([]*models.Company, 0, len(companies))
	for i := range companies {
		c := &companies[i]
		if c.LastCrawledAt == nil || c.LastCrawledAt.Before(cutoff) {
			due = append(due, c)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].CrawlPriority != due[j].CrawlPriority {
			return due[i].CrawlPriority > due[j].CrawlPriority
		}
		// Never-crawled companies first within the same priority
		iAt, jAt := due[i].LastCrawledAt, due[j].LastCrawledAt
		if iAt == nil {
			return jAt != nil
		}
		if jAt == nil {
			return false
		}
		return iAt.Before(*jAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *CompanyStorage) ListDueForMaintenance(ctx context.Context, cutoff time.Time, limit int) ([]*models.Company, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list companies due for maintenance: %w", err)
	}

	due := make([]*models.Company, 0, len(companies))
	for i := range companies {
		c := &companies[i]
		// Only companies with a resolved board can be re-verified
		if c.ATSType == "" || c.ATSType == models.ATSUnknown {
			continue
		}
		if c.LastMaintenanceAt == nil || c.LastMaintenanceAt.Before(cutoff) {
			due = append(due, c)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		iAt, jAt := due[i].LastMaintenanceAt, due[j].LastMaintenanceAt
		if iAt == nil {
			return jAt != nil
		}
		if jAt == nil {
			return false
		}
		return iAt.Before(*jAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *CompanyStorage) DeleteCompany(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Company{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete company: %w", err)
	}
	return nil
}

func (s *CompanyStorage) CountCompanies(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Company{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count companies: %w", err)
	}
	return int(count), nil
}

func (s *CompanyStorage) GetCompanyStats(ctx context.Context) (*models.CompanyStats, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, nil); err != nil {
		return nil, fmt.Errorf("failed to load companies for stats: %w", err)
	}

	stats := &models.CompanyStats{
		ByATSType: make(map[models.ATSType]int),
		BySource:  make(map[string]int),
	}
	for i := range companies {
		c := &companies[i]
		stats.Total++
		if c.IsActive {
			stats.Active++
		}
		if c.ATSType != "" {
			stats.ByATSType[c.ATSType]++
		}
		if c.Source != "" {
			stats.BySource[c.Source]++
		}
		if c.LastCrawledAt != nil {
			stats.Crawled++
		}
	}
	return stats, nil
}
