package badger

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) SaveJobs(ctx context.Context, jobs []*models.Job) error {
	for _, job := range jobs {
		if err := s.SaveJob(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, models.Errorf(models.ErrNotFound, "job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *JobStorage) GetJobByRawJobID(ctx context.Context, rawJobID string) (*models.Job, error) {
	var jobs []models.Job
	err := s.db.Store().Find(&jobs, badgerhold.Where("RawJobID").Eq(rawJobID).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to find job by raw job ID: %w", err)
	}
	if len(jobs) == 0 {
		return nil, models.Errorf(models.ErrNotFound, "job not found for raw job: %s", rawJobID)
	}
	return &jobs[0], nil
}

func (s *JobStorage) ListJobs(ctx context.Context, filter *interfaces.JobFilter) ([]*models.Job, error) {
	query := badgerhold.Where("ID").Ne("")

	var textRegex *regexp.Regexp
	minSalary := 0
	var postedAfter *time.Time

	if filter != nil {
		if filter.CompanyID != "" {
			query = query.And("CompanyID").Eq(filter.CompanyID)
		}
		if filter.RoleFamily != "" {
			query = query.And("RoleFamily").Eq(filter.RoleFamily)
		}
		if filter.Seniority != "" {
			query = query.And("Seniority").Eq(filter.Seniority)
		}
		if filter.LocationType != "" {
			query = query.And("LocationType").Eq(filter.LocationType)
		}
		if filter.EmploymentType != "" {
			query = query.And("EmploymentType").Eq(filter.EmploymentType)
		}
		if filter.IsActive != nil {
			query = query.And("IsActive").Eq(*filter.IsActive)
		}
		if filter.Text != "" {
			textRegex = regexp.MustCompile("(?i)" + regexp.QuoteMeta(filter.Text))
		}
		minSalary = filter.MinSalary
		postedAfter = filter.PostedAfter
	}
	query = query.SortBy("CreatedAt").Reverse()

	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	// Salary, date, and text conditions need field inspection BadgerHold
	// queries cannot express, so apply them here along with paging
	result := make([]*models.Job, 0, len(jobs))
	skipped := 0
	for i := range jobs {
		j := &jobs[i]
		if minSalary > 0 && (j.MaxSalary == nil || *j.MaxSalary < minSalary) {
			continue
		}
		if postedAfter != nil && (j.PostedAt == nil || j.PostedAt.Before(*postedAfter)) {
			continue
		}
		if textRegex != nil && !matchesText(j, textRegex) {
			continue
		}
		if filter != nil && filter.Offset > 0 && skipped < filter.Offset {
			skipped++
			continue
		}
		result = append(result, j)
		if filter != nil && filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

func matchesText(job *models.Job, re *regexp.Regexp) bool {
	if re.MatchString(job.Title) {
		return true
	}
	for _, skill := range job.Skills {
		if re.MatchString(skill) {
			return true
		}
	}
	return false
}

func (s *JobStorage) ListActiveJobsByCompany(ctx context.Context, companyID string) ([]*models.Job, error) {
	var jobs []models.Job
	err := s.db.Store().Find(&jobs, badgerhold.Where("CompanyID").Eq(companyID).And("IsActive").Eq(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}

	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) ListUnembedded(ctx context.Context, limit int) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("IsActive").Eq(true).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list jobs for embedding: %w", err)
	}

	result := make([]*models.Job, 0)
	for i := range jobs {
		if len(jobs[i].Embedding) == 0 {
			result = append(result, &jobs[i])
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (s *JobStorage) ListEmbeddedActive(ctx context.Context) ([]*models.Job, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list embedded jobs: %w", err)
	}

	result := make([]*models.Job, 0, len(jobs))
	for i := range jobs {
		if len(jobs[i].Embedding) > 0 {
			result = append(result, &jobs[i])
		}
	}
	return result, nil
}

func (s *JobStorage) DelistJob(ctx context.Context, id string, reason string) error {
	var job models.Job
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return models.Errorf(models.ErrNotFound, "job not found: %s", id)
		}
		return fmt.Errorf("failed to get job for delist: %w", err)
	}

	now := time.Now()
	job.IsActive = false
	job.DelistedAt = &now
	job.DelistReason = reason
	return s.SaveJob(ctx, &job)
}

func (s *JobStorage) DeleteJobsByCompany(ctx context.Context, companyID string) (int, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, badgerhold.Where("CompanyID").Eq(companyID)); err != nil {
		return 0, fmt.Errorf("failed to find jobs for company: %w", err)
	}

	deleted := 0
	for i := range jobs {
		if err := s.db.Store().Delete(jobs[i].ID, &models.Job{}); err != nil {
			s.logger.Warn().Str("job_id", jobs[i].ID).Err(err).Msg("Failed to delete job")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *JobStorage) CountJobs(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Job{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}

func (s *JobStorage) GetJobStats(ctx context.Context) (*models.JobStats, error) {
	var jobs []models.Job
	if err := s.db.Store().Find(&jobs, nil); err != nil {
		return nil, fmt.Errorf("failed to load jobs for stats: %w", err)
	}

	stats := &models.JobStats{
		ByFamily: make(map[models.RoleFamily]int),
	}
	for i := range jobs {
		j := &jobs[i]
		stats.Total++
		if j.IsActive {
			stats.Active++
		}
		if len(j.Embedding) > 0 {
			stats.Embedded++
		}
		if j.RoleFamily != "" {
			stats.ByFamily[j.RoleFamily]++
		}
	}
	return stats, nil
}
