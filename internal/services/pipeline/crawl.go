package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
	"github.com/ternarybob/jobhound/internal/services/embed"
)

// companyCrawlOutcome is one company's result inside a crawl run.
type companyCrawlOutcome struct {
	unchanged  bool
	snapshot   bool
	extracted  int
	normalized int
	err        error
}

// runCrawl extracts the boards of companies due for a crawl and folds
// changed listings into the canonical catalog. Companies whose listing
// content is byte-identical to the latest snapshot are touched but not
// re-processed.
func (s *Service) runCrawl(ctx context.Context, run *models.PipelineRun, rl interfaces.RunLogger) (models.RunStats, error) {
	var stats models.RunStats

	companies, err := s.crawlScope(ctx, run.Params)
	if err != nil {
		return stats, err
	}
	stats.CompaniesTotal = len(companies)
	rl.Info("Crawl scope resolved", map[string]interface{}{
		"companies": len(companies),
		"ats_type":  string(run.Params.ATSType),
	})
	if len(companies) == 0 {
		rl.Step("crawl finished", 1)
		return stats, nil
	}

	workers := s.cfg.Crawler.Workers
	if workers <= 0 {
		workers = 8
	}
	if workers > len(companies) {
		workers = len(companies)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	queue := make(chan *models.Company)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for company := range queue {
				out := s.crawlCompany(ctx, company, run.Params.Force, rl)

				mu.Lock()
				done++
				stats.Processed++
				if out.err != nil {
					stats.Failed++
				}
				if out.unchanged {
					stats.CompaniesUnchanged++
				} else if out.err == nil {
					stats.CompaniesCrawled++
				}
				if out.snapshot {
					stats.SnapshotsStored++
				}
				stats.JobsExtracted += out.extracted
				stats.JobsNormalized += out.normalized
				progress := float64(done) / float64(len(companies))
				mu.Unlock()

				rl.Step(fmt.Sprintf("crawl %s", company.Name), progress)
			}
		}()
	}

feed:
	for _, company := range companies {
		select {
		case <-ctx.Done():
			break feed
		case queue <- company:
		}
	}
	close(queue)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	rl.Info("Crawl finished", map[string]interface{}{
		"crawled":   stats.CompaniesCrawled,
		"unchanged": stats.CompaniesUnchanged,
		"failed":    stats.Failed,
		"extracted": stats.JobsExtracted,
	})
	rl.Step("crawl finished", 1)
	return stats, nil
}

// crawlScope selects the companies a crawl run covers. Named companies
// bypass the staleness window; otherwise active companies stale past the
// crawl interval are taken in priority order, capped at the batch size.
// Companies without a resolved ATS are never crawlable.
func (s *Service) crawlScope(ctx context.Context, params models.RunParams) ([]*models.Company, error) {
	var companies []*models.Company

	if len(params.CompanyIDs) > 0 {
		for _, id := range params.CompanyIDs {
			company, err := s.deps.Companies.GetCompany(ctx, id)
			if err != nil {
				s.logger.Warn().Str("company_id", id).Msg("Skipping unknown company in crawl scope")
				continue
			}
			companies = append(companies, company)
		}
	} else {
		cutoff := time.Now().UTC()
		if !params.Force {
			interval := s.cfg.Crawler.CrawlIntervalHours
			if interval <= 0 {
				interval = 24
			}
			cutoff = cutoff.Add(-time.Duration(interval) * time.Hour)
		}
		limit := s.cfg.Crawler.BatchSize
		if limit <= 0 {
			limit = 500
		}
		due, err := s.deps.Companies.ListDueForCrawl(ctx, cutoff, limit)
		if err != nil {
			return nil, err
		}
		companies = due
	}

	scoped := companies[:0]
	for _, company := range companies {
		if company.ATSType == "" || company.ATSType == models.ATSUnknown {
			continue
		}
		if params.ATSType != "" && company.ATSType != params.ATSType {
			continue
		}
		scoped = append(scoped, company)
	}
	return scoped, nil
}

func (s *Service) crawlCompany(ctx context.Context, company *models.Company, force bool, rl interfaces.RunLogger) companyCrawlOutcome {
	var out companyCrawlOutcome
	if err := ctx.Err(); err != nil {
		out.err = err
		return out
	}
	// A single slow board must not starve the rest of the batch; an
	// expired budget fails this company only, the run continues
	if budget := common.ParseDurationOr(s.cfg.Crawler.CompanyTimeout, 0); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	extractor, err := s.deps.Extractors.For(company.ATSType)
	if err != nil {
		out.err = err
		return out
	}

	raws, err := extractor.ListJobs(ctx, company)
	if err != nil && models.IsNotFound(err) {
		raws, err = s.rediscoverAndRetry(ctx, company, rl)
	}
	if err != nil {
		out.err = err
		s.noteCrawlFailure(ctx, company)
		rl.Warn("Company crawl failed", map[string]interface{}{
			"company": company.Name,
			"error":   err.Error(),
		})
		return out
	}
	out.extracted = len(raws)

	serialized := serializeListing(raws)
	hash := models.HashContent(serialized)

	if !force {
		if latest, lerr := s.deps.Snapshots.GetLatestSnapshot(ctx, company.ID); lerr == nil && latest.HTMLHash == hash {
			out.unchanged = true
			s.touchCrawled(ctx, company)
			return out
		}
	}

	snapshot := &models.CrawlSnapshot{
		ID:          common.NewID(),
		CompanyID:   company.ID,
		URL:         snapshotURL(company),
		HTMLContent: serialized,
		HTMLHash:    hash,
		StatusCode:  http.StatusOK,
		CrawledAt:   time.Now().UTC(),
	}
	if err := s.deps.Snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		s.logger.Warn().Err(err).Str("company_id", company.ID).Msg("Failed to store crawl snapshot")
	} else {
		out.snapshot = true
	}

	normalized, err := s.upsertListings(ctx, company, raws)
	out.normalized = normalized
	if err != nil {
		out.err = err
		return out
	}

	s.touchCrawled(ctx, company)
	return out
}

// rediscoverAndRetry re-runs ATS detection once when the stored
// identifier stopped resolving, then retries extraction against the
// updated assignment.
func (s *Service) rediscoverAndRetry(ctx context.Context, company *models.Company, rl interfaces.RunLogger) ([]*models.RawJob, error) {
	rl.Info("Board not found, re-running ATS detection", map[string]interface{}{
		"company": company.Name,
	})
	result, err := s.deps.Detector.Rediscover(ctx, company)
	if err != nil {
		return nil, models.Errorf(models.ErrNotFound, "board gone and rediscovery failed for %s: %v", company.Name, err)
	}

	company.ATSType = result.ATSType
	company.ATSIdentifier = result.Identifier
	if result.CareersURL != "" {
		company.CareersURL = result.CareersURL
	}
	company.UpdatedAt = time.Now().UTC()
	if err := s.deps.Companies.SaveCompany(ctx, company); err != nil {
		s.logger.Warn().Err(err).Str("company_id", company.ID).Msg("Failed to persist rediscovered ATS assignment")
	}

	extractor, err := s.deps.Extractors.For(company.ATSType)
	if err != nil {
		return nil, err
	}
	return extractor.ListJobs(ctx, company)
}

// upsertListings writes the extracted postings, preserving identity for
// source URLs seen before, and normalizes every posting whose raw
// content is new or changed.
func (s *Service) upsertListings(ctx context.Context, company *models.Company, raws []*models.RawJob) (int, error) {
	now := time.Now().UTC()
	toNormalize := make([]*models.RawJob, 0, len(raws))

	for _, raw := range raws {
		raw.CompanyID = company.ID

		existing, err := s.deps.RawJobs.GetRawJobByURL(ctx, raw.SourceURL)
		switch {
		case err == nil:
			raw.ID = existing.ID
			raw.CreatedAt = existing.CreatedAt
			raw.JobID = existing.JobID
			raw.EnrichFailedAt = existing.EnrichFailedAt
			// Unchanged raw content keeps its normalization; anything
			// else leaves NormalizedAt nil so the job is rebuilt
			if rawFingerprint(raw) == rawFingerprint(existing) {
				raw.NormalizedAt = existing.NormalizedAt
			}
		case models.IsNotFound(err):
			raw.ID = common.NewID()
			raw.CreatedAt = now
		default:
			return len(toNormalize), err
		}

		raw.ExtractedAt = now
		raw.UpdatedAt = now
		if err := s.deps.RawJobs.SaveRawJob(ctx, raw); err != nil {
			return len(toNormalize), err
		}
		if raw.NormalizedAt == nil {
			toNormalize = append(toNormalize, raw)
		}
	}

	normalized := 0
	for _, raw := range toNormalize {
		if err := ctx.Err(); err != nil {
			return normalized, err
		}
		if err := s.normalizeRaw(ctx, raw); err != nil {
			s.logger.Warn().Err(err).Str("source_url", raw.SourceURL).Msg("Normalization failed")
			continue
		}
		normalized++
	}
	return normalized, nil
}

// normalizeRaw builds the canonical job for one raw posting, reusing the
// existing job's identity and vector where the posting was seen before.
func (s *Service) normalizeRaw(ctx context.Context, raw *models.RawJob) error {
	job, err := s.deps.Normalizer.Normalize(raw)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if raw.JobID != "" {
		if existing, gerr := s.deps.Jobs.GetJob(ctx, raw.JobID); gerr == nil {
			job.ID = existing.ID
			job.CreatedAt = existing.CreatedAt
			job.LastVerifiedAt = existing.LastVerifiedAt
			job.Embedding = existing.Embedding
			job.EmbeddingModel = existing.EmbeddingModel
			job.EmbeddingText = existing.EmbeddingText
		}
	}
	if job.ID == "" {
		job.ID = common.NewID()
		job.CreatedAt = now
	}
	// A changed embedding input invalidates the stored vector; the
	// embedding stage picks the job up again via ListUnembedded
	if job.EmbeddingText != "" && job.EmbeddingText != embed.BuildJobText(job) {
		job.Embedding = nil
		job.EmbeddingModel = ""
		job.EmbeddingText = ""
	}
	job.UpdatedAt = now

	if err := s.deps.Jobs.SaveJob(ctx, job); err != nil {
		return err
	}

	raw.JobID = job.ID
	raw.NormalizedAt = &now
	raw.UpdatedAt = now
	return s.deps.RawJobs.SaveRawJob(ctx, raw)
}

func (s *Service) touchCrawled(ctx context.Context, company *models.Company) {
	now := time.Now().UTC()
	company.LastCrawledAt = &now
	company.CrawlAttempts = 0
	company.UpdatedAt = now
	if err := s.deps.Companies.SaveCompany(ctx, company); err != nil {
		s.logger.Warn().Err(err).Str("company_id", company.ID).Msg("Failed to update company crawl state")
	}
}

func (s *Service) noteCrawlFailure(ctx context.Context, company *models.Company) {
	company.CrawlAttempts++
	company.UpdatedAt = time.Now().UTC()
	if err := s.deps.Companies.SaveCompany(ctx, company); err != nil {
		s.logger.Warn().Err(err).Str("company_id", company.ID).Msg("Failed to record crawl failure")
	}
}

// serializeListing renders an extracted listing into a stable text form
// for change detection: postings sorted by source URL, raw fields joined
// with unit separators. Identical upstream content always serializes to
// the same bytes regardless of extraction order.
func serializeListing(raws []*models.RawJob) string {
	sorted := make([]*models.RawJob, len(raws))
	copy(sorted, raws)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SourceURL < sorted[j].SourceURL })

	var b strings.Builder
	for _, raw := range sorted {
		b.WriteString(rawFingerprint(raw))
		b.WriteByte('\n')
	}
	return b.String()
}

// rawFingerprint joins the content fields of a raw posting. Identity and
// bookkeeping fields stay out so re-extraction of identical content
// fingerprints identically.
func rawFingerprint(raw *models.RawJob) string {
	return strings.Join([]string{
		raw.SourceURL,
		raw.TitleRaw,
		raw.DescriptionRaw,
		raw.LocationRaw,
		raw.DepartmentRaw,
		raw.EmploymentRaw,
		raw.SalaryRaw,
		raw.PostedAtRaw,
	}, "\x1f")
}

func snapshotURL(company *models.Company) string {
	if company.CareersURL != "" {
		return company.CareersURL
	}
	return company.WebsiteURL
}
