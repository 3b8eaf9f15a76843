package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// WorkableExtractor reads Workable accounts through the public widget
// API. The widget lists postings without descriptions, so every
// workable job goes through enrichment before normalization.
type WorkableExtractor struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

func NewWorkableExtractor(fetcher interfaces.Fetcher, logger arbor.ILogger) *WorkableExtractor {
	return &WorkableExtractor{fetcher: fetcher, logger: logger}
}

func (e *WorkableExtractor) Type() models.ATSType { return models.ATSWorkable }

type workableJob struct {
	Title          string `json:"title"`
	Shortcode      string `json:"shortcode"`
	URL            string `json:"url"`
	Shortlink      string `json:"shortlink"`
	ApplicationURL string `json:"application_url"`
	Department     string `json:"department"`
	EmploymentType string `json:"employment_type"`
	Type           string `json:"type"`
	PublishedOn    string `json:"published_on"`
	CreatedAt      string `json:"created_at"`
	City           string `json:"city"`
	State          string `json:"state"`
	Country        string `json:"country"`
	Telecommuting  bool   `json:"telecommuting"`
}

func (e *WorkableExtractor) ListJobs(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	if company.ATSIdentifier == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "workable extraction for %s needs an account identifier", company.Name)
	}

	apiURL := fmt.Sprintf("https://apply.workable.com/api/v1/widget/accounts/%s", company.ATSIdentifier)
	var payload struct {
		Name string        `json:"name"`
		Jobs []workableJob `json:"jobs"`
	}
	if err := e.fetcher.FetchJSON(ctx, apiURL, &payload); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	jobs := make([]*models.RawJob, 0, len(payload.Jobs))
	for _, j := range payload.Jobs {
		if j.Title == "" {
			continue
		}
		sourceURL := j.URL
		if sourceURL == "" {
			sourceURL = j.Shortlink
		}
		if sourceURL == "" && j.Shortcode != "" {
			sourceURL = fmt.Sprintf("https://apply.workable.com/%s/j/%s/", company.ATSIdentifier, j.Shortcode)
		}
		if sourceURL == "" {
			continue
		}

		location := joinLocation(j.City, j.State, j.Country)
		if location == "" && j.Telecommuting {
			location = "Remote"
		}
		employment := j.EmploymentType
		if employment == "" {
			employment = j.Type
		}
		postedAt := j.PublishedOn
		if postedAt == "" {
			postedAt = j.CreatedAt
		}

		jobs = append(jobs, &models.RawJob{
			CompanyID:     company.ID,
			SourceURL:     sourceURL,
			TitleRaw:      cleanText(j.Title),
			LocationRaw:   location,
			DepartmentRaw: cleanText(j.Department),
			EmploymentRaw: cleanText(employment),
			PostedAtRaw:   postedAt,
			ExtractedAt:   now,
		})
	}

	e.logger.Info().
		Str("company", company.Name).
		Str("account", company.ATSIdentifier).
		Int("jobs", len(jobs)).
		Msg("Extracted workable account")
	return jobs, nil
}
