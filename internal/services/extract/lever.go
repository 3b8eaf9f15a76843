package extract

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// LeverExtractor reads Lever boards through the public postings API.
// Descriptions come back inline, so extraction is a single request.
type LeverExtractor struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

func NewLeverExtractor(fetcher interfaces.Fetcher, logger arbor.ILogger) *LeverExtractor {
	return &LeverExtractor{fetcher: fetcher, logger: logger}
}

func (e *LeverExtractor) Type() models.ATSType { return models.ATSLever }

type leverPosting struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	HostedURL string `json:"hostedUrl"`
	ApplyURL  string `json:"applyUrl"`
	// CreatedAt is epoch milliseconds
	CreatedAt        int64  `json:"createdAt"`
	Description      string `json:"description"`
	DescriptionPlain string `json:"descriptionPlain"`
	Categories       struct {
		Location   string `json:"location"`
		Team       string `json:"team"`
		Department string `json:"department"`
		Commitment string `json:"commitment"`
	} `json:"categories"`
	SalaryRange *struct {
		Min      int64  `json:"min"`
		Max      int64  `json:"max"`
		Currency string `json:"currency"`
	} `json:"salaryRange"`
}

func (e *LeverExtractor) ListJobs(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	if company.ATSIdentifier == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "lever extraction for %s needs a board identifier", company.Name)
	}

	apiURL := fmt.Sprintf("https://api.lever.co/v0/postings/%s?mode=json", company.ATSIdentifier)
	var postings []leverPosting
	if err := e.fetcher.FetchJSON(ctx, apiURL, &postings); err != nil {
		if models.IsNotFound(err) {
			return e.listFromBoardPage(ctx, company)
		}
		return nil, err
	}

	now := time.Now().UTC()
	jobs := make([]*models.RawJob, 0, len(postings))
	for _, p := range postings {
		if p.Text == "" {
			continue
		}
		sourceURL := p.HostedURL
		if sourceURL == "" {
			sourceURL = p.ApplyURL
		}
		if sourceURL == "" && p.ID != "" {
			sourceURL = fmt.Sprintf("https://jobs.lever.co/%s/%s", company.ATSIdentifier, p.ID)
		}
		if sourceURL == "" {
			continue
		}

		description := p.Description
		if description == "" {
			description = p.DescriptionPlain
		}
		department := p.Categories.Department
		if department == "" {
			department = p.Categories.Team
		}

		job := &models.RawJob{
			CompanyID:      company.ID,
			SourceURL:      sourceURL,
			TitleRaw:       cleanText(p.Text),
			DescriptionRaw: description,
			LocationRaw:    cleanText(p.Categories.Location),
			DepartmentRaw:  cleanText(department),
			EmploymentRaw:  cleanText(p.Categories.Commitment),
			ExtractedAt:    now,
		}
		if p.CreatedAt > 0 {
			job.PostedAtRaw = time.UnixMilli(p.CreatedAt).UTC().Format(time.RFC3339)
		}
		if r := p.SalaryRange; r != nil && r.Max > 0 {
			job.SalaryRaw = fmt.Sprintf("%s %d - %d", r.Currency, r.Min, r.Max)
		}
		jobs = append(jobs, job)
	}

	e.logger.Info().
		Str("company", company.Name).
		Str("board", company.ATSIdentifier).
		Int("jobs", len(jobs)).
		Msg("Extracted lever board")
	return jobs, nil
}

// listFromBoardPage scrapes jobs.lever.co/<site> when the postings API
// is disabled. Hosted boards render each role as a .posting block.
func (e *LeverExtractor) listFromBoardPage(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	pageURL := "https://jobs.lever.co/" + company.ATSIdentifier
	res, err := e.fetcher.Fetch(ctx, &interfaces.FetchRequest{URL: pageURL})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, models.NewError(models.ErrParse, err)
	}

	now := time.Now().UTC()
	var jobs []*models.RawJob
	doc.Find(".posting").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a.posting-title").First()
		href, _ := link.Attr("href")
		title := cleanText(link.Find("h5").First().Text())
		if title == "" {
			title = cleanText(sel.Find(`[data-qa="posting-name"]`).First().Text())
		}
		if title == "" || href == "" {
			return
		}
		jobs = append(jobs, &models.RawJob{
			CompanyID:   company.ID,
			SourceURL:   common.ResolveURL(pageURL, href),
			TitleRaw:    title,
			LocationRaw: cleanText(sel.Find(".posting-categories .location, .sort-by-location").First().Text()),
			ExtractedAt: now,
		})
	})

	if len(jobs) == 0 {
		for _, job := range jsonLDJobs(doc, pageURL) {
			job.CompanyID = company.ID
			job.ExtractedAt = now
			jobs = append(jobs, job)
		}
	}

	e.logger.Info().
		Str("company", company.Name).
		Str("board", company.ATSIdentifier).
		Int("jobs", len(jobs)).
		Msg("Extracted lever board page")
	return jobs, nil
}
