package extract

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// GreenhouseExtractor reads Greenhouse boards through the public
// boards-api. With content=true the listing response already carries
// full descriptions, so no per-job enrichment pass is needed.
type GreenhouseExtractor struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

func NewGreenhouseExtractor(fetcher interfaces.Fetcher, logger arbor.ILogger) *GreenhouseExtractor {
	return &GreenhouseExtractor{fetcher: fetcher, logger: logger}
}

func (e *GreenhouseExtractor) Type() models.ATSType { return models.ATSGreenhouse }

type greenhouseJob struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	AbsoluteURL string `json:"absolute_url"`
	UpdatedAt   string `json:"updated_at"`
	// Content is HTML with entities escaped a second time by the API
	Content  string `json:"content"`
	Location struct {
		Name string `json:"name"`
	} `json:"location"`
	Departments []greenhouseDepartment `json:"departments"`
}

type greenhouseDepartment struct {
	Name string `json:"name"`
}

func (e *GreenhouseExtractor) ListJobs(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	if company.ATSIdentifier == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "greenhouse extraction for %s needs a board identifier", company.Name)
	}

	apiURL := fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs?content=true", company.ATSIdentifier)
	var payload struct {
		Jobs []greenhouseJob `json:"jobs"`
	}
	if err := e.fetcher.FetchJSON(ctx, apiURL, &payload); err != nil {
		if models.IsNotFound(err) {
			// Some boards disable the API but keep the hosted page up
			return e.listFromBoardPage(ctx, company)
		}
		return nil, err
	}

	now := time.Now().UTC()
	jobs := make([]*models.RawJob, 0, len(payload.Jobs))
	for _, j := range payload.Jobs {
		if j.Title == "" || j.AbsoluteURL == "" {
			continue
		}
		jobs = append(jobs, &models.RawJob{
			CompanyID:      company.ID,
			SourceURL:      j.AbsoluteURL,
			TitleRaw:       cleanText(j.Title),
			DescriptionRaw: html.UnescapeString(j.Content),
			LocationRaw:    cleanText(j.Location.Name),
			DepartmentRaw:  joinGreenhouseDepartments(j.Departments),
			PostedAtRaw:    j.UpdatedAt,
			ExtractedAt:    now,
		})
	}

	e.logger.Info().
		Str("company", company.Name).
		Str("board", company.ATSIdentifier).
		Int("jobs", len(jobs)).
		Msg("Extracted greenhouse board")
	return jobs, nil
}

// listFromBoardPage scrapes the hosted board, first from its .opening
// rows, then from any JSON-LD the page embeds.
func (e *GreenhouseExtractor) listFromBoardPage(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	pageURL := "https://boards.greenhouse.io/" + company.ATSIdentifier
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
	doc.Find(".opening").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a").First()
		href, _ := link.Attr("href")
		title := cleanText(link.Text())
		if title == "" || href == "" {
			return
		}
		jobs = append(jobs, &models.RawJob{
			CompanyID:   company.ID,
			SourceURL:   common.ResolveURL(pageURL, href),
			TitleRaw:    title,
			LocationRaw: cleanText(sel.Find(".location").First().Text()),
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
		Msg("Extracted greenhouse board page")
	return jobs, nil
}

func joinGreenhouseDepartments(departments []greenhouseDepartment) string {
	names := make([]string, 0, len(departments))
	for _, d := range departments {
		if d.Name != "" {
			names = append(names, d.Name)
		}
	}
	return joinLocation(names...)
}
