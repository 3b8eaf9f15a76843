package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

const (
	workdayPageSize = 20
	// workdayMaxPages caps pagination; 50 pages of 20 covers any board
	// we would realistically ingest
	workdayMaxPages = 50
)

// localeSegment matches path segments like en-US that Workday inserts
// before the site name.
var localeSegment = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)

// WorkdayExtractor reads Workday-hosted boards through the cxs search
// API every tenant exposes. Workday has no slug-style identifier; the
// tenant host and site name both come from the stored careers URL.
type WorkdayExtractor struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

func NewWorkdayExtractor(fetcher interfaces.Fetcher, logger arbor.ILogger) *WorkdayExtractor {
	return &WorkdayExtractor{fetcher: fetcher, logger: logger}
}

func (e *WorkdayExtractor) Type() models.ATSType { return models.ATSWorkday }

// workdayBoard identifies one tenant site, e.g. host
// acme.wd1.myworkdayjobs.com, org acme, site External.
type workdayBoard struct {
	host string
	org  string
	site string
}

func workdayBoardFromURL(careersURL string) (*workdayBoard, error) {
	u, err := url.Parse(careersURL)
	if err != nil || u.Host == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "workday careers url %q is not parseable", careersURL)
	}
	host := strings.ToLower(u.Hostname())
	if !strings.Contains(host, ".myworkdayjobs.com") && !strings.Contains(host, ".myworkdaysite.com") {
		return nil, models.Errorf(models.ErrInvalidArgument, "%q is not a workday board host", host)
	}
	org, _, _ := strings.Cut(host, ".")

	site := ""
	for _, seg := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if seg == "" || localeSegment.MatchString(seg) {
			continue
		}
		site = seg
		break
	}
	if site == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "workday careers url %q names no site", careersURL)
	}
	return &workdayBoard{host: host, org: org, site: site}, nil
}

func (b *workdayBoard) searchURL() string {
	return fmt.Sprintf("https://%s/wday/cxs/%s/%s/jobs", b.host, b.org, b.site)
}

func (b *workdayBoard) detailURL(externalPath string) string {
	return fmt.Sprintf("https://%s/wday/cxs/%s/%s%s", b.host, b.org, b.site, externalPath)
}

type workdayPosting struct {
	Title         string   `json:"title"`
	ExternalPath  string   `json:"externalPath"`
	LocationsText string   `json:"locationsText"`
	PostedOn      string   `json:"postedOn"`
	BulletFields  []string `json:"bulletFields"`
}

func (e *WorkdayExtractor) ListJobs(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	board, err := workdayBoardFromURL(company.CareersURL)
	if err != nil {
		return nil, err
	}

	// Posting links hang off the stored careers URL so they keep its
	// locale segment
	linkBase := strings.TrimSuffix(company.CareersURL, "/")

	now := time.Now().UTC()
	var jobs []*models.RawJob
	offset := 0
	for page := 0; page < workdayMaxPages; page++ {
		body, err := json.Marshal(map[string]interface{}{
			"appliedFacets": map[string]interface{}{},
			"limit":         workdayPageSize,
			"offset":        offset,
			"searchText":    "",
		})
		if err != nil {
			return nil, models.NewError(models.ErrInternal, err)
		}

		res, err := e.fetcher.Fetch(ctx, &interfaces.FetchRequest{
			URL:         board.searchURL(),
			Method:      http.MethodPost,
			Body:        body,
			ContentType: "application/json",
			Accept:      "application/json",
		})
		if err != nil {
			// A partial listing would make the delisting pass treat the
			// missing tail as removed, so fail the whole extraction
			return nil, err
		}

		var result struct {
			Total       int              `json:"total"`
			JobPostings []workdayPosting `json:"jobPostings"`
		}
		if err := json.Unmarshal(res.Body, &result); err != nil {
			return nil, models.NewError(models.ErrParse, err)
		}

		for _, p := range result.JobPostings {
			if p.Title == "" || p.ExternalPath == "" {
				continue
			}
			jobs = append(jobs, &models.RawJob{
				CompanyID:   company.ID,
				SourceURL:   linkBase + p.ExternalPath,
				TitleRaw:    cleanText(p.Title),
				LocationRaw: cleanText(p.LocationsText),
				PostedAtRaw: p.PostedOn,
				ExtractedAt: now,
			})
		}

		offset += len(result.JobPostings)
		if len(result.JobPostings) == 0 || offset >= result.Total {
			break
		}
	}

	e.logger.Info().
		Str("company", company.Name).
		Str("site", board.org+"/"+board.site).
		Int("jobs", len(jobs)).
		Msg("Extracted workday board")
	return jobs, nil
}
