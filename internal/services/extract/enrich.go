package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// Greenhouse posting links carry the numeric job id in one of three
// shapes: ?gh_jid=123, /jobs/123, or /careers/123.
var greenhouseJobIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]gh_jid=(\d+)`),
	regexp.MustCompile(`/jobs/(\d+)`),
	regexp.MustCompile(`/careers/(\d+)`),
}

var (
	workableJobJSON = regexp.MustCompile(`(?s)window\.job\s*=\s*(\{.*?\});`)
	datePostedJSON  = regexp.MustCompile(`"datePosted"\s*:\s*"([^"]+)"`)
)

// Enricher backfills descriptions for raw jobs whose extractor could
// not supply one inline (workday, workable, and the listing-only ashby
// and LLM paths). It fetches the posting's detail page or detail API
// and writes the description back onto the raw job.
type Enricher struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

func NewEnricher(fetcher interfaces.Fetcher, logger arbor.ILogger) *Enricher {
	return &Enricher{fetcher: fetcher, logger: logger}
}

// Enrich fills raw.DescriptionRaw in place. A nil return means the
// description was found; the caller decides how to record failures.
func (e *Enricher) Enrich(ctx context.Context, raw *models.RawJob, company *models.Company) error {
	var err error
	switch company.ATSType {
	case models.ATSGreenhouse:
		err = e.enrichGreenhouse(ctx, raw, company)
	case models.ATSLever:
		err = e.enrichLever(ctx, raw)
	case models.ATSAshby:
		err = e.enrichAshby(ctx, raw, company)
	case models.ATSWorkable:
		err = e.enrichWorkable(ctx, raw)
	case models.ATSWorkday:
		err = e.enrichWorkday(ctx, raw, company)
	default:
		err = e.enrichGeneric(ctx, raw)
	}
	if err != nil {
		return err
	}

	e.logger.Debug().
		Str("company", company.Name).
		Str("url", raw.SourceURL).
		Msg("Enriched job description")
	return nil
}

func (e *Enricher) enrichGreenhouse(ctx context.Context, raw *models.RawJob, company *models.Company) error {
	var jobID string
	for _, p := range greenhouseJobIDPatterns {
		if m := p.FindStringSubmatch(raw.SourceURL); m != nil {
			jobID = m[1]
			break
		}
	}
	if jobID == "" {
		return models.Errorf(models.ErrParse, "no greenhouse job id in %s", raw.SourceURL)
	}

	apiURL := fmt.Sprintf("https://boards-api.greenhouse.io/v1/boards/%s/jobs/%s", company.ATSIdentifier, jobID)
	var detail struct {
		Content   string `json:"content"`
		UpdatedAt string `json:"updated_at"`
	}
	if err := e.fetcher.FetchJSON(ctx, apiURL, &detail); err != nil {
		return err
	}
	if detail.Content == "" {
		return models.Errorf(models.ErrParse, "greenhouse job %s has no content", jobID)
	}

	raw.DescriptionRaw = html.UnescapeString(detail.Content)
	if raw.PostedAtRaw == "" {
		raw.PostedAtRaw = detail.UpdatedAt
	}
	return nil
}

func (e *Enricher) enrichLever(ctx context.Context, raw *models.RawJob) error {
	doc, body, err := e.fetchDocument(ctx, raw.SourceURL)
	if err != nil {
		return err
	}

	if desc := innerHTMLIfLong(doc.Find(`div[class*="posting-description"]`).First(), 50); desc != "" {
		raw.DescriptionRaw = desc
	} else if jobs := jsonLDJobs(doc, raw.SourceURL); len(jobs) > 0 && jobs[0].DescriptionRaw != "" {
		raw.DescriptionRaw = jobs[0].DescriptionRaw
	} else {
		return models.Errorf(models.ErrParse, "no posting description at %s", raw.SourceURL)
	}

	if raw.PostedAtRaw == "" {
		if m := datePostedJSON.FindStringSubmatch(body); m != nil {
			raw.PostedAtRaw = m[1]
		}
	}
	return nil
}

// enrichAshby re-reads the board's posting-api and matches this job by
// its id or url. GraphQL and __NEXT_DATA__ extractions land here since
// neither returns descriptions.
func (e *Enricher) enrichAshby(ctx context.Context, raw *models.RawJob, company *models.Company) error {
	apiURL := fmt.Sprintf("https://api.ashbyhq.com/posting-api/job-board/%s", company.ATSIdentifier)
	var payload struct {
		Jobs []ashbyPosting `json:"jobs"`
	}
	if err := e.fetcher.FetchJSON(ctx, apiURL, &payload); err != nil {
		return err
	}

	for _, p := range payload.Jobs {
		if p.DescriptionHTML == "" {
			continue
		}
		matched := p.ID != "" && strings.Contains(raw.SourceURL, p.ID)
		if !matched && p.JobURL != "" {
			matched = raw.SourceURL == p.JobURL || strings.Contains(p.JobURL, raw.SourceURL)
		}
		if matched {
			raw.DescriptionRaw = p.DescriptionHTML
			if raw.PostedAtRaw == "" {
				raw.PostedAtRaw = p.PublishedAt
			}
			return nil
		}
	}
	return models.Errorf(models.ErrNotFound, "posting %s not on ashby board %s", raw.SourceURL, company.ATSIdentifier)
}

func (e *Enricher) enrichWorkable(ctx context.Context, raw *models.RawJob) error {
	doc, body, err := e.fetchDocument(ctx, raw.SourceURL)
	if err != nil {
		return err
	}

	// Posting pages inline the full job record as a window.job literal
	if m := workableJobJSON.FindStringSubmatch(body); m != nil {
		var job struct {
			Description string `json:"description"`
		}
		if json.Unmarshal([]byte(m[1]), &job) == nil && job.Description != "" {
			raw.DescriptionRaw = job.Description
			return nil
		}
	}

	if desc := innerHTMLIfLong(doc.Find(`[class*="job-description"]`).First(), 50); desc != "" {
		raw.DescriptionRaw = desc
		return nil
	}
	return models.Errorf(models.ErrParse, "no job description at %s", raw.SourceURL)
}

func (e *Enricher) enrichWorkday(ctx context.Context, raw *models.RawJob, company *models.Company) error {
	board, err := workdayBoardFromURL(company.CareersURL)
	if err != nil {
		return err
	}
	idx := strings.Index(raw.SourceURL, "/job/")
	if idx < 0 {
		return models.Errorf(models.ErrParse, "no workday posting path in %s", raw.SourceURL)
	}

	var detail struct {
		JobPostingInfo struct {
			JobDescription string `json:"jobDescription"`
		} `json:"jobPostingInfo"`
	}
	if err := e.fetcher.FetchJSON(ctx, board.detailURL(raw.SourceURL[idx:]), &detail); err != nil {
		return err
	}
	if detail.JobPostingInfo.JobDescription == "" {
		return models.Errorf(models.ErrParse, "workday posting %s has no description", raw.SourceURL)
	}
	raw.DescriptionRaw = detail.JobPostingInfo.JobDescription
	return nil
}

func (e *Enricher) enrichGeneric(ctx context.Context, raw *models.RawJob) error {
	doc, body, err := e.fetchDocument(ctx, raw.SourceURL)
	if err != nil {
		return err
	}

	if jobs := jsonLDJobs(doc, raw.SourceURL); len(jobs) > 0 && jobs[0].DescriptionRaw != "" {
		raw.DescriptionRaw = jobs[0].DescriptionRaw
	} else if desc := firstLongBlock(doc); desc != "" {
		raw.DescriptionRaw = desc
	} else {
		return models.Errorf(models.ErrParse, "no description found at %s", raw.SourceURL)
	}

	if raw.PostedAtRaw == "" {
		if m := datePostedJSON.FindStringSubmatch(body); m != nil {
			raw.PostedAtRaw = m[1]
		}
	}
	return nil
}

func (e *Enricher) fetchDocument(ctx context.Context, url string) (*goquery.Document, string, error) {
	res, err := e.fetcher.Fetch(ctx, &interfaces.FetchRequest{URL: url})
	if err != nil {
		return nil, "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, "", models.NewError(models.ErrParse, err)
	}
	return doc, string(res.Body), nil
}

// firstLongBlock tries the selectors custom career sites commonly use
// for posting bodies, most specific first. Sidebars and chips match the
// broad selectors too, so every candidate is checked for length.
func firstLongBlock(doc *goquery.Document) string {
	for _, sel := range []string{`[class*="job-description"]`, `[class*="description"]`, "article"} {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if desc := innerHTMLIfLong(s, 100); desc != "" {
				found = desc
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// innerHTMLIfLong returns the selection's inner HTML when its text runs
// past minLen. Short matches are boilerplate, not descriptions.
func innerHTMLIfLong(sel *goquery.Selection, minLen int) string {
	if sel.Length() == 0 {
		return ""
	}
	if len(cleanText(sel.Text())) <= minLen {
		return ""
	}
	inner, err := sel.Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(inner)
}
