package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

const defaultExcerptLimit = 30000

const customExtractionPrompt = `You are a job listing extractor. You are given the markdown rendering of a company careers page.

Respond with only a JSON object, no prose, matching this schema:
{"jobs": [{"title": "...", "location": "...", "department": "...", "employment_type": "...", "url_path": "..."}]}

Rules:
- title is required and must be the posting title exactly as written
- location, department, employment_type and url_path may be null when the page does not state them
- url_path is the posting link, relative paths are fine
- only include actual job postings, never navigation items, headings or category labels
- return {"jobs": []} when the page lists no openings`

// noiseSelectors are stripped before the page is handed to the model.
// Chrome and media elements burn excerpt budget without carrying
// posting data.
const noiseSelectors = "script, style, noscript, svg, img, video, audio, iframe, nav, header, footer"

// jobLinkHints mark pages that already expose postings as plain links;
// such pages skip the rendered refetch.
var jobLinkHints = []string{
	"/job", "/career", "/position", "/opening", "/vacanc", "/apply",
	"greenhouse.io", "lever.co", "ashbyhq.com", "workable.com", "myworkdayjobs.com",
}

// CustomExtractor handles boards on no recognized vendor by asking the
// LLM to read the careers page. Pages that embed JSON-LD JobPosting
// data short-circuit before any model call.
type CustomExtractor struct {
	fetcher      interfaces.Fetcher
	llm          interfaces.LLMService
	excerptLimit int
	logger       arbor.ILogger
}

func NewCustomExtractor(fetcher interfaces.Fetcher, llm interfaces.LLMService, excerptLimit int, logger arbor.ILogger) *CustomExtractor {
	if excerptLimit <= 0 {
		excerptLimit = defaultExcerptLimit
	}
	return &CustomExtractor{
		fetcher:      fetcher,
		llm:          llm,
		excerptLimit: excerptLimit,
		logger:       logger,
	}
}

func (e *CustomExtractor) Type() models.ATSType { return models.ATSCustom }

type llmJobListing struct {
	Title          string `json:"title"`
	Location       string `json:"location"`
	Department     string `json:"department"`
	EmploymentType string `json:"employment_type"`
	URLPath        string `json:"url_path"`
}

func (e *CustomExtractor) ListJobs(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	pageURL := company.CareersURL
	if pageURL == "" {
		pageURL = company.WebsiteURL
	}
	if pageURL == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "custom extraction for %s needs a careers or website url", company.Name)
	}

	res, err := e.fetcher.Fetch(ctx, &interfaces.FetchRequest{URL: pageURL})
	if err != nil {
		return nil, err
	}
	if res.FinalURL != "" {
		pageURL = res.FinalURL
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, models.NewError(models.ErrParse, err)
	}

	if jobs := e.structuredJobs(doc, pageURL, company); len(jobs) > 0 {
		return jobs, nil
	}

	// SPA careers pages ship an empty shell; refetch through the
	// browser when the plain HTML links to no jobs
	if !hasJobLinks(doc) {
		rendered, rerr := e.fetcher.Fetch(ctx, &interfaces.FetchRequest{URL: pageURL, Render: true})
		if rerr == nil {
			if rdoc, derr := goquery.NewDocumentFromReader(bytes.NewReader(rendered.Body)); derr == nil {
				doc = rdoc
				if jobs := e.structuredJobs(doc, pageURL, company); len(jobs) > 0 {
					return jobs, nil
				}
			}
		} else {
			e.logger.Debug().Err(rerr).Str("url", pageURL).Msg("Rendered refetch failed, using plain HTML")
		}
	}

	markdown := pageMarkdown(doc, pageURL)
	if strings.TrimSpace(markdown) == "" {
		return nil, models.Errorf(models.ErrParse, "careers page %s produced no text", pageURL)
	}

	listings, err := e.extractWithLLM(ctx, markdown, e.excerptLimit)
	if err != nil {
		// One retry with half the excerpt; oversized pages are the
		// usual reason the model drifts off schema
		listings, err = e.extractWithLLM(ctx, markdown, e.excerptLimit/2)
	}
	if err != nil {
		e.logger.Warn().
			Err(err).
			Str("company", company.Name).
			Str("url", pageURL).
			Msg("extractor_llm_failed")
		return nil, nil
	}

	now := time.Now().UTC()
	jobs := make([]*models.RawJob, 0, len(listings))
	for _, l := range listings {
		sourceURL := pageURL
		if l.URLPath != "" {
			sourceURL = common.ResolveURL(pageURL, l.URLPath)
		}
		jobs = append(jobs, &models.RawJob{
			CompanyID:     company.ID,
			SourceURL:     sourceURL,
			TitleRaw:      cleanText(l.Title),
			LocationRaw:   cleanText(l.Location),
			DepartmentRaw: cleanText(l.Department),
			EmploymentRaw: cleanText(l.EmploymentType),
			ExtractedAt:   now,
		})
	}

	e.logger.Info().
		Str("company", company.Name).
		Str("url", pageURL).
		Int("jobs", len(jobs)).
		Msg("Extracted careers page via llm")
	return jobs, nil
}

// structuredJobs returns JSON-LD postings when the page embeds them.
func (e *CustomExtractor) structuredJobs(doc *goquery.Document, pageURL string, company *models.Company) []*models.RawJob {
	jobs := jsonLDJobs(doc, pageURL)
	if len(jobs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, job := range jobs {
		job.CompanyID = company.ID
		job.ExtractedAt = now
	}
	e.logger.Info().
		Str("company", company.Name).
		Str("url", pageURL).
		Int("jobs", len(jobs)).
		Msg("Extracted careers page json-ld")
	return jobs
}

func (e *CustomExtractor) extractWithLLM(ctx context.Context, markdown string, limit int) ([]llmJobListing, error) {
	if e.llm == nil {
		return nil, models.Errorf(models.ErrInternal, "llm extraction requires a configured claude api key")
	}

	excerpt := markdown
	if len(excerpt) > limit {
		excerpt = excerpt[:limit] + "\n... [truncated]"
	}

	raw, err := e.llm.CompleteJSON(ctx, interfaces.CompletionRequest{
		System: customExtractionPrompt,
		Prompt: "Careers page:\n\n" + excerpt,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Jobs []llmJobListing `json:"jobs"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, models.NewError(models.ErrSchemaViolation, err)
	}
	for _, l := range payload.Jobs {
		if strings.TrimSpace(l.Title) == "" {
			return nil, models.Errorf(models.ErrSchemaViolation, "listing missing title")
		}
	}
	return payload.Jobs, nil
}

// hasJobLinks reports whether any anchor looks like a posting link.
func hasJobLinks(doc *goquery.Document) bool {
	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.ToLower(href)
		for _, hint := range jobLinkHints {
			if strings.Contains(href, hint) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// pageMarkdown strips page chrome and converts what remains to
// markdown, keeping link targets for url_path extraction.
func pageMarkdown(doc *goquery.Document, pageURL string) string {
	doc.Find(noiseSelectors).Remove()
	cleaned, err := doc.Html()
	if err != nil {
		return cleanText(doc.Text())
	}
	converter := md.NewConverter(pageURL, true, nil)
	markdown, err := converter.ConvertString(cleaned)
	if err != nil {
		return cleanText(doc.Text())
	}
	return markdown
}
