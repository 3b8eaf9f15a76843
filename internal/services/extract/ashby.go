package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

const ashbyGraphQLURL = "https://jobs.ashbyhq.com/api/non-user-graphql"

// ashbyBoardQuery is the query the hosted board itself issues. It stays
// available on boards that have the posting-api turned off.
const ashbyBoardQuery = `query JobBoardWithSearch($organizationHostedJobsPageName: String!) {
  jobBoard: jobBoardWithSearch(organizationHostedJobsPageName: $organizationHostedJobsPageName) {
    jobPostings {
      id
      title
      locationName
      teamName
      employmentType
      compensationTierSummary
      publishedDate
    }
  }
}`

// AshbyExtractor reads Ashby boards. The posting-api carries full
// descriptions inline; the GraphQL and __NEXT_DATA__ fallbacks only
// list postings, so those jobs pick up descriptions during enrichment.
type AshbyExtractor struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

func NewAshbyExtractor(fetcher interfaces.Fetcher, logger arbor.ILogger) *AshbyExtractor {
	return &AshbyExtractor{fetcher: fetcher, logger: logger}
}

func (e *AshbyExtractor) Type() models.ATSType { return models.ATSAshby }

// nameOrString tolerates fields Ashby serves as either a bare string or
// an object with a name key.
type nameOrString string

func (n *nameOrString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = nameOrString(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		*n = nameOrString(obj.Name)
		return nil
	}
	*n = ""
	return nil
}

type ashbyPosting struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Location        nameOrString `json:"location"`
	Department      nameOrString `json:"department"`
	Team            nameOrString `json:"team"`
	EmploymentType  string       `json:"employmentType"`
	PublishedAt     string       `json:"publishedAt"`
	JobURL          string       `json:"jobUrl"`
	DescriptionHTML string       `json:"descriptionHtml"`
	Compensation    *struct {
		CompensationTierSummary string `json:"compensationTierSummary"`
	} `json:"compensation"`
}

func (e *AshbyExtractor) ListJobs(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	if company.ATSIdentifier == "" {
		return nil, models.Errorf(models.ErrInvalidArgument, "ashby extraction for %s needs a board identifier", company.Name)
	}

	jobs, err := e.listFromPostingAPI(ctx, company)
	if err == nil {
		return jobs, nil
	}
	if !models.IsNotFound(err) {
		return nil, err
	}

	if jobs, gqlErr := e.listFromGraphQL(ctx, company); gqlErr == nil && len(jobs) > 0 {
		return jobs, nil
	}

	return e.listFromBoardPage(ctx, company)
}

func (e *AshbyExtractor) listFromPostingAPI(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	apiURL := fmt.Sprintf("https://api.ashbyhq.com/posting-api/job-board/%s?includeCompensation=true", company.ATSIdentifier)
	var payload struct {
		Jobs []ashbyPosting `json:"jobs"`
	}
	if err := e.fetcher.FetchJSON(ctx, apiURL, &payload); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	jobs := make([]*models.RawJob, 0, len(payload.Jobs))
	for _, p := range payload.Jobs {
		if p.Title == "" {
			continue
		}
		sourceURL := p.JobURL
		if sourceURL == "" {
			sourceURL = fmt.Sprintf("https://jobs.ashbyhq.com/%s/%s", company.ATSIdentifier, p.ID)
		}
		department := string(p.Department)
		if department == "" {
			department = string(p.Team)
		}
		job := &models.RawJob{
			CompanyID:      company.ID,
			SourceURL:      sourceURL,
			TitleRaw:       cleanText(p.Title),
			DescriptionRaw: p.DescriptionHTML,
			LocationRaw:    cleanText(string(p.Location)),
			DepartmentRaw:  cleanText(department),
			EmploymentRaw:  cleanText(p.EmploymentType),
			PostedAtRaw:    p.PublishedAt,
			ExtractedAt:    now,
		}
		if p.Compensation != nil {
			job.SalaryRaw = p.Compensation.CompensationTierSummary
		}
		jobs = append(jobs, job)
	}

	e.logger.Info().
		Str("company", company.Name).
		Str("board", company.ATSIdentifier).
		Int("jobs", len(jobs)).
		Msg("Extracted ashby posting api")
	return jobs, nil
}

func (e *AshbyExtractor) listFromGraphQL(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	body, err := json.Marshal(map[string]interface{}{
		"operationName": "JobBoardWithSearch",
		"variables":     map[string]string{"organizationHostedJobsPageName": company.ATSIdentifier},
		"query":         ashbyBoardQuery,
	})
	if err != nil {
		return nil, models.NewError(models.ErrInternal, err)
	}

	res, err := e.fetcher.Fetch(ctx, &interfaces.FetchRequest{
		URL:         ashbyGraphQLURL,
		Method:      http.MethodPost,
		Body:        body,
		ContentType: "application/json",
		Accept:      "application/json",
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data struct {
			JobBoard struct {
				JobPostings []struct {
					ID                      string `json:"id"`
					Title                   string `json:"title"`
					LocationName            string `json:"locationName"`
					TeamName                string `json:"teamName"`
					EmploymentType          string `json:"employmentType"`
					CompensationTierSummary string `json:"compensationTierSummary"`
					PublishedDate           string `json:"publishedDate"`
				} `json:"jobPostings"`
			} `json:"jobBoard"`
		} `json:"data"`
	}
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return nil, models.NewError(models.ErrParse, err)
	}

	now := time.Now().UTC()
	var jobs []*models.RawJob
	for _, p := range payload.Data.JobBoard.JobPostings {
		if p.Title == "" {
			continue
		}
		jobs = append(jobs, &models.RawJob{
			CompanyID:     company.ID,
			SourceURL:     fmt.Sprintf("https://jobs.ashbyhq.com/%s/%s", company.ATSIdentifier, p.ID),
			TitleRaw:      cleanText(p.Title),
			LocationRaw:   cleanText(p.LocationName),
			DepartmentRaw: cleanText(p.TeamName),
			EmploymentRaw: cleanText(p.EmploymentType),
			SalaryRaw:     p.CompensationTierSummary,
			PostedAtRaw:   p.PublishedDate,
			ExtractedAt:   now,
		})
	}

	e.logger.Info().
		Str("company", company.Name).
		Str("board", company.ATSIdentifier).
		Int("jobs", len(jobs)).
		Msg("Extracted ashby graphql")
	return jobs, nil
}

// listFromBoardPage falls back to the hosted page's __NEXT_DATA__
// blob, which embeds the same posting list the board renders from.
func (e *AshbyExtractor) listFromBoardPage(ctx context.Context, company *models.Company) ([]*models.RawJob, error) {
	pageURL := "https://jobs.ashbyhq.com/" + company.ATSIdentifier
	res, err := e.fetcher.Fetch(ctx, &interfaces.FetchRequest{URL: pageURL})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, models.NewError(models.ErrParse, err)
	}

	raw := doc.Find("script#__NEXT_DATA__").First().Text()
	if strings.TrimSpace(raw) == "" {
		return nil, models.Errorf(models.ErrParse, "ashby board page for %s has no __NEXT_DATA__", company.ATSIdentifier)
	}

	var payload struct {
		Props struct {
			PageProps struct {
				JobPostings []struct {
					ID             string `json:"id"`
					Title          string `json:"title"`
					LocationName   string `json:"locationName"`
					TeamName       string `json:"teamName"`
					EmploymentType string `json:"employmentType"`
				} `json:"jobPostings"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, models.NewError(models.ErrParse, err)
	}

	now := time.Now().UTC()
	var jobs []*models.RawJob
	for _, p := range payload.Props.PageProps.JobPostings {
		if p.Title == "" {
			continue
		}
		jobs = append(jobs, &models.RawJob{
			CompanyID:     company.ID,
			SourceURL:     fmt.Sprintf("https://jobs.ashbyhq.com/%s/%s", company.ATSIdentifier, p.ID),
			TitleRaw:      cleanText(p.Title),
			LocationRaw:   cleanText(p.LocationName),
			DepartmentRaw: cleanText(p.TeamName),
			EmploymentRaw: cleanText(p.EmploymentType),
			ExtractedAt:   now,
		})
	}

	e.logger.Info().
		Str("company", company.Name).
		Str("board", company.ATSIdentifier).
		Int("jobs", len(jobs)).
		Msg("Extracted ashby board page")
	return jobs, nil
}
