package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

var ycListingURLs = []string{
	"https://www.ycombinator.com/companies",
	"https://www.workatastartup.com/companies",
}

// ycPageData is the slice of the Next.js inline payload the listing
// pages carry
type ycPageData struct {
	Props struct {
		PageProps struct {
			Companies []ycCompany `json:"companies"`
		} `json:"pageProps"`
	} `json:"props"`
}

type ycCompany struct {
	Name         string `json:"name"`
	Website      string `json:"website"`
	AllLocations string `json:"all_locations"`
	Location     string `json:"location"`
	Industry     string `json:"industry"`
	// TeamSize arrives as a number on one listing and a string on the
	// other
	TeamSize interface{} `json:"team_size"`
	Batch    string      `json:"batch"`
}

// YCCompaniesSource produces candidates from the Y Combinator startup
// directories by decoding the __NEXT_DATA__ payload embedded in the
// listing pages
type YCCompaniesSource struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

func NewYCCompaniesSource(fetcher interfaces.Fetcher, logger arbor.ILogger) *YCCompaniesSource {
	return &YCCompaniesSource{fetcher: fetcher, logger: logger}
}

func (s *YCCompaniesSource) Name() string { return models.SourceYCCompanies }

func (s *YCCompaniesSource) Description() string {
	return "Startups from the Y Combinator company directories"
}

func (s *YCCompaniesSource) Enabled() bool { return s.fetcher != nil }

func (s *YCCompaniesSource) Produce(ctx context.Context, limit int) ([]models.CompanyCandidate, error) {
	seen := make(map[string]bool)
	var out []models.CompanyCandidate

	for _, pageURL := range ycListingURLs {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		companies, err := s.fetchListing(ctx, pageURL)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", pageURL).Msg("YC listing fetch failed")
			continue
		}

		for _, c := range companies {
			name := strings.TrimSpace(c.Name)
			if name == "" || seen[strings.ToLower(name)] {
				continue
			}
			seen[strings.ToLower(name)] = true

			location := c.AllLocations
			if location == "" {
				location = c.Location
			}
			country := ""
			if looksUS(location) {
				country = "US"
			}

			out = append(out, models.CompanyCandidate{
				Name:          name,
				WebsiteURL:    c.Website,
				Source:        models.SourceYCCompanies,
				Location:      location,
				Country:       country,
				Industry:      c.Industry,
				EmployeeCount: teamSizeInt(c.TeamSize),
				FundingStage:  c.Batch,
			})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}

		s.logger.Info().Str("url", pageURL).Int("count", len(companies)).Msg("Parsed YC listing")
	}

	return out, nil
}

func (s *YCCompaniesSource) fetchListing(ctx context.Context, pageURL string) ([]ycCompany, error) {
	payload, err := s.nextDataPayload(ctx, pageURL, false)
	if err != nil {
		return nil, err
	}
	if payload == "" {
		// Some listing variants only attach the payload after hydration
		payload, err = s.nextDataPayload(ctx, pageURL, true)
		if err != nil {
			return nil, err
		}
	}
	if payload == "" {
		return nil, models.Errorf(models.ErrParse, "no __NEXT_DATA__ payload at %s", pageURL)
	}

	var page ycPageData
	if err := json.Unmarshal([]byte(payload), &page); err != nil {
		return nil, models.Errorf(models.ErrParse, "decode __NEXT_DATA__ at %s: %v", pageURL, err)
	}
	return page.Props.PageProps.Companies, nil
}

func (s *YCCompaniesSource) nextDataPayload(ctx context.Context, pageURL string, render bool) (string, error) {
	result, err := s.fetcher.Fetch(ctx, &interfaces.FetchRequest{
		URL:          pageURL,
		Render:       render,
		WaitSelector: "script#__NEXT_DATA__",
	})
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	if err != nil {
		return "", models.Errorf(models.ErrParse, "parse listing page %s: %v", pageURL, err)
	}
	return strings.TrimSpace(doc.Find("script#__NEXT_DATA__").First().Text()), nil
}

func teamSizeInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		size, _ := strconv.Atoi(strings.TrimSpace(n))
		return size
	}
	return 0
}

// usCityIndicators and usStateSuffixes back the naive US geography
// check shared by the listing sources. State codes only match at the
// end of the string so "Toronto, Canada" does not trip ", ca".
var usCityIndicators = []string{
	"united states", "usa", "u.s.", "san francisco", "new york", "nyc",
	"seattle", "austin", "boston", "los angeles", "chicago", "denver",
	"mountain view", "palo alto", "remote (us)",
}

var usStateSuffixes = []string{
	", ca", ", ny", ", tx", ", wa", ", ma", ", co", ", il", ", ga", ", fl",
}

func looksUS(location string) bool {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return false
	}
	for _, indicator := range usCityIndicators {
		if strings.Contains(loc, indicator) {
			return true
		}
	}
	for _, suffix := range usStateSuffixes {
		if strings.HasSuffix(loc, suffix) {
			return true
		}
	}
	return false
}
