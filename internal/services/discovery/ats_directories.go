package discovery

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// boardVendor describes one ATS vendor's public customer directory and
// hosted-board URL shape
type boardVendor struct {
	ats          models.ATSType
	directoryURL string
	boardURL     string // printf pattern taking the board identifier
	// linkPattern matches hosted-board hrefs, identifier in group 1
	linkPattern *regexp.Regexp
}

var boardVendors = []boardVendor{
	{
		ats:          models.ATSGreenhouse,
		directoryURL: "https://www.greenhouse.io/customers",
		boardURL:     "https://boards.greenhouse.io/%s",
		linkPattern:  regexp.MustCompile(`(?:boards|job-boards)\.greenhouse\.io/([A-Za-z0-9_-]+)`),
	},
	{
		ats:          models.ATSLever,
		directoryURL: "https://www.lever.co/customers",
		boardURL:     "https://jobs.lever.co/%s",
		linkPattern:  regexp.MustCompile(`jobs\.lever\.co/([A-Za-z0-9_-]+)`),
	},
	{
		ats:          models.ATSAshby,
		directoryURL: "https://www.ashbyhq.com/customers",
		boardURL:     "https://jobs.ashbyhq.com/%s",
		linkPattern:  regexp.MustCompile(`jobs\.ashbyhq\.com/([A-Za-z0-9_-]+)`),
	},
}

// knownBoards seeds each vendor with boards that rarely appear on the
// marketing pages. Every entry is still verified before it is emitted.
var knownBoards = map[models.ATSType][]string{
	models.ATSGreenhouse: {
		"stripe", "airbnb", "coinbase", "databricks", "gitlab",
		"doordash", "robinhood", "brex", "figma", "anduril",
	},
	models.ATSLever: {
		"palantir", "plaid", "kraken", "mistral", "attentive",
		"voleon", "whatnot",
	},
	models.ATSAshby: {
		"openai", "ramp", "linear", "notion", "replit",
		"deel", "vanta", "cursor",
	},
}

// reservedSlugs are path segments on vendor hosts that are not board
// identifiers
var reservedSlugs = map[string]bool{
	"embed":     true,
	"js":        true,
	"demo":      true,
	"test":      true,
	"example":   true,
	"careers":   true,
	"customers": true,
}

// ATSDirectoriesSource finds companies by scraping vendor customer
// directories for hosted-board links. Candidates carry the vendor and
// board identifier, so queue processing skips detection for them.
type ATSDirectoriesSource struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

func NewATSDirectoriesSource(fetcher interfaces.Fetcher, logger arbor.ILogger) *ATSDirectoriesSource {
	return &ATSDirectoriesSource{fetcher: fetcher, logger: logger}
}

func (s *ATSDirectoriesSource) Name() string { return models.SourceATSDirectories }

func (s *ATSDirectoriesSource) Description() string {
	return "Hosted-board links scraped from ATS vendor customer directories"
}

func (s *ATSDirectoriesSource) Enabled() bool { return s.fetcher != nil }

func (s *ATSDirectoriesSource) Produce(ctx context.Context, limit int) ([]models.CompanyCandidate, error) {
	seen := make(map[string]bool)
	var out []models.CompanyCandidate

	for _, vendor := range boardVendors {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		ids := s.scrapeDirectory(ctx, vendor)
		ids = append(ids, knownBoards[vendor.ats]...)

		for _, id := range ids {
			id = strings.ToLower(id)
			key := string(vendor.ats) + "/" + id
			if seen[key] || reservedSlugs[id] {
				continue
			}
			seen[key] = true

			boardURL := fmt.Sprintf(vendor.boardURL, id)
			if !s.boardExists(ctx, boardURL) {
				continue
			}

			out = append(out, models.CompanyCandidate{
				Name:          titleizeIdentifier(id),
				CareersURL:    boardURL,
				ATSType:       vendor.ats,
				ATSIdentifier: id,
				Source:        models.SourceATSDirectories,
			})
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}

	return out, nil
}

// scrapeDirectory pulls board identifiers out of a vendor's customer
// page. Failures are logged and return nothing; the curated list still
// covers the vendor.
func (s *ATSDirectoriesSource) scrapeDirectory(ctx context.Context, vendor boardVendor) []string {
	result, err := s.fetcher.Fetch(ctx, &interfaces.FetchRequest{URL: vendor.directoryURL})
	if err != nil {
		s.logger.Warn().Err(err).Str("url", vendor.directoryURL).Msg("Customer directory fetch failed")
		return nil
	}

	var ids []string
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	if err == nil {
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			if m := vendor.linkPattern.FindStringSubmatch(href); m != nil {
				ids = append(ids, m[1])
			}
		})
	}

	// Marketing pages often attach board links from scripts rather than
	// anchors, so scan the raw body when the DOM walk comes up empty
	if len(ids) == 0 {
		for _, m := range vendor.linkPattern.FindAllStringSubmatch(string(result.Body), -1) {
			ids = append(ids, m[1])
		}
	}

	s.logger.Debug().Str("vendor", string(vendor.ats)).Int("count", len(ids)).Msg("Scraped customer directory")
	return ids
}

// boardExists verifies a hosted board responds before the identifier is
// emitted as a candidate
func (s *ATSDirectoriesSource) boardExists(ctx context.Context, boardURL string) bool {
	if _, err := s.fetcher.Fetch(ctx, &interfaces.FetchRequest{URL: boardURL, Method: http.MethodHead}); err != nil {
		s.logger.Debug().Err(err).Str("url", boardURL).Msg("Board check failed")
		return false
	}
	return true
}

// titleizeIdentifier turns a board slug like "wave-mobile-money" into a
// display name
func titleizeIdentifier(id string) string {
	words := strings.FieldsFunc(strings.ToLower(id), func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
