package atsdetect

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// Detection methods recorded on results.
const (
	MethodURLPattern = "url_pattern"
	MethodHTMLProbe  = "html_probe"
	MethodAPIProbe   = "api_probe"
	MethodFallback   = "fallback"
)

const (
	// maxProbeCandidates bounds identifier guesses tried against vendor
	// APIs per company.
	maxProbeCandidates = 4
	// maxJobLinkFollows bounds how many job links on a careers page are
	// followed looking for a board redirect.
	maxJobLinkFollows = 3
)

// Service resolves which ATS vendor serves a company's job board and
// under what identifier. It only reports results; writing the ATS
// fields back to the company record is the caller's job, which keeps a
// single writer for those fields.
type Service struct {
	fetcher interfaces.Fetcher
	logger  arbor.ILogger
}

// NewService creates the detector on top of a fetcher.
func NewService(fetcher interfaces.Fetcher, logger arbor.ILogger) *Service {
	return &Service{
		fetcher: fetcher,
		logger:  logger,
	}
}

// Detect runs the detection ladder: URL patterns, then careers page
// probing, then vendor API probing with identifier guesses. Companies
// whose pages are reachable but match no vendor come back as custom;
// companies whose pages cannot be fetched at all come back as unknown
// alongside the fetch error. Detection is a pure function of the
// company's URLs, so repeated calls agree while the site is unchanged.
func (s *Service) Detect(ctx context.Context, company *models.Company) (*interfaces.DetectionResult, error) {
	if company == nil || (company.CareersURL == "" && company.WebsiteURL == "" && company.Domain == "") {
		return nil, models.Errorf(models.ErrInvalidArgument, "ats detection needs a careers or website URL")
	}

	// Step 1: the URL itself names the vendor.
	for _, candidate := range []string{company.CareersURL, company.WebsiteURL} {
		if candidate == "" {
			continue
		}
		if ats, id, ok := matchURL(candidate); ok && id != "" {
			result := &interfaces.DetectionResult{
				ATSType:    ats,
				Identifier: id,
				CareersURL: candidate,
				Method:     MethodURLPattern,
			}
			s.logResult(company, result)
			return result, nil
		}
	}

	// Step 2: fetch careers pages and look for embedded boards.
	pages := s.probePages(company)
	var (
		fetched    bool
		vendorHint models.ATSType
		lastErr    error
	)
	for _, page := range pages {
		result, hint, err := s.probePage(ctx, page)
		if err != nil {
			lastErr = err
			s.logger.Debug().Err(err).Str("company", company.Name).Str("url", page).Msg("Careers page probe failed")
			continue
		}
		fetched = true
		if result != nil {
			s.logResult(company, result)
			return result, nil
		}
		if hint != "" && vendorHint == "" {
			vendorHint = hint
		}
	}

	// Step 3: try vendor APIs with identifier guesses.
	if result := s.probeAPIs(ctx, company, vendorHint); result != nil {
		s.logResult(company, result)
		return result, nil
	}

	// Step 4: reachable page on no known vendor means a custom board.
	if fetched {
		careersURL := company.CareersURL
		if careersURL == "" && len(pages) > 0 {
			careersURL = pages[0]
		}
		result := &interfaces.DetectionResult{
			ATSType:    models.ATSCustom,
			CareersURL: careersURL,
			Method:     MethodFallback,
		}
		s.logResult(company, result)
		return result, nil
	}

	result := &interfaces.DetectionResult{
		ATSType:    models.ATSUnknown,
		CareersURL: company.CareersURL,
		Method:     MethodFallback,
	}
	if lastErr == nil {
		lastErr = models.Errorf(models.ErrNotFound, "no careers page reachable for %s", company.Name)
	}
	return result, lastErr
}

// Rediscover re-resolves the board for a company whose stored
// identifier stopped answering. The stored board URL is skipped as
// evidence because it is the thing that went stale; detection restarts
// from the company's own site.
func (s *Service) Rediscover(ctx context.Context, company *models.Company) (*interfaces.DetectionResult, error) {
	if company == nil {
		return nil, models.Errorf(models.ErrInvalidArgument, "ats rediscovery needs a company")
	}

	probe := *company
	if probe.CareersURL != "" {
		if _, _, ok := matchURL(probe.CareersURL); ok {
			probe.CareersURL = ""
		}
	}

	result, err := s.Detect(ctx, &probe)
	if err != nil {
		return nil, err
	}
	if result.Identifier != "" && result.Identifier != company.ATSIdentifier {
		s.logger.Info().
			Str("company", company.Name).
			Str("old_identifier", company.ATSIdentifier).
			Str("new_identifier", result.Identifier).
			Str("ats_type", string(result.ATSType)).
			Msg("Rediscovered board identifier")
	}
	return result, nil
}

func (s *Service) logResult(company *models.Company, result *interfaces.DetectionResult) {
	s.logger.Info().
		Str("company", company.Name).
		Str("ats_type", string(result.ATSType)).
		Str("identifier", result.Identifier).
		Str("method", result.Method).
		Msg("ATS detected")
}

// probePages lists careers page candidates: the stored careers URL
// first, then conventional paths on the company domain.
func (s *Service) probePages(company *models.Company) []string {
	var pages []string
	seen := make(map[string]struct{})
	add := func(u string) {
		if u == "" {
			return
		}
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		pages = append(pages, u)
	}

	add(company.CareersURL)
	domain := company.Domain
	if domain == "" {
		domain = company.WebsiteURL
	}
	if d := common.NormalizeDomain(domain); d != "" {
		add("https://" + d + "/careers")
		add("https://" + d + "/jobs")
	}
	return pages
}

// probePage fetches one careers page candidate and inspects it for an
// embedded board. Returns a full result, or a vendor hint when markers
// were present but no identifier could be extracted.
func (s *Service) probePage(ctx context.Context, pageURL string) (*interfaces.DetectionResult, models.ATSType, error) {
	res, err := s.fetcher.Fetch(ctx, &interfaces.FetchRequest{URL: pageURL})
	if err != nil {
		return nil, "", err
	}

	// A redirect onto a vendor board answers directly.
	finalURL := res.FinalURL
	if finalURL == "" {
		finalURL = pageURL
	}
	if finalURL != pageURL {
		if ats, id, ok := matchURL(finalURL); ok && id != "" {
			return &interfaces.DetectionResult{
				ATSType:    ats,
				Identifier: id,
				CareersURL: finalURL,
				Method:     MethodHTMLProbe,
			}, "", nil
		}
	}

	html := string(res.Body)
	var hint models.ATSType

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if docErr == nil {
		result, docHint := s.probeDocument(doc, finalURL, html)
		if result != nil {
			return result, "", nil
		}
		hint = docHint
	}

	// Raw marker scan catches boards referenced outside tag attributes,
	// inline scripts included.
	if ats, ok := matchHTML(html); ok {
		if id := extractIdentifier(html, ats); id != "" {
			careersURL := pageURL
			if ats == models.ATSWorkday {
				if m := workdayBoardLink.FindString(html); m != "" {
					careersURL = m
				}
			}
			return &interfaces.DetectionResult{
				ATSType:    ats,
				Identifier: id,
				CareersURL: careersURL,
				Method:     MethodHTMLProbe,
			}, "", nil
		}
		if hint == "" {
			hint = ats
		}
	}

	// Job links on the page may redirect into a board.
	if docErr == nil {
		if result := s.followJobLinks(ctx, doc, pageURL); result != nil {
			return result, "", nil
		}
	}

	return nil, hint, nil
}

// probeDocument walks iframes, embed scripts, and links for board URLs.
func (s *Service) probeDocument(doc *goquery.Document, baseURL, html string) (*interfaces.DetectionResult, models.ATSType) {
	var (
		found *interfaces.DetectionResult
		hint  models.ATSType
	)

	doc.Find("iframe[src], script[src], a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		attr := "src"
		if goquery.NodeName(sel) == "a" {
			attr = "href"
		}
		raw, _ := sel.Attr(attr)
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, "javascript:") {
			return true
		}
		target := common.ResolveURL(baseURL, raw)
		if target == "" {
			return true
		}

		ats, id, ok := matchURL(target)
		if !ok {
			return true
		}
		if id == "" {
			id = extractIdentifier(html, ats)
		}
		if id == "" {
			if hint == "" {
				hint = ats
			}
			return true
		}

		// The probed page is the company's careers page; keep it as the
		// canonical URL. Workday is the exception: extraction needs the
		// tenant host and site path, so the board URL wins there.
		careersURL := baseURL
		if ats == models.ATSWorkday {
			careersURL = target
		}
		found = &interfaces.DetectionResult{
			ATSType:    ats,
			Identifier: id,
			CareersURL: careersURL,
			Method:     MethodHTMLProbe,
		}
		return false
	})

	return found, hint
}

// jobLinkSelectors pick out links worth following for a board redirect.
// Vendor hosts come first so they win the follow budget over generic
// job paths.
var jobLinkSelectors = []string{
	`a[href*="greenhouse"]`,
	`a[href*="lever"]`,
	`a[href*="ashby"]`,
	`a[href*="workable"]`,
	`a[href*="myworkdayjobs"]`,
	`a[href*="/job"]`,
	`a[href*="/position"]`,
	`a[href*="/opening"]`,
	`a[href*="/apply"]`,
}

// followJobLinks fetches a few job links off the page and checks where
// they land. Boards embedded behind client-side routing often only show
// themselves in the posting URLs.
func (s *Service) followJobLinks(ctx context.Context, doc *goquery.Document, baseURL string) *interfaces.DetectionResult {
	var links []string
	seen := make(map[string]struct{})
	for _, selector := range jobLinkSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
				return
			}
			target := common.ResolveURL(baseURL, href)
			if target == "" || target == baseURL {
				return
			}
			if _, ok := seen[target]; ok {
				return
			}
			seen[target] = struct{}{}
			links = append(links, target)
		})
	}

	followed := 0
	for _, link := range links {
		if followed >= maxJobLinkFollows {
			break
		}
		followed++

		res, err := s.fetcher.Fetch(ctx, &interfaces.FetchRequest{URL: link})
		if err != nil {
			continue
		}
		final := res.FinalURL
		if final == "" {
			final = link
		}
		ats, id, ok := matchURL(final)
		if !ok || id == "" {
			continue
		}
		careersURL := baseURL
		if ats == models.ATSWorkday {
			careersURL = final
		}
		return &interfaces.DetectionResult{
			ATSType:    ats,
			Identifier: id,
			CareersURL: careersURL,
			Method:     MethodHTMLProbe,
		}
	}
	return nil
}

// probeAPIs tries identifier guesses against vendor board APIs. A hint
// from the HTML probe narrows the search to that vendor.
func (s *Service) probeAPIs(ctx context.Context, company *models.Company, hint models.ATSType) *interfaces.DetectionResult {
	candidates := candidateIdentifiers(company)
	if len(candidates) == 0 {
		return nil
	}

	vendors := []models.ATSType{models.ATSGreenhouse, models.ATSLever, models.ATSAshby, models.ATSWorkable}
	switch {
	case hint == models.ATSWorkday:
		// Workday has no slug-addressable API to confirm against.
		return nil
	case hint.IsKnownVendor():
		vendors = []models.ATSType{hint}
	}

	for _, id := range candidates {
		for _, ats := range vendors {
			if s.confirmBoard(ctx, ats, id) {
				return &interfaces.DetectionResult{
					ATSType:    ats,
					Identifier: id,
					CareersURL: boardURL(ats, id),
					Method:     MethodAPIProbe,
				}
			}
		}
	}
	return nil
}

// confirmBoard checks whether a vendor's board API answers for an
// identifier with the expected shape. Greenhouse and ashby wrap
// postings in a jobs array, lever returns a bare array, workable's
// widget endpoint returns account metadata.
func (s *Service) confirmBoard(ctx context.Context, ats models.ATSType, identifier string) bool {
	url := probeURL(ats, identifier)
	if url == "" {
		return false
	}

	switch ats {
	case models.ATSLever:
		var postings []json.RawMessage
		return s.fetcher.FetchJSON(ctx, url, &postings) == nil
	case models.ATSWorkable:
		var body map[string]json.RawMessage
		if err := s.fetcher.FetchJSON(ctx, url, &body); err != nil {
			return false
		}
		_, hasName := body["name"]
		_, hasJobs := body["jobs"]
		return hasName || hasJobs
	default:
		var body map[string]json.RawMessage
		if err := s.fetcher.FetchJSON(ctx, url, &body); err != nil {
			return false
		}
		_, ok := body["jobs"]
		return ok
	}
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9\s_-]`)

// candidateIdentifiers derives board slug guesses from the company's
// domain and name, deny-list filtered and capped.
func candidateIdentifiers(company *models.Company) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(slug string) {
		slug = strings.ToLower(strings.TrimSpace(slug))
		if !validIdentifier(slug) {
			return
		}
		if _, ok := seen[slug]; ok {
			return
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}

	domain := company.Domain
	if domain == "" {
		domain = company.WebsiteURL
	}
	if d := common.NormalizeDomain(domain); d != "" {
		base, _, _ := strings.Cut(d, ".")
		add(base)
		add(strings.ReplaceAll(base, "-", ""))
		add(strings.ReplaceAll(base, "_", ""))
	}

	if company.Name != "" {
		clean := nonSlugChars.ReplaceAllString(strings.ToLower(company.Name), "")
		words := strings.Fields(clean)
		if len(words) > 0 {
			add(strings.Join(words, ""))
			add(strings.Join(words, "-"))
			add(words[0])
		}
	}

	if len(out) > maxProbeCandidates {
		out = out[:maxProbeCandidates]
	}
	return out
}
