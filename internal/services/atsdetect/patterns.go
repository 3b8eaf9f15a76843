package atsdetect

import (
	"regexp"
	"strings"

	"github.com/ternarybob/jobhound/internal/models"
)

// invalidIdentifiers rejects generic tokens that URL patterns sometimes
// capture in place of a real board slug. Includes unexpanded template
// placeholders seen in embed snippets copied verbatim into pages.
var invalidIdentifiers = map[string]struct{}{
	"www": {}, "jobs": {}, "careers": {}, "job": {}, "about": {},
	"home": {}, "index": {}, "en": {}, "us": {}, "app": {}, "web": {},
	"site": {}, "page": {}, "boards": {},
	"wd1": {}, "wd2": {}, "wd3": {}, "wd4": {}, "wd5": {},
	"myworkdayjobs": {}, "greenhouse": {}, "lever": {}, "ashby": {},
	"workday": {}, "workable": {},
	"embed": {}, "job_board": {}, "js": {}, "css": {}, "api": {},
	"undefined": {}, "${boardtoken}": {}, "${ghslug}": {}, "${board_token}": {},
}

func validIdentifier(id string) bool {
	if id == "" {
		return false
	}
	_, denied := invalidIdentifiers[strings.ToLower(id)]
	return !denied
}

type urlPattern struct {
	ats models.ATSType
	re  *regexp.Regexp
}

// urlPatterns maps board URLs to vendors, checked in order with the
// first match winning. Each pattern's first group is the board slug,
// except workday where it is the organization from the subdomain.
var urlPatterns = []urlPattern{
	{models.ATSGreenhouse, regexp.MustCompile(`(?i)boards\.greenhouse\.io/([^/?#"'\s]+)`)},
	{models.ATSGreenhouse, regexp.MustCompile(`(?i)job-boards\.greenhouse\.io/([^/?#"'\s]+)`)},
	{models.ATSLever, regexp.MustCompile(`(?i)jobs\.lever\.co/([^/?#"'\s]+)`)},
	{models.ATSAshby, regexp.MustCompile(`(?i)jobs\.ashbyhq\.com/([^/?#"'\s]+)`)},
	{models.ATSWorkable, regexp.MustCompile(`(?i)apply\.workable\.com/([^/?#"'\s]+)`)},
	{models.ATSWorkday, regexp.MustCompile(`(?i)([a-z0-9-]+)\.wd\d+\.myworkdayjobs\.com`)},
}

// matchURL reports the vendor a URL belongs to. Identifiers that hit
// the deny-list are dropped but the vendor match stands, so callers can
// still treat the page as that vendor's board.
func matchURL(rawURL string) (models.ATSType, string, bool) {
	for _, p := range urlPatterns {
		m := p.re.FindStringSubmatch(rawURL)
		if m == nil {
			continue
		}
		id := m[1]
		if !validIdentifier(id) {
			id = ""
		}
		return p.ats, id, true
	}
	return "", "", false
}

// htmlMarkers are substrings whose presence in a page body indicates an
// embedded board. Markers name board hosts and widget classes, not bare
// vendor names.
var htmlMarkers = []struct {
	ats     models.ATSType
	markers []string
}{
	{models.ATSGreenhouse, []string{"boards.greenhouse.io", "boards-api.greenhouse.io", "grnhse_", "greenhouse-job-board"}},
	{models.ATSLever, []string{"jobs.lever.co", "lever-jobs"}},
	{models.ATSAshby, []string{"jobs.ashbyhq.com", "ashby-job-posting", "ashby_embed"}},
	{models.ATSWorkable, []string{"apply.workable.com", "whr-embed", "workable-job-widget"}},
	{models.ATSWorkday, []string{"myworkdayjobs.com", "wd-candidate"}},
}

// matchHTML scans a page body for embedded board markers.
func matchHTML(html string) (models.ATSType, bool) {
	lower := strings.ToLower(html)
	for _, hm := range htmlMarkers {
		for _, marker := range hm.markers {
			if strings.Contains(lower, marker) {
				return hm.ats, true
			}
		}
	}
	return "", false
}

// Identifier extraction patterns per vendor, most reliable first. The
// greenhouse set covers the board token's many spellings: the data
// attribute, the Grnhse settings object, embed URLs with a for=
// parameter, inline JS config keys, and board API URLs.
var greenhouseIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`data-board-token="([^"]+)"`),
	regexp.MustCompile(`Grnhse\.Settings\.boardToken\s*=\s*['"]([^'"]+)['"]`),
	regexp.MustCompile(`boards\.greenhouse\.io/embed/job_board[^"']*[?&]for=([^&"'#\s]+)`),
	regexp.MustCompile(`boardToken["']?\s*[:=]\s*["']([^"']+)["']`),
	regexp.MustCompile(`"board_token"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`board:\s*["']([^"']+)["']`),
	regexp.MustCompile(`boards-api\.greenhouse\.io/v1/boards/([^/"'?#\s]+)`),
}

// greenhouseBoardLink matches direct board URLs; scanned last and
// against every occurrence since early hits are often embed paths.
var greenhouseBoardLink = regexp.MustCompile(`boards\.greenhouse\.io/([a-zA-Z0-9_-]+)`)

var leverIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`data-lever-site="([^"]+)"`),
	regexp.MustCompile(`jobs\.lever\.co/([^/"'\s]+)/embed`),
	regexp.MustCompile(`jobs\.lever\.co/([^/"'\s]+)`),
}

var ashbyIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`jobs\.ashbyhq\.com/([^/"'\s]+)/embed`),
	regexp.MustCompile(`jobs\.ashbyhq\.com/([^/"'\s]+)`),
	regexp.MustCompile(`api\.ashbyhq\.com/posting-api/job-board/([^/"'\s]+)`),
}

var workableIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`apply\.workable\.com/([^/"'\s]+)`),
	regexp.MustCompile(`workable\.com/integrations/embed/([^/"'\s]+)`),
	regexp.MustCompile(`"subdomain"\s*:\s*"([^"]+)"`),
}

var workdayIDPattern = regexp.MustCompile(`(?i)([a-z0-9-]+)\.wd\d+\.myworkdayjobs\.com`)

// workdayBoardLink captures a full workday board URL out of page text;
// workday extraction needs the host and site path, not just the org.
var workdayBoardLink = regexp.MustCompile(`(?i)https?://[a-z0-9-]+\.wd\d+\.myworkdayjobs\.com[^\s"'<>]*`)

// extractIdentifier pulls the board slug out of a page body for a known
// vendor. Returns "" when nothing trustworthy is found.
func extractIdentifier(html string, ats models.ATSType) string {
	var patterns []*regexp.Regexp
	switch ats {
	case models.ATSGreenhouse:
		patterns = greenhouseIDPatterns
	case models.ATSLever:
		patterns = leverIDPatterns
	case models.ATSAshby:
		patterns = ashbyIDPatterns
	case models.ATSWorkable:
		patterns = workableIDPatterns
	case models.ATSWorkday:
		patterns = []*regexp.Regexp{workdayIDPattern}
	default:
		return ""
	}

	for _, re := range patterns {
		if m := re.FindStringSubmatch(html); m != nil && validIdentifier(m[1]) {
			return m[1]
		}
	}

	if ats == models.ATSGreenhouse {
		// Direct board links, skipping the embed path segments the
		// earlier patterns already rejected.
		for _, m := range greenhouseBoardLink.FindAllStringSubmatch(html, -1) {
			if len(m[1]) > 2 && validIdentifier(m[1]) {
				return m[1]
			}
		}
	}
	return ""
}

// boardURL is the public careers page for a board identifier. Workday
// has no identifier-only form; its board URL carries a per-tenant host
// and site path.
func boardURL(ats models.ATSType, identifier string) string {
	switch ats {
	case models.ATSGreenhouse:
		return "https://boards.greenhouse.io/" + identifier
	case models.ATSLever:
		return "https://jobs.lever.co/" + identifier
	case models.ATSAshby:
		return "https://jobs.ashbyhq.com/" + identifier
	case models.ATSWorkable:
		return "https://apply.workable.com/" + identifier
	}
	return ""
}

// probeURL is the vendor's unauthenticated board API for an identifier
// guess. Workday is absent: its API lives on the tenant's own wdN host,
// which cannot be derived from a slug.
func probeURL(ats models.ATSType, identifier string) string {
	switch ats {
	case models.ATSGreenhouse:
		return "https://boards-api.greenhouse.io/v1/boards/" + identifier + "/jobs"
	case models.ATSLever:
		return "https://api.lever.co/v0/postings/" + identifier + "?mode=json"
	case models.ATSAshby:
		return "https://api.ashbyhq.com/posting-api/job-board/" + identifier
	case models.ATSWorkable:
		return "https://apply.workable.com/api/v1/widget/accounts/" + identifier
	}
	return ""
}
