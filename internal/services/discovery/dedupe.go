package discovery

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ternarybob/jobhound/internal/models"
)

// atsHostSuffixes are vendor-hosted board domains. A careers URL on one
// of these identifies the vendor, not the company, so it never serves as
// a dedupe key.
var atsHostSuffixes = []string{
	"greenhouse.io",
	"lever.co",
	"ashbyhq.com",
	"workable.com",
	"workday.com",
	"myworkdayjobs.com",
}

func isATSHost(domain string) bool {
	for _, suffix := range atsHostSuffixes {
		if domain == suffix || strings.HasSuffix(domain, "."+suffix) {
			return true
		}
	}
	return false
}

// candidateDomain derives the dedupe domain for a candidate: the explicit
// domain when the source supplied one, else the website host, else the
// careers host unless that host belongs to an ATS vendor.
func candidateDomain(c *models.CompanyCandidate) string {
	if d := normalizeDomain(c.Domain); d != "" {
		return d
	}
	if d := normalizeDomain(c.WebsiteURL); d != "" {
		return d
	}
	if d := normalizeDomain(c.CareersURL); d != "" && !isATSHost(d) {
		return d
	}
	return ""
}

// normalizeDomain lowercases and strips scheme, path, port, and a
// leading www. Accepts either a bare domain or a full URL. Returns ""
// for anything that does not look like a registrable domain.
func normalizeDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = u.Hostname()
	} else {
		if i := strings.IndexAny(s, "/?#"); i >= 0 {
			s = s[:i]
		}
		if i := strings.IndexByte(s, ':'); i >= 0 {
			s = s[:i]
		}
	}
	s = strings.TrimPrefix(s, "www.")
	if !strings.Contains(s, ".") {
		return ""
	}
	return s
}

var namePunct = regexp.MustCompile(`[^a-z0-9\s]+`)

// legalSuffixes are trailing company-form tokens dropped from the name
// key so "Acme" and "Acme Inc." collapse to one entry.
var legalSuffixes = map[string]bool{
	"inc":         true,
	"llc":         true,
	"ltd":         true,
	"limited":     true,
	"corp":        true,
	"corporation": true,
	"co":          true,
	"company":     true,
	"gmbh":        true,
}

// normalizeName builds the fallback dedupe key for candidates without a
// usable domain
func normalizeName(name string) string {
	s := namePunct.ReplaceAllString(strings.ToLower(name), " ")
	fields := strings.Fields(s)
	for len(fields) > 1 && legalSuffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}
