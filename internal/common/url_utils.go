package common

import (
	"net/url"
	"strings"
)

// multiPartTLDs lists public suffixes where the registrable domain spans
// three labels (example.co.uk) rather than two (example.com).
var multiPartTLDs = map[string]bool{
	"co.uk":  true,
	"org.uk": true,
	"ac.uk":  true,
	"gov.uk": true,
	"com.au": true,
	"net.au": true,
	"org.au": true,
	"co.nz":  true,
	"co.jp":  true,
	"co.in":  true,
	"com.br": true,
	"com.mx": true,
	"com.sg": true,
}

// RegistrableHost reduces a URL to its registrable domain, used as the
// rate-limit bucket key. "boards.greenhouse.io/acme" -> "greenhouse.io",
// "jobs.example.co.uk" -> "example.co.uk". Invalid URLs return "".
func RegistrableHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		// Bare domain without scheme
		host = strings.ToLower(strings.SplitN(rawURL, "/", 2)[0])
	}
	return registrableDomain(host)
}

// NormalizeDomain canonicalizes a company domain for deduplication:
// lowercased, scheme and path stripped, leading www removed.
func NormalizeDomain(domain string) string {
	d := strings.TrimSpace(strings.ToLower(domain))
	if d == "" {
		return ""
	}
	if strings.Contains(d, "://") {
		if parsed, err := url.Parse(d); err == nil && parsed.Hostname() != "" {
			d = parsed.Hostname()
		}
	}
	d = strings.TrimPrefix(d, "www.")
	if idx := strings.IndexAny(d, "/?#"); idx >= 0 {
		d = d[:idx]
	}
	return strings.TrimSuffix(d, ".")
}

// NormalizeName canonicalizes a company name for the dedupe fallback key:
// lowercased with legal suffixes and non-alphanumerics removed.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, suffix := range []string{" inc.", " inc", " llc", " ltd.", " ltd", " gmbh", " corp.", " corp", " co.", " pty", " plc"} {
		n = strings.TrimSuffix(n, suffix)
	}
	var b strings.Builder
	for _, r := range n {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ResolveURL resolves a possibly relative href against a base URL.
// Returns "" when either side fails to parse.
func ResolveURL(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

func registrableDomain(host string) string {
	host = strings.TrimSuffix(host, ".")
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	lastTwo := strings.Join(parts[len(parts)-2:], ".")
	if multiPartTLDs[lastTwo] && len(parts) >= 3 {
		return strings.Join(parts[len(parts)-3:], ".")
	}
	return lastTwo
}
