package discovery

import (
	"testing"

	"github.com/ternarybob/jobhound/internal/models"
)

func TestCandidateDomain(t *testing.T) {
	tests := []struct {
		name string
		cand models.CompanyCandidate
		want string
	}{
		{
			"explicit domain",
			models.CompanyCandidate{Domain: "acme.com"},
			"acme.com",
		},
		{
			"domain with www and path",
			models.CompanyCandidate{Domain: "www.Acme.com/about"},
			"acme.com",
		},
		{
			"derived from website",
			models.CompanyCandidate{WebsiteURL: "https://www.acme.io"},
			"acme.io",
		},
		{
			"website beats careers",
			models.CompanyCandidate{WebsiteURL: "https://acme.io", CareersURL: "https://acme.com/careers"},
			"acme.io",
		},
		{
			"derived from careers page",
			models.CompanyCandidate{CareersURL: "https://acme.dev/careers"},
			"acme.dev",
		},
		{
			"hosted board is not a domain",
			models.CompanyCandidate{CareersURL: "https://boards.greenhouse.io/acme"},
			"",
		},
		{
			"workday board is not a domain",
			models.CompanyCandidate{CareersURL: "https://acme.wd1.myworkdayjobs.com/External"},
			"",
		},
		{
			"no urls at all",
			models.CompanyCandidate{Name: "Acme"},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := candidateDomain(&tt.cand); got != tt.want {
				t.Errorf("candidateDomain() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"acme.com", "acme.com"},
		{"WWW.ACME.COM", "acme.com"},
		{"https://www.acme.com/jobs?ref=x", "acme.com"},
		{"acme.com:8080/path", "acme.com"},
		{"  acme.co.uk  ", "acme.co.uk"},
		{"localhost", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeDomain(tt.in); got != tt.want {
			t.Errorf("normalizeDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme", "acme"},
		{"Acme, Inc.", "acme"},
		{"Acme Labs Ltd", "acme labs"},
		{"Wave Mobile Money", "wave mobile money"},
		{"Siemens GmbH", "siemens"},
		{"Co", "co"},
		{"  Spaced   Out  ", "spaced out"},
	}

	for _, tt := range tests {
		if got := normalizeName(tt.in); got != tt.want {
			t.Errorf("normalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsATSHost(t *testing.T) {
	tests := []struct {
		domain string
		want   bool
	}{
		{"boards.greenhouse.io", true},
		{"jobs.lever.co", true},
		{"acme.wd1.myworkdayjobs.com", true},
		{"greenhouse.io", true},
		{"acme.com", false},
		{"lever.community", false},
	}

	for _, tt := range tests {
		if got := isATSHost(tt.domain); got != tt.want {
			t.Errorf("isATSHost(%q) = %v, want %v", tt.domain, got, tt.want)
		}
	}
}
