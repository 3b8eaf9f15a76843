package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestJSONLDTopLevelPosting(t *testing.T) {
	doc := docFromHTML(t, `<html><head><script type="application/ld+json">
	{
		"@context": "https://schema.org",
		"@type": "JobPosting",
		"title": "Site Reliability Engineer",
		"url": "/careers/sre",
		"description": "<p>Keep the lights on.</p>",
		"datePosted": "2026-01-15",
		"employmentType": "FULL_TIME",
		"jobLocation": {
			"@type": "Place",
			"address": {"addressLocality": "Seattle", "addressRegion": "WA", "addressCountry": "US"}
		},
		"baseSalary": {
			"@type": "MonetaryAmount",
			"currency": "USD",
			"value": {"minValue": 150000, "maxValue": 190000}
		}
	}
	</script></head></html>`)

	jobs := jsonLDJobs(doc, "https://acme.example/careers")
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	job := jobs[0]
	if job.TitleRaw != "Site Reliability Engineer" {
		t.Errorf("title = %q", job.TitleRaw)
	}
	if job.SourceURL != "https://acme.example/careers/sre" {
		t.Errorf("url = %q", job.SourceURL)
	}
	if job.LocationRaw != "Seattle, WA, US" {
		t.Errorf("location = %q", job.LocationRaw)
	}
	if job.SalaryRaw != "USD 150000 - 190000" {
		t.Errorf("salary = %q", job.SalaryRaw)
	}
	if job.EmploymentRaw != "FULL_TIME" {
		t.Errorf("employment = %q", job.EmploymentRaw)
	}
	if job.PostedAtRaw != "2026-01-15" {
		t.Errorf("posted = %q", job.PostedAtRaw)
	}
}

func TestJSONLDNestedShapes(t *testing.T) {
	doc := docFromHTML(t, `<html><head>
	<script type="application/ld+json">
	{"@graph": [
		{"@type": "Organization", "name": "Acme"},
		{"@type": "JobPosting", "name": "Data Engineer", "url": "https://acme.example/jobs/data"}
	]}
	</script>
	<script type="application/ld+json">
	{
		"@type": "ItemList",
		"itemListElement": [
			{"@type": "ListItem", "item": {"@type": "JobPosting", "title": "ML Engineer", "url": "https://acme.example/jobs/ml"}}
		]
	}
	</script>
	<script type="application/ld+json">not even json</script>
	</head></html>`)

	jobs := jsonLDJobs(doc, "https://acme.example/careers")
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].TitleRaw != "Data Engineer" || jobs[1].TitleRaw != "ML Engineer" {
		t.Errorf("titles = %q, %q", jobs[0].TitleRaw, jobs[1].TitleRaw)
	}
}

func TestJSONLDFlexibleFields(t *testing.T) {
	doc := docFromHTML(t, `<html><head><script type="application/ld+json">
	[
		{"@type": "JobPosting", "title": "A", "jobLocation": "Remote, US", "employmentType": ["CONTRACT", "PART_TIME"]},
		{"@type": "JobPosting", "title": "B", "jobLocation": [{"@type": "Place", "name": "Paris Office"}],
		 "baseSalary": {"currency": "EUR", "value": {"minValue": "90000"}}},
		{"@type": "JobPosting", "description": "no title, skipped"}
	]
	</script></head></html>`)

	jobs := jsonLDJobs(doc, "https://acme.example/careers")
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].LocationRaw != "Remote, US" {
		t.Errorf("string location = %q", jobs[0].LocationRaw)
	}
	if jobs[0].EmploymentRaw != "CONTRACT" {
		t.Errorf("employment list = %q", jobs[0].EmploymentRaw)
	}
	if jobs[1].LocationRaw != "Paris Office" {
		t.Errorf("place name = %q", jobs[1].LocationRaw)
	}
	if jobs[1].SalaryRaw != "EUR 90000+" {
		t.Errorf("min-only salary = %q", jobs[1].SalaryRaw)
	}
	if jobs[0].SourceURL != "https://acme.example/careers" {
		t.Errorf("missing url should fall back to the page: %q", jobs[0].SourceURL)
	}
}
