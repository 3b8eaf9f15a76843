package extract

import (
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/models"
)

func newTestEnricher(fetcher *stubFetcher) *Enricher {
	return NewEnricher(fetcher, arbor.NewLogger())
}

func TestEnrichGreenhouse(t *testing.T) {
	fetcher := &stubFetcher{jsonBodies: map[string]string{
		"https://boards-api.greenhouse.io/v1/boards/acme/jobs/4012": `{
			"content": "&lt;p&gt;You will own the billing stack.&lt;/p&gt;",
			"updated_at": "2026-06-01T00:00:00Z"
		}`,
	}}
	raw := &models.RawJob{SourceURL: "https://acme.example/careers/4012?gh_jid=4012"}
	company := testCompany(models.ATSGreenhouse, "acme")

	if err := newTestEnricher(fetcher).Enrich(t.Context(), raw, company); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if raw.DescriptionRaw != "<p>You will own the billing stack.</p>" {
		t.Errorf("description = %q", raw.DescriptionRaw)
	}
	if raw.PostedAtRaw != "2026-06-01T00:00:00Z" {
		t.Errorf("posted at = %q", raw.PostedAtRaw)
	}
}

func TestEnrichGreenhouseJobIDForms(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"gh_jid param", "https://acme.example/open?gh_jid=77", "77"},
		{"jobs path", "https://boards.greenhouse.io/acme/jobs/88", "88"},
		{"careers path", "https://acme.example/careers/99", "99"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{jsonBodies: map[string]string{
				"https://boards-api.greenhouse.io/v1/boards/acme/jobs/" + tt.want: `{"content": "enough text here"}`,
			}}
			raw := &models.RawJob{SourceURL: tt.url}
			if err := newTestEnricher(fetcher).Enrich(t.Context(), raw, testCompany(models.ATSGreenhouse, "acme")); err != nil {
				t.Fatalf("Enrich: %v", err)
			}
			if raw.DescriptionRaw == "" {
				t.Error("description not set")
			}
		})
	}
}

func TestEnrichGreenhouseNoJobID(t *testing.T) {
	raw := &models.RawJob{SourceURL: "https://acme.example/careers/senior-engineer"}
	err := newTestEnricher(&stubFetcher{}).Enrich(t.Context(), raw, testCompany(models.ATSGreenhouse, "acme"))
	if err == nil {
		t.Fatal("want error for url without a numeric job id")
	}
}

func TestEnrichLever(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://jobs.lever.co/acme/ab12": {body: `<html><body>
			<div class="section posting-description">
				<p>We are hiring a staff engineer to lead the core platform team and grow our systems.</p>
			</div>
			<script>{"datePosted": "2026-05-01"}</script>
		</body></html>`},
	}}
	raw := &models.RawJob{SourceURL: "https://jobs.lever.co/acme/ab12"}

	if err := newTestEnricher(fetcher).Enrich(t.Context(), raw, testCompany(models.ATSLever, "acme")); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if !strings.Contains(raw.DescriptionRaw, "staff engineer") {
		t.Errorf("description = %q", raw.DescriptionRaw)
	}
	if raw.PostedAtRaw != "2026-05-01" {
		t.Errorf("posted at = %q", raw.PostedAtRaw)
	}
}

func TestEnrichAshbyMatchesPosting(t *testing.T) {
	fetcher := &stubFetcher{jsonBodies: map[string]string{
		"https://api.ashbyhq.com/posting-api/job-board/acme": `{
			"jobs": [
				{"id": "7f0a", "title": "Designer", "jobUrl": "https://jobs.ashbyhq.com/acme/7f0a",
				 "descriptionHtml": "<p>Design things.</p>", "publishedAt": "2026-02-02T00:00:00Z"},
				{"id": "8b1c", "title": "Engineer", "jobUrl": "https://jobs.ashbyhq.com/acme/8b1c",
				 "descriptionHtml": "<p>Build things.</p>"}
			]
		}`,
	}}
	raw := &models.RawJob{SourceURL: "https://jobs.ashbyhq.com/acme/8b1c"}

	if err := newTestEnricher(fetcher).Enrich(t.Context(), raw, testCompany(models.ATSAshby, "acme")); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if raw.DescriptionRaw != "<p>Build things.</p>" {
		t.Errorf("description = %q", raw.DescriptionRaw)
	}
}

func TestEnrichAshbyMissingPosting(t *testing.T) {
	fetcher := &stubFetcher{jsonBodies: map[string]string{
		"https://api.ashbyhq.com/posting-api/job-board/acme": `{"jobs": []}`,
	}}
	raw := &models.RawJob{SourceURL: "https://jobs.ashbyhq.com/acme/gone"}

	err := newTestEnricher(fetcher).Enrich(t.Context(), raw, testCompany(models.ATSAshby, "acme"))
	if !models.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestEnrichWorkableWindowJob(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://apply.workable.com/acme/j/AE1/": {body: `<html><body>
			<script>window.job = {"description": "<p>Sell the product to enterprise accounts.</p>"};</script>
		</body></html>`},
	}}
	raw := &models.RawJob{SourceURL: "https://apply.workable.com/acme/j/AE1/"}

	if err := newTestEnricher(fetcher).Enrich(t.Context(), raw, testCompany(models.ATSWorkable, "acme")); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if !strings.Contains(raw.DescriptionRaw, "enterprise accounts") {
		t.Errorf("description = %q", raw.DescriptionRaw)
	}
}

func TestEnrichWorkday(t *testing.T) {
	fetcher := &stubFetcher{jsonBodies: map[string]string{
		"https://acme.wd1.myworkdayjobs.com/wday/cxs/acme/External/job/NYC/Engineer-I_R100": `{
			"jobPostingInfo": {"jobDescription": "<p>Run the trading platform.</p>"}
		}`,
	}}
	company := testCompany(models.ATSWorkday, "acme")
	company.CareersURL = "https://acme.wd1.myworkdayjobs.com/en-US/External"
	raw := &models.RawJob{SourceURL: "https://acme.wd1.myworkdayjobs.com/en-US/External/job/NYC/Engineer-I_R100"}

	if err := newTestEnricher(fetcher).Enrich(t.Context(), raw, company); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if raw.DescriptionRaw != "<p>Run the trading platform.</p>" {
		t.Errorf("description = %q", raw.DescriptionRaw)
	}
}

func TestEnrichGenericFindsDescriptionBlock(t *testing.T) {
	longText := strings.Repeat("Responsibilities include building and operating services. ", 4)
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://acme.example/jobs/1": {body: `<html><body>
			<div class="sidebar description">short</div>
			<div class="role-description-full description">` + longText + `</div>
			<script>{"datePosted": "2026-04-04"}</script>
		</body></html>`},
	}}
	raw := &models.RawJob{SourceURL: "https://acme.example/jobs/1"}

	if err := newTestEnricher(fetcher).Enrich(t.Context(), raw, testCompany(models.ATSCustom, "")); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if !strings.Contains(raw.DescriptionRaw, "Responsibilities") {
		t.Errorf("description = %q", raw.DescriptionRaw)
	}
	if raw.PostedAtRaw != "2026-04-04" {
		t.Errorf("posted at = %q", raw.PostedAtRaw)
	}
}

func TestEnrichGenericPrefersJSONLD(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://acme.example/jobs/2": {body: `<html><head>
			<script type="application/ld+json">
			{"@type": "JobPosting", "title": "Engineer", "description": "<p>From structured data.</p>",
			 "datePosted": "2026-03-03"}
			</script>
		</head><body><article>Also some article text that runs long enough to pass the length check easily.</article></body></html>`},
	}}
	raw := &models.RawJob{SourceURL: "https://acme.example/jobs/2"}

	if err := newTestEnricher(fetcher).Enrich(t.Context(), raw, testCompany(models.ATSCustom, "")); err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if raw.DescriptionRaw != "<p>From structured data.</p>" {
		t.Errorf("description = %q", raw.DescriptionRaw)
	}
}

func TestEnrichGenericNothingFound(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://acme.example/jobs/3": {body: `<html><body><p>Apply now</p></body></html>`},
	}}
	raw := &models.RawJob{SourceURL: "https://acme.example/jobs/3"}

	err := newTestEnricher(fetcher).Enrich(t.Context(), raw, testCompany(models.ATSCustom, ""))
	if err == nil {
		t.Fatal("want error when no description block exists")
	}
	if raw.DescriptionRaw != "" {
		t.Errorf("description = %q, want empty", raw.DescriptionRaw)
	}
}
