package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// fakeLLM replays canned responses; the last one repeats when calls
// outnumber responses.
type fakeLLM struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeLLM) Complete(ctx context.Context, req interfaces.CompletionRequest) (string, error) {
	b, err := f.CompleteJSON(ctx, req)
	return string(b), err
}

func (f *fakeLLM) CompleteJSON(_ context.Context, req interfaces.CompletionRequest) ([]byte, error) {
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, models.Errorf(models.ErrInternal, "no canned response")
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return []byte(f.responses[idx]), nil
}

func (f *fakeLLM) ModelName() string { return "fake-model" }

func (f *fakeLLM) HealthCheck(_ context.Context) error { return nil }

func customCompany() *models.Company {
	c := testCompany(models.ATSCustom, "")
	c.CareersURL = "https://acme.example/careers"
	return c
}

func TestCustomExtractorUsesJSONLD(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://acme.example/careers": {body: `<html><head>
			<script type="application/ld+json">
			{"@type": "JobPosting", "title": "Field Engineer", "url": "/careers/field-engineer",
			 "jobLocation": {"address": {"addressLocality": "Denver", "addressRegion": "CO"}}}
			</script>
		</head><body><a href="/careers/field-engineer">Field Engineer</a></body></html>`},
	}}
	llm := &fakeLLM{}
	ex := NewCustomExtractor(fetcher, llm, 0, arbor.NewLogger())

	jobs, err := ex.ListJobs(t.Context(), customCompany())
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	if jobs[0].SourceURL != "https://acme.example/careers/field-engineer" {
		t.Errorf("source url = %q", jobs[0].SourceURL)
	}
	if jobs[0].LocationRaw != "Denver, CO" {
		t.Errorf("location = %q", jobs[0].LocationRaw)
	}
	if llm.calls != 0 {
		t.Errorf("llm called %d times for a json-ld page", llm.calls)
	}
}

func TestCustomExtractorAsksLLM(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://acme.example/careers": {body: `<html><body>
			<h1>Join Acme</h1>
			<ul>
				<li><a href="/jobs/backend-1">Backend Engineer</a></li>
				<li><a href="/jobs/pm-2">Product Manager</a></li>
			</ul>
		</body></html>`},
	}}
	llm := &fakeLLM{responses: []string{`{
		"jobs": [
			{"title": "Backend Engineer", "location": "Remote", "url_path": "/jobs/backend-1"},
			{"title": "Product Manager", "department": "Product", "url_path": "/jobs/pm-2"}
		]
	}`}}
	ex := NewCustomExtractor(fetcher, llm, 0, arbor.NewLogger())

	jobs, err := ex.ListJobs(t.Context(), customCompany())
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].SourceURL != "https://acme.example/jobs/backend-1" {
		t.Errorf("relative url_path not resolved: %q", jobs[0].SourceURL)
	}
	if jobs[1].DepartmentRaw != "Product" {
		t.Errorf("department = %q", jobs[1].DepartmentRaw)
	}
	if llm.calls != 1 {
		t.Errorf("llm calls = %d, want 1", llm.calls)
	}
	if !strings.Contains(llm.prompts[0], "Backend Engineer") {
		t.Errorf("prompt missing page content: %q", llm.prompts[0])
	}
	// Page links look like postings, so no rendered refetch
	for _, req := range fetcher.requests {
		if req.Render {
			t.Error("rendered fetch for a page with job links")
		}
	}
}

func TestCustomExtractorRendersWhenNoJobLinks(t *testing.T) {
	shell := `<html><body><div id="root">Loading openings</div></body></html>`
	rendered := `<html><head>
		<script type="application/ld+json">
		{"@graph": [{"@type": "JobPosting", "name": "Platform Engineer", "url": "https://acme.example/jobs/1"}]}
		</script>
	</head><body><a href="https://acme.example/jobs/1">Platform Engineer</a></body></html>`

	fetcher := &stubFetcher{pages: map[string]stubPage{}}
	// Same URL serves the SPA shell plain and the full page rendered;
	// the stub cannot key on Render, so swap the body between calls.
	fetcher.pages["https://acme.example/careers"] = stubPage{body: shell}
	llm := &fakeLLM{responses: []string{`{"jobs": []}`}}
	ex := NewCustomExtractor(fetcher, llm, 0, arbor.NewLogger())

	// First pass proves the rendered request happens
	if _, err := ex.ListJobs(t.Context(), customCompany()); err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	sawRender := false
	for _, req := range fetcher.requests {
		if req.Render {
			sawRender = true
		}
	}
	if !sawRender {
		t.Fatal("no rendered refetch for a page without job links")
	}

	// Second pass with the rendered body in place finds the postings
	fetcher.pages["https://acme.example/careers"] = stubPage{body: rendered}
	fetcher.requests = nil
	jobs, err := ex.ListJobs(t.Context(), customCompany())
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].TitleRaw != "Platform Engineer" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestCustomExtractorRetriesOffSchemaResponse(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://acme.example/careers": {body: `<html><body>
			<a href="/jobs/1">Engineer</a>
		</body></html>`},
	}}
	llm := &fakeLLM{responses: []string{
		`{"jobs": [{"title": ""}]}`,
		`{"jobs": [{"title": "Engineer", "url_path": "/jobs/1"}]}`,
	}}
	ex := NewCustomExtractor(fetcher, llm, 0, arbor.NewLogger())

	jobs, err := ex.ListJobs(t.Context(), customCompany())
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if llm.calls != 2 {
		t.Errorf("llm calls = %d, want 2", llm.calls)
	}
	if len(jobs) != 1 || jobs[0].TitleRaw != "Engineer" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestCustomExtractorGivesUpAfterSecondFailure(t *testing.T) {
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://acme.example/careers": {body: `<html><body>
			<a href="/jobs/1">Engineer</a>
		</body></html>`},
	}}
	llm := &fakeLLM{responses: []string{`not json at all`}}
	ex := NewCustomExtractor(fetcher, llm, 0, arbor.NewLogger())

	jobs, err := ex.ListJobs(t.Context(), customCompany())
	if err != nil {
		t.Fatalf("second failure should not error the company: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("jobs = %+v, want none", jobs)
	}
	if llm.calls != 2 {
		t.Errorf("llm calls = %d, want 2", llm.calls)
	}
}

func TestCustomExtractorTruncatesExcerpt(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	fetcher := &stubFetcher{pages: map[string]stubPage{
		"https://acme.example/careers": {body: `<html><body>
			<a href="/jobs/1">Engineer</a>
			<p>` + long + `</p>
		</body></html>`},
	}}
	llm := &fakeLLM{responses: []string{`{"jobs": []}`}}
	ex := NewCustomExtractor(fetcher, llm, 500, arbor.NewLogger())

	if _, err := ex.ListJobs(t.Context(), customCompany()); err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	prompt := llm.prompts[0]
	if !strings.Contains(prompt, "[truncated]") {
		t.Error("oversized page not truncated")
	}
	if len(prompt) > 700 {
		t.Errorf("prompt length %d exceeds excerpt budget", len(prompt))
	}
}

func TestCustomExtractorNeedsURL(t *testing.T) {
	company := testCompany(models.ATSCustom, "")
	company.CareersURL = ""
	company.WebsiteURL = ""
	ex := NewCustomExtractor(&stubFetcher{}, &fakeLLM{}, 0, arbor.NewLogger())

	_, err := ex.ListJobs(t.Context(), company)
	if models.KindOf(err) != models.ErrInvalidArgument {
		t.Fatalf("err = %v, want invalid argument", err)
	}
}

func TestRegistryRouting(t *testing.T) {
	registry := NewRegistry(&stubFetcher{}, &fakeLLM{}, 0, arbor.NewLogger())

	ex, err := registry.For(models.ATSGreenhouse)
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	if ex.Type() != models.ATSGreenhouse {
		t.Errorf("greenhouse routed to %s", ex.Type())
	}

	for _, atsType := range []models.ATSType{models.ATSCustom, models.ATSUnknown, models.ATSType("")} {
		ex, err := registry.For(atsType)
		if err != nil {
			t.Fatalf("For(%q): %v", atsType, err)
		}
		if ex.Type() != models.ATSCustom {
			t.Errorf("%q routed to %s, want custom fallback", atsType, ex.Type())
		}
	}
}
