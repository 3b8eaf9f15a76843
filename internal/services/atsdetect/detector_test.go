package atsdetect

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

type stubPage struct {
	body     string
	finalURL string
}

// stubFetcher serves canned pages and JSON bodies keyed by URL and
// records every URL it was asked for.
type stubFetcher struct {
	pages      map[string]stubPage
	jsonBodies map[string]string
	fetched    []string
}

func (f *stubFetcher) Fetch(_ context.Context, req *interfaces.FetchRequest) (*interfaces.FetchResult, error) {
	f.fetched = append(f.fetched, req.URL)
	page, ok := f.pages[req.URL]
	if !ok {
		return nil, models.Errorf(models.ErrNotFound, "no page at %s", req.URL)
	}
	final := page.finalURL
	if final == "" {
		final = req.URL
	}
	return &interfaces.FetchResult{
		URL:        req.URL,
		FinalURL:   final,
		StatusCode: 200,
		Body:       []byte(page.body),
		FetchedAt:  time.Now(),
	}, nil
}

func (f *stubFetcher) FetchJSON(_ context.Context, url string, out interface{}) error {
	f.fetched = append(f.fetched, url)
	body, ok := f.jsonBodies[url]
	if !ok {
		return models.Errorf(models.ErrNotFound, "no board at %s", url)
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *stubFetcher) Close() error { return nil }

func (f *stubFetcher) sawURL(url string) bool {
	for _, u := range f.fetched {
		if u == url {
			return true
		}
	}
	return false
}

func newTestDetector(fetcher *stubFetcher) *Service {
	return NewService(fetcher, arbor.NewLogger())
}

func TestMatchURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		ats    models.ATSType
		id     string
		wantOK bool
	}{
		{"greenhouse board", "https://boards.greenhouse.io/acme", models.ATSGreenhouse, "acme", true},
		{"greenhouse new host", "https://job-boards.greenhouse.io/acme", models.ATSGreenhouse, "acme", true},
		{"greenhouse embed path denied", "https://boards.greenhouse.io/embed/job_board", models.ATSGreenhouse, "", true},
		{"lever posting", "https://jobs.lever.co/acme/f6a2-4b1c", models.ATSLever, "acme", true},
		{"ashby board", "https://jobs.ashbyhq.com/Acme%20Co", models.ATSAshby, "Acme%20Co", true},
		{"workable board", "https://apply.workable.com/acme-inc/", models.ATSWorkable, "acme-inc", true},
		{"workday tenant", "https://acme.wd5.myworkdayjobs.com/en-US/External", models.ATSWorkday, "acme", true},
		{"plain careers page", "https://example.com/careers", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ats, id, ok := matchURL(tt.url)
			if ok != tt.wantOK {
				t.Fatalf("matchURL(%q) ok = %v, want %v", tt.url, ok, tt.wantOK)
			}
			if ats != tt.ats {
				t.Errorf("ats = %q, want %q", ats, tt.ats)
			}
			if id != tt.id {
				t.Errorf("identifier = %q, want %q", id, tt.id)
			}
		})
	}
}

func TestExtractIdentifier(t *testing.T) {
	tests := []struct {
		name string
		html string
		ats  models.ATSType
		want string
	}{
		{
			"greenhouse data attribute",
			`<div id="grnhse_app" data-board-token="acmecorp"></div>`,
			models.ATSGreenhouse, "acmecorp",
		},
		{
			"greenhouse settings object",
			`<script>Grnhse.Settings.boardToken = 'acmecorp';</script>`,
			models.ATSGreenhouse, "acmecorp",
		},
		{
			"greenhouse embed for param",
			`<script src="https://boards.greenhouse.io/embed/job_board/js?for=acmecorp"></script>`,
			models.ATSGreenhouse, "acmecorp",
		},
		{
			"greenhouse board api url",
			`fetch("https://boards-api.greenhouse.io/v1/boards/acmecorp/jobs")`,
			models.ATSGreenhouse, "acmecorp",
		},
		{
			"greenhouse direct link after embed noise",
			`<link href="https://boards.greenhouse.io/js"><a href="https://boards.greenhouse.io/acmecorp">Roles</a>`,
			models.ATSGreenhouse, "acmecorp",
		},
		{
			"greenhouse placeholder rejected",
			`<script src="https://boards.greenhouse.io/embed/job_board/js?for=${boardToken}"></script>`,
			models.ATSGreenhouse, "",
		},
		{
			"lever data attribute",
			`<div data-lever-site="acme"></div>`,
			models.ATSLever, "acme",
		},
		{
			"lever embed script",
			`<script src="https://jobs.lever.co/acme/embed"></script>`,
			models.ATSLever, "acme",
		},
		{
			"ashby embed script",
			`<script src="https://jobs.ashbyhq.com/acme.co/embed"></script>`,
			models.ATSAshby, "acme.co",
		},
		{
			"ashby posting api",
			`const url = "https://api.ashbyhq.com/posting-api/job-board/acme";`,
			models.ATSAshby, "acme",
		},
		{
			"workable subdomain config",
			`<script>var config = {"subdomain": "acme"};</script>`,
			models.ATSWorkable, "acme",
		},
		{
			"workday tenant host",
			`<a href="https://acme.wd3.myworkdayjobs.com/en-US/ACME">Search jobs</a>`,
			models.ATSWorkday, "acme",
		},
		{
			"nothing recognizable",
			`<p>We are hiring, email us at hiring@acme.example</p>`,
			models.ATSGreenhouse, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractIdentifier(tt.html, tt.ats)
			if got != tt.want {
				t.Errorf("extractIdentifier() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectFromURLPattern(t *testing.T) {
	fetcher := &stubFetcher{}
	detector := newTestDetector(fetcher)

	company := &models.Company{
		Name:       "Acme",
		CareersURL: "https://boards.greenhouse.io/acme",
	}
	result, err := detector.Detect(t.Context(), company)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.ATSType != models.ATSGreenhouse || result.Identifier != "acme" {
		t.Errorf("got %s/%s, want greenhouse/acme", result.ATSType, result.Identifier)
	}
	if result.Method != MethodURLPattern {
		t.Errorf("method = %q, want %q", result.Method, MethodURLPattern)
	}
	if result.CareersURL != company.CareersURL {
		t.Errorf("careers URL = %q, want input preserved", result.CareersURL)
	}
	if len(fetcher.fetched) != 0 {
		t.Errorf("URL pattern match should not fetch, got %v", fetcher.fetched)
	}
}

func TestDetectFromEmbeddedIframe(t *testing.T) {
	careersURL := "https://acme.example/careers"
	fetcher := &stubFetcher{
		pages: map[string]stubPage{
			careersURL: {body: `<html><body>
				<h1>Work with us</h1>
				<iframe src="https://boards.greenhouse.io/embed/job_board?for=acmecorp"></iframe>
			</body></html>`},
		},
	}
	detector := newTestDetector(fetcher)

	result, err := detector.Detect(t.Context(), &models.Company{Name: "Acme", CareersURL: careersURL})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.ATSType != models.ATSGreenhouse || result.Identifier != "acmecorp" {
		t.Errorf("got %s/%s, want greenhouse/acmecorp", result.ATSType, result.Identifier)
	}
	if result.Method != MethodHTMLProbe {
		t.Errorf("method = %q, want %q", result.Method, MethodHTMLProbe)
	}
	if result.CareersURL != careersURL {
		t.Errorf("careers URL = %q, want the probed page", result.CareersURL)
	}
}

func TestDetectFromEmbedScript(t *testing.T) {
	careersURL := "https://acme.example/careers"
	fetcher := &stubFetcher{
		pages: map[string]stubPage{
			careersURL: {body: `<html><body>
				<div id="openings"></div>
				<script src="https://jobs.ashbyhq.com/acme/embed"></script>
			</body></html>`},
		},
	}
	detector := newTestDetector(fetcher)

	result, err := detector.Detect(t.Context(), &models.Company{Name: "Acme", CareersURL: careersURL})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.ATSType != models.ATSAshby || result.Identifier != "acme" {
		t.Errorf("got %s/%s, want ashby/acme", result.ATSType, result.Identifier)
	}
}

func TestDetectFromRedirect(t *testing.T) {
	careersURL := "https://acme.example/careers"
	fetcher := &stubFetcher{
		pages: map[string]stubPage{
			careersURL: {
				body:     `<html><body>Openings</body></html>`,
				finalURL: "https://jobs.lever.co/acme",
			},
		},
	}
	detector := newTestDetector(fetcher)

	result, err := detector.Detect(t.Context(), &models.Company{Name: "Acme", CareersURL: careersURL})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.ATSType != models.ATSLever || result.Identifier != "acme" {
		t.Errorf("got %s/%s, want lever/acme", result.ATSType, result.Identifier)
	}
	if result.CareersURL != "https://jobs.lever.co/acme" {
		t.Errorf("careers URL = %q, want the redirect target", result.CareersURL)
	}
}

func TestDetectWorkdayKeepsBoardURL(t *testing.T) {
	careersURL := "https://acme.example/careers"
	tenantURL := "https://acme.wd1.myworkdayjobs.com/en-US/ACME"
	fetcher := &stubFetcher{
		pages: map[string]stubPage{
			careersURL: {body: `<html><body><a href="` + tenantURL + `">Open roles</a></body></html>`},
		},
	}
	detector := newTestDetector(fetcher)

	result, err := detector.Detect(t.Context(), &models.Company{Name: "Acme", CareersURL: careersURL})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.ATSType != models.ATSWorkday || result.Identifier != "acme" {
		t.Errorf("got %s/%s, want workday/acme", result.ATSType, result.Identifier)
	}
	if result.CareersURL != tenantURL {
		t.Errorf("careers URL = %q, want the tenant board URL %q", result.CareersURL, tenantURL)
	}
}

func TestDetectFollowsJobLinks(t *testing.T) {
	careersURL := "https://acme.example/careers"
	jobURL := "https://acme.example/jobs/123"
	fetcher := &stubFetcher{
		pages: map[string]stubPage{
			careersURL: {body: `<html><body><a href="` + jobURL + `">Engineer</a></body></html>`},
			jobURL: {
				body:     `<html><body>Engineer posting</body></html>`,
				finalURL: "https://jobs.lever.co/acmeco/f6a2-4b1c",
			},
		},
	}
	detector := newTestDetector(fetcher)

	result, err := detector.Detect(t.Context(), &models.Company{Name: "Acme", CareersURL: careersURL})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.ATSType != models.ATSLever || result.Identifier != "acmeco" {
		t.Errorf("got %s/%s, want lever/acmeco", result.ATSType, result.Identifier)
	}
	if result.CareersURL != careersURL {
		t.Errorf("careers URL = %q, want the careers page", result.CareersURL)
	}
}

func TestDetectViaAPIProbe(t *testing.T) {
	fetcher := &stubFetcher{
		pages: map[string]stubPage{
			"https://acme.dev/careers": {body: `<html><body><p>Join the team, mail us.</p></body></html>`},
		},
		jsonBodies: map[string]string{
			"https://boards-api.greenhouse.io/v1/boards/acme/jobs": `{"jobs": []}`,
		},
	}
	detector := newTestDetector(fetcher)

	result, err := detector.Detect(t.Context(), &models.Company{Name: "Acme", Domain: "acme.dev"})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.ATSType != models.ATSGreenhouse || result.Identifier != "acme" {
		t.Errorf("got %s/%s, want greenhouse/acme", result.ATSType, result.Identifier)
	}
	if result.Method != MethodAPIProbe {
		t.Errorf("method = %q, want %q", result.Method, MethodAPIProbe)
	}
	if result.CareersURL != "https://boards.greenhouse.io/acme" {
		t.Errorf("careers URL = %q, want the board page", result.CareersURL)
	}
}

func TestDetectVendorHintNarrowsProbing(t *testing.T) {
	// Lever markers without an extractable identifier: probing should
	// try only lever endpoints.
	fetcher := &stubFetcher{
		pages: map[string]stubPage{
			"https://acme.dev/careers": {body: `<html><body>
				<script>var base = "https://jobs.lever.co/" + slug;</script>
			</body></html>`},
		},
		jsonBodies: map[string]string{
			"https://api.lever.co/v0/postings/acme?mode=json": `[]`,
		},
	}
	detector := newTestDetector(fetcher)

	result, err := detector.Detect(t.Context(), &models.Company{Name: "Acme", Domain: "acme.dev"})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.ATSType != models.ATSLever || result.Identifier != "acme" {
		t.Errorf("got %s/%s, want lever/acme", result.ATSType, result.Identifier)
	}
	if fetcher.sawURL("https://boards-api.greenhouse.io/v1/boards/acme/jobs") {
		t.Error("probed greenhouse despite a lever hint")
	}
}

func TestDetectCustomFallback(t *testing.T) {
	careersURL := "https://plainco.example/careers"
	fetcher := &stubFetcher{
		pages: map[string]stubPage{
			careersURL: {body: `<html><body><h1>Roles</h1><p>Apply by email.</p></body></html>`},
		},
	}
	detector := newTestDetector(fetcher)

	result, err := detector.Detect(t.Context(), &models.Company{Name: "Plainco", CareersURL: careersURL})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if result.ATSType != models.ATSCustom {
		t.Errorf("ats = %q, want custom", result.ATSType)
	}
	if result.Method != MethodFallback {
		t.Errorf("method = %q, want %q", result.Method, MethodFallback)
	}
	if result.CareersURL != careersURL {
		t.Errorf("careers URL = %q, want input preserved", result.CareersURL)
	}
}

func TestDetectUnreachableIsUnknown(t *testing.T) {
	fetcher := &stubFetcher{}
	detector := newTestDetector(fetcher)

	result, err := detector.Detect(t.Context(), &models.Company{
		Name:       "Gone",
		CareersURL: "https://gone.example/careers",
	})
	if err == nil {
		t.Fatal("Detect() expected an error for an unreachable company")
	}
	if result == nil || result.ATSType != models.ATSUnknown {
		t.Errorf("result = %+v, want unknown ats type", result)
	}
}

func TestDetectNeedsURL(t *testing.T) {
	detector := newTestDetector(&stubFetcher{})

	_, err := detector.Detect(t.Context(), &models.Company{Name: "Nowhere"})
	if models.KindOf(err) != models.ErrInvalidArgument {
		t.Errorf("error kind = %v, want invalid_argument", models.KindOf(err))
	}
}

func TestRediscoverSkipsStaleBoardURL(t *testing.T) {
	staleBoard := "https://boards.greenhouse.io/oldslug"
	fetcher := &stubFetcher{
		pages: map[string]stubPage{
			"https://acme.dev/careers": {body: `<html><body>
				<script src="https://boards.greenhouse.io/embed/job_board/js?for=newslug"></script>
			</body></html>`},
		},
	}
	detector := newTestDetector(fetcher)

	company := &models.Company{
		Name:          "Acme",
		Domain:        "acme.dev",
		CareersURL:    staleBoard,
		ATSType:       models.ATSGreenhouse,
		ATSIdentifier: "oldslug",
	}
	result, err := detector.Rediscover(t.Context(), company)
	if err != nil {
		t.Fatalf("Rediscover() error = %v", err)
	}
	if result.ATSType != models.ATSGreenhouse || result.Identifier != "newslug" {
		t.Errorf("got %s/%s, want greenhouse/newslug", result.ATSType, result.Identifier)
	}
	if fetcher.sawURL(staleBoard) {
		t.Error("rediscovery fetched the stale board URL")
	}
	if company.ATSIdentifier != "oldslug" {
		t.Error("rediscovery must not mutate the company record")
	}
}

func TestCandidateIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		company models.Company
		want    []string
	}{
		{
			"domain and name variants",
			models.Company{Name: "Acme Corp", Domain: "acme-corp.io"},
			[]string{"acme-corp", "acmecorp", "acme"},
		},
		{
			"website url when domain missing",
			models.Company{Name: "Acme", WebsiteURL: "https://www.acme.dev/about"},
			[]string{"acme"},
		},
		{
			"generic tokens rejected",
			models.Company{Name: "Jobs", Domain: "www.jobs.com"},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := candidateIdentifiers(&tt.company)
			if len(got) != len(tt.want) {
				t.Fatalf("candidates = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("candidate[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
