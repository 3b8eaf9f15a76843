package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
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

// stubFetcher serves canned pages and JSON bodies keyed by URL. POST
// responses queue per URL so paginated APIs can serve different pages
// to repeated requests.
type stubFetcher struct {
	pages      map[string]stubPage
	jsonBodies map[string]string
	postBodies map[string][]string
	requests   []*interfaces.FetchRequest
	fetched    []string
}

func (f *stubFetcher) Fetch(_ context.Context, req *interfaces.FetchRequest) (*interfaces.FetchResult, error) {
	f.fetched = append(f.fetched, req.URL)
	copied := *req
	f.requests = append(f.requests, &copied)

	if req.Method == http.MethodPost {
		queue := f.postBodies[req.URL]
		if len(queue) == 0 {
			return nil, models.Errorf(models.ErrNotFound, "no post response for %s", req.URL)
		}
		body := queue[0]
		f.postBodies[req.URL] = queue[1:]
		return &interfaces.FetchResult{
			URL:        req.URL,
			FinalURL:   req.URL,
			StatusCode: 200,
			Body:       []byte(body),
			FetchedAt:  time.Now(),
		}, nil
	}

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
		Rendered:   req.Render,
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

func testCompany(atsType models.ATSType, identifier string) *models.Company {
	return &models.Company{
		ID:            "company-1",
		Name:          "Acme",
		WebsiteURL:    "https://acme.example",
		ATSType:       atsType,
		ATSIdentifier: identifier,
	}
}

func TestGreenhouseListJobs(t *testing.T) {
	fetcher := &stubFetcher{jsonBodies: map[string]string{
		"https://boards-api.greenhouse.io/v1/boards/acme/jobs?content=true": `{
			"jobs": [
				{
					"id": 101,
					"title": "  Senior   Backend Engineer ",
					"absolute_url": "https://boards.greenhouse.io/acme/jobs/101",
					"updated_at": "2026-07-01T10:00:00-04:00",
					"content": "&lt;p&gt;Build services in Go.&lt;/p&gt;",
					"location": {"name": "New York, NY"},
					"departments": [{"name": "Engineering"}, {"name": "Platform"}]
				},
				{"id": 102, "title": "", "absolute_url": "https://boards.greenhouse.io/acme/jobs/102"}
			]
		}`,
	}}
	ex := NewGreenhouseExtractor(fetcher, arbor.NewLogger())

	jobs, err := ex.ListJobs(t.Context(), testCompany(models.ATSGreenhouse, "acme"))
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	job := jobs[0]
	if job.TitleRaw != "Senior Backend Engineer" {
		t.Errorf("title = %q", job.TitleRaw)
	}
	if job.DescriptionRaw != "<p>Build services in Go.</p>" {
		t.Errorf("description not unescaped: %q", job.DescriptionRaw)
	}
	if job.LocationRaw != "New York, NY" {
		t.Errorf("location = %q", job.LocationRaw)
	}
	if job.DepartmentRaw != "Engineering, Platform" {
		t.Errorf("department = %q", job.DepartmentRaw)
	}
	if job.CompanyID != "company-1" {
		t.Errorf("company id = %q", job.CompanyID)
	}
	if job.PostedAtRaw != "2026-07-01T10:00:00-04:00" {
		t.Errorf("posted at = %q", job.PostedAtRaw)
	}
}

func TestGreenhouseFallsBackToBoardPage(t *testing.T) {
	fetcher := &stubFetcher{
		jsonBodies: map[string]string{},
		pages: map[string]stubPage{
			"https://boards.greenhouse.io/acme": {body: `<html><body>
				<div class="opening">
					<a href="/acme/jobs/200">Platform Engineer</a>
					<span class="location">Remote</span>
				</div>
				<div class="opening">
					<a href="/acme/jobs/201">Data Engineer</a>
					<span class="location">Berlin</span>
				</div>
			</body></html>`},
		},
	}
	ex := NewGreenhouseExtractor(fetcher, arbor.NewLogger())

	jobs, err := ex.ListJobs(t.Context(), testCompany(models.ATSGreenhouse, "acme"))
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].SourceURL != "https://boards.greenhouse.io/acme/jobs/200" {
		t.Errorf("source url = %q", jobs[0].SourceURL)
	}
	if jobs[1].TitleRaw != "Data Engineer" || jobs[1].LocationRaw != "Berlin" {
		t.Errorf("job = %+v", jobs[1])
	}
}

func TestGreenhouseNeedsIdentifier(t *testing.T) {
	ex := NewGreenhouseExtractor(&stubFetcher{}, arbor.NewLogger())
	_, err := ex.ListJobs(t.Context(), testCompany(models.ATSGreenhouse, ""))
	if models.KindOf(err) != models.ErrInvalidArgument {
		t.Fatalf("err = %v, want invalid argument", err)
	}
}

func TestLeverListJobs(t *testing.T) {
	created := time.Date(2026, 6, 15, 9, 30, 0, 0, time.UTC)
	fetcher := &stubFetcher{jsonBodies: map[string]string{
		"https://api.lever.co/v0/postings/acme?mode=json": `[
			{
				"id": "ab12",
				"text": "Staff Engineer",
				"hostedUrl": "https://jobs.lever.co/acme/ab12",
				"createdAt": ` + timeToMillis(created) + `,
				"description": "<div>Own the platform.</div>",
				"categories": {"location": "London", "team": "Core", "commitment": "Full-time"},
				"salaryRange": {"min": 140000, "max": 180000, "currency": "GBP"}
			},
			{
				"id": "cd34",
				"text": "Support Lead",
				"descriptionPlain": "Help customers.",
				"categories": {"location": "Remote", "department": "Support"}
			}
		]`,
	}}
	ex := NewLeverExtractor(fetcher, arbor.NewLogger())

	jobs, err := ex.ListJobs(t.Context(), testCompany(models.ATSLever, "acme"))
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}

	first := jobs[0]
	if first.PostedAtRaw != created.Format(time.RFC3339) {
		t.Errorf("posted at = %q, want %q", first.PostedAtRaw, created.Format(time.RFC3339))
	}
	if first.SalaryRaw != "GBP 140000 - 180000" {
		t.Errorf("salary = %q", first.SalaryRaw)
	}
	if first.DepartmentRaw != "Core" {
		t.Errorf("department fallback to team failed: %q", first.DepartmentRaw)
	}
	if first.EmploymentRaw != "Full-time" {
		t.Errorf("employment = %q", first.EmploymentRaw)
	}

	second := jobs[1]
	if second.DescriptionRaw != "Help customers." {
		t.Errorf("plain description fallback failed: %q", second.DescriptionRaw)
	}
	if second.SourceURL != "https://jobs.lever.co/acme/cd34" {
		t.Errorf("built source url = %q", second.SourceURL)
	}
}

func TestAshbyPostingAPI(t *testing.T) {
	fetcher := &stubFetcher{jsonBodies: map[string]string{
		"https://api.ashbyhq.com/posting-api/job-board/acme?includeCompensation=true": `{
			"jobs": [
				{
					"id": "7f0a",
					"title": "Product Designer",
					"location": "San Francisco",
					"department": "Design",
					"employmentType": "FullTime",
					"publishedAt": "2026-05-20T00:00:00Z",
					"jobUrl": "https://jobs.ashbyhq.com/acme/7f0a",
					"descriptionHtml": "<p>Design the product.</p>",
					"compensation": {"compensationTierSummary": "$150K. Offers Equity"}
				},
				{
					"id": "8b1c",
					"title": "Researcher",
					"location": {"name": "Toronto"},
					"team": {"name": "Research"}
				}
			]
		}`,
	}}
	ex := NewAshbyExtractor(fetcher, arbor.NewLogger())

	jobs, err := ex.ListJobs(t.Context(), testCompany(models.ATSAshby, "acme"))
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].DescriptionRaw != "<p>Design the product.</p>" {
		t.Errorf("description = %q", jobs[0].DescriptionRaw)
	}
	if jobs[0].SalaryRaw != "$150K. Offers Equity" {
		t.Errorf("salary = %q", jobs[0].SalaryRaw)
	}
	if jobs[1].LocationRaw != "Toronto" {
		t.Errorf("object location = %q", jobs[1].LocationRaw)
	}
	if jobs[1].DepartmentRaw != "Research" {
		t.Errorf("team fallback = %q", jobs[1].DepartmentRaw)
	}
	if jobs[1].SourceURL != "https://jobs.ashbyhq.com/acme/8b1c" {
		t.Errorf("built source url = %q", jobs[1].SourceURL)
	}
}

func TestAshbyGraphQLFallback(t *testing.T) {
	fetcher := &stubFetcher{
		jsonBodies: map[string]string{},
		postBodies: map[string][]string{
			ashbyGraphQLURL: {`{
				"data": {"jobBoard": {"jobPostings": [
					{"id": "111", "title": "Designer", "locationName": "NYC", "teamName": "Design", "publishedDate": "2026-01-10"}
				]}}
			}`},
		},
	}
	ex := NewAshbyExtractor(fetcher, arbor.NewLogger())

	jobs, err := ex.ListJobs(t.Context(), testCompany(models.ATSAshby, "acme"))
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(jobs))
	}
	if jobs[0].SourceURL != "https://jobs.ashbyhq.com/acme/111" {
		t.Errorf("source url = %q", jobs[0].SourceURL)
	}

	var gql *interfaces.FetchRequest
	for _, req := range fetcher.requests {
		if req.URL == ashbyGraphQLURL {
			gql = req
		}
	}
	if gql == nil {
		t.Fatal("graphql endpoint was not called")
	}
	if gql.Method != http.MethodPost || gql.ContentType != "application/json" {
		t.Errorf("graphql request = %s %s", gql.Method, gql.ContentType)
	}
	if !strings.Contains(string(gql.Body), "JobBoardWithSearch") {
		t.Errorf("graphql body missing operation: %s", gql.Body)
	}
}

func TestAshbyNextDataFallback(t *testing.T) {
	fetcher := &stubFetcher{
		jsonBodies: map[string]string{},
		pages: map[string]stubPage{
			"https://jobs.ashbyhq.com/acme": {body: `<html><body>
				<script id="__NEXT_DATA__" type="application/json">
				{"props": {"pageProps": {"jobPostings": [
					{"id": "9c2d", "title": "Ops Lead", "locationName": "Austin", "teamName": "Operations"}
				]}}}
				</script>
			</body></html>`},
		},
	}
	ex := NewAshbyExtractor(fetcher, arbor.NewLogger())

	jobs, err := ex.ListJobs(t.Context(), testCompany(models.ATSAshby, "acme"))
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].TitleRaw != "Ops Lead" {
		t.Fatalf("jobs = %+v", jobs)
	}
	if jobs[0].SourceURL != "https://jobs.ashbyhq.com/acme/9c2d" {
		t.Errorf("source url = %q", jobs[0].SourceURL)
	}
	if !fetcher.sawURL("https://api.ashbyhq.com/posting-api/job-board/acme?includeCompensation=true") {
		t.Error("posting api should be tried before the board page")
	}
}

func TestWorkableListJobs(t *testing.T) {
	fetcher := &stubFetcher{jsonBodies: map[string]string{
		"https://apply.workable.com/api/v1/widget/accounts/acme": `{
			"name": "Acme",
			"jobs": [
				{
					"title": "Account Executive",
					"shortcode": "AE1",
					"url": "https://apply.workable.com/acme/j/AE1/",
					"department": "Sales",
					"employment_type": "Full-time",
					"published_on": "2026-04-01",
					"city": "Boston", "state": "MA", "country": "United States"
				},
				{
					"title": "SRE",
					"shortlink": "https://apply.workable.com/j/SRE9",
					"type": "full",
					"created_at": "2026-03-15",
					"telecommuting": true
				}
			]
		}`,
	}}
	ex := NewWorkableExtractor(fetcher, arbor.NewLogger())

	jobs, err := ex.ListJobs(t.Context(), testCompany(models.ATSWorkable, "acme"))
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].LocationRaw != "Boston, MA, United States" {
		t.Errorf("location = %q", jobs[0].LocationRaw)
	}
	if jobs[0].DescriptionRaw != "" {
		t.Errorf("widget job should have no description, got %q", jobs[0].DescriptionRaw)
	}
	if jobs[1].LocationRaw != "Remote" {
		t.Errorf("telecommuting location = %q", jobs[1].LocationRaw)
	}
	if jobs[1].EmploymentRaw != "full" {
		t.Errorf("type fallback = %q", jobs[1].EmploymentRaw)
	}
	if jobs[1].PostedAtRaw != "2026-03-15" {
		t.Errorf("created_at fallback = %q", jobs[1].PostedAtRaw)
	}
}

func TestWorkdayListJobsPaginates(t *testing.T) {
	searchURL := "https://acme.wd1.myworkdayjobs.com/wday/cxs/acme/External/jobs"
	fetcher := &stubFetcher{
		postBodies: map[string][]string{
			searchURL: {
				`{"total": 3, "jobPostings": [
					{"title": "Engineer I", "externalPath": "/job/NYC/Engineer-I_R100", "locationsText": "New York", "postedOn": "Posted Today"},
					{"title": "Engineer II", "externalPath": "/job/NYC/Engineer-II_R101", "locationsText": "New York"}
				]}`,
				`{"total": 3, "jobPostings": [
					{"title": "Analyst", "externalPath": "/job/SF/Analyst_R102", "locationsText": "San Francisco"}
				]}`,
			},
		},
	}
	company := testCompany(models.ATSWorkday, "acme")
	company.CareersURL = "https://acme.wd1.myworkdayjobs.com/en-US/External"
	ex := NewWorkdayExtractor(fetcher, arbor.NewLogger())

	jobs, err := ex.ListJobs(t.Context(), company)
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs, want 3", len(jobs))
	}
	if jobs[0].SourceURL != "https://acme.wd1.myworkdayjobs.com/en-US/External/job/NYC/Engineer-I_R100" {
		t.Errorf("source url = %q", jobs[0].SourceURL)
	}

	var offsets []int
	for _, req := range fetcher.requests {
		if req.URL == searchURL {
			var body struct {
				Offset int `json:"offset"`
			}
			if err := json.Unmarshal(req.Body, &body); err != nil {
				t.Fatalf("search body: %v", err)
			}
			offsets = append(offsets, body.Offset)
		}
	}
	if len(offsets) != 2 || offsets[0] != 0 || offsets[1] != 2 {
		t.Errorf("offsets = %v, want [0 2]", offsets)
	}
}

func TestWorkdayBoardFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		org     string
		site    string
		wantErr bool
	}{
		{"locale skipped", "https://acme.wd1.myworkdayjobs.com/en-US/External", "acme", "External", false},
		{"no locale", "https://acme.wd5.myworkdayjobs.com/Careers", "acme", "Careers", false},
		{"myworkdaysite host", "https://acme.wd3.myworkdaysite.com/en-US/recruiting", "acme", "recruiting", false},
		{"missing site", "https://acme.wd1.myworkdayjobs.com/", "", "", true},
		{"not workday", "https://acme.example/careers", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board, err := workdayBoardFromURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want error, got %+v", board)
				}
				return
			}
			if err != nil {
				t.Fatalf("workdayBoardFromURL: %v", err)
			}
			if board.org != tt.org || board.site != tt.site {
				t.Errorf("board = %s/%s, want %s/%s", board.org, board.site, tt.org, tt.site)
			}
		})
	}
}

func timeToMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
