package normalize

import (
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/models"
)

func newTestService(now time.Time) *Service {
	svc := NewService(arbor.NewLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func TestParseSalary(t *testing.T) {
	tests := []struct {
		raw      string
		min, max int
		ok       bool
	}{
		{"$130,000 - $150,000", 130000, 150000, true},
		{"$130k-150k", 130000, 150000, true},
		{"$92.5k - $110k", 92500, 110000, true},
		{"USD 185000", 185000, 185000, true},
		{"Up to £90k", 90000, 90000, true},
		{"150000 - 120000", 120000, 150000, true},
		{"€70k - €85k + equity", 70000, 85000, true},
		{"Competitive", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			min, max := parseSalary(tt.raw)
			if !tt.ok {
				if min != nil || max != nil {
					t.Fatalf("parseSalary(%q) = %v, %v, want nil pair", tt.raw, min, max)
				}
				return
			}
			if min == nil || max == nil {
				t.Fatalf("parseSalary(%q) returned nil, want %d-%d", tt.raw, tt.min, tt.max)
			}
			if *min != tt.min || *max != tt.max {
				t.Errorf("parseSalary(%q) = %d-%d, want %d-%d", tt.raw, *min, *max, tt.min, tt.max)
			}
		})
	}
}

func TestNormalizeEmployment(t *testing.T) {
	tests := []struct {
		raw   string
		title string
		want  models.EmploymentType
	}{
		{"Full-time", "", models.EmploymentFullTime},
		{"Permanent", "", models.EmploymentFullTime},
		{"Part-Time", "", models.EmploymentPartTime},
		{"Contract", "", models.EmploymentContract},
		{"Freelance", "", models.EmploymentFreelance},
		{"Internship", "", models.EmploymentInternship},
		{"Full-time internship", "", models.EmploymentInternship},
		{"", "Software Engineer", models.EmploymentFullTime},
		{"", "Software Engineering Intern", models.EmploymentInternship},
	}

	for _, tt := range tests {
		t.Run(tt.raw+"/"+tt.title, func(t *testing.T) {
			if got := normalizeEmployment(tt.raw, tt.title); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePostedAt(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)

	tests := []struct {
		raw  string
		want time.Time
		none bool
	}{
		{raw: "2026-03-01T10:00:00Z", want: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{raw: "2026-03-01T10:00:00-04:00", want: time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)},
		{raw: "2026-03-01", want: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{raw: "Mar 1, 2026", want: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{raw: "03/01/2026", want: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{raw: "Posted Today", want: now},
		{raw: "Posted Yesterday", want: now.AddDate(0, 0, -1)},
		{raw: "Posted 3 Days Ago", want: now.AddDate(0, 0, -3)},
		{raw: "Posted 30+ Days Ago", want: now.AddDate(0, 0, -30)},
		{raw: "last week", none: true},
		{raw: "", none: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := svc.parsePostedAt(tt.raw)
			if tt.none {
				if got != nil {
					t.Fatalf("parsePostedAt(%q) = %v, want nil", tt.raw, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("parsePostedAt(%q) = nil, want %v", tt.raw, tt.want)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parsePostedAt(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFreshness(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)

	week := now.AddDate(0, 0, -7)
	fortnight := now.AddDate(0, 0, -14)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name     string
		postedAt *time.Time
		want     float64
	}{
		{"today", &now, 1.0},
		{"one half-life", &week, 0.5},
		{"two half-lives", &fortnight, 0.25},
		{"unknown date", nil, 0.5},
		{"future date clamps", &future, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.freshness(tt.postedAt)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("freshness = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(now)

	raw := &models.RawJob{
		ID:             "raw-1",
		CompanyID:      "company-1",
		SourceURL:      "https://boards.greenhouse.io/acme/jobs/123",
		TitleRaw:       "  Senior   Backend Engineer  ",
		DescriptionRaw: "<h2>About</h2><p>We use <strong>Kubernetes</strong> and Postgres. 5-7 years experience.</p>",
		LocationRaw:    "Remote - US",
		EmploymentRaw:  "Full-time",
		SalaryRaw:      "$150k - $180k",
		PostedAtRaw:    "2026-03-03",
	}

	job, err := svc.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if job.Title != "Senior Backend Engineer" {
		t.Errorf("Title = %q", job.Title)
	}
	if job.CompanyID != "company-1" || job.RawJobID != "raw-1" || job.SourceURL != raw.SourceURL {
		t.Errorf("identity fields wrong: %+v", job)
	}
	if job.RoleFamily != models.RoleSoftwareEngineering {
		t.Errorf("RoleFamily = %q", job.RoleFamily)
	}
	if job.RoleSpecialization != "backend" {
		t.Errorf("RoleSpecialization = %q", job.RoleSpecialization)
	}
	if job.Seniority != models.SenioritySenior {
		t.Errorf("Seniority = %q", job.Seniority)
	}
	if job.LocationType != models.LocationRemote {
		t.Errorf("LocationType = %q", job.LocationType)
	}
	if !reflect.DeepEqual(job.Locations, []string{"US"}) {
		t.Errorf("Locations = %v", job.Locations)
	}
	if !reflect.DeepEqual(job.Skills, []string{"kubernetes", "postgresql"}) {
		t.Errorf("Skills = %v", job.Skills)
	}
	if job.MinSalary == nil || *job.MinSalary != 150000 || job.MaxSalary == nil || *job.MaxSalary != 180000 {
		t.Errorf("salary = %v-%v", job.MinSalary, job.MaxSalary)
	}
	if job.EmploymentType != models.EmploymentFullTime {
		t.Errorf("EmploymentType = %q", job.EmploymentType)
	}
	if job.PostedAt == nil || !job.PostedAt.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("PostedAt = %v", job.PostedAt)
	}
	wantFreshness := math.Pow(0.5, now.Sub(*job.PostedAt).Hours()/24/models.FreshnessHalfLifeDays)
	if math.Abs(job.FreshnessScore-wantFreshness) > 1e-9 {
		t.Errorf("FreshnessScore = %v, want %v", job.FreshnessScore, wantFreshness)
	}
	if !job.IsActive {
		t.Error("IsActive = false, want true")
	}

	if !strings.Contains(job.Description, "## About") {
		t.Errorf("Description not converted to markdown: %q", job.Description)
	}
	if strings.Contains(job.Description, "<p>") || strings.Contains(job.Description, "<h2>") {
		t.Errorf("Description kept HTML tags: %q", job.Description)
	}
	if !strings.Contains(job.Description, "**Kubernetes**") {
		t.Errorf("Description lost emphasis: %q", job.Description)
	}
}

func TestNormalizePlainTextDescription(t *testing.T) {
	svc := newTestService(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	raw := &models.RawJob{
		ID:             "raw-2",
		CompanyID:      "company-1",
		SourceURL:      "https://example.com/jobs/2",
		TitleRaw:       "Product Manager",
		DescriptionRaw: "Own the roadmap. Talk to customers.",
	}

	job, err := svc.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if job.Description != "Own the roadmap. Talk to customers." {
		t.Errorf("Description = %q", job.Description)
	}
	if job.Seniority != "" {
		t.Errorf("Seniority = %q, want empty", job.Seniority)
	}
	if job.EmploymentType != models.EmploymentFullTime {
		t.Errorf("EmploymentType = %q, want full_time default", job.EmploymentType)
	}
	if job.FreshnessScore != 0.5 {
		t.Errorf("FreshnessScore = %v, want 0.5 for missing date", job.FreshnessScore)
	}
}

func TestNormalizeRejectsEmptyTitle(t *testing.T) {
	svc := newTestService(time.Now())
	_, err := svc.Normalize(&models.RawJob{ID: "raw-3", TitleRaw: "   "})
	if err == nil {
		t.Fatal("expected error for empty title")
	}
	if models.KindOf(err) != models.ErrSchemaViolation {
		t.Errorf("kind = %v, want schema violation", models.KindOf(err))
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	raw := &models.RawJob{
		ID:             "raw-4",
		CompanyID:      "company-2",
		SourceURL:      "https://jobs.lever.co/acme/4",
		TitleRaw:       "Staff Platform Engineer",
		DescriptionRaw: "<p>Terraform, AWS, and Kubernetes at scale.</p>",
		LocationRaw:    "Hybrid - New York",
		SalaryRaw:      "$210,000 - $240,000",
		PostedAtRaw:    "2026-02-20T09:30:00Z",
	}

	first, err := newTestService(now).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	second, err := newTestService(now).Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("outputs differ:\n%+v\n%+v", first, second)
	}
}
