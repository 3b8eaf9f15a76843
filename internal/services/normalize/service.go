package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/models"
)

// Service maps raw postings onto the canonical job schema. The mapping
// is deterministic: the same raw record and vocabulary tables produce
// the same job, with the clock entering only through freshness and
// relative-date handling.
type Service struct {
	logger arbor.ILogger
	now    func() time.Time
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger, now: time.Now}
}

// Normalize converts one raw posting. Storage identity fields (ID,
// CreatedAt, UpdatedAt) are left for the upsert to fill.
func (s *Service) Normalize(raw *models.RawJob) (*models.Job, error) {
	title := strings.Join(strings.Fields(raw.TitleRaw), " ")
	if title == "" {
		return nil, models.Errorf(models.ErrSchemaViolation, "raw job %s has no title", raw.ID)
	}

	description := descriptionMarkdown(raw.DescriptionRaw, raw.SourceURL)
	family, specialization := mapRole(title)
	seniority := detectSeniority(title, description)
	locationType, locations := normalizeLocation(raw.LocationRaw)
	skills := extractSkills(title, description)
	minSalary, maxSalary := parseSalary(raw.SalaryRaw)
	employment := normalizeEmployment(raw.EmploymentRaw, title)
	postedAt := s.parsePostedAt(raw.PostedAtRaw)

	job := &models.Job{
		CompanyID:          raw.CompanyID,
		RawJobID:           raw.ID,
		SourceURL:          raw.SourceURL,
		Title:              title,
		Description:        description,
		RoleFamily:         family,
		RoleSpecialization: specialization,
		Seniority:          seniority,
		LocationType:       locationType,
		Locations:          locations,
		Skills:             skills,
		MinSalary:          minSalary,
		MaxSalary:          maxSalary,
		EmploymentType:     employment,
		PostedAt:           postedAt,
		FreshnessScore:     s.freshness(postedAt),
		IsActive:           true,
	}
	return job, nil
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// descriptionMarkdown converts an HTML description to markdown. Raw
// text from plain-text sources passes through untouched.
func descriptionMarkdown(raw, sourceURL string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.Contains(raw, "<") {
		return raw
	}
	converter := md.NewConverter(sourceURL, true, nil)
	markdown, err := converter.ConvertString(raw)
	if err != nil {
		return strings.TrimSpace(tagPattern.ReplaceAllString(raw, " "))
	}
	return strings.TrimSpace(markdown)
}

var (
	currencyChars  = strings.NewReplacer(",", "", "$", "", "£", "", "€", "")
	thousandsK     = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)k`)
	salaryNumber   = regexp.MustCompile(`\d+`)
	decimalTrailer = regexp.MustCompile(`(\d)\.(\d+)`)
)

// parseSalary pulls an annual range out of a raw salary string.
// "k" suffixes expand ("$130k-150k"), single figures become a
// degenerate range, and the pair is ordered min before max.
func parseSalary(raw string) (*int, *int) {
	if raw == "" {
		return nil, nil
	}
	cleaned := currencyChars.Replace(raw)
	cleaned = thousandsK.ReplaceAllStringFunc(cleaned, func(m string) string {
		num := thousandsK.FindStringSubmatch(m)[1]
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return m
		}
		return strconv.Itoa(int(f * 1000))
	})
	// Drop decimal tails so "92.5" does not read as two figures
	cleaned = decimalTrailer.ReplaceAllString(cleaned, "$1")

	matches := salaryNumber.FindAllString(cleaned, 3)
	var values []int
	for _, m := range matches {
		if v, err := strconv.Atoi(m); err == nil {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}
	lo := values[0]
	hi := lo
	if len(values) > 1 {
		hi = values[1]
		if hi < lo {
			lo, hi = hi, lo
		}
	}
	return &lo, &hi
}

// normalizeEmployment maps raw employment wording onto the canonical
// types, checking the title when the raw field is empty. The default
// is full_time: boards rarely label permanent roles.
func normalizeEmployment(raw, title string) models.EmploymentType {
	text := strings.ToLower(raw)
	if strings.TrimSpace(text) == "" {
		text = strings.ToLower(title)
	}
	switch {
	case strings.Contains(text, "intern"):
		return models.EmploymentInternship
	case strings.Contains(text, "part-time"), strings.Contains(text, "part time"):
		return models.EmploymentPartTime
	case strings.Contains(text, "contract"):
		return models.EmploymentContract
	case strings.Contains(text, "freelance"):
		return models.EmploymentFreelance
	default:
		return models.EmploymentFullTime
	}
}

// postedLayouts cover the date spellings the board APIs and pages use.
var postedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006/01/02",
	"01/02/2006",
}

var relativeDays = regexp.MustCompile(`(?i)posted\s+(\d+)\+?\s+days?\s+ago`)

func (s *Service) parsePostedAt(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	for _, layout := range postedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}

	// Workday serves relative strings like "Posted 3 Days Ago"
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "posted today"), strings.Contains(lower, "just posted"):
		t := s.now().UTC()
		return &t
	case strings.Contains(lower, "posted yesterday"):
		t := s.now().UTC().AddDate(0, 0, -1)
		return &t
	}
	if m := relativeDays.FindStringSubmatch(raw); m != nil {
		if days, err := strconv.Atoi(m[1]); err == nil {
			t := s.now().UTC().AddDate(0, 0, -days)
			return &t
		}
	}

	s.logger.Debug().Str("posted_at_raw", raw).Msg("Unparseable posted date")
	return nil
}

// freshness decays by half every FreshnessHalfLifeDays; unknown dates
// sit at the midpoint.
func (s *Service) freshness(postedAt *time.Time) float64 {
	if postedAt == nil {
		return 0.5
	}
	ageDays := s.now().UTC().Sub(*postedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(0.5, ageDays/models.FreshnessHalfLifeDays)
}
