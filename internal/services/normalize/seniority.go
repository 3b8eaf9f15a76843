package normalize

import (
	"regexp"
	"strconv"

	"github.com/ternarybob/jobhound/internal/models"
)

// seniorityRules run most-senior first so "Senior Staff Engineer" reads
// as staff and "VP, Engineering" never falls through to lead.
var seniorityRules = []struct {
	level    models.Seniority
	patterns []*regexp.Regexp
}{
	{models.SeniorityCLevel, rulePatterns(
		`\bceo\b`, `\bcto\b`, `\bcfo\b`, `\bcoo\b`, `\bcmo\b`, `\bchief\b`, `\bco-?founder\b`, `\bfounder\b`,
	)},
	{models.SeniorityVP, rulePatterns(
		`\bvp\b`, `\bvice\s*president\b`, `\bsvp\b`, `\bevp\b`,
	)},
	{models.SeniorityDirector, rulePatterns(
		`\bdirector\b`, `\bhead\s+of\b`,
	)},
	{models.SeniorityPrincipal, rulePatterns(
		`\bprincipal\b`, `\bdistinguished\b`, `\bfellow\b`,
	)},
	{models.SeniorityStaff, rulePatterns(
		`\bstaff\b`,
	)},
	{models.SenioritySenior, rulePatterns(
		`\bsenior\b`, `\bsr\.?\b`, `\blead\b`,
	)},
	{models.SeniorityMid, rulePatterns(
		`\bmid-?level\b`, `\bintermediate\b`, `\bii\b`,
	)},
	{models.SeniorityJunior, rulePatterns(
		`\bjunior\b`, `\bjr\.?\b`, `\bentry[\s-]*level\b`, `\bnew\s*grad\b`, `\bgraduate\b`, `\bi\b`,
	)},
	{models.SeniorityIntern, rulePatterns(
		`\bintern\b`, `\binternship\b`, `\bco-?op\b`,
	)},
}

var (
	yearsSingle = regexp.MustCompile(`(?i)(\d+)\+?\s*(?:years?|yrs?)\s*(?:of\s*)?(?:experience|exp)`)
	yearsRange  = regexp.MustCompile(`(?i)(\d+)\s*-\s*(\d+)\s*(?:years?|yrs?)`)
)

// yearsToSeniority maps a years-of-experience requirement onto the
// level scale.
func yearsToSeniority(years int) models.Seniority {
	switch {
	case years < 1:
		return models.SeniorityIntern
	case years < 2:
		return models.SeniorityJunior
	case years < 5:
		return models.SeniorityMid
	case years < 8:
		return models.SenioritySenior
	case years < 12:
		return models.SeniorityStaff
	default:
		return models.SeniorityPrincipal
	}
}

// detectSeniority reads explicit level words from the title, then
// falls back to years-of-experience phrasing in the description.
// Returns empty when neither signal is present.
func detectSeniority(title, description string) models.Seniority {
	for _, rule := range seniorityRules {
		if matchesAny(rule.patterns, title) {
			return rule.level
		}
	}

	if description != "" {
		if m := yearsRange.FindStringSubmatch(description); m != nil {
			lo, err1 := strconv.Atoi(m[1])
			hi, err2 := strconv.Atoi(m[2])
			if err1 == nil && err2 == nil {
				return yearsToSeniority((lo + hi) / 2)
			}
		}
		if m := yearsSingle.FindStringSubmatch(description); m != nil {
			if years, err := strconv.Atoi(m[1]); err == nil {
				return yearsToSeniority(years)
			}
		}
	}

	return ""
}
