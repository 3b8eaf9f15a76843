package match

import (
	"fmt"
	"strings"

	"github.com/ternarybob/jobhound/internal/models"
)

// Soft score weights. They sum to 1.0, so the clamp only matters if the
// table changes.
const (
	weightSimilarity = 0.40
	weightRoleFamily = 0.15
	weightSeniority  = 0.15
	weightSkills     = 0.15
	weightFreshness  = 0.10
	weightSalary     = 0.05
)

// roleTypeToEmployment maps the candidate-facing role_types vocabulary
// onto job employment types
var roleTypeToEmployment = map[string]models.EmploymentType{
	"permanent": models.EmploymentFullTime,
	"full_time": models.EmploymentFullTime,
	"contract":  models.EmploymentContract,
	"freelance": models.EmploymentFreelance,
}

// passesHardFilters checks every hard constraint. Constraints only apply
// when both sides state a value; an absent side always passes.
func passesHardFilters(candidate *models.CandidateProfile, job *models.Job, companyName string) bool {
	if !job.IsActive {
		return false
	}

	if len(candidate.RoleFamilies) > 0 && job.RoleFamily != "" {
		if !containsFamily(candidate.RoleFamilies, job.RoleFamily) {
			return false
		}
	}

	if candidate.Seniority != "" && job.Seniority != "" {
		candidateRank := models.SeniorityRank(candidate.Seniority)
		jobRank := models.SeniorityRank(job.Seniority)
		if candidateRank >= 0 && jobRank >= 0 {
			diff := candidateRank - jobRank
			if diff < -1 || diff > 1 {
				return false
			}
		}
	}

	if len(candidate.LocationTypes) > 0 && job.LocationType != "" {
		found := false
		for _, lt := range candidate.LocationTypes {
			if lt == job.LocationType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if candidate.MinSalary != nil && job.MaxSalary != nil {
		if *job.MaxSalary < *candidate.MinSalary {
			return false
		}
	}

	if len(candidate.RoleTypes) > 0 && job.EmploymentType != "" {
		found := false
		for _, rt := range candidate.RoleTypes {
			if roleTypeToEmployment[strings.ToLower(rt)] == job.EmploymentType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if companyName != "" {
		for _, excluded := range candidate.Exclusions {
			if strings.EqualFold(strings.TrimSpace(excluded), companyName) {
				return false
			}
		}
	}

	return true
}

func containsFamily(families []models.RoleFamily, family models.RoleFamily) bool {
	for _, f := range families {
		if f == family {
			return true
		}
	}
	return false
}

// scoreJob computes the weighted soft score and its per-dimension
// reasons. Zero-contribution dimensions are left out of the reasons.
func scoreJob(candidate *models.CandidateProfile, job *models.Job, similarity float64) (float64, []models.MatchReason, []string) {
	reasons := make([]models.MatchReason, 0, 6)

	simScore := clamp01(similarity)
	if simScore > 0 {
		reasons = append(reasons, models.MatchReason{
			Dimension: models.DimSimilarity,
			Score:     simScore,
			Weight:    weightSimilarity,
			Detail:    fmt.Sprintf("%.0f%% semantic similarity to your profile", simScore*100),
		})
	}

	roleScore, roleDetail := scoreRoleFamily(candidate, job)
	if roleScore > 0 {
		reasons = append(reasons, models.MatchReason{
			Dimension: models.DimRoleFamily,
			Score:     roleScore,
			Weight:    weightRoleFamily,
			Detail:    roleDetail,
		})
	}

	seniorityScore, seniorityDetail := scoreSeniority(candidate, job)
	if seniorityScore > 0 {
		reasons = append(reasons, models.MatchReason{
			Dimension: models.DimSeniority,
			Score:     seniorityScore,
			Weight:    weightSeniority,
			Detail:    seniorityDetail,
		})
	}

	skillScore, matched := scoreSkills(candidate.Skills, job.Skills)
	if skillScore > 0 {
		reasons = append(reasons, models.MatchReason{
			Dimension: models.DimSkills,
			Score:     skillScore,
			Weight:    weightSkills,
			Detail:    fmt.Sprintf("Matches %d of %d listed skills", len(matched), len(job.Skills)),
		})
	}

	freshScore := job.FreshnessScore
	if freshScore > 0 {
		detail := "Posting age unknown"
		if job.PostedAt != nil {
			if freshScore > 0.7 {
				detail = "Posted within the last few days"
			} else {
				detail = "Posted recently"
			}
		}
		reasons = append(reasons, models.MatchReason{
			Dimension: models.DimFreshness,
			Score:     freshScore,
			Weight:    weightFreshness,
			Detail:    detail,
		})
	}

	salaryScore := 0.0
	if candidate.MinSalary != nil && job.MaxSalary != nil && *job.MaxSalary >= *candidate.MinSalary {
		salaryScore = 1.0
		reasons = append(reasons, models.MatchReason{
			Dimension: models.DimSalary,
			Score:     salaryScore,
			Weight:    weightSalary,
			Detail:    "Pays at or above your minimum",
		})
	}

	score := weightSimilarity*simScore +
		weightRoleFamily*roleScore +
		weightSeniority*seniorityScore +
		weightSkills*skillScore +
		weightFreshness*freshScore +
		weightSalary*salaryScore

	return clamp01(score), reasons, matched
}

// scoreRoleFamily gives 1.0 for the candidate's primary family (first
// listed), 0.5 for any other listed family, and a neutral 0.5 when the
// candidate states no preference
func scoreRoleFamily(candidate *models.CandidateProfile, job *models.Job) (float64, string) {
	if len(candidate.RoleFamilies) == 0 {
		return 0.5, "No role preference stated"
	}
	family := humanizeFamily(job.RoleFamily)
	if job.RoleFamily == candidate.RoleFamilies[0] {
		return 1.0, fmt.Sprintf("Matches your primary %s preference", family)
	}
	if containsFamily(candidate.RoleFamilies, job.RoleFamily) {
		return 0.5, fmt.Sprintf("Matches your %s preference", family)
	}
	return 0, ""
}

// scoreSeniority gives 1.0 exact, 0.5 one step away, 0 otherwise.
// Absent on either side scores a neutral 0.5.
func scoreSeniority(candidate *models.CandidateProfile, job *models.Job) (float64, string) {
	if candidate.Seniority == "" || job.Seniority == "" {
		return 0.5, "Seniority not stated"
	}
	candidateRank := models.SeniorityRank(candidate.Seniority)
	jobRank := models.SeniorityRank(job.Seniority)
	if candidateRank < 0 || jobRank < 0 {
		return 0.5, "Seniority not stated"
	}
	diff := candidateRank - jobRank
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 1.0, fmt.Sprintf("Exact %s seniority match", job.Seniority)
	case 1:
		return 0.5, fmt.Sprintf("%s role, one step from your level", job.Seniority)
	default:
		return 0, ""
	}
}

// scoreSkills is overlap against the job's stated skills; candidates are
// not penalized for knowing more than the posting asks
func scoreSkills(candidateSkills, jobSkills []string) (float64, []string) {
	if len(candidateSkills) == 0 || len(jobSkills) == 0 {
		return 0, nil
	}

	candidateSet := make(map[string]bool, len(candidateSkills))
	for _, s := range candidateSkills {
		candidateSet[strings.ToLower(strings.TrimSpace(s))] = true
	}

	var matched []string
	for _, s := range jobSkills {
		if candidateSet[strings.ToLower(strings.TrimSpace(s))] {
			matched = append(matched, s)
		}
	}

	denom := len(jobSkills)
	if denom < 1 {
		denom = 1
	}
	return float64(len(matched)) / float64(denom), matched
}

func humanizeFamily(family models.RoleFamily) string {
	return strings.ReplaceAll(string(family), "_", " ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
