package models

import (
	"time"
)

// No-match reasons recorded when a candidate's match run yields zero results
const (
	NoMatchEmptyCatalog       = "empty_catalog"
	NoMatchNoVectorCandidates = "no_vector_candidates"
	NoMatchAllFilteredHard    = "all_filtered_hard"
	NoMatchAllFilteredScore   = "all_filtered_score"
)

// Scoring dimension names used in match reasons
const (
	DimSimilarity = "similarity"
	DimRoleFamily = "role_family"
	DimSeniority  = "seniority"
	DimSkills     = "skills"
	DimFreshness  = "freshness"
	DimSalary     = "salary"
)

// MatchReason records one scoring dimension's contribution. Score is the
// raw signal in [0,1] before weighting; Detail is a human-readable note.
type MatchReason struct {
	Dimension string  `json:"dimension"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
	Detail    string  `json:"detail,omitempty"`
}

// Match is a scored pairing of a candidate and a job. Pairs are unique per
// (candidate, job); re-running matching overwrites the score and reasons
// in place but never touches the usage timestamps.
type Match struct {
	ID          string `json:"id"`
	CandidateID string `json:"candidate_id"`
	JobID       string `json:"job_id"`
	CompanyID   string `json:"company_id"`
	RunID       string `json:"run_id,omitempty"`

	Score         float64       `json:"score"`
	HardMatch     bool          `json:"hard_match"`
	Reasons       []MatchReason `json:"match_reasons,omitempty"`
	MatchedSkills []string      `json:"matched_skills,omitempty"`
	Rank          int           `json:"rank"`

	// Usage events. Set once by the corresponding API call.
	ShownAt     *time.Time `json:"shown_at,omitempty"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
	DismissedAt *time.Time `json:"dismissed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MatchStats summarizes match volume for the analytics endpoints
type MatchStats struct {
	TotalMatches int     `json:"total_matches"`
	Candidates   int     `json:"candidates"`
	AvgScore     float64 `json:"avg_score"`
}
