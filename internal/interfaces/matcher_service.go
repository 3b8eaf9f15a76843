package interfaces

import (
	"context"

	"github.com/ternarybob/jobhound/internal/models"
)

// MatchOptions tunes a single match run
type MatchOptions struct {
	// SoftInclusive keeps hard-filter failures in the result set with
	// hard_match=false instead of dropping them
	SoftInclusive bool
}

// MatchOutcome is the result of matching one candidate
type MatchOutcome struct {
	Matches []*models.Match `json:"matches"`
	// NoMatchReason is set when Matches is empty: empty_catalog,
	// no_vector_candidates, all_filtered_hard, or all_filtered_score
	NoMatchReason string `json:"no_match_reason,omitempty"`
	// Counts behind the no-match reason
	CatalogSize    int `json:"catalog_size"`
	VectorHits     int `json:"vector_hits"`
	PassedHard     int `json:"passed_hard"`
	AboveThreshold int `json:"above_threshold"`
}

// MatcherService scores candidates against the active job catalog
type MatcherService interface {
	// MatchCandidate scores one candidate and persists the resulting
	// matches
	MatchCandidate(ctx context.Context, candidate *models.CandidateProfile, runID string, opts MatchOptions) (*MatchOutcome, error)

	// MatchAll runs matching for every active candidate. Returns the
	// total number of matches written.
	MatchAll(ctx context.Context, runID string) (int, error)
}
