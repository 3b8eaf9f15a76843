package interfaces

import (
	"context"

	"github.com/ternarybob/jobhound/internal/models"
)

// DetectionResult is the outcome of ATS detection for a company
type DetectionResult struct {
	ATSType    models.ATSType `json:"ats_type"`
	Identifier string         `json:"identifier,omitempty"`
	// CareersURL is the page detection settled on, which may differ from
	// the input when redirects or link probing found a better one
	CareersURL string `json:"careers_url,omitempty"`
	// Method records how the result was found: url_pattern, html_probe,
	// api_probe, or fallback
	Method string `json:"method,omitempty"`
}

// ATSDetector figures out which applicant tracking system serves a
// company's careers page
type ATSDetector interface {
	// Detect inspects the company's careers or website URL and returns
	// the vendor and board identifier. Companies on no known vendor come
	// back as custom; pages that cannot be fetched at all come back as
	// unknown with an error.
	Detect(ctx context.Context, company *models.Company) (*DetectionResult, error)

	// Rediscover re-runs detection for a company whose stored identifier
	// stopped resolving
	Rediscover(ctx context.Context, company *models.Company) (*DetectionResult, error)
}

// JobExtractor pulls raw job postings for one ATS vendor
type JobExtractor interface {
	// Type returns the vendor this extractor handles
	Type() models.ATSType

	// ListJobs fetches the company's board and returns raw postings with
	// descriptions populated where the vendor API provides them
	ListJobs(ctx context.Context, company *models.Company) ([]*models.RawJob, error)
}

// ExtractorRegistry resolves the extractor for a company's ATS type
type ExtractorRegistry interface {
	// For returns the extractor for atsType, falling back to the
	// LLM-backed custom extractor for unrecognized boards
	For(atsType models.ATSType) (JobExtractor, error)
}

// JobEnricher backfills a raw job's description from its detail page or
// detail API when the listing extraction could not supply one
type JobEnricher interface {
	Enrich(ctx context.Context, raw *models.RawJob, company *models.Company) error
}
