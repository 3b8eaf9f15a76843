package extract

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

// Registry holds one extractor per vendor plus the LLM fallback for
// everything else.
type Registry struct {
	vendors map[models.ATSType]interfaces.JobExtractor
	custom  interfaces.JobExtractor
}

func NewRegistry(fetcher interfaces.Fetcher, llm interfaces.LLMService, excerptLimit int, logger arbor.ILogger) *Registry {
	r := &Registry{
		vendors: make(map[models.ATSType]interfaces.JobExtractor),
		custom:  NewCustomExtractor(fetcher, llm, excerptLimit, logger),
	}
	for _, ex := range []interfaces.JobExtractor{
		NewGreenhouseExtractor(fetcher, logger),
		NewLeverExtractor(fetcher, logger),
		NewAshbyExtractor(fetcher, logger),
		NewWorkableExtractor(fetcher, logger),
		NewWorkdayExtractor(fetcher, logger),
	} {
		r.vendors[ex.Type()] = ex
	}
	return r
}

// For returns the vendor extractor for atsType, or the LLM-backed
// custom extractor for custom and unrecognized types.
func (r *Registry) For(atsType models.ATSType) (interfaces.JobExtractor, error) {
	if ex, ok := r.vendors[atsType]; ok {
		return ex, nil
	}
	return r.custom, nil
}
