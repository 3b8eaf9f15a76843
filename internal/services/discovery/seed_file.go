package discovery

import (
	"context"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/jobhound/internal/models"
)

// seedEntry is one row of the YAML seed list
type seedEntry struct {
	Name          string `yaml:"name"`
	Domain        string `yaml:"domain"`
	WebsiteURL    string `yaml:"website_url"`
	CareersURL    string `yaml:"careers_url"`
	ATSType       string `yaml:"ats_type"`
	ATSIdentifier string `yaml:"ats_identifier"`
	Location      string `yaml:"location"`
	Country       string `yaml:"country"`
	Industry      string `yaml:"industry"`
}

type seedDocument struct {
	Companies []seedEntry `yaml:"companies"`
}

// SeedFileSource produces candidates from an operator-maintained YAML
// list. The file is re-read on every run so edits land without a
// restart.
type SeedFileSource struct {
	path   string
	logger arbor.ILogger
}

func NewSeedFileSource(path string, logger arbor.ILogger) *SeedFileSource {
	return &SeedFileSource{path: path, logger: logger}
}

func (s *SeedFileSource) Name() string { return models.SourceSeedFile }

func (s *SeedFileSource) Description() string {
	return "Companies from the configured YAML seed list"
}

func (s *SeedFileSource) Enabled() bool { return s.path != "" }

func (s *SeedFileSource) Produce(ctx context.Context, limit int) ([]models.CompanyCandidate, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, models.Errorf(models.ErrInvalidArgument, "read seed file %s: %v", s.path, err)
	}

	// Accept both a top-level companies: key and a bare list
	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		if listErr := yaml.Unmarshal(data, &doc.Companies); listErr != nil {
			return nil, models.Errorf(models.ErrParse, "parse seed file %s: %v", s.path, err)
		}
	}

	var out []models.CompanyCandidate
	for _, entry := range doc.Companies {
		if strings.TrimSpace(entry.Name) == "" {
			continue
		}
		out = append(out, models.CompanyCandidate{
			Name:          strings.TrimSpace(entry.Name),
			Domain:        entry.Domain,
			WebsiteURL:    entry.WebsiteURL,
			CareersURL:    entry.CareersURL,
			ATSType:       models.ATSType(entry.ATSType),
			ATSIdentifier: entry.ATSIdentifier,
			Source:        models.SourceSeedFile,
			Location:      entry.Location,
			Country:       entry.Country,
			Industry:      entry.Industry,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	s.logger.Info().Str("path", s.path).Int("count", len(out)).Msg("Loaded seed companies")
	return out, nil
}
