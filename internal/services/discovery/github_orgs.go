package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/models"
)

// orgSearchLocations drive the org search when no explicit list is
// configured
var orgSearchLocations = []string{
	"San Francisco", "New York", "Seattle", "Austin", "Boston",
}

// orgSkipKeywords mark organizations that are not hiring companies
var orgSkipKeywords = []string{
	"university", "school", "education", "academy",
	"nonprofit", "non-profit", "foundation", "charity", "government",
}

const orgSearchPageSize = 25

// GitHubOrgsSource finds engineering-heavy companies through the GitHub
// organizations API: an explicit org list from config plus a
// followers-ranked location search when a token allows it.
type GitHubOrgsSource struct {
	cfg    common.GitHubDiscoveryConfig
	client *github.Client
	logger arbor.ILogger
}

func NewGitHubOrgsSource(cfg common.GitHubDiscoveryConfig, logger arbor.ILogger) *GitHubOrgsSource {
	var httpClient *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}
	return &GitHubOrgsSource{
		cfg:    cfg,
		client: github.NewClient(httpClient),
		logger: logger,
	}
}

func (s *GitHubOrgsSource) Name() string { return models.SourceGitHubOrgs }

func (s *GitHubOrgsSource) Description() string {
	return "Companies behind active GitHub organizations"
}

// Enabled requires a token for searching; an explicit org list works
// within the unauthenticated rate limit
func (s *GitHubOrgsSource) Enabled() bool {
	return s.cfg.Token != "" || len(s.cfg.Orgs) > 0
}

func (s *GitHubOrgsSource) Produce(ctx context.Context, limit int) ([]models.CompanyCandidate, error) {
	seen := make(map[string]bool)
	var logins []string
	for _, login := range s.cfg.Orgs {
		login = strings.ToLower(strings.TrimSpace(login))
		if login == "" || seen[login] {
			continue
		}
		seen[login] = true
		logins = append(logins, login)
	}

	if s.cfg.Token != "" {
		searched, err := s.searchOrgs(ctx)
		if err != nil {
			// Explicit orgs are still worth resolving
			s.logger.Warn().Err(err).Msg("GitHub org search failed")
		}
		for _, login := range searched {
			if seen[login] {
				continue
			}
			seen[login] = true
			logins = append(logins, login)
		}
	}

	var out []models.CompanyCandidate
	for _, login := range logins {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		org, _, err := s.client.Organizations.Get(ctx, login)
		if err != nil {
			s.logger.Debug().Err(err).Str("org", login).Msg("Organization lookup failed")
			continue
		}

		cand, ok := s.candidateFromOrg(org)
		if !ok {
			continue
		}
		out = append(out, cand)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	s.logger.Info().Int("orgs", len(logins)).Int("candidates", len(out)).Msg("GitHub org discovery finished")
	return out, nil
}

func (s *GitHubOrgsSource) searchOrgs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var logins []string

	for _, location := range orgSearchLocations {
		query := fmt.Sprintf(`type:org location:"%s"`, location)
		result, _, err := s.client.Search.Users(ctx, query, &github.SearchOptions{
			Sort:        "followers",
			Order:       "desc",
			ListOptions: github.ListOptions{PerPage: orgSearchPageSize},
		})
		if err != nil {
			return logins, err
		}

		for _, u := range result.Users {
			login := strings.ToLower(u.GetLogin())
			if login == "" || seen[login] {
				continue
			}
			seen[login] = true
			logins = append(logins, login)
		}
	}

	return logins, nil
}

// candidateFromOrg filters an organization down to a company lead. Orgs
// without a real website, with too few public repos, or reading like
// schools and nonprofits are dropped.
func (s *GitHubOrgsSource) candidateFromOrg(org *github.Organization) (models.CompanyCandidate, bool) {
	website := strings.TrimSpace(org.GetBlog())
	if website == "" {
		return models.CompanyCandidate{}, false
	}
	if !strings.HasPrefix(website, "http://") && !strings.HasPrefix(website, "https://") {
		website = "https://" + website
	}

	domain := normalizeDomain(website)
	if domain == "" || strings.HasSuffix(domain, "github.io") || strings.HasSuffix(domain, ".edu") {
		return models.CompanyCandidate{}, false
	}

	minRepos := s.cfg.MinPublicRepos
	if minRepos <= 0 {
		minRepos = 5
	}
	if org.GetPublicRepos() < minRepos {
		return models.CompanyCandidate{}, false
	}

	haystack := strings.ToLower(org.GetName() + " " + org.GetDescription())
	for _, keyword := range orgSkipKeywords {
		if strings.Contains(haystack, keyword) {
			return models.CompanyCandidate{}, false
		}
	}

	name := strings.TrimSpace(org.GetName())
	if name == "" {
		name = org.GetLogin()
	}
	country := ""
	if looksUS(org.GetLocation()) {
		country = "US"
	}

	return models.CompanyCandidate{
		Name:       name,
		Domain:     domain,
		WebsiteURL: website,
		Source:     models.SourceGitHubOrgs,
		Location:   org.GetLocation(),
		Country:    country,
	}, true
}
