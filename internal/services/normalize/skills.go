package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// skillAliases maps canonical skill names to the spellings postings
// use. Aliases are matched whole-word and case-insensitive; a leading
// backslash marks an alias that is already a regular expression.
var skillAliases = map[string][]string{
	// languages
	"python":     {"python", "python3"},
	"javascript": {"javascript", "js", "ecmascript", "es6"},
	"typescript": {"typescript", "ts"},
	"java":       {"java"},
	"golang":     {"golang", "go lang", "go-lang"},
	"rust":       {"rust", "rustlang"},
	"c++":        {`\bc\+\+`, "cpp"},
	"c#":         {`\bc#`, "csharp", `\.net\b`},
	"ruby":       {"ruby"},
	"php":        {"php"},
	"swift":      {"swift"},
	"kotlin":     {"kotlin"},
	"scala":      {"scala"},
	"elixir":     {"elixir"},
	"sql":        {"sql"},

	// frontend
	"react":    {"react", "reactjs", "react.js"},
	"vue":      {"vue", "vuejs", "vue.js"},
	"angular":  {"angular", "angularjs"},
	"svelte":   {"svelte", "sveltekit"},
	"nextjs":   {"next.js", "nextjs"},
	"html":     {"html", "html5"},
	"css":      {"css", "css3", "scss", "sass"},
	"tailwind": {"tailwind", "tailwindcss"},

	// backend frameworks
	"nodejs":  {"node.js", "nodejs", "node js"},
	"django":  {"django"},
	"flask":   {"flask"},
	"fastapi": {"fastapi"},
	"rails":   {"rails", "ruby on rails"},
	"spring":  {"spring boot", "springboot", "spring framework"},
	"graphql": {"graphql"},
	"grpc":    {"grpc"},
	"rest":    {"restful", "rest api", "rest apis"},

	// cloud and infrastructure
	"aws":            {"aws", "amazon web services"},
	"gcp":            {"gcp", "google cloud"},
	"azure":          {"azure"},
	"kubernetes":     {"kubernetes", "k8s"},
	"docker":         {"docker"},
	"terraform":      {"terraform"},
	"ansible":        {"ansible"},
	"jenkins":        {"jenkins"},
	"github actions": {"github actions"},
	"linux":          {"linux", "unix"},

	// data stores
	"postgresql":    {"postgresql", "postgres", "psql"},
	"mysql":         {"mysql"},
	"mongodb":       {"mongodb", "mongo"},
	"redis":         {"redis"},
	"elasticsearch": {"elasticsearch", "opensearch"},
	"dynamodb":      {"dynamodb"},
	"cassandra":     {"cassandra"},
	"snowflake":     {"snowflake"},

	// data and ml
	"pandas":     {"pandas"},
	"numpy":      {"numpy"},
	"pytorch":    {"pytorch"},
	"tensorflow": {"tensorflow"},
	"spark":      {"spark", "pyspark"},
	"kafka":      {"kafka"},
	"airflow":    {"airflow"},
	"dbt":        {`\bdbt\b`},

	// practices
	"git":           {"git", "github", "gitlab"},
	"agile":         {"agile", "scrum", "kanban"},
	"ci/cd":         {"ci/cd", "cicd", "continuous integration", "continuous deployment"},
	"tdd":           {"tdd", "test driven development", "test-driven development"},
	"microservices": {"microservices", "micro-services"},
}

var skillPatterns = buildSkillPatterns()

func buildSkillPatterns() map[string][]*regexp.Regexp {
	patterns := make(map[string][]*regexp.Regexp, len(skillAliases))
	for canonical, aliases := range skillAliases {
		compiled := make([]*regexp.Regexp, 0, len(aliases))
		for _, alias := range aliases {
			if strings.HasPrefix(alias, `\`) {
				compiled = append(compiled, regexp.MustCompile(`(?i)`+alias))
				continue
			}
			compiled = append(compiled, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(alias)+`\b`))
		}
		patterns[canonical] = compiled
	}
	return patterns
}

// extractSkills returns the canonical skills mentioned in the title or
// description, as a sorted deduplicated set.
func extractSkills(title, description string) []string {
	text := title + " " + description
	var found []string
	for canonical, patterns := range skillPatterns {
		for _, p := range patterns {
			if p.MatchString(text) {
				found = append(found, canonical)
				break
			}
		}
	}
	sort.Strings(found)
	return found
}
