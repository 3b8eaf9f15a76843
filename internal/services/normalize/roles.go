package normalize

import (
	"regexp"

	"github.com/ternarybob/jobhound/internal/models"
)

// roleRule binds one family to its title patterns. Rules are evaluated
// in slice order and the first match wins, so placement is part of the
// mapping: engineering_management sits before software_engineering and
// infrastructure so "Engineering Manager, Platform" is a management
// role, and data sits before both so ML titles do not drift into SE.
type roleRule struct {
	family   models.RoleFamily
	patterns []*regexp.Regexp
}

func rulePatterns(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		compiled[i] = regexp.MustCompile("(?i)" + expr)
	}
	return compiled
}

var roleRules = []roleRule{
	{models.RoleEngineeringManagement, rulePatterns(
		`engineering\s*manager`,
		`eng\s*manager`,
		`manager.{0,20}engineering`,
		`technical\s*lead`,
		`tech\s*lead`,
		`team\s*lead`,
		`director.{0,20}engineering`,
		`vp.{0,20}engineering`,
		`head\s*of\s*engineering`,
		`\bcto\b`,
	)},
	{models.RoleData, rulePatterns(
		`data\s*engineer`,
		`data\s*scientist`,
		`machine\s*learning`,
		`\bml\s*engineer`,
		`\bai\s*engineer`,
		`analytics`,
		`data\s*analyst`,
		`business\s*intelligence`,
	)},
	{models.RoleInfrastructure, rulePatterns(
		`devops`,
		`\bsre\b`,
		`site\s*reliability`,
		`infrastructure`,
		`cloud\s*engineer`,
		`systems?\s*engineer`,
		`network\s*engineer`,
		`security\s*engineer`,
		`solutions?\s*architect`,
		`platform\s*engineer`,
	)},
	{models.RoleDesign, rulePatterns(
		`product\s*designer`,
		`ux\s*designer`,
		`ui\s*designer`,
		`ux/ui`,
		`user\s*experience`,
		`user\s*interface`,
		`ux\s*researcher`,
		`design\s*lead`,
		`\bdesigner\b`,
	)},
	{models.RoleProduct, rulePatterns(
		`product\s*manager`,
		`product\s*owner`,
		`program\s*manager`,
		`technical\s*program`,
		`project\s*manager`,
		`scrum\s*master`,
		`director.{0,20}product`,
		`vp.{0,20}product`,
		`head\s*of\s*product`,
		`chief\s*product\s*officer`,
	)},
	{models.RoleSales, rulePatterns(
		`sales\s*engineer`,
		`solutions?\s*engineer`,
		`pre-?sales`,
		`account\s*executive`,
		`account\s*manager`,
		`sales\s*representative`,
		`business\s*development`,
		`sales\s*manager`,
		`\bsales\b`,
	)},
	{models.RoleCustomerSuccess, rulePatterns(
		`customer\s*success`,
		`customer\s*support`,
		`customer\s*experience`,
		`support\s*engineer`,
		`technical\s*support`,
	)},
	// developer relations titles carry "developer" but are marketing
	// roles, so they must outrank the software_engineering catch-alls
	{models.RoleMarketing, rulePatterns(
		`developer\s*advocate`,
		`developer\s*relations`,
		`\bdevrel\b`,
	)},
	{models.RoleSoftwareEngineering, rulePatterns(
		`software\s*engineer`,
		`software\s*developer`,
		`\bdeveloper\b`,
		`\bprogrammer\b`,
		`front-?\s?end`,
		`back-?\s?end`,
		`full-?\s?stack`,
		`mobile\s*(developer|engineer)`,
		`ios\s*(developer|engineer)`,
		`android\s*(developer|engineer)`,
		`web\s*(developer|engineer)`,
		`api\s*(developer|engineer)`,
		`qa\s*engineer`,
		`quality\s*engineer`,
		`test\s*engineer`,
		`\bsdet\b`,
		`\bengineer\b`,
	)},
	{models.RoleMarketing, rulePatterns(
		`marketing`,
		`\bgrowth\b`,
		`content\s*writer`,
		`copywriter`,
		`\bbrand\b`,
		`communications`,
	)},
	{models.RoleOperations, rulePatterns(
		`operations`,
		`\bops\s*manager`,
		`chief\s*of\s*staff`,
		`\blogistics\b`,
		`supply\s*chain`,
	)},
	{models.RolePeople, rulePatterns(
		`\brecruiter\b`,
		`\brecruiting\b`,
		`\btalent\b`,
		`\bhr\b`,
		`human\s*resources`,
		`\bpeople\b`,
		`workplace`,
	)},
	{models.RoleFinance, rulePatterns(
		`finance`,
		`financial`,
		`accountant`,
		`accounting`,
		`controller`,
		`\bcfo\b`,
		`payroll`,
		`\btax\b`,
	)},
	{models.RoleLegal, rulePatterns(
		`\blegal\b`,
		`\bcounsel\b`,
		`attorney`,
		`\blawyer\b`,
		`compliance`,
		`paralegal`,
	)},
}

// specializationRules tag roles within a family; again first match
// wins, with fullstack ahead of frontend/backend so combined titles do
// not split.
var specializationRules = []struct {
	tag      string
	patterns []*regexp.Regexp
}{
	{"fullstack", rulePatterns(`full-?\s?stack`)},
	{"frontend", rulePatterns(`front-?\s?end`, `\breact\b`, `\bvue\b`, `\bangular\b`, `ui\s*engineer`)},
	{"backend", rulePatterns(`back-?\s?end`, `\bserver-?side\b`, `\bapi\b`)},
	{"ios", rulePatterns(`\bios\b`, `\bswift\b`, `objective-c`)},
	{"android", rulePatterns(`\bandroid\b`, `\bkotlin\b`)},
	{"mobile", rulePatterns(`\bmobile\b`, `react\s*native`, `\bflutter\b`)},
	{"sre", rulePatterns(`\bsre\b`, `site\s*reliability`)},
	{"devops", rulePatterns(`dev\s*-?ops`)},
	{"security", rulePatterns(`security`, `\binfosec\b`, `\bappsec\b`, `cybersecurity`)},
	{"ml", rulePatterns(`machine\s*learning`, `\bml\b`, `deep\s*learning`, `\bllm\b`)},
	{"data", rulePatterns(`data\s*engineer`, `data\s*pipeline`, `\betl\b`)},
	{"cloud", rulePatterns(`\baws\b`, `\bazure\b`, `\bgcp\b`, `\bcloud\b`)},
	{"platform", rulePatterns(`\bplatform\b`)},
}

// mapRole resolves the role family and optional specialization for a
// job title.
func mapRole(title string) (models.RoleFamily, string) {
	family := models.RoleOther
	for _, rule := range roleRules {
		if matchesAny(rule.patterns, title) {
			family = rule.family
			break
		}
	}

	specialization := ""
	for _, rule := range specializationRules {
		if matchesAny(rule.patterns, title) {
			specialization = rule.tag
			break
		}
	}
	return family, specialization
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
