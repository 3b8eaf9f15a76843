package normalize

import (
	"regexp"
	"strings"

	"github.com/ternarybob/jobhound/internal/models"
)

var (
	remotePatterns = rulePatterns(
		`\bremote\b`, `\bwork\s*from\s*home\b`, `\bwfh\b`, `\bdistributed\b`, `\banywhere\b`, `\b100%\s*remote\b`,
	)
	hybridPatterns = rulePatterns(
		`\bhybrid\b`, `\bflexible\s*work`, `\bremote.{0,30}office\b`, `\boffice.{0,30}remote\b`, `\b\d+\s*days?\s*(in\s*)?office\b`,
	)
	onsitePatterns = rulePatterns(
		`\bon-?site\b`, `\bin-?office\b`, `\bin\s*person\b`, `\boffice\s*based\b`, `\bno\s*remote\b`,
	)
)

// cityGazetteer maps lowercase city mentions to canonical names. Keys
// are matched as substrings of the lowercased raw location.
var cityGazetteer = []struct {
	key  string
	name string
}{
	{"san francisco", "San Francisco, CA"},
	{"bay area", "San Francisco Bay Area, CA"},
	{"silicon valley", "San Francisco Bay Area, CA"},
	{"new york", "New York, NY"},
	{"nyc", "New York, NY"},
	{"los angeles", "Los Angeles, CA"},
	{"seattle", "Seattle, WA"},
	{"austin", "Austin, TX"},
	{"boston", "Boston, MA"},
	{"chicago", "Chicago, IL"},
	{"denver", "Denver, CO"},
	{"atlanta", "Atlanta, GA"},
	{"miami", "Miami, FL"},
	{"washington, dc", "Washington, DC"},
	{"portland", "Portland, OR"},
	{"san diego", "San Diego, CA"},
	{"london", "London, UK"},
	{"manchester", "Manchester, UK"},
	{"berlin", "Berlin, Germany"},
	{"munich", "Munich, Germany"},
	{"toronto", "Toronto, Canada"},
	{"vancouver", "Vancouver, Canada"},
	{"montreal", "Montreal, Canada"},
	{"bangalore", "Bangalore, India"},
	{"bengaluru", "Bangalore, India"},
	{"hyderabad", "Hyderabad, India"},
	{"sydney", "Sydney, Australia"},
	{"melbourne", "Melbourne, Australia"},
	{"dublin", "Dublin, Ireland"},
	{"amsterdam", "Amsterdam, Netherlands"},
	{"paris", "Paris, France"},
	{"stockholm", "Stockholm, Sweden"},
	{"zurich", "Zurich, Switzerland"},
	{"singapore", "Singapore"},
	{"tokyo", "Tokyo, Japan"},
	{"tel aviv", "Tel Aviv, Israel"},
	{"sao paulo", "Sao Paulo, Brazil"},
	{"mexico city", "Mexico City, Mexico"},
}

var countryPatterns = []struct {
	name     string
	patterns []*regexp.Regexp
}{
	{"US", rulePatterns(`\bus\b`, `\bu\.s\.`, `\busa\b`, `\bunited\s*states\b`, `\bamerica\b`)},
	{"UK", rulePatterns(`\buk\b`, `\bu\.k\.`, `\bunited\s*kingdom\b`, `\bbritain\b`, `\bengland\b`)},
	{"EU", rulePatterns(`\beu\b`, `\beurope\b`, `\bemea\b`)},
	{"Canada", rulePatterns(`\bcanada\b`)},
	{"Australia", rulePatterns(`\baustralia\b`)},
	{"Germany", rulePatterns(`\bgermany\b`, `\bdeutschland\b`)},
	{"France", rulePatterns(`\bfrance\b`)},
	{"Netherlands", rulePatterns(`\bnetherlands\b`)},
	{"India", rulePatterns(`\bindia\b`)},
	{"Japan", rulePatterns(`\bjapan\b`)},
	{"Brazil", rulePatterns(`\bbrazil\b`)},
}

var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true,
}

var cityStatePattern = regexp.MustCompile(`\b([A-Z][A-Za-z.\s]+?),\s*([A-Z]{2})\b`)

// normalizeLocation classifies the work arrangement and resolves
// normalized place names from a raw location string.
func normalizeLocation(raw string) (models.LocationType, []string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	locType := detectLocationType(raw)
	locations := resolveLocations(raw)

	// A resolvable place with no stated arrangement means an office
	if locType == "" && len(locations) > 0 {
		locType = models.LocationOnsite
	}
	return locType, locations
}

func detectLocationType(raw string) models.LocationType {
	if matchesAny(remotePatterns, raw) {
		// "Remote (hybrid)" style strings are hybrid, not remote
		if matchesAny(hybridPatterns, raw) {
			return models.LocationHybrid
		}
		return models.LocationRemote
	}
	if matchesAny(hybridPatterns, raw) {
		return models.LocationHybrid
	}
	if matchesAny(onsitePatterns, raw) {
		return models.LocationOnsite
	}
	return ""
}

func resolveLocations(raw string) []string {
	lower := strings.ToLower(raw)
	var locations []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			locations = append(locations, name)
		}
	}

	for _, hub := range cityGazetteer {
		if strings.Contains(lower, hub.key) {
			add(hub.name)
		}
	}

	// City, ST pairs outside the gazetteer keep their own spelling
	for _, m := range cityStatePattern.FindAllStringSubmatch(raw, -1) {
		if usStates[m[2]] {
			add(strings.TrimSpace(m[1]) + ", " + m[2])
		}
	}

	for _, country := range countryPatterns {
		if matchesAny(country.patterns, raw) {
			add(country.name)
		}
	}

	return locations
}
