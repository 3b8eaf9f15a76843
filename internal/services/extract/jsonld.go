package extract

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/models"
)

// jsonLDJobs pulls schema.org JobPosting entries out of a page's
// ld+json script blocks. Postings may sit at the top level, inside a
// list, or nested under @graph, itemListElement, or mainEntity.
func jsonLDJobs(doc *goquery.Document, pageURL string) []*models.RawJob {
	var jobs []*models.RawJob
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		var data interface{}
		if err := json.Unmarshal([]byte(sel.Text()), &data); err != nil {
			return
		}
		walkJSONLD(data, pageURL, &jobs)
	})
	return jobs
}

func walkJSONLD(data interface{}, pageURL string, jobs *[]*models.RawJob) {
	switch v := data.(type) {
	case []interface{}:
		for _, item := range v {
			walkJSONLD(item, pageURL, jobs)
		}
	case map[string]interface{}:
		if ldString(v["@type"]) == "JobPosting" {
			if job := jobFromJSONLD(v, pageURL); job != nil {
				*jobs = append(*jobs, job)
			}
		}
		for _, key := range []string{"@graph", "itemListElement", "mainEntity", "item"} {
			if nested, ok := v[key]; ok {
				walkJSONLD(nested, pageURL, jobs)
			}
		}
	}
}

func jobFromJSONLD(data map[string]interface{}, pageURL string) *models.RawJob {
	title := ldString(data["title"])
	if title == "" {
		title = ldString(data["name"])
	}
	if title == "" {
		return nil
	}

	sourceURL := ldString(data["url"])
	if sourceURL == "" {
		sourceURL = pageURL
	} else {
		sourceURL = common.ResolveURL(pageURL, sourceURL)
	}

	return &models.RawJob{
		SourceURL:      sourceURL,
		TitleRaw:       cleanText(title),
		DescriptionRaw: ldString(data["description"]),
		LocationRaw:    ldLocation(data["jobLocation"]),
		EmploymentRaw:  ldString(data["employmentType"]),
		SalaryRaw:      ldSalary(data["baseSalary"]),
		PostedAtRaw:    ldString(data["datePosted"]),
	}
}

// ldString reads a value that schema.org allows as either a string or a
// single-element list of strings.
func ldString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		if len(t) > 0 {
			return ldString(t[0])
		}
	}
	return ""
}

// ldLocation flattens the jobLocation field, which shows up as a plain
// string, a Place with a PostalAddress, or a list of either.
func ldLocation(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		if len(t) > 0 {
			return ldLocation(t[0])
		}
	case map[string]interface{}:
		if addr, ok := t["address"].(map[string]interface{}); ok {
			loc := joinLocation(
				ldString(addr["addressLocality"]),
				ldString(addr["addressRegion"]),
				ldString(addr["addressCountry"]),
			)
			if loc != "" {
				return loc
			}
		}
		if addr := ldString(t["address"]); addr != "" {
			return addr
		}
		return ldString(t["name"])
	}
	return ""
}

// ldSalary renders a baseSalary MonetaryAmount as "CUR min - max" so the
// normalizer's salary parser can treat it like any other raw string.
func ldSalary(v interface{}) string {
	amount, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	currency := ldString(amount["currency"])
	value, ok := amount["value"].(map[string]interface{})
	if !ok {
		return ""
	}
	minVal, hasMin := ldNumber(value["minValue"])
	maxVal, hasMax := ldNumber(value["maxValue"])
	if !hasMin && !hasMax {
		if single, has := ldNumber(value["value"]); has {
			minVal, hasMin = single, true
		}
	}

	var s string
	switch {
	case hasMin && hasMax:
		s = formatNumber(minVal) + " - " + formatNumber(maxVal)
	case hasMin:
		s = formatNumber(minVal) + "+"
	case hasMax:
		s = "up to " + formatNumber(maxVal)
	default:
		return ""
	}
	if currency != "" {
		return currency + " " + s
	}
	return s
}

func ldNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// cleanText collapses runs of whitespace into single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// joinLocation joins the non-empty parts with commas.
func joinLocation(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}
