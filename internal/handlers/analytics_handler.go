package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
)

// AnalyticsHandler serves dashboard time series under /api/admin/analytics.
// Aggregation happens in process: the catalog is local and small enough
// that a full scan per request beats maintaining counters.
type AnalyticsHandler struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

func NewAnalyticsHandler(storage interfaces.StorageManager, logger arbor.ILogger) *AnalyticsHandler {
	return &AnalyticsHandler{
		storage: storage,
		logger:  logger,
	}
}

// TimeSeriesPoint is one day's value in a series
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

// sourceCount is one slice of the discovery source breakdown
type sourceCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// AnalyticsHandler handles GET /api/admin/analytics?days=
func (h *AnalyticsHandler) AnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	ctx := r.Context()

	days := QueryInt(r, "days", 30)
	if days < 7 {
		days = 7
	}
	if days > 90 {
		days = 90
	}

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -days)

	companies, err := h.storage.Companies().ListCompanies(ctx, &interfaces.CompanyFilter{})
	if err != nil {
		WriteError(w, err)
		return
	}
	jobs, err := h.storage.Jobs().ListJobs(ctx, &interfaces.JobFilter{})
	if err != nil {
		WriteError(w, err)
		return
	}
	crawlTimes, err := h.storage.Snapshots().ListCrawlTimes(ctx, since)
	if err != nil {
		WriteError(w, err)
		return
	}

	companyCreated := make(map[string]time.Time, len(companies))
	newCompanies := map[string]int{}
	sources := map[string]int{}
	totalCompanies := 0
	companiesAdded := 0
	for _, company := range companies {
		companyCreated[company.ID] = company.CreatedAt
		if company.IsActive {
			totalCompanies++
			name := company.Source
			if name == "" {
				name = "seed"
			}
			sources[name]++
		}
		if !company.CreatedAt.Before(since) {
			newCompanies[dayKey(company.CreatedAt)]++
			companiesAdded++
		}
	}

	newJobs := map[string]int{}
	delistedJobs := map[string]int{}
	// established tracks distinct already-known companies posting per day
	established := map[string]map[string]bool{}
	totalJobs := 0
	jobsAdded := 0
	jobsDelisted := 0
	for _, job := range jobs {
		if job.IsActive {
			totalJobs++
		}
		if !job.CreatedAt.Before(since) {
			day := dayKey(job.CreatedAt)
			newJobs[day]++
			jobsAdded++

			// A company older than a day at posting time counts as
			// established: its catalog grew rather than appeared
			if created, ok := companyCreated[job.CompanyID]; ok && created.Before(job.CreatedAt.AddDate(0, 0, -1)) {
				if established[day] == nil {
					established[day] = map[string]bool{}
				}
				established[day][job.CompanyID] = true
			}
		}
		if job.DelistedAt != nil && !job.DelistedAt.Before(since) {
			delistedJobs[dayKey(*job.DelistedAt)]++
			jobsDelisted++
		}
	}

	crawls := map[string]int{}
	for _, t := range crawlTimes {
		crawls[dayKey(t)]++
	}

	establishedCounts := make(map[string]int, len(established))
	for day, ids := range established {
		establishedCounts[day] = len(ids)
	}

	lsm, vlog := h.storage.DiskUsage()

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"crawls_per_day":                  toSeries(crawls),
		"new_companies_per_day":           toSeries(newCompanies),
		"new_jobs_per_day":                toSeries(newJobs),
		"delisted_jobs_per_day":           toSeries(delistedJobs),
		"companies_with_new_jobs_per_day": toSeries(establishedCounts),
		"sources":                         toSources(sources),
		"totals": map[string]int{
			"total_companies":        totalCompanies,
			"total_jobs":             totalJobs,
			"total_crawls_period":    len(crawlTimes),
			"jobs_added_period":      jobsAdded,
			"companies_added_period": companiesAdded,
			"jobs_delisted_period":   jobsDelisted,
		},
		"storage": map[string]int64{
			"lsm_bytes":       lsm,
			"value_log_bytes": vlog,
		},
		"days": days,
	})
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// toSeries flattens a day->count map into date-ordered points
func toSeries(counts map[string]int) []TimeSeriesPoint {
	points := make([]TimeSeriesPoint, 0, len(counts))
	for day, value := range counts {
		points = append(points, TimeSeriesPoint{Date: day, Value: value})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// toSources orders the source breakdown largest first
func toSources(counts map[string]int) []sourceCount {
	out := make([]sourceCount, 0, len(counts))
	for name, value := range counts {
		out = append(out, sourceCount{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}
