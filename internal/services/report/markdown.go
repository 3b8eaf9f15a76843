package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/jobhound/internal/models"
)

// MatchReportRow pairs a match with the job and company it points at
// for rendering
type MatchReportRow struct {
	Match   *models.Match
	Job     *models.Job
	Company *models.Company
}

// BuildMatchReport renders a candidate's current matches as markdown,
// ready for ConvertMarkdownToPDF.
func BuildMatchReport(candidate *models.CandidateProfile, rows []MatchReportRow, generatedAt time.Time) string {
	var b strings.Builder

	who := candidate.Name
	if who == "" {
		who = candidate.Email
	}
	fmt.Fprintf(&b, "# Job Matches for %s\n\n", who)
	fmt.Fprintf(&b, "Generated %s. %d matching %s.\n\n",
		generatedAt.Format("Jan 2, 2006"), len(rows), plural(len(rows), "role", "roles"))

	if len(rows) == 0 {
		b.WriteString("No matching roles right now. Matches refresh after every pipeline run.\n")
		return b.String()
	}

	b.WriteString("| # | Score | Role | Company | Location | Posted |\n")
	b.WriteString("|---|-------|------|---------|----------|--------|\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "| %d | %.2f | %s | %s | %s | %s |\n",
			row.Match.Rank,
			row.Match.Score,
			row.Job.Title,
			companyName(row.Company),
			jobLocation(row.Job),
			jobPosted(row.Job),
		)
	}
	b.WriteString("\n")

	for _, row := range rows {
		fmt.Fprintf(&b, "## %d. %s at %s\n\n", row.Match.Rank, row.Job.Title, companyName(row.Company))
		fmt.Fprintf(&b, "Score %.2f. %s\n\n", row.Match.Score, salaryLine(row.Job))

		for _, reason := range row.Match.Reasons {
			if reason.Detail != "" {
				fmt.Fprintf(&b, "- %s\n", reason.Detail)
			}
		}
		if len(row.Match.MatchedSkills) > 0 {
			fmt.Fprintf(&b, "- Matched skills: %s\n", strings.Join(row.Match.MatchedSkills, ", "))
		}
		fmt.Fprintf(&b, "\nApply: %s\n\n", row.Job.SourceURL)
	}

	return b.String()
}

// BuildMaintenanceReport renders a maintenance run summary as markdown.
func BuildMaintenanceReport(report *models.MaintenanceReport) string {
	var b strings.Builder

	b.WriteString("# Catalog Maintenance Report\n\n")
	if report.RunID != "" {
		fmt.Fprintf(&b, "Run %s, ", report.RunID)
	}
	fmt.Fprintf(&b, "%s to %s.\n\n",
		report.StartedAt.Format("Jan 2, 2006 15:04 MST"),
		report.CompletedAt.Format("15:04 MST"))

	fmt.Fprintf(&b, "- Companies checked: %d\n", report.CompaniesChecked)
	fmt.Fprintf(&b, "- Jobs verified: %d\n", report.JobsVerified)
	fmt.Fprintf(&b, "- Jobs delisted: %d\n", report.JobsDelisted)
	fmt.Fprintf(&b, "- Companies deactivated: %d\n\n", report.CompaniesDeactivated)

	if len(report.Results) == 0 {
		b.WriteString("No companies were due for verification.\n")
		return b.String()
	}

	b.WriteString("| Company | Checked | Verified | Delisted | Status |\n")
	b.WriteString("|---------|---------|----------|----------|--------|\n")
	for _, result := range report.Results {
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %s |\n",
			result.CompanyName,
			result.JobsChecked,
			result.Verified,
			result.Delisted,
			maintenanceStatus(result),
		)
	}

	return b.String()
}

func maintenanceStatus(result models.MaintenanceCompanyResult) string {
	switch {
	case result.Deactivated:
		return "deactivated"
	case result.Error != "":
		return result.Error
	default:
		return "ok"
	}
}

func companyName(company *models.Company) string {
	if company == nil {
		return "Unknown"
	}
	return company.Name
}

func jobLocation(job *models.Job) string {
	parts := make([]string, 0, 2)
	if job.LocationType != "" {
		parts = append(parts, string(job.LocationType))
	}
	if len(job.Locations) > 0 {
		parts = append(parts, job.Locations[0])
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func jobPosted(job *models.Job) string {
	if job.PostedAt == nil {
		return "-"
	}
	return job.PostedAt.Format("Jan 2")
}

func salaryLine(job *models.Job) string {
	switch {
	case job.MinSalary != nil && job.MaxSalary != nil:
		return fmt.Sprintf("Salary %s to %s.", formatSalary(*job.MinSalary), formatSalary(*job.MaxSalary))
	case job.MaxSalary != nil:
		return fmt.Sprintf("Salary up to %s.", formatSalary(*job.MaxSalary))
	case job.MinSalary != nil:
		return fmt.Sprintf("Salary from %s.", formatSalary(*job.MinSalary))
	default:
		return "Salary not listed."
	}
}

func formatSalary(amount int) string {
	if amount >= 1000 {
		return fmt.Sprintf("$%dk", amount/1000)
	}
	return fmt.Sprintf("$%d", amount)
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
