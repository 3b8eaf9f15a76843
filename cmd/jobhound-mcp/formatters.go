package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/jobhound/internal/models"
)

// formatJobList formats search results as markdown
func formatJobList(query string, jobs []*models.Job, companies map[string]string) string {
	var sb strings.Builder
	if query != "" {
		sb.WriteString(fmt.Sprintf("## Jobs matching \"%s\" (%d results)\n\n", query, len(jobs)))
	} else {
		sb.WriteString(fmt.Sprintf("## Jobs (%d results)\n\n", len(jobs)))
	}

	if len(jobs) == 0 {
		sb.WriteString("No jobs found.\n")
		return sb.String()
	}

	for i, job := range jobs {
		company := companies[job.CompanyID]
		if company == "" {
			company = job.CompanyID
		}
		sb.WriteString(fmt.Sprintf("### %d. %s at %s\n", i+1, job.Title, company))
		sb.WriteString(fmt.Sprintf("**ID:** %s\n", job.ID))
		sb.WriteString(fmt.Sprintf("**Role:** %s", job.RoleFamily))
		if job.Seniority != "" {
			sb.WriteString(fmt.Sprintf(" / %s", job.Seniority))
		}
		sb.WriteString("\n")
		if loc := formatLocation(job); loc != "" {
			sb.WriteString(fmt.Sprintf("**Location:** %s\n", loc))
		}
		if salary := formatSalary(job); salary != "" {
			sb.WriteString(fmt.Sprintf("**Salary:** %s\n", salary))
		}
		if job.SourceURL != "" {
			sb.WriteString(fmt.Sprintf("**URL:** %s\n", job.SourceURL))
		}
		if !job.IsActive {
			sb.WriteString("**Status:** delisted\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatJob formats a single job as markdown
func formatJob(job *models.Job, company *models.Company) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", job.Title))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", job.ID))
	if company != nil {
		sb.WriteString(fmt.Sprintf("**Company:** %s", company.Name))
		if company.WebsiteURL != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", company.WebsiteURL))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("**Role:** %s", job.RoleFamily))
	if job.RoleSpecialization != "" {
		sb.WriteString(fmt.Sprintf(" / %s", job.RoleSpecialization))
	}
	if job.Seniority != "" {
		sb.WriteString(fmt.Sprintf(" / %s", job.Seniority))
	}
	sb.WriteString("\n")
	if loc := formatLocation(job); loc != "" {
		sb.WriteString(fmt.Sprintf("**Location:** %s\n", loc))
	}
	if salary := formatSalary(job); salary != "" {
		sb.WriteString(fmt.Sprintf("**Salary:** %s\n", salary))
	}
	if job.EmploymentType != "" {
		sb.WriteString(fmt.Sprintf("**Employment:** %s\n", job.EmploymentType))
	}
	if len(job.Skills) > 0 {
		sb.WriteString(fmt.Sprintf("**Skills:** %s\n", strings.Join(job.Skills, ", ")))
	}
	if job.PostedAt != nil {
		sb.WriteString(fmt.Sprintf("**Posted:** %s\n", job.PostedAt.Format("2006-01-02")))
	}
	if job.SourceURL != "" {
		sb.WriteString(fmt.Sprintf("**URL:** %s\n", job.SourceURL))
	}
	if !job.IsActive {
		sb.WriteString(fmt.Sprintf("**Status:** delisted (%s)\n", job.DelistReason))
	}

	if job.Description != "" {
		sb.WriteString("\n## Description\n\n")
		sb.WriteString(job.Description)
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatMatches formats a candidate's ranked matches as markdown
func formatMatches(candidate *models.CandidateProfile, matches []*models.Match, jobs map[string]*models.Job, companies map[string]string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Matches for %s (%d results)\n\n", candidate.Email, len(matches)))

	if len(matches) == 0 {
		sb.WriteString("No matches found. Run the matching stage first.\n")
		return sb.String()
	}

	for i, m := range matches {
		title := m.JobID
		company := ""
		if job, ok := jobs[m.JobID]; ok {
			title = job.Title
			company = companies[job.CompanyID]
		}
		sb.WriteString(fmt.Sprintf("### %d. %s", i+1, title))
		if company != "" {
			sb.WriteString(fmt.Sprintf(" at %s", company))
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("**Score:** %.3f (rank %d)\n", m.Score, m.Rank))
		sb.WriteString(fmt.Sprintf("**Job ID:** %s\n", m.JobID))
		if len(m.MatchedSkills) > 0 {
			sb.WriteString(fmt.Sprintf("**Matched skills:** %s\n", strings.Join(m.MatchedSkills, ", ")))
		}
		for _, reason := range m.Reasons {
			sb.WriteString(fmt.Sprintf("- %s: %.2f", reason.Dimension, reason.Score))
			if reason.Detail != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", reason.Detail))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatPipelineStatus formats catalog totals and recent runs as markdown
func formatPipelineStatus(runs []*models.PipelineRun, companyStats *models.CompanyStats, jobStats *models.JobStats, matchStats *models.MatchStats) string {
	var sb strings.Builder
	sb.WriteString("## Pipeline Status\n\n")

	if companyStats != nil {
		sb.WriteString(fmt.Sprintf("**Companies:** %d total, %d active, %d crawled\n", companyStats.Total, companyStats.Active, companyStats.Crawled))
	}
	if jobStats != nil {
		sb.WriteString(fmt.Sprintf("**Jobs:** %d total, %d active, %d embedded\n", jobStats.Total, jobStats.Active, jobStats.Embedded))
	}
	if matchStats != nil {
		sb.WriteString(fmt.Sprintf("**Matches:** %d across %d candidates (avg score %.3f)\n", matchStats.TotalMatches, matchStats.Candidates, matchStats.AvgScore))
	}

	sb.WriteString("\n### Recent Runs\n\n")
	if len(runs) == 0 {
		sb.WriteString("No runs recorded.\n")
		return sb.String()
	}

	now := time.Now().UTC()
	for _, run := range runs {
		sb.WriteString(fmt.Sprintf("- **%s** [%s] started %s, took %s",
			run.Operation, run.Status, run.StartedAt.Format(time.RFC3339), run.Duration(now).Round(time.Second)))
		if run.Stats.Processed > 0 || run.Stats.Failed > 0 {
			sb.WriteString(fmt.Sprintf(" (%d processed, %d failed)", run.Stats.Processed, run.Stats.Failed))
		}
		if run.Error != "" {
			sb.WriteString(fmt.Sprintf(" - error: %s", run.Error))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatLocation(job *models.Job) string {
	parts := make([]string, 0, 2)
	if job.LocationType != "" {
		parts = append(parts, string(job.LocationType))
	}
	if len(job.Locations) > 0 {
		parts = append(parts, strings.Join(job.Locations, "; "))
	}
	return strings.Join(parts, " - ")
}

func formatSalary(job *models.Job) string {
	switch {
	case job.MinSalary != nil && job.MaxSalary != nil:
		return fmt.Sprintf("%d - %d", *job.MinSalary, *job.MaxSalary)
	case job.MinSalary != nil:
		return fmt.Sprintf("from %d", *job.MinSalary)
	case job.MaxSalary != nil:
		return fmt.Sprintf("up to %d", *job.MaxSalary)
	default:
		return ""
	}
}
