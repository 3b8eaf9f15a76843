package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/interfaces"
	"github.com/ternarybob/jobhound/internal/models"
)

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

// handleSearchJobs implements the search_jobs tool
func handleSearchJobs(storage interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := request.GetInt("limit", 10)
		if limit > 100 {
			limit = 100
		}

		filter := &interfaces.JobFilter{
			Text:         request.GetString("query", ""),
			RoleFamily:   models.RoleFamily(request.GetString("role_family", "")),
			Seniority:    models.Seniority(request.GetString("seniority", "")),
			LocationType: models.LocationType(request.GetString("location_type", "")),
			Limit:        limit,
		}
		if !request.GetBool("include_inactive", false) {
			active := true
			filter.IsActive = &active
		}

		jobs, err := storage.Jobs().ListJobs(ctx, filter)
		if err != nil {
			logger.Error().Err(err).Msg("Job search failed")
			return textResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		return textResult(formatJobList(filter.Text, jobs, companyNames(ctx, storage, jobs))), nil
	}
}

// handleGetJob implements the get_job tool
func handleGetJob(storage interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return textResult("Error: job_id parameter is required"), nil
		}

		job, err := storage.Jobs().GetJob(ctx, jobID)
		if err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("GetJob failed")
			return textResult(fmt.Sprintf("Job not found: %v", err)), nil
		}

		var company *models.Company
		if job.CompanyID != "" {
			company, _ = storage.Companies().GetCompany(ctx, job.CompanyID)
		}

		return textResult(formatJob(job, company)), nil
	}
}

// handleListMatches implements the list_matches tool
func handleListMatches(storage interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ref, err := request.RequireString("candidate")
		if err != nil || ref == "" {
			return textResult("Error: candidate parameter is required"), nil
		}

		// Accept an ID first, then fall back to email lookup
		candidate, err := storage.Candidates().GetCandidate(ctx, ref)
		if err != nil {
			candidate, err = storage.Candidates().GetCandidateByEmail(ctx, ref)
		}
		if err != nil {
			logger.Error().Err(err).Str("candidate", ref).Msg("Candidate lookup failed")
			return textResult(fmt.Sprintf("Candidate not found: %v", err)), nil
		}

		minScore := request.GetFloat("min_score", 0)
		limit := request.GetInt("limit", 20)

		matches, err := storage.Matches().ListMatchesByCandidate(ctx, candidate.ID, minScore, limit)
		if err != nil {
			logger.Error().Err(err).Str("candidate_id", candidate.ID).Msg("Match listing failed")
			return textResult(fmt.Sprintf("Match listing error: %v", err)), nil
		}

		// Resolve job titles and company names for the formatter
		jobs := make(map[string]*models.Job, len(matches))
		companies := make(map[string]string)
		for _, m := range matches {
			job, err := storage.Jobs().GetJob(ctx, m.JobID)
			if err != nil {
				continue
			}
			jobs[m.JobID] = job
			if _, ok := companies[job.CompanyID]; !ok {
				if c, cerr := storage.Companies().GetCompany(ctx, job.CompanyID); cerr == nil {
					companies[job.CompanyID] = c.Name
				}
			}
		}

		return textResult(formatMatches(candidate, matches, jobs, companies)), nil
	}
}

// handlePipelineStatus implements the pipeline_status tool
func handlePipelineStatus(storage interfaces.StorageManager, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		runLimit := request.GetInt("runs", 5)

		runs, err := storage.Runs().ListRuns(ctx, runLimit, 0)
		if err != nil {
			logger.Error().Err(err).Msg("Run listing failed")
			return textResult(fmt.Sprintf("Status error: %v", err)), nil
		}

		companyStats, _ := storage.Companies().GetCompanyStats(ctx)
		jobStats, _ := storage.Jobs().GetJobStats(ctx)
		matchStats, _ := storage.Matches().GetMatchStats(ctx)

		return textResult(formatPipelineStatus(runs, companyStats, jobStats, matchStats)), nil
	}
}

// companyNames resolves the company name for each distinct company in jobs
func companyNames(ctx context.Context, storage interfaces.StorageManager, jobs []*models.Job) map[string]string {
	names := make(map[string]string)
	for _, job := range jobs {
		if _, ok := names[job.CompanyID]; ok {
			continue
		}
		if company, err := storage.Companies().GetCompany(ctx, job.CompanyID); err == nil {
			names[job.CompanyID] = company.Name
		}
	}
	return names
}
