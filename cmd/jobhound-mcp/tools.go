package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSearchJobsTool returns the search_jobs tool definition
func createSearchJobsTool() mcp.Tool {
	return mcp.NewTool("search_jobs",
		mcp.WithDescription("Search the Jobhound job catalog by text and structured filters"),
		mcp.WithString("query",
			mcp.Description("Substring matched against job titles"),
		),
		mcp.WithString("role_family",
			mcp.Description("Filter by role family (software_engineering, data, product, design, ...)"),
		),
		mcp.WithString("seniority",
			mcp.Description("Filter by seniority (junior, mid, senior, staff, principal, ...)"),
		),
		mcp.WithString("location_type",
			mcp.Description("Filter by location type: remote, hybrid, onsite"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 10, max: 100)"),
		),
		mcp.WithBoolean("include_inactive",
			mcp.Description("Include delisted jobs in the results (default: false)"),
		),
	)
}

// createGetJobTool returns the get_job tool definition
func createGetJobTool() mcp.Tool {
	return mcp.NewTool("get_job",
		mcp.WithDescription("Retrieve a single job posting with its full description and company details"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID"),
		),
	)
}

// createListMatchesTool returns the list_matches tool definition
func createListMatchesTool() mcp.Tool {
	return mcp.NewTool("list_matches",
		mcp.WithDescription("List ranked job matches for a candidate, best score first"),
		mcp.WithString("candidate",
			mcp.Required(),
			mcp.Description("Candidate ID or email address"),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Minimum match score 0..1 (default: 0)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum matches to return (default: 20)"),
		),
	)
}

// createPipelineStatusTool returns the pipeline_status tool definition
func createPipelineStatusTool() mcp.Tool {
	return mcp.NewTool("pipeline_status",
		mcp.WithDescription("Show catalog totals and the most recent pipeline runs"),
		mcp.WithNumber("runs",
			mcp.Description("How many recent runs to include (default: 5)"),
		),
	)
}
