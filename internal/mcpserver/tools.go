package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the churnwatch MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGenerateWeeklyReport = mcp.NewTool("generate_weekly_report",
	mcp.WithDescription(
		"Generate the weekly customer churn report for a store. "+
			"Returns customer counts, high-risk and churned counts, retention rate, "+
			"week-over-week changes, key insights, top risk factors, segment breakdown, "+
			"recommendations and an executive summary."),
	mcp.WithString("client_id",
		mcp.Required(),
		mcp.Description("The store's client id (e.g. 'acme')")),
	mcp.WithString("week_ending",
		mcp.Required(),
		mcp.Description("Last day of the reporting week, YYYY-MM-DD. The week covers the 7 days ending on this date.")),
)

var ToolListAtRiskCustomers = mcp.NewTool("list_at_risk_customers",
	mcp.WithDescription(
		"List the customers most likely to churn in a given week, highest risk first, "+
			"with their spend, main risk factors and suggested retention actions. "+
			"Use this after generate_weekly_report to decide who to contact."),
	mcp.WithString("client_id",
		mcp.Required(),
		mcp.Description("The store's client id (e.g. 'acme')")),
	mcp.WithString("week_ending",
		mcp.Required(),
		mcp.Description("Last day of the reporting week, YYYY-MM-DD")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of customers to return (default 20, max 500)")),
)
