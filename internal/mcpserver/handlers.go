package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbd888/churnwatch/internal/reports"
	"github.com/mbd888/churnwatch/internal/validation"
)

const defaultAtRiskLimit = 20

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *ReportsClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *ReportsClient) *Handlers {
	return &Handlers{client: client}
}

func requiredArgs(req mcp.CallToolRequest) (clientID, weekEnding string, errResult *mcp.CallToolResult) {
	clientID = strings.TrimSpace(req.GetString("client_id", ""))
	weekEnding = strings.TrimSpace(req.GetString("week_ending", ""))
	if clientID == "" {
		return "", "", mcp.NewToolResultError("client_id is required")
	}
	if _, err := validation.ParseDate(weekEnding); err != nil {
		return "", "", mcp.NewToolResultError("week_ending must be a date in YYYY-MM-DD format")
	}
	return clientID, weekEnding, nil
}

// HandleGenerateWeeklyReport generates and renders a weekly report.
func (h *Handlers) HandleGenerateWeeklyReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clientID, weekEnding, errResult := requiredArgs(req)
	if errResult != nil {
		return errResult, nil
	}

	resp, err := h.client.GenerateReport(ctx, clientID, weekEnding)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate report: %v", err)), nil
	}
	return mcp.NewToolResultText(formatReport(resp)), nil
}

// HandleListAtRiskCustomers lists the week's high-risk customers.
func (h *Handlers) HandleListAtRiskCustomers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clientID, weekEnding, errResult := requiredArgs(req)
	if errResult != nil {
		return errResult, nil
	}
	limit := req.GetInt("limit", defaultAtRiskLimit)
	if limit <= 0 || limit > reports.MaxAtRiskLimit {
		return mcp.NewToolResultError(fmt.Sprintf("limit must be between 1 and %d", reports.MaxAtRiskLimit)), nil
	}

	list, err := h.client.ListAtRisk(ctx, clientID, weekEnding, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list at-risk customers: %v", err)), nil
	}
	return mcp.NewToolResultText(formatAtRisk(list)), nil
}

func signed(v float64) string {
	return fmt.Sprintf("%+.1f%%", v)
}

func formatReport(resp *reports.ReportResponse) string {
	r := resp.ReportData
	if r == nil {
		return "The API returned an empty report."
	}
	s := r.Summary

	var sb strings.Builder
	fmt.Fprintf(&sb, "Weekly churn report, week ending %s\n\n", r.WeekEnding)
	fmt.Fprintf(&sb, "Customers: %d\n", s.TotalCustomers)
	fmt.Fprintf(&sb, "High risk: %d (%s vs last week)\n", s.HighRiskCount, signed(s.PrevWeekComparison.HighRisk))
	fmt.Fprintf(&sb, "Churned this week: %d (%s)\n", s.ChurnedThisWeek, signed(s.PrevWeekComparison.Churned))
	fmt.Fprintf(&sb, "Retention: %.1f%% (%s)\n", s.RetentionRate, signed(s.PrevWeekComparison.Retention))
	fmt.Fprintf(&sb, "Average churn probability: %.1f%%\n", s.AvgChurnProbability*100)
	if !resp.Meta.PreviousWindowAvailable && s.TotalCustomers > 0 {
		sb.WriteString("(No comparable data for the previous week.)\n")
	}

	if len(r.KeyInsights) > 0 {
		sb.WriteString("\nKey insights:\n")
		for _, line := range r.KeyInsights {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
	}
	if len(r.TopRiskFactors) > 0 {
		sb.WriteString("\nTop risk factors:\n")
		for _, f := range r.TopRiskFactors {
			fmt.Fprintf(&sb, "- %s (%s impact)\n", f.Factor, f.Impact)
		}
	}
	if len(r.SegmentBreakdown) > 0 {
		sb.WriteString("\nSegments:\n")
		for _, seg := range r.SegmentBreakdown {
			fmt.Fprintf(&sb, "- %s: %d customers, %.1f%% avg risk, %s\n", seg.Segment, seg.Count, seg.RiskLevel, seg.Trend)
		}
	}
	if len(r.Recommendations) > 0 {
		sb.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&sb, "- [%s] %s\n", rec.Priority, rec.Action)
		}
	}

	fmt.Fprintf(&sb, "\nExecutive summary:\n%s\n", r.ExecutiveSummary)
	if resp.Meta.ReportID != "" {
		fmt.Fprintf(&sb, "\nReport %s, model %s\n", resp.Meta.ReportID, resp.Meta.ModelVersion)
	}
	return sb.String()
}

func formatAtRisk(list *reports.AtRiskList) string {
	var sb strings.Builder
	if len(list.Customers) == 0 {
		fmt.Fprintf(&sb, "No high-risk customers for the week ending %s.\n", list.WeekEnding)
		return sb.String()
	}

	fmt.Fprintf(&sb, "%d high-risk customers for the week ending %s", list.Total, list.WeekEnding)
	if len(list.Customers) < list.Total {
		fmt.Fprintf(&sb, " (showing %d)", len(list.Customers))
	}
	fmt.Fprintf(&sb, "\nRevenue at risk: $%.2f of $%.2f\n\n", list.RevenueAtRisk, list.TotalRevenue)

	for i, c := range list.Customers {
		fmt.Fprintf(&sb, "%d. %s <%s>: %.0f%% churn risk, $%.2f spent, last active %d days ago\n",
			i+1, c.Name, c.Email, c.ChurnProbability*100, c.TotalSpentUSD, c.DaysSinceLastActivity)
		if len(c.TopRiskFactors) > 0 {
			fmt.Fprintf(&sb, "   Factors: %s\n", strings.Join(c.TopRiskFactors, ", "))
		}
		if len(c.RecommendedActions) > 0 {
			fmt.Fprintf(&sb, "   Next step: %s\n", c.RecommendedActions[0])
		}
	}
	return sb.String()
}
