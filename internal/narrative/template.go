package narrative

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mbd888/churnwatch/internal/churn"
)

// NoActivitySummary is used verbatim for windows without events.
const NoActivitySummary = "No activity data was available for this week, so a churn report could not be generated."

// Input is the assembled report content a summary is written from.
type Input struct {
	Summary         churn.Summary            `json:"summary"`
	KeyInsights     []string                 `json:"keyInsights"`
	Segments        []churn.SegmentBreakdown `json:"segmentBreakdown"`
	RiskFactors     []churn.RiskFactor       `json:"topRiskFactors"`
	Recommendations []churn.Recommendation   `json:"recommendations"`
}

// Template renders the deterministic fallback summary from the numbers.
func Template(s churn.Summary) string {
	return fmt.Sprintf(
		"This week you had %d active customers, with %d currently flagged as high churn risk. "+
			"Overall retention remained at %.1f%%. "+
			"Review the key insights and recommended actions below to see how you can reduce churn next week.",
		s.TotalCustomers, s.HighRiskCount, s.RetentionRate)
}

// BuildPrompt renders the instruction sent to the text engine.
func BuildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are an analyst writing a short weekly report for a non-technical business owner.\n\n")
	b.WriteString("Here is the structured data for this week's retention & churn risk:\n\n")

	section := func(title string, v any) {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			data = []byte("null")
		}
		b.WriteString(title)
		b.WriteString(":\n")
		b.Write(data)
		b.WriteString("\n\n")
	}
	section("SUMMARY (numbers)", in.Summary)
	section("KEY INSIGHTS", in.KeyInsights)
	section("SEGMENT BREAKDOWN", in.Segments)
	section("TOP RISK FACTORS", in.RiskFactors)
	section("RECOMMENDATIONS", in.Recommendations)

	b.WriteString("Write a concise executive summary in plain business language.\n")
	b.WriteString("- 2-3 short paragraphs max\n")
	b.WriteString("- No jargon, no formulas\n")
	b.WriteString("- Focus on what is happening and why it matters\n")
	b.WriteString("- End with a positive, action-oriented tone\n")
	return b.String()
}
