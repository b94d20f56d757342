package churn

import "fmt"

const retentionReviewBelow = 95

// NoActivityInsight is the only insight of a window without events.
const NoActivityInsight = "No events were recorded for this week."

// Insights returns the ordered insight lines for a non-empty window.
func Insights(m Metrics) []string {
	var out []string
	if m.HighRiskCount > 0 {
		out = append(out, fmt.Sprintf("%d customers are currently classified as high churn risk.", m.HighRiskCount))
	}
	if m.ChurnedCount > 0 {
		out = append(out, fmt.Sprintf("%d customers are estimated to have churned this week based on model predictions.", m.ChurnedCount))
	}
	out = append(out, fmt.Sprintf("Average churn probability across your base is %.1f%%.", m.AvgProbability*100))
	return out
}

// Recommendations returns report-level actions, highest priority first.
func Recommendations(m Metrics) []Recommendation {
	var out []Recommendation
	if m.HighRiskCount > 0 {
		out = append(out, Recommendation{
			Action:         "Launch a targeted win-back campaign for high-risk customers with personalized offers.",
			Priority:       PriorityHigh,
			ExpectedImpact: "Reduce churn among the riskiest segment and protect short-term revenue.",
		})
	}
	out = append(out, Recommendation{
		Action:         "Monitor segments with rising risk levels and adjust messaging or promotions accordingly.",
		Priority:       PriorityMedium,
		ExpectedImpact: "Stabilize churn trends and prevent further deterioration.",
	})
	if m.RetentionRate < retentionReviewBelow {
		out = append(out, Recommendation{
			Action:         "Review your onboarding and post-purchase flows to improve early-stage retention.",
			Priority:       PriorityMedium,
			ExpectedImpact: "Increase overall retention rate over the coming weeks.",
		})
	}
	return out
}
