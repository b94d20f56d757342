package churn

import (
	"time"

	"github.com/mbd888/churnwatch/internal/features"
)

// ScoredCustomer is a customer's features plus everything derived from
// its churn probability.
type ScoredCustomer struct {
	Key          string          `json:"key"`
	UserID       string          `json:"userId,omitempty"`
	Email        string          `json:"email,omitempty"`
	Features     features.Vector `json:"features"`
	LastActivity time.Time       `json:"lastActivity"`
	Probability  float64         `json:"churnProbability"`
	Tier         RiskTier        `json:"riskLevel"`
	Segment      Segment         `json:"segment"`
	Churned      bool            `json:"churned"`
	RiskFactors  []string        `json:"topRiskFactors"`
	Actions      []string        `json:"recommendedActions"`
}

// Comparison holds week-over-week percentage changes.
type Comparison struct {
	HighRisk  float64 `json:"highRisk"`
	Churned   float64 `json:"churned"`
	Retention float64 `json:"retention"`
}

// Summary is the headline block of a weekly report.
type Summary struct {
	TotalCustomers      int        `json:"totalCustomers"`
	HighRiskCount       int        `json:"highRiskCount"`
	ChurnedThisWeek     int        `json:"churnedThisWeek"`
	RetentionRate       float64    `json:"retentionRate"`
	AvgChurnProbability float64    `json:"avgChurnProbability"`
	PrevWeekComparison  Comparison `json:"prevWeekComparison"`
}

// Trend directions for segment breakdowns.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// SegmentBreakdown describes one segment in a report.
type SegmentBreakdown struct {
	Segment   Segment `json:"segment"`
	Count     int     `json:"count"`
	RiskLevel float64 `json:"riskLevel"` // average churn probability, percent
	Trend     string  `json:"trend"`
}

// Impact levels for report risk factors.
const (
	ImpactHigh   = "High"
	ImpactMedium = "Medium"
)

// RiskFactor is a frequently seen driver among high-risk customers.
type RiskFactor struct {
	Factor string `json:"factor"`
	Impact string `json:"impact"`
}

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Recommendation is a report-level suggested action.
type Recommendation struct {
	Action         string `json:"action"`
	Priority       string `json:"priority"`
	ExpectedImpact string `json:"expectedImpact"`
}
