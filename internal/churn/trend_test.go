package churn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func scored(prob float64, seg Segment) *ScoredCustomer {
	p := DefaultRiskPolicy()
	return &ScoredCustomer{Probability: prob, Tier: p.Tier(prob), Segment: seg, Churned: p.IsChurned(prob)}
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 0.0, PercentChange(5, 0))
	assert.Equal(t, 0.0, PercentChange(0, 0))
	assert.Equal(t, 100.0, PercentChange(4, 2))
	assert.Equal(t, -50.0, PercentChange(1, 2))
}

func TestMeasure(t *testing.T) {
	m := Measure([]*ScoredCustomer{
		scored(0.85, SegmentRegular),
		scored(0.2, SegmentNew),
	})
	assert.Equal(t, 2, m.TotalCustomers)
	assert.Equal(t, 1, m.HighRiskCount)
	assert.Equal(t, 1, m.ChurnedCount)
	assert.InDelta(t, 50.0, m.RetentionRate, 1e-9)
	assert.InDelta(t, 0.525, m.AvgProbability, 1e-9)
	assert.InDelta(t, 85.0, m.SegmentRisk[SegmentRegular], 1e-9)
}

func TestMeasure_Empty(t *testing.T) {
	m := Measure(nil)
	assert.Equal(t, 0, m.TotalCustomers)
	assert.Equal(t, 100.0, m.RetentionRate)
	assert.Equal(t, 0.0, m.AvgProbability)
}

func TestCompare(t *testing.T) {
	cur := Metrics{HighRiskCount: 5, ChurnedCount: 3, RetentionRate: 90}
	prev := Metrics{HighRiskCount: 0, ChurnedCount: 2, RetentionRate: 96}

	cmp := Compare(cur, &prev)
	assert.Equal(t, 0.0, cmp.HighRisk)
	assert.Equal(t, 50.0, cmp.Churned)
	assert.Equal(t, -6.3, cmp.Retention)

	assert.Equal(t, Comparison{}, Compare(cur, nil))
}

func TestNewSummary_Rounding(t *testing.T) {
	m := Metrics{TotalCustomers: 3, HighRiskCount: 1, ChurnedCount: 1, RetentionRate: 200.0 / 3, AvgProbability: 0.123456}
	s := NewSummary(m, Comparison{})
	assert.Equal(t, 66.7, s.RetentionRate)
	assert.Equal(t, 0.1235, s.AvgChurnProbability)
}

func TestSegments(t *testing.T) {
	cur := Measure([]*ScoredCustomer{
		scored(0.2, SegmentNew),
		scored(0.5, SegmentRegular),
		scored(0.9, SegmentHighValue),
		scored(0.3, SegmentOccasional),
	})
	prev := Measure([]*ScoredCustomer{
		scored(0.1, SegmentNew),
		scored(0.5, SegmentRegular),
		scored(0.95, SegmentHighValue),
	})

	got := Segments(cur, &prev)
	assert.Equal(t, []SegmentBreakdown{
		{Segment: SegmentHighValue, Count: 1, RiskLevel: 90, Trend: TrendDown},
		{Segment: SegmentRegular, Count: 1, RiskLevel: 50, Trend: TrendStable},
		{Segment: SegmentOccasional, Count: 1, RiskLevel: 30, Trend: TrendStable},
		{Segment: SegmentNew, Count: 1, RiskLevel: 20, Trend: TrendUp},
	}, got)

	for _, b := range Segments(cur, nil) {
		assert.Equal(t, TrendStable, b.Trend)
	}
	assert.Empty(t, Segments(Measure(nil), nil))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 12.3, Round(12.345, 1))
	assert.Equal(t, -6.3, Round(-6.25, 1))
}
