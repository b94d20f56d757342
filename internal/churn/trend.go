package churn

import "math"

// Metrics are the unrounded aggregates of one window.
type Metrics struct {
	TotalCustomers int
	HighRiskCount  int
	ChurnedCount   int
	RetentionRate  float64 // percent
	AvgProbability float64
	SegmentCounts  map[Segment]int
	SegmentRisk    map[Segment]float64 // average probability, percent
}

// Measure aggregates a window of scored customers. An empty window has a
// retention rate of 100.
func Measure(customers []*ScoredCustomer) Metrics {
	m := Metrics{
		TotalCustomers: len(customers),
		RetentionRate:  100,
		SegmentCounts:  make(map[Segment]int),
		SegmentRisk:    make(map[Segment]float64),
	}
	if len(customers) == 0 {
		return m
	}

	var probSum float64
	segSum := make(map[Segment]float64)
	for _, c := range customers {
		probSum += c.Probability
		if c.Tier == TierHigh {
			m.HighRiskCount++
		}
		if c.Churned {
			m.ChurnedCount++
		}
		m.SegmentCounts[c.Segment]++
		segSum[c.Segment] += c.Probability
	}

	total := float64(len(customers))
	m.AvgProbability = probSum / total
	m.RetentionRate = 100 * (1 - float64(m.ChurnedCount)/total)
	for seg, n := range m.SegmentCounts {
		m.SegmentRisk[seg] = segSum[seg] / float64(n) * 100
	}
	return m
}

// PercentChange returns (cur-prev)/prev*100, or 0 when prev is 0.
func PercentChange(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// Compare computes week-over-week changes. A nil previous window yields
// all-zero deltas.
func Compare(cur Metrics, prev *Metrics) Comparison {
	if prev == nil {
		return Comparison{}
	}
	return Comparison{
		HighRisk:  Round(PercentChange(float64(cur.HighRiskCount), float64(prev.HighRiskCount)), 1),
		Churned:   Round(PercentChange(float64(cur.ChurnedCount), float64(prev.ChurnedCount)), 1),
		Retention: Round(PercentChange(cur.RetentionRate, prev.RetentionRate), 1),
	}
}

// NewSummary builds the rounded headline block.
func NewSummary(m Metrics, cmp Comparison) Summary {
	return Summary{
		TotalCustomers:      m.TotalCustomers,
		HighRiskCount:       m.HighRiskCount,
		ChurnedThisWeek:     m.ChurnedCount,
		RetentionRate:       Round(m.RetentionRate, 1),
		AvgChurnProbability: Round(m.AvgProbability, 4),
		PrevWeekComparison:  cmp,
	}
}

// SegmentTrend compares a segment's average risk with the previous
// window at display precision. Missing history is stable.
func SegmentTrend(seg Segment, cur Metrics, prev *Metrics) string {
	if prev == nil {
		return TrendStable
	}
	before, ok := prev.SegmentRisk[seg]
	if !ok {
		return TrendStable
	}
	now := Round(cur.SegmentRisk[seg], 1)
	before = Round(before, 1)
	switch {
	case now > before:
		return TrendUp
	case now < before:
		return TrendDown
	default:
		return TrendStable
	}
}

// Segments lists the non-empty segments of the current window in
// SegmentOrder.
func Segments(cur Metrics, prev *Metrics) []SegmentBreakdown {
	out := make([]SegmentBreakdown, 0, len(cur.SegmentCounts))
	for _, seg := range SegmentOrder {
		n := cur.SegmentCounts[seg]
		if n == 0 {
			continue
		}
		out = append(out, SegmentBreakdown{
			Segment:   seg,
			Count:     n,
			RiskLevel: Round(cur.SegmentRisk[seg], 1),
			Trend:     SegmentTrend(seg, cur, prev),
		})
	}
	return out
}

// Round rounds v to the given number of decimal places, halves away from
// zero.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
