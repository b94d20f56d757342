package churn

import (
	"math"
	"sort"

	"github.com/mbd888/churnwatch/internal/features"
)

const (
	customerFactorCount = 3
	reportFactorCount   = 5
	minHighImpactFreq   = 3
	highImpactShare     = 0.2
)

var factorLabels = map[string]string{
	"added_to_wishlist":        "Added to Wishlist",
	"removed_from_wishlist":    "Removed from Wishlist",
	"added_to_cart":            "Added to Cart",
	"removed_from_cart":        "Removed From Cart",
	"cart_quantity_updated":    "Cart Qty Updated",
	"total_sessions":           "Total Sessions",
	"days_since_last_activity": "Days Since Last Activity",
	"total_spent_usd":          "Total Spent (USD)",
}

// FactorLabel returns the display label for a feature name.
func FactorLabel(feature string) string {
	if label, ok := factorLabels[feature]; ok {
		return label
	}
	return feature
}

// CustomerRiskFactors returns the labels of the three largest features by
// raw value. Equal values keep their canonical feature order.
func CustomerRiskFactors(v features.Vector) []string {
	values := v.Values()
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] > values[idx[b]] })

	n := min(customerFactorCount, len(idx))
	labels := make([]string, 0, n)
	for _, i := range idx[:n] {
		labels = append(labels, FactorLabel(features.FieldOrder[i]))
	}
	return labels
}

// TopRiskFactors counts risk factor labels across high-tier customers and
// returns the five most frequent. Ties keep first-seen order. A factor
// has High impact when it appears at least max(3, 20% of high-risk
// customers) times.
func TopRiskFactors(customers []*ScoredCustomer) []RiskFactor {
	counts := make(map[string]int)
	var order []string
	highCount := 0

	for _, c := range customers {
		if c.Tier != TierHigh {
			continue
		}
		highCount++
		for _, f := range c.RiskFactors {
			if _, seen := counts[f]; !seen {
				order = append(order, f)
			}
			counts[f]++
		}
	}

	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })
	if len(order) > reportFactorCount {
		order = order[:reportFactorCount]
	}

	cutoff := math.Max(minHighImpactFreq, float64(highCount)*highImpactShare)
	result := make([]RiskFactor, 0, len(order))
	for _, f := range order {
		impact := ImpactMedium
		if float64(counts[f]) >= cutoff {
			impact = ImpactHigh
		}
		result = append(result, RiskFactor{Factor: f, Impact: impact})
	}
	return result
}
