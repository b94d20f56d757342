package churn

import "github.com/mbd888/churnwatch/internal/features"

const (
	inactiveDaysThreshold = 60
	browserSessionFloor   = 20
)

var segmentActions = map[Segment][]string{
	SegmentHighValue: {
		"Offer a personalized high-value discount or loyalty reward.",
		"Assign an account manager to reach out personally.",
	},
	SegmentRegular:    {"Send a limited-time discount on recently viewed items."},
	SegmentOccasional: {"Offer free shipping on the next order to encourage return."},
	SegmentNew:        {"Send a welcome-back onboarding email with curated picks."},
}

// CustomerActions returns retention actions for one customer: tier and
// segment rules first, then behavior rules. Duplicates are dropped.
func CustomerActions(tier RiskTier, segment Segment, v features.Vector) []string {
	var actions []string

	switch tier {
	case TierHigh:
		actions = append(actions, "Trigger immediate retention workflow for this customer.")
		actions = append(actions, segmentActions[segment]...)
	case TierMedium:
		actions = append(actions,
			"Monitor engagement and send a gentle reminder email.",
			"Include this customer in your next marketing campaign.",
		)
	default:
		actions = append(actions,
			"Include in loyalty and upsell campaigns.",
			"Reward this customer with small perks to maintain loyalty.",
		)
	}

	if v.DaysSinceLastActivity > inactiveDaysThreshold {
		actions = append(actions, "Send a reactivation email series highlighting new arrivals.")
	}
	if v.RemovedFromCart > 0 {
		actions = append(actions, "Send a cart recovery email with a small incentive.")
	}
	if v.RemovedFromWishlist > 0 {
		actions = append(actions, "Send updated recommendations based on wishlist changes.")
	}
	if v.TotalSessions > browserSessionFloor && v.TotalSpentUSD == 0 {
		actions = append(actions, "Offer a first-purchase discount to convert this browser.")
	}

	return dedupe(actions)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
