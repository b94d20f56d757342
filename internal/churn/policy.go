// Package churn holds the business rules applied to scored customers:
// risk tiers, value segments, week-over-week trends, risk factors,
// insights and recommended actions.
//
// Everything here is a pure function of its inputs. Thresholds are
// policies so operators can tune them without touching aggregation.
package churn

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPolicy = errors.New("invalid churn policy")
)

// RiskTier buckets a churn probability.
type RiskTier string

const (
	TierLow    RiskTier = "Low"
	TierMedium RiskTier = "Medium"
	TierHigh   RiskTier = "High"
)

// Segment buckets a customer by spend and engagement.
type Segment string

const (
	SegmentNew        Segment = "New"
	SegmentOccasional Segment = "Occasional"
	SegmentRegular    Segment = "Regular"
	SegmentHighValue  Segment = "High-Value"
)

// SegmentOrder is the order segments are listed in a report.
var SegmentOrder = []Segment{SegmentHighValue, SegmentRegular, SegmentOccasional, SegmentNew}

// Default thresholds.
const (
	DefaultMediumThreshold  = 0.40
	DefaultHighThreshold    = 0.70
	DefaultChurnedThreshold = 0.80
)

// RiskPolicy maps probabilities to tiers. Lower bounds are inclusive.
// Churned is a separate, stricter rule and does not affect the tier.
type RiskPolicy struct {
	MediumThreshold  float64
	HighThreshold    float64
	ChurnedThreshold float64
}

// DefaultRiskPolicy returns the standard 0.40 / 0.70 / 0.80 policy.
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		MediumThreshold:  DefaultMediumThreshold,
		HighThreshold:    DefaultHighThreshold,
		ChurnedThreshold: DefaultChurnedThreshold,
	}
}

// Tier returns the risk tier for probability p.
func (p RiskPolicy) Tier(prob float64) RiskTier {
	switch {
	case prob >= p.HighThreshold:
		return TierHigh
	case prob >= p.MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// IsChurned reports whether prob counts as churned this week.
func (p RiskPolicy) IsChurned(prob float64) bool {
	return prob >= p.ChurnedThreshold
}

// Validate checks 0 <= medium < high <= 1 and 0 < churned <= 1.
func (p RiskPolicy) Validate() error {
	if p.MediumThreshold < 0 || p.HighThreshold > 1 || p.MediumThreshold >= p.HighThreshold {
		return fmt.Errorf("%w: tier thresholds must satisfy 0 <= medium (%v) < high (%v) <= 1",
			ErrInvalidPolicy, p.MediumThreshold, p.HighThreshold)
	}
	if p.ChurnedThreshold <= 0 || p.ChurnedThreshold > 1 {
		return fmt.Errorf("%w: churned threshold %v must be in (0, 1]", ErrInvalidPolicy, p.ChurnedThreshold)
	}
	return nil
}

// SegmentThreshold qualifies a customer for a segment when either bound
// is reached.
type SegmentThreshold struct {
	Spend    float64
	Sessions int
}

func (t SegmentThreshold) matches(spend float64, sessions int) bool {
	return spend >= t.Spend || sessions >= t.Sessions
}

// SegmentPolicy is an ordered cascade: High-Value, then Regular, then
// Occasional; anything else is New.
type SegmentPolicy struct {
	HighValue  SegmentThreshold
	Regular    SegmentThreshold
	Occasional SegmentThreshold
}

// DefaultSegmentPolicy returns the standard cascade
// (1000/40, 200/15, 50/5).
func DefaultSegmentPolicy() SegmentPolicy {
	return SegmentPolicy{
		HighValue:  SegmentThreshold{Spend: 1000, Sessions: 40},
		Regular:    SegmentThreshold{Spend: 200, Sessions: 15},
		Occasional: SegmentThreshold{Spend: 50, Sessions: 5},
	}
}

// Classify returns the first segment whose threshold matches.
func (p SegmentPolicy) Classify(spend float64, sessions int) Segment {
	switch {
	case p.HighValue.matches(spend, sessions):
		return SegmentHighValue
	case p.Regular.matches(spend, sessions):
		return SegmentRegular
	case p.Occasional.matches(spend, sessions):
		return SegmentOccasional
	default:
		return SegmentNew
	}
}

// Validate requires thresholds to strictly decrease down the cascade and
// stay positive.
func (p SegmentPolicy) Validate() error {
	if p.Occasional.Spend <= 0 || p.Occasional.Sessions <= 0 {
		return fmt.Errorf("%w: occasional thresholds must be positive", ErrInvalidPolicy)
	}
	if p.HighValue.Spend <= p.Regular.Spend || p.Regular.Spend <= p.Occasional.Spend {
		return fmt.Errorf("%w: spend thresholds must decrease from high-value to occasional", ErrInvalidPolicy)
	}
	if p.HighValue.Sessions <= p.Regular.Sessions || p.Regular.Sessions <= p.Occasional.Sessions {
		return fmt.Errorf("%w: session thresholds must decrease from high-value to occasional", ErrInvalidPolicy)
	}
	return nil
}
