package churn

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mbd888/churnwatch/internal/features"
)

var (
	ErrInvalidPrediction = errors.New("scorer returned an invalid prediction")
)

// Scorer predicts churn probabilities for feature vectors, one per
// input, in input order.
type Scorer interface {
	Predict(ctx context.Context, vectors []features.Vector) ([]float64, error)
}

// Classifier scores customers and applies the tier and segment policies.
type Classifier struct {
	scorer   Scorer
	risk     RiskPolicy
	segments SegmentPolicy
}

// NewClassifier creates a classifier.
func NewClassifier(scorer Scorer, risk RiskPolicy, segments SegmentPolicy) *Classifier {
	return &Classifier{scorer: scorer, risk: risk, segments: segments}
}

// Risk returns the classifier's risk policy.
func (c *Classifier) Risk() RiskPolicy { return c.risk }

// Classify scores every customer in one batch. Scorer failures and
// malformed predictions are returned as errors; no customer is ever
// given a substitute probability.
func (c *Classifier) Classify(ctx context.Context, customers []*features.Customer) ([]*ScoredCustomer, error) {
	if len(customers) == 0 {
		return []*ScoredCustomer{}, nil
	}

	vectors := make([]features.Vector, len(customers))
	for i, cust := range customers {
		vectors[i] = cust.Features
	}

	probs, err := c.scorer.Predict(ctx, vectors)
	if err != nil {
		return nil, err
	}
	if len(probs) != len(customers) {
		return nil, fmt.Errorf("%w: got %d predictions for %d customers", ErrInvalidPrediction, len(probs), len(customers))
	}

	scored := make([]*ScoredCustomer, len(customers))
	for i, cust := range customers {
		p := probs[i]
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("%w: probability %v for %s", ErrInvalidPrediction, p, cust.Key)
		}
		tier := c.risk.Tier(p)
		seg := c.segments.Classify(cust.Features.TotalSpentUSD, cust.Features.TotalSessions)
		scored[i] = &ScoredCustomer{
			Key:          cust.Key,
			UserID:       cust.UserID,
			Email:        cust.Email,
			Features:     cust.Features,
			LastActivity: cust.LastActivity,
			Probability:  p,
			Tier:         tier,
			Segment:      seg,
			Churned:      c.risk.IsChurned(p),
			RiskFactors:  CustomerRiskFactors(cust.Features),
			Actions:      CustomerActions(tier, seg, cust.Features),
		}
	}
	return scored, nil
}
