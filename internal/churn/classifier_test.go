package churn

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/churnwatch/internal/features"
)

type stubScorer struct {
	probs []float64
	err   error
	calls int
}

func (s *stubScorer) Predict(ctx context.Context, vectors []features.Vector) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.probs, nil
}

func newTestClassifier(s Scorer) *Classifier {
	return NewClassifier(s, DefaultRiskPolicy(), DefaultSegmentPolicy())
}

func TestClassifier_Classify(t *testing.T) {
	customers := []*features.Customer{
		{Key: "a", UserID: "a", Features: features.Vector{AddedToCart: 5, TotalSpentUSD: 100, TotalSessions: 1, DaysSinceLastActivity: 1}},
		{Key: "b", UserID: "b", Features: features.Vector{DaysSinceLastActivity: 40}},
	}
	c := newTestClassifier(&stubScorer{probs: []float64{0.85, 0.2}})

	got, err := c.Classify(context.Background(), customers)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, TierHigh, got[0].Tier)
	assert.True(t, got[0].Churned)
	assert.Equal(t, SegmentOccasional, got[0].Segment)
	assert.Equal(t, "Total Spent (USD)", got[0].RiskFactors[0])
	assert.Equal(t, "Trigger immediate retention workflow for this customer.", got[0].Actions[0])

	assert.Equal(t, TierLow, got[1].Tier)
	assert.False(t, got[1].Churned)
	assert.Equal(t, SegmentNew, got[1].Segment)
}

func TestClassifier_EmptySkipsScorer(t *testing.T) {
	s := &stubScorer{}
	got, err := newTestClassifier(s).Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, s.calls)
}

func TestClassifier_Errors(t *testing.T) {
	one := []*features.Customer{{Key: "a"}}
	scorerErr := errors.New("model server down")

	_, err := newTestClassifier(&stubScorer{err: scorerErr}).Classify(context.Background(), one)
	assert.ErrorIs(t, err, scorerErr)

	for _, probs := range [][]float64{{}, {0.1, 0.2}, {1.5}, {-0.1}, {math.NaN()}} {
		_, err := newTestClassifier(&stubScorer{probs: probs}).Classify(context.Background(), one)
		assert.ErrorIs(t, err, ErrInvalidPrediction, "probs %v", probs)
	}
}
