package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"
	"time"

	"github.com/mbd888/churnwatch/internal/features"
	"github.com/mbd888/churnwatch/internal/metrics"
)

// Artifact is the on-disk form of a logistic regression churn model.
//
//	{"modelVersion": "2025-01-lr", "featureOrder": [...8 names...],
//	 "intercept": -1.2, "coefficients": [...8 weights...]}
type Artifact struct {
	ModelVersion string    `json:"modelVersion"`
	FeatureOrder []string  `json:"featureOrder"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Validate checks the artifact matches the canonical feature layout.
func (a *Artifact) Validate() error {
	if !slices.Equal(a.FeatureOrder, features.FieldOrder) {
		return fmt.Errorf("%w: feature order %v does not match %v", ErrBadArtifact, a.FeatureOrder, features.FieldOrder)
	}
	if len(a.Coefficients) != len(features.FieldOrder) {
		return fmt.Errorf("%w: expected %d coefficients, got %d", ErrBadArtifact, len(features.FieldOrder), len(a.Coefficients))
	}
	for i, c := range a.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: coefficient %d is not finite", ErrBadArtifact, i)
		}
	}
	if math.IsNaN(a.Intercept) || math.IsInf(a.Intercept, 0) {
		return fmt.Errorf("%w: intercept is not finite", ErrBadArtifact)
	}
	return nil
}

// LogisticScorer evaluates a logistic regression model in process.
type LogisticScorer struct {
	artifact Artifact
}

// NewLogisticScorer validates the artifact and returns a scorer for it.
func NewLogisticScorer(a Artifact) (*LogisticScorer, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.ModelVersion == "" {
		a.ModelVersion = "logistic"
	}
	a.Coefficients = slices.Clone(a.Coefficients)
	return &LogisticScorer{artifact: a}, nil
}

// LoadLogisticScorer reads an artifact from a JSON file.
func LoadLogisticScorer(path string) (*LogisticScorer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	return NewLogisticScorer(a)
}

func (s *LogisticScorer) ModelVersion() string { return s.artifact.ModelVersion }

// Predict applies sigmoid(intercept + coefficients·x) to each vector.
func (s *LogisticScorer) Predict(ctx context.Context, vectors []features.Vector) ([]float64, error) {
	start := time.Now()
	defer func() { metrics.ScorerDuration.WithLabelValues("logistic").Observe(time.Since(start).Seconds()) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	probs := make([]float64, len(vectors))
	for i, v := range vectors {
		z := s.artifact.Intercept
		for j, x := range v.Values() {
			z += s.artifact.Coefficients[j] * x
		}
		probs[i] = sigmoid(z)
	}
	metrics.ScorerRequestsTotal.WithLabelValues("logistic", "ok").Inc()
	return probs, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
