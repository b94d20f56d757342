// Package scoring talks to churn models. The model itself is opaque:
// callers hand over feature vectors in canonical order and get one
// probability in [0,1] back per vector.
package scoring

import (
	"context"
	"errors"

	"github.com/mbd888/churnwatch/internal/features"
)

var (
	ErrUnavailable = errors.New("scoring service unavailable")
	ErrMalformed   = errors.New("scoring service returned a malformed response")
	ErrBadArtifact = errors.New("invalid model artifact")
)

// Scorer predicts churn probabilities. Results are order-preserving and
// have the same length as the input.
type Scorer interface {
	Predict(ctx context.Context, vectors []features.Vector) ([]float64, error)
	ModelVersion() string
}
