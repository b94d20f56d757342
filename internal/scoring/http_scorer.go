package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mbd888/churnwatch/internal/circuitbreaker"
	"github.com/mbd888/churnwatch/internal/features"
	"github.com/mbd888/churnwatch/internal/metrics"
	"github.com/mbd888/churnwatch/internal/retry"
)

// BreakerKey is the circuit breaker key of the remote model server.
const BreakerKey = "scorer"

const maxResponseBody = 16 << 20

// HTTPConfig configures a remote model server client.
type HTTPConfig struct {
	BaseURL string        // e.g. "http://model:8000"
	Timeout time.Duration // per attempt
	Retry   retry.Policy
}

// HTTPScorer calls a model server's POST /predict endpoint:
//
//	request:  {"instances": [{"added_to_wishlist": 0, ...}, ...]}
//	response: {"predictions": [{"probability": 0.83, "prediction": 1}, ...], "modelVersion": "..."}
//
// A prediction without a probability falls back to its 0/1 label.
// Network errors and 5xx responses are retried; 4xx are not.
type HTTPScorer struct {
	cfg        HTTPConfig
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker

	mu      sync.RWMutex
	version string
}

// NewHTTPScorer creates a remote scorer. breaker may be nil.
func NewHTTPScorer(cfg HTTPConfig, breaker *circuitbreaker.Breaker) *HTTPScorer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &HTTPScorer{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
		version: "remote",
	}
}

type predictRequest struct {
	Instances []features.Vector `json:"instances"`
}

type prediction struct {
	Probability *float64 `json:"probability"`
	Prediction  *int     `json:"prediction"`
}

type predictResponse struct {
	Predictions  []prediction `json:"predictions"`
	ModelVersion string       `json:"modelVersion"`
}

// ModelVersion returns the version reported by the last successful call.
func (s *HTTPScorer) ModelVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Predict scores vectors in a single batch call.
func (s *HTTPScorer) Predict(ctx context.Context, vectors []features.Vector) ([]float64, error) {
	if len(vectors) == 0 {
		return []float64{}, nil
	}

	body, err := json.Marshal(predictRequest{Instances: vectors})
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}

	start := time.Now()
	defer func() { metrics.ScorerDuration.WithLabelValues("http").Observe(time.Since(start).Seconds()) }()

	var resp *predictResponse
	call := func(ctx context.Context) error {
		return retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
			r, err := s.post(ctx, body)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
	}

	if s.breaker != nil {
		err = s.breaker.Execute(ctx, BreakerKey, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		metrics.ScorerRequestsTotal.WithLabelValues("http", "error").Inc()
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if errors.Is(err, ErrMalformed) || errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	probs, err := probabilities(resp, len(vectors))
	if err != nil {
		metrics.ScorerRequestsTotal.WithLabelValues("http", "malformed").Inc()
		return nil, err
	}

	if resp.ModelVersion != "" {
		s.mu.Lock()
		s.version = resp.ModelVersion
		s.mu.Unlock()
	}
	metrics.ScorerRequestsTotal.WithLabelValues("http", "ok").Inc()
	return probs, nil
}

func (s *HTTPScorer) post(ctx context.Context, body []byte) (*predictResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case httpResp.StatusCode >= 500:
		return nil, fmt.Errorf("model server returned %d", httpResp.StatusCode)
	case httpResp.StatusCode >= 400:
		return nil, retry.Permanent(fmt.Errorf("%w: model server rejected request (%d): %s",
			ErrUnavailable, httpResp.StatusCode, truncate(string(data), 200)))
	}

	var out predictResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, retry.Permanent(fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	return &out, nil
}

func probabilities(resp *predictResponse, want int) ([]float64, error) {
	if len(resp.Predictions) != want {
		return nil, fmt.Errorf("%w: got %d predictions for %d instances", ErrMalformed, len(resp.Predictions), want)
	}
	probs := make([]float64, want)
	for i, p := range resp.Predictions {
		switch {
		case p.Probability != nil:
			probs[i] = *p.Probability
		case p.Prediction != nil && *p.Prediction == 1:
			probs[i] = 1
		case p.Prediction != nil && *p.Prediction == 0:
			probs[i] = 0
		default:
			return nil, fmt.Errorf("%w: prediction %d has neither probability nor label", ErrMalformed, i)
		}
		if probs[i] < 0 || probs[i] > 1 || probs[i] != probs[i] {
			return nil, fmt.Errorf("%w: probability %v out of range", ErrMalformed, probs[i])
		}
	}
	return probs, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
