package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/churnwatch/internal/circuitbreaker"
	"github.com/mbd888/churnwatch/internal/features"
	"github.com/mbd888/churnwatch/internal/retry"
)

var fastRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func newTestScorer(url string, breaker *circuitbreaker.Breaker) *HTTPScorer {
	return NewHTTPScorer(HTTPConfig{BaseURL: url, Timeout: 2 * time.Second, Retry: fastRetry}, breaker)
}

func TestHTTPScorer_Predict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)

		var req struct {
			Instances []map[string]float64 `json:"instances"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Instances, 3)
		assert.Equal(t, 5.0, req.Instances[0]["added_to_cart"])

		_, _ = w.Write([]byte(`{"modelVersion":"xgb-7","predictions":[
			{"probability":0.85,"prediction":1},
			{"prediction":1},
			{"prediction":0}
		]}`))
	}))
	defer srv.Close()

	s := newTestScorer(srv.URL+"/", nil)
	probs, err := s.Predict(context.Background(), []features.Vector{{AddedToCart: 5}, {}, {}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.85, 1, 0}, probs)
	assert.Equal(t, "xgb-7", s.ModelVersion())
}

func TestHTTPScorer_EmptyInputSkipsCall(t *testing.T) {
	s := newTestScorer("http://127.0.0.1:1", nil)
	probs, err := s.Predict(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, probs)
}

func TestHTTPScorer_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"predictions":[{"probability":0.3}]}`))
	}))
	defer srv.Close()

	probs, err := newTestScorer(srv.URL, nil).Predict(context.Background(), []features.Vector{{}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3}, probs)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPScorer_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad features", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTestScorer(srv.URL, nil).Predict(context.Background(), []features.Vector{{}})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPScorer_Malformed(t *testing.T) {
	bodies := []string{
		`not json`,
		`{"predictions":[]}`,
		`{"predictions":[{"probability":1.4}]}`,
		`{"predictions":[{}]}`,
	}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		_, err := newTestScorer(srv.URL, nil).Predict(context.Background(), []features.Vector{{}})
		assert.ErrorIs(t, err, ErrMalformed, "body %s", body)
		srv.Close()
	}
}

func TestHTTPScorer_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestScorer(url, nil).Predict(context.Background(), []features.Vector{{}})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPScorer_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := circuitbreaker.New(1, time.Hour)
	s := newTestScorer(srv.URL, breaker)

	_, err := s.Predict(context.Background(), []features.Vector{{}})
	require.ErrorIs(t, err, ErrUnavailable)
	seen := calls.Load()

	_, err = s.Predict(context.Background(), []features.Vector{{}})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, seen, calls.Load(), "open breaker must not reach the server")
}
