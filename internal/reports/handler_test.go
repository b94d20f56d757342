package reports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/churnwatch/internal/events"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(svc *Service) *gin.Engine {
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/v1"))
	return r
}

func doGet(r http.Handler, url string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestGenerateReportHandler_OK(t *testing.T) {
	f := newFixture()
	seedScenario(f.store)
	r := newTestRouter(f.service(nil))

	w := doGet(r, "/v1/reports/generate?client_id=acme&week_ending=2025-01-19")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2025-01-19", resp.WeekEnding)
	assert.Equal(t, 2, resp.ReportData.Summary.TotalCustomers)
	assert.Contains(t, resp.Meta.ReportID, "rpt_")
	assert.Equal(t, "stub-1", resp.Meta.ModelVersion)
	assert.Equal(t, "succeeded", resp.Meta.NarrativeState)
}

func TestGenerateReportHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		store  events.Store
		status int
		code   string
	}{
		{"missing client", "/v1/reports/generate?week_ending=2025-01-19", nil, http.StatusBadRequest, "invalid_request"},
		{"bad date", "/v1/reports/generate?client_id=acme&week_ending=19-01-2025", nil, http.StatusBadRequest, "invalid_request"},
		{"future week", "/v1/reports/generate?client_id=acme&week_ending=2030-01-01", nil, http.StatusBadRequest, "invalid_request"},
		{"store down", "/v1/reports/generate?client_id=acme&week_ending=2025-01-19", failingStore{err: errors.New("dial tcp: refused")}, http.StatusServiceUnavailable, "data_unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			w := doGet(newTestRouter(f.service(tt.store)), tt.url)
			assert.Equal(t, tt.status, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["error"])
			assert.NotContains(t, w.Body.String(), "dial tcp")
		})
	}
}

func TestGenerateReportHandler_ScoringUnavailable(t *testing.T) {
	f := newFixture()
	seedScenario(f.store)
	f.scorer.err = errors.New("upstream 502")

	w := doGet(newTestRouter(f.service(nil)), "/v1/reports/generate?client_id=acme&week_ending=2025-01-19")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "scoring_unavailable")
}

func TestGenerateReportHandler_ClientGone(t *testing.T) {
	f := newFixture()
	seedScenario(f.store)
	r := newTestRouter(f.service(ctxStore{f.store}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/reports/generate?client_id=acme&week_ending=2025-01-19", nil)
	r.ServeHTTP(w, req.WithContext(ctx))

	assert.Equal(t, StatusClientClosedRequest, w.Code)
	assert.Contains(t, w.Body.String(), "request_canceled")
}

func TestListAtRiskHandler(t *testing.T) {
	f := newFixture()
	f.scorer = rankingScorer()
	seedAtRisk(f.store)
	r := newTestRouter(f.service(nil))

	w := doGet(r, "/v1/reports/at-risk?client_id=acme&week_ending=2025-01-19&limit=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var list AtRiskList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 3, list.Total)
	assert.Len(t, list.Customers, 2)

	w = doGet(r, "/v1/reports/at-risk?client_id=acme&week_ending=2025-01-19&limit=9999")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
