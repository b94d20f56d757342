package reports

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/churnwatch/internal/idgen"
	"github.com/mbd888/churnwatch/internal/validation"
)

// Handler provides HTTP endpoints for reports
type Handler struct {
	service *Service
}

// NewHandler creates a new reports handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up report routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/reports/generate", h.GenerateReport)
	r.GET("/reports/at-risk", h.ListAtRisk)
}

// ReportMeta accompanies a report in API responses.
type ReportMeta struct {
	ReportID                string    `json:"reportId"`
	GeneratedAt             time.Time `json:"generatedAt"`
	ModelVersion            string    `json:"modelVersion"`
	NarrativeState          string    `json:"narrativeState"`
	NarrativeReason         string    `json:"narrativeReason"`
	PreviousWindowAvailable bool      `json:"previousWindowAvailable"`
	CustomersScored         int       `json:"customersScored"`
	SkippedEvents           int       `json:"skippedEvents"`
	DurationMs              int64     `json:"durationMs"`
}

// ReportResponse is the body of GET /reports/generate.
type ReportResponse struct {
	WeekEnding string        `json:"weekEnding"`
	ReportData *WeeklyReport `json:"reportData"`
	Meta       ReportMeta    `json:"meta"`
}

// GenerateReport handles GET /reports/generate?client_id=&week_ending=YYYY-MM-DD
func (h *Handler) GenerateReport(c *gin.Context) {
	clientID := strings.TrimSpace(c.Query("client_id"))
	weekRaw := c.Query("week_ending")

	if errs := validation.Validate(
		validation.Required("client_id", clientID),
		validation.ValidClientID("client_id", clientID),
		validation.Required("week_ending", weekRaw),
		validation.ValidDate("week_ending", weekRaw),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}
	weekEnding, _ := validation.ParseDate(weekRaw)

	result, err := h.service.Generate(c.Request.Context(), clientID, weekEnding)
	if err != nil {
		status, code := errorStatus(err)
		c.JSON(status, gin.H{
			"error":   code,
			"message": errorMessage(err),
		})
		return
	}

	d := result.Diagnostics
	c.JSON(http.StatusOK, ReportResponse{
		WeekEnding: result.Report.WeekEnding,
		ReportData: result.Report,
		Meta: ReportMeta{
			ReportID:                idgen.WithPrefix("rpt_"),
			GeneratedAt:             time.Now().UTC(),
			ModelVersion:            d.ModelVersion,
			NarrativeState:          d.NarrativeState,
			NarrativeReason:         d.NarrativeReason,
			PreviousWindowAvailable: d.PreviousWindowAvailable,
			CustomersScored:         d.CustomersScored,
			SkippedEvents:           d.SkippedEvents,
			DurationMs:              d.Duration.Milliseconds(),
		},
	})
}

// ListAtRisk handles GET /reports/at-risk?client_id=&week_ending=&limit=
func (h *Handler) ListAtRisk(c *gin.Context) {
	clientID := strings.TrimSpace(c.Query("client_id"))
	weekRaw := c.Query("week_ending")
	limitRaw := c.Query("limit")

	if errs := validation.Validate(
		validation.Required("client_id", clientID),
		validation.ValidClientID("client_id", clientID),
		validation.Required("week_ending", weekRaw),
		validation.ValidDate("week_ending", weekRaw),
		validation.IntRange("limit", limitRaw, 1, MaxAtRiskLimit),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}
	weekEnding, _ := validation.ParseDate(weekRaw)
	limit := DefaultAtRiskLimit
	if limitRaw != "" {
		limit, _ = strconv.Atoi(limitRaw)
	}

	list, err := h.service.ListAtRisk(c.Request.Context(), clientID, weekEnding, limit)
	if err != nil {
		status, code := errorStatus(err)
		c.JSON(status, gin.H{
			"error":   code,
			"message": errorMessage(err),
		})
		return
	}

	c.JSON(http.StatusOK, list)
}

// StatusClientClosedRequest is written when the caller went away before
// the report was ready.
const StatusClientClosedRequest = 499

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrDataUnavailable):
		return http.StatusServiceUnavailable, "data_unavailable"
	case errors.Is(err, ErrScoringUnavailable):
		return http.StatusServiceUnavailable, "scoring_unavailable"
	case isCanceled(err):
		return StatusClientClosedRequest, "request_canceled"
	default:
		return http.StatusInternalServerError, "report_failed"
	}
}

// errorMessage keeps dependency details out of responses except for
// input errors, which are safe and useful to echo.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return err.Error()
	case errors.Is(err, ErrDataUnavailable):
		return "Event data is temporarily unavailable. Please try again."
	case errors.Is(err, ErrScoringUnavailable):
		return "The churn model is temporarily unavailable. Please try again."
	default:
		return "Failed to generate report. Please try again."
	}
}
