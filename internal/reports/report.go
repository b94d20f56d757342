// Package reports assembles weekly churn reports for a client: it windows
// events, scores customers, compares against the previous week and
// writes insights, recommendations and an executive summary.
//
// A report is a pure function of (client, week ending, stored events,
// model output, reference time) apart from the executive summary, which
// may come from an external text engine.
package reports

import (
	"errors"
	"time"

	"github.com/mbd888/churnwatch/internal/churn"
)

var (
	ErrInvalidInput       = errors.New("invalid report request")
	ErrDataUnavailable    = errors.New("event data unavailable")
	ErrScoringUnavailable = errors.New("churn scoring unavailable")

	// ErrPreviousWindowUnavailable is recovered internally: the report is
	// produced with zero week-over-week deltas.
	ErrPreviousWindowUnavailable = errors.New("previous window unavailable")
)

// WeeklyReport is the report body returned to callers.
type WeeklyReport struct {
	WeekEnding       string                   `json:"weekEnding"`
	Summary          churn.Summary            `json:"summary"`
	KeyInsights      []string                 `json:"keyInsights"`
	TopRiskFactors   []churn.RiskFactor       `json:"topRiskFactors"`
	SegmentBreakdown []churn.SegmentBreakdown `json:"segmentBreakdown"`
	Recommendations  []churn.Recommendation   `json:"recommendations"`
	ExecutiveSummary string                   `json:"executiveSummary"`
}

// Window is the inclusive 7-day range a report covers.
type Window struct {
	Start time.Time
	End   time.Time
}

// WeekWindow returns [weekEnding-6d 00:00, weekEnding 23:59:59.999999999]
// in UTC. Only the calendar date of weekEnding is used.
func WeekWindow(weekEnding time.Time) Window {
	d := weekEnding.UTC()
	endDay := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return Window{
		Start: endDay.AddDate(0, 0, -6),
		End:   endDay.AddDate(0, 0, 1).Add(-time.Nanosecond),
	}
}

// Previous returns the 7-day window immediately before w.
func (w Window) Previous() Window {
	return Window{
		Start: w.Start.AddDate(0, 0, -7),
		End:   w.End.AddDate(0, 0, -7),
	}
}

// WeekEnding is the last calendar day of the window.
func (w Window) WeekEnding() time.Time {
	return time.Date(w.End.Year(), w.End.Month(), w.End.Day(), 0, 0, 0, 0, time.UTC)
}

// Diagnostics describe how a report was produced. They are not part of
// the report body, so they never affect its reproducibility.
type Diagnostics struct {
	ModelVersion            string        `json:"modelVersion"`
	NarrativeState          string        `json:"narrativeState"`
	NarrativeReason         string        `json:"narrativeReason"`
	PreviousWindowAvailable bool          `json:"previousWindowAvailable"`
	CustomersScored         int           `json:"customersScored"`
	SkippedEvents           int           `json:"skippedEvents"`
	Duration                time.Duration `json:"-"`
}

// Result is a generated report plus the per-customer detail behind it.
type Result struct {
	Report      *WeeklyReport
	Customers   []*churn.ScoredCustomer
	Diagnostics Diagnostics
}

func emptyReport(weekEnding string) *WeeklyReport {
	return &WeeklyReport{
		WeekEnding: weekEnding,
		Summary: churn.Summary{
			RetentionRate: 100,
		},
		KeyInsights:      []string{churn.NoActivityInsight},
		TopRiskFactors:   []churn.RiskFactor{},
		SegmentBreakdown: []churn.SegmentBreakdown{},
		Recommendations:  []churn.Recommendation{},
	}
}
