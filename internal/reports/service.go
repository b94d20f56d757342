package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mbd888/churnwatch/internal/churn"
	"github.com/mbd888/churnwatch/internal/events"
	"github.com/mbd888/churnwatch/internal/features"
	"github.com/mbd888/churnwatch/internal/logging"
	"github.com/mbd888/churnwatch/internal/metrics"
	"github.com/mbd888/churnwatch/internal/narrative"
	"github.com/mbd888/churnwatch/internal/scoring"
	"github.com/mbd888/churnwatch/internal/traces"
	"github.com/mbd888/churnwatch/internal/users"
	"github.com/mbd888/churnwatch/internal/validation"
)

// futureSlack is how far past "now" a week ending may lie.
const futureSlack = 24 * time.Hour

// Notification kinds published to a Notifier.
const (
	NotifyReportGenerated   = "report_generated"
	NotifyReportFailed      = "report_failed"
	NotifyNarrativeDegraded = "narrative_degraded"
)

// Notifier receives report lifecycle notifications, e.g. for dashboards.
type Notifier interface {
	Notify(clientID, kind string, data any)
}

// Service generates weekly reports.
type Service struct {
	events     events.Store
	users      users.Directory
	scorer     scoring.Scorer
	classifier *churn.Classifier
	narrator   *narrative.Summarizer
	notifier   Notifier
	now        func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock sets the reference time source used for days-since-activity
// and for rejecting future weeks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNotifier publishes lifecycle notifications to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// NewService creates a report service.
func NewService(
	store events.Store,
	dir users.Directory,
	scorer scoring.Scorer,
	risk churn.RiskPolicy,
	segments churn.SegmentPolicy,
	narrator *narrative.Summarizer,
	opts ...Option,
) *Service {
	s := &Service{
		events:     store,
		users:      dir,
		scorer:     scorer,
		classifier: churn.NewClassifier(scorer, risk, segments),
		narrator:   narrator,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type windowResult struct {
	customers []*churn.ScoredCustomer
	skipped   int
}

// Generate builds the weekly report for clientID and the week ending on
// weekEnding. It fails with ErrInvalidInput, ErrDataUnavailable or
// ErrScoringUnavailable; previous-week and narrative problems degrade
// the report instead of failing it. No partial report is ever returned.
func (s *Service) Generate(ctx context.Context, clientID string, weekEnding time.Time) (*Result, error) {
	start := time.Now()
	ctx = logging.WithClientID(ctx, clientID)
	ctx, span := traces.StartSpan(ctx, "report.generate", traces.ClientID(clientID), traces.WeekEnding(weekEnding))
	defer span.End()

	res, err := s.generate(ctx, clientID, weekEnding)
	elapsed := time.Since(start)
	metrics.ReportDuration.Observe(elapsed.Seconds())
	metrics.ReportsTotal.WithLabelValues(outcome(err)).Inc()

	weekLabel := weekEnding.UTC().Format(validation.DateLayout)
	if err != nil {
		traces.Fail(span, err)
		switch {
		case errors.Is(err, ErrInvalidInput):
		case isCanceled(err):
			logging.L(ctx).Info("report generation cancelled", "week_ending", weekLabel, "error", err)
		default:
			logging.L(ctx).Error("report generation failed", "week_ending", weekLabel, "error", err)
		}
		if !isCanceled(err) {
			s.notify(clientID, NotifyReportFailed, map[string]any{
				"weekEnding": weekLabel,
				"error":      outcome(err),
			})
		}
		return nil, err
	}

	res.Diagnostics.Duration = elapsed
	span.SetAttributes(traces.Customers(res.Report.Summary.TotalCustomers), traces.ModelVersion(res.Diagnostics.ModelVersion))
	metrics.ReportCustomers.Observe(float64(res.Report.Summary.TotalCustomers))

	logging.L(ctx).Info("report generated",
		"week_ending", res.Report.WeekEnding,
		"customers", res.Report.Summary.TotalCustomers,
		"high_risk", res.Report.Summary.HighRiskCount,
		"narrative", res.Diagnostics.NarrativeState,
		"duration_ms", elapsed.Milliseconds(),
	)
	s.notify(clientID, NotifyReportGenerated, map[string]any{
		"weekEnding": res.Report.WeekEnding,
		"summary":    res.Report.Summary,
	})
	if res.Diagnostics.NarrativeState == narrative.StateFailed.String() {
		s.notify(clientID, NotifyNarrativeDegraded, map[string]any{
			"weekEnding": res.Report.WeekEnding,
			"reason":     res.Diagnostics.NarrativeReason,
		})
	}
	return res, nil
}

func (s *Service) generate(ctx context.Context, clientID string, weekEnding time.Time) (*Result, error) {
	now := s.now()
	if err := s.validate(clientID, weekEnding, now); err != nil {
		return nil, err
	}

	window := WeekWindow(weekEnding)
	weekLabel := window.WeekEnding().Format(validation.DateLayout)

	var cur windowResult
	var prev *windowResult
	var prevErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.scoreWindow(gctx, clientID, window, now, "current")
		if err != nil {
			return err
		}
		cur = r
		return nil
	})
	g.Go(func() error {
		r, err := s.scoreWindow(gctx, clientID, window.Previous(), now, "previous")
		switch {
		case err != nil:
			prevErr = err
		case len(r.customers) == 0:
			prevErr = errors.New("no customers in previous window")
		default:
			prev = &r
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	diag := Diagnostics{
		ModelVersion:    s.scorer.ModelVersion(),
		CustomersScored: len(cur.customers),
		SkippedEvents:   cur.skipped,
	}

	if len(cur.customers) == 0 {
		out := narrative.NoActivity()
		report := emptyReport(weekLabel)
		report.ExecutiveSummary = out.Text
		diag.NarrativeState = out.State.String()
		diag.NarrativeReason = out.Reason
		diag.PreviousWindowAvailable = prev != nil
		return &Result{Report: report, Customers: cur.customers, Diagnostics: diag}, nil
	}

	var prevMetrics *churn.Metrics
	if prev != nil {
		m := churn.Measure(prev.customers)
		prevMetrics = &m
		diag.PreviousWindowAvailable = true
	} else {
		metrics.PreviousWindowUnavailableTotal.Inc()
		logging.L(ctx).Warn("previous week unavailable, reporting zero deltas",
			"week_ending", weekLabel, "error", fmt.Errorf("%w: %w", ErrPreviousWindowUnavailable, prevErr))
	}

	report := assemble(weekLabel, cur.customers, prevMetrics)

	out := s.narrator.Summarize(ctx, narrative.Input{
		Summary:         report.Summary,
		KeyInsights:     report.KeyInsights,
		Segments:        report.SegmentBreakdown,
		RiskFactors:     report.TopRiskFactors,
		Recommendations: report.Recommendations,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report.ExecutiveSummary = out.Text
	diag.NarrativeState = out.State.String()
	diag.NarrativeReason = out.Reason

	return &Result{Report: report, Customers: cur.customers, Diagnostics: diag}, nil
}

// assemble composes the report body from one window's customers and the
// previous window's metrics (nil when unavailable).
func assemble(weekEnding string, customers []*churn.ScoredCustomer, prev *churn.Metrics) *WeeklyReport {
	m := churn.Measure(customers)
	return &WeeklyReport{
		WeekEnding:       weekEnding,
		Summary:          churn.NewSummary(m, churn.Compare(m, prev)),
		KeyInsights:      churn.Insights(m),
		TopRiskFactors:   churn.TopRiskFactors(customers),
		SegmentBreakdown: churn.Segments(m, prev),
		Recommendations:  churn.Recommendations(m),
	}
}

func (s *Service) validate(clientID string, weekEnding, now time.Time) error {
	if !validation.IsValidClientID(clientID) {
		return fmt.Errorf("%w: malformed client id %q", ErrInvalidInput, clientID)
	}
	if weekEnding.IsZero() {
		return fmt.Errorf("%w: week ending is required", ErrInvalidInput)
	}
	w := WeekWindow(weekEnding)
	if w.End.Before(w.Start) {
		return fmt.Errorf("%w: window end before start", ErrInvalidInput)
	}
	if w.Start.After(now.Add(futureSlack)) {
		return fmt.Errorf("%w: week ending %s is in the future", ErrInvalidInput, w.WeekEnding().Format(validation.DateLayout))
	}
	return nil
}

// scoreWindow runs events → features → scores for one window.
func (s *Service) scoreWindow(ctx context.Context, clientID string, w Window, now time.Time, name string) (windowResult, error) {
	ctx, span := traces.StartSpan(ctx, "report.window", traces.WindowName(name))
	defer span.End()

	evts, err := s.events.Query(ctx, clientID, w.Start, w.End)
	if err != nil {
		traces.Fail(span, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return windowResult{}, ctxErr
		}
		return windowResult{}, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}

	customers, skipped := features.Aggregate(evts, now)
	if skipped > 0 {
		logging.L(ctx).Debug("skipped events without identity", "window", name, "count", skipped)
	}

	scored, err := s.classifier.Classify(ctx, customers)
	if err != nil {
		traces.Fail(span, err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return windowResult{}, ctxErr
		}
		return windowResult{}, fmt.Errorf("%w: %w", ErrScoringUnavailable, err)
	}
	span.SetAttributes(traces.Customers(len(scored)))
	return windowResult{customers: scored, skipped: skipped}, nil
}

func (s *Service) notify(clientID, kind string, data any) {
	if s.notifier != nil {
		s.notifier.Notify(clientID, kind, data)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrScoringUnavailable):
		return "scoring_unavailable"
	case isCanceled(err):
		return "canceled"
	default:
		return "error"
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
