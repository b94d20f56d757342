// Package narrative writes the prose executive summary of a weekly
// report. An external text engine is tried once; anything short of a
// usable answer yields the deterministic template instead.
package narrative

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mbd888/churnwatch/internal/circuitbreaker"
	"github.com/mbd888/churnwatch/internal/logging"
	"github.com/mbd888/churnwatch/internal/metrics"
	"github.com/mbd888/churnwatch/internal/traces"
)

var (
	ErrUnavailable   = errors.New("narrative service unavailable")
	ErrEmptyResponse = errors.New("narrative service returned no text")
)

// Reasons recorded on an Outcome.
const (
	ReasonOK            = "ok"
	ReasonDisabled      = "disabled"
	ReasonNotConfigured = "not_configured"
	ReasonTimeout       = "timeout"
	ReasonCanceled      = "canceled"
	ReasonBreakerOpen   = "breaker_open"
	ReasonEmpty         = "empty"
	ReasonError         = "error"
	ReasonNoActivity    = "no_activity"
)

// BreakerKey is the circuit breaker key of the narrative engine.
const BreakerKey = "narrative"

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Outcome is the summary text plus how it was obtained.
type Outcome struct {
	Text   string `json:"-"`
	State  State  `json:"state"`
	Reason string `json:"reason"`
}

// NoActivity is the outcome for a window without events. The engine is
// not consulted.
func NoActivity() Outcome {
	metrics.NarrativeOutcomesTotal.WithLabelValues(StateNotAttempted.String(), ReasonNoActivity).Inc()
	return Outcome{Text: NoActivitySummary, State: StateNotAttempted, Reason: ReasonNoActivity}
}

// Degraded reports whether the engine was asked and the template had to
// be used instead.
func (o Outcome) Degraded() bool {
	return o.State == StateFailed
}

// Config controls the summarizer.
type Config struct {
	Enabled bool
	Timeout time.Duration
}

// Summarizer runs the narrative state machine.
type Summarizer struct {
	gen     Generator
	cfg     Config
	breaker *circuitbreaker.Breaker
}

// NewSummarizer creates a summarizer. gen and breaker may be nil; a nil
// generator always uses the template.
func NewSummarizer(gen Generator, cfg Config, breaker *circuitbreaker.Breaker) *Summarizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Summarizer{gen: gen, cfg: cfg, breaker: breaker}
}

// Summarize returns an executive summary for in. It never fails: any
// problem with the engine results in the template text and a Failed or
// NotAttempted state.
func (s *Summarizer) Summarize(ctx context.Context, in Input) Outcome {
	ctx, span := traces.StartSpan(ctx, "narrative.summarize")
	defer span.End()

	var a attempt
	out := s.run(ctx, &a, in)
	out.State = a.state

	span.SetAttributes(traces.NarrativeState(out.State.String()))
	metrics.NarrativeOutcomesTotal.WithLabelValues(out.State.String(), out.Reason).Inc()
	if out.Degraded() {
		logging.L(ctx).Warn("executive summary fell back to template",
			"state", out.State.String(), "reason", out.Reason)
	}
	return out
}

func (s *Summarizer) run(ctx context.Context, a *attempt, in Input) Outcome {
	fallback := Template(in.Summary)

	if !s.cfg.Enabled {
		return Outcome{Text: fallback, Reason: ReasonDisabled}
	}
	if s.gen == nil {
		return Outcome{Text: fallback, Reason: ReasonNotConfigured}
	}

	a.to(StateRequested, "")

	var text string
	call := func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		var err error
		text, err = s.gen.Generate(callCtx, BuildPrompt(in))
		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrEmptyResponse
		}
		if err != nil && callCtx.Err() != nil && ctx.Err() == nil {
			err = errors.Join(context.DeadlineExceeded, err)
		}
		return err
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(ctx, BreakerKey, call)
	} else {
		err = call(ctx)
	}

	if err != nil {
		reason := classify(ctx, err)
		a.to(StateFailed, reason)
		return Outcome{Text: fallback, Reason: reason}
	}

	a.to(StateSucceeded, ReasonOK)
	return Outcome{Text: strings.TrimSpace(text), Reason: ReasonOK}
}

func classify(parent context.Context, err error) string {
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		return ReasonBreakerOpen
	case parent.Err() != nil:
		return ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, ErrEmptyResponse):
		return ReasonEmpty
	default:
		return ReasonError
	}
}
