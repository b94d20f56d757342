package narrative

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/churnwatch/internal/churn"
	"github.com/mbd888/churnwatch/internal/circuitbreaker"
)

type fakeGenerator struct {
	text  string
	err   error
	delay time.Duration
	calls int
	last  string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.last = prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

var sampleInput = Input{
	Summary: churn.Summary{TotalCustomers: 2, HighRiskCount: 1, ChurnedThisWeek: 1, RetentionRate: 50},
	KeyInsights: []string{"1 customers are currently classified as high churn risk."},
}

const sampleTemplate = "This week you had 2 active customers, with 1 currently flagged as high churn risk. " +
	"Overall retention remained at 50.0%. " +
	"Review the key insights and recommended actions below to see how you can reduce churn next week."

func TestSummarize_Succeeded(t *testing.T) {
	gen := &fakeGenerator{text: "  Customers are mostly healthy.\n"}
	s := NewSummarizer(gen, Config{Enabled: true, Timeout: time.Second}, nil)

	out := s.Summarize(context.Background(), sampleInput)
	assert.Equal(t, StateSucceeded, out.State)
	assert.Equal(t, ReasonOK, out.Reason)
	assert.Equal(t, "Customers are mostly healthy.", out.Text)
	assert.False(t, out.Degraded())
	assert.Equal(t, 1, gen.calls)
	assert.Contains(t, gen.last, "2-3 short paragraphs")
}

func TestSummarize_Fallbacks(t *testing.T) {
	tests := []struct {
		name   string
		gen    Generator
		cfg    Config
		state  State
		reason string
	}{
		{"disabled", &fakeGenerator{text: "x"}, Config{Enabled: false}, StateNotAttempted, ReasonDisabled},
		{"no generator", nil, Config{Enabled: true}, StateNotAttempted, ReasonNotConfigured},
		{"engine error", &fakeGenerator{err: errors.New("quota")}, Config{Enabled: true}, StateFailed, ReasonError},
		{"blank text", &fakeGenerator{text: "   "}, Config{Enabled: true}, StateFailed, ReasonEmpty},
		{"timeout", &fakeGenerator{text: "late", delay: time.Second}, Config{Enabled: true, Timeout: 20 * time.Millisecond}, StateFailed, ReasonTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewSummarizer(tt.gen, tt.cfg, nil).Summarize(context.Background(), sampleInput)
			assert.Equal(t, tt.state, out.State)
			assert.Equal(t, tt.reason, out.Reason)
			assert.Equal(t, sampleTemplate, out.Text)
			assert.Equal(t, tt.state == StateFailed, out.Degraded())
		})
	}
}

func TestSummarize_DisabledNeverCallsEngine(t *testing.T) {
	gen := &fakeGenerator{text: "x"}
	NewSummarizer(gen, Config{Enabled: false}, nil).Summarize(context.Background(), sampleInput)
	assert.Equal(t, 0, gen.calls)
}

func TestSummarize_BreakerOpen(t *testing.T) {
	breaker := circuitbreaker.New(1, time.Hour)
	gen := &fakeGenerator{err: errors.New("down")}
	s := NewSummarizer(gen, Config{Enabled: true, Timeout: time.Second}, breaker)

	first := s.Summarize(context.Background(), sampleInput)
	assert.Equal(t, ReasonError, first.Reason)

	second := s.Summarize(context.Background(), sampleInput)
	assert.Equal(t, StateFailed, second.State)
	assert.Equal(t, ReasonBreakerOpen, second.Reason)
	assert.Equal(t, 1, gen.calls)
}

func TestSummarize_TimeoutTripsBreaker(t *testing.T) {
	breaker := circuitbreaker.New(1, time.Hour)
	gen := &fakeGenerator{text: "late", delay: time.Second}
	s := NewSummarizer(gen, Config{Enabled: true, Timeout: 10 * time.Millisecond}, breaker)

	out := s.Summarize(context.Background(), sampleInput)
	require.Equal(t, ReasonTimeout, out.Reason)
	assert.Equal(t, circuitbreaker.StateOpen, breaker.State(BreakerKey))
}

func TestSummarize_CallerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := NewSummarizer(&fakeGenerator{text: "x", delay: time.Second}, Config{Enabled: true}, nil).Summarize(ctx, sampleInput)
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, ReasonCanceled, out.Reason)
}

func TestNoActivity(t *testing.T) {
	out := NoActivity()
	assert.Equal(t, NoActivitySummary, out.Text)
	assert.Equal(t, StateNotAttempted, out.State)
	assert.False(t, out.Degraded())
}

func TestStateMachine(t *testing.T) {
	var a attempt
	assert.PanicsWithError(t, "invalid narrative state transition: not_attempted → succeeded", func() {
		a.to(StateSucceeded, "")
	})
	assert.NotPanics(t, func() { a.to(StateRequested, "") })
	assert.Panics(t, func() { a.to(StateRequested, "") })
	assert.NotPanics(t, func() { a.to(StateFailed, ReasonTimeout) })
	assert.Panics(t, func() { a.to(StateSucceeded, "") })
	assert.Equal(t, StateFailed, a.state)
	assert.Equal(t, ReasonTimeout, a.reason)

	text, err := StateSucceeded.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "succeeded", string(text))
}

func TestTemplateAndPrompt(t *testing.T) {
	assert.Equal(t, sampleTemplate, Template(sampleInput.Summary))

	prompt := BuildPrompt(sampleInput)
	assert.Contains(t, prompt, `"totalCustomers": 2`)
	assert.Contains(t, prompt, "KEY INSIGHTS")
	assert.Contains(t, prompt, "No jargon")
}
