package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(threshold, time.Minute).WithClock(clock.Now), clock
}

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3)

	b.RecordFailure("scorer")
	b.RecordFailure("scorer")
	assert.True(t, b.Allow("scorer"))

	b.RecordFailure("scorer")
	assert.False(t, b.Allow("scorer"))
	assert.Equal(t, StateOpen, b.State("scorer"))

	// Keys are independent.
	assert.True(t, b.Allow("narrative"))
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(1)
	b.RecordFailure("scorer")
	require.False(t, b.Allow("scorer"))

	clock.Advance(time.Minute)
	assert.True(t, b.Allow("scorer"))
	assert.Equal(t, StateHalfOpen, b.State("scorer"))
	assert.False(t, b.Allow("scorer"), "only one probe while half-open")

	b.RecordSuccess("scorer")
	assert.Equal(t, StateClosed, b.State("scorer"))
	assert.True(t, b.Allow("scorer"))
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, clock := newTestBreaker(1)
	b.RecordFailure("scorer")
	clock.Advance(time.Minute)
	require.True(t, b.Allow("scorer"))

	b.RecordFailure("scorer")
	assert.Equal(t, StateOpen, b.State("scorer"))
	assert.False(t, b.Allow("scorer"))
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(2)
	b.RecordFailure("scorer")
	b.RecordFailure("unknown-key-success")
	b.RecordSuccess("scorer")
	b.RecordFailure("scorer")
	assert.Equal(t, StateClosed, b.State("scorer"))
}

func TestBreaker_Execute(t *testing.T) {
	b, _ := newTestBreaker(2)
	ctx := context.Background()
	boom := errors.New("boom")

	assert.NoError(t, b.Execute(ctx, "k", func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, b.Execute(ctx, "k", func(ctx context.Context) error { return boom }), boom)
	assert.ErrorIs(t, b.Execute(ctx, "k", func(ctx context.Context) error { return boom }), boom)

	called := false
	err := b.Execute(ctx, "k", func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_ExecuteIgnoresCallerCancellation(t *testing.T) {
	b, _ := newTestBreaker(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, "k", func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State("k"))
}

func TestBreaker_OnTransition(t *testing.T) {
	b, clock := newTestBreaker(1)
	var got []string
	b.OnTransition(func(key string, from, to State) {
		got = append(got, from.String()+"->"+to.String())
	})

	b.RecordFailure("k")
	clock.Advance(time.Minute)
	b.Allow("k")
	b.RecordSuccess("k")

	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, got)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
