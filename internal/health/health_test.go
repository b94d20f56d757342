package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/churnwatch/internal/circuitbreaker"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(ctx context.Context) error { return f.err }

func TestRegistryEmpty(t *testing.T) {
	healthy, statuses := NewRegistry().CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, statuses)
}

func TestRegistry_CriticalFailure(t *testing.T) {
	r := NewRegistry()
	r.Register("database", PingChecker(fakePinger{}))
	r.Register("scorer", PingChecker(fakePinger{err: errors.New("connection refused")}))

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	require.Len(t, statuses, 2)
	assert.Equal(t, "database", statuses[0].Name)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, "scorer", statuses[1].Name)
	assert.Equal(t, "connection refused", statuses[1].Detail)
	assert.True(t, statuses[1].Critical)
}

func TestRegistry_OptionalFailureKeepsReady(t *testing.T) {
	r := NewRegistry()
	r.Register("events", Static("in-memory"))
	r.RegisterOptional("narrative", func(ctx context.Context) Status {
		return Status{Healthy: false, Detail: "circuit open"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	assert.True(t, healthy)
	assert.False(t, statuses[1].Healthy)
	assert.False(t, statuses[1].Critical)
}

func TestRegistry_CheckerTimeout(t *testing.T) {
	r := NewRegistry()
	r.timeout = 20 * time.Millisecond
	r.Register("slow", func(ctx context.Context) Status {
		<-ctx.Done()
		return Status{Healthy: false, Detail: ctx.Err().Error()}
	})

	start := time.Now()
	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, context.DeadlineExceeded.Error(), statuses[0].Detail)
}

func TestBreakerChecker(t *testing.T) {
	b := circuitbreaker.New(1, time.Minute)
	check := BreakerChecker(b, "scorer")

	assert.True(t, check(context.Background()).Healthy)

	b.RecordFailure("scorer")
	st := check(context.Background())
	assert.False(t, st.Healthy)
	assert.Equal(t, "circuit open", st.Detail)
}
