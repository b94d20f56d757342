// Package health provides a registry of named dependency health checkers
// and the checkers the report service needs: database reachability and
// the state of a circuit-broken dependency.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mbd888/churnwatch/internal/circuitbreaker"
)

// DefaultCheckTimeout bounds a single checker run.
const DefaultCheckTimeout = 3 * time.Second

// Status represents the health of a single dependency.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
	// Critical dependencies make the service not ready when unhealthy.
	Critical bool `json:"critical"`
}

// Checker reports the health of one dependency.
type Checker func(ctx context.Context) Status

// Registry holds named checkers and runs them concurrently on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
	timeout  time.Duration
}

type namedChecker struct {
	name     string
	critical bool
	check    Checker
}

// NewRegistry creates a new health check registry.
func NewRegistry() *Registry {
	return &Registry{timeout: DefaultCheckTimeout}
}

// Register adds a checker whose failure makes the service not ready.
func (r *Registry) Register(name string, check Checker) {
	r.add(namedChecker{name: name, critical: true, check: check})
}

// RegisterOptional adds a checker that is reported but never fails
// readiness, e.g. for the narrative engine which has a template fallback.
func (r *Registry) RegisterOptional(name string, check Checker) {
	r.add(namedChecker{name: name, check: check})
}

func (r *Registry) add(nc namedChecker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, nc)
	r.mu.Unlock()
}

// CheckAll runs all checkers concurrently, each bounded by the registry
// timeout. healthy is false when any critical checker fails. Statuses
// keep registration order.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	statuses = make([]Status, len(checkers))
	var wg sync.WaitGroup
	for i, nc := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			st := nc.check(cctx)
			st.Name = nc.name
			st.Critical = nc.critical
			statuses[i] = st
		}()
	}
	wg.Wait()

	healthy = true
	for _, st := range statuses {
		if st.Critical && !st.Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingChecker reports healthy when p answers a ping.
func PingChecker(p Pinger) Checker {
	return func(ctx context.Context) Status {
		start := time.Now()
		if err := p.PingContext(ctx); err != nil {
			return Status{Healthy: false, Detail: err.Error()}
		}
		return Status{Healthy: true, Detail: fmt.Sprintf("ping %s", time.Since(start).Round(time.Millisecond))}
	}
}

// BreakerChecker reports unhealthy while the breaker for key is open.
// Half-open counts as healthy: the next call is a recovery probe.
func BreakerChecker(b *circuitbreaker.Breaker, key string) Checker {
	return func(ctx context.Context) Status {
		state := b.State(key)
		return Status{Healthy: state != circuitbreaker.StateOpen, Detail: "circuit " + state.String()}
	}
}

// Static always reports the given detail as healthy. Used for in-memory
// backends that cannot fail.
func Static(detail string) Checker {
	return func(ctx context.Context) Status {
		return Status{Healthy: true, Detail: detail}
	}
}
