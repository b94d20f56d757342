package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, rpm, burst int) (*Limiter, *manualClock) {
	t.Helper()
	l := New(Config{RequestsPerMinute: rpm, BurstSize: burst, CleanupInterval: time.Hour})
	t.Cleanup(l.Stop)
	clock := &manualClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l.now = clock.Now
	return l, clock
}

func TestLimiterAllow(t *testing.T) {
	l, clock := newTestLimiter(t, 60, 5)

	for i := 0; i < 5; i++ {
		ok, _ := l.Allow("client:acme")
		assert.True(t, ok, "request %d within burst", i)
	}

	ok, wait := l.Allow("client:acme")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	clock.Advance(time.Second)
	ok, _ = l.Allow("client:acme")
	assert.True(t, ok)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, 60, 1)

	ok, _ := l.Allow("client:a")
	assert.True(t, ok)
	ok, _ = l.Allow("client:a")
	assert.False(t, ok)

	ok, _ = l.Allow("client:b")
	assert.True(t, ok)
}

func TestLimiterDisabled(t *testing.T) {
	l, _ := newTestLimiter(t, 0, 1)
	for i := 0; i < 100; i++ {
		ok, _ := l.Allow("k")
		require.True(t, ok)
	}
}

func TestLimiterEvictsRefilledBuckets(t *testing.T) {
	l, clock := newTestLimiter(t, 60, 2)

	l.Allow("client:a")
	l.evictIdle()
	assert.Len(t, l.buckets, 1)

	clock.Advance(5 * time.Second)
	l.evictIdle()
	assert.Empty(t, l.buckets)
}

func TestLimiterStopTwice(t *testing.T) {
	l := New(DefaultConfig())
	l.Stop()
	assert.NotPanics(t, l.Stop)
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(t, 30, 1)

	r := gin.New()
	r.GET("/reports/generate", l.Middleware(ClientKey), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	get := func(url string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
		return w
	}

	assert.Equal(t, http.StatusOK, get("/reports/generate?client_id=acme").Code)

	w := get("/reports/generate?client_id=acme")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")

	assert.Equal(t, http.StatusOK, get("/reports/generate?client_id=globex").Code)
}
