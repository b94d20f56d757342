// Package ratelimit provides per-client token bucket limiting for report
// generation endpoints.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Config configures rate limiting
type Config struct {
	// RequestsPerMinute is the sustained budget per key. Zero disables
	// limiting.
	RequestsPerMinute int
	// BurstSize allows brief bursts above the limit
	BurstSize int
	// CleanupInterval is how often idle keys are dropped
	CleanupInterval time.Duration
}

// DefaultConfig returns the report generation defaults: 30 reports per
// minute per client with bursts of 5.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 30,
		BurstSize:         5,
		CleanupInterval:   time.Minute,
	}
}

// KeyFunc extracts the limiting key from a request.
type KeyFunc func(c *gin.Context) string

// ClientKey limits by the client_id query parameter, falling back to the
// caller's IP when it is absent.
func ClientKey(c *gin.Context) string {
	if id := strings.TrimSpace(c.Query("client_id")); id != "" {
		return "client:" + id
	}
	return "ip:" + c.ClientIP()
}

// Limiter tracks token buckets by key
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// New creates a limiter and starts its cleanup goroutine. Call Stop to
// release it.
func New(cfg Config) *Limiter {
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

// evictIdle drops buckets that have refilled completely; they are
// indistinguishable from a new key.
func (l *Limiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, b := range l.buckets {
		if l.refill(b, now) >= float64(l.cfg.BurstSize) {
			delete(l.buckets, key)
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// Allow consumes one token for key. When denied, wait is how long until a
// token becomes available.
func (l *Limiter) Allow(key string) (ok bool, wait time.Duration) {
	if l.cfg.RequestsPerMinute <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: float64(l.cfg.BurstSize), lastCheck: now}
		l.buckets[key] = b
	}
	b.tokens = l.refill(b, now)
	b.lastCheck = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	missing := 1 - b.tokens
	return false, time.Duration(missing / l.rate() * float64(time.Second))
}

func (l *Limiter) rate() float64 {
	return float64(l.cfg.RequestsPerMinute) / 60.0
}

func (l *Limiter) refill(b *bucket, now time.Time) float64 {
	tokens := b.tokens + now.Sub(b.lastCheck).Seconds()*l.rate()
	return math.Min(tokens, float64(l.cfg.BurstSize))
}

// Middleware returns a Gin middleware limiting by key.
func (l *Limiter) Middleware(key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := l.Allow(key(c))
		if !ok {
			retryAfter := int(math.Ceil(wait.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many report requests for this client. Please slow down.",
				"retry_after": retryAfter,
			})
			return
		}
		c.Next()
	}
}
