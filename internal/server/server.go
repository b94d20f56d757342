// Package server wires the report service, its dependencies and the HTTP
// surface together.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/churnwatch/internal/circuitbreaker"
	"github.com/mbd888/churnwatch/internal/config"
	"github.com/mbd888/churnwatch/internal/events"
	"github.com/mbd888/churnwatch/internal/health"
	"github.com/mbd888/churnwatch/internal/idgen"
	"github.com/mbd888/churnwatch/internal/logging"
	"github.com/mbd888/churnwatch/internal/metrics"
	"github.com/mbd888/churnwatch/internal/narrative"
	"github.com/mbd888/churnwatch/internal/ratelimit"
	"github.com/mbd888/churnwatch/internal/realtime"
	"github.com/mbd888/churnwatch/internal/reports"
	"github.com/mbd888/churnwatch/internal/scoring"
	"github.com/mbd888/churnwatch/internal/security"
	"github.com/mbd888/churnwatch/internal/sqldb"
	"github.com/mbd888/churnwatch/internal/traces"
	"github.com/mbd888/churnwatch/internal/users"
	"github.com/mbd888/churnwatch/internal/validation"
)

// Circuit breaker settings for external dependencies.
const (
	breakerThreshold    = 5
	breakerOpenDuration = 30 * time.Second
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg     *config.Config
	version string

	db          *sql.DB // nil if using in-memory
	events      events.Store
	users       users.Directory
	scorer      scoring.Scorer
	generator   narrative.Generator
	reports     *reports.Service
	realtimeHub *realtime.Hub
	health      *health.Registry
	rateLimiter *ratelimit.Limiter
	clock       func() time.Time

	scorerBreaker    *circuitbreaker.Breaker
	narrativeBreaker *circuitbreaker.Breaker

	router          *gin.Engine
	httpSrv         *http.Server
	logger          *slog.Logger
	cancelRunCtx    context.CancelFunc // cancels background goroutines started in Run
	shutdownTracing func(context.Context) error
	drainDelay      time.Duration

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithVersion sets the version reported by /health and traces.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithEventStore replaces the configured event store (for testing and demos)
func WithEventStore(store events.Store) Option {
	return func(s *Server) {
		s.events = store
	}
}

// WithDirectory replaces the configured user directory
func WithDirectory(dir users.Directory) Option {
	return func(s *Server) {
		s.users = dir
	}
}

// WithScorer replaces the configured scorer
func WithScorer(scorer scoring.Scorer) Option {
	return func(s *Server) {
		s.scorer = scorer
	}
}

// WithGenerator replaces the narrative engine
func WithGenerator(gen narrative.Generator) Option {
	return func(s *Server) {
		s.generator = gen
	}
}

// WithClock sets the reference time used by report generation
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.clock = now
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		version:    "dev",
		logger:     logging.New(cfg.LogLevel, cfg.LogFormat),
		health:     health.NewRegistry(),
		drainDelay: 5 * time.Second,
	}

	// Apply options first (may inject stores, scorer, logger)
	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	s.scorerBreaker = circuitbreaker.New(breakerThreshold, breakerOpenDuration)
	s.narrativeBreaker = circuitbreaker.New(breakerThreshold, breakerOpenDuration)
	for _, b := range []*circuitbreaker.Breaker{s.scorerBreaker, s.narrativeBreaker} {
		b.OnTransition(func(key string, from, to circuitbreaker.State) {
			s.logger.Warn("circuit breaker transition", "dependency", key, "from", from.String(), "to", to.String())
		})
	}

	if err := s.setupStorage(ctx); err != nil {
		return nil, err
	}
	if err := s.setupScorer(); err != nil {
		return nil, err
	}
	s.setupNarrative()

	// Realtime hub for dashboard notifications
	s.realtimeHub = realtime.NewHub(s.logger, cfg.CORSAllowedOrigins)

	reportOpts := []reports.Option{reports.WithNotifier(s.realtimeHub)}
	if s.clock != nil {
		reportOpts = append(reportOpts, reports.WithClock(s.clock))
	}
	s.reports = reports.NewService(
		s.events,
		s.users,
		s.scorer,
		cfg.RiskPolicy(),
		cfg.SegmentPolicy(),
		narrative.NewSummarizer(s.generator, narrative.Config{
			Enabled: cfg.NarrativeEnabled,
			Timeout: cfg.NarrativeTimeout,
		}, s.narrativeBreaker),
		reportOpts...,
	)

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// setupStorage uses SQL when DATABASE_URL is set and in-memory stores
// otherwise. Injected stores win.
func (s *Server) setupStorage(ctx context.Context) error {
	if s.cfg.DatabaseURL == "" {
		if s.events == nil {
			s.events = events.NewMemoryStore()
			s.logger.Info("using in-memory event store (data will not persist)")
		}
		if s.users == nil {
			s.users = users.NewMemoryDirectory()
		}
		s.health.Register("events", health.Static("in-memory"))
		return nil
	}

	dialect, err := sqldb.ParseDialect(s.cfg.DatabaseDriver)
	if err != nil {
		return err
	}
	db, err := sqldb.Open(ctx, dialect, s.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	s.db = db
	if s.events == nil {
		s.events = events.NewSQLStore(db, dialect)
	}
	if s.users == nil {
		s.users = users.NewSQLDirectory(db, dialect)
	}
	s.health.Register("database", health.PingChecker(db))
	s.logger.Info("using SQL storage", "driver", string(dialect), "url", sqldb.MaskDSN(s.cfg.DatabaseURL))
	return nil
}

// setupScorer prefers a local model artifact over the remote model server.
func (s *Server) setupScorer() error {
	switch {
	case s.scorer != nil:
		s.health.Register("scorer", health.Static("injected"))
	case s.cfg.ModelPath != "":
		local, err := scoring.LoadLogisticScorer(s.cfg.ModelPath)
		if err != nil {
			return fmt.Errorf("failed to load model: %w", err)
		}
		s.scorer = local
		s.health.Register("scorer", health.Static("local model "+local.ModelVersion()))
		s.logger.Info("using local model", "path", s.cfg.ModelPath, "model_version", local.ModelVersion())
	default:
		s.scorer = scoring.NewHTTPScorer(scoring.HTTPConfig{
			BaseURL: s.cfg.ScorerURL,
			Timeout: s.cfg.ScorerTimeout,
		}, s.scorerBreaker)
		s.health.Register("scorer", health.BreakerChecker(s.scorerBreaker, scoring.BreakerKey))
		s.logger.Info("using remote model server", "url", s.cfg.ScorerURL)
	}
	return nil
}

func (s *Server) setupNarrative() {
	if s.generator == nil && s.cfg.GeminiAPIKey != "" {
		s.generator = narrative.NewGeminiClient(narrative.GeminiConfig{
			APIKey:  s.cfg.GeminiAPIKey,
			Model:   s.cfg.GeminiModel,
			BaseURL: s.cfg.GeminiBaseURL,
		})
	}
	switch {
	case !s.cfg.NarrativeEnabled:
		s.logger.Info("executive summaries use the template (narrative disabled)")
	case s.generator == nil:
		s.logger.Info("executive summaries use the template (no GEMINI_API_KEY)")
	default:
		s.health.RegisterOptional("narrative", health.BreakerChecker(s.narrativeBreaker, narrative.BreakerKey))
	}
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	s.router.Use(traces.Middleware())
	s.router.Use(security.HeadersMiddleware(security.HeadersOptions{HSTS: s.cfg.IsProduction()}))
	s.router.Use(security.CORSMiddleware(s.cfg.CORSAllowedOrigins))
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Keep an upstream request ID (load balancer, gateway) when present
		requestID := validation.SanitizeString(c.GetHeader("X-Request-ID"), 64)
		if requestID == "" {
			requestID = idgen.RequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}

		logger := logging.L(c.Request.Context())
		switch {
		case status >= 500:
			logger.Error("request completed", append(attrs, "client_ip", c.ClientIP())...)
		case status >= 400:
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// Dashboard push
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// Report API, limited per client
	s.rateLimiter = ratelimit.New(ratelimit.Config{
		RequestsPerMinute: s.cfg.ReportRateLimitRPM,
		BurstSize:         max(1, s.cfg.ReportRateLimitRPM/6),
		CleanupInterval:   time.Minute,
	})
	v1 := s.router.Group("/v1", s.rateLimiter.Middleware(ratelimit.ClientKey))
	reports.NewHandler(s.reports).RegisterRoutes(v1)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks"`
	Realtime  map[string]any  `json:"realtime,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.health.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   s.version,
		Checks:    checks,
		Realtime:  s.realtimeHub.Stats(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	if healthy, checks := s.health.CheckAll(c.Request.Context()); !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	shutdownTracing, err := traces.Init(ctx, s.cfg.OTLPEndpoint, s.version, s.logger)
	if err != nil {
		s.logger.Warn("tracing init failed, continuing without traces", "error", err)
	} else {
		s.shutdownTracing = shutdownTracing
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Report generation waits on the model and narrative engine.
		WriteTimeout: s.cfg.ScorerTimeout + s.cfg.NarrativeTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port, "version", s.version)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)

	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(s.drainDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.shutdownTracing != nil {
		if err := s.shutdownTracing(ctx); err != nil {
			s.logger.Warn("tracer shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
