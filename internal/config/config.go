// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mbd888/churnwatch/internal/churn"
	"github.com/mbd888/churnwatch/internal/sqldb"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "json" or "text"

	// Database
	DatabaseURL    string // optional, uses in-memory stores if not set
	DatabaseDriver string

	// Scoring
	ScorerURL     string
	ScorerTimeout time.Duration
	ModelPath     string // local logistic artifact, takes precedence over ScorerURL

	// Risk policy
	RiskMediumThreshold float64
	RiskHighThreshold   float64
	ChurnedThreshold    float64

	// Segment policy
	HighValueSpend     float64
	HighValueSessions  int
	RegularSpend       float64
	RegularSessions    int
	OccasionalSpend    float64
	OccasionalSessions int

	// Executive summary
	NarrativeEnabled bool
	NarrativeTimeout time.Duration
	GeminiAPIKey     string
	GeminiModel      string
	GeminiBaseURL    string

	// Observability
	OTLPEndpoint string

	// HTTP surface
	CORSAllowedOrigins []string
	ReportRateLimitRPM int
}

const (
	DefaultPort             = "8080"
	DefaultEnv              = "development"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultDatabaseDriver   = "postgres"
	DefaultScorerTimeout    = 10 * time.Second
	DefaultNarrativeTimeout = 20 * time.Second
	DefaultGeminiModel      = "gemini-1.5-pro"
	DefaultGeminiBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultReportRateLimit  = 30
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	risk := churn.DefaultRiskPolicy()
	seg := churn.DefaultSegmentPolicy()

	cfg := &Config{
		Port:           getEnv("PORT", DefaultPort),
		Env:            getEnv("ENV", DefaultEnv),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:      getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DatabaseDriver: getEnv("DATABASE_DRIVER", DefaultDatabaseDriver),

		ScorerURL:     strings.TrimRight(os.Getenv("SCORER_URL"), "/"),
		ScorerTimeout: getEnvDuration("SCORER_TIMEOUT", DefaultScorerTimeout),
		ModelPath:     os.Getenv("MODEL_PATH"),

		RiskMediumThreshold: getEnvFloat("RISK_MEDIUM_THRESHOLD", risk.MediumThreshold),
		RiskHighThreshold:   getEnvFloat("RISK_HIGH_THRESHOLD", risk.HighThreshold),
		ChurnedThreshold:    getEnvFloat("CHURNED_THRESHOLD", risk.ChurnedThreshold),

		HighValueSpend:     getEnvFloat("SEGMENT_HIGH_VALUE_SPEND", seg.HighValue.Spend),
		HighValueSessions:  getEnvInt("SEGMENT_HIGH_VALUE_SESSIONS", seg.HighValue.Sessions),
		RegularSpend:       getEnvFloat("SEGMENT_REGULAR_SPEND", seg.Regular.Spend),
		RegularSessions:    getEnvInt("SEGMENT_REGULAR_SESSIONS", seg.Regular.Sessions),
		OccasionalSpend:    getEnvFloat("SEGMENT_OCCASIONAL_SPEND", seg.Occasional.Spend),
		OccasionalSessions: getEnvInt("SEGMENT_OCCASIONAL_SESSIONS", seg.Occasional.Sessions),

		NarrativeEnabled: getEnvBool("NARRATIVE_ENABLED", true),
		NarrativeTimeout: getEnvDuration("NARRATIVE_TIMEOUT", DefaultNarrativeTimeout),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", DefaultGeminiModel),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", DefaultGeminiBaseURL),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ReportRateLimitRPM: getEnvInt("REPORT_RATE_LIMIT_RPM", DefaultReportRateLimit),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and that
// the policies are consistent
func (c *Config) Validate() error {
	if c.ScorerURL == "" && c.ModelPath == "" {
		return fmt.Errorf("one of SCORER_URL or MODEL_PATH is required")
	}
	if c.DatabaseURL != "" {
		if _, err := sqldb.ParseDialect(c.DatabaseDriver); err != nil {
			return fmt.Errorf("DATABASE_DRIVER: %w", err)
		}
	}
	if err := c.RiskPolicy().Validate(); err != nil {
		return err
	}
	if err := c.SegmentPolicy().Validate(); err != nil {
		return err
	}
	if c.ScorerTimeout <= 0 {
		return fmt.Errorf("SCORER_TIMEOUT must be positive")
	}
	if c.NarrativeTimeout <= 0 {
		return fmt.Errorf("NARRATIVE_TIMEOUT must be positive")
	}
	if c.ReportRateLimitRPM < 0 {
		return fmt.Errorf("REPORT_RATE_LIMIT_RPM must not be negative")
	}
	return nil
}

// RiskPolicy returns the configured tier thresholds.
func (c *Config) RiskPolicy() churn.RiskPolicy {
	return churn.RiskPolicy{
		MediumThreshold:  c.RiskMediumThreshold,
		HighThreshold:    c.RiskHighThreshold,
		ChurnedThreshold: c.ChurnedThreshold,
	}
}

// SegmentPolicy returns the configured segment cascade.
func (c *Config) SegmentPolicy() churn.SegmentPolicy {
	return churn.SegmentPolicy{
		HighValue:  churn.SegmentThreshold{Spend: c.HighValueSpend, Sessions: c.HighValueSessions},
		Regular:    churn.SegmentThreshold{Spend: c.RegularSpend, Sessions: c.RegularSessions},
		Occasional: churn.SegmentThreshold{Spend: c.OccasionalSpend, Sessions: c.OccasionalSessions},
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
