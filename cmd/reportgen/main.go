// Command reportgen generates weekly churn reports for a range of weeks and
// writes each one to a JSON file.
//
// Usage:
//
//	go run ./cmd/reportgen -client acme -from 2025-01-05 -to 2025-03-30 -out ./reports
//
// Storage, scorer and narrative settings come from the same environment
// variables as the server. DATABASE_URL is required.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/mbd888/churnwatch/internal/circuitbreaker"
	"github.com/mbd888/churnwatch/internal/config"
	"github.com/mbd888/churnwatch/internal/events"
	"github.com/mbd888/churnwatch/internal/logging"
	"github.com/mbd888/churnwatch/internal/narrative"
	"github.com/mbd888/churnwatch/internal/reports"
	"github.com/mbd888/churnwatch/internal/scoring"
	"github.com/mbd888/churnwatch/internal/sqldb"
	"github.com/mbd888/churnwatch/internal/users"
	"github.com/mbd888/churnwatch/internal/validation"
)

func main() {
	var (
		clientID = flag.String("client", "", "client id (required)")
		fromRaw  = flag.String("from", "", "first week-ending date, YYYY-MM-DD (required)")
		toRaw    = flag.String("to", "", "last week-ending date, YYYY-MM-DD (defaults to -from)")
		outDir   = flag.String("out", "reports", "output directory")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("load config", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	weeks, err := weekRange(*fromRaw, *toRaw)
	if err != nil {
		fail("parse flags", err)
	}
	if !validation.IsValidClientID(*clientID) {
		fail("parse flags", fmt.Errorf("invalid -client %q", *clientID))
	}
	if cfg.DatabaseURL == "" {
		fail("load config", errors.New("DATABASE_URL is required"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	svc, closeDB, err := buildService(ctx, cfg)
	if err != nil {
		fail("build service", err)
	}
	defer closeDB()

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fail("create output dir", err)
	}

	bar := progressbar.Default(int64(len(weeks)), "generating reports")
	failed := 0
	for _, week := range weeks {
		if ctx.Err() != nil {
			break
		}
		if err := writeReport(ctx, svc, *clientID, week, *outDir); err != nil {
			failed++
			logger.Error("report failed", "client_id", *clientID, "week_ending", week.Format(time.DateOnly), "error", err)
		}
		_ = bar.Add(1)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d reports failed\n", failed, len(weeks))
		os.Exit(1)
	}
}

func buildService(ctx context.Context, cfg *config.Config) (*reports.Service, func(), error) {
	dialect, err := sqldb.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqldb.Open(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = db.Close() }

	var scorer scoring.Scorer
	if cfg.ModelPath != "" {
		local, err := scoring.LoadLogisticScorer(cfg.ModelPath)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		scorer = local
	} else {
		scorer = scoring.NewHTTPScorer(scoring.HTTPConfig{
			BaseURL: cfg.ScorerURL,
			Timeout: cfg.ScorerTimeout,
		}, circuitbreaker.New(5, 30*time.Second))
	}

	var gen narrative.Generator
	if cfg.GeminiAPIKey != "" {
		gen = narrative.NewGeminiClient(narrative.GeminiConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		})
	}

	svc := reports.NewService(
		events.NewSQLStore(db, dialect),
		users.NewSQLDirectory(db, dialect),
		scorer,
		cfg.RiskPolicy(),
		cfg.SegmentPolicy(),
		narrative.NewSummarizer(gen, narrative.Config{
			Enabled: cfg.NarrativeEnabled,
			Timeout: cfg.NarrativeTimeout,
		}, circuitbreaker.New(5, 30*time.Second)),
	)
	return svc, closeDB, nil
}

func writeReport(ctx context.Context, svc *reports.Service, clientID string, week time.Time, outDir string) error {
	result, err := svc.Generate(ctx, clientID, week)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(result.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	name := fmt.Sprintf("%s_%s.json", clientID, result.Report.WeekEnding)
	return os.WriteFile(filepath.Join(outDir, name), data, 0o644)
}

// weekRange returns every week-ending date from from to to inclusive,
// stepping seven days.
func weekRange(fromRaw, toRaw string) ([]time.Time, error) {
	from, err := validation.ParseDate(fromRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid -from: %w", err)
	}
	to := from
	if toRaw != "" {
		if to, err = validation.ParseDate(toRaw); err != nil {
			return nil, fmt.Errorf("invalid -to: %w", err)
		}
	}
	if to.Before(from) {
		return nil, fmt.Errorf("-to %s is before -from %s", toRaw, fromRaw)
	}

	var weeks []time.Time
	for w := from; !w.After(to); w = w.AddDate(0, 0, 7) {
		weeks = append(weeks, w)
	}
	return weeks, nil
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "reportgen: %s: %v\n", step, err)
	os.Exit(1)
}
