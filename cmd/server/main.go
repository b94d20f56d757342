// ChurnWatch - weekly churn reports for e-commerce clients
package main

import (
	"context"
	"os"

	"github.com/mbd888/churnwatch/internal/config"
	"github.com/mbd888/churnwatch/internal/logging"
	"github.com/mbd888/churnwatch/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting churnwatch",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)
	logger.Info("configuration loaded",
		"env", cfg.Env,
		"storage", storageMode(cfg),
		"narrative_enabled", cfg.NarrativeEnabled,
	)

	srv, err := server.New(cfg, server.WithLogger(logger), server.WithVersion(Version))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func storageMode(cfg *config.Config) string {
	if cfg.DatabaseURL == "" {
		return "memory"
	}
	return cfg.DatabaseDriver
}
