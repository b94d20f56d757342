// Command migrate runs database migrations via goose.
//
// Usage:
//
//	go run ./cmd/migrate up          # Apply all pending migrations
//	go run ./cmd/migrate down        # Roll back the last migration
//	go run ./cmd/migrate status      # Show migration status
//	go run ./cmd/migrate version     # Show current schema version
//	go run ./cmd/migrate redo        # Roll back and re-apply last migration
//
// DATABASE_DRIVER (postgres or mysql) selects both the driver and the
// migrations/<driver> directory.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/mbd888/churnwatch/internal/sqldb"
)

const migrationsRoot = "migrations"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <command>")
		fmt.Println("Commands: up, down, status, version, redo, up-to <version>, down-to <version>")
		os.Exit(1)
	}

	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	dialect, err := sqldb.ParseDialect(os.Getenv("DATABASE_DRIVER"))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	db, err := sqldb.Open(ctx, dialect, dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := goose.SetDialect(string(dialect)); err != nil {
		log.Fatalf("Unsupported goose dialect: %v", err)
	}

	command := os.Args[1]
	args := os.Args[2:]
	dir := filepath.Join(migrationsRoot, string(dialect))

	if err := goose.RunContext(ctx, command, db, dir, args...); err != nil {
		log.Fatalf("Migration %s failed: %v", command, err)
	}
}
