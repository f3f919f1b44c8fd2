// Package main implements the entry point for the TaskVault API server,
// which handles user authentication, task management with audit history,
// and asynchronous CSV bulk imports.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/taskvault/taskvault/internal/config"
	"github.com/taskvault/taskvault/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, status) and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.Setup(cfg.Server)
	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"workers", cfg.Worker.Count)

	db, err := setupDatabase(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if *migrateCmd != "" {
		if err := runMigrationCommand(db, *migrateCmd); err != nil {
			log.Fatalf("Migration command %q failed: %v", *migrateCmd, err)
		}
		return
	}

	// Pending migrations are applied on every start; goose makes this a
	// no-op when the schema is current.
	if err := applyMigrations(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
