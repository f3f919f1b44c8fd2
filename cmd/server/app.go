package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskvault/taskvault/internal/config"
	"github.com/taskvault/taskvault/internal/importer"
	"github.com/taskvault/taskvault/internal/platform/postgres"
	"github.com/taskvault/taskvault/internal/platform/redisq"
	"github.com/taskvault/taskvault/internal/service"
	"github.com/taskvault/taskvault/internal/service/auth"
	"github.com/taskvault/taskvault/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	rdb    *redis.Client

	// Stores (using interfaces for proper abstraction)
	userStore  store.UserStore
	taskStore  store.TaskStore
	auditStore store.AuditLogStore

	// Redis-backed components
	taskCache *redisq.TaskCache
	jobStore  *redisq.JobStore
	queue     *redisq.ImportQueue

	// Service interfaces
	jwtService       auth.JWTService
	passwordHasher   auth.PasswordHasher
	passwordVerifier auth.PasswordVerifier
	taskService      *service.TaskService
	importService    *importer.Service

	// Background import workers
	pool *importer.Pool
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_seconds", cfg.Auth.TokenLifetimeSeconds)

	app.passwordHasher = auth.NewBcryptHasher(bcrypt.DefaultCost)
	app.passwordVerifier = auth.NewBcryptVerifier()

	app.userStore = postgres.NewPostgresUserStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.auditStore = postgres.NewPostgresAuditLogStore(db, logger)

	app.rdb = redisq.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
	if err := app.rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	logger.Info("Redis connection established", "addr", cfg.Redis.Addr)

	app.taskCache = redisq.NewTaskCache(app.rdb,
		time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second, logger)
	app.jobStore = redisq.NewJobStore(app.rdb,
		time.Duration(cfg.Redis.JobTTLSeconds)*time.Second, logger)
	app.queue = redisq.NewImportQueue(app.rdb, logger)

	app.taskService = service.NewTaskService(app.taskStore, app.auditStore, app.taskCache, logger)
	app.importService = importer.NewService(app.queue, app.jobStore, logger)

	processor := importer.NewProcessor(
		app.jobStore,
		app.taskStore,
		app.userStore,
		app.passwordHasher,
		app.taskCache,
		logger,
	)
	app.pool = importer.NewPool(
		app.queue,
		processor,
		cfg.Worker.Count,
		time.Duration(cfg.Worker.StuckJobAgeSeconds)*time.Second,
		logger,
	)
	app.pool.Start()

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources. The worker
// pool drains first so in-flight imports finish before the connections go
// away.
func (app *application) cleanup() {
	if app.pool != nil {
		app.pool.Stop()
	}

	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Error("Error closing redis connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
