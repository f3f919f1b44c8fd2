package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taskvault/taskvault/internal/api"
	apiMiddleware "github.com/taskvault/taskvault/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	authHandler := api.NewAuthHandler(
		app.userStore,
		app.jwtService,
		app.passwordHasher,
		app.passwordVerifier,
		time.Duration(app.config.Auth.TokenLifetimeSeconds)*time.Second,
	)
	taskHandler := api.NewTaskHandler(app.taskService)
	importHandler := api.NewImportHandler(app.importService)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/tasks", taskHandler.List)
			r.Get("/task/{task_logger_id}", taskHandler.Get)
			r.Post("/task", taskHandler.Create)
			r.Put("/task/{task_id}", taskHandler.Update)
			r.Delete("/task/{task_id}", taskHandler.Delete)

			r.Post("/upload-csv", importHandler.Upload)
			r.Get("/import/{job_id}", importHandler.Status)
		})
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
