package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tracelens/tracelens/app"
	"github.com/tracelens/tracelens/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	traceHandler := handlers.NewTraceHandler(deps.Coordinator, deps.Config.Pipeline.MaxUploadBytes, deps.Logger)
	issueHandler := handlers.NewIssueHandler(deps.IssueService, deps.Logger)
	notificationHandler := handlers.NewNotificationHandler(deps.Notifications, deps.Logger)
	auditHandler := handlers.NewAuditHandler(deps.Recorder, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Trace upload and lifecycle
		r.Route("/traces", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Post("/", traceHandler.HandleUpload)
			r.Get("/", traceHandler.HandleListTraces)
			r.Get("/{id}", traceHandler.HandleGetTrace)
			r.Post("/{id}/analyze", traceHandler.HandleStartAnalysis)
			r.Get("/{id}/issues", issueHandler.HandleListTraceIssues)
		})

		// Issue triage
		r.Route("/issues", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/", issueHandler.HandleListIssues)
			r.Get("/{id}", issueHandler.HandleGetIssue)
			r.Patch("/{id}", issueHandler.HandleTriageIssue)
		})

		// Notifications
		r.Route("/notifications", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/", notificationHandler.HandleListNotifications)
			r.Post("/{id}/read", notificationHandler.HandleMarkRead)
		})

		// Audit trail (read-only)
		r.Route("/audit", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/entries", auditHandler.HandleListEntries)
			r.Get("/resources/{id}", auditHandler.HandleResourceHistory)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
