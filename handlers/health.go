package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/tracelens/tracelens/app"
	"go.uber.org/zap"
)

// HealthCheck returns a simple health check handler
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// ReadinessCheck performs a more thorough readiness check
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"status": "ready",
			"checks": map[string]interface{}{},
		}
		checks := response["checks"].(map[string]interface{})

		// Check database
		if deps.DB == nil {
			response["status"] = "not_ready"
			checks["database"] = "not_initialized"
		} else if err := deps.DB.HealthCheck(r.Context()); err != nil {
			response["status"] = "not_ready"
			checks["database"] = "unhealthy"
			deps.Logger.Error("database health check failed", zap.Error(err))
		} else {
			checks["database"] = "healthy"
		}

		// Notification backlog is informational, not a readiness gate.
		if deps.Dispatcher != nil {
			checks["notification_backlog"] = deps.Dispatcher.Pending()
		}

		w.Header().Set("Content-Type", "application/json")
		if response["status"] == "ready" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response)
	}
}
