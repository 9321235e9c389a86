package handlers

import (
	"net/http"
	"time"
)

// Health reports liveness. Kept dependency-free so it stays green while a
// downstream (DB, providers) is degraded; readiness is the orchestrator's job.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
