package handlers

import (
	"net/http"
	"time"
)

var startedAt = time.Now()

// Health reports liveness. Kept dependency-free so load balancer probes
// succeed even when Postgres or Redis are down.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(startedAt).Round(time.Second).String(),
	})
}
