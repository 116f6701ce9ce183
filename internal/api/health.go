package api

import (
	"net/http"

	"github.com/mirag/ragchat/internal/auth"
)

// healthHandler serves the liveness and readiness probes.
type healthHandler struct {
	auth *auth.Manager
}

// liveness returns 200 OK if the process is alive.
func (h *healthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness reports whether the server can serve authenticated traffic.
// The server is ready even when logged out; the authenticated flag lets
// probes distinguish the two states.
func (h *healthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"ready":         true,
		"authenticated": h.auth.Authenticated(r.Context()),
	})
}
