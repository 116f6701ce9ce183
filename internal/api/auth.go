package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mirag/ragchat/internal/auth"
	"github.com/mirag/ragchat/internal/chat"
)

// stateTTL bounds how long an issued OAuth state parameter stays valid.
const stateTTL = 10 * time.Minute

// authHandler drives the OAuth login flow and credential lifecycle.
type authHandler struct {
	auth   *auth.Manager
	chat   *chat.Manager
	logger *slog.Logger

	mu     sync.Mutex
	states map[string]time.Time
}

// authorizeURL issues an authorization URL with a fresh state parameter.
func (h *authHandler) authorizeURL(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	h.mu.Lock()
	now := time.Now()
	for s, issued := range h.states {
		if now.Sub(issued) > stateTTL {
			delete(h.states, s)
		}
	}
	h.states[state] = now
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"url": h.auth.AuthorizeURL(state),
	})
}

// callback is the OAuth redirect target: validates state and exchanges the
// authorization code for credentials.
func (h *authHandler) callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, "invalid_callback", "state and code are required")
		return
	}

	h.mu.Lock()
	issued, ok := h.states[state]
	delete(h.states, state)
	h.mu.Unlock()
	if !ok || time.Since(issued) > stateTTL {
		writeError(w, http.StatusForbidden, "invalid_state", "unknown or expired state parameter")
		return
	}

	if err := h.auth.Login(r.Context(), code); err != nil {
		h.logger.Error("oauth exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "exchange_failed", "could not exchange authorization code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "authenticated"})
}

// status reports whether stored credentials exist.
func (h *authHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"authenticated": h.auth.Authenticated(r.Context()),
	})
}

// logout drops credentials and the in-memory conversation.
func (h *authHandler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(); err != nil {
		h.logger.Error("logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "logout_failed", "could not clear credentials")
		return
	}
	h.chat.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
