package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mirag/ragchat/internal/auth"
	"github.com/mirag/ragchat/internal/chat"
)

// MaxPromptLength bounds single chat prompts.
const MaxPromptLength = 100000

// chatHandler mediates conversation turns.
type chatHandler struct {
	chat   *chat.Manager
	logger *slog.Logger
}

// sendRequest is the body for one chat turn.
type sendRequest struct {
	Prompt string `json:"prompt"`
}

func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if len(req.Prompt) > MaxPromptLength {
		writeError(w, http.StatusBadRequest, "prompt_too_long", "prompt too long")
		return
	}

	msg, err := h.chat.Send(r.Context(), req.Prompt)
	switch {
	case errors.Is(err, chat.ErrEmptyPrompt):
		// A blank prompt is a no-op, not an error: nothing is sent and the
		// history stays as it was.
		w.WriteHeader(http.StatusNoContent)
		return
	case errors.Is(err, chat.ErrNoBinding):
		writeError(w, http.StatusConflict, "no_binding", "select an engine and model first")
		return
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", "log in first")
		return
	case errors.Is(err, chat.ErrGeneration):
		h.logger.Error("generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "generation_failed", "the model call failed; the prompt is kept in history")
		return
	case err != nil:
		h.logger.Error("chat turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "chat_failed", "could not process the turn")
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *chatHandler) history(w http.ResponseWriter, r *http.Request) {
	history := h.chat.History()
	if history == nil {
		history = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": history})
}

func (h *chatHandler) clear(w http.ResponseWriter, r *http.Request) {
	h.chat.Clear()
	w.WriteHeader(http.StatusNoContent)
}
