package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mirag/ragchat/internal/chat"
)

// modelHandler exposes the model catalog and the active selection.
type modelHandler struct {
	models *chat.ModelSelection
	logger *slog.Logger
}

func (h *modelHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models":   chat.ModelOptions,
		"selected": h.models.Current(),
	})
}

// selectModelRequest is the body for model selection.
type selectModelRequest struct {
	ID string `json:"id"`
}

func (h *modelHandler) selectModel(w http.ResponseWriter, r *http.Request) {
	var req selectModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	if err := h.models.Set(req.ID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_model", "model id is required")
		return
	}

	h.logger.Info("model selected", "model", req.ID)
	writeJSON(w, http.StatusOK, map[string]string{"selected": req.ID})
}
