package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mirag/ragchat/internal/instruction"
)

// MaxInstructionLength bounds preset bodies.
const MaxInstructionLength = 50000

// instructionHandler manages system-instruction presets.
type instructionHandler struct {
	library *instruction.Library
	logger  *slog.Logger
}

func (h *instructionHandler) list(w http.ResponseWriter, r *http.Request) {
	names, err := h.library.Names()
	if err != nil {
		h.logger.Error("listing presets failed", "error", err)
		writeError(w, http.StatusInternalServerError, "preset_list_failed", "could not list presets")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"presets": names})
}

func (h *instructionHandler) get(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	text, err := h.library.Get(name)
	switch {
	case errors.Is(err, instruction.ErrNotFound):
		writeError(w, http.StatusNotFound, "preset_not_found", "no preset with this name")
		return
	case err != nil:
		h.logger.Error("reading preset failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "preset_read_failed", "could not read preset")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"name": name, "text": text})
}

// presetBody is the body for preset writes and activation.
type presetBody struct {
	Text string `json:"text"`
}

func (h *instructionHandler) put(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req presetBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if len(req.Text) > MaxInstructionLength {
		writeError(w, http.StatusBadRequest, "preset_too_long", "instruction text too long")
		return
	}

	if err := h.library.Put(name, req.Text); err != nil {
		h.logger.Error("writing preset failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "preset_write_failed", "could not write preset")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (h *instructionHandler) delete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	err := h.library.Delete(name)
	switch {
	case errors.Is(err, instruction.ErrReservedPreset):
		writeError(w, http.StatusForbidden, "preset_reserved", "the default preset cannot be deleted")
		return
	case errors.Is(err, instruction.ErrNotFound):
		writeError(w, http.StatusNotFound, "preset_not_found", "no preset with this name")
		return
	case err != nil:
		h.logger.Error("deleting preset failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "preset_delete_failed", "could not delete preset")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// activate sets the active instruction text. The chat session is rebuilt on
// the next send because its binding changed.
func (h *instructionHandler) activate(w http.ResponseWriter, r *http.Request) {
	var req presetBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if len(req.Text) > MaxInstructionLength {
		writeError(w, http.StatusBadRequest, "preset_too_long", "instruction text too long")
		return
	}

	if err := h.library.Activate(req.Text); err != nil {
		h.logger.Error("activating instruction failed", "error", err)
		writeError(w, http.StatusInternalServerError, "activate_failed", "could not activate instruction")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "activated"})
}
