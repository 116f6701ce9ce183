package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mirag/ragchat/internal/document"
	"github.com/mirag/ragchat/internal/engine"
)

// engineHandler manages RAG engines and the active selection.
type engineHandler struct {
	registry  *engine.Registry
	corpora   CorpusLister
	documents *document.Manager
	logger    *slog.Logger
}

// list reconciles the registry against the remote corpus list when possible
// and returns the engines plus the current selection.
func (h *engineHandler) list(w http.ResponseWriter, r *http.Request) {
	var engines []engine.Engine
	var err error

	if h.corpora != nil {
		remote, listErr := h.corpora.ListCorpora(r.Context())
		if listErr != nil {
			// Remote unavailable: serve the local registry as-is.
			h.logger.Warn("remote corpus listing failed, serving local registry", "error", listErr)
			engines, err = h.registry.List()
		} else {
			remoteCorpora := make([]engine.RemoteCorpus, len(remote))
			for i, c := range remote {
				remoteCorpora[i] = engine.RemoteCorpus{ID: c.ID(), DisplayName: c.DisplayName}
			}
			engines, err = h.registry.Sync(remoteCorpora)
		}
	} else {
		engines, err = h.registry.List()
	}
	if err != nil {
		h.logger.Error("listing engines failed", "error", err)
		writeError(w, http.StatusInternalServerError, "engine_list_failed", "could not list engines")
		return
	}

	selected := ""
	if eng, selErr := h.registry.Selected(); selErr == nil {
		selected = eng.Name
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"engines":  engines,
		"selected": selected,
	})
}

// createEngineRequest is the body for engine creation.
type createEngineRequest struct {
	Name string `json:"name"`
}

func (h *engineHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createEngineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_name", "engine name is required")
		return
	}

	eng, err := h.registry.Create(r.Context(), req.Name)
	switch {
	case errors.Is(err, engine.ErrDuplicateName):
		writeError(w, http.StatusConflict, "duplicate_name", "an engine with this name already exists")
		return
	case err != nil:
		h.logger.Error("engine creation failed", "name", req.Name, "error", err)
		writeError(w, http.StatusBadGateway, "engine_create_failed", "could not create engine")
		return
	}

	writeJSON(w, http.StatusCreated, eng)
}

func (h *engineHandler) delete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	err := h.registry.Delete(r.Context(), name)
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "engine_not_found", "no engine with this name")
		return
	case err != nil:
		h.logger.Error("engine deletion failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "engine_delete_failed", "could not delete engine")
		return
	}

	h.syncDocumentCorpus()
	w.WriteHeader(http.StatusNoContent)
}

func (h *engineHandler) selectEngine(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	eng, err := h.registry.Select(name)
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "engine_not_found", "no engine with this name")
		return
	case err != nil:
		h.logger.Error("engine selection failed", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "engine_select_failed", "could not select engine")
		return
	}

	h.documents.SetCorpus(eng.CorpusID)
	writeJSON(w, http.StatusOK, map[string]string{"selected": eng.Name})
}

// syncDocumentCorpus points the document manager at the selected engine's
// corpus, so document operations follow the selection.
func (h *engineHandler) syncDocumentCorpus() {
	eng, err := h.registry.Selected()
	if err != nil {
		h.documents.SetCorpus("")
		return
	}
	h.documents.SetCorpus(eng.CorpusID)
}
