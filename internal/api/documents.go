package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mirag/ragchat/internal/document"
	"github.com/mirag/ragchat/internal/engine"
)

// MaxUploadBytes bounds document uploads.
const MaxUploadBytes = 64 << 20 // 64 MiB

// documentHandler manages the files of the selected corpus.
type documentHandler struct {
	documents *document.Manager
	registry  *engine.Registry
	logger    *slog.Logger
}

// bindCorpus points the document manager at the selected engine's corpus.
// Returns false (after writing an error) when no engine is selected.
func (h *documentHandler) bindCorpus(w http.ResponseWriter) bool {
	eng, err := h.registry.Selected()
	if err != nil {
		writeError(w, http.StatusConflict, "no_engine_selected", "select an engine first")
		return false
	}
	h.documents.SetCorpus(eng.CorpusID)
	return true
}

func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	if !h.bindCorpus(w) {
		return
	}

	files, err := h.documents.List(r.Context())
	if err != nil {
		h.logger.Error("listing documents failed", "error", err)
		writeError(w, http.StatusBadGateway, "document_list_failed", "could not list documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": files})
}

func (h *documentHandler) refresh(w http.ResponseWriter, r *http.Request) {
	if !h.bindCorpus(w) {
		return
	}

	files, err := h.documents.Refresh(r.Context())
	if err != nil {
		h.logger.Error("refreshing documents failed", "error", err)
		writeError(w, http.StatusBadGateway, "document_list_failed", "could not refresh documents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": files})
}

// upload accepts a multipart form with a single "file" part.
func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	if !h.bindCorpus(w) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", "expected a multipart form with a file part")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", "missing file part")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_upload", "could not read file")
		return
	}

	if err := h.documents.Upload(r.Context(), header.Filename, data); err != nil {
		if errors.Is(err, document.ErrUpload) {
			h.logger.Error("document upload failed", "file", header.Filename, "error", err)
			writeError(w, http.StatusBadGateway, "upload_failed", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "upload_failed", "could not upload document")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "uploaded", "file": header.Filename})
}

func (h *documentHandler) delete(w http.ResponseWriter, r *http.Request) {
	if !h.bindCorpus(w) {
		return
	}

	id := r.PathValue("id")
	if err := h.documents.Delete(r.Context(), id); err != nil {
		h.logger.Error("document deletion failed", "file_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "delete_failed", "could not delete document")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
