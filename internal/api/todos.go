package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mirag/ragchat/internal/todo"
)

// todoHandler exposes the note lists.
type todoHandler struct {
	store  *todo.Store
	logger *slog.Logger
}

func (h *todoHandler) lists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.store.Lists()
	if err != nil {
		h.logger.Error("listing todo lists failed", "error", err)
		writeError(w, http.StatusInternalServerError, "todo_list_failed", "could not read lists")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lists": lists})
}

type createListRequest struct {
	Name string `json:"name"`
}

func (h *todoHandler) createList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	err := h.store.CreateList(req.Name)
	switch {
	case errors.Is(err, todo.ErrDuplicateList):
		writeError(w, http.StatusConflict, "duplicate_list", "a list with this name already exists")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid_list", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (h *todoHandler) deleteList(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("list")

	err := h.store.DeleteList(name)
	switch {
	case errors.Is(err, todo.ErrListNotFound):
		writeError(w, http.StatusNotFound, "list_not_found", "no list with this name")
		return
	case err != nil:
		h.logger.Error("deleting todo list failed", "list", name, "error", err)
		writeError(w, http.StatusInternalServerError, "todo_delete_failed", "could not delete list")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type addItemRequest struct {
	Text string `json:"text"`
}

func (h *todoHandler) addItem(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("list")

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	item, err := h.store.AddItem(name, req.Text)
	switch {
	case errors.Is(err, todo.ErrListNotFound):
		writeError(w, http.StatusNotFound, "list_not_found", "no list with this name")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid_item", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

func (h *todoHandler) toggleItem(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("list")
	id := r.PathValue("id")

	err := h.store.ToggleItem(name, id)
	switch {
	case errors.Is(err, todo.ErrListNotFound), errors.Is(err, todo.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "item_not_found", "no such list or item")
		return
	case err != nil:
		h.logger.Error("toggling todo item failed", "list", name, "item", id, "error", err)
		writeError(w, http.StatusInternalServerError, "todo_toggle_failed", "could not toggle item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *todoHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("list")
	id := r.PathValue("id")

	err := h.store.RemoveItem(name, id)
	switch {
	case errors.Is(err, todo.ErrListNotFound), errors.Is(err, todo.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "item_not_found", "no such list or item")
		return
	case err != nil:
		h.logger.Error("removing todo item failed", "list", name, "item", id, "error", err)
		writeError(w, http.StatusInternalServerError, "todo_remove_failed", "could not remove item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
