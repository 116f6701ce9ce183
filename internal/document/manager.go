// Package document manages the files of the currently selected corpus: a
// thin layer over the corpus service with a local mirror of the file list.
// The mirror is invalidated after this process's own mutations; changes made
// by another client are only observed on the next refresh.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/mirag/ragchat/internal/rag"
)

// Sentinel errors for document operations.
var (
	// ErrUpload indicates a document upload was rejected or failed.
	ErrUpload = errors.New("document upload failed")

	// ErrDelete indicates a document deletion failed.
	ErrDelete = errors.New("document delete failed")
)

// FileService is the corpus-service side of document management.
// Satisfied by *rag.Client; tests substitute a stub.
type FileService interface {
	UploadFile(ctx context.Context, corpusID, displayName string, r io.Reader) (rag.File, error)
	ListFiles(ctx context.Context, corpusID string) ([]rag.File, error)
	DeleteFile(ctx context.Context, corpusID, fileID string) error
}

// Manager lists and mutates the documents of one corpus at a time.
type Manager struct {
	service FileService
	logger  *slog.Logger

	mu       sync.Mutex
	corpusID string
	mirror   []rag.File
	fresh    bool
}

// NewManager creates a document manager over the given file service.
func NewManager(service FileService, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{service: service, logger: logger}
}

// SetCorpus points the manager at a corpus, discarding the mirror if the
// corpus changed.
func (m *Manager) SetCorpus(corpusID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.corpusID != corpusID {
		m.corpusID = corpusID
		m.mirror = nil
		m.fresh = false
	}
}

// Upload sends a document to the corpus and invalidates the mirror.
func (m *Manager) Upload(ctx context.Context, displayName string, data []byte) error {
	if displayName == "" {
		return fmt.Errorf("%w: display name is required", ErrUpload)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: document is empty", ErrUpload)
	}

	m.mu.Lock()
	corpusID := m.corpusID
	m.mu.Unlock()
	if corpusID == "" {
		return fmt.Errorf("%w: no corpus selected", ErrUpload)
	}

	if _, err := m.service.UploadFile(ctx, corpusID, displayName, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}

	m.invalidate()
	m.logger.Info("document uploaded", "corpus_id", corpusID, "display_name", displayName, "size", len(data))
	return nil
}

// List returns the corpus documents from the local mirror, refreshing it from
// the service when it is stale.
func (m *Manager) List(ctx context.Context) ([]rag.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.corpusID == "" {
		return nil, errors.New("no corpus selected")
	}
	if m.fresh {
		return m.mirror, nil
	}

	files, err := m.service.ListFiles(ctx, m.corpusID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	m.mirror = files
	m.fresh = true
	return files, nil
}

// Refresh discards the mirror and fetches the file list again.
func (m *Manager) Refresh(ctx context.Context) ([]rag.File, error) {
	m.invalidate()
	return m.List(ctx)
}

// Delete removes a document from the corpus and invalidates the mirror.
func (m *Manager) Delete(ctx context.Context, fileID string) error {
	m.mu.Lock()
	corpusID := m.corpusID
	m.mu.Unlock()
	if corpusID == "" {
		return fmt.Errorf("%w: no corpus selected", ErrDelete)
	}

	if err := m.service.DeleteFile(ctx, corpusID, fileID); err != nil {
		return fmt.Errorf("%w: %v", ErrDelete, err)
	}

	m.invalidate()
	m.logger.Info("document deleted", "corpus_id", corpusID, "file_id", fileID)
	return nil
}

func (m *Manager) invalidate() {
	m.mu.Lock()
	m.fresh = false
	m.mu.Unlock()
}
