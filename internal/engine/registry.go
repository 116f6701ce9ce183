// Package engine manages the registry of RAG engines: logical aliases for
// remotely hosted corpora, with ownership and default metadata.
//
// The registry is file-backed (ordered JSON records) and reconciled against
// the corpus service's live list via Sync. The remote side is authoritative
// for existence: engines whose corpus disappeared remotely are dropped, and
// unknown remote corpora are adopted as user-owned engines.
//
// Thread Safety: Registry is safe for concurrent use within one process.
// Cross-process writers race whole-file (last write wins); writes are
// flock-guarded so they never interleave partially.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Sentinel errors for registry operations.
var (
	// ErrNotFound indicates no engine with the given name exists.
	ErrNotFound = errors.New("engine not found")

	// ErrDuplicateName indicates an engine with the given name already exists.
	ErrDuplicateName = errors.New("engine name already exists")

	// ErrNoSelection indicates no engine is currently selected; chat
	// operations must be blocked until one is.
	ErrNoSelection = errors.New("no engine selected")
)

// Default bootstrap engine metadata (first run with no registry file).
const (
	defaultEngineName  = "Default Shared Engine"
	defaultEngineOwner = "system"
)

// Engine is a logical alias for a remotely hosted corpus.
type Engine struct {
	Name      string `json:"name"`
	CorpusID  string `json:"corpus_id"`
	Owner     string `json:"owner"`
	IsDefault bool   `json:"is_default"`
}

// RemoteCorpus is the subset of a corpus-service record the registry
// reconciles against.
type RemoteCorpus struct {
	ID          string
	DisplayName string
}

// CorpusService is the remote side of engine creation and deletion.
// The app layer adapts *rag.Client to this interface; tests substitute a stub.
type CorpusService interface {
	CreateCorpus(ctx context.Context, displayName string) (RemoteCorpus, error)
	DeleteCorpus(ctx context.Context, corpusID string) error
}

// Registry is the file-backed engine registry with a single selected engine.
type Registry struct {
	path            string
	defaultCorpusID string
	remote          CorpusService
	logger          *slog.Logger

	mu       sync.Mutex
	engines  []Engine
	selected string // engine name; empty = no selection
	loaded   bool
}

// NewRegistry creates a registry backed by the given file path.
// defaultCorpusID seeds the bootstrap engine on first run (empty = no
// bootstrap engine).
func NewRegistry(path, defaultCorpusID string, remote CorpusService, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		path:            path,
		defaultCorpusID: defaultCorpusID,
		remote:          remote,
		logger:          logger,
	}
}

// List returns all engines in registry order.
func (r *Registry) List() ([]Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]Engine, len(r.engines))
	copy(out, r.engines)
	return out, nil
}

// Sync merges the remote corpus list into the registry. Remote is
// authoritative for existence:
//   - remote corpora absent locally are added with owner "user"
//   - local engines whose corpus is gone remotely are dropped
//
// The merged list is persisted and returned.
func (r *Registry) Sync(remote []RemoteCorpus) ([]Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}

	remoteByID := make(map[string]RemoteCorpus, len(remote))
	for _, c := range remote {
		remoteByID[c.ID] = c
	}

	changed := false

	// Drop engines that no longer exist remotely, the default one included.
	kept := r.engines[:0]
	for _, e := range r.engines {
		if _, ok := remoteByID[e.CorpusID]; ok {
			kept = append(kept, e)
		} else {
			changed = true
			r.logger.Debug("dropping engine absent remotely", "name", e.Name, "corpus_id", e.CorpusID)
		}
	}
	r.engines = kept

	// Adopt remote corpora we do not know yet.
	known := make(map[string]struct{}, len(r.engines))
	for _, e := range r.engines {
		known[e.CorpusID] = struct{}{}
	}
	for _, c := range remote {
		if _, ok := known[c.ID]; ok {
			continue
		}
		r.engines = append(r.engines, Engine{
			Name:      c.DisplayName,
			CorpusID:  c.ID,
			Owner:     "user",
			IsDefault: false,
		})
		known[c.ID] = struct{}{}
		changed = true
	}

	if changed {
		if err := r.save(); err != nil {
			return nil, err
		}
		r.logger.Info("synced engines with corpus service", "count", len(r.engines))
	}

	r.reconcileSelection()

	out := make([]Engine, len(r.engines))
	copy(out, r.engines)
	return out, nil
}

// Create provisions a new remote corpus and registers it as a user engine.
// The display name must be unique within the registry.
func (r *Registry) Create(ctx context.Context, name string) (Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return Engine{}, err
	}
	if name == "" {
		return Engine{}, errors.New("engine name is required")
	}
	if r.indexOf(name) >= 0 {
		return Engine{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	corpus, err := r.remote.CreateCorpus(ctx, name)
	if err != nil {
		return Engine{}, fmt.Errorf("creating corpus %q: %w", name, err)
	}

	e := Engine{
		Name:      name,
		CorpusID:  corpus.ID,
		Owner:     "user",
		IsDefault: false,
	}
	r.engines = append(r.engines, e)
	if err := r.save(); err != nil {
		return Engine{}, err
	}

	r.logger.Info("created engine", "name", name, "corpus_id", corpus.ID)
	return e, nil
}

// Delete removes an engine. The remote corpus is deleted best-effort first:
// a remote failure is logged but does not block local removal. If the
// deleted engine was selected, selection falls back to the first remaining
// engine, or to no selection when the registry becomes empty.
func (r *Registry) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return err
	}

	idx := r.indexOf(name)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	e := r.engines[idx]

	if err := r.remote.DeleteCorpus(ctx, e.CorpusID); err != nil {
		// Best-effort: the corpus may already be gone or still contain files.
		r.logger.Warn("remote corpus deletion failed", "name", name, "corpus_id", e.CorpusID, "error", err)
	}

	r.engines = append(r.engines[:idx], r.engines[idx+1:]...)
	if err := r.save(); err != nil {
		return err
	}

	if r.selected == name {
		r.selected = ""
		if len(r.engines) > 0 {
			r.selected = r.engines[0].Name
		}
	}

	r.logger.Info("deleted engine", "name", name, "remaining", len(r.engines))
	return nil
}

// Select marks the named engine as the active one.
func (r *Registry) Select(name string) (Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return Engine{}, err
	}

	idx := r.indexOf(name)
	if idx < 0 {
		return Engine{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	r.selected = name
	return r.engines[idx], nil
}

// Selected returns the active engine. With no explicit selection, the
// default engine wins, then the first entry. Returns ErrNoSelection when
// the registry is empty.
func (r *Registry) Selected() (Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return Engine{}, err
	}

	if r.selected != "" {
		if idx := r.indexOf(r.selected); idx >= 0 {
			return r.engines[idx], nil
		}
		r.selected = ""
	}

	if len(r.engines) == 0 {
		return Engine{}, ErrNoSelection
	}

	// Advisory default: at most one is_default engine is expected, but a
	// violated invariant must not crash selection. First match wins.
	for _, e := range r.engines {
		if e.IsDefault {
			return e, nil
		}
	}
	return r.engines[0], nil
}

// ensureLoaded reads the registry file once. Caller must hold r.mu.
func (r *Registry) ensureLoaded() error {
	if r.loaded {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			r.engines = r.bootstrap()
			r.loaded = true
			return nil
		}
		return fmt.Errorf("reading engine registry: %w", err)
	}

	var engines []Engine
	if err := json.Unmarshal(data, &engines); err != nil {
		// Corrupt file degrades to an empty registry rather than failing.
		r.logger.Warn("corrupt engine registry file, starting empty", "path", r.path, "error", err)
		engines = nil
	}
	r.engines = engines
	r.loaded = true
	return nil
}

// bootstrap returns the first-run engine list.
func (r *Registry) bootstrap() []Engine {
	if r.defaultCorpusID == "" {
		return nil
	}
	return []Engine{{
		Name:      defaultEngineName,
		CorpusID:  r.defaultCorpusID,
		Owner:     defaultEngineOwner,
		IsDefault: true,
	}}
}

// reconcileSelection drops a selection that no longer resolves.
// Caller must hold r.mu.
func (r *Registry) reconcileSelection() {
	if r.selected == "" {
		return
	}
	if r.indexOf(r.selected) < 0 {
		r.selected = ""
		if len(r.engines) > 0 {
			r.selected = r.engines[0].Name
		}
	}
}

// indexOf returns the index of the named engine, or -1. Caller must hold r.mu.
func (r *Registry) indexOf(name string) int {
	for i, e := range r.engines {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// save writes the registry file whole. Caller must hold r.mu.
func (r *Registry) save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(r.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking engine registry: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(r.engines, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing engine registry: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("writing engine registry: %w", err)
	}
	return nil
}
