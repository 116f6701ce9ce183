// Package instruction manages named system-instruction presets.
//
// The library is a file-backed mapping from preset name to instruction text.
// The "default" preset is reserved: it is seeded with the hard-coded RAG
// instruction on first access and can never be deleted. One preset's text is
// the "active" instruction applied to new chat sessions.
package instruction

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
)

// Sentinel errors for library operations.
var (
	// ErrNotFound indicates no preset with the given name exists.
	ErrNotFound = errors.New("preset not found")

	// ErrReservedPreset indicates an attempt to delete the reserved
	// "default" preset.
	ErrReservedPreset = errors.New("cannot delete default preset")
)

// Library is the file-backed instruction preset store.
//
// Library is safe for concurrent use within one process. Cross-process
// writers race whole-file (last write wins); writes are flock-guarded.
type Library struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	presets map[string]string
	active  string
	loaded  bool
}

// NewLibrary creates a library backed by the given file path.
func NewLibrary(path string, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{path: path, logger: logger}
}

// Get returns the text of the named preset.
func (l *Library) Get(name string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(); err != nil {
		return "", err
	}
	text, ok := l.presets[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return text, nil
}

// Put stores a preset under the given name, overwriting any existing text.
func (l *Library) Put(name, text string) error {
	if name == "" {
		return errors.New("preset name is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(); err != nil {
		return err
	}
	l.presets[name] = text
	return l.save()
}

// Delete removes a preset. Deleting "default" always fails with
// ErrReservedPreset and leaves the library unchanged.
func (l *Library) Delete(name string) error {
	if name == DefaultPresetName {
		return ErrReservedPreset
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(); err != nil {
		return err
	}
	if _, ok := l.presets[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(l.presets, name)
	return l.save()
}

// Names returns all preset names in sorted order.
func (l *Library) Names() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(l.presets))
	for name := range l.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Active returns the currently active instruction text. Falls back to the
// "default" preset when nothing has been activated.
func (l *Library) Active() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(); err != nil {
		return "", err
	}
	if l.active != "" {
		return l.active, nil
	}
	return l.presets[DefaultPresetName], nil
}

// Activate sets the active instruction text (save-and-activate). The chat
// layer invalidates its session when this changes.
func (l *Library) Activate(text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(); err != nil {
		return err
	}
	l.active = text
	return l.save()
}

// libraryFile is the on-disk layout: the presets plus the active text.
type libraryFile struct {
	Presets map[string]string `json:"presets"`
	Active  string            `json:"active,omitempty"`
}

// ensureLoaded reads the library file once, seeding the reserved "default"
// preset when the store is empty. Caller must hold l.mu.
func (l *Library) ensureLoaded() error {
	if l.loaded {
		return nil
	}
	l.presets = make(map[string]string)

	data, err := os.ReadFile(l.path)
	switch {
	case err == nil:
		var f libraryFile
		if jsonErr := json.Unmarshal(data, &f); jsonErr != nil {
			// Corrupt file degrades to the seeded default rather than failing.
			l.logger.Warn("corrupt instruction library file, reseeding", "path", l.path, "error", jsonErr)
		} else {
			for k, v := range f.Presets {
				l.presets[k] = v
			}
			l.active = f.Active
		}
	case os.IsNotExist(err):
		// First run: nothing to read.
	default:
		return fmt.Errorf("reading instruction library: %w", err)
	}

	if _, ok := l.presets[DefaultPresetName]; !ok {
		l.presets[DefaultPresetName] = DefaultSystemInstruction
	}
	l.loaded = true
	return nil
}

// save writes the library file whole. Caller must hold l.mu.
func (l *Library) save() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(l.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking instruction library: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	f := libraryFile{Presets: l.presets, Active: l.active}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing instruction library: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("writing instruction library: %w", err)
	}
	return nil
}
