// Package todo is a small file-backed store of named note lists, kept beside
// the chat data for follow-up items that come out of conversations.
package todo

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
	"github.com/google/uuid"
)

// Sentinel errors for todo operations.
var (
	// ErrListNotFound indicates no list with the given name exists.
	ErrListNotFound = errors.New("list not found")

	// ErrItemNotFound indicates no item with the given ID exists in the list.
	ErrItemNotFound = errors.New("item not found")

	// ErrDuplicateList indicates a list with the given name already exists.
	ErrDuplicateList = errors.New("list already exists")
)

// Item is one entry of a list.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// List is a named sequence of items.
type List struct {
	Name  string `json:"name"`
	Items []Item `json:"items"`
}

// Store is the file-backed list store. Safe for concurrent use within one
// process; cross-process writes race whole-file.
type Store struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	lists  map[string][]Item
	loaded bool
}

// NewStore creates a store backed by the given file path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Lists returns every list sorted by name.
func (s *Store) Lists() ([]List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.lists))
	for name := range s.lists {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]List, 0, len(names))
	for _, name := range names {
		items := make([]Item, len(s.lists[name]))
		copy(items, s.lists[name])
		out = append(out, List{Name: name, Items: items})
	}
	return out, nil
}

// CreateList adds an empty list.
func (s *Store) CreateList(name string) error {
	if name == "" {
		return errors.New("list name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if _, ok := s.lists[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateList, name)
	}
	s.lists[name] = []Item{}
	return s.save()
}

// DeleteList removes a list and all its items.
func (s *Store) DeleteList(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	if _, ok := s.lists[name]; !ok {
		return fmt.Errorf("%w: %q", ErrListNotFound, name)
	}
	delete(s.lists, name)
	return s.save()
}

// AddItem appends an item to a list and returns it with a generated ID.
func (s *Store) AddItem(listName, text string) (Item, error) {
	if text == "" {
		return Item{}, errors.New("item text is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return Item{}, err
	}
	items, ok := s.lists[listName]
	if !ok {
		return Item{}, fmt.Errorf("%w: %q", ErrListNotFound, listName)
	}

	item := Item{ID: uuid.NewString(), Text: text}
	s.lists[listName] = append(items, item)
	if err := s.save(); err != nil {
		return Item{}, err
	}
	return item, nil
}

// ToggleItem flips an item's done state.
func (s *Store) ToggleItem(listName, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	items, ok := s.lists[listName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrListNotFound, listName)
	}
	for i := range items {
		if items[i].ID == itemID {
			items[i].Done = !items[i].Done
			return s.save()
		}
	}
	return fmt.Errorf("%w: %q", ErrItemNotFound, itemID)
}

// RemoveItem deletes one item from a list.
func (s *Store) RemoveItem(listName, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}
	items, ok := s.lists[listName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrListNotFound, listName)
	}
	for i := range items {
		if items[i].ID == itemID {
			s.lists[listName] = append(items[:i], items[i+1:]...)
			return s.save()
		}
	}
	return fmt.Errorf("%w: %q", ErrItemNotFound, itemID)
}

func (s *Store) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	s.lists = make(map[string][]Item)

	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &s.lists); jsonErr != nil {
			s.logger.Warn("corrupt todo file, starting empty", "path", s.path, "error", jsonErr)
			s.lists = make(map[string][]Item)
		}
	case os.IsNotExist(err):
		// First run.
	default:
		return fmt.Errorf("reading todo file: %w", err)
	}

	s.loaded = true
	return nil
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking todo file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(s.lists, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing todo file: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing todo file: %w", err)
	}
	return nil
}
