package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrNoCredentials indicates no persisted credential exists (logged out).
var ErrNoCredentials = errors.New("no stored credentials")

// Store persists the OAuth credential to a JSON token file.
// Absence of the file means logged out.
//
// Writes are whole-file and guarded by an advisory file lock so two
// processes on the same host do not interleave partial writes.
type Store struct {
	path string
}

// NewStore creates a token store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted credential.
// Returns ErrNoCredentials if the token file does not exist.
func (s *Store) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return &creds, nil
}

// Save persists the credential, creating the data directory if needed.
// The token file uses 0600 permissions.
func (s *Store) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("credentials are required")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking token file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing credentials: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// Clear removes the token file. Missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
