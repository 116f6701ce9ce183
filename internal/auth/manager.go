package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrUnauthenticated indicates there is no usable credential: the user must
// complete the login flow.
var ErrUnauthenticated = errors.New("not authenticated")

// AuthFlow is the part of the OAuth flow the Manager consumes.
// *Flow satisfies it; tests substitute a stub.
type AuthFlow interface {
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (*Credentials, error)
	Refresh(ctx context.Context, creds *Credentials) (*Credentials, error)
}

// Manager owns the active credential snapshot.
//
// It loads the persisted credential on startup, refreshes it on demand, and
// persists every new snapshot. A failed refresh discards the in-memory
// credential (the token file is left for a later retry; Logout clears both).
type Manager struct {
	flow   AuthFlow
	store  *Store
	logger *slog.Logger

	now func() time.Time // injectable clock for tests

	mu      sync.Mutex
	current *Credentials
}

// NewManager creates a credential manager.
// The persisted credential (if any) is loaded lazily on first use.
func NewManager(flow AuthFlow, store *Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		flow:   flow,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Login exchanges an authorization code and persists the resulting credential.
func (m *Manager) Login(ctx context.Context, code string) error {
	creds, err := m.flow.Exchange(ctx, code)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.current = creds
	m.mu.Unlock()

	if err := m.store.Save(creds); err != nil {
		return fmt.Errorf("persisting credentials: %w", err)
	}
	m.logger.Info("user authenticated", "expiry", creds.Expiry)
	return nil
}

// Logout discards the in-memory credential and deletes the token file.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		return err
	}
	m.logger.Info("user logged out")
	return nil
}

// AuthorizeURL returns the login URL for the OAuth flow.
func (m *Manager) AuthorizeURL(state string) string {
	return m.flow.AuthorizeURL(state)
}

// Authenticated reports whether a usable (or refreshable) credential exists.
func (m *Manager) Authenticated(ctx context.Context) bool {
	_, err := m.Credentials(ctx)
	return err == nil
}

// Credentials returns a valid credential snapshot, refreshing (and
// persisting) it first if expired. Returns ErrUnauthenticated when no
// credential exists or the refresh fails.
func (m *Manager) Credentials(ctx context.Context) (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		creds, err := m.store.Load()
		if err != nil {
			if errors.Is(err, ErrNoCredentials) {
				return nil, ErrUnauthenticated
			}
			return nil, err
		}
		m.current = creds
	}

	now := m.now()
	if m.current.Valid(now) {
		return m.current, nil
	}

	if !m.current.CanRefresh() {
		m.current = nil
		return nil, ErrUnauthenticated
	}

	fresh, err := m.flow.Refresh(ctx, m.current)
	if err != nil {
		// Forced transition back to unauthenticated. The token file is kept
		// for a future retry; Logout removes it explicitly.
		m.current = nil
		m.logger.Warn("credential refresh failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	m.current = fresh
	if err := m.store.Save(fresh); err != nil {
		m.logger.Warn("persisting refreshed credentials", "error", err)
	}
	m.logger.Debug("credential refreshed", "expiry", fresh.Expiry)
	return fresh, nil
}

// HTTPClient returns an http.Client that authorizes every request with the
// managed credential, refreshing as needed.
func (m *Manager) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, &managerTokenSource{ctx: ctx, m: m})
}

// managerTokenSource adapts Manager to oauth2.TokenSource so refreshed
// snapshots are picked up by long-lived HTTP clients.
type managerTokenSource struct {
	ctx context.Context //nolint:containedctx // oauth2.TokenSource has no ctx parameter
	m   *Manager
}

func (ts *managerTokenSource) Token() (*oauth2.Token, error) {
	creds, err := ts.m.Credentials(ts.ctx)
	if err != nil {
		return nil, err
	}
	return creds.Token(), nil
}
