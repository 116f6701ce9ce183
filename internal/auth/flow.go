package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrRefreshFailed indicates the refresh token was rejected and the user
// must authenticate again.
var ErrRefreshFailed = errors.New("credential refresh failed")

// Flow runs the OAuth2 authorization-code flow against Google.
type Flow struct {
	config *oauth2.Config
}

// NewFlow creates an OAuth2 flow for the given client configuration.
func NewFlow(clientID, clientSecret, redirectURI string) (*Flow, error) {
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("OAuth client ID and secret are required")
	}

	return &Flow{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{CloudPlatformScope},
			Endpoint:     google.Endpoint,
		},
	}, nil
}

// AuthorizeURL returns the URL the user must visit to grant access.
// Offline access and forced consent ensure Google issues a refresh token.
func (f *Flow) AuthorizeURL(state string) string {
	return f.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a credential snapshot.
func (f *Flow) Exchange(ctx context.Context, code string) (*Credentials, error) {
	tok, err := f.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return FromToken(tok, nil), nil
}

// Refresh obtains a fresh access token using the credential's refresh token.
// Returns a NEW snapshot; the input credential is never mutated.
func (f *Flow) Refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	if !creds.CanRefresh() {
		return nil, ErrRefreshFailed
	}

	// Force the token source to refresh by presenting an expired token.
	stale := creds.Token()
	tok, err := f.config.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return FromToken(tok, creds), nil
}
