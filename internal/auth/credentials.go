// Package auth manages the user's Google OAuth2 credential lifecycle.
//
// Responsibilities:
//   - Credentials: immutable snapshots of the OAuth2 token
//   - Flow: authorization-code flow (authorize URL, code exchange, refresh)
//   - Store: JSON token-file persistence (absence means logged out)
//   - Manager: in-memory credential holder that refreshes and persists
//
// Design: refresh never mutates a credential in place. Flow.Refresh returns a
// NEW snapshot and the Manager swaps and persists it, so callers holding an
// old snapshot observe a consistent (if stale) value.
package auth

import (
	"time"

	"golang.org/x/oauth2"
)

// CloudPlatformScope is the OAuth scope required for Vertex AI access.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// expirySkew is subtracted from the token expiry when deciding validity,
// so a token is treated as expired slightly before the server does.
const expirySkew = 30 * time.Second

// Credentials is an immutable snapshot of an OAuth2 credential.
//
// The JSON layout matches the persisted token file: access token, refresh
// token, and absolute expiry.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry"`
}

// Valid reports whether the credential can be used for a request right now:
// it has an access token and is not expired.
func (c *Credentials) Valid(now time.Time) bool {
	return c != nil && c.AccessToken != "" && !c.Expired(now)
}

// Expired reports whether the access token has expired (with a small skew).
// A zero expiry means the token never expires.
func (c *Credentials) Expired(now time.Time) bool {
	if c == nil {
		return true
	}
	if c.Expiry.IsZero() {
		return false
	}
	return !now.Add(expirySkew).Before(c.Expiry)
}

// CanRefresh reports whether a refresh can be attempted.
func (c *Credentials) CanRefresh() bool {
	return c != nil && c.RefreshToken != ""
}

// Token converts the snapshot to an oauth2 token for use with x/oauth2.
func (c *Credentials) Token() *oauth2.Token {
	if c == nil {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// FromToken creates an immutable snapshot from an oauth2 token.
// If the new token carries no refresh token (Google omits it on re-exchange),
// the refresh token from prev is carried over.
func FromToken(tok *oauth2.Token, prev *Credentials) *Credentials {
	if tok == nil {
		return nil
	}
	c := &Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if c.RefreshToken == "" && prev != nil {
		c.RefreshToken = prev.RefreshToken
	}
	return c
}
