package config

import (
	"fmt"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 1. Google Cloud validation (required for all Vertex AI operations)
	if c.ProjectID == "" {
		return fmt.Errorf("%w: set project_id in config.yaml or RAGCHAT_PROJECT_ID", ErrMissingProject)
	}
	if c.Location == "" {
		return fmt.Errorf("%w: set location in config.yaml or RAGCHAT_LOCATION", ErrMissingLocation)
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// TopK range: 1 to 100 (Vertex RAG retrieval limit)
	if c.RetrievalTopK < 1 || c.RetrievalTopK > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidTopK, c.RetrievalTopK)
	}

	// Distance threshold range: 0.0 (exact match only) to 1.0 (everything)
	if c.DistanceThreshold < 0.0 || c.DistanceThreshold > 1.0 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f", ErrInvalidDistanceThreshold, c.DistanceThreshold)
	}

	return nil
}

// ValidateServe performs additional validation required for serve mode.
// OAuth client credentials are only needed when running the interactive
// login flow, so one-shot commands (ask) skip this check.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.OAuthClientID == "" || c.OAuthClientSecret == "" {
		return fmt.Errorf("%w: set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET", ErrMissingOAuthClient)
	}

	if !strings.HasPrefix(c.RedirectURI, "http://") && !strings.HasPrefix(c.RedirectURI, "https://") {
		return fmt.Errorf("%w: redirect_uri must be an http(s) URL, got %q", ErrMissingOAuthClient, c.RedirectURI)
	}

	return nil
}
