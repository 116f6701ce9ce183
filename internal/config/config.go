// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.ragchat/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Vertex: Google Cloud project, location, RAG corpus defaults
//   - Model: generative model selection and retrieval parameters
//   - OAuth: Google OAuth2 client credentials and redirect URI
//   - Data: directory for JSON-file persistence (engines, instructions, token)
//
// Security: Sensitive data (OAuth client secret) is never logged; the config
// directory uses 0750 permissions. Validation is fail-fast with clear errors.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrMissingProject indicates the Google Cloud project ID is missing.
	ErrMissingProject = errors.New("missing project ID")

	// ErrMissingLocation indicates the Google Cloud location is missing.
	ErrMissingLocation = errors.New("missing location")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTopK indicates the retrieval top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidDistanceThreshold indicates the vector distance threshold is out of range.
	ErrInvalidDistanceThreshold = errors.New("invalid vector distance threshold")

	// ErrMissingOAuthClient indicates the OAuth client ID or secret is missing.
	ErrMissingOAuthClient = errors.New("missing OAuth client credentials")
)

const (
	// DefaultModelName is the generative model used when none is configured.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultRetrievalTopK is the number of chunks requested from the corpus
	// per retrieval.
	DefaultRetrievalTopK = 10

	// DefaultDistanceThreshold is the default vector distance cutoff for
	// retrieved chunks.
	DefaultDistanceThreshold = 0.5

	// DefaultRedirectURI is the hard-coded fallback OAuth redirect URI.
	// Only the redirect URI has a hard-coded default; client credentials
	// must come from the environment or the config file.
	DefaultRedirectURI = "http://localhost:8080/auth/callback"

	// DefaultServeAddr is the default listen address for the HTTP API.
	DefaultServeAddr = "127.0.0.1:8080"
)

// File names inside DataDir.
const (
	TokenFileName        = "token.json"
	EnginesFileName      = "rag_engines.json"
	InstructionsFileName = "system_instructions.json"
	TodosFileName        = "todo_lists.json"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (secrets, tokens), update MarshalJSON.
type Config struct {
	// Google Cloud / Vertex AI
	ProjectID string `mapstructure:"project_id" json:"project_id"`
	Location  string `mapstructure:"location" json:"location"`

	// Default RAG corpus bootstrapped into the engine registry on first run.
	DefaultCorpusID string `mapstructure:"default_corpus_id" json:"default_corpus_id"`

	// Generative model and retrieval parameters
	ModelName         string  `mapstructure:"model_name" json:"model_name"`
	RetrievalTopK     int     `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	DistanceThreshold float64 `mapstructure:"distance_threshold" json:"distance_threshold"`

	// OAuth2 client configuration
	OAuthClientID     string `mapstructure:"oauth_client_id" json:"oauth_client_id"`
	OAuthClientSecret string `mapstructure:"oauth_client_secret" json:"oauth_client_secret"` // SENSITIVE: masked in MarshalJSON
	RedirectURI       string `mapstructure:"redirect_uri" json:"redirect_uri"`

	// Persistence
	DataDir string `mapstructure:"data_dir" json:"data_dir"`

	// HTTP API (serve mode)
	ServeAddr   string   `mapstructure:"serve_addr" json:"serve_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.ragchat/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".ragchat")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v, configDir)
	bindEnvVariables(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	// Use Unmarshal to automatically map to struct (type-safe)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	// Vertex defaults
	v.SetDefault("project_id", "")
	v.SetDefault("location", "us-east1")
	v.SetDefault("default_corpus_id", "")

	// Model defaults
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("retrieval_top_k", DefaultRetrievalTopK)
	v.SetDefault("distance_threshold", DefaultDistanceThreshold)

	// OAuth defaults (redirect URI is the only credential-adjacent value
	// with a hard-coded fallback)
	v.SetDefault("redirect_uri", DefaultRedirectURI)

	// Persistence defaults
	v.SetDefault("data_dir", filepath.Join(configDir, "data"))

	// Serve defaults
	v.SetDefault("serve_addr", DefaultServeAddr)
	v.SetDefault("cors_origins", []string{"http://localhost:4200"})
	v.SetDefault("trust_proxy", false)
}

// bindEnvVariables binds environment variables explicitly.
// Secrets are env-only by default:
//   - GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET: OAuth client credentials
//   - REDIRECT_URI: OAuth redirect override
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key string, envVars ...string) {
		args := append([]string{key}, envVars...)
		if err := v.BindEnv(args...); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q: %v", key, err))
		}
	}

	mustBind("project_id", "RAGCHAT_PROJECT_ID", "GOOGLE_CLOUD_PROJECT")
	mustBind("location", "RAGCHAT_LOCATION", "GOOGLE_CLOUD_LOCATION")
	mustBind("default_corpus_id", "RAGCHAT_DEFAULT_CORPUS_ID")
	mustBind("model_name", "RAGCHAT_MODEL_NAME")
	mustBind("oauth_client_id", "GOOGLE_CLIENT_ID")
	mustBind("oauth_client_secret", "GOOGLE_CLIENT_SECRET")
	mustBind("redirect_uri", "REDIRECT_URI")
	mustBind("data_dir", "RAGCHAT_DATA_DIR")
	mustBind("serve_addr", "RAGCHAT_SERVE_ADDR")
	mustBind("cors_origins", "RAGCHAT_CORS_ORIGINS")
	mustBind("trust_proxy", "RAGCHAT_TRUST_PROXY")
}

// TokenFile returns the path of the persisted OAuth credential.
func (c *Config) TokenFile() string {
	return filepath.Join(c.DataDir, TokenFileName)
}

// EnginesFile returns the path of the engine registry file.
func (c *Config) EnginesFile() string {
	return filepath.Join(c.DataDir, EnginesFileName)
}

// InstructionsFile returns the path of the instruction library file.
func (c *Config) InstructionsFile() string {
	return filepath.Join(c.DataDir, InstructionsFileName)
}

// TodosFile returns the path of the todo lists file.
func (c *Config) TodosFile() string {
	return filepath.Join(c.DataDir, TodosFileName)
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid accidental substring matches against
// real secret material.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked; longer secrets keep the
// first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - OAuthClientSecret
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.OAuthClientSecret = maskSecret(a.OAuthClientSecret)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
