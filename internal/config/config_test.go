package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		ProjectID:         "test-project",
		Location:          "us-east1",
		ModelName:         "gemini-2.5-flash",
		RetrievalTopK:     10,
		DistanceThreshold: 0.5,
		DataDir:           "/tmp/ragchat-test",
		RedirectURI:       DefaultRedirectURI,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing project",
			mutate:  func(c *Config) { c.ProjectID = "" },
			wantErr: ErrMissingProject,
		},
		{
			name:    "missing location",
			mutate:  func(c *Config) { c.Location = "" },
			wantErr: ErrMissingLocation,
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "top-k too small",
			mutate:  func(c *Config) { c.RetrievalTopK = 0 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "top-k too large",
			mutate:  func(c *Config) { c.RetrievalTopK = 101 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "negative distance threshold",
			mutate:  func(c *Config) { c.DistanceThreshold = -0.1 },
			wantErr: ErrInvalidDistanceThreshold,
		},
		{
			name:    "distance threshold above one",
			mutate:  func(c *Config) { c.DistanceThreshold = 1.5 },
			wantErr: ErrInvalidDistanceThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateServe(t *testing.T) {
	cfg := validConfig()
	if err := cfg.ValidateServe(); !errors.Is(err, ErrMissingOAuthClient) {
		t.Fatalf("ValidateServe() without client credentials = %v, want %v", err, ErrMissingOAuthClient)
	}

	cfg.OAuthClientID = "client-id"
	cfg.OAuthClientSecret = "client-secret"
	if err := cfg.ValidateServe(); err != nil {
		t.Fatalf("ValidateServe() = %v, want nil", err)
	}

	cfg.RedirectURI = "localhost:8080"
	if err := cfg.ValidateServe(); err == nil {
		t.Fatal("ValidateServe() with non-URL redirect should fail")
	}
}

func TestDataFilePaths(t *testing.T) {
	cfg := validConfig()

	if got, want := cfg.TokenFile(), filepath.Join(cfg.DataDir, TokenFileName); got != want {
		t.Errorf("TokenFile() = %q, want %q", got, want)
	}
	if got, want := cfg.EnginesFile(), filepath.Join(cfg.DataDir, EnginesFileName); got != want {
		t.Errorf("EnginesFile() = %q, want %q", got, want)
	}
	if got, want := cfg.InstructionsFile(), filepath.Join(cfg.DataDir, InstructionsFileName); got != want {
		t.Errorf("InstructionsFile() = %q, want %q", got, want)
	}
	if got, want := cfg.TodosFile(), filepath.Join(cfg.DataDir, TodosFileName); got != want {
		t.Errorf("TodosFile() = %q, want %q", got, want)
	}
}

func TestMarshalJSON_MasksSecret(t *testing.T) {
	cfg := validConfig()
	cfg.OAuthClientSecret = "super-secret-oauth-value"

	data, err := cfg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}

	out := string(data)
	if strings.Contains(out, "super-secret-oauth-value") {
		t.Errorf("marshaled config leaks client secret: %s", out)
	}
	if !strings.Contains(out, maskedValue) {
		t.Errorf("expected masked value in output, got: %s", out)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", maskedValue},
		{"12345678", maskedValue},
		{"my_long_secret_key_123", "my<" + maskedValue + ">23"},
	}

	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

