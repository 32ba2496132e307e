package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile_MissingExplicitPath(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for explicit missing file")
	}
}

func TestLoadFile_DefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("endpoint = %q, want %q", cfg.Endpoint, DefaultEndpoint)
	}
	if cfg.Server.TokenTTL != 300*time.Second {
		t.Errorf("token ttl = %v", cfg.Server.TokenTTL)
	}
	if cfg.Server.IrregularEvery != 3 {
		t.Errorf("irregular every = %d", cfg.Server.IrregularEvery)
	}
	if !cfg.ReuseSession {
		t.Error("expected reuse_session default true")
	}
	if cfg.Server.Upstream.APIKey != "sk-test" {
		t.Errorf("api key = %q, want env expansion", cfg.Server.Upstream.APIKey)
	}
}

func TestLoadFile_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chatbridge.yaml")
	if err := os.WriteFile(path, []byte(`chatbridge:
  endpoint: http://api.internal:9000
  default_role: engineering
  token_refresh_margin: 30s
  server:
    irregular_every: 5
    upstream:
      provider: gemini
      model: gemini-1.5-flash
`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CHATBRIDGE__SERVER__ADDR", ":9999")
	t.Setenv("CHATBRIDGE__DEFAULT_ROLE", "finance")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Endpoint != "http://api.internal:9000" {
		t.Errorf("endpoint = %q", cfg.Endpoint)
	}
	if cfg.DefaultRole != "finance" {
		t.Errorf("env should override file, got role %q", cfg.DefaultRole)
	}
	if cfg.TokenRefreshMargin != 30*time.Second {
		t.Errorf("refresh margin = %v", cfg.TokenRefreshMargin)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.IrregularEvery != 5 {
		t.Errorf("irregular every = %d", cfg.Server.IrregularEvery)
	}
	if cfg.Server.Upstream.Provider != "gemini" || cfg.Server.Upstream.Model != "gemini-1.5-flash" {
		t.Errorf("upstream = %+v", cfg.Server.Upstream)
	}
	// untouched keys keep their defaults
	if cfg.Server.Upstream.MaxTokens != 500 {
		t.Errorf("max tokens = %d", cfg.Server.Upstream.MaxTokens)
	}
}

func TestLoad_Cached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.yaml")
	if err := os.WriteFile(path, []byte("chatbridge:\n  default_role: first\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHATBRIDGE_CONFIG_PATH", path)
	ResetForTest()
	t.Cleanup(ResetForTest)

	first, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := os.WriteFile(path, []byte("chatbridge:\n  default_role: second\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	second, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if first != second || second.DefaultRole != "first" {
		t.Fatalf("expected cached config, got %q", second.DefaultRole)
	}
}

func TestResolveEnvString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVar   string
		envValue string
		setEnv   bool
		expected string
	}{
		{
			name:     "replaces set environment variable",
			input:    "api-${API_KEY}-suffix",
			envVar:   "API_KEY",
			envValue: "test123",
			setEnv:   true,
			expected: "api-test123-suffix",
		},
		{
			name:     "handles empty environment variable",
			input:    "prefix-${EMPTY_VAR}-suffix",
			envVar:   "EMPTY_VAR",
			envValue: "",
			setEnv:   true,
			expected: "prefix--suffix",
		},
		{
			name:     "handles unset environment variable",
			input:    "prefix-${CHATBRIDGE_UNSET_VAR}-suffix",
			expected: "prefix--suffix",
		},
		{
			name:     "no substitution needed",
			input:    "no-vars-here",
			expected: "no-vars-here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.envVar, tt.envValue)
			}
			result := resolveEnvString(tt.input)
			if result != tt.expected {
				t.Errorf("resolveEnvString(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
