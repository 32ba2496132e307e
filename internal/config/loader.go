package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	kenv "github.com/knadh/koanf/providers/env"
	kfile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEndpoint is the address of the chat API when nothing else is configured.
const DefaultEndpoint = "http://localhost:8080"

// Config is the root config structure.
type Config struct {
	Provider           string        `koanf:"provider"`
	Endpoint           string        `koanf:"endpoint"`
	DefaultRole        string        `koanf:"default_role"`
	Timeout            time.Duration `koanf:"timeout"`
	TokenRefreshMargin time.Duration `koanf:"token_refresh_margin"`
	ReuseSession       bool          `koanf:"reuse_session"`
	Retry              RetryConfig   `koanf:"retry"`
	Server             ServerConfig  `koanf:"server"`
	Log                LogConfig     `koanf:"log"`
}

// RetryConfig mirrors retry.Config so it can be set from YAML.
type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	BaseDelay   time.Duration `koanf:"base_delay"`
	MaxDelay    time.Duration `koanf:"max_delay"`
	JitterRatio float64       `koanf:"jitter_ratio"`
}

// ServerConfig configures the chat API served by `chatbridge serve`.
type ServerConfig struct {
	Addr            string         `koanf:"addr"`
	TokenTTL        time.Duration  `koanf:"token_ttl"`
	IrregularEvery  int            `koanf:"irregular_every"`
	SigningKey      string         `koanf:"signing_key"`
	Store           string         `koanf:"store"`
	SQLitePath      string         `koanf:"sqlite_path"`
	ShutdownTimeout time.Duration  `koanf:"shutdown_timeout"`
	SweepInterval   time.Duration  `koanf:"sweep_interval"`
	Upstream        UpstreamConfig `koanf:"upstream"`
}

// UpstreamConfig selects the model backend the server answers with.
type UpstreamConfig struct {
	Provider    string  `koanf:"provider"`
	Model       string  `koanf:"model"`
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float32 `koanf:"temperature"`
	MaxTokens   int     `koanf:"max_tokens"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns the configuration used when no file or env override is present.
func Defaults() Config {
	return Config{
		Provider:           "chatapi",
		Endpoint:           DefaultEndpoint,
		DefaultRole:        "general",
		Timeout:            30 * time.Second,
		TokenRefreshMargin: 10 * time.Second,
		ReuseSession:       true,
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    3 * time.Second,
			JitterRatio: 0.25,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			TokenTTL:        300 * time.Second,
			IrregularEvery:  3,
			Store:           "memory",
			SQLitePath:      "chatbridge.db",
			ShutdownTimeout: 10 * time.Second,
			SweepInterval:   time.Minute,
			Upstream: UpstreamConfig{
				Provider:    "openai",
				Model:       "gpt-4.1-nano",
				APIKey:      "${OPENAI_API_KEY}",
				Temperature: 0.7,
				MaxTokens:   500,
			},
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

func defaultsMap() map[string]any {
	d := Defaults()
	return map[string]any{
		"chatbridge.provider":                    d.Provider,
		"chatbridge.endpoint":                    d.Endpoint,
		"chatbridge.default_role":                d.DefaultRole,
		"chatbridge.timeout":                     d.Timeout.String(),
		"chatbridge.token_refresh_margin":        d.TokenRefreshMargin.String(),
		"chatbridge.reuse_session":               d.ReuseSession,
		"chatbridge.retry.max_attempts":          d.Retry.MaxAttempts,
		"chatbridge.retry.base_delay":            d.Retry.BaseDelay.String(),
		"chatbridge.retry.max_delay":             d.Retry.MaxDelay.String(),
		"chatbridge.retry.jitter_ratio":          d.Retry.JitterRatio,
		"chatbridge.server.addr":                 d.Server.Addr,
		"chatbridge.server.token_ttl":            d.Server.TokenTTL.String(),
		"chatbridge.server.irregular_every":      d.Server.IrregularEvery,
		"chatbridge.server.store":                d.Server.Store,
		"chatbridge.server.sqlite_path":          d.Server.SQLitePath,
		"chatbridge.server.shutdown_timeout":     d.Server.ShutdownTimeout.String(),
		"chatbridge.server.sweep_interval":       d.Server.SweepInterval.String(),
		"chatbridge.server.upstream.provider":    d.Server.Upstream.Provider,
		"chatbridge.server.upstream.model":       d.Server.Upstream.Model,
		"chatbridge.server.upstream.api_key":     d.Server.Upstream.APIKey,
		"chatbridge.server.upstream.temperature": d.Server.Upstream.Temperature,
		"chatbridge.server.upstream.max_tokens":  d.Server.Upstream.MaxTokens,
		"chatbridge.log.level":                   d.Log.Level,
		"chatbridge.log.format":                  d.Log.Format,
	}
}

var (
	loadOnce sync.Once
	loaded   *Config
	loadErr  error
)

// Load loads configuration from the default locations. Load is safe for repeated calls.
//
// Priority:
// 1. CHATBRIDGE_CONFIG_PATH if set (must exist)
// 2. ./chatbridge.yaml (optional)
func Load() (*Config, error) {
	loadOnce.Do(func() {
		loaded, loadErr = LoadFile(os.Getenv("CHATBRIDGE_CONFIG_PATH"))
	})
	return loaded, loadErr
}

// LoadFile loads configuration without caching. An empty path falls back to
// ./chatbridge.yaml, which may be absent.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = "chatbridge.yaml"
	}
	if err := k.Load(kfile.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	// Environment overrides: CHATBRIDGE__SERVER__ADDR=:9090
	// Double underscore splits levels.
	if err := k.Load(kenv.Provider("CHATBRIDGE__", ".", func(s string) string {
		s = strings.TrimPrefix(s, "CHATBRIDGE__")
		return "chatbridge." + strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("chatbridge", &cfg); err != nil {
		return nil, err
	}

	resolveEnvVars(&cfg)
	return &cfg, nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// resolveEnvVars resolves ${VAR} patterns in config string fields
func resolveEnvVars(cfg *Config) {
	cfg.Endpoint = resolveEnvString(cfg.Endpoint)
	cfg.DefaultRole = resolveEnvString(cfg.DefaultRole)
	cfg.Server.SigningKey = resolveEnvString(cfg.Server.SigningKey)
	cfg.Server.SQLitePath = resolveEnvString(cfg.Server.SQLitePath)
	cfg.Server.Upstream.APIKey = resolveEnvString(cfg.Server.Upstream.APIKey)
	cfg.Server.Upstream.BaseURL = resolveEnvString(cfg.Server.Upstream.BaseURL)
	cfg.Server.Upstream.Model = resolveEnvString(cfg.Server.Upstream.Model)
}

// resolveEnvString replaces ${VAR} with environment variable values
func resolveEnvString(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ResetForTest clears the cached Load state so tests can load a different file.
func ResetForTest() {
	loaded = nil
	loadErr = nil
	loadOnce = sync.Once{}
}
