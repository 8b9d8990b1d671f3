package config

import (
	"fmt"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Paths     PathsConfig
	Sandbox   SandboxConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8900"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// PathsConfig locates the engine's on-disk state. Everything lives
// under DataDir unless overridden individually.
type PathsConfig struct {
	DataDir    string `envconfig:"DATA_DIR" default:"./data"`
	RulesDir   string `envconfig:"RULES_DIR" default:""`
	ScriptsDir string `envconfig:"SCRIPTS_DIR" default:""`
	StorageDir string `envconfig:"SCRIPT_STORAGE_DIR" default:""`
	Settings   string `envconfig:"SETTINGS_FILE" default:""`
	Manifest   string `envconfig:"RULES_MANIFEST" default:""`
}

// SandboxConfig bounds page script execution.
type SandboxConfig struct {
	PoolSize     int `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
	TimeoutMs    int `envconfig:"SANDBOX_TIMEOUT_MS" default:"5000"`
	MaxHTTPCalls int `envconfig:"SANDBOX_MAX_HTTP_CALLS" default:"32"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.fillPaths()
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: "8900",
			Host: "0.0.0.0",
		},
		Paths: PathsConfig{
			DataDir: "./data",
		},
		Sandbox: SandboxConfig{
			PoolSize:     4,
			TimeoutMs:    5000,
			MaxHTTPCalls: 32,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
	cfg.fillPaths()
	return cfg
}

// Rebase moves all derived paths under a new data directory. Explicit
// per-path overrides from the environment are discarded.
func (c *Config) Rebase(dataDir string) {
	c.Paths = PathsConfig{DataDir: dataDir}
	c.fillPaths()
}

// fillPaths derives unset path options from DataDir.
func (c *Config) fillPaths() {
	if c.Paths.RulesDir == "" {
		c.Paths.RulesDir = filepath.Join(c.Paths.DataDir, "rules")
	}
	if c.Paths.ScriptsDir == "" {
		c.Paths.ScriptsDir = filepath.Join(c.Paths.DataDir, "userscripts")
	}
	if c.Paths.StorageDir == "" {
		c.Paths.StorageDir = filepath.Join(c.Paths.DataDir, "script_storage")
	}
	if c.Paths.Settings == "" {
		c.Paths.Settings = filepath.Join(c.Paths.DataDir, "settings.json")
	}
	if c.Paths.Manifest == "" {
		c.Paths.Manifest = filepath.Join(c.Paths.DataDir, "rules.yaml")
	}
}
