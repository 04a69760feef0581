package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
	Extensions ExtensionsConfig
	Storage    StorageConfig
	Content    ContentConfig
	Install    InstallConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
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

// ExtensionsConfig holds extension runtime configuration.
type ExtensionsConfig struct {
	Root                string        `envconfig:"EXTENSIONS_DIR" default:"./data"`
	EvaluationTimeout   time.Duration `envconfig:"EXT_EVAL_TIMEOUT" default:"5s"`
	ActivationTimeout   time.Duration `envconfig:"EXT_ACTIVATION_TIMEOUT" default:"5s"`
	DeactivationTimeout time.Duration `envconfig:"EXT_DEACTIVATION_TIMEOUT" default:"5s"`
	RenderTimeout       time.Duration `envconfig:"EXT_RENDER_TIMEOUT" default:"1s"`
	ToastRate           float64       `envconfig:"EXT_TOAST_RATE" default:"2"`
	ToastBurst          int           `envconfig:"EXT_TOAST_BURST" default:"5"`
}

// StorageConfig holds extension key/value storage configuration.
type StorageConfig struct {
	Dir string `envconfig:"STORAGE_DIR" default:""` // empty means <EXTENSIONS_DIR>/storage
}

// ContentConfig holds entry source fetching configuration.
type ContentConfig struct {
	BaseURL string        `envconfig:"CONTENT_BASE_URL" default:""` // empty means local files
	Timeout time.Duration `envconfig:"CONTENT_TIMEOUT" default:"10s"`
}

// InstallConfig holds drop-directory install configuration.
type InstallConfig struct {
	WatchDir       string        `envconfig:"INSTALL_WATCH_DIR" default:""` // empty means <EXTENSIONS_DIR>/inbox
	Patterns       []string      `envconfig:"INSTALL_PATTERNS" default:"*.zip,*.tar.gz,*.tgz,*.tar.zst"`
	Confirm        string        `envconfig:"INSTALL_CONFIRM" default:"prompt"`
	ConfirmTimeout time.Duration `envconfig:"INSTALL_CONFIRM_TIMEOUT" default:"2m"`
}

// Confirmation modes for InstallConfig.Confirm
const (
	ConfirmPrompt = "prompt"
	ConfirmAuto   = "auto"
	ConfirmDeny   = "deny"
)

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
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

// Validate rejects values the runtime cannot operate with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Install.Confirm) {
	case ConfirmPrompt, ConfirmAuto, ConfirmDeny:
	default:
		return fmt.Errorf("invalid INSTALL_CONFIRM %q", c.Install.Confirm)
	}
	if c.Extensions.EvaluationTimeout <= 0 || c.Extensions.ActivationTimeout <= 0 ||
		c.Extensions.DeactivationTimeout <= 0 || c.Extensions.RenderTimeout <= 0 {
		return fmt.Errorf("extension timeouts must be positive")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 15 * time.Second,
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
		Extensions: ExtensionsConfig{
			Root:                "./data",
			EvaluationTimeout:   5 * time.Second,
			ActivationTimeout:   5 * time.Second,
			DeactivationTimeout: 5 * time.Second,
			RenderTimeout:       time.Second,
			ToastRate:           2,
			ToastBurst:          5,
		},
		Content: ContentConfig{
			Timeout: 10 * time.Second,
		},
		Install: InstallConfig{
			Patterns:       []string{"*.zip", "*.tar.gz", "*.tgz", "*.tar.zst"},
			Confirm:        ConfirmPrompt,
			ConfirmTimeout: 2 * time.Minute,
		},
	}
}
