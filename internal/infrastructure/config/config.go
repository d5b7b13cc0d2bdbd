// Package config loads pillars settings from .pillars/config.yaml and
// PILLARS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/felixgeelhaar/pillars/pkg/ai"
	"github.com/felixgeelhaar/pillars/pkg/domain/journey"
)

// DataDir is the per-project data directory.
const DataDir = ".pillars"

const (
	BackendFilesystem = "filesystem"
	BackendSQLite     = "sqlite"

	ProviderTemplate = "template"
	ProviderOllama   = "ollama"
	ProviderMock     = "mock"
)

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	Journey JourneyConfig `mapstructure:"journey"`
	Plan    PlanConfig    `mapstructure:"plan"`
	AI      AIConfig      `mapstructure:"ai"`
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Root is the project directory the config was loaded for.
	Root string `mapstructure:"-"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	// Path is the data directory, relative to the project root unless absolute.
	Path string `mapstructure:"path"`
}

type JourneyConfig struct {
	DefaultMode string `mapstructure:"default_mode"`
}

type PlanConfig struct {
	StartOffsetDays int `mapstructure:"start_offset_days"`
}

type AIConfig struct {
	Provider     string `mapstructure:"provider"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max_retries"`
	RetryDelayMs int    `mapstructure:"retry_delay_ms"`
	TimeoutSec   int    `mapstructure:"timeout_sec"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// Load reads the configuration for the project at root. An explicit
// configPath overrides the default location. A missing default file is not
// an error.
func Load(root, configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(root, DataDir))
	}

	v.SetEnvPrefix("PILLARS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Root = root
	if !filepath.IsAbs(cfg.Store.Path) {
		cfg.Store.Path = filepath.Join(root, cfg.Store.Path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("store.backend", BackendFilesystem)
	v.SetDefault("store.path", DataDir)

	v.SetDefault("journey.default_mode", string(journey.DefaultMode))
	v.SetDefault("plan.start_offset_days", 1)

	v.SetDefault("ai.provider", ProviderTemplate)
	v.SetDefault("ai.model", "llama3")
	v.SetDefault("ai.max_retries", 2)
	v.SetDefault("ai.retry_delay_ms", 1000)
	v.SetDefault("ai.timeout_sec", 60)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9464")
}

// Validate rejects unknown enum values.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFilesystem, BackendSQLite:
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	switch c.AI.Provider {
	case ProviderTemplate, ProviderOllama, ProviderMock:
	default:
		return fmt.Errorf("ai.provider: unknown provider %q", c.AI.Provider)
	}
	if _, err := journey.ParseMode(c.Journey.DefaultMode); err != nil {
		return fmt.Errorf("journey.default_mode: %w", err)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Plan.StartOffsetDays < 0 {
		return fmt.Errorf("plan.start_offset_days must not be negative")
	}
	return nil
}

// DefaultMode returns the validated journey.default_mode.
func (c *Config) DefaultMode() journey.Mode {
	m, err := journey.ParseMode(c.Journey.DefaultMode)
	if err != nil {
		return journey.DefaultMode
	}
	return m
}

// Resilience converts the ai.* retry settings.
func (c AIConfig) Resilience() ai.ResilienceConfig {
	return ai.ResilienceConfig{
		MaxRetries: c.MaxRetries,
		RetryDelay: time.Duration(c.RetryDelayMs) * time.Millisecond,
		Timeout:    time.Duration(c.TimeoutSec) * time.Second,
	}
}

// ParseLevel maps log.level to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level: unknown level %q", s)
}

// SetupLogger installs a text logger at level as the default and returns it.
func SetupLogger(level string, w io.Writer) *slog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
