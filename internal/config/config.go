// Package config loads process configuration from CELERIX_* environment
// variables and opens the configured engine.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/celerix-dev/celerix-settings/internal/vault"
	"github.com/celerix-dev/celerix-settings/pkg/engine"
	"github.com/celerix-dev/celerix-settings/pkg/engine/sqlite"
	"github.com/celerix-dev/celerix-settings/pkg/settings"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// sqliteFile is the database file name used inside DataDir.
const sqliteFile = "settings.db"

// Config holds the settings shared by the daemon and the CLI.
type Config struct {
	DataDir      string                `env:"CELERIX_DATA_DIR" envDefault:"./data"`
	Backend      string                `env:"CELERIX_BACKEND" envDefault:"file"`
	BundleID     string                `env:"CELERIX_BUNDLE_ID" envDefault:"dev.celerix.settings"`
	LogVerbosity settings.LogVerbosity `env:"CELERIX_LOG_LEVEL" envDefault:"failures"`
	HTTPPort     string                `env:"CELERIX_HTTP_PORT" envDefault:"7002"`
	DisableTLS   bool                  `env:"CELERIX_DISABLE_TLS" envDefault:"false"`
	VaultKey     string                `env:"CELERIX_VAULT_KEY"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration errors that env parsing cannot catch.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown backend %q (want %q or %q)", c.Backend, BackendFile, BackendSQLite)
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: CELERIX_DATA_DIR is empty")
	}
	if c.VaultKey != "" {
		if _, err := vault.ParseKey(c.VaultKey); err != nil {
			return fmt.Errorf("config: CELERIX_VAULT_KEY: %w", err)
		}
	}
	return nil
}

// OpenEngine opens the configured backend under DataDir.
func (c Config) OpenEngine() (engine.Engine, error) {
	return OpenBackend(c.Backend, c.DataDir)
}

// OpenBackend opens the named backend rooted at dataDir.
func OpenBackend(backend, dataDir string) (engine.Engine, error) {
	switch backend {
	case BackendFile:
		return engine.Open(dataDir)
	case BackendSQLite:
		p, err := engine.NewPersistence(dataDir) // ensures the directory exists
		if err != nil {
			return nil, err
		}
		return sqlite.Open(filepath.Join(p.DataDir, sqliteFile))
	}
	return nil, fmt.Errorf("config: unknown backend %q", backend)
}

// Logging returns the façade logging configuration for c.
func (c Config) Logging() settings.LoggingConfig {
	return settings.LoggingConfig{Verbosity: c.LogVerbosity}
}

// NewStorage builds a Storage over e using the bundle id and log level of c.
func (c Config) NewStorage(e engine.Engine, opts ...settings.Option) *settings.Storage {
	opts = append([]settings.Option{settings.WithLogging(c.Logging())}, opts...)
	return settings.New(settings.NewResolver(e, c.BundleID), opts...)
}

// SealedStorage builds a Storage whose codec seals values with CELERIX_VAULT_KEY.
func (c Config) SealedStorage(e engine.Engine) (*settings.Storage, error) {
	if c.VaultKey == "" {
		return nil, fmt.Errorf("config: CELERIX_VAULT_KEY is not set")
	}
	key, err := vault.ParseKey(c.VaultKey)
	if err != nil {
		return nil, err
	}
	return c.NewStorage(e, settings.WithCodec(vault.NewCodec(settings.JSONCodec{}, key))), nil
}
