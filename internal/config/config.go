// Package config handles configuration loading from a TOML file, environment variables
// and CLI flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/zot/ezbridge/internal/hostabi"
)

// DefaultPath is read when no --config flag is given. A missing file is not an error.
const DefaultPath = "ezbridge.toml"

// Config holds all configuration settings for the bridge host.
type Config struct {
	Host    HostConfig    `toml:"host"`
	Scripts ScriptsConfig `toml:"scripts"`
	Storage StorageConfig `toml:"storage"`
	Server  ServerConfig  `toml:"server"`
	Feed    FeedConfig    `toml:"feed"`
	Logging LoggingConfig `toml:"logging"`
}

// HostConfig selects the offset table for the running host binary.
type HostConfig struct {
	Version string `toml:"version" env:"EZ_HOST_VERSION"`
}

// ScriptsConfig holds Lua script settings.
type ScriptsConfig struct {
	Dir string `toml:"dir" env:"EZ_SCRIPTS_DIR"`
}

// StorageConfig holds offline player store settings.
type StorageConfig struct {
	// Type is "memory", "sqlite" or "postgresql".
	Type string `toml:"type" env:"EZ_STORAGE"`
	// Path is the SQLite file path.
	Path string `toml:"path" env:"EZ_STORAGE_PATH"`
	// URL is the PostgreSQL connection URL.
	URL string `toml:"url" env:"EZ_STORAGE_URL"`
	// Timeout bounds every store query.
	Timeout Duration `toml:"timeout" env:"EZ_STORAGE_TIMEOUT"`
	// Seed is a YAML file of offline players loaded at startup.
	Seed string `toml:"seed" env:"EZ_STORAGE_SEED"`
}

// ServerConfig holds the HTTP listener settings. An empty Addr disables it.
type ServerConfig struct {
	Addr string `toml:"addr" env:"EZ_SERVER_ADDR"`
}

// FeedConfig names the JSON-lines join/leave stream ("-" for stdin, "" for none).
type FeedConfig struct {
	Path string `toml:"path" env:"EZ_FEED"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level" env:"EZ_LOG_LEVEL"`   // "debug", "info", "warn", "error"
	Format string `toml:"format" env:"EZ_LOG_FORMAT"` // "console", "json"
	// Verbosity: 0=warnings, 1=lifecycle, 2=native calls, 3=values.
	Verbosity int `toml:"verbosity" env:"EZ_VERBOSITY"`
}

// Duration is a time.Duration that can be unmarshaled from TOML and env strings.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	return &Config{
		Host: HostConfig{
			Version: hostabi.DefaultVersion,
		},
		Scripts: ScriptsConfig{
			Dir: "scripts",
		},
		Storage: StorageConfig{
			Type:    "memory",
			Path:    "players.db",
			Timeout: Duration(2 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a TOML file and environment variables.
// Priority: env vars > TOML file > defaults. CLI flags are applied by the caller.
// A missing file is only an error when explicit is true.
func Load(path string, explicit bool) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.loadTOML(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || explicit {
				return nil, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// loadTOML loads configuration from a TOML file.
func (c *Config) loadTOML(path string) error {
	_, err := toml.DecodeFile(path, c)
	return err
}

// Verbosity returns the configured verbosity level.
func (c *Config) Verbosity() int {
	return c.Logging.Verbosity
}
