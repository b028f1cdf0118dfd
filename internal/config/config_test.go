package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zot/ezbridge/internal/hostabi"
)

func TestDefaultHostVersionHasLayout(t *testing.T) {
	_, err := hostabi.LayoutFor(DefaultConfig().Host.Version)
	assert.NoError(t, err)
}

func TestLoadMissingDefaultFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"), false)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"), true)
	assert.Error(t, err)
}

func TestLoadTOMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ezbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[scripts]
dir = "/srv/scripts"

[storage]
type = "sqlite"
timeout = "750ms"

[logging]
level = "debug"
verbosity = 2
`), 0o644))

	t.Setenv("EZ_STORAGE_PATH", "/var/lib/ez/players.db")
	t.Setenv("EZ_LOG_LEVEL", "warn")

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "/srv/scripts", cfg.Scripts.Dir)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 750*time.Millisecond, cfg.Storage.Timeout.Duration())
	assert.Equal(t, "/var/lib/ez/players.db", cfg.Storage.Path)
	assert.Equal(t, "warn", cfg.Logging.Level, "env beats file")
	assert.Equal(t, 2, cfg.Verbosity())
	assert.Equal(t, hostabi.DefaultVersion, cfg.Host.Version, "defaults survive")
}

func TestLoadBadDurationFromEnv(t *testing.T) {
	t.Setenv("EZ_STORAGE_TIMEOUT", "soon")
	_, err := Load("", false)
	assert.Error(t, err)
}
