package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zot/ezbridge/internal/config"
)

func TestLogfLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	Logf(log, 1, 0, "always %d", 0)
	Logf(log, 1, 1, "lifecycle %d", 1)
	Logf(log, 1, 2, "dropped %d", 2)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "always 0", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)

	Logf(log, 3, 2, "details")
	assert.Equal(t, zapcore.DebugLevel, logs.All()[2].Level)

	assert.NotPanics(t, func() { Logf(nil, 3, 0, "nowhere") })
}

func TestNew(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))

	log, err = New(config.LoggingConfig{Level: "warn", Format: "console", Verbosity: 2})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	_, err = New(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = New(config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
