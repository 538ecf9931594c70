package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"webtrace/internal/config"
)

func TestNew_LevelFromConfig(t *testing.T) {
	l, err := New(config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	defer func() { _ = l.Sync() }()

	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestSetLevel_Retunes(t *testing.T) {
	l, err := New(config.LoggingConfig{Level: "info"})
	require.NoError(t, err)
	defer func() { _ = l.Sync() }()

	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	l.SetLevel("debug")
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	l.SetLevel("nonsense")
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}
