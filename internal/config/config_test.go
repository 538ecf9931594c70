package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "webtrace.yaml"))
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 10*time.Second, cfg.GetNetworkIdleTimeout())
	assert.Equal(t, time.Second, cfg.GetGraceDelay())
	assert.Equal(t, 250*time.Millisecond, cfg.GetFlushDelay())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webtrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
browser:
  headless: false
  action_timeout: 2s
trace:
  network_idle_timeout: 3s
  grace_delay: 500ms
logging:
  level: debug
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 2*time.Second, cfg.GetActionTimeout())
	assert.Equal(t, 3*time.Second, cfg.GetNetworkIdleTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.GetGraceDelay())
	// Unset fields keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.GetLoadTimeout())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webtrace.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser: [not a map"), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_RejectsBadDurationAndLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trace.GraceDelay = "fast"
	require.ErrorContains(t, cfg.Validate(), "trace.grace_delay")

	cfg = DefaultConfig()
	cfg.Logging.Level = "loud"
	require.ErrorContains(t, cfg.Validate(), "logging.level")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WEBTRACE_LOG_LEVEL", "warn")
	t.Setenv("WEBTRACE_HEADLESS", "false")
	t.Setenv("WEBTRACE_SESSION_DIR", "/tmp/traces")

	cfg, err := Load(filepath.Join(t.TempDir(), "webtrace.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "/tmp/traces", cfg.Session.Dir)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webtrace.yaml")
	cfg := DefaultConfig()
	cfg.Trace.NetworkIdleTimeout = "7s"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, loaded.GetNetworkIdleTimeout())
}
