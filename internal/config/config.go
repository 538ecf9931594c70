// Package config loads webtrace configuration from YAML, applies
// environment overrides, and watches the file for live reloads.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all webtrace configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Trace   TraceConfig   `yaml:"trace"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
}

// BrowserConfig configures how Chrome is obtained and driven.
type BrowserConfig struct {
	// DebuggerURL attaches to a running Chrome instead of launching one.
	DebuggerURL string `yaml:"debugger_url"`
	// Launch is the browser binary plus extra flags, used when no
	// debugger URL is set.
	Launch        []string `yaml:"launch"`
	Headless      bool     `yaml:"headless"`
	ActionTimeout string   `yaml:"action_timeout"`
}

// TraceConfig configures action completion tracking.
type TraceConfig struct {
	NetworkIdleTimeout string `yaml:"network_idle_timeout"`
	LoadTimeout        string `yaml:"load_timeout"`
	GraceDelay         string `yaml:"grace_delay"`
}

// SessionConfig configures the session recorder.
type SessionConfig struct {
	Dir        string `yaml:"dir"`
	FlushDelay string `yaml:"flush_delay"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	File   string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:      true,
			ActionTimeout: "5s",
		},
		Trace: TraceConfig{
			NetworkIdleTimeout: "10s",
			LoadTimeout:        "10s",
			GraceDelay:         "1s",
		},
		Session: SessionConfig{
			Dir:        "sessions",
			FlushDelay: "250ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a malformed one is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WEBTRACE_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("WEBTRACE_HEADLESS"); v != "" {
		c.Browser.Headless = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("WEBTRACE_SESSION_DIR"); v != "" {
		c.Session.Dir = v
	}
	if v := os.Getenv("WEBTRACE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	for _, d := range []struct {
		name, val string
	}{
		{"browser.action_timeout", c.Browser.ActionTimeout},
		{"trace.network_idle_timeout", c.Trace.NetworkIdleTimeout},
		{"trace.load_timeout", c.Trace.LoadTimeout},
		{"trace.grace_delay", c.Trace.GraceDelay},
		{"session.flush_delay", c.Session.FlushDelay},
	} {
		if d.val == "" {
			continue
		}
		if _, err := time.ParseDuration(d.val); err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetActionTimeout returns the per-primitive interaction timeout.
func (c *Config) GetActionTimeout() time.Duration {
	return parseDuration(c.Browser.ActionTimeout, 5*time.Second)
}

// GetNetworkIdleTimeout returns the completion barrier timeout.
func (c *Config) GetNetworkIdleTimeout() time.Duration {
	return parseDuration(c.Trace.NetworkIdleTimeout, 10*time.Second)
}

// GetLoadTimeout returns the post-navigation load wait timeout.
func (c *Config) GetLoadTimeout() time.Duration {
	return parseDuration(c.Trace.LoadTimeout, 10*time.Second)
}

// GetGraceDelay returns the settle wait after the completion barrier.
func (c *Config) GetGraceDelay() time.Duration {
	return parseDuration(c.Trace.GraceDelay, time.Second)
}

// GetFlushDelay returns the session recorder debounce window.
func (c *Config) GetFlushDelay() time.Duration {
	return parseDuration(c.Session.FlushDelay, 250*time.Millisecond)
}
