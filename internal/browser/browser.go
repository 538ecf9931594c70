// Package browser adapts go-rod to the trace.Driver surface: it owns
// the Chrome lifecycle, turns CDP event streams into trace callbacks,
// and renders accessibility snapshots as ref-annotated text.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Config controls how the browser is obtained and how long page
// interactions may take.
type Config struct {
	// DebuggerURL attaches to an already-running Chrome instead of
	// launching one.
	DebuggerURL string
	// Launch is the browser binary followed by extra flags, used when
	// DebuggerURL is empty. Empty means the default launcher.
	Launch   []string
	Headless bool
	// ActionTimeout bounds element lookup and interaction for a single
	// action primitive.
	ActionTimeout time.Duration
}

// DefaultConfig returns the config used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		Headless:      true,
		ActionTimeout: 5 * time.Second,
	}
}

func (c Config) actionTimeout() time.Duration {
	if c.ActionTimeout <= 0 {
		return 5 * time.Second
	}
	return c.ActionTimeout
}

// Browser wraps a connected rod browser.
type Browser struct {
	cfg Config
	rod *rod.Browser
	log *zap.Logger
}

// Connect launches or attaches to Chrome per cfg. A nil logger disables
// logging.
func Connect(ctx context.Context, cfg Config, log *zap.Logger) (*Browser, error) {
	if log == nil {
		log = zap.NewNop()
	}

	controlURL := cfg.DebuggerURL
	if controlURL == "" && len(cfg.Launch) > 0 {
		bin := cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(cfg.Headless)
		for _, rawFlag := range cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}
	if controlURL == "" {
		url, err := launcher.New().Headless(cfg.Headless).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	log.Debug("browser connected", zap.String("control_url", controlURL))

	return &Browser{cfg: cfg, rod: b, log: log}, nil
}

// NewPage opens a blank page with its event pump already attached.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	rp, err := b.rod.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	return newPage(ctx, rp, b.cfg, b.log)
}

// Close closes every page and the browser connection.
func (b *Browser) Close() error {
	return b.rod.Close()
}
