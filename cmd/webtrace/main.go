// webtrace drives a browser page through scripted actions and reports
// what each action caused: network traffic, console output, and the
// change to the page's accessibility tree.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"webtrace/internal/browser"
	"webtrace/internal/config"
	"webtrace/internal/logging"
	"webtrace/internal/session"
	"webtrace/internal/trace"
)

var (
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "webtrace",
	Short: "Capture what browser actions actually do",
	Long: `webtrace runs scripted actions against a live page and captures,
per action, the network requests it triggered, the console output it
produced, and a structural diff of the page's accessibility tree.

Each run is recorded as a session transcript with full capture records
on the side.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var traceCmd = &cobra.Command{
	Use:   "trace <url> [action...]",
	Short: "Run actions against a page and capture each one",
	Long: `Opens url, then performs each action in order. Actions are written
as kind:argument, for example:

  webtrace trace https://app.test click:#login type:#email=me@test press:Enter`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actions, err := parseActionSpecs(args[1:])
		if err != nil {
			return err
		}
		return runTrace(cmd, args[0], actions)
	},
}

var requestsCmd = &cobra.Command{
	Use:   "requests <capture.json>...",
	Short: "Print the network summary of saved captures",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summaries := make([]string, len(args))
		var g errgroup.Group
		for i, path := range args {
			g.Go(func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				var capture trace.ActionCapture
				if err := json.Unmarshal(data, &capture); err != nil {
					return fmt.Errorf("parse capture %s: %w", path, err)
				}
				summary := trace.NetworkSummary(capture.Requests)
				if summary == "" {
					summary = "no requests"
				}
				summaries[i] = summary
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i, s := range summaries {
			if len(args) > 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "== %s ==\n", args[i])
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	},
}

var (
	outputFormat string
	sessionDir   string
)

func runTrace(cmd *cobra.Command, url string, actions []trace.Action) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bcfg := browser.Config{
		DebuggerURL:   cfg.Browser.DebuggerURL,
		Launch:        cfg.Browser.Launch,
		Headless:      cfg.Browser.Headless,
		ActionTimeout: cfg.GetActionTimeout(),
	}
	b, err := browser.Connect(ctx, bcfg, logger.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	page, err := b.NewPage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = page.Close() }()

	// Level follows the config file while the trace runs.
	watcher, err := config.NewWatcher(cfgPath, func(fresh *config.Config) {
		logger.SetLevel(fresh.Logging.Level)
	}, logger.Logger)
	if err == nil {
		if err := watcher.Start(ctx); err == nil {
			defer watcher.Stop()
		}
	}

	dir := sessionDir
	if dir == "" {
		dir = cfg.Session.Dir
	}
	rec, err := session.NewRecorder(dir, cfg.GetFlushDelay(), logger.Logger)
	if err != nil {
		return err
	}
	defer rec.Close()
	rec.SetPageURL(url)
	logger.Info("session started", zap.String("id", rec.ID()), zap.String("dir", rec.Dir()))

	tcfg := trace.Config{
		NetworkIdleTimeout: cfg.GetNetworkIdleTimeout(),
		LoadTimeout:        cfg.GetLoadTimeout(),
		GraceDelay:         cfg.GetGraceDelay(),
	}
	engine := trace.NewEngine(page, tcfg, logger.Logger)

	all := append([]trace.Action{trace.NavigateAction{URL: url}}, actions...)
	for _, action := range all {
		res, err := runAction(ctx, engine, action)
		if err != nil {
			return err
		}
		if res.Blocked() {
			modal := res.Modals[0]
			fmt.Fprintf(cmd.OutOrStdout(), "action blocked by %s", modal.Kind)
			if modal.Message != "" {
				fmt.Fprintf(cmd.OutOrStdout(), ": %s", modal.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return fmt.Errorf("modal open; clear it before running more actions")
		}
		rec.RecordAction(action, "", res.Capture)
		fmt.Fprintln(cmd.OutOrStdout(), render(res.Capture))
	}
	return nil
}

func runAction(ctx context.Context, engine *trace.Engine, action trace.Action) (*trace.Result, error) {
	switch a := action.(type) {
	case trace.NavigateAction:
		return engine.Navigate(ctx, a.URL)
	case trace.ClickAction:
		return engine.Click(ctx, a.Selector)
	case trace.TypeAction:
		return engine.Type(ctx, a.Selector, a.Text)
	case trace.SelectAction:
		return engine.Select(ctx, a.Selector, a.Values)
	case trace.PressKeyAction:
		return engine.PressKey(ctx, a.Key)
	case trace.HoverAction:
		return engine.Hover(ctx, a.Selector)
	default:
		return nil, fmt.Errorf("unsupported action kind: %s", action.Kind())
	}
}

func render(c *trace.ActionCapture) string {
	switch outputFormat {
	case "markdown":
		return trace.RenderMarkdown(c)
	case "ai":
		return trace.RenderAIReport(c)
	default:
		return trace.RenderTerminal(c)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "webtrace.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	traceCmd.Flags().StringVarP(&outputFormat, "format", "f", "terminal", "output format: terminal, markdown, ai")
	traceCmd.Flags().StringVar(&sessionDir, "session-dir", "", "session output directory (default from config)")

	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(requestsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
