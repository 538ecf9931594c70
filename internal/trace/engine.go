package trace

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Driver is the full browser surface the engine drives: the tracked
// Page plus one interaction primitive per action kind. The rod adapter
// in internal/browser implements it.
type Driver interface {
	Page

	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	SelectOptions(ctx context.Context, selector string, values []string) error
	Press(ctx context.Context, key string) error
	Hover(ctx context.Context, selector string) error
}

// Result is what one engine entry point hands back. Exactly one of
// Capture or Modals is meaningful: a non-empty Modals means the action
// was interrupted (or never attempted) because of a blocking dialog, and
// no normal capture was built for it.
type Result struct {
	Capture  *ActionCapture
	Modals   []ModalState
	Snapshot string // after-snapshot; empty on the modal outcome
}

// Blocked reports whether a modal pre-empted the action.
func (r *Result) Blocked() bool { return len(r.Modals) > 0 }

// Engine composes completion tracking, modal racing, and snapshot
// diffing into one entry point per action kind. One engine tracks one
// page; callers serialize actions per page.
type Engine struct {
	driver Driver
	cfg    Config
	log    *zap.Logger
}

// NewEngine creates an engine around driver. A nil logger disables
// logging.
func NewEngine(driver Driver, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{driver: driver, cfg: cfg, log: log}
}

// Navigate loads url and captures the action.
func (e *Engine) Navigate(ctx context.Context, url string) (*Result, error) {
	return e.perform(ctx, NavigateAction{URL: url})
}

// Click clicks the element matched by selector and captures the action.
func (e *Engine) Click(ctx context.Context, selector string) (*Result, error) {
	return e.perform(ctx, ClickAction{Selector: selector})
}

// Type types text into the element matched by selector and captures the
// action.
func (e *Engine) Type(ctx context.Context, selector, text string) (*Result, error) {
	return e.perform(ctx, TypeAction{Selector: selector, Text: text})
}

// Select selects option values in the element matched by selector and
// captures the action.
func (e *Engine) Select(ctx context.Context, selector string, values []string) (*Result, error) {
	return e.perform(ctx, SelectAction{Selector: selector, Values: values})
}

// PressKey presses key on the focused element and captures the action.
func (e *Engine) PressKey(ctx context.Context, key string) (*Result, error) {
	return e.perform(ctx, PressKeyAction{Key: key})
}

// Hover hovers the element matched by selector and captures the action.
func (e *Engine) Hover(ctx context.Context, selector string) (*Result, error) {
	return e.perform(ctx, HoverAction{Selector: selector})
}

// perform runs one action through the full pipeline: console checkpoint,
// best-effort before-snapshot, modal-raced completion tracking,
// best-effort after-snapshot, then record assembly.
func (e *Engine) perform(ctx context.Context, action Action) (*Result, error) {
	mark := e.driver.Console().Checkpoint()

	// Snapshot capture is best-effort: a page mid-navigation can refuse
	// it, and a partial record beats no record.
	before, err := e.driver.Snapshot(ctx)
	if err != nil {
		e.log.Debug("before-snapshot unavailable", zap.String("action", string(action.Kind())), zap.Error(err))
		before = ""
	}

	var outcome *TrackOutcome
	var actionErr error
	modals, raceErr := RaceModal(ctx, e.driver, func(c context.Context) error {
		o, trackErr := Track(c, e.driver, e.cfg, func(ac context.Context) error {
			return e.dispatch(ac, action)
		})
		outcome = o
		if trackErr != nil && (errors.Is(trackErr, context.Canceled) || errors.Is(trackErr, context.DeadlineExceeded)) {
			return trackErr
		}
		actionErr = trackErr
		return nil
	})
	if raceErr != nil {
		return nil, raceErr
	}
	if len(modals) > 0 {
		// A dialog short-circuited the network wait; the tracker result,
		// whenever it settles, is discarded. The caller must clear the
		// modal before the next action.
		e.log.Info("action blocked by modal",
			zap.String("action", string(action.Kind())),
			zap.String("modal", string(modals[0].Kind)))
		return &Result{Modals: modals}, nil
	}

	after, err := e.driver.Snapshot(ctx)
	if err != nil {
		e.log.Debug("after-snapshot unavailable", zap.String("action", string(action.Kind())), zap.Error(err))
		after = ""
	}

	capture := BuildCapture(action, before, outcome, actionErr, after, e.driver.Console().TakeSince(mark))
	e.log.Debug("action captured",
		zap.String("action", string(action.Kind())),
		zap.Int64("duration_ms", capture.Timing.DurationMs),
		zap.Int("requests", len(capture.Requests)),
		zap.Bool("timed_out", capture.TimedOut))

	return &Result{Capture: capture, Snapshot: after}, nil
}

func (e *Engine) dispatch(ctx context.Context, action Action) error {
	switch a := action.(type) {
	case NavigateAction:
		return e.driver.Navigate(ctx, a.URL)
	case ClickAction:
		return e.driver.Click(ctx, a.Selector)
	case TypeAction:
		return e.driver.Type(ctx, a.Selector, a.Text)
	case SelectAction:
		return e.driver.SelectOptions(ctx, a.Selector, a.Values)
	case PressKeyAction:
		return e.driver.Press(ctx, a.Key)
	case HoverAction:
		return e.driver.Hover(ctx, a.Selector)
	default:
		return fmt.Errorf("unsupported action kind: %s", action.Kind())
	}
}
