package trace

import (
	"context"
	"sync"
	"time"
)

// Config bounds the completion tracker's waits. The zero value selects
// the engine defaults.
type Config struct {
	// NetworkIdleTimeout forces settlement if the pending request set
	// never drains and no navigation occurs.
	NetworkIdleTimeout time.Duration
	// LoadTimeout bounds the wait for the load event after a top-level
	// navigation superseded network tracking.
	LoadTimeout time.Duration
	// GraceDelay is the short post-barrier wait that catches
	// just-arriving late responses. Zero disables it.
	GraceDelay time.Duration
}

const (
	defaultNetworkIdleTimeout = 10 * time.Second
	defaultLoadTimeout        = 10 * time.Second
	defaultGraceDelay         = time.Second
)

func (c Config) withDefaults() Config {
	if c.NetworkIdleTimeout <= 0 {
		c.NetworkIdleTimeout = defaultNetworkIdleTimeout
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = defaultLoadTimeout
	}
	return c
}

// TrackOutcome is the tracker's view of one completed action window.
type TrackOutcome struct {
	// Start is when the action callback was kicked off.
	Start time.Time
	// Requests lists every request observed, in start order. Records
	// that resolved carry a status or failure and an end timestamp.
	Requests []NetworkRequest
	// Duration is the span from action start to barrier resolution.
	Duration time.Duration
	// TimedOut marks the designed fallback path where the pending set
	// never drained within the bound. Not an error.
	TimedOut bool
	// Navigated marks that a top-level navigation superseded network
	// tracking and the barrier pivoted to the load event.
	Navigated bool
}

// DurationMs returns the overall duration in rounded milliseconds.
func (o *TrackOutcome) DurationMs() int64 {
	return roundMs(o.Duration)
}

func roundMs(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64((d + time.Millisecond/2) / time.Millisecond)
}

// tracker holds per-invocation bookkeeping. One action is tracked at a
// time per page; callers serialize actions, so the mutex only guards
// against driver event goroutines.
type tracker struct {
	mu         sync.Mutex
	pending    map[string]int // request id -> index into completed
	completed  []NetworkRequest
	actionDone bool
	settledCh  chan struct{}
	settleOnce sync.Once
}

func newTracker() *tracker {
	return &tracker{
		pending:   make(map[string]int),
		settledCh: make(chan struct{}),
	}
}

func (t *tracker) onRequest(ev RequestStart) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed = append(t.completed, NetworkRequest{
		ID:           ev.ID,
		Method:       ev.Method,
		URL:          ev.URL,
		ResourceType: ev.ResourceType,
		PostData:     ev.PostData,
		StartedAt:    time.Now(),
	})
	t.pending[ev.ID] = len(t.completed) - 1
}

func (t *tracker) onRequestDone(ev RequestDone) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.pending[ev.ID]
	if !ok {
		return // request predates this action window
	}
	delete(t.pending, ev.ID)

	rec := &t.completed[idx]
	rec.EndedAt = time.Now()
	if ev.Failure != "" {
		rec.Failure = ev.Failure
	} else {
		status := ev.Status
		rec.Status = &status
		rec.RespHeaders = ev.Headers
		rec.RespBody = ev.Body
	}
	rec.DurationMs = roundMs(rec.EndedAt.Sub(rec.StartedAt))

	t.checkSettledLocked()
}

func (t *tracker) markActionDone() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actionDone = true
	t.checkSettledLocked()
}

// checkSettledLocked closes the settle barrier once the action has
// finished and no request remains pending.
func (t *tracker) checkSettledLocked() {
	if t.actionDone && len(t.pending) == 0 {
		t.settleOnce.Do(func() { close(t.settledCh) })
	}
}

func (t *tracker) snapshotRequests() []NetworkRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]NetworkRequest, len(t.completed))
	copy(out, t.completed)
	return out
}

// disposer aggregates listener detach funcs into one idempotent release.
// Listener leakage here is a correctness bug, not just a resource leak:
// a leaked listener corrupts the next action's bookkeeping.
type disposer struct {
	once    sync.Once
	detach  []func()
	network []func()
}

func (d *disposer) dispose() {
	d.once.Do(func() {
		d.disposeNetwork()
		for _, fn := range d.detach {
			fn()
		}
	})
}

func (d *disposer) disposeNetwork() {
	for _, fn := range d.network {
		fn()
	}
	d.network = nil
}

// Track runs action against page and waits, without a fixed sleep, until
// its observable side effects have settled: the action finished and the
// pending request set drained, or the idle timeout elapsed, or a
// top-level navigation superseded network tracking and the new document
// reached its load event. The returned outcome is valid even when the
// action itself failed; the action error is returned alongside it.
func Track(ctx context.Context, page Page, cfg Config, action func(context.Context) error) (*TrackOutcome, error) {
	cfg = cfg.withDefaults()
	t := newTracker()

	navCh := make(chan Navigation, 1)

	d := &disposer{}
	d.network = append(d.network,
		page.OnRequest(t.onRequest),
		page.OnRequestDone(t.onRequestDone),
	)
	d.detach = append(d.detach, page.OnNavigation(func(nav Navigation) {
		if !nav.TopLevel {
			return
		}
		select {
		case navCh <- nav:
		default:
		}
	}))
	defer d.dispose()

	start := time.Now()
	actionErrCh := make(chan error, 1)
	go func() { actionErrCh <- action(ctx) }()

	timeout := time.NewTimer(cfg.NetworkIdleTimeout)
	defer timeout.Stop()

	outcome := &TrackOutcome{Start: start}
	var actionErr error
	actionReturned := false

barrier:
	for {
		select {
		case err := <-actionErrCh:
			actionReturned = true
			actionErr = err
			if err != nil {
				// A failed action settles immediately; the record stays
				// complete up to the failure point.
				break barrier
			}
			t.markActionDone()

		case <-t.settledCh:
			break barrier

		case <-navCh:
			// A fresh document invalidates in-flight request
			// bookkeeping: stop the idle clock and network listeners and
			// pivot to the new page's load event.
			outcome.Navigated = true
			timeout.Stop()
			d.disposeNetwork()
			loadCtx, cancel := context.WithTimeout(ctx, cfg.LoadTimeout)
			_ = page.WaitLoad(loadCtx)
			cancel()
			break barrier

		case <-timeout.C:
			outcome.TimedOut = true
			break barrier

		case <-ctx.Done():
			outcome.Duration = time.Since(start)
			outcome.Requests = t.snapshotRequests()
			return outcome, ctx.Err()
		}
	}

	outcome.Duration = time.Since(start)

	// Grace wait for late responses. Skipped on the forced-timeout path;
	// run on a host timer when a dialog blocks page script, otherwise
	// inside the page's own event loop.
	if cfg.GraceDelay > 0 && !outcome.TimedOut {
		if page.ScriptBlocked() {
			hostDelay(ctx, cfg.GraceDelay)
		} else {
			_ = page.Delay(ctx, cfg.GraceDelay)
		}
	}

	// The action's own promise is never forcibly cancelled; its result
	// or error is still awaited.
	if !actionReturned {
		select {
		case actionErr = <-actionErrCh:
		case <-ctx.Done():
			outcome.Requests = t.snapshotRequests()
			return outcome, ctx.Err()
		}
	}

	outcome.Requests = t.snapshotRequests()
	return outcome, actionErr
}

func hostDelay(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
