package trace

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakePage is an in-memory Page for exercising the tracker without a
// browser. Emit* methods deliver events the way the rod adapter would:
// from separate goroutines or inline, under no ordering guarantee beyond
// call order.
type fakePage struct {
	mu sync.Mutex

	onRequest     func(RequestStart)
	onRequestDone func(RequestDone)
	onNavigation  func(Navigation)
	onModal       func(ModalState)

	attached int // live listener count, for leak assertions

	modals    []ModalState
	blocked   bool
	snapshots []string
	snapErr   error

	loadCh chan struct{}

	console *ConsoleCollector

	pageDelays int // Delay invocations (page-context grace waits)
	hostChecks int // ScriptBlocked invocations
}

func newFakePage() *fakePage {
	return &fakePage{
		loadCh:  make(chan struct{}, 1),
		console: NewConsoleCollector(0),
	}
}

func (p *fakePage) subscribe(set func(), clear func()) func() {
	p.mu.Lock()
	set()
	p.attached++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			clear()
			p.attached--
			p.mu.Unlock()
		})
	}
}

func (p *fakePage) OnRequest(fn func(RequestStart)) func() {
	return p.subscribe(func() { p.onRequest = fn }, func() { p.onRequest = nil })
}

func (p *fakePage) OnRequestDone(fn func(RequestDone)) func() {
	return p.subscribe(func() { p.onRequestDone = fn }, func() { p.onRequestDone = nil })
}

func (p *fakePage) OnNavigation(fn func(Navigation)) func() {
	return p.subscribe(func() { p.onNavigation = fn }, func() { p.onNavigation = nil })
}

func (p *fakePage) OnModal(fn func(ModalState)) func() {
	return p.subscribe(func() { p.onModal = fn }, func() { p.onModal = nil })
}

func (p *fakePage) WaitLoad(ctx context.Context) error {
	select {
	case <-p.loadCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakePage) Delay(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.pageDelays++
	p.mu.Unlock()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *fakePage) ScriptBlocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hostChecks++
	return p.blocked
}

func (p *fakePage) ActiveModals() []ModalState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ModalState, len(p.modals))
	copy(out, p.modals)
	return out
}

func (p *fakePage) Snapshot(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snapErr != nil {
		return "", p.snapErr
	}
	if len(p.snapshots) == 0 {
		return "", errors.New("no snapshot queued")
	}
	snap := p.snapshots[0]
	if len(p.snapshots) > 1 {
		p.snapshots = p.snapshots[1:]
	}
	return snap, nil
}

func (p *fakePage) Console() *ConsoleCollector { return p.console }

func (p *fakePage) emitRequest(ev RequestStart) {
	p.mu.Lock()
	fn := p.onRequest
	p.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (p *fakePage) emitRequestDone(ev RequestDone) {
	p.mu.Lock()
	fn := p.onRequestDone
	p.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (p *fakePage) emitNavigation(ev Navigation) {
	p.mu.Lock()
	fn := p.onNavigation
	p.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (p *fakePage) emitModal(ev ModalState) {
	p.mu.Lock()
	fn := p.onModal
	p.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (p *fakePage) releaseLoad() {
	select {
	case p.loadCh <- struct{}{}:
	default:
	}
}

func (p *fakePage) listenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached
}

// fakeDriver extends fakePage with the interaction primitives so the
// engine entry points can run against it.
type fakeDriver struct {
	*fakePage

	// perform is invoked for every dispatched action; tests swap it to
	// simulate traffic, navigation, or failure.
	perform func(ctx context.Context, action Action) error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		fakePage: newFakePage(),
		perform:  func(context.Context, Action) error { return nil },
	}
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	return d.perform(ctx, NavigateAction{URL: url})
}

func (d *fakeDriver) Click(ctx context.Context, selector string) error {
	return d.perform(ctx, ClickAction{Selector: selector})
}

func (d *fakeDriver) Type(ctx context.Context, selector, text string) error {
	return d.perform(ctx, TypeAction{Selector: selector, Text: text})
}

func (d *fakeDriver) SelectOptions(ctx context.Context, selector string, values []string) error {
	return d.perform(ctx, SelectAction{Selector: selector, Values: values})
}

func (d *fakeDriver) Press(ctx context.Context, key string) error {
	return d.perform(ctx, PressKeyAction{Key: key})
}

func (d *fakeDriver) Hover(ctx context.Context, selector string) error {
	return d.perform(ctx, HoverAction{Selector: selector})
}
