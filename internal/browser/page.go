package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"webtrace/internal/trace"
)

// Page implements trace.Driver over a single rod page. One CDP event
// pump runs for the page's lifetime and fans events out to whatever
// subscribers are attached at the moment; attaching is therefore cheap
// and never races the browser connection.
type Page struct {
	page    *rod.Page
	cfg     Config
	log     *zap.Logger
	console *trace.ConsoleCollector

	mu        sync.Mutex
	nextSub   int
	reqSubs   map[int]func(trace.RequestStart)
	doneSubs  map[int]func(trace.RequestDone)
	navSubs   map[int]func(trace.Navigation)
	modalSubs map[int]func(trace.ModalState)

	modals      []trace.ModalState
	dialogOpen  bool
	lastChooser *proto.PageFileChooserOpened

	stopPump func()
	pumpDone chan struct{}
}

func newPage(ctx context.Context, rp *rod.Page, cfg Config, log *zap.Logger) (*Page, error) {
	p := &Page{
		page:      rp,
		cfg:       cfg,
		log:       log,
		console:   trace.NewConsoleCollector(0),
		reqSubs:   map[int]func(trace.RequestStart){},
		doneSubs:  map[int]func(trace.RequestDone){},
		navSubs:   map[int]func(trace.Navigation){},
		modalSubs: map[int]func(trace.ModalState){},
		pumpDone:  make(chan struct{}),
	}

	// File chooser events only fire while interception is on.
	if err := (proto.PageSetInterceptFileChooserDialog{Enabled: true}).Call(rp); err != nil {
		log.Debug("file chooser interception unavailable", zap.Error(err))
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	p.stopPump = cancel
	wait := rp.Context(pumpCtx).EachEvent(
		p.onRequestWillBeSent,
		p.onResponseReceived,
		p.onLoadingFailed,
		p.onFrameNavigated,
		p.onConsoleAPICalled,
		p.onExceptionThrown,
		p.onDialogOpening,
		p.onDialogClosed,
		p.onFileChooserOpened,
		p.onDownloadWillBegin,
	)
	go func() {
		defer close(p.pumpDone)
		wait()
	}()

	return p, nil
}

// Close stops the event pump and closes the underlying page.
func (p *Page) Close() error {
	p.stopPump()
	<-p.pumpDone
	return p.page.Close()
}

// Console returns the page-level rolling console collector.
func (p *Page) Console() *trace.ConsoleCollector { return p.console }

func (p *Page) subscribe(attach func(id int), remove func(id int)) func() {
	p.mu.Lock()
	p.nextSub++
	id := p.nextSub
	attach(id)
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			remove(id)
			p.mu.Unlock()
		})
	}
}

// OnRequest registers fn for outgoing requests.
func (p *Page) OnRequest(fn func(trace.RequestStart)) func() {
	return p.subscribe(
		func(id int) { p.reqSubs[id] = fn },
		func(id int) { delete(p.reqSubs, id) },
	)
}

// OnRequestDone registers fn for responses and network failures.
func (p *Page) OnRequestDone(fn func(trace.RequestDone)) func() {
	return p.subscribe(
		func(id int) { p.doneSubs[id] = fn },
		func(id int) { delete(p.doneSubs, id) },
	)
}

// OnNavigation registers fn for committed frame navigations.
func (p *Page) OnNavigation(fn func(trace.Navigation)) func() {
	return p.subscribe(
		func(id int) { p.navSubs[id] = fn },
		func(id int) { delete(p.navSubs, id) },
	)
}

// OnModal registers fn for dialog and file chooser interrupts.
func (p *Page) OnModal(fn func(trace.ModalState)) func() {
	return p.subscribe(
		func(id int) { p.modalSubs[id] = fn },
		func(id int) { delete(p.modalSubs, id) },
	)
}

func (p *Page) onRequestWillBeSent(ev *proto.NetworkRequestWillBeSent) {
	start := trace.RequestStart{
		ID:           string(ev.RequestID),
		Method:       ev.Request.Method,
		URL:          ev.Request.URL,
		ResourceType: string(ev.Type),
	}
	p.mu.Lock()
	subs := make([]func(trace.RequestStart), 0, len(p.reqSubs))
	for _, fn := range p.reqSubs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(start)
	}
}

func (p *Page) onResponseReceived(ev *proto.NetworkResponseReceived) {
	headers := make(map[string]string, len(ev.Response.Headers))
	for k, v := range ev.Response.Headers {
		headers[k] = v.Str()
	}
	p.emitDone(trace.RequestDone{
		ID:      string(ev.RequestID),
		Status:  ev.Response.Status,
		Headers: headers,
	})
}

func (p *Page) onLoadingFailed(ev *proto.NetworkLoadingFailed) {
	p.emitDone(trace.RequestDone{
		ID:      string(ev.RequestID),
		Failure: ev.ErrorText,
	})
}

func (p *Page) emitDone(done trace.RequestDone) {
	p.mu.Lock()
	subs := make([]func(trace.RequestDone), 0, len(p.doneSubs))
	for _, fn := range p.doneSubs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(done)
	}
}

func (p *Page) onFrameNavigated(ev *proto.PageFrameNavigated) {
	nav := trace.Navigation{
		URL:      ev.Frame.URL,
		TopLevel: ev.Frame.ParentID == "",
	}
	p.mu.Lock()
	subs := make([]func(trace.Navigation), 0, len(p.navSubs))
	for _, fn := range p.navSubs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(nav)
	}
}

func (p *Page) onConsoleAPICalled(ev *proto.RuntimeConsoleAPICalled) {
	msg := trace.ConsoleMessage{
		Type:      string(ev.Type),
		Text:      stringifyConsoleArgs(ev.Args),
		Timestamp: time.Now(),
	}
	if ev.StackTrace != nil && len(ev.StackTrace.CallFrames) > 0 {
		frame := ev.StackTrace.CallFrames[0]
		msg.URL = frame.URL
		msg.Line = frame.LineNumber + 1
		msg.Column = frame.ColumnNumber + 1
	}
	p.console.Append(msg)
}

// Uncaught page errors land in the same stream as console output so an
// action's record shows everything the page said while it ran.
func (p *Page) onExceptionThrown(ev *proto.RuntimeExceptionThrown) {
	d := ev.ExceptionDetails
	text := d.Text
	if d.Exception != nil && d.Exception.Description != "" {
		text = d.Exception.Description
	}
	p.console.Append(trace.ConsoleMessage{
		Type:      "error",
		Text:      text,
		URL:       d.URL,
		Line:      d.LineNumber + 1,
		Column:    d.ColumnNumber + 1,
		Timestamp: time.Now(),
	})
}

// Downloads produce no response event, so they would otherwise be
// invisible in a capture. They surface in the console stream instead.
func (p *Page) onDownloadWillBegin(ev *proto.PageDownloadWillBegin) {
	p.console.Append(trace.ConsoleMessage{
		Type:      "download",
		Text:      "download started: " + ev.URL,
		URL:       ev.URL,
		Timestamp: time.Now(),
	})
}

func (p *Page) onDialogOpening(ev *proto.PageJavascriptDialogOpening) {
	modal := trace.ModalState{
		Kind:         trace.ModalDialog,
		DialogType:   string(ev.Type),
		Message:      ev.Message,
		DefaultValue: ev.DefaultPrompt,
		OpenedAt:     time.Now(),
	}
	p.mu.Lock()
	p.modals = append(p.modals, modal)
	p.dialogOpen = true
	subs := make([]func(trace.ModalState), 0, len(p.modalSubs))
	for _, fn := range p.modalSubs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(modal)
	}
}

func (p *Page) onDialogClosed(ev *proto.PageJavascriptDialogClosed) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialogOpen = false
	for i, m := range p.modals {
		if m.Kind == trace.ModalDialog {
			p.modals = append(p.modals[:i], p.modals[i+1:]...)
			break
		}
	}
}

func (p *Page) onFileChooserOpened(ev *proto.PageFileChooserOpened) {
	modal := trace.ModalState{
		Kind:     trace.ModalFileChooser,
		OpenedAt: time.Now(),
	}
	p.mu.Lock()
	p.modals = append(p.modals, modal)
	p.lastChooser = ev
	subs := make([]func(trace.ModalState), 0, len(p.modalSubs))
	for _, fn := range p.modalSubs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(modal)
	}
}

// ScriptBlocked reports whether a javascript dialog is currently
// showing. File choosers do not halt the page's event loop.
func (p *Page) ScriptBlocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dialogOpen
}

// ActiveModals returns the currently blocking interrupts, oldest first.
func (p *Page) ActiveModals() []trace.ModalState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]trace.ModalState, len(p.modals))
	copy(out, p.modals)
	return out
}

// HandleDialog accepts or dismisses the showing javascript dialog.
// promptText fills the prompt input when accepting one.
func (p *Page) HandleDialog(ctx context.Context, accept bool, promptText string) error {
	err := proto.PageHandleJavaScriptDialog{
		Accept:     accept,
		PromptText: promptText,
	}.Call(p.page.Context(ctx))
	if err != nil {
		return fmt.Errorf("handle dialog: %w", err)
	}
	return nil
}

// SetChooserFiles resolves the pending file chooser with the given
// local paths.
func (p *Page) SetChooserFiles(ctx context.Context, paths []string) error {
	p.mu.Lock()
	chooser := p.lastChooser
	p.lastChooser = nil
	for i, m := range p.modals {
		if m.Kind == trace.ModalFileChooser {
			p.modals = append(p.modals[:i], p.modals[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
	if chooser == nil {
		return fmt.Errorf("no pending file chooser")
	}
	err := proto.DOMSetFileInputFiles{
		Files:         paths,
		BackendNodeID: chooser.BackendNodeID,
	}.Call(p.page.Context(ctx))
	if err != nil {
		return fmt.Errorf("set chooser files: %w", err)
	}
	return nil
}

// WaitLoad blocks until the page's load lifecycle event.
func (p *Page) WaitLoad(ctx context.Context) error {
	return p.page.Context(ctx).WaitLoad()
}

// Delay waits inside the page's own event loop via a setTimeout
// promise, so the wait only elapses while page script can run.
func (p *Page) Delay(ctx context.Context, d time.Duration) error {
	_, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           `(ms) => new Promise((resolve) => setTimeout(resolve, ms))`,
		JSArgs:       []interface{}{d.Milliseconds()},
		ByValue:      true,
		AwaitPromise: true,
	})
	return err
}

func (p *Page) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := p.page.Context(ctx).Timeout(p.cfg.actionTimeout()).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %q: %w", selector, err)
	}
	return el, nil
}

// Navigate starts loading url. Load completion is the caller's concern;
// the completion tracker watches the navigation commit and the load
// event itself.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Click left-clicks the element matched by selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Type clears the element matched by selector and types text into it.
func (p *Page) Type(ctx context.Context, selector, text string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	return el.Input(text)
}

// SelectOptions selects the options whose visible text matches values
// in the element matched by selector.
func (p *Page) SelectOptions(ctx context.Context, selector string, values []string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Select(values, true, rod.SelectorTypeText)
}

var namedKeys = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"Home":       input.Home,
	"End":        input.End,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
}

// Press presses key on whatever element currently holds focus. Named
// keys use their DOM key names; single characters are typed as-is.
func (p *Page) Press(ctx context.Context, key string) error {
	if k, ok := namedKeys[key]; ok {
		return p.page.Keyboard.Press(k)
	}
	if r := []rune(key); len(r) == 1 {
		return p.page.Keyboard.Press(input.Key(r[0]))
	}
	return fmt.Errorf("unknown key: %s", key)
}

// Hover moves the mouse over the element matched by selector.
func (p *Page) Hover(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Hover()
}

// Snapshot renders the page's accessibility tree as ref-annotated text.
func (p *Page) Snapshot(ctx context.Context) (string, error) {
	res, err := proto.AccessibilityGetFullAXTree{}.Call(p.page.Context(ctx))
	if err != nil {
		return "", fmt.Errorf("accessibility tree: %w", err)
	}
	return formatAXTree(res.Nodes), nil
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
