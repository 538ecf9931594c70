package trace

import (
	"context"
	"time"
)

// RequestStart is delivered when the driver reports a new outgoing
// request on the tracked page.
type RequestStart struct {
	ID           string
	Method       string
	URL          string
	ResourceType string
	PostData     string
}

// RequestDone is delivered when a request's response or failure arrives.
// Failure is non-empty when the request failed at the network level; in
// that case Status is meaningless.
type RequestDone struct {
	ID      string
	Status  int
	Failure string
	Headers map[string]string
	Body    string
}

// Navigation is delivered when a frame commits a navigation. Only
// top-level navigations invalidate in-flight request bookkeeping.
type Navigation struct {
	URL      string
	TopLevel bool
}

// ModalKind distinguishes the blocking UI interrupts a page can raise.
type ModalKind string

const (
	ModalDialog      ModalKind = "dialog"
	ModalFileChooser ModalKind = "filechooser"
)

// ModalState describes a blocking UI interrupt (dialog or file chooser)
// that halts normal script execution until cleared.
type ModalState struct {
	Kind         ModalKind `json:"kind"`
	DialogType   string    `json:"dialog_type,omitempty"` // alert, confirm, prompt, beforeunload
	Message      string    `json:"message,omitempty"`
	DefaultValue string    `json:"default_value,omitempty"`
	OpenedAt     time.Time `json:"opened_at"`
}

// Page is the driver surface the engine tracks actions against. The rod
// adapter in internal/browser implements it; tests substitute fakes.
// Every On* subscription returns a detach func that must be safe to call
// more than once.
type Page interface {
	OnRequest(fn func(RequestStart)) (detach func())
	OnRequestDone(fn func(RequestDone)) (detach func())
	OnNavigation(fn func(Navigation)) (detach func())
	OnModal(fn func(ModalState)) (detach func())

	// WaitLoad blocks until the page's load lifecycle event.
	WaitLoad(ctx context.Context) error
	// Delay waits d inside the page's own event loop, so the wait is
	// tied to page script execution rather than the host clock.
	Delay(ctx context.Context, d time.Duration) error
	// ScriptBlocked reports whether page script execution is currently
	// halted, e.g. by a showing dialog.
	ScriptBlocked() bool
	// ActiveModals returns the modals currently blocking the page,
	// oldest first.
	ActiveModals() []ModalState

	// Snapshot returns the page's accessibility tree as text with
	// stable [ref=<id>] tokens per interactive element.
	Snapshot(ctx context.Context) (string, error)
	// Console is the page-level rolling console collector.
	Console() *ConsoleCollector
}
