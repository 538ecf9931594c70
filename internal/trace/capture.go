package trace

import "time"

// Timing is the wall-clock span of one action.
type Timing struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationMs int64     `json:"duration_ms"`
}

// CaptureError is an action failure surfaced inside the record. The
// record stays otherwise complete up to the failure point.
type CaptureError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ActionCapture is the unit of record: one structured account of what a
// single user-driven browser interaction did. Fields are filled in
// incrementally during tracking; the record is immutable once built and
// its consumers (live display, session log, AI report) only read it.
type ActionCapture struct {
	Kind   ActionKind `json:"kind"`
	Title  string     `json:"title"`
	Params Action     `json:"params"`

	Timing Timing `json:"timing"`

	Requests       []NetworkRequest `json:"requests,omitempty"`
	NetworkSummary string           `json:"network_summary,omitempty"`

	Console []ConsoleMessage `json:"console,omitempty"`

	// SnapshotBefore/After may be empty when capture failed mid
	// navigation; Diff is present only when both succeeded.
	SnapshotBefore string        `json:"-"`
	SnapshotAfter  string        `json:"-"`
	Diff           *SnapshotDiff `json:"diff,omitempty"`

	Error *CaptureError `json:"error,omitempty"`

	TimedOut  bool `json:"timed_out,omitempty"`
	Navigated bool `json:"navigated,omitempty"`
}

// BuildCapture assembles the pieces of one tracked action into a
// finalized record. Either snapshot may be empty (capture during a
// navigating page is best-effort); the diff is computed only when both
// are present.
func BuildCapture(action Action, before string, outcome *TrackOutcome, actionErr error, after string, console []ConsoleMessage) *ActionCapture {
	c := &ActionCapture{
		Kind:   action.Kind(),
		Title:  action.Title(),
		Params: action,
		Timing: Timing{
			Start:      outcome.Start,
			End:        outcome.Start.Add(outcome.Duration),
			DurationMs: outcome.DurationMs(),
		},
		Requests:       outcome.Requests,
		NetworkSummary: NetworkSummary(outcome.Requests),
		Console:        console,
		SnapshotBefore: before,
		SnapshotAfter:  after,
		TimedOut:       outcome.TimedOut,
		Navigated:      outcome.Navigated,
	}

	if before != "" && after != "" {
		diff := DiffSnapshots(before, after)
		c.Diff = &diff
	}

	if actionErr != nil {
		c.Error = &CaptureError{Message: actionErr.Error()}
	}

	return c
}
