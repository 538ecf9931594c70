package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"webtrace/internal/trace"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultFlushDelay is how long the recorder waits after the last append
// before flushing; bursts inside the window coalesce into one flush.
const DefaultFlushDelay = 250 * time.Millisecond

const transcriptName = "session.md"

// EntryKind distinguishes the record types a session can hold.
type EntryKind string

const (
	EntryToolCall   EntryKind = "tool_call"
	EntryUserAction EntryKind = "user_action"
)

// Entry is one session record: a tool call or a captured user action.
type Entry struct {
	Kind EntryKind `json:"kind"`
	At   time.Time `json:"at"`

	// Tool call fields.
	Tool   string `json:"tool,omitempty"`
	Result string `json:"result,omitempty"`

	// User action fields.
	ActionKind trace.ActionKind     `json:"action_kind,omitempty"`
	Title      string               `json:"title,omitempty"`
	URL        string               `json:"url,omitempty"` // set for navigations, used for coalescing
	Code       string               `json:"code,omitempty"`
	Capture    *trace.ActionCapture `json:"capture,omitempty"`

	// Update marks a re-record of a still-running composite action: it
	// replaces the most recent unflushed entry of the same action kind
	// instead of appending.
	Update bool `json:"-"`
}

// Meta is the session metadata persisted alongside the transcript.
type Meta struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	PageURL   string    `json:"page_url,omitempty"`
	Entries   int       `json:"entries"`
}

// Recorder owns one session directory: the markdown transcript, the
// metadata file, and per-ordinal side-car artifacts. Appends are cheap
// and in-memory; disk writes happen on a debounced flush. A write
// failure is reported to the error sink and never blocks the automation
// flow.
type Recorder struct {
	mu      sync.Mutex
	dir     string
	meta    Meta
	buffer  []Entry
	lastNav string // URL of the most recent navigate entry ever appended
	ordinal int

	debounce *Debouncer
	sink     func(error)
	log      *zap.Logger
}

// NewRecorder creates the session directory and transcript header. A nil
// logger disables logging; write failures then go nowhere, matching the
// fire-and-forget contract.
func NewRecorder(dir string, flushDelay time.Duration, log *zap.Logger) (*Recorder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	r := &Recorder{
		dir: dir,
		meta: Meta{
			ID:        uuid.NewString(),
			StartedAt: time.Now(),
		},
		debounce: NewDebouncer(flushDelay),
		log:      log,
	}
	r.sink = func(err error) {
		r.log.Warn("session write failed", zap.Error(err))
	}

	header := fmt.Sprintf("# Session %s\n\nStarted %s\n\n", r.meta.ID, r.meta.StartedAt.Format(time.RFC3339))
	if err := os.WriteFile(r.transcriptPath(), []byte(header), 0o644); err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}
	return r, nil
}

// Dir returns the session directory.
func (r *Recorder) Dir() string { return r.dir }

// ID returns the session identifier.
func (r *Recorder) ID() string { return r.meta.ID }

func (r *Recorder) transcriptPath() string {
	return filepath.Join(r.dir, transcriptName)
}

// RecordToolCall appends a tool-call record.
func (r *Recorder) RecordToolCall(tool, result string) {
	r.Append(Entry{Kind: EntryToolCall, At: time.Now(), Tool: tool, Result: result})
}

// RecordAction appends a captured user action together with the code
// generated for it.
func (r *Recorder) RecordAction(action trace.Action, code string, capture *trace.ActionCapture) {
	entry := Entry{
		Kind:       EntryUserAction,
		At:         time.Now(),
		ActionKind: action.Kind(),
		Title:      action.Title(),
		Code:       code,
		Capture:    capture,
	}
	if nav, ok := action.(trace.NavigateAction); ok {
		entry.URL = nav.URL
	}
	r.Append(entry)
}

// Append adds one entry to the unflushed buffer and (re)arms the flush
// timer. Two rules keep the transcript quiet:
//   - a navigate entry to the same URL as the immediately preceding
//     entry is dropped;
//   - an Update entry replaces the most recent unflushed entry when that
//     entry matches by action kind, so multi-step composite actions
//     produce one record.
func (r *Recorder) Append(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	isNav := entry.Kind == EntryUserAction && entry.ActionKind == trace.KindNavigate
	if isNav && entry.URL != "" && entry.URL == r.lastNav {
		return
	}
	if isNav {
		r.lastNav = entry.URL
	} else {
		r.lastNav = ""
	}

	if entry.Update && len(r.buffer) > 0 {
		last := &r.buffer[len(r.buffer)-1]
		if last.Kind == EntryUserAction && last.ActionKind == entry.ActionKind {
			*last = entry
			r.armFlushLocked()
			return
		}
	}

	r.buffer = append(r.buffer, entry)
	r.armFlushLocked()
}

func (r *Recorder) armFlushLocked() {
	r.debounce.Debounce(func() { r.Flush() })
}

// SetPageURL records the page the session is currently on.
func (r *Recorder) SetPageURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meta.PageURL = url
}

// Flush writes every buffered entry: side-car artifacts named by
// ordinal, then one compact markdown line each in the transcript. The
// buffer is swapped out atomically first, so appends during the flush
// land in the next batch. Entries are written in FIFO order and never
// reordered or rewritten after flush.
func (r *Recorder) Flush() {
	r.mu.Lock()
	batch := r.buffer
	r.buffer = nil
	first := r.ordinal + 1
	r.ordinal += len(batch)
	r.meta.Entries += len(batch)
	meta := r.meta
	r.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	var lines strings.Builder
	for i, entry := range batch {
		ordinal := first + i
		r.writeSidecars(ordinal, &entry)
		lines.WriteString(r.transcriptLine(ordinal, &entry))
	}

	if err := appendFile(r.transcriptPath(), lines.String()); err != nil {
		r.sink(err)
	}
	r.writeMeta(meta)

	r.log.Debug("session flushed",
		zap.Int("entries", len(batch)),
		zap.Int("through_ordinal", first+len(batch)-1))
}

// writeSidecars persists the large sub-artifacts for one entry. Failures
// go to the sink; a lost artifact is acceptable, a blocked flush is not.
func (r *Recorder) writeSidecars(ordinal int, entry *Entry) {
	if entry.Capture == nil {
		return
	}

	if entry.Capture.SnapshotAfter != "" {
		path := filepath.Join(r.dir, fmt.Sprintf("%03d-snapshot.txt", ordinal))
		if err := os.WriteFile(path, []byte(entry.Capture.SnapshotAfter), 0o644); err != nil {
			r.sink(err)
		}
	}

	data, err := json.MarshalIndent(entry.Capture, "", "  ")
	if err != nil {
		r.sink(err)
		return
	}
	path := filepath.Join(r.dir, fmt.Sprintf("%03d-capture.json", ordinal))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		r.sink(err)
	}
}

// transcriptLine renders the compact summary line for one entry.
func (r *Recorder) transcriptLine(ordinal int, entry *Entry) string {
	switch entry.Kind {
	case EntryToolCall:
		return fmt.Sprintf("- [%03d] tool `%s`: %s\n", ordinal, entry.Tool, firstLine(entry.Result))
	case EntryUserAction:
		var b strings.Builder
		fmt.Fprintf(&b, "- [%03d] %s", ordinal, entry.Title)
		if c := entry.Capture; c != nil {
			fmt.Fprintf(&b, " (%dms)", c.Timing.DurationMs)
			if c.Error != nil {
				fmt.Fprintf(&b, " - error: %s", firstLine(c.Error.Message))
			} else if c.Diff != nil && c.Diff.Summary != trace.NoChanges {
				fmt.Fprintf(&b, " - %s", c.Diff.Summary)
			}
		}
		b.WriteString("\n")
		if entry.Code != "" {
			fmt.Fprintf(&b, "  ```js\n  %s\n  ```\n", strings.ReplaceAll(entry.Code, "\n", "\n  "))
		}
		return b.String()
	default:
		return fmt.Sprintf("- [%03d] %s\n", ordinal, entry.Kind)
	}
}

func (r *Recorder) writeMeta(meta Meta) {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		r.sink(err)
		return
	}
	if err := os.WriteFile(filepath.Join(r.dir, "meta.json"), data, 0o644); err != nil {
		r.sink(err)
	}
}

// Close flushes anything pending and stops the timer.
func (r *Recorder) Close() {
	r.debounce.Immediate(func() { r.Flush() })
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
