package trace

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCapture() *ActionCapture {
	outcome := &TrackOutcome{
		Start:    time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Duration: 238 * time.Millisecond,
		Requests: []NetworkRequest{
			{Method: "POST", URL: "https://api.test/v1/login", Status: intPtr(200)},
		},
	}
	before := `- button "Login" [ref=e3]`
	after := `- button "Logout" [ref=e3]`
	console := []ConsoleMessage{{Type: "error", Text: "Uncaught TypeError: x is not a function"}}
	return BuildCapture(ClickAction{Selector: "#login"}, before, outcome, nil, after, console)
}

func TestBuildCapture_TimingInvariant(t *testing.T) {
	c := sampleCapture()
	assert.Equal(t, int64(238), c.Timing.DurationMs)
	assert.Equal(t, c.Timing.End.Sub(c.Timing.Start), 238*time.Millisecond)
	assert.GreaterOrEqual(t, c.Timing.DurationMs, int64(0))
}

func TestBuildCapture_DiffOnlyWithBothSnapshots(t *testing.T) {
	outcome := &TrackOutcome{Start: time.Now()}

	c := BuildCapture(ClickAction{Selector: "#x"}, "", outcome, nil, `- button "A" [ref=e1]`, nil)
	assert.Nil(t, c.Diff, "missing before-snapshot must omit the diff")

	c = BuildCapture(ClickAction{Selector: "#x"}, `- button "A" [ref=e1]`, outcome, nil, "", nil)
	assert.Nil(t, c.Diff, "missing after-snapshot must omit the diff")

	c = BuildCapture(ClickAction{Selector: "#x"}, `- button "A" [ref=e1]`, outcome, nil, `- button "A" [ref=e1]`, nil)
	require.NotNil(t, c.Diff)
	assert.Equal(t, NoChanges, c.Diff.Summary)
}

func TestRenderMarkdown_SectionOrder(t *testing.T) {
	c := sampleCapture()
	c.Error = &CaptureError{Message: "late failure", Stack: "at handler (app.js:10)"}
	out := RenderMarkdown(c)

	duration := strings.Index(out, "### Click #login (238ms)")
	network := strings.Index(out, "**Network:**")
	changes := strings.Index(out, "**Page Changes:** 1 changed")
	console := strings.Index(out, "**Console:**")
	errBlock := strings.Index(out, "**Error:**")

	require.GreaterOrEqual(t, duration, 0)
	assert.True(t, duration < network, "network follows the duration header")
	assert.True(t, network < changes, "page changes follow network")
	assert.True(t, changes < console, "console follows page changes")
	assert.True(t, console < errBlock, "error block is last")
	assert.Contains(t, out, "POST /v1/login (200)")
	assert.Contains(t, out, "at handler (app.js:10)")
}

func TestRenderMarkdown_OmitsEmptySections(t *testing.T) {
	outcome := &TrackOutcome{Start: time.Now(), Duration: 5 * time.Millisecond}
	snap := `- button "A" [ref=e1]`
	c := BuildCapture(HoverAction{Selector: ".menu"}, snap, outcome, nil, snap, nil)

	out := RenderMarkdown(c)
	assert.NotContains(t, out, "**Network:**")
	assert.NotContains(t, out, "**Page Changes:**", "a no-changes diff renders no section")
	assert.NotContains(t, out, "**Console:**")
	assert.NotContains(t, out, "**Error:**")
}

func TestRenderMarkdown_Idempotent(t *testing.T) {
	c := sampleCapture()
	assert.Equal(t, RenderMarkdown(c), RenderMarkdown(c))
}

func TestRenderTerminal_ErrorGlyph(t *testing.T) {
	c := sampleCapture()
	okOut := RenderTerminal(c)
	assert.Contains(t, okOut, "Click #login")

	c.Error = &CaptureError{Message: "element not found"}
	errOut := RenderTerminal(c)
	assert.Contains(t, errOut, "✗")
	assert.Contains(t, errOut, "element not found")
}

func TestRenderAIReport_CarriesSnapshotAndTimeoutNote(t *testing.T) {
	c := sampleCapture()
	c.TimedOut = true
	out := RenderAIReport(c)

	assert.Contains(t, out, "Action: Click #login")
	assert.Contains(t, out, "Duration: 238ms")
	assert.Contains(t, out, "timeout")
	assert.Contains(t, out, "Page snapshot:")
	assert.Contains(t, out, `button "Logout" [ref=e3]`)
}
