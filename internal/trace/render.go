package trace

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderMarkdown produces the session-log form of a capture. The section
// order (duration header, network, page changes, console, error) is
// fixed and part of the contract: downstream consumers parse it.
// Rendering is a pure function of the immutable record.
func RenderMarkdown(c *ActionCapture) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### %s (%dms)\n", c.Title, c.Timing.DurationMs)

	if len(c.Requests) > 0 {
		b.WriteString("\n**Network:**\n```\n")
		b.WriteString(NetworkSummary(c.Requests))
		b.WriteString("\n```\n")
	}

	if c.Diff != nil && c.Diff.Summary != NoChanges {
		fmt.Fprintf(&b, "\n**Page Changes:** %s\n", c.Diff.Summary)
		writeDiffList(&b, "added", c.Diff.Added)
		writeDiffList(&b, "removed", c.Diff.Removed)
		writeDiffList(&b, "changed", c.Diff.Changed)
	}

	if len(c.Console) > 0 {
		b.WriteString("\n**Console:**\n")
		for _, msg := range c.Console {
			fmt.Fprintf(&b, "- [%s] %s\n", msg.Type, msg.Text)
		}
	}

	if c.Error != nil {
		b.WriteString("\n**Error:**\n```\n")
		b.WriteString(c.Error.Message)
		if c.Error.Stack != "" {
			b.WriteString("\n")
			b.WriteString(c.Error.Stack)
		}
		b.WriteString("\n```\n")
	}

	return b.String()
}

func writeDiffList(b *strings.Builder, label string, entries []string) {
	for _, e := range entries {
		fmt.Fprintf(b, "- %s: %s\n", label, e)
	}
}

var (
	okGlyph   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Render("●")
	errGlyph  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render("✗")
	dimStyle  = lipgloss.NewStyle().Faint(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// RenderTerminal produces the live-display form: one headline with a
// status glyph, then indented network, change, console, and error lines.
func RenderTerminal(c *ActionCapture) string {
	var b strings.Builder

	glyph := okGlyph
	if c.Error != nil {
		glyph = errGlyph
	}
	fmt.Fprintf(&b, "%s %s %s\n", glyph, c.Title, dimStyle.Render(fmt.Sprintf("(%dms)", c.Timing.DurationMs)))

	if summary := NetworkSummary(c.Requests); summary != "" {
		for _, line := range strings.Split(summary, "\n") {
			fmt.Fprintf(&b, "  %s\n", dimStyle.Render(line))
		}
	}

	if c.Diff != nil && c.Diff.Summary != NoChanges {
		fmt.Fprintf(&b, "  %s\n", c.Diff.Summary)
	}

	for _, msg := range c.Console {
		style := dimStyle
		switch msg.Type {
		case "error":
			style = errStyle
		case "warning":
			style = warnStyle
		}
		fmt.Fprintf(&b, "  %s\n", style.Render(fmt.Sprintf("[%s] %s", msg.Type, msg.Text)))
	}

	if c.Error != nil {
		fmt.Fprintf(&b, "  %s\n", errStyle.Render(c.Error.Message))
	}

	return b.String()
}

// RenderAIReport produces the plain-text debugging report handed to an
// LLM: everything the markdown form carries plus the raw after-snapshot,
// without any markup the model would have to skip over.
func RenderAIReport(c *ActionCapture) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Action: %s\n", c.Title)
	fmt.Fprintf(&b, "Duration: %dms\n", c.Timing.DurationMs)
	if c.TimedOut {
		b.WriteString("Note: network tracking hit its timeout; the request list may be incomplete\n")
	}

	if summary := NetworkSummary(c.Requests); summary != "" {
		b.WriteString("Network requests:\n")
		for _, line := range strings.Split(summary, "\n") {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}

	if c.Diff != nil {
		fmt.Fprintf(&b, "Page changes: %s\n", c.Diff.Summary)
		for _, e := range c.Diff.Added {
			fmt.Fprintf(&b, "  added: %s\n", e)
		}
		for _, e := range c.Diff.Removed {
			fmt.Fprintf(&b, "  removed: %s\n", e)
		}
		for _, e := range c.Diff.Changed {
			fmt.Fprintf(&b, "  changed: %s\n", e)
		}
	}

	if len(c.Console) > 0 {
		b.WriteString("Console:\n")
		for _, msg := range c.Console {
			fmt.Fprintf(&b, "  [%s] %s\n", msg.Type, msg.Text)
		}
	}

	if c.Error != nil {
		fmt.Fprintf(&b, "Error: %s\n", c.Error.Message)
		if c.Error.Stack != "" {
			b.WriteString(c.Error.Stack)
			b.WriteString("\n")
		}
	}

	if c.SnapshotAfter != "" {
		b.WriteString("Page snapshot:\n")
		b.WriteString(c.SnapshotAfter)
		if !strings.HasSuffix(c.SnapshotAfter, "\n") {
			b.WriteString("\n")
		}
	}

	return b.String()
}
