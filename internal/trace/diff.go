package trace

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// NoChanges is the exact summary emitted when two snapshots are
// structurally identical. Renderers pattern-match on this string to
// suppress the page-changes section.
const NoChanges = "no changes"

// SnapshotDiff is the structural comparison of two accessibility-tree
// dumps, keyed by the per-element [ref=...] token.
type SnapshotDiff struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Changed []string `json:"changed,omitempty"`
	Summary string   `json:"summary"`
}

// Empty reports whether the diff carries no additions, removals, or changes.
func (d *SnapshotDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// axElement is one parsed snapshot line: role, optional accessible name,
// and free-text content after the ref token.
type axElement struct {
	role    string
	name    string
	content string
}

func (e axElement) format(ref string) string {
	if e.name != "" {
		return fmt.Sprintf("%s %q [ref=%s]", e.role, e.name, ref)
	}
	return fmt.Sprintf("%s [ref=%s]", e.role, ref)
}

var (
	refToken = regexp.MustCompile(`\[ref=([^\]]+)\]`)
	// role, then an optional quoted accessible name, at the end of the
	// text preceding the ref token.
	roleName = regexp.MustCompile(`([A-Za-z][\w-]*)(?:\s+"([^"]*)")?\s*$`)
)

// parseSnapshot extracts ref → element from a textual accessibility
// snapshot. Lines without a ref token or a parseable role are skipped;
// partial parses are expected, not errors.
func parseSnapshot(text string) map[string]axElement {
	elements := make(map[string]axElement)
	for _, line := range strings.Split(text, "\n") {
		loc := refToken.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		ref := line[loc[2]:loc[3]]

		prefix := strings.TrimSpace(strings.TrimLeft(line[:loc[0]], " \t-*"))
		m := roleName.FindStringSubmatch(prefix)
		if m == nil {
			continue
		}

		content := ""
		rest := strings.TrimSpace(line[loc[1]:])
		if strings.HasPrefix(rest, ":") {
			content = strings.TrimSpace(rest[1:])
		}

		elements[ref] = axElement{role: m[1], name: m[2], content: content}
	}
	return elements
}

// DiffSnapshots compares two accessibility snapshots by ref id. An id
// present only in after is added, only in before is removed, and in both
// with a differing name or content is changed. Malformed input never
// fails; the worst case is an empty diff.
func DiffSnapshots(before, after string) SnapshotDiff {
	prev := parseSnapshot(before)
	next := parseSnapshot(after)

	var diff SnapshotDiff
	for _, ref := range sortedRefs(next) {
		el := next[ref]
		old, ok := prev[ref]
		switch {
		case !ok:
			diff.Added = append(diff.Added, el.format(ref))
		case old.name != el.name || old.content != el.content:
			diff.Changed = append(diff.Changed, el.format(ref))
		}
	}
	for _, ref := range sortedRefs(prev) {
		if _, ok := next[ref]; !ok {
			diff.Removed = append(diff.Removed, prev[ref].format(ref))
		}
	}

	diff.Summary = summarize(&diff)
	return diff
}

func sortedRefs(m map[string]axElement) []string {
	refs := make([]string, 0, len(m))
	for ref := range m {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// summarize joins nonzero counts in the fixed order added, removed,
// changed, or returns the NoChanges literal.
func summarize(d *SnapshotDiff) string {
	var parts []string
	if n := len(d.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(d.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if n := len(d.Changed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", n))
	}
	if len(parts) == 0 {
		return NoChanges
	}
	return strings.Join(parts, ", ")
}
