package browser

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// axRoleSkip lists roles that carry no information for a text
// snapshot. Their children are still walked.
var axRoleSkip = map[string]bool{
	"":                 true,
	"none":             true,
	"generic":          true,
	"GenericContainer": true,
	"InlineTextBox":    true,
	"LineBreak":        true,
}

// formatAXTree renders a full accessibility tree as indented lines of
// the form `- role "name" [ref=eN]: value`. Refs come from the node's
// backend DOM id, which Chrome keeps stable for the life of the
// document, so the same element carries the same ref across snapshots.
func formatAXTree(nodes []*proto.AccessibilityAXNode) string {
	if len(nodes) == 0 {
		return ""
	}
	byID := make(map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode, len(nodes))
	for _, n := range nodes {
		byID[n.NodeID] = n
	}

	// The root is the node nothing points at.
	childOf := make(map[proto.AccessibilityAXNodeID]bool)
	for _, n := range nodes {
		for _, c := range n.ChildIDs {
			childOf[c] = true
		}
	}
	var root *proto.AccessibilityAXNode
	for _, n := range nodes {
		if !childOf[n.NodeID] {
			root = n
			break
		}
	}
	if root == nil {
		root = nodes[0]
	}

	var b strings.Builder
	writeAXNode(&b, byID, root, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeAXNode(b *strings.Builder, byID map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode, n *proto.AccessibilityAXNode, depth int) {
	childDepth := depth
	if !n.Ignored {
		role := axValueStr(n.Role)
		if !axRoleSkip[role] {
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString("- ")
			b.WriteString(role)
			if name := axValueStr(n.Name); name != "" {
				fmt.Fprintf(b, " %q", name)
			}
			if n.BackendDOMNodeID != 0 {
				fmt.Fprintf(b, " [ref=e%d]", n.BackendDOMNodeID)
			}
			if value := axValueStr(n.Value); value != "" {
				b.WriteString(": ")
				b.WriteString(value)
			}
			b.WriteString("\n")
			childDepth = depth + 1
		}
	}
	for _, id := range n.ChildIDs {
		child, ok := byID[id]
		if !ok {
			continue
		}
		writeAXNode(b, byID, child, childDepth)
	}
}

func axValueStr(v *proto.AccessibilityAXValue) string {
	if v == nil {
		return ""
	}
	return v.Value.Str()
}
