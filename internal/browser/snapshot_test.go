package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"

	"webtrace/internal/trace"
)

func axValue(s string) *proto.AccessibilityAXValue {
	return &proto.AccessibilityAXValue{Value: gson.New(s)}
}

func axNode(id string, role, name string, backendID int, children ...string) *proto.AccessibilityAXNode {
	n := &proto.AccessibilityAXNode{
		NodeID:           proto.AccessibilityAXNodeID(id),
		Role:             axValue(role),
		BackendDOMNodeID: proto.DOMBackendNodeID(backendID),
	}
	if name != "" {
		n.Name = axValue(name)
	}
	for _, c := range children {
		n.ChildIDs = append(n.ChildIDs, proto.AccessibilityAXNodeID(c))
	}
	return n
}

func TestFormatAXTree_Empty(t *testing.T) {
	assert.Equal(t, "", formatAXTree(nil))
}

func TestFormatAXTree_IndentAndRefs(t *testing.T) {
	nodes := []*proto.AccessibilityAXNode{
		axNode("1", "RootWebArea", "Login", 1, "2", "3"),
		axNode("2", "button", "Sign in", 12),
		axNode("3", "textbox", "Email", 13),
	}

	got := formatAXTree(nodes)
	want := "- RootWebArea \"Login\" [ref=e1]\n" +
		"  - button \"Sign in\" [ref=e12]\n" +
		"  - textbox \"Email\" [ref=e13]"
	assert.Equal(t, want, got)
}

func TestFormatAXTree_SkipsWrapperRolesWithoutLosingChildren(t *testing.T) {
	nodes := []*proto.AccessibilityAXNode{
		axNode("1", "RootWebArea", "", 1, "2"),
		axNode("2", "generic", "", 20, "3"),
		axNode("3", "link", "Home", 30),
	}

	got := formatAXTree(nodes)
	assert.NotContains(t, got, "generic")
	// The link stays at the wrapper's depth, not one deeper.
	assert.Contains(t, got, "\n  - link \"Home\" [ref=e30]")
}

func TestFormatAXTree_IgnoredNodesDropped(t *testing.T) {
	hidden := axNode("2", "button", "Invisible", 21)
	hidden.Ignored = true
	nodes := []*proto.AccessibilityAXNode{
		axNode("1", "RootWebArea", "", 1, "2", "3"),
		hidden,
		axNode("3", "button", "Visible", 22),
	}

	got := formatAXTree(nodes)
	assert.NotContains(t, got, "Invisible")
	assert.Contains(t, got, "Visible")
}

func TestFormatAXTree_ValueRendered(t *testing.T) {
	field := axNode("2", "textbox", "Email", 40)
	field.Value = axValue("user@site.test")
	nodes := []*proto.AccessibilityAXNode{
		axNode("1", "RootWebArea", "", 1, "2"),
		field,
	}

	got := formatAXTree(nodes)
	assert.Contains(t, got, `- textbox "Email" [ref=e40]: user@site.test`)
}

// Backend DOM ids survive across snapshots of the same document, so
// two renders of the same tree diff to nothing.
func TestFormatAXTree_StableAcrossRenders(t *testing.T) {
	nodes := []*proto.AccessibilityAXNode{
		axNode("1", "RootWebArea", "App", 1, "2"),
		axNode("2", "button", "Save", 50),
	}

	first := formatAXTree(nodes)
	second := formatAXTree(nodes)
	require.Equal(t, first, second)

	diff := trace.DiffSnapshots(first, second)
	assert.Equal(t, trace.NoChanges, diff.Summary)
}
