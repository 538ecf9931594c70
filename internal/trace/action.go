package trace

import (
	"fmt"
	"strings"
)

// ActionKind identifies one discrete user-simulated browser interaction.
type ActionKind string

const (
	KindNavigate ActionKind = "navigate"
	KindClick    ActionKind = "click"
	KindType     ActionKind = "type"
	KindSelect   ActionKind = "select"
	KindPressKey ActionKind = "press_key"
	KindHover    ActionKind = "hover"
)

// Action is the closed set of action parameter variants. Renderers match
// on Kind exhaustively instead of probing loosely-typed parameter blobs.
type Action interface {
	Kind() ActionKind
	// Title is the short human label used in log headers.
	Title() string
}

// NavigateAction loads a URL in the tracked page.
type NavigateAction struct {
	URL string `json:"url"`
}

func (a NavigateAction) Kind() ActionKind { return KindNavigate }
func (a NavigateAction) Title() string    { return fmt.Sprintf("Navigate to %s", a.URL) }

// ClickAction clicks the element matched by Selector.
type ClickAction struct {
	Selector string `json:"selector"`
}

func (a ClickAction) Kind() ActionKind { return KindClick }
func (a ClickAction) Title() string    { return fmt.Sprintf("Click %s", a.Selector) }

// TypeAction types Text into the element matched by Selector.
type TypeAction struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

func (a TypeAction) Kind() ActionKind { return KindType }
func (a TypeAction) Title() string    { return fmt.Sprintf("Type %q into %s", a.Text, a.Selector) }

// SelectAction selects option values in the element matched by Selector.
type SelectAction struct {
	Selector string   `json:"selector"`
	Values   []string `json:"values"`
}

func (a SelectAction) Kind() ActionKind { return KindSelect }
func (a SelectAction) Title() string {
	return fmt.Sprintf("Select %s in %s", strings.Join(a.Values, ", "), a.Selector)
}

// PressKeyAction presses a single key on the focused element.
type PressKeyAction struct {
	Key string `json:"key"`
}

func (a PressKeyAction) Kind() ActionKind { return KindPressKey }
func (a PressKeyAction) Title() string    { return fmt.Sprintf("Press %s", a.Key) }

// HoverAction hovers the element matched by Selector.
type HoverAction struct {
	Selector string `json:"selector"`
}

func (a HoverAction) Kind() ActionKind { return KindHover }
func (a HoverAction) Title() string    { return fmt.Sprintf("Hover %s", a.Selector) }
