package main

import (
	"fmt"
	"strings"

	"webtrace/internal/trace"
)

// parseActionSpec turns one CLI action argument into an action.
// Accepted forms:
//
//	click:#selector
//	type:#selector=text
//	select:#selector=value1,value2
//	press:Enter
//	hover:#selector
//	navigate:https://example.com
func parseActionSpec(spec string) (trace.Action, error) {
	kind, rest, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, fmt.Errorf("malformed action %q (want kind:argument)", spec)
	}
	switch kind {
	case "navigate":
		if rest == "" {
			return nil, fmt.Errorf("navigate needs a URL")
		}
		return trace.NavigateAction{URL: rest}, nil
	case "click":
		if rest == "" {
			return nil, fmt.Errorf("click needs a selector")
		}
		return trace.ClickAction{Selector: rest}, nil
	case "type":
		sel, text, ok := strings.Cut(rest, "=")
		if !ok || sel == "" {
			return nil, fmt.Errorf("type needs selector=text")
		}
		return trace.TypeAction{Selector: sel, Text: text}, nil
	case "select":
		sel, vals, ok := strings.Cut(rest, "=")
		if !ok || sel == "" || vals == "" {
			return nil, fmt.Errorf("select needs selector=value[,value]")
		}
		return trace.SelectAction{Selector: sel, Values: strings.Split(vals, ",")}, nil
	case "press", "press_key":
		if rest == "" {
			return nil, fmt.Errorf("press needs a key")
		}
		return trace.PressKeyAction{Key: rest}, nil
	case "hover":
		if rest == "" {
			return nil, fmt.Errorf("hover needs a selector")
		}
		return trace.HoverAction{Selector: rest}, nil
	default:
		return nil, fmt.Errorf("unknown action kind %q", kind)
	}
}

func parseActionSpecs(specs []string) ([]trace.Action, error) {
	actions := make([]trace.Action, 0, len(specs))
	for _, s := range specs {
		a, err := parseActionSpec(s)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}
