// Package trace implements the action capture engine: it decides when a
// browser action's side effects have settled, collects the network and
// console traffic the action triggered, diffs the page's accessibility
// tree before and after, and assembles everything into one immutable
// ActionCapture record per action.
package trace

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// NetworkRequest is one observed HTTP request inside an action window.
// Status is nil until the matching response or failure arrives; a nil
// status in a finalized capture means the action returned before the
// request resolved.
type NetworkRequest struct {
	ID           string            `json:"id"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	ResourceType string            `json:"resource_type,omitempty"`
	Status       *int              `json:"status"`
	Failure      string            `json:"failure,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      time.Time         `json:"ended_at,omitempty"`
	DurationMs   int64             `json:"duration_ms"`
	PostData     string            `json:"post_data,omitempty"`
	RespHeaders  map[string]string `json:"response_headers,omitempty"`
	RespBody     string            `json:"response_body,omitempty"`
}

// Resolved reports whether the request has received a response or failed.
func (r *NetworkRequest) Resolved() bool {
	return r.Status != nil || r.Failure != ""
}

// statusLabel renders the status column of a summary line.
func (r *NetworkRequest) statusLabel() string {
	if r.Status == nil {
		return "pending"
	}
	return fmt.Sprintf("%d", *r.Status)
}

// urlPath strips host and query so summaries stay short. Unparseable
// URLs are kept verbatim.
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		if err != nil {
			return raw
		}
		return "/"
	}
	return u.Path
}

// NetworkSummary renders one line per request as "METHOD path (status)",
// using only the URL path component. Empty input yields an empty string.
func NetworkSummary(requests []NetworkRequest) string {
	if len(requests) == 0 {
		return ""
	}
	lines := make([]string, 0, len(requests))
	for i := range requests {
		r := &requests[i]
		lines = append(lines, fmt.Sprintf("%s %s (%s)", r.Method, urlPath(r.URL), r.statusLabel()))
	}
	return strings.Join(lines, "\n")
}
