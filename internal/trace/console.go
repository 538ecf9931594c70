package trace

import (
	"sync"
	"time"
)

// ConsoleMessage is one console line or uncaught page error.
type ConsoleMessage struct {
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	Line      int       `json:"line,omitempty"`
	Column    int       `json:"column,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// defaultConsoleCap bounds the rolling buffer; oldest entries are
// evicted first, matching the page-level collector's FIFO discipline.
const defaultConsoleCap = 1000

// Mark is an opaque checkpoint into a ConsoleCollector. Marks taken
// before evicted entries clamp to the oldest retained message.
type Mark struct {
	position int64
}

// ConsoleCollector is the page-level rolling console buffer. Action
// boundaries are expressed as explicit checkpoints: each action takes a
// Mark before it starts and drains everything after it with TakeSince,
// so no message is ever attributed to two actions.
type ConsoleCollector struct {
	mu       sync.Mutex
	messages []ConsoleMessage
	base     int64 // position of messages[0]
	capacity int
}

// NewConsoleCollector creates a collector with the given capacity;
// capacity <= 0 selects the default.
func NewConsoleCollector(capacity int) *ConsoleCollector {
	if capacity <= 0 {
		capacity = defaultConsoleCap
	}
	return &ConsoleCollector{capacity: capacity}
}

// Append adds one message, evicting the oldest when at capacity.
func (c *ConsoleCollector) Append(msg ConsoleMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) >= c.capacity {
		drop := len(c.messages) - c.capacity + 1
		c.messages = append(c.messages[:0:0], c.messages[drop:]...)
		c.base += int64(drop)
	}
	c.messages = append(c.messages, msg)
}

// Checkpoint returns a mark at the current end of the buffer.
func (c *ConsoleCollector) Checkpoint() Mark {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Mark{position: c.base + int64(len(c.messages))}
}

// TakeSince returns a copy of every message appended after mark.
func (c *ConsoleCollector) TakeSince(mark Mark) []ConsoleMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	offset := mark.position - c.base
	if offset < 0 {
		offset = 0 // mark predates retained window
	}
	if offset >= int64(len(c.messages)) {
		return nil
	}
	out := make([]ConsoleMessage, len(c.messages)-int(offset))
	copy(out, c.messages[offset:])
	return out
}

// Len returns the number of retained messages.
func (c *ConsoleCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
