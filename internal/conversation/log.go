// Package conversation provides the append-only message log owned by a
// single supervisor or researcher loop.
package conversation

import (
	"iter"

	"github.com/ShayCichocki/sillysearch/pkg/models"
)

// Log is an append-only, causally ordered message history. A Log belongs to
// exactly one loop and is not safe for concurrent mutation.
type Log struct {
	entries []models.Message
}

// New creates a log seeded with msgs, in order.
func New(msgs ...models.Message) *Log {
	l := &Log{}
	for _, m := range msgs {
		l.Append(m)
	}
	return l
}

// Append adds msg to the end of the log. It is the only mutator. Tool calls
// are copied so later edits by the caller cannot rewrite history.
func (l *Log) Append(msg models.Message) {
	if len(msg.ToolCalls) > 0 {
		calls := make([]models.ToolCall, len(msg.ToolCalls))
		copy(calls, msg.ToolCalls)
		msg.ToolCalls = calls
	}
	l.entries = append(l.entries, msg)
}

// AppendResults appends one tool message per result, preserving order.
func (l *Log) AppendResults(results []models.ToolResult) {
	for _, r := range results {
		l.Append(r.Message())
	}
}

// Tail returns the most recent message and false when the log is empty.
func (l *Log) Tail() (models.Message, bool) {
	if len(l.entries) == 0 {
		return models.Message{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Messages returns a copy of every entry.
func (l *Log) Messages() []models.Message {
	out := make([]models.Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Filter returns a lazy sequence over the entries matching pred. The
// sequence is bounded by the log length at the time iteration starts and can
// be ranged over any number of times.
func (l *Log) Filter(pred func(models.Message) bool) iter.Seq[models.Message] {
	return func(yield func(models.Message) bool) {
		n := len(l.entries)
		for i := 0; i < n; i++ {
			m := l.entries[i]
			if pred != nil && !pred(m) {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

// ToolContents returns the content of every tool-role entry, in order.
func (l *Log) ToolContents() []string {
	var out []string
	for m := range l.Filter(models.Message.IsTool) {
		out = append(out, m.Content)
	}
	return out
}

// WithoutSystem returns the entries that are not system messages.
func (l *Log) WithoutSystem() []models.Message {
	var out []models.Message
	for m := range l.Filter(func(m models.Message) bool { return m.Role != models.RoleSystem }) {
		out = append(out, m)
	}
	return out
}
