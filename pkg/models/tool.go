package models

import (
	"fmt"
	"strconv"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// ID is unique within the response that produced the call.
	ID string `json:"id" yaml:"id"`
	// Name is the tool being invoked.
	Name string `json:"name" yaml:"name"`
	// Args maps parameter names to decoded JSON values.
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// String returns the argument as a string, or "" when absent or of another type.
func (c ToolCall) String(key string) string {
	v, _ := c.Args[key].(string)
	return v
}

// Strings returns the argument as a string slice. A single string is
// promoted to a one-element slice.
func (c ToolCall) Strings(key string) []string {
	switch v := c.Args[key].(type) {
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Int returns the argument as an int. JSON numbers decode as float64 and
// numeric strings are accepted too.
func (c ToolCall) Int(key string) (int, bool) {
	switch v := c.Args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// ToolResult answers exactly one ToolCall.
type ToolResult struct {
	// ToolCallID is the ID of the call being answered.
	ToolCallID string `json:"tool_call_id"`
	// Name is the tool name of the call being answered.
	Name string `json:"name"`
	// Content is the text handed back to the model.
	Content string `json:"content"`
	// IsError marks results produced from a failure or a refused call.
	IsError bool `json:"is_error,omitempty"`
}

// ResultFor builds a successful result for call.
func ResultFor(call ToolCall, content string) ToolResult {
	return ToolResult{ToolCallID: call.ID, Name: call.Name, Content: content}
}

// ErrorResultFor builds an error result for call.
func ErrorResultFor(call ToolCall, content string) ToolResult {
	return ToolResult{ToolCallID: call.ID, Name: call.Name, Content: content, IsError: true}
}

// Message converts the result into the tool-role message appended to a log.
func (r ToolResult) Message() Message {
	return Message{
		Role:       RoleTool,
		Content:    r.Content,
		ToolCallID: r.ToolCallID,
		Name:       r.Name,
	}
}

// String implements fmt.Stringer for logging.
func (r ToolResult) String() string {
	return fmt.Sprintf("%s(%s) error=%t", r.Name, r.ToolCallID, r.IsError)
}
