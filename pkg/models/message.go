// Package models contains the shared data types exchanged between the
// supervisor, the researchers and the model/search collaborators.
package models

import "strings"

// Role identifies who produced a message.
type Role string

const (
	// RoleUser is input from the person asking for research.
	RoleUser Role = "user"
	// RoleAssistant is output produced by the model.
	RoleAssistant Role = "assistant"
	// RoleSystem carries instructions for the model.
	RoleSystem Role = "system"
	// RoleTool carries the result of a tool call back to the model.
	RoleTool Role = "tool"
)

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return true
	default:
		return false
	}
}

// Message is a single entry of a conversation. Messages are treated as
// immutable once they have been appended to a log.
type Message struct {
	// Role is the author of the message.
	Role Role `json:"role" yaml:"role"`
	// Content is the text of the message.
	Content string `json:"content" yaml:"content"`
	// ToolCalls are the tool invocations requested by an assistant message.
	ToolCalls []ToolCall `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	// ToolCallID is set on tool messages and names the call being answered.
	ToolCallID string `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
	// Name is the tool name on tool messages.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// UserMessage builds a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// SystemMessage builds a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// AssistantMessage builds an assistant message with optional tool calls.
func AssistantMessage(content string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// HasToolCalls reports whether the message requests any tool invocations.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// IsTool reports whether the message is a tool result.
func (m Message) IsTool() bool {
	return m.Role == RoleTool
}

// BufferString renders messages as "Role: content" lines, the format used
// when a whole conversation has to be embedded into a single prompt.
func BufferString(msgs []Message) string {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch m.Role {
		case RoleUser:
			sb.WriteString("Human: ")
		case RoleAssistant:
			sb.WriteString("AI: ")
		case RoleSystem:
			sb.WriteString("System: ")
		case RoleTool:
			sb.WriteString("Tool: ")
		}
		sb.WriteString(m.Content)
	}
	return sb.String()
}
