// Package llm defines the model service consumed by the research loops.
// Concrete providers live elsewhere (see internal/api); loops only depend on
// the Model interface so they can be driven by scripted models in tests.
package llm

import (
	"context"
	"errors"

	"github.com/ShayCichocki/sillysearch/pkg/models"
)

// ErrNoStructuredOutput is returned when a structured completion produced no
// decodable payload.
var ErrNoStructuredOutput = errors.New("model returned no structured output")

// ToolSpec describes a tool the model may call. Parameters holds JSON schema
// property definitions keyed by parameter name.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
	Required    []string
}

// Request is a single completion request.
type Request struct {
	// System is the system prompt. System-role messages in Messages are
	// folded into it by providers that keep instructions out of band.
	System string
	// Messages is the conversation so far.
	Messages []models.Message
	// Tools are bound for tool-calling completions; empty means plain text.
	Tools []ToolSpec
	// MaxTokens overrides the provider default when positive.
	MaxTokens int
}

// StructuredRequest asks for a JSON object matching Schema.
type StructuredRequest struct {
	System   string
	Messages []models.Message
	// Schema describes the expected object; its Name identifies the schema.
	Schema ToolSpec
}

// Usage reports tokens consumed by one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Response is the assistant message produced by a completion.
type Response struct {
	Message models.Message
	Usage   Usage
}

// Model is the language model service. Implementations must be safe for
// concurrent use because researchers run in parallel.
type Model interface {
	// Complete runs a plain or tool-calling completion.
	Complete(ctx context.Context, req Request) (*Response, error)
	// Structured runs a completion constrained to req.Schema and decodes the
	// resulting object into out.
	Structured(ctx context.Context, req StructuredRequest, out any) error
}
