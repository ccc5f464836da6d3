package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/ShayCichocki/sillysearch/internal/llm"
	"github.com/ShayCichocki/sillysearch/internal/metrics"
	"github.com/ShayCichocki/sillysearch/pkg/models"
)

// Model call kinds used in metrics.
const (
	callComplete   = "complete"
	callStructured = "structured"
)

var _ llm.Model = (*Client)(nil)

// Complete implements llm.Model.
func (c *Client) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	params := c.newParams(req.System, req.Messages, req.MaxTokens)
	if len(req.Tools) > 0 {
		params.Tools = toolParams(req.Tools)
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		metrics.ModelCalls.WithLabelValues(callComplete, "error").Inc()
		return nil, fmt.Errorf("API call failed: %w", err)
	}
	metrics.ModelCalls.WithLabelValues(callComplete, "ok").Inc()
	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	msg, err := fromContent(resp.Content)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("completion",
		zap.Int("tool_calls", len(msg.ToolCalls)),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens))

	return &llm.Response{
		Message: msg,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// Structured implements llm.Model by forcing a call to a single tool whose
// input schema is the requested object.
func (c *Client) Structured(ctx context.Context, req llm.StructuredRequest, out any) error {
	params := c.newParams(req.System, req.Messages, 0)
	params.Tools = toolParams([]llm.ToolSpec{req.Schema})
	params.ToolChoice = anthropic.ToolChoiceUnionParam{
		OfTool: &anthropic.ToolChoiceToolParam{Name: req.Schema.Name},
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		metrics.ModelCalls.WithLabelValues(callStructured, "error").Inc()
		return fmt.Errorf("API call failed: %w", err)
	}
	c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	for _, block := range resp.Content {
		variant, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok || variant.Name != req.Schema.Name {
			continue
		}
		if err := json.Unmarshal(variant.Input, out); err != nil {
			metrics.ModelCalls.WithLabelValues(callStructured, "error").Inc()
			return fmt.Errorf("decode %s: %w", req.Schema.Name, err)
		}
		metrics.ModelCalls.WithLabelValues(callStructured, "ok").Inc()
		return nil
	}
	metrics.ModelCalls.WithLabelValues(callStructured, "error").Inc()
	return fmt.Errorf("%s: %w", req.Schema.Name, llm.ErrNoStructuredOutput)
}

func (c *Client) newParams(system string, msgs []models.Message, maxTokens int) anthropic.MessageNewParams {
	sys, converted := toMessageParams(system, msgs)
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  converted,
	}
	if maxTokens > 0 {
		params.MaxTokens = int64(maxTokens)
	}
	if sys != "" {
		params.System = []anthropic.TextBlockParam{{Text: sys}}
	}
	return params
}

func toolParams(specs []llm.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		props := s.Parameters
		if props == nil {
			props = map[string]any{}
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        s.Name,
				Description: anthropic.String(s.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   s.Required,
				},
			},
		})
	}
	return out
}

// toMessageParams converts a conversation into Anthropic message params.
// System messages are folded into the system prompt. Consecutive user and
// tool messages share a single user turn, as tool results must directly
// follow the assistant turn that requested them.
func toMessageParams(system string, msgs []models.Message) (string, []anthropic.MessageParam) {
	var sys []string
	if system != "" {
		sys = append(sys, system)
	}

	var out []anthropic.MessageParam
	var pending []anthropic.ContentBlockParamUnion
	flush := func() {
		if len(pending) > 0 {
			out = append(out, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, m := range msgs {
		switch m.Role {
		case models.RoleSystem:
			if m.Content != "" {
				sys = append(sys, m.Content)
			}
		case models.RoleUser:
			if m.Content != "" {
				pending = append(pending, anthropic.NewTextBlock(m.Content))
			}
		case models.RoleTool:
			pending = append(pending, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		case models.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args := tc.Args
				if args == nil {
					args = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			// An empty assistant turn is skipped and the user content around
			// it stays in one turn, keeping roles alternating.
			if len(blocks) == 0 {
				continue
			}
			flush()
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
	}
	flush()

	return strings.Join(sys, "\n\n"), out
}

// fromContent converts response blocks into an assistant message.
func fromContent(blocks []anthropic.ContentBlockUnion) (models.Message, error) {
	var text strings.Builder
	var calls []models.ToolCall
	for _, block := range blocks {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			args := map[string]any{}
			if len(variant.Input) > 0 {
				if err := json.Unmarshal(variant.Input, &args); err != nil {
					return models.Message{}, fmt.Errorf("decode %s input: %w", variant.Name, err)
				}
			}
			calls = append(calls, models.ToolCall{ID: variant.ID, Name: variant.Name, Args: args})
		}
	}
	return models.AssistantMessage(text.String(), calls...), nil
}
