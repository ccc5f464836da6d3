// Package summarize condenses fetched web content with a model call that is
// bounded by a timeout and degrades to the original content on failure.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/sillysearch/internal/llm"
	"github.com/ShayCichocki/sillysearch/internal/metrics"
	"github.com/ShayCichocki/sillysearch/internal/prompts"
	"github.com/ShayCichocki/sillysearch/pkg/models"
)

// Defaults used when a Config field is zero.
const (
	DefaultTimeout          = 60 * time.Second
	DefaultMaxContentLength = 50000
)

// Config contains summarizer settings.
type Config struct {
	// Timeout bounds a single summarization call.
	Timeout time.Duration
	// MaxContentLength caps the content fed to the model, in runes.
	MaxContentLength int
	Logger           *zap.Logger
}

// Summarizer turns raw page content into a summary plus key excerpts.
// It never returns an error.
type Summarizer struct {
	model     llm.Model
	timeout   time.Duration
	maxLength int
	logger    *zap.Logger
	now       func() time.Time
}

// Output is the structured object requested from the model.
type Output struct {
	Summary     string `json:"summary"`
	KeyExcerpts string `json:"key_excerpts"`
}

// Schema is the structured output schema for Output.
var Schema = llm.ToolSpec{
	Name:        "summary_output",
	Description: "Return the summary of the webpage and its most important verbatim excerpts.",
	Parameters: map[string]any{
		"summary": map[string]any{
			"type":        "string",
			"description": "Concise summary of the webpage content",
		},
		"key_excerpts": map[string]any{
			"type":        "string",
			"description": "Important quotes and excerpts taken verbatim from the content",
		},
	},
	Required: []string{"summary", "key_excerpts"},
}

// New creates a Summarizer backed by model.
func New(model llm.Model, cfg Config) *Summarizer {
	s := &Summarizer{
		model:     model,
		timeout:   cfg.Timeout,
		maxLength: cfg.MaxContentLength,
		logger:    cfg.Logger,
		now:       time.Now,
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.maxLength <= 0 {
		s.maxLength = DefaultMaxContentLength
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Summarize condenses content. If the model fails, overruns the timeout or
// returns an empty summary, the capped content is returned verbatim.
func (s *Summarizer) Summarize(ctx context.Context, content string) string {
	content = Truncate(content, s.maxLength)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type outcome struct {
		out Output
		err error
	}
	// Buffered so the call can finish after we stop waiting.
	done := make(chan outcome, 1)
	go func() {
		var out Output
		err := s.model.Structured(ctx, llm.StructuredRequest{
			Messages: []models.Message{
				models.UserMessage(prompts.Summarize(content, s.now())),
			},
			Schema: Schema,
		}, &out)
		done <- outcome{out: out, err: err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		res = outcome{err: ctx.Err()}
	}

	if res.err != nil {
		reason := "error"
		if errors.Is(res.err, context.DeadlineExceeded) {
			reason = "timeout"
			s.logger.Warn("summarization timed out, returning original content",
				zap.Duration("timeout", s.timeout))
		} else {
			s.logger.Warn("summarization failed, returning original content", zap.Error(res.err))
		}
		metrics.SummarizationFallbacks.WithLabelValues(reason).Inc()
		return content
	}

	if strings.TrimSpace(res.out.Summary) == "" {
		metrics.SummarizationFallbacks.WithLabelValues("empty").Inc()
		s.logger.Warn("summarization returned an empty summary, returning original content")
		return content
	}

	return Format(res.out)
}

// Format renders a summary in the tagged layout handed to researchers.
func Format(out Output) string {
	return fmt.Sprintf("<summary>\n%s\n</summary>\n\n<key_excerpts>\n%s\n</key_excerpts>",
		strings.TrimSpace(out.Summary), strings.TrimSpace(out.KeyExcerpts))
}

// Truncate caps s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
