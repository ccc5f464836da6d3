package search

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/sillysearch/internal/metrics"
	"github.com/ShayCichocki/sillysearch/internal/tools"
)

// NoResultsMessage is returned to the model when a search finds nothing.
const NoResultsMessage = "No valid search results found. Please try different search queries or use a different search API."

// Summarizer condenses raw page content. It must not fail.
type Summarizer interface {
	Summarize(ctx context.Context, content string) string
}

// ToolConfig contains settings for the search tool.
type ToolConfig struct {
	// MaxResults is the per-query default when the model does not set one.
	MaxResults int
	// Topic is the default topic when the model does not set one.
	Topic string
	// MaxConcurrentSummaries bounds summarization fan-out per call.
	MaxConcurrentSummaries int
	Logger                 *zap.Logger
}

// Tool executes search invocations: it queries the service, summarizes every
// document that has raw content and renders the merged result for the model.
type Tool struct {
	service    Service
	summarizer Summarizer
	cfg        ToolConfig
	logger     *zap.Logger
}

// Entry is the per-URL payload handed back to the model.
type Entry struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NewTool creates a search tool.
func NewTool(service Service, summarizer Summarizer, cfg ToolConfig) *Tool {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if !tools.ValidTopic(cfg.Topic) {
		cfg.Topic = tools.TopicGeneral
	}
	if cfg.MaxConcurrentSummaries <= 0 {
		cfg.MaxConcurrentSummaries = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tool{service: service, summarizer: summarizer, cfg: cfg, logger: logger}
}

// Execute runs one search invocation and returns compact JSON mapping each
// URL to its title and (summarized) content.
func (t *Tool) Execute(ctx context.Context, s tools.Search) (string, error) {
	entries, err := t.Collect(ctx, s)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return NoResultsMessage, nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("encode search results: %w", err)
	}
	return string(data), nil
}

// Collect runs the search and summarization steps and returns the entries.
func (t *Tool) Collect(ctx context.Context, s tools.Search) (map[string]Entry, error) {
	maxResults := s.MaxResults
	if maxResults <= 0 {
		maxResults = t.cfg.MaxResults
	}
	topic := s.Topic
	if topic == "" {
		topic = t.cfg.Topic
	}

	docs, err := t.service.Search(ctx, s.Queries, maxResults, topic)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	metrics.SearchDocuments.Observe(float64(len(docs)))

	urls := make([]string, 0, len(docs))
	for u := range docs {
		urls = append(urls, u)
	}
	contents := make([]string, len(urls))

	var g errgroup.Group
	g.SetLimit(t.cfg.MaxConcurrentSummaries)
	for i, u := range urls {
		doc := docs[u]
		if doc.RawContent == "" || t.summarizer == nil {
			contents[i] = doc.Content
			continue
		}
		g.Go(func() error {
			contents[i] = t.summarizer.Summarize(ctx, doc.RawContent)
			return nil
		})
	}
	_ = g.Wait()

	entries := make(map[string]Entry, len(urls))
	for i, u := range urls {
		entries[u] = Entry{Title: docs[u].Title, Content: contents[i]}
	}

	t.logger.Debug("search completed",
		zap.Strings("queries", s.Queries),
		zap.Int("documents", len(entries)))
	return entries, nil
}
