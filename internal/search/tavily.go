package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ShayCichocki/sillysearch/internal/version"
)

// DefaultTavilyURL is the Tavily search endpoint.
const DefaultTavilyURL = "https://api.tavily.com/search"

// TavilyConfig contains configuration for the Tavily client.
type TavilyConfig struct {
	APIKey string
	// BaseURL overrides DefaultTavilyURL.
	BaseURL string
	// RequestsPerSecond limits outgoing requests; zero disables limiting.
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// TavilyClient searches through the Tavily REST API. Every query of a call is
// issued concurrently and raw page content is requested.
type TavilyClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	Topic             string `json:"topic"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title      string  `json:"title"`
		URL        string  `json:"url"`
		Content    string  `json:"content"`
		RawContent *string `json:"raw_content"`
		Score      float64 `json:"score"`
	} `json:"results"`
}

// NewTavilyClient creates a Tavily client.
func NewTavilyClient(cfg TavilyConfig) (*TavilyClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("tavily API key is not set")
	}
	c := &TavilyClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultTavilyURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// Search implements Service. A call fails only when every query fails.
func (c *TavilyClient) Search(ctx context.Context, queries []string, maxResults int, topic string) (map[string]Document, error) {
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}

	perQuery := make([][]Document, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			docs, err := c.query(ctx, q, maxResults, topic)
			if err != nil {
				c.logger.Warn("tavily query failed", zap.String("query", q), zap.Error(err))
				errs[i] = fmt.Errorf("query %q: %w", q, err)
				return nil
			}
			perQuery[i] = docs
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(queries) {
		return nil, errors.Join(errs...)
	}

	return merge(perQuery), nil
}

func (c *TavilyClient) query(ctx context.Context, q string, maxResults int, topic string) ([]Document, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(tavilyRequest{
		Query:             q,
		MaxResults:        maxResults,
		Topic:             topic,
		IncludeRawContent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	docs := make([]Document, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		d := Document{
			URL:     r.URL,
			Title:   r.Title,
			Content: r.Content,
			Score:   r.Score,
			Query:   q,
		}
		if r.RawContent != nil {
			d.RawContent = *r.RawContent
		}
		docs = append(docs, d)
	}
	c.logger.Debug("tavily query completed", zap.String("query", q), zap.Int("results", len(docs)))
	return docs, nil
}
