package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultDuckDuckGoURL is the HTML search endpoint.
const DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGoConfig contains configuration for the DuckDuckGo client.
type DuckDuckGoConfig struct {
	BaseURL           string
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// DuckDuckGoClient searches the DuckDuckGo HTML interface. It needs no API
// key but returns only snippets, never raw page content, and ignores topic.
type DuckDuckGoClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDuckDuckGoClient creates a DuckDuckGo client.
func NewDuckDuckGoClient(cfg DuckDuckGoConfig) *DuckDuckGoClient {
	c := &DuckDuckGoClient{
		baseURL: cfg.BaseURL,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultDuckDuckGoURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

// Search implements Service. A call fails only when every query fails.
func (c *DuckDuckGoClient) Search(ctx context.Context, queries []string, maxResults int, _ string) (map[string]Document, error) {
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}

	perQuery := make([][]Document, len(queries))
	errs := make([]error, len(queries))

	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			docs, err := c.query(ctx, q, maxResults)
			if err != nil {
				c.logger.Warn("duckduckgo query failed", zap.String("query", q), zap.Error(err))
				errs[i] = fmt.Errorf("query %q: %w", q, err)
				return nil
			}
			perQuery[i] = docs
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err == nil {
			return merge(perQuery), nil
		}
	}
	return nil, errors.Join(errs...)
}

func (c *DuckDuckGoClient) query(ctx context.Context, q string, maxResults int) ([]Document, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	searchURL := c.baseURL + "?q=" + url.QueryEscape(q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	docs, err := parseDuckDuckGo(string(body), maxResults)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Query = q
	}
	return docs, nil
}

// parseDuckDuckGo extracts results from the HTML results page.
func parseDuckDuckGo(content string, maxResults int) ([]Document, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	var results []Document
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attr(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				if d := extractResult(n); d.URL != "" && d.Title != "" {
					results = append(results, d)
				}
				return
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) Document {
	var d Document
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attr(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				d.URL = attr(n, "href")
				d.Title = text(n)
			case strings.Contains(class, "result__snippet"):
				d.Content = text(n)
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	d.URL = unwrapRedirect(d.URL)
	return d
}

// unwrapRedirect resolves DuckDuckGo's //duckduckgo.com/l/?uddg=<target> links.
func unwrapRedirect(link string) string {
	const prefix = "//duckduckgo.com/l/?uddg="
	if !strings.HasPrefix(link, prefix) {
		return link
	}
	decoded, err := url.QueryUnescape(strings.TrimPrefix(link, prefix))
	if err != nil {
		return link
	}
	if idx := strings.Index(decoded, "&"); idx > 0 {
		decoded = decoded[:idx]
	}
	return decoded
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(t)
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return sb.String()
}
