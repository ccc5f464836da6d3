package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tavilyHit struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent *string `json:"raw_content"`
	Score      float64 `json:"score"`
}

func strPtr(s string) *string { return &s }

// fakeTavily serves canned hits per query and records the decoded requests.
func fakeTavily(t *testing.T, hits map[string][]tavilyHit) (*httptest.Server, *[]tavilyRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []tavilyRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req tavilyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()

		res, ok := hits[req.Query]
		if !ok {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"query": req.Query, "results": res})
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newTestTavily(t *testing.T, url string) *TavilyClient {
	t.Helper()
	c, err := NewTavilyClient(TavilyConfig{APIKey: "test-key", BaseURL: url})
	require.NoError(t, err)
	return c
}

func TestTavily_BestCoffeeShopsInWarsaw(t *testing.T) {
	srv, requests := fakeTavily(t, map[string][]tavilyHit{
		"best coffee shops in Warsaw": {
			{Title: "Top 10 cafes in Warsaw", URL: "https://example.com/warsaw-cafes", Content: "Ranking...", RawContent: strPtr("Full article"), Score: 0.9},
			{Title: "Warsaw coffee guide", URL: "https://example.org/guide", Content: "Guide...", Score: 0.8},
		},
	})
	c := newTestTavily(t, srv.URL)

	docs, err := c.Search(context.Background(), []string{"best coffee shops in Warsaw"}, 5, "general")
	require.NoError(t, err)

	require.NotEmpty(t, docs)
	for url, d := range docs {
		assert.Equal(t, url, d.URL)
		assert.NotEmpty(t, d.Title)
		assert.Equal(t, "best coffee shops in Warsaw", d.Query)
	}
	assert.Equal(t, "Full article", docs["https://example.com/warsaw-cafes"].RawContent)
	assert.Empty(t, docs["https://example.org/guide"].RawContent)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, 5, req.MaxResults)
	assert.Equal(t, "general", req.Topic)
	assert.True(t, req.IncludeRawContent)
}

func TestTavily_DeduplicatesAcrossQueries(t *testing.T) {
	shared := tavilyHit{Title: "shared", URL: "https://example.com/shared", Content: "c"}
	srv, _ := fakeTavily(t, map[string][]tavilyHit{
		"q1": {shared, {Title: "one", URL: "https://example.com/1"}},
		"q2": {shared, {Title: "two", URL: "https://example.com/2"}},
	})
	c := newTestTavily(t, srv.URL)

	docs, err := c.Search(context.Background(), []string{"q1", "q2"}, 5, "general")
	require.NoError(t, err)

	assert.Len(t, docs, 3)
	assert.Equal(t, "q1", docs["https://example.com/shared"].Query, "first occurrence in query order wins")
}

func TestTavily_PartialFailure(t *testing.T) {
	srv, _ := fakeTavily(t, map[string][]tavilyHit{
		"works": {{Title: "ok", URL: "https://example.com/ok"}},
	})
	c := newTestTavily(t, srv.URL)

	docs, err := c.Search(context.Background(), []string{"works", "fails"}, 5, "general")
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, err = c.Search(context.Background(), []string{"fails"}, 5, "general")
	assert.Error(t, err)
}

func TestTavily_NoQueries(t *testing.T) {
	c := newTestTavily(t, "http://127.0.0.1:0")
	_, err := c.Search(context.Background(), nil, 5, "general")
	assert.ErrorIs(t, err, ErrNoQueries)
}

func TestNewTavilyClient_RequiresKey(t *testing.T) {
	_, err := NewTavilyClient(TavilyConfig{})
	assert.Error(t, err)
}
