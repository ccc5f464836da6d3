// Package search provides the web search service used by researchers and the
// search tool that condenses its results for the model.
package search

import (
	"context"
	"errors"
)

// ErrNoQueries is returned when Search is called without queries.
var ErrNoQueries = errors.New("no search queries given")

// Document is a single search hit.
type Document struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content,omitempty"`
	Score      float64 `json:"score,omitempty"`
	// Query is the query that first produced this document.
	Query string `json:"query"`
}

// Service runs web searches. Results are keyed by URL and deduplicated
// across every query of a call; the first occurrence wins.
type Service interface {
	Search(ctx context.Context, queries []string, maxResults int, topic string) (map[string]Document, error)
}

// merge folds per-query hits, in query order, into a URL-keyed map.
func merge(perQuery [][]Document) map[string]Document {
	out := make(map[string]Document)
	for _, docs := range perQuery {
		for _, d := range docs {
			if d.URL == "" {
				continue
			}
			if _, seen := out[d.URL]; seen {
				continue
			}
			out[d.URL] = d
		}
	}
	return out
}
