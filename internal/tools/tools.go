// Package tools defines the closed set of tools the research loops expose
// to the model and decodes model tool calls into typed invocations.
package tools

import (
	"errors"

	"github.com/ShayCichocki/sillysearch/internal/llm"
)

// Tool names as presented to the model.
const (
	ToolResearchComplete = "research_complete"
	ToolThink            = "think"
	ToolConductResearch  = "conduct_research"
	ToolSearch           = "search"
)

// Search topics accepted by the search tool.
const (
	TopicGeneral = "general"
	TopicNews    = "news"
	TopicFinance = "finance"
)

// MaxSearchResults caps the per-query result count a model may request.
const MaxSearchResults = 20

var (
	// ErrUnknownTool is returned for a tool name outside the known set.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrToolNotBound is returned for a known tool that is not bound to the
	// loop that received the call.
	ErrToolNotBound = errors.New("tool not available in this context")
	// ErrInvalidArguments is returned when a call's arguments cannot be decoded.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

var specs = map[string]llm.ToolSpec{
	ToolResearchComplete: {
		Name:        ToolResearchComplete,
		Description: "Call this tool to indicate that the research is complete.",
		Parameters:  map[string]any{},
	},
	ToolThink: {
		Name: ToolThink,
		Description: "Tool for strategic reflection on research progress and decision-making. " +
			"Use it after each search to analyze results and plan next steps: what was found, " +
			"what is still missing, and whether to continue searching or provide an answer.",
		Parameters: map[string]any{
			"reflection": map[string]any{
				"type":        "string",
				"description": "Your detailed reflection on research progress, findings, gaps, and next steps",
			},
		},
		Required: []string{"reflection"},
	},
	ToolConductResearch: {
		Name:        ToolConductResearch,
		Description: "Call this tool to conduct research on a specific topic.",
		Parameters: map[string]any{
			"research_topic": map[string]any{
				"type":        "string",
				"description": "The topic to research. Should be a single topic, and should be described in high detail (at least a paragraph).",
			},
		},
		Required: []string{"research_topic"},
	},
	ToolSearch: {
		Name:        ToolSearch,
		Description: "Fetch and summarize web search results. Returns a JSON object mapping each result URL to its title and summarized content.",
		Parameters: map[string]any{
			"queries": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "List of search queries to execute",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results per query (optional)",
			},
			"topic": map[string]any{
				"type":        "string",
				"enum":        []string{TopicGeneral, TopicNews, TopicFinance},
				"description": "Search topic (optional, defaults to general)",
			},
		},
		Required: []string{"queries"},
	},
}

// Spec returns the model-facing definition of the named tool.
func Spec(name string) (llm.ToolSpec, bool) {
	s, ok := specs[name]
	return s, ok
}

// Specs returns the definitions for names, in order, skipping unknown names.
func Specs(names ...string) []llm.ToolSpec {
	out := make([]llm.ToolSpec, 0, len(names))
	for _, n := range names {
		if s, ok := specs[n]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Known reports whether name is one of the tools defined in this package.
func Known(name string) bool {
	_, ok := specs[name]
	return ok
}

// ValidTopic reports whether topic is accepted by the search tool.
func ValidTopic(topic string) bool {
	switch topic {
	case TopicGeneral, TopicNews, TopicFinance:
		return true
	default:
		return false
	}
}
