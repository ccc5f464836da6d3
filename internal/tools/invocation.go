package tools

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/sillysearch/pkg/models"
)

// Kind enumerates the invocation variants.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindResearchComplete
	KindThink
	KindConductResearch
	KindSearch
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindResearchComplete:
		return ToolResearchComplete
	case KindThink:
		return ToolThink
	case KindConductResearch:
		return ToolConductResearch
	case KindSearch:
		return ToolSearch
	default:
		return "unrecognized"
	}
}

// Invocation is a decoded tool call. The set of implementations is closed:
// ResearchComplete, Think, ConductResearch, Search and Unrecognized.
type Invocation interface {
	// ToolCall returns the raw call the invocation was decoded from.
	ToolCall() models.ToolCall
	// Kind returns the variant tag.
	Kind() Kind
	sealed()
}

type call struct {
	raw models.ToolCall
}

func (c call) ToolCall() models.ToolCall { return c.raw }
func (call) sealed()                     {}

// ResearchComplete is the terminal signal.
type ResearchComplete struct{ call }

// Kind implements Invocation.
func (ResearchComplete) Kind() Kind { return KindResearchComplete }

// Think records a reflection and has no other effect.
type Think struct {
	call
	Reflection string
}

// Kind implements Invocation.
func (Think) Kind() Kind { return KindThink }

// ConductResearch delegates one topic to a new researcher.
type ConductResearch struct {
	call
	Topic string
}

// Kind implements Invocation.
func (ConductResearch) Kind() Kind { return KindConductResearch }

// Search runs web queries. Zero MaxResults or empty Topic mean "use the
// configured default".
type Search struct {
	call
	Queries    []string
	MaxResults int
	Topic      string
}

// Kind implements Invocation.
func (Search) Kind() Kind { return KindSearch }

// Unrecognized is a call that cannot be honored: unknown name, a tool not
// bound to the receiving loop, or malformed arguments.
type Unrecognized struct {
	call
	Err error
}

// Kind implements Invocation.
func (Unrecognized) Kind() Kind { return KindUnrecognized }

// Decode converts a raw call into its typed variant. bound lists the tool
// names the receiving loop exposed; a nil set accepts every known tool.
func Decode(tc models.ToolCall, bound map[string]bool) Invocation {
	c := call{raw: tc}
	if !Known(tc.Name) {
		return Unrecognized{call: c, Err: fmt.Errorf("%w: %q", ErrUnknownTool, tc.Name)}
	}
	if bound != nil && !bound[tc.Name] {
		return Unrecognized{call: c, Err: fmt.Errorf("%w: %q", ErrToolNotBound, tc.Name)}
	}

	switch tc.Name {
	case ToolResearchComplete:
		return ResearchComplete{call: c}

	case ToolThink:
		reflection := strings.TrimSpace(tc.String("reflection"))
		if reflection == "" {
			return Unrecognized{call: c, Err: fmt.Errorf("%w: %s requires a non-empty reflection", ErrInvalidArguments, tc.Name)}
		}
		return Think{call: c, Reflection: reflection}

	case ToolConductResearch:
		topic := strings.TrimSpace(tc.String("research_topic"))
		if topic == "" {
			return Unrecognized{call: c, Err: fmt.Errorf("%w: %s requires a research_topic", ErrInvalidArguments, tc.Name)}
		}
		return ConductResearch{call: c, Topic: topic}

	case ToolSearch:
		var queries []string
		for _, q := range tc.Strings("queries") {
			if q = strings.TrimSpace(q); q != "" {
				queries = append(queries, q)
			}
		}
		if len(queries) == 0 {
			return Unrecognized{call: c, Err: fmt.Errorf("%w: %s requires at least one query", ErrInvalidArguments, tc.Name)}
		}
		s := Search{call: c, Queries: queries}
		if n, ok := tc.Int("max_results"); ok && n > 0 {
			s.MaxResults = min(n, MaxSearchResults)
		}
		if topic := tc.String("topic"); topic != "" {
			if !ValidTopic(topic) {
				return Unrecognized{call: c, Err: fmt.Errorf("%w: unsupported topic %q", ErrInvalidArguments, topic)}
			}
			s.Topic = topic
		}
		return s
	}

	return Unrecognized{call: c, Err: fmt.Errorf("%w: %q", ErrUnknownTool, tc.Name)}
}

// Reflect produces the result of a think call.
func Reflect(t Think) models.ToolResult {
	return models.ResultFor(t.raw, "Reflection recorded: "+t.Reflection)
}

// Acknowledge produces the result of a research_complete call.
func Acknowledge(rc ResearchComplete) models.ToolResult {
	return models.ResultFor(rc.raw, "Research marked as complete.")
}

// Reject produces the error result of an unrecognized call.
func Reject(u Unrecognized) models.ToolResult {
	return models.ErrorResultFor(u.raw, "Error: "+u.Err.Error())
}
