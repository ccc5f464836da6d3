package tools

import (
	"github.com/ShayCichocki/sillysearch/pkg/models"
)

// Reason explains why a loop terminates on a turn.
type Reason string

const (
	// ReasonContinue means the loop keeps going.
	ReasonContinue Reason = ""
	// ReasonSignal means the model called research_complete.
	ReasonSignal Reason = "research_complete"
	// ReasonBudget means the iteration cap was reached.
	ReasonBudget Reason = "budget_exhausted"
	// ReasonNoToolCalls means the model requested no tools.
	ReasonNoToolCalls Reason = "no_tool_calls"
)

// Classification partitions the tool calls of one assistant message. Every
// slice preserves the order calls appeared in; All holds every decoded call.
type Classification struct {
	All          []Invocation
	Terminal     []ResearchComplete
	Reflections  []Think
	Work         []Invocation
	Unrecognized []Unrecognized
}

// Empty reports whether the message carried no tool calls at all.
func (c Classification) Empty() bool {
	return len(c.All) == 0
}

// Decision is the termination verdict for one turn.
type Decision struct {
	Terminate bool
	Reason    Reason
}

// Decide evaluates the termination condition: an explicit signal, budget
// exhaustion, or an empty tool set. Any one alone is sufficient; Reason
// reports the first that holds in that order.
func (c Classification) Decide(budgetExhausted bool) Decision {
	switch {
	case len(c.Terminal) > 0:
		return Decision{Terminate: true, Reason: ReasonSignal}
	case budgetExhausted:
		return Decision{Terminate: true, Reason: ReasonBudget}
	case c.Empty():
		return Decision{Terminate: true, Reason: ReasonNoToolCalls}
	default:
		return Decision{Reason: ReasonContinue}
	}
}

// Classifier decodes assistant tool calls for a loop with a fixed tool set.
type Classifier struct {
	bound map[string]bool
	names []string
}

// NewClassifier creates a classifier for a loop that binds names.
func NewClassifier(names ...string) *Classifier {
	bound := make(map[string]bool, len(names))
	for _, n := range names {
		bound[n] = true
	}
	return &Classifier{bound: bound, names: names}
}

// Bound returns the tool names this classifier accepts, in binding order.
func (c *Classifier) Bound() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Classify decodes every tool call of msg. Work contains the calls with an
// external effect: conduct_research and search.
func (c *Classifier) Classify(msg models.Message) Classification {
	var out Classification
	for _, tc := range msg.ToolCalls {
		inv := Decode(tc, c.bound)
		out.All = append(out.All, inv)
		switch v := inv.(type) {
		case ResearchComplete:
			out.Terminal = append(out.Terminal, v)
		case Think:
			out.Reflections = append(out.Reflections, v)
		case ConductResearch, Search:
			out.Work = append(out.Work, v)
		case Unrecognized:
			out.Unrecognized = append(out.Unrecognized, v)
		}
	}
	return out
}

// Merge orders results by the position of their calls in the classified
// message, so results produced by different handlers are appended in the
// order the model issued the calls. Calls without a result are skipped.
func (c Classification) Merge(results ...[]models.ToolResult) []models.ToolResult {
	byID := make(map[string]models.ToolResult)
	for _, batch := range results {
		for _, r := range batch {
			byID[r.ToolCallID] = r
		}
	}
	out := make([]models.ToolResult, 0, len(byID))
	for _, inv := range c.All {
		if r, ok := byID[inv.ToolCall().ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// InlineResults produces the results that need no external collaborator:
// reflections, terminal acknowledgements and rejections of unrecognized calls.
func (c Classification) InlineResults() []models.ToolResult {
	out := make([]models.ToolResult, 0, len(c.Reflections)+len(c.Terminal)+len(c.Unrecognized))
	for _, t := range c.Reflections {
		out = append(out, Reflect(t))
	}
	for _, rc := range c.Terminal {
		out = append(out, Acknowledge(rc))
	}
	for _, u := range c.Unrecognized {
		out = append(out, Reject(u))
	}
	return out
}
