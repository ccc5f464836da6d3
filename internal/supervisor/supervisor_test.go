package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ShayCichocki/sillysearch/internal/dispatch"
	"github.com/ShayCichocki/sillysearch/internal/llm"
	"github.com/ShayCichocki/sillysearch/internal/researcher"
	"github.com/ShayCichocki/sillysearch/internal/tools"
	"github.com/ShayCichocki/sillysearch/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedModel answers structured requests from a per-schema table,
// tool-calling requests from supervise and plain requests with report.
type scriptedModel struct {
	mu         sync.Mutex
	structured map[string]any
	supervise  func(pass int) models.Message
	report     string
	reportErr  error
	passes     int
	schemas    []string
}

func (m *scriptedModel) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(req.Tools) == 0 {
		if m.reportErr != nil {
			return nil, m.reportErr
		}
		return &llm.Response{Message: models.AssistantMessage(m.report)}, nil
	}
	m.passes++
	return &llm.Response{Message: m.supervise(m.passes)}, nil
}

func (m *scriptedModel) Structured(_ context.Context, req llm.StructuredRequest, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas = append(m.schemas, req.Schema.Name)
	v, ok := m.structured[req.Schema.Name]
	if !ok {
		return fmt.Errorf("%s: %w", req.Schema.Name, llm.ErrNoStructuredOutput)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

type fakeResearcher struct {
	mu     sync.Mutex
	topics []string
	fail   map[string]error
}

func (f *fakeResearcher) Run(_ context.Context, topic string) (researcher.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	if err := f.fail[topic]; err != nil {
		return researcher.Result{}, err
	}
	return researcher.Result{Compressed: "findings on " + topic, Iterations: 1}, nil
}

func delegate(id, topic string) models.ToolCall {
	return models.ToolCall{ID: id, Name: tools.ToolConductResearch, Args: map[string]any{"research_topic": topic}}
}

func complete(id string) models.ToolCall {
	return models.ToolCall{ID: id, Name: tools.ToolResearchComplete}
}

func noClarification() map[string]any {
	return map[string]any{
		"clarify_with_user": map[string]any{
			"need_clarification": false,
			"verification":       "Starting research now.",
		},
		"research_question": map[string]any{"research_brief": "Compare coffee shops in Warsaw."},
	}
}

func TestRun_AsksForClarification(t *testing.T) {
	model := &scriptedModel{
		structured: map[string]any{
			"clarify_with_user": map[string]any{
				"need_clarification": true,
				"question":           "Which city do you mean?",
			},
		},
	}
	res := &fakeResearcher{}
	sup, err := New(RequiredConfig{Model: model, Researcher: res})
	require.NoError(t, err)

	out, err := sup.Run(context.Background(), []models.Message{models.UserMessage("best coffee shops")})
	require.NoError(t, err)

	assert.True(t, out.NeedsClarification())
	assert.Equal(t, "Which city do you mean?", out.Clarification)
	assert.Empty(t, out.Brief)
	assert.Empty(t, out.Report)
	assert.Empty(t, res.topics)

	var assistant []models.Message
	for _, m := range out.Messages {
		if m.Role == models.RoleAssistant {
			assistant = append(assistant, m)
		}
	}
	require.Len(t, assistant, 1)
	assert.Equal(t, "Which city do you mean?", assistant[0].Content)
	assert.Equal(t, []string{"clarify_with_user"}, model.schemas)
}

func TestRun_OverflowBeyondCeiling(t *testing.T) {
	model := &scriptedModel{
		structured: noClarification(),
		supervise: func(pass int) models.Message {
			if pass > 1 {
				return models.AssistantMessage("", complete("done"))
			}
			var calls []models.ToolCall
			for i := 1; i <= 5; i++ {
				calls = append(calls, delegate(fmt.Sprintf("c%d", i), fmt.Sprintf("topic %d", i)))
			}
			return models.AssistantMessage("", calls...)
		},
		report: "# Report",
	}
	res := &fakeResearcher{}
	sup, err := New(RequiredConfig{Model: model, Researcher: res}, WithMaxConcurrentResearchUnits(3))
	require.NoError(t, err)

	out, err := sup.Run(context.Background(), []models.Message{models.UserMessage("coffee in Warsaw")})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"topic 1", "topic 2", "topic 3"}, res.topics)
	require.Len(t, out.Notes, 5)
	assert.Equal(t, "findings on topic 1", out.Notes[0])
	assert.Equal(t, "findings on topic 3", out.Notes[2])
	for _, n := range out.Notes[3:] {
		assert.Equal(t, dispatch.ResearchOverflow(3), n)
		assert.Contains(t, n, "3 or fewer")
	}
	assert.Equal(t, 2, out.Iterations)
	assert.Equal(t, "# Report", out.Report)
	assert.Equal(t, "Compare coffee shops in Warsaw.", out.Brief)
}

func TestRun_StopsAtIterationCap(t *testing.T) {
	model := &scriptedModel{
		structured: noClarification(),
		supervise: func(pass int) models.Message {
			return models.AssistantMessage("", delegate(fmt.Sprintf("c%d", pass), fmt.Sprintf("topic %d", pass)))
		},
		report: "report",
	}
	res := &fakeResearcher{}
	sup, err := New(RequiredConfig{Model: model, Researcher: res}, WithMaxIterations(2))
	require.NoError(t, err)

	out, err := sup.Run(context.Background(), []models.Message{models.UserMessage("q")})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Iterations)
	assert.Equal(t, 2, model.passes)
	assert.Equal(t, []string{"topic 1"}, res.topics)
	assert.Equal(t, []string{"findings on topic 1"}, out.Notes)
}

func TestRun_SpentBudgetSkipsDelegation(t *testing.T) {
	model := &scriptedModel{
		structured: noClarification(),
		supervise: func(pass int) models.Message {
			return models.AssistantMessage("", delegate(fmt.Sprintf("c%d", pass), "topic"))
		},
		report: "report",
	}
	res := &fakeResearcher{}
	sup, err := New(RequiredConfig{Model: model, Researcher: res}, WithMaxIterations(1))
	require.NoError(t, err)

	out, err := sup.Run(context.Background(), []models.Message{models.UserMessage("q")})
	require.NoError(t, err)

	assert.Equal(t, 1, out.Iterations)
	assert.Empty(t, res.topics)
	assert.Empty(t, out.Notes)
	assert.Equal(t, "report", out.Report)
}

func TestRun_NoToolCallsEndsDelegation(t *testing.T) {
	model := &scriptedModel{
		structured: noClarification(),
		supervise:  func(int) models.Message { return models.AssistantMessage("nothing to do") },
		report:     "report",
	}
	sup, err := New(RequiredConfig{Model: model, Researcher: &fakeResearcher{}})
	require.NoError(t, err)

	out, err := sup.Run(context.Background(), []models.Message{models.UserMessage("q")})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Iterations)
	assert.Empty(t, out.Notes)
	assert.Equal(t, "report", out.Report)
}

func TestRun_ClarificationDisabled(t *testing.T) {
	model := &scriptedModel{
		structured: map[string]any{"research_question": map[string]any{"research_brief": "brief"}},
		supervise:  func(int) models.Message { return models.AssistantMessage("", complete("rc")) },
		report:     "report",
	}
	sup, err := New(RequiredConfig{Model: model, Researcher: &fakeResearcher{}}, WithAllowClarification(false))
	require.NoError(t, err)

	out, err := sup.Run(context.Background(), []models.Message{models.UserMessage("q")})
	require.NoError(t, err)
	assert.Equal(t, []string{"research_question"}, model.schemas)
	assert.Equal(t, "brief", out.Brief)

	last := out.Messages[len(out.Messages)-1]
	assert.Equal(t, models.RoleAssistant, last.Role)
	assert.Equal(t, "report", last.Content)
}

func TestRun_ResearcherFailureIsContained(t *testing.T) {
	model := &scriptedModel{
		structured: noClarification(),
		supervise: func(pass int) models.Message {
			if pass > 1 {
				return models.AssistantMessage("", complete("rc"))
			}
			return models.AssistantMessage("", delegate("a", "good"), delegate("b", "bad"))
		},
		report: "report",
	}
	res := &fakeResearcher{fail: map[string]error{"bad": errors.New("search backend down")}}
	sup, err := New(RequiredConfig{Model: model, Researcher: res})
	require.NoError(t, err)

	out, err := sup.Run(context.Background(), []models.Message{models.UserMessage("q")})
	require.NoError(t, err)
	require.Len(t, out.Notes, 2)
	assert.Equal(t, "findings on good", out.Notes[0])
	assert.True(t, strings.HasPrefix(out.Notes[1], "Error when calling tool conduct_research"), out.Notes[1])
}

func TestRun_ReportFailureCarriesLastToolError(t *testing.T) {
	boom := errors.New("model down")
	model := &scriptedModel{
		structured: noClarification(),
		supervise: func(pass int) models.Message {
			if pass > 1 {
				return models.AssistantMessage("", complete("rc"))
			}
			return models.AssistantMessage("", delegate("b", "bad"))
		},
		reportErr: boom,
	}
	res := &fakeResearcher{fail: map[string]error{"bad": errors.New("search backend down")}}
	sup, err := New(RequiredConfig{Model: model, Researcher: res})
	require.NoError(t, err)

	_, err = sup.Run(context.Background(), []models.Message{models.UserMessage("q")})
	require.Error(t, err)

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, StateWriteReport, runErr.Stage)
	assert.Contains(t, runErr.LastToolError, "search backend down")
	assert.ErrorIs(t, err, boom)
}

func TestRun_RequiresUserMessage(t *testing.T) {
	sup, err := New(RequiredConfig{Model: &scriptedModel{}, Researcher: &fakeResearcher{}})
	require.NoError(t, err)

	_, err = sup.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoUserMessage)
}

func TestRun_CancelledContext(t *testing.T) {
	sup, err := New(RequiredConfig{Model: &scriptedModel{}, Researcher: &fakeResearcher{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sup.Run(ctx, []models.Message{models.UserMessage("q")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "write_report", StateWriteReport.String())
	assert.Equal(t, "unknown", State(42).String())
}
