// Package supervisor implements the top-level research loop. It clarifies
// the request, writes a research brief, delegates sub-topics to researchers
// in bounded batches and finally writes the report.
package supervisor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/sillysearch/internal/budget"
	"github.com/ShayCichocki/sillysearch/internal/conversation"
	"github.com/ShayCichocki/sillysearch/internal/dispatch"
	"github.com/ShayCichocki/sillysearch/internal/llm"
	"github.com/ShayCichocki/sillysearch/internal/metrics"
	"github.com/ShayCichocki/sillysearch/internal/prompts"
	"github.com/ShayCichocki/sillysearch/internal/researcher"
	"github.com/ShayCichocki/sillysearch/internal/tools"
	"github.com/ShayCichocki/sillysearch/pkg/models"
)

// Researcher investigates one delegated topic. Each call must run an
// independent loop; calls happen concurrently.
type Researcher interface {
	Run(ctx context.Context, topic string) (researcher.Result, error)
}

// Result is the outcome of a run. When Clarification is set the run stopped
// to ask the user a question and Brief, Notes and Report are empty.
type Result struct {
	// Messages is the user-facing conversation, including the new
	// assistant messages.
	Messages      []models.Message
	Brief         string
	Notes         []string
	Report        string
	Clarification string
	Iterations    int
	Usage         llm.Usage
}

// NeedsClarification reports whether the run paused for a user answer.
func (r *Result) NeedsClarification() bool {
	return r.Clarification != ""
}

// Supervisor runs supervisor loops.
type Supervisor struct {
	model              llm.Model
	researcher         Researcher
	maxIterations      int
	maxUnits           int
	allowClarification bool
	units              *dispatch.Dispatcher
	classifier         *tools.Classifier
	logger             *zap.Logger
	now                func() time.Time
}

// New creates a Supervisor.
func New(req RequiredConfig, opts ...Option) (*Supervisor, error) {
	if req.Model == nil {
		return nil, fmt.Errorf("supervisor: model is required")
	}
	if req.Researcher == nil {
		return nil, fmt.Errorf("supervisor: researcher is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}

	logger := o.logger.With(zap.String("loop", metrics.LoopSupervisor))
	units := dispatch.New(o.maxConcurrentUnits,
		dispatch.WithOverflow(dispatch.ResearchOverflow),
		dispatch.WithLogger(logger))

	return &Supervisor{
		model:              req.Model,
		researcher:         req.Researcher,
		maxIterations:      o.maxIterations,
		maxUnits:           units.Limit(),
		allowClarification: o.allowClarification,
		units:              units,
		classifier:         tools.NewClassifier(tools.ToolConductResearch, tools.ToolThink, tools.ToolResearchComplete),
		logger:             logger,
		now:                o.now,
	}, nil
}

// loopState is owned by a single Run call.
type loopState struct {
	state         State
	messages      *conversation.Log
	log           *conversation.Log
	governor      *budget.Governor
	brief         string
	notes         []string
	report        string
	clarification string
	lastToolError string
	usage         llm.Usage
}

type clarifyOutput struct {
	NeedClarification bool   `json:"need_clarification"`
	Question          string `json:"question"`
	Verification      string `json:"verification"`
}

type briefOutput struct {
	ResearchBrief string `json:"research_brief"`
}

var clarifySchema = llm.ToolSpec{
	Name:        "clarify_with_user",
	Description: "Decide whether a clarifying question must be asked before research starts.",
	Parameters: map[string]any{
		"need_clarification": map[string]any{
			"type":        "boolean",
			"description": "Whether the user needs to be asked a clarifying question",
		},
		"question": map[string]any{
			"type":        "string",
			"description": "A question to ask the user to clarify the report scope",
		},
		"verification": map[string]any{
			"type":        "string",
			"description": "Message confirming research will start once the user has provided the necessary information",
		},
	},
	Required: []string{"need_clarification", "question", "verification"},
}

var briefSchema = llm.ToolSpec{
	Name:        "research_question",
	Description: "Return the research brief that will guide the research.",
	Parameters: map[string]any{
		"research_brief": map[string]any{
			"type":        "string",
			"description": "A research question that will be used to guide the research",
		},
	},
	Required: []string{"research_brief"},
}

// Run drives the conversation to a report, or stops early with a clarifying
// question. userMessages is the conversation so far and must contain at
// least one user message. Failures of individual delegations never fail the
// run; any other failure is returned as a *RunError.
func (s *Supervisor) Run(ctx context.Context, userMessages []models.Message) (*Result, error) {
	if !hasUserMessage(userMessages) {
		return nil, &RunError{Stage: StateClarify, Err: ErrNoUserMessage}
	}

	st := &loopState{
		state:    StateClarify,
		messages: conversation.New(userMessages...),
		log:      conversation.New(),
		governor: budget.NewGovernor(s.maxIterations),
	}

	for st.state != StateEnd {
		next, err := s.step(ctx, st)
		if err != nil {
			s.logger.Warn("supervisor failed",
				zap.Stringer("state", st.state),
				zap.Int("iteration", st.governor.Count()),
				zap.Error(err))
			return nil, &RunError{Stage: st.state, Err: err, LastToolError: st.lastToolError}
		}
		st.state = next
	}

	return &Result{
		Messages:      st.messages.Messages(),
		Brief:         st.brief,
		Notes:         st.notes,
		Report:        st.report,
		Clarification: st.clarification,
		Iterations:    st.governor.Count(),
		Usage:         st.usage,
	}, nil
}

// step performs the work of the current state and returns the next one.
func (s *Supervisor) step(ctx context.Context, st *loopState) (State, error) {
	if err := ctx.Err(); err != nil {
		return StateEnd, err
	}
	switch st.state {
	case StateClarify:
		return s.clarify(ctx, st)
	case StateWriteBrief:
		return s.writeBrief(ctx, st)
	case StateSupervise:
		return s.supervise(ctx, st)
	case StateHandleTools:
		return s.handleTools(ctx, st)
	case StateWriteReport:
		return s.writeReport(ctx, st)
	default:
		return StateEnd, fmt.Errorf("unexpected state %s", st.state)
	}
}

func (s *Supervisor) clarify(ctx context.Context, st *loopState) (State, error) {
	if !s.allowClarification {
		return StateWriteBrief, nil
	}

	var out clarifyOutput
	err := s.model.Structured(ctx, llm.StructuredRequest{
		Messages: []models.Message{
			models.UserMessage(prompts.Clarify(models.BufferString(st.messages.Messages()), s.now())),
		},
		Schema: clarifySchema,
	}, &out)
	if err != nil {
		return StateEnd, fmt.Errorf("clarify: %w", err)
	}

	if out.NeedClarification && strings.TrimSpace(out.Question) != "" {
		st.clarification = out.Question
		st.messages.Append(models.AssistantMessage(out.Question))
		s.logger.Info("clarification requested")
		return StateEnd, nil
	}
	if out.Verification != "" {
		st.messages.Append(models.AssistantMessage(out.Verification))
	}
	return StateWriteBrief, nil
}

func (s *Supervisor) writeBrief(ctx context.Context, st *loopState) (State, error) {
	var out briefOutput
	err := s.model.Structured(ctx, llm.StructuredRequest{
		Messages: []models.Message{
			models.UserMessage(prompts.Brief(models.BufferString(st.messages.Messages()), s.now())),
		},
		Schema: briefSchema,
	}, &out)
	if err != nil {
		return StateEnd, fmt.Errorf("write brief: %w", err)
	}
	brief := strings.TrimSpace(out.ResearchBrief)
	if brief == "" {
		return StateEnd, fmt.Errorf("write brief: %w", llm.ErrNoStructuredOutput)
	}

	st.brief = brief
	st.messages.Append(models.AssistantMessage(brief))
	s.logger.Debug("research brief written", zap.Int("length", len(brief)))
	return StateSupervise, nil
}

func (s *Supervisor) supervise(ctx context.Context, st *loopState) (State, error) {
	if st.log.Len() == 0 {
		st.log.Append(models.SystemMessage(prompts.Supervisor(s.now(), st.governor.Limit(), s.maxUnits)))
		st.log.Append(models.UserMessage(st.brief))
	}

	iteration := st.governor.Tick()
	metrics.LoopIterations.WithLabelValues(metrics.LoopSupervisor).Inc()

	resp, err := s.model.Complete(ctx, llm.Request{
		Messages: st.log.Messages(),
		Tools:    tools.Specs(s.classifier.Bound()...),
	})
	if err != nil {
		return StateEnd, fmt.Errorf("supervise: %w", err)
	}
	st.usage.Add(resp.Usage)
	st.log.Append(resp.Message)

	s.logger.Debug("supervise pass",
		zap.Int("iteration", iteration),
		zap.Int("tool_calls", len(resp.Message.ToolCalls)))
	return StateHandleTools, nil
}

func (s *Supervisor) handleTools(ctx context.Context, st *loopState) (State, error) {
	tail, _ := st.log.Tail()
	cls := s.classifier.Classify(tail)

	// A completion signal, a spent budget or an empty turn ends delegation
	// without running whatever else the turn asked for.
	if decision := cls.Decide(st.governor.Exhausted()); decision.Terminate {
		return s.finish(st, decision.Reason), nil
	}

	var delegations []tools.ConductResearch
	for _, inv := range cls.Work {
		if cr, ok := inv.(tools.ConductResearch); ok {
			delegations = append(delegations, cr)
		}
	}

	var mu sync.Mutex
	researched := dispatch.Run(ctx, s.units, delegations,
		func(ctx context.Context, cr tools.ConductResearch) (string, error) {
			res, err := s.researcher.Run(ctx, cr.Topic)
			mu.Lock()
			st.usage.Add(res.Usage)
			mu.Unlock()
			if err != nil {
				return "", err
			}
			return res.Compressed, nil
		})

	results := cls.Merge(cls.InlineResults(), researched)
	for _, r := range results {
		if r.IsError {
			st.lastToolError = r.Content
		}
	}
	st.log.AppendResults(results)
	return StateSupervise, nil
}

// finish collects the notes and moves on to the report.
func (s *Supervisor) finish(st *loopState, reason tools.Reason) State {
	st.notes = st.log.ToolContents()
	metrics.RecordTermination(metrics.LoopSupervisor, string(reason))
	s.logger.Info("research finished",
		zap.String("reason", string(reason)),
		zap.Int("iteration", st.governor.Count()),
		zap.Int("notes", len(st.notes)))
	return StateWriteReport
}

func (s *Supervisor) writeReport(ctx context.Context, st *loopState) (State, error) {
	prompt := prompts.Report(st.brief, st.notes, models.BufferString(st.messages.Messages()), s.now())
	resp, err := s.model.Complete(ctx, llm.Request{
		Messages: []models.Message{models.UserMessage(prompt)},
	})
	if err != nil {
		return StateEnd, fmt.Errorf("write report: %w", err)
	}
	st.usage.Add(resp.Usage)

	report := strings.TrimSpace(resp.Message.Content)
	if report == "" {
		return StateEnd, ErrEmptyReport
	}
	st.report = report
	st.messages.Append(models.AssistantMessage(report))
	return StateEnd, nil
}

func hasUserMessage(msgs []models.Message) bool {
	for _, m := range msgs {
		if m.Role == models.RoleUser {
			return true
		}
	}
	return false
}
