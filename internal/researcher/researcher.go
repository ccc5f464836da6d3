// Package researcher implements the worker loop that investigates a single
// topic: it searches, reflects, and finally compresses its findings.
package researcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/sillysearch/internal/budget"
	"github.com/ShayCichocki/sillysearch/internal/conversation"
	"github.com/ShayCichocki/sillysearch/internal/dispatch"
	"github.com/ShayCichocki/sillysearch/internal/llm"
	"github.com/ShayCichocki/sillysearch/internal/metrics"
	"github.com/ShayCichocki/sillysearch/internal/prompts"
	"github.com/ShayCichocki/sillysearch/internal/tools"
	"github.com/ShayCichocki/sillysearch/pkg/models"
)

// FailedPlaceholder replaces the findings when compression fails or yields
// nothing.
const FailedPlaceholder = "The researcher failed to complete its job"

// ErrEmptyTopic is returned by Run when the topic is blank.
var ErrEmptyTopic = errors.New("research topic is empty")

// Searcher executes one search call and returns the text of its result.
type Searcher interface {
	Execute(ctx context.Context, s tools.Search) (string, error)
}

// Result is what a finished researcher hands back to its caller.
type Result struct {
	// Compressed is the cleaned-up findings. Never empty.
	Compressed string
	// RawNotes holds every tool result the researcher saw, in order.
	RawNotes []string
	// Iterations is the number of research passes performed.
	Iterations int
	Usage      llm.Usage
}

// Researcher runs researcher loops. A Researcher holds no per-run state and
// may run any number of topics concurrently.
type Researcher struct {
	model         llm.Model
	searcher      Searcher
	maxIterations int
	searches      *dispatch.Dispatcher
	classifier    *tools.Classifier
	logger        *zap.Logger
	now           func() time.Time
}

// New creates a Researcher.
func New(req RequiredConfig, opts ...Option) (*Researcher, error) {
	if req.Model == nil {
		return nil, fmt.Errorf("researcher: model is required")
	}
	if req.Searcher == nil {
		return nil, fmt.Errorf("researcher: searcher is required")
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

	return &Researcher{
		model:         req.Model,
		searcher:      req.Searcher,
		maxIterations: o.maxIterations,
		searches: dispatch.New(o.maxConcurrentSearches,
			dispatch.WithOverflow(dispatch.SearchOverflow),
			dispatch.WithLogger(o.logger)),
		classifier: tools.NewClassifier(tools.ToolSearch, tools.ToolThink, tools.ToolResearchComplete),
		logger:     o.logger,
		now:        o.now,
	}, nil
}

// loopState is owned by a single Run call.
type loopState struct {
	topic      string
	state      State
	log        *conversation.Log
	governor   *budget.Governor
	usage      llm.Usage
	compressed string
	logger     *zap.Logger
}

// Run investigates topic until the model signals completion, stops calling
// tools, or the iteration cap is reached, then compresses the findings.
// It returns an error only when a research step cannot reach the model or
// ctx is cancelled; compression failures degrade to FailedPlaceholder.
func (r *Researcher) Run(ctx context.Context, topic string) (Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Result{}, ErrEmptyTopic
	}

	st := &loopState{
		topic:    topic,
		state:    StateResearch,
		log:      conversation.New(),
		governor: budget.NewGovernor(r.maxIterations),
		logger: r.logger.With(
			zap.String("loop", metrics.LoopResearcher),
			zap.String("researcher_id", uuid.NewString())),
	}
	st.logger.Debug("researcher started", zap.String("topic", topic))

	for st.state != StateEnd {
		next, err := r.step(ctx, st)
		if err != nil {
			st.logger.Warn("researcher failed",
				zap.Stringer("state", st.state),
				zap.Int("iteration", st.governor.Count()),
				zap.Error(err))
			return Result{Iterations: st.governor.Count(), Usage: st.usage}, err
		}
		st.state = next
	}

	return Result{
		Compressed: st.compressed,
		RawNotes:   st.log.ToolContents(),
		Iterations: st.governor.Count(),
		Usage:      st.usage,
	}, nil
}

// step performs the work of the current state and returns the next one.
func (r *Researcher) step(ctx context.Context, st *loopState) (State, error) {
	switch st.state {
	case StateResearch:
		return r.research(ctx, st)
	case StateHandleTools:
		return r.handleTools(ctx, st)
	case StateCompress:
		return r.compress(ctx, st)
	default:
		return StateEnd, fmt.Errorf("researcher: unexpected state %s", st.state)
	}
}

func (r *Researcher) research(ctx context.Context, st *loopState) (State, error) {
	if err := ctx.Err(); err != nil {
		return StateEnd, fmt.Errorf("research step: %w", err)
	}
	if st.log.Len() == 0 {
		st.log.Append(models.SystemMessage(prompts.Researcher(r.now(), st.governor.Limit())))
		st.log.Append(models.UserMessage(st.topic))
	}

	iteration := st.governor.Tick()
	metrics.LoopIterations.WithLabelValues(metrics.LoopResearcher).Inc()

	resp, err := r.model.Complete(ctx, llm.Request{
		Messages: st.log.Messages(),
		Tools:    tools.Specs(r.classifier.Bound()...),
	})
	if err != nil {
		return StateEnd, fmt.Errorf("research step: %w", err)
	}
	st.usage.Add(resp.Usage)
	st.log.Append(resp.Message)

	st.logger.Debug("research pass",
		zap.Int("iteration", iteration),
		zap.Int("tool_calls", len(resp.Message.ToolCalls)))
	return StateHandleTools, nil
}

func (r *Researcher) handleTools(ctx context.Context, st *loopState) (State, error) {
	tail, _ := st.log.Tail()
	cls := r.classifier.Classify(tail)

	if !cls.Empty() {
		var searches []tools.Search
		for _, inv := range cls.Work {
			if s, ok := inv.(tools.Search); ok {
				searches = append(searches, s)
			}
		}
		searched := dispatch.Run(ctx, r.searches, searches, r.searcher.Execute)
		st.log.AppendResults(cls.Merge(cls.InlineResults(), searched))
	}

	decision := cls.Decide(st.governor.Exhausted())
	if !decision.Terminate {
		return StateResearch, nil
	}

	metrics.RecordTermination(metrics.LoopResearcher, string(decision.Reason))
	st.logger.Debug("research finished",
		zap.String("reason", string(decision.Reason)),
		zap.Int("iteration", st.governor.Count()))
	return StateCompress, nil
}

func (r *Researcher) compress(ctx context.Context, st *loopState) (State, error) {
	msgs := append(st.log.WithoutSystem(), models.UserMessage(prompts.CompressHuman))

	resp, err := r.model.Complete(ctx, llm.Request{
		System:   prompts.CompressSystem(r.now()),
		Messages: msgs,
	})
	switch {
	case err != nil:
		st.logger.Warn("compression failed", zap.Error(err))
		st.compressed = FailedPlaceholder
	case strings.TrimSpace(resp.Message.Content) == "":
		st.usage.Add(resp.Usage)
		st.logger.Warn("compression returned no content")
		st.compressed = FailedPlaceholder
	default:
		st.usage.Add(resp.Usage)
		st.compressed = resp.Message.Content
	}
	return StateEnd, nil
}
