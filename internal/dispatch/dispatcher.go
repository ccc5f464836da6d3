// Package dispatch executes batches of work tool calls under a hard
// concurrency ceiling.
//
// The first Limit calls of a batch run concurrently; the rest are refused
// with an instructive overflow result. The batch is joined before any
// result is returned, failures are contained per call, and the output holds
// exactly one result per input call in input order.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/sillysearch/internal/metrics"
	"github.com/ShayCichocki/sillysearch/pkg/models"
)

// Unit is anything carrying the tool call it answers.
type Unit interface {
	ToolCall() models.ToolCall
}

// Runner executes one unit against its collaborator and returns the text of
// its result.
type Runner[T Unit] func(ctx context.Context, unit T) (string, error)

// OverflowFunc renders the message returned for calls beyond the ceiling.
type OverflowFunc func(limit int) string

// ResearchOverflow is the overflow message for delegated research units.
func ResearchOverflow(limit int) string {
	return fmt.Sprintf("Error: Did not run this research as you have already exceeded the maximum number of concurrent research units. Please try again with %d or fewer research units.", limit)
}

// SearchOverflow is the overflow message for search calls.
func SearchOverflow(limit int) string {
	return fmt.Sprintf("Error: Did not run this search as you have already exceeded the maximum number of concurrent searches. Please try again with %d or fewer search calls.", limit)
}

// Dispatcher holds the ceiling and reporting settings for batches.
type Dispatcher struct {
	limit    int
	overflow OverflowFunc
	logger   *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithOverflow sets the overflow message renderer.
func WithOverflow(fn OverflowFunc) Option {
	return func(d *Dispatcher) { d.overflow = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a dispatcher with the given ceiling. Ceilings below one are
// raised to one.
func New(limit int, opts ...Option) *Dispatcher {
	if limit < 1 {
		limit = 1
	}
	d := &Dispatcher{
		limit:    limit,
		overflow: ResearchOverflow,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Limit returns the concurrency ceiling.
func (d *Dispatcher) Limit() int {
	return d.limit
}

// Run executes units through run. It blocks until every admitted unit has
// finished and returns len(units) results in input order.
func Run[T Unit](ctx context.Context, d *Dispatcher, units []T, run Runner[T]) []models.ToolResult {
	results := make([]models.ToolResult, len(units))
	if len(units) == 0 {
		return results
	}

	admitted := min(len(units), d.limit)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(d.limit)
	for i := 0; i < admitted; i++ {
		unit := units[i]
		g.Go(func() error {
			results[i] = execute(ctx, d.logger, unit, run)
			return nil
		})
	}

	for i := admitted; i < len(units); i++ {
		tc := units[i].ToolCall()
		results[i] = models.ErrorResultFor(tc, d.overflow(d.limit))
		metrics.RecordDispatch(tc.Name, metrics.OutcomeOverflow)
		d.logger.Warn("tool call refused: concurrency ceiling exceeded",
			zap.String("tool", tc.Name),
			zap.String("tool_call_id", tc.ID),
			zap.Int("limit", d.limit))
	}

	// Tasks never return errors; Wait is the batch barrier.
	_ = g.Wait()

	if admitted > 0 {
		metrics.DispatchDuration.WithLabelValues(units[0].ToolCall().Name).Observe(time.Since(start).Seconds())
	}
	return results
}

// execute runs a single unit, converting errors and panics into an error
// result so siblings are unaffected.
func execute[T Unit](ctx context.Context, logger *zap.Logger, unit T, run Runner[T]) (result models.ToolResult) {
	tc := unit.ToolCall()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool call panicked",
				zap.String("tool", tc.Name),
				zap.String("tool_call_id", tc.ID),
				zap.Any("panic", r))
			metrics.RecordDispatch(tc.Name, metrics.OutcomeError)
			result = models.ErrorResultFor(tc, fmt.Sprintf("Error when calling tool %s: panic: %v", tc.Name, r))
		}
	}()

	content, err := run(ctx, unit)
	if err != nil {
		logger.Warn("tool call failed",
			zap.String("tool", tc.Name),
			zap.String("tool_call_id", tc.ID),
			zap.Error(err))
		metrics.RecordDispatch(tc.Name, metrics.OutcomeError)
		return models.ErrorResultFor(tc, fmt.Sprintf("Error when calling tool %s: %v", tc.Name, err))
	}

	metrics.RecordDispatch(tc.Name, metrics.OutcomeOK)
	return models.ResultFor(tc, content)
}
