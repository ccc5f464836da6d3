package researcher

import (
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/sillysearch/internal/llm"
)

// RequiredConfig contains the collaborators a Researcher cannot run without.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Model drives the research and compression steps.
	Model llm.Model
	// Searcher executes search calls.
	Searcher Searcher
}

// Option configures a Researcher. Use With* functions to create Options.
type Option func(*researcherOptions)

type researcherOptions struct {
	maxIterations         int
	maxConcurrentSearches int
	logger                *zap.Logger
	now                   func() time.Time
}

// WithMaxIterations caps the number of research passes.
func WithMaxIterations(n int) Option {
	return func(o *researcherOptions) { o.maxIterations = n }
}

// WithMaxConcurrentSearches sets the search concurrency ceiling.
func WithMaxConcurrentSearches(n int) Option {
	return func(o *researcherOptions) { o.maxConcurrentSearches = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *researcherOptions) { o.logger = l }
}

// WithClock overrides the clock used for dates in prompts.
func WithClock(now func() time.Time) Option {
	return func(o *researcherOptions) { o.now = now }
}

func defaultOptions() researcherOptions {
	return researcherOptions{
		maxIterations:         3,
		maxConcurrentSearches: 3,
		logger:                zap.NewNop(),
		now:                   time.Now,
	}
}
