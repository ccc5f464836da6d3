package supervisor

import (
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/sillysearch/internal/llm"
)

// RequiredConfig contains the collaborators a Supervisor cannot run without.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// Model drives clarification, briefing, delegation and the report.
	Model llm.Model
	// Researcher investigates delegated topics.
	Researcher Researcher
}

// Option configures a Supervisor. Use With* functions to create Options.
type Option func(*supervisorOptions)

type supervisorOptions struct {
	maxIterations      int
	maxConcurrentUnits int
	allowClarification bool
	logger             *zap.Logger
	now                func() time.Time
}

// WithMaxIterations caps the number of delegation rounds.
func WithMaxIterations(n int) Option {
	return func(o *supervisorOptions) { o.maxIterations = n }
}

// WithMaxConcurrentResearchUnits sets the delegation concurrency ceiling.
func WithMaxConcurrentResearchUnits(n int) Option {
	return func(o *supervisorOptions) { o.maxConcurrentUnits = n }
}

// WithAllowClarification toggles the clarifying-question step.
func WithAllowClarification(b bool) Option {
	return func(o *supervisorOptions) { o.allowClarification = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *supervisorOptions) { o.logger = l }
}

// WithClock overrides the clock used for dates in prompts.
func WithClock(now func() time.Time) Option {
	return func(o *supervisorOptions) { o.now = now }
}

func defaultOptions() supervisorOptions {
	return supervisorOptions{
		maxIterations:      6,
		maxConcurrentUnits: 3,
		allowClarification: true,
		logger:             zap.NewNop(),
		now:                time.Now,
	}
}
