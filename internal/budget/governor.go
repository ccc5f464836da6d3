// Package budget bounds how many think/act passes a loop may make.
package budget

import "fmt"

// Status represents how much of an iteration budget has been consumed.
type Status int

const (
	// StatusOK indicates passes remain.
	StatusOK Status = iota
	// StatusLastPass indicates the next pass is the final one allowed.
	StatusLastPass
	// StatusExhausted indicates the cap has been reached.
	StatusExhausted
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusLastPass:
		return "LastPass"
	case StatusExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// Governor counts think/act passes of one loop instance against a cap.
// Reaching the cap is a normal termination trigger, not an error: a loop
// governed by cap N performs at most N passes.
//
// A Governor is owned by a single loop and is not safe for concurrent use.
type Governor struct {
	limit int
	count int
}

// NewGovernor creates a governor allowing limit passes. Limits below one are
// raised to one so every loop gets at least a single pass.
func NewGovernor(limit int) *Governor {
	if limit < 1 {
		limit = 1
	}
	return &Governor{limit: limit}
}

// Tick records one pass and returns the new count.
func (g *Governor) Tick() int {
	g.count++
	return g.count
}

// Count returns the number of passes recorded so far.
func (g *Governor) Count() int {
	return g.count
}

// Limit returns the configured cap.
func (g *Governor) Limit() int {
	return g.limit
}

// Remaining returns how many passes are still allowed.
func (g *Governor) Remaining() int {
	if r := g.limit - g.count; r > 0 {
		return r
	}
	return 0
}

// Exhausted reports whether the count has reached or exceeded the cap.
func (g *Governor) Exhausted() bool {
	return g.count >= g.limit
}

// Status returns the current consumption status.
func (g *Governor) Status() Status {
	switch {
	case g.count >= g.limit:
		return StatusExhausted
	case g.count == g.limit-1:
		return StatusLastPass
	default:
		return StatusOK
	}
}

// String implements fmt.Stringer.
func (g *Governor) String() string {
	return fmt.Sprintf("%d/%d", g.count, g.limit)
}
