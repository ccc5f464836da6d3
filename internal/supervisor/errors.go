package supervisor

import (
	"errors"
	"fmt"
)

// ErrEmptyReport is returned when the report step produced no text.
var ErrEmptyReport = errors.New("model returned an empty report")

// ErrNoUserMessage is returned when Run is called without a user message.
var ErrNoUserMessage = errors.New("conversation has no user message")

// RunError is returned when a run fails to produce its outcome. It names the
// step that failed and carries the last tool error seen during the run, if
// any, to help diagnose the failure.
type RunError struct {
	Stage         State
	Err           error
	LastToolError string
}

func (e *RunError) Error() string {
	msg := fmt.Sprintf("supervisor %s: %v", e.Stage, e.Err)
	if e.LastToolError != "" {
		msg += " (last tool error: " + e.LastToolError + ")"
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}
