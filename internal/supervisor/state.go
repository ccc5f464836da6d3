package supervisor

// State is a supervisor loop state.
type State int

const (
	// StateClarify decides whether the request needs a clarifying question.
	StateClarify State = iota
	// StateWriteBrief turns the conversation into a research brief.
	StateWriteBrief
	// StateSupervise asks the model which topics to delegate.
	StateSupervise
	// StateHandleTools runs the delegations of the last assistant message.
	StateHandleTools
	// StateWriteReport writes the final report from the collected notes.
	StateWriteReport
	// StateEnd is terminal.
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateClarify:
		return "clarify"
	case StateWriteBrief:
		return "write_brief"
	case StateSupervise:
		return "supervise"
	case StateHandleTools:
		return "handle_tools"
	case StateWriteReport:
		return "write_report"
	case StateEnd:
		return "end"
	default:
		return "unknown"
	}
}
