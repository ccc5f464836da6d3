package researcher

// State is a researcher loop state.
type State int

const (
	// StateResearch asks the model for the next tool calls.
	StateResearch State = iota
	// StateHandleTools executes the calls of the last assistant message.
	StateHandleTools
	// StateCompress condenses the whole conversation into findings.
	StateCompress
	// StateEnd is terminal.
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateResearch:
		return "research"
	case StateHandleTools:
		return "handle_tools"
	case StateCompress:
		return "compress"
	case StateEnd:
		return "end"
	default:
		return "unknown"
	}
}
