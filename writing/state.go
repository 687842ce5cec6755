// Package writing holds the guided writing workflow: the per-mode state
// flows, the workspace session that drives them, and the generation stream
// that fills the document.
package writing

// Mode selects which workflow a session follows.
type Mode string

const (
	// ModeGeneral goes through an outline review before generating.
	ModeGeneral Mode = "GENERAL"
	// ModeAgent generates directly from the agent configuration.
	ModeAgent Mode = "AGENT"
)

// String returns the string representation
func (m Mode) String() string {
	return string(m)
}

// IsValid validates the mode
func (m Mode) IsValid() bool {
	switch m {
	case ModeGeneral, ModeAgent:
		return true
	default:
		return false
	}
}

// State is one stage of the workflow.
type State string

const (
	StateInput          State = "INPUT"
	StateThinking       State = "THINKING"
	StateOutlineConfirm State = "OUTLINE_CONFIRM"
	StateGenerating     State = "GENERATING"
	StateFinished       State = "FINISHED"

	// StateNone is returned when there is no next state.
	StateNone State = ""
)

// String returns the string representation
func (s State) String() string {
	return string(s)
}

// IsValid validates the state
func (s State) IsValid() bool {
	switch s {
	case StateInput, StateThinking, StateOutlineConfirm, StateGenerating, StateFinished:
		return true
	default:
		return false
	}
}

var flows = map[Mode][]State{
	ModeGeneral: {StateInput, StateThinking, StateOutlineConfirm, StateGenerating, StateFinished},
	ModeAgent:   {StateInput, StateGenerating, StateFinished},
}

// Flow returns the ordered states of mode. Unknown modes have no flow.
func Flow(mode Mode) []State {
	f := flows[mode]
	out := make([]State, len(f))
	copy(out, f)
	return out
}

func indexOf(mode Mode, s State) int {
	for i, st := range flows[mode] {
		if st == s {
			return i
		}
	}
	return -1
}

// IsValidTransition reports whether next is the immediate successor of
// current in the flow of mode. Skips and backward moves are rejected.
func IsValidTransition(mode Mode, current, next State) bool {
	ci := indexOf(mode, current)
	ni := indexOf(mode, next)
	if ci == -1 || ni == -1 {
		return false
	}
	return ni == ci+1
}

// NextState returns the successor of current, or StateNone when current is
// terminal or not part of the flow.
func NextState(mode Mode, current State) State {
	f := flows[mode]
	ci := indexOf(mode, current)
	if ci == -1 || ci == len(f)-1 {
		return StateNone
	}
	return f[ci+1]
}
