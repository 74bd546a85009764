package primitives

// State is an opaque, caller-chosen state label.
type State string

// Terminal marks a finished saga instance. It is never a valid label for a
// declared state.
const Terminal State = ""

// IsTerminal reports whether s is the terminal marker.
func (s State) IsTerminal() bool {
	return s == Terminal
}

func (s State) String() string {
	if s == Terminal {
		return "<terminal>"
	}
	return string(s)
}
