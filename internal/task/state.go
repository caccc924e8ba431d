package task

// State is the run-axis state of a task, derived from its last run.
type State int

const (
	StatePending State = iota
	StateCoolingDown
	StateDue
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCoolingDown:
		return "cooling-down"
	case StateDue:
		return "due"
	default:
		return "unknown"
	}
}
