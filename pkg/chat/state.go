package chat

// State is where the current request of a Session stands.
type State int

const (
	StateIdle State = iota
	StateCompiling
	StateAwaitingFirstFragment
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCompiling:
		return "compiling"
	case StateAwaitingFirstFragment:
		return "awaiting-first-fragment"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// IsTerminal reports whether the request has ended.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// IsBusy reports whether a request is in flight.
func (s State) IsBusy() bool {
	return s == StateCompiling || s == StateAwaitingFirstFragment || s == StateStreaming
}

func (s State) canTransitionTo(next State) bool {
	switch next {
	case StateIdle:
		return !s.IsBusy()
	case StateCompiling:
		return s == StateIdle || s.IsTerminal()
	case StateAwaitingFirstFragment:
		return s == StateCompiling
	case StateStreaming:
		return s == StateAwaitingFirstFragment
	case StateCompleted:
		return s == StateStreaming || s == StateAwaitingFirstFragment
	case StateFailed, StateCancelled:
		return s.IsBusy()
	}
	return false
}
