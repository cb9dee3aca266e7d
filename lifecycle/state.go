package lifecycle

// State is the lifecycle state of a single module.
type State int

const (
	StateRegistered State = iota
	StateSettingUp
	StateSetUp
	StateStarting
	StateStarted
	StateFailed
)

var stateNames = [...]string{
	StateRegistered: "registered",
	StateSettingUp:  "settingUp",
	StateSetUp:      "setUp",
	StateStarting:   "starting",
	StateStarted:    "started",
	StateFailed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateStarted || s == StateFailed
}

// CanTransition reports whether a module in state s may move to next.
// States only advance one step at a time; any non-terminal state may fail.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return next == s+1
}
