package supervisor

// State is a step of a launch attempt.
type State int

const (
	Idle State = iota
	Discovering
	Deciding
	Terminating
	EnvPreparing
	Spawning
	Done
	Failed
)

var stateNames = [...]string{"idle", "discovering", "deciding", "terminating", "env-preparing", "spawning", "done", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText makes states readable in JSON results.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Trigger says what started an attempt.
type Trigger int

const (
	// TriggerGameReady is the passive path: launch only when nothing runs.
	TriggerGameReady Trigger = iota + 1
	// TriggerLaunch replaces any running instance.
	TriggerLaunch
)

func (t Trigger) String() string {
	switch t {
	case TriggerGameReady:
		return "ready"
	case TriggerLaunch:
		return "launch"
	default:
		return "unknown"
	}
}

func (t Trigger) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
