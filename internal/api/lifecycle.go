package api

import "fmt"

// Lifecycle is the state of an entity.
type Lifecycle string

const (
	LifecycleCreated  Lifecycle = "CREATED"
	LifecycleStarting Lifecycle = "STARTING"
	LifecycleRunning  Lifecycle = "RUNNING"
	LifecycleStopping Lifecycle = "STOPPING"
	LifecycleStopped  Lifecycle = "STOPPED"
	LifecycleOnFire   Lifecycle = "ON_FIRE"
)

// AllLifecycles lists every state in declaration order.
var AllLifecycles = []Lifecycle{
	LifecycleCreated,
	LifecycleStarting,
	LifecycleRunning,
	LifecycleStopping,
	LifecycleStopped,
	LifecycleOnFire,
}

func (l Lifecycle) String() string {
	return string(l)
}

// IsTerminal reports whether l ends a lifecycle cycle. Leaving a terminal state
// requires an explicit new start cycle.
func (l Lifecycle) IsTerminal() bool {
	return l == LifecycleStopped || l == LifecycleOnFire
}

// Valid reports whether l is one of the declared states.
func (l Lifecycle) Valid() bool {
	for _, s := range AllLifecycles {
		if s == l {
			return true
		}
	}
	return false
}

// ParseLifecycle converts a state name into a Lifecycle.
func ParseLifecycle(s string) (Lifecycle, error) {
	l := Lifecycle(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown lifecycle state %q", s)
	}
	return l, nil
}

var transitions = map[Lifecycle][]Lifecycle{
	LifecycleCreated:  {LifecycleStarting},
	LifecycleStarting: {LifecycleRunning, LifecycleStopping},
	LifecycleRunning:  {LifecycleStopping},
	LifecycleStopping: {LifecycleStopped},
	// A new start cycle may reuse the entity identity.
	LifecycleStopped: {LifecycleStarting},
	LifecycleOnFire:  {LifecycleStarting},
}

// CanTransition reports whether an entity may move from one state to another.
// Any non-terminal state may move to ON_FIRE.
func CanTransition(from, to Lifecycle) bool {
	if to == LifecycleOnFire {
		return !from.IsTerminal()
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
