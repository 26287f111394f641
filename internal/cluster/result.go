package cluster

import (
	"github.com/giantswarm/steward/internal/api"
)

// Scale operations.
const (
	OperationScaleOut     = "scale-out"
	OperationScaleIn      = "scale-in"
	OperationRemoveFailed = "remove-failed"
)

// MemberResult is the outcome of one member in a scale operation.
type MemberResult struct {
	ID    string
	Name  string
	Index int64
	State api.Lifecycle
	Err   error
}

// OK reports whether the member reached the operation's target state.
func (m MemberResult) OK(target api.Lifecycle) bool {
	return m.Err == nil && m.State == target
}

// ScaleResult collects the member results of one scale operation.
type ScaleResult struct {
	Cluster   string
	Operation string
	Requested int
	Required  int
	Members   []MemberResult
}

func (r *ScaleResult) target() api.Lifecycle {
	if r.Operation == OperationScaleOut {
		return api.LifecycleRunning
	}
	return api.LifecycleStopped
}

// Succeeded returns the members that reached the target state.
func (r *ScaleResult) Succeeded() []MemberResult {
	var out []MemberResult
	for _, m := range r.Members {
		if m.OK(r.target()) {
			out = append(out, m)
		}
	}
	return out
}

// Failed returns the members that did not reach the target state.
func (r *ScaleResult) Failed() []MemberResult {
	var out []MemberResult
	for _, m := range r.Members {
		if !m.OK(r.target()) {
			out = append(out, m)
		}
	}
	return out
}

// err returns a *api.ScaleError when fewer than Required members succeeded.
func (r *ScaleResult) err() error {
	succeeded := r.Succeeded()
	if len(succeeded) >= r.Required {
		return nil
	}

	scaleErr := &api.ScaleError{
		Cluster:   r.Cluster,
		Operation: r.Operation,
		Requested: r.Requested,
		Required:  r.Required,
		Failed:    make(map[string]error),
	}
	for _, m := range succeeded {
		scaleErr.Succeeded = append(scaleErr.Succeeded, m.Name)
	}
	for _, m := range r.Failed() {
		err := m.Err
		if err == nil {
			err = &api.TransitionError{Entity: m.Name, From: m.State, To: r.target()}
		}
		scaleErr.Failed[m.Name] = err
	}
	return scaleErr
}
