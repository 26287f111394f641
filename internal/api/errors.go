package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// NotFoundError represents a resource that does not exist, such as a sensor
// nothing will ever write, an unknown entity type or a missing cluster member.
type NotFoundError struct {
	// ResourceType categorizes the resource ("sensor", "entity type", "cluster", ...)
	ResourceType string

	// ResourceName is the identifier that was looked up
	ResourceName string

	// Message overrides the default message when set
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s not found", e.ResourceType, e.ResourceName)
}

// NewNotFoundError creates a NotFoundError for the given resource.
func NewNotFoundError(resourceType, resourceName string) *NotFoundError {
	return &NotFoundError{
		ResourceType: resourceType,
		ResourceName: resourceName,
	}
}

// NewSensorNotFoundError reports a sensor that was never declared, never written
// and has no adapter attached.
func NewSensorNotFoundError(name string) *NotFoundError {
	return NewNotFoundError("sensor", name)
}

// NewEntityTypeNotFoundError reports a type missing from the driver catalog.
func NewEntityTypeNotFoundError(name string) *NotFoundError {
	return NewNotFoundError("entity type", name)
}

// IsNotFound checks if an error is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

// TimeoutError is returned when an eventual-consistency wait expires before its
// predicate held. Sampled distinguishes "never sampled" from "sampled but did
// not match".
type TimeoutError struct {
	Sensor    string
	Timeout   time.Duration
	Sampled   bool
	LastValue any
}

func (e *TimeoutError) Error() string {
	if !e.Sampled {
		return fmt.Sprintf("sensor %s was never sampled within %s", e.Sensor, e.Timeout)
	}
	return fmt.Sprintf("sensor %s did not reach the expected value within %s (last value: %v)", e.Sensor, e.Timeout, e.LastValue)
}

// IsTimeout checks if an error is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// ConflictError is returned when a second adapter tries to own a sensor name
// that is already written by another attached adapter.
type ConflictError struct {
	Sensor string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sensor %s already has an attached adapter", e.Sensor)
}

// IsConflict checks if an error is or wraps a ConflictError.
func IsConflict(err error) bool {
	var conflictErr *ConflictError
	return errors.As(err, &conflictErr)
}

// TransitionError reports an illegal lifecycle transition.
type TransitionError struct {
	Entity string
	From   Lifecycle
	To     Lifecycle
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("entity %s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// IsTransitionError checks if an error is or wraps a TransitionError.
func IsTransitionError(err error) bool {
	var transitionErr *TransitionError
	return errors.As(err, &transitionErr)
}

// Phase names the lifecycle step that failed.
type Phase string

const (
	PhaseAcquire   Phase = "acquire"
	PhaseLaunch    Phase = "launch"
	PhaseSensors   Phase = "sensors"
	PhaseReadiness Phase = "readiness"
	PhaseTerminate Phase = "terminate"
	PhaseRelease   Phase = "release"
)

// LifecycleError is the structured failure surfaced by the orchestrator when
// a start or stop step fails. The entity is ON_FIRE when a start step failed.
type LifecycleError struct {
	Entity string
	Phase  Phase
	Err    error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("entity %s failed during %s: %v", e.Entity, e.Phase, e.Err)
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// IsLifecycleError checks if an error is or wraps a LifecycleError.
func IsLifecycleError(err error) bool {
	var lifecycleErr *LifecycleError
	return errors.As(err, &lifecycleErr)
}

// FailedPhase returns the phase of the first LifecycleError in err's chain.
func FailedPhase(err error) (Phase, bool) {
	var lifecycleErr *LifecycleError
	if errors.As(err, &lifecycleErr) {
		return lifecycleErr.Phase, true
	}
	return "", false
}

// ScaleError reports a scale operation in which fewer members than required
// reached their target state. It never replaces the per-member results; it
// summarizes them.
type ScaleError struct {
	Cluster   string
	Operation string
	Requested int
	Required  int
	Succeeded []string
	Failed    map[string]error
}

func (e *ScaleError) Error() string {
	failed := make([]string, 0, len(e.Failed))
	for name, err := range e.Failed {
		failed = append(failed, fmt.Sprintf("%s: %v", name, err))
	}
	sort.Strings(failed)
	return fmt.Sprintf("cluster %s %s: %d of %d members succeeded (required %d); failed: [%s]",
		e.Cluster, e.Operation, len(e.Succeeded), e.Requested, e.Required, strings.Join(failed, "; "))
}

// IsScaleError checks if an error is or wraps a ScaleError.
func IsScaleError(err error) bool {
	var scaleErr *ScaleError
	return errors.As(err, &scaleErr)
}
