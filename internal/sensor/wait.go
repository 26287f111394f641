package sensor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/steward/internal/api"
)

// Predicate decides whether a sensor value satisfies a condition.
type Predicate func(v any) bool

// IsTrue matches boolean true and its common string or numeric renderings.
var IsTrue Predicate = func(v any) bool {
	b, err := ToBool(v)
	if err != nil {
		return false
	}
	return b.(bool)
}

// NotNil matches any value that is present.
var NotNil Predicate = func(v any) bool {
	return v != nil
}

// EqualTo matches values deeply equal to expected. Numbers compare by value
// regardless of their Go type.
func EqualTo(expected any) Predicate {
	return func(v any) bool {
		if reflect.DeepEqual(v, expected) {
			return true
		}
		return isNumber(v) && isNumber(expected) && numbersEqual(v, expected)
	}
}

// AssertAttributeEventually blocks until the sensor's value satisfies pred,
// the timeout elapses, ctx is cancelled or the registry is closed.
//
// An unknown sensor fails immediately with *api.NotFoundError. A timeout
// returns *api.TimeoutError carrying the last observed value, or noting
// that the sensor was never sampled.
func (r *Registry) AssertAttributeEventually(ctx context.Context, name string, pred Predicate, timeout time.Duration) error {
	if pred == nil {
		return fmt.Errorf("no predicate given for sensor %s", name)
	}
	if !r.known(name) {
		return api.NewSensorNotFoundError(name)
	}
	if r.Closed() {
		return ErrRegistryClosed
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(r.ctx, cancel)
	defer stop()

	err := wait.PollUntilContextCancel(waitCtx, r.waitInterval, true, func(context.Context) (bool, error) {
		v, ok := r.GetAttribute(name)
		return ok && pred(v), nil
	})
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("waiting for sensor %s: %w", name, ctx.Err())
	}
	if r.ctx.Err() != nil {
		return ErrRegistryClosed
	}
	if wait.Interrupted(err) || errors.Is(err, context.DeadlineExceeded) {
		v, sampled := r.GetAttribute(name)
		return &api.TimeoutError{
			Sensor:    name,
			Timeout:   timeout,
			Sampled:   sampled,
			LastValue: v,
		}
	}
	return err
}

// AttributeEqualsEventually waits for the sensor to equal expected.
func (r *Registry) AttributeEqualsEventually(ctx context.Context, name string, expected any, timeout time.Duration) error {
	return r.AssertAttributeEventually(ctx, name, EqualTo(expected), timeout)
}
