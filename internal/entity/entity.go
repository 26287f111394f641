package entity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/steward/internal/api"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/sensor"
	"github.com/giantswarm/steward/pkg/logging"
)

const entitySubsystem = "Entity"

// ErrConfigFrozen is returned when configuring an entity that already left
// CREATED.
var ErrConfigFrozen = errors.New("configuration is immutable once the entity has been started")

// ErrNoManager is returned by Start and Stop on entities without a Manager.
var ErrNoManager = errors.New("entity has no lifecycle manager")

// Manager starts and stops entities. The orchestrator implements it.
type Manager interface {
	Start(ctx context.Context, e *Entity) error
	Stop(ctx context.Context, e *Entity) error
}

// StateChange describes one lifecycle transition.
type StateChange struct {
	EntityID string
	Name     string
	From     api.Lifecycle
	To       api.Lifecycle
	Err      error
	At       time.Time
}

// TransitionObserver is told about every transition. The metrics package
// implements it.
type TransitionObserver interface {
	EntityTransitioned(entityType string, to api.Lifecycle)
}

// Option customizes an Entity.
type Option func(*Entity)

// WithManager sets the lifecycle manager used by Start and Stop.
func WithManager(m Manager) Option {
	return func(e *Entity) {
		e.manager = m
	}
}

// WithRegistryOptions passes options to the entity's sensor registry.
func WithRegistryOptions(opts ...sensor.RegistryOption) Option {
	return func(e *Entity) {
		e.registryOpts = append(e.registryOpts, opts...)
	}
}

// WithTransitionObserver installs an observer for lifecycle transitions.
func WithTransitionObserver(o TransitionObserver) Option {
	return func(e *Entity) {
		e.observer = o
	}
}

const subscriberBufferSize = 16

// Entity is a managed node of the entity tree.
type Entity struct {
	id           string
	entityType   string
	manager      Manager
	observer     TransitionObserver
	registryOpts []sensor.RegistryOption
	registry     *sensor.Registry

	mu        sync.RWMutex
	name      string
	config    map[string]any
	state     api.Lifecycle
	lastError error
	parent    *Entity
	children  []*Entity
	location  *location.Location
	destroyed bool
	problems  map[string]struct{}

	subsMu      sync.Mutex
	subscribers map[chan StateChange]struct{}
}

// New creates an entity in state CREATED.
func New(spec Spec, opts ...Option) (*Entity, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("%s-%s", spec.Type, id[:8])
	}

	e := &Entity{
		id:          id,
		entityType:  spec.Type,
		name:        name,
		config:      spec.Clone().Config,
		state:       api.LifecycleCreated,
		problems:    make(map[string]struct{}),
		subscribers: make(map[chan StateChange]struct{}),
	}
	if e.config == nil {
		e.config = make(map[string]any)
	}
	for _, opt := range opts {
		opt(e)
	}

	regOpts := append([]sensor.RegistryOption{sensor.WithOwner(name)}, e.registryOpts...)
	e.registry = sensor.NewRegistry(regOpts...)
	e.registry.SetAttribute(sensor.ServiceState, string(api.LifecycleCreated))
	e.registry.Declare(sensor.ServiceUp)

	return e, nil
}

// GetID returns the immutable unique ID.
func (e *Entity) GetID() string {
	return e.id
}

// GetType returns the entity type.
func (e *Entity) GetType() string {
	return e.entityType
}

// GetName returns the display name.
func (e *Entity) GetName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.name
}

// SetName changes the display name.
func (e *Entity) SetName(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.name = name
}

// GetState returns the lifecycle state.
func (e *Entity) GetState() api.Lifecycle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// GetLastError returns the error recorded by the last failed transition.
func (e *Entity) GetLastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastError
}

// Sensors returns the entity's sensor registry.
func (e *Entity) Sensors() *sensor.Registry {
	return e.registry
}

// GetAttribute returns the current value of a sensor.
func (e *Entity) GetAttribute(name string) (any, bool) {
	return e.registry.GetAttribute(name)
}

// GetConfig returns one config value.
func (e *Entity) GetConfig(key string) (any, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.config[key]
	return v, ok
}

// GetConfigString returns a config value rendered as a string, or def.
func (e *Entity) GetConfigString(key, def string) string {
	v, ok := e.GetConfig(key)
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

// ConfigMap returns a copy of the configuration.
func (e *Entity) ConfigMap() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]any, len(e.config))
	for k, v := range e.config {
		out[k] = v
	}
	return out
}

// Configure sets a config value. Only allowed in CREATED.
func (e *Entity) Configure(key string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != api.LifecycleCreated {
		return fmt.Errorf("configure %s on %s: %w", key, e.name, ErrConfigFrozen)
	}
	e.config[key] = value
	return nil
}

// Spec returns the spec the entity would be recreated from.
func (e *Entity) Spec() Spec {
	return Spec{Type: e.entityType, Name: e.GetName(), Config: e.ConfigMap()}
}

// GetLocation returns the location the entity runs on, if any.
func (e *Entity) GetLocation() *location.Location {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.location
}

// SetLocation records the location the entity runs on. nil clears it.
func (e *Entity) SetLocation(loc *location.Location) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.location = loc
}

// Start asks the manager to start the entity.
func (e *Entity) Start(ctx context.Context) error {
	if e.manager == nil {
		return ErrNoManager
	}
	return e.manager.Start(ctx, e)
}

// Stop asks the manager to stop the entity.
func (e *Entity) Stop(ctx context.Context) error {
	if e.manager == nil {
		return ErrNoManager
	}
	return e.manager.Stop(ctx, e)
}

// Transition moves the entity to a new state if the transition is legal and
// writes it to the service.state sensor.
func (e *Entity) Transition(to api.Lifecycle) error {
	return e.transition(to, nil)
}

// Fail moves the entity to ON_FIRE and records cause.
func (e *Entity) Fail(cause error) error {
	return e.transition(api.LifecycleOnFire, cause)
}

func (e *Entity) transition(to api.Lifecycle, cause error) error {
	e.mu.Lock()
	from := e.state
	if !api.CanTransition(from, to) {
		e.mu.Unlock()
		return &api.TransitionError{Entity: e.name, From: from, To: to}
	}
	e.state = to
	if to == api.LifecycleOnFire {
		e.lastError = cause
	} else if to == api.LifecycleStarting {
		e.lastError = nil
	}
	e.registry.SetAttribute(sensor.ServiceState, string(to))
	parent := e.parent
	name := e.name
	e.mu.Unlock()

	change := StateChange{
		EntityID: e.id,
		Name:     name,
		From:     from,
		To:       to,
		Err:      cause,
		At:       time.Now(),
	}

	if to == api.LifecycleOnFire {
		logging.Error(entitySubsystem, cause, "Entity %s (%s) is ON_FIRE", name, e.entityType)
	} else {
		logging.Debug(entitySubsystem, "Entity %s (%s) %s -> %s", name, e.entityType, from, to)
	}

	// Notify outside of the lock to avoid deadlocks
	if e.observer != nil {
		e.observer.EntityTransitioned(e.entityType, to)
	}
	if parent != nil {
		parent.childChanged(e, to)
	}
	e.publish(change)
	return nil
}

// childChanged maintains the service.problems sensor listing failed children.
func (e *Entity) childChanged(child *Entity, to api.Lifecycle) {
	name := child.GetName()

	e.mu.Lock()
	_, had := e.problems[name]
	if to == api.LifecycleOnFire {
		e.problems[name] = struct{}{}
	} else {
		delete(e.problems, name)
	}
	changed := had != (to == api.LifecycleOnFire)
	problems := e.problemsLocked()
	e.mu.Unlock()

	if changed {
		e.registry.SetAttribute(sensor.ServiceProblems, problems)
		if to == api.LifecycleOnFire {
			logging.Warn(entitySubsystem, "Child %s of %s is ON_FIRE", name, e.GetName())
		}
	}
}

func (e *Entity) problemsLocked() []string {
	out := make([]string, 0, len(e.problems))
	for name := range e.problems {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Problems returns the names of children currently ON_FIRE.
func (e *Entity) Problems() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.problemsLocked()
}

// Subscribe returns a channel receiving every subsequent state change and a
// function ending the subscription. Slow subscribers miss changes rather
// than block transitions.
func (e *Entity) Subscribe() (<-chan StateChange, func()) {
	ch := make(chan StateChange, subscriberBufferSize)

	e.subsMu.Lock()
	e.subscribers[ch] = struct{}{}
	e.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.subsMu.Lock()
			if _, ok := e.subscribers[ch]; ok {
				delete(e.subscribers, ch)
				close(ch)
			}
			e.subsMu.Unlock()
		})
	}
	return ch, cancel
}

func (e *Entity) publish(change StateChange) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for ch := range e.subscribers {
		select {
		case ch <- change:
		default:
			logging.Debug(entitySubsystem, "Dropping state change of %s for a slow subscriber", change.Name)
		}
	}
}

func (e *Entity) closeSubscribers() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	for ch := range e.subscribers {
		delete(e.subscribers, ch)
		close(ch)
	}
}
