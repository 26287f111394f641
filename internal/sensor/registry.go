package sensor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/giantswarm/steward/internal/api"
	"github.com/giantswarm/steward/pkg/logging"
)

// DefaultWaitInterval is how often AssertAttributeEventually re-reads the
// attribute map.
const DefaultWaitInterval = 100 * time.Millisecond

// ErrRegistryClosed is returned by operations on a closed registry.
var ErrRegistryClosed = errors.New("sensor registry closed")

// Observer receives adapter activity. The metrics package implements it.
type Observer interface {
	PollSucceeded(sensor string)
	PollFailed(sensor string)
	SampleDiscarded(sensor string)
}

// Registry holds the attribute map of one entity and the adapters feeding it.
// All methods are safe for concurrent use.
type Registry struct {
	owner        string
	waitInterval time.Duration
	observer     Observer

	mu       sync.RWMutex
	attrs    map[string]Attribute
	declared map[string]struct{}
	owners   map[string]*Handle
	handles  map[*Handle]struct{}
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithOwner names the entity the registry belongs to. Used in log and error
// messages only.
func WithOwner(name string) RegistryOption {
	return func(r *Registry) {
		r.owner = name
	}
}

// WithWaitInterval sets how often AssertAttributeEventually re-checks.
func WithWaitInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.waitInterval = d
		}
	}
}

// WithObserver installs an observer for adapter activity.
func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) {
		r.observer = o
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		waitInterval: DefaultWaitInterval,
		attrs:        make(map[string]Attribute),
		declared:     make(map[string]struct{}),
		owners:       make(map[string]*Handle),
		handles:      make(map[*Handle]struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Owner returns the configured owner name.
func (r *Registry) Owner() string {
	return r.owner
}

// Handle is the attachment of one adapter to a registry.
type Handle struct {
	registry *Registry
	adapter  *Adapter
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

// Adapter returns the attached adapter.
func (h *Handle) Adapter() *Adapter {
	return h.adapter
}

// Detach stops the adapter and waits until it can no longer write. The
// sensor keeps its last value. Detach is idempotent.
func (h *Handle) Detach() {
	h.once.Do(func() {
		h.cancel()
		<-h.done

		r := h.registry
		r.mu.Lock()
		if r.owners[h.adapter.sensor] == h {
			delete(r.owners, h.adapter.sensor)
		}
		delete(r.handles, h)
		r.mu.Unlock()

		logging.Debug("Sensor", "Detached %s adapter for %s on %s", h.adapter.mode, h.adapter.sensor, r.owner)
	})
}

// Register attaches an adapter and starts it. A sensor can be fed by at most
// one adapter at a time; a second registration returns *api.ConflictError.
func (r *Registry) Register(a *Adapter) (*Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if _, owned := r.owners[a.sensor]; owned {
		r.mu.Unlock()
		return nil, &api.ConflictError{Sensor: a.sensor}
	}

	ctx, cancel := context.WithCancel(r.ctx)
	h := &Handle{
		registry: r,
		adapter:  a,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	r.owners[a.sensor] = h
	r.handles[h] = struct{}{}
	r.declared[a.sensor] = struct{}{}
	r.mu.Unlock()

	go func() {
		defer close(h.done)
		a.run(ctx, &handleSink{registry: r, ctx: ctx})
	}()

	logging.Debug("Sensor", "Attached %s adapter %s -> %s on %s", a.mode, a.source, a.sensor, r.owner)
	return h, nil
}

// DetachAll detaches every adapter currently attached.
func (r *Registry) DetachAll() {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.handles))
	for h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	for _, h := range handles {
		h.Detach()
	}
}

// Close detaches every adapter and aborts pending waits. Attribute values
// remain readable.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.DetachAll()
	r.cancel()
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Declare marks a sensor name as known before any value exists, so that
// waiting on it times out instead of failing with a not-found error.
func (r *Registry) Declare(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		r.declared[name] = struct{}{}
	}
}

// SetAttribute writes a value directly. Used for sensors not fed by an
// adapter, such as service.state.
func (r *Registry) SetAttribute(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLocked(name, value)
}

func (r *Registry) setLocked(name string, value any) {
	prev := r.attrs[name]
	r.attrs[name] = Attribute{
		Name:      name,
		Value:     value,
		Seq:       prev.Seq + 1,
		UpdatedAt: time.Now(),
	}
	r.declared[name] = struct{}{}
}

// GetAttribute returns the latest value of a sensor and whether one has been
// written.
func (r *Registry) GetAttribute(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attrs[name]
	return a.Value, ok
}

// Attribute returns the full record of a sensor.
func (r *Registry) Attribute(name string) (Attribute, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attrs[name]
	return a, ok
}

// Snapshot returns a copy of all sensor values.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.attrs))
	for name, a := range r.attrs {
		out[name] = a.Value
	}
	return out
}

// Attributes returns all records sorted by name.
func (r *Registry) Attributes() []Attribute {
	r.mu.RLock()
	out := make([]Attribute, 0, len(r.attrs))
	for _, a := range r.attrs {
		out = append(out, a)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Attached returns the sensor names that currently have an adapter.
func (r *Registry) Attached() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.owners))
	for name := range r.owners {
		out = append(out, name)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

func (r *Registry) known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.declared[name]; ok {
		return true
	}
	_, ok := r.attrs[name]
	return ok
}

// handleSink writes on behalf of one attached adapter. Writes are dropped
// once the attachment's context is done, so a detached adapter never
// overwrites a value.
type handleSink struct {
	registry *Registry
	ctx      context.Context
}

func (s *handleSink) apply(a *Adapter, raw any) {
	r := s.registry
	value, err := a.transform(raw)
	if err != nil {
		logging.Warn("Sensor", "Discarding sample for %s on %s: %v", a.sensor, r.owner, err)
		if r.observer != nil {
			r.observer.SampleDiscarded(a.sensor)
		}
		return
	}

	r.mu.Lock()
	if s.ctx.Err() == nil {
		r.setLocked(a.sensor, value)
		a.samples.Add(1)
	}
	r.mu.Unlock()
}

func (s *handleSink) fetchFailed(a *Adapter, err error, failures int, next time.Duration) {
	r := s.registry
	logging.Debug("Sensor", "Fetch of %s for %s on %s failed (%d in a row, next in %s): %v",
		a.source, a.sensor, r.owner, failures, next, err)
	if r.observer != nil {
		r.observer.PollFailed(a.sensor)
	}
}

func (s *handleSink) fetchSucceeded(a *Adapter) {
	if o := s.registry.observer; o != nil {
		o.PollSucceeded(a.sensor)
	}
}
