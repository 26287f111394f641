package cluster

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/giantswarm/steward/internal/api"
	"github.com/giantswarm/steward/internal/entity"
)

// fakeManager runs start hooks instead of launching anything.
type fakeManager struct {
	// ready decides the outcome of a start; nil means success.
	ready func(ctx context.Context, e *entity.Entity) error

	current atomic.Int64
	peak    atomic.Int64

	mu      sync.Mutex
	stopped []string
}

func (m *fakeManager) Start(ctx context.Context, e *entity.Entity) error {
	n := m.current.Add(1)
	defer m.current.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if err := e.Transition(api.LifecycleStarting); err != nil {
		return err
	}
	if m.ready != nil {
		if err := m.ready(ctx, e); err != nil {
			lerr := &api.LifecycleError{Entity: e.GetName(), Phase: api.PhaseLaunch, Err: err}
			_ = e.Fail(lerr)
			return lerr
		}
	}
	return e.Transition(api.LifecycleRunning)
}

func (m *fakeManager) Stop(_ context.Context, e *entity.Entity) error {
	m.mu.Lock()
	m.stopped = append(m.stopped, e.GetName())
	m.mu.Unlock()

	if e.GetState() == api.LifecycleOnFire {
		return nil
	}
	if err := e.Transition(api.LifecycleStopping); err != nil {
		return err
	}
	return e.Transition(api.LifecycleStopped)
}

func (m *fakeManager) Stopped() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.stopped))
	copy(out, m.stopped)
	return out
}

// fakeFactory creates entities managed by its manager.
type fakeFactory struct {
	manager *fakeManager
	reject  map[string]bool
}

func (f *fakeFactory) NewEntity(spec entity.Spec) (*entity.Entity, error) {
	if f.reject[spec.Name] {
		return nil, fmt.Errorf("entity type %s rejected", spec.Type)
	}
	return entity.New(spec, entity.WithManager(f.manager))
}

func failNamed(names ...string) func(context.Context, *entity.Entity) error {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(_ context.Context, e *entity.Entity) error {
		if set[e.GetName()] {
			return fmt.Errorf("launch of %s failed", e.GetName())
		}
		return nil
	}
}

type recordingMetrics struct {
	mu    sync.Mutex
	sizes []int
}

func (r *recordingMetrics) ClusterSizeChanged(_ string, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sizes = append(r.sizes, size)
}
