package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/steward/internal/api"
	"github.com/giantswarm/steward/pkg/logging"
)

// GetParent returns the parent entity, or nil for a root.
func (e *Entity) GetParent() *Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.parent
}

// GetChildren returns the children in the order they were added.
func (e *Entity) GetChildren() []*Entity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Entity, len(e.children))
	copy(out, e.children)
	return out
}

// AddChild makes child a child of e. A child's parent can be set only once.
func (e *Entity) AddChild(child *Entity) error {
	if child == e {
		return fmt.Errorf("entity %s cannot be its own child", e.GetName())
	}

	child.mu.Lock()
	if child.parent != nil {
		child.mu.Unlock()
		return fmt.Errorf("entity %s already has parent %s", child.name, child.parent.GetName())
	}
	child.parent = e
	child.mu.Unlock()

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		child.mu.Lock()
		child.parent = nil
		child.mu.Unlock()
		return fmt.Errorf("entity %s has been destroyed", e.name)
	}
	e.children = append(e.children, child)
	e.mu.Unlock()

	if child.GetState() == api.LifecycleOnFire {
		e.childChanged(child, api.LifecycleOnFire)
	}
	return nil
}

// RemoveChild removes child from e's children. The child keeps running; its
// parent link is kept so it cannot be re-parented.
func (e *Entity) RemoveChild(child *Entity) bool {
	e.mu.Lock()
	removed := false
	for i, c := range e.children {
		if c == child {
			e.children = append(e.children[:i], e.children[i+1:]...)
			removed = true
			break
		}
	}
	e.mu.Unlock()

	if removed {
		e.childChanged(child, api.LifecycleStopped)
	}
	return removed
}

// Destroyed reports whether Destroy has completed.
func (e *Entity) Destroyed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.destroyed
}

// Destroy stops and destroys the children newest first, then stops e, closes
// its sensor registry and removes it from its parent. Errors are collected
// and returned together; destruction always completes.
func (e *Entity) Destroy(ctx context.Context) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return nil
	}
	e.destroyed = true
	children := make([]*Entity, len(e.children))
	copy(children, e.children)
	e.mu.Unlock()

	var errs []error
	for i := len(children) - 1; i >= 0; i-- {
		if err := children[i].Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if e.manager != nil {
		switch e.GetState() {
		case api.LifecycleStarting, api.LifecycleRunning, api.LifecycleOnFire:
			if err := e.manager.Stop(ctx, e); err != nil {
				errs = append(errs, fmt.Errorf("stop %s: %w", e.GetName(), err))
			}
		}
	}

	e.registry.Close()
	e.closeSubscribers()

	if parent := e.GetParent(); parent != nil {
		parent.RemoveChild(e)
	}

	logging.Debug(entitySubsystem, "Destroyed entity %s", e.GetName())
	return errors.Join(errs...)
}
