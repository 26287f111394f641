package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/steward/internal/api"
	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/sensor"
	"github.com/giantswarm/steward/pkg/logging"
)

const clusterSubsystem = "Cluster"

// EntityType is the type of the entity representing a cluster.
const EntityType = "cluster"

// ConfigClusterName is the member config key carrying the cluster name.
const ConfigClusterName = "clusterName"

// Cluster sensors.
const (
	SensorClusterName = "cluster.name"
	SensorCounter     = "cluster.counter"
	SensorGroupSize   = "group.size"
	SensorMembers     = "cluster.members"
	// SensorRunning counts the RUNNING members. It is fed through a
	// subscription as membership changes.
	SensorRunning = "cluster.running"
)

// Member identifies a member being created.
type Member struct {
	Cluster string
	Name    string
	Index   int64
}

// Customizer adjusts a member spec after the cluster set its name and
// cluster name.
type Customizer func(spec entity.Spec, m Member) entity.Spec

// Factory creates member entities. The orchestrator implements it.
type Factory interface {
	NewEntity(spec entity.Spec) (*entity.Entity, error)
}

// Metrics is told about membership changes.
type Metrics interface {
	ClusterSizeChanged(cluster string, size int)
}

// Options configure a Cluster.
type Options struct {
	Name       string
	Template   entity.Spec
	Factory    Factory
	Customizer Customizer

	// NameTemplate is a text/template with sprig functions rendering member
	// names from .cluster, .index and .type.
	NameTemplate string

	// MinSuccess is how many members of a scale-out must reach RUNNING for
	// it to succeed. 0 requires all of them.
	MinSuccess int

	// ScaleTimeout bounds a whole scale operation. 0 means no bound beyond
	// the members' own timeouts.
	ScaleTimeout time.Duration

	// MaxConcurrency bounds concurrent member starts and stops. 0 is
	// unlimited.
	MaxConcurrency int

	Metrics Metrics

	// EntityOptions are applied to the cluster's own entity.
	EntityOptions []entity.Option
}

// Cluster is a dynamically sized group of homogeneous members.
type Cluster struct {
	opts   Options
	names  *nameRenderer
	entity *entity.Entity

	counter atomic.Int64
	running *sensor.ChannelSource

	mu      sync.Mutex
	members []*entity.Entity
	indexes map[string]int64
}

// New creates a cluster without members.
func New(opts Options) (*Cluster, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("cluster requires a name")
	}
	if opts.Factory == nil {
		return nil, fmt.Errorf("cluster %s requires a member factory", opts.Name)
	}
	if err := opts.Template.Validate(); err != nil {
		return nil, fmt.Errorf("cluster %s: %w", opts.Name, err)
	}
	if opts.MinSuccess < 0 {
		return nil, fmt.Errorf("cluster %s: minSuccess must not be negative", opts.Name)
	}

	names, err := newNameRenderer(opts.NameTemplate)
	if err != nil {
		return nil, fmt.Errorf("cluster %s: %w", opts.Name, err)
	}
	if err := names.validate(opts.Name, opts.Template.Type); err != nil {
		return nil, fmt.Errorf("cluster %s: %w", opts.Name, err)
	}

	e, err := entity.New(entity.Spec{
		Type:   EntityType,
		Name:   opts.Name,
		Config: map[string]any{"memberType": opts.Template.Type},
	}, opts.EntityOptions...)
	if err != nil {
		return nil, err
	}

	c := &Cluster{
		opts:    opts,
		names:   names,
		entity:  e,
		indexes: make(map[string]int64),
	}
	c.opts.Template = opts.Template.Clone()

	reg := e.Sensors()
	reg.SetAttribute(SensorClusterName, opts.Name)
	reg.SetAttribute(SensorCounter, int64(0))
	reg.SetAttribute(SensorGroupSize, 0)
	reg.SetAttribute(SensorMembers, []string{})

	c.running = sensor.NewChannelSource()
	c.running.Publish(0)
	if _, err := reg.Register(sensor.Subscribe(c.running, sensor.Descriptor{Target: opts.Name}, SensorRunning)); err != nil {
		return nil, err
	}
	return c, nil
}

// Name returns the cluster name.
func (c *Cluster) Name() string {
	return c.opts.Name
}

// Entity returns the entity representing the cluster.
func (c *Cluster) Entity() *entity.Entity {
	return c.entity
}

// Counter returns the last member index handed out.
func (c *Cluster) Counter() int64 {
	return c.counter.Load()
}

// Members returns the members in creation order.
func (c *Cluster) Members() []*entity.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*entity.Entity, len(c.members))
	copy(out, c.members)
	return out
}

// Size returns the number of members.
func (c *Cluster) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members)
}

// Active returns the number of members STARTING or RUNNING.
func (c *Cluster) Active() int {
	n := 0
	for _, m := range c.Members() {
		switch m.GetState() {
		case api.LifecycleStarting, api.LifecycleRunning:
			n++
		}
	}
	return n
}

// MemberSpec returns the spec of the member with the given index: a clone of
// the template with the member's name and the cluster name set, passed
// through the customizer. The cluster name replaces any clusterName of the
// template.
func (c *Cluster) MemberSpec(index int64) (entity.Spec, error) {
	name, err := c.names.render(c.opts.Name, c.opts.Template.Type, index)
	if err != nil {
		return entity.Spec{}, err
	}

	spec := c.opts.Template.Clone()
	spec.Name = name
	spec = spec.With(ConfigClusterName, c.opts.Name)
	if c.opts.Customizer != nil {
		spec = c.opts.Customizer(spec, Member{Cluster: c.opts.Name, Name: name, Index: index})
	}
	return spec, nil
}

// ScaleOption adjusts a single scale operation.
type ScaleOption func(*scaleSettings)

type scaleSettings struct {
	minSuccess int
}

// AtLeast lets a scale-out succeed when k members reach RUNNING.
func AtLeast(k int) ScaleOption {
	return func(s *scaleSettings) {
		s.minSuccess = k
	}
}

func (c *Cluster) required(n int, opts []ScaleOption) int {
	s := scaleSettings{minSuccess: c.opts.MinSuccess}
	for _, opt := range opts {
		opt(&s)
	}
	if s.minSuccess <= 0 || s.minSuccess > n {
		return n
	}
	return s.minSuccess
}

func (c *Cluster) scaleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.ScaleTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.ScaleTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Cluster) group() *errgroup.Group {
	g := &errgroup.Group{}
	if c.opts.MaxConcurrency > 0 {
		g.SetLimit(c.opts.MaxConcurrency)
	}
	return g
}

// ScaleOut creates and starts n members concurrently. It returns once every
// new member is RUNNING or ON_FIRE, or the scale timeout elapsed. The error
// is a *api.ScaleError when fewer members than required reached RUNNING; the
// result always lists every member.
func (c *Cluster) ScaleOut(ctx context.Context, n int, opts ...ScaleOption) (*ScaleResult, error) {
	result := &ScaleResult{
		Cluster:   c.opts.Name,
		Operation: OperationScaleOut,
		Requested: n,
		Required:  c.required(n, opts),
		Members:   make([]MemberResult, n),
	}
	if n <= 0 {
		result.Members = nil
		return result, nil
	}

	ctx, cancel := c.scaleContext(ctx)
	defer cancel()

	logging.Info(clusterSubsystem, "Scaling out %s by %d", c.opts.Name, n)

	g := c.group()
	for i := 0; i < n; i++ {
		index := c.counter.Add(1)
		c.publishCounter()

		name, member, err := c.createMember(index)
		if err != nil {
			result.Members[i] = MemberResult{Name: name, Index: index, State: api.LifecycleCreated, Err: err}
			continue
		}

		g.Go(func() error {
			err := member.Start(ctx)
			result.Members[i] = MemberResult{
				ID:    member.GetID(),
				Name:  member.GetName(),
				Index: index,
				State: member.GetState(),
				Err:   err,
			}
			return nil
		})
	}
	_ = g.Wait()

	c.publishMembership()

	err := result.err()
	if err != nil {
		logging.Error(clusterSubsystem, err, "Scale-out of %s incomplete", c.opts.Name)
	} else {
		logging.Info(clusterSubsystem, "Scaled out %s: %d of %d members running", c.opts.Name, len(result.Succeeded()), n)
	}
	return result, err
}

func (c *Cluster) createMember(index int64) (string, *entity.Entity, error) {
	spec, err := c.MemberSpec(index)
	if err != nil {
		return fmt.Sprintf("%s#%d", c.opts.Name, index), nil, err
	}
	member, err := c.opts.Factory.NewEntity(spec)
	if err != nil {
		return spec.Name, nil, fmt.Errorf("create member %s: %w", spec.Name, err)
	}
	if err := c.entity.AddChild(member); err != nil {
		return spec.Name, nil, fmt.Errorf("add member %s: %w", spec.Name, err)
	}

	c.mu.Lock()
	c.members = append(c.members, member)
	c.indexes[member.GetID()] = index
	c.mu.Unlock()
	return spec.Name, member, nil
}

// publishCounter writes the counter under the member lock so the sensor
// never moves backwards between concurrent scale-outs.
func (c *Cluster) publishCounter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entity.Sensors().SetAttribute(SensorCounter, c.counter.Load())
}

// take removes up to n members matching pick from the member list, newest
// first, so that no other operation can select them.
func (c *Cluster) take(n int, pick func(*entity.Entity) bool) []*entity.Entity {
	c.mu.Lock()
	defer c.mu.Unlock()

	var taken []*entity.Entity
	for i := len(c.members) - 1; i >= 0 && len(taken) < n; i-- {
		if pick(c.members[i]) {
			taken = append(taken, c.members[i])
			c.members = append(c.members[:i], c.members[i+1:]...)
		}
	}
	return taken
}

func (c *Cluster) indexOf(e *entity.Entity) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexes[e.GetID()]
}

// remove stops and destroys the given members concurrently.
func (c *Cluster) remove(ctx context.Context, members []*entity.Entity, result *ScaleResult) {
	result.Members = make([]MemberResult, len(members))

	g := c.group()
	for i, m := range members {
		index := c.indexOf(m)
		g.Go(func() error {
			err := m.Destroy(ctx)
			result.Members[i] = MemberResult{
				ID:    m.GetID(),
				Name:  m.GetName(),
				Index: index,
				State: m.GetState(),
				Err:   err,
			}
			return nil
		})
	}
	_ = g.Wait()

	c.mu.Lock()
	for _, m := range members {
		delete(c.indexes, m.GetID())
	}
	c.mu.Unlock()

	c.publishMembership()
}

// ScaleIn stops and removes n RUNNING members, newest first, and returns once
// all stops completed. Asking for more members than are running stops all
// running members.
func (c *Cluster) ScaleIn(ctx context.Context, n int) (*ScaleResult, error) {
	result := &ScaleResult{Cluster: c.opts.Name, Operation: OperationScaleIn}
	if n <= 0 {
		return result, nil
	}

	victims := c.take(n, func(e *entity.Entity) bool {
		return e.GetState() == api.LifecycleRunning
	})
	if len(victims) < n {
		logging.Warn(clusterSubsystem, "Scale-in of %s by %d: only %d members running", c.opts.Name, n, len(victims))
	}
	result.Requested = len(victims)
	result.Required = len(victims)

	ctx, cancel := c.scaleContext(ctx)
	defer cancel()

	logging.Info(clusterSubsystem, "Scaling in %s by %d", c.opts.Name, len(victims))
	c.remove(ctx, victims, result)

	err := result.err()
	if err != nil {
		logging.Error(clusterSubsystem, err, "Scale-in of %s incomplete", c.opts.Name)
	}
	return result, err
}

// Resize scales out or in until desired members are active.
func (c *Cluster) Resize(ctx context.Context, desired int, opts ...ScaleOption) (*ScaleResult, error) {
	if desired < 0 {
		return nil, fmt.Errorf("cluster %s: desired size must not be negative", c.opts.Name)
	}
	active := c.Active()
	switch {
	case desired > active:
		return c.ScaleOut(ctx, desired-active, opts...)
	case desired < active:
		return c.ScaleIn(ctx, active-desired)
	default:
		return &ScaleResult{Cluster: c.opts.Name, Operation: OperationScaleOut}, nil
	}
}

// RemoveFailed destroys every ON_FIRE member, releasing whatever it still
// holds.
func (c *Cluster) RemoveFailed(ctx context.Context) (*ScaleResult, error) {
	failed := c.take(c.Size(), func(e *entity.Entity) bool {
		return e.GetState() == api.LifecycleOnFire
	})
	result := &ScaleResult{Cluster: c.opts.Name, Operation: OperationRemoveFailed}
	if len(failed) == 0 {
		return result, nil
	}

	logging.Info(clusterSubsystem, "Removing %d failed members from %s", len(failed), c.opts.Name)
	c.remove(ctx, failed, result)

	// Removed members stay ON_FIRE; only cleanup errors count.
	var errs []error
	for _, m := range result.Members {
		if m.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name, m.Err))
		}
	}
	return result, errors.Join(errs...)
}

// Start brings the cluster to initialSize members and moves the cluster
// entity to RUNNING, or ON_FIRE when the scale-out failed.
func (c *Cluster) Start(ctx context.Context, initialSize int, opts ...ScaleOption) (*ScaleResult, error) {
	if err := c.entity.Transition(api.LifecycleStarting); err != nil {
		return nil, err
	}
	result, err := c.Resize(ctx, initialSize, opts...)
	if err != nil {
		if failErr := c.entity.Fail(err); failErr != nil {
			logging.Warn(clusterSubsystem, "Could not mark %s ON_FIRE: %v", c.opts.Name, failErr)
		}
		return result, err
	}
	return result, c.entity.Transition(api.LifecycleRunning)
}

// Converge removes failed members and resizes a started cluster to desired.
// A cluster that is not RUNNING goes through a new start cycle, so a cluster
// left ON_FIRE by an earlier scale-out recovers once its members come up.
func (c *Cluster) Converge(ctx context.Context, desired int, opts ...ScaleOption) (*ScaleResult, error) {
	if removed, err := c.RemoveFailed(ctx); err != nil {
		logging.Warn(clusterSubsystem, "Cleanup of %d failed members of %s incomplete: %v", len(removed.Members), c.opts.Name, err)
	}

	switch state := c.entity.GetState(); state {
	case api.LifecycleRunning:
		result, err := c.Resize(ctx, desired, opts...)
		if err != nil {
			if failErr := c.entity.Fail(err); failErr != nil {
				logging.Warn(clusterSubsystem, "Could not mark %s ON_FIRE: %v", c.opts.Name, failErr)
			}
		}
		return result, err
	case api.LifecycleStarting, api.LifecycleStopping:
		return nil, fmt.Errorf("cluster %s is %s", c.opts.Name, state)
	default:
		return c.Start(ctx, desired, opts...)
	}
}

// Stop stops and removes every member.
func (c *Cluster) Stop(ctx context.Context) error {
	state := c.entity.GetState()
	stopping := state == api.LifecycleStarting || state == api.LifecycleRunning
	if stopping {
		if err := c.entity.Transition(api.LifecycleStopping); err != nil {
			return err
		}
	}

	members := c.take(c.Size(), func(*entity.Entity) bool { return true })
	result := &ScaleResult{Cluster: c.opts.Name, Operation: OperationScaleIn}
	c.remove(ctx, members, result)

	var errs []error
	for _, m := range result.Members {
		if m.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name, m.Err))
		}
	}
	err := errors.Join(errs...)

	if stopping {
		if err != nil {
			_ = c.entity.Fail(err)
		} else if tErr := c.entity.Transition(api.LifecycleStopped); tErr != nil {
			return tErr
		}
	}
	logging.Info(clusterSubsystem, "Stopped cluster %s", c.opts.Name)
	return err
}

// Destroy stops the cluster and destroys its entity.
func (c *Cluster) Destroy(ctx context.Context) error {
	err := c.Stop(ctx)
	err = errors.Join(err, c.entity.Destroy(ctx))
	c.running.Close()
	return err
}

func (c *Cluster) publishMembership() {
	members := c.Members()
	names := make([]string, 0, len(members))
	running := 0
	for _, m := range members {
		names = append(names, m.GetName())
		if m.GetState() == api.LifecycleRunning {
			running++
		}
	}
	c.running.Publish(running)

	reg := c.entity.Sensors()
	reg.SetAttribute(SensorGroupSize, len(members))
	reg.SetAttribute(SensorMembers, names)

	if c.opts.Metrics != nil {
		c.opts.Metrics.ClusterSizeChanged(c.opts.Name, len(members))
	}
}
