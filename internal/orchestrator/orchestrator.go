package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/giantswarm/steward/internal/api"
	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/sensor"
	"github.com/giantswarm/steward/pkg/logging"
)

const orchestratorSubsystem = "Orchestrator"

const (
	DefaultLaunchAttempts   = 3
	DefaultLaunchBackoff    = 2 * time.Second
	DefaultReadinessTimeout = 5 * time.Minute
)

// Config holds the collaborators and settings of an Orchestrator.
type Config struct {
	Catalog   *Catalog
	Locations location.Provider
	Launcher  Launcher

	// LaunchAttempts bounds the launch retry loop within STARTING.
	LaunchAttempts int
	LaunchBackoff  time.Duration

	// ReadinessTimeouts override the driver default per entity type.
	ReadinessTimeouts map[string]time.Duration

	// FallbackReadinessTimeout applies to drivers without a default of
	// their own. 0 uses DefaultReadinessTimeout.
	FallbackReadinessTimeout time.Duration

	// SensorOptions are passed to every driver when building adapters.
	SensorOptions []sensor.Option

	// EntityOptions are applied to entities created through NewEntity.
	EntityOptions []entity.Option

	Observer Observer
}

// startOp tracks a start in progress so that Stop can interrupt it.
type startOp struct {
	cancel        context.CancelFunc
	done          chan struct{}
	stopRequested bool
}

// Orchestrator implements entity.Manager.
type Orchestrator struct {
	catalog   *Catalog
	locations location.Provider
	launcher  Launcher

	launchAttempts    int
	launchBackoff     time.Duration
	readinessTimeouts map[string]time.Duration
	fallbackReadiness time.Duration
	sensorOptions     []sensor.Option
	entityOptions     []entity.Option
	observer          Observer

	mu       sync.Mutex
	inflight map[string]*startOp
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("orchestrator requires a catalog")
	}
	if cfg.Locations == nil {
		return nil, fmt.Errorf("orchestrator requires a location provider")
	}
	if cfg.Launcher == nil {
		return nil, fmt.Errorf("orchestrator requires a launcher")
	}

	o := &Orchestrator{
		catalog:           cfg.Catalog,
		locations:         cfg.Locations,
		launcher:          cfg.Launcher,
		launchAttempts:    cfg.LaunchAttempts,
		launchBackoff:     cfg.LaunchBackoff,
		readinessTimeouts: make(map[string]time.Duration),
		fallbackReadiness: cfg.FallbackReadinessTimeout,
		sensorOptions:     cfg.SensorOptions,
		entityOptions:     cfg.EntityOptions,
		observer:          cfg.Observer,
		inflight:          make(map[string]*startOp),
	}
	if o.launchAttempts <= 0 {
		o.launchAttempts = DefaultLaunchAttempts
	}
	if o.launchBackoff <= 0 {
		o.launchBackoff = DefaultLaunchBackoff
	}
	for t, d := range cfg.ReadinessTimeouts {
		o.readinessTimeouts[t] = d
	}
	return o, nil
}

// Catalog returns the driver catalog.
func (o *Orchestrator) Catalog() *Catalog {
	return o.catalog
}

// NewEntity creates an entity of a registered type managed by o.
func (o *Orchestrator) NewEntity(spec entity.Spec) (*entity.Entity, error) {
	if _, err := o.catalog.Lookup(spec.Type); err != nil {
		return nil, err
	}
	opts := append([]entity.Option{entity.WithManager(o)}, o.entityOptions...)
	return entity.New(spec, opts...)
}

// ReadinessTimeout returns the readiness timeout used for an entity type.
func (o *Orchestrator) ReadinessTimeout(d Driver) time.Duration {
	if t, ok := o.readinessTimeouts[d.Type()]; ok && t > 0 {
		return t
	}
	if t := d.ReadinessTimeout(); t > 0 {
		return t
	}
	if o.fallbackReadiness > 0 {
		return o.fallbackReadiness
	}
	return DefaultReadinessTimeout
}

// Start runs the start sequence. Starting a RUNNING entity is a no-op.
func (o *Orchestrator) Start(ctx context.Context, e *entity.Entity) error {
	if e.GetState() == api.LifecycleRunning {
		return nil
	}

	driver, err := o.catalog.Lookup(e.GetType())
	if err != nil {
		return err
	}

	startCtx, cancel := context.WithCancel(ctx)
	op := &startOp{cancel: cancel, done: make(chan struct{})}
	o.mu.Lock()
	if _, busy := o.inflight[e.GetID()]; busy {
		o.mu.Unlock()
		cancel()
		return &api.TransitionError{Entity: e.GetName(), From: api.LifecycleStarting, To: api.LifecycleStarting}
	}
	o.inflight[e.GetID()] = op
	o.mu.Unlock()

	finish := func() bool {
		cancel()
		o.mu.Lock()
		delete(o.inflight, e.GetID())
		interrupted := op.stopRequested
		o.mu.Unlock()
		close(op.done)
		return interrupted
	}

	if err := e.Transition(api.LifecycleStarting); err != nil {
		finish()
		return err
	}

	began := time.Now()
	phase, err := o.start(startCtx, e, driver)
	interrupted := finish()

	if o.observer != nil {
		o.observer.StartCompleted(e.GetType(), string(phase), time.Since(began))
	}

	if err == nil {
		if err := e.Transition(api.LifecycleRunning); err != nil {
			return err
		}
		logging.Info(orchestratorSubsystem, "Entity %s (%s) is RUNNING", e.GetName(), e.GetType())
		return nil
	}

	lifecycleErr := &api.LifecycleError{Entity: e.GetName(), Phase: phase, Err: err}
	if interrupted {
		// Stop takes over from STARTING and cleans up.
		return lifecycleErr
	}
	if failErr := e.Fail(lifecycleErr); failErr != nil {
		logging.Warn(orchestratorSubsystem, "Could not mark %s ON_FIRE: %v", e.GetName(), failErr)
	}
	return lifecycleErr
}

func (o *Orchestrator) start(ctx context.Context, e *entity.Entity, driver Driver) (api.Phase, error) {
	// Leftovers of a previous cycle that ended ON_FIRE.
	e.Sensors().DetachAll()
	if e.GetLocation() != nil {
		if err := o.cleanup(ctx, e); err != nil {
			logging.Warn(orchestratorSubsystem, "Cleanup of previous run of %s failed: %v", e.GetName(), err)
		}
	}

	spec, err := driver.LocationSpec(e)
	if err != nil {
		return api.PhaseAcquire, err
	}
	loc, err := o.locations.Acquire(ctx, spec)
	if err != nil {
		return api.PhaseAcquire, err
	}
	e.SetLocation(loc)
	publishLocation(e, loc)

	if err := o.launch(ctx, e, driver, loc); err != nil {
		o.cleanupQuietly(e)
		return api.PhaseLaunch, err
	}

	if err := o.attachSensors(e, driver, loc); err != nil {
		o.cleanupQuietly(e)
		return api.PhaseSensors, err
	}

	timeout := o.ReadinessTimeout(driver)
	pred := sensor.IsTrue
	if rp, ok := driver.(ReadinessPredicate); ok {
		pred = rp.Ready()
	}
	logging.Debug(orchestratorSubsystem, "Waiting up to %s for %s on %s", timeout, driver.ReadinessSensor(), e.GetName())
	if err := e.Sensors().AssertAttributeEventually(ctx, driver.ReadinessSensor(), pred, timeout); err != nil {
		return api.PhaseReadiness, err
	}
	return "", nil
}

func publishLocation(e *entity.Entity, loc *location.Location) {
	reg := e.Sensors()
	reg.SetAttribute(sensor.HostName, loc.Host)
	for name, port := range loc.Ports {
		reg.SetAttribute(sensor.PortSensor(name), port)
	}
}

func (o *Orchestrator) launch(ctx context.Context, e *entity.Entity, driver Driver, loc *location.Location) error {
	spec, err := driver.InstallSpec(e, loc)
	if err != nil {
		return err
	}
	if spec.Name == "" {
		spec.Name = e.GetName()
	}

	backoff := wait.Backoff{
		Duration: o.launchBackoff,
		Factor:   2.0,
		Steps:    o.launchAttempts,
	}

	var lastErr error
	for attempt := 1; attempt <= o.launchAttempts; attempt++ {
		lastErr = o.launcher.Launch(ctx, loc, spec)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == o.launchAttempts {
			break
		}

		delay := backoff.Step()
		logging.Warn(orchestratorSubsystem, "Launch of %s failed (attempt %d/%d), retrying in %s: %v",
			e.GetName(), attempt, o.launchAttempts, delay, lastErr)

		// Clear a half-started process before retrying.
		if err := o.launcher.Terminate(ctx, loc); err != nil {
			logging.Debug(orchestratorSubsystem, "Terminate after failed launch of %s: %v", e.GetName(), err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("launch of %s: %w (last error: %v)", e.GetName(), ctx.Err(), lastErr)
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("launch of %s failed after %d attempt(s): %w", e.GetName(), o.launchAttempts, lastErr)
}

func (o *Orchestrator) attachSensors(e *entity.Entity, driver Driver, loc *location.Location) error {
	adapters, err := driver.Sensors(e, loc, o.sensorOptions...)
	if err != nil {
		return err
	}
	if sp, ok := o.launcher.(SensorProvider); ok {
		adapters = append(adapters, sp.Sensors(e, loc, o.sensorOptions...)...)
	}

	reg := e.Sensors()
	reg.Declare(driver.ReadinessSensor())
	for _, a := range adapters {
		if _, err := reg.Register(a); err != nil {
			reg.DetachAll()
			return err
		}
	}
	logging.Debug(orchestratorSubsystem, "Attached %d adapters to %s", len(adapters), e.GetName())
	return nil
}

// Stop detaches adapters, terminates the process and releases the location.
// Stopping an entity that is CREATED, STOPPING or STOPPED is a no-op. An
// ON_FIRE entity is cleaned up and stays ON_FIRE.
func (o *Orchestrator) Stop(ctx context.Context, e *entity.Entity) error {
	o.interruptStart(e)

	switch e.GetState() {
	case api.LifecycleCreated, api.LifecycleStopping, api.LifecycleStopped:
		return nil
	case api.LifecycleOnFire:
		if err := o.cleanup(ctx, e); err != nil {
			logging.Warn(orchestratorSubsystem, "Cleanup of failed entity %s: %v", e.GetName(), err)
			return err
		}
		return nil
	}

	if err := e.Transition(api.LifecycleStopping); err != nil {
		if api.IsTransitionError(err) {
			// Lost a race with another Stop.
			return nil
		}
		return err
	}

	if err := o.cleanup(ctx, e); err != nil {
		if failErr := e.Fail(err); failErr != nil {
			logging.Warn(orchestratorSubsystem, "Could not mark %s ON_FIRE: %v", e.GetName(), failErr)
		}
		return err
	}

	if err := e.Transition(api.LifecycleStopped); err != nil {
		return err
	}
	logging.Info(orchestratorSubsystem, "Entity %s (%s) is STOPPED", e.GetName(), e.GetType())
	return nil
}

// interruptStart cancels a start in progress and waits until it returned.
func (o *Orchestrator) interruptStart(e *entity.Entity) {
	o.mu.Lock()
	op, ok := o.inflight[e.GetID()]
	if ok {
		op.stopRequested = true
		op.cancel()
	}
	o.mu.Unlock()

	if ok {
		<-op.done
	}
}

func (o *Orchestrator) cleanup(ctx context.Context, e *entity.Entity) error {
	e.Sensors().DetachAll()
	e.Sensors().SetAttribute(sensor.ServiceUp, false)

	loc := e.GetLocation()
	if loc == nil {
		return nil
	}

	var errs []error
	if err := o.launcher.Terminate(ctx, loc); err != nil {
		errs = append(errs, &api.LifecycleError{Entity: e.GetName(), Phase: api.PhaseTerminate, Err: err})
	}
	if err := o.locations.Release(ctx, loc); err != nil {
		errs = append(errs, &api.LifecycleError{Entity: e.GetName(), Phase: api.PhaseRelease, Err: err})
	}
	if len(errs) == 0 {
		e.SetLocation(nil)
	}
	return errors.Join(errs...)
}

// cleanupQuietly is used on failed starts where the start error matters more.
func (o *Orchestrator) cleanupQuietly(e *entity.Entity) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := o.cleanup(ctx, e); err != nil {
		logging.Warn(orchestratorSubsystem, "Cleanup after failed start of %s: %v", e.GetName(), err)
	}
}
