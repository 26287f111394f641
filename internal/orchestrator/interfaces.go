package orchestrator

import (
	"context"
	"time"

	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/sensor"
)

// PortMapping exposes a process port on an allocated location port.
type PortMapping struct {
	Name          string
	HostPort      int
	ContainerPort int
}

// InstallSpec tells a Launcher what to run.
type InstallSpec struct {
	// Name identifies the process, unique among running processes.
	Name    string
	Image   string
	Command []string
	Env     map[string]string
	Ports   []PortMapping
	Labels  map[string]string
}

// Launcher installs and runs processes on locations.
type Launcher interface {
	Launch(ctx context.Context, loc *location.Location, spec InstallSpec) error
	Terminate(ctx context.Context, loc *location.Location) error
}

// SensorProvider is implemented by launchers that can observe the processes
// they run, such as container state or pod phase.
type SensorProvider interface {
	Sensors(e *entity.Entity, loc *location.Location, opts ...sensor.Option) []*sensor.Adapter
}

// Driver is the capability set of one entity type.
type Driver interface {
	// Type is the name the driver is registered under.
	Type() string

	// LocationSpec lists the ports an entity needs.
	LocationSpec(e *entity.Entity) (location.Spec, error)

	// InstallSpec describes the process to launch on loc.
	InstallSpec(e *entity.Entity, loc *location.Location) (InstallSpec, error)

	// Sensors returns the adapters feeding the entity's attributes. opts
	// carry the configured poll settings and come before driver options.
	Sensors(e *entity.Entity, loc *location.Location, opts ...sensor.Option) ([]*sensor.Adapter, error)

	// ReadinessSensor names the sensor gating RUNNING.
	ReadinessSensor() string

	// ReadinessTimeout bounds the readiness wait unless configuration
	// overrides it.
	ReadinessTimeout() time.Duration
}

// ReadinessPredicate is implemented by drivers whose readiness sensor is not
// a plain boolean.
type ReadinessPredicate interface {
	Ready() sensor.Predicate
}

// Observer is told how every start attempt ended. The metrics package
// implements it.
type Observer interface {
	StartCompleted(entityType string, failedPhase string, duration time.Duration)
}
