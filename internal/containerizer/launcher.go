package containerizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/orchestrator"
	"github.com/giantswarm/steward/internal/sensor"
	"github.com/giantswarm/steward/internal/sources"
	"github.com/giantswarm/steward/pkg/logging"
)

// Location metadata keys.
const (
	MetaContainerName = "container.name"
	MetaContainerID   = "container.id"
)

// ContainerRunning is the sensor reporting whether the entity's container
// runs.
const ContainerRunning = "container.running"

// Launcher runs InstallSpecs as containers.
type Launcher struct {
	runtime    Runtime
	namePrefix string
	pull       bool
}

// LauncherOption customizes a Launcher.
type LauncherOption func(*Launcher)

// WithNamePrefix prefixes every container name.
func WithNamePrefix(prefix string) LauncherOption {
	return func(l *Launcher) {
		l.namePrefix = prefix
	}
}

// WithPull controls whether images are pulled before starting. Default true.
func WithPull(pull bool) LauncherOption {
	return func(l *Launcher) {
		l.pull = pull
	}
}

// NewLauncher creates a Launcher on top of runtime.
func NewLauncher(runtime Runtime, opts ...LauncherOption) *Launcher {
	l := &Launcher{runtime: runtime, pull: true}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch implements orchestrator.Launcher.
func (l *Launcher) Launch(ctx context.Context, loc *location.Location, spec orchestrator.InstallSpec) error {
	if spec.Image == "" {
		return fmt.Errorf("install spec of %s has no image", spec.Name)
	}
	if l.pull {
		if err := l.runtime.EnsureImage(ctx, spec.Image); err != nil {
			return err
		}
	}

	opts := RunOptions{
		Name:    l.namePrefix + spec.Name,
		Image:   spec.Image,
		Env:     spec.Env,
		Labels:  spec.Labels,
		Command: spec.Command,
	}
	for _, p := range spec.Ports {
		opts.Ports = append(opts.Ports, fmt.Sprintf("%d:%d", p.HostPort, p.ContainerPort))
	}

	// Recorded first so Terminate can clean up a half-created container.
	loc.SetMeta(MetaContainerName, opts.Name)

	id, err := l.runtime.Run(ctx, opts)
	if err != nil {
		return err
	}
	loc.SetMeta(MetaContainerID, id)
	return nil
}

// Terminate implements orchestrator.Launcher. Locations without a container
// are ignored.
func (l *Launcher) Terminate(ctx context.Context, loc *location.Location) error {
	target, ok := loc.Meta(MetaContainerID)
	if !ok || target == "" {
		target, ok = loc.Meta(MetaContainerName)
	}
	if !ok || target == "" {
		return nil
	}

	stopErr := l.runtime.Stop(ctx, target)
	if stopErr != nil {
		logging.Debug(runtimeSubsystem, "Stop of %s failed, forcing removal: %v", shortID(target), stopErr)
	}
	if err := l.runtime.Remove(ctx, target); err != nil {
		return errors.Join(stopErr, err)
	}

	loc.SetMeta(MetaContainerID, "")
	loc.SetMeta(MetaContainerName, "")
	return nil
}

// Runner returns a sources.Runner executing commands inside the container
// launched on loc. The container is looked up on every Run.
func (l *Launcher) Runner(loc *location.Location) sources.Runner {
	return &containerExec{runtime: l.runtime, loc: loc}
}

type containerExec struct {
	runtime Runtime
	loc     *location.Location
}

func (c *containerExec) Run(ctx context.Context, command string) (string, error) {
	id, ok := c.loc.Meta(MetaContainerID)
	if !ok || id == "" {
		return "", fmt.Errorf("no container on location %s", c.loc.ID)
	}
	return c.runtime.Exec(ctx, id, command)
}

// Sensors implements orchestrator.SensorProvider.
func (l *Launcher) Sensors(_ *entity.Entity, loc *location.Location, opts ...sensor.Option) []*sensor.Adapter {
	id, ok := loc.Meta(MetaContainerID)
	if !ok || id == "" {
		return nil
	}
	running := sensor.FetchFunc(func(ctx context.Context, d sensor.Descriptor) (any, error) {
		return l.runtime.Running(ctx, d.Target)
	})
	return []*sensor.Adapter{sensor.Poll(running, sensor.Descriptor{Target: id}, ContainerRunning, opts...)}
}
