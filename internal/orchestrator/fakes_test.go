package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/sensor"
)

// fakeDriver reports service.isUp from a function of the entity.
type fakeDriver struct {
	typeName  string
	timeout   time.Duration
	up        func(e *entity.Entity) (any, error)
	extra     []string
	sensorErr error
}

func (d *fakeDriver) Type() string { return d.typeName }

func (d *fakeDriver) LocationSpec(*entity.Entity) (location.Spec, error) {
	return location.Spec{Ports: map[string]location.PortRange{
		"http": location.MustParsePortRange("8080+"),
	}}, nil
}

func (d *fakeDriver) InstallSpec(e *entity.Entity, loc *location.Location) (InstallSpec, error) {
	return InstallSpec{
		Image: "example/app:1",
		Ports: []PortMapping{{Name: "http", HostPort: loc.Port("http"), ContainerPort: 8080}},
	}, nil
}

func (d *fakeDriver) Sensors(e *entity.Entity, _ *location.Location, opts ...sensor.Option) ([]*sensor.Adapter, error) {
	if d.sensorErr != nil {
		return nil, d.sensorErr
	}
	fetch := sensor.FetchFunc(func(context.Context, sensor.Descriptor) (any, error) {
		return d.up(e)
	})
	adapters := []*sensor.Adapter{
		sensor.Poll(fetch, sensor.Descriptor{Target: "fake"}, sensor.ServiceUp, opts...),
	}
	for _, name := range d.extra {
		adapters = append(adapters, sensor.Poll(fetch, sensor.Descriptor{Target: "fake"}, name, opts...))
	}
	return adapters, nil
}

func (d *fakeDriver) ReadinessSensor() string { return sensor.ServiceUp }

func (d *fakeDriver) ReadinessTimeout() time.Duration { return d.timeout }

func alwaysUp(*entity.Entity) (any, error) { return true, nil }

func neverUp(*entity.Entity) (any, error) { return false, nil }

// fakeLauncher records launches and can fail the first N attempts or
// entities with a given name.
type fakeLauncher struct {
	mu           sync.Mutex
	launches     []string
	terminated   []string
	failFirst    int
	failNames    map[string]bool
	terminateErr error
	running      map[string]bool
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{failNames: map[string]bool{}, running: map[string]bool{}}
}

func (l *fakeLauncher) Launch(_ context.Context, loc *location.Location, spec InstallSpec) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launches = append(l.launches, spec.Name)
	if l.failFirst > 0 {
		l.failFirst--
		return errors.New("image pull failed")
	}
	if l.failNames[spec.Name] {
		return fmt.Errorf("launch of %s refused", spec.Name)
	}
	loc.SetMeta("process", spec.Name)
	l.running[loc.ID] = true
	return nil
}

func (l *fakeLauncher) Terminate(_ context.Context, loc *location.Location) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.terminateErr != nil {
		return l.terminateErr
	}
	name, _ := loc.Meta("process")
	l.terminated = append(l.terminated, name)
	delete(l.running, loc.ID)
	return nil
}

func (l *fakeLauncher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launches)
}

func (l *fakeLauncher) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.running)
}

// sensingLauncher also provides a process-running sensor.
type sensingLauncher struct {
	*fakeLauncher
}

func (l sensingLauncher) Sensors(_ *entity.Entity, loc *location.Location, opts ...sensor.Option) []*sensor.Adapter {
	fetch := sensor.FetchFunc(func(context.Context, sensor.Descriptor) (any, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		return l.running[loc.ID], nil
	})
	return []*sensor.Adapter{sensor.Poll(fetch, sensor.Descriptor{Target: loc.ID}, "process.running", opts...)}
}

type failingProvider struct{}

func (failingProvider) Acquire(context.Context, location.Spec) (*location.Location, error) {
	return nil, errors.New("no capacity")
}

func (failingProvider) Release(context.Context, *location.Location) error { return nil }

type recordingStartObserver struct {
	mu      sync.Mutex
	results []string
}

func (r *recordingStartObserver) StartCompleted(_ string, failedPhase string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, failedPhase)
}
