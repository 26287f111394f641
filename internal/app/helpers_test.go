package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/giantswarm/steward/internal/config"
	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/orchestrator"
	"github.com/giantswarm/steward/internal/sensor"
)

// fakeDriver is an entity type that is up as soon as it was launched.
type fakeDriver struct {
	typeName string
	launcher *fakeLauncher
}

func (d *fakeDriver) Type() string { return d.typeName }

func (d *fakeDriver) LocationSpec(*entity.Entity) (location.Spec, error) {
	return location.Spec{Ports: map[string]location.PortRange{
		"http": location.MustParsePortRange("41000+"),
	}}, nil
}

func (d *fakeDriver) InstallSpec(*entity.Entity, *location.Location) (orchestrator.InstallSpec, error) {
	return orchestrator.InstallSpec{Image: "example/app:1"}, nil
}

func (d *fakeDriver) Sensors(e *entity.Entity, loc *location.Location, opts ...sensor.Option) ([]*sensor.Adapter, error) {
	fetch := sensor.FetchFunc(func(context.Context, sensor.Descriptor) (any, error) {
		return d.launcher.isRunning(loc.ID), nil
	})
	return []*sensor.Adapter{sensor.Poll(fetch, sensor.Descriptor{Target: loc.ID}, sensor.ServiceUp, opts...)}, nil
}

func (d *fakeDriver) ReadinessSensor() string { return sensor.ServiceUp }

func (d *fakeDriver) ReadinessTimeout() time.Duration { return 0 }

// fakeLauncher runs nothing, refuses names listed in fail and cannot
// terminate names listed in stuck.
type fakeLauncher struct {
	mu         sync.Mutex
	running    map[string]string
	fail       map[string]bool
	stuck      map[string]bool
	launched   []string
	terminated []string
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{running: map[string]string{}, fail: map[string]bool{}, stuck: map[string]bool{}}
}

func (l *fakeLauncher) Launch(_ context.Context, loc *location.Location, spec orchestrator.InstallSpec) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, spec.Name)
	if l.fail[spec.Name] {
		return fmt.Errorf("cannot run %s", spec.Name)
	}
	l.running[loc.ID] = spec.Name
	return nil
}

func (l *fakeLauncher) Terminate(_ context.Context, loc *location.Location) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if name, ok := l.running[loc.ID]; ok {
		if l.stuck[name] {
			return fmt.Errorf("cannot terminate %s", name)
		}
		l.terminated = append(l.terminated, name)
		delete(l.running, loc.ID)
	}
	return nil
}

func (l *fakeLauncher) isRunning(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.running[id]
	return ok
}

func (l *fakeLauncher) runningCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.running)
}

func (l *fakeLauncher) failOn(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail[name] = true
}

func (l *fakeLauncher) clearFailures() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = map[string]bool{}
}

func (l *fakeLauncher) stickOn(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stuck[name] = true
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	sc := config.GetDefaultConfig()
	sc.Defaults.PollInterval = 5 * time.Millisecond
	sc.Defaults.MaxPollBackoff = 20 * time.Millisecond
	sc.Defaults.WaitInterval = 5 * time.Millisecond
	sc.Defaults.ReadinessTimeout = 300 * time.Millisecond
	sc.Defaults.LaunchAttempts = 1
	sc.Defaults.LaunchBackoff = time.Millisecond
	sc.Metrics.Address = ""

	return &Config{ConfigPath: t.TempDir(), Steward: &sc}
}

func newTestServices(t *testing.T, cfg *Config) (*Services, *fakeLauncher) {
	t.Helper()
	launcher := newFakeLauncher()
	catalog, err := orchestrator.NewCatalog(&fakeDriver{typeName: "app", launcher: launcher})
	if err != nil {
		t.Fatal(err)
	}
	services, err := newServices(cfg, catalog, launcher)
	if err != nil {
		t.Fatalf("newServices failed: %v", err)
	}
	return services, launcher
}

func definition(name string, size int) config.ClusterDefinition {
	return config.ClusterDefinition{Name: name, MemberType: "app", InitialSize: size}
}
