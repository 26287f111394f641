package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/giantswarm/steward/internal/config"
	"github.com/giantswarm/steward/internal/containerizer"
	"github.com/giantswarm/steward/internal/entity"
	"github.com/giantswarm/steward/internal/kube"
	"github.com/giantswarm/steward/internal/location"
	"github.com/giantswarm/steward/internal/metrics"
	"github.com/giantswarm/steward/internal/orchestrator"
	"github.com/giantswarm/steward/internal/reconciler"
	"github.com/giantswarm/steward/internal/sensor"
	"github.com/giantswarm/steward/internal/software"
	"github.com/giantswarm/steward/internal/sources"
	"github.com/giantswarm/steward/pkg/logging"
)

// Services holds all initialized services used by the application.
type Services struct {
	// Registry is the Prometheus registry served on /metrics.
	Registry *prometheus.Registry

	// Metrics holds the steward collectors registered with Registry.
	Metrics *metrics.Metrics

	// Catalog lists the registered entity types.
	Catalog *orchestrator.Catalog

	// Orchestrator creates, starts and stops entities.
	Orchestrator *orchestrator.Orchestrator

	// Clusters owns every cluster created from a definition.
	Clusters *ClusterController

	// Reconciler applies definition changes below clusters/.
	Reconciler *reconciler.Manager
}

// InitializeServices builds the catalog and launcher from configuration and
// creates all services on top of them.
func InitializeServices(cfg *Config) (*Services, error) {
	launcher, err := newLauncher(cfg.Steward.Launcher)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s launcher: %w", cfg.Steward.Launcher.Type, err)
	}

	catalog, err := orchestrator.NewCatalog(software.Builtin(driverOptions(cfg.Steward, launcher))...)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver catalog: %w", err)
	}

	return newServices(cfg, catalog, launcher)
}

// newServices wires everything that does not touch the outside world.
func newServices(cfg *Config, catalog *orchestrator.Catalog, launcher orchestrator.Launcher) (*Services, error) {
	sc := cfg.Steward

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	locations, err := newLocationProvider(sc.Location)
	if err != nil {
		return nil, err
	}

	entityOptions := []entity.Option{
		entity.WithRegistryOptions(
			sensor.WithWaitInterval(sc.Defaults.WaitInterval),
			sensor.WithObserver(m),
		),
		entity.WithTransitionObserver(m),
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Catalog:                  catalog,
		Locations:                locations,
		Launcher:                 launcher,
		LaunchAttempts:           sc.Defaults.LaunchAttempts,
		LaunchBackoff:            sc.Defaults.LaunchBackoff,
		ReadinessTimeouts:        sc.ReadinessTimeouts(),
		FallbackReadinessTimeout: sc.Defaults.ReadinessTimeout,
		SensorOptions: []sensor.Option{
			sensor.WithInterval(sc.Defaults.PollInterval),
			sensor.WithMaxBackoff(sc.Defaults.MaxPollBackoff),
		},
		EntityOptions: entityOptions,
		Observer:      m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	clusters := NewClusterController(orch, m, entityOptions...)

	manager := reconciler.NewManager(reconciler.ManagerConfig{
		ConfigPath: cfg.ConfigPath,
		Observer:   m,
	}, reconciler.NewClusterReconciler(clusters, catalog.Types()))

	logging.Info(bootstrapSubsystem, "Initialized services for entity types %v", catalog.Types())

	return &Services{
		Registry:     registry,
		Metrics:      m,
		Catalog:      catalog,
		Orchestrator: orch,
		Clusters:     clusters,
		Reconciler:   manager,
	}, nil
}

// driverOptions lets command sensors run inside containers when the
// launcher runs containers.
func driverOptions(sc *config.Config, launcher orchestrator.Launcher) software.Options {
	opts := software.Options{Images: sc.Images()}
	if cl, ok := launcher.(*containerizer.Launcher); ok {
		opts.Exec = func(loc *location.Location) sources.Runner {
			return cl.Runner(loc)
		}
	}
	return opts
}

func newLauncher(lc config.LauncherConfig) (orchestrator.Launcher, error) {
	switch lc.Type {
	case config.LauncherTypeKubernetes:
		client, err := kube.NewClientset(lc.Kubeconfig)
		if err != nil {
			return nil, err
		}
		logging.Info(bootstrapSubsystem, "Launching pods in namespace %s", lc.Namespace)
		return kube.NewLauncher(client, lc.Namespace, lc.NamePrefix), nil
	default:
		rt, err := containerizer.NewRuntime(string(lc.Type))
		if err != nil {
			return nil, err
		}
		logging.Info(bootstrapSubsystem, "Launching containers with %s", lc.Type)
		return containerizer.NewLauncher(rt,
			containerizer.WithNamePrefix(lc.NamePrefix),
			containerizer.WithPull(true),
		), nil
	}
}

func newLocationProvider(lc config.LocationConfig) (*location.LocalhostProvider, error) {
	opts := []location.LocalhostOption{location.WithPortProbe(true)}
	if lc.Ports != "" {
		pr, err := location.ParsePortRange(lc.Ports)
		if err != nil {
			return nil, fmt.Errorf("invalid location.ports: %w", err)
		}
		opts = append(opts, location.WithAllowedPorts(pr))
	}
	return location.NewLocalhostProvider(lc.Host, opts...), nil
}
