package config

import "time"

// Config is the top-level configuration structure for steward.
type Config struct {
	Defaults Defaults              `yaml:"defaults"`
	Location LocationConfig        `yaml:"location"`
	Launcher LauncherConfig        `yaml:"launcher"`
	Metrics  MetricsConfig         `yaml:"metrics"`
	Types    map[string]TypeConfig `yaml:"types,omitempty"`
}

// Defaults apply to every entity unless a type overrides them.
type Defaults struct {
	PollInterval     time.Duration `yaml:"pollInterval"`     // Adapter poll period
	MaxPollBackoff   time.Duration `yaml:"maxPollBackoff"`   // Cap for the poll backoff after failures
	WaitInterval     time.Duration `yaml:"waitInterval"`     // Re-check period of attribute waits
	ReadinessTimeout time.Duration `yaml:"readinessTimeout"` // Fallback when a type sets none
	LaunchAttempts   int           `yaml:"launchAttempts"`   // Launch tries within one start
	LaunchBackoff    time.Duration `yaml:"launchBackoff"`    // Delay before the second launch try
}

// LocationConfig describes the machine entities are placed on.
type LocationConfig struct {
	Host  string `yaml:"host"`
	Ports string `yaml:"ports,omitempty"` // Restricts every allocation to this range
}

// LauncherType selects how processes run.
type LauncherType string

const (
	LauncherTypeDocker     LauncherType = "docker"
	LauncherTypePodman     LauncherType = "podman"
	LauncherTypeKubernetes LauncherType = "kubernetes"
)

// LauncherConfig configures the process launcher.
type LauncherConfig struct {
	Type       LauncherType `yaml:"type"`
	NamePrefix string       `yaml:"namePrefix,omitempty"` // Prefix of container and pod names
	Namespace  string       `yaml:"namespace,omitempty"`  // Kubernetes only
	Kubeconfig string       `yaml:"kubeconfig,omitempty"` // Kubernetes only, empty uses the standard rules
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Address string `yaml:"address"` // Empty disables the endpoint
}

// TypeConfig overrides settings of one entity type.
type TypeConfig struct {
	ReadinessTimeout time.Duration `yaml:"readinessTimeout,omitempty"`
	Image            string        `yaml:"image,omitempty"`
}

// ClusterDefinition is one file under clusters/.
type ClusterDefinition struct {
	Name           string         `yaml:"name"`
	MemberType     string         `yaml:"memberType"`
	InitialSize    int            `yaml:"initialSize"`
	MinSuccess     int            `yaml:"minSuccess,omitempty"`     // 0 requires every requested member
	ScaleTimeout   time.Duration  `yaml:"scaleTimeout,omitempty"`   // 0 uses the cluster default
	MaxConcurrency int            `yaml:"maxConcurrency,omitempty"` // 0 is unlimited
	NameTemplate   string         `yaml:"nameTemplate,omitempty"`
	Config         map[string]any `yaml:"config,omitempty"`

	// FilePath is the file the definition was loaded from.
	FilePath string `yaml:"-"`
}
