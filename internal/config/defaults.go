package config

import "time"

const (
	DefaultPollInterval     = 500 * time.Millisecond
	DefaultMaxPollBackoff   = 30 * time.Second
	DefaultWaitInterval     = 100 * time.Millisecond
	DefaultReadinessTimeout = 5 * time.Minute
	DefaultLaunchAttempts   = 3
	DefaultLaunchBackoff    = 2 * time.Second

	DefaultMetricsAddress = ":9464"
	DefaultNamePrefix     = "steward-"
)

// GetDefaultConfig returns the configuration used when config.yaml is
// missing, and the base that config.yaml is merged onto.
func GetDefaultConfig() Config {
	return Config{
		Defaults: Defaults{
			PollInterval:     DefaultPollInterval,
			MaxPollBackoff:   DefaultMaxPollBackoff,
			WaitInterval:     DefaultWaitInterval,
			ReadinessTimeout: DefaultReadinessTimeout,
			LaunchAttempts:   DefaultLaunchAttempts,
			LaunchBackoff:    DefaultLaunchBackoff,
		},
		Location: LocationConfig{
			Host: "127.0.0.1",
		},
		Launcher: LauncherConfig{
			Type:       LauncherTypeDocker,
			NamePrefix: DefaultNamePrefix,
			Namespace:  "default",
		},
		Metrics: MetricsConfig{
			Address: DefaultMetricsAddress,
		},
	}
}

// ReadinessTimeouts returns the per-type readiness timeout overrides.
func (c Config) ReadinessTimeouts() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for name, tc := range c.Types {
		if tc.ReadinessTimeout > 0 {
			out[name] = tc.ReadinessTimeout
		}
	}
	return out
}

// Images returns the per-type image overrides.
func (c Config) Images() map[string]string {
	out := make(map[string]string)
	for name, tc := range c.Types {
		if tc.Image != "" {
			out[name] = tc.Image
		}
	}
	return out
}
