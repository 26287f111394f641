package app

import (
	"github.com/giantswarm/steward/internal/config"
)

// Config is what the CLI hands to NewApplication.
type Config struct {
	Debug bool
	// LogFormat is "text" or "json".
	LogFormat string
	// ConfigPath is the directory holding config.yaml and clusters/.
	ConfigPath string
	// Steward is loaded from ConfigPath by NewApplication when nil.
	Steward *config.Config
}

func NewConfig(debug bool, logFormat, configPath string) *Config {
	return &Config{Debug: debug, LogFormat: logFormat, ConfigPath: configPath}
}
