package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/giantswarm/steward/internal/config"
	"github.com/giantswarm/steward/pkg/logging"
)

const bootstrapSubsystem = "Bootstrap"

// Application represents the main application structure that bootstraps and
// runs steward.
//
// Example usage:
//
//	cfg := app.NewConfig(false, "text", "/etc/steward")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication configures logging, loads the configuration unless
// cfg.Steward is already set and initializes all services.
func NewApplication(cfg *Config) (*Application, error) {
	initLogging(cfg, os.Stderr)

	if cfg.Steward == nil {
		stewardCfg, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error(bootstrapSubsystem, err, "Failed to load configuration from %s", cfg.ConfigPath)
			return nil, fmt.Errorf("failed to load configuration from %s: %w", cfg.ConfigPath, err)
		}
		cfg.Steward = &stewardCfg
		logging.Info(bootstrapSubsystem, "Loaded configuration from %s", cfg.ConfigPath)
	}

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error(bootstrapSubsystem, err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

func initLogging(cfg *Config, out io.Writer) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.Init(logging.Options{Level: level, Format: cfg.LogFormat, Output: out})
}

// Services exposes the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Run serves until ctx is cancelled. See serve.go.
func (a *Application) Run(ctx context.Context) error {
	return runServe(ctx, a.config, a.services)
}
