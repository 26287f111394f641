package containerizer

import (
	"context"
	"fmt"
	"strings"
)

// Runtime is the subset of a container engine the Launcher drives. IDs are
// the engine's container IDs.
type Runtime interface {
	EnsureImage(ctx context.Context, image string) error
	Run(ctx context.Context, opts RunOptions) (string, error)
	Stop(ctx context.Context, id string) error
	Running(ctx context.Context, id string) (bool, error)
	Remove(ctx context.Context, id string) error
	// Exec runs a shell command line inside the container and returns its
	// combined output.
	Exec(ctx context.Context, id, command string) (string, error)
}

// RunOptions describes one detached container.
type RunOptions struct {
	Name  string
	Image string
	Env   map[string]string
	// Ports are "host:container" mappings.
	Ports   []string
	Labels  map[string]string
	Command []string
}

// Engines lists the container CLIs NewRuntime accepts.
var Engines = []string{"docker", "podman"}

// NewRuntime returns a CLI runtime for engine. An empty engine means docker.
func NewRuntime(engine string) (Runtime, error) {
	name := strings.ToLower(engine)
	if name == "" {
		name = Engines[0]
	}
	for _, known := range Engines {
		if name == known {
			return NewCLIRuntime(name)
		}
	}
	return nil, fmt.Errorf("unsupported container runtime: %s", engine)
}
