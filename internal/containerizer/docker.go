package containerizer

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/giantswarm/steward/pkg/logging"
)

const runtimeSubsystem = "Containerizer"

// CLIRuntime implements Runtime by shelling out to the docker or podman binary.
type CLIRuntime struct {
	binary string
}

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// lookPath is a variable to allow mocking in tests
var lookPath = exec.LookPath

// NewCLIRuntime creates a runtime for the given binary after checking that it
// is installed and its daemon answers.
func NewCLIRuntime(binary string) (*CLIRuntime, error) {
	if _, err := lookPath(binary); err != nil {
		return nil, fmt.Errorf("%s command not found in PATH: %w", binary, err)
	}

	cmd := execCommandContext(context.Background(), binary, "info")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s daemon not accessible: %w", binary, err)
	}

	return &CLIRuntime{binary: binary}, nil
}

func shortID(containerID string) string {
	if len(containerID) > 12 {
		return containerID[:12]
	}
	return containerID
}

// EnsureImage pulls image unless the engine already has it.
func (d *CLIRuntime) EnsureImage(ctx context.Context, image string) error {
	checkCmd := execCommandContext(ctx, d.binary, "image", "inspect", image)
	if err := checkCmd.Run(); err == nil {
		logging.Debug(runtimeSubsystem, "Image %s already exists", image)
		return nil
	}

	logging.Info(runtimeSubsystem, "Pulling image %s", image)
	pullCmd := execCommandContext(ctx, d.binary, "pull", image)
	if output, err := pullCmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to pull image %s: %w\nOutput: %s", image, err, strings.TrimSpace(string(output)))
	}

	return nil
}

// runArgs builds the arguments of "run". Env and labels are sorted so the
// command line is stable.
func runArgs(opts RunOptions) []string {
	args := []string{"run", "-d", "--name", opts.Name}

	for _, k := range sortedKeys(opts.Env) {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, opts.Env[k]))
	}
	for _, k := range sortedKeys(opts.Labels) {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, opts.Labels[k]))
	}
	for _, port := range opts.Ports {
		args = append(args, "-p", port)
	}

	args = append(args, opts.Image)
	return append(args, opts.Command...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Run starts a detached container and returns its ID.
func (d *CLIRuntime) Run(ctx context.Context, opts RunOptions) (string, error) {
	if err := opts.Validate(); err != nil {
		return "", err
	}

	args := runArgs(opts)
	logging.Debug(runtimeSubsystem, "Starting container with command: %s %s", d.binary, strings.Join(args, " "))

	cmd := execCommandContext(ctx, d.binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to start container: %w\nOutput: %s", err, strings.TrimSpace(string(output)))
	}

	containerID := strings.TrimSpace(string(output))
	logging.Info(runtimeSubsystem, "Started container %s with ID %s", opts.Name, shortID(containerID))

	return containerID, nil
}

// Stop sends the engine stop command to id.
func (d *CLIRuntime) Stop(ctx context.Context, containerID string) error {
	logging.Info(runtimeSubsystem, "Stopping container %s", shortID(containerID))

	cmd := execCommandContext(ctx, d.binary, "stop", containerID)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to stop container %s: %w", shortID(containerID), err)
	}

	return nil
}

// Running reports the container state from inspect.
func (d *CLIRuntime) Running(ctx context.Context, containerID string) (bool, error) {
	cmd := execCommandContext(ctx, d.binary, "inspect", "-f", "{{.State.Running}}", containerID)
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to inspect container %s: %w", shortID(containerID), err)
	}

	return strings.TrimSpace(string(output)) == "true", nil
}

// Remove force-removes id.
func (d *CLIRuntime) Remove(ctx context.Context, containerID string) error {
	logging.Debug(runtimeSubsystem, "Removing container %s", shortID(containerID))

	cmd := execCommandContext(ctx, d.binary, "rm", "-f", containerID)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to remove container %s: %w", shortID(containerID), err)
	}

	return nil
}

// Exec runs command through sh inside the container.
func (d *CLIRuntime) Exec(ctx context.Context, containerID, command string) (string, error) {
	cmd := execCommandContext(ctx, d.binary, "exec", containerID, "sh", "-c", command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("exec in container %s failed: %w: %s", shortID(containerID), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// Validate checks the fields required to run a container.
func (o RunOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("container name is required")
	}
	if o.Image == "" {
		return fmt.Errorf("container image is required for %s", o.Name)
	}
	for _, p := range o.Ports {
		if _, _, err := parsePortMapping(p); err != nil {
			return err
		}
	}
	return nil
}

// parsePortMapping splits "host:container" into its parts.
func parsePortMapping(mapping string) (string, string, error) {
	parts := strings.Split(mapping, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid port mapping %q, expected host:container", mapping)
	}
	return parts[0], parts[1], nil
}
