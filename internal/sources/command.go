package sources

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/giantswarm/steward/internal/sensor"
)

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// Runner executes a command line where an entity runs. The container
// launcher provides one running inside containers; LocalRunner runs locally.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// LocalRunner runs commands through the local shell.
type LocalRunner struct {
	Shell string
}

// Run implements Runner.
func (l LocalRunner) Run(ctx context.Context, command string) (string, error) {
	shell := l.Shell
	if shell == "" {
		shell = "sh"
	}

	var stdout, stderr bytes.Buffer
	cmd := execCommandContext(ctx, shell, "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command %q failed: %w: %s", command, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Command fetches the trimmed output of the descriptor's Target command line.
type Command struct {
	runner Runner
}

// NewCommand creates a Command source. A nil runner runs commands locally.
func NewCommand(runner Runner) *Command {
	if runner == nil {
		runner = LocalRunner{}
	}
	return &Command{runner: runner}
}

// Fetch implements sensor.Fetcher.
func (c *Command) Fetch(ctx context.Context, d sensor.Descriptor) (any, error) {
	out, err := c.runner.Run(ctx, d.Target)
	if err != nil {
		return nil, err
	}
	return strings.TrimSpace(out), nil
}
