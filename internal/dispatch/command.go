package dispatch

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/Iron-Ham/compound/internal/errors"
)

// CommandStep runs a local command for each execution, with the
// execution's environment and its workspace as working directory. It backs
// the CLI; real hosts run steps through their own command channel.
type CommandStep struct {
	Name   string
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

var _ Step = CommandStep{}

// Run executes the command. A non-zero exit is a failure without error.
func (c CommandStep) Run(ctx context.Context, e Execution) (bool, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = e.Env.Environ()
	cmd.Dir = e.Workspace
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	e.Log.Debug("running command", "command", c.Name, "dir", cmd.Dir)
	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &exitErr):
		e.Log.Warn("command exited non-zero", "command", c.Name, "exit_code", exitErr.ExitCode())
		return false, nil
	default:
		return false, fmt.Errorf("run %s: %w", c.Name, err)
	}
}
