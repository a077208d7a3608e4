// Package execbin executes the external trainer process.
package execbin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Result reports how a dispatched trainer finished.
type Result struct {
	// ExitCode is the trainer's exit status, unchanged.
	ExitCode int
}

// Run starts the command and blocks until it exits.
//
// The child inherits the launcher's environment and its standard streams:
// trainer output is never swallowed. A non-zero exit is not an error here;
// it is reported through Result so the launcher can pass the status through.
func Run(ctx context.Context, command []string, extraEnv []string) (*Result, error) {
	if len(command) == 0 {
		return nil, errors.New("empty command")
	}

	path, err := exec.LookPath(command[0])
	if err != nil {
		return nil, fmt.Errorf("trainer %s not found: %w", command[0], err)
	}

	cmd := exec.CommandContext(ctx, path, command[1:]...)
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start trainer: %w", err)
	}

	err = cmd.Wait()
	if err == nil {
		return &Result{ExitCode: 0}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &Result{ExitCode: exitErr.ExitCode()}, nil
	}
	return nil, fmt.Errorf("trainer did not run: %w", err)
}
