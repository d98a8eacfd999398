package testbed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner launches an external command and blocks until it exits.
// The abstraction exists so tests can record invocations without running
// anything.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ProcessError reports a non-zero exit from an external command.
type ProcessError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
}

func (e *ProcessError) Unwrap() error { return e.Err }

type execRunner struct{}

// NewExecRunner returns a CommandRunner that runs commands in the
// foreground with inherited stdio, built from an argument vector and
// launched without shell interpretation.
func NewExecRunner() CommandRunner { return execRunner{} }

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	code := 1

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}

	return &ProcessError{
		Command:  name + " " + strings.Join(args, " "),
		ExitCode: code,
		Err:      err,
	}
}
