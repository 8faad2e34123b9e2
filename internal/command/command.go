// Package command runs external executables for pipeline steps.
// A non-zero exit status is reported as *ExitError carrying the exit code.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/neurender/neurender/internal/logger"
)

// Command describes one external invocation.
type Command struct {
	Program string
	Args    []string
	Dir     string            // Working directory, empty for the current one
	Env     map[string]string // Appended to the current environment
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Program
	}
	return c.Program + " " + strings.Join(c.Args, " ")
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExitError reports a command that ran and exited with a non-zero status.
type ExitError struct {
	Program string
	Args    []string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Program, e.Code)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	Stdout io.Writer // Defaults to os.Stdout
	Stderr io.Writer // Defaults to os.Stderr
}

// NewExecRunner returns a runner that forwards output to the console.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run starts cmd and waits for it to exit.
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Program, c.Args...)
	cmd.Dir = c.Dir

	if len(c.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range c.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	logger.Log.Info().Str("dir", c.Dir).Str("command", c.String()).Msg("Running command")

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return &ExitError{Program: c.Program, Args: c.Args, Code: exitErr.ExitCode()}
	}

	return fmt.Errorf("running %s: %w", c.Program, err)
}

// LookPath reports the resolved path of program, or an error if it is not on PATH.
func LookPath(program string) (string, error) {
	p, err := exec.LookPath(program)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH: %w", program, err)
	}
	return p, nil
}
