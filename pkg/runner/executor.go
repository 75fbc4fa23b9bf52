// Package runner executes a configured checkoff command inside a staged
// workspace, either capturing its output to a log or attaching it to the
// controlling terminal.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// ErrNoLogSink is raised before spawning when a captured run has nowhere to
// write its log. A nil log path is only valid together with Attach.
var ErrNoLogSink = errors.New("captured run requires a log file")

// Spec describes one command execution.
type Spec struct {
	// Command is run through the shell with the workspace root as workdir.
	Command string
	// Dir is the working directory for the command.
	Dir string
	// LogPath receives a copy of the combined output in captured mode. Must
	// be empty when Attach is set.
	LogPath string
	// Attach hands the controlling terminal to the command instead of
	// capturing output.
	Attach bool
	// Env entries (KEY=VALUE) appended to the inherited environment.
	Env []string
}

// Execute runs the command and returns its exit code. A nonzero exit code is
// recorded, not treated as an error; the error return covers infrastructure
// failures only (bad spec, spawn failure, log I/O).
func Execute(ctx context.Context, spec Spec) (int, error) {
	if spec.Attach {
		if spec.LogPath != "" {
			return 0, fmt.Errorf("attached run cannot also log to '%s'", spec.LogPath)
		}
		return executeAttached(ctx, spec)
	}
	if spec.LogPath == "" {
		return 0, ErrNoLogSink
	}
	return executeCaptured(ctx, spec)
}

// executeCaptured streams combined stdout/stderr line-by-line, writing each
// line to the console and the log before the next line is consumed, so the
// console stream and the persisted log stay identical.
func executeCaptured(ctx context.Context, spec Spec) (int, error) {
	logFile, err := os.Create(spec.LogPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create log file '%s': %w", spec.LogPath, err)
	}
	defer logFile.Close()

	cmd := command(ctx, spec)

	pr, pw, err := os.Pipe()
	if err != nil {
		return 0, fmt.Errorf("failed to create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return 0, fmt.Errorf("failed to start command '%s': %w", spec.Command, err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	var g errgroup.Group
	g.Go(func() error {
		defer pr.Close()
		return tee(pr, os.Stdout, logFile)
	})

	teeErr := g.Wait()
	code, waitErr := exitCode(cmd.Wait())
	if waitErr != nil {
		return 0, waitErr
	}
	if teeErr != nil {
		return 0, fmt.Errorf("failed to capture output of '%s': %w", spec.Command, teeErr)
	}

	return code, nil
}

// executeAttached makes the command the foreground process group on the
// controlling terminal so the user interacts with it directly. No output is
// captured; the pipeline blocks until the child exits.
func executeAttached(ctx context.Context, spec Spec) (int, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return 0, fmt.Errorf("interactive runner requires a terminal on stdin")
	}

	cmd := command(ctx, spec)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:    true,
		Foreground: true,
		Ctty:       fd,
	}

	// The child takes the foreground group; ignore the stop signals we would
	// otherwise receive as a background writer.
	signal.Ignore(syscall.SIGTTIN, syscall.SIGTTOU)
	defer signal.Reset(syscall.SIGTTIN, syscall.SIGTTOU)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start command '%s': %w", spec.Command, err)
	}
	return exitCode(cmd.Wait())
}

func command(ctx context.Context, spec Spec) *exec.Cmd {
	cmd := exec.CommandContext(ctx, shell(), "-c", spec.Command)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	return cmd
}

// tee copies line-by-line from r to both sinks, preserving arrival order:
// line N reaches both sinks before line N+1 is read.
func tee(r io.Reader, console, log io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if _, err := fmt.Fprintln(console, line); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(log, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// exitCode maps a Wait error to the child's exit code. Only failures to run
// or observe the process surface as errors.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("failed to wait for command: %w", err)
}

func shell() string {
	if sh, ok := os.LookupEnv("SHELL"); ok {
		return sh
	}
	return "/bin/sh"
}
