// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait keeps draining pipes after the process
// group was killed; grandchildren may still hold the stderr pipe open.
const waitDelay = 2 * time.Second

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// Spec describes one external invocation.
type Spec struct {
	// Name is the executable name or path.
	Name string

	// Args are the command arguments.
	Args []string

	// Dir is the working directory ("" = current directory).
	Dir string

	// StdinPath is fed to stdin; "" means no input (the null device).
	StdinPath string

	// StdoutPath receives stdout; "" means stdout is captured into Result.Stdout.
	StdoutPath string

	// Timeout bounds the invocation; zero means no bound beyond ctx.
	Timeout time.Duration
}

// CommandLine returns the spec rendered as a shell-like command line.
func (s Spec) CommandLine() string {
	return commandLine(s.Name, s.Args)
}

// Result is what an invocation produced, returned even when it failed.
type Result struct {
	// Stdout is the captured stdout (empty when redirected to StdoutPath).
	Stdout []byte

	// Stderr is the captured stderr.
	Stderr []byte

	// ExitCode is the exit status (-1 if the process was killed or never ran).
	ExitCode int

	// Duration is the wall time of the invocation.
	Duration time.Duration
}

// ProcessManager handles external process operations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple goroutines;
// every pipeline worker shares one manager.
type ProcessManager interface {
	// Exec executes a fully described invocation.
	//
	// # Description
	//
	// Binds stdin/stdout to files when requested, captures stderr, and
	// enforces Spec.Timeout by killing the process group.
	//
	// # Outputs
	//
	//   - *Result: Always non-nil, even on failure
	//   - error: *CommandError for non-zero exit or timeout; other errors
	//     for redirection problems or a missing executable
	Exec(ctx context.Context, spec Spec) (*Result, error)
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultProcessManager implements ProcessManager using os/exec.
type DefaultProcessManager struct{}

// NewDefaultProcessManager creates a new DefaultProcessManager.
func NewDefaultProcessManager() *DefaultProcessManager {
	return &DefaultProcessManager{}
}

// Exec executes a command described by spec.
func (pm *DefaultProcessManager) Exec(ctx context.Context, spec Spec) (*Result, error) {
	res := &Result{ExitCode: -1}
	if spec.Name == "" {
		return res, errors.New("empty command")
	}

	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	configureCommandProcess(cmd)
	cmd.Cancel = func() error {
		terminateCommandProcess(cmd)
		return nil
	}
	cmd.WaitDelay = waitDelay

	if spec.StdinPath != "" {
		in, err := os.Open(spec.StdinPath)
		if err != nil {
			return res, fmt.Errorf("open stdin %s: %w", spec.StdinPath, err)
		}
		defer in.Close()
		cmd.Stdin = in
	}

	var stdout, stderr bytes.Buffer
	if spec.StdoutPath != "" {
		out, err := os.Create(spec.StdoutPath)
		if err != nil {
			return res, fmt.Errorf("create stdout %s: %w", spec.StdoutPath, err)
		}
		defer out.Close()
		cmd.Stdout = out
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Stdout = stdout.Bytes()
	res.Stderr = stderr.Bytes()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if spec.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		cmdErr := NewCommandError(spec.CommandLine(), res.ExitCode, string(res.Stderr), context.DeadlineExceeded)
		cmdErr.TimedOut = true
		cmdErr.Timeout = spec.Timeout
		return res, cmdErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) || errors.Is(err, exec.ErrWaitDelay) {
			return res, NewCommandError(spec.CommandLine(), res.ExitCode, string(res.Stderr), err)
		}
		if ctx.Err() != nil {
			return res, fmt.Errorf("%s: %w", spec.CommandLine(), ctx.Err())
		}
		return res, fmt.Errorf("failed to execute %s: %w", spec.Name, err)
	}

	return res, nil
}

// Compile-time interface compliance check.
var _ ProcessManager = (*DefaultProcessManager)(nil)
