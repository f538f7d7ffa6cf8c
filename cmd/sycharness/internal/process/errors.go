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
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Command Error Type
// =============================================================================

// CommandError wraps an external command failure with its context.
//
// # Description
//
// Carries the command line, exit code, trimmed stderr, and whether the
// failure was a timeout. Supports errors.Is/As through Unwrap.
//
// # Example
//
//	var cmdErr *CommandError
//	if errors.As(err, &cmdErr) && cmdErr.TimedOut {
//	    fmt.Println("simulator hung")
//	}
type CommandError struct {
	// Command is the command line that was executed.
	Command string

	// ExitCode is the process exit code (-1 if the process did not exit normally).
	ExitCode int

	// Stderr contains the standard error output (trimmed).
	Stderr string

	// TimedOut is true when the invocation exceeded its timeout.
	TimedOut bool

	// Timeout is the bound that applied, for messages.
	Timeout time.Duration

	// Wrapped is the underlying error (may be nil).
	Wrapped error
}

// Error formats as "cmd (exit N): stderr" or "cmd: timed out after D".
func (e *CommandError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("%s: timed out after %s", e.Command, e.Timeout)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s (exit %d): %s", e.Command, e.ExitCode, e.Stderr)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s (exit %d): %v", e.Command, e.ExitCode, e.Wrapped)
	}
	return fmt.Sprintf("%s (exit %d)", e.Command, e.ExitCode)
}

// Unwrap returns the underlying error.
func (e *CommandError) Unwrap() error {
	return e.Wrapped
}

var _ error = (*CommandError)(nil)

// NewCommandError creates a CommandError. Stderr is trimmed.
func NewCommandError(cmd string, exitCode int, stderr string, wrapped error) *CommandError {
	return &CommandError{
		Command:  cmd,
		ExitCode: exitCode,
		Stderr:   strings.TrimSpace(stderr),
		Wrapped:  wrapped,
	}
}

// IsTimeout reports whether err is, or wraps, a timed-out CommandError.
func IsTimeout(err error) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr) && cmdErr.TimedOut
}

// ExtractStderr walks the error chain and returns the first non-empty stderr.
func ExtractStderr(err error) string {
	var cmdErr *CommandError
	for err != nil {
		if errors.As(err, &cmdErr) {
			if cmdErr.Stderr != "" {
				return cmdErr.Stderr
			}
			err = cmdErr.Wrapped
			continue
		}
		return ""
	}
	return ""
}

// commandLine renders name and args the way a user would type them.
func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
