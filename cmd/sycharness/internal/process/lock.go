// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build !windows

package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// LockFileName is the lock file created in the work directory.
const LockFileName = ".sycharness.lock"

// ErrLocked is returned when another harness holds the work directory.
var ErrLocked = errors.New("work directory is in use by another harness")

// WorkLock is an advisory flock on {Dir}/.sycharness.lock.
//
// # Description
//
// Two harness processes sharing a work directory would clear each other's
// slots and race on the quarantine rotation. Acquire fails fast with
// ErrLocked (wrapped with the holder PID when known) instead of blocking.
//
// # Thread Safety
//
// WorkLock is NOT safe for concurrent use; acquire it once from main.
//
// # Limitations
//
//   - Advisory only; tools that ignore the lock are not stopped
//   - NFS and some network filesystems don't support flock properly
type WorkLock struct {
	path string
	file *os.File
}

// NewWorkLock creates a lock for dir. Does not acquire it.
func NewWorkLock(dir string) *WorkLock {
	return &WorkLock{path: filepath.Join(dir, LockFileName)}
}

// Path returns the lock file path.
func (l *WorkLock) Path() string {
	return l.path
}

// Acquire takes the lock without blocking and records our PID in the file.
func (l *WorkLock) Acquire() error {
	if l.file != nil {
		return nil
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create lock file %s: %w", l.path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid := readPID(l.path); pid > 0 {
				return fmt.Errorf("%w (PID %d)", ErrLocked, pid)
			}
			return ErrLocked
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	// The PID is informational; a failed write leaves the lock held.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}

	l.file = f
	return nil
}

// Release drops the lock. Safe to call when not held.
func (l *WorkLock) Release() error {
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	_ = f.Truncate(0)
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return f.Close()
}

// IsHeld reports whether this instance holds the lock.
func (l *WorkLock) IsHeld() bool {
	return l.file != nil
}

func readPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}
