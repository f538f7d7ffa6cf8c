// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build windows

package process

import (
	"errors"
	"path/filepath"
)

// LockFileName is the lock file created in the work directory.
const LockFileName = ".sycharness.lock"

// ErrLocked is returned when another harness holds the work directory.
var ErrLocked = errors.New("work directory is in use by another harness")

// WorkLock is a no-op on Windows.
type WorkLock struct {
	path string
	held bool
}

// NewWorkLock creates a lock for dir.
func NewWorkLock(dir string) *WorkLock {
	return &WorkLock{path: filepath.Join(dir, LockFileName)}
}

// Path returns the lock file path.
func (l *WorkLock) Path() string { return l.path }

// Acquire always succeeds.
func (l *WorkLock) Acquire() error { l.held = true; return nil }

// Release always succeeds.
func (l *WorkLock) Release() error { l.held = false; return nil }

// IsHeld reports whether Acquire was called.
func (l *WorkLock) IsHeld() bool { return l.held }
