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
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkLock_AcquireRelease(t *testing.T) {
	dir := t.TempDir()
	lock := NewWorkLock(dir)

	require.NoError(t, lock.Acquire())
	assert.True(t, lock.IsHeld())
	require.NoError(t, lock.Acquire(), "re-acquire by holder is a no-op")

	data, err := os.ReadFile(lock.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, lock.Release())
	assert.False(t, lock.IsHeld())
	require.NoError(t, lock.Release(), "double release is safe")
}

func TestWorkLock_SecondHolderRejected(t *testing.T) {
	dir := t.TempDir()
	first := NewWorkLock(dir)
	second := NewWorkLock(dir)

	require.NoError(t, first.Acquire())
	defer first.Release()

	err := second.Acquire()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))
	assert.Contains(t, err.Error(), strconv.Itoa(os.Getpid()))
	assert.False(t, second.IsHeld())

	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
}

func TestWorkLock_MissingDirectory(t *testing.T) {
	lock := NewWorkLock("/nonexistent/dir/for/lock")
	err := lock.Acquire()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLocked))
}
