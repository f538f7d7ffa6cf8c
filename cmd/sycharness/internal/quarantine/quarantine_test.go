// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package quarantine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSlot(t *testing.T, root, name, content string) string {
	t.Helper()
	slot := filepath.Join(root, "out", name)
	require.NoError(t, os.MkdirAll(filepath.Join(slot, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(slot, "case.txt"), []byte(content), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(slot, "nested", "deep.txt"), []byte(content+"!"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(slot, "a.out"), []byte("#!/bin/sh\n"), 0o755))
	return slot
}

func TestStore_CaptureCopiesSlot(t *testing.T) {
	root := t.TempDir()
	store := New(filepath.Join(root, "fail-out"), filepath.Join(root, "fail-out-old"))
	slot := makeSlot(t, root, "3", "first")

	snap, err := store.Capture("A-1", slot)
	require.NoError(t, err)
	assert.Equal(t, "A-1", snap.FailingID)
	assert.Equal(t, store.Dir(), snap.Dir)

	data, err := os.ReadFile(filepath.Join(store.Dir(), "case.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	deep, err := os.ReadFile(filepath.Join(store.Dir(), "nested", "deep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first!", string(deep))

	info, err := os.Stat(filepath.Join(store.Dir(), "a.out"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100, "executable bit is kept")

	// The slot itself is untouched.
	assert.FileExists(t, filepath.Join(slot, "case.txt"))
	assert.NoDirExists(t, store.Backup())
}

func TestStore_SecondCaptureRotates(t *testing.T) {
	root := t.TempDir()
	store := New(filepath.Join(root, "fail-out"), filepath.Join(root, "fail-out-old"))

	_, err := store.Capture("A-1", makeSlot(t, root, "0", "first"))
	require.NoError(t, err)
	_, err = store.Capture("A-2", makeSlot(t, root, "1", "second"))
	require.NoError(t, err)

	cur, err := os.ReadFile(filepath.Join(store.Dir(), "case.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(cur))

	old, err := os.ReadFile(filepath.Join(store.Backup(), "case.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(old))

	// A third capture replaces the older backup.
	_, err = store.Capture("A-3", makeSlot(t, root, "2", "third"))
	require.NoError(t, err)
	old, err = os.ReadFile(filepath.Join(store.Backup(), "case.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(old))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"out", "fail-out", "fail-out-old"}, names)
}

func TestStore_RotateWithoutQuarantine(t *testing.T) {
	root := t.TempDir()
	store := New(filepath.Join(root, "fail-out"), filepath.Join(root, "fail-out-old"))
	require.NoError(t, store.Rotate())
	assert.NoDirExists(t, store.Backup())
}

func TestStore_CaptureMissingSlot(t *testing.T) {
	root := t.TempDir()
	store := New(filepath.Join(root, "fail-out"), filepath.Join(root, "fail-out-old"))
	_, err := store.Capture("x", filepath.Join(root, "out", "404"))
	assert.Error(t, err)
}
