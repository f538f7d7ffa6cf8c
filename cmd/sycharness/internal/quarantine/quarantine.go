// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package quarantine preserves the slot of a run-set's first failing case.
package quarantine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Snapshot is a captured failure.
type Snapshot struct {
	// FailingID is the identifier of the captured case.
	FailingID string

	// Dir is where the slot contents were copied.
	Dir string
}

// Store owns the current quarantine directory and its single backup.
//
// # Description
//
// Capture first rotates the current quarantine into the backup location,
// replacing any older backup, and then deep-copies the failing slot. At most
// one current and one previous snapshot ever exist.
//
// # Thread Safety
//
// Store is not synchronized. The coordinator calls Capture only from the
// case that won the failure gate.
//
// # Limitations
//
//   - The backup must be on the same filesystem as the quarantine (rename)
//   - Symbolic links inside a slot are not copied
//
// # Example
//
//	store := quarantine.New("fail-out", "fail-out-old")
//	snap, err := store.Capture("A-3", "out/7")
type Store struct {
	dir    string
	backup string
}

// New creates a store for dir with backup as its rotation target.
func New(dir, backup string) *Store {
	return &Store{dir: dir, backup: backup}
}

// Dir returns the current quarantine directory.
func (s *Store) Dir() string {
	return s.dir
}

// Backup returns the rotation target.
func (s *Store) Backup() string {
	return s.backup
}

// Rotate moves the current quarantine to the backup location. It is a no-op
// when nothing is quarantined.
func (s *Store) Rotate() error {
	if _, err := os.Stat(s.dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", s.dir, err)
	}
	if err := os.RemoveAll(s.backup); err != nil {
		return fmt.Errorf("failed to remove old backup %s: %w", s.backup, err)
	}
	if err := os.Rename(s.dir, s.backup); err != nil {
		return fmt.Errorf("failed to rotate %s: %w", s.dir, err)
	}
	return nil
}

// Capture rotates the current quarantine and copies slot into its place.
func (s *Store) Capture(failingID, slot string) (*Snapshot, error) {
	if err := s.Rotate(); err != nil {
		return nil, err
	}
	if err := os.CopyFS(s.dir, os.DirFS(slot)); err != nil {
		return nil, fmt.Errorf("failed to copy %s to %s: %w", slot, s.dir, err)
	}
	return &Snapshot{FailingID: failingID, Dir: s.dir}, nil
}
