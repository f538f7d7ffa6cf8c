// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ledger persists run-set statistics.
//
// # Description
//
// Every run-set with results writes a snapshot table
// (stats/result_YYYY-MM-DD_HH-MM-SS.csv) and adds one column to the
// historical table (stats/results.csv), which is backed up to
// results.csv.old.csv before it is rewritten. Rows of both tables are
// ordered by [Key0].
package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/karin0/syc/pkg/logging"
)

const (
	// HistoryFile is the historical table inside the stats directory.
	HistoryFile = "results.csv"

	// HistoryBackupFile holds the historical table as it was before the
	// latest merge.
	HistoryBackupFile = "results.csv.old.csv"

	snapshotLayout = "2006-01-02_15-04-05"
	columnLayout   = "01-02 15:04:05"
)

// Ledger writes statistics under one directory.
type Ledger struct {
	dir    string
	logger *logging.Logger
}

// New creates a ledger rooted at dir. The directory is created on first use.
func New(dir string, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Ledger{dir: dir, logger: logger}
}

// Dir returns the stats directory.
func (l *Ledger) Dir() string {
	return l.dir
}

// HistoryPath returns the path of the historical table.
func (l *Ledger) HistoryPath() string {
	return filepath.Join(l.dir, HistoryFile)
}

// Summary describes what a Commit wrote.
type Summary struct {
	SnapshotPath string
	HistoryPath  string
	Column       string
	Rows         int
}

// Commit writes the snapshot for results and merges them into the history.
//
// # Description
//
// Nothing is written when results is empty. The column is labeled with at
// and desc. An IdentifierConflict is returned before any file is touched;
// a LedgerSchemaError leaves the snapshot written but the history as it was.
func (l *Ledger) Commit(results []Result, desc string, at time.Time) (*Summary, error) {
	if len(results) == 0 {
		return nil, nil
	}

	snap, err := Snapshot(results)
	if err != nil {
		return nil, err
	}
	metrics, err := Metrics(results)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create stats dir: %w", err)
	}

	sum := &Summary{
		SnapshotPath: filepath.Join(l.dir, "result_"+at.Format(snapshotLayout)+".csv"),
		HistoryPath:  l.HistoryPath(),
		Column:       ColumnLabel(at.Format(columnLayout), desc),
	}
	if err := snap.WriteFile(sum.SnapshotPath); err != nil {
		return nil, err
	}
	l.logger.Info("snapshot written", "path", sum.SnapshotPath, "cases", len(snap.Rows))

	old, err := l.loadHistory()
	if err != nil {
		return sum, err
	}

	merged := Merge(old, metrics, sum.Column)
	if err := merged.WriteFile(sum.HistoryPath); err != nil {
		return sum, err
	}
	sum.Rows = len(merged.Rows)
	l.logger.Info("history merged", "path", sum.HistoryPath, "column", sum.Column, "rows", sum.Rows)
	return sum, nil
}

// loadHistory backs up and parses the historical table. A missing table
// yields nil.
func (l *Ledger) loadHistory() (*Table, error) {
	path := l.HistoryPath()
	t, err := ReadTableFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &LedgerSchemaError{Path: path, Reason: err.Error()}
	}

	if err := copyFile(path, filepath.Join(l.dir, HistoryBackupFile)); err != nil {
		return nil, fmt.Errorf("failed to back up %s: %w", path, err)
	}
	if err := validateHistory(path, t); err != nil {
		return nil, err
	}
	return t, nil
}
