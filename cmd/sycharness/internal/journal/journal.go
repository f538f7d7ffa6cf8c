// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package journal keeps a history of run-sets in an embedded BadgerDB.
//
// Each drained run-set leaves one [RunRecord]: when it ran, how many cases
// passed, failed and were skipped, and which case (if any) was quarantined.
// Keys sort by start time, so the newest runs are read first.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "run/"

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("run not found")

// RunRecord summarizes one run-set.
type RunRecord struct {
	ID          string        `json:"id"`
	Mode        string        `json:"mode"`
	StartedAt   time.Time     `json:"started_at"`
	Elapsed     time.Duration `json:"elapsed"`
	Cases       int           `json:"cases"`
	Passed      int           `json:"passed"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	Quarantined string        `json:"quarantined_case,omitempty"`
	Description string        `json:"description,omitempty"`
	Snapshot    string        `json:"snapshot,omitempty"`
}

// Journal is a run history backed by BadgerDB.
//
// Thread Safety: Safe for concurrent use.
type Journal struct {
	db *badger.DB
}

// Open opens or creates the journal in dir. A nil logger silences Badger.
func Open(dir string, logger *slog.Logger) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("path is required for persistent journal")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create journal directory %s: %w", dir, err)
	}
	return open(badger.DefaultOptions(dir).WithSyncWrites(true), logger)
}

// OpenInMemory opens a journal that is lost on Close. Used by tests.
func OpenInMemory() (*Journal, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), nil)
}

func open(opts badger.Options, logger *slog.Logger) (*Journal, error) {
	opts = opts.WithNumVersionsToKeep(1)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores rec. A record with the same id and start time is replaced.
func (j *Journal) Record(rec RunRecord) error {
	if rec.ID == "" {
		return errors.New("run record has no id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec), data)
	})
}

// List returns up to n records, newest first. n < 1 means all of them.
func (j *Journal) List(n int) ([]RunRecord, error) {
	var out []RunRecord
	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the largest key at or below the seek key.
		for it.Seek(append([]byte(keyPrefix), 0xff)); it.ValidForPrefix(opts.Prefix); it.Next() {
			if n > 0 && len(out) >= n {
				break
			}
			var rec RunRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// Get returns the record with the given id.
func (j *Journal) Get(id string) (*RunRecord, error) {
	all, err := j.List(0)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// recordKey is run/<big-endian unix nanos>/<id>, so byte order is time order.
func recordKey(rec RunRecord) []byte {
	key := make([]byte, 0, len(keyPrefix)+8+1+len(rec.ID))
	key = append(key, keyPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(rec.StartedAt.UnixNano()))
	key = append(key, '/')
	return append(key, rec.ID...)
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
