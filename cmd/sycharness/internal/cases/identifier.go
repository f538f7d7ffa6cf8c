// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cases

import (
	"fmt"
	"path/filepath"
	"strings"
)

// QuarantineIdentifier names the case replayed from the quarantine.
const QuarantineIdentifier = "failure"

// Identifier derives the human-readable name of a source path.
//
// # Description
//
// The first matching rule wins:
//
//  1. under the quarantine directory: "failure"
//  2. under the slots directory out/<rid>/...: "last_<rid>"
//  3. a file named case.txt: its parent directory name
//  4. testfile<N>.txt under the course root: "<group>-<N>"
//  5. testfile<N>.txt under the homework root: "hw-<N>"
//  6. otherwise the slash-separated path relative to the cases root
//
// The result is a pure function of the path and the layout; it is not
// unique. [Plan] resolves collisions.
func (r *Registry) Identifier(src string) string {
	abs, err := filepath.Abs(src)
	if err != nil {
		abs = filepath.Clean(src)
	}

	if within(r.layout.QuarantineDir, abs) {
		return QuarantineIdentifier
	}
	if rel, ok := relative(r.layout.SlotsDir, abs); ok {
		if rid, _, found := strings.Cut(rel, string(filepath.Separator)); found {
			return "last_" + rid
		}
	}
	if filepath.Base(abs) == "case.txt" {
		return filepath.Base(filepath.Dir(abs))
	}
	if within(r.layout.CourseRoot, abs) {
		if n, ok := testfileNumber(abs); ok {
			return filepath.Base(filepath.Dir(abs)) + "-" + n
		}
	}
	if within(r.layout.HomeworkRoot, abs) {
		if n, ok := testfileNumber(abs); ok {
			return "hw-" + n
		}
	}
	if r.layout.CasesRoot != "" {
		if rel, err := filepath.Rel(r.layout.CasesRoot, abs); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(abs)
}

// Entry is a case scheduled for dispatch.
type Entry struct {
	// Index is the dispatch index; the case runs in slot out/<Index>.
	Index int

	// ID is the final identifier, unique within the run-set.
	ID string

	Case TestCase
}

// Plan assigns dispatch indexes and final identifiers in dispatch order.
// It runs single-threaded before any worker starts; the returned table is
// never mutated afterwards.
func (r *Registry) Plan(cases []TestCase) []Entry {
	derived := make([]string, len(cases))
	for i, tc := range cases {
		derived[i] = r.Identifier(tc.SourcePath)
	}
	ids := AssignIdentifiers(derived)

	entries := make([]Entry, len(cases))
	for i, tc := range cases {
		entries[i] = Entry{Index: i, ID: ids[i], Case: tc}
	}
	return entries
}

// AssignIdentifiers resolves collisions among derived identifiers. The first
// claimant of a string keeps it; later claimants get "_0", "_1", ... in order.
func AssignIdentifiers(derived []string) []string {
	claims := make(map[string]int, len(derived))
	out := make([]string, len(derived))
	for i, s := range derived {
		n := claims[s]
		claims[s] = n + 1
		if n == 0 {
			out[i] = s
		} else {
			out[i] = fmt.Sprintf("%s_%d", s, n-1)
		}
	}
	return out
}

// testfileNumber extracts N from testfile<N>.txt.
func testfileNumber(path string) (string, bool) {
	name := filepath.Base(path)
	n, ok := strings.CutPrefix(name, "testfile")
	if !ok {
		return "", false
	}
	n, ok = strings.CutSuffix(n, ".txt")
	if !ok || n == "" {
		return "", false
	}
	return n, true
}

func within(dir, path string) bool {
	_, ok := relative(dir, path)
	return ok
}

// relative returns path relative to dir when path lies strictly inside dir.
func relative(dir, path string) (string, bool) {
	if dir == "" {
		return "", false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}
