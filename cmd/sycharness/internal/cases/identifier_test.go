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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Identifier(t *testing.T) {
	work, reg := fixture(t)
	cases := filepath.Join(work, "cases")

	tests := []struct {
		name string
		path string
		want string
	}{
		{"quarantine wins over case.txt", filepath.Join(work, "fail-out", "case.txt"), "failure"},
		{"slot", filepath.Join(work, "out", "7", "case.txt"), "last_7"},
		{"case directory", filepath.Join(cases, "single", "case.txt"), "single"},
		{"course tree", filepath.Join(cases, "926", "testfiles", "C", "testfile12.txt"), "C-12"},
		{"homework tree", filepath.Join(cases, "hw", "testfile4.txt"), "hw-4"},
		{"course tree without number", filepath.Join(cases, "926", "testfiles", "A", "notes.txt"), "926/testfiles/A/notes.txt"},
		{"relative fallback", filepath.Join(cases, "loop.c"), "loop.c"},
		{"outside root", filepath.Join(work, "elsewhere", "x.c"), "../elsewhere/x.c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Identifier(tt.path))
		})
	}
}

func TestRegistry_IdentifierIsPure(t *testing.T) {
	work, reg := fixture(t)
	p := filepath.Join(work, "cases", "926", "testfiles", "A", "testfile1.txt")
	assert.Equal(t, reg.Identifier(p), reg.Identifier(p))
}

func TestAssignIdentifiers(t *testing.T) {
	tests := []struct {
		name    string
		derived []string
		want    []string
	}{
		{"unique", []string{"a", "b"}, []string{"a", "b"}},
		{"pair", []string{"x", "x"}, []string{"x", "x_0"}},
		{"interleaved", []string{"x", "y", "x", "x", "y"}, []string{"x", "y", "x_0", "x_1", "y_0"}},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssignIdentifiers(tt.derived))
		})
	}
}

func TestRegistry_PlanFollowsDispatchOrder(t *testing.T) {
	work, reg := fixture(t)
	a := filepath.Join(work, "cases", "p", "dup", "case.txt")
	b := filepath.Join(work, "cases", "q", "dup", "case.txt")

	entries := reg.Plan([]TestCase{{SourcePath: b}, {SourcePath: a}})
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].Index)
	assert.Equal(t, "dup", entries[0].ID)
	assert.Equal(t, b, entries[0].Case.SourcePath)
	assert.Equal(t, 1, entries[1].Index)
	assert.Equal(t, "dup_0", entries[1].ID)
}
