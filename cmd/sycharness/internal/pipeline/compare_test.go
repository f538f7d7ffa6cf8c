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

package pipeline

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karin0/syc/cmd/sycharness/internal/process"
)

func TestCompareText(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		actual   string
		equal    bool
	}{
		{"whitespace runs", "3 4\n", "3  4", true},
		{"tabs and trailing", "a\tb  \nc\n", "a b\nc", true},
		{"both empty", "", "\n", true},
		{"different token", "3 4\n", "3 5\n", false},
		{"extra line", "1\n", "1\n2\n", false},
		{"blank line matters", "1\n\n2\n", "1\n2\n", false},
		{"leading whitespace matters", "3\n", " 3\n", false},
		{"leading runs collapse", "  3\n", "\t3\n", true},
		{"whitespace-only line is blank", "1\n   \n", "1\n\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompareText([]byte(tt.expected), []byte(tt.actual))
			assert.Equal(t, tt.equal, got.Equal)
			if !tt.equal {
				assert.NotEmpty(t, got.Summary)
			}
		})
	}
}

func TestWhitespaceComparator(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "ans.txt")
	got := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(want, []byte("3 4\n"), 0o644))
	require.NoError(t, os.WriteFile(got, []byte("3  4"), 0o644))

	cmp, err := WhitespaceComparator{}.Compare(context.Background(), want, got)
	require.NoError(t, err)
	assert.True(t, cmp.Equal)

	_, err = WhitespaceComparator{}.Compare(context.Background(), filepath.Join(dir, "missing"), got)
	assert.Error(t, err)
}

func TestExternalComparator_Diff(t *testing.T) {
	if _, err := exec.LookPath("diff"); err != nil {
		t.Skip("diff not installed")
	}
	pm := process.NewDefaultProcessManager()
	cmp, err := NewExternalComparator(pm, []string{"diff", "-b", "-u", "{expected}", "{actual}"}, 5*time.Second)
	require.NoError(t, err)

	dir := t.TempDir()
	want := filepath.Join(dir, "ans.txt")
	got := filepath.Join(dir, "out.txt")

	require.NoError(t, os.WriteFile(want, []byte("1\n3 4\n5\n"), 0o644))
	require.NoError(t, os.WriteFile(got, []byte("1\n3   4\n5\n"), 0o644))
	res, err := cmp.Compare(context.Background(), want, got)
	require.NoError(t, err)
	assert.True(t, res.Equal)

	require.NoError(t, os.WriteFile(got, []byte("1\n3 5\n5\n"), 0o644))
	res, err = cmp.Compare(context.Background(), want, got)
	require.NoError(t, err)
	assert.False(t, res.Equal)
	assert.Contains(t, res.Summary, "1 hunk(s), +1 -1")
	assert.FileExists(t, filepath.Join(dir, DiffFileName))

	_, err = cmp.Compare(context.Background(), filepath.Join(dir, "missing"), got)
	assert.Error(t, err, "diff exits 2 on trouble")
}

func TestExternalComparator_MockedExitCodes(t *testing.T) {
	mock := &process.MockProcessManager{
		ExecFunc: func(ctx context.Context, spec process.Spec) (*process.Result, error) {
			if spec.Args[0] == "same" {
				return &process.Result{}, nil
			}
			return &process.Result{ExitCode: 1}, process.NewCommandError("fc", 1, "", errors.New("exit status 1"))
		},
	}
	cmp, err := NewExternalComparator(mock, []string{"fc", "{expected}", "{actual}"}, time.Second)
	require.NoError(t, err)

	dir := t.TempDir()
	res, err := cmp.Compare(context.Background(), "same", filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.True(t, res.Equal)

	res, err = cmp.Compare(context.Background(), "other", filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.False(t, res.Equal)
	assert.Equal(t, "outputs differ", res.Summary)

	_, err = NewExternalComparator(mock, nil, time.Second)
	assert.Error(t, err)
}

func TestSummarizeUnifiedDiff(t *testing.T) {
	patch := "--- ans.txt\n+++ out.txt\n@@ -2,3 +2,3 @@\n 1\n-2\n+3\n 4\n@@ -9,1 +9,2 @@\n 9\n+10\n"
	assert.Equal(t, "2 hunk(s), +2 -1, first near line 2", SummarizeUnifiedDiff([]byte(patch)))
	assert.Equal(t, "outputs differ", SummarizeUnifiedDiff([]byte("2c2\n< 2\n---\n> 3\n")))
	assert.Equal(t, "outputs differ", SummarizeUnifiedDiff(nil))
}
