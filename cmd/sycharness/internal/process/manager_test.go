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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProcessManager_CapturesStdout(t *testing.T) {
	pm := NewDefaultProcessManager()
	res, err := pm.Exec(context.Background(), Spec{Name: "sh", Args: []string{"-c", "printf hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Stdout))
	assert.Equal(t, 0, res.ExitCode)
}

func TestDefaultProcessManager_NonZeroExit(t *testing.T) {
	pm := NewDefaultProcessManager()
	res, err := pm.Exec(context.Background(), Spec{
		Name: "sh",
		Args: []string{"-c", "echo broken >&2; exit 3"},
	})
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "broken", cmdErr.Stderr)
	assert.False(t, cmdErr.TimedOut)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "broken\n", string(res.Stderr))
}

func TestDefaultProcessManager_Redirection(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(in, []byte("1\n2\n"), 0o644))

	pm := NewDefaultProcessManager()
	res, err := pm.Exec(context.Background(), Spec{Name: "cat", StdinPath: in, StdoutPath: out})
	require.NoError(t, err)
	assert.Empty(t, res.Stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n", string(data))
}

func TestDefaultProcessManager_NoStdinIsEmpty(t *testing.T) {
	pm := NewDefaultProcessManager()
	res, err := pm.Exec(context.Background(), Spec{Name: "sh", Args: []string{"-c", "wc -c"}})
	require.NoError(t, err)
	assert.Contains(t, string(res.Stdout), "0")
}

func TestDefaultProcessManager_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), []byte("x"), 0o644))

	pm := NewDefaultProcessManager()
	res, err := pm.Exec(context.Background(), Spec{Name: "ls", Dir: dir})
	require.NoError(t, err)
	assert.Contains(t, string(res.Stdout), "marker")
}

func TestDefaultProcessManager_TimeoutKillsProcessGroup(t *testing.T) {
	pm := NewDefaultProcessManager()
	start := time.Now()
	// The child sleep inherits the group and must die with its parent.
	_, err := pm.Exec(context.Background(), Spec{
		Name:    "sh",
		Args:    []string{"-c", "sleep 30 & wait"},
		Timeout: 200 * time.Millisecond,
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, elapsed, 10*time.Second)
}

func TestDefaultProcessManager_MissingExecutable(t *testing.T) {
	pm := NewDefaultProcessManager()
	_, err := pm.Exec(context.Background(), Spec{Name: "definitely-not-a-real-tool-xyz"})
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
}

func TestDefaultProcessManager_MissingStdinFile(t *testing.T) {
	pm := NewDefaultProcessManager()
	_, err := pm.Exec(context.Background(), Spec{Name: "cat", StdinPath: "/nonexistent/in.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open stdin")
}

func TestDefaultProcessManager_EmptyCommand(t *testing.T) {
	pm := NewDefaultProcessManager()
	res, err := pm.Exec(context.Background(), Spec{})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, -1, res.ExitCode)
}

func TestCommandError_Formatting(t *testing.T) {
	tests := []struct {
		name string
		err  *CommandError
		want string
	}{
		{"with stderr", NewCommandError("gcc a.c", 1, "  syntax error \n", nil), "gcc a.c (exit 1): syntax error"},
		{"wrapped only", NewCommandError("make", 2, "", fmt.Errorf("boom")), "make (exit 2): boom"},
		{"bare", NewCommandError("diff", 1, "", nil), "diff (exit 1)"},
		{"timeout", &CommandError{Command: "java", TimedOut: true, Timeout: 8 * time.Second}, "java: timed out after 8s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestExtractStderr(t *testing.T) {
	inner := NewCommandError("java", 1, "Runtime exception", nil)
	outer := fmt.Errorf("simulate: %w", inner)
	assert.Equal(t, "Runtime exception", ExtractStderr(outer))
	assert.Equal(t, "", ExtractStderr(errors.New("plain")))
	assert.Equal(t, "", ExtractStderr(nil))
}

func TestMockProcessManager_RecordsCalls(t *testing.T) {
	mock := &MockProcessManager{
		ExecFunc: func(ctx context.Context, spec Spec) (*Result, error) {
			return &Result{Stdout: []byte(spec.Name)}, nil
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = mock.Exec(context.Background(), Spec{Name: "syc"})
		}()
	}
	wg.Wait()
	_, _ = mock.Exec(context.Background(), Spec{Name: "make", Args: []string{"-j4"}, Dir: "build"})

	calls := mock.GetCalls()
	require.Len(t, calls, 9)
	assert.Equal(t, "Exec", calls[8].Method)
	assert.Equal(t, []string{"-j4"}, calls[8].Args)
	assert.Equal(t, "build", calls[8].Spec.Dir)

	mock.Reset()
	assert.Empty(t, mock.GetCalls())
}

func TestMockProcessManager_PanicsWhenUnset(t *testing.T) {
	mock := &MockProcessManager{}
	assert.Panics(t, func() { _, _ = mock.Exec(context.Background(), Spec{Name: "x"}) })
}
