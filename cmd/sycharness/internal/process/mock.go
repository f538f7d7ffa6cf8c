// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package process

import (
	"context"
	"sync"
)

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockProcessManager is a test double for ProcessManager.
//
// Configure the mock by setting function fields before use. If a function
// field is nil and the corresponding method is called, it will panic.
// The recorded-calls lock is released before the function field runs, so
// the mock can back several pipeline workers at once.
//
// # Examples
//
//	mock := &MockProcessManager{
//	    ExecFunc: func(ctx context.Context, spec Spec) (*Result, error) {
//	        if spec.Name == "make" {
//	            return &Result{}, nil
//	        }
//	        return &Result{ExitCode: 1}, NewCommandError(spec.CommandLine(), 1, "boom", nil)
//	    },
//	}
type MockProcessManager struct {
	// ExecFunc is called when Exec is invoked
	ExecFunc func(ctx context.Context, spec Spec) (*Result, error)

	// Calls records all method invocations for verification
	Calls []ProcessManagerCall

	// mu protects Calls for concurrent access
	mu sync.Mutex
}

// ProcessManagerCall records a single method invocation.
type ProcessManagerCall struct {
	Method string
	Name   string
	Args   []string
	Spec   Spec
}

// Exec delegates to ExecFunc and records the call.
func (m *MockProcessManager) Exec(ctx context.Context, spec Spec) (*Result, error) {
	m.record(ProcessManagerCall{Method: "Exec", Name: spec.Name, Args: spec.Args, Spec: spec})
	if m.ExecFunc == nil {
		panic("MockProcessManager.ExecFunc not set")
	}
	return m.ExecFunc(ctx, spec)
}

func (m *MockProcessManager) record(call ProcessManagerCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// Reset clears all recorded calls.
func (m *MockProcessManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of all recorded calls.
func (m *MockProcessManager) GetCalls() []ProcessManagerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ProcessManagerCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

var _ ProcessManager = (*MockProcessManager)(nil)
