// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/karin0/syc/cmd/sycharness/internal/pipeline"
	"github.com/karin0/syc/cmd/sycharness/internal/quarantine"
)

// State is the failure gate of a run-set.
type State int

const (
	// Armed means no case has failed yet.
	Armed State = iota

	// Tripped means a failure claimed the quarantine; cases that have not
	// started yet are skipped.
	Tripped
)

func (s State) String() string {
	if s == Tripped {
		return "tripped"
	}
	return "armed"
}

// RunContext is the shared state of one run-set. Every worker gets the same
// RunContext; nothing about a run lives in package variables.
type RunContext struct {
	// ID identifies the run-set in logs, traces and the journal.
	ID string

	// StartedAt is when the run-set was created.
	StartedAt time.Time

	// mu guards the gate and the quarantine claim together.
	mu         sync.Mutex
	state      State
	snapshot   *quarantine.Snapshot
	captureErr error

	resultsMu sync.Mutex
	outcomes  []pipeline.Outcome
}

// NewRunContext creates an armed run context.
func NewRunContext() *RunContext {
	return &RunContext{ID: uuid.NewString(), StartedAt: time.Now()}
}

// State returns the gate state.
func (rc *RunContext) State() State {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

// Tripped reports whether a failure has claimed the quarantine.
func (rc *RunContext) Tripped() bool {
	return rc.State() == Tripped
}

// claim trips the gate. Exactly one caller per run-set gets true.
func (rc *RunContext) claim() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.state == Tripped {
		return false
	}
	rc.state = Tripped
	return true
}

func (rc *RunContext) captured(snap *quarantine.Snapshot, err error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.snapshot = snap
	rc.captureErr = err
}

// Quarantine returns the captured snapshot, or nil.
func (rc *RunContext) Quarantine() *quarantine.Snapshot {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.snapshot
}

func (rc *RunContext) record(out pipeline.Outcome) {
	rc.resultsMu.Lock()
	defer rc.resultsMu.Unlock()
	rc.outcomes = append(rc.outcomes, out)
}

// Outcomes returns every recorded outcome ordered by dispatch index.
func (rc *RunContext) Outcomes() []pipeline.Outcome {
	rc.resultsMu.Lock()
	defer rc.resultsMu.Unlock()
	out := make([]pipeline.Outcome, len(rc.outcomes))
	copy(out, rc.outcomes)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
