// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"errors"
	"fmt"
)

// Stage names one step of a case pipeline.
type Stage string

const (
	StageSetup     Stage = "setup"
	StageCompile   Stage = "compile"
	StageInput     Stage = "input"
	StageReference Stage = "reference"
	StageSimulate  Stage = "simulate"
	StageDiff      Stage = "diff"
	StageStats     Stage = "stats"

	// StagePanic tags a pipeline that panicked; set by the coordinator.
	StagePanic Stage = "panic"
)

var stageVerbs = map[Stage]string{
	StageSetup:     "preparing slot",
	StageCompile:   "compiling",
	StageInput:     "preparing input",
	StageReference: "running reference",
	StageSimulate:  "simulating",
	StageDiff:      "comparing",
	StageStats:     "reading stats",
}

func (s Stage) verb() string {
	if v, ok := stageVerbs[s]; ok {
		return v
	}
	return string(s)
}

// Sentinel causes for errors.Is checks.
var (
	// ErrSimulatorComplained is the cause when the simulator wrote an
	// unrecognized diagnostic.
	ErrSimulatorComplained = errors.New("simulator complained")

	// ErrOutputMismatch is the cause when the comparator found a difference.
	ErrOutputMismatch = errors.New("output differs from reference")

	// ErrNoStats is the cause when the statistics artifact is missing.
	ErrNoStats = errors.New("statistics artifact missing")
)

// StageError is a case pipeline failure tagged with the stage that failed.
//
// # Description
//
// Local to one case: siblings keep running. The coordinator turns the first
// StageError of a run-set into the quarantine capture.
//
// # Example
//
//	var se *StageError
//	if errors.As(err, &se) && se.Stage == StageSimulate {
//	    // inspect se.Cause
//	}
type StageError struct {
	Stage Stage

	// Case is the final identifier of the failing case.
	Case string

	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Case, e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// NewStageError creates a StageError.
func NewStageError(stage Stage, id string, cause error) *StageError {
	return &StageError{Stage: stage, Case: id, Cause: cause}
}

var _ error = (*StageError)(nil)
