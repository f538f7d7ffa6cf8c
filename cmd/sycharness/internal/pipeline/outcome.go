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
	"time"

	"github.com/karin0/syc/cmd/sycharness/internal/ledger"
)

// FaultKey labels the single field of a soft-fault record.
const FaultKey = "fault"

// Outcome is the tagged result of one case.
//
// Exactly one of these holds:
//
//   - Err != nil: the case failed at Err.Stage
//   - Skipped: the case never started because the run-set had tripped
//   - otherwise the case passed; Record holds its statistics, or is nil for
//     pipelines that produce none
type Outcome struct {
	Index int
	ID    string

	Record  ledger.Record
	Err     *StageError
	Skipped bool

	Duration time.Duration
}

// Passed reports whether the case ran to completion.
func (o Outcome) Passed() bool {
	return o.Err == nil && !o.Skipped
}

// Fault reports whether the outcome is a simulator soft fault.
func (o Outcome) Fault() bool {
	return len(o.Record) == 1 && o.Record[0].Key == FaultKey
}

// Result returns the ledger contribution, if any.
func (o Outcome) Result() (ledger.Result, bool) {
	if !o.Passed() || len(o.Record) == 0 {
		return ledger.Result{}, false
	}
	return ledger.Result{ID: o.ID, Record: o.Record}, true
}
