// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ledger

import "fmt"

// IdentifierConflict reports two results of one run-set sharing a final
// identifier. It is fatal to the statistics phase.
type IdentifierConflict struct {
	ID string
}

func (e *IdentifierConflict) Error() string {
	return fmt.Sprintf("case identifier conflict: %q", e.ID)
}

// LedgerSchemaError reports a malformed historical table.
type LedgerSchemaError struct {
	Path   string
	Line   int
	Reason string
}

func (e *LedgerSchemaError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}
