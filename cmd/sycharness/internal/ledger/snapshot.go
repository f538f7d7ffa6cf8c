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

import "sort"

// sortedResults returns results ordered by identifier, rejecting duplicates.
func sortedResults(results []Result) ([]Result, error) {
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if seen[r.ID] {
			return nil, &IdentifierConflict{ID: r.ID}
		}
		seen[r.ID] = true
	}

	sorted := append([]Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessID(sorted[i].ID, sorted[j].ID)
	})
	return sorted, nil
}

// Snapshot builds the per-run table: one row per result, in Key0 order.
//
// The header is "Case" followed by the labels of the first record in Key0
// order that has more than one field; a record of a single field (a soft
// fault) supplies the header only when there is nothing else.
func Snapshot(results []Result) (*Table, error) {
	sorted, err := sortedResults(results)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, r := range sorted {
		if len(r.Record) > 1 {
			keys = r.Record.Keys()
			break
		}
	}
	if keys == nil && len(sorted) > 0 {
		keys = sorted[0].Record.Keys()
	}

	t := &Table{Header: append([]string{CaseColumn}, keys...)}
	for _, r := range sorted {
		t.Rows = append(t.Rows, append([]string{r.ID}, r.Record.Values()...))
	}
	return t, nil
}
