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

// Field is one (label, value) pair of a statistics record.
type Field struct {
	Key   string
	Value string
}

// Record is an ordered statistics record. Order defines snapshot column order.
type Record []Field

// Keys returns the labels in order.
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Values returns the values in order.
func (r Record) Values() []string {
	values := make([]string, len(r))
	for i, f := range r {
		values[i] = f.Value
	}
	return values
}

// Metric returns the value tracked in the historical table: the
// second-to-last field, or the only field of a one-field record.
func (r Record) Metric() (string, bool) {
	switch len(r) {
	case 0:
		return "", false
	case 1:
		return r[0].Value, true
	default:
		return r[len(r)-2].Value, true
	}
}

// Result is one case's contribution to a run-set's statistics.
type Result struct {
	// ID is the case's final identifier.
	ID string

	Record Record
}
