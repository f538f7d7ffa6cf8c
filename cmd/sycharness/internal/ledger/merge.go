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

import (
	"strconv"
	"strings"
)

// Synthetic identifiers merged alongside the cases.
const (
	SumID = "~sum"
	AvgID = "~avg"
)

// Metric is one identifier's tracked value for a run.
type Metric struct {
	ID    string
	Value string
}

// Metrics selects each result's tracked value and appends the ~sum and ~avg
// rows over the numeric ones. Results are returned in Key0 order.
func Metrics(results []Result) ([]Metric, error) {
	sorted, err := sortedResults(results)
	if err != nil {
		return nil, err
	}

	var (
		metrics []Metric
		sum     float64
		count   int
	)
	for _, r := range sorted {
		v, ok := r.Record.Metric()
		if !ok {
			continue
		}
		metrics = append(metrics, Metric{ID: r.ID, Value: v})
		if f, ok := numeric(v); ok {
			sum += f
			count++
		}
	}
	if count > 0 {
		metrics = append(metrics,
			Metric{ID: SumID, Value: formatNumber(sum)},
			Metric{ID: AvgID, Value: strconv.FormatFloat(sum/float64(count), 'f', 2, 64)},
		)
	}
	return metrics, nil
}

// ColumnLabel names a run's historical column.
func ColumnLabel(at string, desc string) string {
	if desc = strings.TrimSpace(desc); desc != "" {
		return at + " " + desc
	}
	return at
}

// Merge appends one run's metrics to the historical table as a new column.
//
// # Description
//
// A nil or empty old table starts a new one. Each identifier of this run
// gets its value in the new column: existing rows are cut or padded to the
// prior column count first, and new rows are padded with one empty cell per
// prior column. Rows of identifiers absent from this run are left as they
// are. When any updated row ends in two numeric values a trailing delta
// column is added holding their difference.
//
// Padding short rows keeps every value under its own run's column. Ledgers
// written by older harness versions appended the value straight after a
// row's last cell, so their short rows may hold values under the wrong label.
//
// The old table is not modified.
func Merge(old *Table, metrics []Metric, label string) *Table {
	var header []string
	var rows [][]string
	if old != nil && len(old.Header) > 0 {
		header = append(header, old.Header...)
		for _, row := range old.Rows {
			rows = append(rows, append([]string(nil), row...))
		}
	} else {
		header = []string{CaseColumn}
	}
	width := len(header)

	index := make(map[string]int, len(rows))
	for i, row := range rows {
		index[row[0]] = i
	}

	updated := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		if i, ok := index[m.ID]; ok {
			rows[i] = append(fit(rows[i], width), m.Value)
		} else {
			row := fit([]string{m.ID}, width)
			rows = append(rows, append(row, m.Value))
			index[m.ID] = len(rows) - 1
		}
		updated[m.ID] = true
	}
	sortRows(rows)
	header = append(header, label)

	var (
		deltas   = make(map[string]string)
		anyDelta bool
	)
	for _, row := range rows {
		if !updated[row[0]] || len(row) < 3 {
			continue
		}
		last, ok1 := numeric(row[len(row)-1])
		prev, ok2 := numeric(row[len(row)-2])
		if ok1 && ok2 {
			deltas[row[0]] = formatNumber(last - prev)
			anyDelta = true
		}
	}
	if anyDelta {
		header = append(header, DeltaColumn)
		for i, row := range rows {
			if d, ok := deltas[row[0]]; ok {
				rows[i] = append(row, d)
			}
		}
	}

	return &Table{Header: header, Rows: rows}
}

// fit cuts or pads row to exactly n cells.
func fit(row []string, n int) []string {
	if len(row) >= n {
		return row[:n]
	}
	return append(row, make([]string, n-len(row))...)
}

func numeric(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
