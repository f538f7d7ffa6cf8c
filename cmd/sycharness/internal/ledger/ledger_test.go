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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stat(id string, total string) Result {
	return Result{ID: id, Record: Record{{Key: "Mult", Value: "1"}, {Key: "Total", Value: total}, {Key: "cnt", Value: "0"}}}
}

func fault(id string) Result {
	return Result{ID: id, Record: Record{{Key: "fault", Value: "div by zero"}}}
}

func rowsByID(t *Table) map[string][]string {
	m := make(map[string][]string, len(t.Rows))
	for _, row := range t.Rows {
		m[row[0]] = row
	}
	return m
}

func ids(t *Table) []string {
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[0]
	}
	return out
}

func TestKey0(t *testing.T) {
	tests := []struct {
		id   string
		want SortKey
	}{
		{"A-10", SortKey{"A", 10}},
		{"hw-3", SortKey{"hw", 3}},
		{"case-1-2", SortKey{"case-1", 2}},
		{"plain", SortKey{"plain", 0}},
		{"a-b", SortKey{"a-b", 0}},
		{"a-", SortKey{"a-", 0}},
		{"~sum", SortKey{"~sum", 0}},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, Key0(tt.id))
		})
	}
}

func TestKey0_Ordering(t *testing.T) {
	rows := [][]string{{"A-10"}, {"B-1"}, {"A-2"}, {"A"}, {"~sum"}, {"A-1"}}
	sortRows(rows)

	var got []string
	for _, r := range rows {
		got = append(got, r[0])
	}
	assert.Equal(t, []string{"A", "A-1", "A-2", "A-10", "B-1", "~sum"}, got)
}

func TestRecord_Metric(t *testing.T) {
	v, ok := stat("a", "42").Record.Metric()
	require.True(t, ok)
	assert.Equal(t, "42", v)

	v, ok = fault("a").Record.Metric()
	require.True(t, ok)
	assert.Equal(t, "div by zero", v)

	_, ok = Record{}.Metric()
	assert.False(t, ok)
}

func TestSnapshot(t *testing.T) {
	snap, err := Snapshot([]Result{stat("A-10", "7"), fault("A-1"), stat("A-2", "5")})
	require.NoError(t, err)

	assert.Equal(t, []string{"Case", "Mult", "Total", "cnt"}, snap.Header)
	assert.Equal(t, [][]string{
		{"A-1", "div by zero"},
		{"A-2", "1", "5", "0"},
		{"A-10", "1", "7", "0"},
	}, snap.Rows)
}

func TestSnapshot_FaultOnly(t *testing.T) {
	snap, err := Snapshot([]Result{fault("x")})
	require.NoError(t, err)
	assert.Equal(t, []string{"Case", "fault"}, snap.Header)
}

func TestSnapshot_IdentifierConflict(t *testing.T) {
	_, err := Snapshot([]Result{stat("dup", "1"), stat("dup", "2")})
	var conflict *IdentifierConflict
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "dup", conflict.ID)
}

func TestMetrics_SumAndAverage(t *testing.T) {
	metrics, err := Metrics([]Result{stat("a-1", "10"), stat("a-2", "5"), fault("a-3")})
	require.NoError(t, err)

	assert.Equal(t, []Metric{
		{"a-1", "10"},
		{"a-2", "5"},
		{"a-3", "div by zero"},
		{SumID, "15"},
		{AvgID, "7.50"},
	}, metrics)
}

func TestMetrics_NothingNumeric(t *testing.T) {
	metrics, err := Metrics([]Result{fault("a")})
	require.NoError(t, err)
	assert.Equal(t, []Metric{{"a", "div by zero"}}, metrics)
}

func TestMerge_GrowingRunSets(t *testing.T) {
	m1, err := Metrics([]Result{stat("A-1", "10"), stat("A-2", "20")})
	require.NoError(t, err)
	first := Merge(nil, m1, "L1")

	assert.Equal(t, []string{"Case", "L1"}, first.Header)
	assert.Equal(t, []string{"A-1", "A-2", AvgID, SumID}, ids(first))
	assert.Equal(t, []string{SumID, "30"}, rowsByID(first)[SumID])

	m2, err := Metrics([]Result{stat("A-1", "12"), stat("A-2", "20"), stat("A-3", "5")})
	require.NoError(t, err)
	second := Merge(first, m2, "L2")

	assert.Equal(t, []string{"Case", "L1", "L2", DeltaColumn}, second.Header)
	assert.Equal(t, []string{"A-1", "A-2", "A-3", AvgID, SumID}, ids(second))

	rows := rowsByID(second)
	assert.Equal(t, []string{"A-1", "10", "12", "2"}, rows["A-1"])
	assert.Equal(t, []string{"A-2", "20", "20", "0"}, rows["A-2"])
	assert.Equal(t, []string{"A-3", "", "5"}, rows["A-3"])
	assert.Equal(t, []string{SumID, "30", "37", "7"}, rows[SumID])

	// Earlier columns are untouched.
	for _, row := range first.Rows {
		assert.Equal(t, row, rows[row[0]][:2])
	}
	assert.Equal(t, []string{"Case", "L1"}, first.Header)
}

func TestMerge_AbsentRowsUntouched(t *testing.T) {
	old := &Table{
		Header: []string{"Case", "L1"},
		Rows:   [][]string{{"gone-1", "4"}, {"kept-1", "3"}},
	}
	merged := Merge(old, []Metric{{"kept-1", "5"}}, "L2")

	rows := rowsByID(merged)
	assert.Equal(t, []string{"gone-1", "4"}, rows["gone-1"])
	assert.Equal(t, []string{"kept-1", "3", "5", "2"}, rows["kept-1"])
}

func TestMerge_LongRowTruncated(t *testing.T) {
	old := &Table{
		Header: []string{"Case", "L1"},
		Rows:   [][]string{{"A-1", "1", "2", "3"}},
	}
	merged := Merge(old, []Metric{{"A-1", "9"}}, "L2")
	assert.Equal(t, []string{"A-1", "1", "9", "8"}, merged.Rows[0])
}

func TestMerge_ShortRowPaddedToColumn(t *testing.T) {
	old := &Table{
		Header: []string{"Case", "L1", "L2"},
		Rows:   [][]string{{"B-1", "4"}},
	}
	merged := Merge(old, []Metric{{"B-1", "6"}}, "L3")
	assert.Equal(t, []string{"Case", "L1", "L2", "L3"}, merged.Header)
	assert.Equal(t, []string{"B-1", "4", "", "6"}, merged.Rows[0])
}

func TestColumnLabel(t *testing.T) {
	assert.Equal(t, "03-04 05:06:07", ColumnLabel("03-04 05:06:07", "  "))
	assert.Equal(t, "03-04 05:06:07 baseline", ColumnLabel("03-04 05:06:07", "baseline"))
}

func TestLedger_Commit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "stats")
	l := New(dir, nil)
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	sum, err := l.Commit([]Result{stat("A-2", "20"), stat("A-1", "10")}, "baseline", at)
	require.NoError(t, err)
	require.NotNil(t, sum)

	assert.Equal(t, filepath.Join(dir, "result_2026-03-04_05-06-07.csv"), sum.SnapshotPath)
	assert.Equal(t, "03-04 05:06:07 baseline", sum.Column)
	assert.Equal(t, 4, sum.Rows)
	assert.NoFileExists(t, filepath.Join(dir, HistoryBackupFile))

	snap, err := ReadTableFile(sum.SnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1", "A-2"}, ids(snap))

	firstHistory, err := os.ReadFile(l.HistoryPath())
	require.NoError(t, err)

	later := at.Add(time.Hour)
	_, err = l.Commit([]Result{stat("A-1", "11"), stat("A-2", "20"), stat("A-3", "1")}, "", later)
	require.NoError(t, err)

	backup, err := os.ReadFile(filepath.Join(dir, HistoryBackupFile))
	require.NoError(t, err)
	assert.Equal(t, string(firstHistory), string(backup))

	history, err := ReadTableFile(l.HistoryPath())
	require.NoError(t, err)
	assert.Equal(t, []string{"Case", "03-04 05:06:07 baseline", "03-04 06:06:07", DeltaColumn}, history.Header)
	assert.Equal(t, []string{"A-1", "10", "11", "1"}, rowsByID(history)["A-1"])
}

func TestLedger_DeltaDroppedOnReread(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, nil)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := l.Commit([]Result{stat("A-1", "10"), stat("A-2", "20")}, "", at)
	require.NoError(t, err)
	_, err = l.Commit([]Result{stat("A-1", "12"), stat("A-2", "25")}, "", at.Add(time.Minute))
	require.NoError(t, err)
	_, err = l.Commit([]Result{stat("A-1", "13")}, "", at.Add(2*time.Minute))
	require.NoError(t, err)

	history, err := ReadTableFile(l.HistoryPath())
	require.NoError(t, err)
	require.Len(t, history.Header, 5)
	assert.Equal(t, DeltaColumn, history.Header[4])

	rows := rowsByID(history)
	assert.Equal(t, []string{"A-1", "10", "12", "13", "1"}, rows["A-1"])
	// A-2 sat out the last run: its old delta cell is gone.
	assert.Equal(t, []string{"A-2", "20", "25"}, rows["A-2"])
}

func TestLedger_EmptyResultsWriteNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "stats")
	sum, err := New(dir, nil).Commit(nil, "", time.Now())
	require.NoError(t, err)
	assert.Nil(t, sum)
	assert.NoDirExists(t, dir)
}

func TestLedger_ConflictWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "stats")
	_, err := New(dir, nil).Commit([]Result{stat("x", "1"), stat("x", "2")}, "", time.Now())

	var conflict *IdentifierConflict
	require.True(t, errors.As(err, &conflict))
	assert.NoDirExists(t, dir)
}

func TestLedger_SchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{"empty", "", "empty table"},
		{"bad header", "Name,L1\na,1\n", "header starts with"},
		{"empty id", "Case,L1\n,1\n", "empty case identifier"},
		{"duplicate", "Case,L1\na,1\na,2\n", "duplicate case identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, HistoryFile), []byte(tt.content), 0o644))

			sum, err := New(dir, nil).Commit([]Result{stat("a", "1")}, "", time.Now())
			var schema *LedgerSchemaError
			require.True(t, errors.As(err, &schema), "got %v", err)
			assert.True(t, strings.Contains(schema.Reason, tt.reason), schema.Reason)

			// The snapshot is still written; the history is left alone.
			require.NotNil(t, sum)
			assert.FileExists(t, sum.SnapshotPath)
			data, err := os.ReadFile(filepath.Join(dir, HistoryFile))
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))
		})
	}
}
