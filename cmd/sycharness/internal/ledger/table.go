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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CaseColumn heads the identifier column of every table.
const CaseColumn = "Case"

// DeltaColumn heads the derived difference column of the historical table.
const DeltaColumn = "delta"

// Table is a header plus rows. Rows may be shorter or longer than the header.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable parses a CSV table. Ragged rows are allowed.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Table{}, nil
	}
	return &Table{Header: records[0], Rows: records[1:]}, nil
}

// ReadTableFile reads a CSV table from path.
func ReadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f)
}

// WriteTo writes the table as CSV.
func (t *Table) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	csvw := csv.NewWriter(cw)
	if err := csvw.Write(t.Header); err != nil {
		return cw.n, err
	}
	if err := csvw.WriteAll(t.Rows); err != nil {
		return cw.n, err
	}
	return cw.n, csvw.Error()
}

// WriteFile writes the table to path through a temporary file and a rename,
// so a crash never leaves a half-written table behind.
func (t *Table) WriteFile(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := t.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// validateHistory checks the shape of a historical table. The derived delta
// column and trailing padding are stripped so rows keep their stored shape.
func validateHistory(path string, t *Table) error {
	if len(t.Header) == 0 {
		return &LedgerSchemaError{Path: path, Reason: "empty table"}
	}
	if t.Header[0] != CaseColumn {
		return &LedgerSchemaError{Path: path, Line: 1, Reason: fmt.Sprintf("header starts with %q, want %q", t.Header[0], CaseColumn)}
	}

	if n := len(t.Header); n > 1 && t.Header[n-1] == DeltaColumn {
		t.Header = t.Header[:n-1]
		for i, row := range t.Rows {
			if len(row) > n-1 {
				t.Rows[i] = row[:n-1]
			}
		}
	}

	for i, row := range t.Rows {
		t.Rows[i] = trimTrailingEmpty(row)
	}

	seen := make(map[string]bool, len(t.Rows))
	for i, row := range t.Rows {
		line := i + 2
		if len(row) == 0 || row[0] == "" {
			return &LedgerSchemaError{Path: path, Line: line, Reason: "empty case identifier"}
		}
		if seen[row[0]] {
			return &LedgerSchemaError{Path: path, Line: line, Reason: fmt.Sprintf("duplicate case identifier %q", row[0])}
		}
		seen[row[0]] = true
	}
	return nil
}

func trimTrailingEmpty(row []string) []string {
	n := len(row)
	for n > 1 && row[n-1] == "" {
		n--
	}
	return row[:n]
}

// copyFile copies src over dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
