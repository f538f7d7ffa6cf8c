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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/karin0/syc/cmd/sycharness/internal/process"
)

// DiffFileName is where the external comparator's output is kept in the slot.
const DiffFileName = "diff.txt"

// Comparison is the verdict of a comparator.
type Comparison struct {
	Equal bool

	// Summary describes the first difference; empty when Equal.
	Summary string
}

// Comparator decides whether two output files are equivalent, ignoring
// differences in runs of whitespace.
type Comparator interface {
	Compare(ctx context.Context, expected, actual string) (Comparison, error)
}

// =============================================================================
// External comparator
// =============================================================================

// ExternalComparator runs a diff utility. Exit 0 means equal, exit 1 means
// different; anything else is an error. The tool's stdout is saved next to
// the actual output and summarized when it is a unified diff.
type ExternalComparator struct {
	pm      process.ProcessManager
	argv    []string
	timeout time.Duration
}

// NewExternalComparator creates a comparator from an argv template using
// the {expected} and {actual} placeholders.
func NewExternalComparator(pm process.ProcessManager, argv []string, timeout time.Duration) (*ExternalComparator, error) {
	if err := CheckTemplate(argv, "expected", "actual"); err != nil {
		return nil, fmt.Errorf("comparator: %w", err)
	}
	return &ExternalComparator{pm: pm, argv: argv, timeout: timeout}, nil
}

// Compare implements Comparator.
func (c *ExternalComparator) Compare(ctx context.Context, expected, actual string) (Comparison, error) {
	out := filepath.Join(filepath.Dir(actual), DiffFileName)
	argv := Expand(c.argv, map[string]string{"expected": expected, "actual": actual})

	_, err := c.pm.Exec(ctx, process.Spec{
		Name:       argv[0],
		Args:       argv[1:],
		StdoutPath: out,
		Timeout:    c.timeout,
	})
	if err == nil {
		return Comparison{Equal: true}, nil
	}

	var cmdErr *process.CommandError
	if errors.As(err, &cmdErr) && !cmdErr.TimedOut && cmdErr.ExitCode == 1 {
		data, readErr := os.ReadFile(out)
		if readErr != nil {
			return Comparison{Summary: "outputs differ"}, nil
		}
		return Comparison{Summary: SummarizeUnifiedDiff(data)}, nil
	}
	return Comparison{}, fmt.Errorf("comparator: %w", err)
}

// SummarizeUnifiedDiff condenses a unified diff into one line. Output that
// does not parse as a unified diff gets a generic summary.
func SummarizeUnifiedDiff(data []byte) string {
	files, err := diff.NewMultiFileDiffReader(bytes.NewReader(data)).ReadAllFiles()
	if err != nil || len(files) == 0 {
		return "outputs differ"
	}

	hunks, added, removed := 0, 0, 0
	first := int32(0)
	for _, fd := range files {
		for _, hunk := range fd.Hunks {
			if hunks == 0 {
				first = hunk.OrigStartLine
			}
			hunks++
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				switch {
				case strings.HasPrefix(line, "+"):
					added++
				case strings.HasPrefix(line, "-"):
					removed++
				}
			}
		}
	}
	if hunks == 0 {
		return "outputs differ"
	}
	return fmt.Sprintf("%d hunk(s), +%d -%d, first near line %d", hunks, added, removed, first)
}

// =============================================================================
// Built-in comparator
// =============================================================================

// WhitespaceComparator compares line by line after collapsing every run of
// whitespace to one space and dropping trailing whitespace, like `diff -b`.
type WhitespaceComparator struct{}

// Compare implements Comparator.
func (WhitespaceComparator) Compare(_ context.Context, expected, actual string) (Comparison, error) {
	want, err := os.ReadFile(expected)
	if err != nil {
		return Comparison{}, fmt.Errorf("read expected: %w", err)
	}
	got, err := os.ReadFile(actual)
	if err != nil {
		return Comparison{}, fmt.Errorf("read actual: %w", err)
	}
	return CompareText(want, got), nil
}

// CompareText is the whitespace-insensitive comparison behind WhitespaceComparator.
func CompareText(expected, actual []byte) Comparison {
	a, b := normalizedLines(expected), normalizedLines(actual)
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return Comparison{Summary: fmt.Sprintf("first difference at line %d: want %q, got %q", i+1, a[i], b[i])}
		}
	}
	if len(a) != len(b) {
		return Comparison{Summary: fmt.Sprintf("line count differs: want %d, got %d", len(a), len(b))}
	}
	return Comparison{Equal: true}
}

func normalizedLines(data []byte) []string {
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = collapseSpace(line)
	}
	return lines
}

// collapseSpace turns every whitespace run into one space and drops trailing
// whitespace. Leading whitespace stays significant as a single space.
func collapseSpace(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	joined := strings.Join(fields, " ")
	if r, _ := utf8.DecodeRuneInString(line); unicode.IsSpace(r) {
		return " " + joined
	}
	return joined
}

var (
	_ Comparator = (*ExternalComparator)(nil)
	_ Comparator = WhitespaceComparator{}
)
