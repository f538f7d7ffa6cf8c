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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karin0/syc/cmd/sycharness/internal/ledger"
)

func TestParseStats(t *testing.T) {
	data := []byte("  ALU : 120\nJump:  7 \nno colon here\nBranch: 3: extra\n\n")
	got := ParseStats(data)
	assert.Equal(t, ledger.Record{
		{Key: "ALU", Value: "120"},
		{Key: "Jump", Value: "7"},
		{Key: "Branch", Value: "3: extra"},
		{Key: "cnt", Value: "0"},
	}, got)
}

func TestParseStats_EmptyArtifactKeepsSentinel(t *testing.T) {
	assert.Equal(t, ledger.Record{SentinelField}, ParseStats(nil))
}

func TestNormalizeInput(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1 2 3", "1\n2\n3\n"},
		{"  4\t5\n\n6  \n", "4\n5\n6\n"},
		{"", ""},
		{"\n \t\n", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(NormalizeInput([]byte(tt.in))), "input %q", tt.in)
	}
}

func TestNormalizeErrorListing(t *testing.T) {
	got, err := NormalizeErrorListing([]byte("10 c\n2 a\n\n1 b\n2 a\n"))
	require.NoError(t, err)
	assert.Equal(t, "1 b\n2 a\n2 a\n10 c\n", string(got))

	_, err = NormalizeErrorListing([]byte("x a\n"))
	assert.Error(t, err)
}

func TestClassifyDiagnostic(t *testing.T) {
	tests := []struct {
		name      string
		stderr    string
		wantText  string
		wantFault bool
	}{
		{"empty", "", "", false},
		{"whitespace only", " \n\t", "", false},
		{"fault", "\nDivision by zero\n", "division by zero", true},
		{"complaint", "Error in line 3", "error in line 3", false},
		{"marker not at start", "warning: div", "warning: div", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, fault := classifyDiagnostic([]byte(tt.stderr), "div")
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantFault, fault)
		})
	}
}

func TestExpand(t *testing.T) {
	got := Expand(
		[]string{"java", "-jar", "mars.jar", "{asm}", "--out={actual}", "{unknown}"},
		map[string]string{"asm": "/s/out.asm", "actual": "/s/out.txt"},
	)
	assert.Equal(t, []string{"java", "-jar", "mars.jar", "/s/out.asm", "--out=/s/out.txt", "{unknown}"}, got)
}

func TestCheckTemplate(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		names   []string
		wantErr string
	}{
		{"known placeholders", []string{"gcc", "-o", "{bin}", "{src}"}, []string{"src", "bin"}, ""},
		{"no placeholders", []string{"mars"}, []string{"asm"}, ""},
		{"embedded placeholder", []string{"tool", "--out={actual}"}, []string{"expected", "actual"}, ""},
		{"empty argv", nil, []string{"asm"}, "empty"},
		{"empty program", []string{""}, []string{"asm"}, "empty"},
		{"unresolved jar", []string{"java", "-jar", "{mars}", "{asm}"}, []string{"asm"}, "{mars}"},
		{"placeholder of another template", []string{"mars", "{src}"}, []string{"asm"}, "{src}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTemplate(tt.argv, tt.names...)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStageError(t *testing.T) {
	err := NewStageError(StageDiff, "A-3", errors.Join(ErrOutputMismatch))
	assert.Equal(t, "A-3: diff: output differs from reference", err.Error())
	assert.True(t, errors.Is(err, ErrOutputMismatch))

	var se *StageError
	require.True(t, errors.As(error(err), &se))
	assert.Equal(t, StageDiff, se.Stage)
}

func TestOutcome(t *testing.T) {
	fault := Outcome{ID: "x", Record: ledger.Record{{Key: FaultKey, Value: "div"}}}
	assert.True(t, fault.Passed())
	assert.True(t, fault.Fault())
	res, ok := fault.Result()
	require.True(t, ok)
	assert.Equal(t, "x", res.ID)

	failed := Outcome{ID: "y", Err: NewStageError(StageCompile, "y", errors.New("boom"))}
	assert.False(t, failed.Passed())
	_, ok = failed.Result()
	assert.False(t, ok)

	skipped := Outcome{ID: "z", Skipped: true}
	assert.False(t, skipped.Passed())
	assert.False(t, skipped.Fault())
}
