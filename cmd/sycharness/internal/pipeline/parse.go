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
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/karin0/syc/cmd/sycharness/internal/ledger"
)

// SentinelField terminates every parsed statistics record.
var SentinelField = ledger.Field{Key: "cnt", Value: "0"}

// ParseStats parses the simulator's statistics artifact. Every line holding
// a colon is split on the first one; both sides are trimmed. The sentinel
// ("cnt", "0") is appended last.
func ParseStats(data []byte) ledger.Record {
	var rec ledger.Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		label, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		rec = append(rec, ledger.Field{Key: strings.TrimSpace(label), Value: strings.TrimSpace(value)})
	}
	return append(rec, SentinelField)
}

// NormalizeInput rewrites an input fixture as one whitespace-delimited token
// per line.
func NormalizeInput(data []byte) []byte {
	var buf bytes.Buffer
	for _, tok := range strings.Fields(string(data)) {
		buf.WriteString(tok)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// NormalizeErrorListing rewrites an error-listing fixture ("<line> <code>"
// per line) sorted by integer line number. Blank lines are dropped.
func NormalizeErrorListing(data []byte) ([]byte, error) {
	type entry struct {
		line   int
		fields []string
	}
	var entries []entry
	for i, raw := range strings.Split(string(data), "\n") {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad line number %q", i+1, fields[0])
		}
		entries = append(entries, entry{line: n, fields: fields})
	}

	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].line != entries[b].line {
			return entries[a].line < entries[b].line
		}
		return strings.Join(entries[a].fields[1:], " ") < strings.Join(entries[b].fields[1:], " ")
	})

	var buf bytes.Buffer
	for _, e := range entries {
		buf.WriteString(strings.Join(e.fields, " "))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// classifyDiagnostic lowercases and trims simulator stderr. A fault is
// reported when the text starts with prefix; complaint is any other
// non-empty text.
func classifyDiagnostic(stderr []byte, prefix string) (text string, fault bool) {
	text = strings.ToLower(strings.TrimSpace(string(stderr)))
	if text == "" {
		return "", false
	}
	return text, prefix != "" && strings.HasPrefix(text, prefix)
}
