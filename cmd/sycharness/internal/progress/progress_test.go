// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel_Prefix(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)

	ch := r.Channel(3, "A-12")
	ch.Say("compiling")
	ch.Warn("no input file")
	ch.Fail("compile: exit 1")

	assert.Equal(t,
		"[3] A-12: compiling\n[3] A-12: no input file\n[3] A-12: compile: exit 1\n",
		buf.String())
}

func TestChannel_FormatsArguments(t *testing.T) {
	var buf bytes.Buffer
	NewReporter(&buf).Channel(0, "x").Say("src copied to %s", "out/0/case.txt")
	assert.Equal(t, "[0] x: src copied to out/0/case.txt\n", buf.String())
}

func TestReporter_ConcurrentLinesDoNotTear(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch := r.Channel(i, "case")
			for j := 0; j < 50; j++ {
				ch.Say("message")
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 16*50)
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(line, ": message"), line)
	}
}

func TestReporter_Summary(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	r.Summary(3*time.Second, 4)
	assert.Equal(t, "3 secs elapsed, 0.75 secs per case\n", buf.String())

	buf.Reset()
	r.Summary(time.Second, 0)
	assert.Equal(t, "1 secs elapsed, 0 secs per case\n", buf.String())
}

func TestDiscard(t *testing.T) {
	r := Discard()
	r.Channel(1, "x").Say("nothing")
	r.Printf("nothing")
}
