// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package progress streams per-case messages for humans.
//
// Each case gets a [Channel] whose lines are prefixed "[rid] iden: ". Lines
// from concurrent cases interleave but never tear. Color is applied only
// when the output is a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorOK      = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#5C7A84")
)

type styles struct {
	prefix  lipgloss.Style
	ok      lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{prefix: plain, ok: plain, warning: plain, failure: plain}
	}
	return styles{
		prefix:  lipgloss.NewStyle().Foreground(colorMuted),
		ok:      lipgloss.NewStyle().Foreground(colorOK),
		warning: lipgloss.NewStyle().Foreground(colorWarning),
		failure: lipgloss.NewStyle().Foreground(colorError).Bold(true),
	}
}

// Reporter serializes progress lines onto one writer.
type Reporter struct {
	mu     sync.Mutex
	out    io.Writer
	styles styles
}

// NewReporter creates a reporter writing to out. Styling is enabled when out
// is a terminal.
func NewReporter(out io.Writer) *Reporter {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Reporter{out: out, styles: newStyles(color)}
}

// Discard returns a reporter that drops everything.
func Discard() *Reporter {
	return &Reporter{out: io.Discard, styles: newStyles(false)}
}

func (r *Reporter) println(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, line)
}

// Printf writes a run-level line with no case prefix.
func (r *Reporter) Printf(format string, args ...any) {
	r.println(fmt.Sprintf(format, args...))
}

// Summary prints the elapsed wall time and the per-case average.
func (r *Reporter) Summary(elapsed time.Duration, cases int) {
	secs := elapsed.Seconds()
	per := 0.0
	if cases > 0 {
		per = secs / float64(cases)
	}
	r.Printf("%.3g secs elapsed, %.3g secs per case", secs, per)
}

// Channel returns the message channel for the case in slot rid.
func (r *Reporter) Channel(rid int, iden string) *Channel {
	return &Channel{r: r, prefix: fmt.Sprintf("[%d] %s:", rid, iden)}
}

// Channel is one case's message stream.
type Channel struct {
	r      *Reporter
	prefix string
}

// Say reports progress.
func (c *Channel) Say(format string, args ...any) {
	c.emit(c.r.styles.ok, format, args...)
}

// Warn reports a non-fatal condition such as a missing input fixture.
func (c *Channel) Warn(format string, args ...any) {
	c.emit(c.r.styles.warning, format, args...)
}

// Fail reports the case's terminal error.
func (c *Channel) Fail(format string, args ...any) {
	c.emit(c.r.styles.failure, format, args...)
}

func (c *Channel) emit(style lipgloss.Style, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.r.println(c.r.styles.prefix.Render(c.prefix) + " " + style.Render(msg))
}
