// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cases discovers test cases and derives their identifiers.
//
// A case is a source program plus optional input and reference fixtures.
// The [Registry] turns a root directory, a specifier such as "A-3", or one
// of the named sets (the quarantined failure, the error-listing fixtures)
// into an ordered list of [TestCase]. [Plan] then assigns each case its
// dispatch index and a final identifier that is unique within the run-set.
package cases

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind selects the pipeline a case runs through.
type Kind int

const (
	// Standard cases are compiled, simulated and compared against a reference.
	Standard Kind = iota

	// ErrorListing cases check the compiler's error report against a fixture.
	ErrorListing
)

func (k Kind) String() string {
	switch k {
	case Standard:
		return "standard"
	case ErrorListing:
		return "errors"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// TestCase is one source program and its fixtures. Immutable once discovered.
type TestCase struct {
	// SourcePath is the program fed to the compiler.
	SourcePath string

	// InputPath is the stdin fixture; "" means no input.
	InputPath string

	// ReferencePath is the expected output; "" means the reference
	// toolchain computes it.
	ReferencePath string

	Kind Kind
}

// Layout locates the directories the registry and identifier rules care about.
type Layout struct {
	// CasesRoot is the default discovery root and the base for relative identifiers.
	CasesRoot string

	// CourseRoot holds the numbered exercise groups (<CourseRoot>/<G>/testfile<N>.txt).
	CourseRoot string

	// HomeworkRoot holds homework cases identified as hw-<N>.
	HomeworkRoot string

	// Groups are the course group names accepted in "<G>-<N>" specifiers.
	Groups []string

	// QuarantineDir is the current quarantine (fail-out).
	QuarantineDir string

	// SlotsDir holds the per-case run slots (out).
	SlotsDir string

	// ErrorsDir holds the error-listing fixtures.
	ErrorsDir string

	// ErrorCount is how many testfile<N>.txt/output<N>.txt pairs ErrorsDir holds.
	ErrorCount int
}

// Registry resolves case sets under a Layout.
type Registry struct {
	layout Layout
}

// NewRegistry creates a registry. Relative layout paths are made absolute
// against the current directory so identifier rules compare like with like.
func NewRegistry(layout Layout) (*Registry, error) {
	for _, p := range []*string{
		&layout.CasesRoot, &layout.CourseRoot, &layout.HomeworkRoot,
		&layout.QuarantineDir, &layout.SlotsDir, &layout.ErrorsDir,
	} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return nil, fmt.Errorf("resolve layout path %s: %w", *p, err)
		}
		*p = abs
	}
	return &Registry{layout: layout}, nil
}

// Layout returns the normalized layout.
func (r *Registry) Layout() Layout {
	return r.layout
}

// Root discovers every case under the configured cases root.
func (r *Registry) Root() ([]TestCase, error) {
	return r.Discover(r.layout.CasesRoot)
}

// Discover walks root and returns every testfile<N>.txt that has a sibling
// input<N>.txt, in lexical walk order.
func (r *Registry) Discover(root string) ([]TestCase, error) {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, discoveryError(root, ErrRootNotFound)
		}
		return nil, discoveryError(root, err)
	}
	if !info.IsDir() {
		return nil, discoveryError(root, fmt.Errorf("not a directory"))
	}

	var found []TestCase
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		suffix, ok := strings.CutPrefix(d.Name(), "testfile")
		if !ok {
			return nil
		}
		input := filepath.Join(filepath.Dir(path), "input"+suffix)
		if fileExists(input) {
			found = append(found, TestCase{SourcePath: path, InputPath: input})
		}
		return nil
	})
	if err != nil {
		return nil, discoveryError(root, err)
	}
	return found, nil
}

// Resolve turns a single specifier into cases.
//
// # Description
//
// Tried in order:
//
//  1. "<G>-<N>" with G a configured group and N > 0 selects one course case
//  2. a directory containing case.txt is one case (in.txt is its input if present)
//  3. any other directory is discovered recursively
//
// Anything resolving to zero cases is a DiscoveryError wrapping ErrNoCases.
func (r *Registry) Resolve(spec string) ([]TestCase, error) {
	if tc, ok := r.courseCase(spec); ok {
		if !fileExists(tc.SourcePath) {
			return nil, discoveryError(spec, fmt.Errorf("%w: %s", ErrNoCases, tc.SourcePath))
		}
		return []TestCase{tc}, nil
	}

	dir, err := filepath.Abs(spec)
	if err != nil {
		return nil, discoveryError(spec, err)
	}
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		src := filepath.Join(dir, "case.txt")
		if fileExists(src) {
			return []TestCase{{SourcePath: src, InputPath: optional(filepath.Join(dir, "in.txt"))}}, nil
		}
		found, err := r.Discover(dir)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, discoveryError(spec, ErrNoCases)
		}
		return found, nil
	}

	return nil, discoveryError(spec, ErrNoCases)
}

func (r *Registry) courseCase(spec string) (TestCase, bool) {
	group, num, ok := strings.Cut(spec, "-")
	if !ok || r.layout.CourseRoot == "" {
		return TestCase{}, false
	}
	known := false
	for _, g := range r.layout.Groups {
		if g == group {
			known = true
			break
		}
	}
	n, err := strconv.Atoi(num)
	if !known || err != nil || n <= 0 {
		return TestCase{}, false
	}
	dir := filepath.Join(r.layout.CourseRoot, group)
	return TestCase{
		SourcePath: filepath.Join(dir, fmt.Sprintf("testfile%d.txt", n)),
		InputPath:  filepath.Join(dir, fmt.Sprintf("input%d.txt", n)),
	}, true
}

// Quarantined returns the case captured in the quarantine directory.
func (r *Registry) Quarantined() ([]TestCase, error) {
	src := filepath.Join(r.layout.QuarantineDir, "case.txt")
	if !fileExists(src) {
		return nil, discoveryError(r.layout.QuarantineDir, ErrNoQuarantine)
	}
	return []TestCase{{
		SourcePath: src,
		InputPath:  optional(filepath.Join(r.layout.QuarantineDir, "in.txt")),
	}}, nil
}

// ErrorCases returns the error-listing fixtures testfile<N>.txt/output<N>.txt
// for N = 1..ErrorCount.
func (r *Registry) ErrorCases() ([]TestCase, error) {
	var found []TestCase
	for i := 1; i <= r.layout.ErrorCount; i++ {
		src := filepath.Join(r.layout.ErrorsDir, fmt.Sprintf("testfile%d.txt", i))
		ans := filepath.Join(r.layout.ErrorsDir, fmt.Sprintf("output%d.txt", i))
		if !fileExists(src) || !fileExists(ans) {
			return nil, discoveryError(r.layout.ErrorsDir, fmt.Errorf("%w: missing pair %d", ErrNoCases, i))
		}
		found = append(found, TestCase{SourcePath: src, ReferencePath: ans, Kind: ErrorListing})
	}
	if len(found) == 0 {
		return nil, discoveryError(r.layout.ErrorsDir, ErrNoCases)
	}
	return found, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func optional(path string) string {
	if fileExists(path) {
		return path
	}
	return ""
}
