// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package build compiles the compiler under test before a run.

# Description

The build is a CMake configure step followed by make. A failed configure
usually means a stale cache from another generator or source tree, so the
build directory is wiped and configure is retried exactly once. Any failure
is fatal to the run: no case is dispatched against a stale compiler.

# Design Principles

  - All commands go through process.ProcessManager for mocking
  - Output for humans goes to an io.Writer; structured events to the logger
*/
package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/karin0/syc/cmd/sycharness/internal/process"
	"github.com/karin0/syc/pkg/logging"
)

// Build steps reported in BuildError.
const (
	StepConfigure = "configure"
	StepMake      = "make"
)

// DefaultBuildType is passed to CMAKE_BUILD_TYPE.
const DefaultBuildType = "Release"

// BuildError reports a failed build step.
type BuildError struct {
	Step string
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s failed: %v", e.Step, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Config describes where and how to build.
type Config struct {
	// ProjectDir holds the top-level CMakeLists.txt.
	ProjectDir string

	// BuildDir is the CMake binary directory.
	BuildDir string

	// BuildType is the CMAKE_BUILD_TYPE ("" = DefaultBuildType).
	BuildType string

	// CMake and Make name the tools ("" = "cmake" / "make").
	CMake string
	Make  string

	// Jobs is the make parallelism (< 1 = runtime.NumCPU()).
	Jobs int

	// Timeout bounds each step; zero means unbounded.
	Timeout time.Duration
}

// Builder runs the configure and make steps.
type Builder struct {
	cfg    Config
	proc   process.ProcessManager
	logger *logging.Logger
	output io.Writer
}

// NewBuilder creates a builder. A nil logger discards events; a nil output
// discards progress text.
func NewBuilder(cfg Config, proc process.ProcessManager, logger *logging.Logger, output io.Writer) *Builder {
	if cfg.BuildType == "" {
		cfg.BuildType = DefaultBuildType
	}
	if cfg.CMake == "" {
		cfg.CMake = "cmake"
	}
	if cfg.Make == "" {
		cfg.Make = "make"
	}
	if cfg.Jobs < 1 {
		cfg.Jobs = runtime.NumCPU()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if output == nil {
		output = io.Discard
	}
	return &Builder{cfg: cfg, proc: proc, logger: logger, output: output}
}

// Build configures (retrying once from a clean directory) and then makes.
func (b *Builder) Build(ctx context.Context) error {
	start := time.Now()
	if err := os.MkdirAll(b.cfg.BuildDir, 0o755); err != nil {
		return &BuildError{Step: StepConfigure, Err: err}
	}

	fmt.Fprintf(b.output, "Configuring %s...\n", b.cfg.ProjectDir)
	if err := b.configure(ctx); err != nil {
		b.logger.Warn("cmake configure failed, wiping build dir", "dir", b.cfg.BuildDir, "error", err)
		fmt.Fprintln(b.output, "   Configure failed, retrying from a clean build directory...")

		if err := b.wipe(); err != nil {
			return &BuildError{Step: StepConfigure, Err: err}
		}
		if err := b.configure(ctx); err != nil {
			return &BuildError{Step: StepConfigure, Err: err}
		}
	}

	fmt.Fprintf(b.output, "Building with %d jobs...\n", b.cfg.Jobs)
	if _, err := b.proc.Exec(ctx, process.Spec{
		Name:    b.cfg.Make,
		Args:    []string{"-j" + strconv.Itoa(b.cfg.Jobs)},
		Dir:     b.cfg.BuildDir,
		Timeout: b.cfg.Timeout,
	}); err != nil {
		return &BuildError{Step: StepMake, Err: err}
	}

	b.logger.Info("build finished", "dir", b.cfg.BuildDir, "elapsed", time.Since(start))
	return nil
}

func (b *Builder) configure(ctx context.Context) error {
	project, err := filepath.Abs(b.cfg.ProjectDir)
	if err != nil {
		return err
	}
	_, err = b.proc.Exec(ctx, process.Spec{
		Name:    b.cfg.CMake,
		Args:    []string{project, "-DCMAKE_BUILD_TYPE=" + b.cfg.BuildType},
		Dir:     b.cfg.BuildDir,
		Timeout: b.cfg.Timeout,
	})
	return err
}

func (b *Builder) wipe() error {
	if err := os.RemoveAll(b.cfg.BuildDir); err != nil {
		return fmt.Errorf("failed to wipe %s: %w", b.cfg.BuildDir, err)
	}
	return os.MkdirAll(b.cfg.BuildDir, 0o755)
}
