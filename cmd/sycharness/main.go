// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command sycharness is the differential test harness for the syc compiler.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/karin0/syc/cmd/sycharness/config"
	"github.com/karin0/syc/cmd/sycharness/internal/process"
	"github.com/karin0/syc/cmd/sycharness/internal/telemetry"
	"github.com/karin0/syc/pkg/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app carries the state one invocation builds in setup and releases in
// teardown.
type app struct {
	flags cliFlags
	proc  process.ProcessManager

	cfg            *config.HarnessConfig
	logger         *logging.Logger
	harness        *Harness
	shutdownTraces func(context.Context) error
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the exit status.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{proc: process.NewDefaultProcessManager()}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.teardown()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// setup loads the config and builds the logger, tracer and harness.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return err
	}
	if a.flags.logLevel != "" {
		cfg.Logging.Level = a.flags.logLevel
	}
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "sycharness",
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})

	tc := telemetry.DefaultTraceConfig()
	tc.ServiceVersion = version
	tc.Exporter = cfg.Telemetry.TraceExporter
	tc.File = cfg.Telemetry.TraceFile
	tc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	tc.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	shutdown, err := telemetry.Init(cmd.Context(), tc)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	a.shutdownTraces = shutdown

	a.harness = NewHarness(cfg, a.proc, a.logger, cmd.OutOrStdout())
	a.logger.Debug("harness configured", "config", a.flags.configPath, "version", version)
	return nil
}

// teardown flushes spans and closes the log file. Safe after a failed setup.
func (a *app) teardown() {
	if a.shutdownTraces != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.shutdownTraces(ctx); err != nil && a.logger != nil {
			a.logger.Warn("trace shutdown failed", "error", err)
		}
		cancel()
		a.shutdownTraces = nil
	}
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

func (a *app) run(cmd *cobra.Command, opts RunOptions) error {
	opts.NoStats = a.flags.noStats
	opts.NoBuild = a.flags.noBuild
	opts.Description = a.flags.description
	opts.Jobs = a.flags.jobs

	_, err := a.harness.Run(cmd.Context(), opts)
	return err
}
