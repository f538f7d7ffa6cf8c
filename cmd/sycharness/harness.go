// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/karin0/syc/cmd/sycharness/config"
	"github.com/karin0/syc/cmd/sycharness/internal/build"
	"github.com/karin0/syc/cmd/sycharness/internal/cases"
	"github.com/karin0/syc/cmd/sycharness/internal/journal"
	"github.com/karin0/syc/cmd/sycharness/internal/ledger"
	"github.com/karin0/syc/cmd/sycharness/internal/pipeline"
	"github.com/karin0/syc/cmd/sycharness/internal/process"
	"github.com/karin0/syc/cmd/sycharness/internal/progress"
	"github.com/karin0/syc/cmd/sycharness/internal/quarantine"
	"github.com/karin0/syc/cmd/sycharness/internal/runner"
	"github.com/karin0/syc/cmd/sycharness/internal/telemetry"
	"github.com/karin0/syc/pkg/logging"
)

// Run modes.
const (
	ModeRun    = "run"
	ModeReplay = "replay"
	ModeErrors = "errors"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitCaseFailure = 1
	ExitHarness     = 2
)

// ErrCasesFailed wraps the joined case failures of a run-set.
var ErrCasesFailed = errors.New("case failures")

// exitCode maps a harness result to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrCasesFailed):
		return ExitCaseFailure
	default:
		return ExitHarness
	}
}

// RunOptions are the per-invocation switches.
type RunOptions struct {
	Mode        string
	Specifier   string
	NoStats     bool
	NoBuild     bool
	Description string

	// Jobs overrides the configured parallelism when positive.
	Jobs int
}

// RunSummary is what a run-set produced.
type RunSummary struct {
	Report *runner.Report
	Ledger *ledger.Summary
	Cases  int
}

// Harness wires the configured collaborators into run-sets.
//
// # Description
//
// One Harness serves one CLI invocation. Run takes the work-directory lock,
// resolves the case set, builds the compiler, dispatches the cases and then
// persists statistics, the journal entry and the metrics textfile.
type Harness struct {
	cfg      *config.HarnessConfig
	proc     process.ProcessManager
	logger   *logging.Logger
	output   io.Writer
	reporter *progress.Reporter
	now      func() time.Time
}

// NewHarness creates a harness. Progress and build output go to out.
func NewHarness(cfg *config.HarnessConfig, proc process.ProcessManager, logger *logging.Logger, out io.Writer) *Harness {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Harness{
		cfg:      cfg,
		proc:     proc,
		logger:   logger,
		output:   out,
		reporter: progress.NewReporter(out),
		now:      time.Now,
	}
}

// workDir holds the slots, the quarantine and the lock file.
func (h *Harness) workDir() string {
	return filepath.Dir(h.cfg.Paths.Slots)
}

func (h *Harness) layout() cases.Layout {
	p := h.cfg.Paths
	return cases.Layout{
		CasesRoot:     p.Cases,
		CourseRoot:    p.Course,
		HomeworkRoot:  p.Homework,
		Groups:        h.cfg.Cases.Groups,
		QuarantineDir: p.Quarantine,
		SlotsDir:      p.Slots,
		ErrorsDir:     p.Errors,
		ErrorCount:    h.cfg.Cases.ErrorCount,
	}
}

// Run executes one run-set.
//
// # Outputs
//
//   - *RunSummary: nil only when nothing was dispatched
//   - error: wraps ErrCasesFailed when cases failed; any other error is a
//     harness failure
func (h *Harness) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	if err := os.MkdirAll(h.workDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	lock := process.NewWorkLock(h.workDir())
	if err := lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			h.logger.Warn("failed to release work lock", "path", lock.Path(), "error", err)
		}
	}()

	registry, err := cases.NewRegistry(h.layout())
	if err != nil {
		return nil, err
	}
	found, err := h.resolve(registry, opts)
	if err != nil {
		return nil, err
	}

	if !opts.NoBuild && h.cfg.Build.Enabled {
		if err := h.build(ctx); err != nil {
			return nil, err
		}
	}

	metrics, err := telemetry.NewMetrics("")
	if err != nil {
		return nil, err
	}
	coord, err := h.coordinator(metrics, opts.Jobs)
	if err != nil {
		return nil, err
	}

	entries := registry.Plan(found)
	h.reporter.Printf("%d case(s), %d worker(s)", len(entries), coord.Parallelism())

	rc := runner.NewRunContext()
	log := h.logger.With("run_id", rc.ID)
	log.Info("run-set started", "mode", opts.Mode, "cases", len(entries))

	report, runErr := coord.Run(ctx, rc, entries)
	h.reporter.Summary(report.Elapsed, len(entries))
	sum := &RunSummary{Report: report, Cases: len(entries)}

	var errs []error
	if runErr == nil && h.statsEnabled(opts) {
		ls, err := ledger.New(h.cfg.Paths.Stats, log).Commit(report.Results(), opts.Description, rc.StartedAt)
		sum.Ledger = ls
		if err != nil {
			errs = append(errs, fmt.Errorf("statistics: %w", err))
		} else if ls != nil {
			h.reporter.Printf("stats written to %s", ls.SnapshotPath)
		}
	}

	h.recordJournal(rc, opts, sum, log)

	metrics.RunFinished(len(entries), runErr != nil, h.now())
	if path := h.cfg.Telemetry.MetricsFile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			log.Warn("metrics textfile not written", "path", path, "error", err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return sum, err
	}
	if runErr != nil {
		return sum, fmt.Errorf("%w: %w", ErrCasesFailed, runErr)
	}
	return sum, nil
}

func (h *Harness) resolve(registry *cases.Registry, opts RunOptions) ([]cases.TestCase, error) {
	switch opts.Mode {
	case ModeReplay:
		return registry.Quarantined()
	case ModeErrors:
		return registry.ErrorCases()
	case ModeRun, "":
		if opts.Specifier != "" {
			return registry.Resolve(opts.Specifier)
		}
		return registry.Root()
	default:
		return nil, fmt.Errorf("unknown mode %q", opts.Mode)
	}
}

// statsEnabled reports whether the run-set feeds the ledger. Replays and
// error-listing runs never do.
func (h *Harness) statsEnabled(opts RunOptions) bool {
	return h.cfg.Run.Stats && !opts.NoStats && (opts.Mode == ModeRun || opts.Mode == "")
}

func (h *Harness) build(ctx context.Context) error {
	b := build.NewBuilder(build.Config{
		ProjectDir: h.cfg.Paths.Project,
		BuildDir:   h.cfg.Paths.Build,
		BuildType:  h.cfg.Build.BuildType,
		CMake:      h.cfg.Build.CMake,
		Make:       h.cfg.Build.Make,
		Timeout:    h.cfg.Build.Timeout,
	}, h.proc, h.logger, h.output)
	return b.Build(ctx)
}

func (h *Harness) coordinator(metrics *telemetry.Metrics, jobs int) (*runner.Coordinator, error) {
	t := h.cfg.Tools

	var header []byte
	if t.Header != "" {
		data, err := os.ReadFile(t.Header)
		if err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		header = data
	}

	var cmp pipeline.Comparator = pipeline.WhitespaceComparator{}
	if t.Comparator == config.ComparatorExternal {
		ext, err := pipeline.NewExternalComparator(h.proc, t.Diff, t.DiffTimeout)
		if err != nil {
			return nil, err
		}
		cmp = ext
	}

	exec, err := pipeline.NewExecutor(pipeline.Config{
		Compiler:         t.Compiler,
		CompileTimeout:   t.CompileTimeout,
		Simulator:        t.Simulator,
		SimulateTimeout:  t.SimulateTimeout,
		ReferenceCompile: t.Reference,
		ReferenceTimeout: t.ReferenceTimeout,
		Header:           header,
		SoftFaultPrefix:  t.SoftFaultPrefix,
		StatsFile:        t.StatsFile,
	}, h.proc, cmp, pipeline.WithLogger(h.logger), pipeline.WithObserver(metrics))
	if err != nil {
		return nil, err
	}

	parallelism := h.cfg.Run.Parallelism
	if jobs > 0 {
		parallelism = jobs
	}
	store := quarantine.New(h.cfg.Paths.Quarantine, h.cfg.Paths.QuarantineBackup)
	return runner.New(exec, store, h.reporter, h.cfg.Paths.Slots,
		runner.WithParallelism(parallelism),
		runner.WithLogger(h.logger),
		runner.WithMetrics(metrics),
	), nil
}

// recordJournal appends the run-set to the journal. Failures only warn.
func (h *Harness) recordJournal(rc *runner.RunContext, opts RunOptions, sum *RunSummary, log *logging.Logger) {
	if h.cfg.Paths.Journal == "" {
		return
	}
	j, err := journal.Open(h.cfg.Paths.Journal, nil)
	if err != nil {
		log.Warn("journal unavailable", "error", err)
		return
	}
	defer j.Close()

	mode := opts.Mode
	if mode == "" {
		mode = ModeRun
	}
	rec := journal.RunRecord{
		ID:          rc.ID,
		Mode:        mode,
		StartedAt:   rc.StartedAt,
		Elapsed:     sum.Report.Elapsed,
		Cases:       sum.Cases,
		Passed:      sum.Report.Passed,
		Failed:      sum.Report.Failed,
		Skipped:     sum.Report.Skipped,
		Description: opts.Description,
	}
	if q := sum.Report.Quarantine; q != nil {
		rec.Quarantined = q.FailingID
	}
	if sum.Ledger != nil {
		rec.Snapshot = sum.Ledger.SnapshotPath
	}
	if err := j.Record(rec); err != nil {
		log.Warn("journal write failed", "error", err)
	}
}

// History returns the newest n journaled run-sets.
func (h *Harness) History(n int) ([]journal.RunRecord, error) {
	if h.cfg.Paths.Journal == "" {
		return nil, errors.New("journal is disabled (paths.journal is empty)")
	}
	j, err := journal.Open(h.cfg.Paths.Journal, nil)
	if err != nil {
		return nil, err
	}
	defer j.Close()
	return j.List(n)
}
