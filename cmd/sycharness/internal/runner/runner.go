// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner runs a run-set's case pipelines in parallel.
//
// # Description
//
// The [Coordinator] dispatches every planned case onto a bounded worker
// pool. The first failing case trips the run-set's gate and has its slot
// captured into the quarantine; cases that have not started by then are
// skipped, while cases already running finish normally. Once the pool
// drains, every case failure is returned joined into one error.
//
// # Thread Safety
//
// A Coordinator may run several run-sets sequentially; each needs its own
// [RunContext].
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/karin0/syc/cmd/sycharness/internal/cases"
	"github.com/karin0/syc/cmd/sycharness/internal/ledger"
	"github.com/karin0/syc/cmd/sycharness/internal/pipeline"
	"github.com/karin0/syc/cmd/sycharness/internal/progress"
	"github.com/karin0/syc/cmd/sycharness/internal/quarantine"
	"github.com/karin0/syc/pkg/logging"
)

const tracerName = "github.com/karin0/syc/cmd/sycharness/internal/runner"

// Case statuses reported to Metrics.
const (
	StatusPassed  = "passed"
	StatusFault   = "fault"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Executor runs one case in its slot.
type Executor interface {
	Run(ctx context.Context, entry cases.Entry, slot string, ch pipeline.Channel) pipeline.Outcome
}

// Quarantiner captures a failing slot.
type Quarantiner interface {
	Capture(failingID, slot string) (*quarantine.Snapshot, error)
}

// Metrics receives per-case results.
type Metrics interface {
	CaseFinished(status string, d time.Duration)
	QuarantineCaptured()
}

type nopMetrics struct{}

func (nopMetrics) CaseFinished(string, time.Duration) {}
func (nopMetrics) QuarantineCaptured()                {}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithParallelism bounds the worker pool. Values below 1 mean runtime.NumCPU().
func WithParallelism(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// Coordinator dispatches case pipelines onto a bounded pool.
type Coordinator struct {
	exec        Executor
	store       Quarantiner
	reporter    *progress.Reporter
	slotsDir    string
	parallelism int
	logger      *logging.Logger
	metrics     Metrics
	tracer      trace.Tracer
}

// New creates a coordinator. Case i runs in slot <slotsDir>/<i>.
func New(exec Executor, store Quarantiner, reporter *progress.Reporter, slotsDir string, opts ...Option) *Coordinator {
	c := &Coordinator{
		exec:        exec,
		store:       store,
		reporter:    reporter,
		slotsDir:    slotsDir,
		parallelism: runtime.NumCPU(),
		logger:      logging.Nop(),
		metrics:     nopMetrics{},
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Parallelism returns the worker bound.
func (c *Coordinator) Parallelism() int {
	return c.parallelism
}

// Report summarizes a drained run-set.
type Report struct {
	RunID string

	// Outcomes holds one outcome per planned case, by dispatch index.
	Outcomes []pipeline.Outcome

	// Quarantine is the captured failure, or nil.
	Quarantine *quarantine.Snapshot

	Passed  int
	Failed  int
	Skipped int
	Elapsed time.Duration
}

// Results returns the ledger contributions of passing cases.
func (r *Report) Results() []ledger.Result {
	var results []ledger.Result
	for _, out := range r.Outcomes {
		if res, ok := out.Result(); ok {
			results = append(results, res)
		}
	}
	return results
}

// Run executes every entry and waits for all of them.
//
// # Description
//
// Entries are dispatched in order; at most Parallelism run at once. The
// returned error joins every case failure (and a failed quarantine capture)
// so callers can tell the run-set failed even though all in-flight work was
// drained. The Report is returned in both cases.
func (c *Coordinator) Run(ctx context.Context, rc *RunContext, entries []cases.Entry) (*Report, error) {
	ctx, span := c.tracer.Start(ctx, "runner.run", trace.WithAttributes(
		attribute.String("run.id", rc.ID),
		attribute.Int("run.cases", len(entries)),
		attribute.Int("run.parallelism", c.parallelism),
	))
	defer span.End()

	log := c.logger.With("run_id", rc.ID)
	log.Info("dispatching cases", "cases", len(entries), "parallelism", c.parallelism)

	start := time.Now()
	g := new(errgroup.Group)
	g.SetLimit(c.parallelism)
	for _, entry := range entries {
		g.Go(func() error {
			rc.record(c.runOne(ctx, rc, entry, log))
			return nil
		})
	}
	// Failures travel in the recorded outcomes; workers never return one.
	g.Wait()

	report := &Report{
		RunID:      rc.ID,
		Outcomes:   rc.Outcomes(),
		Quarantine: rc.Quarantine(),
		Elapsed:    time.Since(start),
	}

	var errs []error
	for _, out := range report.Outcomes {
		switch {
		case out.Skipped:
			report.Skipped++
		case out.Err != nil:
			report.Failed++
			errs = append(errs, out.Err)
		default:
			report.Passed++
		}
	}
	rc.mu.Lock()
	if rc.captureErr != nil {
		errs = append(errs, rc.captureErr)
	}
	rc.mu.Unlock()

	span.SetAttributes(
		attribute.Int("run.passed", report.Passed),
		attribute.Int("run.failed", report.Failed),
		attribute.Int("run.skipped", report.Skipped),
	)
	log.Info("run-set drained",
		"passed", report.Passed, "failed", report.Failed, "skipped", report.Skipped,
		"elapsed", report.Elapsed)

	err := errors.Join(errs...)
	if err != nil {
		span.SetStatus(codes.Error, fmt.Sprintf("%d case(s) failed", report.Failed))
	}
	return report, err
}

func (c *Coordinator) runOne(ctx context.Context, rc *RunContext, entry cases.Entry, log *logging.Logger) pipeline.Outcome {
	ch := c.reporter.Channel(entry.Index, entry.ID)

	if rc.Tripped() || ctx.Err() != nil {
		ch.Say("skipped")
		c.metrics.CaseFinished(StatusSkipped, 0)
		return pipeline.Outcome{Index: entry.Index, ID: entry.ID, Skipped: true}
	}

	slot := filepath.Join(c.slotsDir, strconv.Itoa(entry.Index))
	out := c.execute(ctx, entry, slot, ch)

	switch {
	case out.Err != nil:
		c.metrics.CaseFinished(StatusFailed, out.Duration)
		log.Warn("case failed", "case", entry.ID, "slot", entry.Index, "stage", string(out.Err.Stage), "error", out.Err.Cause)
		if ctx.Err() != nil {
			// An interrupted case says nothing about the compiler; keep the
			// previous quarantine.
			log.Info("case interrupted, quarantine left as is", "case", entry.ID)
			break
		}
		c.onFailure(rc, entry, slot, ch, log)
	case out.Fault():
		c.metrics.CaseFinished(StatusFault, out.Duration)
	default:
		c.metrics.CaseFinished(StatusPassed, out.Duration)
	}
	return out
}

// execute runs the pipeline, turning a panic into a StagePanic failure.
func (c *Coordinator) execute(ctx context.Context, entry cases.Entry, slot string, ch pipeline.Channel) (out pipeline.Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			ch.Fail("panic: %v", r)
			out = pipeline.Outcome{
				Index:    entry.Index,
				ID:       entry.ID,
				Err:      pipeline.NewStageError(pipeline.StagePanic, entry.ID, cause),
				Duration: time.Since(start),
			}
		}
	}()
	return c.exec.Run(ctx, entry, slot, ch)
}

// onFailure trips the gate; only the winner captures its slot.
func (c *Coordinator) onFailure(rc *RunContext, entry cases.Entry, slot string, ch *progress.Channel, log *logging.Logger) {
	if !rc.claim() {
		return
	}
	ch.Warn("acquired quarantine")

	snap, err := c.store.Capture(entry.ID, slot)
	if err != nil {
		err = fmt.Errorf("quarantine %s: %w", entry.ID, err)
		ch.Fail("%v", err)
		log.Error("quarantine capture failed", "case", entry.ID, "error", err)
	} else {
		c.metrics.QuarantineCaptured()
		log.Info("quarantine captured", "case", entry.ID, "dir", snap.Dir)
	}
	rc.captured(snap, err)
}
