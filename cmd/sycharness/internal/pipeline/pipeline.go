// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs one case through its external tool chain.
//
// # Description
//
// A standard case is compiled by the compiler under test, its input fixture
// is normalized, a reference output is produced by the native toolchain when
// no fixture supplies one, the generated assembly runs on the simulator, the
// two outputs are compared, and the simulator's statistics are parsed into a
// [ledger.Record]. An error-listing case only compiles and compares the
// compiler's diagnostics with a fixture.
//
// Every artifact lands in the case's slot directory, so a failing slot can be
// copied into the quarantine and replayed as is.
//
// # Thread Safety
//
// An [Executor] is safe for concurrent use as long as every call gets its
// own slot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/karin0/syc/cmd/sycharness/internal/cases"
	"github.com/karin0/syc/cmd/sycharness/internal/ledger"
	"github.com/karin0/syc/cmd/sycharness/internal/process"
	"github.com/karin0/syc/pkg/logging"
)

const tracerName = "github.com/karin0/syc/cmd/sycharness/internal/pipeline"

// Slot file names.
const (
	CaseFile   = "case.txt"
	InputFile  = "in.txt"
	AsmFile    = "out.asm"
	OutputFile = "out.txt"
	AnswerFile = "ans.txt"
	RefSource  = "src.c"
	RefBinary  = "a.out"
)

// Config holds the tool invocations of a pipeline.
type Config struct {
	// Compiler is the compiler under test.
	Compiler       string
	CompileTimeout time.Duration

	// Simulator is the argv template; {asm} is the generated assembly.
	Simulator       []string
	SimulateTimeout time.Duration

	// ReferenceCompile is the argv template; {src} and {bin} are substituted.
	ReferenceCompile []string
	ReferenceTimeout time.Duration

	// Header is prepended to the source for the reference toolchain.
	// Nil means DefaultHeader.
	Header []byte

	// SoftFaultPrefix marks a non-fatal simulator diagnostic ("div").
	SoftFaultPrefix string

	// StatsFile is the simulator's statistics artifact inside the slot.
	StatsFile string
}

// Channel receives a case's human-readable progress messages.
type Channel interface {
	Say(format string, args ...any)
	Warn(format string, args ...any)
	Fail(format string, args ...any)
}

// Observer receives stage timings.
type Observer interface {
	ObserveStage(stage string, d time.Duration, failed bool)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration, bool) {}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithObserver sets the stage timing observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// Executor runs case pipelines.
type Executor struct {
	cfg      Config
	pm       process.ProcessManager
	cmp      Comparator
	logger   *logging.Logger
	observer Observer
	tracer   trace.Tracer
}

// NewExecutor creates an executor.
func NewExecutor(cfg Config, pm process.ProcessManager, cmp Comparator, opts ...Option) (*Executor, error) {
	if cfg.Compiler == "" {
		return nil, errors.New("pipeline: compiler is required")
	}
	if err := CheckTemplate(cfg.Simulator, "asm"); err != nil {
		return nil, fmt.Errorf("pipeline: simulator: %w", err)
	}
	if err := CheckTemplate(cfg.ReferenceCompile, "src", "bin"); err != nil {
		return nil, fmt.Errorf("pipeline: reference: %w", err)
	}
	if pm == nil || cmp == nil {
		return nil, errors.New("pipeline: process manager and comparator are required")
	}
	if cfg.Header == nil {
		cfg.Header = DefaultHeader
	}
	if cfg.StatsFile == "" {
		cfg.StatsFile = "InstructionStatistics.txt"
	}

	e := &Executor{
		cfg:      cfg,
		pm:       pm,
		cmp:      cmp,
		logger:   logging.Nop(),
		observer: nopObserver{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// workspace holds one case's slot paths and the fixtures read before the
// slot was cleared.
type workspace struct {
	slot     string
	src      string
	source   []byte
	input    []byte
	hasInput bool
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.slot, name)
}

// Run executes entry in slot and returns its outcome. It never returns a
// bare error: every failure is a StageError inside the Outcome.
func (e *Executor) Run(ctx context.Context, entry cases.Entry, slot string, ch Channel) Outcome {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "pipeline.case", trace.WithAttributes(
		attribute.String("case.id", entry.ID),
		attribute.Int("case.slot", entry.Index),
		attribute.String("case.kind", entry.Case.Kind.String()),
	))
	defer span.End()

	out := Outcome{Index: entry.Index, ID: entry.ID}

	var rec ledger.Record
	w, err := e.prepare(ctx, entry, slot, ch)
	if err == nil {
		if entry.Case.Kind == cases.ErrorListing {
			err = e.runErrorListing(ctx, entry, w, ch)
		} else {
			rec, err = e.runStandard(ctx, entry, w, ch)
		}
	}
	out.Duration = time.Since(start)

	if err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			se = NewStageError(StageSetup, entry.ID, err)
		}
		out.Err = se
		span.RecordError(se)
		span.SetStatus(codes.Error, string(se.Stage))
		return out
	}

	out.Record = rec
	ch.Say("ok")
	return out
}

func (e *Executor) prepare(ctx context.Context, entry cases.Entry, slot string, ch Channel) (*workspace, error) {
	w := &workspace{}
	err := e.stage(ctx, StageSetup, entry.ID, ch, func(context.Context) error {
		abs, err := filepath.Abs(slot)
		if err != nil {
			return err
		}
		w.slot = abs

		src, err := filepath.Abs(entry.Case.SourcePath)
		if err != nil {
			return err
		}
		if w.source, err = os.ReadFile(src); err != nil {
			return fmt.Errorf("read source: %w", err)
		}
		if entry.Case.InputPath != "" {
			w.input, err = os.ReadFile(entry.Case.InputPath)
			switch {
			case err == nil:
				w.hasInput = true
			case !errors.Is(err, fs.ErrNotExist):
				return fmt.Errorf("read input: %w", err)
			}
		}

		if err := os.RemoveAll(w.slot); err != nil {
			return fmt.Errorf("clear slot: %w", err)
		}
		if err := os.MkdirAll(w.slot, 0o755); err != nil {
			return fmt.Errorf("create slot: %w", err)
		}
		caseCopy := w.path(CaseFile)
		if err := os.WriteFile(caseCopy, w.source, 0o644); err != nil {
			return fmt.Errorf("copy source: %w", err)
		}
		ch.Say("src copied to %s", caseCopy)

		// The source may have lived in the slot that was just cleared.
		w.src = src
		if isInside(w.slot, src) {
			w.src = caseCopy
		}
		return nil
	})
	return w, err
}

func (e *Executor) runStandard(ctx context.Context, entry cases.Entry, w *workspace, ch Channel) (ledger.Record, error) {
	id := entry.ID

	err := e.stage(ctx, StageCompile, id, ch, func(ctx context.Context) error {
		_, err := e.pm.Exec(ctx, process.Spec{
			Name:    e.cfg.Compiler,
			Args:    []string{w.src, "-o", w.path(AsmFile)},
			Dir:     w.slot,
			Timeout: e.cfg.CompileTimeout,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = e.stage(ctx, StageInput, id, ch, func(context.Context) error {
		if !w.hasInput {
			ch.Warn("no input file")
		}
		return os.WriteFile(w.path(InputFile), NormalizeInput(w.input), 0o644)
	})
	if err != nil {
		return nil, err
	}

	answer := w.path(AnswerFile)
	if ref := entry.Case.ReferencePath; ref != "" {
		if answer, err = filepath.Abs(ref); err != nil {
			return nil, NewStageError(StageReference, id, err)
		}
	} else {
		err = e.stage(ctx, StageReference, id, ch, func(ctx context.Context) error {
			return e.reference(ctx, w, answer)
		})
		if err != nil {
			return nil, err
		}
	}

	var rec ledger.Record
	fault := false
	err = e.stage(ctx, StageSimulate, id, ch, func(ctx context.Context) error {
		argv := Expand(e.cfg.Simulator, map[string]string{"asm": w.path(AsmFile)})
		res, err := e.pm.Exec(ctx, process.Spec{
			Name:       argv[0],
			Args:       argv[1:],
			Dir:        w.slot,
			StdinPath:  w.path(InputFile),
			StdoutPath: w.path(OutputFile),
			Timeout:    e.cfg.SimulateTimeout,
		})
		if err != nil {
			return err
		}
		text, isFault := classifyDiagnostic(res.Stderr, e.cfg.SoftFaultPrefix)
		switch {
		case isFault:
			fault = true
			rec = ledger.Record{{Key: FaultKey, Value: text}}
			ch.Warn("%s", text)
		case text != "":
			return fmt.Errorf("%w: %s", ErrSimulatorComplained, text)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.compare(ctx, id, answer, w.path(OutputFile), ch); err != nil {
		return nil, err
	}

	if fault {
		return rec, nil
	}
	err = e.stage(ctx, StageStats, id, ch, func(context.Context) error {
		path := w.path(e.cfg.StatsFile)
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrNoStats, path)
			}
			return err
		}
		rec = ParseStats(data)
		ch.Say("stats %s", formatRecord(rec))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// reference builds src.c from the header and the original source, compiles
// it natively and runs it on the normalized input.
func (e *Executor) reference(ctx context.Context, w *workspace, answer string) error {
	csrc := w.path(RefSource)
	bin := w.path(RefBinary)

	content := make([]byte, 0, len(e.cfg.Header)+len(w.source))
	content = append(content, e.cfg.Header...)
	content = append(content, w.source...)
	if err := os.WriteFile(csrc, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", RefSource, err)
	}

	argv := Expand(e.cfg.ReferenceCompile, map[string]string{"src": csrc, "bin": bin})
	if _, err := e.pm.Exec(ctx, process.Spec{
		Name:    argv[0],
		Args:    argv[1:],
		Dir:     w.slot,
		Timeout: e.cfg.ReferenceTimeout,
	}); err != nil {
		return err
	}

	_, err := e.pm.Exec(ctx, process.Spec{
		Name:       bin,
		Dir:        w.slot,
		StdinPath:  w.path(InputFile),
		StdoutPath: answer,
		Timeout:    e.cfg.ReferenceTimeout,
	})
	return err
}

func (e *Executor) runErrorListing(ctx context.Context, entry cases.Entry, w *workspace, ch Channel) error {
	id := entry.ID

	err := e.stage(ctx, StageCompile, id, ch, func(ctx context.Context) error {
		_, err := e.pm.Exec(ctx, process.Spec{
			Name:       e.cfg.Compiler,
			Args:       []string{w.src},
			Dir:        w.slot,
			StdoutPath: w.path(OutputFile),
			Timeout:    e.cfg.CompileTimeout,
		})
		return err
	})
	if err != nil {
		return err
	}

	err = e.stage(ctx, StageReference, id, ch, func(context.Context) error {
		data, err := os.ReadFile(entry.Case.ReferencePath)
		if err != nil {
			return err
		}
		sorted, err := NormalizeErrorListing(data)
		if err != nil {
			return fmt.Errorf("%s: %w", entry.Case.ReferencePath, err)
		}
		return os.WriteFile(w.path(AnswerFile), sorted, 0o644)
	})
	if err != nil {
		return err
	}

	return e.compare(ctx, id, w.path(AnswerFile), w.path(OutputFile), ch)
}

func (e *Executor) compare(ctx context.Context, id, expected, actual string, ch Channel) error {
	return e.stage(ctx, StageDiff, id, ch, func(ctx context.Context) error {
		cmp, err := e.cmp.Compare(ctx, expected, actual)
		if err != nil {
			return err
		}
		if !cmp.Equal {
			return fmt.Errorf("%w: %s", ErrOutputMismatch, cmp.Summary)
		}
		return nil
	})
}

// stage wraps one step with progress messages, a span and a timing
// observation. A failure comes back as a *StageError.
func (e *Executor) stage(ctx context.Context, st Stage, id string, ch Channel, fn func(context.Context) error) error {
	ctx, span := e.tracer.Start(ctx, "pipeline."+string(st), trace.WithAttributes(
		attribute.String("case.id", id),
	))
	defer span.End()

	ch.Say("%s", st.verb())
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	e.observer.ObserveStage(string(st), elapsed, err != nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Debug("stage failed", "case", id, "stage", string(st), "duration", elapsed, "error", err)
		ch.Fail("%s failed: %v", st, err)
		return NewStageError(st, id, err)
	}
	e.logger.Debug("stage finished", "case", id, "stage", string(st), "duration", elapsed)
	ch.Say("%s done", st)
	return nil
}

func formatRecord(rec ledger.Record) string {
	parts := make([]string, 0, 2*len(rec))
	for _, f := range rec {
		parts = append(parts, f.Key, f.Value)
	}
	return strings.Join(parts, " ")
}

func isInside(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
