// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires tracing and Prometheus metrics for the harness.
//
// Spans are created by the runner (one per run-set) and the pipeline (one
// per case and per stage) through the global otel tracer provider that
// [Init] installs. Counters and histograms live in [Metrics], which can be
// dumped to a node_exporter textfile at the end of a run.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Trace exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

var (
	// ErrNilContext is returned when Init receives a nil context.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an unsupported exporter name.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter")
)

// TraceConfig selects where spans go.
type TraceConfig struct {
	// ServiceName identifies the harness in traces.
	ServiceName string

	// ServiceVersion is the harness version string.
	ServiceVersion string

	// Exporter is "none", "stdout" or "otlp".
	Exporter string

	// File receives stdout-exporter spans; "" means os.Stdout.
	File string

	// OTLPEndpoint is the gRPC collector address.
	OTLPEndpoint string

	// OTLPInsecure disables TLS for the OTLP connection.
	OTLPInsecure bool
}

// DefaultTraceConfig disables tracing.
func DefaultTraceConfig() TraceConfig {
	return TraceConfig{
		ServiceName:    "sycharness",
		ServiceVersion: "dev",
		Exporter:       ExporterNone,
		OTLPEndpoint:   "localhost:4317",
		OTLPInsecure:   true,
	}
}

// Init installs the global tracer provider.
//
// Description:
//
//	With the "none" exporter nothing is installed and otel's no-op tracer
//	stays in place. Otherwise spans are batched to the chosen exporter.
//
// Outputs:
//
//	shutdown - Flushes spans and closes the trace file. Always non-nil on success.
//	error - Non-nil if the exporter cannot be created.
//
// Thread Safety: Call once at startup.
func Init(ctx context.Context, cfg TraceConfig) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return shutdown, nil
	}

	var (
		exporter  sdktrace.SpanExporter
		traceFile *os.File
	)
	switch cfg.Exporter {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)

	case ExporterStdout:
		var w io.Writer = os.Stdout
		if cfg.File != "" {
			traceFile, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open trace file: %w", err)
			}
			w = traceFile
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}
	if err != nil {
		if traceFile != nil {
			traceFile.Close()
		}
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	// The provider flushes into the file, so it shuts down first.
	shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	if traceFile != nil {
		shutdownFuncs = append(shutdownFuncs, func(context.Context) error { return traceFile.Close() })
	}
	return shutdown, nil
}
