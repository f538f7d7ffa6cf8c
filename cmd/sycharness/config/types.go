// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import "time"

// Comparator modes.
const (
	ComparatorExternal = "external"
	ComparatorBuiltin  = "builtin"
)

// HarnessConfig is the content of harness.yaml.
type HarnessConfig struct {
	// Paths: where cases, scratch space and results live
	Paths PathsConfig `yaml:"paths"`

	// Cases: specifier and named-set settings
	Cases CasesConfig `yaml:"cases"`

	// Tools: the external programs each case runs through
	Tools ToolsConfig `yaml:"tools"`

	// Build: compiling the compiler under test before a run
	Build BuildConfig `yaml:"build"`

	// Run: scheduling and statistics
	Run RunConfig `yaml:"run"`

	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// PathsConfig holds directories. Relative paths are resolved against the
// directory of the config file.
type PathsConfig struct {
	Cases            string `yaml:"cases" validate:"required"`
	Course           string `yaml:"course"`
	Homework         string `yaml:"homework"`
	Errors           string `yaml:"errors"`
	Slots            string `yaml:"slots" validate:"required"`
	Quarantine       string `yaml:"quarantine" validate:"required"`
	QuarantineBackup string `yaml:"quarantine_backup" validate:"required,nefield=Quarantine"`
	Stats            string `yaml:"stats" validate:"required"`
	Journal          string `yaml:"journal"`
	Project          string `yaml:"project" validate:"required"`
	Build            string `yaml:"build" validate:"required"`
}

type CasesConfig struct {
	Groups     []string `yaml:"groups" validate:"dive,required,excludes=-"`
	ErrorCount int      `yaml:"error_count" validate:"gte=0"`
}

type ToolsConfig struct {
	Compiler         string        `yaml:"compiler" validate:"required"`
	CompileTimeout   time.Duration `yaml:"compile_timeout" validate:"gt=0"`
	// MarsJar is substituted for {mars} in Simulator once resolved.
	MarsJar          string        `yaml:"mars_jar"`
	Simulator        []string      `yaml:"simulator" validate:"required,min=1,dive,required"`
	SimulateTimeout  time.Duration `yaml:"simulate_timeout" validate:"gt=0"`
	Reference        []string      `yaml:"reference" validate:"required,min=1,dive,required"`
	ReferenceTimeout time.Duration `yaml:"reference_timeout" validate:"gt=0"`

	// Header replaces the embedded compatibility header when set.
	Header string `yaml:"header,omitempty"`

	Comparator      string        `yaml:"comparator" validate:"oneof=external builtin"`
	Diff            []string      `yaml:"diff" validate:"required_if=Comparator external,dive,required"`
	DiffTimeout     time.Duration `yaml:"diff_timeout" validate:"gte=0"`
	SoftFaultPrefix string        `yaml:"soft_fault_prefix"`
	StatsFile       string        `yaml:"stats_file" validate:"required"`
}

type BuildConfig struct {
	Enabled   bool          `yaml:"enabled"`
	CMake     string        `yaml:"cmake" validate:"required"`
	Make      string        `yaml:"make" validate:"required"`
	BuildType string        `yaml:"build_type" validate:"required"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
}

type RunConfig struct {
	// Parallelism bounds concurrent cases; 0 means one per CPU.
	Parallelism int  `yaml:"parallelism" validate:"gte=0"`
	Stats       bool `yaml:"stats"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

type TelemetryConfig struct {
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	TraceFile     string `yaml:"trace_file,omitempty"`
	OTLPEndpoint  string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
	OTLPInsecure  bool   `yaml:"otlp_insecure"`

	// MetricsFile receives a Prometheus textfile after each run when set.
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// DefaultConfig mirrors the layout of a syc checkout with its test cases
// next to it.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Paths: PathsConfig{
			Cases:            "cases",
			Course:           "cases/926/testfiles",
			Homework:         "cases/hw",
			Errors:           "err",
			Slots:            "out",
			Quarantine:       "fail-out",
			QuarantineBackup: "fail-out-old",
			Stats:            "stats",
			Journal:          "journal",
			Project:          "..",
			Build:            "build",
		},
		Cases: CasesConfig{
			Groups:     []string{"A", "B", "C"},
			ErrorCount: 4,
		},
		Tools: ToolsConfig{
			Compiler:         "build/syc",
			CompileTimeout:   5 * time.Second,
			MarsJar:          "mars.jar",
			Simulator:        []string{"java", "-jar", "{mars}", "nc", "me", "mc", "Default", "{asm}"},
			SimulateTimeout:  8 * time.Second,
			Reference:        []string{"gcc", "-O0", "-x", "c", "-o", "{bin}", "{src}"},
			ReferenceTimeout: 10 * time.Second,
			Comparator:       ComparatorExternal,
			Diff:             []string{"diff", "-b", "-u", "{expected}", "{actual}"},
			DiffTimeout:      5 * time.Second,
			SoftFaultPrefix:  "div",
			StatsFile:        "InstructionStatistics.txt",
		},
		Build: BuildConfig{
			Enabled:   true,
			CMake:     "cmake",
			Make:      "make",
			BuildType: "Release",
			Timeout:   10 * time.Minute,
		},
		Run: RunConfig{
			Parallelism: 0,
			Stats:       true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			TraceExporter: "none",
			OTLPEndpoint:  "localhost:4317",
			OTLPInsecure:  true,
		},
	}
}
