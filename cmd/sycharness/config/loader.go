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

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the working directory when --config is
// not given.
const DefaultFileName = "harness.yaml"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid harness config")

// configValidate is the validator instance for harness config.
// Field names in errors are the yaml keys.
var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	configValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Load reads, validates and resolves the config at path.
//
// A missing file yields the defaults. Relative paths in the result are made
// absolute against the directory holding path.
func Load(path string) (*HarnessConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	default:
		if err := decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("could not resolve the config directory: %w", err)
	}
	cfg.Resolve(base)
	return &cfg, nil
}

// decode overlays the YAML document onto cfg. Unknown keys are errors.
func decode(data []byte, cfg *HarnessConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks field constraints.
func (c *HarnessConfig) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Join(ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "HarnessConfig.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (%s)", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q", field, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Resolve makes every configured path absolute against base and substitutes
// the resolved jar for {mars} in the simulator command. A compiler given as
// a bare name is left for PATH lookup.
func (c *HarnessConfig) Resolve(base string) {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}

	p := &c.Paths
	for _, s := range []*string{
		&p.Cases, &p.Course, &p.Homework, &p.Errors, &p.Slots, &p.Quarantine,
		&p.QuarantineBackup, &p.Stats, &p.Journal, &p.Project, &p.Build,
	} {
		abs(s)
	}

	if strings.ContainsRune(c.Tools.Compiler, '/') {
		abs(&c.Tools.Compiler)
	}
	abs(&c.Tools.Header)
	abs(&c.Tools.MarsJar)
	if c.Tools.MarsJar != "" {
		for i, arg := range c.Tools.Simulator {
			c.Tools.Simulator[i] = strings.ReplaceAll(arg, "{mars}", c.Tools.MarsJar)
		}
	}
	abs(&c.Logging.Dir)
	abs(&c.Telemetry.TraceFile)
	abs(&c.Telemetry.MetricsFile)
}

// WriteDefault writes the defaults to path, creating its directory.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
