// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cases

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	// ErrRootNotFound indicates the case root does not exist.
	ErrRootNotFound = errors.New("case root not found")

	// ErrNoCases indicates a specifier resolved to zero cases.
	ErrNoCases = errors.New("no cases found")

	// ErrNoQuarantine indicates a replay was requested with nothing quarantined.
	ErrNoQuarantine = errors.New("no quarantined case")
)

// DiscoveryError reports that case discovery could not produce a run-set.
// It is fatal and surfaces before any case is dispatched.
type DiscoveryError struct {
	// Target is the root path or specifier that was being resolved.
	Target string

	// Err is one of the sentinels above, or an I/O error.
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover %q: %v", e.Target, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

func discoveryError(target string, err error) error {
	return &DiscoveryError{Target: target, Err: err}
}
