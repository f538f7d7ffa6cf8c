// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// DefaultHeader is prepended to a case's source before the reference
// toolchain compiles it. It supplies the runtime functions the source
// language provides but C does not.
//
//go:embed compat.h
var DefaultHeader []byte

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_]+)\}`)

// CheckTemplate rejects an empty argv and any {name} placeholder not in
// names. A leftover placeholder would otherwise reach the tool verbatim.
func CheckTemplate(argv []string, names ...string) error {
	if len(argv) == 0 || argv[0] == "" {
		return errors.New("command is empty")
	}
	for _, arg := range argv {
		for _, m := range placeholderPattern.FindAllStringSubmatch(arg, -1) {
			if !slices.Contains(names, m[1]) {
				return fmt.Errorf("unknown placeholder %s in %q (allowed: %s)", m[0], arg, strings.Join(names, ", "))
			}
		}
	}
	return nil
}

// Expand substitutes {name} placeholders in every argument. Unknown
// placeholders are left as they are.
func Expand(argv []string, vars map[string]string) []string {
	pairs := make([]string, 0, 2*len(vars))
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = r.Replace(arg)
	}
	return out
}
