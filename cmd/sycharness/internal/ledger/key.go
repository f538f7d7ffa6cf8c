// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ledger

import (
	"sort"
	"strconv"
	"strings"
)

// SortKey orders identifiers so that "A-2" comes before "A-10".
type SortKey struct {
	Prefix string
	N      int
}

// Key0 splits id at its last '-'. An integer suffix gives (prefix, n);
// anything else gives (id, 0).
func Key0(id string) SortKey {
	if p := strings.LastIndexByte(id, '-'); p >= 0 {
		if n, err := strconv.Atoi(id[p+1:]); err == nil {
			return SortKey{Prefix: id[:p], N: n}
		}
	}
	return SortKey{Prefix: id}
}

// Less orders by prefix, then by number.
func (k SortKey) Less(o SortKey) bool {
	if k.Prefix != o.Prefix {
		return k.Prefix < o.Prefix
	}
	return k.N < o.N
}

// lessID is a total order on identifiers: Key0 first, the raw string to
// break ties such as "a-1" and "a-01".
func lessID(a, b string) bool {
	ka, kb := Key0(a), Key0(b)
	if ka != kb {
		return ka.Less(kb)
	}
	return a < b
}

// sortRows orders table rows by the Key0 of their first cell.
func sortRows(rows [][]string) {
	sort.SliceStable(rows, func(i, j int) bool {
		return lessID(rows[i][0], rows[j][0])
	})
}
