// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"strconv"
	"strings"
)

// OIDFollows reports whether b sorts after a. Components are compared as
// integers from the left, so 1.2.10 follows 1.2.9, and a strict prefix
// sorts first.
func OIDFollows(a, b string) bool {
	return oidCompare(a, b) < 0
}

// OIDInSubtree reports whether candidate is base or lies beneath it.
func OIDInSubtree(base, candidate string) bool {
	base, candidate = normalizeOID(base), normalizeOID(candidate)
	if base == "" {
		return true
	}
	if !strings.HasPrefix(candidate, base) {
		return false
	}
	return len(candidate) == len(base) || candidate[len(base)] == '.'
}

// oidCompare returns -1, 0 or 1 as a sorts before, equal to or after b.
// A component that is not a number sorts after every number.
func oidCompare(a, b string) int {
	as := splitOID(a)
	bs := splitOID(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareComponent(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func compareComponent(a, b string) int {
	av, aerr := strconv.ParseUint(a, 10, 32)
	bv, berr := strconv.ParseUint(b, 10, 32)
	switch {
	case aerr != nil && berr != nil:
		return strings.Compare(a, b)
	case aerr != nil:
		return 1
	case berr != nil:
		return -1
	case av < bv:
		return -1
	case av > bv:
		return 1
	}
	return 0
}

func splitOID(oid string) []string {
	oid = normalizeOID(oid)
	if oid == "" {
		return nil
	}
	return strings.Split(oid, ".")
}

// oidTail returns the components of oid below base, or false when oid is not
// strictly beneath base.
func oidTail(base, oid string) ([]int, bool) {
	base, oid = normalizeOID(base), normalizeOID(oid)
	if !strings.HasPrefix(oid, base+".") {
		return nil, false
	}
	parts := strings.Split(oid[len(base)+1:], ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, false
		}
		out = append(out, int(v))
	}
	return out, true
}
