// Copyright 2025 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOidCompare(t *testing.T) {
	tests := []struct {
		name     string
		oid1     string
		oid2     string
		expected int
	}{
		// oid1 == oid2 (returns 0)
		{"equal", ".1.3.6.1", ".1.3.6.1", 0},
		{"equal ignores leading dot", ".1.3.6.1", "1.3.6.1", 0},

		// oid1 < oid2 (returns -1)
		{"less by component value", ".1.3.6.1", ".1.3.6.2", -1},
		{"less by length", ".1.3.6.1", ".1.3.6.1.4", -1},
		{"less by numeric not string order", ".1.3.6.1.2", ".1.3.6.1.10", -1},
		{"less at uint32 max", ".1.3.4294967294", ".1.3.4294967295", -1},
		{"empty less than any oid", "", ".1.3.6.1", -1},
		{"number before non-number", "1.3.6", "1.3.x", -1},

		// oid1 > oid2 (returns 1)
		{"greater by component value", ".1.3.6.2", ".1.3.6.1", 1},
		{"greater when response decreases", ".1.3.6.1.4.1.2636.3.60.1.2.1.1.6.578.227", ".1.3.6.1.4.1.2636.3.60.1.2.1.1.6.578.0", 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := oidCompare(tc.oid1, tc.oid2)
			if got != tc.expected {
				t.Errorf("oidCompare(%q, %q) = %d, want %d", tc.oid1, tc.oid2, got, tc.expected)
			}
		})
	}
}

func TestOIDFollows(t *testing.T) {
	assert.True(t, OIDFollows("1.3.6.1.2.1.1.9", "1.3.6.1.2.1.1.10"))
	assert.True(t, OIDFollows("1.3.6.1", "1.3.6.1.0"))
	assert.False(t, OIDFollows("1.3.6.1.2", "1.3.6.1.2"))
	assert.False(t, OIDFollows("1.3.6.1.2.1.2", "1.3.6.1.2.1.1.99"))
}

func TestOIDInSubtree(t *testing.T) {
	tests := []struct {
		base, oid string
		want      bool
	}{
		{"1.3.6.1.2.1.2", "1.3.6.1.2.1.2", true},
		{"1.3.6.1.2.1.2", "1.3.6.1.2.1.2.2.1.1.1", true},
		{".1.3.6.1.2.1.2", "1.3.6.1.2.1.2.1", true},
		{"1.3.6.1.2.1.2", "1.3.6.1.2.1.25.1", false},
		{"1.3.6.1.2.1.2", "1.3.6.1.2.1.3", false},
		{"1.3.6.1.2.1.2", "1.3.6.1.2.1", false},
		{"", "1.3.6.1", true},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, OIDInSubtree(test.base, test.oid), "%s under %s", test.oid, test.base)
	}
}

func TestOidTail(t *testing.T) {
	tail, ok := oidTail("1.3.6.1.2.1.2.2.1", "1.3.6.1.2.1.2.2.1.2.10")
	assert.True(t, ok)
	assert.Equal(t, []int{2, 10}, tail)

	tail, ok = oidTail("1.3.6.1.2.1.4.20.1", ".1.3.6.1.2.1.4.20.1.1.10.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, []int{1, 10, 0, 0, 1}, tail)

	_, ok = oidTail("1.3.6.1.2.1.2.2.1", "1.3.6.1.2.1.2.2.1")
	assert.False(t, ok)
	_, ok = oidTail("1.3.6.1.2.1.2.2.1", "1.3.6.1.2.1.2.2.10.1")
	assert.False(t, ok)
}
