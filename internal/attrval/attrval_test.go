// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package attrval

import "testing"

func TestBoolCoercion(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"bool true", Bool_(true), true},
		{"bool false", Bool_(false), false},
		{"string true", Str_("true"), true},
		{"string other", Str_("false"), false},
		{"string numeric nonzero", Str_("3"), true},
		{"string numeric zero", Str_("0"), false},
		{"i32 nonzero", I32_(5), true},
		{"i32 zero", I32_(0), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.v.AsBool(); got != tc.want {
				t.Errorf("AsBool() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIntCoercion(t *testing.T) {
	if got := I64_(-500).AsInt64(); got != -500 {
		t.Errorf("AsInt64() = %d, want -500", got)
	}
	if got := Str_("42").AsInt64(); got != 42 {
		t.Errorf("AsInt64() from string = %d, want 42", got)
	}
	if got := SizeT_(7).AsUint32(); got != 7 {
		t.Errorf("AsUint32() = %d, want 7", got)
	}
}

func TestAsString(t *testing.T) {
	if got := Bool_(true).AsString(); got != "true" {
		t.Errorf("AsString() = %q, want %q", got, "true")
	}
	if got := F64_(19.0).AsString(); got != "19" {
		t.Errorf("AsString() = %q, want %q", got, "19")
	}
}
