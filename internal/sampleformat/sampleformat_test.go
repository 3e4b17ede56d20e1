// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sampleformat

import "testing"

func TestFromString(t *testing.T) {
	cases := []struct {
		in   string
		want Format
	}{
		{"int16", Int16},
		{"int24", Int24},
		{"float", Float32},
	}
	for _, c := range cases {
		got, err := FromString(c.in)
		if err != nil {
			t.Fatalf("FromString(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("FromString(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestFromStringRejectsUnknown(t *testing.T) {
	if _, err := FromString("pcm32"); err == nil {
		t.Fatal("expected an error for an unrecognized format string")
	}
}

func TestBytesPerSample(t *testing.T) {
	cases := map[Format]int{Int16: 2, Int24: 3, Float32: 4}
	for format, want := range cases {
		if got := BytesPerSample(format); got != want {
			t.Errorf("BytesPerSample(%v) = %d, want %d", format, got, want)
		}
	}
}

func TestDiskBytesPerSampleAlignsInt24(t *testing.T) {
	if got := DiskBytesPerSample(Int24); got != 4 {
		t.Errorf("DiskBytesPerSample(Int24) = %d, want 4", got)
	}
	if got := DiskBytesPerSample(Int16); got != 2 {
		t.Errorf("DiskBytesPerSample(Int16) = %d, want 2", got)
	}
}

func TestWAVFormatTag(t *testing.T) {
	if got := WAVFormatTag(Float32); got != 3 {
		t.Errorf("WAVFormatTag(Float32) = %d, want 3", got)
	}
	if got := WAVFormatTag(Int16); got != 1 {
		t.Errorf("WAVFormatTag(Int16) = %d, want 1", got)
	}
}
