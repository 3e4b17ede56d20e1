// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sampleformat defines the three PCM sample encodings AUP3
// projects use and the byte-width arithmetic that depends on them.
package sampleformat

import "fmt"

// Format identifies a sample encoding by its wire-level numeric code,
// matching the values a project's sampleformat attribute carries.
type Format int32

const (
	Int16   Format = 2
	Int24   Format = 3
	Float32 Format = 4
)

func (f Format) String() string {
	switch f {
	case Int16:
		return "int16"
	case Int24:
		return "int24"
	case Float32:
		return "float"
	default:
		return fmt.Sprintf("Format(%d)", int32(f))
	}
}

// FromString parses the CLI's --sample-format values.
func FromString(s string) (Format, error) {
	switch s {
	case "int16":
		return Int16, nil
	case "int24":
		return Int24, nil
	case "float":
		return Float32, nil
	default:
		return 0, fmt.Errorf("unrecognized sample format %q, want one of int16, int24, float", s)
	}
}

// BytesPerSample returns the wire width of one sample: the width of
// one packed value as it appears in a WAV data section.
func BytesPerSample(f Format) int {
	switch f {
	case Int16:
		return 2
	case Int24:
		return 3
	case Float32:
		return 4
	default:
		return 0
	}
}

// DiskBytesPerSample returns the width of one sample as stored in a
// sampleblocks row. Int24 is packed to 3 bytes on the wire but stored
// 4-byte aligned on disk; every other format matches its wire width.
func DiskBytesPerSample(f Format) int {
	if f == Int24 {
		return 4
	}
	return BytesPerSample(f)
}

// WAVFormatTag returns the RIFF format tag for f: 1 (PCM) for integer
// formats, 3 (IEEE float) for Float32.
func WAVFormatTag(f Format) uint16 {
	if f == Float32 {
		return 3
	}
	return 1
}
