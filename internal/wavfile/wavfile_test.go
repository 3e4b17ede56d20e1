// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wavfile

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/aup3tools/aup3-recover/internal/sampleformat"
)

func TestWriteFileMonoInt16Header(t *testing.T) {
	asm := New(sampleformat.Int16, 44100, 1)
	asm.WriteBlock([]byte{1, 0, 2, 0, 3, 0}, 0) // three int16 samples

	path := filepath.Join(t.TempDir(), "out.wav")
	if err := asm.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != headerSize+6 {
		t.Fatalf("len(data) = %d, want %d", len(data), headerSize+6)
	}

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		t.Fatalf("header chunk ids wrong: %q", data[:44])
	}
	if tag := binary.LittleEndian.Uint16(data[20:22]); tag != 1 {
		t.Errorf("AudioFormat = %d, want 1 (PCM)", tag)
	}
	if ch := binary.LittleEndian.Uint16(data[22:24]); ch != 1 {
		t.Errorf("NumChannels = %d, want 1", ch)
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 44100 {
		t.Errorf("SampleRate = %d, want 44100", rate)
	}
	if bits := binary.LittleEndian.Uint16(data[34:36]); bits != 16 {
		t.Errorf("BitsPerSample = %d, want 16", bits)
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); size != 6 {
		t.Errorf("Subchunk2Size = %d, want 6", size)
	}
}

func TestWriteFileFloatFormatTag(t *testing.T) {
	asm := New(sampleformat.Float32, 48000, 1)
	asm.WriteBlock(make([]byte, 8), 0)

	path := filepath.Join(t.TempDir(), "out.wav")
	if err := asm.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if tag := binary.LittleEndian.Uint16(data[20:22]); tag != 3 {
		t.Errorf("AudioFormat = %d, want 3 (IEEE float)", tag)
	}
}

func TestWriteFileZeroFillsShorterChannel(t *testing.T) {
	asm := New(sampleformat.Int16, 44100, 2)
	asm.WriteBlock([]byte{1, 0, 2, 0}, 0) // two samples on channel 0
	asm.WriteBlock([]byte{9, 0}, 1)       // one sample on channel 1

	path := filepath.Join(t.TempDir(), "out.wav")
	if err := asm.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	samples := data[headerSize:]
	// Row 0: channel0=1, channel1=9. Row 1: channel0=2, channel1=0 (zero-filled).
	want := []byte{1, 0, 9, 0, 2, 0, 0, 0}
	if string(samples) != string(want) {
		t.Errorf("samples = %v, want %v", samples, want)
	}
}
