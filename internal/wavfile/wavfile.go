// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wavfile assembles canonical PCM/IEEE-float WAV files from
// one ChunkedBuffer per channel, matching the 44-byte fixed header
// layout and channel-interleaving rule of the format this tool
// recovers audio from.
package wavfile

import (
	"encoding/binary"
	"os"

	"github.com/aup3tools/aup3-recover/internal/aup3err"
	"github.com/aup3tools/aup3-recover/internal/chunkbuf"
	"github.com/aup3tools/aup3-recover/internal/sampleformat"
)

const headerSize = 44

// Assembler accumulates per-channel sample bytes and writes them out
// as one interleaved WAV file. It is not safe for concurrent use.
type Assembler struct {
	format     sampleformat.Format
	sampleRate uint32
	channels   []*chunkbuf.Buffer
}

// New returns an assembler for numChannels channels of fmt-encoded
// samples at the given rate.
func New(fmt sampleformat.Format, sampleRate uint32, numChannels int) *Assembler {
	channels := make([]*chunkbuf.Buffer, numChannels)
	for i := range channels {
		channels[i] = &chunkbuf.Buffer{}
	}
	return &Assembler{format: fmt, sampleRate: sampleRate, channels: channels}
}

// WriteBlock appends data to the given channel's buffer.
func (a *Assembler) WriteBlock(data []byte, channel int) {
	a.channels[channel].Append(data)
}

// WriteFile finalizes the assembled channels and writes path as a
// complete WAV file. The written data section length is
// numChannels * max(channel buffer sizes), zero-padding channels
// shorter than the longest.
func (a *Assembler) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &aup3err.IOError{Op: "create " + path, Err: err}
	}
	defer f.Close()

	bytesPerSample := sampleformat.BytesPerSample(a.format)

	maxChannelSize := 0
	for _, ch := range a.channels {
		if n := ch.Len(); n > maxChannelSize {
			maxChannelSize = n
		}
	}

	numChannels := len(a.channels)
	dataSize := uint32(numChannels * maxChannelSize)

	header := make([]byte, headerSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], sampleformat.WAVFormatTag(a.format))
	binary.LittleEndian.PutUint16(header[22:24], uint16(numChannels))
	binary.LittleEndian.PutUint32(header[24:28], a.sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], a.sampleRate*uint32(numChannels)*uint32(bytesPerSample))
	binary.LittleEndian.PutUint16(header[32:34], uint16(numChannels*bytesPerSample))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bytesPerSample*8))
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := f.Write(header); err != nil {
		return &aup3err.IOError{Op: "write WAV header", Err: err}
	}

	maxSamples := maxChannelSize / bytesPerSample
	sampleRow := make([]byte, numChannels*bytesPerSample)
	zero := make([]byte, bytesPerSample)

	for s := 0; s < maxSamples; s++ {
		offset := s * bytesPerSample
		for c, ch := range a.channels {
			dst := sampleRow[c*bytesPerSample : (c+1)*bytesPerSample]
			if !ch.ReadAt(offset, dst) {
				copy(dst, zero)
			}
		}
		if _, err := f.Write(sampleRow); err != nil {
			return &aup3err.IOError{Op: "write WAV samples", Err: err}
		}
	}

	return nil
}
