// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunkbuf provides an append-only byte buffer built from
// fixed-size chunks, used both as the wire staging area for the
// binary-XML codec and as the per-channel sample accumulator for WAV
// assembly.
//
// A Buffer grows by appending whole chunks as needed; it never
// reallocates or copies previously written bytes. This keeps append
// cost amortized-constant regardless of total size, which matters
// because a single project's document blob can run into tens of
// megabytes and its sample blocks are read back one at a time.
package chunkbuf

import (
	"encoding/binary"
	"math"
)

// ChunkSize is the fixed size of each backing chunk. It is a wire
// format constant carried over from the tool this package's callers
// interoperate with — the value itself has no significance to Buffer.
const ChunkSize = 1024 * 1024

// Buffer is a logical byte sequence stored as an ordered list of
// ChunkSize chunks. The zero value is an empty, ready-to-use buffer.
//
// Buffer is not safe for concurrent use, and is never shared for
// mutation between callers — each parsed document or in-flight WAV
// channel owns its buffers exclusively.
type Buffer struct {
	chunks        [][]byte
	lastChunkUsed int
}

// Len returns the logical length of the buffer in bytes.
func (b *Buffer) Len() int {
	if len(b.chunks) == 0 {
		return 0
	}
	return (len(b.chunks)-1)*ChunkSize + b.lastChunkUsed
}

// Reset drops all chunks, returning the buffer to empty.
func (b *Buffer) Reset() {
	b.chunks = nil
	b.lastChunkUsed = 0
}

// Append copies data into the buffer, splitting the write across
// chunk boundaries as needed. A new chunk is allocated only when the
// current last chunk is full.
func (b *Buffer) Append(data []byte) {
	for len(data) > 0 {
		if len(b.chunks) == 0 || b.lastChunkUsed == ChunkSize {
			b.chunks = append(b.chunks, make([]byte, ChunkSize))
			b.lastChunkUsed = 0
		}

		room := ChunkSize - b.lastChunkUsed
		n := len(data)
		if n > room {
			n = room
		}

		last := b.chunks[len(b.chunks)-1]
		copy(last[b.lastChunkUsed:], data[:n])

		b.lastChunkUsed += n
		data = data[n:]
	}
}

// AppendByte appends a single byte.
func (b *Buffer) AppendByte(v byte) {
	b.Append([]byte{v})
}

// AppendUint8 appends an 8-bit unsigned integer.
func (b *Buffer) AppendUint8(v uint8) { b.AppendByte(v) }

// AppendUint16 appends a 16-bit little-endian unsigned integer.
func (b *Buffer) AppendUint16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	b.Append(buf[:])
}

// AppendUint32 appends a 32-bit little-endian unsigned integer.
func (b *Buffer) AppendUint32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	b.Append(buf[:])
}

// AppendInt32 appends a 32-bit little-endian signed integer.
func (b *Buffer) AppendInt32(v int32) {
	b.AppendUint32(uint32(v))
}

// AppendInt64 appends a 64-bit little-endian signed integer.
func (b *Buffer) AppendInt64(v int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	b.Append(buf[:])
}

// AppendFloat32 appends the raw little-endian bits of a float32.
func (b *Buffer) AppendFloat32(v float32) {
	b.AppendUint32(math.Float32bits(v))
}

// AppendFloat64 appends the raw little-endian bits of a float64.
func (b *Buffer) AppendFloat64(v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	b.Append(buf[:])
}

// Read copies min(len(out), Len()-offset) bytes starting at offset
// into out and returns the number of bytes copied. If offset is at or
// past the end of the buffer, it returns 0 and leaves out untouched.
func (b *Buffer) Read(offset int, out []byte) int {
	size := b.Len()
	if offset >= size {
		return 0
	}

	n := len(out)
	if offset+n > size {
		n = size - offset
	}
	out = out[:n]

	chunkIndex := offset / ChunkSize
	chunkOffset := offset % ChunkSize

	remaining := n
	dst := 0
	for remaining > 0 {
		chunk := b.chunks[chunkIndex]
		avail := ChunkSize - chunkOffset
		if avail > remaining {
			avail = remaining
		}

		copy(out[dst:dst+avail], chunk[chunkOffset:chunkOffset+avail])

		dst += avail
		remaining -= avail
		chunkOffset = 0
		chunkIndex++
	}

	return n
}

// ReadAt reads exactly len(out) bytes at offset, returning false if
// that range extends past the end of the buffer.
func (b *Buffer) ReadAt(offset int, out []byte) bool {
	if offset < 0 || offset+len(out) > b.Len() {
		return false
	}
	return b.Read(offset, out) == len(out)
}

// Linearize returns the buffer's contents as a single contiguous
// slice. The returned slice is a fresh copy; mutating it does not
// affect the buffer.
func (b *Buffer) Linearize() []byte {
	out := make([]byte, b.Len())
	b.Read(0, out)
	return out
}
