// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bxml

import (
	"math"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/aup3tools/aup3-recover/internal/aup3err"
	"github.com/aup3tools/aup3-recover/internal/chunkbuf"
)

// reader is a forward-only cursor over a chunkbuf.Buffer, providing
// the fixed-width little-endian reads and length-prefixed string
// reads the binary-XML wire format needs. It tracks the current
// character width, which only affects how Name records are decoded
// (spec: CharSize governs "subsequent Name and Raw strings"; String
// and Data payloads are always read as UTF-8).
type reader struct {
	buf       *chunkbuf.Buffer
	offset    int
	size      int
	charWidth int
}

func newReader(buf *chunkbuf.Buffer) *reader {
	return &reader{buf: buf, size: buf.Len()}
}

func (r *reader) isEOF() bool {
	return r.offset >= r.size
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if r.offset+n > r.size {
		return nil, aup3err.Malformedf("read past end of document at offset %d (wanted %d bytes, %d remain)", r.offset, n, r.size-r.offset)
	}
	out := make([]byte, n)
	r.buf.Read(r.offset, out)
	r.offset += n
	return out, nil
}

func (r *reader) skip(n int) error {
	if r.offset+n > r.size {
		return aup3err.Malformedf("skip past end of document at offset %d (wanted %d bytes)", r.offset, n)
	}
	r.offset += n
	return nil
}

func (r *reader) readUint8() (uint8, error) {
	b, err := r.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readOpcode() (Opcode, error) {
	v, err := r.readUint8()
	return Opcode(v), err
}

func (r *reader) readUint16() (uint16, error) {
	b, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (r *reader) readUint32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (r *reader) readInt32() (int32, error) {
	v, err := r.readUint32()
	return int32(v), err
}

func (r *reader) readInt64() (int64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return int64(v), nil
}

func (r *reader) readFloat32() (float32, error) {
	v, err := r.readUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) readFloat64() (float64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return math.Float64frombits(v), nil
}

// readValueString reads a length-prefixed string always interpreted
// as UTF-8, per spec: String and Data payloads ignore the current
// character width. use32BitLength selects the u16 vs u32 length
// prefix.
func (r *reader) readValueString(use32BitLength bool) (string, error) {
	var length int
	if use32BitLength {
		n, err := r.readUint32()
		if err != nil {
			return "", err
		}
		length = int(n)
	} else {
		n, err := r.readUint16()
		if err != nil {
			return "", err
		}
		length = int(n)
	}

	b, err := r.readBytes(length)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// readNameString reads a u16-length-prefixed string and transcodes it
// from the current character width into UTF-8.
func (r *reader) readNameString() (string, error) {
	if r.charWidth == 0 {
		return "", aup3err.Malformedf("Name record before CharSize was set")
	}

	n, err := r.readUint16()
	if err != nil {
		return "", err
	}
	byteLen := int(n)

	b, err := r.readBytes(byteLen)
	if err != nil {
		return "", err
	}

	switch r.charWidth {
	case 1:
		return string(b), nil
	case 2:
		if byteLen%2 != 0 {
			return "", aup3err.Malformedf("Name string byte length %d is not a multiple of 2 for char width 2", byteLen)
		}
		units := make([]uint16, byteLen/2)
		for i := range units {
			units[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
		}
		return string(utf16.Decode(units)), nil
	case 4:
		if byteLen%4 != 0 {
			return "", aup3err.Malformedf("Name string byte length %d is not a multiple of 4 for char width 4", byteLen)
		}
		var sb []byte
		var scratch [utf8.UTFMax]byte
		for i := 0; i < byteLen; i += 4 {
			cp := uint32(b[i]) | uint32(b[i+1])<<8 | uint32(b[i+2])<<16 | uint32(b[i+3])<<24
			n := utf8.EncodeRune(scratch[:], rune(cp))
			sb = append(sb, scratch[:n]...)
		}
		return string(sb), nil
	default:
		return "", aup3err.Malformedf("invalid char width %d", r.charWidth)
	}
}

func (r *reader) skipValueString(use32BitLength bool) error {
	var length int
	if use32BitLength {
		n, err := r.readUint32()
		if err != nil {
			return err
		}
		length = int(n)
	} else {
		n, err := r.readUint16()
		if err != nil {
			return err
		}
		length = int(n)
	}
	return r.skip(length)
}

func (r *reader) setCharWidth(w int) error {
	if w != 1 && w != 2 && w != 4 {
		return aup3err.Malformedf("invalid CharSize %d, must be 1, 2, or 4", w)
	}
	r.charWidth = w
	return nil
}
