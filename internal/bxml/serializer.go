// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bxml

import (
	"github.com/aup3tools/aup3-recover/internal/attrval"
	"github.com/aup3tools/aup3-recover/internal/aup3err"
	"github.com/aup3tools/aup3-recover/internal/chunkbuf"
)

// TreeNode is the minimal view Serialize needs of a project tree node.
// internal/project implements this over its own Node type; defining it
// here rather than importing internal/project avoids a cycle (bxml is
// the lower-level package).
type TreeNode interface {
	TagName() string
	Attributes() []Attribute
	Data() string
	Children() []TreeNode
}

// Serialize writes names (the reusable pool, in dictionary order) into
// a fresh dict_buffer and a depth-first emission of root into a fresh
// doc_buffer, following spec 4.2.3. It fails with *UnknownName if root
// or any descendant names a tag or attribute not present in names.
func Serialize(names []string, root TreeNode) (dictBuf, docBuf *chunkbuf.Buffer, err error) {
	index := make(map[string]uint16, len(names))
	for i, n := range names {
		index[n] = uint16(i)
	}

	dictBuf = &chunkbuf.Buffer{}
	dictBuf.AppendByte(byte(OpCharSize))
	dictBuf.AppendByte(1)
	for i, n := range names {
		dictBuf.AppendByte(byte(OpName))
		dictBuf.AppendUint16(uint16(i))
		writeU16String(dictBuf, n)
	}

	docBuf = &chunkbuf.Buffer{}
	s := &serializer{index: index, buf: docBuf}
	if err := s.writeNode(root); err != nil {
		return nil, nil, err
	}
	return dictBuf, docBuf, nil
}

// UnknownName reports a tag or attribute name absent from the
// dictionary passed to Serialize.
type UnknownName struct {
	Name string
}

func (e *UnknownName) Error() string { return "name not in dictionary: " + e.Name }

type serializer struct {
	index map[string]uint16
	buf   *chunkbuf.Buffer
}

func (s *serializer) id(name string) (uint16, error) {
	id, ok := s.index[name]
	if !ok {
		return 0, &UnknownName{Name: name}
	}
	return id, nil
}

func (s *serializer) writeNode(n TreeNode) error {
	id, err := s.id(n.TagName())
	if err != nil {
		return err
	}
	s.buf.AppendByte(byte(OpStartTag))
	s.buf.AppendUint16(id)

	for _, a := range n.Attributes() {
		aid, err := s.id(a.Name)
		if err != nil {
			return err
		}
		if err := s.writeAttribute(aid, a.Value); err != nil {
			return err
		}
	}

	if data := n.Data(); data != "" {
		s.buf.AppendByte(byte(OpData))
		writeU32String(s.buf, data)
	}

	for _, c := range n.Children() {
		if err := s.writeNode(c); err != nil {
			return err
		}
	}

	s.buf.AppendByte(byte(OpEndTag))
	s.buf.AppendUint16(id)
	return nil
}

func (s *serializer) writeAttribute(id uint16, v attrval.Value) error {
	switch v.Kind {
	case attrval.Bool:
		s.buf.AppendByte(byte(OpBool))
		s.buf.AppendUint16(id)
		if v.AsBool() {
			s.buf.AppendByte(1)
		} else {
			s.buf.AppendByte(0)
		}
	case attrval.I32:
		s.buf.AppendByte(byte(OpInt))
		s.buf.AppendUint16(id)
		s.buf.AppendInt32(int32(v.AsInt64()))
	case attrval.U32, attrval.SizeT:
		s.buf.AppendByte(byte(OpSizeT))
		s.buf.AppendUint16(id)
		s.buf.AppendUint32(v.AsUint32())
	case attrval.I64:
		s.buf.AppendByte(byte(OpLongLong))
		s.buf.AppendUint16(id)
		s.buf.AppendInt64(v.AsInt64())
	case attrval.F32:
		s.buf.AppendByte(byte(OpFloat))
		s.buf.AppendUint16(id)
		s.buf.AppendFloat32(float32(v.AsFloat64()))
		s.buf.AppendInt32(floatDigitsLiteral)
	case attrval.F64:
		s.buf.AppendByte(byte(OpDouble))
		s.buf.AppendUint16(id)
		s.buf.AppendFloat64(v.AsFloat64())
		s.buf.AppendInt32(doubleDigitsLiteral)
	case attrval.Str:
		s.buf.AppendByte(byte(OpString))
		s.buf.AppendUint16(id)
		writeU32String(s.buf, v.AsString())
	default:
		return aup3err.Malformedf("attribute %d has unrecognized kind %v", id, v.Kind)
	}
	return nil
}

func writeU16String(b *chunkbuf.Buffer, s string) {
	b.AppendUint16(uint16(len(s)))
	b.Append([]byte(s))
}

func writeU32String(b *chunkbuf.Buffer, s string) {
	b.AppendUint32(uint32(len(s)))
	b.Append([]byte(s))
}
