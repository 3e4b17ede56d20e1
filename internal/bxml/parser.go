// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bxml

import (
	"github.com/aup3tools/aup3-recover/internal/attrval"
	"github.com/aup3tools/aup3-recover/internal/aup3err"
	"github.com/aup3tools/aup3-recover/internal/chunkbuf"
)

// Parse decodes one or more chunkbuf.Buffer blobs as a single logical
// binary-XML document — the dictionary a document defines may be
// split across blobs in any interleaving — and drives sink with the
// decoded tag-start/tag-end/char-data events in wire order.
//
// Parse is a straight-line consumer: it never looks ahead and never
// buffers more than the attributes of the tag currently being opened.
func Parse(sink Sink, blobs ...*chunkbuf.Buffer) error {
	p := &parser{sink: sink, dict: make(map[uint16]string)}
	for _, blob := range blobs {
		width := 0
		if p.r != nil {
			width = p.r.charWidth
		}
		p.r = newReader(blob)
		p.r.charWidth = width
		if err := p.run(); err != nil {
			return err
		}
	}
	if p.pendingTag != nil || p.openDepth != 0 {
		return aup3err.Malformedf("document ended with an unclosed tag")
	}
	return nil
}

type parser struct {
	r    *reader
	sink Sink
	dict map[uint16]string

	pendingTag   *string
	pendingAttrs []Attribute
	openDepth    int
}

func (p *parser) run() error {
	for !p.r.isEOF() {
		op, err := p.r.readOpcode()
		if err != nil {
			return err
		}

		switch op {
		case OpCharSize:
			w, err := p.r.readUint8()
			if err != nil {
				return err
			}
			if err := p.r.setCharWidth(int(w)); err != nil {
				return err
			}

		case OpName:
			id, err := p.r.readUint16()
			if err != nil {
				return err
			}
			name, err := p.r.readNameString()
			if err != nil {
				return err
			}
			p.dict[id] = name

		case OpStartTag:
			id, err := p.r.readUint16()
			if err != nil {
				return err
			}
			name, ok := p.dict[id]
			if !ok {
				return aup3err.Malformedf("StartTag references undefined dictionary id %d", id)
			}
			if err := p.flushPending(); err != nil {
				return err
			}
			p.pendingTag = &name
			p.pendingAttrs = nil

		case OpEndTag:
			id, err := p.r.readUint16()
			if err != nil {
				return err
			}
			name, ok := p.dict[id]
			if !ok {
				return aup3err.Malformedf("EndTag references undefined dictionary id %d", id)
			}
			if err := p.flushPending(); err != nil {
				return err
			}
			if p.openDepth == 0 {
				return aup3err.Malformedf("EndTag %q with no matching open tag", name)
			}
			if err := p.sink.HandleTagEnd(name); err != nil {
				return err
			}
			p.openDepth--

		case OpString:
			name, err := p.readAttrName()
			if err != nil {
				return err
			}
			s, err := p.r.readValueString(true)
			if err != nil {
				return err
			}
			p.pendingAttrs = append(p.pendingAttrs, Attribute{Name: name, Value: attrval.Str_(s)})

		case OpInt, OpLong:
			name, err := p.readAttrName()
			if err != nil {
				return err
			}
			v, err := p.r.readInt32()
			if err != nil {
				return err
			}
			p.pendingAttrs = append(p.pendingAttrs, Attribute{Name: name, Value: attrval.I32_(v)})

		case OpBool:
			name, err := p.readAttrName()
			if err != nil {
				return err
			}
			v, err := p.r.readUint8()
			if err != nil {
				return err
			}
			p.pendingAttrs = append(p.pendingAttrs, Attribute{Name: name, Value: attrval.Bool_(v != 0)})

		case OpLongLong:
			name, err := p.readAttrName()
			if err != nil {
				return err
			}
			v, err := p.r.readInt64()
			if err != nil {
				return err
			}
			p.pendingAttrs = append(p.pendingAttrs, Attribute{Name: name, Value: attrval.I64_(v)})

		case OpSizeT:
			name, err := p.readAttrName()
			if err != nil {
				return err
			}
			v, err := p.r.readUint32()
			if err != nil {
				return err
			}
			p.pendingAttrs = append(p.pendingAttrs, Attribute{Name: name, Value: attrval.SizeT_(v)})

		case OpFloat:
			name, err := p.readAttrName()
			if err != nil {
				return err
			}
			v, err := p.r.readFloat32()
			if err != nil {
				return err
			}
			if _, err := p.r.readInt32(); err != nil { // digits field, discarded
				return err
			}
			p.pendingAttrs = append(p.pendingAttrs, Attribute{Name: name, Value: attrval.F32_(v)})

		case OpDouble:
			name, err := p.readAttrName()
			if err != nil {
				return err
			}
			v, err := p.r.readFloat64()
			if err != nil {
				return err
			}
			if _, err := p.r.readInt32(); err != nil { // digits field, discarded
				return err
			}
			p.pendingAttrs = append(p.pendingAttrs, Attribute{Name: name, Value: attrval.F64_(v)})

		case OpData:
			s, err := p.r.readValueString(true)
			if err != nil {
				return err
			}
			if err := p.flushPending(); err != nil {
				return err
			}
			if err := p.sink.HandleCharData(s); err != nil {
				return err
			}

		case OpRaw:
			if err := p.r.skipValueString(true); err != nil {
				return err
			}

		case OpPush, OpPop:
			// reserved, carry no payload; never emitted by this codec's
			// writer but harmless to pass through if seen.

		default:
			return aup3err.Malformedf("unknown opcode %d", op)
		}
	}
	return nil
}

func (p *parser) readAttrName() (string, error) {
	id, err := p.r.readUint16()
	if err != nil {
		return "", err
	}
	name, ok := p.dict[id]
	if !ok {
		return "", aup3err.Malformedf("attribute references undefined dictionary id %d", id)
	}
	return name, nil
}

func (p *parser) flushPending() error {
	if p.pendingTag == nil {
		return nil
	}
	name := *p.pendingTag
	attrs := p.pendingAttrs
	p.pendingTag = nil
	p.pendingAttrs = nil
	if err := p.sink.HandleTagStart(name, attrs); err != nil {
		return err
	}
	p.openDepth++
	return nil
}
