// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bxml

import (
	"testing"

	"github.com/aup3tools/aup3-recover/internal/attrval"
	"github.com/aup3tools/aup3-recover/internal/chunkbuf"
)

// recordingSink captures the events Parse delivers, for assertions
// against expected call sequences.
type recordingSink struct {
	starts [][2]any // [name, attrs]
	ends   []string
	data   []string
}

func (s *recordingSink) HandleTagStart(name string, attrs []Attribute) error {
	s.starts = append(s.starts, [2]any{name, attrs})
	return nil
}
func (s *recordingSink) HandleTagEnd(name string) error {
	s.ends = append(s.ends, name)
	return nil
}
func (s *recordingSink) HandleCharData(data string) error {
	s.data = append(s.data, data)
	return nil
}

func buildDoc(t *testing.T, names []string, write func(doc *chunkbuf.Buffer)) *chunkbuf.Buffer {
	t.Helper()
	dict := &chunkbuf.Buffer{}
	dict.AppendByte(byte(OpCharSize))
	dict.AppendByte(1)
	for i, n := range names {
		dict.AppendByte(byte(OpName))
		dict.AppendUint16(uint16(i))
		dict.AppendUint16(uint16(len(n)))
		dict.Append([]byte(n))
	}
	doc := &chunkbuf.Buffer{}
	write(doc)

	merged := &chunkbuf.Buffer{}
	merged.Append(dict.Linearize())
	merged.Append(doc.Linearize())
	return merged
}

func TestParseSingleLeaf(t *testing.T) {
	doc := buildDoc(t, []string{"project"}, func(b *chunkbuf.Buffer) {
		b.AppendByte(byte(OpStartTag))
		b.AppendUint16(0)
		b.AppendByte(byte(OpEndTag))
		b.AppendUint16(0)
	})

	sink := &recordingSink{}
	if err := Parse(sink, doc); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sink.starts) != 1 || sink.starts[0][0] != "project" {
		t.Fatalf("starts = %v", sink.starts)
	}
	if len(sink.ends) != 1 || sink.ends[0] != "project" {
		t.Fatalf("ends = %v", sink.ends)
	}

	xr := NewXMLRenderer()
	if err := Parse(xr, doc); err != nil {
		t.Fatalf("Parse for render: %v", err)
	}
	if got, want := xr.String(), "<project />\n"; got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}

func TestParseAttributesAndNesting(t *testing.T) {
	names := []string{"track", "name", "clip", "gain"}
	doc := buildDoc(t, names, func(b *chunkbuf.Buffer) {
		b.AppendByte(byte(OpStartTag))
		b.AppendUint16(0) // track
		b.AppendByte(byte(OpString))
		b.AppendUint16(1) // name
		b.AppendUint32(4)
		b.Append([]byte("Kick"))
		b.AppendByte(byte(OpStartTag))
		b.AppendUint16(2) // clip
		b.AppendByte(byte(OpFloat))
		b.AppendUint16(3) // gain
		b.AppendFloat32(0.5)
		b.AppendInt32(7)
		b.AppendByte(byte(OpEndTag))
		b.AppendUint16(2)
		b.AppendByte(byte(OpEndTag))
		b.AppendUint16(0)
	})

	sink := &recordingSink{}
	if err := Parse(sink, doc); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sink.starts) != 2 {
		t.Fatalf("expected 2 starts, got %d", len(sink.starts))
	}
	trackAttrs := sink.starts[0][1].([]Attribute)
	if len(trackAttrs) != 1 || trackAttrs[0].Name != "name" || trackAttrs[0].Value.AsString() != "Kick" {
		t.Errorf("track attrs = %+v", trackAttrs)
	}
	clipAttrs := sink.starts[1][1].([]Attribute)
	if len(clipAttrs) != 1 || clipAttrs[0].Name != "gain" || clipAttrs[0].Value.Kind != attrval.F32 {
		t.Errorf("clip attrs = %+v", clipAttrs)
	}
	if sink.ends[0] != "clip" || sink.ends[1] != "track" {
		t.Errorf("ends = %v", sink.ends)
	}
}

func TestParseCharDataForwardsEveryRecord(t *testing.T) {
	doc := buildDoc(t, []string{"tag"}, func(b *chunkbuf.Buffer) {
		b.AppendByte(byte(OpStartTag))
		b.AppendUint16(0)
		b.AppendByte(byte(OpData))
		b.AppendUint32(5)
		b.Append([]byte("first"))
		b.AppendByte(byte(OpData))
		b.AppendUint32(6)
		b.Append([]byte("second"))
		b.AppendByte(byte(OpEndTag))
		b.AppendUint16(0)
	})

	sink := &recordingSink{}
	if err := Parse(sink, doc); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sink.data) != 2 || sink.data[0] != "first" || sink.data[1] != "second" {
		t.Fatalf("data = %v", sink.data)
	}
}

func TestParseRawSkipped(t *testing.T) {
	doc := buildDoc(t, []string{"tag"}, func(b *chunkbuf.Buffer) {
		b.AppendByte(byte(OpStartTag))
		b.AppendUint16(0)
		b.AppendByte(byte(OpRaw))
		b.AppendUint32(3)
		b.Append([]byte("xyz"))
		b.AppendByte(byte(OpEndTag))
		b.AppendUint16(0)
	})

	sink := &recordingSink{}
	if err := Parse(sink, doc); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sink.data) != 0 {
		t.Errorf("expected Raw to be skipped, got data %v", sink.data)
	}
}

func TestParseUnclosedTagIsMalformed(t *testing.T) {
	doc := buildDoc(t, []string{"tag"}, func(b *chunkbuf.Buffer) {
		b.AppendByte(byte(OpStartTag))
		b.AppendUint16(0)
	})
	if err := Parse(&recordingSink{}, doc); err == nil {
		t.Fatal("expected error for unclosed tag")
	}
}

func TestParseUnknownOpcodeIsMalformed(t *testing.T) {
	doc := buildDoc(t, nil, func(b *chunkbuf.Buffer) {
		b.AppendByte(200)
	})
	if err := Parse(&recordingSink{}, doc); err == nil {
		t.Fatal("expected error for unknown opcode")
	}
}

// fixedTreeNode is a minimal TreeNode for exercising Serialize and
// RenderTree without depending on internal/project.
type fixedTreeNode struct {
	tag      string
	attrs    []Attribute
	data     string
	children []TreeNode
}

func (n *fixedTreeNode) TagName() string        { return n.tag }
func (n *fixedTreeNode) Attributes() []Attribute { return n.attrs }
func (n *fixedTreeNode) Data() string           { return n.data }
func (n *fixedTreeNode) Children() []TreeNode   { return n.children }

func TestSerializeRoundTrip(t *testing.T) {
	names := []string{"project", "track", "name"}
	root := &fixedTreeNode{
		tag: "project",
		children: []TreeNode{
			&fixedTreeNode{
				tag:   "track",
				attrs: []Attribute{{Name: "name", Value: attrval.Str_("Kick")}},
			},
		},
	}

	dictBuf, docBuf, err := Serialize(names, root)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	merged := &chunkbuf.Buffer{}
	merged.Append(dictBuf.Linearize())
	merged.Append(docBuf.Linearize())

	sink := &recordingSink{}
	if err := Parse(sink, merged); err != nil {
		t.Fatalf("Parse round-trip: %v", err)
	}
	if len(sink.starts) != 2 || sink.starts[0][0] != "project" || sink.starts[1][0] != "track" {
		t.Fatalf("round-tripped starts = %v", sink.starts)
	}
}

func TestSerializeUnknownName(t *testing.T) {
	root := &fixedTreeNode{tag: "mystery"}
	if _, _, err := Serialize([]string{"project"}, root); err == nil {
		t.Fatal("expected UnknownName error")
	}
}

func TestRenderTreeEscaping(t *testing.T) {
	root := &fixedTreeNode{
		tag:  "note",
		data: `a & b < c "quoted"`,
	}
	got := RenderTree(root)
	want := "<note>a &amp; b &lt; c &quot;quoted&quot;</note>\n"
	if got != want {
		t.Errorf("RenderTree = %q, want %q", got, want)
	}
}
