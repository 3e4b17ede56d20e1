// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package project

import "github.com/aup3tools/aup3-recover/internal/bxml"

// EventSink implements bxml.Sink, building the project tree and the
// domain object collections in a single pass. It keeps two parallel
// stacks — tree nodes and domain objects — so that a child element's
// parent is unambiguous at the moment it is created; see spec 4.3.
type EventSink struct {
	Pool *StringPool

	Root  *Node
	nodes []*Node
	stack []any // *WaveTrack | *Clip | *Sequence | *WaveBlock | nil

	Tracks    []*WaveTrack
	Clips     []*Clip
	Sequences []*Sequence
	Blocks    []*WaveBlock
}

// NewEventSink returns a sink ready to receive events from bxml.Parse.
func NewEventSink() *EventSink {
	return &EventSink{Pool: NewStringPool()}
}

func (s *EventSink) HandleTagStart(name string, attrs []bxml.Attribute) error {
	tag := s.Pool.Intern(name)

	node := &Node{Tag: tag}
	if len(s.nodes) == 0 {
		s.Root = node
	} else {
		parent := s.nodes[len(s.nodes)-1]
		node.Parent = parent
		node.ParentIndex = len(parent.Children)
		parent.Children = append(parent.Children, node)
	}
	s.nodes = append(s.nodes, node)

	for _, a := range attrs {
		internedName := s.Pool.Intern(a.Name)
		value := a.Value
		node.Attrs = append(node.Attrs, bxml.Attribute{Name: internedName, Value: value})
	}

	switch tag {
	case "wavetrack":
		wt := &WaveTrack{Node: node, Index: len(s.Tracks)}
		for _, a := range attrs {
			switch a.Name {
			case "channel":
				wt.Channel = a.Value.AsInt()
			case "linked":
				wt.Linked = a.Value.AsBool()
			case "name":
				wt.Name = s.Pool.InternValue(a.Value.AsString())
			case "sampleformat":
				wt.SampleFormat = a.Value.AsInt()
			case "rate":
				wt.SampleRate = a.Value.AsInt()
			}
		}
		s.Tracks = append(s.Tracks, wt)
		s.stack = append(s.stack, wt)

	case "waveclip":
		parent, _ := s.top().(*WaveTrack)
		clip := &Clip{Node: node, Parent: parent}
		if parent != nil {
			clip.ParentIndex = len(parent.Clips)
		}
		for _, a := range attrs {
			switch a.Name {
			case "offset":
				clip.Offset = a.Value.AsFloat64()
			case "trimLeft":
				clip.TrimLeft = a.Value.AsFloat64()
			case "trimRight":
				clip.TrimRight = a.Value.AsFloat64()
			case "name":
				clip.Name = s.Pool.InternValue(a.Value.AsString())
			}
		}
		if parent != nil {
			parent.Clips = append(parent.Clips, clip)
		}
		s.Clips = append(s.Clips, clip)
		s.stack = append(s.stack, clip)

	case "sequence":
		parent, _ := s.top().(*Clip)
		seq := &Sequence{Node: node, Parent: parent}
		if parent != nil {
			seq.ParentIndex = len(parent.Sequences)
		}
		for _, a := range attrs {
			switch a.Name {
			case "maxsamples":
				seq.MaxSamples = a.Value.AsInt64()
			case "numsamples":
				seq.NumSamples = a.Value.AsInt64()
			case "sampleformat":
				seq.Format = a.Value.AsInt()
			}
		}
		if parent != nil {
			parent.Sequences = append(parent.Sequences, seq)
		}
		s.Sequences = append(s.Sequences, seq)
		s.stack = append(s.stack, seq)

	case "waveblock":
		parent, _ := s.top().(*Sequence)
		block := &WaveBlock{Node: node, Parent: parent}
		if parent != nil {
			block.ParentIndex = len(parent.Blocks)
		}
		for _, a := range attrs {
			switch a.Name {
			case "start":
				block.Start = a.Value.AsInt64()
			case "blockid":
				block.BlockID = a.Value.AsInt64()
			}
		}
		if parent != nil {
			parent.Blocks = append(parent.Blocks, block)
		}
		s.Blocks = append(s.Blocks, block)
		s.stack = append(s.stack, block)

	default:
		s.stack = append(s.stack, nil)
	}

	return nil
}

func (s *EventSink) HandleTagEnd(name string) error {
	s.nodes = s.nodes[:len(s.nodes)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return nil
}

func (s *EventSink) HandleCharData(data string) error {
	s.nodes[len(s.nodes)-1].CharData = data
	return nil
}

func (s *EventSink) top() any {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}
