// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"github.com/aup3tools/aup3-recover/internal/attrval"
	"github.com/aup3tools/aup3-recover/internal/bxml"
)

// WaveTrack is one track of the project: a channel role, a sample
// format and rate, and its clips in document order.
type WaveTrack struct {
	Node *Node

	Index        int
	Name         string
	Channel      int
	Linked       bool
	SampleFormat int
	SampleRate   int

	Clips []*Clip
}

// Clip is a windowed view into one or more sequences: a fractional
// start offset plus left/right trims, both in seconds.
type Clip struct {
	Node   *Node
	Parent *WaveTrack

	ParentIndex int
	Name        string
	Offset      float64
	TrimLeft    float64
	TrimRight   float64

	Sequences []*Sequence
}

// Sequence is a linear run of sample blocks sharing one sample format.
type Sequence struct {
	Node   *Node
	Parent *Clip

	ParentIndex int
	MaxSamples  int64
	NumSamples  int64
	Format      int

	Blocks []*WaveBlock
}

// WaveBlock references one row of the sampleblocks table, or — when
// BlockID is negative — represents silence of length -BlockID.
type WaveBlock struct {
	Node   *Node
	Parent *Sequence

	ParentIndex int
	Start       int64
	BlockID     int64
}

// IsSilence reports whether this block is silent rather than backed
// by a sampleblocks row.
func (b *WaveBlock) IsSilence() bool { return b.BlockID < 0 }

// Length returns the block's sample count, derived from the start of
// the next sibling block (or the sequence's total sample count for
// the last block in a sequence).
func (b *WaveBlock) Length() int64 {
	siblings := b.Parent.Blocks
	next := b.ParentIndex + 1
	if next < len(siblings) {
		return siblings[next].Start - b.Start
	}
	return b.Parent.NumSamples - b.Start
}

// ConvertToSilence replaces this block's id with the negative of its
// length and marks the underlying node as a fixed-up block, so the
// change survives serialization.
func (b *WaveBlock) ConvertToSilence() {
	b.BlockID = -b.Length()
	b.Node.SetAttribute("blockid", bxml.Attribute{Name: "blockid", Value: attrval.I64_(b.BlockID)})
	b.Node.SetAttribute("badblock", bxml.Attribute{Name: "badblock", Value: attrval.Bool_(true)})
}
