// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/aup3tools/aup3-recover/internal/attrval"
	"github.com/aup3tools/aup3-recover/internal/bxml"
	"github.com/aup3tools/aup3-recover/internal/chunkbuf"
)

// testNames is the dictionary; nameID maps a name to its index here.
var testNames = []string{"project", "wavetrack", "name", "channel", "linked", "sampleformat", "rate", "waveclip", "offset", "trimLeft", "trimRight", "sequence", "maxsamples", "numsamples", "waveblock", "start", "blockid"}

func nameID(t *testing.T, name string) uint16 {
	t.Helper()
	for i, n := range testNames {
		if n == name {
			return uint16(i)
		}
	}
	t.Fatalf("unknown test name %q", name)
	return 0
}

func buildSampleDoc(t *testing.T) *chunkbuf.Buffer {
	t.Helper()

	dict := &chunkbuf.Buffer{}
	dict.AppendByte(byte(bxml.OpCharSize))
	dict.AppendByte(1)
	for i, n := range testNames {
		dict.AppendByte(byte(bxml.OpName))
		dict.AppendUint16(uint16(i))
		dict.AppendUint16(uint16(len(n)))
		dict.Append([]byte(n))
	}

	doc := &chunkbuf.Buffer{}
	start := func(name string) {
		doc.AppendByte(byte(bxml.OpStartTag))
		doc.AppendUint16(nameID(t, name))
	}
	end := func(name string) {
		doc.AppendByte(byte(bxml.OpEndTag))
		doc.AppendUint16(nameID(t, name))
	}
	strAttr := func(name, value string) {
		doc.AppendByte(byte(bxml.OpString))
		doc.AppendUint16(nameID(t, name))
		doc.AppendUint32(uint32(len(value)))
		doc.Append([]byte(value))
	}
	intAttr := func(name string, v int32) {
		doc.AppendByte(byte(bxml.OpInt))
		doc.AppendUint16(nameID(t, name))
		doc.AppendInt32(v)
	}
	longlongAttr := func(name string, v int64) {
		doc.AppendByte(byte(bxml.OpLongLong))
		doc.AppendUint16(nameID(t, name))
		doc.AppendInt64(v)
	}

	start("project")
	start("wavetrack")
	strAttr("name", "Kick")
	intAttr("channel", 0)
	intAttr("sampleformat", 4)
	intAttr("rate", 44100)
	start("waveclip")
	strAttr("name", "clip1")
	start("sequence")
	longlongAttr("numsamples", 1000)
	intAttr("sampleformat", 4)
	start("waveblock")
	longlongAttr("start", 0)
	longlongAttr("blockid", 7)
	end("waveblock")
	start("waveblock")
	longlongAttr("start", 500)
	longlongAttr("blockid", -500)
	end("waveblock")
	end("sequence")
	end("waveclip")
	end("wavetrack")
	end("project")

	merged := &chunkbuf.Buffer{}
	merged.Append(dict.Linearize())
	merged.Append(doc.Linearize())
	return merged
}

func buildModel(t *testing.T) *ProjectModel {
	t.Helper()
	doc := buildSampleDoc(t)
	sink := NewEventSink()
	if err := bxml.Parse(sink, doc); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return NewProjectModel(sink)
}

func TestEventSinkBuildsDomainObjects(t *testing.T) {
	pm := buildModel(t)

	if len(pm.Tracks) != 1 || pm.Tracks[0].Name != "Kick" || pm.Tracks[0].SampleRate != 44100 {
		t.Fatalf("tracks = %+v", pm.Tracks)
	}
	if len(pm.Clips) != 1 || pm.Clips[0].Name != "clip1" {
		t.Fatalf("clips = %+v", pm.Clips)
	}
	if len(pm.Sequences) != 1 || pm.Sequences[0].NumSamples != 1000 {
		t.Fatalf("sequences = %+v", pm.Sequences)
	}
	if len(pm.Blocks) != 2 {
		t.Fatalf("blocks = %+v", pm.Blocks)
	}
	if pm.Blocks[0].Length() != 500 || pm.Blocks[1].Length() != 500 {
		t.Fatalf("lengths = %d, %d", pm.Blocks[0].Length(), pm.Blocks[1].Length())
	}
	if !pm.Blocks[1].IsSilence() {
		t.Error("expected second block to be silent")
	}
}

func TestNodeTreeMatchesDomainNesting(t *testing.T) {
	pm := buildModel(t)
	if pm.Root.Tag != "project" {
		t.Fatalf("root tag = %q", pm.Root.Tag)
	}
	if len(pm.Root.Children) != 1 || pm.Root.Children[0].Tag != "wavetrack" {
		t.Fatalf("root children = %+v", pm.Root.Children)
	}
}

// fakeStore is a minimal BlockStore for exercising ProjectModel ops.
type fakeStore struct {
	rows map[int64]struct {
		format  int
		samples []byte
	}
}

func (s *fakeStore) BlockRow(id int64) (int, []byte, bool, error) {
	r, ok := s.rows[id]
	if !ok {
		return 0, nil, false, nil
	}
	return r.format, r.samples, true, nil
}

func (s *fakeStore) AllBlockIDs() ([]int64, error) {
	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeStore) DeleteBlocks(ids []int64) error {
	for _, id := range ids {
		delete(s.rows, id)
	}
	return nil
}

func (s *fakeStore) Vacuum() error { return nil }

func TestValidateBlocksReportsMissing(t *testing.T) {
	pm := buildModel(t)
	store := &fakeStore{rows: map[int64]struct {
		format  int
		samples []byte
	}{}}

	missing, err := pm.ValidateBlocks(store, nil)
	if err != nil {
		t.Fatalf("ValidateBlocks: %v", err)
	}
	if len(missing) != 1 || missing[0] != 7 {
		t.Fatalf("missing = %v, want [7]", missing)
	}
}

func TestFixupMissingBlocksConvertsToSilence(t *testing.T) {
	pm := buildModel(t)
	store := &fakeStore{rows: map[int64]struct {
		format  int
		samples []byte
	}{}}

	missing, err := pm.FixupMissingBlocks(store, nil)
	if err != nil {
		t.Fatalf("FixupMissingBlocks: %v", err)
	}
	if len(missing) != 1 {
		t.Fatalf("missing = %v", missing)
	}
	if !pm.Blocks[0].IsSilence() {
		t.Error("expected block 0 to become silent")
	}
	if !pm.Pool.Has("badblock") {
		t.Error("expected badblock interned into pool")
	}
	badblock, ok := pm.Blocks[0].Node.Attribute("badblock")
	if !ok || !badblock.Value.AsBool() {
		t.Errorf("badblock attribute = %+v, ok=%v", badblock, ok)
	}
}

func TestRemoveUnusedBlocks(t *testing.T) {
	pm := buildModel(t)
	store := &fakeStore{rows: map[int64]struct {
		format  int
		samples []byte
	}{
		7:  {format: 4, samples: make([]byte, 2000*4)},
		99: {format: 4, samples: make([]byte, 10)},
	}}

	removed, err := pm.RemoveUnusedBlocks(store)
	if err != nil {
		t.Fatalf("RemoveUnusedBlocks: %v", err)
	}
	if len(removed) != 1 || removed[0] != 99 {
		t.Fatalf("removed = %v, want [99]", removed)
	}
	if _, ok := store.rows[7]; !ok {
		t.Error("expected referenced block 7 to survive")
	}
}

func TestExtractClipsWritesSilenceAndSamples(t *testing.T) {
	pm := buildModel(t)
	samples := make([]byte, 500*4) // block 7 covers samples [0,500)
	for i := range samples {
		samples[i] = byte(i)
	}
	store := &fakeStore{rows: map[int64]struct {
		format  int
		samples []byte
	}{
		7: {format: 4, samples: samples},
	}}

	dir := t.TempDir()
	if err := pm.ExtractClips(store, dir); err != nil {
		t.Fatalf("ExtractClips: %v", err)
	}
}

func TestComputeStatistics(t *testing.T) {
	pm := buildModel(t)
	stats := pm.ComputeStatistics()
	if len(stats.Clips) != 1 {
		t.Fatalf("clips = %+v", stats.Clips)
	}
	if stats.Clips[0].NumSamples != 1000 {
		t.Errorf("NumSamples = %d, want 1000", stats.Clips[0].NumSamples)
	}
	if len(stats.BlockUsage) != 2 {
		t.Fatalf("block usage = %+v", stats.BlockUsage)
	}
}

func TestSetAttributeUpsert(t *testing.T) {
	n := &Node{}
	n.SetAttribute("x", bxml.Attribute{Name: "x", Value: attrval.I32_(1)})
	n.SetAttribute("x", bxml.Attribute{Name: "x", Value: attrval.I32_(2)})
	if len(n.Attrs) != 1 {
		t.Fatalf("expected 1 attribute after upsert, got %d", len(n.Attrs))
	}
	v, _ := n.Attribute("x")
	if v.Value.AsInt() != 2 {
		t.Errorf("value = %d, want 2", v.Value.AsInt())
	}
}

func TestValidateBlocksLogsFormatMismatch(t *testing.T) {
	pm := buildModel(t)
	store := &fakeStore{rows: map[int64]struct {
		format  int
		samples []byte
	}{
		7: {format: 2, samples: make([]byte, 4)}, // sequence expects format 4
	}}

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	missing, err := pm.ValidateBlocks(store, log)
	if err != nil {
		t.Fatalf("ValidateBlocks: %v", err)
	}
	if len(missing) != 1 || missing[0] != 7 {
		t.Fatalf("missing = %v, want [7]", missing)
	}
	if !strings.Contains(buf.String(), "format") {
		t.Errorf("expected a format mismatch log line, got %q", buf.String())
	}
}
