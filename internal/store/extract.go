// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aup3tools/aup3-recover/internal/aup3err"
	"github.com/aup3tools/aup3-recover/internal/sampleformat"
	"github.com/aup3tools/aup3-recover/internal/wavfile"
)

// entriesPerDirectory is how many block files accumulate in one
// innermost sharded directory before ExtractSampleBlocks rolls to the
// next one, matching the original recovery tool's sharding.
const entriesPerDirectory = 32

// ExtractSampleBlocks writes every sampleblocks row as its own mono
// WAV file under dataPath/sampleblocks, sharded into <outer>/<inner>
// directories of entriesPerDirectory files each so no single
// directory holds an unwieldy number of entries.
func (db *DB) ExtractSampleBlocks(format sampleformat.Format, sampleRate uint32) error {
	root := filepath.Join(db.dataPath, "sampleblocks")

	count := 0
	err := db.AllSampleBlocks(func(blockID int64, samples []byte) error {
		outer := count / (entriesPerDirectory * entriesPerDirectory)
		inner := (count / entriesPerDirectory) % entriesPerDirectory
		count++

		dir := filepath.Join(root, fmt.Sprintf("%03d", outer), fmt.Sprintf("%02d", inner))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &aup3err.IOError{Op: "create " + dir, Err: err}
		}

		asm := wavfile.New(format, sampleRate, 1)
		asm.WriteBlock(samples, 0)
		path := filepath.Join(dir, fmt.Sprintf("%d.wav", blockID))
		return asm.WriteFile(path)
	})
	return err
}

// ExtractTrack assembles every sampleblocks row, in storage order,
// into one track-level WAV file: "mono.wav" when asStereo is false,
// "stereo.wav" otherwise. For stereo output, even block ids are
// routed to the right channel and odd block ids to the left, matching
// how the format alternates channel blocks.
func (db *DB) ExtractTrack(format sampleformat.Format, sampleRate uint32, asStereo bool) error {
	if err := os.MkdirAll(db.dataPath, 0o755); err != nil {
		return &aup3err.IOError{Op: "create " + db.dataPath, Err: err}
	}

	numChannels := 1
	name := "mono.wav"
	if asStereo {
		numChannels = 2
		name = "stereo.wav"
	}

	asm := wavfile.New(format, sampleRate, numChannels)
	err := db.AllSampleBlocks(func(blockID int64, samples []byte) error {
		channel := 0
		if asStereo && blockID%2 == 0 {
			channel = 1
		}
		asm.WriteBlock(samples, channel)
		return nil
	})
	if err != nil {
		return err
	}

	return asm.WriteFile(filepath.Join(db.dataPath, name))
}
