// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package project

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/aup3tools/aup3-recover/internal/aup3err"
	"github.com/aup3tools/aup3-recover/internal/bxml"
	"github.com/aup3tools/aup3-recover/internal/sampleformat"
	"github.com/aup3tools/aup3-recover/internal/wavfile"
)

// BlockStore is the store-side dependency ProjectModel's operations
// need: enough to check a block's existence and format, read its
// samples, and prune rows no longer referenced by the tree.
type BlockStore interface {
	BlockRow(blockID int64) (format int, samples []byte, found bool, err error)
	AllBlockIDs() ([]int64, error)
	DeleteBlocks(ids []int64) error
	Vacuum() error
}

// ProjectModel is the domain overlay above a parsed tree: the flat
// collections of tracks, clips, sequences, and blocks an EventSink
// produced, plus the operations that validate and mutate them.
type ProjectModel struct {
	Pool *StringPool
	Root *Node

	Tracks    []*WaveTrack
	Clips     []*Clip
	Sequences []*Sequence
	Blocks    []*WaveBlock
}

// NewProjectModel adopts the tree and domain collections an EventSink
// built during parsing.
func NewProjectModel(sink *EventSink) *ProjectModel {
	return &ProjectModel{
		Pool:      sink.Pool,
		Root:      sink.Root,
		Tracks:    sink.Tracks,
		Clips:     sink.Clips,
		Sequences: sink.Sequences,
		Blocks:    sink.Blocks,
	}
}

// Serialize re-emits the tree as a fresh dict/doc blob pair, ready to
// be written back to the project or autosave table. Callers do this
// once, after any mutation that touched the tree (fixup) — pruning
// sampleblocks rows never changes the tree itself and needs no save.
func (pm *ProjectModel) Serialize() (dict, doc []byte, err error) {
	dictBuf, docBuf, err := bxml.Serialize(pm.Pool.Names(), treeView{pm.Root})
	if err != nil {
		return nil, nil, err
	}
	return dictBuf.Linearize(), docBuf.Linearize(), nil
}

// ValidateBlocks returns the ids of every non-silent block that is
// either absent from store or present with a sample format
// disagreeing with its owning sequence's format. Format disagreements
// are logged as they're found; a nil log discards them.
func (pm *ProjectModel) ValidateBlocks(store BlockStore, log *slog.Logger) ([]int64, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	seen := make(map[int64]bool)
	var missing []int64

	for _, b := range pm.Blocks {
		if b.IsSilence() || seen[b.BlockID] {
			continue
		}

		format, _, found, err := store.BlockRow(b.BlockID)
		if err != nil {
			return nil, err
		}

		bad := !found
		if found && b.Parent != nil && format != b.Parent.Format {
			bad = true
			mismatch := &aup3err.FormatMismatch{BlockID: b.BlockID, SequenceFormat: b.Parent.Format, BlockFormat: format}
			log.Warn(mismatch.Error(), "block_id", b.BlockID)
		}
		if bad {
			seen[b.BlockID] = true
			missing = append(missing, b.BlockID)
		}
	}

	return missing, nil
}

// FixupMissingBlocks runs ValidateBlocks and converts every block
// whose id came back missing into silence. If any fixup occurred, it
// interns "badblock" into the reusable pool so the tree's new
// attribute can round-trip through Serialize. The caller is
// responsible for reserializing and writing the tree back.
func (pm *ProjectModel) FixupMissingBlocks(store BlockStore, log *slog.Logger) ([]int64, error) {
	missing, err := pm.ValidateBlocks(store, log)
	if err != nil {
		return nil, err
	}

	if len(missing) == 0 {
		return missing, nil
	}

	missingSet := make(map[int64]bool, len(missing))
	for _, id := range missing {
		missingSet[id] = true
	}

	for _, b := range pm.Blocks {
		if !b.IsSilence() && missingSet[b.BlockID] {
			b.ConvertToSilence()
		}
	}
	pm.Pool.Intern("badblock")

	return missing, nil
}

// RemoveUnusedBlocks deletes every sampleblocks row not referenced by
// any non-silent block in the tree, then vacuums the store. It
// returns the ids removed.
func (pm *ProjectModel) RemoveUnusedBlocks(store BlockStore) ([]int64, error) {
	available, err := store.AllBlockIDs()
	if err != nil {
		return nil, err
	}

	referenced := make(map[int64]bool)
	for _, b := range pm.Blocks {
		if !b.IsSilence() {
			referenced[b.BlockID] = true
		}
	}

	var orphaned []int64
	for _, id := range available {
		if !referenced[id] {
			orphaned = append(orphaned, id)
		}
	}

	if len(orphaned) > 0 {
		if err := store.DeleteBlocks(orphaned); err != nil {
			return nil, err
		}
	}
	if err := store.Vacuum(); err != nil {
		return nil, err
	}

	return orphaned, nil
}

// ExtractClips writes one mono WAV per clip into outDir, per spec
// 4.4: each block's window is clamped to the clip's trimmed window,
// silent blocks contribute zero-valued samples, and out-of-window blocks are
// skipped entirely.
func (pm *ProjectModel) ExtractClips(store BlockStore, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return &aup3err.IOError{Op: "create " + outDir, Err: err}
	}

	for _, clip := range pm.Clips {
		track := clip.Parent
		format := sampleformat.Format(track.SampleFormat)
		bps := int64(sampleformat.BytesPerSample(format))

		asm := wavfile.New(format, uint32(track.SampleRate), 1)

		firstSample := int64(math.Round(clip.TrimLeft * float64(track.SampleRate)))

		for _, seq := range clip.Sequences {
			lastSample := seq.NumSamples - int64(math.Round(clip.TrimRight*float64(track.SampleRate)))

			for _, block := range seq.Blocks {
				blockStart := block.Start
				blockEnd := blockStart + block.Length()

				if blockEnd <= firstSample || blockStart >= lastSample {
					continue
				}

				clampedStart := max(blockStart, firstSample)
				clampedEnd := min(blockEnd, lastSample)
				effectiveLen := clampedEnd - clampedStart
				if effectiveLen <= 0 {
					continue
				}

				if block.IsSilence() {
					asm.WriteBlock(make([]byte, effectiveLen*bps), 0)
					continue
				}

				_, samples, found, err := store.BlockRow(block.BlockID)
				if err != nil {
					return err
				}
				if !found {
					return &aup3err.MissingBlock{BlockID: block.BlockID}
				}

				inOffset := (clampedStart - blockStart) * bps
				want := effectiveLen * bps
				if int64(len(samples)) < inOffset+want {
					return &aup3err.TruncatedBlock{BlockID: block.BlockID, Want: int(want), Have: len(samples)}
				}
				asm.WriteBlock(samples[inOffset:inOffset+want], 0)
			}
		}

		name := fmt.Sprintf("%d_%s_%d_%s.wav", track.Index, track.Name, clip.ParentIndex, clip.Name)
		if err := asm.WriteFile(filepath.Join(outDir, name)); err != nil {
			return err
		}
	}

	return nil
}

// ClipStatistics reports one clip's timing summary.
type ClipStatistics struct {
	TrackIndex     int
	TrackName      string
	ClipIndex      int
	ClipName       string
	NumSamples     int64
	TotalSeconds   float64
	TrimmedSeconds float64
}

// BlockUsage tallies how many times a block id is referenced, and how
// many of those references fall within their clip's audible window.
type BlockUsage struct {
	TotalUses   int
	AudibleUses int
}

// Statistics is the aggregate report ComputeStatistics computes.
type Statistics struct {
	Clips      []ClipStatistics
	BlockUsage map[int64]BlockUsage
}

// ComputeStatistics walks every track's clips, tallying per-clip
// timing and per-block usage.
func (pm *ProjectModel) ComputeStatistics() Statistics {
	usage := make(map[int64]BlockUsage)
	var clips []ClipStatistics

	for _, track := range pm.Tracks {
		for _, clip := range track.Clips {
			firstSample := int64(clip.TrimLeft * float64(track.SampleRate))
			lastSampleOffset := int64(clip.TrimRight * float64(track.SampleRate))

			var numSamples int64
			for _, seq := range clip.Sequences {
				numSamples += seq.NumSamples
				lastSample := seq.NumSamples - lastSampleOffset

				for _, block := range seq.Blocks {
					u := usage[block.BlockID]
					u.TotalUses++
					if block.Start+block.Length() >= firstSample && block.Start < lastSample {
						u.AudibleUses++
					}
					usage[block.BlockID] = u
				}
			}

			totalTime := float64(numSamples) / float64(track.SampleRate)
			trimmedTime := totalTime - clip.TrimLeft - clip.TrimRight

			clips = append(clips, ClipStatistics{
				TrackIndex:     track.Index,
				TrackName:      track.Name,
				ClipIndex:      clip.ParentIndex,
				ClipName:       clip.Name,
				NumSamples:     numSamples,
				TotalSeconds:   totalTime,
				TrimmedSeconds: trimmedTime,
			})
		}
	}

	return Statistics{Clips: clips, BlockUsage: usage}
}

// Print renders the statistics in the tool's plain-text report form.
func (s Statistics) Print(w io.Writer) {
	for _, c := range s.Clips {
		fmt.Fprintf(w, "Track %d (%s), clip %d '%s'\n", c.TrackIndex, c.TrackName, c.ClipIndex, c.ClipName)
		fmt.Fprintf(w, "\tTotal samples %d\n\tTotal time: %s\n\tTrimmed time: %s\n\tTrimmed / Total: %.4f%%\n",
			c.NumSamples, formatDuration(c.TotalSeconds), formatDuration(c.TrimmedSeconds), c.TrimmedSeconds/c.TotalSeconds*100.0)
	}

	var silent, unshared, unsharedSilent int
	for _, u := range s.BlockUsage {
		if u.AudibleUses == 0 {
			silent++
		}
		if u.TotalUses == 1 {
			unshared++
			if u.AudibleUses == 0 {
				unsharedSilent++
			}
		}
	}

	total := len(s.BlockUsage)
	fmt.Fprintf(w, "Total blocks in project: %d\n\tSilent blocks count: %d (%.5f%%)\n", total, silent, pct(silent, total))
	fmt.Fprintf(w, "Not shared blocks count: %d (%.5f%%)\n\tSilent blocks count: %d (%.5f%%)\n", unshared, pct(unshared, total), unsharedSilent, pct(unsharedSilent, unshared))
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100.0
}

func formatDuration(seconds float64) string {
	if seconds < 0 {
		return fmt.Sprintf("%g", seconds)
	}
	ms := int(seconds*1000) % 1000
	switch {
	case seconds > 3600:
		return fmt.Sprintf("%02d:%02d:%02d.%03d", int(seconds)/3600, int(seconds)/60%60, int(seconds)%60, ms)
	case seconds > 60:
		return fmt.Sprintf("%02d:%02d.%03d", int(seconds)/60, int(seconds)%60, ms)
	default:
		return fmt.Sprintf("%02d.%03d", int(seconds), ms)
	}
}
