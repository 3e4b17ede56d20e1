// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// aup3-recover inspects and repairs Audacity AUP3 project files: it
// can drop a stale autosave row, check SQLite integrity, run the
// sqlite3 ".recover" pipeline over a damaged file, fix up or prune
// sample blocks referenced by the parsed project tree, and extract
// clips, individual sample blocks, or whole-store tracks as WAV
// files. Every mode is a boolean flag; the operations they enable run
// in a fixed order regardless of the order the flags were given.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/aup3tools/aup3-recover/internal/aup3err"
	"github.com/aup3tools/aup3-recover/internal/bxml"
	"github.com/aup3tools/aup3-recover/internal/chunkbuf"
	"github.com/aup3tools/aup3-recover/internal/cli"
	"github.com/aup3tools/aup3-recover/internal/project"
	"github.com/aup3tools/aup3-recover/internal/sampleformat"
	"github.com/aup3tools/aup3-recover/internal/store"
)

const toolVersion = "0.1.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(-1)
	}
}

type modeFlags struct {
	dropAutosave         bool
	checkIntegrity       bool
	extractProject       bool
	recoverDB            bool
	recoverProject       bool
	compact              bool
	extractClips         bool
	extractSampleBlocks  bool
	extractAsMonoTrack   bool
	extractAsStereoTrack bool
	ignoreFreelist       bool
	sampleFormat         string
	sampleRate           int
	summaryFile          string
	quiet                bool
}

func run(args []string) error {
	// Handle --version before flag parsing, matching other tools built
	// on this flag package.
	if len(args) > 0 && args[0] == "--version" {
		fmt.Printf("aup3-recover %s\n", toolVersion)
		return nil
	}

	var f modeFlags
	flagSet := pflag.NewFlagSet("aup3-recover", pflag.ContinueOnError)
	flagSet.BoolVar(&f.dropAutosave, "drop-autosave", false, "drop the autosave table row, if one exists")
	flagSet.BoolVar(&f.checkIntegrity, "check-integrity", false, "run PRAGMA integrity_check")
	flagSet.BoolVar(&f.extractProject, "extract-project", false, "extract the project tree(s) as sibling XML files")
	flagSet.BoolVar(&f.recoverDB, "recover-db", false, "run the sqlite3 .recover pipeline against the database")
	flagSet.BoolVar(&f.recoverProject, "recover-project", false, "convert missing sample blocks in the project tree to silence")
	flagSet.BoolVar(&f.compact, "compact", false, "remove sample blocks the project tree no longer references, then vacuum")
	flagSet.BoolVar(&f.extractClips, "extract-clips", false, "extract each clip as its own mono WAV file")
	flagSet.BoolVar(&f.extractSampleBlocks, "extract-sample-blocks", false, "extract every sample block row as its own WAV file")
	flagSet.BoolVar(&f.extractAsMonoTrack, "extract-as-mono-track", false, "extract every sample block as one mono WAV file")
	flagSet.BoolVar(&f.extractAsStereoTrack, "extract-as-stereo-track", false, "extract every sample block as one stereo WAV file")
	flagSet.BoolVar(&f.ignoreFreelist, "ignore-freelist", false, "pass --ignore-freelist to the recovery subprocess")
	flagSet.StringVar(&f.sampleFormat, "sample-format", "float", "sample format for extracted audio: int16, int24, or float")
	flagSet.IntVar(&f.sampleRate, "sample-rate", 44100, "sample rate (Hz) for extracted audio")
	flagSet.StringVar(&f.summaryFile, "summary-file", "", "write a YAML summary here after --recover-project/--compact")
	flagSet.BoolVar(&f.quiet, "quiet", false, "log warnings and above only")
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		printUsage(flagSet)
		return &cli.ExitError{Code: 1}
	}

	if flagSet.NArg() != 1 {
		printUsage(flagSet)
		return &cli.ExitError{Code: 1}
	}
	projectPath := flagSet.Arg(0)

	format, err := sampleformat.FromString(f.sampleFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, (&aup3err.UsageError{Msg: err.Error()}).Error())
		return &cli.ExitError{Code: 1}
	}

	level := slog.LevelInfo
	if f.quiet {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return runOperations(logger, projectPath, f, format)
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "usage: aup3-recover [flags] path.aup3\n\n")
	flagSet.PrintDefaults()
}

// recoverySummary is the small YAML report --summary-file writes,
// useful for scripting batch recovery over many files.
type recoverySummary struct {
	FixedBlocks   int `yaml:"fixed_blocks"`
	RemovedBlocks int `yaml:"removed_blocks"`
}

func runOperations(log *slog.Logger, projectPath string, f modeFlags, format sampleformat.Format) error {
	db, err := store.Open(projectPath, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if f.dropAutosave {
		if err := db.DropAutosave(); err != nil {
			return err
		}
	}

	if f.checkIntegrity {
		if db.CheckIntegrity() {
			log.Info("database integrity check passed")
		} else {
			log.Warn("database integrity check failed", "path", projectPath)
			if !canContinueInFailedState(f) {
				return &cli.ExitError{Code: 3}
			}
		}
	}

	if f.extractProject {
		if err := extractProjectTrees(db, projectPath, log); err != nil {
			return err
		}
	}

	if f.recoverDB {
		executable, err := os.Executable()
		if err != nil {
			return &aup3err.IOError{Op: "locate own executable", Err: err}
		}
		if err := db.RecoverDatabase(filepath.Dir(executable), f.ignoreFreelist); err != nil {
			return err
		}
	}

	var (
		model *project.ProjectModel
		table string
	)
	ensureModel := func() error {
		if model != nil {
			return nil
		}
		m, t, err := loadProjectModel(db)
		if err != nil {
			return err
		}
		model, table = m, t
		return nil
	}

	var summary recoverySummary

	if f.recoverProject {
		if err := ensureModel(); err != nil {
			return err
		}
		missing, err := model.FixupMissingBlocks(db, log)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			dict, doc, err := model.Serialize()
			if err != nil {
				return err
			}
			if err := db.SaveProjectBlobs(table, dict, doc); err != nil {
				return err
			}
		}
		summary.FixedBlocks = len(missing)
		log.Info("recover-project", "fixed_blocks", len(missing))
	}

	if f.compact {
		if err := ensureModel(); err != nil {
			return err
		}
		removed, err := model.RemoveUnusedBlocks(db)
		if err != nil {
			return err
		}
		summary.RemovedBlocks = len(removed)
		log.Info("compact", "removed_blocks", len(removed))
	}

	if f.extractClips {
		if err := ensureModel(); err != nil {
			return err
		}
		outDir := filepath.Join(db.DataPath(), "clips")
		if err := model.ExtractClips(db, outDir); err != nil {
			return err
		}
		log.Info("extract-clips", "count", len(model.Clips), "dir", outDir)
	}

	if f.extractSampleBlocks {
		if err := db.ExtractSampleBlocks(format, uint32(f.sampleRate)); err != nil {
			return err
		}
		log.Info("extract-sample-blocks", "format", format, "sample_rate", f.sampleRate)
	}

	if f.extractAsMonoTrack {
		if err := db.ExtractTrack(format, uint32(f.sampleRate), false); err != nil {
			return err
		}
		log.Info("extract-as-mono-track", "format", format, "sample_rate", f.sampleRate)
	}

	if f.extractAsStereoTrack {
		if err := db.ExtractTrack(format, uint32(f.sampleRate), true); err != nil {
			return err
		}
		log.Info("extract-as-stereo-track", "format", format, "sample_rate", f.sampleRate)
	}

	if f.summaryFile != "" && (f.recoverProject || f.compact) {
		data, err := yaml.Marshal(summary)
		if err != nil {
			return err
		}
		if err := os.WriteFile(f.summaryFile, data, 0o644); err != nil {
			return &aup3err.IOError{Op: "write " + f.summaryFile, Err: err}
		}
	}

	return nil
}

// canContinueInFailedState mirrors the original tool's rule: an
// integrity failure is only fatal (exit 3) when no recovery-flavored
// flag follows it that might still make progress.
func canContinueInFailedState(f modeFlags) bool {
	return f.extractProject || f.recoverDB || f.recoverProject ||
		f.extractClips || f.extractSampleBlocks ||
		f.extractAsMonoTrack || f.extractAsStereoTrack
}

// extractProjectTrees writes "<path>.autosave.xml" (if an autosave row
// exists) and "<path>.project.xml" as sibling files of path.
func extractProjectTrees(db *store.DB, path string, log *slog.Logger) error {
	hasAutosave, err := db.HasAutosave()
	if err != nil {
		return err
	}

	tables := []string{"project"}
	if hasAutosave {
		tables = []string{"autosave", "project"}
	}

	for _, table := range tables {
		log.Info("reading project", "table", table)
		blob, err := db.ReadProjectBlob(table)
		if err != nil {
			return err
		}

		buf := &chunkbuf.Buffer{}
		buf.Append(blob)

		renderer := bxml.NewXMLRenderer()
		if err := bxml.Parse(renderer, buf); err != nil {
			return err
		}

		xmlPath := fmt.Sprintf("%s.%s.xml", path, table)
		if err := os.WriteFile(xmlPath, renderer.Bytes(), 0o644); err != nil {
			return &aup3err.IOError{Op: "write " + xmlPath, Err: err}
		}
	}

	return nil
}

// loadProjectModel reads and parses whichever of the autosave/project
// tables is authoritative (autosave, when present) into a ProjectModel,
// returning the source table name so callers can write mutations back
// to the same place they came from.
func loadProjectModel(db *store.DB) (*project.ProjectModel, string, error) {
	table, err := db.ProjectTable()
	if err != nil {
		return nil, "", err
	}

	blob, err := db.ReadProjectBlob(table)
	if err != nil {
		return nil, "", err
	}

	buf := &chunkbuf.Buffer{}
	buf.Append(blob)

	sink := project.NewEventSink()
	if err := bxml.Parse(sink, buf); err != nil {
		return nil, "", err
	}

	return project.NewProjectModel(sink), table, nil
}
