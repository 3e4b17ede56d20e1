// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package aup3err defines the error kinds the recovery tool
// distinguishes at its operation boundaries: wire-format violations,
// unsupported project versions, store corruption, per-block recovery
// failures, I/O failures, and CLI usage errors. Each kind is a
// distinct struct type so callers can use errors.As to branch on kind
// without parsing message text.
package aup3err

import "fmt"

// Malformed reports a wire-format violation in the binary-XML codec.
// It is fatal to the parse in progress; no mutation is ever attempted
// against a partially parsed tree.
type Malformed struct {
	Msg string
}

func (e *Malformed) Error() string { return "malformed document: " + e.Msg }

// Malformedf constructs a *Malformed with a formatted message.
func Malformedf(format string, args ...any) *Malformed {
	return &Malformed{Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedVersion reports a project user_version pragma exceeding
// the maximum version this tool understands. Fatal.
type UnsupportedVersion struct {
	Found, Max string
}

func (e *UnsupportedVersion) Error() string {
	return fmt.Sprintf("unsupported project version %s (maximum supported is %s)", e.Found, e.Max)
}

// CorruptStore reports that the underlying database engine detected
// structural corruption. The caller may retry as a recover_db
// operation; otherwise this surfaces to the CLI boundary.
type CorruptStore struct {
	Msg string
}

func (e *CorruptStore) Error() string { return "corrupt store: " + e.Msg }

// MissingBlock reports a non-silent WaveBlock whose block id has no
// matching row in sampleblocks. Never fatal to the batch — validate
// and fixup operations collect these and continue.
type MissingBlock struct {
	BlockID int64
}

func (e *MissingBlock) Error() string {
	return fmt.Sprintf("sample block %d not found in store", e.BlockID)
}

// TruncatedBlock reports a sample block row whose payload is shorter
// than the window being read from it.
type TruncatedBlock struct {
	BlockID  int64
	Want     int
	Have     int
}

func (e *TruncatedBlock) Error() string {
	return fmt.Sprintf("sample block %d is truncated: need %d bytes, blob has %d", e.BlockID, e.Want, e.Have)
}

// FormatMismatch reports a sample block whose stored sample format
// disagrees with the format recorded on its owning sequence.
type FormatMismatch struct {
	BlockID            int64
	SequenceFormat     int
	BlockFormat        int
}

func (e *FormatMismatch) Error() string {
	return fmt.Sprintf("sample block %d has format %d, sequence expects %d", e.BlockID, e.BlockFormat, e.SequenceFormat)
}

// IOError reports a filesystem or child-process failure. Fatal to the
// current operation.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// UsageError reports invalid CLI input. Fatal before any work starts.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }
