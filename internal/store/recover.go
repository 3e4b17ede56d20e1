// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/aup3tools/aup3-recover/internal/aup3err"
)

var preRecoveryPragmas = []string{
	"PRAGMA page_size = 65536;",
	"PRAGMA busy_timeout = 5000;",
	"PRAGMA locking_mode = EXCLUSIVE;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA journal_mode = WAL;",
	"PRAGMA wal_autocheckpoint = 1000;",
}

var postRecoveryPragmas = []string{
	"PRAGMA locking_mode = NORMAL;",
	"PRAGMA synchronous = NORMAL;",
}

// RecoverDatabase runs the sqlite3 CLI's ".recover" dot-command
// against the project file and replays its output into a fresh
// writable copy, rewriting any lost_and_found rows it produced back
// into sampleblocks inserts. binaryDir is the directory containing
// the sqlite3 binary; an empty string looks it up on PATH.
func (db *DB) RecoverDatabase(binaryDir string, ignoreFreelist bool) error {
	db.log.Info("recovering database", "path", db.projectPath)

	if err := db.removeOldFiles(); err != nil {
		return err
	}

	conn, err := sqlite.OpenConn(db.writablePath, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return &aup3err.IOError{Op: "create " + db.writablePath, Err: err}
	}
	db.conn.Close()
	db.conn = conn
	db.readOnly = false

	for _, pragma := range preRecoveryPragmas {
		if err := sqlitex.ExecuteTransient(db.conn, pragma, nil); err != nil {
			return &aup3err.IOError{Op: pragma, Err: err}
		}
	}
	if err := sqlitex.ExecuteTransient(db.conn, "VACUUM;", nil); err != nil {
		return &aup3err.IOError{Op: "VACUUM", Err: err}
	}

	binary := "sqlite3"
	if binaryDir != "" {
		binary = filepath.Join(binaryDir, "sqlite3")
	}
	args := []string{db.projectPath, ".recover"}
	if ignoreFreelist {
		args = append(args, "--ignore-freelist")
	}

	cmd := exec.Command(binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &aup3err.IOError{Op: "pipe sqlite3 .recover", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &aup3err.IOError{Op: "start sqlite3 .recover", Err: err}
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var lineErr error
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "BEGIN") || strings.Contains(line, "COMMIT") {
			continue
		}

		if strings.Contains(line, "lost_and_found") {
			if strings.Contains(line, "CREATE") {
				continue
			}
			if !strings.Contains(line, "INSERT") {
				lineErr = &aup3err.CorruptStore{Msg: "unexpected lost_and_found line: " + line}
				continue
			}
			rewritten, err := rewriteLostAndFoundLine(line)
			if err != nil {
				db.log.Warn("skipping unparseable lost_and_found line", "error", err)
				continue
			}
			line = rewritten
		}

		if err := sqlitex.ExecuteTransient(db.conn, line, nil); err != nil {
			db.log.Warn("recovery statement failed, skipping", "error", err, "statement", truncate(line, 200))
		}
	}
	if err := scanner.Err(); err != nil {
		lineErr = &aup3err.IOError{Op: "read sqlite3 .recover output", Err: err}
	}

	waitErr := cmd.Wait()
	if waitErr != nil {
		return &aup3err.CorruptStore{Msg: fmt.Sprintf("sqlite3 .recover failed: %v: %s", waitErr, stderr.String())}
	}
	if lineErr != nil {
		return lineErr
	}

	for _, pragma := range postRecoveryPragmas {
		if err := sqlitex.ExecuteTransient(db.conn, pragma, nil); err != nil {
			return &aup3err.IOError{Op: pragma, Err: err}
		}
	}
	if err := sqlitex.ExecuteTransient(db.conn, fmt.Sprintf("PRAGMA application_id = %d;", ApplicationID), nil); err != nil {
		return &aup3err.IOError{Op: "restore application_id", Err: err}
	}
	if err := sqlitex.ExecuteTransient(db.conn, fmt.Sprintf("PRAGMA user_version = %d;", db.projectVersion), nil); err != nil {
		return &aup3err.IOError{Op: "restore user_version", Err: err}
	}
	if err := sqlitex.ExecuteTransient(db.conn, "VACUUM;", nil); err != nil {
		return &aup3err.IOError{Op: "VACUUM", Err: err}
	}

	return nil
}

// rewriteLostAndFoundLine turns one INSERT INTO lost_and_found line
// emitted by sqlite3's .recover into the equivalent
// INSERT OR REPLACE INTO sampleblocks line. lost_and_found rows carry
// (root_n, n, n_fields, rowid, NULL, <remaining field values...>); the
// NULL is the first of the n_fields values, the blockid column, which
// the record stores as NULL because it aliases the rowid. The rowid
// takes its place in the rewritten statement.
func rewriteLostAndFoundLine(line string) (string, error) {
	open := strings.IndexByte(line, '(')
	if open < 0 {
		return "", fmt.Errorf("no '(' found")
	}
	rest := line[open+1:]

	_, rest, err := parseLeadingInt(rest) // root_n
	if err != nil {
		return "", fmt.Errorf("root_n: %w", err)
	}
	rest, err = skipComma(rest)
	if err != nil {
		return "", err
	}

	_, rest, err = parseLeadingInt(rest) // n
	if err != nil {
		return "", fmt.Errorf("n: %w", err)
	}
	rest, err = skipComma(rest)
	if err != nil {
		return "", err
	}

	nFields, rest, err := parseLeadingInt(rest)
	if err != nil {
		return "", fmt.Errorf("n_fields: %w", err)
	}
	if nFields != 8 {
		return "", fmt.Errorf("unexpected n_fields %d, want 8", nFields)
	}
	rest, err = skipComma(rest)
	if err != nil {
		return "", err
	}

	rowID, rest, err := parseLeadingInt(rest)
	if err != nil {
		return "", fmt.Errorf("rowid: %w", err)
	}

	idx := strings.Index(rest, "NULL,")
	if idx < 0 {
		return "", fmt.Errorf("no NULL placeholder found after rowid")
	}
	tail := rest[idx+len("NULL,"):]

	return fmt.Sprintf(
		"INSERT OR REPLACE INTO sampleblocks(blockid, sampleformat, summin, summax, sumrms, summary256, summary64k, samples) VALUES(%d,%s",
		rowID, tail), nil
}

func skipComma(s string) (string, error) {
	i := strings.IndexByte(s, ',')
	if i < 0 {
		return "", fmt.Errorf("expected ','")
	}
	return s[i+1:], nil
}

// parseLeadingInt consumes leading whitespace then a run of decimal
// digits (with an optional sign) from s, returning the parsed value
// and the unconsumed remainder.
func parseLeadingInt(s string) (int64, string, error) {
	i := 0
	for i < len(s) && s[i] == ' ' {
		i++
	}
	start := i
	if i < len(s) && s[i] == '-' {
		i++
	}
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start || (i == start+1 && s[start] == '-') {
		return 0, s, fmt.Errorf("no integer found")
	}
	v, err := strconv.ParseInt(s[start:i], 10, 64)
	if err != nil {
		return 0, s, err
	}
	return v, s[i:], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
