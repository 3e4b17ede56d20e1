// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store wraps the AUP3 project file as a single SQLite
// connection: pragma/version checks on open, copy-to-sibling-path
// reopening before any mutation, blob access to the project/autosave
// rows, and the sample-block table operations the domain layer needs.
//
// Exactly one process owns the file for its lifetime (spec 5); this
// package never opens more than one connection at a time and never
// writes through the original path.
package store

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/aup3tools/aup3-recover/internal/aup3err"
)

// ApplicationID is the application_id pragma every AUP3 file should
// carry. A mismatch is logged, not fatal — many recovered files still
// open correctly despite it.
const ApplicationID = 1096107097

// MaxSupportedVersion is the highest user_version this tool
// understands, encoded (major<<24)|(minor<<16)|(patch<<8): 3.1.3.0.
const MaxSupportedVersion = (3 << 24) | (1 << 16) | (3 << 8)

// DB owns the single connection to an AUP3 file (or its sibling
// writable/recovered copy) for the tool's lifetime.
type DB struct {
	conn *sqlite.Conn
	log  *slog.Logger

	projectPath  string
	writablePath string
	dataPath     string
	readOnly     bool

	projectVersion uint32
}

// Open opens path read-only, checks its application_id and
// user_version pragmas, and returns a DB ready for queries. It
// returns *aup3err.UnsupportedVersion if the project's user_version
// exceeds MaxSupportedVersion.
func Open(path string, log *slog.Logger) (*DB, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		return nil, &aup3err.IOError{Op: "open " + path, Err: err}
	}

	db := &DB{
		conn:         conn,
		log:          log,
		projectPath:  path,
		writablePath: withSuffix(path, "recovered.aup3"),
		dataPath:     dataPathFor(path),
		readOnly:     true,
	}

	appID, err := pragmaInt64(conn, "application_id")
	if err != nil {
		conn.Close()
		return nil, err
	}
	if appID != ApplicationID {
		log.Warn("unexpected application_id pragma, is this really an Audacity project?", "application_id", appID)
	}

	version, err := pragmaInt64(conn, "user_version")
	if err != nil {
		conn.Close()
		return nil, err
	}
	db.projectVersion = uint32(version)

	log.Info("project version",
		"major", (db.projectVersion>>24)&0xFF,
		"minor", (db.projectVersion>>16)&0xFF,
		"patch", (db.projectVersion>>8)&0xFF,
	)

	if int64(db.projectVersion) > MaxSupportedVersion {
		conn.Close()
		return nil, &aup3err.UnsupportedVersion{
			Found: fmt.Sprintf("%d.%d.%d", (db.projectVersion>>24)&0xFF, (db.projectVersion>>16)&0xFF, (db.projectVersion>>8)&0xFF),
			Max:   "3.1.3.0",
		}
	}

	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

// ReadOnly reports whether the store is still opened read-only.
func (db *DB) ReadOnly() bool { return db.readOnly }

// ProjectVersion returns the raw encoded user_version pragma value.
func (db *DB) ProjectVersion() uint32 { return db.projectVersion }

// CurrentPath returns the path currently backing the connection: the
// original path while read-only, the sibling writable path after
// ReopenReadonlyAsWritable or RecoverDatabase.
func (db *DB) CurrentPath() string {
	if db.readOnly {
		return db.projectPath
	}
	return db.writablePath
}

// DataPath returns the directory extraction output is written under:
// a sibling "<stem>_data" directory next to the project file.
func (db *DB) DataPath() string { return db.dataPath }

// ReopenReadonlyAsWritable copies the project file to its sibling
// writable path and reopens the connection read-write there. No-op if
// already writable. The original file is never opened for writing.
func (db *DB) ReopenReadonlyAsWritable() error {
	if !db.readOnly {
		return nil
	}

	db.log.Info("reopening database in writable mode", "path", db.writablePath)

	if err := db.removeOldFiles(); err != nil {
		return err
	}
	if err := copyFile(db.projectPath, db.writablePath); err != nil {
		return &aup3err.IOError{Op: "copy to " + db.writablePath, Err: err}
	}

	conn, err := sqlite.OpenConn(db.writablePath, sqlite.OpenReadWrite)
	if err != nil {
		return &aup3err.IOError{Op: "open " + db.writablePath, Err: err}
	}

	db.conn.Close()
	db.conn = conn
	db.readOnly = false
	return nil
}

// HasAutosave reports whether the autosave table carries any row.
func (db *DB) HasAutosave() (bool, error) {
	n, err := queryInt64(db.conn, "SELECT COUNT(1) FROM autosave;")
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DropAutosave deletes the autosave row, reopening the store writable
// first. No-op if there is no autosave row.
func (db *DB) DropAutosave() error {
	has, err := db.HasAutosave()
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	if err := db.ReopenReadonlyAsWritable(); err != nil {
		return err
	}
	return sqlitex.ExecuteTransient(db.conn, "DELETE FROM autosave WHERE id = 1", nil)
}

// CheckIntegrity runs PRAGMA integrity_check and reports whether the
// store reported clean, logging every non-"ok" message it returned.
func (db *DB) CheckIntegrity() bool {
	ok := false
	err := sqlitex.ExecuteTransient(db.conn, "PRAGMA integrity_check(10240);", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			msg := stmt.ColumnText(0)
			if msg == "ok" {
				ok = true
			} else {
				db.log.Warn("integrity check", "message", msg)
			}
			return nil
		},
	})
	if err != nil {
		db.log.Error("integrity check failed", "error", err)
		return false
	}
	return ok
}

// ProjectTable returns "autosave" if the project carries an autosave
// row, otherwise "project" — the table the tree should be read from
// and written back to.
func (db *DB) ProjectTable() (string, error) {
	has, err := db.HasAutosave()
	if err != nil {
		return "", err
	}
	if has {
		return "autosave", nil
	}
	return "project", nil
}

// ReadProjectBlob concatenates the dict and doc blob columns of the
// given table's single row (id = 1), in that order.
func (db *DB) ReadProjectBlob(table string) ([]byte, error) {
	if table != "project" && table != "autosave" {
		return nil, fmt.Errorf("store: unrecognized table %q", table)
	}

	rowID, err := queryInt64(db.conn, fmt.Sprintf("SELECT ROWID FROM main.%s WHERE id = 1;", table))
	if err != nil {
		return nil, &aup3err.CorruptStore{Msg: err.Error()}
	}

	var out []byte
	for _, column := range []string{"dict", "doc"} {
		data, err := db.readBlob(table, column, rowID)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

// SaveProjectBlobs writes dict and doc back to table's single row,
// reopening the store writable first if needed.
func (db *DB) SaveProjectBlobs(table string, dict, doc []byte) error {
	if err := db.ReopenReadonlyAsWritable(); err != nil {
		return err
	}
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s(id, dict, doc) VALUES (1, ?, ?);", table)
	return sqlitex.Execute(db.conn, query, &sqlitex.ExecOptions{
		Args: []any{dict, doc},
	})
}

func (db *DB) readBlob(table, column string, rowID int64) ([]byte, error) {
	blob, err := db.conn.OpenBlob("main", table, column, rowID, false)
	if err != nil {
		return nil, &aup3err.CorruptStore{Msg: err.Error()}
	}
	defer blob.Close()

	buf := make([]byte, blob.Size())
	if _, err := io.ReadFull(blob, buf); err != nil {
		return nil, &aup3err.CorruptStore{Msg: err.Error()}
	}
	return buf, nil
}

// BlockRow implements project.BlockStore: it looks up one sampleblocks
// row by id and returns its format and raw sample bytes.
func (db *DB) BlockRow(blockID int64) (format int, samples []byte, found bool, err error) {
	err = sqlitex.Execute(db.conn,
		"SELECT sampleformat, samples FROM sampleblocks WHERE blockid = ?;",
		&sqlitex.ExecOptions{
			Args: []any{blockID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				format = int(stmt.ColumnInt64(0))
				samples = make([]byte, stmt.ColumnLen(1))
				stmt.ColumnBytes(1, samples)
				found = true
				return nil
			},
		})
	return format, samples, found, err
}

// AllBlockIDs implements project.BlockStore.
func (db *DB) AllBlockIDs() ([]int64, error) {
	var ids []int64
	err := sqlitex.Execute(db.conn, "SELECT blockid FROM sampleblocks;", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			ids = append(ids, stmt.ColumnInt64(0))
			return nil
		},
	})
	return ids, err
}

// DeleteBlocks implements project.BlockStore, reopening the store
// writable first if needed.
func (db *DB) DeleteBlocks(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	if err := db.ReopenReadonlyAsWritable(); err != nil {
		return err
	}
	if err := sqlitex.ExecuteTransient(db.conn, "BEGIN;", nil); err != nil {
		return err
	}
	for _, id := range ids {
		if err := sqlitex.Execute(db.conn, "DELETE FROM sampleblocks WHERE blockid = ?;", &sqlitex.ExecOptions{
			Args: []any{id},
		}); err != nil {
			sqlitex.ExecuteTransient(db.conn, "ROLLBACK;", nil)
			return err
		}
	}
	return sqlitex.ExecuteTransient(db.conn, "COMMIT;", nil)
}

// Vacuum implements project.BlockStore.
func (db *DB) Vacuum() error {
	return sqlitex.ExecuteTransient(db.conn, "VACUUM;", nil)
}

// AllSampleBlocks streams every sampleblocks row to fn, in blockid
// order as the store returns them. Used by the whole-store extraction
// operations, which need every row rather than only tree-referenced
// ones.
func (db *DB) AllSampleBlocks(fn func(blockID int64, samples []byte) error) error {
	return sqlitex.Execute(db.conn, "SELECT blockid, samples FROM sampleblocks;", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			samples := make([]byte, stmt.ColumnLen(1))
			stmt.ColumnBytes(1, samples)
			return fn(stmt.ColumnInt64(0), samples)
		},
	})
}

func (db *DB) removeOldFiles() error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		path := db.writablePath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return &aup3err.IOError{Op: "remove " + path, Err: err}
		}
	}
	return nil
}

func pragmaInt64(conn *sqlite.Conn, name string) (int64, error) {
	return queryInt64(conn, "PRAGMA "+name+";")
}

func queryInt64(conn *sqlite.Conn, query string) (int64, error) {
	var value int64
	err := sqlitex.ExecuteTransient(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = stmt.ColumnInt64(0)
			return nil
		},
	})
	return value, err
}

func withSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + suffix
}

func dataPathFor(path string) string {
	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(dir, stem+"_data")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
