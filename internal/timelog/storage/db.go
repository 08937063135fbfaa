// Package storage implements the durable schema underneath the timelog
// engine: two tables (timelog, removed) and the triggers that maintain the
// derived-duration and tombstone invariants on every write path, plus the
// typed queries the engine composes into history, statistics, and sync
// results.
//
// The store is opened with github.com/ncruces/go-sqlite3, a pure-Go SQLite
// driver built on wazero, in WAL mode. Nothing here is safe for concurrent
// writers; the engine above serializes all access.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the embedded SQLite connection and exposes the timelog schema.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates (if needed) and opens the database file at path, applying
// WAL mode and the pragmas the engine depends on for correctness under a
// single writer with concurrent readers.
//
// The caller must call InitSchema once before using the returned DB, and
// Close when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The engine dispatches all commands from a single worker; one
	// connection is enough and avoids SQLITE_BUSY churn under WAL.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	return db, nil
}

// RawDB returns the underlying *sql.DB for tooling that needs raw access
// (e.g. a CLI debug dump).
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Path returns the on-disk location of the database file.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "timelogd: wal checkpoint failed: %v\n", err)
	}
	err := db.conn.Close()
	db.conn = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// BeginTx starts a transaction. Callers are responsible for Commit or
// Rollback; every mutation method in this package takes a *sql.Tx rather
// than owning its own transaction, so the engine can batch several writes
// (e.g. a sync merge) atomically.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.conn.BeginTx(ctx, nil)
}

// schemaSQL creates the two tables and seven triggers that enforce the
// duration and tombstone invariants. It is idempotent.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS timelog (
	uuid     BLOB UNIQUE NOT NULL,
	start    INTEGER PRIMARY KEY,
	category TEXT NOT NULL,
	comment  TEXT NOT NULL DEFAULT '',
	duration INTEGER NOT NULL DEFAULT -1,
	mtime    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS removed (
	uuid  BLOB UNIQUE NOT NULL,
	mtime INTEGER NOT NULL
);

CREATE TRIGGER IF NOT EXISTS check_insert_timelog BEFORE INSERT ON timelog
BEGIN
	SELECT mtime,
		CASE WHEN NEW.mtime < mtime
			THEN RAISE(IGNORE)
		END
	FROM removed WHERE uuid = NEW.uuid;
END;

CREATE TRIGGER IF NOT EXISTS insert_timelog AFTER INSERT ON timelog
BEGIN
	UPDATE timelog SET duration = (NEW.start - start)
	WHERE start = (
		SELECT start FROM timelog WHERE start < NEW.start ORDER BY start DESC LIMIT 1
	);
	UPDATE timelog SET duration = IFNULL(
		(SELECT start FROM timelog WHERE start > NEW.start ORDER BY start ASC LIMIT 1) - NEW.start,
		-1
	) WHERE start = NEW.start;
	DELETE FROM removed WHERE uuid = NEW.uuid;
END;

CREATE TRIGGER IF NOT EXISTS delete_timelog AFTER DELETE ON timelog
BEGIN
	UPDATE timelog SET duration = IFNULL(
		(SELECT start FROM timelog WHERE start > OLD.start ORDER BY start ASC LIMIT 1) - start,
		-1
	) WHERE start = (
		SELECT start FROM timelog WHERE start < OLD.start ORDER BY start DESC LIMIT 1
	);
END;

CREATE TRIGGER IF NOT EXISTS check_update_timelog BEFORE UPDATE ON timelog
BEGIN
	SELECT
		CASE WHEN NEW.mtime < OLD.mtime
			THEN RAISE(IGNORE)
		END;
END;

CREATE TRIGGER IF NOT EXISTS update_timelog AFTER UPDATE OF start ON timelog
BEGIN
	UPDATE timelog SET duration = (NEW.start - start)
	WHERE start = (
		SELECT start FROM timelog WHERE start < NEW.start ORDER BY start DESC LIMIT 1
	);
	UPDATE timelog SET duration = IFNULL(
		(SELECT start FROM timelog WHERE start > OLD.start ORDER BY start ASC LIMIT 1) - start,
		-1
	) WHERE start = NULLIF(
		(SELECT start FROM timelog WHERE start < OLD.start ORDER BY start DESC LIMIT 1),
		(SELECT start FROM timelog WHERE start < NEW.start ORDER BY start DESC LIMIT 1)
	);
	UPDATE timelog SET duration = IFNULL(
		(SELECT start FROM timelog WHERE start > NEW.start ORDER BY start ASC LIMIT 1) - NEW.start,
		-1
	) WHERE start = NEW.start;
END;

CREATE TRIGGER IF NOT EXISTS check_insert_removed BEFORE INSERT ON removed
BEGIN
	SELECT mtime,
		CASE WHEN NEW.mtime < mtime
			THEN RAISE(IGNORE)
		END
	FROM removed WHERE uuid = NEW.uuid;
END;

CREATE TRIGGER IF NOT EXISTS insert_removed AFTER INSERT ON removed
BEGIN
	DELETE FROM timelog WHERE uuid = NEW.uuid;
END;
`

// InitSchema creates the tables and triggers if they don't already exist.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// nowMillis returns the current time as Unix milliseconds, the resolution
// mtime is stored at.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
