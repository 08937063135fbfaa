package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

// InsertLive writes a live row for e within tx, defaulting mtime to now
// when e.MTime is zero. It returns the number of rows the trigger chain
// actually wrote — zero means check_insert_timelog suppressed the insert
// because a stronger tombstone exists (model.ConflictSuppressed, not an
// error).
func (db *DB) InsertLive(ctx context.Context, tx *sql.Tx, e model.Entry) (int64, error) {
	mtime := e.MTime
	if mtime == 0 {
		mtime = nowMillis()
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO timelog (uuid, start, category, comment, mtime) VALUES (?,?,?,?,?)",
		e.UUID[:], e.Start, e.Category, e.Comment, mtime)
	if err != nil {
		return 0, fmt.Errorf("insert live row: %w", err)
	}
	return res.RowsAffected()
}

// InsertTombstone writes (or strengthens) a tombstone for id within tx.
// Zero rows affected means check_insert_removed suppressed the write
// because a stronger tombstone already exists.
func (db *DB) InsertTombstone(ctx context.Context, tx *sql.Tx, id model.UUID, mtime int64) (int64, error) {
	if mtime == 0 {
		mtime = nowMillis()
	}
	res, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO removed (uuid, mtime) VALUES (?,?)", id[:], mtime)
	if err != nil {
		return 0, fmt.Errorf("insert tombstone: %w", err)
	}
	return res.RowsAffected()
}

// UpdateFields applies the fields selected by mask to the row for e.UUID,
// advancing mtime to now (or e.MTime if set). Fails if mask is empty; the
// caller (engine) is expected to have already rejected that case, this is
// a defensive guard against a naked storage-layer misuse.
func (db *DB) UpdateFields(ctx context.Context, tx *sql.Tx, e model.Entry, mask model.Fields) error {
	if mask == model.NoFields {
		return fmt.Errorf("update fields: empty field mask")
	}

	set := ""
	var args []any
	if mask.Has(model.StartTime) {
		set += "start=?, "
		args = append(args, e.Start)
	}
	if mask.Has(model.Category) {
		set += "category=?, "
		args = append(args, e.Category)
	}
	if mask.Has(model.Comment) {
		set += "comment=?, "
		args = append(args, e.Comment)
	}
	mtime := e.MTime
	if mtime == 0 {
		mtime = nowMillis()
	}
	set += "mtime=?"
	args = append(args, mtime, e.UUID[:])

	_, err := tx.ExecContext(ctx, "UPDATE timelog SET "+set+" WHERE uuid=?", args...)
	if err != nil {
		return fmt.Errorf("update fields: %w", err)
	}
	return nil
}

// UpdateCategoryBulk rewrites every live row with category=oldName to
// newName, advancing mtime to now. It returns the number of rows changed.
func (db *DB) UpdateCategoryBulk(ctx context.Context, tx *sql.Tx, oldName, newName string) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE timelog SET category=?, mtime=? WHERE category=?", newName, nowMillis(), oldName)
	if err != nil {
		return 0, fmt.Errorf("update category bulk: %w", err)
	}
	return res.RowsAffected()
}
