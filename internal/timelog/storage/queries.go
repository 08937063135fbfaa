package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

// entrySelect is the shared projection every entry-returning query builds
// on: an entry's own fields plus precedingStart, the start of the entry
// immediately before it (0 if none). Keeping this as a single fragment
// keeps precedingStart consistent across history, single-entry, and
// notification-window reads.
const entrySelect = `SELECT uuid, start, category, comment, duration,
	ifnull((SELECT start FROM timelog WHERE start < result.start ORDER BY start DESC LIMIT 1), 0)
	FROM timelog AS result`

func scanEntry(row interface {
	Scan(dest ...any) error
}) (model.Entry, error) {
	var e model.Entry
	var rawUUID []byte
	if err := row.Scan(&rawUUID, &e.Start, &e.Category, &e.Comment, &e.Duration, &e.PrecedingStart); err != nil {
		return model.Entry{}, err
	}
	id, err := uuid.FromBytes(rawUUID)
	if err != nil {
		return model.Entry{}, fmt.Errorf("decode uuid: %w", err)
	}
	e.UUID = id
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]model.Entry, error) {
	defer rows.Close()
	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetEntryByUUID returns the live entry for uuid, or ok=false if none
// exists.
func (db *DB) GetEntryByUUID(ctx context.Context, id model.UUID) (model.Entry, bool, error) {
	row := db.conn.QueryRowContext(ctx, entrySelect+" WHERE uuid=?", id[:])
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return model.Entry{}, false, nil
	}
	if err != nil {
		return model.Entry{}, false, fmt.Errorf("query entry: %w", err)
	}
	return e, true, nil
}

// GetEntriesByCategory returns every live entry with exactly this
// category (no hierarchy matching), ordered by start ascending — the set
// editCategory needs before it rewrites them.
func (db *DB) GetEntriesByCategory(ctx context.Context, category string) ([]model.Entry, error) {
	rows, err := db.conn.QueryContext(ctx, entrySelect+" WHERE category=? ORDER BY start ASC", category)
	if err != nil {
		return nil, fmt.Errorf("query entries by category: %w", err)
	}
	return scanEntries(rows)
}

// CountByCategory reports how many live rows currently carry category.
func (db *DB) CountByCategory(ctx context.Context, category string) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx, "SELECT count(*) FROM timelog WHERE category=?", category).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by category: %w", err)
	}
	return count, nil
}

// GetHistoryBetween returns live entries with start in [begin, end],
// optionally filtered to an exact category, ascending by start.
func (db *DB) GetHistoryBetween(ctx context.Context, begin, end int64, category string) ([]model.Entry, error) {
	query := entrySelect + " WHERE (start BETWEEN ? AND ?)"
	args := []any{begin, end}
	if category != "" {
		query += " AND category=?"
		args = append(args, category)
	}
	query += " ORDER BY start ASC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history between: %w", err)
	}
	return scanEntries(rows)
}

// GetHistoryAfter returns up to limit entries with start strictly after
// from, ascending by start.
func (db *DB) GetHistoryAfter(ctx context.Context, from int64, limit int) ([]model.Entry, error) {
	rows, err := db.conn.QueryContext(ctx, entrySelect+" WHERE start > ? ORDER BY start ASC LIMIT ?", from, limit)
	if err != nil {
		return nil, fmt.Errorf("query history after: %w", err)
	}
	return scanEntries(rows)
}

// GetHistoryBefore returns up to limit entries with start strictly before
// until, in ascending order (the caller-visible contract from spec — the
// query itself runs descending to pick the closest ones, then reverses).
func (db *DB) GetHistoryBefore(ctx context.Context, until int64, limit int) ([]model.Entry, error) {
	rows, err := db.conn.QueryContext(ctx, entrySelect+" WHERE start < ? ORDER BY start DESC LIMIT ?", until, limit)
	if err != nil {
		return nil, fmt.Errorf("query history before: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// syncSelect is the shared union between live rows and tombstones used by
// both GetSyncAffected and GetSyncData: it flattens both tables into one
// nullable-Start shape.
const syncSelect = `SELECT uuid, start, category, comment, mtime FROM timelog
	WHERE uuid=:uuid
UNION ALL
	SELECT uuid, NULL, NULL, NULL, mtime FROM removed
	WHERE uuid=:uuid`

func scanSyncRow(row interface {
	Scan(dest ...any) error
}) (model.SyncRecord, error) {
	var rawUUID []byte
	var start sql.NullInt64
	var category, comment sql.NullString
	var rec model.SyncRecord

	if err := row.Scan(&rawUUID, &start, &category, &comment, &rec.MTime); err != nil {
		return model.SyncRecord{}, err
	}
	id, err := uuid.FromBytes(rawUUID)
	if err != nil {
		return model.SyncRecord{}, fmt.Errorf("decode uuid: %w", err)
	}
	rec.UUID = id
	if start.Valid {
		v := start.Int64
		rec.Start = &v
	}
	if category.Valid {
		v := category.String
		rec.Category = &v
	}
	if comment.Valid {
		v := comment.String
		rec.Comment = &v
	}
	return rec, nil
}

// GetSyncAffected returns the locally-authoritative record for id: the
// live row or tombstone with the greater mtime, or the zero SyncRecord if
// neither exists.
func (db *DB) GetSyncAffected(ctx context.Context, id model.UUID) (model.SyncRecord, error) {
	query := syncSelect + " ORDER BY mtime DESC LIMIT 1"
	row := db.conn.QueryRowContext(ctx, query, sql.Named("uuid", id[:]))
	rec, err := scanSyncRow(row)
	if err == sql.ErrNoRows {
		return model.SyncRecord{}, nil
	}
	if err != nil {
		return model.SyncRecord{}, fmt.Errorf("query sync affected: %w", err)
	}
	return rec, nil
}

// GetSyncData returns every live-row change and tombstone with
// mtime in (mBegin, mEnd], ordered by mtime ascending — the batch a
// replica hands to a peer's Sync.
func (db *DB) GetSyncData(ctx context.Context, mBegin, mEnd int64) ([]model.SyncRecord, error) {
	query := `WITH result AS (
		SELECT uuid, start, category, comment, mtime FROM timelog
		WHERE (mtime > ? AND mtime <= ?)
	UNION ALL
		SELECT uuid, NULL, NULL, NULL, mtime FROM removed
		WHERE (mtime > ? AND mtime <= ?)
	)
	SELECT * FROM result ORDER BY mtime ASC`

	rows, err := db.conn.QueryContext(ctx, query, mBegin, mEnd, mBegin, mEnd)
	if err != nil {
		return nil, fmt.Errorf("query sync data: %w", err)
	}
	defer rows.Close()

	var records []model.SyncRecord
	for rows.Next() {
		rec, err := scanSyncRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetStats aggregates effective duration by category bucket for live rows
// with start in [begin, end], optionally restricted to category or one of
// its descendants (prefix match on separator). The bucket-boundary
// arithmetic (instr/substr over the separator) matches the original
// engine's getStats query exactly: with no filter the bucket is the first
// hierarchy segment; with a filter the bucket is the filter plus the next
// segment, i.e. one level deeper.
func (db *DB) GetStats(ctx context.Context, begin, end int64, category, separator string) ([]model.StatsRow, error) {
	var bucketExpr, categoryFilter string
	if category == "" {
		bucketExpr = "nullif(instr(category, :separator) - 1, -1)"
		categoryFilter = ""
	} else {
		bucketExpr = "nullif(instr(substr(category, nullif(instr(substr(category, length(:category) + 1), :separator), 0) + 1 + length(:category)), :separator), 0) + length(:category)"
		categoryFilter = "AND (category = :category OR substr(category, 1, length(:category) + length(:separator)) = :category || :separator)"
	}

	query := fmt.Sprintf(`WITH result AS (
		SELECT rtrim(substr(category, 1, ifnull(%s, length(category)))) as category, CASE
			WHEN duration != -1 THEN duration
			ELSE (SELECT strftime('%%s', 'now')) - (SELECT start FROM timelog ORDER BY start DESC LIMIT 1)
			END AS duration
		FROM timelog
		WHERE (start BETWEEN :sBegin AND :sEnd) %s
	)
	SELECT category, SUM(duration) FROM result
	GROUP BY category
	ORDER BY category ASC`, bucketExpr, categoryFilter)

	args := []any{
		sql.Named("sBegin", begin),
		sql.Named("sEnd", end),
		sql.Named("separator", separator),
	}
	if category != "" {
		args = append(args, sql.Named("category", category))
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []model.StatsRow
	for rows.Next() {
		var row model.StatsRow
		if err := rows.Scan(&row.Category, &row.Duration); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// windowUnion runs a set of "select from entrySelect with some WHERE"
// fragments as a UNION and returns the combined, start-ascending result —
// the shape every notification-window query shares.
func (db *DB) windowUnion(ctx context.Context, fragments []string, args ...any) ([]model.Entry, error) {
	query := ""
	for i, frag := range fragments {
		if i > 0 {
			query += " UNION "
		}
		query += "SELECT * FROM (" + frag + ")"
	}
	query += " ORDER BY start ASC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notification window: %w", err)
	}
	return scanEntries(rows)
}

// WindowInsert returns the window affected by inserting an entry at
// newStart: up to two entries at or before it, and the one entry after
// it.
func (db *DB) WindowInsert(ctx context.Context, newStart int64) ([]model.Entry, error) {
	return db.windowUnion(ctx, []string{
		entrySelect + " WHERE start <= ? ORDER BY start DESC LIMIT 2",
		entrySelect + " WHERE start > ? ORDER BY start ASC LIMIT 1",
	}, newStart, newStart)
}

// WindowRemove returns the window affected by removing an entry that used
// to be at oldStart: its former neighbours on each side.
func (db *DB) WindowRemove(ctx context.Context, oldStart int64) ([]model.Entry, error) {
	return db.windowUnion(ctx, []string{
		entrySelect + " WHERE start < ? ORDER BY start DESC LIMIT 1",
		entrySelect + " WHERE start > ? ORDER BY start ASC LIMIT 1",
	}, oldStart, oldStart)
}

// WindowEditStart returns the window affected by moving an entry from
// oldStart to newStart: neighbours on both sides of both positions.
func (db *DB) WindowEditStart(ctx context.Context, newStart, oldStart int64) ([]model.Entry, error) {
	return db.windowUnion(ctx, []string{
		entrySelect + " WHERE start <= ? ORDER BY start DESC LIMIT 2",
		entrySelect + " WHERE start > ? ORDER BY start ASC LIMIT 1",
		entrySelect + " WHERE start < ? ORDER BY start DESC LIMIT 1",
		entrySelect + " WHERE start > ? ORDER BY start ASC LIMIT 1",
	}, newStart, newStart, oldStart, oldStart)
}

// WindowEditNoStart returns just the single row at start — the window
// when an edit didn't move the entry.
func (db *DB) WindowEditNoStart(ctx context.Context, start int64) ([]model.Entry, error) {
	rows, err := db.conn.QueryContext(ctx, entrySelect+" WHERE start=? ORDER BY start ASC", start)
	if err != nil {
		return nil, fmt.Errorf("query edit window: %w", err)
	}
	return scanEntries(rows)
}
