package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	return db
}

func mustInsert(t *testing.T, db *DB, start int64, category string) model.Entry {
	t.Helper()
	e := model.Entry{UUID: uuid.New(), Start: start, Category: category, Comment: "c"}
	tx, err := db.BeginTx(context.Background())
	if err != nil {
		t.Fatalf("BeginTx() failed: %v", err)
	}
	if _, err := db.InsertLive(context.Background(), tx, e); err != nil {
		t.Fatalf("InsertLive() failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	return e
}

func TestOpenAndInitSchema(t *testing.T) {
	db := testDB(t)
	if db.Path() == "" {
		t.Error("Path() is empty")
	}
}

// TestDurationPropagation checks that inserting a second, later entry
// shrinks the first entry's duration and leaves the new entry open.
func TestDurationPropagation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	e1 := mustInsert(t, db, 100, "work")
	got1, ok, err := db.GetEntryByUUID(ctx, e1.UUID)
	if err != nil || !ok {
		t.Fatalf("GetEntryByUUID(e1) = %v, %v, %v", got1, ok, err)
	}
	if got1.Duration != -1 {
		t.Errorf("e1.Duration before e2 = %d, want -1", got1.Duration)
	}

	e2 := mustInsert(t, db, 200, "work")

	got1, _, err = db.GetEntryByUUID(ctx, e1.UUID)
	if err != nil {
		t.Fatalf("GetEntryByUUID(e1) after insert: %v", err)
	}
	if got1.Duration != 100 {
		t.Errorf("e1.Duration = %d, want 100", got1.Duration)
	}

	got2, _, err := db.GetEntryByUUID(ctx, e2.UUID)
	if err != nil {
		t.Fatalf("GetEntryByUUID(e2): %v", err)
	}
	if got2.Duration != -1 {
		t.Errorf("e2.Duration = %d, want -1", got2.Duration)
	}
	if got2.PrecedingStart != 100 {
		t.Errorf("e2.PrecedingStart = %d, want 100", got2.PrecedingStart)
	}
}

// TestRemoveClosesGap checks that tombstoning a middle entry extends its
// predecessor's duration to close the gap.
func TestRemoveClosesGap(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	e1 := mustInsert(t, db, 100, "a")
	e2 := mustInsert(t, db, 200, "a")
	mustInsert(t, db, 300, "a")

	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := db.InsertTombstone(ctx, tx, e2.UUID, 0); err != nil {
		t.Fatalf("InsertTombstone: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got1, ok, err := db.GetEntryByUUID(ctx, e1.UUID)
	if err != nil || !ok {
		t.Fatalf("GetEntryByUUID(e1) = %v, %v, %v", got1, ok, err)
	}
	if got1.Duration != 200 {
		t.Errorf("e1.Duration after remove = %d, want 200", got1.Duration)
	}

	if _, ok, _ := db.GetEntryByUUID(ctx, e2.UUID); ok {
		t.Error("e2 still present after tombstoning")
	}
}

// TestInsertSuppressedByTombstone checks that an insert whose mtime is
// strictly less than an existing tombstone's is ignored.
func TestInsertSuppressedByTombstone(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	id := uuid.New()

	tx, err := db.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := db.InsertTombstone(ctx, tx, id, 2000); err != nil {
		t.Fatalf("InsertTombstone: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tx, err = db.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	rows, err := db.InsertLive(ctx, tx, model.Entry{UUID: id, Start: 100, Category: "x", MTime: 1000})
	if err != nil {
		t.Fatalf("InsertLive: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if rows != 0 {
		t.Errorf("rows affected = %d, want 0 (suppressed)", rows)
	}
	if _, ok, _ := db.GetEntryByUUID(ctx, id); ok {
		t.Error("suppressed insert became visible")
	}
}

func TestGetHistoryBefore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustInsert(t, db, 100, "a")
	mustInsert(t, db, 200, "a")
	mustInsert(t, db, 300, "a")

	got, err := db.GetHistoryBefore(ctx, 300, 2)
	if err != nil {
		t.Fatalf("GetHistoryBefore: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].Start != 100 || got[1].Start != 200 {
		t.Errorf("got starts = [%d, %d], want [100, 200] ascending", got[0].Start, got[1].Start)
	}
}

func TestGetStatsNoFilter(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustInsert(t, db, 100, "work/email")
	mustInsert(t, db, 200, "work/code")
	mustInsert(t, db, 300, "life")

	rows, err := db.GetStats(ctx, 0, 1000, "", "/")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	buckets := map[string]int64{}
	for _, r := range rows {
		buckets[r.Category] += r.Duration
	}
	if _, ok := buckets["work"]; !ok {
		t.Errorf("buckets = %v, want a 'work' bucket", buckets)
	}
	if _, ok := buckets["life"]; !ok {
		t.Errorf("buckets = %v, want a 'life' bucket", buckets)
	}
}

func TestWindowInsert(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustInsert(t, db, 100, "a")
	mustInsert(t, db, 300, "a")

	window, err := db.WindowInsert(ctx, 200)
	if err != nil {
		t.Fatalf("WindowInsert: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("len(window) = %d, want 2", len(window))
	}
	if window[0].Start != 100 || window[1].Start != 300 {
		t.Errorf("window starts = [%d, %d], want [100, 300]", window[0].Start, window[1].Start)
	}
}
