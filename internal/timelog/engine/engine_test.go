package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kestrel-tools/timelogd/internal/timelog/model"
	"github.com/kestrel-tools/timelogd/internal/timelog/storage"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	db, err := storage.Open(path)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	eng, err := New(db, nil, nil, "")
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

// TestInsertDurationPropagation checks that inserting a second entry backfills
// the first entry's duration and leaves the newest entry open (-1).
func TestInsertDurationPropagation(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	e1 := model.Entry{UUID: model.NewUUID(), Start: 100, Category: "work"}
	if err := eng.Insert(ctx, e1); err != nil {
		t.Fatalf("Insert(e1): %v", err)
	}
	got1, _, _ := eng.db.GetEntryByUUID(ctx, e1.UUID)
	if got1.Duration != -1 {
		t.Errorf("e1.Duration = %d, want -1", got1.Duration)
	}

	e2 := model.Entry{UUID: model.NewUUID(), Start: 200, Category: "work"}
	if err := eng.Insert(ctx, e2); err != nil {
		t.Fatalf("Insert(e2): %v", err)
	}

	got1, _, _ = eng.db.GetEntryByUUID(ctx, e1.UUID)
	if got1.Duration != 100 {
		t.Errorf("e1.Duration after e2 = %d, want 100", got1.Duration)
	}
	got2, _, _ := eng.db.GetEntryByUUID(ctx, e2.UUID)
	if got2.Duration != -1 {
		t.Errorf("e2.Duration = %d, want -1", got2.Duration)
	}
	if eng.Size() != 2 {
		t.Errorf("Size() = %d, want 2", eng.Size())
	}
}

// TestRemoveClosesGap checks that removing a middle entry extends its
// predecessor's duration to cover the gap.
func TestRemoveClosesGap(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	e1 := model.Entry{UUID: model.NewUUID(), Start: 100, Category: "a"}
	e2 := model.Entry{UUID: model.NewUUID(), Start: 200, Category: "a"}
	e3 := model.Entry{UUID: model.NewUUID(), Start: 300, Category: "a"}
	for _, e := range []model.Entry{e1, e2, e3} {
		if err := eng.Insert(ctx, e); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	if err := eng.Remove(ctx, e2.UUID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	got1, ok, _ := eng.db.GetEntryByUUID(ctx, e1.UUID)
	if !ok || got1.Duration != 200 {
		t.Errorf("e1 after remove = %+v (ok=%v), want duration 200", got1, ok)
	}
	if _, ok, _ := eng.db.GetEntryByUUID(ctx, e2.UUID); ok {
		t.Error("e2 still visible after remove")
	}
	if eng.Size() != 2 {
		t.Errorf("Size() = %d, want 2", eng.Size())
	}
}

// TestEditStartReorders checks that moving an entry's start time recomputes
// durations for both its old and new neighbours.
func TestEditStartReorders(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	e1 := model.Entry{UUID: model.NewUUID(), Start: 100, Category: "a"}
	e2 := model.Entry{UUID: model.NewUUID(), Start: 200, Category: "a"}
	e3 := model.Entry{UUID: model.NewUUID(), Start: 300, Category: "a"}
	for _, e := range []model.Entry{e1, e2, e3} {
		if err := eng.Insert(ctx, e); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	edited := e2
	edited.Start = 50
	if err := eng.Edit(ctx, edited, model.StartTime); err != nil {
		t.Fatalf("Edit: %v", err)
	}

	got2, _, _ := eng.db.GetEntryByUUID(ctx, e2.UUID)
	if got2.Start != 50 || got2.Duration != 50 {
		t.Errorf("e2 = %+v, want start=50 duration=50", got2)
	}
	got1, _, _ := eng.db.GetEntryByUUID(ctx, e1.UUID)
	if got1.Duration != 200 {
		t.Errorf("e1.Duration = %d, want 200", got1.Duration)
	}
	got3, _, _ := eng.db.GetEntryByUUID(ctx, e3.UUID)
	if got3.Duration != -1 {
		t.Errorf("e3.Duration = %d, want -1", got3.Duration)
	}
}

// TestCategoryRenameWithUndo checks that a bulk category rename affects only
// entries under the old name and that undoing it restores every renamed entry.
func TestCategoryRenameWithUndo(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	a := model.Entry{UUID: model.NewUUID(), Start: 100, Category: "x"}
	b := model.Entry{UUID: model.NewUUID(), Start: 200, Category: "x"}
	c := model.Entry{UUID: model.NewUUID(), Start: 300, Category: "y"}
	for _, e := range []model.Entry{a, b, c} {
		if err := eng.Insert(ctx, e); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	if err := eng.EditCategory(ctx, "x", "z"); err != nil {
		t.Fatalf("EditCategory: %v", err)
	}

	gotA, _, _ := eng.db.GetEntryByUUID(ctx, a.UUID)
	gotB, _, _ := eng.db.GetEntryByUUID(ctx, b.UUID)
	gotC, _, _ := eng.db.GetEntryByUUID(ctx, c.UUID)
	if gotA.Category != "z" || gotB.Category != "z" {
		t.Errorf("a/b category not renamed: %q, %q", gotA.Category, gotB.Category)
	}
	if gotC.Category != "y" {
		t.Errorf("c category changed: %q", gotC.Category)
	}

	if err := eng.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	gotA, _, _ = eng.db.GetEntryByUUID(ctx, a.UUID)
	gotB, _, _ = eng.db.GetEntryByUUID(ctx, b.UUID)
	if gotA.Category != "x" || gotB.Category != "x" {
		t.Errorf("undo did not restore category: %q, %q", gotA.Category, gotB.Category)
	}
}

// TestInsertUndoRoundTrip checks that undoing an insert removes the entry
// and restores the prior size.
func TestInsertUndoRoundTrip(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	e := model.Entry{UUID: model.NewUUID(), Start: 100, Category: "a"}
	if err := eng.Insert(ctx, e); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := eng.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if _, ok, _ := eng.db.GetEntryByUUID(ctx, e.UUID); ok {
		t.Error("entry still present after insert-undo round trip")
	}
	if eng.Size() != 0 {
		t.Errorf("Size() = %d, want 0", eng.Size())
	}
}

// TestRemoveUndoRoundTrip checks that undoing a remove restores the entry
// with its original fields intact.
func TestRemoveUndoRoundTrip(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	e := model.Entry{UUID: model.NewUUID(), Start: 100, Category: "a", Comment: "hi"}
	if err := eng.Insert(ctx, e); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := eng.Remove(ctx, e.UUID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := eng.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	got, ok, _ := eng.db.GetEntryByUUID(ctx, e.UUID)
	if !ok {
		t.Fatal("entry not restored after remove-undo round trip")
	}
	if got.Category != "a" || got.Comment != "hi" {
		t.Errorf("restored entry = %+v, want original fields", got)
	}
}

// TestEditUndoRoundTrip checks that undoing an edit restores the
// pre-edit field value.
func TestEditUndoRoundTrip(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	e := model.Entry{UUID: model.NewUUID(), Start: 100, Category: "a", Comment: "orig"}
	if err := eng.Insert(ctx, e); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	edited := e
	edited.Comment = "changed"
	if err := eng.Edit(ctx, edited, model.Comment); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if err := eng.Undo(ctx); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	got, _, _ := eng.db.GetEntryByUUID(ctx, e.UUID)
	if got.Comment != "orig" {
		t.Errorf("Comment = %q, want orig", got.Comment)
	}
}

// TestEditCategoryBoundary covers the same-name no-op and empty-name error
// boundary behaviours.
func TestEditCategoryBoundary(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	if err := eng.EditCategory(ctx, "x", "x"); err != nil {
		t.Errorf("EditCategory(x,x) = %v, want nil (no-op)", err)
	}
	if err := eng.EditCategory(ctx, "x", ""); err == nil {
		t.Error("EditCategory(x, \"\") should error")
	}
}

// TestEditCategoryNoMatchesSucceeds checks that renaming a category with no
// live entries succeeds silently rather than failing.
func TestEditCategoryNoMatchesSucceeds(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	if err := eng.EditCategory(ctx, "nonexistent", "z"); err != nil {
		t.Errorf("EditCategory on empty set = %v, want nil", err)
	}
}

// TestUndoEmptyStack covers the "undo on empty stack" boundary behaviour.
func TestUndoEmptyStack(t *testing.T) {
	eng := testEngine(t)
	if err := eng.Undo(context.Background()); err != nil {
		t.Errorf("Undo on empty stack = %v, want nil", err)
	}
}

// TestEditUnknownUUIDFails checks that editing an unknown uuid fails before
// touching the undo stack.
func TestEditUnknownUUIDFails(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	before := eng.undo.len()
	err := eng.Edit(ctx, model.Entry{UUID: model.NewUUID(), Comment: "x"}, model.Comment)
	if err == nil {
		t.Fatal("Edit on unknown uuid should fail")
	}
	if eng.undo.len() != before {
		t.Errorf("undo stack grew on a validation failure: %d -> %d", before, eng.undo.len())
	}
}

// TestInsertDuplicateStartFails covers the primary-key-violation boundary
// behaviour.
func TestInsertDuplicateStartFails(t *testing.T) {
	eng := testEngine(t)
	ctx := context.Background()

	e1 := model.Entry{UUID: model.NewUUID(), Start: 100, Category: "a"}
	if err := eng.Insert(ctx, e1); err != nil {
		t.Fatalf("Insert(e1): %v", err)
	}
	e2 := model.Entry{UUID: model.NewUUID(), Start: 100, Category: "b"}
	if err := eng.Insert(ctx, e2); err == nil {
		t.Error("Insert with duplicate start should fail")
	}
}
