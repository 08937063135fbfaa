package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kestrel-tools/timelogd/internal/timelog/events"
	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

// doInsert writes entry's live row within tx and returns the rows-affected
// count the trigger chain actually produced. Zero means the write was
// silently suppressed by a stronger tombstone; that is not an error.
func (e *Engine) doInsert(ctx context.Context, tx *sql.Tx, entry model.Entry) (int64, error) {
	rows, err := e.db.InsertLive(ctx, tx, entry)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	return rows, nil
}

// doRemove writes a tombstone for id within tx; the AFTER INSERT trigger on
// removed deletes the live row.
func (e *Engine) doRemove(ctx context.Context, tx *sql.Tx, id model.UUID) error {
	if _, err := e.db.InsertTombstone(ctx, tx, id, 0); err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}
	return nil
}

// doEdit applies mask's fields from entry within tx.
func (e *Engine) doEdit(ctx context.Context, tx *sql.Tx, entry model.Entry, mask model.Fields) error {
	if err := e.db.UpdateFields(ctx, tx, entry, mask); err != nil {
		return fmt.Errorf("edit entry: %w", err)
	}
	return nil
}

// Insert writes a new entry. entry must carry a non-empty category; start
// and uuid are the caller's responsibility (typically model.NewUUID() and
// time.Now().Unix()). Fails with InvalidArgument before touching storage or
// the undo stack if category is empty.
func (e *Engine) Insert(ctx context.Context, entry model.Entry) error {
	if entry.Category == "" {
		err := model.NewInvalidArgument("insert: category must not be empty")
		e.emitError(err.Error())
		return err
	}

	e.pushUndo(undoFrame{kind: undoInsert, uuid: entry.UUID})

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return e.abort(tx, "begin insert transaction", err)
	}
	rows, err := e.doInsert(ctx, tx, entry)
	if err != nil {
		return e.abort(tx, "insert", err)
	}
	if rows == 0 {
		// Suppressed by a stronger tombstone: commit the no-op transaction
		// and return quietly.
		if err := tx.Commit(); err != nil {
			return e.abort(tx, "commit suppressed insert", err)
		}
		return nil
	}
	if err := tx.Commit(); err != nil {
		return e.abort(tx, "commit insert", err)
	}

	// Ordering: primary event, then sizeChanged, then categoriesChanged,
	// then neighbour-update events.
	e.publish(events.Event{Kind: events.DataInserted, Entry: entry})
	if err := e.refreshSize(ctx); err != nil {
		e.emitError(err.Error())
	}
	e.addCategory(entry.Category)
	return e.notifyInsert(ctx, entry.Start)
}

// Import bulk-inserts entries in a single transaction. Individual
// suppressed inserts (stale mtime) are tolerated; any storage failure rolls
// back the whole batch. Import never pushes an undo frame — bulk loads are
// not meant to be undoable one row at a time — and on success emits
// dataImported wholesale rather than per-entry notifications to avoid
// quadratic notification cost.
func (e *Engine) Import(ctx context.Context, entries []model.Entry) error {
	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return e.abort(tx, "begin import transaction", err)
	}

	for _, entry := range entries {
		if entry.Category == "" {
			return e.abort(tx, "import", fmt.Errorf("entry %s has empty category", entry.UUID))
		}
		if _, err := e.doInsert(ctx, tx, entry); err != nil {
			return e.abort(tx, "import", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return e.abort(tx, "commit import", err)
	}

	for _, entry := range entries {
		e.addCategory(entry.Category)
	}
	if err := e.refreshSize(ctx); err != nil {
		e.emitError(err.Error())
	}

	e.publish(events.Event{Kind: events.DataImported, Entries: entries})
	return nil
}

// Remove tombstones the live entry identified by id. Fails with
// InvalidArgument if no live entry with that uuid exists.
func (e *Engine) Remove(ctx context.Context, id model.UUID) error {
	old, ok, err := e.db.GetEntryByUUID(ctx, id)
	if err != nil {
		return e.abort(nil, "remove: lookup", err)
	}
	if !ok {
		verr := model.NewInvalidArgument(fmt.Sprintf("remove: no live entry with uuid %s", id))
		e.emitError(verr.Error())
		return verr
	}

	e.pushUndo(undoFrame{kind: undoRemove, entries: []model.Entry{old}})

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return e.abort(tx, "begin remove transaction", err)
	}
	if err := e.doRemove(ctx, tx, id); err != nil {
		return e.abort(tx, "remove", err)
	}
	if err := tx.Commit(); err != nil {
		return e.abort(tx, "commit remove", err)
	}

	// Ordering: primary event, then sizeChanged, then neighbour-update
	// events (remove never changes the category set).
	e.publish(events.Event{Kind: events.DataRemoved, Entry: old})
	if err := e.refreshSize(ctx); err != nil {
		e.emitError(err.Error())
	}
	return e.notifyRemove(ctx, old.Start)
}

// Edit applies mask's fields from entry (identified by entry.UUID) to the
// existing row. Fails with InvalidArgument if mask is empty or the uuid is
// unknown; the existence check happens, and the old start is captured,
// before the undo frame is pushed, so a failed edit never leaves a stray
// undo frame behind.
func (e *Engine) Edit(ctx context.Context, entry model.Entry, mask model.Fields) error {
	if mask == model.NoFields {
		err := model.NewInvalidArgument("edit: field mask must not be empty")
		e.emitError(err.Error())
		return err
	}

	old, ok, err := e.db.GetEntryByUUID(ctx, entry.UUID)
	if err != nil {
		return e.abort(nil, "edit: lookup", err)
	}
	if !ok {
		verr := model.NewInvalidArgument(fmt.Sprintf("edit: no live entry with uuid %s", entry.UUID))
		e.emitError(verr.Error())
		return verr
	}

	e.pushUndo(undoFrame{kind: undoEdit, entries: []model.Entry{old}, masks: []model.Fields{mask}})

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return e.abort(tx, "begin edit transaction", err)
	}
	if err := e.doEdit(ctx, tx, entry, mask); err != nil {
		return e.abort(tx, "edit", err)
	}
	if err := tx.Commit(); err != nil {
		return e.abort(tx, "commit edit", err)
	}

	if mask.Has(model.Category) {
		e.addCategory(entry.Category)
	}

	if mask.Has(model.StartTime) {
		return e.notifyEditStart(ctx, entry.Start, old.Start, mask)
	}
	return e.notifyEditNoStart(ctx, old.Start, mask)
}

// EditCategory renames every live entry in oldName to newName. Rejects an
// empty newName; no-ops if oldName == newName. If no entries currently
// carry oldName, it succeeds silently and still drops oldName from the
// in-memory category set, rather than failing while leaving a stale name
// behind.
func (e *Engine) EditCategory(ctx context.Context, oldName, newName string) error {
	if newName == "" {
		err := model.NewInvalidArgument("editCategory: new name must not be empty")
		e.emitError(err.Error())
		return err
	}
	if oldName == newName {
		return nil
	}

	affected, err := e.db.GetEntriesByCategory(ctx, oldName)
	if err != nil {
		return e.abort(nil, "editCategory: lookup", err)
	}
	if len(affected) == 0 {
		delete(e.categories, oldName)
		e.publish(events.Event{Kind: events.CategoriesChanged, Categories: e.Categories()})
		return nil
	}

	masks := make([]model.Fields, len(affected))
	for i := range affected {
		masks[i] = model.Category
	}
	e.pushUndo(undoFrame{kind: undoEditCategory, entries: affected, masks: masks})

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return e.abort(tx, "begin editCategory transaction", err)
	}
	if _, err := e.db.UpdateCategoryBulk(ctx, tx, oldName, newName); err != nil {
		return e.abort(tx, "editCategory", err)
	}
	if err := tx.Commit(); err != nil {
		return e.abort(tx, "commit editCategory", err)
	}

	if err := e.rebuildCategories(ctx); err != nil {
		e.emitError(err.Error())
	}
	e.publish(events.Event{Kind: events.DataOutdated})
	return nil
}
