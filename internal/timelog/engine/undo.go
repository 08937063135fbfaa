package engine

import (
	"context"
	"fmt"

	"github.com/kestrel-tools/timelogd/internal/timelog/events"
	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

// undoKind identifies which mutation an undo frame inverts.
type undoKind int

const (
	undoInsert undoKind = iota
	undoRemove
	undoEdit
	undoEditCategory
)

// undoFrame captures the minimum state needed to invert one mutation: for
// Insert, just the uuid; for Remove and Edit, the pre-mutation entry (and,
// for Edit, the field mask that was applied); for EditCategory, every
// affected entry's pre-mutation snapshot under a uniform Category mask.
// Undo replays the inverse operation rather than restoring a full
// snapshot of prior state.
type undoFrame struct {
	kind    undoKind
	uuid    model.UUID
	entries []model.Entry
	masks   []model.Fields
}

// undoStack is a LIFO bounded at capacity frames. Overflow trims the
// oldest frame without emitting undoCountChanged, since the visible count
// (capped at capacity) does not change.
type undoStack struct {
	capacity int
	frames   []undoFrame
}

func newUndoStack(capacity int) *undoStack {
	return &undoStack{capacity: capacity}
}

func (s *undoStack) len() int {
	return len(s.frames)
}

// push adds frame to the top of the stack, trimming the oldest frame on
// overflow. Returns true if the count actually changed (i.e. no trim
// occurred), which callers use to decide whether to emit undoCountChanged.
func (s *undoStack) push(frame undoFrame) bool {
	s.frames = append(s.frames, frame)
	if len(s.frames) > s.capacity {
		s.frames = s.frames[1:]
		return false
	}
	return true
}

// pop removes and returns the top frame, or ok=false if the stack is empty.
func (s *undoStack) pop() (undoFrame, bool) {
	if len(s.frames) == 0 {
		return undoFrame{}, false
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return top, true
}

func (s *undoStack) clear() {
	s.frames = nil
}

// pushUndo pushes frame and emits undoCountChanged unless the push
// overflowed, in which case the visible count stays pinned at capacity
// and no event fires.
func (e *Engine) pushUndo(frame undoFrame) {
	if e.undo.push(frame) {
		e.publish(events.Event{Kind: events.UndoCountChanged, UndoCount: e.undo.len()})
	}
}

// Undo pops the top of the undo stack and applies its inverse. It does not
// itself push a new frame. Undo on an empty stack logs and does nothing.
func (e *Engine) Undo(ctx context.Context) error {
	frame, ok := e.undo.pop()
	if !ok {
		e.logger.Printf("undo: stack empty, nothing to do")
		return nil
	}

	var err error
	switch frame.kind {
	case undoInsert:
		err = e.undoInsert(ctx, frame)
	case undoRemove:
		err = e.undoRemove(ctx, frame)
	case undoEdit:
		err = e.undoEdit(ctx, frame)
	case undoEditCategory:
		err = e.undoEditCategory(ctx, frame)
	default:
		err = fmt.Errorf("undo: unknown frame kind %d", frame.kind)
	}
	if err != nil {
		return err
	}

	e.publish(events.Event{Kind: events.UndoCountChanged, UndoCount: e.undo.len()})
	return nil
}

// undoInsert inverts an insert by removing the inserted uuid, mirroring
// Remove but without pushing a new undo frame.
func (e *Engine) undoInsert(ctx context.Context, frame undoFrame) error {
	return e.removeNoUndo(ctx, frame.uuid)
}

// undoRemove inverts a remove by re-inserting the captured entry. The
// captured snapshot carries no mtime (entry reads do not select it), so the
// re-insert is stamped with the current time, which is not older than the
// tombstone Remove wrote; the insert trigger then clears that tombstone.
func (e *Engine) undoRemove(ctx context.Context, frame undoFrame) error {
	if len(frame.entries) != 1 {
		return fmt.Errorf("undo remove: expected 1 captured entry, got %d", len(frame.entries))
	}
	return e.insertNoUndo(ctx, frame.entries[0])
}

// undoEdit inverts an edit by re-applying the captured pre-edit entry under
// the same field mask that was originally used.
func (e *Engine) undoEdit(ctx context.Context, frame undoFrame) error {
	if len(frame.entries) != 1 || len(frame.masks) != 1 {
		return fmt.Errorf("undo edit: malformed frame")
	}
	return e.editNoUndo(ctx, frame.entries[0], frame.masks[0])
}

// undoEditCategory inverts a category rename by re-applying each captured
// original entry (with its original category) under the Category mask,
// stopping at the first failure.
func (e *Engine) undoEditCategory(ctx context.Context, frame undoFrame) error {
	for _, orig := range frame.entries {
		if err := e.editNoUndo(ctx, orig, model.Category); err != nil {
			return err
		}
	}
	return e.rebuildCategories(ctx)
}

// removeNoUndo, insertNoUndo, and editNoUndo perform the same storage work
// and emit the same observable events as the public commands, but skip the
// undo-stack push, since undo application must not itself become
// undoable.
func (e *Engine) removeNoUndo(ctx context.Context, id model.UUID) error {
	old, ok, err := e.db.GetEntryByUUID(ctx, id)
	if err != nil || !ok {
		return fmt.Errorf("undo remove: uuid %s no longer live", id)
	}

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return model.NewStorageFailure("begin undo-remove transaction", err)
	}
	if err := e.doRemove(ctx, tx, id); err != nil {
		return e.abort(tx, "undo remove", err)
	}
	if err := tx.Commit(); err != nil {
		return e.abort(tx, "commit undo remove", err)
	}

	e.publish(events.Event{Kind: events.DataRemoved, Entry: old})
	if err := e.refreshSize(ctx); err != nil {
		e.emitError(err.Error())
	}
	return e.notifyRemove(ctx, old.Start)
}

func (e *Engine) insertNoUndo(ctx context.Context, entry model.Entry) error {
	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return model.NewStorageFailure("begin undo-insert transaction", err)
	}
	rows, err := e.doInsert(ctx, tx, entry)
	if err != nil {
		return e.abort(tx, "undo insert", err)
	}
	if rows == 0 {
		return tx.Commit()
	}
	if err := tx.Commit(); err != nil {
		return e.abort(tx, "commit undo insert", err)
	}

	e.publish(events.Event{Kind: events.DataInserted, Entry: entry})
	if err := e.refreshSize(ctx); err != nil {
		e.emitError(err.Error())
	}
	e.addCategory(entry.Category)
	return e.notifyInsert(ctx, entry.Start)
}

func (e *Engine) editNoUndo(ctx context.Context, entry model.Entry, mask model.Fields) error {
	current, ok, err := e.db.GetEntryByUUID(ctx, entry.UUID)
	if err != nil || !ok {
		return fmt.Errorf("undo edit: uuid %s no longer live", entry.UUID)
	}
	oldStart := current.Start

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return model.NewStorageFailure("begin undo-edit transaction", err)
	}
	if err := e.doEdit(ctx, tx, entry, mask); err != nil {
		return e.abort(tx, "undo edit", err)
	}
	if err := tx.Commit(); err != nil {
		return e.abort(tx, "commit undo edit", err)
	}
	if mask.Has(model.Category) {
		e.addCategory(entry.Category)
	}
	if mask.Has(model.StartTime) && entry.Start != oldStart {
		return e.notifyEditStart(ctx, entry.Start, oldStart, mask)
	}
	return e.notifyEditNoStart(ctx, entry.Start, mask)
}
