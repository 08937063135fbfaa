package engine

import (
	"context"
	"fmt"

	"github.com/kestrel-tools/timelogd/internal/timelog/events"
	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

// notifyInsert emits dataUpdated for the window an insert at newStart
// affects: up to two predecessors and the one successor.
// The mask is DurationTime|PrecedingStart since an insert only ever shifts
// a neighbour's derived fields, never its user-set ones.
func (e *Engine) notifyInsert(ctx context.Context, newStart int64) error {
	window, err := e.db.WindowInsert(ctx, newStart)
	if err != nil {
		e.emitError(fmt.Sprintf("notify insert: %v", err))
		return nil
	}
	e.emitWindow(window, model.DurationTime|model.PrecedingStart)
	return nil
}

// notifyRemove emits dataUpdated for the two ex-neighbours of a removed
// entry that used to sit at oldStart.
func (e *Engine) notifyRemove(ctx context.Context, oldStart int64) error {
	window, err := e.db.WindowRemove(ctx, oldStart)
	if err != nil {
		e.emitError(fmt.Sprintf("notify remove: %v", err))
		return nil
	}
	e.emitWindow(window, model.DurationTime|model.PrecedingStart)
	return nil
}

// notifyEditStart emits dataUpdated for the window an edit that moved an
// entry from oldStart to newStart affects: both sides of both positions.
// The user-supplied mask is augmented with DurationTime|PrecedingStart
// since neighbours' derived fields shift too.
func (e *Engine) notifyEditStart(ctx context.Context, newStart, oldStart int64, mask model.Fields) error {
	window, err := e.db.WindowEditStart(ctx, newStart, oldStart)
	if err != nil {
		e.emitError(fmt.Sprintf("notify edit: %v", err))
		return nil
	}
	e.emitWindow(window, mask|model.DurationTime|model.PrecedingStart)
	return nil
}

// notifyEditNoStart emits dataUpdated for just the edited row, using the
// caller-supplied mask unmodified, since no neighbour's derived state
// could have shifted.
func (e *Engine) notifyEditNoStart(ctx context.Context, start int64, mask model.Fields) error {
	window, err := e.db.WindowEditNoStart(ctx, start)
	if err != nil {
		e.emitError(fmt.Sprintf("notify edit: %v", err))
		return nil
	}
	e.emitWindow(window, mask)
	return nil
}

// emitWindow publishes dataUpdated for entries with a uniform field mask,
// matching every entry in a single emission. A nil/empty window publishes
// nothing.
func (e *Engine) emitWindow(entries []model.Entry, mask model.Fields) {
	if len(entries) == 0 {
		return
	}
	masks := make([]model.Fields, len(entries))
	for i := range masks {
		masks[i] = mask
	}
	e.publish(events.Event{Kind: events.DataUpdated, Entries: entries, Fields: masks})
}
