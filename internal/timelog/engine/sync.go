package engine

import (
	"context"

	"github.com/kestrel-tools/timelogd/internal/timelog/events"
	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

// SyncStats is the pre-merge classification a Sync call produces: for each
// bucket, the parallel Old/New slices carry the locally-authoritative
// record (possibly the zero value, meaning "nothing local") and the
// record that will replace it. Observers can inspect this before the merge
// transaction commits via syncStatsAvailable.
type SyncStats struct {
	RemovedOld, RemovedNew   []model.SyncRecord
	InsertedOld, InsertedNew []model.SyncRecord
	UpdatedOld, UpdatedNew   []model.SyncRecord
}

// Sync reconciles updated and removed peer records against local state
// under last-writer-wins, keyed on mtime; ties go to the local side. The
// classification pass never mutates storage; the merge pass applies every
// classified change inside one transaction, rolling back entirely on any
// failure.
func (e *Engine) Sync(ctx context.Context, updated, removed []model.SyncRecord) (SyncStats, error) {
	var stats SyncStats

	for _, peer := range removed {
		local, err := e.db.GetSyncAffected(ctx, peer.UUID)
		if err != nil {
			return stats, model.NewStorageFailure("sync: lookup removed", err)
		}
		if local.Valid() && local.MTime >= peer.MTime {
			continue
		}
		// removedMerged keeps the local record's data (for the observer)
		// but takes the peer's uuid/mtime — the record we actually
		// tombstone.
		merged := local
		merged.UUID = peer.UUID
		merged.MTime = peer.MTime
		stats.RemovedOld = append(stats.RemovedOld, local)
		stats.RemovedNew = append(stats.RemovedNew, merged)
	}

	for _, peer := range updated {
		local, err := e.db.GetSyncAffected(ctx, peer.UUID)
		if err != nil {
			return stats, model.NewStorageFailure("sync: lookup updated", err)
		}
		if local.Valid() && local.MTime >= peer.MTime {
			continue
		}
		if !local.Valid() || !local.Live() {
			stats.InsertedOld = append(stats.InsertedOld, local)
			stats.InsertedNew = append(stats.InsertedNew, peer)
		} else {
			stats.UpdatedOld = append(stats.UpdatedOld, local)
			stats.UpdatedNew = append(stats.UpdatedNew, peer)
		}
	}

	e.publish(events.Event{
		Kind:        events.SyncStatsAvailable,
		RemovedOld:  stats.RemovedOld,
		RemovedNew:  stats.RemovedNew,
		InsertedOld: stats.InsertedOld,
		InsertedNew: stats.InsertedNew,
		UpdatedOld:  stats.UpdatedOld,
		UpdatedNew:  stats.UpdatedNew,
	})

	if len(stats.RemovedNew) == 0 && len(stats.InsertedNew) == 0 && len(stats.UpdatedNew) == 0 {
		return stats, nil
	}

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return stats, e.abort(tx, "begin sync transaction", err)
	}
	for _, rec := range stats.RemovedNew {
		if _, err := e.db.InsertTombstone(ctx, tx, rec.UUID, rec.MTime); err != nil {
			return stats, e.abort(tx, "sync tombstone", err)
		}
	}
	for _, rec := range stats.InsertedNew {
		if _, err := e.db.InsertLive(ctx, tx, rec.Entry()); err != nil {
			return stats, e.abort(tx, "sync insert", err)
		}
	}
	for _, rec := range stats.UpdatedNew {
		if err := e.db.UpdateFields(ctx, tx, rec.Entry(), model.AllFields); err != nil {
			return stats, e.abort(tx, "sync update", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return stats, e.abort(tx, "commit sync", err)
	}

	if err := e.refreshSize(ctx); err != nil {
		e.emitError(err.Error())
	}
	if err := e.rebuildCategories(ctx); err != nil {
		e.emitError(err.Error())
	}

	// Notification order: all dataRemoved, then all removed-neighbour
	// updates, then all dataInserted, then all inserted-neighbour updates,
	// then all updated notifications — five separate passes, not
	// interleaved per record (TimeLogHistoryWorker.cpp sync()'s four
	// foreach loops).
	for i := range stats.RemovedNew {
		old := stats.RemovedOld[i]
		e.publish(events.Event{Kind: events.DataRemoved, Entry: old.Entry()})
	}
	for i := range stats.RemovedNew {
		old := stats.RemovedOld[i]
		if old.Live() {
			if err := e.notifyRemove(ctx, *old.Start); err != nil {
				e.emitError(err.Error())
			}
		}
	}
	for _, rec := range stats.InsertedNew {
		e.publish(events.Event{Kind: events.DataInserted, Entry: rec.Entry()})
	}
	for _, rec := range stats.InsertedNew {
		entry := rec.Entry()
		if err := e.notifyInsert(ctx, entry.Start); err != nil {
			e.emitError(err.Error())
		}
	}
	for i, rec := range stats.UpdatedNew {
		old := stats.UpdatedOld[i]
		mask := syncFieldDiff(old, rec)
		if old.Start == nil {
			continue
		}
		if mask.Has(model.StartTime) && rec.Start != nil {
			if err := e.notifyEditStart(ctx, *rec.Start, *old.Start, mask); err != nil {
				e.emitError(err.Error())
			}
		} else {
			if err := e.notifyEditNoStart(ctx, *old.Start, mask); err != nil {
				e.emitError(err.Error())
			}
		}
	}

	// dataSynced carries the caller's original, unfiltered batch — not the
	// classified/applied subset — matching TimeLogHistoryWorker.cpp's
	// sync(), which emits dataSynced(updatedData, removedData) using its
	// own input parameters regardless of what LWW ended up applying.
	e.publish(events.Event{
		Kind:          events.DataSynced,
		SyncedUpdated: updated,
		SyncedRemoved: removed,
	})

	return stats, nil
}

// syncFieldDiff computes the field-wise mask of what changed between a
// peer's old and new sync records (StartTime/Category/Comment), so update
// notifications use the old start position and only the fields that
// actually moved.
func syncFieldDiff(old, new model.SyncRecord) model.Fields {
	var mask model.Fields
	if !ptrInt64Equal(old.Start, new.Start) {
		mask |= model.StartTime
	}
	if !ptrStringEqual(old.Category, new.Category) {
		mask |= model.Category
	}
	if !ptrStringEqual(old.Comment, new.Comment) {
		mask |= model.Comment
	}
	return mask
}

func ptrInt64Equal(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func ptrStringEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
