package engine

import (
	"context"
	"fmt"

	"github.com/kestrel-tools/timelogd/internal/timelog/events"
)

// GetHistoryBetween queries live entries with start in [begin, end],
// optionally filtered to an exact category, and emits
// historyRequestCompleted(entries, requestID). requestID lets a caller
// correlate the async-shaped completion event with the call that triggered
// it.
func (e *Engine) GetHistoryBetween(ctx context.Context, requestID int64, begin, end int64, category string) error {
	entries, err := e.db.GetHistoryBetween(ctx, begin, end, category)
	if err != nil {
		e.emitError(fmt.Sprintf("getHistoryBetween: %v", err))
		e.publish(events.Event{Kind: events.HistoryRequestCompleted, RequestID: requestID})
		return nil
	}
	e.publish(events.Event{Kind: events.HistoryRequestCompleted, Entries: entries, RequestID: requestID})
	return nil
}

// GetHistoryAfter queries up to limit entries strictly after from,
// ascending by start.
func (e *Engine) GetHistoryAfter(ctx context.Context, requestID int64, from int64, limit int) error {
	entries, err := e.db.GetHistoryAfter(ctx, from, limit)
	if err != nil {
		e.emitError(fmt.Sprintf("getHistoryAfter: %v", err))
		e.publish(events.Event{Kind: events.HistoryRequestCompleted, RequestID: requestID})
		return nil
	}
	e.publish(events.Event{Kind: events.HistoryRequestCompleted, Entries: entries, RequestID: requestID})
	return nil
}

// GetHistoryBefore queries up to limit entries strictly before until,
// reversed to ascending order before returning.
func (e *Engine) GetHistoryBefore(ctx context.Context, requestID int64, until int64, limit int) error {
	entries, err := e.db.GetHistoryBefore(ctx, until, limit)
	if err != nil {
		e.emitError(fmt.Sprintf("getHistoryBefore: %v", err))
		e.publish(events.Event{Kind: events.HistoryRequestCompleted, RequestID: requestID})
		return nil
	}
	e.publish(events.Event{Kind: events.HistoryRequestCompleted, Entries: entries, RequestID: requestID})
	return nil
}

// GetStats aggregates durations by category bucket over [begin, end],
// optionally scoped to category, using the engine's configured separator.
func (e *Engine) GetStats(ctx context.Context, begin, end int64, category string) error {
	rows, err := e.db.GetStats(ctx, begin, end, category, e.separator)
	if err != nil {
		e.emitError(fmt.Sprintf("getStats: %v", err))
		e.publish(events.Event{Kind: events.StatsDataAvailable, End: end})
		return nil
	}
	e.publish(events.Event{Kind: events.StatsDataAvailable, Stats: rows, End: end})
	return nil
}

// GetSyncData returns every change with mtime in (mBegin, mEnd], the batch
// a replica hands to a peer's Sync.
func (e *Engine) GetSyncData(ctx context.Context, mBegin, mEnd int64) error {
	records, err := e.db.GetSyncData(ctx, mBegin, mEnd)
	if err != nil {
		e.emitError(fmt.Sprintf("getSyncData: %v", err))
		e.publish(events.Event{Kind: events.SyncDataAvailable, End: mEnd})
		return nil
	}
	e.publish(events.Event{Kind: events.SyncDataAvailable, SyncRecords: records, End: mEnd})
	return nil
}
