package engine

import (
	"context"

	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

// Command is the full surface a caller (CLI, watcher, dashboard) drives an
// Engine through. It is documentation of the contract as much as an
// interface: there is exactly one production implementation, and tests
// construct a real *Engine against a temp-file database rather than a
// mock, so nothing but *Engine needs to satisfy it.
type Command interface {
	Insert(ctx context.Context, e model.Entry) error
	Import(ctx context.Context, entries []model.Entry) error
	Remove(ctx context.Context, id model.UUID) error
	Edit(ctx context.Context, e model.Entry, mask model.Fields) error
	EditCategory(ctx context.Context, oldName, newName string) error
	Undo(ctx context.Context) error

	Sync(ctx context.Context, updated, removed []model.SyncRecord) (SyncStats, error)

	GetHistoryBetween(ctx context.Context, requestID int64, begin, end int64, category string) error
	GetHistoryAfter(ctx context.Context, requestID int64, from int64, limit int) error
	GetHistoryBefore(ctx context.Context, requestID int64, until int64, limit int) error
	GetStats(ctx context.Context, begin, end int64, category string) error
	GetSyncData(ctx context.Context, mBegin, mEnd int64) error

	Size() int
	Categories() []string
}

var _ Command = (*Engine)(nil)
