package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/kestrel-tools/timelogd/internal/timelog/events"
	"github.com/kestrel-tools/timelogd/internal/timelog/model"
	"github.com/kestrel-tools/timelogd/internal/timelog/storage"
)

// Engine owns a *storage.DB, the in-memory scalar state (size, categories,
// undo stack) derived from it, and the event emitter observers subscribe
// to. It is constructed once per process against an already-open,
// schema-initialized database and closed on shutdown.
type Engine struct {
	db          *storage.DB
	emitter     *events.Emitter
	ownsEmitter bool
	logger      *log.Logger
	separator   string

	size       int
	categories map[string]struct{}
	undo       *undoStack
}

// New constructs an Engine over db. emitter may be nil, in which case a
// fresh synchronous emitter is created and owned by the Engine (Close marks
// it closed); pass a shared emitter when the caller (e.g.
// a dashboard broadcaster) needs to subscribe before the Engine exists. If
// logger is nil, a default logger writing to stderr is used, matching the
// teacher's sync.New(database, logger) convention. separator is the
// category-hierarchy separator used by GetStats; an empty string defaults
// to "/".
func New(db *storage.DB, emitter *events.Emitter, logger *log.Logger, separator string) (*Engine, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)
	}
	if separator == "" {
		separator = "/"
	}
	ownsEmitter := emitter == nil
	if ownsEmitter {
		emitter = events.New(32)
	}

	e := &Engine{
		db:          db,
		emitter:     emitter,
		ownsEmitter: ownsEmitter,
		logger:      logger,
		separator:   separator,
		categories:  make(map[string]struct{}),
		undo:        newUndoStack(10),
	}

	if err := e.loadScalarState(context.Background()); err != nil {
		return nil, fmt.Errorf("load initial state: %w", err)
	}
	return e, nil
}

// loadScalarState populates size and categories from the current contents
// of the database. Called once at construction.
func (e *Engine) loadScalarState(ctx context.Context) error {
	rows, err := e.db.RawDB().QueryContext(ctx, "SELECT category FROM timelog")
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var cat string
		if err := rows.Scan(&cat); err != nil {
			return fmt.Errorf("scan category: %w", err)
		}
		e.categories[cat] = struct{}{}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	e.size = count
	return nil
}

// Close stops the owned emitter (if any) and closes the underlying
// database. It does not close an emitter passed in explicitly to New.
func (e *Engine) Close() error {
	if e.ownsEmitter {
		e.emitter.Close()
	}
	return e.db.Close()
}

// Subscribe registers handler with the Engine's emitter.
func (e *Engine) Subscribe(handler events.Handler) events.Token {
	return e.emitter.Subscribe(handler)
}

// Unsubscribe removes a previously registered handler.
func (e *Engine) Unsubscribe(tok events.Token) {
	e.emitter.Unsubscribe(tok)
}

// Size returns the current number of live rows.
func (e *Engine) Size() int {
	return e.size
}

// Categories returns the current distinct category set, sorted for
// deterministic output.
func (e *Engine) Categories() []string {
	out := make([]string, 0, len(e.categories))
	for c := range e.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) publish(ev events.Event) {
	e.emitter.Publish(ev)
}

func (e *Engine) emitError(msg string) {
	e.logger.Printf("error: %s", msg)
	e.publish(events.Event{Kind: events.Error, Message: msg})
}

// setSize updates the in-memory row count and emits sizeChanged if it
// actually moved.
func (e *Engine) setSize(n int) {
	if n == e.size {
		return
	}
	e.size = n
	e.publish(events.Event{Kind: events.SizeChanged, Size: n})
}

// addCategory records cat in the in-memory set and emits categoriesChanged
// if it wasn't already present.
func (e *Engine) addCategory(cat string) {
	if _, ok := e.categories[cat]; ok {
		return
	}
	e.categories[cat] = struct{}{}
	e.publish(events.Event{Kind: events.CategoriesChanged, Categories: e.Categories()})
}

// rebuildCategories recomputes the category set from storage and emits
// categoriesChanged unconditionally (editCategory's contract: the set is
// rebuilt wholesale, not diffed).
func (e *Engine) rebuildCategories(ctx context.Context) error {
	rows, err := e.db.RawDB().QueryContext(ctx, "SELECT DISTINCT category FROM timelog")
	if err != nil {
		return fmt.Errorf("rebuild categories: %w", err)
	}
	defer rows.Close()

	fresh := make(map[string]struct{})
	for rows.Next() {
		var cat string
		if err := rows.Scan(&cat); err != nil {
			return fmt.Errorf("scan category: %w", err)
		}
		fresh[cat] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	e.categories = fresh
	e.publish(events.Event{Kind: events.CategoriesChanged, Categories: e.Categories()})
	return nil
}

// refreshSize re-counts live rows from storage and emits sizeChanged if it
// moved. Used after operations (import, sync) that don't track the delta
// incrementally.
func (e *Engine) refreshSize(ctx context.Context) error {
	var n int
	err := e.db.RawDB().QueryRowContext(ctx, "SELECT count(*) FROM timelog").Scan(&n)
	if err != nil {
		return fmt.Errorf("count rows: %w", err)
	}
	e.setSize(n)
	return nil
}

// abort rolls back tx (if non-nil — a nil tx means the failure happened
// before a transaction was opened, e.g. a lookup query), clears the undo
// stack, and emits the storage-failure error plus dataOutdated, so
// observers holding cached state know it can no longer be trusted.
func (e *Engine) abort(tx *sql.Tx, op string, cause error) error {
	if tx != nil {
		_ = tx.Rollback()
	}
	e.undo.clear()
	wrapped := model.NewStorageFailure(op, cause)
	e.emitError(wrapped.Error())
	e.publish(events.Event{Kind: events.DataOutdated})
	return wrapped
}
