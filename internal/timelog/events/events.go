// Package events implements the typed publish/subscribe mechanism the
// timelog engine uses to notify observers of state changes. Publish calls
// each registered handler directly and returns once every handler has run;
// there is no internal queue, so delivery order always matches publish
// order and a handler observes exactly the state the engine had when it
// published.
package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

// Kind identifies the variant of an Event.
type Kind int

const (
	Error Kind = iota
	DataInserted
	DataImported
	DataRemoved
	DataUpdated
	DataOutdated
	DataSynced
	SizeChanged
	CategoriesChanged
	UndoCountChanged
	HistoryRequestCompleted
	StatsDataAvailable
	SyncDataAvailable
	SyncStatsAvailable
)

func (k Kind) String() string {
	switch k {
	case Error:
		return "error"
	case DataInserted:
		return "dataInserted"
	case DataImported:
		return "dataImported"
	case DataRemoved:
		return "dataRemoved"
	case DataUpdated:
		return "dataUpdated"
	case DataOutdated:
		return "dataOutdated"
	case DataSynced:
		return "dataSynced"
	case SizeChanged:
		return "sizeChanged"
	case CategoriesChanged:
		return "categoriesChanged"
	case UndoCountChanged:
		return "undoCountChanged"
	case HistoryRequestCompleted:
		return "historyRequestCompleted"
	case StatsDataAvailable:
		return "statsDataAvailable"
	case SyncDataAvailable:
		return "syncDataAvailable"
	case SyncStatsAvailable:
		return "syncStatsAvailable"
	default:
		return "unknown"
	}
}

var kindByName = map[string]Kind{
	"error":                   Error,
	"dataInserted":            DataInserted,
	"dataImported":            DataImported,
	"dataRemoved":             DataRemoved,
	"dataUpdated":             DataUpdated,
	"dataOutdated":            DataOutdated,
	"dataSynced":              DataSynced,
	"sizeChanged":             SizeChanged,
	"categoriesChanged":       CategoriesChanged,
	"undoCountChanged":        UndoCountChanged,
	"historyRequestCompleted": HistoryRequestCompleted,
	"statsDataAvailable":      StatsDataAvailable,
	"syncDataAvailable":       SyncDataAvailable,
	"syncStatsAvailable":      SyncStatsAvailable,
}

// MarshalJSON renders a Kind as its String() name rather than its ordinal,
// so wire consumers (the dashboard's websocket clients) see a stable name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	kind, ok := kindByName[name]
	if !ok {
		return fmt.Errorf("events: unknown kind %q", name)
	}
	*k = kind
	return nil
}

// Event is a single published notification. Only the fields relevant to
// Kind are populated; the rest are left at their zero value.
type Event struct {
	Kind Kind

	Message string // Error

	Entry     model.Entry   // DataInserted, DataRemoved
	Entries   []model.Entry // DataImported, DataUpdated, HistoryRequestCompleted
	Fields    []model.Fields
	RequestID int64 // HistoryRequestCompleted

	Size       int      // SizeChanged
	Categories []string // CategoriesChanged
	UndoCount  int      // UndoCountChanged

	Stats []model.StatsRow // StatsDataAvailable
	End   int64            // StatsDataAvailable, SyncDataAvailable

	SyncRecords []model.SyncRecord // SyncDataAvailable

	SyncedUpdated []model.SyncRecord // DataSynced
	SyncedRemoved []model.SyncRecord

	RemovedOld, RemovedNew   []model.SyncRecord // SyncStatsAvailable
	InsertedOld, InsertedNew []model.SyncRecord
	UpdatedOld, UpdatedNew   []model.SyncRecord
}

// Handler receives published events. It runs on the publisher's goroutine
// and must not call back into the engine that owns the Emitter — the
// engine is not reentrant.
type Handler func(Event)

// Token identifies a registered Handler for later Unsubscribe.
type Token int

// Emitter is a synchronous, multi-reader event bus: Publish calls every
// subscribed Handler in registration order on the calling goroutine before
// returning. The zero value is not usable; construct with New.
type Emitter struct {
	mu       sync.Mutex
	handlers map[Token]Handler
	order    []Token
	next     Token
	closed   bool
}

// New starts an Emitter. The historical queue-depth parameter is gone —
// delivery is synchronous — but New keeps its signature so callers that
// pass a capacity hint (sized for the largest single notification burst)
// still compile; the value is ignored.
func New(_ int) *Emitter {
	return &Emitter{handlers: make(map[Token]Handler)}
}

// Subscribe registers handler to receive every future event, in the order
// Publish was called. It returns a Token for Unsubscribe.
func (e *Emitter) Subscribe(handler Handler) Token {
	e.mu.Lock()
	defer e.mu.Unlock()
	tok := e.next
	e.next++
	e.handlers[tok] = handler
	e.order = append(e.order, tok)
	return tok
}

// Unsubscribe removes a previously registered handler. It is a no-op if
// tok is unknown.
func (e *Emitter) Unsubscribe(tok Token) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, tok)
	for i, t := range e.order {
		if t == tok {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Publish calls every currently-subscribed handler with ev, in
// registration order, and returns once all of them have run. It is a
// no-op after Close.
func (e *Emitter) Publish(ev Event) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	handlers := make([]Handler, 0, len(e.order))
	for _, tok := range e.order {
		handlers = append(handlers, e.handlers[tok])
	}
	e.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Close marks the Emitter closed; subsequent Publish calls are no-ops.
// There is no background goroutine to drain.
func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}
