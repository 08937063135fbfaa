// Package engine implements the command surface of the timelog history
// store: insert/import/remove/edit/editCategory/undo, range and statistics
// queries, and last-writer-wins synchronization with a peer replica.
//
// An Engine dispatches commands serially against a *storage.DB and
// publishes every observable change through an *events.Emitter. It is not
// safe for concurrent command dispatch — exactly one goroutine may call
// into an Engine at a time, matching the single-worker scheduling model the
// store was designed around. Consumers of engine events (a websocket
// broadcaster, a CLI) never call back into the engine from inside a
// Handler.
//
// Example:
//
//	database, err := storage.Open(dbPath)
//	...
//	eng, err := engine.New(database, nil, logger, "/")
//	...
//	defer eng.Close()
//	eng.Subscribe(func(ev events.Event) { ... })
//	eng.Insert(ctx, model.Entry{UUID: model.NewUUID(), Start: 100, Category: "work"})
package engine
