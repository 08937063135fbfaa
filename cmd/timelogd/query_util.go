package main

import (
	"github.com/kestrel-tools/timelogd/internal/timelog/events"
)

// capture subscribes a handler that records the first event of kind
// delivered while fn runs, then unsubscribes. The engine's emitter
// delivers synchronously, so by the time fn (a single engine query call)
// returns, the matching event has already been captured.
func capture(kind events.Kind, fn func()) events.Event {
	var got events.Event
	tok := eng.Subscribe(func(ev events.Event) {
		if ev.Kind == kind {
			got = ev
		}
	})
	defer eng.Unsubscribe(tok)
	fn()
	return got
}
