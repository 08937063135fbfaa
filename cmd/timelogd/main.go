// Command timelogd is a durable, local-first time-tracking CLI backed by
// the internal/timelog engine.
package main

func main() {
	Execute()
}
