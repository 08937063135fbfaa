// Package model defines the value types shared by the timelog storage and
// engine packages: entries, sync records, statistics rows, and the field
// mask used to describe which parts of an entry a mutation or notification
// touches.
package model

import (
	"fmt"

	"github.com/google/uuid"
)

// UUID identifies an entry across replicas. It is the 16-byte RFC-4122
// binary form on disk, matching the original implementation's storage
// format exactly.
type UUID = uuid.UUID

// NewUUID generates a fresh random (v4) identifier for a new entry.
func NewUUID() UUID {
	return uuid.New()
}

// Fields is a bitset selecting which parts of an Entry are relevant to an
// edit request or a change notification.
type Fields uint8

const (
	NoFields       Fields = 0
	StartTime      Fields = 1 << 0
	DurationTime   Fields = 1 << 1
	Category       Fields = 1 << 2
	Comment        Fields = 1 << 3
	PrecedingStart Fields = 1 << 4

	AllFields = StartTime | Category | Comment
)

// Has reports whether all bits of other are set in f.
func (f Fields) Has(other Fields) bool {
	return f&other == other
}

// Entry is a single start-of-activity record in the timeline. Duration and
// PrecedingStart are derived values (Duration maintained by storage
// triggers, PrecedingStart computed on read); callers never set them
// directly on write paths.
type Entry struct {
	UUID           UUID
	Start          int64 // unix seconds, primary key / ordering key
	Category       string
	Comment        string
	Duration       int64 // seconds; -1 means open-ended (currently running)
	MTime          int64 // unix milliseconds
	PrecedingStart int64 // start of the immediately prior entry, 0 if none
}

// Running reports whether this entry is the open-ended, currently-running
// one.
func (e Entry) Running() bool {
	return e.Duration == -1
}

// SyncRecord is the wire-level shape exchanged between replicas and used
// internally to represent "the locally authoritative record for a uuid",
// which may be a live entry, a tombstone, or nothing at all.
//
// A tombstone (or the "nothing found" zero value) is distinguished from a
// live record by Start == nil.
type SyncRecord struct {
	UUID     UUID
	Start    *int64
	Category *string
	Comment  *string
	MTime    int64
}

// Valid reports whether r represents an actual record (as opposed to the
// empty placeholder used when no local record exists for a uuid).
func (r SyncRecord) Valid() bool {
	return r.UUID != uuid.Nil
}

// Live reports whether r represents a live timelog row rather than a
// tombstone.
func (r SyncRecord) Live() bool {
	return r.Valid() && r.Start != nil
}

// Entry converts a live SyncRecord into an Entry. Duration and
// PrecedingStart are left zero; callers that need the derived fields must
// re-read the row through the entry-returning query paths.
func (r SyncRecord) Entry() Entry {
	e := Entry{UUID: r.UUID, MTime: r.MTime}
	if r.Start != nil {
		e.Start = *r.Start
	}
	if r.Category != nil {
		e.Category = *r.Category
	}
	if r.Comment != nil {
		e.Comment = *r.Comment
	}
	return e
}

// StatsRow is one aggregated bucket of a statistics query: a category
// prefix and the total number of seconds logged against it.
type StatsRow struct {
	Category string
	Duration int64
}

// ErrorKind classifies engine-level failures for callers that want to
// react differently to validation, storage, and suppressed-write outcomes.
type ErrorKind int

const (
	// InvalidArgument covers empty category names, empty field masks, and
	// references to unknown uuids.
	InvalidArgument ErrorKind = iota
	// StorageFailure covers prepare/exec/transaction-commit failures
	// against the underlying database.
	StorageFailure
	// ConflictSuppressed marks a write that a trigger (or the equivalent
	// application-level guard) silently discarded because a stronger
	// last-writer-wins record already existed. It is not surfaced as an
	// error event; it exists so tests and callers can distinguish "nothing
	// happened because LWW said so" from "nothing happened because it
	// failed".
	ConflictSuppressed
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case StorageFailure:
		return "storage failure"
	case ConflictSuppressed:
		return "conflict suppressed"
	default:
		return "unknown"
	}
}

// Error is the engine's error type. Kind lets callers errors.As into a
// specific category; Err, when present, wraps the underlying cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewInvalidArgument builds an InvalidArgument error.
func NewInvalidArgument(msg string) *Error {
	return &Error{Kind: InvalidArgument, Msg: msg}
}

// NewStorageFailure wraps a storage-layer error.
func NewStorageFailure(msg string, err error) *Error {
	return &Error{Kind: StorageFailure, Msg: msg, Err: err}
}
