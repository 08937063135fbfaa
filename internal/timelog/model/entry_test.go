package model

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestFieldsHas(t *testing.T) {
	tests := []struct {
		name string
		mask Fields
		want Fields
		has  bool
	}{
		{"exact match", StartTime, StartTime, true},
		{"subset", StartTime | Category, StartTime, true},
		{"missing bit", Category | Comment, StartTime, false},
		{"all fields contains category", AllFields, Category, true},
		{"no fields matches nothing but itself", NoFields, NoFields, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mask.Has(tt.want); got != tt.has {
				t.Errorf("Has() = %v, want %v", got, tt.has)
			}
		})
	}
}

func TestSyncRecordValidLive(t *testing.T) {
	start := int64(100)

	tests := []struct {
		name      string
		rec       SyncRecord
		wantValid bool
		wantLive  bool
	}{
		{"empty record", SyncRecord{}, false, false},
		{"tombstone", SyncRecord{UUID: uuid.New(), MTime: 1000}, true, false},
		{"live record", SyncRecord{UUID: uuid.New(), Start: &start, MTime: 1000}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Valid(); got != tt.wantValid {
				t.Errorf("Valid() = %v, want %v", got, tt.wantValid)
			}
			if got := tt.rec.Live(); got != tt.wantLive {
				t.Errorf("Live() = %v, want %v", got, tt.wantLive)
			}
		})
	}
}

func TestSyncRecordEntry(t *testing.T) {
	start := int64(500)
	category := "work/email"
	comment := "triage"
	rec := SyncRecord{UUID: uuid.New(), Start: &start, Category: &category, Comment: &comment, MTime: 42}

	e := rec.Entry()
	if e.UUID != rec.UUID {
		t.Errorf("Entry().UUID = %v, want %v", e.UUID, rec.UUID)
	}
	if e.Start != start {
		t.Errorf("Entry().Start = %v, want %v", e.Start, start)
	}
	if e.Category != category {
		t.Errorf("Entry().Category = %v, want %v", e.Category, category)
	}
	if e.Comment != comment {
		t.Errorf("Entry().Comment = %v, want %v", e.Comment, comment)
	}
	if e.MTime != 42 {
		t.Errorf("Entry().MTime = %v, want 42", e.MTime)
	}
}

func TestEntryRunning(t *testing.T) {
	if !(Entry{Duration: -1}).Running() {
		t.Error("Running() = false, want true for duration -1")
	}
	if (Entry{Duration: 60}).Running() {
		t.Error("Running() = true, want false for duration 60")
	}
}

func TestErrorKindString(t *testing.T) {
	tests := map[ErrorKind]string{
		InvalidArgument:     "invalid argument",
		StorageFailure:      "storage failure",
		ConflictSuppressed:  "conflict suppressed",
		ErrorKind(99):       "unknown",
	}
	for kind, want := range tests {
		if got := kind.String(); got != want {
			t.Errorf("String() = %v, want %v", got, want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageFailure("commit failed", cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is() = false, want true")
	}

	var target *Error
	if !errors.As(err, &target) {
		t.Fatal("errors.As() = false, want true")
	}
	if target.Kind != StorageFailure {
		t.Errorf("Kind = %v, want StorageFailure", target.Kind)
	}
}

func TestNewInvalidArgument(t *testing.T) {
	err := NewInvalidArgument("empty category name")
	if err.Kind != InvalidArgument {
		t.Errorf("Kind = %v, want InvalidArgument", err.Kind)
	}
	if err.Err != nil {
		t.Errorf("Err = %v, want nil", err.Err)
	}
}
