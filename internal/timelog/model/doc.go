// Package model defines the value types shared across the timelog engine.
//
// # Entries and tombstones
//
// An Entry marks the start of an activity; its Duration and
// PrecedingStart fields are derived from neighbouring rows: Duration is
// kept up to date in storage by triggers, and PrecedingStart is computed
// at read time. A uuid that has been removed is
// represented by a tombstone: a SyncRecord with Start == nil.
//
// # Field masks
//
//	mask := StartTime | Category
//	if mask.Has(StartTime) { ... }
//
// # Errors
//
//	err := model.NewInvalidArgument("empty category name")
//	var e *model.Error
//	if errors.As(err, &e) && e.Kind == model.InvalidArgument { ... }
package model
