package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kestrel-tools/timelogd/internal/timelog/engine"
	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

// fakeSyncer records every batch handed to it without touching storage.
type fakeSyncer struct {
	mu       sync.Mutex
	updated  [][]model.SyncRecord
	removed  [][]model.SyncRecord
	callDone chan struct{}
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{callDone: make(chan struct{}, 16)}
}

func (f *fakeSyncer) Sync(_ context.Context, updated, removed []model.SyncRecord) (engine.SyncStats, error) {
	f.mu.Lock()
	f.updated = append(f.updated, updated)
	f.removed = append(f.removed, removed)
	f.mu.Unlock()
	f.callDone <- struct{}{}
	return engine.SyncStats{}, nil
}

func (f *fakeSyncer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updated)
}

func writeBatch(t *testing.T, dir, name string, records []wireRecord) string {
	t.Helper()
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal batch: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	return path
}

func TestNewWatcher(t *testing.T) {
	w, err := New(t.TempDir(), newFakeSyncer(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()
	if w.IsRunning() {
		t.Error("newly created watcher should not be running")
	}
}

func TestWatcherStartStop(t *testing.T) {
	inbox := filepath.Join(t.TempDir(), "inbox")
	w, err := New(inbox, newFakeSyncer(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.IsRunning() {
		t.Error("watcher should be running after Start")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher should not be running after Stop")
	}
}

func TestWatcherDrainsExistingBatchOnStart(t *testing.T) {
	inbox := t.TempDir()
	start := int64(100)
	cat := "work"
	writeBatch(t, inbox, "batch1.json", []wireRecord{{UUID: model.NewUUID(), Start: &start, Category: &cat, MTime: 1000}})

	syncer := newFakeSyncer()
	w, err := New(inbox, syncer, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	select {
	case <-syncer.callDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pre-existing batch to be applied")
	}
	if syncer.calls() != 1 {
		t.Errorf("calls = %d, want 1", syncer.calls())
	}
}

func TestWatcherAppliesDroppedBatch(t *testing.T) {
	inbox := t.TempDir()
	syncer := newFakeSyncer()
	w, err := New(inbox, syncer, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeBatch(t, inbox, "dropped.json", []wireRecord{{UUID: model.NewUUID(), Start: nil, MTime: 2000}})

	select {
	case <-syncer.callDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dropped batch to be applied")
	}

	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	if len(syncer.removed) != 1 || len(syncer.removed[0]) != 1 {
		t.Errorf("removed batches = %+v, want one removal", syncer.removed)
	}
	if len(syncer.updated) != 1 || len(syncer.updated[0]) != 0 {
		t.Errorf("updated batches = %+v, want none", syncer.updated)
	}
}
