// Package watch provides file system watching for a replica's sync inbox:
// a directory into which peers drop JSON batches of model.SyncRecord to be
// merged by the engine.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/kestrel-tools/timelogd/internal/timelog/engine"
	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

// Syncer is the subset of engine.Engine the Watcher needs. It exists so
// tests can substitute a fake without depending on a live *engine.Engine.
type Syncer interface {
	Sync(ctx context.Context, updated, removed []model.SyncRecord) (engine.SyncStats, error)
}

// wireRecord is the on-disk JSON shape of one sync batch entry: a record
// with a null start is a removal.
type wireRecord struct {
	UUID     model.UUID `json:"uuid"`
	Start    *int64     `json:"start"`
	Category *string    `json:"category"`
	Comment  *string    `json:"comment"`
	MTime    int64      `json:"mtime"`
}

func (r wireRecord) toSyncRecord() model.SyncRecord {
	return model.SyncRecord{UUID: r.UUID, Start: r.Start, Category: r.Category, Comment: r.Comment, MTime: r.MTime}
}

// Watcher watches a single inbox directory for *.json batch files, decodes
// each one into updated/removed model.SyncRecord slices, and applies it
// through a Syncer. It uses fsnotify for cross-platform file system event
// monitoring, mirroring the teacher's FileWatcher channel-pump shape but
// collapsed to a single watched directory and a single file kind.
type Watcher struct {
	watcher *fsnotify.Watcher
	syncer  Syncer
	logger  *log.Logger
	inbox   string

	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New creates a Watcher over inbox, applying decoded batches through
// syncer. logger defaults to stderr when nil.
func New(inbox string, syncer Syncer, logger *log.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}
	return &Watcher{
		watcher: fw,
		syncer:  syncer,
		logger:  logger,
		inbox:   inbox,
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the inbox directory. Any *.json files already
// present are processed once before fsnotify events are consumed, so a
// batch dropped while the watcher was stopped is not missed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	if err := os.MkdirAll(w.inbox, 0o755); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("create inbox %s: %w", w.inbox, err)
	}
	if err := w.watcher.Add(w.inbox); err != nil {
		w.mu.Unlock()
		return fmt.Errorf("watch inbox %s: %w", w.inbox, err)
	}
	w.running = true
	w.mu.Unlock()

	if err := w.drainExisting(ctx); err != nil {
		w.logger.Printf("initial inbox scan: %v", err)
	}

	w.wg.Add(1)
	go w.processEvents(ctx)
	return nil
}

// Stop stops watching and blocks until the event loop has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("close watcher: %w", err)
	}
	w.wg.Wait()
	close(w.errors)
	return nil
}

// Errors returns the channel that emits batch-processing failures. It is
// closed when the watcher stops.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) drainExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return err
	}
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		path := filepath.Join(w.inbox, ent.Name())
		if err := w.applyBatch(ctx, path); err != nil {
			w.logger.Printf("apply %s: %v", path, err)
		}
	}
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	// applied remembers the size and mtime each file had when it was last
	// applied, so the Create and Write events of one file drop apply the
	// batch once.
	applied := make(map[string]string)

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			if info, err := os.Stat(ev.Name); err == nil {
				stamp := fmt.Sprintf("%d/%d", info.Size(), info.ModTime().UnixNano())
				if applied[ev.Name] == stamp {
					continue
				}
				applied[ev.Name] = stamp
			}
			if err := w.applyBatch(ctx, ev.Name); err != nil {
				select {
				case w.errors <- err:
				case <-w.done:
					return
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// applyBatch reads path, decodes it as a JSON array of wireRecord, splits
// it into updated/removed by whether Start is present, and hands it to the
// Syncer.
func (w *Watcher) applyBatch(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var records []wireRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	var updated, removed []model.SyncRecord
	for _, r := range records {
		rec := r.toSyncRecord()
		if rec.Start == nil {
			removed = append(removed, rec)
		} else {
			updated = append(updated, rec)
		}
	}

	if _, err := w.syncer.Sync(ctx, updated, removed); err != nil {
		return fmt.Errorf("sync batch %s: %w", path, err)
	}
	w.logger.Printf("applied batch %s (%d updated, %d removed)", filepath.Base(path), len(updated), len(removed))
	return nil
}

// IsRunning reports whether the watcher is currently watching.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
