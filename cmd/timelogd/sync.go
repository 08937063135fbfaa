package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-tools/timelogd/internal/timelog/events"
	"github.com/kestrel-tools/timelogd/internal/timelog/model"
	"github.com/kestrel-tools/timelogd/internal/timelog/watch"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Exchange changes with peer replicas",
}

// wireRecord mirrors watch.wireRecord; it is redeclared here since the
// engine's wire format is a plain JSON shape rather than an exported type.
type wireRecord struct {
	UUID     model.UUID `json:"uuid"`
	Start    *int64     `json:"start"`
	Category *string    `json:"category"`
	Comment  *string    `json:"comment"`
	MTime    int64      `json:"mtime"`
}

func toWireRecord(r model.SyncRecord) wireRecord {
	return wireRecord{UUID: r.UUID, Start: r.Start, Category: r.Category, Comment: r.Comment, MTime: r.MTime}
}

func toSyncRecord(r wireRecord) model.SyncRecord {
	return model.SyncRecord{UUID: r.UUID, Start: r.Start, Category: r.Category, Comment: r.Comment, MTime: r.MTime}
}

var (
	flagSyncExportBegin int64
	flagSyncExportEnd   int64
)

var syncExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print every change with mtime in (begin, end] as a JSON batch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		end := flagSyncExportEnd
		if end == 0 {
			end = time.Now().UnixMilli()
		}
		ev := capture(events.SyncDataAvailable, func() {
			_ = eng.GetSyncData(context.Background(), flagSyncExportBegin, end)
		})
		wire := make([]wireRecord, 0, len(ev.SyncRecords))
		for _, r := range ev.SyncRecords {
			wire = append(wire, toWireRecord(r))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(wire)
	},
}

var syncImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Merge a peer-exported JSON batch into local state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		var wire []wireRecord
		if err := json.Unmarshal(data, &wire); err != nil {
			return fmt.Errorf("decode %s: %w", args[0], err)
		}
		var updated, removed []model.SyncRecord
		for _, r := range wire {
			rec := toSyncRecord(r)
			if rec.Start == nil {
				removed = append(removed, rec)
			} else {
				updated = append(updated, rec)
			}
		}
		stats, err := eng.Sync(context.Background(), updated, removed)
		if err != nil {
			return err
		}
		fmt.Printf("%s inserted=%d updated=%d removed=%d\n", RenderPass("✓"),
			len(stats.InsertedNew), len(stats.UpdatedNew), len(stats.RemovedNew))
		return nil
	},
}

var syncWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the inbox directory and apply peer batches as they arrive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := watch.New(cfg.InboxDir, eng, nil)
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		fmt.Printf("%s watching %s (ctrl-c to stop)\n", RenderAccent("→"), cfg.InboxDir)

		go func() {
			for err := range w.Errors() {
				fmt.Fprintf(os.Stderr, "%s %v\n", RenderWarn("!"), err)
			}
		}()

		<-ctx.Done()
		return w.Stop()
	},
}

func init() {
	syncExportCmd.Flags().Int64Var(&flagSyncExportBegin, "begin", 0, "exclusive lower mtime bound (unix ms)")
	syncExportCmd.Flags().Int64Var(&flagSyncExportEnd, "end", 0, "inclusive upper mtime bound (unix ms), 0 means now")

	syncCmd.AddCommand(syncExportCmd, syncImportCmd, syncWatchCmd)
	rootCmd.AddCommand(syncCmd)
}
