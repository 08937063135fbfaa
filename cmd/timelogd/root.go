package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kestrel-tools/timelogd/internal/timelog/config"
	"github.com/kestrel-tools/timelogd/internal/timelog/engine"
	"github.com/kestrel-tools/timelogd/internal/timelog/logging"
	"github.com/kestrel-tools/timelogd/internal/timelog/natural"
	"github.com/kestrel-tools/timelogd/internal/timelog/storage"
)

var (
	cfg    config.Config
	eng    *engine.Engine
	parser *natural.Parser

	flagDataPath string
	flagYes      bool
)

var rootCmd = &cobra.Command{
	Use:   "timelogd",
	Short: "A durable, local-first time-tracking history engine",
	Long: `timelogd tracks a chronologically ordered sequence of time-log entries.

Every insert opens a new entry and implicitly closes the previous one;
duration is always derived, never set directly. Entries can be edited,
removed, and undone, and replicas exchange changes with last-writer-wins
conflict resolution on a per-record modification timestamp.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		teardown()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "mutate", Title: "Mutating commands:"},
		&cobra.Group{ID: "query", Title: "Query commands:"},
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced commands:"},
	)

	rootCmd.PersistentFlags().StringVar(&flagDataPath, "data-path", "", "override the configured data directory")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "skip interactive confirmation prompts")
}

// Execute runs the command tree, exiting the process on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, RenderFail("✗")+" "+err.Error())
		os.Exit(1)
	}
}

// setup loads configuration and wires up the engine shared by every
// subcommand. It runs once per invocation via PersistentPreRunE.
func setup() error {
	v := viper.New()
	if flagDataPath != "" {
		v.SetDefault("data_path", flagDataPath)
	}

	loaded, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = loaded

	logger, err := logging.New("[timelogd] ", logging.Options{Dir: cfg.DataPath + "/log"})
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}

	db, err := storage.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.InitSchema(context.Background()); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	eng, err = engine.New(db, nil, logger, cfg.CategorySeparator)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	parser = natural.New()
	return nil
}

func teardown() {
	if eng != nil {
		_ = eng.Close()
	}
}
