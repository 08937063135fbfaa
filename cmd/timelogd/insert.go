package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

var flagInsertAt string

var insertCmd = &cobra.Command{
	Use:     "insert <category> [comment...]",
	GroupID: "mutate",
	Short:   "Start a new entry, implicitly closing the currently running one",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := resolveAt(flagInsertAt)
		if err != nil {
			return err
		}

		entry := model.Entry{
			UUID:     model.NewUUID(),
			Start:    start,
			Category: args[0],
			Comment:  strings.Join(args[1:], " "),
		}

		if err := eng.Insert(context.Background(), entry); err != nil {
			return err
		}
		fmt.Printf("%s inserted %s at %s\n", RenderPass("✓"), entry.Category, time.Unix(entry.Start, 0).Format(time.RFC3339))
		return nil
	},
}

func init() {
	insertCmd.Flags().StringVar(&flagInsertAt, "at", "", `when this entry starts, e.g. "9am" or "yesterday 18:30" (default: now)`)
	rootCmd.AddCommand(insertCmd)
}

// resolveAt parses expr with the natural-language parser, defaulting to
// the current time when expr is empty.
func resolveAt(expr string) (int64, error) {
	now := time.Now()
	if expr == "" {
		return now.Unix(), nil
	}
	return parser.Parse(expr, now)
}
