package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-tools/timelogd/internal/timelog/events"
	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	GroupID: "query",
	Short:   "Query the entry history",
}

var (
	flagHistoryCategory string
	flagHistoryLimit    int
)

var historyBetweenCmd = &cobra.Command{
	Use:   "between <begin> <end>",
	Short: "List entries with start in [begin, end] (unix seconds)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		begin, end, err := parseRange(args[0], args[1])
		if err != nil {
			return err
		}
		ev := capture(events.HistoryRequestCompleted, func() {
			_ = eng.GetHistoryBetween(context.Background(), 0, begin, end, flagHistoryCategory)
		})
		printEntries(ev.Entries)
		return nil
	},
}

var historyAfterCmd = &cobra.Command{
	Use:   "after <from>",
	Short: "List up to --limit entries strictly after from (unix seconds)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseUnix(args[0])
		if err != nil {
			return err
		}
		ev := capture(events.HistoryRequestCompleted, func() {
			_ = eng.GetHistoryAfter(context.Background(), 0, from, flagHistoryLimit)
		})
		printEntries(ev.Entries)
		return nil
	},
}

var historyBeforeCmd = &cobra.Command{
	Use:   "before <until>",
	Short: "List up to --limit entries strictly before until (unix seconds)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		until, err := parseUnix(args[0])
		if err != nil {
			return err
		}
		ev := capture(events.HistoryRequestCompleted, func() {
			_ = eng.GetHistoryBefore(context.Background(), 0, until, flagHistoryLimit)
		})
		printEntries(ev.Entries)
		return nil
	},
}

func init() {
	historyBetweenCmd.Flags().StringVar(&flagHistoryCategory, "category", "", "restrict to an exact category")
	historyAfterCmd.Flags().IntVar(&flagHistoryLimit, "limit", 50, "maximum entries to return")
	historyBeforeCmd.Flags().IntVar(&flagHistoryLimit, "limit", 50, "maximum entries to return")

	historyCmd.AddCommand(historyBetweenCmd, historyAfterCmd, historyBeforeCmd)
	rootCmd.AddCommand(historyCmd)
}

func parseUnix(s string) (int64, error) {
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid unix timestamp %q: %w", s, err)
	}
	return n, nil
}

func parseRange(beginStr, endStr string) (int64, int64, error) {
	begin, err := parseUnix(beginStr)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseUnix(endStr)
	if err != nil {
		return 0, 0, err
	}
	return begin, end, nil
}

func printEntries(entries []model.Entry) {
	if len(entries) == 0 {
		fmt.Println(RenderDim("no entries"))
		return
	}
	for _, e := range entries {
		duration := "running"
		if !e.Running() {
			duration = time.Duration(e.Duration * int64(time.Second)).String()
		}
		fmt.Printf("%s  %-24s %-10s %s\n", time.Unix(e.Start, 0).Format(time.RFC3339), e.Category, duration, e.Comment)
	}
}
