package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kestrel-tools/timelogd/internal/timelog/events"
	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

var flagStatsCategory string

var statsCmd = &cobra.Command{
	Use:     "stats <begin> <end>",
	GroupID: "query",
	Short:   "Sum durations by category over [begin, end] (unix seconds)",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		begin, end, err := parseRange(args[0], args[1])
		if err != nil {
			return err
		}
		ev := capture(events.StatsDataAvailable, func() {
			_ = eng.GetStats(context.Background(), begin, end, flagStatsCategory)
		})
		printStats(ev.Stats)
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&flagStatsCategory, "category", "", "restrict to a category prefix")
	rootCmd.AddCommand(statsCmd)
}

func printStats(rows []model.StatsRow) {
	if len(rows) == 0 {
		fmt.Println(RenderDim("no data"))
		return
	}
	var total int64
	for _, r := range rows {
		fmt.Printf("%-30s %s\n", r.Category, time.Duration(r.Duration*int64(time.Second)))
		total += r.Duration
	}
	fmt.Printf("%-30s %s\n", RenderAccent("total"), time.Duration(total*int64(time.Second)))
}
