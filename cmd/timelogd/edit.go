package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kestrel-tools/timelogd/internal/timelog/model"
)

var (
	flagEditAt       string
	flagEditCategory string
	flagEditComment  string
)

var editCmd = &cobra.Command{
	Use:     "edit <uuid>",
	GroupID: "mutate",
	Short:   "Edit a live entry's start time, category, or comment",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid uuid %q: %w", args[0], err)
		}

		entry := model.Entry{UUID: id}
		var mask model.Fields

		if flagEditAt != "" {
			start, err := resolveAt(flagEditAt)
			if err != nil {
				return err
			}
			entry.Start = start
			mask |= model.StartTime
		}
		if cmd.Flags().Changed("category") {
			entry.Category = flagEditCategory
			mask |= model.Category
		}
		if cmd.Flags().Changed("comment") {
			entry.Comment = flagEditComment
			mask |= model.Comment
		}

		if mask == model.NoFields {
			return fmt.Errorf("edit: specify at least one of --at, --category, --comment")
		}

		if err := eng.Edit(context.Background(), entry, mask); err != nil {
			return err
		}
		fmt.Printf("%s edited %s\n", RenderPass("✓"), id)
		return nil
	},
}

func init() {
	editCmd.Flags().StringVar(&flagEditAt, "at", "", "new start time, e.g. \"9am\"")
	editCmd.Flags().StringVar(&flagEditCategory, "category", "", "new category")
	editCmd.Flags().StringVar(&flagEditComment, "comment", "", "new comment")
	rootCmd.AddCommand(editCmd)
}
