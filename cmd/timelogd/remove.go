package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:     "remove <uuid>",
	GroupID: "mutate",
	Short:   "Remove a live entry",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid uuid %q: %w", args[0], err)
		}
		if err := eng.Remove(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("%s removed %s\n", RenderPass("✓"), id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
