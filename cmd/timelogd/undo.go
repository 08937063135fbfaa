package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var undoCmd = &cobra.Command{
	Use:     "undo",
	GroupID: "mutate",
	Short:   "Undo the most recent insert, remove, edit, or category rename",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.Undo(context.Background()); err != nil {
			return err
		}
		fmt.Println(RenderPass("✓") + " undone")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(undoCmd)
}
