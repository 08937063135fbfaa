package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	GroupID: "mutate",
	Short:   "Manage categories",
}

var categoryRenameCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename every live entry in one category to another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldName, newName := args[0], args[1]

		if !flagYes && isInteractive() {
			var confirmed bool
			err := huh.NewForm(
				huh.NewGroup(
					huh.NewConfirm().
						Title(fmt.Sprintf("Rename every entry in %q to %q?", oldName, newName)).
						Affirmative("Yes").
						Negative("No").
						Value(&confirmed),
				),
			).Run()
			if err != nil {
				return fmt.Errorf("confirmation prompt: %w", err)
			}
			if !confirmed {
				fmt.Println(RenderDim("aborted"))
				return nil
			}
		}

		if err := eng.EditCategory(context.Background(), oldName, newName); err != nil {
			return err
		}
		fmt.Printf("%s renamed %q to %q\n", RenderPass("✓"), oldName, newName)
		return nil
	},
}

func init() {
	categoryCmd.AddCommand(categoryRenameCmd)
	rootCmd.AddCommand(categoryCmd)
}
