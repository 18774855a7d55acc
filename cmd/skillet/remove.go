package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillet/pkg/presenter"
)

var removeCmd = &cobra.Command{
	Use:   "remove <folder>",
	Short: "Remove a skill bundle",
	Long: `Remove a skill bundle by folder name, deleting its directory and its
configuration entry. Example skills cannot be removed, only disabled.

Examples:
  skillet remove pdf-processing`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		settings, err := loadSettings()
		if err != nil {
			presenter.Error(err, "Failed to load settings")
			os.Exit(1)
		}
		manager, cleanup, err := newManager(ctx, settings)
		if err != nil {
			presenter.Error(err, "Failed to initialize skill manager")
			os.Exit(1)
		}
		defer cleanup()

		if _, err := manager.Reconcile(ctx); err != nil {
			presenter.Error(err, "Failed to reconcile skill library")
			os.Exit(1)
		}

		if err := manager.Delete(ctx, args[0]); err != nil {
			presenter.Error(err, "Failed to remove skill")
			os.Exit(1)
		}

		presenter.Success(fmt.Sprintf("Removed skill bundle '%s'", args[0]))
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
