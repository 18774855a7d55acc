package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillet/pkg/presenter"
)

var filesCmd = &cobra.Command{
	Use:   "files <folder>",
	Short: "List the files inside a skill bundle",
	Long: `List the files inside a skill bundle, as paths relative to the bundle
folder.

Examples:
  skillet files pdf-processing`,
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

		files, err := manager.ListFiles(ctx, args[0])
		if err != nil {
			presenter.Error(err, "Failed to list bundle files")
			os.Exit(1)
		}

		for _, f := range files {
			fmt.Println(f)
		}
	},
}

func init() {
	rootCmd.AddCommand(filesCmd)
}
