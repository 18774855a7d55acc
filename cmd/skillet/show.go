package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillet/pkg/presenter"
)

var showCmd = &cobra.Command{
	Use:   "show <skill-name>",
	Short: "Show a skill's descriptor",
	Long: `Show a skill's metadata and full descriptor content.

Examples:
  skillet show "PDF Processing"`,
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

		skill, err := manager.Get(args[0])
		if err != nil {
			presenter.Error(err, "Skill not found")
			os.Exit(1)
		}

		content, err := manager.LoadContent(ctx, skill.DirName)
		if err != nil {
			presenter.Error(err, "Failed to read skill descriptor")
			os.Exit(1)
		}

		presenter.Section(skill.Name)
		presenter.Info(fmt.Sprintf("Folder:  %s", skill.DirName))
		presenter.Info(fmt.Sprintf("Enabled: %t", skill.Enabled))
		presenter.Info(fmt.Sprintf("Scope:   %s", formatScope(skill.Scope)))
		if skill.IsExample {
			presenter.Info("Example: yes (cannot be deleted)")
		}
		presenter.Separator()
		fmt.Println(content)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
