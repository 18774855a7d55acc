package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillet/pkg/presenter"
)

var enableCmd = &cobra.Command{
	Use:   "enable <skill-name>",
	Short: "Enable a skill",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		toggleSkillCmd(cmd, args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <skill-name>",
	Short: "Disable a skill",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		toggleSkillCmd(cmd, args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}

func toggleSkillCmd(cmd *cobra.Command, name string, enabled bool) {
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

	if err := manager.Toggle(ctx, name, enabled); err != nil {
		presenter.Error(err, "Failed to update skill")
		os.Exit(1)
	}

	state := "Enabled"
	if !enabled {
		state = "Disabled"
	}
	presenter.Success(fmt.Sprintf("%s skill '%s'", state, name))
}
