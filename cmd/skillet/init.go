package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillet/pkg/examples"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/presenter"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up the Skillet library",
	Long: `Set up the Skillet library with sensible defaults: create the library
directories, install the built-in example bundles, and seed the per-user
configuration so the examples start out enabled.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		override, _ := cmd.Flags().GetBool("override")

		presenter.Section("Skillet Library Setup")
		presenter.Info("Setting up the skill library with the built-in examples.")
		presenter.Separator()

		settings, err := loadSettings()
		if err != nil {
			presenter.Error(err, "Failed to load settings")
			os.Exit(1)
		}

		for _, dir := range []string{settings.SkillsDir, settings.ExamplesDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				presenter.Error(err, "Failed to create library directory")
				logger.G(ctx).WithError(err).WithField("dir", dir).Error("Library directory creation failed")
				os.Exit(1)
			}
		}
		logger.G(ctx).WithField("skills_dir", settings.SkillsDir).Debug("Library directories created")

		// The reference copies drive example classification; the library
		// copies are the bundles users actually see and edit.
		if _, err := examples.Materialize(ctx, settings.ExamplesDir); err != nil {
			presenter.Error(err, "Failed to install example reference copies")
			os.Exit(1)
		}
		installed, err := examples.Materialize(ctx, settings.SkillsDir)
		if err != nil {
			presenter.Error(err, "Failed to install example bundles")
			os.Exit(1)
		}
		if installed > 0 {
			presenter.Success(fmt.Sprintf("Installed %d example bundle(s) into %s", installed, settings.SkillsDir))
		} else {
			presenter.Info("Example bundles already installed")
		}

		manager, cleanup, err := newManager(ctx, settings)
		if err != nil {
			presenter.Error(err, "Failed to initialize skill manager")
			os.Exit(1)
		}
		defer cleanup()

		entries, err := examples.DefaultEntries(skilltypes.NowMillis())
		if err != nil {
			presenter.Error(err, "Failed to load default configuration entries")
			os.Exit(1)
		}
		added, err := manager.InitializeDefaults(ctx, entries)
		if err != nil {
			presenter.Error(err, "Failed to seed configuration")
			os.Exit(1)
		}
		if added > 0 {
			presenter.Success(fmt.Sprintf("Seeded configuration for %d example skill(s)", added))
		} else {
			presenter.Info("Configuration already covers the example skills")
		}

		if _, err := manager.Reconcile(ctx); err != nil {
			presenter.Error(err, "Failed to reconcile skill library")
			os.Exit(1)
		}

		presenter.Separator()

		configDir := filepath.Join(os.Getenv("HOME"), ".skillet")
		if err := os.MkdirAll(configDir, 0o755); err != nil {
			presenter.Error(err, "Failed to create config directory")
			logger.G(ctx).WithError(err).WithField("config_dir", configDir).Error("Config directory creation failed")
			os.Exit(1)
		}

		configFile := filepath.Join(configDir, "config.yaml")

		// Leave an existing config alone unless override is specified
		if !override {
			if _, err := os.Stat(configFile); err == nil {
				presenter.Warning(fmt.Sprintf("Configuration file already exists at %s", configFile))
				presenter.Info("To overwrite, use the --override flag or remove the file and run 'skillet init' again")
				printGettingStarted()
				return
			}
		}

		configContent := `log_level: info
log_format: fmt
user: default
watch_debounce: 500ms
`

		if err := os.WriteFile(configFile, []byte(configContent), 0o644); err != nil {
			presenter.Error(err, "Failed to write config file")
			logger.G(ctx).WithError(err).WithField("config_file", configFile).Error("Config file write failed")
			os.Exit(1)
		}

		if override {
			presenter.Success(fmt.Sprintf("Configuration overwritten at %s", configFile))
		} else {
			presenter.Success(fmt.Sprintf("Configuration saved to %s", configFile))
		}
		presenter.Info("You can modify these settings at any time by editing the config file")
		logger.G(ctx).WithField("config_file", configFile).Info("Configuration file created successfully")

		presenter.Separator()
		presenter.Section("Setup Complete")
		presenter.Success("The skill library has been initialized")

		printGettingStarted()

		logger.G(ctx).Info("Skillet initialization completed successfully")
	},
}

func printGettingStarted() {
	presenter.Separator()
	presenter.Section("Getting Started")
	presenter.Info("  skillet list                          # List enabled skills")
	presenter.Info("  skillet show <skill-name>             # Show a skill's descriptor")
	presenter.Info("  skillet create -n <name> -d <desc>    # Create a new skill bundle")
	presenter.Info("  skillet import bundle.zip             # Import bundles from an archive")
	presenter.Info("  skillet watch                         # Re-scan the library on file changes")
	presenter.Info("  skillet --help                        # Show all available commands")
}

func init() {
	initCmd.Flags().Bool("override", false, "Overwrite existing configuration file if it exists")
	rootCmd.AddCommand(withTracing(initCmd))
}
