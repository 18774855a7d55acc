package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLET")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillet")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "skillet",
	Short: "Skillet manages a library of agent skill bundles",
	Long: `Skillet maintains a library of agent "skill" bundles: directories carrying
a SKILL.md descriptor plus any supporting files. It keeps the bundles on
disk, the per-user configuration, and the working list consistent, and
imports new bundles from zip or tar.gz archives.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			return err
		}
		logger.SetLogFormat(viper.GetString("log_format"))

		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to initialize tracing")
			return nil
		}
		tracingShutdown = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if tracingShutdown != nil {
			if err := tracingShutdown(cmd.Context()); err != nil {
				logger.G(cmd.Context()).WithError(err).Debug("failed to shut down tracing")
			}
		}
	},
	// Default behavior is to show help if no arguments are provided
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var tracingShutdown func(context.Context) error

func main() {
	// Add global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (json, text, fmt)")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
