package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillet/pkg/history"
	"github.com/jingkaihe/skillet/pkg/presenter"
)

// HistoryConfig holds configuration for the history command
type HistoryConfig struct {
	Limit      int
	JSONOutput bool
}

// NewHistoryConfig creates a new HistoryConfig with default values
func NewHistoryConfig() *HistoryConfig {
	return &HistoryConfig{
		Limit:      history.DefaultLimit,
		JSONOutput: false,
	}
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent skill library changes",
	Long: `Show the most recent changes recorded for the current user: imports,
writes, removals, toggles, and scope updates.

Examples:
  skillet history
  skillet history --limit 10
  skillet history --json`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getHistoryConfigFromFlags(cmd)

		settings, err := loadSettings()
		if err != nil {
			presenter.Error(err, "Failed to load settings")
			os.Exit(1)
		}

		store, err := history.Open(ctx, settings.DBPath)
		if err != nil {
			presenter.Error(err, "Failed to open history store")
			os.Exit(1)
		}
		defer store.Close()

		events, err := store.Recent(ctx, settings.User, config.Limit)
		if err != nil {
			presenter.Error(err, "Failed to query history")
			os.Exit(1)
		}

		if config.JSONOutput {
			out, err := json.MarshalIndent(events, "", "  ")
			if err != nil {
				presenter.Error(err, "Failed to render history")
				os.Exit(1)
			}
			fmt.Println(string(out))
			return
		}

		if len(events) == 0 {
			presenter.Info("No history recorded yet")
			return
		}
		renderHistoryTable(os.Stdout, events)
	},
}

func init() {
	defaults := NewHistoryConfig()
	historyCmd.Flags().IntP("limit", "n", defaults.Limit, "Maximum number of events to show")
	historyCmd.Flags().Bool("json", defaults.JSONOutput, "Output in JSON format")
	rootCmd.AddCommand(withTracing(historyCmd))
}

// getHistoryConfigFromFlags extracts history configuration from command flags
func getHistoryConfigFromFlags(cmd *cobra.Command) *HistoryConfig {
	config := NewHistoryConfig()

	if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}

	return config
}

func renderHistoryTable(w io.Writer, events []history.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tSKILL\tDETAIL")
	fmt.Fprintln(tw, "----\t------\t-----\t------")

	for _, event := range events {
		detail := event.Detail
		if len(detail) > 60 {
			detail = strings.TrimSpace(detail[:57]) + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			event.OccurredAt.Format(time.RFC3339),
			event.Action,
			event.SkillName,
			detail,
		)
	}
	tw.Flush()
}
