package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillet/pkg/presenter"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// ListConfig holds configuration for the list command
type ListConfig struct {
	Filter     string
	All        bool
	JSONOutput bool
}

// NewListConfig creates a new ListConfig with default values
func NewListConfig() *ListConfig {
	return &ListConfig{
		Filter:     "",
		All:        false,
		JSONOutput: false,
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List skills in the library",
	Long: `List the skills in the library with their folder names, scopes, and
descriptions. Disabled skills are hidden unless --all is given.

Examples:
  skillet list
  skillet list --all
  skillet list --filter 'pdf*'
  skillet list --json`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getListConfigFromFlags(cmd)

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

		allSkills, err := manager.Reconcile(ctx)
		if err != nil {
			presenter.Error(err, "Failed to reconcile skill library")
			os.Exit(1)
		}

		filtered, err := filterSkills(allSkills, config)
		if err != nil {
			presenter.Error(err, "Invalid filter pattern")
			os.Exit(1)
		}

		if config.JSONOutput {
			out, err := json.MarshalIndent(filtered, "", "  ")
			if err != nil {
				presenter.Error(err, "Failed to render skill list")
				os.Exit(1)
			}
			fmt.Println(string(out))
			return
		}

		if len(filtered) == 0 {
			presenter.Info("No skills found")
			return
		}
		renderSkillTable(os.Stdout, filtered)
	},
}

func init() {
	defaults := NewListConfig()
	listCmd.Flags().StringP("filter", "f", defaults.Filter, "Glob pattern matched against skill and folder names")
	listCmd.Flags().BoolP("all", "a", defaults.All, "Include disabled skills")
	listCmd.Flags().Bool("json", defaults.JSONOutput, "Output in JSON format")
	rootCmd.AddCommand(withTracing(listCmd))
}

// getListConfigFromFlags extracts list configuration from command flags
func getListConfigFromFlags(cmd *cobra.Command) *ListConfig {
	config := NewListConfig()

	if filter, err := cmd.Flags().GetString("filter"); err == nil {
		config.Filter = filter
	}
	if all, err := cmd.Flags().GetBool("all"); err == nil {
		config.All = all
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}

	return config
}

// filterSkills applies the enabled filter and the optional glob pattern. A
// pattern matches when either the display name or the folder name matches.
func filterSkills(all []skilltypes.Skill, config *ListConfig) ([]skilltypes.Skill, error) {
	var matcher glob.Glob
	if config.Filter != "" {
		m, err := glob.Compile(config.Filter)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid filter %q", config.Filter)
		}
		matcher = m
	}

	filtered := make([]skilltypes.Skill, 0, len(all))
	for _, s := range all {
		if !config.All && !s.Enabled {
			continue
		}
		if matcher != nil && !matcher.Match(s.Name) && !matcher.Match(s.DirName) {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered, nil
}

func renderSkillTable(w io.Writer, skills []skilltypes.Skill) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFOLDER\tENABLED\tSCOPE\tDESCRIPTION")
	fmt.Fprintln(tw, "----\t------\t-------\t-----\t-----------")

	for _, s := range skills {
		name := s.Name
		if s.IsExample {
			name += " (example)"
		}
		description := s.Description
		if len(description) > 60 {
			description = description[:57] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", name, s.DirName, s.Enabled, formatScope(s.Scope), description)
	}
	tw.Flush()
}

func formatScope(s skilltypes.Scope) string {
	if s.IsGlobal {
		return "global"
	}
	if len(s.SelectedAgents) == 0 {
		return "none"
	}
	return strings.Join(s.SelectedAgents, ",")
}
