package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillet/pkg/presenter"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// ScopeConfig holds configuration for the scope command
type ScopeConfig struct {
	Global bool
	Agents []string
}

// NewScopeConfig creates a new ScopeConfig with default values
func NewScopeConfig() *ScopeConfig {
	return &ScopeConfig{
		Global: false,
		Agents: nil,
	}
}

// Validate validates the ScopeConfig and returns an error if invalid
func (c *ScopeConfig) Validate() error {
	if c.Global && len(c.Agents) > 0 {
		return errors.New("--global and --agents are mutually exclusive")
	}
	if !c.Global && len(c.Agents) == 0 {
		return errors.New("one of --global or --agents is required")
	}
	return nil
}

// Scope resolves the configured scope value.
func (c *ScopeConfig) Scope() skilltypes.Scope {
	if c.Global {
		return skilltypes.GlobalScope()
	}
	return skilltypes.Scope{SelectedAgents: c.Agents}
}

var scopeCmd = &cobra.Command{
	Use:   "scope <skill-name>",
	Short: "Change which agents can see a skill",
	Long: `Change a skill's scope: visible to every agent (--global) or only to
the named agents (--agents).

Examples:
  skillet scope "PDF Processing" --global
  skillet scope "PDF Processing" --agents researcher,writer`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getScopeConfigFromFlags(cmd)

		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid arguments")
			os.Exit(1)
		}

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

		skill.Scope = config.Scope()
		if err := manager.Update(ctx, skill); err != nil {
			presenter.Error(err, "Failed to update skill scope")
			os.Exit(1)
		}

		presenter.Success(fmt.Sprintf("Scope of '%s' is now %s", skill.Name, formatScope(skill.Scope)))
	},
}

func init() {
	defaults := NewScopeConfig()
	scopeCmd.Flags().BoolP("global", "g", defaults.Global, "Make the skill visible to every agent")
	scopeCmd.Flags().StringSlice("agents", defaults.Agents, "Restrict the skill to these agents")
	rootCmd.AddCommand(scopeCmd)
}

// getScopeConfigFromFlags extracts scope configuration from command flags
func getScopeConfigFromFlags(cmd *cobra.Command) *ScopeConfig {
	config := NewScopeConfig()

	if global, err := cmd.Flags().GetBool("global"); err == nil {
		config.Global = global
	}
	if agents, err := cmd.Flags().GetStringSlice("agents"); err == nil {
		config.Agents = agents
	}

	return config
}
