package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillet/pkg/descriptor"
	"github.com/jingkaihe/skillet/pkg/importer"
	"github.com/jingkaihe/skillet/pkg/presenter"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// ImportConfig holds configuration for the import command
type ImportConfig struct {
	Overwrite []string
	Yes       bool
}

// NewImportConfig creates a new ImportConfig with default values
func NewImportConfig() *ImportConfig {
	return &ImportConfig{
		Overwrite: nil,
		Yes:       false,
	}
}

var importCmd = &cobra.Command{
	Use:   "import <archive>",
	Short: "Import skill bundles from an archive",
	Long: `Import skill bundles from a .zip, .tar.gz, or .tgz archive. Every
directory in the archive carrying a SKILL.md descriptor becomes a bundle.

When an incoming skill collides with one already in the library, nothing
is imported and each conflict is shown as a descriptor diff. Re-run with
--overwrite naming the folders to replace, or answer the prompt, or pass
--yes to replace all conflicting bundles.

Examples:
  skillet import skills.zip
  skillet import skills.tar.gz --overwrite pdf-processing
  skillet import skills.zip --yes`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getImportConfigFromFlags(cmd)

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

		req := importer.Request{ArchivePath: args[0]}
		if cmd.Flags().Changed("overwrite") {
			req.Overwrite = config.Overwrite
		}

		result, err := manager.Import(ctx, req)
		if err != nil {
			presenter.Error(err, "Import failed")
			os.Exit(1)
		}

		if len(result.Conflicts) > 0 && req.Overwrite == nil {
			printImportConflicts(settings.SkillsDir, result.Conflicts)

			folders := conflictFolders(result.Conflicts)
			proceed := config.Yes
			if !proceed {
				answer := presenter.Prompt(fmt.Sprintf("Overwrite %d existing bundle(s)?", len(folders)), "y", "N")
				proceed = strings.EqualFold(answer, "y")
			}
			if !proceed {
				presenter.Info("No bundles were imported. Re-run with --overwrite to replace specific folders.")
				return
			}

			req.Overwrite = folders
			result, err = manager.Import(ctx, req)
			if err != nil {
				presenter.Error(err, "Import failed")
				os.Exit(1)
			}
		} else if len(result.Conflicts) > 0 {
			confirmed := make(map[string]bool, len(req.Overwrite))
			for _, folder := range req.Overwrite {
				confirmed[folder] = true
			}
			for _, c := range result.Conflicts {
				if confirmed[c.ExistingFolderName] {
					continue
				}
				presenter.Warning(fmt.Sprintf("Skipped '%s': folder %s was not confirmed for overwrite", c.SkillName, c.ExistingFolderName))
			}
		}

		presenter.Success(fmt.Sprintf("Imported %d skill bundle(s)", result.Imported))
	},
}

func init() {
	defaults := NewImportConfig()
	importCmd.Flags().StringSlice("overwrite", defaults.Overwrite, "Existing bundle folders that may be replaced")
	importCmd.Flags().BoolP("yes", "y", defaults.Yes, "Replace all conflicting bundles without prompting")
	rootCmd.AddCommand(withTracing(importCmd))
}

// getImportConfigFromFlags extracts import configuration from command flags
func getImportConfigFromFlags(cmd *cobra.Command) *ImportConfig {
	config := NewImportConfig()

	if overwrite, err := cmd.Flags().GetStringSlice("overwrite"); err == nil {
		config.Overwrite = overwrite
	}
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.Yes = yes
	}

	return config
}

// printImportConflicts shows each conflict as a unified diff of the
// existing descriptor against the incoming one.
func printImportConflicts(skillsRoot string, conflicts []skilltypes.ImportConflict) {
	for _, c := range conflicts {
		presenter.Warning(fmt.Sprintf("Skill '%s' already exists in folder %s", c.SkillName, c.ExistingFolderName))

		existingPath := filepath.Join(skillsRoot, c.ExistingFolderName, descriptor.FileName)
		existing, err := os.ReadFile(existingPath)
		if err != nil {
			continue
		}

		diff := udiff.Unified(
			filepath.Join(c.ExistingFolderName, descriptor.FileName),
			filepath.Join("incoming", descriptor.FileName),
			string(existing),
			c.IncomingDescriptor,
		)
		if diff != "" {
			fmt.Println(diff)
		}
	}
}

// conflictFolders returns the distinct existing folder names named by the
// conflicts, in order of first appearance.
func conflictFolders(conflicts []skilltypes.ImportConflict) []string {
	seen := make(map[string]bool, len(conflicts))
	folders := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		if !seen[c.ExistingFolderName] {
			seen[c.ExistingFolderName] = true
			folders = append(folders, c.ExistingFolderName)
		}
	}
	return folders
}
