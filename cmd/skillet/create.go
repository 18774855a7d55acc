package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillet/pkg/descriptor"
	"github.com/jingkaihe/skillet/pkg/presenter"
)

// CreateConfig holds configuration for the create command
type CreateConfig struct {
	Name        string
	Description string
	BodyFile    string
	Folder      string
}

// NewCreateConfig creates a new CreateConfig with default values
func NewCreateConfig() *CreateConfig {
	return &CreateConfig{
		Name:        "",
		Description: "",
		BodyFile:    "",
		Folder:      "",
	}
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create or update a skill bundle",
	Long: `Create a skill bundle, or replace the descriptor of an existing one.
The descriptor body is read from --body-file ("-" for stdin); without it
the descriptor carries an empty body. The folder name is derived from the
skill name unless --folder is given.

Examples:
  skillet create --name "PDF Processing" --description "Work with PDF files"
  skillet create --name "PDF Processing" --description "Work with PDF files" --body-file instructions.md
  cat instructions.md | skillet create --name "PDF Processing" --description "Work with PDF files" --body-file -`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getCreateConfigFromFlags(cmd)

		if config.Name == "" || config.Description == "" {
			presenter.Error(fmt.Errorf("both --name and --description are required"), "Invalid arguments")
			os.Exit(1)
		}

		body, err := readBody(config.BodyFile)
		if err != nil {
			presenter.Error(err, "Failed to read descriptor body")
			os.Exit(1)
		}

		folder := config.Folder
		if folder == "" {
			folder = descriptor.DirNameForSkill(config.Name)
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

		content := descriptor.Build(config.Name, config.Description, body)
		if err := manager.Write(ctx, folder, content); err != nil {
			presenter.Error(err, "Failed to write skill bundle")
			os.Exit(1)
		}

		presenter.Success(fmt.Sprintf("Wrote skill '%s' to %s", config.Name, folder))
	},
}

func init() {
	defaults := NewCreateConfig()
	createCmd.Flags().StringP("name", "n", defaults.Name, "Skill display name (required)")
	createCmd.Flags().StringP("description", "d", defaults.Description, "Skill description (required)")
	createCmd.Flags().String("body-file", defaults.BodyFile, "File holding the descriptor body, or - for stdin")
	createCmd.Flags().String("folder", defaults.Folder, "Bundle folder name (derived from the name by default)")
	rootCmd.AddCommand(createCmd)
}

// getCreateConfigFromFlags extracts create configuration from command flags
func getCreateConfigFromFlags(cmd *cobra.Command) *CreateConfig {
	config := NewCreateConfig()

	if name, err := cmd.Flags().GetString("name"); err == nil {
		config.Name = name
	}
	if description, err := cmd.Flags().GetString("description"); err == nil {
		config.Description = description
	}
	if bodyFile, err := cmd.Flags().GetString("body-file"); err == nil {
		config.BodyFile = bodyFile
	}
	if folder, err := cmd.Flags().GetString("folder"); err == nil {
		config.Folder = folder
	}

	return config
}

func readBody(bodyFile string) (string, error) {
	switch bodyFile {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(bodyFile)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
