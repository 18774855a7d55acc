package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/skillconfig"
)

var configSchemaCmd = &cobra.Command{
	Use:   "config-schema",
	Short: "Print the JSON schema of the skill configuration document",
	Long: `Print the JSON schema of the per-user skill configuration document.
Point your editor's JSON validation at the output to validate hand-edited
documents.`,
	Run: func(cmd *cobra.Command, _ []string) {
		schema := skillconfig.GenerateSchema()
		out, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			presenter.Error(err, "Failed to render schema")
			os.Exit(1)
		}
		fmt.Println(string(out))
	},
}

func init() {
	rootCmd.AddCommand(configSchemaCmd)
}
