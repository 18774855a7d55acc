package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillet/pkg/skillconfig"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// Migrates the pre-1.0 flat skills.json (skill name -> enabled flag) into
// the versioned per-user configuration document.
func main() {
	if err := runMigration(); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Migration completed successfully!")
}

func runMigration() error {
	// Get home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return errors.Wrap(err, "failed to get home directory")
	}

	// Define paths
	legacyPath := filepath.Join(homeDir, ".skillet", "skills.json")
	configDir, err := skillconfig.DefaultDir()
	if err != nil {
		return errors.Wrap(err, "failed to resolve config directory")
	}

	fmt.Printf("Migrating from legacy config: %s\n", legacyPath)
	fmt.Printf("To config directory: %s\n", configDir)

	// Check if the legacy config exists
	if _, err := os.Stat(legacyPath); os.IsNotExist(err) {
		return errors.Errorf("legacy config not found at %s", legacyPath)
	}

	store := skillconfig.NewStore(configDir)

	// Check if a document already exists for the default user
	targetPath := store.DocumentPath("default")
	if _, err := os.Stat(targetPath); err == nil {
		return errors.Errorf("config document already exists at %s. Please remove it first or backup your data", targetPath)
	}

	// Read the legacy flat map
	flags, err := readLegacyConfig(legacyPath)
	if err != nil {
		return errors.Wrap(err, "failed to read legacy config")
	}

	fmt.Printf("Found %d skills in legacy config\n", len(flags))

	if len(flags) == 0 {
		fmt.Println("No skills found, creating empty config document")
	}

	// Write the versioned document
	if err := writeConfigDocument(store, flags); err != nil {
		return errors.Wrap(err, "failed to write config document")
	}

	return nil
}

func readLegacyConfig(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open legacy config")
	}

	flags := make(map[string]bool)
	if err := json.Unmarshal(data, &flags); err != nil {
		return nil, errors.Wrap(err, "failed to parse legacy config")
	}
	return flags, nil
}

func writeConfigDocument(store *skillconfig.Store, flags map[string]bool) error {
	ctx := context.Background()

	doc := skilltypes.NewConfigDocument()
	addedAt := skilltypes.NowMillis()

	i := 0
	for name, enabled := range flags {
		doc.Skills[name] = skilltypes.NewConfigEntry(enabled, skilltypes.GlobalScope(), addedAt, false)
		i++

		// Print progress for large migrations
		if i%10 == 0 || i == len(flags) {
			fmt.Printf("Migrated %d/%d skills\n", i, len(flags))
		}
	}

	if err := store.Save(ctx, "default", doc); err != nil {
		return errors.Wrap(err, "failed to save config document")
	}

	return nil
}
