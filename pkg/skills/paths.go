package skills

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// BasePath returns the application data directory, honoring the
// SKILLET_BASE_PATH override.
func BasePath() (string, error) {
	if base := os.Getenv("SKILLET_BASE_PATH"); base != "" {
		return base, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve home directory")
	}
	return filepath.Join(home, ".skillet"), nil
}

// DefaultRoot returns the default skills root directory.
func DefaultRoot() (string, error) {
	base, err := BasePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "skills"), nil
}

// DefaultExamplesDir returns the default read-only examples directory.
func DefaultExamplesDir() (string, error) {
	base, err := BasePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "examples"), nil
}
