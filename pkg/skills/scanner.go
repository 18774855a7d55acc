package skills

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillet/pkg/descriptor"
	"github.com/jingkaihe/skillet/pkg/logger"
)

// Scanned is one bundle discovered under the skills root. It carries only
// what a directory listing plus one descriptor read can provide; full
// bundle content is loaded lazily elsewhere.
type Scanned struct {
	Name           string
	Description    string
	DirName        string
	DescriptorPath string
	IsExample      bool
}

// Scan lists every immediate subdirectory of root whose descriptor parses.
// Dot-prefixed directories are ignored, and a bundle with an unreadable or
// malformed descriptor is skipped without failing the scan. A missing root
// yields an empty result, not an error, so a fresh install scans cleanly.
func Scan(ctx context.Context, root, examplesDir string) ([]Scanned, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve skills root %s", root)
	}

	entries, err := os.ReadDir(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read skills root %s", absRoot)
	}

	log := logger.G(ctx)
	var out []Scanned
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		dirPath := filepath.Join(absRoot, name)
		info, err := os.Stat(dirPath)
		if err != nil || !info.IsDir() {
			continue
		}

		descriptorPath := filepath.Join(dirPath, descriptor.FileName)
		content, err := os.ReadFile(descriptorPath)
		if err != nil {
			log.WithError(err).WithField("dir", name).Debug("skipping bundle with unreadable descriptor")
			continue
		}
		desc := descriptor.Parse(content)
		if desc == nil {
			log.WithField("dir", name).Debug("skipping bundle with invalid descriptor")
			continue
		}

		out = append(out, Scanned{
			Name:           desc.Name,
			Description:    desc.Description,
			DirName:        name,
			DescriptorPath: descriptorPath,
			IsExample:      isExampleDir(examplesDir, name),
		})
	}
	return out, nil
}

// isExampleDir reports whether a bundle of the same folder name ships in
// the read-only examples directory. Classification is recomputed on every
// scan rather than stored.
func isExampleDir(examplesDir, dirName string) bool {
	if examplesDir == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(examplesDir, dirName))
	return err == nil && info.IsDir()
}
