// Package examples ships the built-in example skill bundles and installs
// them on first run. The installed copies double as the read-only
// reference set used to classify bundles as examples.
package examples

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillet/pkg/descriptor"
	"github.com/jingkaihe/skillet/pkg/logger"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

//go:embed bundles
var bundleFS embed.FS

const bundleRoot = "bundles"

// Names returns the folder names of the built-in bundles.
func Names() ([]string, error) {
	entries, err := bundleFS.ReadDir(bundleRoot)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read embedded bundles")
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Materialize installs the built-in bundles beneath dir, skipping any
// bundle whose folder already exists. Returns how many were installed.
func Materialize(ctx context.Context, dir string) (int, error) {
	names, err := Names()
	if err != nil {
		return 0, err
	}

	installed := 0
	for _, name := range names {
		dest := filepath.Join(dir, name)
		if _, err := os.Stat(dest); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return installed, errors.Wrapf(err, "failed to stat %s", dest)
		}
		if err := installBundle(name, dest); err != nil {
			return installed, err
		}
		installed++
		logger.G(ctx).WithField("bundle", name).Debug("installed example bundle")
	}
	return installed, nil
}

func installBundle(name, dest string) error {
	src := path.Join(bundleRoot, name)
	return fs.WalkDir(bundleFS, src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == src {
			return os.MkdirAll(dest, 0o755)
		}
		rel := strings.TrimPrefix(p, src+"/")
		target := filepath.Join(dest, filepath.FromSlash(rel))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := bundleFS.ReadFile(p)
		if err != nil {
			return errors.Wrapf(err, "failed to read embedded %s", p)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", target)
		}
		return nil
	})
}

// DefaultEntries returns first-run configuration entries for the built-in
// bundles, keyed by descriptor name: enabled, global scope, flagged as
// examples.
func DefaultEntries(addedAt int64) (map[string]skilltypes.ConfigEntry, error) {
	names, err := Names()
	if err != nil {
		return nil, err
	}

	out := make(map[string]skilltypes.ConfigEntry, len(names))
	for _, name := range names {
		content, err := bundleFS.ReadFile(path.Join(bundleRoot, name, descriptor.FileName))
		if err != nil {
			return nil, errors.Wrapf(err, "embedded bundle %s has no descriptor", name)
		}
		desc := descriptor.Parse(content)
		if desc == nil {
			return nil, errors.Errorf("embedded bundle %s has an invalid descriptor", name)
		}
		out[desc.Name] = skilltypes.NewConfigEntry(true, skilltypes.GlobalScope(), addedAt, true)
	}
	return out, nil
}
