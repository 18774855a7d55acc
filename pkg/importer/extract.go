package importer

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jingkaihe/skillet/pkg/logger"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// caseInsensitiveFS reports whether the host filesystem is assumed to fold
// case. Containment checks compare case-insensitively there, since
// "SKILLS/../x" and "skills/../x" land in the same place.
var caseInsensitiveFS = runtime.GOOS == "darwin" || runtime.GOOS == "windows"

// archiveExt returns the supported archive extension of name, or "" when
// the name carries none.
func archiveExt(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"):
		return ".tar.gz"
	case strings.HasSuffix(lower, ".tgz"):
		return ".tgz"
	case strings.HasSuffix(lower, ".zip"):
		return ".zip"
	}
	return ""
}

func extractArchive(ctx context.Context, archivePath, ext, destDir string) error {
	switch ext {
	case ".zip":
		return extractZip(ctx, archivePath, destDir)
	case ".tar.gz", ".tgz":
		return extractTarGz(ctx, archivePath, destDir)
	}
	return errors.Wrapf(skilltypes.ErrInvalidInput, "unsupported archive type %q", ext)
}

func extractZip(ctx context.Context, archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrap(skilltypes.ErrInvalidInput, "failed to open zip archive")
	}
	defer reader.Close()

	for _, file := range reader.File {
		if err := extractZipEntry(ctx, file, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(ctx context.Context, file *zip.File, destDir string) error {
	target, err := entryTarget(destDir, file.Name)
	if err != nil {
		return err
	}

	mode := file.Mode()
	if mode&os.ModeSymlink != 0 {
		logger.G(ctx).WithField("entry", file.Name).Debug("skipping symlink archive entry")
		return nil
	}
	if file.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", file.Name)
	}

	in, err := file.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to open archive entry %s", file.Name)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entryPerm(mode))
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", file.Name)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "failed to extract %s", file.Name)
	}
	return nil
}

func extractTarGz(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrap(err, "failed to open archive")
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errors.Wrap(skilltypes.ErrInvalidInput, "failed to read gzip stream")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(skilltypes.ErrInvalidInput, "failed to read tar stream")
		}

		target, err := entryTarget(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrapf(err, "failed to create directory %s", header.Name)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrapf(err, "failed to create directory for %s", header.Name)
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entryPerm(os.FileMode(header.Mode)))
			if err != nil {
				return errors.Wrapf(err, "failed to create %s", header.Name)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return errors.Wrapf(err, "failed to extract %s", header.Name)
			}
			if err := out.Close(); err != nil {
				return errors.Wrapf(err, "failed to extract %s", header.Name)
			}
		case tar.TypeSymlink, tar.TypeLink:
			logger.G(ctx).WithField("entry", header.Name).Debug("skipping link archive entry")
		default:
			logger.G(ctx).WithFields(logrus.Fields{
				"entry": header.Name,
				"type":  header.Typeflag,
			}).Debug("skipping unsupported archive entry")
		}
	}
}

// entryTarget resolves an archive entry name beneath destDir, rejecting
// entries that would land outside it.
func entryTarget(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if err := ensureWithin(destDir, target); err != nil {
		return "", errors.Wrapf(err, "archive entry %s", name)
	}
	return target, nil
}

// ensureWithin rejects any path outside root. Both paths must already be
// absolute or share the same working directory.
func ensureWithin(root, path string) error {
	rootCmp := filepath.Clean(root)
	pathCmp := filepath.Clean(path)
	if caseInsensitiveFS {
		rootCmp = strings.ToLower(rootCmp)
		pathCmp = strings.ToLower(pathCmp)
	}

	rel, err := filepath.Rel(rootCmp, pathCmp)
	if err != nil {
		return errors.Wrapf(skilltypes.ErrUnsafePath, "cannot resolve %s", path)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.Wrapf(skilltypes.ErrUnsafePath, "%s escapes %s", path, root)
	}
	return nil
}

// entryPerm normalizes an archive entry's permission bits; entries with no
// usable bits fall back to 0644.
func entryPerm(mode os.FileMode) os.FileMode {
	perm := mode.Perm()
	if perm&0o400 == 0 {
		perm = 0o644
	}
	return perm
}
