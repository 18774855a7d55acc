// Package importer installs skill bundles from archives into the skills
// root. An import extracts the archive into an isolated scratch directory,
// discovers every nested bundle, detects display-name collisions against
// bundles already on disk, and commits accepted bundles one directory at a
// time. The whole pipeline runs under a single-flight lock so concurrent
// imports are served strictly in arrival order.
package importer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/jingkaihe/skillet/pkg/descriptor"
	"github.com/jingkaihe/skillet/pkg/logger"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// defaultIgnorePatterns are junk files that archives built on desktop
// systems commonly carry; they are never copied into a bundle.
var defaultIgnorePatterns = []string{
	"**/.DS_Store",
	"**/__MACOSX",
	"**/Thumbs.db",
}

// Importer owns the import pipeline for one skills root, including the
// single-flight lock serializing imports. The lock is per-Importer, not
// process-wide, so independent instances do not block each other.
type Importer struct {
	root           string
	ignorePatterns []string
	sem            *semaphore.Weighted
}

// Option configures an Importer.
type Option func(*Importer)

// WithIgnorePatterns replaces the junk-file patterns skipped during bundle
// copy.
func WithIgnorePatterns(patterns []string) Option {
	return func(i *Importer) {
		i.ignorePatterns = patterns
	}
}

// New creates an Importer committing bundles into root.
func New(root string, opts ...Option) *Importer {
	imp := &Importer{
		root:           root,
		ignorePatterns: defaultIgnorePatterns,
		sem:            semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Request describes one import invocation. Exactly one of ArchivePath and
// Data must be set; Filename names in-memory data for extension validation
// and fallback bundle naming. Overwrite lists the existing folder names the
// caller has confirmed may be replaced; nil means no confirmation set was
// supplied, which is distinct from an empty one.
type Request struct {
	ArchivePath string
	Data        []byte
	Filename    string
	Overwrite   []string
}

type plannedBundle struct {
	srcDir         string
	skillName      string
	destFolder     string
	existingFolder string
	content        []byte
}

// Import runs the pipeline. Conflicts are reported in the result, not as
// an error: with no confirmation set, any conflict means nothing is
// committed and the caller is expected to re-invoke with resolutions.
func (i *Importer) Import(ctx context.Context, req Request) (*skilltypes.ImportResult, error) {
	if err := i.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, "interrupted while waiting for a prior import")
	}
	defer i.sem.Release(1)

	return i.run(ctx, req)
}

func (i *Importer) run(ctx context.Context, req Request) (*skilltypes.ImportResult, error) {
	log := logger.G(ctx)

	archivePath := req.ArchivePath
	archiveName := req.Filename
	if archiveName == "" {
		archiveName = filepath.Base(archivePath)
	}

	if len(req.Data) > 0 {
		scratch, err := os.CreateTemp("", "skillet-import-*"+archiveExt(archiveName))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create scratch file")
		}
		scratchPath := scratch.Name()
		defer func() {
			if err := os.Remove(scratchPath); err != nil {
				log.WithError(err).Warn("failed to remove import scratch file")
			}
		}()
		if _, err := scratch.Write(req.Data); err != nil {
			scratch.Close()
			return nil, errors.Wrap(err, "failed to write scratch file")
		}
		if err := scratch.Close(); err != nil {
			return nil, errors.Wrap(err, "failed to write scratch file")
		}
		archivePath = scratchPath
	}

	if archivePath == "" {
		return nil, errors.Wrap(skilltypes.ErrInvalidInput, "no archive supplied")
	}

	ext := archiveExt(archiveName)
	if ext == "" {
		return nil, errors.Wrapf(skilltypes.ErrInvalidInput, "unsupported archive type %q, expected .zip, .tar.gz or .tgz", filepath.Ext(archiveName))
	}

	extractDir, err := os.MkdirTemp("", "skillet-extract-")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create extraction directory")
	}
	defer func() {
		if err := os.RemoveAll(extractDir); err != nil {
			log.WithError(err).Warn("failed to clean up extraction directory")
		}
	}()

	if err := extractArchive(ctx, archivePath, ext, extractDir); err != nil {
		return nil, err
	}

	candidates, err := findCandidates(extractDir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search extracted content")
	}
	if len(candidates) == 0 {
		return nil, errors.Wrap(skilltypes.ErrInvalidInput, "archive contains no skill bundles")
	}

	existing, err := i.indexExisting(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to index existing skills")
	}

	result := &skilltypes.ImportResult{}
	var plans []plannedBundle
	for _, srcDir := range candidates {
		plan, ok := i.planCandidate(ctx, srcDir, extractDir, archiveName, existing)
		if !ok {
			continue
		}
		if plan.existingFolder != "" {
			result.Conflicts = append(result.Conflicts, skilltypes.ImportConflict{
				ExistingFolderName: plan.existingFolder,
				SkillName:          plan.skillName,
				IncomingDescriptor: string(plan.content),
			})
		}
		plans = append(plans, plan)
	}

	// With no confirmation set at all, conflicts veto the entire import so
	// the caller can re-invoke with resolutions.
	if req.Overwrite == nil && len(result.Conflicts) > 0 {
		return result, nil
	}

	confirmed := make(map[string]bool, len(req.Overwrite))
	for _, folder := range req.Overwrite {
		confirmed[folder] = true
	}

	var commitErrs *multierror.Error
	for _, plan := range plans {
		if plan.existingFolder != "" {
			if !confirmed[plan.existingFolder] {
				continue
			}
			if err := os.RemoveAll(filepath.Join(i.root, plan.existingFolder)); err != nil {
				log.WithError(err).WithField("skill", plan.skillName).Error("failed to remove existing skill directory")
				commitErrs = multierror.Append(commitErrs, errors.Wrapf(err, "replace %s", plan.existingFolder))
				continue
			}
		}

		dest := filepath.Join(i.root, plan.destFolder)
		if err := i.copyBundle(ctx, plan.srcDir, dest); err != nil {
			if rmErr := os.RemoveAll(dest); rmErr != nil {
				log.WithError(rmErr).WithField("dir", dest).Warn("failed to remove partially copied bundle")
			}
			log.WithError(err).WithField("skill", plan.skillName).Error("failed to copy skill bundle")
			commitErrs = multierror.Append(commitErrs, errors.Wrapf(err, "import %s", plan.skillName))
			continue
		}

		result.Imported++
		log.WithFields(logrus.Fields{
			"skill":  plan.skillName,
			"folder": plan.destFolder,
		}).Info("imported skill bundle")
	}

	if err := commitErrs.ErrorOrNil(); err != nil {
		log.WithError(err).Warn("some skill bundles were not imported")
	}
	return result, nil
}

// planCandidate inspects one candidate bundle directory. A candidate whose
// descriptor cannot be read or parsed is skipped, not fatal.
func (i *Importer) planCandidate(ctx context.Context, srcDir, extractDir, archiveName string, existing map[string]string) (plannedBundle, bool) {
	log := logger.G(ctx)

	content, err := os.ReadFile(filepath.Join(srcDir, descriptor.FileName))
	if err != nil {
		log.WithError(err).WithField("dir", srcDir).Warn("skipping candidate with unreadable descriptor")
		return plannedBundle{}, false
	}
	desc := descriptor.Parse(content)
	if desc == nil {
		log.WithField("dir", srcDir).Warn("skipping candidate with invalid descriptor")
		return plannedBundle{}, false
	}

	destFolder := descriptor.SanitizeDirName(desc.Name)
	if destFolder == "" {
		destFolder = fallbackFolder(srcDir, extractDir, archiveName)
	}

	plan := plannedBundle{
		srcDir:     srcDir,
		skillName:  desc.Name,
		destFolder: destFolder,
		content:    content,
	}
	if folder, ok := existing[strings.ToLower(desc.Name)]; ok {
		plan.existingFolder = folder
	}
	return plan, true
}

// fallbackFolder names a bundle whose display name sanitizes to nothing:
// the candidate's own folder, or a name derived from the archive when the
// descriptor sits at the extraction root.
func fallbackFolder(srcDir, extractDir, archiveName string) string {
	if srcDir != extractDir {
		if name := descriptor.SanitizeDirName(filepath.Base(srcDir)); name != "" {
			return name
		}
	}
	return descriptor.DirNameForSkill(strings.TrimSuffix(archiveName, archiveExt(archiveName)))
}

// indexExisting maps the lowercased descriptor name of every bundle under
// the skills root to its folder name. Collision detection is name-based,
// independent of folder naming.
func (i *Importer) indexExisting(ctx context.Context) (map[string]string, error) {
	index := make(map[string]string)

	entries, err := os.ReadDir(i.root)
	if err != nil {
		if os.IsNotExist(err) {
			return index, nil
		}
		return nil, errors.Wrapf(err, "failed to read skills root %s", i.root)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		info, err := os.Stat(filepath.Join(i.root, name))
		if err != nil || !info.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(i.root, name, descriptor.FileName))
		if err != nil {
			continue
		}
		desc := descriptor.Parse(content)
		if desc == nil {
			continue
		}
		index[strings.ToLower(desc.Name)] = name
	}
	return index, nil
}

// findCandidates returns every directory in the extraction tree holding a
// descriptor file. Each one is the root of one candidate bundle.
func findCandidates(extractDir string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(extractDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Type()&fs.ModeSymlink == 0 && d.Name() == descriptor.FileName {
			dirs = append(dirs, filepath.Dir(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

// copyBundle copies the candidate tree into dest. Symlinks are skipped,
// never followed, and junk files matching the ignore patterns are dropped.
func (i *Importer) copyBundle(ctx context.Context, src, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrap(err, "failed to create destination directory")
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			logger.G(ctx).WithField("path", path).Debug("skipping symlink in skill bundle")
			return nil
		}
		if i.isIgnored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dest, rel)
		if err := ensureWithin(dest, target); err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func (i *Importer) isIgnored(rel string) bool {
	slashRel := filepath.ToSlash(rel)
	for _, pattern := range i.ignorePatterns {
		if ok, err := doublestar.Match(pattern, slashRel); err == nil && ok {
			return true
		}
	}
	return false
}

func copyFile(src, dest string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dest)
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return errors.Wrapf(err, "failed to copy %s", src)
	}
	return nil
}
