// Package skills maintains the skill library: it scans the skills root for
// bundles, reconciles them with per-user configuration into an in-memory
// list, and applies mutations (write, delete, toggle, update, import)
// against both disk and configuration.
package skills

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillet/pkg/descriptor"
	"github.com/jingkaihe/skillet/pkg/importer"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/skillconfig"
	"github.com/jingkaihe/skillet/pkg/telemetry"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// Recorder receives a notification for every completed mutation. The
// history store implements it; a nil Recorder disables event recording.
type Recorder interface {
	Record(ctx context.Context, userID, action, skillName, detail string) error
}

// Manager owns the reconciled skill list for one skills root and one user.
// Reconcile rebuilds the list wholesale; mutations update it optimistically
// and the next reconciliation makes it authoritative again.
type Manager struct {
	root        string
	examplesDir string
	projectPath string
	userID      string
	store       *skillconfig.Store
	importer    *importer.Importer
	history     Recorder

	mu     sync.RWMutex
	skills []skilltypes.Skill
}

// Option configures a Manager.
type Option func(*Manager)

// WithExamplesDir sets the read-only reference directory used to classify
// bundles as examples.
func WithExamplesDir(dir string) Option {
	return func(m *Manager) {
		m.examplesDir = dir
	}
}

// WithConfigStore sets the configuration store.
func WithConfigStore(store *skillconfig.Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithConfigDir sets the directory configuration documents live in.
func WithConfigDir(dir string) Option {
	return func(m *Manager) {
		m.store = skillconfig.NewStore(dir)
	}
}

// WithUserID sets the configuration document owner.
func WithUserID(userID string) Option {
	return func(m *Manager) {
		m.userID = userID
	}
}

// WithProjectConfigPath overlays a narrower, read-only configuration
// document on top of the user's; entries in it win over global ones.
func WithProjectConfigPath(path string) Option {
	return func(m *Manager) {
		m.projectPath = path
	}
}

// WithHistory sets the mutation event recorder.
func WithHistory(r Recorder) Option {
	return func(m *Manager) {
		m.history = r
	}
}

// WithImporter replaces the archive importer.
func WithImporter(imp *importer.Importer) Option {
	return func(m *Manager) {
		m.importer = imp
	}
}

// New creates a Manager for the skills root at root.
func New(root string, opts ...Option) (*Manager, error) {
	m := &Manager{
		root:   root,
		userID: "default",
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		dir, err := skillconfig.DefaultDir()
		if err != nil {
			return nil, err
		}
		m.store = skillconfig.NewStore(dir)
	}
	if m.importer == nil {
		m.importer = importer.New(root)
	}
	return m, nil
}

// Root returns the skills root directory.
func (m *Manager) Root() string {
	return m.root
}

// Reconcile rebuilds the in-memory skill list from a fresh scan and the
// layered configuration, and returns a copy of the result. On any scan or
// configuration failure the previous list is left untouched.
func (m *Manager) Reconcile(ctx context.Context) ([]skilltypes.Skill, error) {
	var result []skilltypes.Skill
	err := telemetry.WithSpan(ctx, "skills.reconcile", func(ctx context.Context) error {
		skills, err := m.reconcile(ctx)
		if err != nil {
			return err
		}
		result = skills
		return nil
	}, attribute.String("skills.root", m.root))
	return result, err
}

func (m *Manager) reconcile(ctx context.Context) ([]skilltypes.Skill, error) {
	log := logger.G(ctx)

	scanned, err := Scan(ctx, m.root, m.examplesDir)
	if err != nil {
		return nil, err
	}

	doc, err := m.store.Load(ctx, m.userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load skill configuration")
	}

	var project *skilltypes.ConfigDocument
	if m.projectPath != "" {
		project, err = skillconfig.ReadDocument(m.projectPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, errors.Wrap(err, "failed to load project skill configuration")
			}
			project = nil
		}
	}

	m.mu.RLock()
	prevByDir := make(map[string]skilltypes.Skill, len(m.skills))
	for _, s := range m.skills {
		prevByDir[s.DirName] = s
	}
	m.mu.RUnlock()

	var registered int
	var registerErrs *multierror.Error
	next := make([]skilltypes.Skill, 0, len(scanned))
	for _, b := range scanned {
		entry, found := lookupEntry(project, doc, b.Name)
		if !found {
			addedAt := skilltypes.NowMillis()
			if prev, known := prevByDir[b.DirName]; known && prev.AddedAt != 0 {
				addedAt = prev.AddedAt
			}
			entry = skilltypes.DefaultConfigEntry(addedAt, b.IsExample)
			// Mutating the document before saving means a second bundle
			// with the same display name in this pass sees the entry and
			// is not registered again.
			doc.Skills[b.Name] = entry
			if err := m.store.Save(ctx, m.userID, doc); err != nil {
				log.WithError(err).WithField("skill", b.Name).Warn("failed to register skill configuration")
				registerErrs = multierror.Append(registerErrs, errors.Wrapf(err, "register %s", b.Name))
			} else {
				registered++
			}
		}

		next = append(next, skilltypes.Skill{
			Name:           b.Name,
			Description:    b.Description,
			DirName:        b.DirName,
			DescriptorPath: b.DescriptorPath,
			Enabled:        entry.EnabledValue(),
			Scope:          entry.ScopeValue(),
			AddedAt:        entry.AddedAt,
			IsExample:      entry.IsExampleValue(b.IsExample),
			Content:        prevByDir[b.DirName].Content,
		})
	}

	if registered > 0 {
		log.WithFields(logrus.Fields{
			"user":       m.userID,
			"registered": registered,
		}).Info("registered new skills in configuration")
	}
	if err := registerErrs.ErrorOrNil(); err != nil {
		log.WithError(err).Warn("some skills could not be registered")
	}

	sort.SliceStable(next, func(i, j int) bool { return next[i].Name < next[j].Name })

	m.mu.Lock()
	m.skills = next
	m.mu.Unlock()

	return append([]skilltypes.Skill(nil), next...), nil
}

// lookupEntry resolves a configuration entry for name, preferring the
// project overlay.
func lookupEntry(project, global *skilltypes.ConfigDocument, name string) (skilltypes.ConfigEntry, bool) {
	if project != nil {
		if entry, ok := project.Skills[name]; ok {
			return entry, true
		}
	}
	if entry, ok := global.Skills[name]; ok {
		return entry, true
	}
	return skilltypes.ConfigEntry{}, false
}

// Skills returns a copy of the current in-memory list.
func (m *Manager) Skills() []skilltypes.Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]skilltypes.Skill(nil), m.skills...)
}

// Get returns the record for one skill by display name.
func (m *Manager) Get(name string) (skilltypes.Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx := m.indexByNameLocked(name); idx >= 0 {
		return m.skills[idx], nil
	}
	return skilltypes.Skill{}, errors.Wrapf(skilltypes.ErrNotFound, "skill %q", name)
}

// Toggle flips a skill's enabled flag, optimistically in memory first. If
// persisting fails the in-memory flag is reverted.
func (m *Manager) Toggle(ctx context.Context, name string, enabled bool) error {
	m.mu.Lock()
	idx := m.indexByNameLocked(name)
	if idx < 0 {
		m.mu.Unlock()
		return errors.Wrapf(skilltypes.ErrNotFound, "skill %q", name)
	}
	prev := m.skills[idx].Enabled
	m.skills[idx].Enabled = enabled
	m.mu.Unlock()

	if err := m.store.SetEnabled(ctx, m.userID, name, enabled); err != nil {
		m.mu.Lock()
		if idx := m.indexByNameLocked(name); idx >= 0 {
			m.skills[idx].Enabled = prev
		}
		m.mu.Unlock()
		return errors.Wrapf(err, "failed to persist enabled flag for %s", name)
	}

	m.record(ctx, "toggle", name, fmt.Sprintf("enabled=%t", enabled))
	return nil
}

// Update replaces a skill's record, optimistically in memory first, and
// persists the configuration-backed fields when they changed. On a
// persistence failure the whole record reverts to its prior snapshot.
func (m *Manager) Update(ctx context.Context, updated skilltypes.Skill) error {
	m.mu.Lock()
	idx := m.indexByNameLocked(updated.Name)
	if idx < 0 {
		m.mu.Unlock()
		return errors.Wrapf(skilltypes.ErrNotFound, "skill %q", updated.Name)
	}
	prev := m.skills[idx]
	m.skills[idx] = updated
	m.mu.Unlock()

	if !configFieldsChanged(prev, updated) {
		return nil
	}

	entry := skilltypes.NewConfigEntry(updated.Enabled, updated.Scope, updated.AddedAt, updated.IsExample)
	if err := m.store.UpdateEntry(ctx, m.userID, updated.Name, entry); err != nil {
		m.mu.Lock()
		if idx := m.indexByNameLocked(updated.Name); idx >= 0 {
			m.skills[idx] = prev
		}
		m.mu.Unlock()
		return errors.Wrapf(err, "failed to persist configuration for %s", updated.Name)
	}

	m.record(ctx, "update", updated.Name, "")
	return nil
}

func configFieldsChanged(a, b skilltypes.Skill) bool {
	return a.Enabled != b.Enabled ||
		!a.Scope.Equal(b.Scope) ||
		a.AddedAt != b.AddedAt ||
		a.IsExample != b.IsExample
}

// Delete removes the bundle directory with the given folder name along with
// its configuration entry. Example skills are refused. Directory and
// configuration removal are each best-effort; the in-memory record is
// removed regardless, and the next reconciliation resurrects it if the
// directory removal actually failed.
func (m *Manager) Delete(ctx context.Context, folderName string) error {
	log := logger.G(ctx)

	dir, err := m.bundlePath(folderName)
	if err != nil {
		return err
	}

	m.mu.RLock()
	idx := m.indexByDirLocked(folderName)
	var target skilltypes.Skill
	if idx >= 0 {
		target = m.skills[idx]
	}
	m.mu.RUnlock()

	if idx < 0 {
		log.WithField("folder", folderName).Debug("delete of unknown bundle is a no-op")
		return nil
	}
	if target.IsExample {
		return errors.Wrapf(skilltypes.ErrExampleImmutable, "skill %q", target.Name)
	}

	if err := os.RemoveAll(dir); err != nil {
		log.WithError(err).WithField("folder", folderName).Warn("failed to remove bundle directory")
	}

	if err := m.store.DeleteEntry(ctx, m.userID, target.Name); err != nil {
		log.WithError(err).WithField("skill", target.Name).Warn("failed to remove configuration entry")
	}

	m.mu.Lock()
	if idx := m.indexByDirLocked(folderName); idx >= 0 {
		m.skills = append(m.skills[:idx], m.skills[idx+1:]...)
	}
	m.mu.Unlock()

	m.record(ctx, "delete", target.Name, folderName)
	return nil
}

// Write stores descriptor content into the named bundle folder, creating
// it if needed, and upserts the matching configuration entry. The
// configuration write is best-effort: a failure is logged, not returned,
// because the written file is already authoritative for the next scan.
func (m *Manager) Write(ctx context.Context, folderName string, content []byte) error {
	desc := descriptor.Parse(content)
	if desc == nil {
		return errors.Wrap(skilltypes.ErrInvalidInput, "content is not a valid skill descriptor")
	}

	dir, err := m.bundlePath(folderName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create bundle directory %s", folderName)
	}
	path := filepath.Join(dir, descriptor.FileName)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s for %s", descriptor.FileName, folderName)
	}

	entry := m.upsertConfigEntry(ctx, desc.Name, isExampleDir(m.examplesDir, folderName))
	m.upsertRecord(skilltypes.Skill{
		Name:           desc.Name,
		Description:    desc.Description,
		DirName:        folderName,
		DescriptorPath: path,
		Enabled:        entry.EnabledValue(),
		Scope:          entry.ScopeValue(),
		AddedAt:        entry.AddedAt,
		IsExample:      entry.IsExampleValue(false),
		Content:        string(content),
	})

	m.record(ctx, "write", desc.Name, folderName)
	return nil
}

func (m *Manager) upsertConfigEntry(ctx context.Context, name string, isExample bool) skilltypes.ConfigEntry {
	log := logger.G(ctx)

	doc, err := m.store.Load(ctx, m.userID)
	if err != nil {
		log.WithError(err).WithField("skill", name).Warn("failed to load configuration")
		return skilltypes.DefaultConfigEntry(skilltypes.NowMillis(), isExample)
	}
	entry, ok := doc.Skills[name]
	if ok {
		return entry
	}

	entry = skilltypes.DefaultConfigEntry(skilltypes.NowMillis(), isExample)
	doc.Skills[name] = entry
	if err := m.store.Save(ctx, m.userID, doc); err != nil {
		log.WithError(err).WithField("skill", name).Warn("failed to persist configuration entry")
	}
	return entry
}

func (m *Manager) upsertRecord(record skilltypes.Skill) {
	m.mu.Lock()
	defer m.mu.Unlock()

	replaced := false
	for i := range m.skills {
		if m.skills[i].DirName == record.DirName {
			m.skills[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		m.skills = append(m.skills, record)
	}
	sort.SliceStable(m.skills, func(i, j int) bool { return m.skills[i].Name < m.skills[j].Name })
}

// LoadContent reads a bundle's descriptor file and caches it on the
// in-memory record so later reconciliation passes keep it.
func (m *Manager) LoadContent(ctx context.Context, folderName string) (string, error) {
	dir, err := m.bundlePath(folderName)
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(filepath.Join(dir, descriptor.FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Wrapf(skilltypes.ErrNotFound, "bundle %q", folderName)
		}
		return "", errors.Wrapf(err, "failed to read descriptor for %s", folderName)
	}

	m.mu.Lock()
	for i := range m.skills {
		if m.skills[i].DirName == folderName {
			m.skills[i].Content = string(content)
			break
		}
	}
	m.mu.Unlock()

	return string(content), nil
}

// ListFiles returns the relative paths of every file in a bundle, sorted.
func (m *Manager) ListFiles(ctx context.Context, folderName string) ([]string, error) {
	dir, err := m.bundlePath(folderName)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(skilltypes.ErrNotFound, "bundle %q", folderName)
		}
		return nil, errors.Wrapf(err, "failed to stat bundle %s", folderName)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list bundle %s", folderName)
	}

	sort.Strings(files)
	return files, nil
}

// Import runs the archive import pipeline and reconciles afterward so newly
// landed bundles get configuration entries right away.
func (m *Manager) Import(ctx context.Context, req importer.Request) (*skilltypes.ImportResult, error) {
	var result *skilltypes.ImportResult
	err := telemetry.WithSpan(ctx, "skills.import", func(ctx context.Context) error {
		res, err := m.importer.Import(ctx, req)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Imported > 0 {
		if _, err := m.Reconcile(ctx); err != nil {
			logger.G(ctx).WithError(err).Warn("reconciliation after import failed")
		}
		m.record(ctx, "import", "", fmt.Sprintf("imported=%d", result.Imported))
	}
	return result, nil
}

// InitializeDefaults merges default configuration entries into the user's
// document, adding only entries that are absent. Returns how many were
// added.
func (m *Manager) InitializeDefaults(ctx context.Context, defaults map[string]skilltypes.ConfigEntry) (int, error) {
	return m.store.InitializeDefaults(ctx, m.userID, defaults)
}

// bundlePath resolves a caller-supplied folder name inside the skills
// root. Anything resolving outside the root (or to the root itself) is
// rejected.
func (m *Manager) bundlePath(folderName string) (string, error) {
	if folderName == "" {
		return "", errors.Wrap(skilltypes.ErrInvalidInput, "empty folder name")
	}

	path := filepath.Join(m.root, folderName)
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(skilltypes.ErrUnsafePath, "folder %q resolves outside the skills root", folderName)
	}
	return path, nil
}

// indexByNameLocked returns the index of the skill with the given display
// name; the caller must hold mu.
func (m *Manager) indexByNameLocked(name string) int {
	for i := range m.skills {
		if m.skills[i].Name == name {
			return i
		}
	}
	return -1
}

// indexByDirLocked returns the index of the skill with the given folder
// name; the caller must hold mu.
func (m *Manager) indexByDirLocked(folderName string) int {
	for i := range m.skills {
		if m.skills[i].DirName == folderName {
			return i
		}
	}
	return -1
}

func (m *Manager) record(ctx context.Context, action, skillName, detail string) {
	if m.history == nil {
		return
	}
	if err := m.history.Record(ctx, m.userID, action, skillName, detail); err != nil {
		logger.G(ctx).WithError(err).Debug("failed to record skill event")
	}
}
