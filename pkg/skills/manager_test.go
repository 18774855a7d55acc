package skills

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillet/pkg/descriptor"
	"github.com/jingkaihe/skillet/pkg/importer"
	"github.com/jingkaihe/skillet/pkg/skillconfig"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, string, string) {
	t.Helper()
	root := t.TempDir()
	configDir := t.TempDir()
	all := append([]Option{WithConfigDir(configDir), WithUserID("tester")}, opts...)
	m, err := New(root, all...)
	require.NoError(t, err)
	return m, root, configDir
}

func TestReconcileIdempotent(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "z-folder", "Alpha", "First")
	writeBundle(t, root, "a-folder", "beta", "Second")
	writeBundle(t, root, "m-folder", "Zeta", "Third")

	ctx := context.Background()
	first, err := m.Reconcile(ctx)
	require.NoError(t, err)
	second, err := m.Reconcile(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Ordering is by display name, ordinal and case-sensitive, so the
	// capitalized names sort ahead of the lowercase one.
	require.Len(t, first, 3)
	assert.Equal(t, "Alpha", first[0].Name)
	assert.Equal(t, "Zeta", first[1].Name)
	assert.Equal(t, "beta", first[2].Name)
}

func TestReconcileRegistersOnce(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "one", "One", "d")
	writeBundle(t, root, "two", "Two", "d")
	writeBundle(t, root, "three", "Three", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)

	doc, err := m.store.Load(ctx, "tester")
	require.NoError(t, err)
	require.Len(t, doc.Skills, 3)
	stamps := map[string]int64{}
	for name, entry := range doc.Skills {
		assert.True(t, entry.EnabledValue())
		assert.True(t, entry.ScopeValue().IsGlobal)
		assert.NotZero(t, entry.AddedAt)
		stamps[name] = entry.AddedAt
	}

	_, err = m.Reconcile(ctx)
	require.NoError(t, err)

	doc, err = m.store.Load(ctx, "tester")
	require.NoError(t, err)
	require.Len(t, doc.Skills, 3)
	for name, entry := range doc.Skills {
		assert.Equal(t, stamps[name], entry.AddedAt, name)
	}
}

func TestReconcileDuplicateDisplayNames(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "dup-a", "Dup", "First folder")
	writeBundle(t, root, "dup-b", "Dup", "Second folder")

	ctx := context.Background()
	skills, err := m.Reconcile(ctx)
	require.NoError(t, err)

	// Both folders stay visible, sharing the one configuration entry.
	require.Len(t, skills, 2)
	assert.Equal(t, "dup-a", skills[0].DirName)
	assert.Equal(t, "dup-b", skills[1].DirName)

	doc, err := m.store.Load(ctx, "tester")
	require.NoError(t, err)
	assert.Len(t, doc.Skills, 1)
}

func TestReconcileDefaultsMissingEntryFields(t *testing.T) {
	m, root, configDir := newTestManager(t)
	writeBundle(t, root, "tool", "Tool", "d")

	path := skillconfig.NewStore(configDir).DocumentPath("tester")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"skills":{"Tool":{"addedAt":42}}}`), 0o644))

	skills, err := m.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, skills, 1)

	assert.True(t, skills[0].Enabled)
	assert.True(t, skills[0].Scope.IsGlobal)
	assert.Equal(t, int64(42), skills[0].AddedAt)
	assert.False(t, skills[0].IsExample)
}

func TestReconcileProjectOverlayWins(t *testing.T) {
	projectPath := filepath.Join(t.TempDir(), "project.json")
	projectDoc := `{"version":1,"skills":{"Tool":{"enabled":false,"scope":{"isGlobal":false,"selectedAgents":["reviewer"]},"addedAt":7}}}`
	require.NoError(t, os.WriteFile(projectPath, []byte(projectDoc), 0o644))

	m, root, _ := newTestManager(t, WithProjectConfigPath(projectPath))
	writeBundle(t, root, "tool", "Tool", "d")
	writeBundle(t, root, "other", "Other", "d")

	ctx := context.Background()
	skills, err := m.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, skills, 2)

	tool, err := m.Get("Tool")
	require.NoError(t, err)
	assert.False(t, tool.Enabled)
	assert.False(t, tool.Scope.IsGlobal)
	assert.Equal(t, []string{"reviewer"}, tool.Scope.SelectedAgents)
	assert.Equal(t, int64(7), tool.AddedAt)

	// The overlay satisfied the lookup, so no global entry is synthesized
	// for it; the unconfigured bundle still registers globally.
	doc, err := m.store.Load(ctx, "tester")
	require.NoError(t, err)
	_, hasTool := doc.Skills["Tool"]
	assert.False(t, hasTool)
	_, hasOther := doc.Skills["Other"]
	assert.True(t, hasOther)
}

func TestReconcileMutationsWriteGlobalNotOverlay(t *testing.T) {
	projectPath := filepath.Join(t.TempDir(), "project.json")
	projectDoc := `{"version":1,"skills":{"Tool":{"enabled":false,"addedAt":7}}}`
	require.NoError(t, os.WriteFile(projectPath, []byte(projectDoc), 0o644))

	m, root, _ := newTestManager(t, WithProjectConfigPath(projectPath))
	writeBundle(t, root, "tool", "Tool", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Toggle(ctx, "Tool", true))

	raw, err := os.ReadFile(projectPath)
	require.NoError(t, err)
	assert.Equal(t, projectDoc, string(raw), "overlay document is read-only")

	doc, err := m.store.Load(ctx, "tester")
	require.NoError(t, err)
	entry, ok := doc.Skills["Tool"]
	require.True(t, ok)
	assert.True(t, entry.EnabledValue())

	// The overlay still wins on the next pass.
	_, err = m.Reconcile(ctx)
	require.NoError(t, err)
	tool, err := m.Get("Tool")
	require.NoError(t, err)
	assert.False(t, tool.Enabled)
}

func TestReconcilePreservesLoadedContent(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "tool", "Tool", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)

	content, err := m.LoadContent(ctx, "tool")
	require.NoError(t, err)
	require.NotEmpty(t, content)

	skills, err := m.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, content, skills[0].Content)
}

func TestReconcileKeepsAddedAtForKnownBundles(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "tool", "Tool", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)
	before, err := m.Get("Tool")
	require.NoError(t, err)
	require.NotZero(t, before.AddedAt)

	// Losing the configuration entry must not reset the timestamp while
	// the bundle is still known in memory.
	require.NoError(t, m.store.DeleteEntry(ctx, "tester", "Tool"))
	_, err = m.Reconcile(ctx)
	require.NoError(t, err)

	after, err := m.Get("Tool")
	require.NoError(t, err)
	assert.Equal(t, before.AddedAt, after.AddedAt)
}

func TestReconcileAbortsOnCorruptConfig(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "tool", "Tool", "d")

	ctx := context.Background()
	first, err := m.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, os.WriteFile(m.store.DocumentPath("tester"), []byte("{broken"), 0o644))

	_, err = m.Reconcile(ctx)
	require.Error(t, err)
	assert.Equal(t, first, m.Skills(), "failed pass must leave the previous list untouched")
}

func TestReconcileAbortsOnCorruptProjectOverlay(t *testing.T) {
	projectPath := filepath.Join(t.TempDir(), "project.json")
	require.NoError(t, os.WriteFile(projectPath, []byte("{broken"), 0o644))

	m, root, _ := newTestManager(t, WithProjectConfigPath(projectPath))
	writeBundle(t, root, "tool", "Tool", "d")

	_, err := m.Reconcile(context.Background())
	require.Error(t, err)
}

func TestToggle(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "tool", "Tool", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Toggle(ctx, "Tool", false))

	skill, err := m.Get("Tool")
	require.NoError(t, err)
	assert.False(t, skill.Enabled)

	doc, err := m.store.Load(ctx, "tester")
	require.NoError(t, err)
	assert.False(t, doc.Skills["Tool"].EnabledValue())

	err = m.Toggle(ctx, "Ghost", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, skilltypes.ErrNotFound)
}

func TestToggleRevertsWhenPersistenceFails(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "tool", "Tool", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)

	// A store rooted beneath a regular file cannot load or save.
	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))
	m.store = skillconfig.NewStore(filepath.Join(blocked, "nested"))

	err = m.Toggle(ctx, "Tool", false)
	require.Error(t, err)

	skill, err := m.Get("Tool")
	require.NoError(t, err)
	assert.True(t, skill.Enabled, "in-memory flag reverts when persistence fails")
}

func TestToggleExampleSucceeds(t *testing.T) {
	examples := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(examples, "pdf"), 0o755))

	m, root, _ := newTestManager(t, WithExamplesDir(examples))
	writeBundle(t, root, "pdf", "PDF", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)

	skill, err := m.Get("PDF")
	require.NoError(t, err)
	require.True(t, skill.IsExample)

	require.NoError(t, m.Toggle(ctx, "PDF", false))
	skill, err = m.Get("PDF")
	require.NoError(t, err)
	assert.False(t, skill.Enabled)
}

func TestUpdatePersistsConfigFields(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "tool", "Tool", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)

	skill, err := m.Get("Tool")
	require.NoError(t, err)
	skill.Enabled = false
	skill.Scope = skilltypes.Scope{IsGlobal: false, SelectedAgents: []string{"reviewer"}}

	require.NoError(t, m.Update(ctx, skill))

	got, err := m.Get("Tool")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, []string{"reviewer"}, got.Scope.SelectedAgents)

	doc, err := m.store.Load(ctx, "tester")
	require.NoError(t, err)
	entry := doc.Skills["Tool"]
	assert.False(t, entry.EnabledValue())
	assert.Equal(t, []string{"reviewer"}, entry.ScopeValue().SelectedAgents)
}

func TestUpdateSkipsPersistenceWhenConfigFieldsUnchanged(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "tool", "Tool", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)

	// Break the store; a content-only update must not need it.
	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))
	m.store = skillconfig.NewStore(filepath.Join(blocked, "nested"))

	skill, err := m.Get("Tool")
	require.NoError(t, err)
	skill.Content = "cached body"
	require.NoError(t, m.Update(ctx, skill))

	got, err := m.Get("Tool")
	require.NoError(t, err)
	assert.Equal(t, "cached body", got.Content)
}

func TestUpdateRevertsWholeRecordWhenPersistenceFails(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "tool", "Tool", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)
	before, err := m.Get("Tool")
	require.NoError(t, err)

	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))
	m.store = skillconfig.NewStore(filepath.Join(blocked, "nested"))

	updated := before
	updated.Enabled = false
	updated.Content = "should not stick"
	err = m.Update(ctx, updated)
	require.Error(t, err)

	got, err := m.Get("Tool")
	require.NoError(t, err)
	assert.Equal(t, before, got, "failed persistence reverts the whole record")
}

func TestUpdateUnknownSkill(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.Update(context.Background(), skilltypes.Skill{Name: "Ghost"})
	require.Error(t, err)
	assert.ErrorIs(t, err, skilltypes.ErrNotFound)
}

func TestDelete(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "tool", "Tool", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, "tool"))

	assert.NoDirExists(t, filepath.Join(root, "tool"))
	_, err = m.Get("Tool")
	assert.ErrorIs(t, err, skilltypes.ErrNotFound)

	doc, err := m.store.Load(ctx, "tester")
	require.NoError(t, err)
	_, ok := doc.Skills["Tool"]
	assert.False(t, ok)

	// Deleting again is a benign no-op.
	require.NoError(t, m.Delete(ctx, "tool"))
}

func TestDeleteRejectsUnsafeFolder(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.Delete(context.Background(), filepath.Join("..", "evil"))
	assert.ErrorIs(t, err, skilltypes.ErrUnsafePath)
}

func TestDeleteRefusesExample(t *testing.T) {
	examples := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(examples, "pdf"), 0o755))

	m, root, _ := newTestManager(t, WithExamplesDir(examples))
	writeBundle(t, root, "pdf", "PDF", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)

	err = m.Delete(ctx, "pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, skilltypes.ErrExampleImmutable)
	assert.DirExists(t, filepath.Join(root, "pdf"))

	_, err = m.Get("PDF")
	assert.NoError(t, err, "refused delete keeps the record")
}

func TestWriteCreatesBundleAndConfig(t *testing.T) {
	m, root, _ := newTestManager(t)

	ctx := context.Background()
	content := descriptor.Build("My Tool", "Does things", "\nUse it wisely.\n")
	require.NoError(t, m.Write(ctx, "my-tool", content))

	got, err := os.ReadFile(filepath.Join(root, "my-tool", descriptor.FileName))
	require.NoError(t, err)
	assert.Equal(t, content, got)

	doc, err := m.store.Load(ctx, "tester")
	require.NoError(t, err)
	entry, ok := doc.Skills["My Tool"]
	require.True(t, ok)
	assert.True(t, entry.EnabledValue())

	// The record is visible without an explicit reconciliation.
	skill, err := m.Get("My Tool")
	require.NoError(t, err)
	assert.Equal(t, "my-tool", skill.DirName)
	assert.Equal(t, string(content), skill.Content)

	skills, err := m.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, "My Tool", skills[0].Name)
}

func TestWriteUpdatesExistingBundle(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "tool", "Tool", "old description")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)
	before, err := m.Get("Tool")
	require.NoError(t, err)

	content := descriptor.Build("Tool", "new description", "\nNew body.\n")
	require.NoError(t, m.Write(ctx, "tool", content))

	after, err := m.Get("Tool")
	require.NoError(t, err)
	assert.Equal(t, "new description", after.Description)
	assert.Equal(t, before.AddedAt, after.AddedAt, "rewrite keeps the original entry")
}

func TestWriteRejectsInvalidContent(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.Write(context.Background(), "tool", []byte("no frontmatter"))
	require.Error(t, err)
	assert.ErrorIs(t, err, skilltypes.ErrInvalidInput)
}

func TestWriteRejectsUnsafeFolder(t *testing.T) {
	m, root, _ := newTestManager(t)
	content := descriptor.Build("Evil", "escape attempt", "")

	err := m.Write(context.Background(), "../evil", content)
	require.Error(t, err)
	assert.ErrorIs(t, err, skilltypes.ErrUnsafePath)
	assert.NoDirExists(t, filepath.Join(filepath.Dir(root), "evil"))

	err = m.Write(context.Background(), "", content)
	require.Error(t, err)
	assert.ErrorIs(t, err, skilltypes.ErrInvalidInput)
}

func TestLoadContentNotFound(t *testing.T) {
	m, _, _ := newTestManager(t)
	_, err := m.LoadContent(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, skilltypes.ErrNotFound)
}

func TestListFiles(t *testing.T) {
	m, root, _ := newTestManager(t)
	writeBundle(t, root, "tool", "Tool", "d")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tool", "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tool", "scripts", "run.py"), []byte("pass"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tool", "REFERENCE.md"), []byte("ref"), 0o644))

	files, err := m.ListFiles(context.Background(), "tool")
	require.NoError(t, err)
	assert.Equal(t, []string{"REFERENCE.md", "SKILL.md", "scripts/run.py"}, files)

	_, err = m.ListFiles(context.Background(), "ghost")
	assert.ErrorIs(t, err, skilltypes.ErrNotFound)

	_, err = m.ListFiles(context.Background(), "../outside")
	assert.ErrorIs(t, err, skilltypes.ErrUnsafePath)
}

func TestManagerImportReconciles(t *testing.T) {
	m, root, _ := newTestManager(t)

	archive := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	fw, err := w.Create("imported/SKILL.md")
	require.NoError(t, err)
	_, err = fw.Write(descriptor.Build("Imported", "Fresh from an archive", "\nHello.\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	ctx := context.Background()
	result, err := m.Import(ctx, importer.Request{ArchivePath: archive})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	assert.FileExists(t, filepath.Join(root, "Imported", descriptor.FileName))

	skill, err := m.Get("Imported")
	require.NoError(t, err)
	assert.True(t, skill.Enabled)

	doc, err := m.store.Load(ctx, "tester")
	require.NoError(t, err)
	_, ok := doc.Skills["Imported"]
	assert.True(t, ok)
}

type fakeRecorder struct {
	events []recordedEvent
}

type recordedEvent struct {
	userID string
	action string
	skill  string
	detail string
}

func (f *fakeRecorder) Record(_ context.Context, userID, action, skillName, detail string) error {
	f.events = append(f.events, recordedEvent{userID, action, skillName, detail})
	return nil
}

func TestMutationsRecordHistory(t *testing.T) {
	rec := &fakeRecorder{}
	m, root, _ := newTestManager(t, WithHistory(rec))
	writeBundle(t, root, "tool", "Tool", "d")

	ctx := context.Background()
	_, err := m.Reconcile(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Toggle(ctx, "Tool", false))
	require.NoError(t, m.Write(ctx, "other", descriptor.Build("Other", "d", "")))
	require.NoError(t, m.Delete(ctx, "tool"))

	require.Len(t, rec.events, 3)
	assert.Equal(t, "toggle", rec.events[0].action)
	assert.Equal(t, "Tool", rec.events[0].skill)
	assert.Equal(t, "tester", rec.events[0].userID)
	assert.Equal(t, "write", rec.events[1].action)
	assert.Equal(t, "delete", rec.events[2].action)
}
