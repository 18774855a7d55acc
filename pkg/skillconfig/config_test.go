package skillconfig

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

func TestLoadProvisionsMissingDocument(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "skill-config"))
	ctx := context.Background()

	doc, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, skilltypes.ConfigVersion, doc.Version)
	assert.Empty(t, doc.Skills)

	// The empty document is persisted, not just returned.
	data, err := os.ReadFile(store.DocumentPath("user-1"))
	require.NoError(t, err)
	onDisk := &skilltypes.ConfigDocument{}
	require.NoError(t, json.Unmarshal(data, onDisk))
	assert.Equal(t, skilltypes.ConfigVersion, onDisk.Version)
}

func TestLoadExistingDocument(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	ctx := context.Background()

	content := `{
  "version": 1,
  "skills": {
    "my-skill": {
      "enabled": false,
      "scope": {"isGlobal": false, "selectedAgents": ["coder"]},
      "addedAt": 1700000000000,
      "isExample": true
    }
  }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.json"), []byte(content), 0o644))

	doc, err := store.Load(ctx, "alice")
	require.NoError(t, err)
	entry, ok := doc.Skills["my-skill"]
	require.True(t, ok)
	assert.False(t, entry.EnabledValue())
	assert.False(t, entry.ScopeValue().IsGlobal)
	assert.Equal(t, []string{"coder"}, entry.ScopeValue().SelectedAgents)
	assert.Equal(t, int64(1700000000000), entry.AddedAt)
	assert.True(t, entry.IsExampleValue(false))
}

func TestLoadDefaultsMissingEntryFields(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	// A document written by an older version may carry bare entries.
	content := `{"version": 1, "skills": {"old-skill": {"addedAt": 123}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bob.json"), []byte(content), 0o644))

	doc, err := store.Load(context.Background(), "bob")
	require.NoError(t, err)
	entry := doc.Skills["old-skill"]
	assert.True(t, entry.EnabledValue())
	assert.True(t, entry.ScopeValue().IsGlobal)
	assert.False(t, entry.IsExampleValue(false))
	assert.True(t, entry.IsExampleValue(true))
}

func TestLoadCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "carol.json"), []byte("{not json"), 0o644))

	_, err := store.Load(context.Background(), "carol")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	doc := skilltypes.NewConfigDocument()
	doc.Skills["skill-a"] = skilltypes.DefaultConfigEntry(42, false)
	require.NoError(t, store.Save(ctx, "dave", doc))

	loaded, err := store.Load(ctx, "dave")
	require.NoError(t, err)
	entry := loaded.Skills["skill-a"]
	assert.True(t, entry.EnabledValue())
	assert.Equal(t, int64(42), entry.AddedAt)

	// No staging file left behind.
	_, err = os.Stat(store.DocumentPath("dave") + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestInitializeDefaults(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	doc := skilltypes.NewConfigDocument()
	existing := skilltypes.NewConfigEntry(false, skilltypes.GlobalScope(), 1, true)
	doc.Skills["pdf"] = existing
	require.NoError(t, store.Save(ctx, "erin", doc))

	defaults := map[string]skilltypes.ConfigEntry{
		"pdf":         skilltypes.DefaultConfigEntry(99, true),
		"code-review": skilltypes.DefaultConfigEntry(99, true),
	}

	added, err := store.InitializeDefaults(ctx, "erin", defaults)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	loaded, err := store.Load(ctx, "erin")
	require.NoError(t, err)
	// The pre-existing entry is untouched.
	assert.False(t, loaded.Skills["pdf"].EnabledValue())
	assert.Equal(t, int64(1), loaded.Skills["pdf"].AddedAt)
	assert.Equal(t, int64(99), loaded.Skills["code-review"].AddedAt)

	// Second run adds nothing.
	added, err = store.InitializeDefaults(ctx, "erin", defaults)
	require.NoError(t, err)
	assert.Equal(t, 0, added)
}

func TestSetEnabled(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	t.Run("existing entry keeps other fields", func(t *testing.T) {
		doc := skilltypes.NewConfigDocument()
		doc.Skills["skill"] = skilltypes.NewConfigEntry(true, skilltypes.Scope{SelectedAgents: []string{"coder"}}, 7, true)
		require.NoError(t, store.Save(ctx, "frank", doc))

		require.NoError(t, store.SetEnabled(ctx, "frank", "skill", false))

		loaded, err := store.Load(ctx, "frank")
		require.NoError(t, err)
		entry := loaded.Skills["skill"]
		assert.False(t, entry.EnabledValue())
		assert.Equal(t, []string{"coder"}, entry.ScopeValue().SelectedAgents)
		assert.Equal(t, int64(7), entry.AddedAt)
		assert.True(t, entry.IsExampleValue(false))
	})

	t.Run("absent entry is created with defaults", func(t *testing.T) {
		require.NoError(t, store.SetEnabled(ctx, "frank", "fresh", false))

		loaded, err := store.Load(ctx, "frank")
		require.NoError(t, err)
		entry, ok := loaded.Skills["fresh"]
		require.True(t, ok)
		assert.False(t, entry.EnabledValue())
		assert.True(t, entry.ScopeValue().IsGlobal)
		assert.NotZero(t, entry.AddedAt)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		err := store.SetEnabled(ctx, "frank", "", true)
		assert.ErrorIs(t, err, skilltypes.ErrInvalidInput)
	})
}

func TestUpdateEntry(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	entry := skilltypes.NewConfigEntry(false, skilltypes.Scope{SelectedAgents: []string{"a", "b"}}, 5, false)
	require.NoError(t, store.UpdateEntry(ctx, "grace", "skill", entry))

	loaded, err := store.Load(ctx, "grace")
	require.NoError(t, err)
	got := loaded.Skills["skill"]
	assert.False(t, got.EnabledValue())
	assert.Equal(t, []string{"a", "b"}, got.ScopeValue().SelectedAgents)
	assert.Equal(t, int64(5), got.AddedAt)
}

func TestDeleteEntry(t *testing.T) {
	store := NewStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.UpdateEntry(ctx, "heidi", "skill", skilltypes.DefaultConfigEntry(1, false)))
	require.NoError(t, store.DeleteEntry(ctx, "heidi", "skill"))

	loaded, err := store.Load(ctx, "heidi")
	require.NoError(t, err)
	assert.NotContains(t, loaded.Skills, "skill")

	// Deleting again is benign.
	require.NoError(t, store.DeleteEntry(ctx, "heidi", "skill"))
}

func TestDocumentPathFlattensUserID(t *testing.T) {
	store := NewStore("/tmp/conf")

	assert.Equal(t, filepath.Join("/tmp/conf", "default.json"), store.DocumentPath(""))

	for _, userID := range []string{"../escape", "a/b", `a\b`, "c:d"} {
		path := store.DocumentPath(userID)
		assert.Equal(t, "/tmp/conf", filepath.Dir(path), "user id %q must stay inside the config dir", userID)
	}
}

func TestReadDocument(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadDocument(filepath.Join(dir, "absent.json"))
	assert.True(t, os.IsNotExist(err))

	path := filepath.Join(dir, "project.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"skills":{"s":{"enabled":false,"addedAt":1}}}`), 0o644))

	doc, err := ReadDocument(path)
	require.NoError(t, err)
	assert.False(t, doc.Skills["s"].EnabledValue())
}
