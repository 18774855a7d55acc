// Package skillconfig persists per-user skill configuration documents as
// JSON files, one document per user id. Writes are write-then-rename and
// best-effort: the store targets a single-process desktop host and does no
// cross-process locking.
package skillconfig

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jingkaihe/skillet/pkg/logger"
	skilltypes "github.com/jingkaihe/skillet/pkg/types/skills"
)

// DefaultDir returns the default directory for configuration documents.
func DefaultDir() (string, error) {
	if basePath := os.Getenv("SKILLET_BASE_PATH"); basePath != "" {
		return filepath.Join(basePath, "skill-config"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".skillet", "skill-config"), nil
}

// Store reads and writes one configuration document per user.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// DocumentPath returns the path of a user's configuration document. The
// user id is opaque and caller-supplied, so it is flattened before being
// used as a file name.
func (s *Store) DocumentPath(userID string) string {
	return filepath.Join(s.dir, flattenUserID(userID)+".json")
}

var userIDReplacer = strings.NewReplacer("..", "_", "/", "_", "\\", "_", ":", "_")

func flattenUserID(userID string) string {
	if userID == "" {
		return "default"
	}
	return userIDReplacer.Replace(userID)
}

// Load returns the user's configuration document. A missing document is
// not an error: an empty document is created, persisted, and returned.
func (s *Store) Load(ctx context.Context, userID string) (*skilltypes.ConfigDocument, error) {
	path := s.DocumentPath(userID)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read config document %s", path)
		}
		doc := skilltypes.NewConfigDocument()
		if err := s.Save(ctx, userID, doc); err != nil {
			return nil, errors.Wrap(err, "failed to provision config document")
		}
		logger.G(ctx).WithField("path", path).Debug("provisioned empty skill config document")
		return doc, nil
	}

	return decodeDocument(data, path)
}

// ReadDocument reads a configuration document from an arbitrary path, used
// for project-level documents layered over the user's global one. Callers
// detect a missing document with errors.Is(err, os.ErrNotExist).
func ReadDocument(path string) (*skilltypes.ConfigDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeDocument(data, path)
}

func decodeDocument(data []byte, path string) (*skilltypes.ConfigDocument, error) {
	doc := &skilltypes.ConfigDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config document %s", path)
	}
	if doc.Version == 0 {
		doc.Version = skilltypes.ConfigVersion
	}
	if doc.Skills == nil {
		doc.Skills = make(map[string]skilltypes.ConfigEntry)
	}
	return doc, nil
}

// Save writes the full document, staging to a temp file and renaming over
// the target.
func (s *Store) Save(ctx context.Context, userID string, doc *skilltypes.ConfigDocument) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal config document")
	}

	path := s.DocumentPath(userID)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write config document")
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to finalize config document")
	}
	return nil
}

// InitializeDefaults merges the given entries into the user's document,
// adding only entries whose skill name is absent. Existing entries are
// never overwritten. Returns the number of entries added.
func (s *Store) InitializeDefaults(ctx context.Context, userID string, defaults map[string]skilltypes.ConfigEntry) (int, error) {
	doc, err := s.Load(ctx, userID)
	if err != nil {
		return 0, err
	}

	added := 0
	for name, entry := range defaults {
		if _, ok := doc.Skills[name]; ok {
			continue
		}
		doc.Skills[name] = entry
		added++
	}
	if added == 0 {
		return 0, nil
	}

	if err := s.Save(ctx, userID, doc); err != nil {
		return 0, err
	}
	logger.G(ctx).WithFields(logrus.Fields{
		"user":  userID,
		"added": added,
	}).Info("initialized default skill config entries")
	return added, nil
}

// SetEnabled flips one entry's enabled flag, creating the entry with
// defaults when it does not exist yet.
func (s *Store) SetEnabled(ctx context.Context, userID, skillName string, enabled bool) error {
	if skillName == "" {
		return errors.Wrap(skilltypes.ErrInvalidInput, "skill name is empty")
	}
	doc, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}

	entry, ok := doc.Skills[skillName]
	if !ok {
		entry = skilltypes.DefaultConfigEntry(skilltypes.NowMillis(), false)
	}
	entry.Enabled = &enabled
	doc.Skills[skillName] = entry

	return s.Save(ctx, userID, doc)
}

// UpdateEntry replaces one entry wholesale.
func (s *Store) UpdateEntry(ctx context.Context, userID, skillName string, entry skilltypes.ConfigEntry) error {
	if skillName == "" {
		return errors.Wrap(skilltypes.ErrInvalidInput, "skill name is empty")
	}
	doc, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}

	doc.Skills[skillName] = entry
	return s.Save(ctx, userID, doc)
}

// DeleteEntry removes one entry. Deleting an absent entry is a no-op.
func (s *Store) DeleteEntry(ctx context.Context, userID, skillName string) error {
	doc, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}

	if _, ok := doc.Skills[skillName]; !ok {
		return nil
	}
	delete(doc.Skills, skillName)
	return s.Save(ctx, userID, doc)
}
