// Package skills defines the shared data model for the skill library: the
// per-user configuration document, the merged in-memory skill record, and
// the import result types exchanged between the engine packages and the
// host application.
package skills

import (
	"time"

	"github.com/pkg/errors"
)

// ConfigVersion is the schema version written to new configuration documents.
const ConfigVersion = 1

var (
	// ErrNotFound indicates a referenced skill, bundle, or file is absent.
	// Delete-style operations treat it as a benign no-op.
	ErrNotFound = errors.New("skill not found")
	// ErrInvalidInput indicates a malformed caller input such as an empty
	// identifier, an unsupported archive type, or undecodable descriptor
	// content.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsafePath indicates a path that resolves outside its permitted
	// root. Always fatal to the triggering operation.
	ErrUnsafePath = errors.New("unsafe path")
	// ErrExampleImmutable indicates an attempt to delete a bundled example
	// skill. Examples can only be enabled or disabled.
	ErrExampleImmutable = errors.New("example skills cannot be deleted")
)

// Scope controls which agents can see a skill. A global scope is visible to
// every agent, including agents created later; otherwise visibility is
// restricted to SelectedAgents.
type Scope struct {
	IsGlobal       bool     `json:"isGlobal" jsonschema:"description=Whether the skill is visible to every agent"`
	SelectedAgents []string `json:"selectedAgents,omitempty" jsonschema:"description=Agents the skill is restricted to when not global"`
}

// GlobalScope returns the default scope visible to all agents.
func GlobalScope() Scope {
	return Scope{IsGlobal: true}
}

// Equal reports whether two scopes are equivalent.
func (s Scope) Equal(other Scope) bool {
	if s.IsGlobal != other.IsGlobal {
		return false
	}
	if len(s.SelectedAgents) != len(other.SelectedAgents) {
		return false
	}
	for i, agent := range s.SelectedAgents {
		if other.SelectedAgents[i] != agent {
			return false
		}
	}
	return true
}

// ConfigEntry is one skill's persisted configuration. Optional fields are
// pointers so that documents written by older versions of the application
// keep their meaning: an absent field is defaulted explicitly instead of
// collapsing to the zero value. AddedAt is epoch milliseconds.
type ConfigEntry struct {
	Enabled   *bool  `json:"enabled,omitempty" jsonschema:"description=Whether the skill is enabled; absent means enabled"`
	Scope     *Scope `json:"scope,omitempty" jsonschema:"description=Agent visibility; absent means global"`
	AddedAt   int64  `json:"addedAt" jsonschema:"description=When the skill was first configured in epoch milliseconds"`
	IsExample *bool  `json:"isExample,omitempty" jsonschema:"description=Whether the skill is a bundled example"`
}

// NewConfigEntry returns an entry with every field populated.
func NewConfigEntry(enabled bool, scope Scope, addedAt int64, isExample bool) ConfigEntry {
	return ConfigEntry{
		Enabled:   &enabled,
		Scope:     &scope,
		AddedAt:   addedAt,
		IsExample: &isExample,
	}
}

// DefaultConfigEntry returns the entry synthesized for a bundle that has no
// configuration yet: enabled, global scope.
func DefaultConfigEntry(addedAt int64, isExample bool) ConfigEntry {
	return NewConfigEntry(true, GlobalScope(), addedAt, isExample)
}

// EnabledValue resolves the enabled flag, defaulting to true when absent.
func (e ConfigEntry) EnabledValue() bool {
	if e.Enabled == nil {
		return true
	}
	return *e.Enabled
}

// ScopeValue resolves the scope, defaulting to global when absent.
func (e ConfigEntry) ScopeValue() Scope {
	if e.Scope == nil {
		return GlobalScope()
	}
	return *e.Scope
}

// IsExampleValue resolves the example flag, falling back to the
// scan-derived classification when absent.
func (e ConfigEntry) IsExampleValue(fallback bool) bool {
	if e.IsExample == nil {
		return fallback
	}
	return *e.IsExample
}

// ConfigDocument is the per-user configuration file, keyed by skill display
// name.
type ConfigDocument struct {
	Version int                    `json:"version" jsonschema:"description=Schema version of the document"`
	Skills  map[string]ConfigEntry `json:"skills" jsonschema:"description=Per-skill configuration keyed by skill display name"`
}

// NewConfigDocument returns an empty document at the current schema version.
func NewConfigDocument() *ConfigDocument {
	return &ConfigDocument{
		Version: ConfigVersion,
		Skills:  make(map[string]ConfigEntry),
	}
}

// Skill is the merged in-memory record: on-disk identity (DirName), the
// descriptor content, and the effective configuration. The display Name is
// the configuration key; DirName is the folder under the skills root. The
// two are not guaranteed equal.
type Skill struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	DirName        string `json:"dirName"`
	DescriptorPath string `json:"descriptorPath"`
	Enabled        bool   `json:"enabled"`
	Scope          Scope  `json:"scope"`
	AddedAt        int64  `json:"addedAt"`
	IsExample      bool   `json:"isExample"`
	// Content caches the descriptor file content once a caller has loaded
	// it; reconciliation preserves it across passes keyed by DirName.
	Content string `json:"content,omitempty"`
}

// ImportConflict reports a display-name collision between an incoming
// bundle and one already on disk. ExistingFolderName is the folder of the
// bundle already present; confirming that folder name on a re-invocation
// authorizes its replacement.
type ImportConflict struct {
	ExistingFolderName string `json:"existingFolderName"`
	SkillName          string `json:"skillName"`
	// IncomingDescriptor carries the incoming bundle's descriptor content
	// so the host can present a meaningful resolution prompt.
	IncomingDescriptor string `json:"incomingDescriptor,omitempty"`
}

// ImportResult is the outcome of one import invocation.
type ImportResult struct {
	Imported  int              `json:"imported"`
	Conflicts []ImportConflict `json:"conflicts,omitempty"`
}

// NowMillis returns the current time as epoch milliseconds, the unit used
// for ConfigEntry.AddedAt.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
