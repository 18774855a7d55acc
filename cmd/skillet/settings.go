package main

import (
	"context"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillet/pkg/db"
	"github.com/jingkaihe/skillet/pkg/history"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/skills"
)

// Settings is the resolved application configuration shared by every
// command: directory layout, configuration document owner, and the
// optional history database.
type Settings struct {
	SkillsDir     string        `mapstructure:"skills_dir"`
	ExamplesDir   string        `mapstructure:"examples_dir"`
	ConfigDir     string        `mapstructure:"config_dir"`
	ProjectConfig string        `mapstructure:"project_config"`
	User          string        `mapstructure:"user"`
	DBPath        string        `mapstructure:"db_path"`
	NoHistory     bool          `mapstructure:"no_history"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

// NewSettings returns settings with every field at its default.
func NewSettings() *Settings {
	return &Settings{
		User:          "default",
		WatchDebounce: 500 * time.Millisecond,
	}
}

// loadSettings decodes viper's merged configuration (file, environment,
// flags) on top of the defaults. Unset directory fields resolve to the
// standard ~/.skillet layout.
func loadSettings() (*Settings, error) {
	settings := NewSettings()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           settings,
		WeaklyTypedInput: true,
		ZeroFields:       false,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create settings decoder")
	}
	if err := decoder.Decode(viper.AllSettings()); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}

	if settings.SkillsDir == "" {
		if settings.SkillsDir, err = skills.DefaultRoot(); err != nil {
			return nil, err
		}
	}
	if settings.ExamplesDir == "" {
		if settings.ExamplesDir, err = skills.DefaultExamplesDir(); err != nil {
			return nil, err
		}
	}
	if settings.DBPath == "" {
		if settings.DBPath, err = db.DefaultDBPath(); err != nil {
			return nil, err
		}
	}

	return settings, nil
}

// newManager builds the skill manager for the resolved settings, wiring in
// the history store unless disabled. The returned cleanup function closes
// the history database and must be called when the command finishes.
func newManager(ctx context.Context, settings *Settings) (*skills.Manager, func(), error) {
	opts := []skills.Option{
		skills.WithExamplesDir(settings.ExamplesDir),
		skills.WithUserID(settings.User),
	}
	if settings.ConfigDir != "" {
		opts = append(opts, skills.WithConfigDir(settings.ConfigDir))
	}
	if settings.ProjectConfig != "" {
		opts = append(opts, skills.WithProjectConfigPath(settings.ProjectConfig))
	}

	cleanup := func() {}
	if !settings.NoHistory {
		store, err := history.Open(ctx, settings.DBPath)
		if err != nil {
			// The audit trail is best-effort; the library works without it.
			logger.G(ctx).WithError(err).Warn("failed to open history database, continuing without history")
		} else {
			opts = append(opts, skills.WithHistory(store))
			cleanup = func() {
				if err := store.Close(); err != nil {
					logger.G(ctx).WithError(err).Debug("failed to close history database")
				}
			}
		}
	}

	manager, err := skills.New(settings.SkillsDir, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return manager, cleanup, nil
}
