package migrations

import (
	"database/sql"

	"github.com/jingkaihe/skillet/pkg/db"
	"github.com/pkg/errors"
)

// Migration20260825090001AddSkillEventsIndexes adds lookup indexes to the
// skill_events table.
func Migration20260825090001AddSkillEventsIndexes() db.Migration {
	return db.Migration{
		Version:     20260825090001,
		Description: "Add indexes to skill_events table",
		Up: func(tx *sql.Tx) error {
			indexes := []string{
				"CREATE INDEX IF NOT EXISTS idx_skill_events_user_occurred ON skill_events(user_id, occurred_at DESC)",
				"CREATE INDEX IF NOT EXISTS idx_skill_events_skill_name ON skill_events(skill_name)",
			}
			for _, stmt := range indexes {
				if _, err := tx.Exec(stmt); err != nil {
					return errors.Wrapf(err, "failed to create index: %s", stmt)
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			drops := []string{
				"DROP INDEX IF EXISTS idx_skill_events_user_occurred",
				"DROP INDEX IF EXISTS idx_skill_events_skill_name",
			}
			for _, stmt := range drops {
				if _, err := tx.Exec(stmt); err != nil {
					return errors.Wrapf(err, "failed to drop index: %s", stmt)
				}
			}
			return nil
		},
	}
}
