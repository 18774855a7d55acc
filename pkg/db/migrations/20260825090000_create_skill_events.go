package migrations

import (
	"database/sql"

	"github.com/jingkaihe/skillet/pkg/db"
	"github.com/pkg/errors"
)

// Migration20260825090000CreateSkillEvents creates the skill_events table.
func Migration20260825090000CreateSkillEvents() db.Migration {
	return db.Migration{
		Version:     20260825090000,
		Description: "Create skill_events table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS skill_events (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					action TEXT NOT NULL,
					skill_name TEXT NOT NULL,
					detail TEXT,
					occurred_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create skill_events table")
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP TABLE IF EXISTS skill_events"); err != nil {
				return errors.Wrap(err, "failed to drop skill_events table")
			}
			return nil
		},
	}
}
