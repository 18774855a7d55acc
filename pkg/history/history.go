// Package history persists a log of skill library mutations in the shared
// SQLite database.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillet/pkg/db"
	"github.com/jingkaihe/skillet/pkg/db/migrations"
)

// DefaultLimit bounds Recent queries when the caller passes no limit.
const DefaultLimit = 50

// Event is one recorded mutation.
type Event struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"userId"`
	Action     string    `db:"action" json:"action"`
	SkillName  string    `db:"skill_name" json:"skillName"`
	Detail     string    `db:"detail" json:"detail,omitempty"`
	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`
}

// Store records and queries skill events. It satisfies the manager's
// Recorder interface.
type Store struct {
	db *sqlx.DB
}

// Open opens the store at dbPath, applying pending migrations first.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	sqlDB, err := db.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	runner := db.NewMigrationRunner(sqlDB)
	if err := runner.Run(ctx, migrations.All()); err != nil {
		sqlDB.Close()
		return nil, errors.Wrap(err, "failed to run migrations")
	}

	return &Store{db: sqlDB}, nil
}

// Record stores one event.
func (s *Store) Record(ctx context.Context, userID, action, skillName, detail string) error {
	event := Event{
		ID:         uuid.NewString(),
		UserID:     userID,
		Action:     action,
		SkillName:  skillName,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO skill_events (id, user_id, action, skill_name, detail, occurred_at)
		VALUES (:id, :user_id, :action, :skill_name, :detail, :occurred_at)
	`, event)
	return errors.Wrap(err, "failed to record skill event")
}

// Recent returns a user's newest events, most recent first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var events []Event
	err := s.db.SelectContext(ctx, &events, `
		SELECT id, user_id, action, skill_name, detail, occurred_at
		FROM skill_events
		WHERE user_id = ?
		ORDER BY occurred_at DESC, id
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query skill events")
	}
	return events, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
