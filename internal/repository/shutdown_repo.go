package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vapor_recovery/internal/models"
)

const (
	upsertShutdownTimerSQL = `
		INSERT INTO shutdown_timers (category, onset, stage, shutdown_sent, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET
			onset=excluded.onset,
			stage=excluded.stage,
			shutdown_sent=excluded.shutdown_sent,
			updated_at=excluded.updated_at
	`
	deleteShutdownTimerSQL = `DELETE FROM shutdown_timers WHERE category=?`
	selectShutdownTimersSQL = `
		SELECT category, onset, stage, shutdown_sent, updated_at
		FROM shutdown_timers ORDER BY onset ASC
	`
)

// ShutdownSQLite stores one row per alarm category so timers survive a restart.
type ShutdownSQLite struct {
	db *sql.DB
}

func NewShutdownSQLite(db *sql.DB) *ShutdownSQLite { return &ShutdownSQLite{db: db} }

func (r *ShutdownSQLite) Save(ctx context.Context, t models.ShutdownTimer) error {
	updated := t.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := r.db.ExecContext(ctx, upsertShutdownTimerSQL,
		string(t.Category),
		t.Onset.UTC(),
		int(t.Stage),
		t.ShutdownSent,
		updated.UTC(),
	)
	if err != nil {
		return fmt.Errorf("ShutdownSQLite.Save: %w", err)
	}
	return nil
}

func (r *ShutdownSQLite) Delete(ctx context.Context, category models.AlarmKind) error {
	if _, err := r.db.ExecContext(ctx, deleteShutdownTimerSQL, string(category)); err != nil {
		return fmt.Errorf("ShutdownSQLite.Delete: %w", err)
	}
	return nil
}

// List returns all persisted timers, oldest onset first.
func (r *ShutdownSQLite) List(ctx context.Context) ([]models.ShutdownTimer, error) {
	rows, err := r.db.QueryContext(ctx, selectShutdownTimersSQL)
	if err != nil {
		return nil, fmt.Errorf("ShutdownSQLite.List: %w", err)
	}
	defer rows.Close()

	var out []models.ShutdownTimer
	for rows.Next() {
		var (
			t        models.ShutdownTimer
			category string
			stage    int
		)
		if err := rows.Scan(&category, &t.Onset, &stage, &t.ShutdownSent, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ShutdownSQLite.List: %w", err)
		}
		t.Category = models.AlarmKind(category)
		t.Stage = models.ShutdownStage(stage)
		t.StageName = t.Stage.String()
		t.Onset = t.Onset.UTC()
		t.UpdatedAt = t.UpdatedAt.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ShutdownSQLite.List: %w", err)
	}
	return out, nil
}
