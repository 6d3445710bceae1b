package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vapor_recovery/internal/models"
)

type CycleStateSQLite struct {
	db *sql.DB
}

func NewCycleStateSQLite(db *sql.DB) *CycleStateSQLite {
	return &CycleStateSQLite{db: db}
}

const (
	pausedCycleRowID = 1

	upsertPausedCycleSQL = `
		INSERT INTO cycle_pause (id, name, manual, origin, steps, paused_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			manual=excluded.manual,
			origin=excluded.origin,
			steps=excluded.steps,
			paused_at=excluded.paused_at
	`

	selectPausedCycleSQL = `
		SELECT name, manual, origin, steps, paused_at
		FROM cycle_pause WHERE id=?
	`

	deletePausedCycleSQL = `DELETE FROM cycle_pause WHERE id=?`
)

// marshalSteps converts the remaining steps to a JSON string.
func marshalSteps(steps []models.CycleStep) (string, error) {
	b, err := json.Marshal(steps)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalSteps(s string) ([]models.CycleStep, error) {
	if s == "" {
		return nil, nil
	}
	var steps []models.CycleStep
	if err := json.Unmarshal([]byte(s), &steps); err != nil {
		return nil, err
	}
	return steps, nil
}

// SavePaused replaces the single paused-cycle row.
func (r *CycleStateSQLite) SavePaused(ctx context.Context, p models.PausedCycle) error {
	steps, err := marshalSteps(p.Sequence.Steps)
	if err != nil {
		return fmt.Errorf("CycleStateSQLite.SavePaused: %w", err)
	}

	ts := p.PausedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	_, err = r.db.ExecContext(ctx, upsertPausedCycleSQL,
		pausedCycleRowID,
		p.Sequence.Name,
		p.Sequence.Manual,
		string(p.Origin),
		steps,
		ts,
	)
	if err != nil {
		return fmt.Errorf("CycleStateSQLite.SavePaused: %w", err)
	}
	return nil
}

// LoadPaused returns the saved cycle, or nil when there is none.
func (r *CycleStateSQLite) LoadPaused(ctx context.Context) (*models.PausedCycle, error) {
	row := r.db.QueryRowContext(ctx, selectPausedCycleSQL, pausedCycleRowID)

	var (
		p      models.PausedCycle
		origin string
		steps  string
	)
	if err := row.Scan(&p.Sequence.Name, &p.Sequence.Manual, &origin, &steps, &p.PausedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("CycleStateSQLite.LoadPaused: %w", err)
	}

	parsed, err := unmarshalSteps(steps)
	if err != nil {
		return nil, fmt.Errorf("CycleStateSQLite.LoadPaused: steps: %w", err)
	}
	p.Sequence.Steps = parsed
	p.Origin = models.Origin(origin)
	p.PausedAt = p.PausedAt.UTC()
	return &p, nil
}

func (r *CycleStateSQLite) ClearPaused(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, deletePausedCycleSQL, pausedCycleRowID); err != nil {
		return fmt.Errorf("CycleStateSQLite.ClearPaused: %w", err)
	}
	return nil
}
