package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vapor_recovery/internal/models"
)

const (
	insertCalibrationSQL = `INSERT INTO calibrations (value, recorded_at) VALUES (?, ?)`
	selectLatestCalibrationSQL = `
		SELECT value, recorded_at FROM calibrations
		ORDER BY recorded_at DESC, id DESC LIMIT 1
	`
)

type CalibrationSQLite struct {
	db *sql.DB
}

func NewCalibrationSQLite(db *sql.DB) *CalibrationSQLite { return &CalibrationSQLite{db: db} }

func (r *CalibrationSQLite) Save(ctx context.Context, c models.Calibration) error {
	ts := c.RecordedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, insertCalibrationSQL, c.Value, ts.UTC()); err != nil {
		return fmt.Errorf("CalibrationSQLite.Save: %w", err)
	}
	return nil
}

// Latest returns the newest calibration, or nil when none was recorded.
func (r *CalibrationSQLite) Latest(ctx context.Context) (*models.Calibration, error) {
	var c models.Calibration
	err := r.db.QueryRowContext(ctx, selectLatestCalibrationSQL).Scan(&c.Value, &c.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("CalibrationSQLite.Latest: %w", err)
	}
	c.RecordedAt = c.RecordedAt.UTC()
	return &c, nil
}
