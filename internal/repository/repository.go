package repository

import (
	"context"
	"database/sql"
	"time"

	"vapor_recovery/internal/models"
)

type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.Event, error)
}

// ShutdownRepo persists one timer per alarm category.
type ShutdownRepo interface {
	Save(ctx context.Context, t models.ShutdownTimer) error
	Delete(ctx context.Context, category models.AlarmKind) error
	List(ctx context.Context) ([]models.ShutdownTimer, error)
}

// CycleStateRepo keeps at most one paused cycle. LoadPaused returns nil when none is saved.
type CycleStateRepo interface {
	SavePaused(ctx context.Context, p models.PausedCycle) error
	LoadPaused(ctx context.Context) (*models.PausedCycle, error)
	ClearPaused(ctx context.Context) error
}

type CalibrationRepo interface {
	Save(ctx context.Context, c models.Calibration) error
	Latest(ctx context.Context) (*models.Calibration, error)
}

type Repository struct {
	EventRepo       EventRepo
	ShutdownRepo    ShutdownRepo
	CycleStateRepo  CycleStateRepo
	CalibrationRepo CalibrationRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo:       NewEventSQLite(db),
		ShutdownRepo:    NewShutdownSQLite(db),
		CycleStateRepo:  NewCycleStateSQLite(db),
		CalibrationRepo: NewCalibrationSQLite(db),
	}
}
