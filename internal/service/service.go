package service

import (
	"context"

	"vapor_recovery/internal/models"
)

type Authorization interface {
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (string, error)
}

// Control starts and stops cycles and forwards device commands.
type Control interface {
	StartCycle(ctx context.Context, req StartRequest) (models.CycleStatus, error)
	StopCycle(ctx context.Context) error
	PauseCycle(ctx context.Context) (models.PausedCycle, error)
	ResumeCycle(ctx context.Context) (models.CycleStatus, error)
	CycleStatus() models.CycleStatus
	Cycles() []models.CycleSequence
	SetLockout(ctx context.Context, on bool) error
	Locked() bool
	Calibrate(ctx context.Context)
	SetFastPoll(ctx context.Context, on bool)
	SetFailsafe(ctx context.Context, on bool)
	SetLinkSuspended(ctx context.Context, suspended bool)
	LinkSuspended() bool
}

// Monitoring exposes read-only supervisor state.
type Monitoring interface {
	Mode() models.ModeStatus
	Snapshot() models.SensorSnapshot
	Extended() models.ExtendedStatus
	Alarms() []models.Alarm
	ActiveAlarms() []models.Alarm
	AcknowledgeAlarm(kind models.AlarmKind) error
	ShutdownTimers() []models.ShutdownTimer
	Profile() Profile
	SetProfile(name string) (Profile, error)
	LatestCalibration(ctx context.Context) (*models.Calibration, error)
	Samples(ctx context.Context, f SampleFilter) ([]models.Sample, error)
}

// EventLog exposes the append-only event history.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
}

// Service aggregates what the HTTP layer needs.
type Service struct {
	Control
	Monitoring
	EventLog
	Authorization
}

func NewService(control Control, monitoring Monitoring, eventLog EventLog, auth Authorization) *Service {
	return &Service{
		Control:       control,
		Monitoring:    monitoring,
		EventLog:      eventLog,
		Authorization: auth,
	}
}
