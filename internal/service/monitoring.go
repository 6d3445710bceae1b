package service

import (
	"context"
	"fmt"
	"time"

	"vapor_recovery/internal/errs"
	"vapor_recovery/internal/models"
	"vapor_recovery/internal/repository"
)

// LinkReader is the read side of the serial transport.
type LinkReader interface {
	Snapshot() models.SensorSnapshot
	Extended() models.ExtendedStatus
	LastCalibration() (models.Calibration, bool)
}

// SampleReader queries stored sensor history.
type SampleReader interface {
	Range(ctx context.Context, from, to time.Time, limit int) ([]models.Sample, error)
}

// SampleFilter selects stored samples.
type SampleFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

const defaultSampleLimit = 1000

// MonitoringService is the read-only view over register, link, alarms and timers.
type MonitoringService struct {
	reg      *ModeRegister
	link     LinkReader
	alarms   *AlarmEngine
	shutdown *ShutdownProtocol
	profiles *ProfileRegistry
	cals     repository.CalibrationRepo
	samples  SampleReader
}

func NewMonitoringService(reg *ModeRegister, link LinkReader, alarms *AlarmEngine, shutdown *ShutdownProtocol,
	profiles *ProfileRegistry, cals repository.CalibrationRepo, samples SampleReader) *MonitoringService {
	return &MonitoringService{reg: reg, link: link, alarms: alarms, shutdown: shutdown, profiles: profiles, cals: cals, samples: samples}
}

func (s *MonitoringService) Mode() models.ModeStatus {
	m, rev := s.reg.Get()
	return models.ModeStatus{Mode: m, Revision: rev, WireCode: models.WireCodeFor(m), Relays: models.RelayVectorFor(m)}
}

func (s *MonitoringService) Snapshot() models.SensorSnapshot { return s.link.Snapshot() }

func (s *MonitoringService) Extended() models.ExtendedStatus { return s.link.Extended() }

func (s *MonitoringService) Alarms() []models.Alarm { return s.alarms.Alarms() }

func (s *MonitoringService) ActiveAlarms() []models.Alarm { return s.alarms.Active() }

func (s *MonitoringService) AcknowledgeAlarm(kind models.AlarmKind) error {
	return s.alarms.Acknowledge(kind)
}

func (s *MonitoringService) ShutdownTimers() []models.ShutdownTimer { return s.shutdown.Timers() }

func (s *MonitoringService) Profile() Profile { return s.profiles.Current() }

func (s *MonitoringService) SetProfile(name string) (Profile, error) {
	if err := s.profiles.Set(name); err != nil {
		return Profile{}, err
	}
	return s.profiles.Current(), nil
}

// LatestCalibration prefers the value seen on the link this session, then the stored one.
func (s *MonitoringService) LatestCalibration(ctx context.Context) (*models.Calibration, error) {
	if c, ok := s.link.LastCalibration(); ok {
		return &c, nil
	}
	if s.cals == nil {
		return nil, nil
	}
	return s.cals.Latest(ctx)
}

func (s *MonitoringService) Samples(ctx context.Context, f SampleFilter) ([]models.Sample, error) {
	from, to := normalizeToUTC(f.From), normalizeToUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, errs.ErrInvalidTimeRange
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultSampleLimit
	}
	out, err := s.samples.Range(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("MonitoringService.Samples: %w", err)
	}
	return out, nil
}
