package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"vapor_recovery/internal/errs"
	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/models"
)

// StartRequest names a catalog cycle to run.
type StartRequest struct {
	Name   string
	Origin models.Origin
	// Bypass skips the local lockout; set for commands relayed by the device.
	Bypass bool
}

// DeviceCommander is the transport's command surface.
type DeviceCommander interface {
	RequestCalibration()
	SetFastPoll(on bool)
	SetFailsafe(on bool)
	Suspend()
	Resume()
	Suspended() bool
}

// ControlService exposes start/stop/pause of catalog cycles plus device commands.
type ControlService struct {
	engine  *CycleEngine
	catalog *Catalog
	device  DeviceCommander
	notify  Notifier
	log     *logger.Logger

	locked atomic.Bool
}

func NewControlService(engine *CycleEngine, catalog *Catalog, device DeviceCommander, notify Notifier, log *logger.Logger) *ControlService {
	return &ControlService{engine: engine, catalog: catalog, device: device, notify: notify, log: log}
}

// StartCycle looks the cycle up in the catalog and starts it.
func (s *ControlService) StartCycle(ctx context.Context, req StartRequest) (models.CycleStatus, error) {
	if s.locked.Load() && !req.Bypass {
		return models.CycleStatus{}, errs.ErrLocked
	}
	seq, err := s.catalog.Get(req.Name)
	if err != nil {
		return models.CycleStatus{}, err
	}
	origin := req.Origin
	if origin == "" {
		origin = models.OriginOperator
	}
	if _, err := s.engine.Start(ctx, seq, origin); err != nil {
		return models.CycleStatus{}, fmt.Errorf("StartCycle %s: %w", req.Name, err)
	}
	return s.engine.Status(), nil
}

// StopCycle cancels the active cycle, discards any paused one and forces Rest.
func (s *ControlService) StopCycle(ctx context.Context) error {
	return s.engine.Stop(ctx)
}

func (s *ControlService) PauseCycle(ctx context.Context) (models.PausedCycle, error) {
	return s.engine.Pause(ctx)
}

func (s *ControlService) ResumeCycle(ctx context.Context) (models.CycleStatus, error) {
	if s.locked.Load() {
		return models.CycleStatus{}, errs.ErrLocked
	}
	if _, err := s.engine.Resume(ctx); err != nil {
		return models.CycleStatus{}, err
	}
	return s.engine.Status(), nil
}

func (s *ControlService) CycleStatus() models.CycleStatus { return s.engine.Status() }

func (s *ControlService) Cycles() []models.CycleSequence { return s.catalog.List() }

// SetLockout toggles the local lockout. Engaging it stops any cycle.
func (s *ControlService) SetLockout(ctx context.Context, on bool) error {
	if s.locked.Swap(on) == on {
		return nil
	}
	s.log.Infow("local_lockout_changed", "locked", on)
	s.emit(ctx, models.EventRemote, "Local lockout changed", map[string]any{"locked": on})
	if on {
		return s.engine.Stop(ctx)
	}
	return nil
}

func (s *ControlService) Locked() bool { return s.locked.Load() }

func (s *ControlService) Calibrate(ctx context.Context) {
	s.device.RequestCalibration()
	s.emit(ctx, models.EventCalibration, "Calibration requested", nil)
}

func (s *ControlService) SetFastPoll(ctx context.Context, on bool) {
	s.device.SetFastPoll(on)
	s.log.Infow("fast_poll_requested", "on", on)
}

func (s *ControlService) SetFailsafe(ctx context.Context, on bool) {
	s.device.SetFailsafe(on)
	s.emit(ctx, models.EventFault, "Failsafe changed", map[string]any{"enabled": on})
}

// SetLinkSuspended lends the serial link out (suspended) or takes it back.
// While suspended nothing is sent and snapshots go stale.
func (s *ControlService) SetLinkSuspended(ctx context.Context, suspended bool) {
	if s.device.Suspended() == suspended {
		return
	}
	if suspended {
		s.device.Suspend()
	} else {
		s.device.Resume()
	}
	s.emit(ctx, models.EventFault, "Serial link changed", map[string]any{"suspended": suspended})
}

func (s *ControlService) LinkSuspended() bool { return s.device.Suspended() }

func (s *ControlService) emit(ctx context.Context, typ, msg string, meta map[string]any) {
	if s.notify == nil {
		return
	}
	ev := models.Event{Type: typ, Description: msg}
	if meta != nil {
		ev.Metadata = meta
	}
	s.notify.Notify(ctx, ev)
}
