package service

import (
	"context"
	"strings"
	"time"

	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/models"
	"vapor_recovery/internal/repository"
)

// SampleSink stores sensor history.
type SampleSink interface {
	Append(ctx context.Context, samples ...models.Sample) error
}

var (
	remoteCycles = map[string]string{
		"run":          CycleStandard,
		"manual_purge": CycleManual,
	}
	remoteTests = map[string]string{
		"clean": CycleCanisterClean,
		"leak":  CycleLeakTest,
		"func":  CycleFunctionality,
		"eff":   CycleEfficiencyTest,
	}
)

// DeviceEvents handles the non-status messages the microcontroller sends.
type DeviceEvents struct {
	control  *ControlService
	cals     repository.CalibrationRepo
	samples  SampleSink
	profiles *ProfileRegistry
	notify   Notifier
	log      *logger.Logger
}

func NewDeviceEvents(control *ControlService, cals repository.CalibrationRepo, samples SampleSink, profiles *ProfileRegistry, notify Notifier, log *logger.Logger) *DeviceEvents {
	return &DeviceEvents{control: control, cals: cals, samples: samples, profiles: profiles, notify: notify, log: log}
}

// HandleRemote maps a relayed web-portal command onto the control service.
func (d *DeviceEvents) HandleRemote(ctx context.Context, cmd models.RemoteCommand) {
	d.emit(ctx, models.EventRemote, "Remote command received", map[string]any{"command": cmd.Command, "type": cmd.Type})

	var name string
	switch cmd.Command {
	case models.RemoteStopCycle:
		if err := d.control.StopCycle(ctx); err != nil {
			d.log.Errorw("remote_stop_failed", "err", err)
		}
		return
	case models.RemoteStartCycle:
		name = remoteCycles[strings.ToLower(cmd.Type)]
	case models.RemoteStartTest:
		name = remoteTests[strings.ToLower(cmd.Type)]
	}
	if name == "" {
		d.log.Warnw("remote_command_unknown", "command", cmd.Command, "type", cmd.Type)
		return
	}

	origin := models.OriginRemote
	if cmd.Command == models.RemoteStartTest {
		origin = models.OriginTest
	}
	if _, err := d.control.StartCycle(ctx, StartRequest{Name: name, Origin: origin, Bypass: cmd.Bypass}); err != nil {
		d.log.Warnw("remote_start_rejected", "err", err, "cycle", name)
	}
}

func (d *DeviceEvents) HandleCalibration(ctx context.Context, value float64) {
	c := models.Calibration{Value: value, RecordedAt: time.Now().UTC()}
	if d.cals != nil {
		if err := d.cals.Save(ctx, c); err != nil {
			d.log.Errorw("calibration_save_failed", "err", err)
		}
	}
	d.emit(ctx, models.EventCalibration, "Calibration result", map[string]any{"ps_cal": value})
}

func (d *DeviceEvents) HandleBackfill(ctx context.Context, samples []models.Sample) {
	if d.samples == nil || len(samples) == 0 {
		return
	}
	if err := d.samples.Append(ctx, samples...); err != nil {
		d.log.Errorw("backfill_store_failed", "err", err, "records", len(samples))
		return
	}
	d.log.Infow("backfill_stored", "records", len(samples))
}

// HandleExtended follows the device's profile selection.
func (d *DeviceEvents) HandleExtended(ctx context.Context, ext models.ExtendedStatus) {
	if ext.Profile == nil || d.profiles == nil {
		return
	}
	if strings.EqualFold(d.profiles.Current().Name, *ext.Profile) {
		return
	}
	if err := d.profiles.Set(*ext.Profile); err != nil {
		d.log.Warnw("profile_switch_rejected", "err", err, "profile", *ext.Profile)
		return
	}
	d.log.Infow("profile_switched", "profile", d.profiles.Current().Name)
	d.emit(ctx, models.EventRemote, "Profile switched", map[string]any{"profile": d.profiles.Current().Name})
}

func (d *DeviceEvents) emit(ctx context.Context, typ, msg string, meta map[string]any) {
	if d.notify == nil {
		return
	}
	d.notify.Notify(ctx, models.Event{Type: typ, Description: msg, Metadata: meta})
}
