package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vapor_recovery/internal/config"
	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/models"
)

// FaultCounts are the equipment fault counters read by the equipment_fault condition.
type FaultCounts struct {
	VacPumpFailures int  `json:"vac_pump_failures"`
	GMFaults        int  `json:"gm_faults"`
	Latched         bool `json:"latched"`
}

// CycleController is the part of the cycle engine the fault monitor drives.
type CycleController interface {
	Pause(ctx context.Context) (models.PausedCycle, error)
	Resume(ctx context.Context) (ExecutionHandle, error)
	Stop(ctx context.Context) error
}

// FaultMonitor watches motor current against the commanded mode on its own tick.
//
// Purge check: once a purge step has lasted PurgeCheckAfter, a current below
// PurgeMinCurrent counts one vacuum-pump failure.
//
// GM fault: current at or above HighCurrent for HighCurrentHold counts one fault and
// pauses the cycle for a short rest before resuming it. Low current for the same hold
// resets the count. Reaching GMFaultCount stops the cycle and latches the fault.
type FaultMonitor struct {
	cfg       config.FaultConfig
	snap      SnapshotSource
	reg       *ModeRegister
	cycles    CycleController
	gmEnabled func() bool
	notify    Notifier
	log       *logger.Logger

	// resume schedules fn after d; replaced in tests.
	resume func(d time.Duration, fn func())

	mu           sync.Mutex
	counts       FaultCounts
	purgeRev     uint64
	purgeStart   time.Time
	purgeChecked bool
	highSince    time.Time
	lowSince     time.Time
}

// NewFaultMonitor wires the monitor. snap and reg are only read by Tick; cycles may be nil.
func NewFaultMonitor(cfg config.FaultConfig, snap SnapshotSource, reg *ModeRegister, cycles CycleController, gmEnabled func() bool, notify Notifier, log *logger.Logger) *FaultMonitor {
	return &FaultMonitor{
		cfg:       cfg,
		snap:      snap,
		reg:       reg,
		cycles:    cycles,
		gmEnabled: gmEnabled,
		notify:    notify,
		log:       log,
		resume: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

// Counts returns a copy of the counters.
func (f *FaultMonitor) Counts() FaultCounts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts
}

// Reset clears every counter and the latch.
func (f *FaultMonitor) Reset() {
	f.mu.Lock()
	f.counts = FaultCounts{}
	f.highSince, f.lowSince = time.Time{}, time.Time{}
	f.mu.Unlock()
}

// Run checks the current every tick until ctx is cancelled.
func (f *FaultMonitor) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			f.Tick(ctx, now)
		}
	}
}

// Tick reads the register and the latest snapshot and observes them once.
func (f *FaultMonitor) Tick(ctx context.Context, now time.Time) {
	mode, rev := f.reg.Get()
	f.Observe(ctx, now, mode, rev, f.snap.Snapshot())
}

// Observe feeds one reading into the monitor.
func (f *FaultMonitor) Observe(ctx context.Context, now time.Time, mode models.Mode, rev uint64, snap models.SensorSnapshot) {
	if snap.Stale || !snap.Valid() {
		return
	}
	f.checkPurge(ctx, now, mode, rev, snap.Current)
	if f.gmEnabled != nil && f.gmEnabled() {
		f.checkGM(ctx, now, snap.Current)
	}
}

func (f *FaultMonitor) checkPurge(ctx context.Context, now time.Time, mode models.Mode, rev uint64, current float64) {
	f.mu.Lock()
	if mode != models.ModePurge {
		f.purgeStart = time.Time{}
		f.mu.Unlock()
		return
	}
	if f.purgeStart.IsZero() || f.purgeRev != rev {
		f.purgeRev, f.purgeStart, f.purgeChecked = rev, now, false
	}
	if f.purgeChecked || now.Sub(f.purgeStart) < f.cfg.PurgeCheckAfter {
		f.mu.Unlock()
		return
	}
	f.purgeChecked = true
	if current >= f.cfg.PurgeMinCurrent {
		f.mu.Unlock()
		return
	}
	f.counts.VacPumpFailures++
	n := f.counts.VacPumpFailures
	f.mu.Unlock()

	f.log.Warnw("purge_current_low", "current", current, "vac_pump_failures", n)
	f.emit(ctx, fmt.Sprintf("Current failure during purge: %.2f A", current), n)
}

func (f *FaultMonitor) checkGM(ctx context.Context, now time.Time, current float64) {
	f.mu.Lock()
	if f.counts.Latched {
		f.mu.Unlock()
		return
	}

	if current < f.cfg.HighCurrent {
		f.highSince = time.Time{}
		if f.lowSince.IsZero() {
			f.lowSince = now
		} else if now.Sub(f.lowSince) >= f.cfg.HighCurrentHold {
			f.counts.GMFaults = 0
		}
		f.mu.Unlock()
		return
	}

	f.lowSince = time.Time{}
	if f.highSince.IsZero() {
		f.highSince = now
		f.mu.Unlock()
		return
	}
	if now.Sub(f.highSince) < f.cfg.HighCurrentHold {
		f.mu.Unlock()
		return
	}
	f.highSince = time.Time{}
	f.counts.GMFaults++
	n := f.counts.GMFaults
	latched := n >= f.cfg.GMFaultCount
	f.counts.Latched = latched
	f.mu.Unlock()

	f.log.Warnw("gm_fault_detected", "current", current, "count", n, "latched", latched)
	f.emit(ctx, fmt.Sprintf("GM fault: high current %.2f A", current), n)

	if f.cycles == nil {
		return
	}
	if latched {
		if err := f.cycles.Stop(ctx); err != nil {
			f.log.Errorw("gm_fault_stop_failed", "err", err)
		}
		return
	}
	if _, err := f.cycles.Pause(ctx); err != nil {
		// nothing running
		return
	}
	f.resume(f.cfg.HighCurrentHold, func() {
		if _, err := f.cycles.Resume(context.WithoutCancel(ctx)); err != nil {
			f.log.Warnw("gm_fault_resume_failed", "err", err)
		}
	})
}

func (f *FaultMonitor) emit(ctx context.Context, msg string, count int) {
	if f.notify == nil {
		return
	}
	f.notify.Notify(ctx, models.Event{
		Type:        models.EventFault,
		Description: msg,
		Metadata:    map[string]any{"count": count},
	})
}
