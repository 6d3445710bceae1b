package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vapor_recovery/internal/errs"
	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/metrics"
	"vapor_recovery/internal/models"

	"github.com/samber/lo"
)

// SnapshotSource exposes the latest sensor snapshot.
type SnapshotSource interface {
	Snapshot() models.SensorSnapshot
}

// AlarmListener is told about every state change after the engine lock is released.
type AlarmListener interface {
	OnAlarmTransition(ctx context.Context, tr models.AlarmTransition)
}

type alarm struct {
	cond  *Condition
	state models.AlarmState
	since time.Time

	// confirmation clock; only advances across consecutive true verdicts
	confirmed time.Duration
	mark      time.Time
	frozen    bool

	acked bool
}

// FaultCounter exposes the equipment fault counters to the equipment_fault condition.
type FaultCounter interface {
	Counts() FaultCounts
	Reset()
}

// AlarmEngine confirms conditions over time and keeps the active-alarm set.
// It only reads; actuation belongs to its listeners and the fault monitor.
type AlarmEngine struct {
	snap   SnapshotSource
	reg    *ModeRegister
	faults FaultCounter
	notify Notifier
	log    *logger.Logger

	mu        sync.Mutex
	alarms    []*alarm
	byKind    map[models.AlarmKind]*alarm
	listeners []AlarmListener
}

// NewAlarmEngine creates an Idle alarm for every condition. faults and notify may be nil.
func NewAlarmEngine(conds []*Condition, snap SnapshotSource, reg *ModeRegister, faults FaultCounter, notify Notifier, log *logger.Logger) *AlarmEngine {
	e := &AlarmEngine{
		snap:   snap,
		reg:    reg,
		faults: faults,
		notify: notify,
		log:    log,
		byKind: make(map[models.AlarmKind]*alarm, len(conds)),
	}
	for _, c := range conds {
		a := &alarm{cond: c, state: models.AlarmIdle}
		e.alarms = append(e.alarms, a)
		e.byKind[c.Kind] = a
	}
	return e
}

// Subscribe registers l for transitions.
func (e *AlarmEngine) Subscribe(l AlarmListener) {
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
}

// Seed marks kind as already Active since the given time without publishing a
// transition. Used after a restart so a persisted shutdown timer keeps its alarm.
func (e *AlarmEngine) Seed(kind models.AlarmKind, since time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.byKind[kind]
	if !ok || a.state == models.AlarmActive {
		return
	}
	a.state, a.since = models.AlarmActive, since
	metrics.AlarmActive.WithLabelValues(string(kind)).Set(1)
}

// Run evaluates every tick until ctx is cancelled.
func (e *AlarmEngine) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			e.Evaluate(ctx, now)
		}
	}
}

// Evaluate runs one tick at now and returns the transitions it caused.
func (e *AlarmEngine) Evaluate(ctx context.Context, now time.Time) []models.AlarmTransition {
	var faults FaultCounts
	if e.faults != nil {
		faults = e.faults.Counts()
	}
	in := EvalInput{Snapshot: e.snap.Snapshot(), Mode: e.reg.Mode(), Faults: faults, Now: now}

	e.mu.Lock()
	var trs []models.AlarmTransition
	for _, a := range e.alarms {
		if tr, ok := a.step(a.cond.Check(in), now); ok {
			trs = append(trs, tr)
		}
	}
	listeners := e.listeners
	e.mu.Unlock()

	for _, tr := range trs {
		e.publish(ctx, tr)
		for _, l := range listeners {
			l.OnAlarmTransition(ctx, tr)
		}
	}
	return trs
}

// step advances the alarm state machine for one verdict.
func (a *alarm) step(v Verdict, now time.Time) (models.AlarmTransition, bool) {
	from := a.state
	switch a.state {
	case models.AlarmIdle:
		if v != VerdictTrue {
			return models.AlarmTransition{}, false
		}
		a.state, a.since = models.AlarmConfirming, now
		a.confirmed, a.mark, a.frozen = 0, now, false
		if a.confirmed >= a.cond.Duration {
			a.state = models.AlarmActive
		}
	case models.AlarmConfirming:
		switch v {
		case VerdictFalse:
			a.reset()
		case VerdictUnknown:
			a.frozen = true
			return models.AlarmTransition{}, false
		case VerdictTrue:
			if a.frozen {
				a.frozen = false
			} else {
				a.confirmed += now.Sub(a.mark)
			}
			a.mark = now
			if a.confirmed < a.cond.Duration {
				return models.AlarmTransition{}, false
			}
			a.state = models.AlarmActive
		}
	case models.AlarmActive:
		if v != VerdictFalse {
			return models.AlarmTransition{}, false
		}
		a.reset()
	}
	if a.state == from {
		return models.AlarmTransition{}, false
	}
	return models.AlarmTransition{Kind: a.cond.Kind, From: from, To: a.state, At: now}, true
}

func (a *alarm) reset() {
	a.state = models.AlarmIdle
	a.since = time.Time{}
	a.confirmed, a.mark, a.frozen = 0, time.Time{}, false
	a.acked = false
}

func (e *AlarmEngine) publish(ctx context.Context, tr models.AlarmTransition) {
	metrics.AlarmTransitions.WithLabelValues(string(tr.Kind), string(tr.To)).Inc()
	if tr.To == models.AlarmActive {
		metrics.AlarmActive.WithLabelValues(string(tr.Kind)).Set(1)
	} else {
		metrics.AlarmActive.WithLabelValues(string(tr.Kind)).Set(0)
	}

	// confirmation churn stays at debug level
	if tr.To == models.AlarmConfirming || (tr.From == models.AlarmConfirming && tr.To == models.AlarmIdle) {
		e.log.Debugw("alarm_confirming", "kind", tr.Kind, "to", tr.To)
		return
	}
	e.log.Infow("alarm_transition", "kind", tr.Kind, "from", tr.From, "to", tr.To)
	if e.notify == nil {
		return
	}
	desc := fmt.Sprintf("Alarm %s active", tr.Kind)
	if tr.To == models.AlarmIdle {
		desc = fmt.Sprintf("Alarm %s cleared", tr.Kind)
	}
	e.notify.Notify(ctx, models.Event{
		OccurredAt:  tr.At.UTC(),
		Type:        models.EventAlarm,
		Description: desc,
		Metadata:    tr,
	})
}

// Alarms returns a view of every alarm in evaluation order.
func (e *AlarmEngine) Alarms() []models.Alarm {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo.Map(e.alarms, func(a *alarm, _ int) models.Alarm { return a.view() })
}

// Active returns the active-alarm set.
func (e *AlarmEngine) Active() []models.Alarm {
	return lo.Filter(e.Alarms(), func(a models.Alarm, _ int) bool { return a.State == models.AlarmActive })
}

// IsActive reports whether kind is currently active.
func (e *AlarmEngine) IsActive(kind models.AlarmKind) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.byKind[kind]
	return ok && a.state == models.AlarmActive
}

// Acknowledge marks an active alarm as seen by an operator.
// Acknowledging equipment_fault also clears the fault counters.
func (e *AlarmEngine) Acknowledge(kind models.AlarmKind) error {
	e.mu.Lock()
	a, ok := e.byKind[kind]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("Acknowledge %q: %w", kind, errs.ErrUnknownAlarm)
	}
	if a.state != models.AlarmActive {
		e.mu.Unlock()
		return fmt.Errorf("Acknowledge %q: %w", kind, errs.ErrAlarmNotActive)
	}
	a.acked = true
	e.mu.Unlock()

	if kind == models.AlarmEquipmentFault && e.faults != nil {
		e.faults.Reset()
	}
	e.log.Infow("alarm_acknowledged", "kind", kind)
	return nil
}

func (a *alarm) view() models.Alarm {
	return models.Alarm{
		Kind:         a.cond.Kind,
		State:        a.state,
		Since:        a.since,
		Acknowledged: a.acked,
		Frozen:       a.frozen,
	}
}
