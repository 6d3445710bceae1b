package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/metrics"
	"vapor_recovery/internal/models"
	"vapor_recovery/internal/repository"

	"github.com/samber/lo"
)

// ShutdownRelay drives the microcontroller's shutdown relay.
type ShutdownRelay interface {
	SetShutdownRelay(shutdown bool)
}

// CycleStopper cancels any running cycle and forces Rest.
type CycleStopper interface {
	Stop(ctx context.Context) error
}

// ShutdownProtocol escalates continuously active eligible alarms through the
// 24/36/47/71 hour notifications to a shutdown command at 72 hours.
type ShutdownProtocol struct {
	repo    repository.ShutdownRepo
	relay   ShutdownRelay
	cycles  CycleStopper
	profile *ProfileRegistry
	notify  Notifier
	log     *logger.Logger

	// op serializes timer changes with their storage and relay side effects,
	// so the last relay request always matches the timers that remain.
	op sync.Mutex

	mu     sync.Mutex
	timers map[models.AlarmKind]*models.ShutdownTimer
}

func NewShutdownProtocol(repo repository.ShutdownRepo, relay ShutdownRelay, cycles CycleStopper, profile *ProfileRegistry, notify Notifier, log *logger.Logger) *ShutdownProtocol {
	return &ShutdownProtocol{
		repo:    repo,
		relay:   relay,
		cycles:  cycles,
		profile: profile,
		notify:  notify,
		log:     log,
		timers:  make(map[models.AlarmKind]*models.ShutdownTimer),
	}
}

// Restore reloads persisted timers and re-asserts the shutdown relay if it was
// already sent. The returned timers let the alarm engine resume their alarms as Active.
func (p *ShutdownProtocol) Restore(ctx context.Context) ([]models.ShutdownTimer, error) {
	timers, err := p.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("Restore: %w", err)
	}

	p.op.Lock()
	defer p.op.Unlock()
	p.mu.Lock()
	for i := range timers {
		t := timers[i]
		p.timers[t.Category] = &t
		metrics.ShutdownStage.WithLabelValues(string(t.Category)).Set(float64(t.Stage))
	}
	sent := p.shutdownSentLocked()
	p.mu.Unlock()

	if sent {
		p.relay.SetShutdownRelay(true)
	}
	p.log.Infow("shutdown_timers_restored", "count", len(timers), "shutdown_sent", sent)
	return timers, nil
}

// OnAlarmTransition starts a timer when an eligible alarm activates and
// resets it when the alarm clears.
func (p *ShutdownProtocol) OnAlarmTransition(ctx context.Context, tr models.AlarmTransition) {
	switch {
	case tr.To == models.AlarmActive && p.profile.Eligible(tr.Kind):
		p.start(ctx, tr.Kind, tr.At)
	case tr.To == models.AlarmIdle && tr.From == models.AlarmActive:
		p.clear(ctx, tr.Kind)
	}
}

func (p *ShutdownProtocol) start(ctx context.Context, kind models.AlarmKind, at time.Time) {
	p.op.Lock()
	defer p.op.Unlock()
	p.mu.Lock()
	if _, ok := p.timers[kind]; ok {
		p.mu.Unlock()
		return
	}
	t := &models.ShutdownTimer{Category: kind, Onset: at.UTC(), Stage: models.StageNone, UpdatedAt: at.UTC()}
	t.StageName = t.Stage.String()
	p.timers[kind] = t
	snapshot := *t
	p.mu.Unlock()

	p.persist(ctx, snapshot)
	metrics.ShutdownStage.WithLabelValues(string(kind)).Set(0)
	p.log.Infow("shutdown_timer_started", "category", kind, "onset", snapshot.Onset)
}

func (p *ShutdownProtocol) clear(ctx context.Context, kind models.AlarmKind) {
	p.op.Lock()
	defer p.op.Unlock()
	p.mu.Lock()
	t, ok := p.timers[kind]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.timers, kind)
	wasSent := t.ShutdownSent
	stillSent := p.shutdownSentLocked()
	p.mu.Unlock()

	if err := p.repo.Delete(ctx, kind); err != nil {
		p.log.Errorw("shutdown_timer_delete_failed", "err", err, "category", kind)
	}
	metrics.ShutdownStage.DeleteLabelValues(string(kind))
	p.log.Infow("shutdown_timer_reset", "category", kind, "stage", t.Stage.String())

	if wasSent && !stillSent {
		p.relay.SetShutdownRelay(false)
		p.emit(ctx, kind, "Shutdown released: alarm cleared", t.Stage)
	}
}

// Run evaluates the ladder every tick until ctx is cancelled.
func (p *ShutdownProtocol) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			p.Evaluate(ctx, now)
		}
	}
}

type stageHit struct {
	kind  models.AlarmKind
	stage models.ShutdownStage
}

// Evaluate advances every timer to the stage its age has reached.
// Each stage is emitted once, in order, even when several are crossed at once.
func (p *ShutdownProtocol) Evaluate(ctx context.Context, now time.Time) {
	var (
		hits    []stageHit
		changed []models.ShutdownTimer
	)

	p.op.Lock()
	defer p.op.Unlock()
	p.mu.Lock()
	for kind, t := range p.timers {
		age := now.Sub(t.Onset)
		advanced := false
		for _, th := range models.StageThresholds {
			if t.Stage >= th.Stage || age < th.After {
				continue
			}
			t.Stage = th.Stage
			advanced = true
			hits = append(hits, stageHit{kind: kind, stage: th.Stage})
		}
		if advanced {
			t.StageName = t.Stage.String()
			t.UpdatedAt = now.UTC()
			if t.Stage == models.StageShutdown {
				t.ShutdownSent = true
			}
			changed = append(changed, *t)
		}
	}
	p.mu.Unlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].stage != hits[j].stage {
			return hits[i].stage < hits[j].stage
		}
		return hits[i].kind < hits[j].kind
	})

	for _, t := range changed {
		p.persist(ctx, t)
		metrics.ShutdownStage.WithLabelValues(string(t.Category)).Set(float64(t.Stage))
	}

	shutdown := false
	for _, h := range hits {
		if h.stage == models.StageShutdown {
			shutdown = true
			p.emit(ctx, h.kind, "72 hour shutdown issued", h.stage)
			continue
		}
		p.emit(ctx, h.kind, fmt.Sprintf("Alarm active for %s; shutdown at 72h", h.stage), h.stage)
	}

	if shutdown {
		if err := p.cycles.Stop(ctx); err != nil {
			p.log.Errorw("shutdown_cycle_stop_failed", "err", err)
		}
		p.relay.SetShutdownRelay(true)
		p.log.Warnw("shutdown_issued")
	}
}

// Timers returns the current timers ordered by category.
func (p *ShutdownProtocol) Timers() []models.ShutdownTimer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := lo.Map(lo.Values(p.timers), func(t *models.ShutdownTimer, _ int) models.ShutdownTimer { return *t })
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// ShutdownSent reports whether any timer has issued the shutdown command.
func (p *ShutdownProtocol) ShutdownSent() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdownSentLocked()
}

func (p *ShutdownProtocol) shutdownSentLocked() bool {
	return lo.SomeBy(lo.Values(p.timers), func(t *models.ShutdownTimer) bool { return t.ShutdownSent })
}

func (p *ShutdownProtocol) persist(ctx context.Context, t models.ShutdownTimer) {
	if err := p.repo.Save(ctx, t); err != nil {
		p.log.Errorw("shutdown_timer_save_failed", "err", err, "category", t.Category)
	}
}

func (p *ShutdownProtocol) emit(ctx context.Context, kind models.AlarmKind, msg string, stage models.ShutdownStage) {
	if p.notify == nil {
		return
	}
	p.notify.Notify(ctx, models.Event{
		Type:        models.EventShutdown,
		Description: msg,
		Metadata: map[string]any{
			"category": kind,
			"stage":    stage.String(),
		},
	})
}
