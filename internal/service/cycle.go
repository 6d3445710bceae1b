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
	"vapor_recovery/internal/repository"

	"github.com/google/uuid"
)

// ExecutionHandle identifies one cycle execution.
type ExecutionHandle struct {
	ID   string
	exec *execution
}

// Done is closed once the execution has ended and the register holds Rest.
func (h ExecutionHandle) Done() <-chan struct{} {
	if h.exec == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return h.exec.stopped
}

type execution struct {
	id        string
	seq       models.CycleSequence
	origin    models.Origin
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{} // stepping goroutine exited
	stopped   chan struct{} // Rest committed

	// guarded by CycleEngine.mu
	step        int
	stepStarted time.Time
	cancelled   bool
	cancelledAt time.Time
}

// ShutdownGate reports whether the shutdown relay has been commanded.
type ShutdownGate interface {
	ShutdownSent() bool
}

// CycleEngine steps through timed mode sequences, one execution at a time.
type CycleEngine struct {
	reg    *ModeRegister
	notify Notifier
	pauses repository.CycleStateRepo
	log    *logger.Logger
	gate   ShutdownGate

	mu     sync.Mutex
	active *execution
	last   models.CycleStatus
	paused *models.PausedCycle
}

// NewCycleEngine wires the engine to the register. pauses may be nil.
func NewCycleEngine(reg *ModeRegister, notify Notifier, pauses repository.CycleStateRepo, log *logger.Logger) *CycleEngine {
	return &CycleEngine{reg: reg, notify: notify, pauses: pauses, log: log}
}

// SetShutdownGate makes Start refuse while gate reports a shutdown. Call before serving.
func (e *CycleEngine) SetShutdownGate(gate ShutdownGate) {
	e.mu.Lock()
	e.gate = gate
	e.mu.Unlock()
}

// Restore loads a paused cycle left by a previous process.
func (e *CycleEngine) Restore(ctx context.Context) error {
	if e.pauses == nil {
		return nil
	}
	p, err := e.pauses.LoadPaused(ctx)
	if err != nil {
		return fmt.Errorf("Restore: %w", err)
	}
	e.mu.Lock()
	e.paused = p
	e.mu.Unlock()
	return nil
}

// Start begins stepping seq. It fails with ErrAlreadyRunning while another execution
// is active and with ErrShutdown once the shutdown relay has been commanded.
func (e *CycleEngine) Start(ctx context.Context, seq models.CycleSequence, origin models.Origin) (ExecutionHandle, error) {
	if len(seq.Steps) == 0 {
		return ExecutionHandle{}, fmt.Errorf("Start: sequence %q has no steps", seq.Name)
	}

	e.mu.Lock()
	if e.gate != nil && e.gate.ShutdownSent() {
		e.mu.Unlock()
		return ExecutionHandle{}, errs.ErrShutdown
	}
	if e.active != nil {
		e.mu.Unlock()
		return ExecutionHandle{}, errs.ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	now := time.Now()
	ex := &execution{
		id:          uuid.NewString(),
		seq:         seq,
		origin:      origin,
		startedAt:   now.UTC(),
		stepStarted: now,
		cancel:      cancel,
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	e.active = ex
	e.mu.Unlock()

	metrics.CyclesStarted.WithLabelValues(seq.Name, string(origin)).Inc()
	e.log.Infow("cycle_started", "cycle", seq.Name, "origin", origin, "steps", len(seq.Steps), "execution_id", ex.id)
	e.emit(ctx, "Cycle started", seq.Name, ex)

	go e.run(runCtx, ex)
	return ExecutionHandle{ID: ex.id, exec: ex}, nil
}

func (e *CycleEngine) run(ctx context.Context, ex *execution) {
	defer close(ex.done)

	for i, step := range ex.seq.Steps {
		e.mu.Lock()
		if ex.cancelled {
			e.mu.Unlock()
			return
		}
		ex.step = i
		ex.stepStarted = time.Now()
		e.reg.Set(step.Mode)
		e.mu.Unlock()

		t := time.NewTimer(step.Duration)
		select {
		case <-ctx.Done():
			t.Stop()
			metrics.CycleStepDuration.WithLabelValues(string(step.Mode)).Observe(time.Since(ex.stepStarted).Seconds())
			return
		case <-t.C:
			metrics.CycleStepDuration.WithLabelValues(string(step.Mode)).Observe(step.Duration.Seconds())
		}
	}

	e.mu.Lock()
	if ex.cancelled {
		e.mu.Unlock()
		return
	}
	e.reg.Set(models.ModeRest)
	e.last = e.statusLocked(ex)
	e.last.Running = false
	e.active = nil
	close(ex.stopped)
	e.mu.Unlock()

	e.log.Infow("cycle_completed", "cycle", ex.seq.Name, "execution_id", ex.id)
	e.emit(ctx, "Cycle completed", ex.seq.Name, ex)
}

// Cancel stops the execution behind h and returns once the register holds Rest.
// Cancelling a finished or already cancelled execution is a no-op; a zero handle
// fails with ErrNoExecution.
func (e *CycleEngine) Cancel(ctx context.Context, h ExecutionHandle) error {
	if h.exec == nil {
		return errs.ErrNoExecution
	}
	e.cancelExecution(ctx, h.exec)
	return nil
}

// Stop cancels whatever execution is active and forces Rest even when nothing runs.
// A paused cycle is discarded: an explicit stop always wins over a pending resume.
func (e *CycleEngine) Stop(ctx context.Context) error {
	e.mu.Lock()
	ex := e.active
	hadPause := e.paused != nil
	e.paused = nil
	e.mu.Unlock()

	if hadPause && e.pauses != nil {
		if err := e.pauses.ClearPaused(ctx); err != nil {
			e.log.Errorw("cycle_pause_clear_failed", "err", err)
		}
	}

	if ex == nil {
		if e.reg.Mode() != models.ModeRest {
			e.reg.Set(models.ModeRest)
		}
		return nil
	}
	e.cancelExecution(ctx, ex)
	return nil
}

// cancelExecution reports whether this call did the cancelling.
func (e *CycleEngine) cancelExecution(ctx context.Context, ex *execution) bool {
	e.mu.Lock()
	if ex.cancelled || e.active != ex {
		e.mu.Unlock()
		<-ex.stopped
		return false
	}
	ex.cancelled = true
	ex.cancelledAt = time.Now()
	ex.cancel()
	e.mu.Unlock()

	<-ex.done

	e.mu.Lock()
	e.reg.Set(models.ModeRest)
	e.last = e.statusLocked(ex)
	e.last.Running = false
	e.last.Cancelled = true
	if e.active == ex {
		e.active = nil
	}
	close(ex.stopped)
	e.mu.Unlock()

	e.log.Infow("cycle_cancelled", "cycle", ex.seq.Name, "execution_id", ex.id)
	e.emit(ctx, "Cycle cancelled", ex.seq.Name, ex)
	return true
}

// Pause stops the active cycle and keeps its remaining steps for Resume.
func (e *CycleEngine) Pause(ctx context.Context) (models.PausedCycle, error) {
	e.mu.Lock()
	ex := e.active
	if ex == nil {
		e.mu.Unlock()
		return models.PausedCycle{}, errs.ErrNoExecution
	}
	e.mu.Unlock()

	if !e.cancelExecution(ctx, ex) {
		return models.PausedCycle{}, errs.ErrNoExecution
	}

	// the stepping goroutine has exited, so step and stepStarted are final
	e.mu.Lock()
	remaining := remainingSteps(ex.seq.Steps, ex.step, ex.cancelledAt.Sub(ex.stepStarted))
	e.mu.Unlock()

	p := models.PausedCycle{
		Sequence: models.CycleSequence{Name: ex.seq.Name, Manual: ex.seq.Manual, Steps: remaining},
		Origin:   ex.origin,
		PausedAt: time.Now().UTC(),
	}
	e.mu.Lock()
	e.paused = &p
	e.last.Paused = true
	e.mu.Unlock()

	if e.pauses != nil {
		if err := e.pauses.SavePaused(ctx, p); err != nil {
			e.log.Errorw("cycle_pause_save_failed", "err", err)
		}
	}
	e.log.Infow("cycle_paused", "cycle", ex.seq.Name, "remaining_steps", len(remaining))
	return p, nil
}

// Resume restarts the remainder of a paused cycle.
func (e *CycleEngine) Resume(ctx context.Context) (ExecutionHandle, error) {
	e.mu.Lock()
	p := e.paused
	e.mu.Unlock()
	if p == nil || len(p.Sequence.Steps) == 0 {
		return ExecutionHandle{}, errs.ErrNothingToResume
	}

	h, err := e.Start(ctx, p.Sequence, p.Origin)
	if err != nil {
		return ExecutionHandle{}, err
	}

	e.mu.Lock()
	e.paused = nil
	e.mu.Unlock()
	if e.pauses != nil {
		if err := e.pauses.ClearPaused(ctx); err != nil {
			e.log.Errorw("cycle_pause_clear_failed", "err", err)
		}
	}
	return h, nil
}

// Status describes the active execution, or the last one when idle.
func (e *CycleEngine) Status() models.CycleStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	var st models.CycleStatus
	if e.active != nil {
		st = e.statusLocked(e.active)
	} else {
		st = e.last
	}
	st.Paused = e.paused != nil
	return st
}

// Running reports whether an execution is active.
func (e *CycleEngine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

func (e *CycleEngine) statusLocked(ex *execution) models.CycleStatus {
	st := models.CycleStatus{
		ExecutionID: ex.id,
		Name:        ex.seq.Name,
		Origin:      ex.origin,
		Manual:      ex.seq.Manual,
		Running:     true,
		Cancelled:   ex.cancelled,
		StepIndex:   ex.step,
		StepCount:   len(ex.seq.Steps),
		StartedAt:   ex.startedAt,
	}
	if ex.step < len(ex.seq.Steps) {
		step := ex.seq.Steps[ex.step]
		st.StepMode = step.Mode
		if rem := step.Duration - time.Since(ex.stepStarted); rem > 0 {
			st.Remaining = rem
		}
	}
	return st
}

func (e *CycleEngine) emit(ctx context.Context, msg, name string, ex *execution) {
	if e.notify == nil {
		return
	}
	e.notify.Notify(ctx, models.Event{
		Type:        models.EventCycle,
		Description: msg,
		Metadata: map[string]any{
			"cycle":        name,
			"origin":       ex.origin,
			"execution_id": ex.id,
		},
	})
}

// remainingSteps returns the unfinished part of steps starting at index cur.
func remainingSteps(steps []models.CycleStep, cur int, elapsed time.Duration) []models.CycleStep {
	if cur >= len(steps) {
		return nil
	}
	out := make([]models.CycleStep, 0, len(steps)-cur)
	first := steps[cur]
	// steps must be at least a second long
	if left := (first.Duration - elapsed).Round(time.Second); left > 0 {
		out = append(out, models.CycleStep{Mode: first.Mode, Duration: left})
	}
	return append(out, steps[cur+1:]...)
}
