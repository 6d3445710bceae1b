package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vapor_recovery/internal/errs"
	"vapor_recovery/internal/models"
	"vapor_recovery/internal/repository"
)

func newTestEngine(pauses *fakeCycleStateRepo) (*CycleEngine, *ModeRegister, *recordingNotifier) {
	reg := NewModeRegister()
	n := &recordingNotifier{}
	var repo repository.CycleStateRepo
	if pauses != nil {
		repo = pauses
	}
	return NewCycleEngine(reg, n, repo, testLogger()), reg, n
}

// modeRecorder collects every distinct mode the register passes through.
type modeRecorder struct {
	mu    sync.Mutex
	modes []models.Mode
	last  uint64
}

func recordModes(ctx context.Context, reg *ModeRegister) *modeRecorder {
	rec := &modeRecorder{}
	ch := reg.Subscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				m, rev := reg.Get()
				rec.mu.Lock()
				if rev != rec.last {
					rec.modes = append(rec.modes, m)
					rec.last = rev
				}
				rec.mu.Unlock()
			}
		}
	}()
	return rec
}

func (r *modeRecorder) got() []models.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Mode(nil), r.modes...)
}

func seqOf(name string, d time.Duration, modes ...models.Mode) models.CycleSequence {
	seq := models.CycleSequence{Name: name}
	for _, m := range modes {
		seq.Steps = append(seq.Steps, models.CycleStep{Mode: m, Duration: d})
	}
	return seq
}

func waitDone(t *testing.T, h ExecutionHandle, d time.Duration) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(d):
		t.Fatalf("execution did not finish within %s", d)
	}
}

func TestCycleEngine_VisitsStepsInOrderThenRests(t *testing.T) {
	eng, reg, n := newTestEngine(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := recordModes(ctx, reg)

	seq := seqOf("t", 40*time.Millisecond, models.ModeRun, models.ModePurge, models.ModeBurp)
	h, err := eng.Start(ctx, seq, models.OriginOperator)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, h, 2*time.Second)
	time.Sleep(20 * time.Millisecond)

	want := []models.Mode{models.ModeRun, models.ModePurge, models.ModeBurp, models.ModeRest}
	got := rec.got()
	if len(got) != len(want) {
		t.Fatalf("modes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("modes = %v, want %v", got, want)
		}
	}
	if eng.Running() {
		t.Fatalf("engine should be idle")
	}
	st := eng.Status()
	if st.Running || st.Cancelled || st.Name != "t" {
		t.Fatalf("status = %+v", st)
	}
	if len(n.byType(models.EventCycle)) != 2 {
		t.Fatalf("want started+completed events, got %v", n.events)
	}
}

func TestCycleEngine_StartWhileRunning(t *testing.T) {
	eng, _, _ := newTestEngine(nil)
	ctx := context.Background()

	h, err := eng.Start(ctx, seqOf("a", time.Hour, models.ModeRun), models.OriginOperator)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer eng.Cancel(ctx, h)

	if _, err := eng.Start(ctx, seqOf("b", time.Hour, models.ModeLeak), models.OriginRemote); !errors.Is(err, errs.ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
	if st := eng.Status(); st.Name != "a" {
		t.Fatalf("first execution must be untouched, got %+v", st)
	}
}

func TestCycleEngine_EmptySequence(t *testing.T) {
	eng, _, _ := newTestEngine(nil)
	if _, err := eng.Start(context.Background(), models.CycleSequence{Name: "x"}, models.OriginOperator); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCycleEngine_CancelReturnsAfterRest(t *testing.T) {
	eng, reg, _ := newTestEngine(nil)
	ctx := context.Background()

	h, err := eng.Start(ctx, seqOf("long", time.Hour, models.ModeRun), models.OriginOperator)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for reg.Mode() != models.ModeRun && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := eng.Cancel(ctx, h); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if m := reg.Mode(); m != models.ModeRest {
		t.Fatalf("mode after Cancel = %s, want rest", m)
	}
	st := eng.Status()
	if st.Running || !st.Cancelled {
		t.Fatalf("status = %+v", st)
	}

	// second cancel of the same handle is a no-op
	if err := eng.Cancel(ctx, h); err != nil {
		t.Fatalf("repeat Cancel: %v", err)
	}
	if _, err := eng.Start(ctx, seqOf("next", time.Hour, models.ModeRun), models.OriginOperator); err != nil {
		t.Fatalf("Start after cancel: %v", err)
	}
	_ = eng.Stop(ctx)
}

func TestCycleEngine_CancelAfterCompletionIsNoop(t *testing.T) {
	eng, reg, _ := newTestEngine(nil)
	ctx := context.Background()
	h, err := eng.Start(ctx, seqOf("short", 10*time.Millisecond, models.ModeBurp), models.OriginOperator)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, h, time.Second)

	if err := eng.Cancel(ctx, h); err != nil {
		t.Fatalf("Cancel after completion: %v", err)
	}
	if st := eng.Status(); st.Cancelled || reg.Mode() != models.ModeRest {
		t.Fatalf("completed execution rewritten as cancelled: %+v", st)
	}
}

func TestCycleEngine_CancelUnknownHandle(t *testing.T) {
	eng, _, _ := newTestEngine(nil)
	if err := eng.Cancel(context.Background(), ExecutionHandle{}); !errors.Is(err, errs.ErrNoExecution) {
		t.Fatalf("err = %v, want ErrNoExecution", err)
	}
}

func TestCycleEngine_StopWhenIdleForcesRest(t *testing.T) {
	eng, reg, _ := newTestEngine(nil)
	reg.Set(models.ModeBleed)
	if err := eng.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if reg.Mode() != models.ModeRest {
		t.Fatalf("mode = %s", reg.Mode())
	}
}

func TestCycleEngine_PauseAndResume(t *testing.T) {
	pauses := &fakeCycleStateRepo{}
	eng, reg, _ := newTestEngine(pauses)
	ctx := context.Background()

	seq := models.CycleSequence{Name: "p", Steps: []models.CycleStep{
		{Mode: models.ModeRun, Duration: time.Hour},
		{Mode: models.ModePurge, Duration: time.Hour},
	}}
	if _, err := eng.Start(ctx, seq, models.OriginAutomatic); err != nil {
		t.Fatalf("Start: %v", err)
	}

	p, err := eng.Pause(ctx)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if reg.Mode() != models.ModeRest {
		t.Fatalf("paused engine must hold rest, got %s", reg.Mode())
	}
	if len(p.Sequence.Steps) != 2 || p.Sequence.Steps[1].Mode != models.ModePurge {
		t.Fatalf("remaining = %+v", p.Sequence.Steps)
	}
	if pauses.saved == nil || pauses.saved.Origin != models.OriginAutomatic {
		t.Fatalf("pause not persisted: %+v", pauses.saved)
	}
	if !eng.Status().Paused {
		t.Fatalf("status should report paused")
	}

	if _, err := eng.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for reg.Mode() != models.ModeRun && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if reg.Mode() != models.ModeRun {
		t.Fatalf("resumed mode = %s", reg.Mode())
	}
	if pauses.saved != nil || pauses.clears != 1 {
		t.Fatalf("pause should be cleared, saved=%v clears=%d", pauses.saved, pauses.clears)
	}
	if _, err := eng.Resume(ctx); !errors.Is(err, errs.ErrNothingToResume) && !errors.Is(err, errs.ErrAlreadyRunning) {
		t.Fatalf("second Resume err = %v", err)
	}
	_ = eng.Stop(ctx)
}

func TestCycleEngine_StopDiscardsPause(t *testing.T) {
	pauses := &fakeCycleStateRepo{}
	eng, _, _ := newTestEngine(pauses)
	ctx := context.Background()

	if _, err := eng.Start(ctx, seqOf("p", time.Hour, models.ModeRun), models.OriginOperator); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := eng.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := eng.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := eng.Resume(ctx); !errors.Is(err, errs.ErrNothingToResume) {
		t.Fatalf("err = %v, want ErrNothingToResume", err)
	}
	if pauses.saved != nil {
		t.Fatalf("persisted pause should be cleared")
	}
}

func TestCycleEngine_PauseWithoutExecution(t *testing.T) {
	eng, _, _ := newTestEngine(nil)
	if _, err := eng.Pause(context.Background()); !errors.Is(err, errs.ErrNoExecution) {
		t.Fatalf("err = %v", err)
	}
}

func TestCycleEngine_RestoreLoadsPersistedPause(t *testing.T) {
	pauses := &fakeCycleStateRepo{saved: &models.PausedCycle{
		Sequence: seqOf("saved", time.Hour, models.ModeLeak),
		Origin:   models.OriginTest,
	}}
	eng, reg, _ := newTestEngine(pauses)
	ctx := context.Background()

	if err := eng.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !eng.Status().Paused {
		t.Fatalf("restored pause not reported")
	}
	if _, err := eng.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for reg.Mode() != models.ModeLeak && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if st := eng.Status(); st.Name != "saved" || st.Origin != models.OriginTest {
		t.Fatalf("status = %+v", st)
	}
	_ = eng.Stop(ctx)
}

func TestCycleEngine_RestoreError(t *testing.T) {
	eng, _, _ := newTestEngine(&fakeCycleStateRepo{loadErr: errors.New("db down")})
	if err := eng.Restore(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRemainingSteps(t *testing.T) {
	steps := []models.CycleStep{
		{Mode: models.ModeRun, Duration: 120 * time.Second},
		{Mode: models.ModeRest, Duration: 2 * time.Second},
	}
	got := remainingSteps(steps, 0, 30*time.Second)
	if len(got) != 2 || got[0].Duration != 90*time.Second {
		t.Fatalf("got %+v", got)
	}
	got = remainingSteps(steps, 0, 2*time.Minute)
	if len(got) != 1 || got[0].Mode != models.ModeRest {
		t.Fatalf("finished step should be dropped, got %+v", got)
	}
	got = remainingSteps(steps, 0, 120*time.Second-300*time.Millisecond)
	if len(got) != 1 || got[0].Mode != models.ModeRest {
		t.Fatalf("sub-second remainder should be dropped, got %+v", got)
	}
	if got := remainingSteps(steps, 5, 0); got != nil {
		t.Fatalf("got %+v", got)
	}
}

func TestCycleEngine_PauseAfterStepBoundaryKeepsLaterStep(t *testing.T) {
	eng, reg, _ := newTestEngine(&fakeCycleStateRepo{})
	ctx := context.Background()
	seq := models.CycleSequence{Name: "two", Steps: []models.CycleStep{
		{Mode: models.ModeRun, Duration: 20 * time.Millisecond},
		{Mode: models.ModePurge, Duration: time.Hour},
	}}
	if _, err := eng.Start(ctx, seq, models.OriginOperator); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitMode(t, reg, models.ModePurge)

	p, err := eng.Pause(ctx)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if len(p.Sequence.Steps) != 1 || p.Sequence.Steps[0].Mode != models.ModePurge {
		t.Fatalf("paused steps = %+v", p.Sequence.Steps)
	}
	if d := p.Sequence.Steps[0].Duration; d <= 59*time.Minute || d%time.Second != 0 {
		t.Fatalf("remaining purge = %s", d)
	}
	if _, err := eng.Pause(ctx); !errors.Is(err, errs.ErrNoExecution) {
		t.Fatalf("second Pause err = %v", err)
	}
}
