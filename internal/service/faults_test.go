package service

import (
	"context"
	"testing"
	"time"

	"vapor_recovery/internal/config"
	"vapor_recovery/internal/errs"
	"vapor_recovery/internal/models"
)

type fakeCycles struct {
	pauses, resumes, stops int
	idle                   bool
}

func (f *fakeCycles) Pause(context.Context) (models.PausedCycle, error) {
	if f.idle {
		return models.PausedCycle{}, errs.ErrNoExecution
	}
	f.pauses++
	return models.PausedCycle{}, nil
}

func (f *fakeCycles) Resume(context.Context) (ExecutionHandle, error) {
	f.resumes++
	return ExecutionHandle{}, nil
}

func (f *fakeCycles) Stop(context.Context) error {
	f.stops++
	return nil
}

var testFaultConfig = config.FaultConfig{
	PurgeCheckAfter:   10 * time.Second,
	PurgeMinCurrent:   3,
	HighCurrent:       20,
	HighCurrentHold:   2 * time.Second,
	GMFaultCount:      3,
	VacPumpFaultCount: 3,
}

// newTestFaults runs deferred resumes immediately.
func newTestFaults(gm bool) (*FaultMonitor, *fakeCycles, *recordingNotifier) {
	cycles, n := &fakeCycles{}, &recordingNotifier{}
	f := NewFaultMonitor(testFaultConfig, &fakeSnapshot{}, NewModeRegister(), cycles, func() bool { return gm }, n, testLogger())
	f.resume = func(_ time.Duration, fn func()) { fn() }
	return f, cycles, n
}

func TestFaultMonitor_PurgeCurrentCheck(t *testing.T) {
	f, _, n := newTestFaults(false)
	ctx := context.Background()
	t0 := time.Now()

	f.Observe(ctx, t0, models.ModePurge, 5, freshSnapshot(t0, 0, 1))
	f.Observe(ctx, t0.Add(5*time.Second), models.ModePurge, 5, freshSnapshot(t0, 0, 1))
	if f.Counts().VacPumpFailures != 0 {
		t.Fatalf("checked too early")
	}
	f.Observe(ctx, t0.Add(11*time.Second), models.ModePurge, 5, freshSnapshot(t0, 0, 1))
	f.Observe(ctx, t0.Add(20*time.Second), models.ModePurge, 5, freshSnapshot(t0, 0, 1))
	if got := f.Counts().VacPumpFailures; got != 1 {
		t.Fatalf("failures = %d, want one per purge step", got)
	}

	// next purge step is a new revision
	f.Observe(ctx, t0.Add(21*time.Second), models.ModePurge, 7, freshSnapshot(t0, 0, 5))
	f.Observe(ctx, t0.Add(32*time.Second), models.ModePurge, 7, freshSnapshot(t0, 0, 5))
	if got := f.Counts().VacPumpFailures; got != 1 {
		t.Fatalf("healthy current must not count, got %d", got)
	}
	if len(n.byType(models.EventFault)) != 1 {
		t.Fatalf("want one fault event")
	}

	f.Reset()
	if f.Counts() != (FaultCounts{}) {
		t.Fatalf("Reset: %+v", f.Counts())
	}
}

func TestFaultMonitor_IgnoresStaleSnapshot(t *testing.T) {
	f, _, _ := newTestFaults(true)
	t0 := time.Now()
	s := freshSnapshot(t0, 0, 50)
	s.Stale = true
	for i := 0; i < 10; i++ {
		f.Observe(context.Background(), t0.Add(time.Duration(i)*time.Second), models.ModePurge, 1, s)
	}
	if f.Counts() != (FaultCounts{}) {
		t.Fatalf("stale snapshot must not count: %+v", f.Counts())
	}
}

func TestFaultMonitor_GMFaultPausesThenLatches(t *testing.T) {
	f, cycles, _ := newTestFaults(true)
	ctx := context.Background()
	t0 := time.Now()
	at := t0

	high := func() {
		f.Observe(ctx, at, models.ModeRun, 1, freshSnapshot(at, 0, 25))
		at = at.Add(time.Second)
	}

	// each fault needs the current held high for two seconds
	for i := 0; i < 3; i++ {
		high()
		high()
		high()
	}
	c := f.Counts()
	if c.GMFaults != 3 || !c.Latched {
		t.Fatalf("counts = %+v", c)
	}
	if cycles.pauses != 2 || cycles.resumes != 2 {
		t.Fatalf("first two faults pause and resume, got %+v", cycles)
	}
	if cycles.stops != 1 {
		t.Fatalf("limit should stop the cycle, got %d", cycles.stops)
	}

	high()
	high()
	high()
	if f.Counts().GMFaults != 3 {
		t.Fatalf("latched monitor must stop counting")
	}
}

func TestFaultMonitor_GMLowCurrentResets(t *testing.T) {
	f, _, _ := newTestFaults(true)
	ctx := context.Background()
	t0 := time.Now()

	for i := 0; i <= 2; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		f.Observe(ctx, at, models.ModeRun, 1, freshSnapshot(at, 0, 25))
	}
	if f.Counts().GMFaults != 1 {
		t.Fatalf("want one fault, got %+v", f.Counts())
	}
	for i := 3; i <= 6; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		f.Observe(ctx, at, models.ModeRun, 1, freshSnapshot(at, 0, 5))
	}
	if f.Counts().GMFaults != 0 {
		t.Fatalf("sustained normal current resets the count, got %+v", f.Counts())
	}
}

func TestFaultMonitor_GMDisabledByProfile(t *testing.T) {
	f, cycles, _ := newTestFaults(false)
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		f.Observe(context.Background(), at, models.ModeRun, 1, freshSnapshot(at, 0, 25))
	}
	if f.Counts().GMFaults != 0 || cycles.pauses != 0 {
		t.Fatalf("GM monitoring disabled: %+v", f.Counts())
	}
}

func TestFaultMonitor_GMFaultWithNothingRunning(t *testing.T) {
	f, cycles, _ := newTestFaults(true)
	cycles.idle = true
	t0 := time.Now()
	for i := 0; i <= 2; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		f.Observe(context.Background(), at, models.ModeRest, 1, freshSnapshot(at, 0, 25))
	}
	if f.Counts().GMFaults != 1 || cycles.resumes != 0 {
		t.Fatalf("no resume without a paused cycle: %+v %+v", f.Counts(), cycles)
	}
}

func TestFaultMonitor_TickReadsRegisterAndSnapshot(t *testing.T) {
	f, cycles, _ := newTestFaults(true)
	snap := f.snap.(*fakeSnapshot)
	f.reg.Set(models.ModeRun)
	ctx := context.Background()
	t0 := time.Now()

	for i := 0; i < 3; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		snap.set(freshSnapshot(at, 0, 25))
		f.Tick(ctx, at)
	}
	if f.Counts().GMFaults != 1 || cycles.pauses != 1 || cycles.resumes != 1 {
		t.Fatalf("counts=%+v pauses=%d resumes=%d", f.Counts(), cycles.pauses, cycles.resumes)
	}
}
