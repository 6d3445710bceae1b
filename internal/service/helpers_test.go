package service

import (
	"context"
	"sync"
	"time"

	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/models"
)

// recordingNotifier captures every event.
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev models.Event) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) byType(typ string) []models.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Event
	for _, e := range n.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fakeShutdownRepo struct {
	mu      sync.Mutex
	rows    map[models.AlarmKind]models.ShutdownTimer
	saves   int
	deletes []models.AlarmKind
	listErr error
}

func newFakeShutdownRepo(seed ...models.ShutdownTimer) *fakeShutdownRepo {
	r := &fakeShutdownRepo{rows: map[models.AlarmKind]models.ShutdownTimer{}}
	for _, t := range seed {
		r.rows[t.Category] = t
	}
	return r
}

func (r *fakeShutdownRepo) Save(_ context.Context, t models.ShutdownTimer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[t.Category] = t
	r.saves++
	return nil
}

func (r *fakeShutdownRepo) Delete(_ context.Context, k models.AlarmKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, k)
	r.deletes = append(r.deletes, k)
	return nil
}

func (r *fakeShutdownRepo) List(_ context.Context) ([]models.ShutdownTimer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.ShutdownTimer
	for _, t := range r.rows {
		out = append(out, t)
	}
	return out, nil
}

type fakeCycleStateRepo struct {
	mu      sync.Mutex
	saved   *models.PausedCycle
	clears  int
	loadErr error
}

func (r *fakeCycleStateRepo) SavePaused(_ context.Context, p models.PausedCycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = &p
	return nil
}

func (r *fakeCycleStateRepo) LoadPaused(_ context.Context) (*models.PausedCycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved, r.loadErr
}

func (r *fakeCycleStateRepo) ClearPaused(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = nil
	r.clears++
	return nil
}

// fakeRelay records shutdown relay requests.
type fakeRelay struct {
	mu    sync.Mutex
	calls []bool
}

func (f *fakeRelay) SetShutdownRelay(shutdown bool) {
	f.mu.Lock()
	f.calls = append(f.calls, shutdown)
	f.mu.Unlock()
}

func (f *fakeRelay) got() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.calls...)
}

type fakeStopper struct {
	mu    sync.Mutex
	stops int
}

func (f *fakeStopper) Stop(context.Context) error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	return nil
}

// fakeSnapshot is a settable snapshot source.
type fakeSnapshot struct {
	mu   sync.Mutex
	snap models.SensorSnapshot
	ext  models.ExtendedStatus
	cal  *models.Calibration
}

func (f *fakeSnapshot) Snapshot() models.SensorSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSnapshot) Extended() models.ExtendedStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ext
}

func (f *fakeSnapshot) LastCalibration() (models.Calibration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cal == nil {
		return models.Calibration{}, false
	}
	return *f.cal, true
}

func (f *fakeSnapshot) set(s models.SensorSnapshot) {
	f.mu.Lock()
	f.snap = s
	f.mu.Unlock()
}

func freshSnapshot(at time.Time, pressure, current float64) models.SensorSnapshot {
	return models.SensorSnapshot{Pressure: pressure, Current: current, SDCard: "OK", ReceivedAt: at}
}

func testLogger() *logger.Logger { return logger.Nop() }
