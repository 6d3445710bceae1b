package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/metrics"
	"vapor_recovery/internal/models"
)

const (
	readChunk       = 512
	maxReadsPerTick = 64
	maxPartialBytes = 8 << 10
)

// ModeSource is the mode register as seen by the transport.
type ModeSource interface {
	Get() (models.Mode, uint64)
	Subscribe() <-chan struct{}
}

// Handler receives the non-status messages in arrival order.
type Handler interface {
	HandleRemote(ctx context.Context, cmd models.RemoteCommand)
	HandleCalibration(ctx context.Context, value float64)
	HandleBackfill(ctx context.Context, samples []models.Sample)
	HandleExtended(ctx context.Context, ext models.ExtendedStatus)
}

// Options tunes the transport loop.
type Options struct {
	Tick      time.Duration
	Freshness time.Duration
}

// Transport owns the serial link to the microcontroller.
// Only the Run goroutine touches the port.
type Transport struct {
	port    Port
	modes   ModeSource
	handler Handler
	opts    Options
	log     *logger.Logger
	clock   func() time.Time

	// loop-owned
	sentAny      bool
	lastSentRev  uint64
	lastRelayRev uint64
	partial      []byte
	startedAt    time.Time

	mu       sync.RWMutex
	snap     models.SensorSnapshot
	ext      models.ExtendedStatus
	lastCal  *models.Calibration
	resumed  time.Time
	staleLog bool

	cmdMu     sync.Mutex
	pending   [][]byte
	relayWant bool
	relayRev  uint64

	suspended atomic.Bool
	wake      chan struct{}
}

// New builds a transport. handler may be nil.
func New(port Port, modes ModeSource, handler Handler, opts Options, log *logger.Logger) *Transport {
	return &Transport{
		port:      port,
		modes:     modes,
		handler:   handler,
		opts:      opts,
		log:       log,
		clock:     time.Now,
		startedAt: time.Now(),
		wake:      make(chan struct{}, 1),
	}
}

// SetHandler installs the message handler. Call it before Run.
func (t *Transport) SetHandler(h Handler) {
	t.handler = h
}

// Run drives the transport until ctx is cancelled. Mode changes are sent as soon
// as the register signals them; the ticker reconciles anything that was missed.
func (t *Transport) Run(ctx context.Context) {
	changes := t.modes.Subscribe()
	ticker := time.NewTicker(t.opts.Tick)
	defer ticker.Stop()

	t.Tick(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if !t.suspended.Load() {
				t.sendMode()
			}
		case <-t.wake:
			if !t.suspended.Load() {
				t.flushCommands()
			}
		case now := <-ticker.C:
			t.Tick(ctx, now)
		}
	}
}

// Tick performs one reconcile-and-drain pass at now.
func (t *Transport) Tick(ctx context.Context, now time.Time) {
	if t.suspended.Load() {
		return
	}
	t.sendMode()
	t.flushCommands()
	t.drain(ctx, now)
	t.checkFreshness(now)
}

// sendMode writes the register's mode when its revision has not been sent yet.
func (t *Transport) sendMode() {
	mode, rev := t.modes.Get()
	if t.sentAny && rev == t.lastSentRev {
		return
	}
	if err := t.write(EncodeMode(mode), "mode"); err != nil {
		t.log.Warnw("serial_mode_write_failed", "err", err, "mode", mode, "revision", rev)
		return
	}
	t.sentAny, t.lastSentRev = true, rev
	t.log.Debugw("serial_mode_sent", "mode", mode, "revision", rev)
}

func (t *Transport) flushCommands() {
	t.cmdMu.Lock()
	want, rev := t.relayWant, t.relayRev
	queue := t.pending
	t.pending = nil
	t.cmdMu.Unlock()

	if rev != t.lastRelayRev {
		if err := t.write(EncodeShutdownRelay(want), "relay"); err != nil {
			t.log.Warnw("serial_relay_write_failed", "err", err, "shutdown", want)
		} else {
			t.lastRelayRev = rev
			t.log.Infow("serial_shutdown_relay_sent", "shutdown", want)
		}
	}

	for i, frame := range queue {
		if err := t.write(frame, "cmd"); err != nil {
			t.log.Warnw("serial_cmd_write_failed", "err", err)
			t.cmdMu.Lock()
			t.pending = append(queue[i:], t.pending...)
			t.cmdMu.Unlock()
			return
		}
	}
}

func (t *Transport) write(frame []byte, kind string) error {
	if _, err := t.port.Write(frame); err != nil {
		metrics.SerialWriteErrors.Inc()
		return err
	}
	metrics.CommandsSent.WithLabelValues(kind).Inc()
	return nil
}

// drain reads everything buffered, dispatches each complete line and commits
// only the newest valid status line.
func (t *Transport) drain(ctx context.Context, now time.Time) {
	buf := make([]byte, readChunk)
	for i := 0; i < maxReadsPerTick; i++ {
		n, err := t.port.Read(buf)
		if n > 0 {
			t.partial = append(t.partial, buf[:n]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.log.Warnw("serial_read_failed", "err", err)
			}
			break
		}
		if n == 0 {
			break
		}
	}

	var latest *models.SensorSnapshot
	for {
		idx := bytes.IndexByte(t.partial, '\n')
		if idx < 0 {
			break
		}
		line := t.partial[:idx]
		t.partial = t.partial[idx+1:]

		msg, err := ParseLine(line, now)
		if err != nil {
			metrics.LinesDiscarded.Inc()
			t.log.Debugw("serial_line_discarded", "err", err, "line", string(line))
			continue
		}
		if msg.Kind == KindStatus {
			st := msg.Status
			latest = &st
			continue
		}
		t.dispatch(ctx, msg)
	}
	if len(t.partial) > maxPartialBytes {
		t.log.Warnw("serial_partial_overflow", "bytes", len(t.partial))
		t.partial = nil
	}
	// compact so the backing array does not grow without bound
	t.partial = append([]byte(nil), t.partial...)

	if latest != nil {
		t.commit(*latest)
	}
}

func (t *Transport) commit(st models.SensorSnapshot) {
	t.mu.Lock()
	if st.ReceivedAt.Before(t.snap.ReceivedAt) {
		st.ReceivedAt = t.snap.ReceivedAt
	}
	st.Stale = false
	t.snap = st
	t.staleLog = false
	t.mu.Unlock()

	metrics.SnapshotStale.Set(0)
	metrics.Pressure.Set(st.Pressure)
	metrics.Current.Set(st.Current)
}

func (t *Transport) dispatch(ctx context.Context, msg Message) {
	switch msg.Kind {
	case KindExtended:
		t.mu.Lock()
		t.ext.Merge(msg.Extended)
		t.mu.Unlock()
		if t.handler != nil {
			t.handler.HandleExtended(ctx, msg.Extended)
		}
	case KindCalibration:
		t.mu.Lock()
		t.lastCal = &models.Calibration{Value: msg.Calibration, RecordedAt: t.clock().UTC()}
		t.mu.Unlock()
		t.log.Infow("serial_calibration_result", "ps_cal", msg.Calibration)
		if t.handler != nil {
			t.handler.HandleCalibration(ctx, msg.Calibration)
		}
	case KindRemote:
		t.log.Infow("serial_remote_command", "command", msg.Remote.Command, "type", msg.Remote.Type)
		if t.handler != nil {
			t.handler.HandleRemote(ctx, msg.Remote)
		}
	case KindBackfill:
		t.log.Infow("serial_backfill_received", "records", len(msg.Backfill))
		if t.handler != nil {
			t.handler.HandleBackfill(ctx, msg.Backfill)
		}
	}
}

func (t *Transport) checkFreshness(now time.Time) {
	t.mu.Lock()
	base := t.snap.ReceivedAt
	if t.resumed.After(base) {
		base = t.resumed
	}
	if base.IsZero() {
		base = t.startedAt
	}
	stale := now.Sub(base) > t.opts.Freshness
	changed := stale != t.snap.Stale
	t.snap.Stale = stale
	logIt := stale && !t.staleLog
	if logIt {
		t.staleLog = true
	}
	t.mu.Unlock()

	if changed {
		if stale {
			metrics.SnapshotStale.Set(1)
		} else {
			metrics.SnapshotStale.Set(0)
		}
	}
	if logIt {
		t.log.Warnw("sensor_snapshot_stale", "last_received", base)
	}
}

// Snapshot returns a copy of the latest sensor snapshot.
func (t *Transport) Snapshot() models.SensorSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Extended returns the merged extended status.
func (t *Transport) Extended() models.ExtendedStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ext
}

// LastCalibration returns the latest calibration result seen on the link, if any.
func (t *Transport) LastCalibration() (models.Calibration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastCal == nil {
		return models.Calibration{}, false
	}
	return *t.lastCal, true
}

// SetShutdownRelay asks for the shutdown (true) or normal (false) relay command.
// It is sent once and retried only if the write fails.
func (t *Transport) SetShutdownRelay(shutdown bool) {
	t.cmdMu.Lock()
	t.relayWant = shutdown
	t.relayRev++
	t.cmdMu.Unlock()
	t.poke()
}

// RequestCalibration asks the device for a zero-point calibration.
func (t *Transport) RequestCalibration() {
	t.enqueue(EncodeCommand("cal", nil))
}

// SetFastPoll toggles the device's high-rate status mode.
func (t *Transport) SetFastPoll(on bool) {
	v := 0
	if on {
		v = 1
	}
	t.enqueue(EncodeCommand("fast_poll", &v))
}

// SetFailsafe enables or disables the device failsafe.
func (t *Transport) SetFailsafe(on bool) {
	cmd := "disable_failsafe"
	if on {
		cmd = "enable_failsafe"
	}
	t.enqueue(EncodeCommand(cmd, nil))
}

// Suspend stops all sends and freshness tracking while the link is lent out.
func (t *Transport) Suspend() {
	t.suspended.Store(true)
	t.log.Infow("serial_suspended")
}

// Resume re-arms the transport; freshness is measured from now.
func (t *Transport) Resume() {
	t.mu.Lock()
	t.resumed = t.clock()
	t.mu.Unlock()
	t.suspended.Store(false)
	t.poke()
	t.log.Infow("serial_resumed")
}

// Suspended reports whether the transport is suspended.
func (t *Transport) Suspended() bool {
	return t.suspended.Load()
}

func (t *Transport) enqueue(frame []byte) {
	t.cmdMu.Lock()
	t.pending = append(t.pending, frame)
	t.cmdMu.Unlock()
	t.poke()
}

func (t *Transport) poke() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}
