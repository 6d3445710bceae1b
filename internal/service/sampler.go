package service

import (
	"context"
	"time"

	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/models"
)

// SampleStore is the history store the sampler writes to and prunes.
type SampleStore interface {
	SampleSink
	Prune(ctx context.Context, before time.Time) (int, error)
}

const pruneEvery = time.Hour

// SamplerService records the live snapshot into the sample store.
type SamplerService struct {
	snap      SnapshotSource
	reg       *ModeRegister
	store     SampleStore
	retention time.Duration
	log       *logger.Logger

	lastStored time.Time
	lastPruned time.Time
}

func NewSamplerService(snap SnapshotSource, reg *ModeRegister, store SampleStore, retention time.Duration, log *logger.Logger) *SamplerService {
	return &SamplerService{snap: snap, reg: reg, store: store, retention: retention, log: log}
}

// Run ticks at the given interval until ctx is cancelled.
func (s *SamplerService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick stores one sample when a fresh status arrived since the last one,
// and prunes expired history once an hour.
func (s *SamplerService) Tick(ctx context.Context, now time.Time) {
	snap := s.snap.Snapshot()
	if snap.Valid() && !snap.Stale && snap.ReceivedAt.After(s.lastStored) {
		smp := models.Sample{
			Timestamp: snap.ReceivedAt.UTC(),
			Pressure:  snap.Pressure,
			Current:   snap.Current,
			Mode:      models.WireCodeFor(s.reg.Mode()),
		}
		if snap.SDCard != "" && snap.SDCard != "OK" {
			smp.Error = "sdcard:" + snap.SDCard
		}
		if err := s.store.Append(ctx, smp); err != nil {
			s.log.Warnw("sample_store_failed", "err", err)
		} else {
			s.lastStored = snap.ReceivedAt
		}
	}

	if s.retention <= 0 || now.Sub(s.lastPruned) < pruneEvery {
		return
	}
	s.lastPruned = now
	n, err := s.store.Prune(ctx, now.Add(-s.retention))
	if err != nil {
		s.log.Warnw("sample_prune_failed", "err", err)
		return
	}
	if n > 0 {
		s.log.Infow("samples_pruned", "count", n)
	}
}
