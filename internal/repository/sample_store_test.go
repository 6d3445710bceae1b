package repository

import (
	"context"
	"testing"
	"time"

	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SampleStore {
	t.Helper()
	s, err := OpenSampleStore("", true, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSampleStore_AppendAndRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx,
		models.Sample{Timestamp: base.Add(2 * time.Second), Pressure: 0.2, Mode: 1},
		models.Sample{Timestamp: base, Pressure: 0.0},
		models.Sample{Timestamp: base.Add(time.Second), Pressure: 0.1, Backfill: true, Error: "E1"},
		models.Sample{Timestamp: base, Pressure: 9.9, Backfill: true},
		models.Sample{Pressure: 42},
	))

	all, err := s.Range(ctx, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, all, 4, "zero timestamp is skipped; live and backfill at the same instant both kept")
	assert.InDelta(t, 0.0, all[0].Pressure, 1e-9)
	assert.InDelta(t, 9.9, all[1].Pressure, 1e-9)
	assert.Equal(t, "E1", all[2].Error)
	assert.Equal(t, 1, all[3].Mode)

	window, err := s.Range(ctx, base.Add(time.Second), base.Add(time.Second), 0)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.True(t, window[0].Backfill)

	limited, err := s.Range(ctx, base, time.Time{}, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSampleStore_Prune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Append(ctx, models.Sample{Timestamp: base.Add(time.Duration(i) * time.Hour), Pressure: float64(i)}))
	}

	n, err := s.Prune(ctx, base.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	rest, err := s.Range(ctx, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, rest, 6)
	assert.Equal(t, base.Add(4*time.Hour), rest[0].Timestamp.UTC())

	n, err = s.Prune(ctx, base)
	require.NoError(t, err)
	assert.Zero(t, n)
}
