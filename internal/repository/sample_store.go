package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"vapor_recovery/internal/logger"
	"vapor_recovery/internal/models"

	"github.com/dgraph-io/badger/v4"
)

const samplePrefix = "s/"

// SampleStore keeps the pressure/current history in badger, keyed by timestamp.
type SampleStore struct {
	db *badger.DB
}

// OpenSampleStore opens the store at path. inMemory ignores path.
func OpenSampleStore(path string, inMemory bool, log *logger.Logger) (*SampleStore, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(badgerLogger{log}).
		WithMemTableSize(64 << 17)
	if inMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("OpenSampleStore: %w", err)
	}
	return &SampleStore{db: db}, nil
}

func (s *SampleStore) Close() error { return s.db.Close() }

// sampleKey orders samples by time; backfilled and live samples at the same instant do not collide.
func sampleKey(ts time.Time, backfill bool) []byte {
	k := make([]byte, len(samplePrefix)+9)
	copy(k, samplePrefix)
	binary.BigEndian.PutUint64(k[len(samplePrefix):], uint64(ts.UnixNano()))
	if backfill {
		k[len(k)-1] = 1
	}
	return k
}

func keyTime(k []byte) time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(k[len(samplePrefix):]))).UTC()
}

// Append writes samples in one transaction batch.
func (s *SampleStore) Append(_ context.Context, samples ...models.Sample) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, smp := range samples {
		if smp.Timestamp.IsZero() {
			continue
		}
		v, err := json.Marshal(smp)
		if err != nil {
			return fmt.Errorf("SampleStore.Append: %w", err)
		}
		if err := wb.Set(sampleKey(smp.Timestamp, smp.Backfill), v); err != nil {
			return fmt.Errorf("SampleStore.Append: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("SampleStore.Append: %w", err)
	}
	return nil
}

// Range returns samples with from <= ts <= to, oldest first. Zero to means no upper bound;
// limit <= 0 means no limit.
func (s *SampleStore) Range(ctx context.Context, from, to time.Time, limit int) ([]models.Sample, error) {
	var out []models.Sample
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 100, Prefix: []byte(samplePrefix)})
		defer it.Close()

		seek := []byte(samplePrefix)
		if !from.IsZero() {
			seek = sampleKey(from, false)
		}
		for it.Seek(seek); it.ValidForPrefix([]byte(samplePrefix)); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if !to.IsZero() && keyTime(item.Key()).After(to) {
				break
			}
			var smp models.Sample
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &smp) }); err != nil {
				return err
			}
			out = append(out, smp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("SampleStore.Range: %w", err)
	}
	return out, nil
}

// Prune deletes samples older than before and returns how many were removed.
func (s *SampleStore) Prune(_ context.Context, before time.Time) (int, error) {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(samplePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().KeyCopy(nil)
			if !keyTime(k).Before(before) {
				break
			}
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("SampleStore.Prune: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("SampleStore.Prune: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("SampleStore.Prune: %w", err)
	}
	return len(keys), nil
}

// badgerLogger routes badger's internal logging through zap.
type badgerLogger struct{ l *logger.Logger }

func (b badgerLogger) Errorf(f string, a ...interface{})   { b.l.Errorf(f, a...) }
func (b badgerLogger) Warningf(f string, a ...interface{}) { b.l.Warnf(f, a...) }
func (b badgerLogger) Infof(f string, a ...interface{})    { b.l.Debugf(f, a...) }
func (b badgerLogger) Debugf(f string, a ...interface{})   { b.l.Debugf(f, a...) }
