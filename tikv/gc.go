package tikv

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/lib/codec"
	"github.com/tempbottle/tidis/lib/logger"
	"github.com/tempbottle/tidis/lib/metrics"
	"go.uber.org/atomic"
)

// GC physically removes what deletes and recreations leave behind:
// the entries of old versions and the records of deleted or expired keys.
// Reads never depend on it, a version bump already hides stale entries.
type GC struct {
	runner *Runner
	pool   *ants.Pool
}

// NewGC creates a sweeper running on a pool of workers goroutines
func NewGC(runner *Runner, workers int) (*GC, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		logger.Errorf("gc worker panic: %v", p)
	}))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &GC{runner: runner, pool: pool}, nil
}

// Close stops the workers
func (g *GC) Close() {
	g.pool.Release()
}

// Start sweeps every interval until ctx is done
func (g *GC) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := g.Sweep(ctx)
			if err != nil {
				logger.Warnf("gc sweep failed: %v", err)
				continue
			}
			if swept > 0 {
				logger.Infof("gc swept %d keys", swept)
			}
		}
	}
}

// Sweep cleans every key with garbage and returns how many were cleaned.
// Each key is cleaned in its own transaction.
func (g *GC) Sweep(ctx context.Context) (int, error) {
	candidates, err := g.candidates(ctx)
	if err != nil {
		return 0, err
	}
	var (
		wg      sync.WaitGroup
		swept   atomic.Int64
		lastErr atomic.Error
	)
	for _, key := range candidates {
		key := key
		wg.Add(1)
		err := g.pool.Submit(func() {
			defer wg.Done()
			cleaned, err := g.sweepKey(ctx, key)
			if err != nil {
				lastErr.Store(errors.WithMessagef(err, "sweep %q", key))
				return
			}
			if cleaned {
				swept.Inc()
				metrics.GCKeys.Inc()
			}
		})
		if err != nil {
			wg.Done()
			lastErr.Store(errors.WithStack(err))
		}
	}
	wg.Wait()
	return int(swept.Load()), lastErr.Load()
}

// candidates lists keys with garbage as seen by one snapshot
func (g *GC) candidates(ctx context.Context) ([][]byte, error) {
	txn, err := g.runner.Storage().Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = txn.Rollback()
	}()
	var keys [][]byte
	start, end := metaRange()
	err = forEachMeta(txn, start, end, func(key []byte, meta *Meta) error {
		upTo, _ := garbageBound(meta)
		if upTo == 0 {
			return nil
		}
		if !meta.live() {
			keys = append(keys, key)
			return nil
		}
		from, to := staleDataRange(key, upTo)
		pairs, err := txn.Scan(from, to, 1)
		if err != nil {
			return err
		}
		if len(pairs) > 0 {
			keys = append(keys, key)
		}
		return nil
	})
	return keys, err
}

// garbageBound returns the newest version whose entries are garbage,
// and whether the record itself is garbage too
func garbageBound(meta *Meta) (uint64, bool) {
	if !meta.live() {
		return meta.Version, true
	}
	return meta.Version - 1, false
}

// staleDataRange bounds the entries of versions 1..upTo of key
func staleDataRange(key []byte, upTo uint64) ([]byte, []byte) {
	prefix := keyDataPrefix(key)
	start := codec.EncodeUint64(append([]byte{}, prefix...), 0)
	if upTo == math.MaxUint64 {
		return start, kv.PrefixEnd(prefix)
	}
	return start, codec.EncodeUint64(append([]byte{}, prefix...), upTo+1)
}

func (g *GC) sweepKey(ctx context.Context, key []byte) (bool, error) {
	return run(ctx, g.runner, Standalone(), func(txn kv.Txn) (bool, error) {
		// the snapshot used to pick candidates may be stale, look again
		meta, err := loadRawMeta(txn, key)
		if err != nil || meta == nil {
			return false, err
		}
		upTo, dropRecord := garbageBound(meta)
		if upTo == 0 {
			return false, nil
		}
		from, to := staleDataRange(key, upTo)
		for {
			pairs, err := txn.Scan(from, to, scanBatch)
			if err != nil {
				return false, err
			}
			for _, pair := range pairs {
				if err := txn.Delete(pair.Key); err != nil {
					return false, err
				}
			}
			if len(pairs) < scanBatch {
				break
			}
			from = append(pairs[len(pairs)-1].Key, 0)
		}
		if dropRecord {
			if err := txn.Delete(MetaKey(key)); err != nil {
				return false, err
			}
		}
		return true, nil
	})
}
