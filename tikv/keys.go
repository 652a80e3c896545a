package tikv

import (
	"context"

	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/lib/wildcard"
)

const scanBatch = 256

// forEachMeta visits the raw records stored in [start, end), tombstones included
func forEachMeta(txn kv.Txn, start, end []byte, fn func(key []byte, meta *Meta) error) error {
	for {
		pairs, err := txn.Scan(start, end, scanBatch)
		if err != nil {
			return err
		}
		for _, pair := range pairs {
			key, err := DecodeMetaKey(pair.Key)
			if err != nil {
				return err
			}
			meta, err := decodeMeta(pair.Value)
			if err != nil {
				return err
			}
			if err := fn(key, meta); err != nil {
				return err
			}
		}
		if len(pairs) < scanBatch {
			return nil
		}
		start = append(pairs[len(pairs)-1].Key, 0)
	}
}

// Keys runs the type agnostic commands
type Keys struct {
	runner *Runner
	mode   TxnMode
}

// NewKeys creates a keys context
func NewKeys(runner *Runner, mode TxnMode) *Keys {
	return &Keys{runner: runner, mode: mode}
}

// Del removes keys of any type and returns how many existed
func (k *Keys) Del(ctx context.Context, keys [][]byte) (int, error) {
	return run(ctx, k.runner, k.mode, func(txn kv.Txn) (int, error) {
		deleted := 0
		for _, key := range keys {
			ok, err := RemoveMeta(txn, key)
			if err != nil {
				return 0, err
			}
			if ok {
				deleted++
			}
		}
		return deleted, nil
	})
}

// Exists counts the keys which exist, a key given twice counts twice
func (k *Keys) Exists(ctx context.Context, keys [][]byte) (int, error) {
	return run(ctx, k.runner, k.mode, func(txn kv.Txn) (int, error) {
		count := 0
		for _, key := range keys {
			meta, err := LoadMeta(txn, key)
			if err != nil {
				return 0, err
			}
			if meta != nil {
				count++
			}
		}
		return count, nil
	})
}

// Type returns the type name of key, "none" when absent
func (k *Keys) Type(ctx context.Context, key []byte) (string, error) {
	return run(ctx, k.runner, k.mode, func(txn kv.Txn) (string, error) {
		meta, err := LoadMeta(txn, key)
		if err != nil {
			return "", err
		}
		if meta == nil {
			return "none", nil
		}
		return meta.Type.String(), nil
	})
}

// ExpireAt sets the expiration to a unix timestamp in milliseconds.
// A timestamp in the past deletes the key.
func (k *Keys) ExpireAt(ctx context.Context, key []byte, atMs int64) (bool, error) {
	return run(ctx, k.runner, k.mode, func(txn kv.Txn) (bool, error) {
		meta, err := LoadMeta(txn, key)
		if err != nil || meta == nil {
			return false, err
		}
		if atMs <= nowMs() {
			return true, tombstone(txn, key, meta)
		}
		meta.ExpireAt = atMs
		return true, saveMeta(txn, key, meta)
	})
}

// TTL returns the remaining time to live in milliseconds,
// -2 when the key does not exist and -1 when it has no expiration
func (k *Keys) TTL(ctx context.Context, key []byte) (int64, error) {
	return run(ctx, k.runner, k.mode, func(txn kv.Txn) (int64, error) {
		meta, err := LoadMeta(txn, key)
		if err != nil {
			return 0, err
		}
		if meta == nil {
			return -2, nil
		}
		if meta.ExpireAt == 0 {
			return -1, nil
		}
		return meta.ExpireAt - nowMs(), nil
	})
}

// Persist removes the expiration of key
func (k *Keys) Persist(ctx context.Context, key []byte) (bool, error) {
	return run(ctx, k.runner, k.mode, func(txn kv.Txn) (bool, error) {
		meta, err := LoadMeta(txn, key)
		if err != nil || meta == nil || meta.ExpireAt == 0 {
			return false, err
		}
		meta.ExpireAt = 0
		return true, saveMeta(txn, key, meta)
	})
}

// Keys returns the live keys matching a glob pattern
func (k *Keys) Keys(ctx context.Context, pattern string) ([][]byte, error) {
	p := wildcard.CompilePattern(pattern)
	start, end := metaRange()
	if prefix := p.LiteralPrefix(); len(prefix) > 0 {
		start = MetaKey(prefix)
		if next := kv.PrefixEnd(prefix); next != nil {
			end = MetaKey(next)
		}
	}
	return run(ctx, k.runner, k.mode, func(txn kv.Txn) ([][]byte, error) {
		keys := [][]byte{}
		now := nowMs()
		err := forEachMeta(txn, start, end, func(key []byte, meta *Meta) error {
			if !meta.tombstone && !meta.expired(now) && p.Match(key) {
				keys = append(keys, key)
			}
			return nil
		})
		return keys, err
	})
}

// DBSize returns the number of live keys
func (k *Keys) DBSize(ctx context.Context) (int64, error) {
	return run(ctx, k.runner, k.mode, func(txn kv.Txn) (int64, error) {
		var size int64
		start, end := metaRange()
		now := nowMs()
		err := forEachMeta(txn, start, end, func(key []byte, meta *Meta) error {
			if !meta.tombstone && !meta.expired(now) {
				size++
			}
			return nil
		})
		return size, err
	})
}

// FlushAll physically removes every key
func (k *Keys) FlushAll(ctx context.Context) error {
	return k.runner.Run(ctx, k.mode, func(txn kv.Txn) error {
		for _, prefix := range []byte{metaPrefix, dataPrefix} {
			start, end := []byte{prefix}, []byte{prefix + 1}
			for {
				pairs, err := txn.Scan(start, end, scanBatch)
				if err != nil {
					return err
				}
				for _, pair := range pairs {
					if err := txn.Delete(pair.Key); err != nil {
						return err
					}
				}
				if len(pairs) < scanBatch {
					break
				}
				start = append(pairs[len(pairs)-1].Key, 0)
			}
		}
		return nil
	})
}
