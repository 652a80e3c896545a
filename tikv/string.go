package tikv

import (
	"context"
	"math"
	"strconv"

	"github.com/tempbottle/tidis/kv"
)

// String runs string commands. A string is one data entry plus its metadata.
type String struct {
	runner *Runner
	mode   TxnMode
}

// NewString creates a string context
func NewString(runner *Runner, mode TxnMode) *String {
	return &String{runner: runner, mode: mode}
}

// KeyValue is one pair of MSET
type KeyValue struct {
	Key   []byte
	Value []byte
}

// SetOptions are the modifiers of SET
type SetOptions struct {
	// NX only sets absent keys, XX only existing ones
	NX bool
	XX bool
	// ExpireAt is a unix timestamp in milliseconds, 0 means persistent
	ExpireAt int64
	KeepTTL  bool
}

func stringKey(key []byte, meta *Meta) []byte {
	return DataKey(key, meta.Version, subString, nil)
}

func getString(txn kv.Txn, key []byte) ([]byte, error) {
	meta, err := loadTyped(txn, key, TypeString)
	if err != nil || meta == nil {
		return nil, err
	}
	value, err := txn.Get(stringKey(key, meta))
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, corrupted("string %q has no value", key)
	}
	return value, nil
}

// putString stores value under key, replacing a collection of any type
func putString(txn kv.Txn, key, value []byte, expireAt int64, keepTTL bool) error {
	meta, err := LoadMeta(txn, key)
	if err != nil {
		return err
	}
	switch {
	case meta == nil:
		meta, err = CreateOrBump(txn, key, TypeString)
		if err != nil {
			return err
		}
	case meta.Type != TypeString:
		meta = &Meta{Type: TypeString, Version: meta.Version + 1, Head: listInitialHead}
	}
	if !keepTTL {
		meta.ExpireAt = expireAt
	}
	meta.Size = 1
	if err := txn.Set(stringKey(key, meta), value); err != nil {
		return err
	}
	return saveMeta(txn, key, meta)
}

// Get returns nil for an absent key
func (s *String) Get(ctx context.Context, key []byte) ([]byte, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) ([]byte, error) {
		return getString(txn, key)
	})
}

// Set stores value and reports whether the NX/XX condition allowed it
func (s *String) Set(ctx context.Context, key, value []byte, opts SetOptions) (bool, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) (bool, error) {
		if opts.NX || opts.XX {
			meta, err := LoadMeta(txn, key)
			if err != nil {
				return false, err
			}
			if (opts.NX && meta != nil) || (opts.XX && meta == nil) {
				return false, nil
			}
		}
		return true, putString(txn, key, value, opts.ExpireAt, opts.KeepTTL)
	})
}

// GetSet stores value and returns the previous one
func (s *String) GetSet(ctx context.Context, key, value []byte) ([]byte, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) ([]byte, error) {
		old, err := getString(txn, key)
		if err != nil {
			return nil, err
		}
		return old, putString(txn, key, value, 0, false)
	})
}

// MGet returns one value per key, nil for absent keys and keys of other types
func (s *String) MGet(ctx context.Context, keys [][]byte) ([][]byte, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) ([][]byte, error) {
		values := make([][]byte, len(keys))
		for i, key := range keys {
			value, err := getString(txn, key)
			if err == ErrWrongType {
				continue
			}
			if err != nil {
				return nil, err
			}
			values[i] = value
		}
		return values, nil
	})
}

// MSet stores every pair atomically
func (s *String) MSet(ctx context.Context, pairs []KeyValue) error {
	return s.runner.Run(ctx, s.mode, func(txn kv.Txn) error {
		for _, pair := range pairs {
			if err := putString(txn, pair.Key, pair.Value, 0, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// Append appends value and returns the new length
func (s *String) Append(ctx context.Context, key, value []byte) (int64, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) (int64, error) {
		old, err := getString(txn, key)
		if err != nil {
			return 0, err
		}
		merged := make([]byte, 0, len(old)+len(value))
		merged = append(append(merged, old...), value...)
		return int64(len(merged)), putString(txn, key, merged, 0, true)
	})
}

// StrLen returns the length of the value
func (s *String) StrLen(ctx context.Context, key []byte) (int64, error) {
	value, err := s.Get(ctx, key)
	return int64(len(value)), err
}

// IncrBy adds delta to an integer value, an absent key counts as 0
func (s *String) IncrBy(ctx context.Context, key []byte, delta int64) (int64, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) (int64, error) {
		old, err := getString(txn, key)
		if err != nil {
			return 0, err
		}
		var current int64
		if old != nil {
			current, err = strconv.ParseInt(string(old), 10, 64)
			if err != nil {
				return 0, ErrNotInteger
			}
		}
		if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
			return 0, ErrOverflow
		}
		result := current + delta
		return result, putString(txn, key, []byte(strconv.FormatInt(result, 10)), 0, true)
	})
}

// IncrByFloat adds delta to a float value, an absent key counts as 0
func (s *String) IncrByFloat(ctx context.Context, key []byte, delta float64) (float64, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) (float64, error) {
		old, err := getString(txn, key)
		if err != nil {
			return 0, err
		}
		var current float64
		if old != nil {
			current, err = strconv.ParseFloat(string(old), 64)
			if err != nil {
				return 0, ErrNotFloat
			}
		}
		result := current + delta
		if math.IsNaN(result) || math.IsInf(result, 0) {
			return 0, ErrNotFloat
		}
		return result, putString(txn, key, []byte(strconv.FormatFloat(result, 'f', -1, 64)), 0, true)
	})
}
