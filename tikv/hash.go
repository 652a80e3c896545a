package tikv

import (
	"context"
	"math"
	"strconv"

	"github.com/tempbottle/tidis/kv"
)

// Hash runs hash commands
type Hash struct {
	runner *Runner
	mode   TxnMode
}

// NewHash creates a hash context
func NewHash(runner *Runner, mode TxnMode) *Hash {
	return &Hash{runner: runner, mode: mode}
}

// GetAll returns fields and/or values in field order, flattened as HGETALL replies them
func (h *Hash) GetAll(ctx context.Context, key []byte, wantFields, wantValues bool) ([][]byte, error) {
	return run(ctx, h.runner, h.mode, func(txn kv.Txn) ([][]byte, error) {
		meta, err := hashCodec.load(txn, key)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			return [][]byte{}, nil
		}
		fields, err := scanCollection(txn, key, meta, hashCodec)
		if err != nil {
			return nil, err
		}
		result := make([][]byte, 0, 2*len(fields))
		for _, f := range fields {
			if wantFields {
				result = append(result, f.Field)
			}
			if wantValues {
				result = append(result, f.Value)
			}
		}
		return result, nil
	})
}

// Get returns nil when the key or the field does not exist
func (h *Hash) Get(ctx context.Context, key, field []byte) ([]byte, error) {
	return run(ctx, h.runner, h.mode, func(txn kv.Txn) ([]byte, error) {
		meta, err := hashCodec.load(txn, key)
		if err != nil || meta == nil {
			return nil, err
		}
		return txn.Get(hashCodec.key(key, meta, field))
	})
}

// MGet returns one value per field, nil for missing ones
func (h *Hash) MGet(ctx context.Context, key []byte, fields [][]byte) ([][]byte, error) {
	return run(ctx, h.runner, h.mode, func(txn kv.Txn) ([][]byte, error) {
		values := make([][]byte, len(fields))
		meta, err := hashCodec.load(txn, key)
		if err != nil || meta == nil {
			return values, err
		}
		for i, field := range fields {
			values[i], err = txn.Get(hashCodec.key(key, meta, field))
			if err != nil {
				return nil, err
			}
		}
		return values, nil
	})
}

// Set writes pairs and returns how many fields were created
func (h *Hash) Set(ctx context.Context, key []byte, pairs []HashField) (int, error) {
	return run(ctx, h.runner, h.mode, func(txn kv.Txn) (int, error) {
		meta, err := CreateOrBump(txn, key, TypeHash)
		if err != nil {
			return 0, err
		}
		added := 0
		for _, pair := range pairs {
			dataKey := hashCodec.key(key, meta, pair.Field)
			old, err := txn.Get(dataKey)
			if err != nil {
				return 0, err
			}
			if old == nil {
				added++
			}
			if err := txn.Set(dataKey, pair.Value); err != nil {
				return 0, err
			}
		}
		return added, TouchSize(txn, key, meta, int64(added))
	})
}

// SetNX sets field only when it does not exist yet
func (h *Hash) SetNX(ctx context.Context, key, field, value []byte) (bool, error) {
	return run(ctx, h.runner, h.mode, func(txn kv.Txn) (bool, error) {
		meta, err := CreateOrBump(txn, key, TypeHash)
		if err != nil {
			return false, err
		}
		dataKey := hashCodec.key(key, meta, field)
		old, err := txn.Get(dataKey)
		if err != nil || old != nil {
			return false, err
		}
		if err := txn.Set(dataKey, value); err != nil {
			return false, err
		}
		return true, TouchSize(txn, key, meta, 1)
	})
}

// Del removes fields and returns how many existed
func (h *Hash) Del(ctx context.Context, key []byte, fields [][]byte) (int, error) {
	return run(ctx, h.runner, h.mode, func(txn kv.Txn) (int, error) {
		meta, err := hashCodec.load(txn, key)
		if err != nil || meta == nil {
			return 0, err
		}
		removed := 0
		for _, field := range fields {
			dataKey := hashCodec.key(key, meta, field)
			old, err := txn.Get(dataKey)
			if err != nil {
				return 0, err
			}
			if old == nil {
				continue
			}
			if err := txn.Delete(dataKey); err != nil {
				return 0, err
			}
			removed++
		}
		if removed == 0 {
			return 0, nil
		}
		return removed, TouchSize(txn, key, meta, -int64(removed))
	})
}

// Exists tells whether field exists
func (h *Hash) Exists(ctx context.Context, key, field []byte) (bool, error) {
	value, err := h.Get(ctx, key, field)
	return value != nil, err
}

// Len returns the number of fields
func (h *Hash) Len(ctx context.Context, key []byte) (int64, error) {
	return run(ctx, h.runner, h.mode, func(txn kv.Txn) (int64, error) {
		meta, err := hashCodec.load(txn, key)
		if err != nil || meta == nil {
			return 0, err
		}
		return int64(meta.Size), nil
	})
}

// StrLen returns the length of the value of field
func (h *Hash) StrLen(ctx context.Context, key, field []byte) (int64, error) {
	value, err := h.Get(ctx, key, field)
	return int64(len(value)), err
}

// IncrBy adds delta to an integer field, a missing field counts as 0
func (h *Hash) IncrBy(ctx context.Context, key, field []byte, delta int64) (int64, error) {
	return run(ctx, h.runner, h.mode, func(txn kv.Txn) (int64, error) {
		var result int64
		err := h.update(txn, key, field, func(old []byte) ([]byte, error) {
			var current int64
			if old != nil {
				v, err := strconv.ParseInt(string(old), 10, 64)
				if err != nil {
					return nil, ErrNotInteger
				}
				current = v
			}
			if (delta > 0 && current > math.MaxInt64-delta) || (delta < 0 && current < math.MinInt64-delta) {
				return nil, ErrOverflow
			}
			result = current + delta
			return []byte(strconv.FormatInt(result, 10)), nil
		})
		return result, err
	})
}

// IncrByFloat adds delta to a float field, a missing field counts as 0
func (h *Hash) IncrByFloat(ctx context.Context, key, field []byte, delta float64) (float64, error) {
	return run(ctx, h.runner, h.mode, func(txn kv.Txn) (float64, error) {
		var result float64
		err := h.update(txn, key, field, func(old []byte) ([]byte, error) {
			var current float64
			if old != nil {
				v, err := strconv.ParseFloat(string(old), 64)
				if err != nil {
					return nil, ErrNotFloat
				}
				current = v
			}
			result = current + delta
			if math.IsNaN(result) || math.IsInf(result, 0) {
				return nil, ErrNotFloat
			}
			return []byte(strconv.FormatFloat(result, 'f', -1, 64)), nil
		})
		return result, err
	})
}

// update replaces the value of field with fn(old value)
func (h *Hash) update(txn kv.Txn, key, field []byte, fn func(old []byte) ([]byte, error)) error {
	meta, err := CreateOrBump(txn, key, TypeHash)
	if err != nil {
		return err
	}
	dataKey := hashCodec.key(key, meta, field)
	old, err := txn.Get(dataKey)
	if err != nil {
		return err
	}
	value, err := fn(old)
	if err != nil {
		return err
	}
	if err := txn.Set(dataKey, value); err != nil {
		return err
	}
	if old == nil {
		return TouchSize(txn, key, meta, 1)
	}
	return nil
}
