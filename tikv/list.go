package tikv

import (
	"bytes"
	"context"

	"github.com/tempbottle/tidis/kv"
)

// List runs list commands. Elements occupy the contiguous positions [Head, Head+Size).
type List struct {
	runner *Runner
	mode   TxnMode
}

// NewList creates a list context
func NewList(runner *Runner, mode TxnMode) *List {
	return &List{runner: runner, mode: mode}
}

func (l *List) posKey(key []byte, meta *Meta, pos uint64) []byte {
	return listCodec.key(key, meta, listDisc(pos))
}

// normalizeIndex maps a negative index to its offset from the tail
func normalizeIndex(idx int64, size uint64) (uint64, bool) {
	if idx < 0 {
		idx += int64(size)
	}
	if idx < 0 || idx >= int64(size) {
		return 0, false
	}
	return uint64(idx), true
}

// normalizeRange clamps [start, stop] the way LRANGE and LTRIM do, ok is false for an empty range
func normalizeRange(start, stop int64, size uint64) (uint64, uint64, bool) {
	n := int64(size)
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return uint64(start), uint64(stop), true
}

// Push inserts values at the head (left) or the tail and returns the new length
func (l *List) Push(ctx context.Context, key []byte, left bool, values [][]byte) (int64, error) {
	return run(ctx, l.runner, l.mode, func(txn kv.Txn) (int64, error) {
		meta, err := CreateOrBump(txn, key, TypeList)
		if err != nil {
			return 0, err
		}
		return l.push(txn, key, meta, left, values)
	})
}

// PushX is Push for existing lists only, 0 is returned for an absent key
func (l *List) PushX(ctx context.Context, key []byte, left bool, values [][]byte) (int64, error) {
	return run(ctx, l.runner, l.mode, func(txn kv.Txn) (int64, error) {
		meta, err := listCodec.load(txn, key)
		if err != nil || meta == nil {
			return 0, err
		}
		return l.push(txn, key, meta, left, values)
	})
}

func (l *List) push(txn kv.Txn, key []byte, meta *Meta, left bool, values [][]byte) (int64, error) {
	for i, value := range values {
		var pos uint64
		if left {
			meta.Head--
			pos = meta.Head
		} else {
			pos = meta.Head + meta.Size + uint64(i)
		}
		if err := txn.Set(l.posKey(key, meta, pos), value); err != nil {
			return 0, err
		}
	}
	if err := TouchSize(txn, key, meta, int64(len(values))); err != nil {
		return 0, err
	}
	return int64(meta.Size), nil
}

// Pop removes up to count elements from the head (left) or the tail
func (l *List) Pop(ctx context.Context, key []byte, left bool, count int) ([][]byte, error) {
	return run(ctx, l.runner, l.mode, func(txn kv.Txn) ([][]byte, error) {
		meta, err := listCodec.load(txn, key)
		if err != nil || meta == nil || count <= 0 {
			return nil, err
		}
		n := uint64(count)
		if n > meta.Size {
			n = meta.Size
		}
		values := make([][]byte, 0, n)
		for i := uint64(0); i < n; i++ {
			var pos uint64
			if left {
				pos = meta.Head + i
			} else {
				pos = meta.Head + meta.Size - 1 - i
			}
			dataKey := l.posKey(key, meta, pos)
			value, err := txn.Get(dataKey)
			if err != nil {
				return nil, err
			}
			if value == nil {
				return nil, corrupted("list %q misses position %d", key, pos)
			}
			if err := txn.Delete(dataKey); err != nil {
				return nil, err
			}
			values = append(values, value)
		}
		if left {
			meta.Head += n
		}
		return values, TouchSize(txn, key, meta, -int64(n))
	})
}

// Len returns the number of elements
func (l *List) Len(ctx context.Context, key []byte) (int64, error) {
	return run(ctx, l.runner, l.mode, func(txn kv.Txn) (int64, error) {
		meta, err := listCodec.load(txn, key)
		if err != nil || meta == nil {
			return 0, err
		}
		return int64(meta.Size), nil
	})
}

// Index returns the element at idx, nil when idx is out of range or the key is absent
func (l *List) Index(ctx context.Context, key []byte, idx int64) ([]byte, error) {
	return run(ctx, l.runner, l.mode, func(txn kv.Txn) ([]byte, error) {
		meta, err := listCodec.load(txn, key)
		if err != nil || meta == nil {
			return nil, err
		}
		offset, ok := normalizeIndex(idx, meta.Size)
		if !ok {
			return nil, nil
		}
		return txn.Get(l.posKey(key, meta, meta.Head+offset))
	})
}

// Range returns the elements in [start, stop], both inclusive and possibly negative
func (l *List) Range(ctx context.Context, key []byte, start, stop int64) ([][]byte, error) {
	return run(ctx, l.runner, l.mode, func(txn kv.Txn) ([][]byte, error) {
		meta, err := listCodec.load(txn, key)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			return [][]byte{}, nil
		}
		from, to, ok := normalizeRange(start, stop, meta.Size)
		if !ok {
			return [][]byte{}, nil
		}
		items, err := listCodec.scan(txn, key, meta, listDisc(meta.Head+from), int(to-from+1))
		if err != nil {
			return nil, err
		}
		values := make([][]byte, len(items))
		for i, item := range items {
			values[i] = item.value
		}
		return values, nil
	})
}

// SetByIndex overwrites the element at idx. The metadata is left untouched.
func (l *List) SetByIndex(ctx context.Context, key []byte, idx int64, value []byte) error {
	return l.runner.Run(ctx, l.mode, func(txn kv.Txn) error {
		meta, err := listCodec.load(txn, key)
		if err != nil {
			return err
		}
		if meta == nil {
			return ErrNoSuchKey
		}
		offset, ok := normalizeIndex(idx, meta.Size)
		if !ok {
			return ErrIndexOutOfRange
		}
		return txn.Set(l.posKey(key, meta, meta.Head+offset), value)
	})
}

// Trim keeps only the elements in [start, stop]
func (l *List) Trim(ctx context.Context, key []byte, start, stop int64) error {
	return l.runner.Run(ctx, l.mode, func(txn kv.Txn) error {
		meta, err := listCodec.load(txn, key)
		if err != nil || meta == nil {
			return err
		}
		from, to, ok := normalizeRange(start, stop, meta.Size)
		if !ok {
			from, to = meta.Size, meta.Size-1
		}
		for i := uint64(0); i < meta.Size; i++ {
			if ok && i >= from && i <= to {
				continue
			}
			if err := txn.Delete(l.posKey(key, meta, meta.Head+i)); err != nil {
				return err
			}
		}
		kept := int64(0)
		if ok {
			kept = int64(to - from + 1)
		}
		removed := int64(meta.Size) - kept
		meta.Head += from
		if removed == 0 {
			return nil
		}
		return TouchSize(txn, key, meta, -removed)
	})
}

// Rem removes elements equal to value: the first count ones when count > 0,
// the last -count ones when count < 0, all of them when count is 0.
func (l *List) Rem(ctx context.Context, key []byte, count int64, value []byte) (int64, error) {
	return run(ctx, l.runner, l.mode, func(txn kv.Txn) (int64, error) {
		meta, err := listCodec.load(txn, key)
		if err != nil || meta == nil {
			return 0, err
		}
		items, err := scanCollection(txn, key, meta, listCodec)
		if err != nil {
			return 0, err
		}
		drop := make([]bool, len(items))
		removed := int64(0)
		limit := count
		if limit < 0 {
			limit = -limit
		}
		for j := range items {
			i := j
			if count < 0 {
				i = len(items) - 1 - j
			}
			if !bytes.Equal(items[i].value, value) {
				continue
			}
			drop[i] = true
			removed++
			if limit > 0 && removed == limit {
				break
			}
		}
		if removed == 0 {
			return 0, nil
		}
		// compact the survivors towards the head
		next := meta.Head
		for i, item := range items {
			if drop[i] {
				continue
			}
			if item.pos != next {
				if err := txn.Set(l.posKey(key, meta, next), item.value); err != nil {
					return 0, err
				}
			}
			next++
		}
		for pos := next; pos < meta.Head+meta.Size; pos++ {
			if err := txn.Delete(l.posKey(key, meta, pos)); err != nil {
				return 0, err
			}
		}
		return removed, TouchSize(txn, key, meta, -removed)
	})
}
