package tikv

import (
	"context"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/lib/codec"
)

// ErrBadScoreBorder is returned for a min or max that is not a float
var ErrBadScoreBorder = errors.New("ERR min or max is not a float")

// ScoreBorder is the min or max argument of ZRANGEBYSCORE:
// a float, an exclusive float such as (2.5, or one of -inf, +inf, inf
type ScoreBorder struct {
	Inf     int8
	Value   float64
	Exclude bool
}

const (
	negativeInf int8 = -1
	positiveInf int8 = 1
)

// ParseScoreBorder parses a score border argument
func ParseScoreBorder(s string) (*ScoreBorder, error) {
	switch s {
	case "inf", "+inf":
		return &ScoreBorder{Inf: positiveInf}, nil
	case "-inf":
		return &ScoreBorder{Inf: negativeInf}, nil
	}
	border := &ScoreBorder{}
	if len(s) > 0 && s[0] == '(' {
		border.Exclude = true
		s = s[1:]
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(value) {
		return nil, ErrBadScoreBorder
	}
	border.Value = value
	return border, nil
}

// admitsAbove tells whether score satisfies the border used as a minimum
func (b *ScoreBorder) admitsAbove(score float64) bool {
	switch b.Inf {
	case negativeInf:
		return true
	case positiveInf:
		return false
	}
	if b.Exclude {
		return score > b.Value
	}
	return score >= b.Value
}

// admitsBelow tells whether score satisfies the border used as a maximum
func (b *ScoreBorder) admitsBelow(score float64) bool {
	switch b.Inf {
	case negativeInf:
		return false
	case positiveInf:
		return true
	}
	if b.Exclude {
		return score < b.Value
	}
	return score <= b.Value
}

// ZAddOptions are the modifiers of ZADD
type ZAddOptions struct {
	NX bool
	XX bool
}

// ZSet runs sorted set commands. Every member is stored twice: member -> score for lookups
// and a score index ordered by (score, member) for ranges.
type ZSet struct {
	runner *Runner
	mode   TxnMode
}

// NewZSet creates a sorted set context
func NewZSet(runner *Runner, mode TxnMode) *ZSet {
	return &ZSet{runner: runner, mode: mode}
}

func zsetScoreKey(key []byte, meta *Meta, score float64, member []byte) []byte {
	return zsetScoreCodec.key(key, meta, scoreDisc(score, member))
}

func getScore(txn kv.Txn, key []byte, meta *Meta, member []byte) (float64, bool, error) {
	raw, err := txn.Get(zsetCodec.key(key, meta, member))
	if err != nil || raw == nil {
		return 0, false, err
	}
	score, err := decodeScore(raw)
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

// putScore writes member with score, replacing the index entry of old when exists
func putScore(txn kv.Txn, key []byte, meta *Meta, member []byte, score, old float64, exists bool) error {
	if exists {
		if old == score {
			return nil
		}
		if err := txn.Delete(zsetScoreKey(key, meta, old, member)); err != nil {
			return err
		}
	}
	if err := txn.Set(zsetCodec.key(key, meta, member), encodeScore(score)); err != nil {
		return err
	}
	return txn.Set(zsetScoreKey(key, meta, score, member), setMarker)
}

// Add inserts or updates entries and returns how many members were new
func (z *ZSet) Add(ctx context.Context, key []byte, entries []ZSetEntry, opts ZAddOptions) (int, error) {
	return run(ctx, z.runner, z.mode, func(txn kv.Txn) (int, error) {
		var meta *Meta
		var err error
		if opts.XX {
			meta, err = zsetCodec.load(txn, key)
			if err != nil || meta == nil {
				return 0, err
			}
		} else {
			meta, err = CreateOrBump(txn, key, TypeZSet)
			if err != nil {
				return 0, err
			}
		}
		added := 0
		for _, entry := range entries {
			old, exists, err := getScore(txn, key, meta, entry.Member)
			if err != nil {
				return 0, err
			}
			if (exists && opts.NX) || (!exists && opts.XX) {
				continue
			}
			if err := putScore(txn, key, meta, entry.Member, entry.Score, old, exists); err != nil {
				return 0, err
			}
			if !exists {
				added++
			}
		}
		if added == 0 {
			return 0, nil
		}
		return added, TouchSize(txn, key, meta, int64(added))
	})
}

// IncrBy adds delta to the score of member and returns the new score
func (z *ZSet) IncrBy(ctx context.Context, key, member []byte, delta float64) (float64, error) {
	return run(ctx, z.runner, z.mode, func(txn kv.Txn) (float64, error) {
		meta, err := CreateOrBump(txn, key, TypeZSet)
		if err != nil {
			return 0, err
		}
		old, exists, err := getScore(txn, key, meta, member)
		if err != nil {
			return 0, err
		}
		score := old + delta
		if math.IsNaN(score) {
			return 0, ErrNotFloat
		}
		if err := putScore(txn, key, meta, member, score, old, exists); err != nil {
			return 0, err
		}
		if exists {
			return score, nil
		}
		return score, TouchSize(txn, key, meta, 1)
	})
}

// Score returns the score of member, ok is false when it does not exist
func (z *ZSet) Score(ctx context.Context, key, member []byte) (score float64, ok bool, err error) {
	err = z.runner.Run(ctx, z.mode, func(txn kv.Txn) error {
		meta, err := zsetCodec.load(txn, key)
		if err != nil || meta == nil {
			score, ok = 0, false
			return err
		}
		score, ok, err = getScore(txn, key, meta, member)
		return err
	})
	return score, ok, err
}

// Card returns the number of members
func (z *ZSet) Card(ctx context.Context, key []byte) (int64, error) {
	return run(ctx, z.runner, z.mode, func(txn kv.Txn) (int64, error) {
		meta, err := zsetCodec.load(txn, key)
		if err != nil || meta == nil {
			return 0, err
		}
		return int64(meta.Size), nil
	})
}

// Rem removes members and returns how many existed
func (z *ZSet) Rem(ctx context.Context, key []byte, members [][]byte) (int, error) {
	return run(ctx, z.runner, z.mode, func(txn kv.Txn) (int, error) {
		meta, err := zsetCodec.load(txn, key)
		if err != nil || meta == nil {
			return 0, err
		}
		removed := 0
		for _, member := range members {
			score, exists, err := getScore(txn, key, meta, member)
			if err != nil {
				return 0, err
			}
			if !exists {
				continue
			}
			if err := txn.Delete(zsetCodec.key(key, meta, member)); err != nil {
				return 0, err
			}
			if err := txn.Delete(zsetScoreKey(key, meta, score, member)); err != nil {
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

// Range returns the members ranked in [start, stop] by ascending score, or descending when rev is set
func (z *ZSet) Range(ctx context.Context, key []byte, start, stop int64, rev bool) ([]ZSetEntry, error) {
	return run(ctx, z.runner, z.mode, func(txn kv.Txn) ([]ZSetEntry, error) {
		meta, err := zsetCodec.load(txn, key)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			return []ZSetEntry{}, nil
		}
		from, to, ok := normalizeRange(start, stop, meta.Size)
		if !ok {
			return []ZSetEntry{}, nil
		}
		if rev {
			from, to = meta.Size-1-to, meta.Size-1-from
		}
		entries, err := zsetScoreCodec.scan(txn, key, meta, nil, int(to+1))
		if err != nil {
			return nil, err
		}
		if uint64(len(entries)) <= from {
			return []ZSetEntry{}, nil
		}
		entries = entries[from:]
		if rev {
			reverseEntries(entries)
		}
		return entries, nil
	})
}

// RangeByScore returns the members with a score between min and max in ascending order,
// skipping offset of them. A negative limit returns every remaining member.
func (z *ZSet) RangeByScore(ctx context.Context, key []byte, min, max *ScoreBorder, offset, limit int64) ([]ZSetEntry, error) {
	return run(ctx, z.runner, z.mode, func(txn kv.Txn) ([]ZSetEntry, error) {
		meta, err := zsetCodec.load(txn, key)
		if err != nil {
			return nil, err
		}
		result := []ZSetEntry{}
		if meta == nil || limit == 0 {
			return result, nil
		}
		var start []byte
		if min.Inf == 0 {
			start = codec.EncodeFloat(nil, min.Value)
		}
		entries, err := zsetScoreCodec.scan(txn, key, meta, start, 0)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !min.admitsAbove(entry.Score) {
				continue
			}
			if !max.admitsBelow(entry.Score) {
				break
			}
			if offset > 0 {
				offset--
				continue
			}
			result = append(result, entry)
			if limit > 0 && int64(len(result)) == limit {
				break
			}
		}
		return result, nil
	})
}

func reverseEntries(entries []ZSetEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}
