package tikv

import (
	"context"
	"math/rand"

	"github.com/tempbottle/tidis/kv"
)

// set entries carry their member in the key, the value is only a marker
var setMarker = []byte{1}

// Set runs set commands
type Set struct {
	runner *Runner
	mode   TxnMode
}

// NewSet creates a set context
func NewSet(runner *Runner, mode TxnMode) *Set {
	return &Set{runner: runner, mode: mode}
}

// Members returns every member in storage order, an absent key is an empty set
func (s *Set) Members(ctx context.Context, key []byte) ([][]byte, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) ([][]byte, error) {
		meta, err := setCodec.load(txn, key)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			return [][]byte{}, nil
		}
		return scanCollection(txn, key, meta, setCodec)
	})
}

// Add inserts members and returns how many were new
func (s *Set) Add(ctx context.Context, key []byte, members [][]byte) (int, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) (int, error) {
		meta, err := CreateOrBump(txn, key, TypeSet)
		if err != nil {
			return 0, err
		}
		added := 0
		for _, member := range members {
			dataKey := setCodec.key(key, meta, member)
			old, err := txn.Get(dataKey)
			if err != nil {
				return 0, err
			}
			if old != nil {
				continue
			}
			if err := txn.Set(dataKey, setMarker); err != nil {
				return 0, err
			}
			added++
		}
		if added == 0 {
			return 0, nil
		}
		return added, TouchSize(txn, key, meta, int64(added))
	})
}

// Rem removes members and returns how many existed
func (s *Set) Rem(ctx context.Context, key []byte, members [][]byte) (int, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) (int, error) {
		meta, err := setCodec.load(txn, key)
		if err != nil || meta == nil {
			return 0, err
		}
		return s.remove(txn, key, meta, members)
	})
}

func (s *Set) remove(txn kv.Txn, key []byte, meta *Meta, members [][]byte) (int, error) {
	removed := 0
	for _, member := range members {
		dataKey := setCodec.key(key, meta, member)
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
}

// IsMember tells whether member belongs to the set
func (s *Set) IsMember(ctx context.Context, key, member []byte) (bool, error) {
	flags, err := s.MIsMember(ctx, key, [][]byte{member})
	if err != nil {
		return false, err
	}
	return flags[0], nil
}

// MIsMember answers IsMember for several members at once
func (s *Set) MIsMember(ctx context.Context, key []byte, members [][]byte) ([]bool, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) ([]bool, error) {
		flags := make([]bool, len(members))
		meta, err := setCodec.load(txn, key)
		if err != nil || meta == nil {
			return flags, err
		}
		for i, member := range members {
			value, err := txn.Get(setCodec.key(key, meta, member))
			if err != nil {
				return nil, err
			}
			flags[i] = value != nil
		}
		return flags, nil
	})
}

// Card returns the number of members
func (s *Set) Card(ctx context.Context, key []byte) (int64, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) (int64, error) {
		meta, err := setCodec.load(txn, key)
		if err != nil || meta == nil {
			return 0, err
		}
		return int64(meta.Size), nil
	})
}

// Pop removes and returns up to count random members
func (s *Set) Pop(ctx context.Context, key []byte, count int) ([][]byte, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) ([][]byte, error) {
		meta, err := setCodec.load(txn, key)
		if err != nil || meta == nil || count <= 0 {
			return [][]byte{}, err
		}
		members, err := scanCollection(txn, key, meta, setCodec)
		if err != nil {
			return nil, err
		}
		picked := pickDistinct(members, count)
		if _, err := s.remove(txn, key, meta, picked); err != nil {
			return nil, err
		}
		return picked, nil
	})
}

// RandMember returns random members without removing them.
// A positive count returns distinct members, a negative one may repeat members.
func (s *Set) RandMember(ctx context.Context, key []byte, count int) ([][]byte, error) {
	return run(ctx, s.runner, s.mode, func(txn kv.Txn) ([][]byte, error) {
		meta, err := setCodec.load(txn, key)
		if err != nil || meta == nil || count == 0 {
			return [][]byte{}, err
		}
		members, err := scanCollection(txn, key, meta, setCodec)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return pickDistinct(members, count), nil
		}
		result := make([][]byte, -count)
		for i := range result {
			result[i] = members[rand.Intn(len(members))]
		}
		return result, nil
	})
}

func pickDistinct(members [][]byte, count int) [][]byte {
	if count >= len(members) {
		return members
	}
	result := make([][]byte, count)
	for i, j := range rand.Perm(len(members))[:count] {
		result[i] = members[j]
	}
	return result
}
