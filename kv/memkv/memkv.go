// Package memkv is an in-memory kv.Storage with snapshot isolation.
//
// Every key keeps a chain of committed versions ordered by commit timestamp. A transaction reads the
// newest version not newer than its start timestamp and buffers its writes. Commit applies the
// first-committer-wins rule: if any written key got a version newer than the start timestamp the
// commit fails with kv.ErrConflict.
package memkv

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/btree"
	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/kv"
)

const btreeDegree = 32

type version struct {
	ts      uint64
	value   []byte
	deleted bool
}

type entry struct {
	key      []byte
	versions []version // ascending ts
}

// Less implements btree.Item
func (e *entry) Less(than btree.Item) bool {
	return bytes.Compare(e.key, than.(*entry).key) < 0
}

// visible returns the newest version at ts
func (e *entry) visible(ts uint64) ([]byte, bool) {
	for i := len(e.versions) - 1; i >= 0; i-- {
		v := e.versions[i]
		if v.ts <= ts {
			if v.deleted {
				return nil, false
			}
			return v.value, true
		}
	}
	return nil, false
}

func (e *entry) latestTs() uint64 {
	if len(e.versions) == 0 {
		return 0
	}
	return e.versions[len(e.versions)-1].ts
}

// Store is the in-memory storage
type Store struct {
	mu     sync.RWMutex
	tree   *btree.BTree
	clock  uint64         // timestamp of the last commit
	active map[uint64]int // start ts -> number of open transactions
	closed bool
}

// New creates an empty Store
func New() *Store {
	return &Store{
		tree:   btree.New(btreeDegree),
		active: make(map[uint64]int),
	}
}

// Begin implements kv.Storage
func (s *Store) Begin(ctx context.Context) (kv.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, kv.ErrClosed
	}
	startTS := s.clock
	s.active[startTS]++
	return &txn{
		store:   s,
		startTS: startTS,
		writes:  make(map[string]*pendingWrite),
	}, nil
}

// Close implements kv.Storage
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of keys visible to a new transaction, for tests and stats
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	s.tree.Ascend(func(i btree.Item) bool {
		if _, ok := i.(*entry).visible(s.clock); ok {
			n++
		}
		return true
	})
	return n
}

// must hold s.mu
func (s *Store) release(startTS uint64) {
	s.active[startTS]--
	if s.active[startTS] <= 0 {
		delete(s.active, startTS)
	}
}

// oldestActive returns the smallest start ts still readable, must hold s.mu
func (s *Store) oldestActive() uint64 {
	oldest := s.clock
	for ts := range s.active {
		if ts < oldest {
			oldest = ts
		}
	}
	return oldest
}

// prune drops versions no open or future transaction can read, must hold s.mu
func (s *Store) prune(e *entry, oldest uint64) {
	keepFrom := 0
	for i := len(e.versions) - 1; i >= 0; i-- {
		if e.versions[i].ts <= oldest {
			keepFrom = i
			break
		}
	}
	if keepFrom > 0 {
		e.versions = append(e.versions[:0], e.versions[keepFrom:]...)
	}
	if len(e.versions) == 1 && e.versions[0].deleted && e.versions[0].ts <= oldest {
		s.tree.Delete(e)
	}
}

type pendingWrite struct {
	value   []byte
	deleted bool
}

type txn struct {
	store   *Store
	startTS uint64
	writes  map[string]*pendingWrite
	done    bool
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func (t *txn) Get(key []byte) ([]byte, error) {
	if t.done {
		return nil, kv.ErrTxnDone
	}
	if w, ok := t.writes[string(key)]; ok {
		if w.deleted {
			return nil, nil
		}
		return copyBytes(w.value), nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	item := t.store.tree.Get(&entry{key: key})
	if item == nil {
		return nil, nil
	}
	value, ok := item.(*entry).visible(t.startTS)
	if !ok {
		return nil, nil
	}
	return copyBytes(value), nil
}

func inRange(key, start, end []byte) bool {
	return bytes.Compare(key, start) >= 0 && (end == nil || bytes.Compare(key, end) < 0)
}

func (t *txn) Scan(start, end []byte, limit int) ([]kv.KvPair, error) {
	if t.done {
		return nil, kv.ErrTxnDone
	}
	merged := make(map[string][]byte)
	t.store.mu.RLock()
	t.store.tree.AscendGreaterOrEqual(&entry{key: start}, func(i btree.Item) bool {
		e := i.(*entry)
		if end != nil && bytes.Compare(e.key, end) >= 0 {
			return false
		}
		if value, ok := e.visible(t.startTS); ok {
			merged[string(e.key)] = value
		}
		return true
	})
	t.store.mu.RUnlock()
	for key, w := range t.writes {
		if !inRange([]byte(key), start, end) {
			continue
		}
		if w.deleted {
			delete(merged, key)
		} else {
			merged[key] = w.value
		}
	}
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	pairs := make([]kv.KvPair, len(keys))
	for i, key := range keys {
		pairs[i] = kv.KvPair{Key: []byte(key), Value: copyBytes(merged[key])}
	}
	return pairs, nil
}

func (t *txn) Set(key, value []byte) error {
	if t.done {
		return kv.ErrTxnDone
	}
	if len(key) == 0 {
		return errors.New("memkv: empty key")
	}
	if value == nil {
		value = []byte{}
	}
	t.writes[string(key)] = &pendingWrite{value: copyBytes(value)}
	return nil
}

func (t *txn) Delete(key []byte) error {
	if t.done {
		return kv.ErrTxnDone
	}
	t.writes[string(key)] = &pendingWrite{deleted: true}
	return nil
}

func (t *txn) Commit(ctx context.Context) error {
	if t.done {
		return kv.ErrTxnDone
	}
	t.done = true
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release(t.startTS)
	if s.closed {
		return kv.ErrClosed
	}
	if len(t.writes) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for key := range t.writes {
		item := s.tree.Get(&entry{key: []byte(key)})
		if item != nil && item.(*entry).latestTs() > t.startTS {
			return errors.Wrapf(kv.ErrConflict, "key %q", key)
		}
	}
	s.clock++
	commitTS := s.clock
	touched := make([]*entry, 0, len(t.writes))
	for key, w := range t.writes {
		var e *entry
		if item := s.tree.Get(&entry{key: []byte(key)}); item != nil {
			e = item.(*entry)
		} else {
			if w.deleted {
				continue
			}
			e = &entry{key: []byte(key)}
			s.tree.ReplaceOrInsert(e)
		}
		e.versions = append(e.versions, version{ts: commitTS, value: w.value, deleted: w.deleted})
		touched = append(touched, e)
	}
	oldest := s.oldestActive()
	for _, e := range touched {
		s.prune(e, oldest)
	}
	return nil
}

func (t *txn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	t.store.release(t.startTS)
	t.store.mu.Unlock()
	return nil
}
