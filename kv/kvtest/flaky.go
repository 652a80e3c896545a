// Package kvtest holds storage helpers shared by tests
package kvtest

import (
	"context"

	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/kv/memkv"
	"go.uber.org/atomic"
)

// FlakyStore is an in-memory store whose first commits fail with a write conflict
type FlakyStore struct {
	kv.Storage
	failures atomic.Int32
	commits  atomic.Int32
	begins   atomic.Int32
}

// NewFlakyStore makes a store that rejects the first failures commits
func NewFlakyStore(failures int32) *FlakyStore {
	s := &FlakyStore{Storage: memkv.New()}
	s.failures.Store(failures)
	return s
}

func (s *FlakyStore) Begin(ctx context.Context) (kv.Txn, error) {
	txn, err := s.Storage.Begin(ctx)
	if err != nil {
		return nil, err
	}
	s.begins.Inc()
	return &flakyTxn{Txn: txn, store: s}, nil
}

// Commits returns the number of commits that reached the store
func (s *FlakyStore) Commits() int32 {
	return s.commits.Load()
}

// Begins returns the number of started transactions
func (s *FlakyStore) Begins() int32 {
	return s.begins.Load()
}

// FailuresLeft returns how many commits will still be rejected, negative once exhausted
func (s *FlakyStore) FailuresLeft() int32 {
	return s.failures.Load()
}

type flakyTxn struct {
	kv.Txn
	store *FlakyStore
}

func (t *flakyTxn) Commit(ctx context.Context) error {
	if t.store.failures.Dec() >= 0 {
		_ = t.Txn.Rollback()
		return errors.Wrap(kv.ErrConflict, "injected")
	}
	t.store.commits.Inc()
	return t.Txn.Commit(ctx)
}
