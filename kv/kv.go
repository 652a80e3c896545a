// Package kv defines the boundary between tidis and the transactional key-value engine underneath.
//
// A Storage hands out transactions. Every transaction reads from a snapshot taken when it began,
// sees its own uncommitted writes, and publishes all of them atomically on Commit.
// A Commit that loses a write-write race returns ErrConflict, the only error callers should retry.
package kv

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrConflict means another transaction committed a conflicting write first
	ErrConflict = errors.New("kv: write conflict")
	// ErrTxnDone means the transaction was already committed or rolled back
	ErrTxnDone = errors.New("kv: transaction has already been committed or rolled back")
	// ErrClosed means the storage has been closed
	ErrClosed = errors.New("kv: storage closed")
)

// KvPair is a key/value returned by Scan
type KvPair struct {
	Key   []byte
	Value []byte
}

// Storage is a transactional ordered key-value store
type Storage interface {
	// Begin starts a read-write transaction
	Begin(ctx context.Context) (Txn, error)
	Close() error
}

// Txn is one in-flight transaction. It is not safe for concurrent use.
type Txn interface {
	// Get returns (nil, nil) when key does not exist
	Get(key []byte) ([]byte, error)
	// Scan returns pairs in [start, end) in ascending key order.
	// A nil end means no upper bound, limit <= 0 means no limit.
	Scan(start, end []byte, limit int) ([]KvPair, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Commit(ctx context.Context) error
	Rollback() error
}

// IsConflict tells whether err (or its cause) is a write conflict
func IsConflict(err error) bool {
	return err != nil && errors.Cause(err) == ErrConflict
}

// PrefixEnd returns the smallest key greater than every key with the given prefix,
// nil means there is no such key
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
