// Package badgerkv adapts badger's optimistic transactions to kv.Storage.
package badgerkv

import (
	"bytes"
	"context"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/lib/logger"
)

// Store wraps a badger.DB
type Store struct {
	db *badger.DB
}

// badgerLogger routes badger's own logs into tidis logger
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, v ...interface{})   { logger.Errorf("badger: "+format, v...) }
func (badgerLogger) Warningf(format string, v ...interface{}) { logger.Warnf("badger: "+format, v...) }
func (badgerLogger) Infof(format string, v ...interface{})    { logger.Debugf("badger: "+format, v...) }
func (badgerLogger) Debugf(format string, v ...interface{})   { logger.Debugf("badger: "+format, v...) }

// Open opens or creates a badger database in dir
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = badgerLogger{}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open badger at %s", dir)
	}
	return &Store{db: db}, nil
}

// Begin implements kv.Storage
func (s *Store) Begin(ctx context.Context) (kv.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &txn{inner: s.db.NewTransaction(true)}, nil
}

// Close implements kv.Storage
func (s *Store) Close() error {
	return s.db.Close()
}

type txn struct {
	inner *badger.Txn
	done  bool
}

func (t *txn) Get(key []byte) ([]byte, error) {
	if t.done {
		return nil, kv.ErrTxnDone
	}
	item, err := t.inner.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return valueCopy(item)
}

// valueCopy keeps empty values distinguishable from absent keys
func valueCopy(item *badger.Item) ([]byte, error) {
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (t *txn) Scan(start, end []byte, limit int) ([]kv.KvPair, error) {
	if t.done {
		return nil, kv.ErrTxnDone
	}
	it := t.inner.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	var pairs []kv.KvPair
	for it.Seek(start); it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if end != nil && bytes.Compare(key, end) >= 0 {
			break
		}
		value, err := valueCopy(item)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, kv.KvPair{Key: key, Value: value})
		if limit > 0 && len(pairs) >= limit {
			break
		}
	}
	return pairs, nil
}

func (t *txn) Set(key, value []byte) error {
	if t.done {
		return kv.ErrTxnDone
	}
	// badger keeps the slices until commit
	k := append([]byte{}, key...)
	v := append([]byte{}, value...)
	return errors.WithStack(t.inner.Set(k, v))
}

func (t *txn) Delete(key []byte) error {
	if t.done {
		return kv.ErrTxnDone
	}
	return errors.WithStack(t.inner.Delete(append([]byte{}, key...)))
}

func (t *txn) Commit(ctx context.Context) error {
	if t.done {
		return kv.ErrTxnDone
	}
	t.done = true
	if err := ctx.Err(); err != nil {
		t.inner.Discard()
		return err
	}
	err := t.inner.Commit()
	if err == badger.ErrConflict {
		return errors.WithStack(kv.ErrConflict)
	}
	return errors.WithStack(err)
}

func (t *txn) Rollback() error {
	if !t.done {
		t.done = true
		t.inner.Discard()
	}
	return nil
}
