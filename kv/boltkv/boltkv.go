// Package boltkv adapts bolt to kv.Storage.
//
// Bolt allows a single writer at a time, so transactions are serialized and Commit never reports
// kv.ErrConflict. Begin blocks while another transaction is open.
package boltkv

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/kv"
)

const fileName = "tidis.db"

var bucketName = []byte("tidis")

// Store wraps a bolt.DB
type Store struct {
	db *bolt.DB
}

// Open opens or creates the bolt file inside dir
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WithStack(err)
	}
	db, err := bolt.Open(filepath.Join(dir, fileName), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open bolt at %s", dir)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}
	return &Store{db: db}, nil
}

// Begin implements kv.Storage
func (s *Store) Begin(ctx context.Context) (kv.Txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &txn{tx: tx, bucket: tx.Bucket(bucketName)}, nil
}

// Close implements kv.Storage
func (s *Store) Close() error {
	return s.db.Close()
}

type txn struct {
	tx     *bolt.Tx
	bucket *bolt.Bucket
	done   bool
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func (t *txn) Get(key []byte) ([]byte, error) {
	if t.done {
		return nil, kv.ErrTxnDone
	}
	// values returned by bolt are only valid during the transaction
	v := t.bucket.Get(key)
	if v == nil {
		return nil, nil
	}
	return copyBytes(v), nil
}

func (t *txn) Scan(start, end []byte, limit int) ([]kv.KvPair, error) {
	if t.done {
		return nil, kv.ErrTxnDone
	}
	var pairs []kv.KvPair
	c := t.bucket.Cursor()
	for k, v := c.Seek(start); k != nil; k, v = c.Next() {
		if end != nil && bytes.Compare(k, end) >= 0 {
			break
		}
		pairs = append(pairs, kv.KvPair{Key: copyBytes(k), Value: copyBytes(v)})
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
	return errors.WithStack(t.bucket.Put(copyBytes(key), copyBytes(value)))
}

func (t *txn) Delete(key []byte) error {
	if t.done {
		return kv.ErrTxnDone
	}
	return errors.WithStack(t.bucket.Delete(key))
}

func (t *txn) Commit(ctx context.Context) error {
	if t.done {
		return kv.ErrTxnDone
	}
	t.done = true
	if err := ctx.Err(); err != nil {
		_ = t.tx.Rollback()
		return err
	}
	return errors.WithStack(t.tx.Commit())
}

func (t *txn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return errors.WithStack(t.tx.Rollback())
}
