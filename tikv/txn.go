package tikv

import (
	"context"
	"sync"

	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/lib/logger"
	"github.com/tempbottle/tidis/lib/metrics"
)

// DefaultMaxRetry bounds the attempts of a standalone command
const DefaultMaxRetry = 10

// SharedTxn is one transaction used by a sequence of commands which must commit together.
// Access is serialized, the commands never run in parallel.
type SharedTxn struct {
	mu  sync.Mutex
	txn kv.Txn
}

// NewSharedTxn wraps txn
func NewSharedTxn(txn kv.Txn) *SharedTxn {
	return &SharedTxn{txn: txn}
}

// Do runs fn with exclusive access to the transaction
func (s *SharedTxn) Do(fn func(txn kv.Txn) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.txn)
}

// Commit publishes every write made through Do
func (s *SharedTxn) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txn.Commit(ctx)
}

// Rollback drops every write made through Do
func (s *SharedTxn) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txn.Rollback()
}

// TxnMode decides who owns the commit of a command
type TxnMode struct {
	shared *SharedTxn
}

// Standalone commands open, commit and retry their own transaction
func Standalone() TxnMode {
	return TxnMode{}
}

// Borrowed commands run inside shared and leave commit to its owner
func Borrowed(shared *SharedTxn) TxnMode {
	return TxnMode{shared: shared}
}

// IsStandalone tells whether the command owns its transaction
func (m TxnMode) IsStandalone() bool {
	return m.shared == nil
}

// Runner executes command bodies against a storage
type Runner struct {
	store    kv.Storage
	maxRetry int
}

// NewRunner creates a Runner, maxRetry <= 0 uses DefaultMaxRetry
func NewRunner(store kv.Storage, maxRetry int) *Runner {
	if maxRetry <= 0 {
		maxRetry = DefaultMaxRetry
	}
	return &Runner{store: store, maxRetry: maxRetry}
}

// Storage returns the underlying store
func (r *Runner) Storage() kv.Storage {
	return r.store
}

// MaxRetry returns the attempt bound of standalone commands
func (r *Runner) MaxRetry() int {
	return r.maxRetry
}

// Begin opens a transaction for Borrowed use
func (r *Runner) Begin(ctx context.Context) (*SharedTxn, error) {
	txn, err := r.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return NewSharedTxn(txn), nil
}

// Run executes fn according to mode.
// Standalone: every attempt gets a fresh transaction, a conflict from fn or Commit starts over,
// ErrTxnConflict is returned once the attempts are used up. Other errors roll back and are returned as is.
// Borrowed: fn runs inside the shared transaction and nothing is committed.
func (r *Runner) Run(ctx context.Context, mode TxnMode, fn func(txn kv.Txn) error) error {
	if !mode.IsStandalone() {
		return mode.shared.Do(fn)
	}
	for attempt := 1; attempt <= r.maxRetry; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		txn, err := r.store.Begin(ctx)
		if err != nil {
			return err
		}
		err = fn(txn)
		if err == nil {
			err = txn.Commit(ctx)
			if err == nil {
				metrics.TxnCommits.Inc()
				return nil
			}
		}
		_ = txn.Rollback()
		if !kv.IsConflict(err) {
			return err
		}
		metrics.TxnConflicts.Inc()
		logger.Debugf("txn conflict, attempt %d/%d: %v", attempt, r.maxRetry, err)
	}
	metrics.TxnRetryExhausted.Inc()
	return ErrTxnConflict
}

// run is Run for bodies producing a value. The value of a failed attempt is discarded.
func run[T any](ctx context.Context, r *Runner, mode TxnMode, fn func(txn kv.Txn) (T, error)) (T, error) {
	var result T
	err := r.Run(ctx, mode, func(txn kv.Txn) error {
		v, err := fn(txn)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
