package tikv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/kv/memkv"
)

func newTestRunner() *Runner {
	return NewRunner(memkv.New(), 0)
}

// dump returns every stored pair, used to compare whole store states
func dump(t *testing.T, store kv.Storage) map[string]string {
	txn, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer func() {
		_ = txn.Rollback()
	}()
	pairs, err := txn.Scan([]byte{0}, nil, 0)
	require.NoError(t, err)
	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		result[string(pair.Key)] = string(pair.Value)
	}
	return result
}

func bs(values ...string) [][]byte {
	result := make([][]byte, len(values))
	for i, v := range values {
		result[i] = []byte(v)
	}
	return result
}

func strs(values [][]byte) []string {
	result := make([]string, len(values))
	for i, v := range values {
		result[i] = string(v)
	}
	return result
}

func withClock(t *testing.T, now int64) {
	old := nowMs
	nowMs = func() int64 {
		return now
	}
	t.Cleanup(func() {
		nowMs = old
	})
}
