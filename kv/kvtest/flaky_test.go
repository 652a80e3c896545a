package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tempbottle/tidis/kv"
)

func TestFlakyStore(t *testing.T) {
	ctx := context.Background()
	store := NewFlakyStore(1)

	txn, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn.Set([]byte("k"), []byte("v")))
	err = txn.Commit(ctx)
	assert.True(t, kv.IsConflict(err))
	assert.EqualValues(t, 0, store.Commits())

	txn, err = store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, txn.Set([]byte("k"), []byte("v")))
	require.NoError(t, txn.Commit(ctx))
	assert.EqualValues(t, 1, store.Commits())
	assert.EqualValues(t, 2, store.Begins())

	txn, err = store.Begin(ctx)
	require.NoError(t, err)
	value, err := txn.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "v", string(value))
	require.NoError(t, txn.Rollback())
}
