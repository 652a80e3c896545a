package tikv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/kv/memkv"
)

func begin(t *testing.T, store kv.Storage) kv.Txn {
	txn, err := store.Begin(context.Background())
	require.NoError(t, err)
	return txn
}

func TestMetaEncoding(t *testing.T) {
	meta := &Meta{Type: TypeList, Version: 3, Size: 9, ExpireAt: 1700000000000, Head: listInitialHead - 2, tombstone: true}
	decoded, err := decodeMeta(meta.encode())
	require.NoError(t, err)
	assert.Equal(t, meta, decoded)
	_, err = decodeMeta([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCreateOrBump(t *testing.T) {
	store := memkv.New()
	txn := begin(t, store)
	key := []byte("k")

	meta, err := CreateOrBump(txn, key, TypeHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), meta.Version)
	require.NoError(t, TouchSize(txn, key, meta, 2))

	// same type reuses the record
	meta, err = CreateOrBump(txn, key, TypeHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), meta.Version)
	assert.Equal(t, uint64(2), meta.Size)

	_, err = CreateOrBump(txn, key, TypeList)
	assert.Equal(t, ErrWrongType, err)

	// emptied collection leaves a tombstone, the next creation bumps the version
	require.NoError(t, TouchSize(txn, key, meta, -2))
	loaded, err := LoadMeta(txn, key)
	require.NoError(t, err)
	assert.Nil(t, loaded)
	meta, err = CreateOrBump(txn, key, TypeList)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), meta.Version)
	assert.Equal(t, uint64(0), meta.Size)
	assert.Equal(t, listInitialHead, meta.Head)
	require.NoError(t, txn.Commit(context.Background()))
}

func TestExpiredMetaIsAbsent(t *testing.T) {
	withClock(t, 1000)
	store := memkv.New()
	txn := begin(t, store)
	key := []byte("k")
	require.NoError(t, saveMeta(txn, key, &Meta{Type: TypeSet, Version: 4, Size: 1, ExpireAt: 999}))

	meta, err := LoadMeta(txn, key)
	require.NoError(t, err)
	assert.Nil(t, meta)
	// an expired key of another type does not block a write
	meta, err = CreateOrBump(txn, key, TypeHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), meta.Version)
	assert.Equal(t, int64(0), meta.ExpireAt)
}

func TestRemoveMeta(t *testing.T) {
	store := memkv.New()
	txn := begin(t, store)
	key := []byte("k")
	removed, err := RemoveMeta(txn, key)
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, saveMeta(txn, key, &Meta{Type: TypeString, Version: 1, Size: 1}))
	removed, err = RemoveMeta(txn, key)
	require.NoError(t, err)
	assert.True(t, removed)
	raw, err := loadRawMeta(txn, key)
	require.NoError(t, err)
	assert.True(t, raw.tombstone)
	assert.Equal(t, uint64(1), raw.Version)
}

func TestTouchSizeUnderflow(t *testing.T) {
	store := memkv.New()
	txn := begin(t, store)
	meta := &Meta{Type: TypeSet, Version: 1, Size: 1}
	assert.Error(t, TouchSize(txn, []byte("k"), meta, -2))
}
