package tikv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countVersionEntries(t *testing.T, runner *Runner, key []byte, version uint64) int {
	txn := begin(t, runner.Storage())
	defer func() {
		_ = txn.Rollback()
	}()
	prefix := keyDataPrefix(key)
	start, end := prefixRange(prefix)
	pairs, err := txn.Scan(start, end, 0)
	require.NoError(t, err)
	count := 0
	for _, p := range pairs {
		_, v, _, _, err := DecodeDataKey(p.Key)
		require.NoError(t, err)
		if v == version {
			count++
		}
	}
	return count
}

func newTestGC(t *testing.T, runner *Runner) *GC {
	gc, err := NewGC(runner, 4)
	require.NoError(t, err)
	t.Cleanup(gc.Close)
	return gc
}

func TestSweepOldVersions(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	hash := NewHash(runner, Standalone())
	key := []byte("h")

	_, err := hash.Set(ctx, key, []HashField{
		{Field: []byte("a"), Value: []byte("1")},
		{Field: []byte("b"), Value: []byte("2")},
	})
	require.NoError(t, err)
	_, err = NewKeys(runner, Standalone()).Del(ctx, bs("h"))
	require.NoError(t, err)
	_, err = hash.Set(ctx, key, []HashField{{Field: []byte("c"), Value: []byte("3")}})
	require.NoError(t, err)
	assert.Equal(t, 2, countVersionEntries(t, runner, key, 1))

	swept, err := newTestGC(t, runner).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)
	assert.Equal(t, 0, countVersionEntries(t, runner, key, 1))
	assert.Equal(t, 1, countVersionEntries(t, runner, key, 2))

	all, err := hash.GetAll(ctx, key, true, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "3"}, strs(all))
}

func TestSweepDeletedAndExpired(t *testing.T) {
	withClock(t, 1000)
	runner := newTestRunner()
	ctx := context.Background()
	_, err := NewSet(runner, Standalone()).Add(ctx, []byte("deleted"), bs("a", "b"))
	require.NoError(t, err)
	_, err = NewSet(runner, Standalone()).Rem(ctx, []byte("deleted"), bs("a", "b"))
	require.NoError(t, err)
	_, err = NewString(runner, Standalone()).Set(ctx, []byte("expired"), []byte("v"), SetOptions{ExpireAt: 1500})
	require.NoError(t, err)
	_, err = NewString(runner, Standalone()).Set(ctx, []byte("live"), []byte("v"), SetOptions{})
	require.NoError(t, err)

	gc := newTestGC(t, runner)
	swept, err := gc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	withClock(t, 2000)
	swept, err = gc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	// only the live string remains
	assert.Len(t, dump(t, runner.Storage()), 2)
	swept, err = gc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	// a key recreated after its record was swept starts from scratch
	members, err := NewSet(runner, Standalone()).Members(ctx, []byte("deleted"))
	require.NoError(t, err)
	assert.Empty(t, members)
}
