package tikv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringSetGet(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	str := NewString(runner, Standalone())
	key := []byte("k")

	v, err := str.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, v)

	ok, err := str.Set(ctx, key, []byte("v1"), SetOptions{XX: true})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = str.Set(ctx, key, []byte("v1"), SetOptions{NX: true})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = str.Set(ctx, key, []byte("v2"), SetOptions{NX: true})
	require.NoError(t, err)
	assert.False(t, ok)

	old, err := str.GetSet(ctx, key, []byte("v3"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(old))

	n, err := str.Append(ctx, key, []byte("!"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	v, err = str.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "v3!", string(v))

	// an empty string is a value, not an absent key
	_, err = str.Set(ctx, []byte("empty"), []byte{}, SetOptions{})
	require.NoError(t, err)
	v, err = str.Get(ctx, []byte("empty"))
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.Empty(t, v)
}

func TestStringOverwritesOtherTypes(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	_, err := NewList(runner, Standalone()).Push(ctx, []byte("k"), false, bs("a"))
	require.NoError(t, err)
	str := NewString(runner, Standalone())

	_, err = str.Get(ctx, []byte("k"))
	assert.Equal(t, ErrWrongType, err)
	_, err = str.Set(ctx, []byte("k"), []byte("v"), SetOptions{})
	require.NoError(t, err)
	v, err := str.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))
	_, err = NewList(runner, Standalone()).Len(ctx, []byte("k"))
	assert.Equal(t, ErrWrongType, err)
}

func TestStringMultiAndIncr(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	str := NewString(runner, Standalone())

	require.NoError(t, str.MSet(ctx, []KeyValue{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}))
	_, err := NewSet(runner, Standalone()).Add(ctx, []byte("s"), bs("x"))
	require.NoError(t, err)
	values, err := str.MGet(ctx, bs("a", "s", "b", "c"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), values[0])
	assert.Nil(t, values[1])
	assert.Equal(t, []byte("2"), values[2])
	assert.Nil(t, values[3])

	n, err := str.IncrBy(ctx, []byte("a"), 41)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	n, err = str.IncrBy(ctx, []byte("new"), -1)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), n)
	f, err := str.IncrByFloat(ctx, []byte("a"), 0.5)
	require.NoError(t, err)
	assert.Equal(t, 42.5, f)
	_, err = str.IncrBy(ctx, []byte("a"), 1)
	assert.Equal(t, ErrNotInteger, err)

	_, err = str.Set(ctx, []byte("max"), []byte("9223372036854775807"), SetOptions{})
	require.NoError(t, err)
	_, err = str.IncrBy(ctx, []byte("max"), 1)
	assert.Equal(t, ErrOverflow, err)

	l, err := str.StrLen(ctx, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), l)
}

func TestStringExpiration(t *testing.T) {
	withClock(t, 10000)
	runner := newTestRunner()
	ctx := context.Background()
	str := NewString(runner, Standalone())
	_, err := str.Set(ctx, []byte("k"), []byte("v"), SetOptions{ExpireAt: 10500})
	require.NoError(t, err)

	keys := NewKeys(runner, Standalone())
	ttl, err := keys.TTL(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, int64(500), ttl)

	// KEEPTTL
	_, err = str.Set(ctx, []byte("k"), []byte("v2"), SetOptions{KeepTTL: true})
	require.NoError(t, err)
	ttl, err = keys.TTL(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, int64(500), ttl)

	withClock(t, 10500)
	v, err := str.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Nil(t, v)
	ttl, err = keys.TTL(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, int64(-2), ttl)
}
