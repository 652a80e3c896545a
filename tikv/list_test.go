package tikv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listRange(t *testing.T, list *List, key string) []string {
	values, err := list.Range(context.Background(), []byte(key), 0, -1)
	require.NoError(t, err)
	return strs(values)
}

func TestListPushPop(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	list := NewList(runner, Standalone())

	n, err := list.Push(ctx, []byte("l"), false, bs("c", "d"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = list.Push(ctx, []byte("l"), true, bs("b", "a"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, []string{"a", "b", "c", "d"}, listRange(t, list, "l"))

	popped, err := list.Pop(ctx, []byte("l"), true, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, strs(popped))
	popped, err = list.Pop(ctx, []byte("l"), false, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, strs(popped))
	assert.Equal(t, []string{"b"}, listRange(t, list, "l"))

	popped, err = list.Pop(ctx, []byte("l"), false, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, strs(popped))
	n, err = list.Len(ctx, []byte("l"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	popped, err = list.Pop(ctx, []byte("l"), true, 1)
	require.NoError(t, err)
	assert.Nil(t, popped)

	n, err = list.PushX(ctx, []byte("l"), true, bs("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestListSetByIndex(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	list := NewList(runner, Standalone())
	key := []byte("l")

	assert.Equal(t, ErrNoSuchKey, list.SetByIndex(ctx, key, 0, []byte("x")))

	_, err := list.Push(ctx, key, false, bs("a", "b", "c"))
	require.NoError(t, err)

	// -1 and size-1 address the same element
	require.NoError(t, list.SetByIndex(ctx, key, -1, []byte("z")))
	assert.Equal(t, []string{"a", "b", "z"}, listRange(t, list, "l"))
	require.NoError(t, list.SetByIndex(ctx, key, 2, []byte("y")))
	assert.Equal(t, []string{"a", "b", "y"}, listRange(t, list, "l"))

	before := dump(t, runner.Storage())
	assert.Equal(t, ErrIndexOutOfRange, list.SetByIndex(ctx, key, 3, []byte("x")))
	assert.Equal(t, ErrIndexOutOfRange, list.SetByIndex(ctx, key, -4, []byte("x")))
	assert.Equal(t, before, dump(t, runner.Storage()))

	// metadata is untouched by an in place replacement
	txn := begin(t, runner.Storage())
	metaBefore, err := LoadMeta(txn, key)
	require.NoError(t, err)
	require.NoError(t, txn.Rollback())
	require.NoError(t, list.SetByIndex(ctx, key, 0, []byte("q")))
	txn = begin(t, runner.Storage())
	metaAfter, err := LoadMeta(txn, key)
	require.NoError(t, err)
	require.NoError(t, txn.Rollback())
	assert.Equal(t, metaBefore, metaAfter)
}

func TestListIndexAndRange(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	list := NewList(runner, Standalone())
	key := []byte("l")
	_, err := list.Push(ctx, key, false, bs("0", "1", "2", "3", "4"))
	require.NoError(t, err)

	v, err := list.Index(ctx, key, -2)
	require.NoError(t, err)
	assert.Equal(t, "3", string(v))
	v, err = list.Index(ctx, key, 5)
	require.NoError(t, err)
	assert.Nil(t, v)

	cases := []struct {
		start, stop int64
		expected    []string
	}{
		{0, -1, []string{"0", "1", "2", "3", "4"}},
		{1, 2, []string{"1", "2"}},
		{-2, 100, []string{"3", "4"}},
		{-100, 0, []string{"0"}},
		{3, 1, []string{}},
		{5, 10, []string{}},
	}
	for _, c := range cases {
		values, err := list.Range(ctx, key, c.start, c.stop)
		require.NoError(t, err)
		assert.Equal(t, c.expected, strs(values), "range %d %d", c.start, c.stop)
	}

	values, err := list.Range(ctx, []byte("missing"), 0, -1)
	require.NoError(t, err)
	assert.NotNil(t, values)
	assert.Empty(t, values)
}

func TestListTrimAndRem(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	list := NewList(runner, Standalone())
	key := []byte("l")
	_, err := list.Push(ctx, key, false, bs("a", "x", "b", "x", "c", "x"))
	require.NoError(t, err)

	removed, err := list.Rem(ctx, key, -1, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, []string{"a", "x", "b", "x", "c"}, listRange(t, list, "l"))

	removed, err = list.Rem(ctx, key, 1, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, []string{"a", "b", "x", "c"}, listRange(t, list, "l"))

	removed, err = list.Rem(ctx, key, 0, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Equal(t, []string{"a", "b", "c"}, listRange(t, list, "l"))

	require.NoError(t, list.Trim(ctx, key, 1, -1))
	assert.Equal(t, []string{"b", "c"}, listRange(t, list, "l"))
	// positions keep working after trimming the head
	_, err = list.Push(ctx, key, true, bs("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, listRange(t, list, "l"))

	require.NoError(t, list.Trim(ctx, key, 5, 10))
	n, err := list.Len(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
