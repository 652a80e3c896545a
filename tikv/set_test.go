package tikv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetMembersScenario(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	set := NewSet(runner, Standalone())
	key := []byte("s1")

	members, err := set.Members(ctx, key)
	require.NoError(t, err)
	assert.NotNil(t, members)
	assert.Empty(t, members)

	for _, m := range []string{"c", "a", "b"} {
		_, err := set.Add(ctx, key, bs(m))
		require.NoError(t, err)
	}
	members, err = set.Members(ctx, key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, strs(members))
}

func TestSetOperations(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	set := NewSet(runner, Standalone())
	key := []byte("s")

	added, err := set.Add(ctx, key, bs("a", "b", "a"))
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	added, err = set.Add(ctx, key, bs("b", "c"))
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	card, err := set.Card(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(3), card)

	flags, err := set.MIsMember(ctx, key, bs("a", "z", "c"))
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true}, flags)
	ok, err := set.IsMember(ctx, []byte("missing"), []byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := set.Rem(ctx, key, bs("a", "z"))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	random, err := set.RandMember(ctx, key, 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, strs(random))
	random, err = set.RandMember(ctx, key, -5)
	require.NoError(t, err)
	assert.Len(t, random, 5)

	popped, err := set.Pop(ctx, key, 1)
	require.NoError(t, err)
	require.Len(t, popped, 1)
	rest, err := set.Members(ctx, key)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
	assert.NotEqual(t, string(popped[0]), string(rest[0]))

	popped, err = set.Pop(ctx, key, 10)
	require.NoError(t, err)
	assert.Len(t, popped, 1)
	card, err = set.Card(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), card)
}
