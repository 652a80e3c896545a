package tikv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func members(entries []ZSetEntry) []string {
	result := make([]string, len(entries))
	for i, e := range entries {
		result[i] = string(e.Member)
	}
	return result
}

func entries(pairs ...interface{}) []ZSetEntry {
	var result []ZSetEntry
	for i := 0; i < len(pairs); i += 2 {
		result = append(result, ZSetEntry{Member: []byte(pairs[i].(string)), Score: pairs[i+1].(float64)})
	}
	return result
}

func TestZSetAddAndRange(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	zset := NewZSet(runner, Standalone())
	key := []byte("z")

	added, err := zset.Add(ctx, key, entries("c", 3.0, "a", -1.0, "b", 2.0), ZAddOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	result, err := zset.Range(ctx, key, 0, -1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, members(result))
	assert.Equal(t, -1.0, result[0].Score)

	result, err = zset.Range(ctx, key, 0, 1, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, members(result))

	// moving a member keeps one index entry
	added, err = zset.Add(ctx, key, entries("a", 10.0), ZAddOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	result, err = zset.Range(ctx, key, 0, -1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, members(result))

	added, err = zset.Add(ctx, key, entries("a", 0.0, "d", 4.0), ZAddOptions{NX: true})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	score, ok, err := zset.Score(ctx, key, []byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10.0, score)

	added, err = zset.Add(ctx, key, entries("a", 1.0, "e", 5.0), ZAddOptions{XX: true})
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	_, ok, err = zset.Score(ctx, key, []byte("e"))
	require.NoError(t, err)
	assert.False(t, ok)

	card, err := zset.Card(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(4), card)
}

func TestZSetRangeByScore(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	zset := NewZSet(runner, Standalone())
	key := []byte("z")
	_, err := zset.Add(ctx, key, entries("a", 1.0, "b", 2.0, "c", 3.0, "d", 4.0), ZAddOptions{})
	require.NoError(t, err)

	border := func(s string) *ScoreBorder {
		b, err := ParseScoreBorder(s)
		require.NoError(t, err)
		return b
	}
	cases := []struct {
		min, max      string
		offset, limit int64
		expected      []string
	}{
		{"-inf", "+inf", 0, -1, []string{"a", "b", "c", "d"}},
		{"2", "3", 0, -1, []string{"b", "c"}},
		{"(2", "3", 0, -1, []string{"c"}},
		{"1", "(4", 1, 1, []string{"b"}},
		{"5", "inf", 0, -1, []string{}},
		{"+inf", "-inf", 0, -1, []string{}},
	}
	for _, c := range cases {
		result, err := zset.RangeByScore(ctx, key, border(c.min), border(c.max), c.offset, c.limit)
		require.NoError(t, err)
		assert.Equal(t, c.expected, members(result), "%s %s", c.min, c.max)
	}
	_, err = ParseScoreBorder("abc")
	assert.Equal(t, ErrBadScoreBorder, err)
}

func TestZSetIncrAndRem(t *testing.T) {
	runner := newTestRunner()
	ctx := context.Background()
	zset := NewZSet(runner, Standalone())
	key := []byte("z")

	score, err := zset.IncrBy(ctx, key, []byte("m"), 2.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, score)
	score, err = zset.IncrBy(ctx, key, []byte("m"), -1)
	require.NoError(t, err)
	assert.Equal(t, 1.5, score)

	removed, err := zset.Rem(ctx, key, bs("m", "x"))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	result, err := zset.Range(ctx, key, 0, -1, false)
	require.NoError(t, err)
	assert.Empty(t, result)
	// no index entry of a removed member is left behind in the live version
	assert.Empty(t, dumpFamily(t, runner, key, subZSetScore))
}

func dumpFamily(t *testing.T, runner *Runner, key []byte, sub byte) []string {
	txn := begin(t, runner.Storage())
	defer func() {
		_ = txn.Rollback()
	}()
	meta, err := loadRawMeta(txn, key)
	require.NoError(t, err)
	start, end := prefixRange(DataPrefix(key, meta.Version, sub))
	pairs, err := txn.Scan(start, end, 0)
	require.NoError(t, err)
	var keys []string
	for _, p := range pairs {
		keys = append(keys, string(p.Key))
	}
	return keys
}
