package tikv

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tempbottle/tidis/kv"
)

func TestMetaKeyRoundTrip(t *testing.T) {
	for _, key := range []string{"", "a", "hello world", "12345678", "\x00\xff\x00"} {
		decoded, err := DecodeMetaKey(MetaKey([]byte(key)))
		require.NoError(t, err)
		assert.Equal(t, key, string(decoded))
	}
}

func TestDataKeyRoundTrip(t *testing.T) {
	raw := DataKey([]byte("user:1"), 7, subHash, []byte("name"))
	key, version, sub, disc, err := DecodeDataKey(raw)
	require.NoError(t, err)
	assert.Equal(t, "user:1", string(key))
	assert.Equal(t, uint64(7), version)
	assert.Equal(t, subHash, sub)
	assert.Equal(t, "name", string(disc))
}

func TestDecodeMalformedKeys(t *testing.T) {
	_, err := DecodeMetaKey([]byte("xabc"))
	assert.Equal(t, ErrCorrupted, errors.Cause(err))
	_, err = DecodeMetaKey(append(MetaKey([]byte("a")), 'z'))
	assert.Equal(t, ErrCorrupted, errors.Cause(err))
	_, _, _, _, err = DecodeDataKey(MetaKey([]byte("a")))
	assert.Equal(t, ErrCorrupted, errors.Cause(err))
	_, _, _, _, err = DecodeDataKey(keyDataPrefix([]byte("a")))
	assert.Equal(t, ErrCorrupted, errors.Cause(err))
}

func TestDataKeysDoNotCollide(t *testing.T) {
	// key "a" field "bc" against key "ab" field "c"
	k1 := DataKey([]byte("a"), 1, subHash, []byte("bc"))
	k2 := DataKey([]byte("ab"), 1, subHash, []byte("c"))
	assert.NotEqual(t, k1, k2)
	// one family never falls into the prefix range of another key
	start, end := prefixRange(DataPrefix([]byte("a"), 1, subHash))
	assert.False(t, bytes.Compare(k2, start) >= 0 && bytes.Compare(k2, end) < 0)
	assert.True(t, bytes.Compare(k1, start) >= 0 && bytes.Compare(k1, end) < 0)
	// versions split the space too
	start, end = prefixRange(DataPrefix([]byte("a"), 2, subHash))
	assert.False(t, bytes.Compare(k1, start) >= 0 && bytes.Compare(k1, end) < 0)
}

func TestOrderedDiscriminators(t *testing.T) {
	prev := DataKey([]byte("l"), 1, subList, listDisc(listInitialHead-5))
	for _, pos := range []uint64{listInitialHead - 1, listInitialHead, listInitialHead + 1, listInitialHead + 1000} {
		cur := DataKey([]byte("l"), 1, subList, listDisc(pos))
		assert.Equal(t, -1, bytes.Compare(prev, cur))
		prev = cur
	}
	scores := []float64{-100, -1.5, 0, 0.25, 3, 1e9}
	prev = scoreDisc(scores[0], []byte("z"))
	for _, score := range scores[1:] {
		cur := scoreDisc(score, []byte("a"))
		assert.Equal(t, -1, bytes.Compare(prev, cur))
		prev = cur
	}
	score, member, err := decodeScoreDisc(scoreDisc(-2.5, []byte("m")))
	require.NoError(t, err)
	assert.Equal(t, -2.5, score)
	assert.Equal(t, "m", string(member))
}

func TestMetaRangeCoversMetaKeysOnly(t *testing.T) {
	start, end := metaRange()
	meta := MetaKey([]byte("\xff\xff"))
	data := DataKey([]byte("a"), 1, subSet, nil)
	assert.True(t, bytes.Compare(meta, start) >= 0 && bytes.Compare(meta, end) < 0)
	assert.False(t, bytes.Compare(data, start) >= 0 && bytes.Compare(data, end) < 0)
	assert.Nil(t, kv.PrefixEnd([]byte{0xff}))
}
