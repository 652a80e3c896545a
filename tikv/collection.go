package tikv

import (
	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/kv"
)

// collectionCodec describes how one family of entries is stored
type collectionCodec[E any] struct {
	dataType DataType
	sub      byte
	decode   func(disc, value []byte) (E, error)
}

// HashField is one field/value pair of a hash
type HashField struct {
	Field []byte
	Value []byte
}

// ZSetEntry is one member of a sorted set
type ZSetEntry struct {
	Member []byte
	Score  float64
}

type listItem struct {
	pos   uint64
	value []byte
}

var (
	hashCodec = collectionCodec[HashField]{
		dataType: TypeHash,
		sub:      subHash,
		decode: func(disc, value []byte) (HashField, error) {
			return HashField{Field: disc, Value: value}, nil
		},
	}
	listCodec = collectionCodec[listItem]{
		dataType: TypeList,
		sub:      subList,
		decode: func(disc, value []byte) (listItem, error) {
			pos, err := decodeListDisc(disc)
			return listItem{pos: pos, value: value}, err
		},
	}
	setCodec = collectionCodec[[]byte]{
		dataType: TypeSet,
		sub:      subSet,
		decode: func(disc, value []byte) ([]byte, error) {
			return disc, nil
		},
	}
	zsetCodec = collectionCodec[ZSetEntry]{
		dataType: TypeZSet,
		sub:      subZSetMember,
		decode: func(disc, value []byte) (ZSetEntry, error) {
			score, err := decodeScore(value)
			return ZSetEntry{Member: disc, Score: score}, err
		},
	}
	// zsetScoreCodec reads the score index, which iterates in score order
	zsetScoreCodec = collectionCodec[ZSetEntry]{
		dataType: TypeZSet,
		sub:      subZSetScore,
		decode: func(disc, value []byte) (ZSetEntry, error) {
			score, member, err := decodeScoreDisc(disc)
			return ZSetEntry{Member: member, Score: score}, err
		},
	}
)

// load returns the live record of key, nil when absent and ErrWrongType for another type
func (c collectionCodec[E]) load(txn kv.Txn, key []byte) (*Meta, error) {
	return loadTyped(txn, key, c.dataType)
}

func (c collectionCodec[E]) key(key []byte, meta *Meta, disc []byte) []byte {
	return DataKey(key, meta.Version, c.sub, disc)
}

// scan decodes up to limit entries of the family starting at disc start
func (c collectionCodec[E]) scan(txn kv.Txn, key []byte, meta *Meta, start []byte, limit int) ([]E, error) {
	prefix := DataPrefix(key, meta.Version, c.sub)
	_, end := prefixRange(prefix)
	pairs, err := txn.Scan(append(prefix, start...), end, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]E, 0, len(pairs))
	for _, pair := range pairs {
		entry, err := c.decode(pair.Key[len(prefix):], pair.Value)
		if err != nil {
			return nil, errors.WithMessagef(err, "key %q", key)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// scanCollection returns every live entry of the collection described by meta
func scanCollection[E any](txn kv.Txn, key []byte, meta *Meta, c collectionCodec[E]) ([]E, error) {
	return c.scan(txn, key, meta, nil, 0)
}
