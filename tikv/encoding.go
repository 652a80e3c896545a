package tikv

import (
	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/lib/codec"
)

// Every storage key starts with one of these bytes
const (
	metaPrefix byte = 'm'
	dataPrefix byte = 'd'
)

// A sub byte follows the version inside a data key and separates entry families
const (
	subHash       byte = 'h'
	subList       byte = 'l'
	subSet        byte = 's'
	subString     byte = 'v'
	subZSetMember byte = 'z'
	subZSetScore  byte = 'r'
)

// MetaKey returns the storage key of the metadata record for key
func MetaKey(key []byte) []byte {
	buf := make([]byte, 0, len(key)+len(key)/8+10)
	buf = append(buf, metaPrefix)
	return codec.EncodeBytes(buf, key)
}

// DecodeMetaKey extracts the user key from a meta key
func DecodeMetaKey(raw []byte) ([]byte, error) {
	if len(raw) == 0 || raw[0] != metaPrefix {
		return nil, corrupted("bad meta key %q", raw)
	}
	rest, key, err := codec.DecodeBytes(raw[1:])
	if err != nil || len(rest) != 0 {
		return nil, corrupted("bad meta key %q", raw)
	}
	return key, nil
}

// metaRange bounds a scan over every meta key
func metaRange() ([]byte, []byte) {
	return []byte{metaPrefix}, []byte{metaPrefix + 1}
}

// keyDataPrefix is shared by the data keys of every version of key
func keyDataPrefix(key []byte) []byte {
	buf := make([]byte, 0, len(key)+len(key)/8+20)
	buf = append(buf, dataPrefix)
	return codec.EncodeBytes(buf, key)
}

// DataPrefix is shared by all entries of one family of (key, version)
func DataPrefix(key []byte, version uint64, sub byte) []byte {
	buf := codec.EncodeUint64(keyDataPrefix(key), version)
	return append(buf, sub)
}

// DataKey returns the storage key of one entry
func DataKey(key []byte, version uint64, sub byte, disc []byte) []byte {
	return append(DataPrefix(key, version, sub), disc...)
}

// DecodeDataKey splits a data key into its parts
func DecodeDataKey(raw []byte) (key []byte, version uint64, sub byte, disc []byte, err error) {
	if len(raw) == 0 || raw[0] != dataPrefix {
		return nil, 0, 0, nil, corrupted("bad data key %q", raw)
	}
	rest, key, err := codec.DecodeBytes(raw[1:])
	if err != nil {
		return nil, 0, 0, nil, corrupted("bad data key %q", raw)
	}
	rest, version, err = codec.DecodeUint64(rest)
	if err != nil || len(rest) == 0 {
		return nil, 0, 0, nil, corrupted("bad data key %q", raw)
	}
	return key, version, rest[0], rest[1:], nil
}

func prefixRange(prefix []byte) ([]byte, []byte) {
	return prefix, kv.PrefixEnd(prefix)
}

func listDisc(pos uint64) []byte {
	return codec.EncodeUint64(nil, pos)
}

func decodeListDisc(disc []byte) (uint64, error) {
	rest, pos, err := codec.DecodeUint64(disc)
	if err != nil || len(rest) != 0 {
		return 0, corrupted("bad list index %x", disc)
	}
	return pos, nil
}

// scoreDisc orders the score index by score first and member second
func scoreDisc(score float64, member []byte) []byte {
	buf := make([]byte, 0, 8+len(member))
	buf = codec.EncodeFloat(buf, score)
	return append(buf, member...)
}

func decodeScoreDisc(disc []byte) (float64, []byte, error) {
	member, score, err := codec.DecodeFloat(disc)
	if err != nil {
		return 0, nil, corrupted("bad score index %x", disc)
	}
	return score, member, nil
}

func encodeScore(score float64) []byte {
	return codec.EncodeFloat(nil, score)
}

func decodeScore(value []byte) (float64, error) {
	rest, score, err := codec.DecodeFloat(value)
	if err != nil || len(rest) != 0 {
		return 0, corrupted("bad score %x", value)
	}
	return score, nil
}
