package tikv

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/kv"
)

// DataType tags the kind of collection stored under a user key
type DataType byte

// collection types
const (
	TypeString DataType = iota + 1
	TypeHash
	TypeList
	TypeSet
	TypeZSet
)

func (t DataType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeHash:
		return "hash"
	case TypeList:
		return "list"
	case TypeSet:
		return "set"
	case TypeZSet:
		return "zset"
	}
	return "none"
}

const (
	flagTombstone byte = 1 << 0
	metaSize           = 1 + 1 + 8 + 8 + 8 + 8
	// listInitialHead leaves room to push on both ends without wrapping
	listInitialHead uint64 = 1 << 63
)

// Meta is the header of one collection
type Meta struct {
	Type    DataType
	Version uint64
	// Size is the number of live entries of Version
	Size uint64
	// ExpireAt is a unix timestamp in milliseconds, 0 means persistent
	ExpireAt int64
	// Head is the position of the first list element
	Head      uint64
	tombstone bool
}

var nowMs = func() int64 {
	return time.Now().UnixMilli()
}

func (m *Meta) expired(now int64) bool {
	return m.ExpireAt > 0 && m.ExpireAt <= now
}

// live tells whether the record describes an existing collection
func (m *Meta) live() bool {
	return !m.tombstone && !m.expired(nowMs())
}

func (m *Meta) encode() []byte {
	buf := make([]byte, metaSize)
	buf[0] = byte(m.Type)
	if m.tombstone {
		buf[1] |= flagTombstone
	}
	binary.BigEndian.PutUint64(buf[2:], m.Version)
	binary.BigEndian.PutUint64(buf[10:], m.Size)
	binary.BigEndian.PutUint64(buf[18:], uint64(m.ExpireAt))
	binary.BigEndian.PutUint64(buf[26:], m.Head)
	return buf
}

func decodeMeta(raw []byte) (*Meta, error) {
	if len(raw) != metaSize {
		return nil, corrupted("meta record has %d bytes", len(raw))
	}
	return &Meta{
		Type:      DataType(raw[0]),
		tombstone: raw[1]&flagTombstone != 0,
		Version:   binary.BigEndian.Uint64(raw[2:]),
		Size:      binary.BigEndian.Uint64(raw[10:]),
		ExpireAt:  int64(binary.BigEndian.Uint64(raw[18:])),
		Head:      binary.BigEndian.Uint64(raw[26:]),
	}, nil
}

// loadRawMeta returns the stored record including tombstones, nil when absent
func loadRawMeta(txn kv.Txn, key []byte) (*Meta, error) {
	raw, err := txn.Get(MetaKey(key))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	meta, err := decodeMeta(raw)
	if err != nil {
		return nil, errors.WithMessagef(err, "key %q", key)
	}
	return meta, nil
}

// LoadMeta returns the record of a live collection, nil when the key is absent, deleted or expired
func LoadMeta(txn kv.Txn, key []byte) (*Meta, error) {
	meta, err := loadRawMeta(txn, key)
	if err != nil || meta == nil {
		return nil, err
	}
	if !meta.live() {
		return nil, nil
	}
	return meta, nil
}

// loadTyped is LoadMeta plus the type check every type context starts with
func loadTyped(txn kv.Txn, key []byte, t DataType) (*Meta, error) {
	meta, err := LoadMeta(txn, key)
	if err != nil || meta == nil {
		return nil, err
	}
	if meta.Type != t {
		return nil, ErrWrongType
	}
	return meta, nil
}

// CreateOrBump returns the record a write to key should use.
// A live record of the same type is reused. A deleted or expired record gets a new version
// so its leftover entries stay invisible. The returned record is not persisted.
func CreateOrBump(txn kv.Txn, key []byte, t DataType) (*Meta, error) {
	meta, err := loadRawMeta(txn, key)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return &Meta{Type: t, Version: 1, Head: listInitialHead}, nil
	}
	if meta.live() {
		if meta.Type != t {
			return nil, ErrWrongType
		}
		return meta, nil
	}
	return &Meta{Type: t, Version: meta.Version + 1, Head: listInitialHead}, nil
}

func saveMeta(txn kv.Txn, key []byte, meta *Meta) error {
	return txn.Set(MetaKey(key), meta.encode())
}

// TouchSize applies delta to the size and persists the record.
// An empty collection is replaced by a tombstone.
func TouchSize(txn kv.Txn, key []byte, meta *Meta, delta int64) error {
	if delta < 0 && uint64(-delta) > meta.Size {
		return corrupted("size of %q would drop below zero", key)
	}
	meta.Size = uint64(int64(meta.Size) + delta)
	if meta.Size == 0 {
		return tombstone(txn, key, meta)
	}
	return saveMeta(txn, key, meta)
}

func tombstone(txn kv.Txn, key []byte, meta *Meta) error {
	meta.tombstone = true
	meta.Size = 0
	meta.ExpireAt = 0
	return saveMeta(txn, key, meta)
}

// RemoveMeta deletes a live collection. Its entries are left for the sweeper.
func RemoveMeta(txn kv.Txn, key []byte) (bool, error) {
	meta, err := LoadMeta(txn, key)
	if err != nil || meta == nil {
		return false, err
	}
	return true, tombstone(txn, key, meta)
}
