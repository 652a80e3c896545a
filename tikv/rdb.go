package tikv

import (
	"context"
	"io"
	"strconv"
	"time"

	rdbenc "github.com/hdt3213/rdb/encoder"
	"github.com/hdt3213/rdb/model"
	rdb "github.com/hdt3213/rdb/parser"
	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/lib/logger"
)

type keyMeta struct {
	key  []byte
	meta *Meta
}

// Export writes every live key to w in RDB format, all read from one snapshot
func Export(ctx context.Context, store kv.Storage, w io.Writer) (int, error) {
	txn, err := store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = txn.Rollback()
	}()

	var keys []keyMeta
	var ttlCount uint64
	now := nowMs()
	start, end := metaRange()
	err = forEachMeta(txn, start, end, func(key []byte, meta *Meta) error {
		if meta.tombstone || meta.expired(now) {
			return nil
		}
		if meta.ExpireAt > 0 {
			ttlCount++
		}
		keys = append(keys, keyMeta{key: key, meta: meta})
		return nil
	})
	if err != nil {
		return 0, err
	}

	encoder := rdbenc.NewEncoder(w).EnableCompress()
	if err := encoder.WriteHeader(); err != nil {
		return 0, errors.WithStack(err)
	}
	auxMap := map[string]string{
		"redis-ver":  "6.0.0",
		"redis-bits": "64",
		"ctime":      strconv.FormatInt(time.Now().Unix(), 10),
	}
	for k, v := range auxMap {
		if err := encoder.WriteAux(k, v); err != nil {
			return 0, errors.WithStack(err)
		}
	}
	if len(keys) > 0 {
		if err := encoder.WriteDBHeader(0, uint64(len(keys)), ttlCount); err != nil {
			return 0, errors.WithStack(err)
		}
	}
	for _, km := range keys {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := exportKey(txn, encoder, km.key, km.meta); err != nil {
			return 0, errors.WithMessagef(err, "export %q", km.key)
		}
	}
	if err := encoder.WriteEnd(); err != nil {
		return 0, errors.WithStack(err)
	}
	return len(keys), nil
}

func exportKey(txn kv.Txn, encoder *rdbenc.Encoder, key []byte, meta *Meta) error {
	var opts []interface{}
	if meta.ExpireAt > 0 {
		opts = append(opts, rdbenc.WithTTL(uint64(meta.ExpireAt)))
	}
	name := string(key)
	switch meta.Type {
	case TypeString:
		value, err := txn.Get(stringKey(key, meta))
		if err != nil {
			return err
		}
		return encoder.WriteStringObject(name, value, opts...)
	case TypeHash:
		fields, err := scanCollection(txn, key, meta, hashCodec)
		if err != nil {
			return err
		}
		hash := make(map[string][]byte, len(fields))
		for _, f := range fields {
			hash[string(f.Field)] = f.Value
		}
		return encoder.WriteHashMapObject(name, hash, opts...)
	case TypeList:
		items, err := scanCollection(txn, key, meta, listCodec)
		if err != nil {
			return err
		}
		values := make([][]byte, len(items))
		for i, item := range items {
			values[i] = item.value
		}
		return encoder.WriteListObject(name, values, opts...)
	case TypeSet:
		members, err := scanCollection(txn, key, meta, setCodec)
		if err != nil {
			return err
		}
		return encoder.WriteSetObject(name, members, opts...)
	case TypeZSet:
		entries, err := scanCollection(txn, key, meta, zsetScoreCodec)
		if err != nil {
			return err
		}
		zentries := make([]*model.ZSetEntry, len(entries))
		for i, e := range entries {
			zentries[i] = &model.ZSetEntry{Member: string(e.Member), Score: e.Score}
		}
		return encoder.WriteZSetObject(name, zentries, opts...)
	}
	return corrupted("key %q has unknown type %d", key, meta.Type)
}

// Import loads an RDB stream. Every object replaces the key it names in its own transaction.
func Import(ctx context.Context, runner *Runner, r io.Reader) (int, error) {
	decoder := rdb.NewDecoder(r)
	imported := 0
	var importErr error
	err := decoder.Parse(func(o rdb.RedisObject) bool {
		if importErr = ctx.Err(); importErr != nil {
			return false
		}
		switch o.GetType() {
		case rdb.StringType, rdb.HashType, rdb.ListType, rdb.SetType, rdb.ZSetType:
		default:
			return true
		}
		var expireAt int64
		if expiration := o.GetExpiration(); expiration != nil {
			expireAt = expiration.UnixMilli()
			if expireAt <= nowMs() {
				return true
			}
		}
		key := []byte(o.GetKey())
		importErr = runner.Run(ctx, Standalone(), func(txn kv.Txn) error {
			return importObject(txn, key, o, expireAt)
		})
		if importErr != nil {
			importErr = errors.WithMessagef(importErr, "import %q", key)
			return false
		}
		imported++
		return true
	})
	if err != nil {
		return imported, errors.WithStack(err)
	}
	if importErr != nil {
		return imported, importErr
	}
	logger.Infof("imported %d keys from rdb", imported)
	return imported, nil
}

// freshMeta hides whatever key held before and returns an empty record of type t
func freshMeta(txn kv.Txn, key []byte, t DataType) (*Meta, error) {
	meta, err := loadRawMeta(txn, key)
	if err != nil {
		return nil, err
	}
	version := uint64(1)
	if meta != nil {
		version = meta.Version + 1
	}
	return &Meta{Type: t, Version: version, Head: listInitialHead}, nil
}

func importObject(txn kv.Txn, key []byte, o rdb.RedisObject, expireAt int64) error {
	var meta *Meta
	var err error
	put := func(t DataType, sub byte, disc, value []byte) error {
		if meta == nil {
			if meta, err = freshMeta(txn, key, t); err != nil {
				return err
			}
		}
		meta.Size++
		return txn.Set(DataKey(key, meta.Version, sub, disc), value)
	}
	switch obj := o.(type) {
	case *rdb.StringObject:
		err = put(TypeString, subString, nil, obj.Value)
	case *rdb.HashObject:
		for field, value := range obj.Hash {
			if err = put(TypeHash, subHash, []byte(field), value); err != nil {
				break
			}
		}
	case *rdb.ListObject:
		for i, value := range obj.Values {
			if err = put(TypeList, subList, listDisc(listInitialHead+uint64(i)), value); err != nil {
				break
			}
		}
	case *rdb.SetObject:
		for _, member := range obj.Members {
			if err = put(TypeSet, subSet, member, setMarker); err != nil {
				break
			}
		}
	case *rdb.ZSetObject:
		for _, entry := range obj.Entries {
			member := []byte(entry.Member)
			if err = put(TypeZSet, subZSetMember, member, encodeScore(entry.Score)); err != nil {
				break
			}
			if err = txn.Set(DataKey(key, meta.Version, subZSetScore, scoreDisc(entry.Score, member)), setMarker); err != nil {
				break
			}
		}
	default:
		return nil
	}
	if err != nil || meta == nil {
		return err
	}
	meta.ExpireAt = expireAt
	return saveMeta(txn, key, meta)
}
