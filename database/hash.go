package database

import (
	"context"

	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/redis/protocol"
	"github.com/tempbottle/tidis/tikv"
)

// hgetall also serves HKEYS and HVALS
type hgetall struct {
	base
	fields bool
	values bool
}

func parseHGetAll(fields, values bool) ParseFunc {
	return func(args [][]byte) Request {
		return &hgetall{base: valid(args[0]), fields: fields, values: values}
	}
}

func (r *hgetall) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	result, err := tikv.NewHash(env.runner, mode).GetAll(ctx, r.key, r.fields, r.values)
	if err != nil {
		return errReply(err)
	}
	return multiBulkReply(result)
}

type hget struct {
	base
	field []byte
}

func parseHGet(args [][]byte) Request {
	return &hget{base: valid(args[0]), field: args[1]}
}

func (r *hget) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	value, err := tikv.NewHash(env.runner, mode).Get(ctx, r.key, r.field)
	if err != nil {
		return errReply(err)
	}
	return bulkReply(value)
}

type hmget struct {
	base
	fields [][]byte
}

func parseHMGet(args [][]byte) Request {
	return &hmget{base: valid(args[0]), fields: args[1:]}
}

func (r *hmget) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	values, err := tikv.NewHash(env.runner, mode).MGet(ctx, r.key, r.fields)
	if err != nil {
		return errReply(err)
	}
	return multiBulkReply(values)
}

// hset also serves HMSET, which replies OK instead of the number of new fields
type hset struct {
	base
	pairs []tikv.HashField
	ok    bool
}

func parseHSet(ok bool) ParseFunc {
	return func(args [][]byte) Request {
		if len(args)%2 != 1 {
			return invalid(args)
		}
		pairs := make([]tikv.HashField, 0, len(args)/2)
		for i := 1; i < len(args); i += 2 {
			pairs = append(pairs, tikv.HashField{Field: args[i], Value: args[i+1]})
		}
		return &hset{base: valid(args[0]), pairs: pairs, ok: ok}
	}
}

func (r *hset) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	added, err := tikv.NewHash(env.runner, mode).Set(ctx, r.key, r.pairs)
	if err != nil {
		return errReply(err)
	}
	if r.ok {
		return protocol.MakeOkReply()
	}
	return intReply(int64(added))
}

type hsetnx struct {
	base
	field []byte
	value []byte
}

func parseHSetNX(args [][]byte) Request {
	return &hsetnx{base: valid(args[0]), field: args[1], value: args[2]}
}

func (r *hsetnx) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	ok, err := tikv.NewHash(env.runner, mode).SetNX(ctx, r.key, r.field, r.value)
	if err != nil {
		return errReply(err)
	}
	return boolReply(ok)
}

type hdel struct {
	base
	fields [][]byte
}

func parseHDel(args [][]byte) Request {
	return &hdel{base: valid(args[0]), fields: args[1:]}
}

func (r *hdel) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	deleted, err := tikv.NewHash(env.runner, mode).Del(ctx, r.key, r.fields)
	if err != nil {
		return errReply(err)
	}
	return intReply(int64(deleted))
}

type hexists struct {
	base
	field []byte
}

func parseHExists(args [][]byte) Request {
	return &hexists{base: valid(args[0]), field: args[1]}
}

func (r *hexists) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	ok, err := tikv.NewHash(env.runner, mode).Exists(ctx, r.key, r.field)
	if err != nil {
		return errReply(err)
	}
	return boolReply(ok)
}

type hlen struct {
	base
}

func parseHLen(args [][]byte) Request {
	return &hlen{base: valid(args[0])}
}

func (r *hlen) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewHash(env.runner, mode).Len(ctx, r.key)
	if err != nil {
		return errReply(err)
	}
	return intReply(n)
}

type hstrlen struct {
	base
	field []byte
}

func parseHStrLen(args [][]byte) Request {
	return &hstrlen{base: valid(args[0]), field: args[1]}
}

func (r *hstrlen) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewHash(env.runner, mode).StrLen(ctx, r.key, r.field)
	if err != nil {
		return errReply(err)
	}
	return intReply(n)
}

type hincrby struct {
	base
	field []byte
	delta int64
}

func parseHIncrBy(args [][]byte) Request {
	delta, ok := parseInt(args[2])
	if !ok {
		return invalid(args)
	}
	return &hincrby{base: valid(args[0]), field: args[1], delta: delta}
}

func (r *hincrby) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewHash(env.runner, mode).IncrBy(ctx, r.key, r.field, r.delta)
	if err != nil {
		return errReply(err)
	}
	return intReply(n)
}

type hincrbyfloat struct {
	base
	field []byte
	delta float64
}

func parseHIncrByFloat(args [][]byte) Request {
	delta, ok := parseFloat(args[2])
	if !ok {
		return invalid(args)
	}
	return &hincrbyfloat{base: valid(args[0]), field: args[1], delta: delta}
}

func (r *hincrbyfloat) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	f, err := tikv.NewHash(env.runner, mode).IncrByFloat(ctx, r.key, r.field, r.delta)
	if err != nil {
		return errReply(err)
	}
	return protocol.MakeBulkReply(formatFloat(f))
}

func init() {
	registerCommand("HGetAll", parseHGetAll(true, true), 2, flagReadOnly)
	registerCommand("HKeys", parseHGetAll(true, false), 2, flagReadOnly)
	registerCommand("HVals", parseHGetAll(false, true), 2, flagReadOnly)
	registerCommand("HGet", parseHGet, 3, flagReadOnly)
	registerCommand("HMGet", parseHMGet, -3, flagReadOnly)
	registerCommand("HSet", parseHSet(false), -4, flagWrite)
	registerCommand("HMSet", parseHSet(true), -4, flagWrite)
	registerCommand("HSetNX", parseHSetNX, 4, flagWrite)
	registerCommand("HDel", parseHDel, -3, flagWrite)
	registerCommand("HExists", parseHExists, 3, flagReadOnly)
	registerCommand("HLen", parseHLen, 2, flagReadOnly)
	registerCommand("HStrLen", parseHStrLen, 3, flagReadOnly)
	registerCommand("HIncrBy", parseHIncrBy, 4, flagWrite)
	registerCommand("HIncrByFloat", parseHIncrByFloat, 4, flagWrite)
}
