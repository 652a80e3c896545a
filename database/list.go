package database

import (
	"context"

	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/redis/protocol"
	"github.com/tempbottle/tidis/tikv"
)

// push serves LPUSH, RPUSH, LPUSHX and RPUSHX
type push struct {
	base
	values [][]byte
	left   bool
	exists bool
}

func parsePush(left, exists bool) ParseFunc {
	return func(args [][]byte) Request {
		return &push{base: valid(args[0]), values: args[1:], left: left, exists: exists}
	}
}

func (r *push) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	list := tikv.NewList(env.runner, mode)
	var n int64
	var err error
	if r.exists {
		n, err = list.PushX(ctx, r.key, r.left, r.values)
	} else {
		n, err = list.Push(ctx, r.key, r.left, r.values)
	}
	if err != nil {
		return errReply(err)
	}
	return intReply(n)
}

// pop serves LPOP and RPOP, with a count the reply is an array
type pop struct {
	base
	left      bool
	count     int
	withCount bool
}

func parsePop(left bool) ParseFunc {
	return func(args [][]byte) Request {
		r := &pop{base: valid(args[0]), left: left, count: 1}
		if len(args) == 1 {
			return r
		}
		if len(args) > 2 {
			return invalid(args)
		}
		count, ok := parseInt(args[1])
		if !ok || count < 0 {
			return invalid(args)
		}
		r.count, r.withCount = int(count), true
		return r
	}
}

func (r *pop) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	values, err := tikv.NewList(env.runner, mode).Pop(ctx, r.key, r.left, r.count)
	if err != nil {
		return errReply(err)
	}
	if !r.withCount {
		if len(values) == 0 {
			return protocol.MakeNullBulkReply()
		}
		return protocol.MakeBulkReply(values[0])
	}
	if values == nil && r.count > 0 {
		return &protocol.NullMultiBulkReply{}
	}
	return multiBulkReply(values)
}

type llen struct {
	base
}

func parseLLen(args [][]byte) Request {
	return &llen{base: valid(args[0])}
}

func (r *llen) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewList(env.runner, mode).Len(ctx, r.key)
	if err != nil {
		return errReply(err)
	}
	return intReply(n)
}

type lindex struct {
	base
	idx int64
}

func parseLIndex(args [][]byte) Request {
	idx, ok := parseInt(args[1])
	if !ok {
		return invalid(args)
	}
	return &lindex{base: valid(args[0]), idx: idx}
}

func (r *lindex) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	value, err := tikv.NewList(env.runner, mode).Index(ctx, r.key, r.idx)
	if err != nil {
		return errReply(err)
	}
	return bulkReply(value)
}

type lrange struct {
	base
	start int64
	stop  int64
}

func parseLRange(args [][]byte) Request {
	start, ok1 := parseInt(args[1])
	stop, ok2 := parseInt(args[2])
	if !ok1 || !ok2 {
		return invalid(args)
	}
	return &lrange{base: valid(args[0]), start: start, stop: stop}
}

func (r *lrange) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	values, err := tikv.NewList(env.runner, mode).Range(ctx, r.key, r.start, r.stop)
	if err != nil {
		return errReply(err)
	}
	return multiBulkReply(values)
}

type lset struct {
	base
	idx     int64
	element []byte
}

func parseLSet(args [][]byte) Request {
	idx, ok := parseInt(args[1])
	if !ok {
		return invalid(args)
	}
	return &lset{base: valid(args[0]), idx: idx, element: args[2]}
}

func (r *lset) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	err := tikv.NewList(env.runner, mode).SetByIndex(ctx, r.key, r.idx, r.element)
	if err != nil {
		return errReply(err)
	}
	return protocol.MakeOkReply()
}

type ltrim struct {
	base
	start int64
	stop  int64
}

func parseLTrim(args [][]byte) Request {
	start, ok1 := parseInt(args[1])
	stop, ok2 := parseInt(args[2])
	if !ok1 || !ok2 {
		return invalid(args)
	}
	return &ltrim{base: valid(args[0]), start: start, stop: stop}
}

func (r *ltrim) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	if err := tikv.NewList(env.runner, mode).Trim(ctx, r.key, r.start, r.stop); err != nil {
		return errReply(err)
	}
	return protocol.MakeOkReply()
}

type lrem struct {
	base
	count int64
	value []byte
}

func parseLRem(args [][]byte) Request {
	count, ok := parseInt(args[1])
	if !ok {
		return invalid(args)
	}
	return &lrem{base: valid(args[0]), count: count, value: args[2]}
}

func (r *lrem) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewList(env.runner, mode).Rem(ctx, r.key, r.count, r.value)
	if err != nil {
		return errReply(err)
	}
	return intReply(n)
}

func init() {
	registerCommand("LPush", parsePush(true, false), -3, flagWrite)
	registerCommand("RPush", parsePush(false, false), -3, flagWrite)
	registerCommand("LPushX", parsePush(true, true), -3, flagWrite)
	registerCommand("RPushX", parsePush(false, true), -3, flagWrite)
	registerCommand("LPop", parsePop(true), -2, flagWrite)
	registerCommand("RPop", parsePop(false), -2, flagWrite)
	registerCommand("LLen", parseLLen, 2, flagReadOnly)
	registerCommand("LIndex", parseLIndex, 3, flagReadOnly)
	registerCommand("LRange", parseLRange, 4, flagReadOnly)
	registerCommand("LSet", parseLSet, 4, flagWrite)
	registerCommand("LTrim", parseLTrim, 4, flagWrite)
	registerCommand("LRem", parseLRem, 4, flagWrite)
}
