package database

import (
	"context"
	"strings"
	"time"

	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/redis/protocol"
	"github.com/tempbottle/tidis/tikv"
)

// del also serves EXISTS
type del struct {
	base
	keys   [][]byte
	exists bool
}

func parseDel(exists bool) ParseFunc {
	return func(args [][]byte) Request {
		return &del{base: valid(args[0]), keys: args, exists: exists}
	}
}

func (r *del) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	keys := tikv.NewKeys(env.runner, mode)
	var n int
	var err error
	if r.exists {
		n, err = keys.Exists(ctx, r.keys)
	} else {
		n, err = keys.Del(ctx, r.keys)
	}
	if err != nil {
		return errReply(err)
	}
	return intReply(int64(n))
}

type typeRequest struct {
	base
}

func parseType(args [][]byte) Request {
	return &typeRequest{base: valid(args[0])}
}

func (r *typeRequest) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	name, err := tikv.NewKeys(env.runner, mode).Type(ctx, r.key)
	if err != nil {
		return errReply(err)
	}
	return protocol.MakeStatusReply(name)
}

// expire serves EXPIRE, PEXPIRE, EXPIREAT and PEXPIREAT
type expire struct {
	base
	expiry expiry
}

// parseExpire reads the argument in unit, absolute tells whether it is a unix timestamp
func parseExpire(name string, unit time.Duration, absolute bool) ParseFunc {
	return func(args [][]byte) Request {
		n, ok := parseInt(args[1])
		if !ok {
			return invalid(args)
		}
		r := &expire{base: valid(args[0])}
		if absolute {
			at, ok := mulInt64(n, int64(unit/time.Millisecond))
			if !ok {
				return rejectExpireTime(args, name)
			}
			// a timestamp at or before the epoch deletes the key
			r.expiry.at = max(at, 1)
		} else {
			ttl, ok := mulInt64(n, int64(unit))
			if !ok {
				return rejectExpireTime(args, name)
			}
			r.expiry.ttl = time.Duration(ttl)
		}
		return r
	}
}

func (r *expire) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	at := r.expiry.at
	if at == 0 {
		at = time.Now().Add(r.expiry.ttl).UnixMilli()
	}
	ok, err := tikv.NewKeys(env.runner, mode).ExpireAt(ctx, r.key, at)
	if err != nil {
		return errReply(err)
	}
	return boolReply(ok)
}

// ttl serves TTL and PTTL
type ttl struct {
	base
	millis bool
}

func parseTTL(millis bool) ParseFunc {
	return func(args [][]byte) Request {
		return &ttl{base: valid(args[0]), millis: millis}
	}
}

func (r *ttl) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	ms, err := tikv.NewKeys(env.runner, mode).TTL(ctx, r.key)
	if err != nil {
		return errReply(err)
	}
	if ms < 0 || r.millis {
		return intReply(ms)
	}
	return intReply((ms + 500) / 1000)
}

type persist struct {
	base
}

func parsePersist(args [][]byte) Request {
	return &persist{base: valid(args[0])}
}

func (r *persist) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	ok, err := tikv.NewKeys(env.runner, mode).Persist(ctx, r.key)
	if err != nil {
		return errReply(err)
	}
	return boolReply(ok)
}

type keysRequest struct {
	base
	pattern string
}

func parseKeys(args [][]byte) Request {
	return &keysRequest{base: base{valid: true}, pattern: string(args[0])}
}

func (r *keysRequest) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	keys, err := tikv.NewKeys(env.runner, mode).Keys(ctx, r.pattern)
	if err != nil {
		return errReply(err)
	}
	return multiBulkReply(keys)
}

type dbsize struct {
	base
}

func parseDBSize(args [][]byte) Request {
	return &dbsize{base: base{valid: true}}
}

func (r *dbsize) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewKeys(env.runner, mode).DBSize(ctx)
	if err != nil {
		return errReply(err)
	}
	return intReply(n)
}

type flushall struct {
	base
}

func parseFlushAll(args [][]byte) Request {
	if len(args) > 1 {
		return invalid(nil)
	}
	// ASYNC and SYNC behave the same
	if len(args) == 1 && !strings.EqualFold(string(args[0]), "async") && !strings.EqualFold(string(args[0]), "sync") {
		return invalid(nil)
	}
	return &flushall{base: base{valid: true}}
}

func (r *flushall) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	if err := tikv.NewKeys(env.runner, mode).FlushAll(ctx); err != nil {
		return errReply(err)
	}
	return protocol.MakeOkReply()
}

type ping struct {
	base
	message []byte
}

func parsePing(args [][]byte) Request {
	r := &ping{base: base{valid: true}}
	if len(args) == 1 {
		r.message = args[0]
	}
	if len(args) > 1 {
		return invalid(nil)
	}
	return r
}

// Exec answers without touching storage, PING works when the txn api is disabled
func (r *ping) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if r.message != nil {
		return protocol.MakeBulkReply(r.message)
	}
	return &protocol.PongReply{}
}

func init() {
	registerCommand("Del", parseDel(false), -2, flagWrite).keys(1, -1, 1)
	registerCommand("Exists", parseDel(true), -2, flagReadOnly).keys(1, -1, 1)
	registerCommand("Type", parseType, 2, flagReadOnly)
	registerCommand("Expire", parseExpire("expire", time.Second, false), 3, flagWrite)
	registerCommand("PExpire", parseExpire("pexpire", time.Millisecond, false), 3, flagWrite)
	registerCommand("ExpireAt", parseExpire("expireat", time.Second, true), 3, flagWrite)
	registerCommand("PExpireAt", parseExpire("pexpireat", time.Millisecond, true), 3, flagWrite)
	registerCommand("TTL", parseTTL(false), 2, flagReadOnly)
	registerCommand("PTTL", parseTTL(true), 2, flagReadOnly)
	registerCommand("Persist", parsePersist, 2, flagWrite)
	registerCommand("Keys", parseKeys, 2, flagReadOnly).keys(0, 0, 0)
	registerCommand("DBSize", parseDBSize, 1, flagReadOnly).keys(0, 0, 0)
	registerCommand("FlushAll", parseFlushAll, -1, flagWrite).keys(0, 0, 0)
	registerCommand("Ping", parsePing, -1, flagReadOnly|flagNoTxn).keys(0, 0, 0)
}
