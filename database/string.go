package database

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/redis/protocol"
	"github.com/tempbottle/tidis/tikv"
)

type get struct {
	base
}

func parseGet(args [][]byte) Request {
	return &get{base: valid(args[0])}
}

func (r *get) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	value, err := tikv.NewString(env.runner, mode).Get(ctx, r.key)
	if err != nil {
		return errReply(err)
	}
	return bulkReply(value)
}

// expiry is a relative ttl or an absolute unix time in milliseconds.
// The deadline is resolved when the command runs, a queued command gets a fresh one.
type expiry struct {
	ttl time.Duration
	at  int64
}

func (e expiry) deadline() int64 {
	if e.at > 0 {
		return e.at
	}
	if e.ttl > 0 {
		return time.Now().Add(e.ttl).UnixMilli()
	}
	return 0
}

// set serves SET, SETNX, SETEX and PSETEX
type set struct {
	base
	value   []byte
	opts    tikv.SetOptions
	expiry  expiry
	intResp bool // SETNX replies 1 or 0
}

// parseSet accepts SET key value [NX|XX] [EX seconds|PX milliseconds|EXAT timestamp|PXAT timestamp|KEEPTTL]
func parseSet(args [][]byte) Request {
	r := &set{base: valid(args[0]), value: args[1]}
	withTTL := false
	for i := 2; i < len(args); i++ {
		arg := strings.ToUpper(string(args[i]))
		switch arg {
		case "NX":
			r.opts.NX = true
		case "XX":
			r.opts.XX = true
		case "KEEPTTL":
			r.opts.KeepTTL = true
		case "EX", "PX", "EXAT", "PXAT":
			if withTTL || i+1 >= len(args) {
				return invalid(args)
			}
			withTTL = true
			i++
			n, ok := parseInt(args[i])
			if !ok {
				return invalid(args)
			}
			var scaled int64
			switch arg {
			case "EX":
				scaled, ok = mulInt64(n, int64(time.Second))
				r.expiry.ttl = time.Duration(scaled)
			case "PX":
				scaled, ok = mulInt64(n, int64(time.Millisecond))
				r.expiry.ttl = time.Duration(scaled)
			case "EXAT":
				scaled, ok = mulInt64(n, 1000)
				r.expiry.at = scaled
			case "PXAT":
				scaled = n
				r.expiry.at = n
			}
			if !ok || scaled <= 0 {
				return rejectExpireTime(args, "set")
			}
		default:
			return invalid(args)
		}
	}
	if (r.opts.NX && r.opts.XX) || (withTTL && r.opts.KeepTTL) {
		return invalid(args)
	}
	return r
}

func parseSetNX(args [][]byte) Request {
	return &set{base: valid(args[0]), value: args[1], opts: tikv.SetOptions{NX: true}, intResp: true}
}

// parseSetEX serves SETEX key seconds value and PSETEX key milliseconds value
func parseSetEX(name string, unit time.Duration) ParseFunc {
	return func(args [][]byte) Request {
		n, ok := parseInt(args[1])
		if !ok {
			return invalid(args)
		}
		ttl, ok := mulInt64(n, int64(unit))
		if !ok || ttl <= 0 {
			return rejectExpireTime(args, name)
		}
		return &set{base: valid(args[0]), value: args[2], expiry: expiry{ttl: time.Duration(ttl)}}
	}
}

func (r *set) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	opts := r.opts
	opts.ExpireAt = r.expiry.deadline()
	ok, err := tikv.NewString(env.runner, mode).Set(ctx, r.key, r.value, opts)
	if err != nil {
		return errReply(err)
	}
	if r.intResp {
		return boolReply(ok)
	}
	if !ok {
		return protocol.MakeNullBulkReply()
	}
	return protocol.MakeOkReply()
}

type getset struct {
	base
	value []byte
}

func parseGetSet(args [][]byte) Request {
	return &getset{base: valid(args[0]), value: args[1]}
}

func (r *getset) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	old, err := tikv.NewString(env.runner, mode).GetSet(ctx, r.key, r.value)
	if err != nil {
		return errReply(err)
	}
	return bulkReply(old)
}

type mget struct {
	base
	keys [][]byte
}

func parseMGet(args [][]byte) Request {
	return &mget{base: valid(args[0]), keys: args}
}

func (r *mget) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	values, err := tikv.NewString(env.runner, mode).MGet(ctx, r.keys)
	if err != nil {
		return errReply(err)
	}
	return protocol.MakeMultiBulkReply(values)
}

type mset struct {
	base
	pairs []tikv.KeyValue
}

func parseMSet(args [][]byte) Request {
	if len(args)%2 != 0 {
		return invalid(args)
	}
	pairs := make([]tikv.KeyValue, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		pairs = append(pairs, tikv.KeyValue{Key: args[i], Value: args[i+1]})
	}
	return &mset{base: valid(args[0]), pairs: pairs}
}

func (r *mset) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	if err := tikv.NewString(env.runner, mode).MSet(ctx, r.pairs); err != nil {
		return errReply(err)
	}
	return protocol.MakeOkReply()
}

type appendRequest struct {
	base
	value []byte
}

func parseAppend(args [][]byte) Request {
	return &appendRequest{base: valid(args[0]), value: args[1]}
}

func (r *appendRequest) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewString(env.runner, mode).Append(ctx, r.key, r.value)
	if err != nil {
		return errReply(err)
	}
	return intReply(n)
}

type strlen struct {
	base
}

func parseStrLen(args [][]byte) Request {
	return &strlen{base: valid(args[0])}
}

func (r *strlen) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewString(env.runner, mode).StrLen(ctx, r.key)
	if err != nil {
		return errReply(err)
	}
	return intReply(n)
}

// incr serves INCR, DECR, INCRBY and DECRBY
type incr struct {
	base
	delta int64
}

// parseIncr builds INCR/DECR when fixed is non zero, otherwise INCRBY/DECRBY scaled by sign
func parseIncr(fixed int64, sign int64) ParseFunc {
	return func(args [][]byte) Request {
		if fixed != 0 {
			return &incr{base: valid(args[0]), delta: fixed}
		}
		delta, ok := parseInt(args[1])
		if !ok || (sign < 0 && delta == math.MinInt64) {
			return invalid(args)
		}
		return &incr{base: valid(args[0]), delta: delta * sign}
	}
}

func (r *incr) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewString(env.runner, mode).IncrBy(ctx, r.key, r.delta)
	if err != nil {
		return errReply(err)
	}
	return intReply(n)
}

type incrbyfloat struct {
	base
	delta float64
}

func parseIncrByFloat(args [][]byte) Request {
	delta, ok := parseFloat(args[1])
	if !ok {
		return invalid(args)
	}
	return &incrbyfloat{base: valid(args[0]), delta: delta}
}

func (r *incrbyfloat) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	f, err := tikv.NewString(env.runner, mode).IncrByFloat(ctx, r.key, r.delta)
	if err != nil {
		return errReply(err)
	}
	return protocol.MakeBulkReply(formatFloat(f))
}

func init() {
	registerCommand("Get", parseGet, 2, flagReadOnly)
	registerCommand("Set", parseSet, -3, flagWrite)
	registerCommand("SetNX", parseSetNX, 3, flagWrite)
	registerCommand("SetEX", parseSetEX("setex", time.Second), 4, flagWrite)
	registerCommand("PSetEX", parseSetEX("psetex", time.Millisecond), 4, flagWrite)
	registerCommand("GetSet", parseGetSet, 3, flagWrite)
	registerCommand("MGet", parseMGet, -2, flagReadOnly).keys(1, -1, 1)
	registerCommand("MSet", parseMSet, -3, flagWrite).keys(1, -1, 2)
	registerCommand("Append", parseAppend, 3, flagWrite)
	registerCommand("StrLen", parseStrLen, 2, flagReadOnly)
	registerCommand("Incr", parseIncr(1, 1), 2, flagWrite)
	registerCommand("Decr", parseIncr(-1, 1), 2, flagWrite)
	registerCommand("IncrBy", parseIncr(0, 1), 3, flagWrite)
	registerCommand("DecrBy", parseIncr(0, -1), 3, flagWrite)
	registerCommand("IncrByFloat", parseIncrByFloat, 3, flagWrite)
}
