package database

import (
	"context"
	"strings"

	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/redis/protocol"
	"github.com/tempbottle/tidis/tikv"
)

func entriesReply(entries []tikv.ZSetEntry, withScores bool) redis.Reply {
	size := len(entries)
	if withScores {
		size *= 2
	}
	result := make([][]byte, 0, size)
	for _, entry := range entries {
		result = append(result, entry.Member)
		if withScores {
			result = append(result, formatFloat(entry.Score))
		}
	}
	return protocol.MakeMultiBulkReply(result)
}

// zadd accepts ZADD key [NX|XX] score member [score member ...]
type zadd struct {
	base
	entries []tikv.ZSetEntry
	opts    tikv.ZAddOptions
}

func parseZAdd(args [][]byte) Request {
	r := &zadd{base: valid(args[0])}
	i := 1
	for ; i < len(args); i++ {
		flag := strings.ToUpper(string(args[i]))
		if flag == "NX" {
			r.opts.NX = true
		} else if flag == "XX" {
			r.opts.XX = true
		} else {
			break
		}
	}
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 || (r.opts.NX && r.opts.XX) {
		return invalid(args)
	}
	r.entries = make([]tikv.ZSetEntry, 0, len(rest)/2)
	for j := 0; j < len(rest); j += 2 {
		score, ok := parseFloat(rest[j])
		if !ok {
			return invalid(args)
		}
		r.entries = append(r.entries, tikv.ZSetEntry{Member: rest[j+1], Score: score})
	}
	return r
}

func (r *zadd) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewZSet(env.runner, mode).Add(ctx, r.key, r.entries, r.opts)
	if err != nil {
		return errReply(err)
	}
	return intReply(int64(n))
}

type zscore struct {
	base
	member []byte
}

func parseZScore(args [][]byte) Request {
	return &zscore{base: valid(args[0]), member: args[1]}
}

func (r *zscore) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	score, ok, err := tikv.NewZSet(env.runner, mode).Score(ctx, r.key, r.member)
	if err != nil {
		return errReply(err)
	}
	if !ok {
		return protocol.MakeNullBulkReply()
	}
	return protocol.MakeBulkReply(formatFloat(score))
}

type zcard struct {
	base
}

func parseZCard(args [][]byte) Request {
	return &zcard{base: valid(args[0])}
}

func (r *zcard) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewZSet(env.runner, mode).Card(ctx, r.key)
	if err != nil {
		return errReply(err)
	}
	return intReply(n)
}

type zrem struct {
	base
	members [][]byte
}

func parseZRem(args [][]byte) Request {
	return &zrem{base: valid(args[0]), members: args[1:]}
}

func (r *zrem) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewZSet(env.runner, mode).Rem(ctx, r.key, r.members)
	if err != nil {
		return errReply(err)
	}
	return intReply(int64(n))
}

type zincrby struct {
	base
	delta  float64
	member []byte
}

func parseZIncrBy(args [][]byte) Request {
	delta, ok := parseFloat(args[1])
	if !ok {
		return invalid(args)
	}
	return &zincrby{base: valid(args[0]), delta: delta, member: args[2]}
}

func (r *zincrby) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	score, err := tikv.NewZSet(env.runner, mode).IncrBy(ctx, r.key, r.member, r.delta)
	if err != nil {
		return errReply(err)
	}
	return protocol.MakeBulkReply(formatFloat(score))
}

// zrange serves ZRANGE and ZREVRANGE key start stop [WITHSCORES]
type zrange struct {
	base
	start      int64
	stop       int64
	withScores bool
	rev        bool
}

func parseZRange(rev bool) ParseFunc {
	return func(args [][]byte) Request {
		start, ok1 := parseInt(args[1])
		stop, ok2 := parseInt(args[2])
		if !ok1 || !ok2 || len(args) > 4 {
			return invalid(args)
		}
		r := &zrange{base: valid(args[0]), start: start, stop: stop, rev: rev}
		if len(args) == 4 {
			if strings.ToUpper(string(args[3])) != "WITHSCORES" {
				return invalid(args)
			}
			r.withScores = true
		}
		return r
	}
}

func (r *zrange) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	entries, err := tikv.NewZSet(env.runner, mode).Range(ctx, r.key, r.start, r.stop, r.rev)
	if err != nil {
		return errReply(err)
	}
	return entriesReply(entries, r.withScores)
}

// zrangebyscore serves ZRANGEBYSCORE key min max and ZREVRANGEBYSCORE key max min,
// both with [WITHSCORES] [LIMIT offset count]
type zrangebyscore struct {
	base
	min        *tikv.ScoreBorder
	max        *tikv.ScoreBorder
	withScores bool
	offset     int64
	limit      int64
	rev        bool
}

func parseZRangeByScore(rev bool) ParseFunc {
	return func(args [][]byte) Request {
		minArg, maxArg := args[1], args[2]
		if rev {
			minArg, maxArg = maxArg, minArg
		}
		min, err := tikv.ParseScoreBorder(string(minArg))
		if err != nil {
			return invalid(args)
		}
		max, err := tikv.ParseScoreBorder(string(maxArg))
		if err != nil {
			return invalid(args)
		}
		r := &zrangebyscore{base: valid(args[0]), min: min, max: max, limit: -1, rev: rev}
		for i := 3; i < len(args); i++ {
			switch strings.ToUpper(string(args[i])) {
			case "WITHSCORES":
				r.withScores = true
			case "LIMIT":
				if i+2 >= len(args) {
					return invalid(args)
				}
				offset, ok1 := parseInt(args[i+1])
				limit, ok2 := parseInt(args[i+2])
				if !ok1 || !ok2 || offset < 0 {
					return invalid(args)
				}
				r.offset, r.limit = offset, limit
				i += 2
			default:
				return invalid(args)
			}
		}
		return r
	}
}

func (r *zrangebyscore) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	zset := tikv.NewZSet(env.runner, mode)
	if !r.rev {
		entries, err := zset.RangeByScore(ctx, r.key, r.min, r.max, r.offset, r.limit)
		if err != nil {
			return errReply(err)
		}
		return entriesReply(entries, r.withScores)
	}
	entries, err := zset.RangeByScore(ctx, r.key, r.min, r.max, 0, -1)
	if err != nil {
		return errReply(err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if r.offset >= int64(len(entries)) {
		entries = entries[:0]
	} else {
		entries = entries[r.offset:]
	}
	if r.limit >= 0 && r.limit < int64(len(entries)) {
		entries = entries[:r.limit]
	}
	return entriesReply(entries, r.withScores)
}

func init() {
	registerCommand("ZAdd", parseZAdd, -4, flagWrite)
	registerCommand("ZScore", parseZScore, 3, flagReadOnly)
	registerCommand("ZCard", parseZCard, 2, flagReadOnly)
	registerCommand("ZRem", parseZRem, -3, flagWrite)
	registerCommand("ZIncrBy", parseZIncrBy, 4, flagWrite)
	registerCommand("ZRange", parseZRange(false), -4, flagReadOnly)
	registerCommand("ZRevRange", parseZRange(true), -4, flagReadOnly)
	registerCommand("ZRangeByScore", parseZRangeByScore(false), -4, flagReadOnly)
	registerCommand("ZRevRangeByScore", parseZRangeByScore(true), -4, flagReadOnly)
}
