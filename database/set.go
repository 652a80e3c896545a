package database

import (
	"context"

	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/redis/protocol"
	"github.com/tempbottle/tidis/tikv"
)

type smembers struct {
	base
}

func parseSMembers(args [][]byte) Request {
	return &smembers{base: valid(args[0])}
}

func (r *smembers) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	members, err := tikv.NewSet(env.runner, mode).Members(ctx, r.key)
	if err != nil {
		return errReply(err)
	}
	return multiBulkReply(members)
}

// sadd also serves SREM
type sadd struct {
	base
	members [][]byte
	remove  bool
}

func parseSAdd(remove bool) ParseFunc {
	return func(args [][]byte) Request {
		return &sadd{base: valid(args[0]), members: args[1:], remove: remove}
	}
}

func (r *sadd) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	set := tikv.NewSet(env.runner, mode)
	var n int
	var err error
	if r.remove {
		n, err = set.Rem(ctx, r.key, r.members)
	} else {
		n, err = set.Add(ctx, r.key, r.members)
	}
	if err != nil {
		return errReply(err)
	}
	return intReply(int64(n))
}

// sismember also serves SMISMEMBER
type sismember struct {
	base
	members [][]byte
	multi   bool
}

func parseSIsMember(multi bool) ParseFunc {
	return func(args [][]byte) Request {
		if !multi && len(args) != 2 {
			return invalid(args)
		}
		return &sismember{base: valid(args[0]), members: args[1:], multi: multi}
	}
}

func (r *sismember) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	flags, err := tikv.NewSet(env.runner, mode).MIsMember(ctx, r.key, r.members)
	if err != nil {
		return errReply(err)
	}
	if !r.multi {
		return boolReply(flags[0])
	}
	replies := make([]redis.Reply, len(flags))
	for i, flag := range flags {
		replies[i] = boolReply(flag)
	}
	return protocol.MakeMultiRawReply(replies)
}

type scard struct {
	base
}

func parseSCard(args [][]byte) Request {
	return &scard{base: valid(args[0])}
}

func (r *scard) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	n, err := tikv.NewSet(env.runner, mode).Card(ctx, r.key)
	if err != nil {
		return errReply(err)
	}
	return intReply(n)
}

// spop also serves SRANDMEMBER
type spop struct {
	base
	count     int
	withCount bool
	remove    bool
}

func parseSPop(remove bool) ParseFunc {
	return func(args [][]byte) Request {
		r := &spop{base: valid(args[0]), count: 1, remove: remove}
		if len(args) == 1 {
			return r
		}
		if len(args) > 2 {
			return invalid(args)
		}
		count, ok := parseInt(args[1])
		if !ok || (remove && count < 0) {
			return invalid(args)
		}
		r.count, r.withCount = int(count), true
		return r
	}
}

func (r *spop) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	if reply := env.check(r.valid); reply != nil {
		return reply
	}
	set := tikv.NewSet(env.runner, mode)
	var members [][]byte
	var err error
	if r.remove {
		members, err = set.Pop(ctx, r.key, r.count)
	} else {
		members, err = set.RandMember(ctx, r.key, r.count)
	}
	if err != nil {
		return errReply(err)
	}
	if r.withCount {
		return multiBulkReply(members)
	}
	if len(members) == 0 {
		return protocol.MakeNullBulkReply()
	}
	return protocol.MakeBulkReply(members[0])
}

func init() {
	registerCommand("SMembers", parseSMembers, 2, flagReadOnly)
	registerCommand("SAdd", parseSAdd(false), -3, flagWrite)
	registerCommand("SRem", parseSAdd(true), -3, flagWrite)
	registerCommand("SIsMember", parseSIsMember(false), 3, flagReadOnly)
	registerCommand("SMIsMember", parseSIsMember(true), -3, flagReadOnly)
	registerCommand("SCard", parseSCard, 2, flagReadOnly)
	registerCommand("SPop", parseSPop(true), -2, flagWrite)
	registerCommand("SRandMember", parseSPop(false), -2, flagReadOnly)
}
