package database

import (
	"context"
	"fmt"
	"math"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/lib/logger"
	"github.com/tempbottle/tidis/lib/metrics"
	"github.com/tempbottle/tidis/redis/protocol"
	"github.com/tempbottle/tidis/tikv"
)

// Request is one parsed command. Requests are opaque to the storage core except for their key.
type Request interface {
	// Key returns the first key the command touches, nil for keyless commands
	Key() []byte
	// Exec runs the command and converts the outcome into a reply, mode decides who commits
	Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply
}

// Env is what a request needs to run
type Env struct {
	runner *tikv.Runner
	txnAPI bool
}

// NewEnv creates an Env, txnAPI false makes every storage command reply "not supported yet"
func NewEnv(runner *tikv.Runner, txnAPI bool) *Env {
	return &Env{runner: runner, txnAPI: txnAPI}
}

// check returns the reply of a request that must not reach storage, or nil
func (e *Env) check(valid bool) redis.Reply {
	if !valid {
		return protocol.MakeInvalidArgumentsReply()
	}
	if !e.txnAPI {
		return protocol.MakeNotSupportedReply()
	}
	return nil
}

// Apply executes req in its own transaction and writes the reply to conn
func Apply(ctx context.Context, env *Env, conn redis.Connection, req Request) error {
	_, err := apply(ctx, env, conn, req)
	return err
}

func apply(ctx context.Context, env *Env, conn redis.Connection, req Request) (redis.Reply, error) {
	reply := execStandalone(ctx, env, req)
	return reply, writeReply(conn, reply)
}

// execStandalone runs req in its own transaction, a panic becomes an error reply
func execStandalone(ctx context.Context, env *Env, req Request) (reply redis.Reply) {
	defer func() {
		if err := recover(); err != nil {
			logger.Warn(fmt.Sprintf("error occurs: %v\n%s", err, string(debug.Stack())))
			reply = &protocol.UnknownErrReply{}
		}
	}()
	return req.Exec(ctx, env, tikv.Standalone())
}

func writeReply(conn redis.Connection, reply redis.Reply) error {
	logger.Debugf("res, %s -> %s, %q", conn.LocalAddr(), conn.RemoteAddr(), reply.ToBytes())
	return conn.Write(reply.ToBytes())
}

func observe(name string, start time.Time, reply redis.Reply) {
	metrics.ObserveCommand(name, start, reply == nil || protocol.IsErrorReply(reply))
}

// base holds what every request has
type base struct {
	key   []byte
	valid bool
}

func (b *base) Key() []byte {
	return b.key
}

func valid(key []byte) base {
	return base{key: key, valid: true}
}

// invalidRequest is produced for malformed commands, it never touches storage
type invalidRequest struct {
	base
}

func invalid(args [][]byte) Request {
	r := &invalidRequest{}
	if len(args) > 0 {
		r.key = args[0]
	}
	return r
}

func (r *invalidRequest) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	return protocol.MakeInvalidArgumentsReply()
}

// rejectedRequest carries an error found while parsing, it never touches storage
type rejectedRequest struct {
	base
	reply redis.Reply
}

func reject(args [][]byte, reply redis.Reply) Request {
	r := &rejectedRequest{reply: reply}
	if len(args) > 0 {
		r.key = args[0]
	}
	return r
}

func (r *rejectedRequest) Exec(ctx context.Context, env *Env, mode tikv.TxnMode) redis.Reply {
	return r.reply
}

func rejectExpireTime(args [][]byte, cmd string) Request {
	return reject(args, protocol.MakeErrReply("ERR invalid expire time in '"+cmd+"' command"))
}

// mulInt64 returns n*m for m > 0, false when the product leaves int64
func mulInt64(n, m int64) (int64, bool) {
	if n > math.MaxInt64/m || n < math.MinInt64/m {
		return 0, false
	}
	return n * m, true
}

func parseInt(arg []byte) (int64, bool) {
	v, err := strconv.ParseInt(string(arg), 10, 64)
	return v, err == nil
}

func parseFloat(arg []byte) (float64, bool) {
	v, err := strconv.ParseFloat(string(arg), 64)
	return v, err == nil
}

func formatFloat(f float64) []byte {
	return []byte(strconv.FormatFloat(f, 'f', -1, 64))
}

func errReply(err error) redis.Reply {
	return protocol.ErrReplyFromError(err)
}

func bulkReply(value []byte) redis.Reply {
	if value == nil {
		return protocol.MakeNullBulkReply()
	}
	return protocol.MakeBulkReply(value)
}

func multiBulkReply(values [][]byte) redis.Reply {
	if values == nil {
		values = [][]byte{}
	}
	return protocol.MakeMultiBulkReply(values)
}

func intReply(n int64) redis.Reply {
	return protocol.MakeIntReply(n)
}

func boolReply(b bool) redis.Reply {
	if b {
		return protocol.MakeIntReply(1)
	}
	return protocol.MakeIntReply(0)
}
