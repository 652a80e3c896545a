package database

import (
	"context"
	"strings"

	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/lib/logger"
	"github.com/tempbottle/tidis/lib/metrics"
	"github.com/tempbottle/tidis/redis/protocol"
	"github.com/tempbottle/tidis/tikv"
)

func startMulti(conn redis.Connection) redis.Reply {
	if conn.InMultiState() {
		return protocol.MakeErrReply("ERR MULTI calls can not be nested")
	}
	conn.SetMultiState(true)
	return protocol.MakeOkReply()
}

func discardMulti(conn redis.Connection) redis.Reply {
	if !conn.InMultiState() {
		return protocol.MakeErrReply("ERR DISCARD without MULTI")
	}
	conn.SetMultiState(false)
	return protocol.MakeOkReply()
}

// enqueueCmd checks the command name and arity, a failure aborts the whole transaction at EXEC
func enqueueCmd(conn redis.Connection, cmdLine [][]byte) redis.Reply {
	cmdName := strings.ToLower(string(cmdLine[0]))
	cmd, ok := lookupCommand(cmdLine[0])
	if !ok {
		err := protocol.MakeErrReply("ERR unknown command '" + cmdName + "'")
		conn.AddTxError(err)
		return err
	}
	if !validateArity(cmd.arity, cmdLine) {
		err := protocol.MakeArgNumErrReply(cmdName)
		conn.AddTxError(err)
		return err
	}
	conn.EnqueueCmd(cmdLine)
	return protocol.MakeQueuedReply()
}

func (server *Server) execMulti(ctx context.Context, conn redis.Connection) redis.Reply {
	if !conn.InMultiState() {
		return protocol.MakeErrReply("ERR EXEC without MULTI")
	}
	defer conn.SetMultiState(false)
	if len(conn.GetTxErrors()) > 0 {
		return protocol.MakeErrReply("EXECABORT Transaction discarded because of previous errors.")
	}
	return server.ExecMulti(ctx, conn.GetQueuedCmdLine())
}

// ExecMulti runs command lines atomically in one shared transaction.
// A command failing with a user error replies the error in its slot and the others still commit.
// A conflict on commit runs every command again in a new transaction.
func (server *Server) ExecMulti(ctx context.Context, cmdLines [][][]byte) redis.Reply {
	if !server.env.txnAPI {
		return protocol.MakeNotSupportedReply()
	}
	reqs := make([]Request, len(cmdLines))
	for i, cmdLine := range cmdLines {
		req, ok := ParseFrames(cmdLine)
		if !ok {
			return protocol.MakeErrReply("ERR unknown command '" + strings.ToLower(string(cmdLine[0])) + "'")
		}
		reqs[i] = req
	}
	maxRetry := server.runner.MaxRetry()
	for attempt := 1; attempt <= maxRetry; attempt++ {
		results, err := server.execQueued(ctx, reqs)
		if err == nil {
			metrics.TxnCommits.Inc()
			return protocol.MakeMultiRawReply(results)
		}
		if !kv.IsConflict(err) {
			return errReply(err)
		}
		metrics.TxnConflicts.Inc()
		logger.Debugf("exec conflict, attempt %d/%d: %v", attempt, maxRetry, err)
	}
	metrics.TxnRetryExhausted.Inc()
	return errReply(tikv.ErrTxnConflict)
}

func (server *Server) execQueued(ctx context.Context, reqs []Request) ([]redis.Reply, error) {
	shared, err := server.runner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = shared.Rollback()
		}
	}()
	mode := tikv.Borrowed(shared)
	results := make([]redis.Reply, len(reqs))
	for i, req := range reqs {
		results[i] = req.Exec(ctx, server.env, mode)
	}
	if err := shared.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true
	return results, nil
}
