package database

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/interface/database"
	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/kv"
	"github.com/tempbottle/tidis/lib/logger"
	"github.com/tempbottle/tidis/lib/utils"
	"github.com/tempbottle/tidis/redis/protocol"
	"github.com/tempbottle/tidis/tikv"
)

var _ database.DB = (*Server)(nil)

// Options are the switches of a Server
type Options struct {
	// TxnAPI enables the transactional storage commands, when false they reply "not supported yet"
	TxnAPI bool
	// TxnRetry bounds the attempts of a conflicting transaction, 0 uses tikv.DefaultMaxRetry
	TxnRetry int
	// RDBFilename is written by SAVE and read by LoadRDB
	RDBFilename string
}

// Server dispatches redis commands to the transactional core
type Server struct {
	store  kv.Storage
	runner *tikv.Runner
	env    *Env
	opts   Options
}

// NewServer creates a Server on store, the server owns store and closes it
func NewServer(store kv.Storage, opts Options) *Server {
	runner := tikv.NewRunner(store, opts.TxnRetry)
	return &Server{
		store:  store,
		runner: runner,
		env:    NewEnv(runner, opts.TxnAPI),
		opts:   opts,
	}
}

// Runner returns the transaction runner shared by every command
func (server *Server) Runner() *tikv.Runner {
	return server.runner
}

// Exec executes command line from client and returns the reply.
// Commands queued by MULTI are answered with QUEUED.
func (server *Server) Exec(ctx context.Context, c redis.Connection, cmdLine [][]byte) (result redis.Reply) {
	defer func() {
		if err := recover(); err != nil {
			logger.Warn(fmt.Sprintf("error occurs: %v\n%s", err, string(debug.Stack())))
			result = &protocol.UnknownErrReply{}
		}
	}()
	if len(cmdLine) == 0 {
		return protocol.MakeErrReply("ERR empty command")
	}
	cmdName := strings.ToLower(string(cmdLine[0]))
	start := time.Now()
	defer func() {
		observe(metricName(cmdName), start, result)
	}()

	switch cmdName {
	case "multi", "exec", "discard":
		if c == nil {
			return protocol.MakeErrReply("ERR " + cmdName + " requires a connection")
		}
		if len(cmdLine) != 1 {
			return protocol.MakeArgNumErrReply(cmdName)
		}
		switch cmdName {
		case "multi":
			return startMulti(c)
		case "discard":
			return discardMulti(c)
		}
		return server.execMulti(ctx, c)
	case "command":
		return execCommand(cmdLine[1:])
	case "save":
		if c != nil && c.InMultiState() {
			return protocol.MakeErrReply("ERR command 'save' cannot be used in MULTI")
		}
		if _, err := server.Save(ctx); err != nil {
			logger.Errorf("save rdb failed: %v", err)
			return errReply(err)
		}
		return protocol.MakeOkReply()
	}

	if c != nil && c.InMultiState() {
		return enqueueCmd(c, cmdLine)
	}
	req, ok := ParseFrames(cmdLine)
	if !ok {
		return protocol.MakeErrReply("ERR unknown command '" + cmdName + "'")
	}
	return execStandalone(ctx, server.env, req)
}

// standalone returns the request of a command that runs in its own transaction,
// false for transaction control, server commands, unknown commands and anything queued by MULTI
func (server *Server) standalone(c redis.Connection, cmdLine [][]byte) (Request, bool) {
	if len(cmdLine) == 0 || (c != nil && c.InMultiState()) {
		return nil, false
	}
	switch strings.ToLower(string(cmdLine[0])) {
	case "multi", "exec", "discard", "command", "save":
		return nil, false
	}
	return ParseFrames(cmdLine)
}

func metricName(cmdName string) string {
	switch cmdName {
	case "multi", "exec", "discard", "command", "save":
		return cmdName
	}
	if _, ok := cmdTable[cmdName]; ok {
		return cmdName
	}
	return "unknown"
}

// Apply executes command line and writes the reply to c
func (server *Server) Apply(ctx context.Context, c redis.Connection, cmdLine [][]byte) error {
	req, ok := server.standalone(c, cmdLine)
	if !ok {
		return writeReply(c, server.Exec(ctx, c, cmdLine))
	}
	start := time.Now()
	reply, err := apply(ctx, server.env, c, req)
	observe(metricName(strings.ToLower(string(cmdLine[0]))), start, reply)
	return err
}

// ExecArgv runs one command given as plain strings, for the command line interface
func (server *Server) ExecArgv(ctx context.Context, argv []string) redis.Reply {
	return server.Exec(ctx, nil, utils.ToCmdLine(argv...))
}

// AfterClientClose drops the transaction state of c
func (server *Server) AfterClientClose(c redis.Connection) {
	c.SetMultiState(false)
	logger.Debugf("client %s closed", c.ID())
}

// Ping opens and drops a transaction to check the storage is usable
func (server *Server) Ping(ctx context.Context) error {
	txn, err := server.store.Begin(ctx)
	if err != nil {
		return err
	}
	return txn.Rollback()
}

// Close closes the storage
func (server *Server) Close() {
	if err := server.store.Close(); err != nil {
		logger.Errorf("close storage: %v", err)
	}
}

// Save writes every live key into the rdb file
func (server *Server) Save(ctx context.Context) (int, error) {
	filename := server.opts.RDBFilename
	if filename == "" {
		return 0, errors.New("ERR rdb-filename is not configured")
	}
	tmpFile := filename + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := tikv.Export(ctx, server.store, file)
	if closeErr := file.Close(); err == nil {
		err = errors.WithStack(closeErr)
	}
	if err != nil {
		_ = os.Remove(tmpFile)
		return 0, err
	}
	if err := os.Rename(tmpFile, filename); err != nil {
		return 0, errors.WithStack(err)
	}
	logger.Infof("saved %d keys to %s", n, filename)
	return n, nil
}

// LoadRDB imports the rdb file if it exists
func (server *Server) LoadRDB(ctx context.Context) (int, error) {
	filename := server.opts.RDBFilename
	if filename == "" {
		return 0, nil
	}
	file, err := os.Open(filename)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer func() {
		_ = file.Close()
	}()
	return tikv.Import(ctx, server.runner, file)
}

func execCommand(args [][]byte) redis.Reply {
	if len(args) == 0 {
		replies := make([]redis.Reply, 0, len(cmdTable))
		for _, cmd := range cmdTable {
			replies = append(replies, cmd.toDescReply())
		}
		return protocol.MakeMultiRawReply(replies)
	}
	subCommand := strings.ToLower(string(args[0]))
	switch subCommand {
	case "count":
		return protocol.MakeIntReply(int64(len(cmdTable)))
	case "info":
		replies := make([]redis.Reply, 0, len(args)-1)
		for _, name := range args[1:] {
			cmd, ok := lookupCommand(name)
			if !ok {
				replies = append(replies, &protocol.NullMultiBulkReply{})
				continue
			}
			replies = append(replies, cmd.toDescReply())
		}
		return protocol.MakeMultiRawReply(replies)
	}
	return protocol.MakeErrReply("ERR unknown subcommand '" + subCommand + "'")
}
