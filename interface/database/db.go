package database

import (
	"context"

	"github.com/tempbottle/tidis/interface/redis"
)

// CmdLine is alias for [][]byte, represents a command line
type CmdLine = [][]byte

// DB is the interface for redis style storage engine
type DB interface {
	// Exec runs one command line and returns its reply
	Exec(ctx context.Context, client redis.Connection, cmdLine CmdLine) redis.Reply
	// Apply runs one command line and writes the reply to client
	Apply(ctx context.Context, client redis.Connection, cmdLine CmdLine) error
	AfterClientClose(c redis.Connection)
	Close()
}
