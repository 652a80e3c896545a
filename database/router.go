package database

import (
	"strings"

	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/lib/utils"
	"github.com/tempbottle/tidis/redis/protocol"
)

var cmdTable = make(map[string]*command)

// ParseFunc builds a request from the arguments following the command name.
// The argument count has already been checked against arity.
type ParseFunc func(args [][]byte) Request

type command struct {
	name  string
	parse ParseFunc
	// arity means allowed number of cmdArgs, arity < 0 means len(args) >= -arity.
	// for example: the arity of `get` is 2, `mget` is -2
	arity int
	flags int
	// position of keys in the command line, for COMMAND INFO
	firstKey int
	lastKey  int
	keyStep  int
}

const flagWrite = 0

const (
	flagReadOnly = 1 << iota
	// flagNoTxn commands never touch storage and keep working when the txn api is disabled
	flagNoTxn
)

// registerCommand registers a command served by a request type
func registerCommand(name string, parse ParseFunc, arity int, flags int) *command {
	name = strings.ToLower(name)
	cmd := &command{
		name:     name,
		parse:    parse,
		arity:    arity,
		flags:    flags,
		firstKey: 1,
		lastKey:  1,
		keyStep:  1,
	}
	cmdTable[name] = cmd
	return cmd
}

// keys overrides the key positions reported by COMMAND
func (cmd *command) keys(first, last, step int) *command {
	cmd.firstKey, cmd.lastKey, cmd.keyStep = first, last, step
	return cmd
}

func validateArity(arity int, cmdArgs [][]byte) bool {
	argNum := len(cmdArgs)
	if arity >= 0 {
		return argNum == arity
	}
	return argNum >= -arity
}

func lookupCommand(name []byte) (*command, bool) {
	cmd, ok := cmdTable[strings.ToLower(string(name))]
	return cmd, ok
}

// ParseFrames builds the request of a tokenized command line, the first element is the command name.
// A malformed command yields an invalid request rather than an error, false means the command is unknown.
func ParseFrames(cmdLine [][]byte) (Request, bool) {
	if len(cmdLine) == 0 {
		return nil, false
	}
	cmd, ok := lookupCommand(cmdLine[0])
	if !ok {
		return nil, false
	}
	if !validateArity(cmd.arity, cmdLine) {
		return invalid(cmdLine[1:]), true
	}
	return cmd.parse(cmdLine[1:]), true
}

// ParseArgv is ParseFrames for a flat list of strings, as typed in the command line interface
func ParseArgv(argv []string) (Request, bool) {
	return ParseFrames(utils.ToCmdLine(argv...))
}

func (cmd *command) toDescReply() redis.Reply {
	flags := make([][]byte, 0, 2)
	if cmd.flags&flagReadOnly > 0 {
		flags = append(flags, []byte("readonly"))
	} else {
		flags = append(flags, []byte("write"))
	}
	if cmd.flags&flagNoTxn > 0 {
		flags = append(flags, []byte("fast"))
	}
	return protocol.MakeMultiRawReply([]redis.Reply{
		protocol.MakeBulkReply([]byte(cmd.name)),
		protocol.MakeIntReply(int64(cmd.arity)),
		protocol.MakeMultiBulkReply(flags),
		protocol.MakeIntReply(int64(cmd.firstKey)),
		protocol.MakeIntReply(int64(cmd.lastKey)),
		protocol.MakeIntReply(int64(cmd.keyStep)),
	})
}
