package protocol

import (
	"strings"

	"github.com/pkg/errors"
)

// UnknownErrReply represents UnknownErr
type UnknownErrReply struct{}

var unknownErrBytes = []byte("-ERR unknown\r\n")

// ToBytes marshals redis.Reply
func (r *UnknownErrReply) ToBytes() []byte {
	return unknownErrBytes
}

func (r *UnknownErrReply) Error() string {
	return "ERR unknown"
}

// ArgNumErrReply represents wrong number of arguments for command
type ArgNumErrReply struct {
	Cmd string
}

// ToBytes marshals redis.Reply
func (r *ArgNumErrReply) ToBytes() []byte {
	return []byte("-" + r.Error() + CRLF)
}

func (r *ArgNumErrReply) Error() string {
	return "ERR wrong number of arguments for '" + r.Cmd + "' command"
}

// MakeArgNumErrReply represents wrong number of arguments for command
func MakeArgNumErrReply(cmd string) *ArgNumErrReply {
	return &ArgNumErrReply{
		Cmd: cmd,
	}
}

// SyntaxErrReply represents meeting unexpected arguments
type SyntaxErrReply struct{}

var syntaxErrBytes = []byte("-ERR syntax error\r\n")
var theSyntaxErrReply = &SyntaxErrReply{}

// MakeSyntaxErrReply creates syntax error
func MakeSyntaxErrReply() *SyntaxErrReply {
	return theSyntaxErrReply
}

// ToBytes marshals redis.Reply
func (r *SyntaxErrReply) ToBytes() []byte {
	return syntaxErrBytes
}

func (r *SyntaxErrReply) Error() string {
	return "ERR syntax error"
}

// InvalidArgumentsReply is the reply of a command whose arguments failed to parse
type InvalidArgumentsReply struct{}

var invalidArgumentsBytes = []byte("-ERR invalid arguments\r\n")

// MakeInvalidArgumentsReply creates InvalidArgumentsReply
func MakeInvalidArgumentsReply() *InvalidArgumentsReply {
	return &InvalidArgumentsReply{}
}

// ToBytes marshals redis.Reply
func (r *InvalidArgumentsReply) ToBytes() []byte {
	return invalidArgumentsBytes
}

func (r *InvalidArgumentsReply) Error() string {
	return "ERR invalid arguments"
}

// NotSupportedReply is returned by every data command while the transactional api is disabled
type NotSupportedReply struct{}

var notSupportedBytes = []byte("-ERR not supported yet\r\n")

// MakeNotSupportedReply creates NotSupportedReply
func MakeNotSupportedReply() *NotSupportedReply {
	return &NotSupportedReply{}
}

// ToBytes marshals redis.Reply
func (r *NotSupportedReply) ToBytes() []byte {
	return notSupportedBytes
}

func (r *NotSupportedReply) Error() string {
	return "ERR not supported yet"
}

// WrongTypeErrReply represents operation against a key holding the wrong kind of value
type WrongTypeErrReply struct{}

var wrongTypeErrBytes = []byte("-WRONGTYPE Operation against a key holding the wrong kind of value\r\n")

// ToBytes marshals redis.Reply
func (r *WrongTypeErrReply) ToBytes() []byte {
	return wrongTypeErrBytes
}

func (r *WrongTypeErrReply) Error() string {
	return "WRONGTYPE Operation against a key holding the wrong kind of value"
}

// ProtocolErrReply represents meeting unexpected byte during parse requests
type ProtocolErrReply struct {
	Msg string
}

// ToBytes marshals redis.Reply
func (r *ProtocolErrReply) ToBytes() []byte {
	return []byte("-" + r.Error() + CRLF)
}

func (r *ProtocolErrReply) Error() string {
	return "ERR Protocol error: '" + r.Msg + "'"
}

var errorCodes = []string{"ERR ", "WRONGTYPE ", "EXECABORT "}

// ErrReplyFromError converts an error returned by the storage layer into an error reply.
// Messages which already carry a redis error code are kept, others get the ERR prefix.
func ErrReplyFromError(err error) ErrorReply {
	if reply, ok := err.(ErrorReply); ok {
		return reply
	}
	msg := errors.Cause(err).Error()
	for _, code := range errorCodes {
		if strings.HasPrefix(msg, code) {
			return MakeErrReply(msg)
		}
	}
	return MakeErrReply("ERR " + msg)
}
