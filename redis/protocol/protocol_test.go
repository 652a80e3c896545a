package protocol

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/interface/redis"
)

func TestToBytes(t *testing.T) {
	cases := []struct {
		reply    redis.Reply
		expected string
	}{
		{MakeBulkReply([]byte("abc")), "$3\r\nabc\r\n"},
		{MakeBulkReply([]byte{}), "$0\r\n\r\n"},
		{MakeBulkReply(nil), "$-1\r\n"},
		{MakeMultiBulkReply([][]byte{[]byte("a"), nil}), "*2\r\n$1\r\na\r\n$-1\r\n"},
		{MakeEmptyMultiBulkReply(), "*0\r\n"},
		{MakeIntReply(-3), ":-3\r\n"},
		{MakeOkReply(), "+OK\r\n"},
		{MakeQueuedReply(), "+QUEUED\r\n"},
		{MakeMultiRawReply([]redis.Reply{MakeIntReply(1), MakeNullBulkReply()}), "*2\r\n:1\r\n$-1\r\n"},
		{MakeInvalidArgumentsReply(), "-ERR invalid arguments\r\n"},
		{MakeNotSupportedReply(), "-ERR not supported yet\r\n"},
		{MakeArgNumErrReply("get"), "-ERR wrong number of arguments for 'get' command\r\n"},
	}
	for _, c := range cases {
		if actual := string(c.reply.ToBytes()); actual != c.expected {
			t.Errorf("expected %q, actually %q", c.expected, actual)
		}
	}
}

func TestErrReplyFromError(t *testing.T) {
	wrongType := errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	cases := map[error]string{
		wrongType:                            "WRONGTYPE Operation against a key holding the wrong kind of value",
		errors.Wrap(wrongType, "hset"):       "WRONGTYPE Operation against a key holding the wrong kind of value",
		errors.New("ERR index out of range"): "ERR index out of range",
		errors.New("kv: storage closed"):     "ERR kv: storage closed",
		MakeSyntaxErrReply():                 "ERR syntax error",
	}
	for err, expected := range cases {
		reply := ErrReplyFromError(err)
		if reply.Error() != expected {
			t.Errorf("expected %s, actually %s", expected, reply.Error())
		}
		if !IsErrorReply(reply) {
			t.Errorf("%s is not an error reply", reply.ToBytes())
		}
	}
}
