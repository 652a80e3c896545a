package database

import (
	"testing"

	"github.com/tempbottle/tidis/lib/utils"
	"github.com/tempbottle/tidis/redis/protocol/asserts"
)

func TestSetAndGet(t *testing.T) {
	key := utils.RandString(10)
	asserts.AssertNullBulk(t, exec(nil, "get", key))
	asserts.AssertStatusReply(t, exec(nil, "set", key, "v"), "OK")
	asserts.AssertBulkReply(t, exec(nil, "get", key), "v")
	asserts.AssertNullBulk(t, exec(nil, "set", key, "v2", "NX"))
	asserts.AssertBulkReply(t, exec(nil, "get", key), "v")
	asserts.AssertStatusReply(t, exec(nil, "set", key, "v2", "xx"), "OK")
	asserts.AssertIntReply(t, exec(nil, "setnx", key, "v3"), 0)
	asserts.AssertBulkReply(t, exec(nil, "getset", key, "v3"), "v2")
	asserts.AssertIntReply(t, exec(nil, "append", key, "!!"), 4)
	asserts.AssertIntReply(t, exec(nil, "strlen", key), 4)
	asserts.AssertBulkReply(t, exec(nil, "get", key), "v3!!")

	absent := utils.RandString(10)
	asserts.AssertNullBulk(t, exec(nil, "set", absent, "v", "XX"))
	asserts.AssertIntReply(t, exec(nil, "exists", absent), 0)
	asserts.AssertStatusReply(t, exec(nil, "set", absent, ""), "OK")
	asserts.AssertBulkReply(t, exec(nil, "get", absent), "")
}

func TestSetExpiration(t *testing.T) {
	key := utils.RandString(10)
	asserts.AssertStatusReply(t, exec(nil, "set", key, "v", "EX", "100"), "OK")
	asserts.AssertIntReply(t, exec(nil, "ttl", key), 100)
	asserts.AssertStatusReply(t, exec(nil, "set", key, "v2", "KEEPTTL"), "OK")
	asserts.AssertIntReply(t, exec(nil, "ttl", key), 100)
	asserts.AssertStatusReply(t, exec(nil, "set", key, "v3"), "OK")
	asserts.AssertIntReply(t, exec(nil, "ttl", key), -1)
	asserts.AssertStatusReply(t, exec(nil, "setex", key, "50", "v"), "OK")
	asserts.AssertIntReply(t, exec(nil, "ttl", key), 50)
	asserts.AssertStatusReply(t, exec(nil, "psetex", key, "1", "v"), "OK")
}

func TestSetInvalidOptions(t *testing.T) {
	key := utils.RandString(10)
	asserts.AssertErrReply(t, exec(nil, "set", key, "v", "EX", "0"), "ERR invalid expire time in 'set' command")
	asserts.AssertErrReply(t, exec(nil, "set", key, "v", "EX"), "ERR invalid arguments")
	asserts.AssertErrReply(t, exec(nil, "set", key, "v", "NX", "XX"), "ERR invalid arguments")
	asserts.AssertErrReply(t, exec(nil, "set", key, "v", "EX", "10", "KEEPTTL"), "ERR invalid arguments")
	asserts.AssertErrReply(t, exec(nil, "set", key, "v", "FOO"), "ERR invalid arguments")
	asserts.AssertErrReply(t, exec(nil, "setex", key, "-1", "v"), "ERR invalid expire time in 'setex' command")
	asserts.AssertIntReply(t, exec(nil, "exists", key), 0)
}

func TestSetExpireOutOfRange(t *testing.T) {
	key := utils.RandString(10)
	const huge = "9223372036854775807"
	asserts.AssertErrReply(t, exec(nil, "set", key, "v", "EX", huge), "ERR invalid expire time in 'set' command")
	asserts.AssertErrReply(t, exec(nil, "set", key, "v", "PX", huge), "ERR invalid expire time in 'set' command")
	asserts.AssertErrReply(t, exec(nil, "set", key, "v", "EXAT", huge), "ERR invalid expire time in 'set' command")
	asserts.AssertErrReply(t, exec(nil, "setex", key, huge, "v"), "ERR invalid expire time in 'setex' command")
	asserts.AssertErrReply(t, exec(nil, "psetex", key, "-"+huge, "v"), "ERR invalid expire time in 'psetex' command")
	asserts.AssertIntReply(t, exec(nil, "exists", key), 0)

	// the largest ttl that fits is kept as a ttl
	asserts.AssertStatusReply(t, exec(nil, "set", key, "v", "EX", "9223372036"), "OK")
	asserts.AssertIntReply(t, exec(nil, "ttl", key), 9223372036)
	asserts.AssertBulkReply(t, exec(nil, "get", key), "v")
}

func TestMSetAndMGet(t *testing.T) {
	k1, k2, k3 := utils.RandString(10), utils.RandString(10), utils.RandString(10)
	asserts.AssertStatusReply(t, exec(nil, "mset", k1, "1", k2, "2"), "OK")
	exec(nil, "hset", k3, "f", "v")
	actual := exec(nil, "mget", k1, k2, k3).ToBytes()
	if string(actual) != "*3\r\n$1\r\n1\r\n$1\r\n2\r\n$-1\r\n" {
		t.Errorf("unexpected mget reply %q", actual)
	}
	asserts.AssertErrReply(t, exec(nil, "mset", k1, "1", k2), "ERR invalid arguments")
}

func TestIncr(t *testing.T) {
	key := utils.RandString(10)
	asserts.AssertIntReply(t, exec(nil, "incr", key), 1)
	asserts.AssertIntReply(t, exec(nil, "incrby", key, "10"), 11)
	asserts.AssertIntReply(t, exec(nil, "decr", key), 10)
	asserts.AssertIntReply(t, exec(nil, "decrby", key, "3"), 7)
	asserts.AssertBulkReply(t, exec(nil, "incrbyfloat", key, "0.5"), "7.5")
	asserts.AssertErrReply(t, exec(nil, "incr", key), "ERR value is not an integer or out of range")
	asserts.AssertErrReply(t, exec(nil, "incrby", key, "x"), "ERR invalid arguments")

	exec(nil, "set", key, "9223372036854775807")
	asserts.AssertErrReply(t, exec(nil, "incr", key), "ERR increment or decrement would overflow")
}

func TestSetOverwritesOtherTypes(t *testing.T) {
	key := utils.RandString(10)
	exec(nil, "hset", key, "f", "v")
	asserts.AssertStatusReply(t, exec(nil, "set", key, "v"), "OK")
	asserts.AssertStatusReply(t, exec(nil, "type", key), "string")
	asserts.AssertBulkReply(t, exec(nil, "get", key), "v")
	asserts.AssertErrReply(t, exec(nil, "hgetall", key), "WRONGTYPE Operation against a key holding the wrong kind of value")
}
