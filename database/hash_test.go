package database

import (
	"testing"

	"github.com/tempbottle/tidis/lib/utils"
	"github.com/tempbottle/tidis/redis/protocol/asserts"
)

func TestHGetAllScenario(t *testing.T) {
	key := "h1" + utils.RandString(10)
	asserts.AssertMultiBulkReply(t, exec(nil, "hgetall", key), []string{})
	asserts.AssertIntReply(t, exec(nil, "hset", key, "f", "v"), 1)
	asserts.AssertMultiBulkReply(t, exec(nil, "hgetall", key), []string{"f", "v"})
	asserts.AssertErrReply(t, exec(nil, "lset", key, "0", "x"),
		"WRONGTYPE Operation against a key holding the wrong kind of value")
	asserts.AssertMultiBulkReply(t, exec(nil, "hgetall", key), []string{"f", "v"})
}

func TestHSetAndGet(t *testing.T) {
	key := utils.RandString(10)
	asserts.AssertNullBulk(t, exec(nil, "hget", key, "a"))
	asserts.AssertIntReply(t, exec(nil, "hset", key, "a", "1", "b", "2"), 2)
	asserts.AssertIntReply(t, exec(nil, "hset", key, "a", "3", "c", "4"), 1)
	asserts.AssertStatusReply(t, exec(nil, "hmset", key, "d", "5"), "OK")
	asserts.AssertBulkReply(t, exec(nil, "hget", key, "a"), "3")
	asserts.AssertMultiBulkReply(t, exec(nil, "hkeys", key), []string{"a", "b", "c", "d"})
	asserts.AssertMultiBulkReply(t, exec(nil, "hvals", key), []string{"3", "2", "4", "5"})
	asserts.AssertIntReply(t, exec(nil, "hlen", key), 4)
	asserts.AssertIntReply(t, exec(nil, "hstrlen", key, "a"), 1)
	asserts.AssertIntReply(t, exec(nil, "hexists", key, "b"), 1)
	asserts.AssertIntReply(t, exec(nil, "hexists", key, "z"), 0)

	actual := exec(nil, "hmget", key, "a", "z").ToBytes()
	if string(actual) != "*2\r\n$1\r\n3\r\n$-1\r\n" {
		t.Errorf("unexpected hmget reply %q", actual)
	}

	asserts.AssertIntReply(t, exec(nil, "hdel", key, "a", "b", "z"), 2)
	asserts.AssertMultiBulkReply(t, exec(nil, "hgetall", key), []string{"c", "4", "d", "5"})
	asserts.AssertIntReply(t, exec(nil, "hdel", key, "c", "d"), 2)
	asserts.AssertIntReply(t, exec(nil, "hlen", key), 0)
	asserts.AssertIntReply(t, exec(nil, "exists", key), 0)
}

func TestHSetNXAndIncr(t *testing.T) {
	key := utils.RandString(10)
	asserts.AssertIntReply(t, exec(nil, "hsetnx", key, "a", "1"), 1)
	asserts.AssertIntReply(t, exec(nil, "hsetnx", key, "a", "2"), 0)
	asserts.AssertIntReply(t, exec(nil, "hincrby", key, "a", "5"), 6)
	asserts.AssertIntReply(t, exec(nil, "hincrby", key, "n", "-2"), -2)
	asserts.AssertBulkReply(t, exec(nil, "hincrbyfloat", key, "f", "1.5"), "1.5")
	asserts.AssertBulkReply(t, exec(nil, "hincrbyfloat", key, "f", "1"), "2.5")
	asserts.AssertErrReply(t, exec(nil, "hincrby", key, "f", "1"), "ERR value is not an integer or out of range")
}

func TestHashInvalidArguments(t *testing.T) {
	key := utils.RandString(10)
	asserts.AssertErrReply(t, exec(nil, "hincrby", key, "a", "x"), "ERR invalid arguments")
	asserts.AssertErrReply(t, exec(nil, "hget", key), "ERR invalid arguments")
	asserts.AssertErrReply(t, exec(nil, "hset", key, "a", "1", "b"), "ERR invalid arguments")
	asserts.AssertIntReply(t, exec(nil, "exists", key), 0)
}
