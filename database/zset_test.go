package database

import (
	"testing"

	"github.com/tempbottle/tidis/lib/utils"
	"github.com/tempbottle/tidis/redis/protocol/asserts"
)

func TestZAddAndRange(t *testing.T) {
	key := utils.RandString(10)
	asserts.AssertIntReply(t, exec(nil, "zadd", key, "1", "a", "3", "c", "2", "b"), 3)
	asserts.AssertIntReply(t, exec(nil, "zadd", key, "5", "a"), 0)
	asserts.AssertIntReply(t, exec(nil, "zcard", key), 3)
	asserts.AssertMultiBulkReply(t, exec(nil, "zrange", key, "0", "-1", "WITHSCORES"),
		[]string{"b", "2", "c", "3", "a", "5"})
	asserts.AssertMultiBulkReply(t, exec(nil, "zrevrange", key, "0", "1"), []string{"a", "c"})
	asserts.AssertMultiBulkReply(t, exec(nil, "zrange", key, "5", "10"), []string{})
	asserts.AssertBulkReply(t, exec(nil, "zscore", key, "c"), "3")
	asserts.AssertNullBulk(t, exec(nil, "zscore", key, "x"))
	asserts.AssertBulkReply(t, exec(nil, "zincrby", key, "3.5", "b"), "5.5")
	asserts.AssertMultiBulkReply(t, exec(nil, "zrange", key, "0", "-1"), []string{"c", "a", "b"})
	asserts.AssertIntReply(t, exec(nil, "zrem", key, "a", "x"), 1)
	asserts.AssertIntReply(t, exec(nil, "zcard", key), 2)
}

func TestZAddOptions(t *testing.T) {
	key := utils.RandString(10)
	asserts.AssertIntReply(t, exec(nil, "zadd", key, "XX", "1", "a"), 0)
	asserts.AssertIntReply(t, exec(nil, "exists", key), 0)
	asserts.AssertIntReply(t, exec(nil, "zadd", key, "NX", "1", "a"), 1)
	asserts.AssertIntReply(t, exec(nil, "zadd", key, "NX", "2", "a"), 0)
	asserts.AssertBulkReply(t, exec(nil, "zscore", key, "a"), "1")
	asserts.AssertIntReply(t, exec(nil, "zadd", key, "XX", "2", "a", "3", "b"), 0)
	asserts.AssertBulkReply(t, exec(nil, "zscore", key, "a"), "2")
	asserts.AssertNullBulk(t, exec(nil, "zscore", key, "b"))
	asserts.AssertErrReply(t, exec(nil, "zadd", key, "NX", "XX", "1", "a"), "ERR invalid arguments")
	asserts.AssertErrReply(t, exec(nil, "zadd", key, "1", "a", "2"), "ERR invalid arguments")
	asserts.AssertErrReply(t, exec(nil, "zadd", key, "one", "a"), "ERR invalid arguments")
}

func TestZRangeByScore(t *testing.T) {
	key := utils.RandString(10)
	exec(nil, "zadd", key, "1", "a", "2", "b", "3", "c", "4", "d")
	asserts.AssertMultiBulkReply(t, exec(nil, "zrangebyscore", key, "(2", "+inf"), []string{"c", "d"})
	asserts.AssertMultiBulkReply(t, exec(nil, "zrangebyscore", key, "-inf", "2", "WITHSCORES"),
		[]string{"a", "1", "b", "2"})
	asserts.AssertMultiBulkReply(t, exec(nil, "zrangebyscore", key, "1", "4", "LIMIT", "1", "2"), []string{"b", "c"})
	asserts.AssertMultiBulkReply(t, exec(nil, "zrevrangebyscore", key, "+inf", "-inf"), []string{"d", "c", "b", "a"})
	asserts.AssertMultiBulkReply(t, exec(nil, "zrevrangebyscore", key, "4", "(1", "LIMIT", "1", "1"), []string{"c"})
	asserts.AssertMultiBulkReply(t, exec(nil, "zrangebyscore", key, "5", "6"), []string{})
	asserts.AssertErrReply(t, exec(nil, "zrangebyscore", key, "x", "2"), "ERR invalid arguments")
	asserts.AssertErrReply(t, exec(nil, "zrangebyscore", key, "1", "2", "LIMIT", "1"), "ERR invalid arguments")
}
