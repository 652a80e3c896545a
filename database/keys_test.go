package database

import (
	"testing"

	"github.com/tempbottle/tidis/kv/memkv"
	"github.com/tempbottle/tidis/redis/protocol/asserts"
)

func TestExistsAndDel(t *testing.T) {
	server := NewServer(memkv.New(), Options{TxnAPI: true})
	execOn(server, nil, "set", "a", "1")
	execOn(server, nil, "rpush", "b", "1")
	asserts.AssertIntReply(t, execOn(server, nil, "exists", "a", "a", "b", "c"), 3)
	asserts.AssertStatusReply(t, execOn(server, nil, "type", "a"), "string")
	asserts.AssertStatusReply(t, execOn(server, nil, "type", "b"), "list")
	asserts.AssertStatusReply(t, execOn(server, nil, "type", "c"), "none")
	asserts.AssertIntReply(t, execOn(server, nil, "del", "a", "b", "c"), 2)
	asserts.AssertIntReply(t, execOn(server, nil, "exists", "a", "b"), 0)
	asserts.AssertIntReply(t, execOn(server, nil, "llen", "b"), 0)
}

func TestExpireAndTTL(t *testing.T) {
	server := NewServer(memkv.New(), Options{TxnAPI: true})
	asserts.AssertIntReply(t, execOn(server, nil, "ttl", "k"), -2)
	asserts.AssertIntReply(t, execOn(server, nil, "expire", "k", "100"), 0)
	execOn(server, nil, "sadd", "k", "m")
	asserts.AssertIntReply(t, execOn(server, nil, "ttl", "k"), -1)
	asserts.AssertIntReply(t, execOn(server, nil, "expire", "k", "100"), 1)
	asserts.AssertIntReply(t, execOn(server, nil, "ttl", "k"), 100)
	asserts.AssertIntReply(t, execOn(server, nil, "persist", "k"), 1)
	asserts.AssertIntReply(t, execOn(server, nil, "persist", "k"), 0)
	asserts.AssertIntReply(t, execOn(server, nil, "ttl", "k"), -1)
	asserts.AssertIntReply(t, execOn(server, nil, "pexpire", "k", "-1"), 1)
	asserts.AssertIntReply(t, execOn(server, nil, "exists", "k"), 0)
	asserts.AssertIntReply(t, execOn(server, nil, "scard", "k"), 0)

	execOn(server, nil, "set", "k", "v")
	asserts.AssertIntReply(t, execOn(server, nil, "expireat", "k", "1"), 1)
	asserts.AssertNullBulk(t, execOn(server, nil, "get", "k"))
	asserts.AssertErrReply(t, execOn(server, nil, "expire", "k", "soon"), "ERR invalid arguments")
}

func TestExpireOutOfRange(t *testing.T) {
	server := NewServer(memkv.New(), Options{TxnAPI: true})
	const huge = "9223372036854775807"
	execOn(server, nil, "set", "k", "v")
	asserts.AssertErrReply(t, execOn(server, nil, "expire", "k", huge), "ERR invalid expire time in 'expire' command")
	asserts.AssertErrReply(t, execOn(server, nil, "pexpire", "k", huge), "ERR invalid expire time in 'pexpire' command")
	asserts.AssertErrReply(t, execOn(server, nil, "expireat", "k", huge), "ERR invalid expire time in 'expireat' command")
	asserts.AssertErrReply(t, execOn(server, nil, "expire", "k", "-"+huge), "ERR invalid expire time in 'expire' command")
	asserts.AssertBulkReply(t, execOn(server, nil, "get", "k"), "v")
	asserts.AssertIntReply(t, execOn(server, nil, "ttl", "k"), -1)

	// PEXPIREAT takes milliseconds, the largest timestamp is accepted
	asserts.AssertIntReply(t, execOn(server, nil, "pexpireat", "k", huge), 1)
	asserts.AssertBulkReply(t, execOn(server, nil, "get", "k"), "v")
	asserts.AssertIntReply(t, execOn(server, nil, "expire", "k", "9223372036"), 1)
	asserts.AssertBulkReply(t, execOn(server, nil, "get", "k"), "v")
}

func TestKeysAndFlush(t *testing.T) {
	server := NewServer(memkv.New(), Options{TxnAPI: true})
	execOn(server, nil, "set", "user:1", "a")
	execOn(server, nil, "hset", "user:2", "f", "v")
	execOn(server, nil, "set", "order:1", "b")
	asserts.AssertMultiBulkReplyUnordered(t, execOn(server, nil, "keys", "user:*"), []string{"user:1", "user:2"})
	asserts.AssertMultiBulkReplyUnordered(t, execOn(server, nil, "keys", "*:1"), []string{"user:1", "order:1"})
	asserts.AssertIntReply(t, execOn(server, nil, "dbsize"), 3)
	asserts.AssertStatusReply(t, execOn(server, nil, "flushall"), "OK")
	asserts.AssertIntReply(t, execOn(server, nil, "dbsize"), 0)
	asserts.AssertMultiBulkReply(t, execOn(server, nil, "keys", "*"), []string{})
	asserts.AssertErrReply(t, execOn(server, nil, "flushall", "later"), "ERR invalid arguments")
}
