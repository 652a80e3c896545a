package database

import (
	"context"

	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/kv/memkv"
	"github.com/tempbottle/tidis/lib/utils"
)

var testServer = NewServer(memkv.New(), Options{TxnAPI: true})

func exec(conn redis.Connection, args ...string) redis.Reply {
	return testServer.Exec(context.Background(), conn, utils.ToCmdLine(args...))
}

func execOn(server *Server, conn redis.Connection, args ...string) redis.Reply {
	return server.Exec(context.Background(), conn, utils.ToCmdLine(args...))
}
