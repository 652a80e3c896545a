package server

/*
 * A tcp.Handler implements redis protocol
 */

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/tempbottle/tidis/interface/database"
	"github.com/tempbottle/tidis/lib/logger"
	"github.com/tempbottle/tidis/lib/metrics"
	"github.com/tempbottle/tidis/redis/connection"
	"github.com/tempbottle/tidis/redis/parser"
	"github.com/tempbottle/tidis/redis/protocol"
	"go.uber.org/atomic"
)

// Handler implements tcp.Handler and serves as a redis server
type Handler struct {
	activeConn sync.Map // *connection.Connection -> struct{}
	db         database.DB
	closing    atomic.Bool
}

// MakeHandler creates a Handler serving db, the handler closes db on Close
func MakeHandler(db database.DB) *Handler {
	return &Handler{
		db: db,
	}
}

func (h *Handler) closeClient(client *connection.Connection) {
	_ = client.Close()
	h.db.AfterClientClose(client)
	if _, loaded := h.activeConn.LoadAndDelete(client); loaded {
		metrics.Connections.Dec()
		logger.Infof("connection %s closed: %s", client.ID(), client.RemoteAddr())
	}
}

func isClosedErr(err error) bool {
	return err == io.EOF ||
		err == io.ErrUnexpectedEOF ||
		strings.Contains(err.Error(), "use of closed network connection")
}

// Handle receives and executes redis commands
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	if h.closing.Load() {
		// closing handler refuse new connection
		_ = conn.Close()
		return
	}

	client := connection.NewConn(conn)
	h.activeConn.Store(client, struct{}{})
	metrics.Connections.Inc()
	logger.Infof("connection %s opened: %s", client.ID(), client.RemoteAddr())
	defer h.closeClient(client)

	ch := parser.ParseStream(conn)
	for payload := range ch {
		if payload.Err != nil {
			if isClosedErr(payload.Err) {
				return
			}
			// protocol err
			errReply := protocol.MakeErrReply("ERR " + payload.Err.Error())
			if err := client.Write(errReply.ToBytes()); err != nil {
				return
			}
			continue
		}
		if payload.Data == nil {
			logger.Error("empty payload")
			continue
		}
		r, ok := payload.Data.(*protocol.MultiBulkReply)
		if !ok {
			if _, empty := payload.Data.(*protocol.EmptyMultiBulkReply); !empty {
				logger.Error("require multi bulk protocol")
			}
			continue
		}
		if err := h.db.Apply(ctx, client, r.Args); err != nil {
			logger.Infof("connection %s write failed: %v", client.ID(), err)
			return
		}
	}
}

// Close stops handler
func (h *Handler) Close() error {
	logger.Info("handler shutting down...")
	h.closing.Store(true)
	h.activeConn.Range(func(key interface{}, val interface{}) bool {
		client := key.(*connection.Connection)
		_ = client.Close()
		return true
	})
	h.db.Close()
	return nil
}
