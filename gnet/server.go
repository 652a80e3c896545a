// Package gnet serves the redis protocol on gnet event loops.
// Event loops only parse, commands run on an ants pool so a slow transaction never blocks a loop.
package gnet

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/panjf2000/gnet/v2"
	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/interface/database"
	"github.com/tempbottle/tidis/lib/logger"
	"github.com/tempbottle/tidis/lib/metrics"
	"github.com/tempbottle/tidis/redis/connection"
	"github.com/tempbottle/tidis/redis/parser"
	"github.com/tempbottle/tidis/redis/protocol"
	"go.uber.org/atomic"
)

// asyncConn lets replies be written from pool goroutines
type asyncConn struct {
	gnet.Conn
}

func (c *asyncConn) Write(b []byte) (int, error) {
	buf := make([]byte, len(b))
	copy(buf, b)
	if err := c.Conn.AsyncWrite(buf, nil); err != nil {
		return 0, err
	}
	return len(b), nil
}

type task struct {
	cmdLine [][]byte
	// errReply is written instead of running a command, the connection is closed afterwards
	errReply []byte
}

// session is the per connection state, commands of a session run one at a time in arrival order
type session struct {
	client  *connection.Connection
	reader  parser.CommandReader
	mu      sync.Mutex
	queue   []task
	running bool
}

// Server implements gnet.EventHandler
type Server struct {
	gnet.BuiltinEventEngine
	eng       gnet.Engine
	db        database.DB
	pool      *ants.Pool
	connected atomic.Int32
	booted    chan struct{}
	bootOnce  sync.Once
}

// NewServer creates a Server running commands of db on workers goroutines
func NewServer(db database.DB, workers int) (*Server, error) {
	if workers <= 0 {
		workers = ants.DefaultAntsPoolSize
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, errors.Wrap(err, "create command pool")
	}
	return &Server{
		db:     db,
		pool:   pool,
		booted: make(chan struct{}),
	}, nil
}

// Run serves addr until Close, multicore starts one event loop per cpu
func (s *Server) Run(addr string, multicore bool) error {
	logger.Infof("bind: %s, start gnet engine...", addr)
	return gnet.Run(s, "tcp://"+addr, gnet.WithMulticore(multicore))
}

// Ready is closed once the engine accepts connections
func (s *Server) Ready() <-chan struct{} {
	return s.booted
}

// Close stops the engine and closes the database
func (s *Server) Close(ctx context.Context) error {
	var err error
	select {
	case <-s.booted:
		err = s.eng.Stop(ctx)
	default:
	}
	s.pool.Release()
	s.db.Close()
	return err
}

// Connected returns the number of open connections
func (s *Server) Connected() int32 {
	return s.connected.Load()
}

func (s *Server) OnBoot(eng gnet.Engine) (action gnet.Action) {
	s.eng = eng
	s.bootOnce.Do(func() {
		close(s.booted)
	})
	return
}

func (s *Server) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	client := connection.NewConn(&asyncConn{Conn: c})
	c.SetContext(&session{client: client})
	s.connected.Inc()
	metrics.Connections.Inc()
	logger.Infof("connection %s opened: %s", client.ID(), c.RemoteAddr())
	return
}

func (s *Server) OnClose(c gnet.Conn, err error) (action gnet.Action) {
	sess, ok := c.Context().(*session)
	if !ok {
		return
	}
	if err != nil {
		logger.Infof("error occurred on connection %s: %v", sess.client.ID(), err)
	}
	s.connected.Dec()
	metrics.Connections.Dec()
	s.db.AfterClientClose(sess.client)
	logger.Infof("connection %s closed: %s", sess.client.ID(), c.RemoteAddr())
	return
}

func (s *Server) OnTraffic(c gnet.Conn) (action gnet.Action) {
	sess := c.Context().(*session)
	if c.InboundBuffered() < sess.reader.Need() {
		return gnet.None
	}
	buf, err := c.Peek(c.InboundBuffered())
	if err != nil {
		logger.Infof("read connection %s failed: %v", sess.client.ID(), err)
		return gnet.Close
	}
	var tasks []task
	consumed := 0
	for consumed < len(buf) {
		cmdLine, n, err := sess.reader.Next(buf[consumed:])
		if err != nil {
			reply := protocol.MakeErrReply("ERR " + err.Error())
			tasks = append(tasks, task{errReply: reply.ToBytes()})
			consumed = len(buf)
			break
		}
		consumed += n
		if cmdLine == nil {
			break
		}
		if len(cmdLine) > 0 {
			tasks = append(tasks, task{cmdLine: cmdLine})
		}
	}
	if _, err := c.Discard(consumed); err != nil {
		return gnet.Close
	}
	if len(tasks) > 0 {
		s.enqueue(sess, tasks)
	}
	return gnet.None
}

// enqueue appends tasks to the session and starts a worker unless one is draining it
func (s *Server) enqueue(sess *session, tasks []task) {
	sess.mu.Lock()
	sess.queue = append(sess.queue, tasks...)
	if sess.running {
		sess.mu.Unlock()
		return
	}
	sess.running = true
	sess.mu.Unlock()
	if err := s.pool.Submit(func() { s.drain(sess) }); err != nil {
		logger.Errorf("submit commands of %s: %v", sess.client.ID(), err)
		sess.mu.Lock()
		sess.queue = nil
		sess.running = false
		sess.mu.Unlock()
		_ = sess.client.Close()
	}
}

func (s *Server) drain(sess *session) {
	ctx := context.Background()
	for {
		sess.mu.Lock()
		if len(sess.queue) == 0 {
			sess.running = false
			sess.mu.Unlock()
			return
		}
		t := sess.queue[0]
		sess.queue = sess.queue[1:]
		sess.mu.Unlock()

		if t.errReply != nil {
			_ = sess.client.Write(t.errReply)
			_ = sess.client.Close()
			continue
		}
		if err := s.db.Apply(ctx, sess.client, t.cmdLine); err != nil {
			logger.Infof("connection %s write failed: %v", sess.client.ID(), err)
		}
	}
}
