// Package client is a redis client used by the command line interface and integration tests.
// It sends one request at a time and decodes nested replies such as the result of EXEC.
package client

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/lib/logger"
	"github.com/tempbottle/tidis/redis/protocol"
	"go.uber.org/atomic"
)

const maxWait = 3 * time.Second

// Client is a redis client, it is safe for concurrent use
type Client struct {
	addr   string
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	closed atomic.Bool
}

// MakeClient connects to addr
func MakeClient(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, maxWait)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Client{
		addr:   addr,
		conn:   conn,
		reader: bufio.NewReader(conn),
	}, nil
}

// Close closes the connection
func (client *Client) Close() error {
	client.closed.Store(true)
	client.mu.Lock()
	defer client.mu.Unlock()
	return client.conn.Close()
}

func (client *Client) reconnect() error {
	logger.Info("reconnect with: " + client.addr)
	_ = client.conn.Close() // ignore possible errors from repeated closes
	conn, err := net.DialTimeout("tcp", client.addr, maxWait)
	if err != nil {
		return errors.WithStack(err)
	}
	client.conn = conn
	client.reader = bufio.NewReader(conn)
	return nil
}

// Send sends a command and waits for its reply. Network failures are returned as error replies.
func (client *Client) Send(args [][]byte) redis.Reply {
	reply, err := client.Do(args)
	if err != nil {
		return protocol.MakeErrReply("ERR request failed: " + err.Error())
	}
	return reply
}

// Do sends a command and waits for its reply.
// A write failure reconnects once and resends, a failure while reading is returned.
func (client *Client) Do(args [][]byte) (redis.Reply, error) {
	if client.closed.Load() {
		return nil, errors.New("client closed")
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	req := protocol.MakeMultiBulkReply(args).ToBytes()
	_ = client.conn.SetDeadline(time.Now().Add(maxWait))
	if _, err := client.conn.Write(req); err != nil {
		if err := client.reconnect(); err != nil {
			return nil, err
		}
		_ = client.conn.SetDeadline(time.Now().Add(maxWait))
		if _, err := client.conn.Write(req); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	reply, err := readReply(client.reader)
	if err != nil {
		// the stream position is unknown, start over on the next request
		_ = client.reconnect()
		return nil, err
	}
	return reply, nil
}

func readLine(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, errors.Errorf("malformed reply line %q", line)
	}
	return line[:len(line)-2], nil
}

// readReply decodes one reply, arrays may nest
func readReply(reader *bufio.Reader) (redis.Reply, error) {
	line, err := readLine(reader)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, errors.New("empty reply line")
	}
	switch line[0] {
	case '+':
		return protocol.MakeStatusReply(string(line[1:])), nil
	case '-':
		return protocol.MakeErrReply(string(line[1:])), nil
	case ':':
		n, err := strconv.ParseInt(string(line[1:]), 10, 64)
		if err != nil {
			return nil, errors.Errorf("illegal integer reply %q", line)
		}
		return protocol.MakeIntReply(n), nil
	case '$':
		n, err := strconv.Atoi(string(line[1:]))
		if err != nil || n < -1 {
			return nil, errors.Errorf("illegal bulk header %q", line)
		}
		if n == -1 {
			return protocol.MakeNullBulkReply(), nil
		}
		body := make([]byte, n+2)
		if _, err := io.ReadFull(reader, body); err != nil {
			return nil, errors.WithStack(err)
		}
		return protocol.MakeBulkReply(body[:n]), nil
	case '*':
		n, err := strconv.Atoi(string(line[1:]))
		if err != nil || n < -1 {
			return nil, errors.Errorf("illegal array header %q", line)
		}
		if n == -1 {
			return &protocol.NullMultiBulkReply{}, nil
		}
		if n == 0 {
			return protocol.MakeEmptyMultiBulkReply(), nil
		}
		replies := make([]redis.Reply, n)
		allBulk := true
		for i := range replies {
			if replies[i], err = readReply(reader); err != nil {
				return nil, err
			}
			switch replies[i].(type) {
			case *protocol.BulkReply, *protocol.NullBulkReply:
			default:
				allBulk = false
			}
		}
		if !allBulk {
			return protocol.MakeMultiRawReply(replies), nil
		}
		args := make([][]byte, n)
		for i, r := range replies {
			if bulk, ok := r.(*protocol.BulkReply); ok {
				args[i] = bulk.Arg
			}
		}
		return protocol.MakeMultiBulkReply(args), nil
	}
	return nil, errors.Errorf("unknown reply type %q", line)
}
