package connection

import (
	"bytes"
	"net"
	"sync"

	"github.com/google/uuid"
)

var fakeAddr = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6399}

// FakeConn implements redis.Connection for test
type FakeConn struct {
	Connection
	bufMu  sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// NewFakeConn creates a FakeConn with loopback addresses
func NewFakeConn() *FakeConn {
	return &FakeConn{Connection: Connection{id: uuid.NewString()}}
}

// Write writes data to buffer
func (c *FakeConn) Write(b []byte) error {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	c.buf.Write(b)
	return nil
}

// Close marks the connection closed
func (c *FakeConn) Close() error {
	c.closed = true
	return nil
}

// Closed tells whether Close has been called
func (c *FakeConn) Closed() bool {
	return c.closed
}

// LocalAddr returns a loopback address
func (c *FakeConn) LocalAddr() net.Addr {
	return fakeAddr
}

// RemoteAddr returns a loopback address
func (c *FakeConn) RemoteAddr() net.Addr {
	return fakeAddr
}

// Clean resets the buffer
func (c *FakeConn) Clean() {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	c.buf.Reset()
}

// Bytes returns written data
func (c *FakeConn) Bytes() []byte {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	return append([]byte{}, c.buf.Bytes()...)
}
