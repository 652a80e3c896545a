package redis

import "net"

// Connection represents a connection with redis client
type Connection interface {
	Write([]byte) error
	Close() error
	ID() string
	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// used for `Multi` command
	InMultiState() bool
	SetMultiState(bool)
	GetQueuedCmdLine() [][][]byte
	EnqueueCmd([][]byte)
	ClearQueuedCmds()
	AddTxError(err error)
	GetTxErrors() []error
}
