package connection

import (
	"errors"
	"net"
	"testing"

	"github.com/tempbottle/tidis/lib/utils"
)

func TestConnectionWrite(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := NewConn(server)
	if conn.ID() == "" {
		t.Error("connection id is empty")
	}
	go func() {
		_ = conn.Write([]byte("+OK\r\n"))
		_ = conn.Write(nil)
		_ = conn.Close()
	}()
	buf := make([]byte, 5)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "+OK\r\n" {
		t.Errorf("unexpected %q", buf[:n])
	}
}

func TestMultiState(t *testing.T) {
	conn := NewFakeConn()
	conn.SetMultiState(true)
	conn.EnqueueCmd(utils.ToCmdLine("set", "a", "1"))
	conn.AddTxError(errors.New("bad"))
	if !conn.InMultiState() || len(conn.GetQueuedCmdLine()) != 1 || len(conn.GetTxErrors()) != 1 {
		t.Fatal("multi state not recorded")
	}
	conn.SetMultiState(false)
	if conn.InMultiState() || conn.GetQueuedCmdLine() != nil || conn.GetTxErrors() != nil {
		t.Error("multi state not reset")
	}
}

func TestFakeConn(t *testing.T) {
	conn := NewFakeConn()
	_ = conn.Write([]byte("abc"))
	if string(conn.Bytes()) != "abc" {
		t.Errorf("unexpected %q", conn.Bytes())
	}
	conn.Clean()
	if len(conn.Bytes()) != 0 {
		t.Error("buffer not cleaned")
	}
	_ = conn.Close()
	if !conn.Closed() || conn.RemoteAddr().String() != "127.0.0.1:6399" {
		t.Error("unexpected fake conn state")
	}
}
