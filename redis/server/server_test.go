package server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tempbottle/tidis/database"
	"github.com/tempbottle/tidis/kv/memkv"
	"github.com/tempbottle/tidis/tcp"
)

func startServe(t *testing.T, ch chan struct{}) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Error(err)
		return ""
	}
	addr := listener.Addr().String()
	db := database.NewServer(memkv.New(), database.Options{TxnAPI: true})
	go tcp.ListenAndServe(listener, MakeHandler(db), ch, 0)
	return addr
}

func TestListenAndServe(t *testing.T) {
	closeChan := make(chan struct{})
	addr := startServe(t, closeChan)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Error(err)
		return
	}
	_, err = conn.Write([]byte("PING\r\n"))
	if err != nil {
		t.Error(err)
		return
	}
	bufReader := bufio.NewReader(conn)
	line, _, err := bufReader.ReadLine()
	if err != nil {
		t.Error(err)
		return
	}
	if string(line) != "+PONG" {
		t.Error("get wrong response")
		return
	}
	closeChan <- struct{}{}
	time.Sleep(time.Second)
}

func TestCommands(t *testing.T) {
	closeChan := make(chan struct{})
	addr := startServe(t, closeChan)
	defer func() {
		closeChan <- struct{}{}
	}()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Error(err)
		return
	}
	defer conn.Close()
	_, err = conn.Write([]byte("*3\r\n$4\r\nHSET\r\n$1\r\nh\r\n$1\r\nf\r\n" +
		"HSET h f v\r\nHGET h f\r\nLPOP h\r\nFOO\r\n"))
	if err != nil {
		t.Error(err)
		return
	}
	bufReader := bufio.NewReader(conn)
	expected := []string{
		"-ERR invalid arguments",
		":1",
		"$1", "v",
		"-WRONGTYPE Operation against a key holding the wrong kind of value",
		"-ERR unknown command 'foo'",
	}
	for _, want := range expected {
		line, _, err := bufReader.ReadLine()
		if err != nil {
			t.Error(err)
			return
		}
		assert.Equal(t, want, string(line))
	}
}

func TestProtocolError(t *testing.T) {
	closeChan := make(chan struct{})
	addr := startServe(t, closeChan)
	defer func() {
		closeChan <- struct{}{}
	}()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Error(err)
		return
	}
	defer conn.Close()
	_, err = conn.Write([]byte("*1\r\n$x\r\n"))
	if err != nil {
		t.Error(err)
		return
	}
	line, _, err := bufio.NewReader(conn).ReadLine()
	if err != nil {
		t.Error(err)
		return
	}
	assert.Equal(t, "-ERR protocol error: illegal header $x", string(line))
}
