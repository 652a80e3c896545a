// Package parser decodes redis serialization protocol messages.
package parser

import (
	"bufio"
	"bytes"
	"io"
	"runtime/debug"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tempbottle/tidis/interface/redis"
	"github.com/tempbottle/tidis/lib/logger"
	"github.com/tempbottle/tidis/redis/protocol"
)

// maxBulkLen bounds a single bulk string, same as redis proto-max-bulk-len
const maxBulkLen = 512 * 1024 * 1024

// Payload stores redis.Reply or error
type Payload struct {
	Data redis.Reply
	Err  error
}

// ParseStream reads data from io.Reader and send payloads through channel
func ParseStream(reader io.Reader) <-chan *Payload {
	ch := make(chan *Payload)
	go parse0(reader, ch)
	return ch
}

// ParseBytes reads data from []byte and return all replies
func ParseBytes(data []byte) ([]redis.Reply, error) {
	ch := ParseStream(bytes.NewReader(data))
	var results []redis.Reply
	for payload := range ch {
		if payload.Err != nil {
			if payload.Err == io.EOF {
				break
			}
			return nil, payload.Err
		}
		results = append(results, payload.Data)
	}
	return results, nil
}

// ParseOne reads data from []byte and return the first payload
func ParseOne(data []byte) (redis.Reply, error) {
	ch := ParseStream(bytes.NewReader(data))
	payload := <-ch
	// drain so parse0 can exit
	go func() {
		for range ch {
		}
	}()
	if payload == nil {
		return nil, errors.New("no protocol")
	}
	return payload.Data, payload.Err
}

func parse0(rawReader io.Reader, ch chan<- *Payload) {
	defer func() {
		if err := recover(); err != nil {
			logger.Error(err, string(debug.Stack()))
		}
		close(ch)
	}()
	reader := bufio.NewReader(rawReader)
	for {
		line, err := readLine(reader)
		if err != nil {
			ch <- &Payload{Err: err}
			return
		}
		if len(line) == 0 {
			// redis-cli may send empty lines, ignore them
			continue
		}
		var reply redis.Reply
		switch line[0] {
		case '+':
			reply = protocol.MakeStatusReply(string(line[1:]))
		case '-':
			reply = protocol.MakeErrReply(string(line[1:]))
		case ':':
			value, perr := strconv.ParseInt(string(line[1:]), 10, 64)
			if perr != nil {
				ch <- &Payload{Err: protocolError("illegal number " + string(line[1:]))}
				continue
			}
			reply = protocol.MakeIntReply(value)
		case '$':
			body, berr := readBulk(line, reader)
			if berr != nil {
				ch <- &Payload{Err: berr}
				return
			}
			if body == nil {
				reply = protocol.MakeNullBulkReply()
			} else {
				reply = protocol.MakeBulkReply(body)
			}
		case '*':
			args, aerr := readArray(line, reader)
			if aerr != nil {
				ch <- &Payload{Err: aerr}
				return
			}
			if len(args) == 0 {
				reply = protocol.MakeEmptyMultiBulkReply()
			} else {
				reply = protocol.MakeMultiBulkReply(args)
			}
		default:
			// inline command
			reply = protocol.MakeMultiBulkReply(splitInline(line))
		}
		ch <- &Payload{Data: reply}
	}
}

// readLine reads one line without its CRLF, a bare LF is tolerated for inline commands
func readLine(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}

func parseLength(header []byte) (int64, error) {
	n, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil || n < -1 || n > maxBulkLen {
		return 0, protocolError("illegal header " + string(header))
	}
	return n, nil
}

// readBulk returns nil for the null bulk string
func readBulk(header []byte, reader *bufio.Reader) ([]byte, error) {
	n, err := parseLength(header)
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}
	body := make([]byte, n+2)
	if _, err = io.ReadFull(reader, body); err != nil {
		return nil, err
	}
	if body[n] != '\r' || body[n+1] != '\n' {
		return nil, protocolError("bulk string not terminated by CRLF")
	}
	return body[:n], nil
}

func readArray(header []byte, reader *bufio.Reader) ([][]byte, error) {
	n, err := parseLength(header)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	args := make([][]byte, 0, n)
	for i := int64(0); i < n; i++ {
		line, err := readLine(reader)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 || line[0] != '$' {
			return nil, protocolError("expected bulk string, got " + string(line))
		}
		body, err := readBulk(line, reader)
		if err != nil {
			return nil, err
		}
		args = append(args, body)
	}
	return args, nil
}

func splitInline(line []byte) [][]byte {
	fields := bytes.Fields(line)
	args := make([][]byte, len(fields))
	for i, f := range fields {
		args[i] = append([]byte{}, f...)
	}
	return args
}

func protocolError(msg string) error {
	return errors.New("protocol error: " + msg)
}
