package parser

import (
	"bytes"
	"strconv"
)

// CommandReader decodes commands for event-loop transports that own their buffers.
// Arguments of a partially received command are kept between calls, so bytes are scanned once
// no matter how many reads a command arrives in.
type CommandReader struct {
	args [][]byte
	// expect is the argument count of the command in progress, 0 when none is
	expect int64
	// need is the buffered length required before the next call can progress
	need int
}

// Need returns how many bytes must be buffered before Next can make progress
func (r *CommandReader) Need() int {
	return r.need
}

func (r *CommandReader) reset() {
	r.args = nil
	r.expect = 0
	r.need = 0
}

// Next decodes from buf, which must start where the previous call stopped consuming.
// It returns the number of bytes consumed and, once a whole command has arrived, its arguments.
// A nil command with no error means more bytes are needed. The arguments do not alias buf.
// After an error the reader is reset and the connection should be dropped.
func (r *CommandReader) Next(buf []byte) ([][]byte, int, error) {
	r.need = 0
	pos := 0
	if r.expect == 0 {
		if len(buf) == 0 {
			return nil, 0, nil
		}
		if buf[0] != '*' {
			end := bytes.IndexByte(buf, '\n')
			if end < 0 {
				r.need = len(buf) + 1
				return nil, 0, nil
			}
			line := bytes.TrimSuffix(buf[:end], []byte{'\r'})
			return splitInline(line), end + 1, nil
		}
		n, next, complete, err := readHeader(buf, 0)
		if err != nil {
			return nil, 0, err
		}
		if !complete {
			r.need = len(buf) + 1
			return nil, 0, nil
		}
		pos = next
		if n <= 0 {
			return [][]byte{}, pos, nil
		}
		r.expect = n
		r.args = make([][]byte, 0, min(n, 1024))
	}
	for int64(len(r.args)) < r.expect {
		if pos >= len(buf) {
			return nil, pos, nil
		}
		if buf[pos] != '$' {
			r.reset()
			return nil, 0, protocolError("expected bulk string")
		}
		size, next, complete, err := readHeader(buf, pos)
		if err != nil {
			r.reset()
			return nil, 0, err
		}
		if !complete {
			r.need = len(buf) - pos + 1
			return nil, pos, nil
		}
		if size < 0 {
			r.args = append(r.args, nil)
			pos = next
			continue
		}
		end := next + int(size)
		if end+2 > len(buf) {
			// the header stays buffered until the body is complete
			r.need = end + 2 - pos
			return nil, pos, nil
		}
		if buf[end] != '\r' || buf[end+1] != '\n' {
			r.reset()
			return nil, 0, protocolError("bulk string not terminated by CRLF")
		}
		r.args = append(r.args, append([]byte{}, buf[next:end]...))
		pos = end + 2
	}
	args := r.args
	r.reset()
	return args, pos, nil
}

// readHeader reads "<type><int>\r\n" at pos and returns the integer and the position after CRLF,
// complete is false when the line has not fully arrived
func readHeader(buf []byte, pos int) (int64, int, bool, error) {
	end := bytes.IndexByte(buf[pos:], '\n')
	if end < 0 {
		return 0, 0, false, nil
	}
	end += pos
	if end == pos || buf[end-1] != '\r' {
		return 0, 0, false, protocolError("header not terminated by CRLF")
	}
	header := buf[pos : end-1]
	n, err := strconv.ParseInt(string(header[1:]), 10, 64)
	if err != nil || n < -1 || n > maxBulkLen {
		return 0, 0, false, protocolError("illegal header " + string(header))
	}
	return n, end + 1, true, nil
}
