package transport

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"time"
)

var newline = []byte{'\n'}

type lineConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	maxLine      int
	writeTimeout time.Duration
}

// NewLineConn wraps a stream connection. maxLine bounds a single line;
// writeTimeout bounds a single write when positive.
func NewLineConn(c net.Conn, maxLine int, writeTimeout time.Duration) Conn {
	size := 4096
	if maxLine > 0 && maxLine < size {
		size = maxLine
	}
	return &lineConn{
		conn:         c,
		reader:       bufio.NewReaderSize(c, size),
		maxLine:      maxLine,
		writeTimeout: writeTimeout,
	}
}

func (l *lineConn) ReadLine() ([]byte, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := l.reader.ReadSlice('\n')
		if !tooLong {
			buf = append(buf, chunk...)
			if l.maxLine > 0 && len(bytes.TrimRight(buf, "\r\n")) > l.maxLine {
				tooLong, buf = true, nil
			}
		}

		switch {
		case err == nil:
			if tooLong {
				return nil, ErrLineTooLong
			}
			return bytes.TrimRight(buf, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(buf) > 0:
			// A final line without a terminator.
			return bytes.TrimRight(buf, "\r\n"), nil
		default:
			return nil, err
		}
	}
}

func (l *lineConn) WriteLine(line []byte) error {
	if l.writeTimeout > 0 {
		if err := l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout)); err != nil {
			return err
		}
	}
	// net.Buffers leaves line untouched; it is shared between receivers.
	bufs := net.Buffers{line, newline}
	_, err := bufs.WriteTo(l.conn)
	return err
}

func (l *lineConn) Close() error {
	return l.conn.Close()
}

func (l *lineConn) RemoteAddr() string {
	if addr := l.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
