// Package transport adapts byte streams to the line-oriented protocol. Each
// Conn reads and writes one JSON object per line.
package transport

import "errors"

// ErrLineTooLong is returned by a stream Conn when a line exceeds the
// configured limit. The oversized line has been consumed and the Conn stays
// usable.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// Conn is a bidirectional line stream. ReadLine is called from one goroutine
// and WriteLine from one other goroutine; Close may be called from any
// goroutine and unblocks both.
type Conn interface {
	ReadLine() ([]byte, error)
	WriteLine(line []byte) error
	Close() error
	RemoteAddr() string
}
