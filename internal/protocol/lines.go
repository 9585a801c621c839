package protocol

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/pscheid92/chatroom/internal/errors"
)

const lineBufferSize = 256

// LineConn wraps a net.Conn with line-oriented send/receive primitives.
// Lines are UTF-8 text, newline-terminated. Safe for one reader and one
// writer goroutine; the internal reader goroutine exits when the stream ends
// or the connection is closed.
type LineConn struct {
	conn      net.Conn
	writer    *bufio.Writer
	writeMu   sync.Mutex
	lines     chan string
	errMu     sync.Mutex
	readErr   error
	closeOnce sync.Once
}

// NewLineConn wraps conn and starts its reader goroutine.
func NewLineConn(conn net.Conn) *LineConn {
	lc := &LineConn{
		conn:   conn,
		writer: bufio.NewWriter(conn),
		lines:  make(chan string, lineBufferSize),
	}
	go lc.readLoop()
	return lc
}

func (lc *LineConn) readLoop() {
	scanner := bufio.NewScanner(lc.conn)
	for scanner.Scan() {
		lc.lines <- scanner.Text()
	}
	lc.errMu.Lock()
	lc.readErr = scanner.Err()
	lc.errMu.Unlock()
	close(lc.lines)
}

// Send writes one newline-terminated line and flushes it immediately.
// Any failure is a communication error; the caller must close the connection.
func (lc *LineConn) Send(line string) error {
	lc.writeMu.Lock()
	defer lc.writeMu.Unlock()

	if _, err := lc.writer.WriteString(line); err != nil {
		return errors.CommunicationError("can't send line", err)
	}
	if err := lc.writer.WriteByte('\n'); err != nil {
		return errors.CommunicationError("can't send line", err)
	}
	if err := lc.writer.Flush(); err != nil {
		return errors.CommunicationError("can't send line", err)
	}
	return nil
}

// ReceiveAvailable drains every line currently buffered without blocking for
// more. An empty result is normal. Once the stream has ended and all buffered
// lines have been drained, it returns the drained lines together with a
// communication error so the caller stops polling a dead connection.
func (lc *LineConn) ReceiveAvailable() ([]string, error) {
	var replies []string
	for {
		select {
		case line, ok := <-lc.lines:
			if !ok {
				return replies, errors.CommunicationError("can't read message", lc.readError())
			}
			replies = append(replies, line)
		default:
			return replies, nil
		}
	}
}

// ReceiveAtLeast blocks until atLeast lines have been read. Stream end before
// that is a communication error, never a short result.
func (lc *LineConn) ReceiveAtLeast(atLeast int) ([]string, error) {
	replies := make([]string, 0, atLeast)
	for len(replies) < atLeast {
		line, ok := <-lc.lines
		if !ok {
			msg := fmt.Sprintf("no more data: expected %d lines, received %d", atLeast, len(replies))
			return nil, errors.CommunicationError(msg, lc.readError())
		}
		replies = append(replies, line)
	}
	return replies, nil
}

// ReceiveOne reads exactly one line, blocking until it arrives.
func (lc *LineConn) ReceiveOne() (string, error) {
	replies, err := lc.ReceiveAtLeast(1)
	if err != nil {
		return "", err
	}
	return replies[0], nil
}

// Close tears down the underlying connection, which also stops the reader
// goroutine. Safe to call more than once and concurrently with reads.
func (lc *LineConn) Close() error {
	var err error
	lc.closeOnce.Do(func() {
		err = lc.conn.Close()
	})
	return err
}

// RemoteAddr returns the peer's network address.
func (lc *LineConn) RemoteAddr() net.Addr {
	return lc.conn.RemoteAddr()
}

func (lc *LineConn) readError() error {
	lc.errMu.Lock()
	defer lc.errMu.Unlock()
	return lc.readErr
}
