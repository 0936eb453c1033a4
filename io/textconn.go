package io

import (
	"bufio"
	"net"
	"sync"
	"time"
)

// TextConn reads command lines from and writes replies to a network
// connection. Reads are not safe for concurrent use; writes are, so that a
// shutdown notice can be sent while a session is running.
type TextConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	maxLine      int
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu     sync.Mutex
	writer *bufio.Writer
}

// NewTextConn wraps conn. maxLine bounds every line read, CRLF included.
// A zero timeout disables the corresponding deadline.
func NewTextConn(conn net.Conn, maxLine int, readTimeout, writeTimeout time.Duration) *TextConn {
	return &TextConn{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writer:       bufio.NewWriter(conn),
		maxLine:      maxLine,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadLine reads the next line without its CRLF. See ReadLine for errors.
func (c *TextConn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return "", err
		}
	}
	return ReadLine(c.reader, c.maxLine)
}

// WriteLine writes s followed by CRLF and flushes it.
func (c *TextConn) WriteLine(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	if _, err := c.writer.WriteString(s); err != nil {
		return err
	}
	if _, err := c.writer.WriteString("\r\n"); err != nil {
		return err
	}
	return c.writer.Flush()
}

// RemoteAddr returns the peer address.
func (c *TextConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying connection.
func (c *TextConn) Close() error {
	return c.conn.Close()
}
