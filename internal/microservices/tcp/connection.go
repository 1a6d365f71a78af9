package tcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"flichub/internal/hub"
	"flichub/internal/relay"
)

// maxLineBytes allows a trailing "\r\n" on a maximum-size command.
const maxLineBytes = relay.MaxMessageSize + 2

var errLineTooLong = errors.New("line exceeds maximum message size")

// ClientConnection reads newline-terminated commands from one socket and
// feeds them to its relay session.
type ClientConnection struct {
	Session     *relay.Session
	conn        net.Conn
	idleTimeout time.Duration
}

// lineTransport writes one JSON message per line.
type lineTransport struct {
	conn         net.Conn
	writer       *bufio.Writer
	writeTimeout time.Duration
}

func (t *lineTransport) WriteMessage(data []byte) error {
	if t.writeTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	//=> data + "\n" then flush to the socket
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := t.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

func (t *lineTransport) Close() error      { return t.conn.Close() }
func (t *lineTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }
func (t *lineTransport) Kind() string       { return "tcp" }

// constructor for ClientConnection
func NewClientConnection(conn net.Conn, h hub.Hub, opts relay.Options) *ClientConnection {
	transport := &lineTransport{
		conn:         conn,
		writer:       bufio.NewWriter(conn),
		writeTimeout: opts.WriteTimeout,
	}
	return &ClientConnection{
		Session:     relay.NewSession(transport, h, opts),
		conn:        conn,
		idleTimeout: opts.IdleTimeout,
	}
}

// Listen runs the session until the peer goes away or the session is closed.
func (c *ClientConnection) Listen() {
	c.Session.Start()
	defer func() {
		c.Session.Close()
		c.Session.Wait()
	}()

	reader := bufio.NewReader(c.conn)
	c.refreshDeadline()

	for {
		line, err := readLine(reader)
		if errors.Is(err, errLineTooLong) {
			c.refreshDeadline()
			c.Session.Logger().Warn("message_too_large", "max_size", relay.MaxMessageSize)
			continue
		}
		if len(line) > 0 {
			c.refreshDeadline()
			// a final command without newline still counts
			c.Session.HandleInput(line)
		}
		if err == nil {
			continue
		}
		logger := c.Session.Logger()
		var netErr net.Error
		switch {
		case errors.Is(err, io.EOF):
			// client ended the stream
		case errors.As(err, &netErr) && netErr.Timeout():
			logger.Warn("client_read_timeout", "idle_timeout", c.idleTimeout.String())
		case errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "closed network connection"):
			// the session closed the socket after a failed write
		default:
			logger.Error("client_read_error", "error", err.Error())
		}
		return
	}
}

func (c *ClientConnection) refreshDeadline() {
	if c.idleTimeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	}
}

// readLine returns the next line including its newline. A line longer than
// maxLineBytes is consumed and discarded chunk by chunk and reported as
// errLineTooLong, so a peer that never sends a newline cannot grow memory.
func readLine(r *bufio.Reader) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLineBytes {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			if err != nil {
				return "", err
			}
			return "", errLineTooLong
		}
		return string(buf), err
	}
}
