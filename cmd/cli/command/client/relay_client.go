package client

// relay_client.go = line-protocol client for the flichub relay, used by every CLI command.

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"flichub/internal/hub"
	"flichub/internal/relay"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultReconnectDelay = 2 * time.Second
	DefaultDialTimeout    = 5 * time.Second
)

var (
	ErrNotConnected = errors.New("not connected to relay")
	ErrDisconnected = errors.New("connection to relay lost")
	ErrClosed       = errors.New("relay client closed")
)

// Response is a command reply from the relay.
type Response struct {
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

// Options configure a RelayClient. Zero values fall back to the defaults above.
type Options struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	ReconnectDelay time.Duration
	ConnectRetries int  // extra dial attempts in Connect
	AutoReconnect  bool // redial after the connection drops

	OnEvent        func(relay.EventMessage)
	OnUpdate       func(Response) // command replies nobody asked for, e.g. periodic button refresh
	OnConnected    func()
	OnDisconnected func(error)
}

// RelayClient sends commands over one TCP connection and matches replies by command name.
type RelayClient struct {
	addr string
	opts Options

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	closed    bool
	pending   map[string][]chan Response // FIFO waiters per command
	closeCh   chan struct{}

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewRelayClient creates a new relay client
func NewRelayClient(addr string, opts Options) *RelayClient {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	return &RelayClient{
		addr:    addr,
		opts:    opts,
		pending: make(map[string][]chan Response),
		closeCh: make(chan struct{}),
	}
}

// Connect dials the relay, retrying ConnectRetries times with ReconnectDelay between attempts.
func (c *RelayClient) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= c.opts.ConnectRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.opts.ReconnectDelay):
			case <-ctx.Done():
				return ctx.Err()
			case <-c.closeCh:
				return ErrClosed
			}
		}
		if lastErr = c.dial(ctx); lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrClosed) {
			return lastErr
		}
	}
	return fmt.Errorf("connection failed: %w", lastErr)
}

func (c *RelayClient) dial(ctx context.Context) error {
	dialer := net.Dialer{Timeout: c.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop(conn)

	if c.opts.OnConnected != nil {
		c.opts.OnConnected()
	}
	return nil
}

// IsConnected returns connection status
func (c *RelayClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close disconnects and stops reconnecting.
func (c *RelayClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closeCh)
	conn := c.conn
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.wg.Wait()
	return err
}

// Request sends command and waits for the reply carrying the same command name.
func (c *RelayClient) Request(ctx context.Context, command string) (Response, error) {
	name := commandName(command)
	ch := make(chan Response, 1)

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return Response{}, ErrNotConnected
	}
	c.pending[name] = append(c.pending[name], ch)
	conn := c.conn
	c.mu.Unlock()

	if err := c.writeLine(conn, command); err != nil {
		c.dropWaiter(name, ch)
		return Response{}, fmt.Errorf("send %s: %w", name, err)
	}

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, ErrDisconnected
		}
		return resp, nil
	case <-timer.C:
		c.dropWaiter(name, ch)
		return Response{}, fmt.Errorf("%s: no reply within %s", name, c.opts.RequestTimeout)
	case <-ctx.Done():
		c.dropWaiter(name, ch)
		return Response{}, ctx.Err()
	}
}

// Ping measures the round trip of a ping/pong exchange.
func (c *RelayClient) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.Request(ctx, "ping"); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Buttons lists the hub's buttons.
func (c *RelayClient) Buttons(ctx context.Context) ([]hub.Button, error) {
	var buttons []hub.Button
	err := c.requestInto(ctx, "buttons", &buttons)
	return buttons, err
}

// Network returns the hub's network state.
func (c *RelayClient) Network(ctx context.Context) (hub.NetworkInfo, error) {
	var info hub.NetworkInfo
	err := c.requestInto(ctx, "network", &info)
	return info, err
}

// Server returns the relay's server info.
func (c *RelayClient) Server(ctx context.Context) (relay.ServerInfo, error) {
	var info relay.ServerInfo
	err := c.requestInto(ctx, "server", &info)
	return info, err
}

// Battery returns one button's battery level.
func (c *RelayClient) Battery(ctx context.Context, bdaddr string) (int, error) {
	var level int
	err := c.requestInto(ctx, "battery;"+bdaddr, &level)
	return level, err
}

func (c *RelayClient) requestInto(ctx context.Context, command string, out any) error {
	resp, err := c.Request(ctx, command)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%s: %s", resp.Command, resp.Error)
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", resp.Command, err)
	}
	return nil
}

func (c *RelayClient) writeLine(conn net.Conn, line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.opts.RequestTimeout))
	_, err := conn.Write([]byte(line + "\n"))
	return err
}

func (c *RelayClient) readLoop(conn net.Conn) {
	defer c.wg.Done()

	reader := bufio.NewReader(conn)
	var readErr error
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			c.handleLine(line)
		}
		if err != nil {
			readErr = err
			break
		}
	}
	c.handleDisconnect(conn, readErr)
}

func (c *RelayClient) handleLine(line string) {
	if line == string(relay.PongReply) {
		c.deliver(Response{Command: "ping"})
		return
	}

	var probe struct {
		Command *string `json:"command"`
		Event   *string `json:"event"`
	}
	if err := json.Unmarshal([]byte(line), &probe); err != nil {
		return
	}

	switch {
	case probe.Event != nil:
		var ev relay.EventMessage
		if err := json.Unmarshal([]byte(line), &ev); err == nil && c.opts.OnEvent != nil {
			c.opts.OnEvent(ev)
		}
	case probe.Command != nil:
		var resp Response
		if err := json.Unmarshal([]byte(line), &resp); err == nil {
			c.deliver(resp)
		}
	}
}

// deliver hands resp to the oldest waiter for its command, or to OnUpdate.
func (c *RelayClient) deliver(resp Response) {
	c.mu.Lock()
	waiters := c.pending[resp.Command]
	if len(waiters) == 0 {
		c.mu.Unlock()
		if c.opts.OnUpdate != nil {
			c.opts.OnUpdate(resp)
		}
		return
	}
	ch := waiters[0]
	if len(waiters) == 1 {
		delete(c.pending, resp.Command)
	} else {
		c.pending[resp.Command] = waiters[1:]
	}
	c.mu.Unlock()
	ch <- resp
}

func (c *RelayClient) dropWaiter(name string, ch chan Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	waiters := c.pending[name]
	for i, w := range waiters {
		if w == ch {
			c.pending[name] = append(waiters[:i:i], waiters[i+1:]...)
			break
		}
	}
	if len(c.pending[name]) == 0 {
		delete(c.pending, name)
	}
}

func (c *RelayClient) handleDisconnect(conn net.Conn, err error) {
	conn.Close()

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	// fail everything in flight
	for name, waiters := range c.pending {
		for _, ch := range waiters {
			close(ch)
		}
		delete(c.pending, name)
	}
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}
	if c.opts.OnDisconnected != nil {
		c.opts.OnDisconnected(err)
	}
	if c.opts.AutoReconnect {
		c.wg.Add(1)
		go c.reconnectLoop()
	}
}

func (c *RelayClient) reconnectLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-time.After(c.opts.ReconnectDelay):
		case <-c.closeCh:
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.DialTimeout)
		err := c.dial(ctx)
		cancel()
		if err == nil || errors.Is(err, ErrClosed) {
			return
		}
	}
}

// commandName is the reply's command field for an outgoing line.
func commandName(command string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(command), ";")
	return name
}
