package tcp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"flichub/internal/hub"
	"flichub/internal/relay"
)

// DefaultPort is the port Flic hub clients connect to.
const DefaultPort = 8124

// TCPServer accepts line-protocol clients and gives each its own relay session.
type TCPServer struct {
	Addr string
	// server address
	Manager *relay.ConnectionManager
	// shared with the websocket transport so both show up in one listing

	hub    hub.Hub
	opts   relay.Options
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
	// closed once the listener is bound
	quitChan chan struct{}
	// shutdown signal channel
	stopOnce sync.Once
	wg       sync.WaitGroup
	// wait group for connection handler goroutines
}

// constructor for Server
func NewServer(addr string, h hub.Hub, manager *relay.ConnectionManager, opts relay.Options) *TCPServer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if manager == nil {
		manager = relay.NewConnectionManager(logger)
	}
	return &TCPServer{
		Addr:     addr,
		Manager:  manager,
		hub:      h,
		opts:     opts,
		logger:   logger,
		ready:    make(chan struct{}),
		quitChan: make(chan struct{}),
	}
}

// Start listens and accepts connections until Stop is called.
func (s *TCPServer) Start() error {
	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to start TCP server, error: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("tcp_server_started", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quitChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("failed_to_accept_connection", "error", err.Error())
			continue
		}
		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.handleConnection(conn)
		}(conn)
	}
}

// Ready is closed once the listener is bound.
func (s *TCPServer) Ready() <-chan struct{} {
	return s.ready
}

// ListenAddr returns the bound address, or nil before Ready.
func (s *TCPServer) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// handle lifecycle of single client connection
func (s *TCPServer) handleConnection(conn net.Conn) {
	client := NewClientConnection(conn, s.hub, s.opts)
	s.Manager.AddConnection(client.Session)
	select {
	case <-s.quitChan:
		// stopped while this connection was being accepted
		client.Session.Close()
	default:
	}
	client.Listen()
	s.Manager.RemoveConnection(client.Session)
}

// Stop closes the listener, tears down every TCP session and waits for handlers to exit.
func (s *TCPServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.quitChan)
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
		s.Manager.CloseAllConnections()
		s.wg.Wait()
		s.logger.Info("tcp_server_stopped")
	})
}
