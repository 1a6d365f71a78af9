package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"flichub/internal/hub"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Transport carries complete outbound messages to one peer.
// WriteMessage is only ever called from the session's writer goroutine.
type Transport interface {
	WriteMessage(data []byte) error // framing (e.g. trailing newline) is the transport's job
	Close() error
	RemoteAddr() string
	Kind() string // "tcp", "websocket"
}

// Session is one client connection: its event subscriptions, its outbound
// queue, and the timers it owns. Everything it holds is released by Close.
type Session struct {
	ID          string
	ConnectedAt time.Time

	transport Transport
	hub       hub.Hub
	opts      Options
	logger    *slog.Logger
	limiter   *rate.Limiter

	ctx    context.Context // canceled on Close, bounds collaborator queries
	cancel context.CancelFunc

	outbound   chan []byte
	done       chan struct{}
	writerDone chan struct{}

	mu     sync.Mutex // guards closed, timers, subs and enqueueing
	closed bool
	timers map[*time.Timer]struct{}
	subs   []hub.Subscription

	closeOnce sync.Once
	started   bool
	wg        sync.WaitGroup
}

// NewSession returns a session bound to t. Nothing is subscribed or
// written until Start is called.
func NewSession(t Transport, h hub.Hub, opts Options) *Session {
	opts = opts.withDefaults()
	id := uuid.NewString()

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:          id,
		ConnectedAt: time.Now(),
		transport:   t,
		hub:         h,
		opts:        opts,
		logger: opts.Logger.With(
			"client_id", id,
			"remote_addr", t.RemoteAddr(),
			"transport", t.Kind(),
		),
		limiter:  rate.NewLimiter(limit, opts.RateBurst),
		ctx:      ctx,
		cancel:   cancel,
		outbound: make(chan []byte, opts.SendQueueSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		timers:     make(map[*time.Timer]struct{}),
	}
}

// Start registers the event handlers and starts the writer (and the refresh
// ticker when configured). It must be called once before HandleInput.
func (s *Session) Start() {
	s.mu.Lock()
	if s.closed || s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.subscribe()

	s.wg.Add(1)
	go s.writePump()

	if s.opts.RefreshInterval > 0 {
		s.wg.Add(1)
		go s.refreshLoop(s.opts.RefreshInterval)
	}

	s.logger.Info("client_connected", "subscriptions", s.SubscriptionCount())
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Logger returns the session-scoped logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Transport returns the underlying transport.
func (s *Session) Transport() Transport {
	return s.transport
}

// Close tears the session down: handlers are unsubscribed exactly once,
// pending timers are stopped, and the writer flushes what was already
// queued before closing the transport. A writer that is still stuck on the
// peer after opts.CloseGrace has its transport closed underneath it. Safe to
// call from any goroutine, including event handlers.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for t := range s.timers {
			t.Stop()
		}
		s.timers = nil
		subs := s.subs
		s.subs = nil
		started := s.started
		s.mu.Unlock()

		for _, sub := range subs {
			if !s.hub.Unsubscribe(sub) {
				s.logger.Warn("unsubscribe_missing_handler", "event", sub.Kind())
			}
		}

		s.cancel()
		close(s.done)
		if !started {
			// no writer to close the transport for us
			s.transport.Close()
		} else {
			time.AfterFunc(s.opts.CloseGrace, s.forceClose)
		}
		s.logger.Info("client_disconnected", "unsubscribed", len(subs))
	})
}

// Wait blocks until the session's goroutines have exited.
func (s *Session) Wait() {
	s.wg.Wait()
}

// forceClose closes the transport unless the writer already did.
func (s *Session) forceClose() {
	select {
	case <-s.writerDone:
		return
	default:
	}
	s.logger.Warn("client_flush_timeout", "grace", s.opts.CloseGrace.String())
	s.transport.Close()
}

// reply queues a command reply, waiting for room in the queue. The reading
// goroutine stalls instead of the session being dropped.
func (s *Session) reply(msg []byte) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	select {
	case s.outbound <- msg:
	case <-s.done:
	}
}

// send queues an event for the writer. A full queue means the peer is not
// keeping up; that is handled like a failed write and closes the session.
func (s *Session) send(msg []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	select {
	case s.outbound <- msg:
		s.mu.Unlock()
		return
	default:
	}
	s.mu.Unlock()

	s.logger.Warn("send_queue_full", "queue_size", cap(s.outbound))
	s.Close()
}

// schedule runs fn after d unless the session is closed first.
func (s *Session) schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		delete(s.timers, t)
		s.mu.Unlock()
		fn()
	})
	s.timers[t] = struct{}{}
}

// PendingTimers reports how many scheduled tasks have not fired yet.
func (s *Session) PendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Session) writePump() {
	defer s.wg.Done()
	defer close(s.writerDone)
	defer s.transport.Close()

	for {
		select {
		case msg := <-s.outbound:
			if err := s.transport.WriteMessage(msg); err != nil {
				s.logger.Warn("client_write_failed", "error", err.Error())
				s.Close()
				return
			}
		case <-s.done:
			s.flush()
			return
		}
	}
}

// flush writes whatever was queued before Close.
func (s *Session) flush() {
	for {
		select {
		case msg := <-s.outbound:
			if err := s.transport.WriteMessage(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) refreshLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sendButtons()
		case <-s.done:
			return
		}
	}
}
