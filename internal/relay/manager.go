package relay

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ConnectionManager tracks live sessions across all transports.
// It never fans messages out: every session only writes its own events.
type ConnectionManager struct {
	sessions map[string]*Session // key: session ID
	mu       sync.RWMutex
	logger   *slog.Logger
}

// ConnectionInfo describes one live session.
type ConnectionInfo struct {
	ID            string    `json:"id"`
	Transport     string    `json:"transport"`
	RemoteAddr    string    `json:"remote_addr"`
	ConnectedAt   time.Time `json:"connected_at"`
	Subscriptions int       `json:"subscriptions"`
}

// NewConnectionManager returns an empty registry. A nil logger uses slog.Default.
func NewConnectionManager(logger *slog.Logger) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// method to add a new connection
func (m *ConnectionManager) AddConnection(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	m.logger.Info("client_added",
		"client_id", s.ID,
		"active", len(m.sessions),
	)
}

// method to remove a connection
func (m *ConnectionManager) RemoveConnection(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.ID)
	m.logger.Info("client_removed",
		"client_id", s.ID,
		"active", len(m.sessions),
	)
}

// CloseAllConnections tears down every session; used on shutdown.
func (m *ConnectionManager) CloseAllConnections() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	// Close outside the lock: transports call RemoveConnection as they exit
	for _, s := range sessions {
		s.Close()
		m.logger.Info("client_connection_closed", "client_id", s.ID)
	}
}

// Count returns the number of live sessions.
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Snapshot lists live sessions, oldest first.
func (m *ConnectionManager) Snapshot() []ConnectionInfo {
	m.mu.RLock()
	out := make([]ConnectionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, ConnectionInfo{
			ID:            s.ID,
			Transport:     s.transport.Kind(),
			RemoteAddr:    s.transport.RemoteAddr(),
			ConnectedAt:   s.ConnectedAt,
			Subscriptions: s.SubscriptionCount(),
		})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}
