package hub

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// MemoryHub is an in-process device manager and network probe.
// It backs tests and standalone runs, and accepts injected events.
type MemoryHub struct {
	*Broadcaster

	mu      sync.RWMutex
	buttons map[string]*Button
	order   []string // bdaddr in insertion order, for stable listings
	network NetworkInfo
}

// NewMemoryHub returns an empty hub. Seed it with UpsertButton or Fixture.Apply.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		Broadcaster: NewBroadcaster(),
		buttons:     make(map[string]*Button),
		network:     NetworkInfo{},
	}
}

// ListButtons returns a snapshot of all known buttons.
func (m *MemoryHub) ListButtons(ctx context.Context) ([]Button, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Button, 0, len(m.order))
	for _, addr := range m.order {
		out = append(out, *m.buttons[addr])
	}
	return out, nil
}

// GetButton returns the button with the given hardware address.
func (m *MemoryHub) GetButton(ctx context.Context, bdaddr string) (Button, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buttons[bdaddr]
	if !ok {
		return Button{}, fmt.Errorf("%s: %w", bdaddr, ErrButtonNotFound)
	}
	return *b, nil
}

// GetState returns a copy of the network state.
func (m *MemoryHub) GetState(ctx context.Context) (NetworkInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.network), nil
}

// UpsertButton adds or replaces a button without raising any event.
func (m *MemoryHub) UpsertButton(b Button) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(b)
}

func (m *MemoryHub) upsertLocked(b Button) {
	if _, exists := m.buttons[b.BdAddr]; !exists {
		m.order = append(m.order, b.BdAddr)
	}
	m.buttons[b.BdAddr] = &b
}

// SetNetwork replaces the network state.
func (m *MemoryHub) SetNetwork(info NetworkInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info == nil {
		info = NetworkInfo{}
	}
	m.network = info
}

// Emit raises kind for the button with the given address. buttonAdded
// registers unknown addresses; every other kind requires a known button.
func (m *MemoryHub) Emit(ctx context.Context, kind EventKind, bdaddr string, flags ClickFlags) error {
	m.mu.Lock()
	b, ok := m.buttons[bdaddr]
	switch {
	case !ok && kind == EventButtonAdded:
		m.upsertLocked(Button{BdAddr: bdaddr})
		b = m.buttons[bdaddr]
	case !ok:
		m.mu.Unlock()
		return fmt.Errorf("emit %s for %s: %w", kind, bdaddr, ErrButtonNotFound)
	}
	switch kind {
	case EventButtonConnected:
		b.Connected = true
	case EventButtonReady:
		b.Ready = true
	}
	snapshot := *b
	m.mu.Unlock()

	// publish outside the lock so handlers may query the hub
	m.Publish(Event{Kind: kind, Button: snapshot, Click: flags})
	return nil
}
