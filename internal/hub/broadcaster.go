package hub

import (
	"sync"
)

// Broadcaster is the shared event source all connections subscribe to.
// Handlers are called synchronously, in subscription order, on the goroutine
// that calls Publish.
type Broadcaster struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventKind][]registration
}

type registration struct {
	id      uint64
	handler Handler
}

// NewBroadcaster returns a Broadcaster with no handlers registered.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		handlers: make(map[EventKind][]registration),
	}
}

// Subscribe registers h for kind and returns the handle needed to remove it.
func (b *Broadcaster) Subscribe(kind EventKind, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[kind] = append(b.handlers[kind], registration{id: b.nextID, handler: h})
	return Subscription{id: b.nextID, kind: kind}
}

// Unsubscribe removes a registration. It returns false if the handle was
// already removed or never issued by this broadcaster.
func (b *Broadcaster) Unsubscribe(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.handlers[sub.kind]
	for i, r := range regs {
		if r.id != sub.id {
			continue
		}
		// copy so a concurrent Publish holding the old slice is unaffected
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, sub.kind)
		} else {
			b.handlers[sub.kind] = next
		}
		return true
	}
	return false
}

// Publish delivers ev to every handler subscribed to ev.Kind.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.RLock()
	regs := b.handlers[ev.Kind]
	b.mu.RUnlock()

	for _, r := range regs {
		r.handler(ev)
	}
}

// SubscriberCount returns the number of live registrations for kind.
func (b *Broadcaster) SubscriberCount(kind EventKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}

// TotalSubscribers returns the number of live registrations across all kinds.
func (b *Broadcaster) TotalSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, regs := range b.handlers {
		n += len(regs)
	}
	return n
}
