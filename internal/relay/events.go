package relay

import (
	"flichub/internal/hub"
)

// subscribe binds one handler per relayed hub event to this session.
func (s *Session) subscribe() {
	bindings := []struct {
		kind    hub.EventKind
		handler hub.Handler
	}{
		{hub.EventButtonConnected, s.onButtonConnected},
		{hub.EventButtonReady, s.onButtonReady},
		{hub.EventButtonAdded, s.onButtonAdded},
		{hub.EventButtonDown, s.onButtonDown},
		{hub.EventButtonUp, s.onButtonUp},
		{hub.EventButtonSingleOrDoubleClickOrHold, s.onSingleOrDoubleClickOrHold},
	}

	subs := make([]hub.Subscription, 0, len(bindings))
	for _, b := range bindings {
		subs = append(subs, s.hub.Subscribe(b.kind, b.handler))
	}

	s.mu.Lock()
	if s.closed {
		// closed while subscribing: undo here since Close already ran
		s.mu.Unlock()
		for _, sub := range subs {
			s.hub.Unsubscribe(sub)
		}
		return
	}
	s.subs = subs
	s.mu.Unlock()
}

// SubscriptionCount reports the number of live subscriptions held by the session.
func (s *Session) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Session) onButtonConnected(ev hub.Event) {
	s.logger.Debug("button_connected", "bdaddr", ev.Button.BdAddr)
	s.sendEvent(EventButtonConnected, ev.Button.BdAddr, "")
}

func (s *Session) onButtonReady(ev hub.Event) {
	s.logger.Debug("button_ready", "bdaddr", ev.Button.BdAddr)
	s.sendEvent(EventButtonReady, ev.Button.BdAddr, "")
}

func (s *Session) onButtonAdded(ev hub.Event) {
	s.logger.Debug("button_added", "bdaddr", ev.Button.BdAddr)
	s.sendEvent(EventButtonAdded, ev.Button.BdAddr, "")
}

func (s *Session) onButtonDown(ev hub.Event) {
	s.logger.Debug("button_clicked", "bdaddr", ev.Button.BdAddr, "action", ActionDown)
	s.sendEvent(EventButton, ev.Button.BdAddr, ActionDown)
}

func (s *Session) onButtonUp(ev hub.Event) {
	s.logger.Debug("button_clicked", "bdaddr", ev.Button.BdAddr, "action", ActionUp)
	s.sendEvent(EventButton, ev.Button.BdAddr, ActionUp)
}

func (s *Session) onSingleOrDoubleClickOrHold(ev hub.Event) {
	action := ev.Click.Action()
	s.logger.Debug("button_clicked", "bdaddr", ev.Button.BdAddr, "action", action)
	s.sendEvent(EventButton, ev.Button.BdAddr, action)

	if !s.opts.IdlePulse {
		return
	}
	// a down/up cycle lets clients that only track toggles see the click,
	// and the idle event returns them to rest
	s.onButtonDown(ev)
	s.onButtonUp(ev)
	addr := ev.Button.BdAddr
	s.schedule(s.opts.IdlePulseDelay, func() {
		s.logger.Debug("button_idle", "bdaddr", addr)
		s.sendEvent(EventButton, addr, ActionIdle)
	})
}

func (s *Session) sendEvent(event, bdaddr, action string) {
	data, err := EventMessage{Event: event, Button: bdaddr, Action: action}.ToJSON()
	if err != nil {
		s.logger.Error("failed_to_marshal_event",
			"event", event,
			"error", err.Error(),
		)
		return
	}
	s.send(data)
}
