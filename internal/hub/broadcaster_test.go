package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_SubscribeAndPublish(t *testing.T) {
	b := NewBroadcaster()

	var got []string
	b.Subscribe(EventButtonDown, func(ev Event) { got = append(got, "first:"+ev.Button.BdAddr) })
	b.Subscribe(EventButtonDown, func(ev Event) { got = append(got, "second:"+ev.Button.BdAddr) })
	b.Subscribe(EventButtonUp, func(ev Event) { got = append(got, "up:"+ev.Button.BdAddr) })

	b.Publish(Event{Kind: EventButtonDown, Button: Button{BdAddr: "aa"}})

	// handlers run in subscription order and only for their own kind
	assert.Equal(t, []string{"first:aa", "second:aa"}, got)
	assert.Equal(t, 2, b.SubscriberCount(EventButtonDown))
	assert.Equal(t, 3, b.TotalSubscribers())
}

func TestBroadcaster_UnsubscribeExactlyOnce(t *testing.T) {
	b := NewBroadcaster()

	calls := 0
	sub := b.Subscribe(EventButtonReady, func(Event) { calls++ })
	other := b.Subscribe(EventButtonReady, func(Event) {})

	require.True(t, b.Unsubscribe(sub))
	assert.False(t, b.Unsubscribe(sub), "second unsubscribe of the same handle must report false")

	b.Publish(Event{Kind: EventButtonReady})
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, b.SubscriberCount(EventButtonReady))

	require.True(t, b.Unsubscribe(other))
	assert.Equal(t, 0, b.TotalSubscribers())
}

func TestBroadcaster_UnsubscribeForeignHandle(t *testing.T) {
	a := NewBroadcaster()
	b := NewBroadcaster()

	a.Subscribe(EventButtonUp, func(Event) {})
	sub := b.Subscribe(EventButtonDown, func(Event) {})

	// same id, different kind: never removes someone else's registration
	assert.False(t, a.Unsubscribe(sub))
	assert.Equal(t, 1, a.TotalSubscribers())
	assert.False(t, a.Unsubscribe(Subscription{}))
}

func TestBroadcaster_UnsubscribeDuringPublish(t *testing.T) {
	b := NewBroadcaster()

	var sub Subscription
	calls := 0
	sub = b.Subscribe(EventButtonAdded, func(Event) {
		calls++
		b.Unsubscribe(sub)
	})
	later := 0
	b.Subscribe(EventButtonAdded, func(Event) { later++ })

	b.Publish(Event{Kind: EventButtonAdded})
	b.Publish(Event{Kind: EventButtonAdded})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, later)
}

func TestClickFlags_ActionPriority(t *testing.T) {
	tests := []struct {
		name  string
		flags ClickFlags
		want  string
	}{
		{"single only", ClickFlags{IsSingleClick: true}, "single"},
		{"single and double", ClickFlags{IsSingleClick: true, IsDoubleClick: true}, "single"},
		{"all flags", ClickFlags{IsSingleClick: true, IsDoubleClick: true, IsHold: true}, "single"},
		{"double and hold", ClickFlags{IsDoubleClick: true, IsHold: true}, "double"},
		{"hold only", ClickFlags{IsHold: true}, "hold"},
		{"no flags", ClickFlags{}, "hold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.flags.Action())
		})
	}
}

func TestParseEventKind(t *testing.T) {
	k, ok := ParseEventKind("buttonSingleOrDoubleClickOrHold")
	assert.True(t, ok)
	assert.Equal(t, EventButtonSingleOrDoubleClickOrHold, k)

	_, ok = ParseEventKind("buttonRemoved")
	assert.False(t, ok)
}
