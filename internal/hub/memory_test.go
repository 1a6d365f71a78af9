package hub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
buttons:
  - bdaddr: "80:e4:da:70:00:01"
    name: kitchen
    color: white
    batteryStatus: 87
    connected: true
  - bdaddr: "80:e4:da:70:00:02"
    name: hallway
    batteryStatus: 12
network:
  dhcp:
    wifi:
      connected: true
      ip: 192.168.1.64
      mac: "00:11:22:33:44:55"
  wifiState:
    state: connected
`

func TestMemoryHub_FixtureSeed(t *testing.T) {
	ctx := context.Background()
	f, err := ParseFixture([]byte(fixtureYAML))
	require.NoError(t, err)

	m := NewMemoryHub()
	f.Apply(m)

	buttons, err := m.ListButtons(ctx)
	require.NoError(t, err)
	require.Len(t, buttons, 2)
	assert.Equal(t, "kitchen", buttons[0].Name)
	assert.Equal(t, "hallway", buttons[1].Name)

	b, err := m.GetButton(ctx, "80:e4:da:70:00:02")
	require.NoError(t, err)
	assert.Equal(t, 12, b.BatteryStatus)

	state, err := m.GetState(ctx)
	require.NoError(t, err)
	dhcp, ok := state["dhcp"].(map[string]any)
	require.True(t, ok)
	wifi, ok := dhcp["wifi"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "192.168.1.64", wifi["ip"])
}

func TestParseFixture_MissingAddress(t *testing.T) {
	_, err := ParseFixture([]byte("buttons:\n  - name: nameless\n"))
	assert.Error(t, err)
}

func TestMemoryHub_GetButtonNotFound(t *testing.T) {
	m := NewMemoryHub()
	_, err := m.GetButton(context.Background(), "AA:BB:CC:DD:EE:FF")
	assert.True(t, errors.Is(err, ErrButtonNotFound))
}

func TestMemoryHub_Emit(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryHub()

	var events []Event
	for _, k := range RelayedEvents {
		m.Subscribe(k, func(ev Event) { events = append(events, ev) })
	}

	// unknown buttons are only accepted for buttonAdded
	err := m.Emit(ctx, EventButtonDown, "aa", ClickFlags{})
	assert.True(t, errors.Is(err, ErrButtonNotFound))

	require.NoError(t, m.Emit(ctx, EventButtonAdded, "aa", ClickFlags{}))
	require.NoError(t, m.Emit(ctx, EventButtonConnected, "aa", ClickFlags{}))
	require.NoError(t, m.Emit(ctx, EventButtonSingleOrDoubleClickOrHold, "aa", ClickFlags{IsDoubleClick: true}))

	require.Len(t, events, 3)
	assert.Equal(t, EventButtonAdded, events[0].Kind)
	assert.True(t, events[1].Button.Connected)
	assert.Equal(t, "double", events[2].Click.Action())

	b, err := m.GetButton(ctx, "aa")
	require.NoError(t, err)
	assert.True(t, b.Connected)
}

func TestMemoryHub_StateIsCopied(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryHub()
	m.SetNetwork(NetworkInfo{"online": true})

	state, err := m.GetState(ctx)
	require.NoError(t, err)
	state["online"] = false

	again, err := m.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, again["online"])
}
