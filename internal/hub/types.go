package hub

import (
	"context"
	"errors"
)

// EventKind names a device-manager event, using the hub's own event names.
type EventKind string

const (
	EventButtonConnected                 EventKind = "buttonConnected"
	EventButtonReady                     EventKind = "buttonReady"
	EventButtonAdded                     EventKind = "buttonAdded"
	EventButtonDown                      EventKind = "buttonDown"
	EventButtonUp                        EventKind = "buttonUp"
	EventButtonSingleOrDoubleClickOrHold EventKind = "buttonSingleOrDoubleClickOrHold"
)

// RelayedEvents is the fixed set of events every connection subscribes to.
var RelayedEvents = []EventKind{
	EventButtonConnected,
	EventButtonReady,
	EventButtonAdded,
	EventButtonDown,
	EventButtonUp,
	EventButtonSingleOrDoubleClickOrHold,
}

// ParseEventKind returns the EventKind for name if it is one the relay knows.
func ParseEventKind(name string) (EventKind, bool) {
	for _, k := range RelayedEvents {
		if string(k) == name {
			return k, true
		}
	}
	return "", false
}

var (
	ErrButtonNotFound  = errors.New("button not found")
	ErrEmitUnsupported = errors.New("event injection not supported by this hub backend")
)

// Button mirrors the device manager's button record.
// Field names follow the hub's camelCase JSON.
type Button struct {
	BdAddr           string `json:"bdaddr" yaml:"bdaddr"`
	SerialNumber     string `json:"serialNumber" yaml:"serialNumber"`
	Color            string `json:"color" yaml:"color"`
	Name             string `json:"name" yaml:"name"`
	ActiveDisconnect bool   `json:"activeDisconnect" yaml:"activeDisconnect"`
	Connected        bool   `json:"connected" yaml:"connected"`
	Ready            bool   `json:"ready" yaml:"ready"`
	BatteryStatus    int    `json:"batteryStatus" yaml:"batteryStatus"`
	BatteryTimestamp int64  `json:"batteryTimestamp" yaml:"batteryTimestamp"` // unix millis
	UUID             string `json:"uuid" yaml:"uuid"`
	FlicVersion      int    `json:"flicVersion" yaml:"flicVersion"`
	FirmwareVersion  int    `json:"firmwareVersion" yaml:"firmwareVersion"`
	Key              string `json:"key" yaml:"key"`
	PassiveMode      bool   `json:"passiveMode" yaml:"passiveMode"`
}

// NetworkInfo is the host network probe's state, passed through as-is.
type NetworkInfo map[string]any

// ClickFlags are the transient click classification flags reported
// alongside a buttonSingleOrDoubleClickOrHold event.
type ClickFlags struct {
	IsSingleClick bool `json:"isSingleClick"`
	IsDoubleClick bool `json:"isDoubleClick"`
	IsHold        bool `json:"isHold"`
}

// Action resolves the flags to a label. Single wins over double, double over hold.
func (f ClickFlags) Action() string {
	switch {
	case f.IsSingleClick:
		return "single"
	case f.IsDoubleClick:
		return "double"
	default:
		return "hold"
	}
}

// Event is one notification raised by the device manager.
type Event struct {
	Kind   EventKind
	Button Button
	Click  ClickFlags
}

// Handler receives events. Handlers run on the publisher's goroutine and must not block.
type Handler func(Event)

// Subscription is the opaque handle returned by Subscribe.
type Subscription struct {
	id   uint64
	kind EventKind
}

// Kind reports the event kind the subscription was registered for.
func (s Subscription) Kind() EventKind { return s.kind }

// DeviceManager is the button manager collaborator.
type DeviceManager interface {
	Subscribe(kind EventKind, h Handler) Subscription
	Unsubscribe(sub Subscription) bool
	ListButtons(ctx context.Context) ([]Button, error)
	GetButton(ctx context.Context, bdaddr string) (Button, error)
}

// NetworkProbe is the host network status collaborator.
type NetworkProbe interface {
	GetState(ctx context.Context) (NetworkInfo, error)
}

// Emitter is implemented by backends that accept injected events.
type Emitter interface {
	Emit(ctx context.Context, kind EventKind, bdaddr string, flags ClickFlags) error
}

// Hub bundles both collaborators, which every backend provides.
type Hub interface {
	DeviceManager
	NetworkProbe
}
