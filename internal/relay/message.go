package relay

import "encoding/json"

// Version is reported by the "server" command.
const Version = "0.2.0"

// Event names written in the "event" field.
const (
	EventButton          = "button" // down, up, single, double, hold, idle
	EventButtonConnected = "buttonConnected"
	EventButtonReady     = "buttonReady"
	EventButtonAdded     = "buttonAdded"
)

// Actions written in the "action" field of "button" events.
const (
	ActionDown   = "down"
	ActionUp     = "up"
	ActionSingle = "single"
	ActionDouble = "double"
	ActionHold   = "hold"
	ActionIdle   = "idle"
)

// CommandResponse answers a query command.
// Error is only set when the query could not be answered.
type CommandResponse struct {
	Command string `json:"command"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
}

// EventMessage is an asynchronous button notification.
type EventMessage struct {
	Event  string `json:"event"`
	Button string `json:"button"` // bdaddr
	Action string `json:"action"`
}

// ServerInfo is the data of the "server" command.
type ServerInfo struct {
	Version string `json:"version"`
}

// PongReply is written verbatim in answer to "ping".
var PongReply = []byte("pong")

func (r CommandResponse) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func (e EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
