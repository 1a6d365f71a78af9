package relay

import (
	"errors"
	"strings"

	"flichub/internal/hub"
)

// Commands accepted from clients, one per line.
const (
	CommandButtons = "buttons"
	CommandNetwork = "network"
	CommandServer  = "server"
	CommandBattery = "battery" // battery;<bdaddr>
	CommandPing    = "ping"
	CommandUnknown = "unknown"

	batteryPrefix = CommandBattery + ";"
)

// HandleInput processes a buffer of newline separated commands in order.
// Blank lines are skipped; each line is trimmed before matching.
func (s *Session) HandleInput(buf string) {
	for _, line := range strings.Split(buf, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > MaxMessageSize {
			s.logger.Warn("message_too_large",
				"size", len(line),
				"max_size", MaxMessageSize,
			)
			continue
		}
		if !s.limiter.Allow() {
			s.logger.Warn("rate_limit_exceeded", "command", line)
			continue
		}
		s.logger.Debug("received_message", "message", line)
		s.dispatch(line)
	}
}

func (s *Session) dispatch(line string) {
	switch {
	case line == CommandButtons:
		s.sendButtons()
	case line == CommandNetwork:
		s.sendNetworkInfo()
	case line == CommandServer:
		s.sendServerInfo()
	case line == CommandPing:
		s.reply(PongReply)
	case strings.HasPrefix(line, batteryPrefix):
		s.sendBatteryStatus(strings.TrimSpace(strings.TrimPrefix(line, batteryPrefix)))
	default:
		s.logger.Warn("unknown_command", "command", line)
		if s.opts.ReplyUnknown {
			s.respond(CommandResponse{Command: CommandUnknown, Data: line, Error: "unknown command"})
		}
	}
}

func (s *Session) sendButtons() {
	buttons, err := s.hub.ListButtons(s.ctx)
	if err != nil {
		s.respondError(CommandButtons, err)
		return
	}
	if buttons == nil {
		buttons = []hub.Button{}
	}
	s.respond(CommandResponse{Command: CommandButtons, Data: buttons})
}

func (s *Session) sendNetworkInfo() {
	info, err := s.hub.GetState(s.ctx)
	if err != nil {
		s.respondError(CommandNetwork, err)
		return
	}
	s.respond(CommandResponse{Command: CommandNetwork, Data: info})
}

func (s *Session) sendServerInfo() {
	s.respond(CommandResponse{Command: CommandServer, Data: ServerInfo{Version: Version}})
}

func (s *Session) sendBatteryStatus(bdaddr string) {
	button, err := s.hub.GetButton(s.ctx, bdaddr)
	if errors.Is(err, hub.ErrButtonNotFound) {
		s.logger.Warn("battery_unknown_button", "bdaddr", bdaddr)
		s.respond(CommandResponse{Command: CommandBattery, Data: nil, Error: hub.ErrButtonNotFound.Error()})
		return
	}
	if err != nil {
		s.respondError(CommandBattery, err)
		return
	}
	s.respond(CommandResponse{Command: CommandBattery, Data: button.BatteryStatus})
}

func (s *Session) respondError(command string, err error) {
	s.logger.Error("command_failed",
		"command", command,
		"error", err.Error(),
	)
	s.respond(CommandResponse{Command: command, Data: nil, Error: err.Error()})
}

func (s *Session) respond(resp CommandResponse) {
	data, err := resp.ToJSON()
	if err != nil {
		s.logger.Error("failed_to_marshal_response",
			"command", resp.Command,
			"error", err.Error(),
		)
		return
	}
	s.reply(data)
}
