package relay

import (
	"log/slog"
	"time"
)

const (
	DefaultIdlePulseDelay = 100 * time.Millisecond
	DefaultSendQueueSize  = 64
	DefaultWriteTimeout   = 10 * time.Second
	DefaultCloseGrace     = time.Second
	MaxMessageSize        = 64 * 1024 // longest accepted command line
)

// Options tune per-session behaviour. The zero value disables every optional feature.
type Options struct {
	// IdlePulse follows every single/double/hold message with synthetic
	// down and up events, then an idle event after IdlePulseDelay.
	IdlePulse      bool
	IdlePulseDelay time.Duration

	// RefreshInterval, when > 0, pushes the button list on a ticker.
	RefreshInterval time.Duration

	// ReplyUnknown answers unrecognised commands instead of dropping them.
	ReplyUnknown bool

	// RateLimit is commands per second; <= 0 means unlimited.
	RateLimit float64
	RateBurst int

	// IdleTimeout closes a connection that sends nothing for this long; 0 disables it.
	IdleTimeout  time.Duration
	WriteTimeout time.Duration

	SendQueueSize int

	// CloseGrace bounds how long Close lets the writer flush before the
	// transport is closed under it.
	CloseGrace time.Duration

	Logger *slog.Logger
}

// DefaultOptions enables the idle pulse with a 100ms delay and no refresh ticker.
func DefaultOptions() Options {
	return Options{
		IdlePulse:      true,
		IdlePulseDelay: DefaultIdlePulseDelay,
		RateBurst:      1,
		WriteTimeout:   DefaultWriteTimeout,
		SendQueueSize:  DefaultSendQueueSize,
		CloseGrace:     DefaultCloseGrace,
	}
}

func (o Options) withDefaults() Options {
	if o.IdlePulseDelay <= 0 {
		o.IdlePulseDelay = DefaultIdlePulseDelay
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = DefaultSendQueueSize
	}
	if o.CloseGrace <= 0 {
		o.CloseGrace = DefaultCloseGrace
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
