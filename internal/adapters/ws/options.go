package ws

import (
	"time"

	"github.com/okian/blueprints/pkg/logger"
)

// Default session settings.
const (
	defaultSendBuffer      = 64
	defaultWriteTimeout    = 10 * time.Second
	defaultPongTimeout     = 60 * time.Second
	defaultMaxMessageBytes = 64 << 10
)

// Option configures a Handler.
type Option func(*Handler)

// WithAllowedOrigin sets the only browser origin allowed to upgrade. "*"
// accepts any origin. Requests without an Origin header are always accepted.
func WithAllowedOrigin(origin string) Option {
	return func(h *Handler) {
		h.allowedOrigin = origin
	}
}

// WithSendBuffer sets the per-session outbound frame buffer.
func WithSendBuffer(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithWriteTimeout bounds a single frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithPongTimeout sets how long a session may stay silent before it is
// considered gone. Pings go out at nine tenths of this interval.
func WithPongTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.pongTimeout = d
		}
	}
}

// WithMaxMessageBytes caps inbound message size.
func WithMaxMessageBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxMessageBytes = n
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}
