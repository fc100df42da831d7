// Package config defines service configuration and its loading.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3001".
	Addr string `koanf:"addr"`

	// Port, when set, overrides Addr with ":<port>".
	Port int `koanf:"port"`

	// AllowedOrigin is the single browser origin allowed by CORS and the
	// websocket origin check. "*" allows any origin.
	AllowedOrigin string `koanf:"allowed_origin"`

	// APIPrefix is the path prefix of the REST endpoints.
	APIPrefix string `koanf:"api_prefix"`

	// DispatchShards is the number of ordered draw-event shards.
	DispatchShards int `koanf:"dispatch_shards"`

	// DispatchQueueSize bounds each shard's queue.
	DispatchQueueSize int `koanf:"dispatch_queue_size"`

	// SessionSendBuffer bounds the outbound frames buffered per session.
	SessionSendBuffer int `koanf:"session_send_buffer"`

	// WSWriteTimeoutMS bounds one websocket frame write.
	WSWriteTimeoutMS int `koanf:"ws_write_timeout_ms"`

	// WSPongTimeoutMS is how long a silent session is kept alive.
	WSPongTimeoutMS int `koanf:"ws_pong_timeout_ms"`

	// WSMaxMessageBytes caps inbound websocket messages.
	WSMaxMessageBytes int64 `koanf:"ws_max_message_bytes"`

	// SeedDemoData loads the demo blueprints at start.
	SeedDemoData bool `koanf:"seed_demo_data"`

	// MDNSAdvertise announces the service on the local network.
	MDNSAdvertise bool `koanf:"mdns_advertise"`

	// MDNSInstance is the advertised instance name; empty uses the hostname.
	MDNSInstance string `koanf:"mdns_instance"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":3001",
		AllowedOrigin:     "http://localhost:5173",
		APIPrefix:         "/api",
		DispatchShards:    runtime.NumCPU(),
		DispatchQueueSize: 1024,
		SessionSendBuffer: 64,
		WSWriteTimeoutMS:  10_000,
		WSPongTimeoutMS:   60_000,
		WSMaxMessageBytes: 64 << 10,
		SeedDemoData:      true,
	}
}

// WSWriteTimeout returns WSWriteTimeoutMS as a duration.
func (c *Config) WSWriteTimeout() time.Duration {
	return time.Duration(c.WSWriteTimeoutMS) * time.Millisecond
}

// WSPongTimeout returns WSPongTimeoutMS as a duration.
func (c *Config) WSPongTimeout() time.Duration {
	return time.Duration(c.WSPongTimeoutMS) * time.Millisecond
}
