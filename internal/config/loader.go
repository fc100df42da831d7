package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix = "BLUEPRINTS_"
	EnvConfig = "BLUEPRINTS_CONFIG"
	EnvPort   = "PORT"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if BLUEPRINTS_CONFIG is set
//  3. env (prefix BLUEPRINTS_)
//  4. PORT, which replaces addr with ":<PORT>"
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// BLUEPRINTS_DISPATCH_SHARDS -> dispatch_shards (flat keys)
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		if s == "CONFIG" {
			return ""
		}
		return strings.ToLower(s)
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	portProvider := env.Provider("", ".", func(s string) string {
		if s == EnvPort {
			return "port"
		}
		return ""
	})
	if err := k.Load(portProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, EnvPort, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if cfg.Port != 0 {
		cfg.Addr = ":" + strconv.Itoa(cfg.Port)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.AllowedOrigin == "":
		return fmt.Errorf("%w: allowed_origin must not be empty", ErrInvalidConfig)
	case c.DispatchShards < 1:
		return fmt.Errorf("%w: dispatch_shards must be positive", ErrInvalidConfig)
	case c.DispatchQueueSize < 1:
		return fmt.Errorf("%w: dispatch_queue_size must be positive", ErrInvalidConfig)
	case c.SessionSendBuffer < 1:
		return fmt.Errorf("%w: session_send_buffer must be positive", ErrInvalidConfig)
	case c.WSWriteTimeoutMS < 1 || c.WSPongTimeoutMS < 1:
		return fmt.Errorf("%w: websocket timeouts must be positive", ErrInvalidConfig)
	case c.WSMaxMessageBytes < 1:
		return fmt.Errorf("%w: ws_max_message_bytes must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}
