// Package drawsim drives a running blueprints server the way a room full of
// browser tabs would, and checks that every session converges on the
// stored sequence.
package drawsim

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults used by the draw-sim command.
const (
	DefaultBaseURL   = "http://localhost:3001"
	DefaultPrefix    = "/api"
	DefaultSessions  = 4
	DefaultPoints    = 50
	DefaultTimeout   = 10 * time.Second
	DefaultSettle    = 5 * time.Second
	defaultCanvasMax = 800
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid draw-sim config")

// Config holds the simulation parameters.
type Config struct {
	BaseURL          string        // server base URL, http or https
	APIPrefix        string        // REST prefix on the server
	Origin           string        // Origin header sent on the websocket handshake
	Author           string        // blueprint author; generated when empty
	Name             string        // blueprint name; generated when empty
	Sessions         int           // concurrent websocket sessions
	PointsPerSession int           // points drawn by each session
	Interval         time.Duration // pause between two draws of one session
	Timeout          time.Duration // HTTP request and dial timeout
	Settle           time.Duration // how long to wait for convergence
	Keep             bool          // keep the blueprint after the run
	Verbose          bool
}

// Validate checks the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: base URL %q must be http(s)://host[:port]", ErrInvalidConfig, c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.APIPrefix == "" {
		c.APIPrefix = DefaultPrefix
	}
	c.APIPrefix = "/" + strings.Trim(c.APIPrefix, "/")
	if c.Sessions < 1 {
		return fmt.Errorf("%w: sessions must be positive", ErrInvalidConfig)
	}
	if c.PointsPerSession < 1 {
		return fmt.Errorf("%w: points must be positive", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Settle <= 0 {
		c.Settle = DefaultSettle
	}
	return nil
}

// WebsocketURL returns the realtime endpoint derived from BaseURL.
func (c *Config) WebsocketURL() string {
	if strings.HasPrefix(c.BaseURL, "https://") {
		return "wss://" + strings.TrimPrefix(c.BaseURL, "https://") + "/ws"
	}
	return "ws://" + strings.TrimPrefix(c.BaseURL, "http://") + "/ws"
}

// Stats summarizes one run.
type Stats struct {
	Author          string
	Name            string
	Sessions        int
	PointsSent      int
	DrawErrors      int
	StoredPoints    int
	UpdatesReceived int
	Converged       int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
