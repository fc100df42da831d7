// Package ws serves the realtime endpoint over gorilla/websocket.
//
// Every text message is a JSON frame {"event": ..., "data": ...}. Clients
// send join-room, leave-room and draw-event; the server only ever sends
// blueprint-update.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/okian/blueprints/internal/domain/model"
	"github.com/okian/blueprints/internal/domain/room"
	"github.com/okian/blueprints/pkg/logger"
	"github.com/okian/blueprints/pkg/metrics"
)

// ErrClosed is returned by CloseAll when called twice.
var ErrClosed = errors.New("ws handler closed")

// Protocol is the membership side of the synchronization protocol.
type Protocol interface {
	Join(ctx context.Context, sub room.Subscriber, roomName string) error
	Leave(ctx context.Context, sub room.Subscriber, roomName string)
	Disconnect(ctx context.Context, sub room.Subscriber) int
}

// Dispatcher queues draw events for ordered, per-room application. Submit
// may block until the event is accepted.
type Dispatcher interface {
	Submit(ctx context.Context, ev model.DrawEvent) error
}

// Handler upgrades requests to websocket sessions and tracks them.
type Handler struct {
	protocol   Protocol
	dispatcher Dispatcher
	upgrader   websocket.Upgrader

	allowedOrigin   string
	sendBuffer      int
	writeTimeout    time.Duration
	pongTimeout     time.Duration
	maxMessageBytes int64

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup

	logger logger.Logger
}

// NewHandler creates a websocket handler.
func NewHandler(p Protocol, d Dispatcher, opts ...Option) *Handler {
	h := &Handler{
		protocol:        p,
		dispatcher:      d,
		allowedOrigin:   "*",
		sendBuffer:      defaultSendBuffer,
		writeTimeout:    defaultWriteTimeout,
		pongTimeout:     defaultPongTimeout,
		maxMessageBytes: defaultMaxMessageBytes,
		sessions:        make(map[string]*Session),
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	return origin == h.allowedOrigin
}

// ServeHTTP upgrades the request and starts the session pumps.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.RecordErrorByComponent("ws", "upgrade")
		h.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	// The request context ends when ServeHTTP returns.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	id := uuid.NewString()
	s := &Session{
		id:     id,
		conn:   conn,
		h:      h,
		send:   make(chan []byte, h.sendBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
		logger: h.logger.With(logger.String("session", id)),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		_ = conn.Close()
		return
	}
	h.sessions[id] = s
	h.wg.Add(2)
	h.mu.Unlock()

	metrics.RecordSessionOpened()
	s.logger.Debug(r.Context(), "session connected", logger.String("remote", r.RemoteAddr))

	go s.writePump(ctx)
	go s.readPump(ctx)
}

func (h *Handler) remove(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()
}

// SessionCount returns the number of connected sessions.
func (h *Handler) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// CloseAll sends a going-away close frame to every session, disconnects
// them and waits for their pumps to exit or ctx to expire. New upgrades are
// refused afterwards.
func (h *Handler) CloseAll(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, s := range sessions {
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeTimeout))
		s.close(ctx, "shutdown")
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		h.logger.Info(ctx, "websocket sessions closed", logger.Int("sessions", len(sessions)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
