package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/blueprints/internal/adapters/mq/queue"
	"github.com/okian/blueprints/internal/domain/model"
	"github.com/okian/blueprints/internal/domain/protocol"
	"github.com/okian/blueprints/pkg/logger"
	"github.com/okian/blueprints/pkg/metrics"
)

// Session is one live websocket connection. It implements room.Subscriber.
//
// The send channel is never closed; done signals the write pump instead, so
// a concurrent Send can never panic on a closed channel.
type Session struct {
	id     string
	conn   *websocket.Conn
	h      *Handler
	send   chan []byte
	done   chan struct{}
	cancel context.CancelFunc // releases a read pump waiting on the dispatcher
	once   sync.Once
	logger logger.Logger
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Send queues frame for the write pump. It reports false when the session
// is closed or its buffer is full; the frame is then lost for this session.
func (s *Session) Send(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

// close runs the Disconnected transition exactly once.
func (s *Session) close(ctx context.Context, reason string) {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
		rooms := s.h.protocol.Disconnect(ctx, s)
		s.h.remove(s)
		s.cancel()
		metrics.RecordSessionClosed()
		s.logger.Debug(ctx, "session closed",
			logger.String("reason", reason),
			logger.Int("rooms_left", rooms),
		)
	})
}

func (s *Session) readPump(ctx context.Context) {
	defer s.h.wg.Done()

	s.conn.SetReadLimit(s.h.maxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.h.pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.h.pongTimeout))
	})

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			reason := "read_error"
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				reason = "client_closed"
			} else {
				metrics.RecordErrorByComponent("ws", "read")
			}
			s.close(ctx, reason)
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.h.pongTimeout))
		if kind != websocket.TextMessage {
			continue
		}
		s.handle(ctx, data)
	}
}

func (s *Session) writePump(ctx context.Context) {
	defer s.h.wg.Done()

	ticker := time.NewTicker(s.h.pongTimeout * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				metrics.RecordErrorByComponent("ws", "write")
				s.close(ctx, "write_error")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close(ctx, "ping_error")
				return
			}
		}
	}
}

// handle applies one client frame. Malformed input is logged and dropped;
// nothing is ever sent back to the client.
func (s *Session) handle(ctx context.Context, data []byte) {
	var f model.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		metrics.RecordErrorByComponent("ws", "bad_frame")
		s.logger.Debug(ctx, "malformed frame", logger.Error(err))
		return
	}

	switch f.Event {
	case model.EventJoinRoom, model.EventLeaveRoom:
		var roomName string
		if err := json.Unmarshal(f.Data, &roomName); err != nil {
			metrics.RecordErrorByComponent("ws", "bad_room")
			s.logger.Debug(ctx, "room payload is not a string", logger.String("event", f.Event))
			return
		}
		if f.Event == model.EventLeaveRoom {
			s.h.protocol.Leave(ctx, s, roomName)
			return
		}
		if err := s.h.protocol.Join(ctx, s, roomName); err != nil {
			s.logger.Debug(ctx, "join rejected", logger.Error(err))
		}

	case model.EventDraw:
		var ev model.DrawEvent
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			metrics.RecordDrawDropped("invalid")
			s.logger.Debug(ctx, "malformed draw event", logger.Error(err))
			return
		}
		if err := protocol.Validate(ev); err != nil {
			metrics.RecordDrawDropped("invalid")
			s.logger.Debug(ctx, "invalid draw event", logger.Error(err))
			return
		}
		// Submit waits while the room's shard is full, which pauses reads on
		// this connection only.
		if err := s.h.dispatcher.Submit(ctx, ev); err != nil {
			reason := "disconnected"
			if errors.Is(err, queue.ErrClosed) {
				reason = "shutting_down"
			}
			metrics.RecordDrawDropped(reason)
			s.logger.Warn(ctx, "draw event not queued",
				logger.String("room", ev.Room),
				logger.Error(err),
			)
		}

	default:
		metrics.RecordErrorByComponent("ws", "unknown_event")
		s.logger.Debug(ctx, "unknown event", logger.String("event", f.Event))
	}
}
