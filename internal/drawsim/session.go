package drawsim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/okian/blueprints/internal/domain/model"
)

// clientSession is one simulated browser tab.
type clientSession struct {
	id   int
	conn *websocket.Conn
	room string

	writeMu sync.Mutex

	mu        sync.Mutex
	updates   int
	last      []model.Point
	shrunk    bool // a later update carried fewer points than an earlier one
	changed   chan<- struct{} // shared by all sessions of a run
	readErr   error
	readDone  chan struct{}
	closeOnce sync.Once
}

func dialSession(ctx context.Context, cfg *Config, id int, roomName string, changed chan<- struct{}) (*clientSession, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.Timeout}
	header := http.Header{}
	if cfg.Origin != "" {
		header.Set("Origin", cfg.Origin)
	}
	conn, resp, err := dialer.DialContext(ctx, cfg.WebsocketURL(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("session %d: dial: %w (status %d)", id, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("session %d: dial: %w", id, err)
	}
	s := &clientSession{
		id:       id,
		conn:     conn,
		room:     roomName,
		changed:  changed,
		readDone: make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *clientSession) send(event string, payload any) error {
	frame, err := model.EncodeFrame(event, payload)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *clientSession) join() error {
	return s.send(model.EventJoinRoom, s.room)
}

func (s *clientSession) draw(author, name string, p model.Point) error {
	return s.send(model.EventDraw, model.DrawEvent{Room: s.room, Author: author, Name: name, Point: p})
}

func (s *clientSession) readLoop() {
	defer close(s.readDone)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}
		var f model.Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Event != model.EventBlueprintUpdate {
			continue
		}
		var u model.BlueprintUpdate
		if err := json.Unmarshal(f.Data, &u); err != nil {
			continue
		}

		s.mu.Lock()
		if len(u.Points) < len(s.last) {
			s.shrunk = true
		}
		s.last = u.Points
		s.updates++
		s.mu.Unlock()

		select {
		case s.changed <- struct{}{}:
		default:
		}
	}
}

// snapshot returns the last sequence seen and the update count.
func (s *clientSession) snapshot() ([]model.Point, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.updates, s.shrunk
}

func (s *clientSession) close() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		_ = s.conn.Close()
		<-s.readDone
	})
}
