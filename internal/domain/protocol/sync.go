// Package protocol implements the realtime synchronization contract:
// join-room, leave-room and draw-event in, blueprint-update out.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/blueprints/internal/domain/broadcast"
	"github.com/okian/blueprints/internal/domain/model"
	"github.com/okian/blueprints/internal/domain/room"
	"github.com/okian/blueprints/pkg/logger"
	"github.com/okian/blueprints/pkg/metrics"
)

// Sentinel kinds for protocol errors.
var (
	ErrInvalidRoom = errors.New("invalid room")
	ErrInvalidDraw = errors.New("invalid draw event")
)

// Appender is the slice of the blueprint store the protocol mutates.
type Appender interface {
	AppendPoint(ctx context.Context, author, name string, p model.Point) (model.Blueprint, error)
}

// Publisher fans a payload out to a room.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) (broadcast.Result, error)
}

// Sync applies protocol messages to the store, directory and broadcaster.
// It is safe for concurrent use; ordering of ApplyDraw calls for the same
// room is the caller's responsibility.
type Sync struct {
	store     Appender
	rooms     *room.Directory
	publisher Publisher
	notFound  func(error) bool
	logger    logger.Logger
}

// NewSync wires a Sync. notFound tells a missing-blueprint error apart from
// other store failures; a missing blueprint is a silent drop.
func NewSync(store Appender, rooms *room.Directory, publisher Publisher, notFound func(error) bool, l logger.Logger) *Sync {
	if l == nil {
		l = logger.Nop()
	}
	return &Sync{store: store, rooms: rooms, publisher: publisher, notFound: notFound, logger: l}
}

// Join subscribes sub to roomName.
func (s *Sync) Join(ctx context.Context, sub room.Subscriber, roomName string) error {
	if strings.TrimSpace(roomName) == "" {
		return ErrInvalidRoom
	}
	if s.rooms.Join(sub, roomName) {
		metrics.UpdateRoomsActive(s.rooms.RoomCount())
		s.logger.Debug(ctx, "joined room", logger.String("session", sub.ID()), logger.String("room", roomName))
	}
	return nil
}

// Leave unsubscribes sub from roomName.
func (s *Sync) Leave(ctx context.Context, sub room.Subscriber, roomName string) {
	if s.rooms.Leave(sub, roomName) {
		metrics.UpdateRoomsActive(s.rooms.RoomCount())
		s.logger.Debug(ctx, "left room", logger.String("session", sub.ID()), logger.String("room", roomName))
	}
}

// Disconnect drops every membership of sub. Stored blueprints are untouched.
func (s *Sync) Disconnect(ctx context.Context, sub room.Subscriber) int {
	n := s.rooms.LeaveAll(sub)
	metrics.UpdateRoomsActive(s.rooms.RoomCount())
	return n
}

// Validate checks the fields a draw event needs before it is queued.
func Validate(ev model.DrawEvent) error {
	switch {
	case strings.TrimSpace(ev.Room) == "":
		return fmt.Errorf("%w: missing room", ErrInvalidDraw)
	case ev.Author == "":
		return fmt.Errorf("%w: missing author", ErrInvalidDraw)
	case ev.Name == "":
		return fmt.Errorf("%w: missing name", ErrInvalidDraw)
	}
	return nil
}

// ApplyDraw appends the point and publishes the full sequence to ev.Room.
// A missing blueprint yields (false, nil): the event is dropped and nothing
// is published.
func (s *Sync) ApplyDraw(ctx context.Context, ev model.DrawEvent) (bool, error) {
	if err := Validate(ev); err != nil {
		metrics.RecordDrawDropped("invalid")
		return false, err
	}

	bp, err := s.store.AppendPoint(ctx, ev.Author, ev.Name, ev.Point)
	if err != nil {
		if s.notFound != nil && s.notFound(err) {
			metrics.RecordDrawDropped("not_found")
			s.logger.Debug(ctx, "draw for unknown blueprint dropped",
				logger.String("author", ev.Author),
				logger.String("name", ev.Name),
			)
			return false, nil
		}
		metrics.RecordDrawDropped("store_error")
		return false, fmt.Errorf("protocol: append %s/%s: %w", ev.Author, ev.Name, err)
	}

	update := model.BlueprintUpdate{Author: bp.Author, Name: bp.Name, Points: bp.Points}
	if _, err := s.publisher.Publish(ctx, ev.Room, model.EventBlueprintUpdate, update); err != nil {
		return true, fmt.Errorf("protocol: publish %s: %w", ev.Room, err)
	}
	return true, nil
}
