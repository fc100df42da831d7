// Package broadcast fans encoded frames out to every subscriber of a room.
//
// Delivery is at-most-once and best-effort: a subscriber that is not in the
// room at publish time, or whose outbound buffer is full, never sees the
// frame. There is no retry and no backfill for late joiners.
package broadcast

import (
	"context"
	"fmt"

	"github.com/okian/blueprints/internal/domain/model"
	"github.com/okian/blueprints/internal/domain/room"
	"github.com/okian/blueprints/pkg/logger"
	"github.com/okian/blueprints/pkg/metrics"
)

// Directory is the read side of the room directory the engine needs.
type Directory interface {
	Subscribers(room string) []room.Subscriber
}

// Result reports the fan-out outcome of one publish.
type Result struct {
	Room      string
	Delivered int
	Dropped   []string // ids of subscribers that missed the frame
	Bytes     int
}

// Engine publishes events to rooms.
type Engine struct {
	rooms  Directory
	logger logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an engine reading membership from rooms.
func NewEngine(rooms Directory, opts ...Option) *Engine {
	e := &Engine{rooms: rooms, logger: logger.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Publish encodes payload under event once and hands the frame to every
// current subscriber of roomName, the triggering connection included.
// Callers that need per-room ordering must serialize their Publish calls.
func (e *Engine) Publish(ctx context.Context, roomName, event string, payload any) (Result, error) {
	frame, err := model.EncodeFrame(event, payload)
	if err != nil {
		metrics.RecordErrorByComponent("broadcast", "encode")
		return Result{}, fmt.Errorf("broadcast: encode %s: %w", event, err)
	}

	res := Result{Room: roomName, Bytes: len(frame)}
	for _, sub := range e.rooms.Subscribers(roomName) {
		if sub.Send(frame) {
			res.Delivered++
			continue
		}
		res.Dropped = append(res.Dropped, sub.ID())
	}

	metrics.RecordBroadcast(res.Bytes, res.Delivered, len(res.Dropped))
	if len(res.Dropped) > 0 {
		e.logger.Warn(ctx, "subscribers missed a frame",
			logger.String("room", roomName),
			logger.String("event", event),
			logger.Any("dropped", res.Dropped),
		)
	}
	return res, nil
}
