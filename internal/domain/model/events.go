package model

import "encoding/json"

// Realtime event names. These are part of the wire contract with existing clients.
const (
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventDraw            = "draw-event"
	EventBlueprintUpdate = "blueprint-update"
)

// Frame is the JSON envelope of every websocket text message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DrawEvent is the payload of a draw-event frame.
type DrawEvent struct {
	Room   string `json:"room"`
	Author string `json:"author"`
	Name   string `json:"name"`
	Point  Point  `json:"point"`
}

// BlueprintUpdate is the payload of a blueprint-update frame. Points is the
// full current sequence, never a delta.
type BlueprintUpdate struct {
	Author string  `json:"author"`
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// EncodeFrame marshals payload and wraps it in a Frame.
func EncodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: data})
}
