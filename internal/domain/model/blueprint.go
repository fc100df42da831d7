// Package model contains domain models passed between layers.
package model

import "strings"

// roomPrefix is the fixed first segment of every room identifier.
const roomPrefix = "blueprints"

// Point is an opaque coordinate pair. The core never interprets it geometrically.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Blueprint is an ordered sequence of points owned by (Author, Name).
type Blueprint struct {
	Author string  `json:"author"`
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Room returns the broadcast room for b.
func (b Blueprint) Room() string {
	return RoomName(b.Author, b.Name)
}

// Clone returns a deep copy of b. Points is never nil in the copy.
func (b Blueprint) Clone() Blueprint {
	return Blueprint{Author: b.Author, Name: b.Name, Points: ClonePoints(b.Points)}
}

// ClonePoints copies pts into a fresh non-nil slice.
func ClonePoints(pts []Point) []Point {
	out := make([]Point, len(pts))
	copy(out, pts)
	return out
}

// RoomName derives the room identifier for a blueprint: "blueprints.<author>.<name>".
func RoomName(author, name string) string {
	var b strings.Builder
	b.Grow(len(roomPrefix) + len(author) + len(name) + 2)
	b.WriteString(roomPrefix)
	b.WriteByte('.')
	b.WriteString(author)
	b.WriteByte('.')
	b.WriteString(name)
	return b.String()
}
