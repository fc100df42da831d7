// Package room tracks which connections are subscribed to which rooms.
package room

import (
	"sort"
	"sync"
)

// Subscriber is a connection that can receive encoded frames.
// Send must not block; it reports false when the frame was not accepted.
type Subscriber interface {
	ID() string
	Send(frame []byte) bool
}

// Directory maps room identifiers to subscriber sets, with a reverse index
// per subscriber so LeaveAll does not scan every room.
type Directory struct {
	mu      sync.RWMutex
	members map[string]map[string]Subscriber // room -> subscriber id -> subscriber
	joined  map[string]map[string]struct{}   // subscriber id -> rooms
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		members: make(map[string]map[string]Subscriber),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Join adds sub to room. It reports whether the membership is new.
func (d *Directory) Join(sub Subscriber, room string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.members[room]
	if !ok {
		set = make(map[string]Subscriber)
		d.members[room] = set
	}
	if _, ok := set[sub.ID()]; ok {
		return false
	}
	set[sub.ID()] = sub

	rooms, ok := d.joined[sub.ID()]
	if !ok {
		rooms = make(map[string]struct{})
		d.joined[sub.ID()] = rooms
	}
	rooms[room] = struct{}{}
	return true
}

// Leave removes sub from room. It reports whether sub was a member.
func (d *Directory) Leave(sub Subscriber, room string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.leaveLocked(sub.ID(), room)
}

// LeaveAll removes sub from every room and returns how many it left.
func (d *Directory) LeaveAll(sub Subscriber) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	rooms := d.joined[sub.ID()]
	n := 0
	for room := range rooms {
		if d.leaveLocked(sub.ID(), room) {
			n++
		}
	}
	return n
}

func (d *Directory) leaveLocked(id, room string) bool {
	set, ok := d.members[room]
	if !ok {
		return false
	}
	if _, ok := set[id]; !ok {
		return false
	}
	delete(set, id)
	if len(set) == 0 {
		delete(d.members, room)
	}
	if rooms, ok := d.joined[id]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(d.joined, id)
		}
	}
	return true
}

// Subscribers returns a snapshot of the room's members.
func (d *Directory) Subscribers(room string) []Subscriber {
	d.mu.RLock()
	defer d.mu.RUnlock()

	set := d.members[room]
	out := make([]Subscriber, 0, len(set))
	for _, sub := range set {
		out = append(out, sub)
	}
	return out
}

// Rooms returns the rooms sub has joined, sorted.
func (d *Directory) Rooms(sub Subscriber) []string {
	d.mu.RLock()
	rooms := d.joined[sub.ID()]
	out := make([]string, 0, len(rooms))
	for r := range rooms {
		out = append(out, r)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out
}

// RoomCount returns the number of rooms with at least one member.
func (d *Directory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.members)
}

// MemberCount returns the number of subscribers in room.
func (d *Directory) MemberCount(room string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.members[room])
}
