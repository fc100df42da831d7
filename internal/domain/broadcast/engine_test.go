package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/okian/blueprints/internal/domain/model"
	"github.com/okian/blueprints/internal/domain/room"
	. "github.com/smartystreets/goconvey/convey"
)

type recordingSub struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func (r *recordingSub) ID() string { return r.id }

func (r *recordingSub) Send(frame []byte) bool {
	if r.full {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	return true
}

func (r *recordingSub) received() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.frames...)
}

func TestEnginePublish(t *testing.T) {
	Convey("Given two subscribers in one room and one elsewhere", t, func() {
		ctx := context.Background()
		dir := room.NewDirectory()
		a := &recordingSub{id: "a"}
		b := &recordingSub{id: "b"}
		other := &recordingSub{id: "other"}
		roomName := model.RoomName("juan", "plano-3")
		dir.Join(a, roomName)
		dir.Join(b, roomName)
		dir.Join(other, model.RoomName("maria", "x"))

		engine := NewEngine(dir)

		Convey("When publishing a blueprint update", func() {
			payload := model.BlueprintUpdate{Author: "juan", Name: "plano-3", Points: []model.Point{{X: 1, Y: 1}}}
			res, err := engine.Publish(ctx, roomName, model.EventBlueprintUpdate, payload)

			Convey("Then both members receive the identical frame", func() {
				So(err, ShouldBeNil)
				So(res.Delivered, ShouldEqual, 2)
				So(res.Dropped, ShouldBeEmpty)
				So(len(a.received()), ShouldEqual, 1)
				So(string(a.received()[0]), ShouldEqual, string(b.received()[0]))

				var frame model.Frame
				So(json.Unmarshal(a.received()[0], &frame), ShouldBeNil)
				So(frame.Event, ShouldEqual, model.EventBlueprintUpdate)
				var upd model.BlueprintUpdate
				So(json.Unmarshal(frame.Data, &upd), ShouldBeNil)
				So(upd.Points, ShouldResemble, []model.Point{{X: 1, Y: 1}})
			})

			Convey("And the subscriber of another room receives nothing", func() {
				So(other.received(), ShouldBeEmpty)
			})
		})

		Convey("When a subscriber cannot accept the frame", func() {
			b.full = true
			res, err := engine.Publish(ctx, roomName, model.EventBlueprintUpdate, model.BlueprintUpdate{})

			Convey("Then it is reported as dropped and the others still receive", func() {
				So(err, ShouldBeNil)
				So(res.Delivered, ShouldEqual, 1)
				So(res.Dropped, ShouldResemble, []string{"b"})
			})
		})

		Convey("When publishing to an empty room", func() {
			res, err := engine.Publish(ctx, "blueprints.nobody.here", model.EventBlueprintUpdate, model.BlueprintUpdate{})

			Convey("Then nothing is delivered and no error is returned", func() {
				So(err, ShouldBeNil)
				So(res.Delivered, ShouldEqual, 0)
			})
		})

		Convey("When the payload cannot be encoded", func() {
			_, err := engine.Publish(ctx, roomName, "bad", make(chan int))

			Convey("Then an error is returned and nothing is sent", func() {
				So(err, ShouldNotBeNil)
				So(a.received(), ShouldBeEmpty)
			})
		})
	})
}

func lastPoints(frames [][]byte) []model.Point {
	var frame model.Frame
	So(json.Unmarshal(frames[len(frames)-1], &frame), ShouldBeNil)
	var upd model.BlueprintUpdate
	So(json.Unmarshal(frame.Data, &upd), ShouldBeNil)
	return upd.Points
}

func TestEngineFullStateRecovery(t *testing.T) {
	Convey("Given a subscriber whose buffer is full during a burst", t, func() {
		ctx := context.Background()
		dir := room.NewDirectory()
		fast := &recordingSub{id: "fast"}
		slow := &recordingSub{id: "slow"}
		roomName := model.RoomName("juan", "plano-3")
		dir.Join(fast, roomName)
		dir.Join(slow, roomName)
		engine := NewEngine(dir)

		var points []model.Point
		publish := func(x int) Result {
			points = append(points, model.Point{X: x, Y: x})
			res, err := engine.Publish(ctx, roomName, model.EventBlueprintUpdate,
				model.BlueprintUpdate{Author: "juan", Name: "plano-3", Points: model.ClonePoints(points)})
			So(err, ShouldBeNil)
			return res
		}

		publish(1)
		slow.full = true
		missed := publish(2)
		missed2 := publish(3)

		Convey("When the burst ends on frames the slow subscriber missed", func() {
			Convey("Then it is stale while the other subscriber is current", func() {
				So(missed.Dropped, ShouldResemble, []string{"slow"})
				So(missed2.Dropped, ShouldResemble, []string{"slow"})
				So(len(lastPoints(slow.received())), ShouldEqual, 1)
				So(lastPoints(fast.received()), ShouldResemble, points)
			})
		})

		Convey("When its buffer drains and the next update is published", func() {
			slow.full = false
			res := publish(4)

			Convey("Then that single full-state frame brings it level with everyone", func() {
				So(res.Dropped, ShouldBeEmpty)
				So(len(slow.received()), ShouldEqual, 2)
				So(lastPoints(slow.received()), ShouldResemble, points)
				So(lastPoints(slow.received()), ShouldResemble, lastPoints(fast.received()))
			})
		})
	})
}
