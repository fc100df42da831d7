package room

import (
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeSub struct{ id string }

func (f *fakeSub) ID() string         { return f.id }
func (f *fakeSub) Send(_ []byte) bool { return true }

func TestDirectory(t *testing.T) {
	Convey("Given an empty directory", t, func() {
		d := NewDirectory()
		a := &fakeSub{id: "a"}
		b := &fakeSub{id: "b"}

		Convey("When a subscriber joins twice", func() {
			first := d.Join(a, "blueprints.juan.plano-3")
			second := d.Join(a, "blueprints.juan.plano-3")

			Convey("Then the second join is a no-op", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				So(d.MemberCount("blueprints.juan.plano-3"), ShouldEqual, 1)
			})
		})

		Convey("When two subscribers join the same room", func() {
			d.Join(a, "r1")
			d.Join(b, "r1")

			Convey("Then both are listed", func() {
				subs := d.Subscribers("r1")
				So(len(subs), ShouldEqual, 2)
			})

			Convey("And leaving removes only the leaver", func() {
				So(d.Leave(a, "r1"), ShouldBeTrue)
				So(d.Leave(a, "r1"), ShouldBeFalse)
				subs := d.Subscribers("r1")
				So(len(subs), ShouldEqual, 1)
				So(subs[0].ID(), ShouldEqual, "b")
			})
		})

		Convey("When a subscriber joins several rooms", func() {
			d.Join(a, "r2")
			d.Join(a, "r1")
			d.Join(b, "r1")

			Convey("Then Rooms lists them sorted", func() {
				So(d.Rooms(a), ShouldResemble, []string{"r1", "r2"})
			})

			Convey("And LeaveAll clears every membership and prunes empty rooms", func() {
				So(d.LeaveAll(a), ShouldEqual, 2)
				So(d.Rooms(a), ShouldBeEmpty)
				So(d.Subscribers("r2"), ShouldBeEmpty)
				So(d.MemberCount("r1"), ShouldEqual, 1)
				So(d.RoomCount(), ShouldEqual, 1)
			})
		})

		Convey("When leaving rooms that were never joined", func() {
			Convey("Then nothing fails", func() {
				So(d.Leave(a, "nowhere"), ShouldBeFalse)
				So(d.LeaveAll(a), ShouldEqual, 0)
				So(d.Subscribers("nowhere"), ShouldBeEmpty)
			})
		})
	})
}

func TestDirectoryConcurrentAccess(t *testing.T) {
	Convey("Given many subscribers joining and leaving concurrently", t, func() {
		d := NewDirectory()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s := &fakeSub{id: fmt.Sprintf("s-%d", i)}
				d.Join(s, "shared")
				d.Join(s, fmt.Sprintf("own-%d", i))
				if i%2 == 0 {
					d.LeaveAll(s)
				}
			}(i)
		}
		wg.Wait()

		Convey("Then only the odd subscribers remain", func() {
			So(d.MemberCount("shared"), ShouldEqual, 25)
			So(d.RoomCount(), ShouldEqual, 26)
		})
	})
}
