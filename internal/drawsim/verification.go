package drawsim

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/okian/blueprints/internal/domain/model"
)

// ErrDiverged means at least one session ended on a different sequence.
var ErrDiverged = errors.New("sessions did not converge")

func verify(stats *Stats, sessions []*clientSession, expected []model.Point) error {
	if want := stats.PointsSent; len(expected) != want {
		return fmt.Errorf("%w: stored %d points, sent %d", ErrDiverged, len(expected), want)
	}
	for _, s := range sessions {
		last, _, shrunk := s.snapshot()
		if shrunk {
			return fmt.Errorf("%w: session %d saw the sequence shrink", ErrDiverged, s.id)
		}
		if !pointsEqual(last, expected) {
			return fmt.Errorf("%w: session %d ended with %d points, stored %d", ErrDiverged, s.id, len(last), len(expected))
		}
	}
	return nil
}

func pointsEqual(a, b []model.Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PrintStats writes a human readable summary to stdout.
func PrintStats(stats *Stats) {
	if stats == nil {
		return
	}
	out := "\nDraw simulation\n===============\n" +
		"blueprint:        " + stats.Author + "/" + stats.Name + "\n" +
		"sessions:         " + strconv.Itoa(stats.Sessions) + "\n" +
		"points sent:      " + strconv.Itoa(stats.PointsSent) + "\n" +
		"draw errors:      " + strconv.Itoa(stats.DrawErrors) + "\n" +
		"stored points:    " + strconv.Itoa(stats.StoredPoints) + "\n" +
		"updates received: " + strconv.Itoa(stats.UpdatesReceived) + "\n" +
		"converged:        " + strconv.Itoa(stats.Converged) + "/" + strconv.Itoa(stats.Sessions) + "\n" +
		"duration:         " + stats.Duration.String() + "\n"
	_, _ = os.Stdout.WriteString(out)
}
