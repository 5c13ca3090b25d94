// Package clock provides the instants sync windows are derived from.
package clock

import (
	"time"

	"tasksync/internal/timecube"
)

// System reads the wall clock and reports it in a fixed zone.
type System struct {
	loc *time.Location
}

func NewSystem(tz string) (System, error) {
	loc, err := timecube.LoadLocation(tz)
	if err != nil {
		return System{}, err
	}
	return System{loc: loc}, nil
}

func (s System) Now() timecube.Instant { return timecube.FromTime(time.Now(), s.loc) }

// Fixed always returns the same instant. Tests and backfills use it.
type Fixed struct {
	At timecube.Instant
}

func (f Fixed) Now() timecube.Instant { return f.At }
