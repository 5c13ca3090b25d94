// Package mapper translates between the payloads of each remote store and
// the canonical entities in domain. Every conversion is pure: values that
// need a remote lookup (label titles, relation titles, dependency titles)
// are filled on the payload structs by the adapters before mapping.
package mapper

import (
	"errors"
	"fmt"
	"math"
	"time"

	"tasksync/internal/timecube"
)

// ErrMissingField is wrapped when a required payload field is absent.
var ErrMissingField = errors.New("mapper: required field missing")

func missing(kind, field string) error {
	return fmt.Errorf("%w: %s.%s", ErrMissingField, kind, field)
}

// Mapper holds the display zone and the reference instant used to place
// year-less labels such as "Week 9".
type Mapper struct {
	tz  string
	loc *time.Location
	ref timecube.Instant
}

// New returns a Mapper for tz. A zero ref means "now".
func New(tz string, ref timecube.Instant) (*Mapper, error) {
	if tz == "" {
		tz = timecube.DefaultTZ
	}
	loc, err := timecube.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	if ref.IsZero() {
		ref = timecube.FromTime(time.Now(), loc)
	}
	return &Mapper{tz: tz, loc: loc, ref: ref.In(loc)}, nil
}

// TZ returns the display zone name.
func (m *Mapper) TZ() string { return m.tz }

func (m *Mapper) parse(raw string) (timecube.Instant, error) {
	return timecube.Parse(raw, m.tz)
}

const msPerMinute = 60000

func msToMinutes(ms int64) int      { return int(ms / msPerMinute) }
func minutesToMs(minutes int) int64 { return int64(minutes) * msPerMinute }

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
