// Package timecube normalizes the date and time encodings used by the
// upstream stores into a single comparable value.
//
// An Instant is stored in UTC. The attached location is used only for
// projections such as the calendar date or the ISO week, so two instants
// compare equal whenever they denote the same moment, whatever their zones.
package timecube

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTZ is the display zone used when none is configured.
const DefaultTZ = "America/New_York"

// ErrFormat is wrapped by every FormatError.
var ErrFormat = errors.New("timecube: unrecognized time format")

// FormatError reports input that matched none of the supported encodings.
type FormatError struct {
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("timecube: %q matches no supported encoding", e.Input)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// Instant is an absolute point in time with a display location.
type Instant struct {
	utc time.Time
	loc *time.Location
}

// offset-bearing layouts are tried before any wall-clock layout.
const layoutOffset = time.RFC3339Nano

// wall-clock layouts, in the order they are tried.
var wallLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// LoadLocation resolves a zone name, treating "" as UTC.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timecube: unknown timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Parse reads raw using the first encoding that matches. Input carrying an
// explicit offset is converted to UTC as is; anything else is read as a
// wall clock in tz.
func Parse(raw, tz string) (Instant, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return Instant{}, err
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return Instant{}, &FormatError{Input: raw}
	}
	if t, err := time.Parse(layoutOffset, s); err == nil {
		return Instant{utc: t.UTC(), loc: loc}, nil
	}
	for _, layout := range wallLayouts {
		if w, err := time.Parse(layout, s); err == nil {
			return fromWall(w, loc), nil
		}
	}
	return Instant{}, &FormatError{Input: raw}
}

// ParseLayout reads raw with a single Go layout. Layouts without a zone are
// interpreted as wall clocks in tz.
func ParseLayout(raw, layout, tz string) (Instant, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return Instant{}, err
	}
	t, err := time.Parse(layout, strings.TrimSpace(raw))
	if err != nil {
		return Instant{}, &FormatError{Input: raw}
	}
	if hasZone(layout) {
		return Instant{utc: t.UTC(), loc: loc}, nil
	}
	return fromWall(t, loc), nil
}

func hasZone(layout string) bool {
	return strings.ContainsAny(layout, "Z") || strings.Contains(layout, "-07") || strings.Contains(layout, "MST")
}

// MustParse is Parse for literals known to be valid.
func MustParse(raw, tz string) Instant {
	i, err := Parse(raw, tz)
	if err != nil {
		panic(err)
	}
	return i
}

// FromEpochMillis builds an Instant from Unix milliseconds.
func FromEpochMillis(ms int64, tz string) (Instant, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return Instant{}, err
	}
	return Instant{utc: time.UnixMilli(ms).UTC(), loc: loc}, nil
}

// FromEpochSeconds builds an Instant from Unix seconds.
func FromEpochSeconds(sec int64, tz string) (Instant, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return Instant{}, err
	}
	return Instant{utc: time.Unix(sec, 0).UTC(), loc: loc}, nil
}

// FromTime wraps t, displaying it in loc. A nil loc keeps t's own location.
func FromTime(t time.Time, loc *time.Location) Instant {
	if loc == nil {
		loc = t.Location()
	}
	return Instant{utc: t.UTC(), loc: loc}
}

// Date returns local midnight of the given calendar day in loc.
func Date(year int, month time.Month, day int, loc *time.Location) Instant {
	if loc == nil {
		loc = time.UTC
	}
	return fromWall(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), loc)
}

// fromWall places the wall-clock fields of w (its zone is ignored) in loc.
// A wall clock skipped by a forward transition takes the offset in force
// before the transition; a repeated one takes its earlier occurrence.
func fromWall(w time.Time, loc *time.Location) Instant {
	asUTC := time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), w.Nanosecond(), time.UTC)
	_, before := asUTC.Add(-24 * time.Hour).In(loc).Zone()
	_, after := asUTC.Add(24 * time.Hour).In(loc).Zone()

	var best time.Time
	for _, off := range []int{before, after} {
		cand := asUTC.Add(-time.Duration(off) * time.Second)
		if !sameWall(cand.In(loc), asUTC) {
			continue
		}
		if best.IsZero() || cand.Before(best) {
			best = cand
		}
	}
	if best.IsZero() {
		best = asUTC.Add(-time.Duration(before) * time.Second)
	}
	return Instant{utc: best, loc: loc}
}

func sameWall(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}

// IsZero reports whether i was never set.
func (i Instant) IsZero() bool { return i.utc.IsZero() }

// UTC returns the canonical instant.
func (i Instant) UTC() time.Time { return i.utc }

// Location returns the display location, UTC when unset.
func (i Instant) Location() *time.Location {
	if i.loc == nil {
		return time.UTC
	}
	return i.loc
}

// Local returns the instant in its display location.
func (i Instant) Local() time.Time { return i.utc.In(i.Location()) }

// WithTZ reassigns the display zone. The instant itself does not move.
func (i Instant) WithTZ(tz string) (Instant, error) {
	loc, err := LoadLocation(tz)
	if err != nil {
		return Instant{}, err
	}
	return Instant{utc: i.utc, loc: loc}, nil
}

// In is WithTZ for an already resolved location.
func (i Instant) In(loc *time.Location) Instant {
	return Instant{utc: i.utc, loc: loc}
}

// AtClock keeps the local calendar date and sets the wall clock.
func (i Instant) AtClock(hour, minute int) Instant {
	l := i.Local()
	w := time.Date(l.Year(), l.Month(), l.Day(), hour, minute, 0, 0, time.UTC)
	return fromWall(w, i.Location())
}

// StartOfDay returns local midnight of the same calendar date.
func (i Instant) StartOfDay() Instant { return i.AtClock(0, 0) }

// AddDays moves the local calendar date by n days, keeping the wall clock.
func (i Instant) AddDays(n int) Instant {
	l := i.Local()
	w := time.Date(l.Year(), l.Month(), l.Day()+n, l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
	return fromWall(w, i.Location())
}

// Add moves the instant by d.
func (i Instant) Add(d time.Duration) Instant {
	return Instant{utc: i.utc.Add(d), loc: i.loc}
}

func (i Instant) Equal(o Instant) bool  { return i.utc.Equal(o.utc) }
func (i Instant) Before(o Instant) bool { return i.utc.Before(o.utc) }
func (i Instant) After(o Instant) bool  { return i.utc.After(o.utc) }

// SameDate reports whether both instants fall on the same calendar date,
// each read in its own display location.
func (i Instant) SameDate(o Instant) bool { return i.Date() == o.Date() }

func (i Instant) EpochMillis() int64  { return i.utc.UnixMilli() }
func (i Instant) EpochSeconds() int64 { return i.utc.Unix() }

// Date renders the local calendar date as YYYY-MM-DD.
func (i Instant) Date() string { return i.Local().Format("2006-01-02") }

// TitleDate renders the local date as YYYY.MM.DD, used in page titles.
func (i Instant) TitleDate() string { return i.Local().Format("2006.01.02") }

// Clock renders the local wall clock as HH:MM.
func (i Instant) Clock() string { return i.Local().Format("15:04") }

// ISOWeek returns the ISO-8601 year and week of the local date.
func (i Instant) ISOWeek() (year, week int) { return i.Local().ISOWeek() }

// WeekLabel renders "Week N" for the ISO week of the local date.
func (i Instant) WeekLabel() string {
	_, w := i.ISOWeek()
	return fmt.Sprintf("Week %d", w)
}

// MonthYear renders e.g. "March 2025".
func (i Instant) MonthYear() string { return i.Local().Format("January 2006") }

// Quarter returns 1..4 for the local month.
func (i Instant) Quarter() int { return (int(i.Local().Month())-1)/3 + 1 }

// QuarterLabel renders e.g. "1Q 2025".
func (i Instant) QuarterLabel() string {
	return fmt.Sprintf("%dQ %d", i.Quarter(), i.Local().Year())
}

// Timestamp renders the UTC instant with millisecond precision.
func (i Instant) Timestamp() string { return i.utc.Format("2006-01-02T15:04:05.000Z") }

// IsMidnight reports whether the local wall clock is exactly 00:00:00.
func (i Instant) IsMidnight() bool {
	l := i.Local()
	return l.Hour() == 0 && l.Minute() == 0 && l.Second() == 0 && l.Nanosecond() == 0
}

// DateOrTimestamp renders an all-day value as a bare date and anything with
// a time of day as a full timestamp.
func (i Instant) DateOrTimestamp() string {
	if i.IsMidnight() {
		return i.Date()
	}
	return i.Timestamp()
}

// String implements fmt.Stringer.
func (i Instant) String() string {
	if i.IsZero() {
		return "<zero>"
	}
	return i.Local().Format(time.RFC3339)
}
