package timecube

import (
	"errors"
	"testing"
	"time"
)

const ny = "America/New_York"

func TestParse_Encodings(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		tz   string
		want string // UTC RFC3339
	}{
		{"offset with fraction", "2025-03-01T22:30:00.000+00:00", ny, "2025-03-01T22:30:00Z"},
		{"zulu", "2025-03-01T22:30:00.123Z", ny, "2025-03-01T22:30:00Z"},
		{"fraction no offset", "2025-03-01T17:30:00.250", ny, "2025-03-01T22:30:00Z"},
		{"no fraction", "2025-03-01T17:30:00", ny, "2025-03-01T22:30:00Z"},
		{"space separated", "2025-03-01 17:30:00", ny, "2025-03-01T22:30:00Z"},
		{"bare date", "2025-03-01", ny, "2025-03-01T05:00:00Z"},
		{"bare date utc", "2025-03-01", "", "2025-03-01T00:00:00Z"},
		{"summer", "2025-07-04T12:00:00", ny, "2025-07-04T16:00:00Z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.raw, tc.tz)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.raw, err)
			}
			if s := got.UTC().Truncate(time.Second).Format(time.RFC3339); s != tc.want {
				t.Errorf("Parse(%q) = %s, want %s", tc.raw, s, tc.want)
			}
		})
	}
}

func TestParse_FormatError(t *testing.T) {
	for _, raw := range []string{"", "yesterday", "03/01/2025", "2025-13-45"} {
		_, err := Parse(raw, ny)
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("Parse(%q) err = %v, want *FormatError", raw, err)
		}
		if !errors.Is(err, ErrFormat) {
			t.Errorf("Parse(%q) err does not wrap ErrFormat", raw)
		}
	}
}

func TestParse_UnknownZone(t *testing.T) {
	if _, err := Parse("2025-03-01", "Mars/Olympus"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

func TestParse_DSTGap(t *testing.T) {
	// 02:30 does not exist in New York on 2024-03-10; the pre-transition
	// offset (-05:00) applies.
	got, err := Parse("2024-03-10T02:30:00", ny)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC)
	if !got.UTC().Equal(want) {
		t.Fatalf("gap: got %s, want %s", got.UTC(), want)
	}
	if c := got.Clock(); c != "03:30" {
		t.Errorf("gap clock = %s, want 03:30", c)
	}

	after, _ := Parse("2024-03-10T12:00:00", ny)
	if !after.UTC().Equal(time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC)) {
		t.Errorf("post-transition: got %s", after.UTC())
	}
}

func TestParse_DSTOverlapTakesEarlier(t *testing.T) {
	got, err := Parse("2024-11-03T01:30:00", ny)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 11, 3, 5, 30, 0, 0, time.UTC)
	if !got.UTC().Equal(want) {
		t.Fatalf("overlap: got %s, want %s", got.UTC(), want)
	}
}

func TestParse_OffsetIgnoresAssumedZone(t *testing.T) {
	a, err := Parse("2024-03-10T02:30:00-05:00", ny)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse("2024-03-10T02:30:00-05:00", "Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC)
	if !a.UTC().Equal(want) || !b.UTC().Equal(want) {
		t.Fatalf("offset input reinterpreted: %s / %s", a.UTC(), b.UTC())
	}
	if !a.Equal(b) {
		t.Error("instants with different display zones must compare equal")
	}
}

func TestEpochConstructors(t *testing.T) {
	ms, err := FromEpochMillis(1740868200000, ny)
	if err != nil {
		t.Fatal(err)
	}
	if got := ms.Timestamp(); got != "2025-03-01T22:30:00.000Z" {
		t.Errorf("millis = %s", got)
	}
	sec, _ := FromEpochSeconds(1740868200, ny)
	if !sec.Equal(ms) {
		t.Errorf("seconds %s != millis %s", sec, ms)
	}
	if ms.EpochMillis() != 1740868200000 {
		t.Errorf("EpochMillis = %d", ms.EpochMillis())
	}
}

func TestProjections(t *testing.T) {
	i := MustParse("2025-03-01T17:30:00", ny)
	checks := map[string]string{
		"Date":         i.Date(),
		"TitleDate":    i.TitleDate(),
		"Clock":        i.Clock(),
		"WeekLabel":    i.WeekLabel(),
		"MonthYear":    i.MonthYear(),
		"QuarterLabel": i.QuarterLabel(),
		"Timestamp":    i.Timestamp(),
	}
	want := map[string]string{
		"Date":         "2025-03-01",
		"TitleDate":    "2025.03.01",
		"Clock":        "17:30",
		"WeekLabel":    "Week 9",
		"MonthYear":    "March 2025",
		"QuarterLabel": "1Q 2025",
		"Timestamp":    "2025-03-01T22:30:00.000Z",
	}
	for k, w := range want {
		if checks[k] != w {
			t.Errorf("%s = %q, want %q", k, checks[k], w)
		}
	}
}

func TestDateOrTimestamp(t *testing.T) {
	day := MustParse("2025-03-01", ny)
	if got := day.DateOrTimestamp(); got != "2025-03-01" {
		t.Errorf("midnight: %q", got)
	}
	timed := MustParse("2025-03-01T00:00:01", ny)
	if got := timed.DateOrTimestamp(); got != "2025-03-01T05:00:01.000Z" {
		t.Errorf("non-midnight: %q", got)
	}
	// Midnight in UTC is not midnight in New York.
	utcMidnight := MustParse("2025-03-01T00:00:00Z", ny)
	if utcMidnight.IsMidnight() {
		t.Error("UTC midnight reported as local midnight")
	}
}

func TestWithTZKeepsInstant(t *testing.T) {
	i := MustParse("2025-03-01T23:30:00", ny)
	j, err := i.WithTZ("UTC")
	if err != nil {
		t.Fatal(err)
	}
	if !i.Equal(j) {
		t.Fatal("WithTZ moved the instant")
	}
	if i.Date() != "2025-03-01" || j.Date() != "2025-03-02" {
		t.Errorf("dates: %s / %s", i.Date(), j.Date())
	}
}

func TestAtClockAndAddDays(t *testing.T) {
	d := MustParse("2025-03-01", ny)
	at := d.AtClock(17, 30)
	if !at.UTC().Equal(time.Date(2025, 3, 1, 22, 30, 0, 0, time.UTC)) {
		t.Errorf("AtClock = %s", at.UTC())
	}
	if got := at.StartOfDay(); !got.Equal(d) {
		t.Errorf("StartOfDay = %s", got)
	}
	// Crosses the spring-forward boundary; wall clock is preserved.
	next := MustParse("2024-03-09T09:00:00", ny).AddDays(1)
	if next.Clock() != "09:00" || next.Date() != "2024-03-10" {
		t.Errorf("AddDays across DST = %s", next)
	}
}
