package domain

import "tasksync/internal/timecube"

// Planning holds the planned week, month and quarter labels,
// e.g. "Week 9", "March 2025", "1Q 2025". Empty means unplanned.
type Planning struct {
	Week    string
	Month   string
	Quarter string
}

// Classification is the resolved taxonomy of an entity.
type Classification struct {
	Pillar      string
	Subcategory string
	Project     string
}

// Watched is the subset of an entity whose divergence triggers an update.
type Watched struct {
	Title        string
	Done         bool
	TimeEstimate int
	Duration     int
	Day          timecube.Instant
	Planning     Planning
}

// Field names reported by DiffWatched.
const (
	FieldTitle        = "title"
	FieldDone         = "done"
	FieldTimeEstimate = "time_estimate"
	FieldDuration     = "duration"
	FieldDay          = "day"
	FieldWeek         = "planned_week"
	FieldMonth        = "planned_month"
	FieldQuarter      = "planned_quarter"
)

// DiffWatched lists the watched fields on which a and b disagree. The
// scheduled day is compared by calendar date only. Planned labels treat an
// absent value and an empty one as equal.
func DiffWatched(a, b Watched) []string {
	var out []string
	if a.Title != b.Title {
		out = append(out, FieldTitle)
	}
	if a.Done != b.Done {
		out = append(out, FieldDone)
	}
	if a.TimeEstimate != b.TimeEstimate {
		out = append(out, FieldTimeEstimate)
	}
	if a.Duration != b.Duration {
		out = append(out, FieldDuration)
	}
	if !sameDay(a.Day, b.Day) {
		out = append(out, FieldDay)
	}
	if a.Planning.Week != b.Planning.Week {
		out = append(out, FieldWeek)
	}
	if a.Planning.Month != b.Planning.Month {
		out = append(out, FieldMonth)
	}
	if a.Planning.Quarter != b.Planning.Quarter {
		out = append(out, FieldQuarter)
	}
	return out
}

func sameDay(a, b timecube.Instant) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() == b.IsZero()
	}
	return a.SameDate(b)
}
