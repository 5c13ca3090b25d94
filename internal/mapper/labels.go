package mapper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/timecube"
)

var weekLabelRe = regexp.MustCompile(`^Week (\d{1,2})$`)

// weekLabelFromMonday renders the ISO week of a planned-week date.
func (m *Mapper) weekLabelFromMonday(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	i, err := m.parse(raw)
	if err != nil {
		return "", err
	}
	return i.WeekLabel(), nil
}

// mondayFromWeekLabel inverts weekLabelFromMonday. The ISO year comes from
// anchor when set, otherwise from the reference instant.
func (m *Mapper) mondayFromWeekLabel(label string, anchor timecube.Instant) (string, error) {
	if label == "" {
		return "", nil
	}
	sm := weekLabelRe.FindStringSubmatch(label)
	if sm == nil {
		return "", fmt.Errorf("mapper: malformed week label %q", label)
	}
	week, _ := strconv.Atoi(sm[1])
	if anchor.IsZero() {
		anchor = m.ref
	}
	year, _ := anchor.ISOWeek()
	// January 4th always falls in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	monday := jan4.AddDate(0, 0, -offset+(week-1)*7)
	return monday.Format("2006-01-02"), nil
}

// monthLabels renders a YYYY-MM planned month as its month and quarter labels.
func (m *Mapper) monthLabels(raw string) (month, quarter string, err error) {
	if raw == "" {
		return "", "", nil
	}
	i, err := m.parse(raw + "-01")
	if err != nil {
		return "", "", err
	}
	return i.MonthYear(), i.QuarterLabel(), nil
}

// monthFromLabel inverts the month label, e.g. "March 2025" -> "2025-03".
func monthFromLabel(label string) (string, error) {
	if label == "" {
		return "", nil
	}
	t, err := time.Parse("January 2006", strings.TrimSpace(label))
	if err != nil {
		return "", fmt.Errorf("mapper: malformed month label %q", label)
	}
	return t.Format("2006-01"), nil
}

// MarvinPlanning returns p as the task manager reports it after a write.
// It has no quarter field, so the quarter follows the planned month.
func (m *Mapper) MarvinPlanning(p domain.Planning) domain.Planning {
	raw, err := monthFromLabel(p.Month)
	if err != nil {
		return p
	}
	_, p.Quarter, _ = m.monthLabels(raw)
	return p
}
