package mapper

import (
	"encoding/json"
	"strings"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/timecube"
)

// GarminDailySummary is the daily user summary.
type GarminDailySummary struct {
	TotalSteps          int     `json:"totalSteps"`
	TotalDistanceMeters float64 `json:"totalDistanceMeters"`
	ActiveKilocalories  float64 `json:"activeKilocalories"`
	BMRKilocalories     float64 `json:"bmrKilocalories"`
	AverageStressLevel  int     `json:"averageStressLevel"`
}

// GarminReadiness is an entry of the training readiness endpoint.
type GarminReadiness struct {
	Score         int    `json:"score"`
	FeedbackShort string `json:"feedbackShort"`
}

// GarminDaily groups the day-level responses.
type GarminDaily struct {
	Summary              GarminDailySummary
	Readiness            []GarminReadiness
	TrainingStatusPhrase string // e.g. "PRODUCTIVE_6"
}

// DailyFromGarmin converts the day-level responses. Calories out is active
// plus resting; the first readiness entry is the latest.
func DailyFromGarmin(g GarminDaily) domain.DailyStats {
	d := domain.DailyStats{
		Steps:       g.Summary.TotalSteps,
		Distance:    round(g.Summary.TotalDistanceMeters*metersToMiles, 2),
		CaloriesOut: int(round(g.Summary.ActiveKilocalories+g.Summary.BMRKilocalories, 0)),
		AvgStress:   g.Summary.AverageStressLevel,
	}
	if status, _, _ := strings.Cut(g.TrainingStatusPhrase, "_"); status != "" {
		d.TrainingStatus = capitalize(status)
	}
	if len(g.Readiness) > 0 {
		d.ReadinessScore = g.Readiness[0].Score
		d.ReadinessDescription = capitalize(strings.ReplaceAll(g.Readiness[0].FeedbackShort, "_", " "))
	}
	return d
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// Daily tracking and steps database properties.
const (
	DailyDate                 = "Date"
	DailySteps                = "Steps"
	DailyCaloriesOut          = "Calories Out"
	DailyTrainingStatus       = "Training Status"
	DailyReadinessScore       = "Readiness Score"
	DailyReadinessDescription = "Readiness Description"
	DailyAverageStress        = "Average Stress"

	StepsDate     = "Date"
	StepsTotal    = "Total Steps"
	StepsDistance = "Total Distance (miles)"
)

// DailyToNotion renders the properties of a daily tracking page.
func DailyToNotion(d domain.DailyStats) map[string]Property {
	return map[string]Property{
		DailySteps:                NumberProp(float64(d.Steps), false),
		DailyCaloriesOut:          NumberProp(float64(d.CaloriesOut), false),
		DailyTrainingStatus:       TextProp(d.TrainingStatus),
		DailyReadinessScore:       NumberProp(float64(d.ReadinessScore), false),
		DailyReadinessDescription: TextProp(d.ReadinessDescription),
		DailyAverageStress:        NumberProp(float64(d.AvgStress), false),
	}
}

// StepsToNotion renders the properties of a steps page.
func StepsToNotion(d domain.DailyStats) map[string]Property {
	return map[string]Property{
		StepsTotal:    NumberProp(float64(d.Steps), false),
		StepsDistance: NumberProp(d.Distance, false),
	}
}

// Trackers database properties.
const (
	TrackerName  = "Name"
	TrackerValue = "Current Value"
)

// TrackerFromNotion reads a trackers page. Pages without a title or a
// value are reported as not ok.
func TrackerFromNotion(pg Page) (domain.Tracker, bool) {
	title := strings.TrimSpace(pg.Prop(TrackerName).Text())
	v := pg.Prop(TrackerValue)
	if title == "" || v.Number == nil {
		return domain.Tracker{}, false
	}
	return domain.Tracker{Title: title, Value: *v.Number}, true
}

// MarvinTrackers is the tracker database name.
const MarvinTrackers = "Trackers"

// MarvinTracker is a document of the Trackers database. History alternates
// epoch milliseconds and values. Keys not modelled here survive a save.
type MarvinTracker struct {
	ID        string
	Rev       string
	Title     string
	History   []float64
	UpdatedAt int64

	rest map[string]json.RawMessage
}

var trackerKeys = []string{"_id", "_rev", "title", "history", "updatedAt"}

func (t *MarvinTracker) UnmarshalJSON(b []byte) error {
	var known struct {
		ID        string    `json:"_id"`
		Rev       string    `json:"_rev"`
		Title     string    `json:"title"`
		History   []float64 `json:"history"`
		UpdatedAt int64     `json:"updatedAt"`
	}
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var rest map[string]json.RawMessage
	if err := json.Unmarshal(b, &rest); err != nil {
		return err
	}
	for _, k := range trackerKeys {
		delete(rest, k)
	}
	*t = MarvinTracker{
		ID:        known.ID,
		Rev:       known.Rev,
		Title:     known.Title,
		History:   known.History,
		UpdatedAt: known.UpdatedAt,
		rest:      rest,
	}
	return nil
}

func (t MarvinTracker) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.rest)+len(trackerKeys))
	for k, v := range t.rest {
		out[k] = v
	}
	out["_id"] = t.ID
	if t.Rev != "" {
		out["_rev"] = t.Rev
	}
	out["db"] = MarvinTrackers
	out["title"] = t.Title
	out["history"] = nonNil(t.History)
	if t.UpdatedAt != 0 {
		out["updatedAt"] = t.UpdatedAt
	}
	return json.Marshal(out)
}

// RecordTrackerValue sets the value of t on the local date of at. An entry
// already on that date is overwritten. It reports whether t changed.
func (m *Mapper) RecordTrackerValue(t *MarvinTracker, at timecube.Instant, v float64) bool {
	day := m.localDate(at.EpochMillis())
	for i := len(t.History) - 2; i >= 0; i -= 2 {
		if m.localDate(int64(t.History[i])) != day {
			continue
		}
		if t.History[i+1] == v {
			return false
		}
		t.History[i+1] = v
		return true
	}
	t.History = append(t.History, float64(at.EpochMillis()), v)
	return true
}

func (m *Mapper) localDate(ms int64) string {
	return time.UnixMilli(ms).In(m.loc).Format("2006-01-02")
}
