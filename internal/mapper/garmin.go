package mapper

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tasksync/internal/domain"
	"tasksync/internal/timecube"
)

// GarminActivity is an entry of the activity list endpoint.
type GarminActivity struct {
	ActivityID   int64  `json:"activityId"`
	ActivityName string `json:"activityName"`
	StartTimeGMT string `json:"startTimeGMT"`
	ActivityType struct {
		TypeKey string `json:"typeKey"`
	} `json:"activityType"`
	Distance                       float64 `json:"distance"`
	Duration                       float64 `json:"duration"`
	Calories                       float64 `json:"calories"`
	AverageSpeed                   float64 `json:"averageSpeed"`
	AvgPower                       float64 `json:"avgPower"`
	MaxPower                       float64 `json:"maxPower"`
	TrainingEffectLabel            string  `json:"trainingEffectLabel"`
	AerobicTrainingEffect          float64 `json:"aerobicTrainingEffect"`
	AerobicTrainingEffectMessage   string  `json:"aerobicTrainingEffectMessage"`
	AnaerobicTrainingEffect        float64 `json:"anaerobicTrainingEffect"`
	AnaerobicTrainingEffectMessage string  `json:"anaerobicTrainingEffectMessage"`
	PR                             bool    `json:"pr"`
	Favorite                       bool    `json:"favorite"`
}

const (
	metersToMiles = 0.000621371
	metersPerMile = 1609.34
	garminTimeGMT = "2006-01-02 15:04:05"
	unknownType   = "Unknown"
)

// ActivityFromGarmin converts an activity. Start times arrive in GMT and are
// displayed in the mapper's zone.
func (m *Mapper) ActivityFromGarmin(g GarminActivity) (domain.Activity, error) {
	if g.ActivityID == 0 {
		return domain.Activity{}, missing("garmin activity", "activityId")
	}
	start, err := timecube.ParseLayout(g.StartTimeGMT, garminTimeGMT, "UTC")
	if err != nil {
		start, err = timecube.Parse(g.StartTimeGMT, "UTC")
		if err != nil {
			return domain.Activity{}, fmt.Errorf("garmin activity %d start: %w", g.ActivityID, err)
		}
	}
	typ, sub := activityType(g.ActivityType.TypeKey, g.ActivityName)
	return domain.Activity{
		Refs:            domain.Refs{GarminID: strconv.FormatInt(g.ActivityID, 10)},
		Title:           g.ActivityName,
		Date:            start.In(m.loc),
		Type:            typ,
		Subtype:         sub,
		Distance:        round(g.Distance*metersToMiles, 2),
		Duration:        round(g.Duration/60, 2),
		Calories:        int(round(g.Calories, 0)),
		AvgPace:         pace(g.AverageSpeed),
		AvgPower:        round(g.AvgPower, 1),
		MaxPower:        round(g.MaxPower, 1),
		TrainingEffect:  titleWords(g.TrainingEffectLabel),
		Aerobic:         round(g.AerobicTrainingEffect, 1),
		AerobicEffect:   trainingMessage(g.AerobicTrainingEffectMessage),
		Anaerobic:       round(g.AnaerobicTrainingEffect, 1),
		AnaerobicEffect: trainingMessage(g.AnaerobicTrainingEffectMessage),
		PR:              g.PR,
		Fav:             g.Favorite,
	}, nil
}

func titleWords(s string) string {
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// pace converts meters per second to a "M:SS min/mile" string.
func pace(mps float64) string {
	if mps <= 0 {
		return ""
	}
	p := metersPerMile / (mps * 60)
	minutes := int(p)
	seconds := int((p - float64(minutes)) * 60)
	return fmt.Sprintf("%d:%02d min/mile", minutes, seconds)
}

var subtypeParents = map[string]string{
	"Barre":             "Strength",
	"Indoor Cardio":     "Cardio",
	"Indoor Cycling":    "Cycling",
	"Indoor Rowing":     "Rowing",
	"Speed Walking":     "Walking",
	"Strength Training": "Strength",
	"Trail Running":     "Running",
	"Treadmill Running": "Running",
}

// activityType derives the display type and subtype from a type key such as
// "treadmill_running".
func activityType(key, name string) (typ, sub string) {
	formatted := titleWords(key)
	if formatted == "" {
		formatted = unknownType
	}
	typ, sub = formatted, formatted
	switch formatted {
	case "Rowing V2":
		typ = "Rowing"
	case "Yoga", "Pilates":
		typ = "Yoga/Pilates"
	}
	if parent, ok := subtypeParents[formatted]; ok {
		typ = parent
	}

	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "meditation"):
		return "Meditation", "Meditation"
	case strings.Contains(lower, "barre"):
		return "Strength", "Barre"
	case strings.Contains(lower, "stretch"):
		return "Stretching", "Stretching"
	}
	if typ == "Hiit" {
		return "HIIT", "HIIT"
	}
	return typ, sub
}

var trainingMessages = []struct{ prefix, label string }{
	{"NO_", "No Benefit"},
	{"MINOR_", "Some Benefit"},
	{"RECOVERY_", "Recovery"},
	{"MAINTAINING_", "Maintaining"},
	{"IMPROVING_", "Impacting"},
	{"IMPACTING_", "Impacting"},
	{"HIGHLY_", "Highly Impacting"},
	{"OVERREACHING_", "Overreaching"},
}

func trainingMessage(msg string) string {
	for _, m := range trainingMessages {
		if strings.HasPrefix(msg, m.prefix) {
			return m.label
		}
	}
	return msg
}
