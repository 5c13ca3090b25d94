package domain

import "tasksync/internal/timecube"

// Activity is a recorded workout.
type Activity struct {
	Refs

	Title           string
	Date            timecube.Instant
	Type            string
	Subtype         string
	Distance        float64 // miles
	Duration        float64 // minutes
	Calories        int
	AvgPace         string // "M:SS min/mile", empty when not applicable
	AvgPower        float64
	MaxPower        float64
	TrainingEffect  string
	Aerobic         float64
	AerobicEffect   string
	Anaerobic       float64
	AnaerobicEffect string
	PR              bool
	Fav             bool
}

func (a Activity) Keys() Refs             { return a.Refs }
func (a Activity) Name() string           { return a.Title }
func (a Activity) Dependencies() []string { return nil }

// Diff compares the recorded measurements of two activities.
func (a Activity) Diff(o Activity) []string {
	var out []string
	add := func(name string, differ bool) {
		if differ {
			out = append(out, name)
		}
	}
	add("title", a.Title != o.Title)
	add("type", a.Type != o.Type)
	add("subtype", a.Subtype != o.Subtype)
	add("distance", a.Distance != o.Distance)
	add("duration", a.Duration != o.Duration)
	add("calories", a.Calories != o.Calories)
	add("avg_pace", a.AvgPace != o.AvgPace)
	add("training_effect", a.TrainingEffect != o.TrainingEffect)
	add("aerobic", a.Aerobic != o.Aerobic)
	add("aerobic_effect", a.AerobicEffect != o.AerobicEffect)
	add("anaerobic", a.Anaerobic != o.Anaerobic)
	add("anaerobic_effect", a.AnaerobicEffect != o.AnaerobicEffect)
	add("pr", a.PR != o.PR)
	add("fav", a.Fav != o.Fav)
	return out
}

func (a Activity) WithID(sys System, id string) Activity {
	a.SetID(sys, id)
	return a
}
