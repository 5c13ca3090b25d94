package domain

// DailyStats are the wearable totals of one day.
type DailyStats struct {
	Steps                int
	Distance             float64 // miles
	CaloriesOut          int
	AvgStress            int
	TrainingStatus       string
	ReadinessScore       int
	ReadinessDescription string
}

// Tracker is a numeric value kept under a title, e.g. "Weight".
type Tracker struct {
	Title string
	Value float64
}
