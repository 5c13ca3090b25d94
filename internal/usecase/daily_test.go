package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/mapper"
)

const (
	trackersDB = "db-trackers"
	dailyDB    = "db-daily"
	stepsDB    = "db-steps"
)

func trackerPage(t *testing.T, n *fakeNotion, title string, value *float64) string {
	t.Helper()
	props := map[string]mapper.Property{mapper.TrackerName: mapper.TitleProp(title)}
	if value != nil {
		props[mapper.TrackerValue] = mapper.NumberProp(*value, false)
	}
	pg, err := n.CreatePage(context.Background(), trackersDB, mapper.Page{Properties: props})
	require.NoError(t, err)
	return pg.ID
}

func datedPage(t *testing.T, n *fakeNotion, db, date string) string {
	t.Helper()
	pg, err := n.CreatePage(context.Background(), db, mapper.Page{Properties: map[string]mapper.Property{
		mapper.DailyDate: mapper.DateProp(date),
	}})
	require.NoError(t, err)
	return pg.ID
}

func ptr(v float64) *float64 { return &v }

func TestRun_TrackersStage(t *testing.T) {
	w := newWorld()
	yesterday := float64(w.now.AddDays(-1).EpochMillis())
	w.marvin.trackers = []mapper.MarvinTracker{
		{ID: "tr1", Title: "Weight", History: []float64{yesterday, 170}},
	}
	weight := trackerPage(t, w.notion, "Weight", ptr(171))
	trackerPage(t, w.notion, "Mood", ptr(4))
	trackerPage(t, w.notion, "Empty", nil)
	uc := w.usecase()
	uc.DBs.Trackers = trackersDB

	sum, err := uc.Run(context.Background(), StageTrackers)
	require.NoError(t, err)
	rep := report(t, sum, StageTrackers)
	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 1, rep.Failed)
	require.Len(t, w.marvin.saved, 1)
	assert.Equal(t, []float64{yesterday, 170, float64(w.now.EpochMillis()), 171}, w.marvin.trackers[0].History)

	sum, err = uc.Run(context.Background(), StageTrackers)
	require.NoError(t, err)
	assert.Equal(t, 1, report(t, sum, StageTrackers).Unchanged)
	assert.Len(t, w.marvin.saved, 1)

	require.NoError(t, w.notion.UpdatePage(context.Background(), mapper.Page{ID: weight, Properties: map[string]mapper.Property{
		mapper.TrackerValue: mapper.NumberProp(172, false),
	}}))
	sum, err = uc.Run(context.Background(), StageTrackers)
	require.NoError(t, err)
	assert.Equal(t, 1, report(t, sum, StageTrackers).Updated)
	assert.Equal(t, []float64{yesterday, 170, float64(w.now.EpochMillis()), 172}, w.marvin.trackers[0].History)
}

func TestRun_TrackersStageNeedsDatabase(t *testing.T) {
	w := newWorld()
	sum, err := w.usecase().Run(context.Background(), StageTrackers)
	require.NoError(t, err)
	require.Len(t, sum.Errors, 1)
	assert.Contains(t, sum.Errors[0], "no trackers database")
}

func TestRun_DailyStage(t *testing.T) {
	w := newWorld()
	w.garmin.daily = mapper.GarminDaily{
		Summary: mapper.GarminDailySummary{
			TotalSteps:          9000,
			TotalDistanceMeters: 7000,
			ActiveKilocalories:  500,
			BMRKilocalories:     1700,
			AverageStressLevel:  28,
		},
		Readiness:            []mapper.GarminReadiness{{Score: 66, FeedbackShort: "READY_FOR_MORE"}},
		TrainingStatusPhrase: "MAINTAINING_2",
	}
	earlier := datedPage(t, w.notion, dailyDB, "2025-02-28")
	today := datedPage(t, w.notion, dailyDB, "2025-03-01")
	steps := datedPage(t, w.notion, stepsDB, "2025-03-01")
	uc := w.usecase()
	uc.DBs.DailyTracking = dailyDB
	uc.DBs.Steps = stepsDB

	sum, err := uc.Run(context.Background(), StageDaily)
	require.NoError(t, err)
	assert.Equal(t, 2, report(t, sum, StageDaily).Updated)
	assert.Equal(t, "2025-03-01", w.garmin.day.Date())

	pg := w.notion.pages[today]
	assert.Equal(t, 9000.0, pg.Prop(mapper.DailySteps).Num())
	assert.Equal(t, 2200.0, pg.Prop(mapper.DailyCaloriesOut).Num())
	assert.Equal(t, "Maintaining", pg.Prop(mapper.DailyTrainingStatus).Text())
	assert.Equal(t, "Ready for more", pg.Prop(mapper.DailyReadinessDescription).Text())
	assert.Equal(t, 4.35, w.notion.pages[steps].Prop(mapper.StepsDistance).Num())
	assert.Nil(t, w.notion.pages[earlier].Prop(mapper.DailySteps).Number)

	updates := w.notion.updates
	sum, err = uc.Run(context.Background(), StageDaily)
	require.NoError(t, err)
	assert.Equal(t, 2, report(t, sum, StageDaily).Unchanged)
	assert.Equal(t, updates, w.notion.updates)

	w.garmin.daily.Summary.TotalSteps = 9500
	sum, err = uc.Run(context.Background(), StageDaily)
	require.NoError(t, err)
	rep := report(t, sum, StageDaily)
	assert.Equal(t, 2, rep.Updated)
	assert.Equal(t, []string{mapper.DailySteps}, rep.Outcomes[0].Fields)
}

func TestRun_DailyStageWithoutTodaysPage(t *testing.T) {
	w := newWorld()
	datedPage(t, w.notion, dailyDB, "2025-02-28")
	uc := w.usecase()
	uc.DBs.DailyTracking = dailyDB

	sum, err := uc.Run(context.Background(), StageDaily)
	require.NoError(t, err)
	rep := report(t, sum, StageDaily)
	assert.Equal(t, 1, rep.Failed)
	assert.Contains(t, rep.Outcomes[0].Err.Error(), "no page dated 2025-03-01")
	assert.Zero(t, w.notion.updates)
}

func TestMorningAndHourlyStages(t *testing.T) {
	uc := &SyncUseCase{}
	assert.Equal(t, []Stage{StageToday}, uc.MorningStages())
	assert.Empty(t, uc.HourlyStages())

	uc.DBs.Trackers = trackersDB
	uc.DBs.DailyTracking = dailyDB
	uc.Garmin = &fakeGarmin{}
	assert.Equal(t, []Stage{StageTrackers, StageToday}, uc.MorningStages())
	assert.Equal(t, []Stage{StageActivities, StageDaily}, uc.HourlyStages())
}
