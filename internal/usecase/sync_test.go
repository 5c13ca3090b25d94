package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync/internal/clock"
	"tasksync/internal/domain"
	"tasksync/internal/mapper"
	"tasksync/internal/ports"
	"tasksync/internal/reconcile"
	"tasksync/internal/timecube"
)

var testDBs = NotionDatabases{
	Tasks:         "db-tasks",
	Projects:      "db-projects",
	Activities:    "db-activities",
	Pillars:       "db-pillars",
	Subcategories: "db-subcategories",
	Goals:         "db-goals",
	Weeks:         "db-weeks",
	Months:        "db-months",
	Quarters:      "db-quarters",
}

const minute = 60000

// world is a task manager with a two-level category tree and a Notion
// workspace holding the matching lookup pages.
type world struct {
	marvin *fakeMarvin
	notion *fakeNotion
	garmin *fakeGarmin
	sink   *fakeSink
	now    timecube.Instant

	healthID  string
	runningID string
}

func newWorld() *world {
	w := &world{
		marvin: newFakeMarvin(
			mapper.MarvinDoc{ID: "pil1", DB: mapper.MarvinCategories, Type: "category", Title: "Health", ParentID: domain.RootID},
			mapper.MarvinDoc{ID: "sub1", DB: mapper.MarvinCategories, Type: "category", Title: "Running", ParentID: "pil1"},
			mapper.MarvinDoc{
				ID: "t1", DB: mapper.MarvinTasks, Title: "5:30 pm Run", Day: "2025-03-01",
				ParentID: "sub1", TimeEstimate: 30 * minute, LabelIDs: []string{"l1"},
			},
		),
		notion: newFakeNotion(),
		garmin: &fakeGarmin{},
		sink:   &fakeSink{},
		now:    timecube.MustParse("2025-03-01T09:00:00", timecube.DefaultTZ),
	}
	w.marvin.labels = []mapper.MarvinLabel{{ID: "l1", Title: "Outdoor"}}
	w.healthID = w.notion.seed(testDBs.Pillars, pillarTitle, "Health")
	w.runningID = w.notion.seed(testDBs.Subcategories, nameTitle, "Running")
	return w
}

func (w *world) usecase() *SyncUseCase {
	return &SyncUseCase{
		Log:    quietLogger(),
		Marvin: w.marvin,
		Notion: w.notion,
		Garmin: w.garmin,
		Clock:  clock.Fixed{At: w.now},
		Sink:   w.sink,
		DBs:    testDBs,
		TZ:     timecube.DefaultTZ,
	}
}

func report(t *testing.T, sum *reconcile.RunSummary, stage Stage) *reconcile.Report {
	t.Helper()
	for _, r := range sum.Reports {
		if r.Stage == string(stage) {
			return r
		}
	}
	require.Failf(t, "missing report", "stage %s", stage)
	return nil
}

func TestRun_ScheduledTaskReachesNotion(t *testing.T) {
	w := newWorld()
	sum, err := w.usecase().Run(context.Background(), StageTasks)
	require.NoError(t, err)
	require.Empty(t, sum.Errors)

	rep := report(t, sum, StageTasks)
	assert.Equal(t, 1, rep.Created)

	pages := w.notion.inDB(testDBs.Tasks)
	require.Len(t, pages, 1)
	pg := pages[0]
	assert.Equal(t, "Run", pg.Prop(mapper.TaskTitle).Text())
	assert.Equal(t, "t1", pg.Prop(mapper.TaskMarvinID).Text())
	assert.Equal(t, "2025-03-01T22:30:00.000Z", pg.Prop(mapper.TaskScheduled).DateStart())
	assert.Equal(t, 30, pg.Prop(mapper.TaskEstimate).Minutes())
	assert.Equal(t, []string{"Outdoor"}, pg.Prop(mapper.TaskTags).Names())
	assert.Equal(t, []mapper.Relation{{ID: w.healthID}}, pg.Prop(mapper.TaskPillar).Relation)
	assert.Equal(t, []mapper.Relation{{ID: w.runningID}}, pg.Prop(mapper.TaskSubcategory).Relation)
}

func TestRun_SecondRunWritesNothing(t *testing.T) {
	w := newWorld()
	uc := w.usecase()
	_, err := uc.Run(context.Background(), StageTasks)
	require.NoError(t, err)
	creates, updates := w.notion.creates, w.notion.updates

	sum, err := uc.Run(context.Background(), StageTasks)
	require.NoError(t, err)
	rep := report(t, sum, StageTasks)
	assert.Equal(t, 1, rep.Unchanged)
	assert.Equal(t, 0, rep.Writes())
	assert.Equal(t, creates, w.notion.creates)
	assert.Equal(t, updates, w.notion.updates)
}

func TestRun_TaskQueryWindowAndHorizon(t *testing.T) {
	w := newWorld()
	_, err := w.usecase().Run(context.Background(), StageTasks)
	require.NoError(t, err)
	require.NotEmpty(t, w.marvin.queries)

	var edited, day *ports.Filter
	for i, f := range w.marvin.queries[0].Filters {
		switch f.Field {
		case "updatedAt":
			edited = &w.marvin.queries[0].Filters[i]
		case "day":
			day = &w.marvin.queries[0].Filters[i]
		}
	}
	require.NotNil(t, edited)
	require.NotNil(t, day)
	assert.Equal(t, ports.KindLastEdited, edited.Kind)
	assert.True(t, edited.Value.(timecube.Instant).Equal(w.now.Add(-DefaultWindow)))
	assert.Equal(t, ports.OpLTE, day.Op)
	assert.True(t, day.Value.(timecube.Instant).Equal(w.now.AddDays(DefaultHorizon)))
}

func TestRun_WatchedChangeUpdatesPage(t *testing.T) {
	w := newWorld()
	uc := w.usecase()
	_, err := uc.Run(context.Background(), StageTasks)
	require.NoError(t, err)

	d := w.marvin.docs["t1"]
	d.Done = true
	w.marvin.docs["t1"] = d

	sum, err := uc.Run(context.Background(), StageTasks)
	require.NoError(t, err)
	rep := report(t, sum, StageTasks)
	require.Equal(t, 1, rep.Updated)
	assert.Equal(t, []string{domain.FieldDone}, rep.Outcomes[0].Fields)
	assert.True(t, w.notion.inDB(testDBs.Tasks)[0].Prop(mapper.TaskDone).Checked())
}

func TestRun_UnresolvableTaxonomyFailsOnlyThatTask(t *testing.T) {
	w := newWorld()
	w.marvin.docs["t2"] = mapper.MarvinDoc{ID: "t2", DB: mapper.MarvinTasks, Title: "Orphan", Day: "2025-03-01", ParentID: "gone"}

	sum, err := w.usecase().Run(context.Background(), StageTasks)
	require.NoError(t, err)
	rep := report(t, sum, StageTasks)
	assert.Equal(t, 1, rep.Created)
	assert.Equal(t, 1, rep.Failed)
	assert.ErrorIs(t, rep.Outcomes[len(rep.Outcomes)-1].Err, domain.ErrResolution)
}

func TestRun_DependencyLinkedBySecondPass(t *testing.T) {
	w := newWorld()
	w.marvin.docs["t0"] = mapper.MarvinDoc{
		ID: "t0", DB: mapper.MarvinTasks, Title: "Stretch", Day: "2025-03-01",
		ParentID: "sub1", DependsOn: map[string]bool{"t1": true},
	}

	sum, err := w.usecase().Run(context.Background(), StageTasks)
	require.NoError(t, err)
	rep := report(t, sum, StageTasks)
	require.Equal(t, 2, rep.Created)
	assert.Equal(t, 1, rep.DepsAttached)

	var stretch, run mapper.Page
	for _, pg := range w.notion.inDB(testDBs.Tasks) {
		switch pg.Prop(mapper.TaskTitle).Text() {
		case "Stretch":
			stretch = pg
		case "Run":
			run = pg
		}
	}
	require.NotEmpty(t, run.ID)
	assert.Equal(t, []mapper.Relation{{ID: run.ID}}, stretch.Prop(mapper.TaskDependsOn).Relation)
}

func TestRun_ProjectsStage(t *testing.T) {
	w := newWorld()
	w.marvin.docs["p1"] = mapper.MarvinDoc{ID: "p1", DB: mapper.MarvinCategories, Type: "project", Title: "Marathon", ParentID: "pil1"}

	sum, err := w.usecase().Run(context.Background(), StageProjects)
	require.NoError(t, err)
	assert.Equal(t, 1, report(t, sum, StageProjects).Created)

	pages := w.notion.inDB(testDBs.Projects)
	require.Len(t, pages, 1)
	assert.Equal(t, "Marathon", pages[0].Prop(mapper.ProjectTitle).Text())
	assert.Equal(t, []mapper.Relation{{ID: w.healthID}}, pages[0].Prop(mapper.TaskPillar).Relation)
}

func TestRun_DeleteFlaggedTask(t *testing.T) {
	w := newWorld()
	w.marvin.docs["t9"] = mapper.MarvinDoc{ID: "t9", DB: mapper.MarvinTasks, Title: "Old"}
	pg, err := w.notion.CreatePage(context.Background(), testDBs.Tasks, mapper.Page{Properties: map[string]mapper.Property{
		mapper.TaskTitle:    mapper.TitleProp("Old"),
		mapper.TaskMarvinID: mapper.TextProp("t9"),
		mapper.TaskDelete:   mapper.CheckboxProp(true),
	}})
	require.NoError(t, err)

	sum, err := w.usecase().Run(context.Background(), StageDelete)
	require.NoError(t, err)
	rep := report(t, sum, StageDelete)
	assert.Equal(t, 1, rep.Deleted)
	assert.Equal(t, []string{"t9"}, w.marvin.deleted)
	assert.Equal(t, []string{pg.ID}, w.notion.archived)
}

func TestRun_DeleteKeepsFlagWhenTaskManagerFails(t *testing.T) {
	w := newWorld()
	w.marvin.deleteErr = errors.New("marvin: unexpected status 500")
	_, err := w.notion.CreatePage(context.Background(), testDBs.Tasks, mapper.Page{Properties: map[string]mapper.Property{
		mapper.TaskTitle:    mapper.TitleProp("Old"),
		mapper.TaskMarvinID: mapper.TextProp("t9"),
		mapper.TaskDelete:   mapper.CheckboxProp(true),
	}})
	require.NoError(t, err)

	sum, err := w.usecase().Run(context.Background(), StageDelete)
	require.NoError(t, err)
	rep := report(t, sum, StageDelete)
	assert.Equal(t, 1, rep.Failed)
	assert.Empty(t, w.notion.archived)
}

func TestRun_ReversePushesNotionEdits(t *testing.T) {
	w := newWorld()
	uc := w.usecase()
	_, err := uc.Run(context.Background(), StageTasks)
	require.NoError(t, err)

	pg := w.notion.inDB(testDBs.Tasks)[0]
	pg.Properties[mapper.TaskTitle] = mapper.TitleProp("Long run")
	w.notion.pages[pg.ID] = pg

	sum, err := uc.Run(context.Background(), StageReverse)
	require.NoError(t, err)
	rep := report(t, sum, StageReverse)
	require.Equal(t, 1, rep.Updated, rep.String())
	assert.Equal(t, "5:30 pm Long run", w.marvin.docs["t1"].Title)
	assert.Equal(t, pg.ID, w.marvin.docs["t1"].Note)
}

func TestRun_ReverseSecondRunWritesNothingWithPlannedQuarter(t *testing.T) {
	w := newWorld()
	uc := w.usecase()
	_, err := uc.Run(context.Background(), StageTasks)
	require.NoError(t, err)

	// The task manager has no quarter field, so "2Q 2025" never reads back.
	quarterID := w.notion.seed(testDBs.Quarters, quarterTitle, "2Q 2025")
	pg := w.notion.inDB(testDBs.Tasks)[0]
	pg.Properties[mapper.TaskTitle] = mapper.TitleProp("Long run")
	pg.Properties[mapper.TaskPlannedQuarter] = mapper.RelationByID(quarterID)
	w.notion.pages[pg.ID] = pg

	sum, err := uc.Run(context.Background(), StageReverse)
	require.NoError(t, err)
	rep := report(t, sum, StageReverse)
	require.Equal(t, 1, rep.Updated, rep.String())
	assert.Equal(t, []string{domain.FieldTitle}, rep.Outcomes[0].Fields)

	for run := 2; run <= 3; run++ {
		sum, err = uc.Run(context.Background(), StageReverse)
		require.NoError(t, err)
		rep = report(t, sum, StageReverse)
		assert.Equal(t, 0, rep.Writes(), "run %d: %s", run, rep.String())
		assert.Equal(t, 1, rep.Unchanged)
	}
	assert.Len(t, w.marvin.updates, 1)
}

func TestRun_UnwritablePlannedLabelsDoNotUpdateEveryRun(t *testing.T) {
	w := newWorld()
	d := w.marvin.docs["t1"]
	d.PlannedMonth = "2025-03"
	w.marvin.docs["t1"] = d
	uc := w.usecase()
	// Months is configured but holds no "March 2025" page; Quarters is not
	// configured at all.
	uc.DBs.Quarters = ""

	sum, err := uc.Run(context.Background(), StageTasks)
	require.NoError(t, err)
	require.Equal(t, 1, report(t, sum, StageTasks).Created)
	updates := w.notion.updates

	for run := 2; run <= 3; run++ {
		sum, err = uc.Run(context.Background(), StageTasks)
		require.NoError(t, err)
		rep := report(t, sum, StageTasks)
		assert.Equal(t, 0, rep.Writes(), "run %d: %s", run, rep.String())
		assert.Equal(t, 1, rep.Unchanged)
	}
	assert.Equal(t, updates, w.notion.updates)

	// Once the month page exists the label is written.
	monthID := w.notion.seed(testDBs.Months, nameTitle, "March 2025")
	sum, err = uc.Run(context.Background(), StageTasks)
	require.NoError(t, err)
	rep := report(t, sum, StageTasks)
	require.Equal(t, 1, rep.Updated, rep.String())
	assert.Equal(t, []string{domain.FieldMonth}, rep.Outcomes[0].Fields)
	assert.Equal(t, []mapper.Relation{{ID: monthID}}, w.notion.inDB(testDBs.Tasks)[0].Prop(mapper.TaskPlannedMonth).Relation)

	sum, err = uc.Run(context.Background(), StageTasks)
	require.NoError(t, err)
	assert.Equal(t, 0, report(t, sum, StageTasks).Writes())
}

func TestRun_RejectedEntityIsLogged(t *testing.T) {
	w := newWorld()
	w.marvin.docs["t2"] = mapper.MarvinDoc{ID: "t2", DB: mapper.MarvinTasks, Title: "Orphan", Day: "2025-03-01", ParentID: "gone"}
	var buf bytes.Buffer
	uc := w.usecase()
	uc.Log = slog.New(slog.NewTextHandler(&buf, nil))

	sum, err := uc.Run(context.Background(), StageTasks)
	require.NoError(t, err)
	require.Equal(t, 1, report(t, sum, StageTasks).Failed)

	logs := buf.String()
	assert.Contains(t, logs, `msg="entity rejected"`)
	assert.Contains(t, logs, "stage=tasks")
	assert.Contains(t, logs, "title=Orphan")
	assert.Contains(t, logs, "source_id=t2")
}

func TestRun_ActivitiesStage(t *testing.T) {
	w := newWorld()
	w.garmin.activities = []mapper.GarminActivity{{
		ActivityID:   42,
		ActivityName: "Morning Run",
		StartTimeGMT: "2025-03-01 12:00:00",
		Distance:     5000,
		Duration:     1800,
	}}
	w.garmin.activities[0].ActivityType.TypeKey = "running"
	uc := w.usecase()

	sum, err := uc.Run(context.Background(), StageActivities)
	require.NoError(t, err)
	assert.Equal(t, 1, report(t, sum, StageActivities).Created)
	assert.Equal(t, "2025-02-28", w.garmin.from.Date())

	pages := w.notion.inDB(testDBs.Activities)
	require.Len(t, pages, 1)
	assert.Equal(t, "42", pages[0].Prop(mapper.ActivityGarminID).Text())

	sum, err = uc.Run(context.Background(), StageActivities)
	require.NoError(t, err)
	assert.Equal(t, 1, report(t, sum, StageActivities).Unchanged)
}

func TestRun_StageFailureDoesNotStopRun(t *testing.T) {
	w := newWorld()
	w.marvin.findErr = errors.New("marvin: unexpected status 503")
	_, err := w.notion.CreatePage(context.Background(), testDBs.Tasks, mapper.Page{Properties: map[string]mapper.Property{
		mapper.TaskTitle:    mapper.TitleProp("Old"),
		mapper.TaskMarvinID: mapper.TextProp("t1"),
		mapper.TaskDelete:   mapper.CheckboxProp(true),
	}})
	require.NoError(t, err)

	sum, err := w.usecase().Run(context.Background(), StageTasks, StageDelete, StageProjects)
	require.NoError(t, err)
	assert.Len(t, sum.Errors, 2)
	assert.Equal(t, 1, report(t, sum, StageDelete).Deleted)
}

func TestRun_RecordsSummaryInSink(t *testing.T) {
	w := newWorld()
	sum, err := w.usecase().Run(context.Background(), StageTasks)
	require.NoError(t, err)
	require.Len(t, w.sink.runs, 1)
	assert.Same(t, sum, w.sink.runs[0])
	assert.False(t, sum.Finished.IsZero())
}

func TestRun_MissingDependencies(t *testing.T) {
	uc := &SyncUseCase{Log: quietLogger()}
	_, err := uc.Run(context.Background())
	assert.ErrorContains(t, err, "usecase not initialized")
}

func TestDefaultStages(t *testing.T) {
	uc := &SyncUseCase{}
	assert.Equal(t, []Stage{StageDelete, StageTasks, StageProjects}, uc.DefaultStages())

	uc.Reverse = true
	uc.Garmin = &fakeGarmin{}
	assert.Equal(t, []Stage{StageDelete, StageTasks, StageProjects, StageReverse, StageActivities}, uc.DefaultStages())
}

func TestParseStage(t *testing.T) {
	st, err := ParseStage("today")
	require.NoError(t, err)
	assert.Equal(t, StageToday, st)

	_, err = ParseStage("yesterday")
	assert.Error(t, err)
}

func TestRun_CancelledContextStopsBeforeStages(t *testing.T) {
	w := newWorld()
	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	sum, err := w.usecase().Run(ctx, StageTasks)
	require.NoError(t, err)
	assert.Empty(t, sum.Reports)
	assert.Len(t, sum.Errors, 1)
	assert.Empty(t, w.marvin.queries)
}
