package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tasksync/internal/domain"
	"tasksync/internal/mapper"
	"tasksync/internal/ports"
	"tasksync/internal/reconcile"
	"tasksync/internal/taxonomy"
	"tasksync/internal/timecube"
)

// Stage is one step of a sync run.
type Stage string

const (
	StageDelete     Stage = "delete"
	StageTasks      Stage = "tasks"
	StageProjects   Stage = "projects"
	StageToday      Stage = "today"
	StageReverse    Stage = "reverse"
	StageActivities Stage = "activities"
	StageTrackers   Stage = "trackers"
	StageDaily      Stage = "daily"
)

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	switch st := Stage(s); st {
	case StageDelete, StageTasks, StageProjects, StageToday, StageReverse, StageActivities, StageTrackers, StageDaily:
		return st, nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

const (
	DefaultWindow  = 30 * time.Minute
	DefaultHorizon = 14 // days ahead a scheduled task is still synced
)

// SyncUseCase coordinates one reconciliation run across the task manager,
// Notion and Garmin.
type SyncUseCase struct {
	Log    *slog.Logger
	Marvin ports.MarvinClient
	Notion ports.NotionClient
	Garmin ports.GarminClient // nil skips the activities and daily stages
	Clock  ports.Clock
	Sink   ports.ReportSink // optional

	DBs     NotionDatabases
	TZ      string
	Window  time.Duration // look-back for "recently updated" queries
	Horizon int
	Reverse bool // include StageReverse in DefaultStages
}

// DefaultStages returns the stages of a full run in order.
func (uc *SyncUseCase) DefaultStages() []Stage {
	stages := []Stage{StageDelete, StageTasks, StageProjects}
	if uc.Reverse {
		stages = append(stages, StageReverse)
	}
	if uc.Garmin != nil {
		stages = append(stages, StageActivities)
	}
	return stages
}

// MorningStages returns the stages of the early-morning run.
func (uc *SyncUseCase) MorningStages() []Stage {
	var stages []Stage
	if uc.DBs.Trackers != "" {
		stages = append(stages, StageTrackers)
	}
	return append(stages, StageToday)
}

// HourlyStages returns the stages of the hourly wearable import. It is
// empty without a Garmin client.
func (uc *SyncUseCase) HourlyStages() []Stage {
	if uc.Garmin == nil {
		return nil
	}
	stages := []Stage{StageActivities}
	if uc.DBs.DailyTracking != "" {
		stages = append(stages, StageDaily)
	}
	return stages
}

// session is the state of one run. Caches live and die with it.
type session struct {
	now      timecube.Instant
	mapper   *mapper.Mapper
	resolver *taxonomy.Resolver
	marvin   *marvinReader
	rel      *relations
	log      *slog.Logger
}

func (uc *SyncUseCase) newSession(now timecube.Instant) (*session, error) {
	m, err := mapper.New(uc.TZ, now)
	if err != nil {
		return nil, err
	}
	res := taxonomy.New(marvinAncestors{client: uc.Marvin}, taxonomy.WithLogger(uc.Log))
	return &session{
		now:      now,
		mapper:   m,
		resolver: res,
		marvin:   newMarvinReader(uc.Marvin, m, res, uc.Log),
		rel:      newRelations(uc.Notion, uc.DBs, uc.Log),
		log:      uc.Log,
	}, nil
}

// Run executes stages in order, or DefaultStages when none are given. A
// failing stage is recorded and the next one still runs.
func (uc *SyncUseCase) Run(ctx context.Context, stages ...Stage) (*reconcile.RunSummary, error) {
	if uc.Marvin == nil || uc.Notion == nil || uc.Clock == nil || uc.Log == nil {
		return nil, errors.New("usecase not initialized: missing dependencies")
	}
	if len(stages) == 0 {
		stages = uc.DefaultStages()
	}
	now := uc.Clock.Now()
	sess, err := uc.newSession(now)
	if err != nil {
		return nil, err
	}
	sum := reconcile.NewRunSummary(now.UTC())
	uc.Log.Info("sync started", slog.String("run", sum.ID.String()), slog.Time("now", now.Local()))

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			sum.StageError(string(st), err)
			break
		}
		rep, err := uc.runStage(ctx, sess, st)
		if err != nil {
			uc.Log.Error("stage failed", slog.String("stage", string(st)), slog.String("error", err.Error()))
			sum.StageError(string(st), err)
		}
		if rep != nil {
			uc.Log.Info("stage finished", slog.String("report", rep.String()))
		}
		sum.Add(rep)
	}
	sum.Finished = uc.Clock.Now().UTC()

	created, updated, unchanged, failed, deleted := sum.Totals()
	uc.Log.Info("sync completed",
		slog.String("run", sum.ID.String()),
		slog.Int("created", created),
		slog.Int("updated", updated),
		slog.Int("unchanged", unchanged),
		slog.Int("failed", failed),
		slog.Int("deleted", deleted),
		slog.Int("taxonomy_lookups", sess.resolver.Lookups()),
	)
	if uc.Sink != nil {
		if err := uc.Sink.RecordRun(ctx, sum); err != nil {
			uc.Log.Warn("record run failed", slog.String("error", err.Error()))
		}
	}
	return sum, nil
}

func (uc *SyncUseCase) runStage(ctx context.Context, s *session, st Stage) (*reconcile.Report, error) {
	switch st {
	case StageDelete:
		return uc.deleteFlagged(ctx, s)
	case StageTasks:
		return uc.syncTasks(ctx, s, string(st), uc.recentlyUpdated(s, mapper.MarvinTasks))
	case StageToday:
		yesterday := s.now.StartOfDay().AddDays(-1)
		return uc.syncTasks(ctx, s, string(st), ports.Where(
			ports.Filter{Field: "db", Kind: ports.KindText, Op: ports.OpEq, Value: mapper.MarvinTasks},
			ports.Filter{Field: "day", Kind: ports.KindDate, Op: ports.OpGTE, Value: yesterday},
			ports.Filter{Field: "day", Kind: ports.KindDate, Op: ports.OpLTE, Value: s.now},
		))
	case StageProjects:
		return uc.syncProjects(ctx, s)
	case StageReverse:
		return uc.syncReverse(ctx, s)
	case StageActivities:
		return uc.syncActivities(ctx, s)
	case StageTrackers:
		return uc.syncTrackers(ctx, s)
	case StageDaily:
		return uc.syncDaily(ctx, s)
	}
	return nil, fmt.Errorf("unknown stage %q", st)
}

func (uc *SyncUseCase) window() time.Duration {
	if uc.Window <= 0 {
		return DefaultWindow
	}
	return uc.Window
}

func (uc *SyncUseCase) horizon() int {
	if uc.Horizon <= 0 {
		return DefaultHorizon
	}
	return uc.Horizon
}

// recentlyUpdated selects documents of db touched within the window and
// scheduled no later than the horizon.
func (uc *SyncUseCase) recentlyUpdated(s *session, db string) ports.Query {
	q := ports.Where(
		ports.Filter{Field: "db", Kind: ports.KindText, Op: ports.OpEq, Value: db},
		ports.Filter{Field: "updatedAt", Kind: ports.KindLastEdited, Op: ports.OpGTE, Value: s.now.Add(-uc.window())},
	)
	if db == mapper.MarvinTasks {
		q.Filters = append(q.Filters, ports.Filter{
			Field: "day", Kind: ports.KindDate, Op: ports.OpLTE, Value: s.now.AddDays(uc.horizon()),
		})
	}
	return q
}

func (uc *SyncUseCase) syncTasks(ctx context.Context, s *session, stage string, q ports.Query) (*reconcile.Report, error) {
	docs, err := uc.Marvin.FindDocs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: find tasks: %w", stage, err)
	}
	uc.Log.Info("fetched tasks", slog.String("stage", stage), slog.Int("count", len(docs)))
	batch, bad := s.marvin.tasks(ctx, docs)

	eng := &reconcile.Engine[domain.Task]{
		Store:  newNotionTasks(uc.Notion, uc.DBs.Tasks, s.mapper, s.rel, uc.Log),
		Source: domain.Marvin,
		Target: domain.Notion,
		Log:    uc.Log,
	}
	rep := eng.Reconcile(ctx, stage, batch)
	failAll(uc.Log, rep, bad)
	return rep, nil
}

func (uc *SyncUseCase) syncProjects(ctx context.Context, s *session) (*reconcile.Report, error) {
	q := uc.recentlyUpdated(s, mapper.MarvinCategories)
	q.Filters = append(q.Filters, ports.Filter{Field: "type", Kind: ports.KindText, Op: ports.OpEq, Value: string(domain.NodeProject)})
	docs, err := uc.Marvin.FindDocs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("projects: find: %w", err)
	}
	uc.Log.Info("fetched projects", slog.Int("count", len(docs)))
	batch, bad := s.marvin.projects(ctx, docs)

	eng := &reconcile.Engine[domain.Project]{
		Store:  newNotionProjects(uc.Notion, uc.DBs.Projects, s.mapper, s.rel),
		Source: domain.Marvin,
		Target: domain.Notion,
		Log:    uc.Log,
	}
	rep := eng.Reconcile(ctx, string(StageProjects), batch)
	failAll(uc.Log, rep, bad)
	return rep, nil
}

// syncReverse pushes recently edited Notion tasks back to the task manager.
// Sub-item pages and pages flagged for deletion are left alone.
func (uc *SyncUseCase) syncReverse(ctx context.Context, s *session) (*reconcile.Report, error) {
	pages, err := uc.Notion.QueryDatabase(ctx, uc.DBs.Tasks, ports.Where(
		ports.Filter{Kind: ports.KindLastEdited, Op: ports.OpGTE, Value: s.now.Add(-uc.window())},
	))
	if err != nil {
		return nil, fmt.Errorf("reverse: query tasks: %w", err)
	}
	var batch []domain.Task
	var bad []rejected
	for _, pg := range pages {
		if pg.Archived || len(pg.Prop(mapper.TaskParent).Relation) > 0 || pg.Prop(mapper.TaskDelete).Checked() {
			continue
		}
		if err := s.rel.toTitles(ctx, &pg); err != nil {
			bad = append(bad, rejected{pg.Prop(mapper.TaskTitle).Text(), pg.ID, err})
			continue
		}
		t, err := s.mapper.TaskFromNotion(pg, nil)
		if err != nil {
			bad = append(bad, rejected{pg.Prop(mapper.TaskTitle).Text(), pg.ID, err})
			continue
		}
		batch = append(batch, t)
	}
	uc.Log.Info("fetched notion tasks", slog.Int("count", len(batch)))

	eng := &reconcile.Engine[domain.Task]{
		Store:  &marvinTasks{client: uc.Marvin, reader: s.marvin},
		Source: domain.Notion,
		Target: domain.Marvin,
		Log:    uc.Log,
	}
	rep := eng.Reconcile(ctx, string(StageReverse), batch)
	failAll(uc.Log, rep, bad)
	return rep, nil
}

// syncActivities reconciles the activities recorded since yesterday.
func (uc *SyncUseCase) syncActivities(ctx context.Context, s *session) (*reconcile.Report, error) {
	if uc.Garmin == nil {
		return nil, errors.New("activities: no garmin client configured")
	}
	raw, err := uc.Garmin.ListActivities(ctx, s.now.StartOfDay().AddDays(-1), s.now)
	if err != nil {
		return nil, fmt.Errorf("activities: list: %w", err)
	}
	var batch []domain.Activity
	var bad []rejected
	for _, g := range raw {
		a, err := s.mapper.ActivityFromGarmin(g)
		if err != nil {
			bad = append(bad, rejected{g.ActivityName, fmt.Sprint(g.ActivityID), err})
			continue
		}
		batch = append(batch, a)
	}
	uc.Log.Info("fetched activities", slog.Int("count", len(batch)))

	eng := &reconcile.Engine[domain.Activity]{
		Store:  newNotionActivities(uc.Notion, uc.DBs.Activities, s.mapper, s.rel),
		Source: domain.Garmin,
		Target: domain.Notion,
		Log:    uc.Log,
	}
	rep := eng.Reconcile(ctx, string(StageActivities), batch)
	failAll(uc.Log, rep, bad)
	return rep, nil
}

// deleteFlagged removes tasks whose Delete box is ticked in Notion from both
// stores. Sub-item pages only exist in Notion.
func (uc *SyncUseCase) deleteFlagged(ctx context.Context, s *session) (*reconcile.Report, error) {
	pages, err := uc.Notion.QueryDatabase(ctx, uc.DBs.Tasks, ports.Where(
		ports.Filter{Field: mapper.TaskDelete, Kind: ports.KindCheckbox, Op: ports.OpEq, Value: true},
	))
	if err != nil {
		return nil, fmt.Errorf("delete: query flagged: %w", err)
	}
	var batch []domain.Task
	var bad []rejected
	for _, pg := range pages {
		t, err := s.mapper.TaskFromNotion(pg, nil)
		if err != nil {
			bad = append(bad, rejected{pg.ID, pg.ID, err})
			continue
		}
		if len(pg.Prop(mapper.TaskParent).Relation) > 0 {
			t.MarvinID = ""
		}
		batch = append(batch, t)
	}
	uc.Log.Info("found tasks to delete", slog.Int("count", len(batch)))

	rep := reconcile.Purge(ctx, uc.Log, string(StageDelete), domain.Notion, batch, map[domain.System]reconcile.Remover{
		domain.Marvin: reconcile.RemoverFunc(uc.Marvin.DeleteDoc),
		domain.Notion: reconcile.RemoverFunc(uc.Notion.ArchivePage),
	})
	failAll(uc.Log, rep, bad)
	return rep, nil
}

// failAll records and logs the entities of a stage that never reached the
// engine.
func failAll(log *slog.Logger, rep *reconcile.Report, bad []rejected) {
	for _, b := range bad {
		log.Error("entity rejected",
			slog.String("stage", rep.Stage),
			slog.String("title", b.title),
			slog.String("source_id", b.id),
			slog.String("error", b.err.Error()),
		)
		rep.Fail(b.title, b.id, b.err)
	}
}
