package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"tasksync/internal/domain"
	"tasksync/internal/mapper"
	"tasksync/internal/ports"
	"tasksync/internal/reconcile"
)

// syncTrackers copies the current value of every Notion tracker onto the
// task manager tracker of the same title, dated today.
func (uc *SyncUseCase) syncTrackers(ctx context.Context, s *session) (*reconcile.Report, error) {
	if uc.DBs.Trackers == "" {
		return nil, errors.New("trackers: no trackers database configured")
	}
	pages, err := uc.Notion.QueryDatabase(ctx, uc.DBs.Trackers, ports.Query{})
	if err != nil {
		return nil, fmt.Errorf("trackers: query: %w", err)
	}
	docs, err := uc.Marvin.Trackers(ctx)
	if err != nil {
		return nil, fmt.Errorf("trackers: list: %w", err)
	}
	byTitle := make(map[string]*mapper.MarvinTracker, len(docs))
	for i := range docs {
		byTitle[strings.TrimSpace(docs[i].Title)] = &docs[i]
	}
	uc.Log.Info("fetched trackers", slog.Int("notion", len(pages)), slog.Int("marvin", len(docs)))

	rep := reconcile.NewReport(string(StageTrackers), domain.Notion, domain.Marvin)
	var bad []rejected
	for _, pg := range pages {
		tr, ok := mapper.TrackerFromNotion(pg)
		if !ok {
			uc.Log.Debug("tracker page skipped", slog.String("page", pg.ID))
			continue
		}
		doc, found := byTitle[tr.Title]
		if !found {
			bad = append(bad, rejected{tr.Title, pg.ID, fmt.Errorf("no marvin tracker titled %q", tr.Title)})
			continue
		}
		o := reconcile.Outcome{Title: tr.Title, SourceID: pg.ID, TargetID: doc.ID, Action: reconcile.Unchanged}
		if s.mapper.RecordTrackerValue(doc, s.now, tr.Value) {
			if err := uc.Marvin.SaveTracker(ctx, *doc); err != nil {
				bad = append(bad, rejected{tr.Title, pg.ID, err})
				continue
			}
			o.Action, o.Fields = reconcile.Updated, []string{"history"}
			uc.Log.Info("tracker updated", slog.String("title", tr.Title), slog.Float64("value", tr.Value))
		}
		rep.Record(o)
	}
	failAll(uc.Log, rep, bad)
	return rep, nil
}

// syncDaily writes today's wearable totals onto today's daily tracking page
// and, when configured, today's steps page. The pages are not created here.
func (uc *SyncUseCase) syncDaily(ctx context.Context, s *session) (*reconcile.Report, error) {
	if uc.Garmin == nil {
		return nil, errors.New("daily: no garmin client configured")
	}
	if uc.DBs.DailyTracking == "" {
		return nil, errors.New("daily: no daily tracking database configured")
	}
	raw, err := uc.Garmin.DailySummary(ctx, s.now)
	if err != nil {
		return nil, fmt.Errorf("daily: summary: %w", err)
	}
	stats := mapper.DailyFromGarmin(raw)
	uc.Log.Info("fetched daily summary", slog.String("date", s.now.Date()), slog.Int("steps", stats.Steps))

	targets := []dayTarget{{uc.DBs.DailyTracking, mapper.DailyToNotion(stats)}}
	if uc.DBs.Steps != "" {
		targets = append(targets, dayTarget{uc.DBs.Steps, mapper.StepsToNotion(stats)})
	}

	rep := reconcile.NewReport(string(StageDaily), domain.Garmin, domain.Notion)
	var bad []rejected
	for _, t := range targets {
		o, err := uc.patchDayPage(ctx, s, t.db, t.props)
		if err != nil {
			bad = append(bad, rejected{s.now.Date(), t.db, err})
			continue
		}
		rep.Record(o)
	}
	failAll(uc.Log, rep, bad)
	return rep, nil
}

type dayTarget struct {
	db    string
	props map[string]mapper.Property
}

// patchDayPage sets the properties of want that differ on the page of db
// dated today.
func (uc *SyncUseCase) patchDayPage(ctx context.Context, s *session, db string, want map[string]mapper.Property) (reconcile.Outcome, error) {
	date := s.now.Date()
	pages, err := uc.Notion.QueryDatabase(ctx, db, ports.Where(
		ports.Filter{Field: mapper.DailyDate, Kind: ports.KindDate, Op: ports.OpEq, Value: s.now},
	))
	if err != nil {
		return reconcile.Outcome{}, fmt.Errorf("query %s: %w", db, err)
	}
	if len(pages) == 0 {
		return reconcile.Outcome{}, fmt.Errorf("no page dated %s in %s", date, db)
	}
	pg := pages[0]
	o := reconcile.Outcome{Title: date, SourceID: date, TargetID: pg.ID, Action: reconcile.Unchanged}

	patch := map[string]mapper.Property{}
	for name, p := range want {
		if !sameValue(p, pg.Prop(name)) {
			patch[name] = p
			o.Fields = append(o.Fields, name)
		}
	}
	if len(patch) == 0 {
		return o, nil
	}
	sort.Strings(o.Fields)
	if err := uc.Notion.UpdatePage(ctx, mapper.Page{ID: pg.ID, Properties: patch}); err != nil {
		return reconcile.Outcome{}, fmt.Errorf("update %s: %w", pg.ID, err)
	}
	o.Action = reconcile.Updated
	uc.Log.Info("daily page updated", slog.String("page", pg.ID), slog.Any("fields", o.Fields))
	return o, nil
}

func sameValue(want, have mapper.Property) bool {
	if want.Type == mapper.PropNumber {
		return have.Number != nil && want.Num() == have.Num()
	}
	return want.Text() == have.Text()
}
