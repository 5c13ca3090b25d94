package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"tasksync/internal/domain"
	"tasksync/internal/mapper"
	"tasksync/internal/ports"
	"tasksync/internal/reconcile"
	"tasksync/internal/timecube"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// fakeMarvin keeps documents in memory. Time filters are not evaluated;
// queries are recorded so tests can inspect them.
type fakeMarvin struct {
	docs    map[string]mapper.MarvinDoc
	labels   []mapper.MarvinLabel
	trackers []mapper.MarvinTracker
	queries  []ports.Query
	next     int

	creates   int
	updates   []string
	deleted   []string
	deleteErr error
	findErr   error
	saved     []mapper.MarvinTracker
}

func newFakeMarvin(docs ...mapper.MarvinDoc) *fakeMarvin {
	f := &fakeMarvin{docs: map[string]mapper.MarvinDoc{}}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *fakeMarvin) FindDocs(_ context.Context, q ports.Query) ([]mapper.MarvinDoc, error) {
	f.queries = append(f.queries, q)
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []mapper.MarvinDoc
	for _, d := range f.docs {
		if docMatches(d, q) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func docMatches(d mapper.MarvinDoc, q ports.Query) bool {
	for _, f := range q.Filters {
		var got string
		switch f.Field {
		case "db":
			got = d.DB
		case "_id":
			got = d.ID
		case "title":
			got = d.Title
		case "note":
			got = d.Note
		case "type":
			got = d.Type
		default:
			continue
		}
		if got != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

func (f *fakeMarvin) GetDoc(_ context.Context, id string) (domain.Lookup[mapper.MarvinDoc], error) {
	if d, ok := f.docs[id]; ok {
		return domain.Found(d), nil
	}
	return domain.NotFound[mapper.MarvinDoc](), nil
}

func (f *fakeMarvin) CreateTask(_ context.Context, doc mapper.MarvinDoc) (mapper.MarvinDoc, error) {
	f.creates++
	f.next++
	doc.ID = fmt.Sprintf("new-task-%d", f.next)
	f.docs[doc.ID] = doc
	return doc, nil
}

func (f *fakeMarvin) UpdateDoc(_ context.Context, id string, patch map[string]any) error {
	d, ok := f.docs[id]
	if !ok {
		return fmt.Errorf("marvin: unexpected status 404: %s", id)
	}
	f.updates = append(f.updates, id)
	for k, v := range patch {
		switch k {
		case "title":
			d.Title = v.(string)
		case "done":
			d.Done = v.(bool)
		case "day":
			d.Day = v.(string)
		case "note":
			d.Note = v.(string)
		case "timeEstimate":
			d.TimeEstimate = v.(int64)
		case "duration":
			d.Duration = v.(int64)
		case "plannedWeek":
			d.PlannedWeek = v.(string)
		case "plannedMonth":
			d.PlannedMonth = v.(string)
		case "dependsOn":
			d.DependsOn = v.(map[string]bool)
		}
	}
	f.docs[id] = d
	return nil
}

func (f *fakeMarvin) DeleteDoc(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.docs[id]; !ok {
		return fmt.Errorf("marvin: unexpected status 404: %s", id)
	}
	delete(f.docs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeMarvin) Labels(context.Context) ([]mapper.MarvinLabel, error) { return f.labels, nil }

// Trackers returns copies of the stored trackers.
func (f *fakeMarvin) Trackers(context.Context) ([]mapper.MarvinTracker, error) {
	out := make([]mapper.MarvinTracker, len(f.trackers))
	for i, t := range f.trackers {
		t.History = append([]float64(nil), t.History...)
		out[i] = t
	}
	return out, nil
}

func (f *fakeMarvin) SaveTracker(_ context.Context, t mapper.MarvinTracker) error {
	for i := range f.trackers {
		if f.trackers[i].ID == t.ID {
			f.trackers[i] = t
			f.saved = append(f.saved, t)
			return nil
		}
	}
	return fmt.Errorf("marvin: unexpected status 404: %s", t.ID)
}

// fakeNotion is a set of in-memory databases. Last-edited filters and date
// ranges are not evaluated.
type fakeNotion struct {
	pages map[string]mapper.Page
	dbOf  map[string]string
	next  int

	creates  int
	updates  int
	archived []string
	queryErr map[string]error // by database
}

func newFakeNotion() *fakeNotion {
	return &fakeNotion{pages: map[string]mapper.Page{}, dbOf: map[string]string{}, queryErr: map[string]error{}}
}

func pageID(n int) string { return fmt.Sprintf("%08x-0000-4000-8000-%012x", n, n) }

// seed adds a page titled title under the given title property.
func (f *fakeNotion) seed(db, titleField, title string) string {
	f.next++
	id := pageID(f.next)
	f.pages[id] = mapper.Page{ID: id, Properties: map[string]mapper.Property{titleField: mapper.TitleProp(title)}}
	f.dbOf[id] = db
	return id
}

func (f *fakeNotion) inDB(db string) []mapper.Page {
	var out []mapper.Page
	for id, pg := range f.pages {
		if f.dbOf[id] == db && !pg.Archived {
			out = append(out, pg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeNotion) QueryDatabase(_ context.Context, db string, q ports.Query) ([]mapper.Page, error) {
	if err := f.queryErr[db]; err != nil {
		return nil, err
	}
	var out []mapper.Page
	for _, pg := range f.inDB(db) {
		if pageMatches(pg, q) {
			out = append(out, pg)
		}
	}
	return out, nil
}

func pageMatches(pg mapper.Page, q ports.Query) bool {
	for _, f := range q.Filters {
		p := pg.Prop(f.Field)
		switch f.Kind {
		case ports.KindText, ports.KindTitle:
			if p.Text() != fmt.Sprint(f.Value) {
				return false
			}
		case ports.KindDate:
			i, ok := f.Value.(timecube.Instant)
			if f.Op == ports.OpEq && ok && !strings.HasPrefix(p.DateStart(), i.Date()) {
				return false
			}
		case ports.KindCheckbox:
			if p.Checked() != f.Value.(bool) {
				return false
			}
		case ports.KindRelation:
			found := false
			for _, r := range p.Relation {
				found = found || r.ID == f.Value
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func (f *fakeNotion) GetPage(_ context.Context, id string) (domain.Lookup[mapper.Page], error) {
	if pg, ok := f.pages[id]; ok {
		return domain.Found(pg), nil
	}
	return domain.NotFound[mapper.Page](), nil
}

func (f *fakeNotion) CreatePage(_ context.Context, db string, pg mapper.Page) (mapper.Page, error) {
	f.creates++
	f.next++
	pg.ID = pageID(f.next)
	f.pages[pg.ID] = pg
	f.dbOf[pg.ID] = db
	return pg, nil
}

func (f *fakeNotion) UpdatePage(_ context.Context, pg mapper.Page) error {
	cur, ok := f.pages[pg.ID]
	if !ok {
		return errors.New("notion: unexpected status 404")
	}
	f.updates++
	for k, v := range pg.Properties {
		cur.Properties[k] = v
	}
	f.pages[pg.ID] = cur
	return nil
}

func (f *fakeNotion) ArchivePage(_ context.Context, id string) error {
	pg, ok := f.pages[id]
	if !ok {
		return errors.New("notion: unexpected status 404")
	}
	pg.Archived = true
	f.pages[id] = pg
	f.archived = append(f.archived, id)
	return nil
}

func (f *fakeNotion) FindByTitle(_ context.Context, db, field, text string) (domain.Lookup[mapper.Page], error) {
	for _, pg := range f.inDB(db) {
		if pg.Prop(field).Text() == text {
			return domain.Found(pg), nil
		}
	}
	return domain.NotFound[mapper.Page](), nil
}

type fakeGarmin struct {
	activities []mapper.GarminActivity
	daily      mapper.GarminDaily
	from, to   timecube.Instant
	day        timecube.Instant
}

func (f *fakeGarmin) ListActivities(_ context.Context, from, to timecube.Instant) ([]mapper.GarminActivity, error) {
	f.from, f.to = from, to
	return f.activities, nil
}

func (f *fakeGarmin) DailySummary(_ context.Context, day timecube.Instant) (mapper.GarminDaily, error) {
	f.day = day
	return f.daily, nil
}

type fakeSink struct {
	runs []*reconcile.RunSummary
}

func (f *fakeSink) RecordRun(_ context.Context, run *reconcile.RunSummary) error {
	f.runs = append(f.runs, run)
	return nil
}
