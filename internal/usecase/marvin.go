package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"tasksync/internal/cache"
	"tasksync/internal/domain"
	"tasksync/internal/mapper"
	"tasksync/internal/ports"
	"tasksync/internal/taxonomy"
)

// marvinAncestors feeds the taxonomy resolver from the category database.
type marvinAncestors struct {
	client ports.MarvinClient
}

func (a marvinAncestors) Node(ctx context.Context, id string) (domain.Lookup[domain.TaxonomyNode], error) {
	res, err := a.client.GetDoc(ctx, id)
	if err != nil {
		return domain.NotFound[domain.TaxonomyNode](), err
	}
	doc, ok := res.Get()
	if !ok {
		return domain.NotFound[domain.TaxonomyNode](), nil
	}
	return domain.Found(mapper.NodeFromMarvin(doc)), nil
}

// marvinReader loads task manager documents and fills the fields that need
// a second lookup: label titles, goal titles, dependency titles and the
// resolved taxonomy.
type marvinReader struct {
	client   ports.MarvinClient
	mapper   *mapper.Mapper
	resolver *taxonomy.Resolver
	labels   *cache.Map[string, string]
	goals    *cache.Map[string, string]
	titles   *cache.Map[string, string]
	loaded   bool
	log      *slog.Logger
}

func newMarvinReader(c ports.MarvinClient, m *mapper.Mapper, r *taxonomy.Resolver, log *slog.Logger) *marvinReader {
	return &marvinReader{
		client:   c,
		mapper:   m,
		resolver: r,
		labels:   cache.New[string, string](),
		goals:    cache.New[string, string](),
		titles:   cache.New[string, string](),
		log:      log,
	}
}

// rejected is a source entity that never reached the engine.
type rejected struct {
	title string
	id    string
	err   error
}

// tasks enriches and maps task documents. Documents that cannot be mapped
// are returned as rejected.
func (r *marvinReader) tasks(ctx context.Context, docs []mapper.MarvinDoc) ([]domain.Task, []rejected) {
	var out []domain.Task
	var bad []rejected
	for _, d := range docs {
		if err := r.enrich(ctx, &d, true); err != nil {
			bad = append(bad, rejected{d.Title, d.ID, err})
			continue
		}
		t, err := r.mapper.TaskFromMarvin(d)
		if err != nil {
			bad = append(bad, rejected{d.Title, d.ID, err})
			continue
		}
		out = append(out, t)
	}
	return out, bad
}

func (r *marvinReader) projects(ctx context.Context, docs []mapper.MarvinDoc) ([]domain.Project, []rejected) {
	var out []domain.Project
	var bad []rejected
	for _, d := range docs {
		if err := r.enrich(ctx, &d, false); err != nil {
			bad = append(bad, rejected{d.Title, d.ID, err})
			continue
		}
		p, err := r.mapper.ProjectFromMarvin(d)
		if err != nil {
			bad = append(bad, rejected{d.Title, d.ID, err})
			continue
		}
		out = append(out, p)
	}
	return out, bad
}

func (r *marvinReader) enrich(ctx context.Context, d *mapper.MarvinDoc, task bool) error {
	cls, err := r.resolver.Resolve(ctx, d.ParentID)
	if err != nil {
		return err
	}
	d.Classification = cls

	goals, err := r.goalTitles(ctx, d.GoalIDs)
	if err != nil {
		return err
	}
	d.Goals = goals
	if !task {
		return nil
	}

	labels, err := r.labelTitles(ctx, d.LabelIDs)
	if err != nil {
		return err
	}
	d.Labels = labels

	deps, err := r.dependencyTitles(ctx, d.DependencyIDs())
	if err != nil {
		return err
	}
	d.DependsOnTitles = deps
	return nil
}

// labelTitles loads the label list once per run. Unknown ids pass through.
func (r *marvinReader) labelTitles(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if !r.loaded {
		all, err := r.client.Labels(ctx)
		if err != nil {
			return nil, fmt.Errorf("labels: %w", err)
		}
		for _, l := range all {
			r.labels.Put(l.ID, l.Title)
		}
		r.loaded = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if title, ok := r.labels.Get(id); ok {
			out = append(out, title)
		} else {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *marvinReader) goalTitles(ctx context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		title, err := r.goals.GetOrLoad(id, func(id string) (string, error) {
			docs, err := r.client.FindDocs(ctx, ports.Where(
				ports.Filter{Field: "db", Kind: ports.KindText, Op: ports.OpEq, Value: mapper.MarvinGoals},
				ports.Filter{Field: "_id", Kind: ports.KindText, Op: ports.OpEq, Value: id},
			))
			if err != nil || len(docs) == 0 {
				return "", err
			}
			return docs[0].Title, nil
		})
		if err != nil {
			return nil, fmt.Errorf("goal %s: %w", id, err)
		}
		if title != "" {
			out = append(out, title)
		}
	}
	return out, nil
}

// dependencyTitles maps dependency ids to the titles their tasks carry once
// mapped, i.e. without a clock prefix.
func (r *marvinReader) dependencyTitles(ctx context.Context, ids []string) ([]string, error) {
	var out []string
	for _, id := range ids {
		title, err := r.titles.GetOrLoad(id, func(id string) (string, error) {
			res, err := r.client.GetDoc(ctx, id)
			if err != nil {
				return "", err
			}
			doc, ok := res.Get()
			if !ok {
				return "", nil
			}
			if t, err := r.mapper.TaskFromMarvin(doc); err == nil {
				return t.Title, nil
			}
			return doc.Title, nil
		})
		if err != nil {
			return nil, fmt.Errorf("dependency %s: %w", id, err)
		}
		if title == "" {
			r.log.Warn("dependency not found", slog.String("id", id))
			continue
		}
		out = append(out, title)
	}
	return out, nil
}

// marvinTasks is the task manager seen as a reconcile.Counterpart for
// tasks coming from Notion.
type marvinTasks struct {
	client ports.MarvinClient
	reader *marvinReader
}

func (s *marvinTasks) Lookup(ctx context.Context, refs domain.Refs) (domain.Lookup[domain.Task], error) {
	var doc mapper.MarvinDoc
	switch {
	case refs.MarvinID != "":
		res, err := s.client.GetDoc(ctx, refs.MarvinID)
		if err != nil {
			return domain.NotFound[domain.Task](), err
		}
		d, ok := res.Get()
		if !ok {
			return domain.NotFound[domain.Task](), nil
		}
		doc = d
	case refs.NotionID != "":
		docs, err := s.client.FindDocs(ctx, ports.Where(
			ports.Filter{Field: "db", Kind: ports.KindText, Op: ports.OpEq, Value: mapper.MarvinTasks},
			ports.Filter{Field: "note", Kind: ports.KindText, Op: ports.OpEq, Value: refs.NotionID},
		))
		if err != nil {
			return domain.NotFound[domain.Task](), err
		}
		if len(docs) == 0 {
			return domain.NotFound[domain.Task](), nil
		}
		doc = docs[0]
	default:
		return domain.NotFound[domain.Task](), domain.ErrUnkeyed
	}
	deps, err := s.reader.dependencyTitles(ctx, doc.DependencyIDs())
	if err != nil {
		return domain.NotFound[domain.Task](), err
	}
	doc.DependsOnTitles = deps
	t, err := s.reader.mapper.TaskFromMarvin(doc)
	if err != nil {
		return domain.NotFound[domain.Task](), err
	}
	return domain.Found(t), nil
}

func (s *marvinTasks) Create(ctx context.Context, t domain.Task) (string, error) {
	doc, err := s.reader.mapper.TaskToMarvin(t)
	if err != nil {
		return "", err
	}
	doc.ParentID, err = s.parentFor(ctx, t.Project)
	if err != nil {
		return "", err
	}
	doc.DependsOn = nil
	created, err := s.client.CreateTask(ctx, doc)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// parentFor finds the project a new task is filed under.
func (s *marvinTasks) parentFor(ctx context.Context, project string) (string, error) {
	if project == "" || project == domain.InboxProject {
		return domain.UnassignedID, nil
	}
	docs, err := s.client.FindDocs(ctx, ports.Where(
		ports.Filter{Field: "db", Kind: ports.KindText, Op: ports.OpEq, Value: mapper.MarvinCategories},
		ports.Filter{Field: "title", Kind: ports.KindTitle, Op: ports.OpEq, Value: project},
	))
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return domain.UnassignedID, nil
	}
	return docs[0].ID, nil
}

// Storable narrows t to what the task manager can hold.
func (s *marvinTasks) Storable(_ context.Context, t domain.Task) (domain.Task, error) {
	t.Planning = s.reader.mapper.MarvinPlanning(t.Planning)
	return t, nil
}

// Update writes only the watched fields.
func (s *marvinTasks) Update(ctx context.Context, t domain.Task) error {
	doc, err := s.reader.mapper.TaskToMarvin(t)
	if err != nil {
		return err
	}
	day := doc.Day
	if day == "" {
		day = domain.UnassignedID
	}
	return s.client.UpdateDoc(ctx, t.MarvinID, map[string]any{
		"title":        doc.Title,
		"done":         doc.Done,
		"day":          day,
		"timeEstimate": doc.TimeEstimate,
		"duration":     doc.Duration,
		"plannedWeek":  doc.PlannedWeek,
		"plannedMonth": doc.PlannedMonth,
		"note":         doc.Note,
	})
}

func (s *marvinTasks) FindIDByTitle(ctx context.Context, title string) (domain.Lookup[string], error) {
	docs, err := s.client.FindDocs(ctx, ports.Where(
		ports.Filter{Field: "db", Kind: ports.KindText, Op: ports.OpEq, Value: mapper.MarvinTasks},
		ports.Filter{Field: "title", Kind: ports.KindTitle, Op: ports.OpEq, Value: title},
	))
	if err != nil {
		return domain.NotFound[string](), err
	}
	if len(docs) == 0 {
		return domain.NotFound[string](), nil
	}
	return domain.Found(docs[0].ID), nil
}

func (s *marvinTasks) AttachDependency(ctx context.Context, id string, dependsOn []string) error {
	deps := make(map[string]bool, len(dependsOn))
	for _, d := range dependsOn {
		deps[d] = true
	}
	return s.client.UpdateDoc(ctx, id, map[string]any{"dependsOn": deps})
}
