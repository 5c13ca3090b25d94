package usecase

import (
	"context"
	"log/slog"

	"tasksync/internal/domain"
	"tasksync/internal/mapper"
	"tasksync/internal/ports"
)

// notionPages holds what the Notion stores share: the client, one target
// database and the keyed lookup of a counterpart page.
type notionPages struct {
	client     ports.NotionClient
	db         string
	titleField string
	keyField   string        // rich_text property holding the source id
	keySystem  domain.System // system whose id keyField holds
	rel        *relations
}

// find returns the live page for refs: by page id when known, otherwise by
// the source id stored on the page. Relation titles are filled.
func (n *notionPages) find(ctx context.Context, refs domain.Refs) (domain.Lookup[mapper.Page], error) {
	if refs.NotionID != "" {
		res, err := n.client.GetPage(ctx, refs.NotionID)
		if err != nil {
			return res, err
		}
		if pg, ok := res.Get(); ok && !pg.Archived {
			return n.withTitles(ctx, pg)
		}
	}
	key := refs.ID(n.keySystem)
	if key == "" {
		return domain.NotFound[mapper.Page](), nil
	}
	pages, err := n.client.QueryDatabase(ctx, n.db, ports.Where(
		ports.Filter{Field: n.keyField, Kind: ports.KindText, Op: ports.OpEq, Value: key},
	))
	if err != nil {
		return domain.NotFound[mapper.Page](), err
	}
	for _, pg := range pages {
		if !pg.Archived {
			return n.withTitles(ctx, pg)
		}
	}
	return domain.NotFound[mapper.Page](), nil
}

func (n *notionPages) withTitles(ctx context.Context, pg mapper.Page) (domain.Lookup[mapper.Page], error) {
	if err := n.rel.toTitles(ctx, &pg); err != nil {
		return domain.NotFound[mapper.Page](), err
	}
	return domain.Found(pg), nil
}

func (n *notionPages) create(ctx context.Context, pg mapper.Page) (string, error) {
	if err := n.rel.toIDs(ctx, pg.Properties); err != nil {
		return "", err
	}
	created, err := n.client.CreatePage(ctx, n.db, pg)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (n *notionPages) update(ctx context.Context, pg mapper.Page) error {
	if err := n.rel.toIDs(ctx, pg.Properties); err != nil {
		return err
	}
	return n.client.UpdatePage(ctx, pg)
}

func (n *notionPages) findIDByTitle(ctx context.Context, title string) (domain.Lookup[string], error) {
	res, err := n.client.FindByTitle(ctx, n.db, n.titleField, title)
	if err != nil {
		return domain.NotFound[string](), err
	}
	return firstID(res), nil
}

func (n *notionPages) attach(ctx context.Context, id string, dependsOn []string) error {
	return n.client.UpdatePage(ctx, mapper.Page{ID: id, Properties: map[string]mapper.Property{
		mapper.TaskDependsOn: mapper.RelationByID(dependsOn...),
	}})
}

// notionTasks is the task database as a reconcile.Counterpart.
type notionTasks struct {
	pages  notionPages
	mapper *mapper.Mapper
	log    *slog.Logger
}

func newNotionTasks(c ports.NotionClient, db string, m *mapper.Mapper, rel *relations, log *slog.Logger) *notionTasks {
	return &notionTasks{
		pages:  notionPages{client: c, db: db, titleField: mapper.TaskTitle, keyField: mapper.TaskMarvinID, keySystem: domain.Marvin, rel: rel},
		mapper: m,
		log:    log,
	}
}

func (s *notionTasks) Lookup(ctx context.Context, refs domain.Refs) (domain.Lookup[domain.Task], error) {
	res, err := s.pages.find(ctx, refs)
	pg, ok := res.Get()
	if err != nil || !ok {
		return domain.NotFound[domain.Task](), err
	}
	t, err := s.mapper.TaskFromNotion(pg, nil)
	if err != nil {
		return domain.NotFound[domain.Task](), err
	}
	return domain.Found(t), nil
}

// Storable drops planned labels that have no page to link to.
func (s *notionTasks) Storable(ctx context.Context, t domain.Task) (domain.Task, error) {
	var err error
	t.Planning, err = s.pages.rel.storablePlanning(ctx, t.Planning)
	return t, err
}

func (s *notionTasks) Create(ctx context.Context, t domain.Task) (string, error) {
	pg, subs := s.mapper.TaskToNotion(t)
	pg.ID = ""
	id, err := s.pages.create(ctx, pg)
	if err != nil {
		return "", err
	}
	s.syncSubtasks(ctx, id, subs, nil)
	return id, nil
}

func (s *notionTasks) Update(ctx context.Context, t domain.Task) error {
	pg, subs := s.mapper.TaskToNotion(t)
	if err := s.pages.update(ctx, pg); err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}
	existing, err := s.subtaskPages(ctx, pg.ID)
	if err != nil {
		s.log.Warn("list subtasks failed", slog.String("task", t.Title), slog.String("error", err.Error()))
		return nil
	}
	s.syncSubtasks(ctx, pg.ID, subs, existing)
	return nil
}

// subtaskPages maps the source id of each sub-item of parentID to its page.
func (s *notionTasks) subtaskPages(ctx context.Context, parentID string) (map[string]string, error) {
	pages, err := s.pages.client.QueryDatabase(ctx, s.pages.db, ports.Where(
		ports.Filter{Field: mapper.TaskParent, Kind: ports.KindRelation, Op: ports.OpContains, Value: parentID},
	))
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(pages))
	for _, pg := range pages {
		if key := pg.Prop(mapper.TaskMarvinID).Text(); key != "" {
			out[key] = pg.ID
		}
	}
	return out, nil
}

// syncSubtasks links every subtask page to parentID, updating pages that
// already exist. Subtask failures are logged and do not fail the task.
func (s *notionTasks) syncSubtasks(ctx context.Context, parentID string, subs []mapper.Page, existing map[string]string) {
	for _, sub := range subs {
		sub.Properties[mapper.TaskParent] = mapper.RelationByID(parentID)
		key := sub.Prop(mapper.TaskMarvinID).Text()
		var err error
		if id, ok := existing[key]; ok && key != "" {
			sub.ID = id
			err = s.pages.update(ctx, sub)
		} else {
			sub.ID = ""
			_, err = s.pages.create(ctx, sub)
		}
		if err != nil {
			s.log.Warn("subtask sync failed",
				slog.String("parent", parentID),
				slog.String("subtask", sub.Prop(mapper.TaskTitle).Text()),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *notionTasks) FindIDByTitle(ctx context.Context, title string) (domain.Lookup[string], error) {
	return s.pages.findIDByTitle(ctx, title)
}

func (s *notionTasks) AttachDependency(ctx context.Context, id string, dependsOn []string) error {
	return s.pages.attach(ctx, id, dependsOn)
}

// notionProjects is the project database as a reconcile.Counterpart.
type notionProjects struct {
	pages  notionPages
	mapper *mapper.Mapper
}

func newNotionProjects(c ports.NotionClient, db string, m *mapper.Mapper, rel *relations) *notionProjects {
	return &notionProjects{
		pages:  notionPages{client: c, db: db, titleField: mapper.ProjectTitle, keyField: mapper.ProjectMarvinID, keySystem: domain.Marvin, rel: rel},
		mapper: m,
	}
}

func (s *notionProjects) Lookup(ctx context.Context, refs domain.Refs) (domain.Lookup[domain.Project], error) {
	res, err := s.pages.find(ctx, refs)
	pg, ok := res.Get()
	if err != nil || !ok {
		return domain.NotFound[domain.Project](), err
	}
	p, err := s.mapper.ProjectFromNotion(pg)
	if err != nil {
		return domain.NotFound[domain.Project](), err
	}
	p.DependsOn = pg.Prop(mapper.TaskDependsOn).Titles()
	return domain.Found(p), nil
}

func (s *notionProjects) Storable(ctx context.Context, p domain.Project) (domain.Project, error) {
	var err error
	p.Planning, err = s.pages.rel.storablePlanning(ctx, p.Planning)
	return p, err
}

func (s *notionProjects) Create(ctx context.Context, p domain.Project) (string, error) {
	pg := s.mapper.ProjectToNotion(p)
	pg.ID = ""
	return s.pages.create(ctx, pg)
}

func (s *notionProjects) Update(ctx context.Context, p domain.Project) error {
	return s.pages.update(ctx, s.mapper.ProjectToNotion(p))
}

func (s *notionProjects) FindIDByTitle(ctx context.Context, title string) (domain.Lookup[string], error) {
	return s.pages.findIDByTitle(ctx, title)
}

func (s *notionProjects) AttachDependency(ctx context.Context, id string, dependsOn []string) error {
	return s.pages.attach(ctx, id, dependsOn)
}

// notionActivities is the activity database as a reconcile.Counterpart.
type notionActivities struct {
	pages  notionPages
	mapper *mapper.Mapper
}

func newNotionActivities(c ports.NotionClient, db string, m *mapper.Mapper, rel *relations) *notionActivities {
	return &notionActivities{
		pages:  notionPages{client: c, db: db, titleField: mapper.ActivityTitle, keyField: mapper.ActivityGarminID, keySystem: domain.Garmin, rel: rel},
		mapper: m,
	}
}

func (s *notionActivities) Lookup(ctx context.Context, refs domain.Refs) (domain.Lookup[domain.Activity], error) {
	res, err := s.pages.find(ctx, refs)
	pg, ok := res.Get()
	if err != nil || !ok {
		return domain.NotFound[domain.Activity](), err
	}
	a, err := s.mapper.ActivityFromNotion(pg)
	if err != nil {
		return domain.NotFound[domain.Activity](), err
	}
	return domain.Found(a), nil
}

func (s *notionActivities) Create(ctx context.Context, a domain.Activity) (string, error) {
	pg := s.mapper.ActivityToNotion(a)
	pg.ID = ""
	return s.pages.create(ctx, pg)
}

func (s *notionActivities) Update(ctx context.Context, a domain.Activity) error {
	return s.pages.update(ctx, s.mapper.ActivityToNotion(a))
}

func (s *notionActivities) FindIDByTitle(ctx context.Context, title string) (domain.Lookup[string], error) {
	return s.pages.findIDByTitle(ctx, title)
}

// AttachDependency is never reached: activities have no dependencies.
func (s *notionActivities) AttachDependency(context.Context, string, []string) error { return nil }
