package usecase

import (
	"context"
	"log/slog"

	"tasksync/internal/cache"
	"tasksync/internal/domain"
	"tasksync/internal/mapper"
	"tasksync/internal/ports"
)

// NotionDatabases names every database a run touches.
type NotionDatabases struct {
	Tasks         string
	Projects      string
	Activities    string
	Pillars       string
	Subcategories string
	Goals         string
	Weeks         string
	Months        string
	Quarters      string
	Trackers      string
	DailyTracking string
	Steps         string
}

// Title properties of the lookup databases.
const (
	pillarTitle  = "Pillar"
	nameTitle    = "Name"
	quarterTitle = "Quarter"
)

type relationTarget struct {
	db         string
	titleField string
}

// relations swaps relation titles for page ids on the way into Notion and
// fills titles on the way out. Both directions are memoized for one run.
type relations struct {
	notion  ports.NotionClient
	targets map[string]relationTarget
	ids     *cache.Map[relationKey, string]
	titles  *cache.Map[string, string]
	log     *slog.Logger
}

type relationKey struct {
	db    string
	title string
}

func newRelations(n ports.NotionClient, dbs NotionDatabases, log *slog.Logger) *relations {
	return &relations{
		notion: n,
		targets: map[string]relationTarget{
			mapper.TaskDependsOn:      {dbs.Tasks, mapper.TaskTitle},
			mapper.TaskProjects:       {dbs.Projects, mapper.ProjectTitle},
			mapper.TaskSubcategory:    {dbs.Subcategories, nameTitle},
			mapper.TaskPillar:         {dbs.Pillars, pillarTitle},
			mapper.TaskGoals:          {dbs.Goals, nameTitle},
			mapper.ProjectGoals:       {dbs.Goals, nameTitle},
			mapper.TaskPlannedWeek:    {dbs.Weeks, nameTitle},
			mapper.TaskPlannedMonth:   {dbs.Months, nameTitle},
			mapper.TaskPlannedQuarter: {dbs.Quarters, quarterTitle},
		},
		ids:    cache.New[relationKey, string](),
		titles: cache.New[string, string](),
		log:    log,
	}
}

// toIDs resolves every titled relation on props. Relations whose database is
// not configured are left out of the write; titles with no page are dropped.
func (r *relations) toIDs(ctx context.Context, props map[string]mapper.Property) error {
	for name, p := range props {
		if p.Type != mapper.PropRelation {
			continue
		}
		target, ok := r.targets[name]
		if !ok || target.db == "" {
			delete(props, name)
			continue
		}
		ids := make([]string, 0, len(p.Relation))
		for _, rel := range p.Relation {
			if rel.ID != "" {
				ids = append(ids, rel.ID)
				continue
			}
			id, err := r.idFor(ctx, target, rel.Title)
			if err != nil {
				return err
			}
			if id == "" {
				r.log.Warn("relation target not found",
					slog.String("property", name),
					slog.String("title", rel.Title),
				)
				continue
			}
			ids = append(ids, id)
		}
		props[name] = mapper.RelationByID(ids...)
	}
	return nil
}

// storablePlanning blanks each planned label with no page to point at,
// because its database is not configured or no page carries the title.
func (r *relations) storablePlanning(ctx context.Context, p domain.Planning) (domain.Planning, error) {
	labels := []struct {
		prop  string
		label *string
	}{
		{mapper.TaskPlannedWeek, &p.Week},
		{mapper.TaskPlannedMonth, &p.Month},
		{mapper.TaskPlannedQuarter, &p.Quarter},
	}
	for _, l := range labels {
		if *l.label == "" {
			continue
		}
		ok, err := r.writable(ctx, l.prop, *l.label)
		if err != nil {
			return p, err
		}
		if !ok {
			*l.label = ""
		}
	}
	return p, nil
}

// writable reports whether a relation to title can be written on prop.
func (r *relations) writable(ctx context.Context, prop, title string) (bool, error) {
	target, ok := r.targets[prop]
	if !ok || target.db == "" {
		return false, nil
	}
	id, err := r.idFor(ctx, target, title)
	return id != "", err
}

func (r *relations) idFor(ctx context.Context, t relationTarget, title string) (string, error) {
	if title == "" {
		return "", nil
	}
	return r.ids.GetOrLoad(relationKey{t.db, title}, func(k relationKey) (string, error) {
		res, err := r.notion.FindByTitle(ctx, k.db, t.titleField, k.title)
		if err != nil {
			return "", err
		}
		pg, _ := res.Get()
		if pg.ID != "" {
			r.titles.Put(pg.ID, title)
		}
		return pg.ID, nil
	})
}

// toTitles fills the title of every relation on pg.
func (r *relations) toTitles(ctx context.Context, pg *mapper.Page) error {
	for name, p := range pg.Properties {
		if p.Type != mapper.PropRelation || len(p.Relation) == 0 {
			continue
		}
		rels := make([]mapper.Relation, len(p.Relation))
		for i, rel := range p.Relation {
			title, err := r.titleFor(ctx, rel.ID)
			if err != nil {
				return err
			}
			rels[i] = mapper.Relation{ID: rel.ID, Title: title}
		}
		p.Relation = rels
		pg.Properties[name] = p
	}
	return nil
}

func (r *relations) titleFor(ctx context.Context, id string) (string, error) {
	return r.titles.GetOrLoad(id, func(id string) (string, error) {
		res, err := r.notion.GetPage(ctx, id)
		if err != nil {
			return "", err
		}
		pg, ok := res.Get()
		if !ok {
			return "", nil
		}
		return pageTitle(pg), nil
	})
}

// pageTitle returns the text of the page's title-typed property.
func pageTitle(pg mapper.Page) string {
	for _, p := range pg.Properties {
		if p.Type == mapper.PropTitle {
			return p.Text()
		}
	}
	return ""
}

// firstID unwraps a page lookup into its id.
func firstID(res domain.Lookup[mapper.Page]) domain.Lookup[string] {
	pg, ok := res.Get()
	if !ok || pg.ID == "" {
		return domain.NotFound[string]()
	}
	return domain.Found(pg.ID)
}
