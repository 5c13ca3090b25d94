package ports

import (
	"context"

	"tasksync/internal/domain"
	"tasksync/internal/mapper"
	"tasksync/internal/reconcile"
	"tasksync/internal/timecube"
)

// Op is a filter comparison.
type Op string

const (
	OpEq       Op = "eq"
	OpLTE      Op = "lte"
	OpGTE      Op = "gte"
	OpContains Op = "contains"
)

// Kind tells a store how to interpret a filter value.
type Kind string

const (
	KindText       Kind = "text"
	KindTitle      Kind = "title"
	KindDate       Kind = "date"
	KindCheckbox   Kind = "checkbox"
	KindNumber     Kind = "number"
	KindLastEdited Kind = "last_edited"
	KindRelation   Kind = "relation"
)

// Filter is one predicate of a Query. All filters of a Query must hold.
type Filter struct {
	Field string
	Kind  Kind
	Op    Op
	Value any
}

// Query is a store-neutral conjunction of filters.
type Query struct {
	Filters []Filter
}

// Where returns a Query holding the given filters.
func Where(filters ...Filter) Query { return Query{Filters: filters} }

// MarvinClient is Store A, the task manager.
type MarvinClient interface {
	// FindDocs runs a selector over the task manager's document database.
	FindDocs(ctx context.Context, q Query) ([]mapper.MarvinDoc, error)
	GetDoc(ctx context.Context, id string) (domain.Lookup[mapper.MarvinDoc], error)
	CreateTask(ctx context.Context, doc mapper.MarvinDoc) (mapper.MarvinDoc, error)
	// UpdateDoc sets the given fields on an existing document.
	UpdateDoc(ctx context.Context, id string, patch map[string]any) error
	DeleteDoc(ctx context.Context, id string) error
	Labels(ctx context.Context) ([]mapper.MarvinLabel, error)
	Trackers(ctx context.Context) ([]mapper.MarvinTracker, error)
	// SaveTracker writes t back with its revision.
	SaveTracker(ctx context.Context, t mapper.MarvinTracker) error
}

// NotionClient is Store B, the structured database tool.
type NotionClient interface {
	QueryDatabase(ctx context.Context, dbID string, q Query) ([]mapper.Page, error)
	GetPage(ctx context.Context, id string) (domain.Lookup[mapper.Page], error)
	CreatePage(ctx context.Context, dbID string, pg mapper.Page) (mapper.Page, error)
	UpdatePage(ctx context.Context, pg mapper.Page) error
	ArchivePage(ctx context.Context, id string) error
	// FindByTitle returns the first page of dbID whose field equals text.
	FindByTitle(ctx context.Context, dbID, field, text string) (domain.Lookup[mapper.Page], error)
}

// GarminClient reads the wearable account.
type GarminClient interface {
	ListActivities(ctx context.Context, from, to timecube.Instant) ([]mapper.GarminActivity, error)
	DailySummary(ctx context.Context, day timecube.Instant) (mapper.GarminDaily, error)
}

// Clock provides the instant windows are derived from.
type Clock interface {
	Now() timecube.Instant
}

// ReportSink stores what a run did. It is never read back by a run.
type ReportSink interface {
	RecordRun(ctx context.Context, run *reconcile.RunSummary) error
}
