package domain

import "tasksync/internal/timecube"

// Project is a container of tasks. Day is its review date.
type Project struct {
	Refs
	Classification
	Planning

	Title       string
	Day         timecube.Instant
	Goals       []string
	DependsOn   []string
	Done        bool
	LastUpdated timecube.Instant
}

func (p Project) Keys() Refs             { return p.Refs }
func (p Project) Name() string           { return p.Title }
func (p Project) Dependencies() []string { return p.DependsOn }

func (p Project) Watched() Watched {
	return Watched{Title: p.Title, Done: p.Done, Day: p.Day, Planning: p.Planning}
}

func (p Project) Diff(o Project) []string { return DiffWatched(p.Watched(), o.Watched()) }

func (p Project) WithID(sys System, id string) Project {
	p.SetID(sys, id)
	return p
}
