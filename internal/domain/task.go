package domain

import "tasksync/internal/timecube"

// Task is the canonical task record shared by every store.
type Task struct {
	Refs
	Classification
	Planning

	Title        string
	Day          timecube.Instant // zero when unscheduled
	DependsOn    []string         // titles of tasks that must finish first
	Goals        []string
	TimeEstimate int // minutes, 0 when absent
	Duration     int // minutes, 0 when absent
	Subtasks     []Subtask
	Tags         []string
	Done         bool
	Delete       bool // flagged for removal from every store
	LastUpdated  timecube.Instant
}

// Subtask is a child item of a Task.
type Subtask struct {
	Refs
	Title        string
	Done         bool
	TimeEstimate int
}

func (t Task) Keys() Refs             { return t.Refs }
func (t Task) Name() string           { return t.Title }
func (t Task) Dependencies() []string { return t.DependsOn }

func (t Task) Watched() Watched {
	return Watched{
		Title:        t.Title,
		Done:         t.Done,
		TimeEstimate: t.TimeEstimate,
		Duration:     t.Duration,
		Day:          t.Day,
		Planning:     t.Planning,
	}
}

// Diff lists the watched fields on which t and o disagree.
func (t Task) Diff(o Task) []string { return DiffWatched(t.Watched(), o.Watched()) }

// WithID returns a copy of t carrying id as its key in sys.
func (t Task) WithID(sys System, id string) Task {
	t.SetID(sys, id)
	return t
}
