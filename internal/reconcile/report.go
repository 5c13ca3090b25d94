package reconcile

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"tasksync/internal/domain"
)

// Action is what a run did to one entity.
type Action string

const (
	Created   Action = "created"
	Updated   Action = "updated"
	Unchanged Action = "unchanged"
	Failed    Action = "failed"
	Deleted   Action = "deleted"
)

// Outcome records the handling of one entity.
type Outcome struct {
	Title    string
	SourceID string
	TargetID string
	Action   Action
	Fields   []string // watched fields that differed, for updates
	Err      error
}

// Report is the result of reconciling one batch.
type Report struct {
	Stage  string
	Source domain.System
	Target domain.System

	Created        int
	Updated        int
	Unchanged      int
	Failed         int
	Deleted        int
	DepsAttached   int
	DepsUnresolved int

	Outcomes   []Outcome
	Unresolved []string // "task -> dependency" pairs that found no target
}

func NewReport(stage string, source, target domain.System) *Report {
	return &Report{Stage: stage, Source: source, Target: target}
}

// Record counts o and keeps it in Outcomes.
func (r *Report) Record(o Outcome) {
	switch o.Action {
	case Created:
		r.Created++
	case Updated:
		r.Updated++
	case Unchanged:
		r.Unchanged++
	case Failed:
		r.Failed++
	case Deleted:
		r.Deleted++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Fail records an entity that never reached the engine, e.g. because its
// taxonomy could not be resolved.
func (r *Report) Fail(title, sourceID string, err error) {
	r.Record(Outcome{Title: title, SourceID: sourceID, Action: Failed, Err: err})
}

// Writes returns the number of create and update calls issued.
func (r *Report) Writes() int { return r.Created + r.Updated }

func (r *Report) String() string {
	return fmt.Sprintf("%s %s->%s: created=%d updated=%d unchanged=%d failed=%d deleted=%d deps=%d unresolved=%d",
		r.Stage, r.Source, r.Target, r.Created, r.Updated, r.Unchanged, r.Failed, r.Deleted, r.DepsAttached, r.DepsUnresolved)
}

// RunSummary groups the reports of one orchestrator run.
type RunSummary struct {
	ID       uuid.UUID
	Started  time.Time
	Finished time.Time
	Reports  []*Report
	Errors   []string // stage-level failures
}

func NewRunSummary(started time.Time) *RunSummary {
	return &RunSummary{ID: uuid.New(), Started: started}
}

// Add appends a stage report; nil reports are ignored.
func (s *RunSummary) Add(r *Report) {
	if r != nil {
		s.Reports = append(s.Reports, r)
	}
}

// StageError records a stage that produced no batch.
func (s *RunSummary) StageError(stage string, err error) {
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", stage, err))
}

// Totals sums every report.
func (s *RunSummary) Totals() (created, updated, unchanged, failed, deleted int) {
	for _, r := range s.Reports {
		created += r.Created
		updated += r.Updated
		unchanged += r.Unchanged
		failed += r.Failed
		deleted += r.Deleted
	}
	return
}
