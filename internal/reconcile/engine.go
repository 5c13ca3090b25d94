// Package reconcile decides, per entity, whether its counterpart in the
// target store is created, updated or left alone, then attaches dependency
// edges once every entity of the batch exists.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"tasksync/internal/domain"
)

// Entity is implemented by domain.Task, domain.Project and domain.Activity.
type Entity[E any] interface {
	Keys() domain.Refs
	Name() string
	Dependencies() []string
	Diff(other E) []string
	WithID(sys domain.System, id string) E
}

// Counterpart is the target store as seen by the engine.
type Counterpart[E any] interface {
	// Lookup finds the counterpart of an entity carrying refs.
	Lookup(ctx context.Context, refs domain.Refs) (domain.Lookup[E], error)
	// Create stores e and returns its id in the target system.
	Create(ctx context.Context, e E) (string, error)
	// Update overwrites the counterpart identified by e's target id.
	Update(ctx context.Context, e E) error
	FindIDByTitle(ctx context.Context, title string) (domain.Lookup[string], error)
	// AttachDependency sets the dependencies of id to dependsOn.
	AttachDependency(ctx context.Context, id string, dependsOn []string) error
}

// Narrower is implemented by stores that cannot hold every watched value
// of E. Storable returns e as the store reads it back after a write, and
// the diff runs on that view.
type Narrower[E any] interface {
	Storable(ctx context.Context, e E) (E, error)
}

// Engine reconciles batches of E from Source into Target.
type Engine[E Entity[E]] struct {
	Store  Counterpart[E]
	Source domain.System
	Target domain.System
	Log    *slog.Logger
}

// pending is an entity that survived pass one.
type pending[E any] struct {
	entity   E
	targetID string
	depsSame bool
}

// Reconcile runs both passes over batch. Per-entity failures are recorded
// in the report and never stop the batch.
func (e *Engine[E]) Reconcile(ctx context.Context, stage string, batch []E) *Report {
	rep := NewReport(stage, e.Source, e.Target)
	log := e.logger().With(slog.String("stage", stage))

	var done []pending[E]
	byTitle := make(map[string]string, len(batch))
	for _, src := range batch {
		if err := ctx.Err(); err != nil {
			rep.Fail(src.Name(), src.Keys().ID(e.Source), err)
			continue
		}
		p, out := e.reconcileOne(ctx, src)
		rep.Record(out)
		if out.Action == Failed {
			log.Error("reconcile entity failed",
				slog.String("title", out.Title),
				slog.String("source_id", out.SourceID),
				slog.String("error", out.Err.Error()),
			)
			continue
		}
		log.Debug("reconciled entity",
			slog.String("title", out.Title),
			slog.String("action", string(out.Action)),
			slog.Any("fields", out.Fields),
		)
		byTitle[src.Name()] = p.targetID
		done = append(done, p)
	}

	e.attachDependencies(ctx, log, rep, done, byTitle)
	log.Info("reconcile finished",
		slog.Int("created", rep.Created),
		slog.Int("updated", rep.Updated),
		slog.Int("unchanged", rep.Unchanged),
		slog.Int("failed", rep.Failed),
		slog.Int("deps_attached", rep.DepsAttached),
	)
	return rep
}

func (e *Engine[E]) reconcileOne(ctx context.Context, src E) (pending[E], Outcome) {
	out := Outcome{Title: src.Name(), SourceID: src.Keys().ID(e.Source)}
	fail := func(err error) (pending[E], Outcome) {
		out.Action = Failed
		out.Err = err
		return pending[E]{}, out
	}
	if src.Keys().Empty() {
		return fail(domain.ErrUnkeyed)
	}

	res, err := e.Store.Lookup(ctx, src.Keys())
	if err != nil {
		return fail(fmt.Errorf("lookup: %w", err))
	}
	cp, found := res.Get()
	if !found {
		id, err := e.Store.Create(ctx, src)
		if err != nil {
			return fail(fmt.Errorf("create: %w", err))
		}
		out.Action = Created
		out.TargetID = id
		return pending[E]{entity: src.WithID(e.Target, id), targetID: id}, out
	}

	targetID := cp.Keys().ID(e.Target)
	out.TargetID = targetID
	merged := src.WithID(e.Target, targetID)
	p := pending[E]{entity: merged, targetID: targetID, depsSame: sameSet(src.Dependencies(), cp.Dependencies())}

	want := src
	if n, ok := e.Store.(Narrower[E]); ok {
		if want, err = n.Storable(ctx, src); err != nil {
			return fail(fmt.Errorf("storable: %w", err))
		}
	}
	fields := want.Diff(cp)
	if len(fields) == 0 {
		out.Action = Unchanged
		return p, out
	}
	if err := e.Store.Update(ctx, merged); err != nil {
		return fail(fmt.Errorf("update: %w", err))
	}
	out.Action = Updated
	out.Fields = fields
	return p, out
}

// attachDependencies is the second pass. Titles created earlier in the same
// batch resolve without a remote lookup.
func (e *Engine[E]) attachDependencies(ctx context.Context, log *slog.Logger, rep *Report, done []pending[E], byTitle map[string]string) {
	for _, p := range done {
		deps := p.entity.Dependencies()
		if len(deps) == 0 || p.depsSame {
			continue
		}
		var ids []string
		for _, title := range deps {
			id, err := e.resolveTitle(ctx, title, byTitle)
			if err != nil {
				log.Warn("dependency lookup failed",
					slog.String("title", p.entity.Name()),
					slog.String("depends_on", title),
					slog.String("error", err.Error()),
				)
			}
			if id == "" {
				rep.DepsUnresolved++
				rep.Unresolved = append(rep.Unresolved, p.entity.Name()+" -> "+title)
				continue
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			continue
		}
		if err := e.Store.AttachDependency(ctx, p.targetID, ids); err != nil {
			log.Error("attach dependency failed",
				slog.String("title", p.entity.Name()),
				slog.String("error", err.Error()),
			)
			rep.DepsUnresolved += len(ids)
			continue
		}
		rep.DepsAttached += len(ids)
	}
}

func (e *Engine[E]) resolveTitle(ctx context.Context, title string, byTitle map[string]string) (string, error) {
	if id, ok := byTitle[title]; ok && id != "" {
		return id, nil
	}
	res, err := e.Store.FindIDByTitle(ctx, title)
	if err != nil {
		return "", err
	}
	id, _ := res.Get()
	if id != "" {
		byTitle[title] = id
	}
	return id, nil
}

func (e *Engine[E]) logger() *slog.Logger {
	if e.Log == nil {
		return slog.Default()
	}
	return e.Log
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// IsUnkeyed reports whether err marks an entity without any cross-reference.
func IsUnkeyed(err error) bool { return errors.Is(err, domain.ErrUnkeyed) }
