package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tasksync/internal/domain"
)

// Remover deletes one record from a system.
type Remover interface {
	Remove(ctx context.Context, id string) error
}

// RemoverFunc adapts a function to Remover.
type RemoverFunc func(ctx context.Context, id string) error

func (f RemoverFunc) Remove(ctx context.Context, id string) error { return f(ctx, id) }

// Purge removes every flagged entity from each system holding a key for it.
// The flagging system goes last and is skipped when another removal failed,
// so the flag survives and the next run retries.
func Purge[E Entity[E]](ctx context.Context, log *slog.Logger, stage string, flagged domain.System, batch []E, removers map[domain.System]Remover) *Report {
	if log == nil {
		log = slog.Default()
	}
	rep := NewReport(stage, flagged, "")
	order := make([]domain.System, 0, len(removers))
	for _, sys := range []domain.System{domain.Marvin, domain.Notion, domain.Garmin} {
		if sys != flagged {
			order = append(order, sys)
		}
	}
	order = append(order, flagged)

	for _, ent := range batch {
		refs := ent.Keys()
		out := Outcome{Title: ent.Name(), SourceID: refs.ID(flagged), Action: Deleted}
		if refs.Empty() {
			out.Action, out.Err = Failed, domain.ErrUnkeyed
			rep.Record(out)
			continue
		}
		var errs []error
		for _, sys := range order {
			id := refs.ID(sys)
			rm, ok := removers[sys]
			if id == "" || !ok {
				continue
			}
			if sys == flagged && len(errs) > 0 {
				break
			}
			if err := rm.Remove(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", sys, id, err))
			}
		}
		if len(errs) > 0 {
			out.Action, out.Err = Failed, errors.Join(errs...)
			log.Error("delete failed",
				slog.String("stage", stage),
				slog.String("title", out.Title),
				slog.String("error", out.Err.Error()),
			)
		} else {
			log.Info("deleted", slog.String("stage", stage), slog.String("title", out.Title))
		}
		rep.Record(out)
	}
	return rep
}
